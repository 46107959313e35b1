package cli

import (
	"bufio"
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/existflow/ironledger/internal/app"
	"github.com/existflow/ironledger/internal/config"
	"github.com/existflow/ironledger/internal/logger"
	"github.com/existflow/ironledger/internal/tui"
	"github.com/spf13/cobra"
)

// session carries the state shared by every command of one invocation
type session struct {
	cfg *config.Config
	app *app.App
	in  *bufio.Reader

	logLevel   string
	logFile    string
	logConsole bool
	backend    string
	dataDir    string
	serverURL  string
}

// open builds the app context on first use
func (s *session) open(cmd *cobra.Command) (*app.App, error) {
	if s.app != nil {
		return s.app, nil
	}
	if err := s.cfg.Validate(); err != nil {
		return nil, err
	}
	a, err := app.Open(cmd.Context(), s.cfg)
	if err != nil {
		logger.Error("Failed to open storage", logger.F("backend", s.cfg.Backend), logger.F("error", err))
		return nil, err
	}
	s.app = a
	return a, nil
}

func (s *session) close() {
	if s.app == nil {
		return
	}
	if err := s.app.Close(); err != nil {
		logger.Warn("Failed to close storage", logger.F("error", err))
	}
	s.app = nil
}

// newRootCmd builds the full command tree and the session it shares
func newRootCmd() (*cobra.Command, *session) {
	s := &session{}

	rootCmd := &cobra.Command{
		Use:   "ironledger",
		Short: "IronLedger - freelancer bookkeeping for clients, projects and payments",
		Long: `IronLedger tracks clients, the projects you do for them and the payments
you are owed, and tells you what needs chasing.

Run 'ironledger' without arguments to launch the interactive dashboard.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config.LoadDotEnv()

			// Load config from file (or defaults if not exists)
			cfg, err := config.Load()
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v, using defaults\n", err)
				cfg = config.DefaultConfig()
			}

			// Per-run overrides
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = s.logLevel
			}
			if cmd.Flags().Changed("log-file") {
				cfg.LogFile = s.logFile
			}
			if cmd.Flags().Changed("log-console") {
				cfg.LogConsole = s.logConsole
			}
			if cmd.Flags().Changed("backend") {
				cfg.Backend = config.BackendType(s.backend)
			}
			if cmd.Flags().Changed("data-dir") {
				cfg.DataDir = s.dataDir
			}
			if cmd.Flags().Changed("server-url") {
				cfg.ServerURL = s.serverURL
			}
			s.cfg = cfg

			logConfig := logger.DefaultConfig()
			logConfig.Level = logger.ParseLevel(cfg.LogLevel)
			logConfig.FilePath = cfg.LogFile
			logConfig.Console = cfg.LogConsole // off by default, keeps the TUI clean
			if err := logger.Init(logConfig); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}

			logger.Info("IronLedger started",
				logger.F("command", cmd.CommandPath()),
				logger.F("backend", cfg.Backend))
			return nil
		},

		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := s.open(cmd)
			if err != nil {
				return err
			}

			logger.Info("Launching TUI")
			p := tea.NewProgram(tui.NewModel(a), tea.WithAltScreen(), tea.WithContext(cmd.Context()))
			if _, err := p.Run(); err != nil {
				logger.Error("TUI error", logger.F("error", err))
				return fmt.Errorf("failed to run TUI: %w", err)
			}

			logger.Info("TUI exited normally")
			return nil
		},

	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&s.logLevel, "log-level", "", "Log level (DEBUG, INFO, WARN, ERROR)")
	flags.StringVar(&s.logFile, "log-file", "", "Path to log file")
	flags.BoolVar(&s.logConsole, "log-console", false, "Enable console logging")
	flags.StringVar(&s.backend, "backend", "", "Storage backend for this run (memory, localfile, sqlite, postgres, remote, hybrid)")
	flags.StringVar(&s.dataDir, "data-dir", "", "Data directory for the localfile and hybrid backends")
	flags.StringVar(&s.serverURL, "server-url", "", "Server URL for the remote and hybrid backends")

	rootCmd.AddCommand(
		newClientCmd(s),
		newProjectCmd(s),
		newPaymentCmd(s),
		newDashboardCmd(s),
		newRemindersCmd(s),
		newOverdueCmd(s),
		newUpcomingCmd(s),
		newTopCmd(s),
		newSearchCmd(s),
		newExportCmd(s),
		newImportCmd(s),
		newClearCmd(s),
		newReloadCmd(s),
		newStatusCmd(s),
		newSyncCmd(s),
		newConfigCmd(s),
	)
	return rootCmd, s
}

// Execute runs the command line and releases storage afterwards
func Execute(ctx context.Context) error {
	rootCmd, s := newRootCmd()
	err := rootCmd.ExecuteContext(ctx)
	s.close()
	logger.Info("IronLedger exiting")
	logger.Close()
	return err
}
