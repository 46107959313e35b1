// Package app builds the per-session context: the configured backend, the
// repository loaded from it and the analytics engine reading from that
// repository. The CLI, the TUI and the server each construct exactly one.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/existflow/ironledger/internal/analytics"
	"github.com/existflow/ironledger/internal/config"
	"github.com/existflow/ironledger/internal/logger"
	"github.com/existflow/ironledger/internal/model"
	"github.com/existflow/ironledger/internal/repository"
	"github.com/existflow/ironledger/internal/storage"
	"github.com/existflow/ironledger/internal/storage/hybrid"
	"github.com/existflow/ironledger/internal/storage/localfile"
	"github.com/existflow/ironledger/internal/storage/memory"
	"github.com/existflow/ironledger/internal/storage/postgres"
	"github.com/existflow/ironledger/internal/storage/remote"
	"github.com/existflow/ironledger/internal/storage/sqlite"
)

// App is the session context
type App struct {
	Config    *config.Config
	Backend   storage.Backend
	Repo      *repository.Repository
	Analytics *analytics.Engine

	monitor *hybrid.Monitor
}

// OpenBackend constructs the backend named by cfg.Backend
func OpenBackend(cfg *config.Config) (storage.Backend, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return memory.New(), nil
	case config.BackendLocalFile:
		return localfile.Open(cfg.DataDir)
	case config.BackendSQLite:
		return sqlite.Open(cfg.DBPath)
	case config.BackendPostgres:
		return postgres.Open(cfg.DatabaseURL, cfg.DatabaseDriver)
	case config.BackendRemote:
		return remote.New(cfg.ServerURL)
	case config.BackendHybrid:
		r, err := remote.New(cfg.ServerURL)
		if err != nil {
			return nil, err
		}
		local, err := localfile.Open(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		return hybrid.New(r, local), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// OpenServerBackend constructs the store behind ironledger-server
func OpenServerBackend(cfg *config.ServerConfig) (storage.Backend, error) {
	switch cfg.Store {
	case config.BackendPostgres:
		return postgres.Open(cfg.DatabaseURL, cfg.DatabaseDriver)
	case config.BackendSQLite:
		return sqlite.Open(cfg.DBPath)
	case config.BackendMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unsupported server store %q", cfg.Store)
	}
}

// Open builds the session for cfg and performs the initial load
func Open(ctx context.Context, cfg *config.Config, opts ...repository.Option) (*App, error) {
	backend, err := OpenBackend(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s backend: %w", cfg.Backend, err)
	}
	a, err := New(ctx, cfg, backend, opts...)
	if err != nil {
		backend.Close()
		return nil, err
	}
	return a, nil
}

// New builds the session around an already open backend
func New(ctx context.Context, cfg *config.Config, backend storage.Backend, opts ...repository.Option) (*App, error) {
	repo := repository.New(backend, opts...)
	if err := repo.ReloadAll(ctx); err != nil {
		return nil, err
	}

	logger.Debug("Session opened",
		logger.F("backend", backend.Name()),
		logger.F("policy", backend.Policy().String()))

	return &App{
		Config:    cfg,
		Backend:   backend,
		Repo:      repo,
		Analytics: analytics.New(repo),
	}, nil
}

// Hybrid returns the hybrid backend when one is in use
func (a *App) Hybrid() (*hybrid.Store, bool) {
	h, ok := a.Backend.(*hybrid.Store)
	return h, ok
}

// StartMonitor polls the remote of a hybrid backend until Close. onChange
// receives every transition between online and offline. It does nothing for
// other backends.
func (a *App) StartMonitor(interval time.Duration, onChange func(online bool)) bool {
	h, ok := a.Hybrid()
	if !ok || a.monitor != nil {
		return false
	}
	h.SetOnChange(onChange)
	a.monitor = hybrid.NewMonitor(h, interval)
	a.monitor.Start()
	return true
}

// Close stops background work and releases the backend
func (a *App) Close() error {
	if a.monitor != nil {
		a.monitor.Stop()
	}
	return a.Backend.Close()
}

// Describe explains an error for a person at a terminal
func Describe(err error) string {
	var verr *model.ValidationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &verr):
		return verr.Error()
	case errors.Is(err, model.ErrNotFound):
		return "not found"
	case errors.Is(err, model.ErrAlreadyExists):
		return "a record with that id already exists"
	case errors.Is(err, model.ErrResetRefused):
		return "the storage backend refused to delete all data"
	case errors.Is(err, model.ErrBackendUnavailable):
		return "storage unavailable: " + err.Error()
	default:
		return err.Error()
	}
}
