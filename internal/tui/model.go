// Package tui is the interactive dashboard: a sidebar of views over the
// ledger and a list pane for the selected view.
package tui

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/existflow/ironledger/internal/analytics"
	"github.com/existflow/ironledger/internal/app"
	"github.com/existflow/ironledger/internal/logger"
	"github.com/existflow/ironledger/internal/model"
	"github.com/existflow/ironledger/internal/storage/hybrid"
)

// View is one of the sidebar entries
type View int

const (
	ViewDashboard View = iota
	ViewClients
	ViewProjects
	ViewPayments
)

var viewNames = []string{"Dashboard", "Clients", "Projects", "Payments"}

func (v View) String() string { return viewNames[v] }

// Pane represents which pane is focused
type Pane int

const (
	PaneSidebar Pane = iota
	PaneList
)

// Mode represents the current UI mode
type Mode int

const (
	ModeNormal Mode = iota
	ModeForm
	ModeConfirm
	ModeFilter
	ModeHelp
)

// settleDelay keeps a just delivered or received row in place before it sinks
const settleDelay = 10 * time.Second

// form collects one value per field through the shared text input
type form struct {
	title  string
	fields []string
	values []string
	step   int
	submit func(values []string) (string, error)
}

// confirmation is a pending y/n question
type confirmation struct {
	prompt string
	action func() (string, error)
}

// Model is the main TUI model
type Model struct {
	app *app.App
	ctx context.Context

	// Data
	stats     analytics.DashboardStats
	reminders []analytics.Reminder
	overdue   []analytics.OverdueProject
	upcoming  []analytics.UpcomingDeadline
	trend     []analytics.MonthRevenue
	clients   []analytics.ClientWithStats
	projects  []model.ProjectWithClient
	payments  []model.PaymentWithRefs

	// Connection state of a hybrid backend
	monitoring bool
	online     bool
	statusChan chan struct{}

	// UI state
	width  int
	height int
	pane   Pane
	mode   Mode
	view   View
	cursor int

	// Input
	input   textinput.Model
	form    *form
	confirm *confirmation

	// Sorting state
	recentlyDone map[string]time.Time

	// Filter (vim-style)
	filterText   string
	matchIndices []int
	matchCursor  int

	message string
}

// NewModel creates the TUI over an open session
func NewModel(a *app.App) Model {
	logger.Info("Initializing TUI model")

	ti := textinput.New()
	ti.CharLimit = 256
	ti.Width = 50

	m := Model{
		app:          a,
		ctx:          context.Background(),
		pane:         PaneSidebar,
		mode:         ModeNormal,
		input:        ti,
		recentlyDone: make(map[string]time.Time),
		statusChan:   make(chan struct{}, 1),
	}

	// Watch the server when the backend is hybrid
	ch := m.statusChan
	m.monitoring = a.StartMonitor(hybrid.DefaultPollInterval, func(bool) {
		select {
		case ch <- struct{}{}:
		default:
		}
	})
	if h, ok := a.Hybrid(); ok {
		m.online = h.Online()
	}

	m.loadData()
	logger.Debug("TUI model initialized",
		logger.F("clients", len(m.clients)),
		logger.F("projects", len(m.projects)),
		logger.F("payments", len(m.payments)))
	return m
}

func (m *Model) loadData() {
	eng := m.app.Analytics
	repo := m.app.Repo

	m.stats = eng.DashboardStats()
	m.reminders = eng.PaymentsNeedingReminders()
	m.overdue = eng.OverdueProjects()
	m.upcoming = eng.UpcomingDeadlines()
	m.trend = eng.MonthlyRevenueTrend()
	m.clients = eng.ClientsWithStats()

	// Open work first; finished rows sink once they have settled
	m.projects = repo.ProjectsWithClient()
	slices.SortStableFunc(m.projects, func(a, b model.ProjectWithClient) int {
		return compareDone(m.settled(a.ID, a.IsDelivered()), m.settled(b.ID, b.IsDelivered()))
	})
	m.payments = repo.PaymentsWithProjectAndClient()
	slices.SortStableFunc(m.payments, func(a, b model.PaymentWithRefs) int {
		return compareDone(m.settled(a.ID, !a.IsPending()), m.settled(b.ID, !b.IsPending()))
	})

	if n := m.rowCount(); m.cursor >= n {
		m.cursor = max(n-1, 0)
	}
	if m.filterText != "" {
		m.applyFilter()
	}
}

// settled reports whether a finished row should be sorted as finished
func (m *Model) settled(id string, done bool) bool {
	if !done {
		return false
	}
	if t, ok := m.recentlyDone[id]; ok && time.Since(t) < settleDelay {
		return false
	}
	return true
}

func compareDone(a, b bool) int {
	switch {
	case a == b:
		return 0
	case a:
		return 1
	default:
		return -1
	}
}

// rowCount is the number of selectable rows in the current view.
// The dashboard selects among reminders.
func (m *Model) rowCount() int {
	switch m.view {
	case ViewClients:
		return len(m.clients)
	case ViewProjects:
		return len(m.projects)
	case ViewPayments:
		return len(m.payments)
	default:
		return len(m.reminders)
	}
}

func (m *Model) currentClient() *analytics.ClientWithStats {
	if m.view == ViewClients && m.cursor < len(m.clients) {
		return &m.clients[m.cursor]
	}
	return nil
}

func (m *Model) currentProject() *model.ProjectWithClient {
	if m.view == ViewProjects && m.cursor < len(m.projects) {
		return &m.projects[m.cursor]
	}
	return nil
}

func (m *Model) currentPayment() *model.PaymentWithRefs {
	switch {
	case m.view == ViewPayments && m.cursor < len(m.payments):
		return &m.payments[m.cursor]
	case m.view == ViewDashboard && m.cursor < len(m.reminders):
		return &m.reminders[m.cursor].PaymentWithRefs
	}
	return nil
}

// applyFilter marks the rows of the current view matching filterText
func (m *Model) applyFilter() {
	m.matchIndices = nil
	m.matchCursor = 0

	if m.filterText == "" {
		return
	}

	switch m.view {
	case ViewClients, ViewProjects:
		res := m.app.Analytics.Search(m.filterText)
		ids := make(map[string]bool, res.Total)
		for _, c := range res.Clients {
			ids[c.ID] = true
		}
		for _, p := range res.Projects {
			ids[p.ID] = true
		}
		if m.view == ViewClients {
			for i, c := range m.clients {
				if ids[c.ID] {
					m.matchIndices = append(m.matchIndices, i)
				}
			}
		} else {
			for i, p := range m.projects {
				if ids[p.ID] || (p.Client != nil && ids[p.Client.ID]) {
					m.matchIndices = append(m.matchIndices, i)
				}
			}
		}
	case ViewPayments:
		filter := strings.ToLower(m.filterText)
		for i, p := range m.payments {
			var text string
			if p.Project != nil {
				text += p.Project.Title + " "
			}
			if p.Client != nil {
				text += p.Client.Name
			}
			if strings.Contains(strings.ToLower(text), filter) {
				m.matchIndices = append(m.matchIndices, i)
			}
		}
	}
}
