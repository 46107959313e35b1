package tui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/existflow/ironledger/internal/app"
	"github.com/existflow/ironledger/internal/logger"
	"github.com/existflow/ironledger/internal/model"
	"github.com/existflow/ironledger/internal/storage"
)

// tickMsg is sent every second for time updates
type tickMsg time.Time

// connectionMsg is sent when the hybrid backend goes online or offline
type connectionMsg struct{}

// Init initializes the model with a tick command
func (m Model) Init() tea.Cmd {
	return tea.Batch(tickCmd(), m.waitForConnection())
}

func tickCmd() tea.Cmd {
	return tea.Every(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// waitForConnection listens for connection changes
func (m Model) waitForConnection() tea.Cmd {
	if !m.monitoring {
		return nil
	}
	ch := m.statusChan
	return func() tea.Msg {
		<-ch
		return connectionMsg{}
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		// Check for delayed sorting
		needsRefresh := false
		for id, doneTime := range m.recentlyDone {
			if time.Since(doneTime) >= settleDelay {
				delete(m.recentlyDone, id)
				needsRefresh = true
			}
		}
		if needsRefresh {
			m.loadData()
		}
		return m, tickCmd()

	case connectionMsg:
		if h, ok := m.app.Hybrid(); ok {
			m.online = h.Online()
		}
		if m.online {
			m.message = "Server reachable"
			if err := m.app.Repo.ReloadAll(m.ctx); err == nil {
				m.loadData()
			}
		} else {
			m.message = "Server unreachable, working from the local cache"
		}
		return m, m.waitForConnection()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		// Handle mode-specific input
		switch m.mode {
		case ModeForm:
			return m.updateForm(msg)
		case ModeConfirm:
			return m.updateConfirm(msg)
		case ModeFilter:
			return m.updateFilter(msg)
		case ModeHelp:
			m.mode = ModeNormal
			return m, nil
		}

		return m.handleNormalKeys(msg)
	}

	return m, nil
}

// handleNormalKeys handles key presses in normal mode
func (m Model) handleNormalKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, keys.Tab):
		if m.pane == PaneSidebar {
			m.pane = PaneList
		} else {
			m.pane = PaneSidebar
		}

	case key.Matches(msg, keys.Left):
		m.pane = PaneSidebar

	case key.Matches(msg, keys.Right):
		m.pane = PaneList

	case key.Matches(msg, keys.Up):
		m.handleUp()

	case key.Matches(msg, keys.Down):
		m.handleDown()

	case msg.String() == "G":
		if m.pane == PaneList {
			m.cursor = max(m.rowCount()-1, 0)
		} else {
			m.switchView(ViewPayments)
		}

	case msg.String() >= "1" && msg.String() <= "4" && len(msg.String()) == 1:
		m.switchView(View(msg.String()[0] - '1'))

	case key.Matches(msg, keys.Add):
		return m.startAdd()

	case key.Matches(msg, keys.Done), key.Matches(msg, keys.Enter):
		m.handleToggleDone()

	case key.Matches(msg, keys.Status):
		m.handleCycleStatus()

	case key.Matches(msg, keys.Edit):
		return m.startEdit()

	case key.Matches(msg, keys.Delete):
		m.handleDelete()

	case msg.String() == "/":
		return m.startFilter()

	case msg.String() == "n":
		m.handleNextMatch()

	case msg.String() == "N":
		m.handlePrevMatch()

	case key.Matches(msg, keys.Escape):
		if m.filterText != "" {
			m.filterText = ""
			m.matchIndices = nil
			m.message = "Filter cleared"
		}

	case key.Matches(msg, keys.Help):
		m.mode = ModeHelp

	case key.Matches(msg, keys.Refresh):
		m.handleRefresh()
	}

	return m, nil
}

func (m *Model) switchView(v View) {
	if v == m.view {
		return
	}
	m.view = v
	m.cursor = 0
	m.applyFilter()
}

func (m *Model) handleUp() {
	if m.pane == PaneSidebar {
		if m.view > ViewDashboard {
			m.switchView(m.view - 1)
		}
	} else if m.cursor > 0 {
		m.cursor--
	}
}

func (m *Model) handleDown() {
	if m.pane == PaneSidebar {
		if m.view < ViewPayments {
			m.switchView(m.view + 1)
		}
	} else if m.cursor < m.rowCount()-1 {
		m.cursor++
	}
}

// report shows the outcome of a write and refreshes the lists
func (m *Model) report(ok string, err error) {
	switch {
	case err == nil:
		m.message = ok
	case m.app.Backend.Policy() == storage.LocalFirst && errors.Is(err, model.ErrBackendUnavailable):
		m.message = ok + " (saved locally, server unreachable)"
	default:
		logger.Warn("TUI write failed", logger.F("error", err))
		m.message = "Error: " + app.Describe(err)
	}
	m.loadData()
}

func (m *Model) handleToggleDone() {
	repo := m.app.Repo
	switch m.view {
	case ViewClients:
		// Jump to the client's projects
		if c := m.currentClient(); c != nil {
			m.switchView(ViewProjects)
			m.filterText = c.Name
			m.applyFilter()
			if len(m.matchIndices) > 0 {
				m.cursor = m.matchIndices[0]
			}
			m.pane = PaneList
		}

	case ViewProjects:
		p := m.currentProject()
		if p == nil {
			return
		}
		if p.IsDelivered() {
			st := model.ProjectInProgress
			_, err := repo.UpdateProject(m.ctx, p.ID, model.ProjectPatch{Status: &st})
			delete(m.recentlyDone, p.ID)
			m.report("Reopened: "+p.Title, err)
			return
		}
		_, err := repo.MarkDelivered(m.ctx, p.ID)
		m.recentlyDone[p.ID] = time.Now()
		m.report("Delivered: "+p.Title, err)

	default:
		p := m.currentPayment()
		if p == nil {
			return
		}
		if !p.IsPending() {
			st := model.PaymentPending
			_, err := repo.UpdatePayment(m.ctx, p.ID, model.PaymentPatch{Status: &st})
			delete(m.recentlyDone, p.ID)
			m.report("Marked pending again", err)
			return
		}
		_, err := repo.MarkReceived(m.ctx, p.ID)
		m.recentlyDone[p.ID] = time.Now()
		m.report("Received "+money(m.app.Config.Currency, p.Amount), err)
	}
}

func (m *Model) handleCycleStatus() {
	p := m.currentProject()
	if p == nil {
		return
	}
	next := model.ProjectStatuses[0]
	for i, st := range model.ProjectStatuses {
		if st == p.Status {
			next = model.ProjectStatuses[(i+1)%len(model.ProjectStatuses)]
		}
	}
	_, err := m.app.Repo.UpdateProject(m.ctx, p.ID, model.ProjectPatch{Status: &next})
	if next == model.ProjectDelivered {
		m.recentlyDone[p.ID] = time.Now()
	}
	m.report(fmt.Sprintf("%s is now %s", p.Title, next), err)
}

func (m *Model) handleDelete() {
	var c confirmation
	repo := m.app.Repo
	switch m.view {
	case ViewClients:
		cl := m.currentClient()
		if cl == nil {
			return
		}
		c = confirmation{
			prompt: fmt.Sprintf("Delete %s and %d project(s)?", cl.Name, cl.Stats.TotalProjects),
			action: func() (string, error) { return "Deleted " + cl.Name, repo.DeleteClient(m.ctx, cl.ID) },
		}
	case ViewProjects:
		p := m.currentProject()
		if p == nil {
			return
		}
		c = confirmation{
			prompt: fmt.Sprintf("Delete %s and its payments?", p.Title),
			action: func() (string, error) { return "Deleted " + p.Title, repo.DeleteProject(m.ctx, p.ID) },
		}
	default:
		p := m.currentPayment()
		if p == nil {
			return
		}
		amount := money(m.app.Config.Currency, p.Amount)
		c = confirmation{
			prompt: fmt.Sprintf("Delete payment of %s?", amount),
			action: func() (string, error) { return "Deleted payment of " + amount, repo.DeletePayment(m.ctx, p.ID) },
		}
	}

	if !m.app.Config.ConfirmDelete {
		m.report(c.action())
		return
	}
	m.confirm = &c
	m.mode = ModeConfirm
}

func (m Model) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	c := m.confirm
	m.confirm = nil
	m.mode = ModeNormal
	if c != nil && strings.EqualFold(msg.String(), "y") {
		m.report(c.action())
		if n := m.rowCount(); m.cursor >= n && m.cursor > 0 {
			m.cursor = n - 1
		}
	} else {
		m.message = "Cancelled"
	}
	return m, nil
}

func (m *Model) handleRefresh() {
	if err := m.app.Repo.ReloadAll(m.ctx); err != nil {
		m.message = "Reload failed: " + app.Describe(err)
		return
	}
	m.loadData()
	m.message = "Reloaded from " + m.app.Backend.Name()
}

func (m Model) startAdd() (tea.Model, tea.Cmd) {
	repo := m.app.Repo
	switch m.view {
	case ViewProjects:
		var client string
		if p := m.currentProject(); p != nil && p.Client != nil {
			client = p.Client.Name
		}
		m.form = &form{
			title:  "New Project",
			fields: []string{"Client (name or id)", "Title", "Amount", "Deadline (YYYY-MM-DD or +Nd, optional)"},
			values: []string{client},
			submit: func(v []string) (string, error) {
				c, err := m.findClient(v[0])
				if err != nil {
					return "", err
				}
				p := model.Project{ClientID: c.ID, Title: v[1]}
				if p.Amount, err = parseAmount(v[2]); err != nil {
					return "", err
				}
				if v[3] != "" {
					d, err := parseDate(v[3], time.Now())
					if err != nil {
						return "", err
					}
					p.Deadline = &d
				}
				_, err = repo.AddProject(m.ctx, p)
				return "Added project: " + p.Title, err
			},
		}

	case ViewPayments:
		var project string
		if p := m.currentPayment(); p != nil && p.Project != nil {
			project = p.Project.Title
		}
		m.form = &form{
			title:  "New Payment",
			fields: []string{"Project (title or id)", "Amount (blank for project amount)", "Due (YYYY-MM-DD or +Nd, optional)"},
			values: []string{project},
			submit: func(v []string) (string, error) {
				proj, err := m.findProject(v[0])
				if err != nil {
					return "", err
				}
				now := time.Now()
				p := model.Payment{ProjectID: proj.ID, Amount: proj.Amount, DueDate: model.DueDateFor(proj.Deadline, now)}
				if v[1] != "" {
					if p.Amount, err = parseAmount(v[1]); err != nil {
						return "", err
					}
				}
				if v[2] != "" {
					if p.DueDate, err = parseDate(v[2], now); err != nil {
						return "", err
					}
				}
				_, err = repo.AddPayment(m.ctx, p)
				return "Added payment of " + money(m.app.Config.Currency, p.Amount), err
			},
		}

	default:
		m.form = &form{
			title:  "New Client",
			fields: []string{"Name", "Email", "Phone (optional)", "Company (optional)"},
			submit: func(v []string) (string, error) {
				c := model.Client{Name: v[0], Email: v[1], Phone: v[2], Company: v[3]}
				_, err := repo.AddClient(m.ctx, c)
				return "Added client: " + c.Name, err
			},
		}
	}
	return m.beginForm()
}

func (m Model) startEdit() (tea.Model, tea.Cmd) {
	repo := m.app.Repo
	switch m.view {
	case ViewClients:
		c := m.currentClient()
		if c == nil {
			return m, nil
		}
		m.form = &form{
			title:  "Edit Client",
			fields: []string{"Name", "Email"},
			values: []string{c.Name, c.Email},
			submit: func(v []string) (string, error) {
				_, err := repo.UpdateClient(m.ctx, c.ID, model.ClientPatch{Name: &v[0], Email: &v[1]})
				return "Updated: " + v[0], err
			},
		}
	case ViewProjects:
		p := m.currentProject()
		if p == nil {
			return m, nil
		}
		m.form = &form{
			title:  "Edit Project",
			fields: []string{"Title", "Amount"},
			values: []string{p.Title, strconv.FormatFloat(p.Amount, 'f', -1, 64)},
			submit: func(v []string) (string, error) {
				amount, err := parseAmount(v[1])
				if err != nil {
					return "", err
				}
				_, err = repo.UpdateProject(m.ctx, p.ID, model.ProjectPatch{Title: &v[0], Amount: &amount})
				return "Updated: " + v[0], err
			},
		}
	case ViewPayments:
		p := m.currentPayment()
		if p == nil {
			return m, nil
		}
		m.form = &form{
			title:  "Edit Payment",
			fields: []string{"Amount", "Due (YYYY-MM-DD or +Nd)"},
			values: []string{strconv.FormatFloat(p.Amount, 'f', -1, 64), p.DueDate.Local().Format("2006-01-02")},
			submit: func(v []string) (string, error) {
				amount, err := parseAmount(v[0])
				if err != nil {
					return "", err
				}
				due, err := parseDate(v[1], time.Now())
				if err != nil {
					return "", err
				}
				_, err = repo.UpdatePayment(m.ctx, p.ID, model.PaymentPatch{Amount: &amount, DueDate: &due})
				return "Updated payment", err
			},
		}
	default:
		return m, nil
	}
	return m.beginForm()
}

func (m Model) beginForm() (tea.Model, tea.Cmd) {
	f := m.form
	f.values = append(f.values, make([]string, len(f.fields)-len(f.values))...)
	f.step = 0
	m.mode = ModeForm
	m.input.SetValue(f.values[0])
	m.input.Placeholder = f.fields[0]
	m.input.Focus()
	m.input.CursorEnd()
	return m, textinput.Blink
}

func (m Model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	f := m.form
	switch {
	case key.Matches(msg, keys.Escape):
		m.mode = ModeNormal
		m.form = nil
		m.input.Blur()
		return m, nil

	case key.Matches(msg, keys.Enter):
		f.values[f.step] = strings.TrimSpace(m.input.Value())
		if f.step < len(f.fields)-1 {
			f.step++
			m.input.SetValue(f.values[f.step])
			m.input.Placeholder = f.fields[f.step]
			m.input.CursorEnd()
			return m, nil
		}

		m.mode = ModeNormal
		m.form = nil
		m.input.Blur()
		ok, err := f.submit(f.values)
		m.report(ok, err)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) findClient(ref string) (model.Client, error) {
	ref = strings.TrimSpace(ref)
	for _, c := range m.app.Repo.Clients() {
		if strings.EqualFold(c.Name, ref) || (len(ref) >= 4 && strings.HasPrefix(c.ID, ref)) {
			return c, nil
		}
	}
	return model.Client{}, fmt.Errorf("no client named %q", ref)
}

func (m Model) findProject(ref string) (model.Project, error) {
	ref = strings.TrimSpace(ref)
	for _, p := range m.app.Repo.Projects() {
		if strings.EqualFold(p.Title, ref) || (len(ref) >= 4 && strings.HasPrefix(p.ID, ref)) {
			return p, nil
		}
	}
	return model.Project{}, fmt.Errorf("no project titled %q", ref)
}

func (m Model) startFilter() (tea.Model, tea.Cmd) {
	m.mode = ModeFilter
	m.pane = PaneList
	m.input.SetValue(m.filterText)
	m.input.Placeholder = "/"
	m.input.Focus()
	return m, textinput.Blink
}

func (m Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Escape):
		m.mode = ModeNormal
		m.filterText = ""
		m.matchIndices = nil
		m.input.Blur()
		return m, nil

	case key.Matches(msg, keys.Enter):
		// Jump to the current match
		if len(m.matchIndices) > 0 && m.matchCursor < len(m.matchIndices) {
			m.cursor = m.matchIndices[m.matchCursor]
		}
		m.mode = ModeNormal
		m.input.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	// Live filter as user types
	m.filterText = m.input.Value()
	m.applyFilter()
	return m, cmd
}

func (m *Model) handleNextMatch() {
	if len(m.matchIndices) > 0 {
		m.matchCursor = (m.matchCursor + 1) % len(m.matchIndices)
		m.cursor = m.matchIndices[m.matchCursor]
		m.message = fmt.Sprintf("[%d/%d] matches", m.matchCursor+1, len(m.matchIndices))
	}
}

func (m *Model) handlePrevMatch() {
	if len(m.matchIndices) > 0 {
		m.matchCursor--
		if m.matchCursor < 0 {
			m.matchCursor = len(m.matchIndices) - 1
		}
		m.cursor = m.matchIndices[m.matchCursor]
		m.message = fmt.Sprintf("[%d/%d] matches", m.matchCursor+1, len(m.matchIndices))
	}
}

func parseAmount(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", ""), 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	return v, nil
}

// parseDate accepts YYYY-MM-DD or +Nd
func parseDate(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if rest, ok := strings.CutPrefix(s, "+"); ok {
		if n, err := strconv.Atoi(strings.TrimSuffix(rest, "d")); err == nil && n >= 0 {
			y, mo, d := now.Date()
			return time.Date(y, mo, d+n, 0, 0, 0, 0, now.Location()), nil
		}
	}
	t, err := time.ParseInLocation("2006-01-02", s, now.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return t, nil
}
