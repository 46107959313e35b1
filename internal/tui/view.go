package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

const sidebarWidth = 22

// View renders the UI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	sidebar := m.renderSidebar()
	list := m.renderList()
	statusBar := m.renderStatusBar()

	mainContent := lipgloss.JoinHorizontal(lipgloss.Top, sidebar, list)

	switch m.mode {
	case ModeForm:
		mainContent = m.place(m.renderForm())
	case ModeConfirm:
		mainContent = m.place(m.renderConfirm())
	case ModeHelp:
		mainContent = m.renderHelp()
	}

	return lipgloss.JoinVertical(lipgloss.Left, mainContent, statusBar)
}

func (m Model) place(modal string) string {
	return lipgloss.Place(
		m.width, m.height-2,
		lipgloss.Center, lipgloss.Center,
		modal,
		lipgloss.WithWhitespaceChars(" "),
	)
}

func (m Model) renderSidebar() string {
	var s string

	// Header with time
	s += lipgloss.NewStyle().Bold(true).Foreground(Primary).Render("IronLedger") + "\n"
	s += HelpStyle.Render(time.Now().Format("15:04:05")) + "\n"
	if m.monitoring {
		s += ConnectionBadge(m.online) + "\n"
	}
	s += lipgloss.NewStyle().Foreground(Border).Render("─────────────────") + "\n\n"

	counts := []int{m.stats.RemindersNeeded, len(m.clients), len(m.projects), len(m.payments)}
	for i, name := range viewNames {
		cursor := "  "
		style := ViewItemStyle
		if View(i) == m.view {
			cursor = "❯ "
			if m.pane == PaneSidebar {
				style = ViewItemSelectedStyle
			}
		}
		line := fmt.Sprintf("%s%-10s %3d", cursor, name, counts[i])
		s += style.Render(line) + "\n"
	}

	s += "\n" + lipgloss.NewStyle().Foreground(Border).Render("─────────────────") + "\n"
	s += HelpStyle.Render(m.app.Backend.Name())

	return SidebarStyle.Width(sidebarWidth).Height(m.height - 2).Render(s)
}

func (m Model) renderList() string {
	width := m.width - sidebarWidth - 2
	var body string
	switch m.view {
	case ViewClients:
		body = m.renderClients(width)
	case ViewProjects:
		body = m.renderProjects(width)
	case ViewPayments:
		body = m.renderPayments(width)
	default:
		body = m.renderDashboard(width)
	}
	return ListStyle.Width(width).Height(m.height - 2).Render(body)
}

func (m Model) header(title string, width int) string {
	s := lipgloss.NewStyle().Bold(true).Foreground(Primary).Render(title) + "\n"
	s += lipgloss.NewStyle().Foreground(Border).Render(repeat("─", width-4)) + "\n\n"
	return s
}

// row renders one selectable line
func (m Model) row(i int, done bool, text string) string {
	cursor := "  "
	style := RowStyle
	if i == m.cursor && m.pane == PaneList {
		cursor = "❯ "
		style = RowSelectedStyle
	} else if m.isMatch(i) {
		style = lipgloss.NewStyle().Foreground(Highlight)
	} else if done {
		style = RowDoneStyle
	}
	return style.Render(cursor+text) + "\n"
}

func (m Model) isMatch(i int) bool {
	for _, idx := range m.matchIndices {
		if idx == i {
			return true
		}
	}
	return false
}

func (m Model) renderDashboard(width int) string {
	cur := m.app.Config.Currency
	card := func(label, value string) string {
		return CardStyle.Render(HelpStyle.Render(label) + "\n" + CardValueStyle.Render(value))
	}

	s := m.header("Dashboard", width)
	s += lipgloss.JoinHorizontal(lipgloss.Top,
		card("Pending work", fmt.Sprintf("%d", m.stats.PendingWork)),
		card("Pending payments", fmt.Sprintf("%d", m.stats.PendingPayments)),
		card("Reminders", fmt.Sprintf("%d", m.stats.RemindersNeeded)),
	) + "\n"
	s += lipgloss.JoinHorizontal(lipgloss.Top,
		card("Received this month", money(cur, m.stats.MonthlyTotal)),
		card("Due next 7 days", money(cur, m.stats.PendingNextWeek)),
		card("Outstanding", money(cur, m.stats.TotalPending)),
	) + "\n\n"

	s += lipgloss.NewStyle().Bold(true).Render("Payments to chase") + "\n"
	if len(m.reminders) == 0 {
		s += HelpStyle.Render("  Nobody to chase.") + "\n"
	}
	for i, r := range m.reminders {
		client, project := "?", "?"
		if r.Client != nil {
			client = r.Client.Name
		}
		if r.Project != nil {
			project = r.Project.Title
		}
		text := fmt.Sprintf("%-16s %-20s %14s  %3dd", truncate(client, 16), truncate(project, 20), money(cur, r.Amount), r.DaysPending)
		s += m.row(i, false, text)
	}

	if len(m.overdue) > 0 {
		s += "\n" + WarnStyle.Render("Overdue projects") + "\n"
		for _, p := range m.overdue {
			s += fmt.Sprintf("    %-30s %s late\n", truncate(p.Title, 30), plural(p.DaysOverdue, "day"))
		}
	}
	if len(m.upcoming) > 0 {
		s += "\n" + lipgloss.NewStyle().Bold(true).Render("Due this week") + "\n"
		for _, p := range m.upcoming {
			s += fmt.Sprintf("    %-30s in %s\n", truncate(p.Title, 30), plural(p.DaysUntil, "day"))
		}
	}

	s += "\n" + lipgloss.NewStyle().Bold(true).Render("Revenue") + "\n"
	var peak float64
	for _, t := range m.trend {
		peak = max(peak, t.Total)
	}
	for _, t := range m.trend {
		bar := 0
		if peak > 0 {
			bar = int(t.Total / peak * 30)
		}
		s += fmt.Sprintf("    %-9s %s %s\n", t.Month,
			lipgloss.NewStyle().Foreground(Primary).Render(repeat("█", bar)+repeat("░", 30-bar)),
			money(cur, t.Total))
	}
	return s
}

func (m Model) renderClients(width int) string {
	cur := m.app.Config.Currency
	s := m.header(fmt.Sprintf("Clients (%d)", len(m.clients)), width)
	if len(m.clients) == 0 {
		return s + HelpStyle.Render("  No clients. Press 'a' to add one.")
	}
	for i, c := range m.clients {
		text := fmt.Sprintf("%-20s %-26s %2d/%-2d %14s", truncate(c.Name, 20), truncate(c.Email, 26),
			c.Stats.ActiveProjects, c.Stats.TotalProjects, money(cur, c.Stats.PendingRevenue))
		s += m.row(i, false, text)
	}
	return s
}

func (m Model) renderProjects(width int) string {
	cur := m.app.Config.Currency
	pending := 0
	for _, p := range m.projects {
		if !p.IsDelivered() {
			pending++
		}
	}
	s := m.header(fmt.Sprintf("Projects (%d open)", pending), width)
	if len(m.projects) == 0 {
		return s + HelpStyle.Render("  No projects. Add a client first, then press 'a'.")
	}
	for i, p := range m.projects {
		client := "?"
		if p.Client != nil {
			client = p.Client.Name
		}
		text := fmt.Sprintf("%-24s %-16s %10s %12s ", truncate(p.Title, 24), truncate(client, 16), date(p.Deadline), money(cur, p.Amount))
		s += m.row(i, p.IsDelivered(), text+ProjectStatusBadge(p.Status))
	}
	return s
}

func (m Model) renderPayments(width int) string {
	cur := m.app.Config.Currency
	s := m.header(fmt.Sprintf("Payments (%s outstanding)", money(cur, m.stats.TotalPending)), width)
	if len(m.payments) == 0 {
		return s + HelpStyle.Render("  No payments yet.")
	}
	for i, p := range m.payments {
		project, client := "?", "?"
		if p.Project != nil {
			project = p.Project.Title
		}
		if p.Client != nil {
			client = p.Client.Name
		}
		due := p.DueDate
		text := fmt.Sprintf("%-22s %-16s %10s %12s ", truncate(project, 22), truncate(client, 16), date(&due), money(cur, p.Amount))
		s += m.row(i, !p.IsPending(), text+PaymentStatusBadge(p.Status))
	}
	return s
}

func (m Model) renderStatusBar() string {
	// When in filter mode, show inline search input (like vim)
	if m.mode == ModeFilter {
		matches := ""
		if len(m.matchIndices) > 0 {
			matches = fmt.Sprintf(" [%d/%d]", m.matchCursor+1, len(m.matchIndices))
		} else if m.filterText != "" {
			matches = " [no match]"
		}
		return StatusBarStyle.Width(m.width).Render("/" + m.input.View() + matches)
	}

	help := "1-4:view  /:search  a:add  e:edit  x:done  s:status  d:del  r:reload  ?:help  q:quit"
	if m.filterText != "" {
		if len(m.matchIndices) > 0 {
			help = fmt.Sprintf("/%s  [%d/%d matches]  n:next  N:prev  Esc:clear",
				m.filterText, m.matchCursor+1, len(m.matchIndices))
		} else {
			help = fmt.Sprintf("/%s  [no matches]  Esc:clear", m.filterText)
		}
	} else if m.message != "" {
		help = m.message
	}

	// Connection state (right aligned)
	if m.monitoring && !m.online {
		badge := "offline"
		if avail := m.width - len(help) - len(badge) - 2; avail > 0 {
			help += strings.Repeat(" ", avail) + badge
		} else {
			help += " " + badge
		}
	}

	return StatusBarStyle.Width(m.width).Render(help)
}

func (m Model) renderForm() string {
	f := m.form
	if f == nil {
		return ""
	}
	content := lipgloss.NewStyle().Bold(true).Render(f.title) + "  "
	content += HelpStyle.Render(fmt.Sprintf("%d/%d", f.step+1, len(f.fields))) + "\n\n"
	for i := 0; i < f.step; i++ {
		content += HelpStyle.Render(f.fields[i]+": ") + f.values[i] + "\n"
	}
	content += lipgloss.NewStyle().Foreground(Primary).Render(f.fields[f.step]) + "\n"
	content += m.input.View() + "\n\n"
	content += HelpStyle.Render("Enter:next  Esc:cancel")

	return ModalStyle.Width(60).Render(content)
}

func (m Model) renderConfirm() string {
	if m.confirm == nil {
		return ""
	}
	content := WarnStyle.Render(m.confirm.prompt) + "\n\n"
	content += HelpStyle.Render("y:yes  any other key:cancel")
	return ModalStyle.Render(content)
}

func (m Model) renderHelp() string {
	help := `
╭─── Keyboard Shortcuts ───╮
│                          │
│  Navigation              │
│  ──────────              │
│  j/↓    Move down        │
│  k/↑    Move up          │
│  h/l    Switch pane      │
│  Tab    Switch pane      │
│  1-4    Jump to view     │
│  G      Go to bottom     │
│                          │
│  Actions                 │
│  ───────                 │
│  a       Add             │
│  e       Edit            │
│  x/Enter Delivered/paid  │
│  s       Cycle status    │
│  d       Delete          │
│  /       Search          │
│  r       Reload          │
│                          │
│  Other                   │
│  ─────                   │
│  ?       Toggle help     │
│  q       Quit            │
│                          │
╰──────────────────────────╯

     Press any key to close
`
	return lipgloss.Place(m.width, m.height-2, lipgloss.Center, lipgloss.Center, help)
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
