package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/existflow/ironledger/internal/model"
)

// Color palette
var (
	// Status colors
	Pending    = lipgloss.Color("#FFE66D") // Yellow
	InProgress = lipgloss.Color("#FFB347") // Orange
	Completed  = lipgloss.Color("#95E1A3") // Green
	Overdue    = lipgloss.Color("#FF6B6B") // Red
	Online     = lipgloss.Color("#95E1A3")
	Offline    = lipgloss.Color("#6C757D") // Gray

	// UI colors
	Primary   = lipgloss.Color("#4ECDC4")
	Surface   = lipgloss.Color("#16213e")
	TextMuted = lipgloss.Color("#888888")
	Border    = lipgloss.Color("#333333")
	Highlight = lipgloss.Color("#4ECDC4")
)

// Styles
var (
	// Sidebar
	SidebarStyle = lipgloss.NewStyle().
			Width(20).
			BorderStyle(lipgloss.NormalBorder()).
			BorderRight(true).
			BorderForeground(Border).
			Padding(1, 1)

	// Main list
	ListStyle = lipgloss.NewStyle().
			Padding(1, 2)

	// View item
	ViewItemStyle = lipgloss.NewStyle().
			Padding(0, 1)

	ViewItemSelectedStyle = lipgloss.NewStyle().
				Padding(0, 1).
				Background(Surface).
				Bold(true)

	// Row item
	RowStyle = lipgloss.NewStyle().
			Padding(0, 1)

	RowSelectedStyle = lipgloss.NewStyle().
				Padding(0, 1).
				Background(Surface).
				Bold(true)

	RowDoneStyle = lipgloss.NewStyle().
			Foreground(TextMuted).
			Padding(0, 1)

	// Dashboard cards
	CardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Border).
			Padding(0, 1).
			Width(24)

	CardValueStyle = lipgloss.NewStyle().Bold(true).Foreground(Primary)
	WarnStyle      = lipgloss.NewStyle().Foreground(Overdue).Bold(true)

	// Status bar
	StatusBarStyle = lipgloss.NewStyle().
			Foreground(TextMuted).
			Padding(0, 1).
			BorderStyle(lipgloss.NormalBorder()).
			BorderTop(true).
			BorderForeground(Border)

	// Input modal
	ModalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Primary).
			Padding(1, 2)

	// Help text
	HelpStyle = lipgloss.NewStyle().
			Foreground(TextMuted)
)

// ProjectStatusBadge renders a colored project status
func ProjectStatusBadge(s model.ProjectStatus) string {
	switch s {
	case model.ProjectDelivered:
		return lipgloss.NewStyle().Foreground(Completed).Render("delivered")
	case model.ProjectInProgress:
		return lipgloss.NewStyle().Foreground(InProgress).Render("in-progress")
	default:
		return lipgloss.NewStyle().Foreground(Pending).Render("pending")
	}
}

// PaymentStatusBadge renders a colored payment status
func PaymentStatusBadge(s model.PaymentStatus) string {
	if s == model.PaymentReceived {
		return lipgloss.NewStyle().Foreground(Completed).Render("received")
	}
	return lipgloss.NewStyle().Foreground(Pending).Render("pending")
}

// ConnectionBadge renders the hybrid connection state
func ConnectionBadge(online bool) string {
	if online {
		return lipgloss.NewStyle().Foreground(Online).Render("● online")
	}
	return lipgloss.NewStyle().Foreground(Offline).Render("○ offline")
}
