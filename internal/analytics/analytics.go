// Package analytics derives dashboard figures from a snapshot of the ledger.
// Every function is pure: it reads the snapshot, captures the clock once and
// returns fresh values.
package analytics

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/existflow/ironledger/internal/model"
)

// ReminderAfterDays is how long a payment may stay pending before a reminder is due
const ReminderAfterDays = 6

// DefaultTopClients is the ranking size used when none is given
const DefaultTopClients = 5

// Source provides the current snapshot; *repository.Repository satisfies it
type Source interface {
	Snapshot() *model.Snapshot
}

// Engine evaluates analytics against a Source
type Engine struct {
	src Source
	now func() time.Time
}

// New creates an engine over src
func New(src Source) *Engine {
	return &Engine{src: src, now: time.Now}
}

// WithClock replaces time.Now
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// DashboardStats holds the headline figures of the dashboard
type DashboardStats struct {
	PendingWork     int     `json:"pendingWork"`
	PendingPayments int     `json:"pendingPayments"`
	RemindersNeeded int     `json:"remindersNeeded"`
	MonthlyTotal    float64 `json:"monthlyTotal"`
	PendingNextWeek float64 `json:"pendingNextWeek"`
	TotalPending    float64 `json:"totalPending"`
}

// Reminder is a pending payment that is due a follow-up
type Reminder struct {
	model.PaymentWithRefs
	DaysPending int `json:"daysPending"`
	DaysOverdue int `json:"daysOverdue"`
}

// OverdueProject is an undelivered project past its deadline
type OverdueProject struct {
	model.ProjectWithClient
	DaysOverdue int `json:"daysOverdue"`
}

// UpcomingDeadline is an undelivered project due within a week
type UpcomingDeadline struct {
	model.ProjectWithClient
	DaysUntil int `json:"daysUntil"`
}

// ClientStats aggregates one client's projects and payments
type ClientStats struct {
	TotalProjects     int     `json:"totalProjects"`
	ActiveProjects    int     `json:"activeProjects"`
	CompletedProjects int     `json:"completedProjects"`
	TotalRevenue      float64 `json:"totalRevenue"`
	ReceivedRevenue   float64 `json:"receivedRevenue"`
	PendingRevenue    float64 `json:"pendingRevenue"`
	OverduePayments   int     `json:"overduePayments"`
}

// ClientWithStats is a client annotated with its statistics
type ClientWithStats struct {
	model.Client
	Stats ClientStats `json:"stats"`
}

// MonthRevenue is one point of the revenue trend
type MonthRevenue struct {
	Month string    `json:"month"`
	Start time.Time `json:"start"`
	Total float64   `json:"total"`
	Count int       `json:"count"`
}

// SearchResult lists matching clients and projects
type SearchResult struct {
	Clients  []model.Client  `json:"clients"`
	Projects []model.Project `json:"projects"`
	Total    int             `json:"total"`
}

// DashboardStats computes the headline figures
func (e *Engine) DashboardStats() DashboardStats {
	s, now := e.src.Snapshot(), e.now()
	return DashboardStats{
		PendingWork:     pendingWorkCount(s),
		PendingPayments: pendingPaymentsCount(s),
		RemindersNeeded: len(paymentsNeedingReminders(s, now)),
		MonthlyTotal:    monthlyPaymentTotal(s, now),
		PendingNextWeek: pendingAmountNextWeek(s, now),
		TotalPending:    totalPendingAmount(s),
	}
}

// PendingWorkCount counts projects that are pending or in progress
func (e *Engine) PendingWorkCount() int {
	return pendingWorkCount(e.src.Snapshot())
}

// PendingPaymentsCount counts payments still awaiting receipt
func (e *Engine) PendingPaymentsCount() int {
	return pendingPaymentsCount(e.src.Snapshot())
}

// MonthlyPaymentTotal sums payments received in the current calendar month
func (e *Engine) MonthlyPaymentTotal() float64 {
	return monthlyPaymentTotal(e.src.Snapshot(), e.now())
}

// PendingAmountNextWeek sums pending payments due within the next seven days
func (e *Engine) PendingAmountNextWeek() float64 {
	return pendingAmountNextWeek(e.src.Snapshot(), e.now())
}

// TotalPendingAmount sums every pending payment regardless of due date
func (e *Engine) TotalPendingAmount() float64 {
	return totalPendingAmount(e.src.Snapshot())
}

// PaymentsNeedingReminders lists payments pending for ReminderAfterDays or
// more, longest waiting first
func (e *Engine) PaymentsNeedingReminders() []Reminder {
	return paymentsNeedingReminders(e.src.Snapshot(), e.now())
}

// OverdueProjects lists undelivered projects past their deadline, most overdue first
func (e *Engine) OverdueProjects() []OverdueProject {
	return overdueProjects(e.src.Snapshot(), e.now())
}

// UpcomingDeadlines lists undelivered projects due within seven days, soonest first
func (e *Engine) UpcomingDeadlines() []UpcomingDeadline {
	return upcomingDeadlines(e.src.Snapshot(), e.now())
}

// ClientStats aggregates the projects and payments of one client
func (e *Engine) ClientStats(clientID string) ClientStats {
	return clientStats(e.src.Snapshot(), clientID, e.now())
}

// ClientsWithStats annotates every client with its statistics
func (e *Engine) ClientsWithStats() []ClientWithStats {
	return clientsWithStats(e.src.Snapshot(), e.now())
}

// MonthlyRevenueTrend returns received revenue for the current month and the
// two before it, oldest first
func (e *Engine) MonthlyRevenueTrend() []MonthRevenue {
	return monthlyRevenueTrend(e.src.Snapshot(), e.now(), 3)
}

// TopClientsByRevenue returns the limit clients with the highest total revenue.
// A limit of zero or less uses DefaultTopClients.
func (e *Engine) TopClientsByRevenue(limit int) []ClientWithStats {
	if limit <= 0 {
		limit = DefaultTopClients
	}
	all := clientsWithStats(e.src.Snapshot(), e.now())
	slices.SortStableFunc(all, func(a, b ClientWithStats) int {
		return cmp.Compare(b.Stats.TotalRevenue, a.Stats.TotalRevenue)
	})
	if len(all) > limit {
		all = all[:limit]
	}
	return all
}

// ProjectStatusDistribution counts projects per status
func (e *Engine) ProjectStatusDistribution() map[model.ProjectStatus]int {
	dist := make(map[model.ProjectStatus]int, len(model.ProjectStatuses))
	for _, st := range model.ProjectStatuses {
		dist[st] = 0
	}
	for _, p := range e.src.Snapshot().Projects {
		if _, ok := dist[p.Status]; ok {
			dist[p.Status]++
		}
	}
	return dist
}

// PaymentStatusDistribution counts payments per status
func (e *Engine) PaymentStatusDistribution() map[model.PaymentStatus]int {
	dist := make(map[model.PaymentStatus]int, len(model.PaymentStatuses))
	for _, st := range model.PaymentStatuses {
		dist[st] = 0
	}
	for _, p := range e.src.Snapshot().Payments {
		if _, ok := dist[p.Status]; ok {
			dist[p.Status]++
		}
	}
	return dist
}

// Search matches clients on name, email and company and projects on title
// and description, ignoring case
func (e *Engine) Search(query string) SearchResult {
	return search(e.src.Snapshot(), query)
}

func pendingWorkCount(s *model.Snapshot) int {
	n := 0
	for _, p := range s.Projects {
		if p.Status == model.ProjectPending || p.Status == model.ProjectInProgress {
			n++
		}
	}
	return n
}

func pendingPaymentsCount(s *model.Snapshot) int {
	n := 0
	for _, p := range s.Payments {
		if p.IsPending() {
			n++
		}
	}
	return n
}

func receivedBetween(s *model.Snapshot, from, to time.Time) (total float64, count int) {
	for _, p := range s.Payments {
		if p.Status != model.PaymentReceived || p.ReceivedAt == nil {
			continue
		}
		if within(*p.ReceivedAt, from, to) {
			total += p.Amount
			count++
		}
	}
	return total, count
}

func monthlyPaymentTotal(s *model.Snapshot, now time.Time) float64 {
	start, end := monthRange(now, 0)
	total, _ := receivedBetween(s, start, end)
	return total
}

func pendingAmountNextWeek(s *model.Snapshot, now time.Time) float64 {
	horizon := now.AddDate(0, 0, 7)
	var total float64
	for _, p := range s.Payments {
		if p.IsPending() && within(p.DueDate, now, horizon) {
			total += p.Amount
		}
	}
	return total
}

func totalPendingAmount(s *model.Snapshot) float64 {
	var total float64
	for _, p := range s.Payments {
		if p.IsPending() {
			total += p.Amount
		}
	}
	return total
}

func paymentsNeedingReminders(s *model.Snapshot, now time.Time) []Reminder {
	var out []Reminder
	for _, p := range s.Payments {
		if !p.IsPending() {
			continue
		}
		days := daysSince(p.CreatedAt, now)
		if days < ReminderAfterDays {
			continue
		}
		out = append(out, Reminder{
			PaymentWithRefs: s.JoinPayment(p),
			DaysPending:     days,
			DaysOverdue:     max(0, days-ReminderAfterDays),
		})
	}
	slices.SortStableFunc(out, func(a, b Reminder) int {
		return cmp.Compare(b.DaysPending, a.DaysPending)
	})
	return out
}

func overdueProjects(s *model.Snapshot, now time.Time) []OverdueProject {
	var out []OverdueProject
	for _, p := range s.ProjectsWithClient() {
		if p.IsDelivered() || p.Deadline == nil || !p.Deadline.Before(now) {
			continue
		}
		out = append(out, OverdueProject{
			ProjectWithClient: p,
			DaysOverdue:       abs(daysUntil(*p.Deadline, now)),
		})
	}
	slices.SortStableFunc(out, func(a, b OverdueProject) int {
		return cmp.Compare(b.DaysOverdue, a.DaysOverdue)
	})
	return out
}

func upcomingDeadlines(s *model.Snapshot, now time.Time) []UpcomingDeadline {
	horizon := now.AddDate(0, 0, 7)
	var out []UpcomingDeadline
	for _, p := range s.ProjectsWithClient() {
		if p.IsDelivered() || p.Deadline == nil || !within(*p.Deadline, now, horizon) {
			continue
		}
		out = append(out, UpcomingDeadline{
			ProjectWithClient: p,
			DaysUntil:         daysUntil(*p.Deadline, now),
		})
	}
	slices.SortStableFunc(out, func(a, b UpcomingDeadline) int {
		return cmp.Compare(a.DaysUntil, b.DaysUntil)
	})
	return out
}

func clientStats(s *model.Snapshot, clientID string, now time.Time) ClientStats {
	var st ClientStats
	for _, p := range s.ProjectsByClient(clientID) {
		st.TotalProjects++
		if p.IsDelivered() {
			st.CompletedProjects++
		} else {
			st.ActiveProjects++
		}
		for _, pay := range s.PaymentsByProject(p.ID) {
			st.TotalRevenue += pay.Amount
			switch pay.Status {
			case model.PaymentReceived:
				st.ReceivedRevenue += pay.Amount
			case model.PaymentPending:
				st.PendingRevenue += pay.Amount
				if daysSince(pay.CreatedAt, now) >= ReminderAfterDays {
					st.OverduePayments++
				}
			}
		}
	}
	return st
}

func clientsWithStats(s *model.Snapshot, now time.Time) []ClientWithStats {
	out := make([]ClientWithStats, 0, len(s.Clients))
	for _, c := range s.Clients {
		out = append(out, ClientWithStats{Client: c, Stats: clientStats(s, c.ID, now)})
	}
	return out
}

func monthlyRevenueTrend(s *model.Snapshot, now time.Time, months int) []MonthRevenue {
	out := make([]MonthRevenue, 0, months)
	for i := months - 1; i >= 0; i-- {
		start, end := monthRange(now, -i)
		total, count := receivedBetween(s, start, end)
		out = append(out, MonthRevenue{
			Month: start.Format("Jan 2006"),
			Start: start,
			Total: total,
			Count: count,
		})
	}
	return out
}

func search(s *model.Snapshot, query string) SearchResult {
	term := strings.ToLower(strings.TrimSpace(query))
	has := func(field string) bool {
		return strings.Contains(strings.ToLower(field), term)
	}

	res := SearchResult{Clients: []model.Client{}, Projects: []model.Project{}}
	for _, c := range s.Clients {
		if has(c.Name) || has(c.Email) || (c.Company != "" && has(c.Company)) {
			res.Clients = append(res.Clients, c)
		}
	}
	for _, p := range s.Projects {
		if has(p.Title) || (p.Description != "" && has(p.Description)) {
			res.Projects = append(res.Projects, p)
		}
	}
	res.Total = len(res.Clients) + len(res.Projects)
	return res
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
