package analytics

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/existflow/ironledger/internal/model"
)

var now = time.Date(2026, time.June, 15, 12, 0, 0, 0, time.UTC)

type fixed struct{ s *model.Snapshot }

func (f fixed) Snapshot() *model.Snapshot { return f.s.Clone() }

func engine(s *model.Snapshot) *Engine {
	return New(fixed{s}).WithClock(func() time.Time { return now })
}

func ago(d time.Duration) time.Time { return now.Add(-d) }

func ptr(t time.Time) *time.Time { return &t }

func fixture() *model.Snapshot {
	return &model.Snapshot{
		Clients: []model.Client{
			{ID: "c1", Name: "Acme", Email: "ops@acme.test", Company: "Acme Ltd"},
			{ID: "c2", Name: "Globex", Email: "hi@globex.test"},
		},
		Projects: []model.Project{
			{ID: "p1", ClientID: "c1", Title: "Website", Status: model.ProjectInProgress, Deadline: ptr(now.Add(3 * day))},
			{ID: "p2", ClientID: "c1", Title: "Logo", Description: "vector brand mark", Status: model.ProjectDelivered, DeliveredAt: ptr(ago(day))},
			{ID: "p3", ClientID: "c2", Title: "API", Status: model.ProjectPending, Deadline: ptr(ago(2*day + time.Hour))},
		},
		Payments: []model.Payment{
			{ID: "pay1", ProjectID: "p1", Amount: 1000, Status: model.PaymentPending, DueDate: now.Add(5 * day), CreatedAt: ago(10 * day)},
			{ID: "pay2", ProjectID: "p2", Amount: 400, Status: model.PaymentReceived, DueDate: ago(day), ReceivedAt: ptr(ago(2 * day)), CreatedAt: ago(20 * day)},
			{ID: "pay3", ProjectID: "p3", Amount: 250, Status: model.PaymentPending, DueDate: now.Add(30 * day), CreatedAt: ago(7 * day)},
			{ID: "pay4", ProjectID: "p3", Amount: 50, Status: model.PaymentPending, DueDate: now.Add(day), CreatedAt: ago(2 * day)},
		},
	}
}

func TestDaysSinceAndUntil(t *testing.T) {
	tests := []struct {
		name string
		got  int
		want int
	}{
		{"since whole days", daysSince(ago(3*day), now), 3},
		{"since floors partial day", daysSince(ago(6*day-time.Minute), now), 5},
		{"since zero time", daysSince(time.Time{}, now), 0},
		{"until ceils partial day", daysUntil(now.Add(time.Hour), now), 1},
		{"until past", daysUntil(ago(2*day+time.Hour), now), -2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %d, want %d", tt.got, tt.want)
			}
		})
	}
}

func TestMonthRange(t *testing.T) {
	start, end := monthRange(now, 0)
	if !start.Equal(time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("start = %v", start)
	}
	if !end.Equal(time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond)) {
		t.Errorf("end = %v", end)
	}

	start, _ = monthRange(time.Date(2026, time.January, 31, 0, 0, 0, 0, time.UTC), -1)
	if start.Month() != time.December || start.Year() != 2025 {
		t.Errorf("previous month start = %v", start)
	}
}

func TestDashboardStats(t *testing.T) {
	got := engine(fixture()).DashboardStats()
	want := DashboardStats{
		PendingWork:     2,
		PendingPayments: 3,
		RemindersNeeded: 2,
		MonthlyTotal:    400,
		PendingNextWeek: 1050,
		TotalPending:    1300,
	}
	if got != want {
		t.Errorf("DashboardStats() = %+v, want %+v", got, want)
	}
}

func TestTotalPendingIgnoresDueDate(t *testing.T) {
	e := engine(fixture())
	if e.TotalPendingAmount() != e.DashboardStats().TotalPending {
		t.Error("dashboard total pending differs from TotalPendingAmount")
	}
	if e.TotalPendingAmount() != 1300 {
		t.Errorf("TotalPendingAmount() = %v", e.TotalPendingAmount())
	}
}

func TestPaymentsNeedingReminders(t *testing.T) {
	s := fixture()
	s.Payments = append(s.Payments, model.Payment{
		ID: "dangling", ProjectID: "gone", Amount: 5, Status: model.PaymentPending,
		DueDate: now, CreatedAt: ago(7 * day),
	})
	got := engine(s).PaymentsNeedingReminders()

	var ids []string
	for _, r := range got {
		ids = append(ids, r.ID)
	}
	want := []string{"pay1", "pay3", "dangling"}
	if len(ids) != len(want) {
		t.Fatalf("reminders = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("reminders = %v, want %v", ids, want)
		}
	}

	if got[0].DaysPending != 10 || got[0].DaysOverdue != 4 {
		t.Errorf("pay1 pending/overdue = %d/%d", got[0].DaysPending, got[0].DaysOverdue)
	}
	if got[0].Project == nil || got[0].Client == nil || got[0].Client.ID != "c1" {
		t.Errorf("pay1 join = %+v", got[0].PaymentWithRefs)
	}
	if got[2].Project != nil || got[2].Client != nil {
		t.Error("dangling payment should have nil refs")
	}
}

func TestRemindersBoundary(t *testing.T) {
	s := &model.Snapshot{Payments: []model.Payment{
		{ID: "almost", ProjectID: "p", Status: model.PaymentPending, DueDate: now, CreatedAt: ago(6*day - time.Second)},
		{ID: "exact", ProjectID: "p", Status: model.PaymentPending, DueDate: now, CreatedAt: ago(6 * day)},
	}}
	got := engine(s).PaymentsNeedingReminders()
	if len(got) != 1 || got[0].ID != "exact" || got[0].DaysOverdue != 0 {
		t.Errorf("reminders = %+v", got)
	}
}

func TestOverdueAndUpcoming(t *testing.T) {
	s := fixture()
	s.Projects = append(s.Projects, model.Project{
		ID: "p4", ClientID: "c2", Title: "Docs", Status: model.ProjectPending, Deadline: ptr(ago(5 * day)),
	}, model.Project{
		ID: "p5", ClientID: "c2", Title: "Audit", Status: model.ProjectPending, Deadline: ptr(now.Add(day)),
	}, model.Project{
		ID: "p6", ClientID: "c2", Title: "Later", Status: model.ProjectPending, Deadline: ptr(now.Add(8 * day)),
	})
	e := engine(s)

	overdue := e.OverdueProjects()
	if len(overdue) != 2 || overdue[0].ID != "p4" || overdue[1].ID != "p3" {
		t.Fatalf("overdue = %+v", overdue)
	}
	if overdue[0].DaysOverdue != 5 || overdue[1].DaysOverdue != 2 {
		t.Errorf("days overdue = %d, %d", overdue[0].DaysOverdue, overdue[1].DaysOverdue)
	}
	if overdue[0].Client == nil || overdue[0].Client.Name != "Globex" {
		t.Error("overdue project missing client join")
	}

	upcoming := e.UpcomingDeadlines()
	if len(upcoming) != 2 || upcoming[0].ID != "p5" || upcoming[1].ID != "p1" {
		t.Fatalf("upcoming = %+v", upcoming)
	}
	if upcoming[0].DaysUntil != 1 || upcoming[1].DaysUntil != 3 {
		t.Errorf("days until = %d, %d", upcoming[0].DaysUntil, upcoming[1].DaysUntil)
	}
}

func TestDeliveredProjectsNeverOverdue(t *testing.T) {
	s := &model.Snapshot{Projects: []model.Project{
		{ID: "p", Title: "Done", Status: model.ProjectDelivered, Deadline: ptr(ago(10 * day))},
	}}
	if got := engine(s).OverdueProjects(); len(got) != 0 {
		t.Errorf("overdue = %+v", got)
	}
}

func TestClientStats(t *testing.T) {
	got := engine(fixture()).ClientStats("c1")
	want := ClientStats{
		TotalProjects:     2,
		ActiveProjects:    1,
		CompletedProjects: 1,
		TotalRevenue:      1400,
		ReceivedRevenue:   400,
		PendingRevenue:    1000,
		OverduePayments:   1,
	}
	if got != want {
		t.Errorf("ClientStats(c1) = %+v, want %+v", got, want)
	}

	if got := engine(fixture()).ClientStats("missing"); got != (ClientStats{}) {
		t.Errorf("ClientStats(missing) = %+v", got)
	}
}

func TestTopClientsByRevenue(t *testing.T) {
	e := engine(fixture())
	top := e.TopClientsByRevenue(1)
	if len(top) != 1 || top[0].ID != "c1" {
		t.Fatalf("top = %+v", top)
	}
	if all := e.TopClientsByRevenue(0); len(all) != 2 || all[1].ID != "c2" || all[1].Stats.TotalRevenue != 300 {
		t.Errorf("top default = %+v", all)
	}
}

func TestMonthlyRevenueTrend(t *testing.T) {
	s := fixture()
	s.Payments = append(s.Payments,
		model.Payment{ID: "apr", ProjectID: "p2", Amount: 70, Status: model.PaymentReceived, DueDate: now,
			ReceivedAt: ptr(time.Date(2026, time.April, 30, 23, 59, 0, 0, time.UTC)), CreatedAt: ago(60 * day)},
		model.Payment{ID: "mar", ProjectID: "p2", Amount: 999, Status: model.PaymentReceived, DueDate: now,
			ReceivedAt: ptr(time.Date(2026, time.March, 31, 0, 0, 0, 0, time.UTC)), CreatedAt: ago(90 * day)},
	)
	trend := engine(s).MonthlyRevenueTrend()
	if len(trend) != 3 {
		t.Fatalf("trend has %d points", len(trend))
	}
	want := []MonthRevenue{
		{Month: "Apr 2026", Total: 70, Count: 1},
		{Month: "May 2026", Total: 0, Count: 0},
		{Month: "Jun 2026", Total: 400, Count: 1},
	}
	for i, w := range want {
		g := trend[i]
		if g.Month != w.Month || g.Total != w.Total || g.Count != w.Count {
			t.Errorf("trend[%d] = %+v, want %+v", i, g, w)
		}
	}
}

func TestMonthlyTotalExcludesOtherMonths(t *testing.T) {
	s := &model.Snapshot{Payments: []model.Payment{
		{ID: "now", Amount: 1000, Status: model.PaymentReceived, ReceivedAt: ptr(now), DueDate: now},
		{ID: "last", Amount: 300, Status: model.PaymentReceived, ReceivedAt: ptr(time.Date(2026, time.May, 31, 23, 59, 59, 0, time.UTC)), DueDate: now},
		{ID: "unstamped", Amount: 5, Status: model.PaymentReceived, DueDate: now},
	}}
	if got := engine(s).MonthlyPaymentTotal(); got != 1000 {
		t.Errorf("MonthlyPaymentTotal() = %v, want 1000", got)
	}
}

func TestSearch(t *testing.T) {
	e := engine(fixture())
	tests := []struct {
		query    string
		clients  int
		projects int
	}{
		{"ACME", 1, 0},
		{"globex.test", 1, 0},
		{"ltd", 1, 0},
		{"brand", 0, 1},
		{"web", 0, 1},
		{"nothing-matches", 0, 0},
		{"", 2, 3},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got := e.Search(tt.query)
			if len(got.Clients) != tt.clients || len(got.Projects) != tt.projects {
				t.Errorf("Search(%q) = %d clients, %d projects", tt.query, len(got.Clients), len(got.Projects))
			}
			if got.Total != tt.clients+tt.projects {
				t.Errorf("Total = %d", got.Total)
			}
		})
	}
}

func TestStatusDistributions(t *testing.T) {
	e := engine(fixture())
	projects := e.ProjectStatusDistribution()
	if projects[model.ProjectPending] != 1 || projects[model.ProjectInProgress] != 1 || projects[model.ProjectDelivered] != 1 {
		t.Errorf("project distribution = %v", projects)
	}
	payments := e.PaymentStatusDistribution()
	if payments[model.PaymentPending] != 3 || payments[model.PaymentReceived] != 1 {
		t.Errorf("payment distribution = %v", payments)
	}

	empty := engine(&model.Snapshot{}).PaymentStatusDistribution()
	if v, ok := empty[model.PaymentReceived]; !ok || v != 0 {
		t.Errorf("empty distribution = %v", empty)
	}
}

func TestWeekHorizonFollowsCalendarAcrossDST(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatal(err)
	}
	// clocks go forward on March 8, so a week from now is 167 hours away
	local := time.Date(2026, time.March, 5, 12, 0, 0, 0, ny)
	inside := time.Date(2026, time.March, 12, 11, 30, 0, 0, ny)
	outside := time.Date(2026, time.March, 12, 12, 30, 0, 0, ny)

	s := &model.Snapshot{
		Clients: []model.Client{
			{ID: "c1", Name: "Acme", Email: "ops@acme.test"},
		},
		Projects: []model.Project{
			{ID: "p1", ClientID: "c1", Title: "Inside", Status: model.ProjectPending, Deadline: ptr(inside)},
			{ID: "p2", ClientID: "c1", Title: "Outside", Status: model.ProjectPending, Deadline: ptr(outside)},
		},
		Payments: []model.Payment{
			{ID: "pay1", ProjectID: "p1", Amount: 100, Status: model.PaymentPending, DueDate: inside, CreatedAt: local},
			{ID: "pay2", ProjectID: "p2", Amount: 40, Status: model.PaymentPending, DueDate: outside, CreatedAt: local},
		},
	}
	e := New(fixed{s}).WithClock(func() time.Time { return local })

	if got := e.PendingAmountNextWeek(); got != 100 {
		t.Errorf("PendingAmountNextWeek() = %v, want 100", got)
	}
	upcoming := e.UpcomingDeadlines()
	if len(upcoming) != 1 || upcoming[0].ID != "p1" {
		t.Errorf("UpcomingDeadlines() = %+v, want only p1", upcoming)
	}
}
