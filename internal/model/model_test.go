package model

import (
	"errors"
	"testing"
	"time"
)

func TestClientValidate(t *testing.T) {
	tests := []struct {
		name   string
		client Client
		field  string
	}{
		{"valid", Client{Name: "Acme", Email: "ops@acme.io"}, ""},
		{"valid with phone", Client{Name: "Acme", Email: "ops@acme.io", Phone: "+92 (300) 123-4567"}, ""},
		{"missing name", Client{Email: "ops@acme.io"}, "name"},
		{"blank name", Client{Name: "   ", Email: "ops@acme.io"}, "name"},
		{"missing email", Client{Name: "Acme"}, "email"},
		{"bad email", Client{Name: "Acme", Email: "not-an-email"}, "email"},
		{"bad phone", Client{Name: "Acme", Email: "ops@acme.io", Phone: "call me"}, "phone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.client.Validate()
			if tt.field == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tt.field {
				t.Errorf("field = %q, want %q", verr.Field, tt.field)
			}
		})
	}
}

func TestProjectValidate(t *testing.T) {
	base := Project{ClientID: "c1", Title: "Website", Status: ProjectPending}
	if err := base.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	neg := base
	neg.Amount = -1
	if err := neg.Validate(); err == nil {
		t.Error("expected error for negative amount")
	}

	bad := base
	bad.Status = "archived"
	if err := bad.Validate(); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestStampDelivery(t *testing.T) {
	t1 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(48 * time.Hour)

	p := Project{Status: ProjectDelivered}
	p = p.StampDelivery(ProjectInProgress, t1)
	if p.DeliveredAt == nil || !p.DeliveredAt.Equal(t1) {
		t.Fatalf("deliveredAt = %v, want %v", p.DeliveredAt, t1)
	}

	p = p.StampDelivery(ProjectDelivered, t2)
	if !p.DeliveredAt.Equal(t1) {
		t.Errorf("deliveredAt changed on repeated delivery: %v", p.DeliveredAt)
	}

	p.Status = ProjectInProgress
	p = p.StampDelivery(ProjectDelivered, t2)
	if p.DeliveredAt != nil {
		t.Errorf("deliveredAt should clear when leaving delivered, got %v", p.DeliveredAt)
	}

	p.Status = ProjectDelivered
	p = p.StampDelivery(ProjectInProgress, t2)
	if !p.DeliveredAt.Equal(t2) {
		t.Errorf("deliveredAt = %v, want restamp %v", p.DeliveredAt, t2)
	}
}

func TestStampReceipt(t *testing.T) {
	t1 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	p := Payment{Status: PaymentReceived}.StampReceipt(PaymentPending, t1)
	if p.ReceivedAt == nil {
		t.Fatal("receivedAt not set")
	}
	again := p.StampReceipt(PaymentReceived, t1.Add(time.Hour))
	if !again.ReceivedAt.Equal(t1) {
		t.Errorf("receivedAt changed: %v", again.ReceivedAt)
	}
}

func TestDueDateFor(t *testing.T) {
	now := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)
	deadline := time.Date(2026, 5, 28, 0, 0, 0, 0, time.UTC)

	if got := DueDateFor(&deadline, now); !got.Equal(deadline.AddDate(0, 0, 7)) {
		t.Errorf("with deadline: got %v", got)
	}
	if got := DueDateFor(nil, now); !got.Equal(now.AddDate(0, 0, 7)) {
		t.Errorf("without deadline: got %v", got)
	}
}

func TestPatchApplyKeepsUnsetFields(t *testing.T) {
	c := Client{ID: "c1", Name: "Acme", Email: "a@acme.io", Company: "Acme Ltd"}
	name := "Acme Corp"
	got := ClientPatch{Name: &name}.Apply(c)

	if got.Name != "Acme Corp" || got.Email != "a@acme.io" || got.Company != "Acme Ltd" || got.ID != "c1" {
		t.Errorf("unexpected merge result: %+v", got)
	}
}

func TestJoinsToleratesDanglingReferences(t *testing.T) {
	snap := &Snapshot{
		Clients:  []Client{{ID: "c1", Name: "Acme"}},
		Projects: []Project{{ID: "p1", ClientID: "c1"}, {ID: "p2", ClientID: "gone"}},
		Payments: []Payment{{ID: "x1", ProjectID: "p1"}, {ID: "x2", ProjectID: "p2"}, {ID: "x3", ProjectID: "gone"}},
	}

	projects := snap.ProjectsWithClient()
	if projects[0].Client == nil || projects[0].Client.Name != "Acme" {
		t.Errorf("p1 should join Acme, got %+v", projects[0].Client)
	}
	if projects[1].Client != nil {
		t.Errorf("p2 client should be nil, got %+v", projects[1].Client)
	}

	payments := snap.PaymentsWithProjectAndClient()
	if payments[0].Project == nil || payments[0].Client == nil {
		t.Error("x1 should resolve project and client")
	}
	if payments[1].Project == nil || payments[1].Client != nil {
		t.Error("x2 should resolve project only")
	}
	if payments[2].Project != nil || payments[2].Client != nil {
		t.Error("x3 should resolve nothing")
	}

	if got := len(snap.PaymentsByClient("c1")); got != 1 {
		t.Errorf("PaymentsByClient = %d, want 1", got)
	}
}

func TestCheckRefs(t *testing.T) {
	tests := []struct {
		name string
		snap Snapshot
		want bool
	}{
		{"empty", Snapshot{}, false},
		{"complete", Snapshot{
			Clients:  []Client{{ID: "c1"}},
			Projects: []Project{{ID: "p1", ClientID: "c1"}},
			Payments: []Payment{{ID: "pay1", ProjectID: "p1"}},
		}, false},
		{"project without client", Snapshot{
			Projects: []Project{{ID: "p1", ClientID: "gone"}},
		}, true},
		{"payment without project", Snapshot{
			Clients:  []Client{{ID: "c1"}},
			Payments: []Payment{{ID: "pay1", ProjectID: "gone"}},
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.snap.CheckRefs()
			if got := errors.Is(err, ErrMalformedImport); got != tt.want {
				t.Errorf("CheckRefs() = %v, want malformed %v", err, tt.want)
			}
		})
	}
}
