package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/existflow/ironledger/internal/model"
	"github.com/existflow/ironledger/internal/storage"
)

var created = time.Date(2026, time.March, 2, 9, 30, 0, 123456789, time.UTC)

func openTemp(t *testing.T) *storeT {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "ledger.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return &storeT{s}
}

type storeT struct{ storage.Backend }

func (s *storeT) mustCreate(t *testing.T, rec model.Record) {
	t.Helper()
	if _, err := s.Create(context.Background(), rec); err != nil {
		t.Fatalf("Create(%s %s) error = %v", rec.Entity(), rec.RecordID(), err)
	}
}

func seed(t *testing.T, s *storeT) {
	deadline := created.Add(72 * time.Hour)
	s.mustCreate(t, model.Client{ID: "c1", Name: "Acme", Email: "ops@acme.test", Company: "Acme Ltd", CreatedAt: created})
	s.mustCreate(t, model.Project{ID: "p1", ClientID: "c1", Title: "Website", Deadline: &deadline,
		Status: model.ProjectPending, Amount: 1200.5, CreatedAt: created})
	s.mustCreate(t, model.Payment{ID: "pay1", ProjectID: "p1", Amount: 1200.5, Status: model.PaymentPending,
		DueDate: deadline.Add(7 * 24 * time.Hour), CreatedAt: created})
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)
	seed(t, s)

	snap, err := storage.LoadSnapshot(ctx, s)
	if err != nil {
		t.Fatalf("LoadSnapshot() error = %v", err)
	}
	if len(snap.Clients) != 1 || len(snap.Projects) != 1 || len(snap.Payments) != 1 {
		t.Fatalf("snapshot sizes = %d/%d/%d", len(snap.Clients), len(snap.Projects), len(snap.Payments))
	}

	c := snap.Clients[0]
	if c.Company != "Acme Ltd" || !c.CreatedAt.Equal(created) {
		t.Errorf("client = %+v", c)
	}
	p := snap.Projects[0]
	if p.Deadline == nil || !p.Deadline.Equal(created.Add(72*time.Hour)) || p.DeliveredAt != nil || p.Amount != 1200.5 {
		t.Errorf("project = %+v", p)
	}
	pay := snap.Payments[0]
	if pay.ReceivedAt != nil || !pay.DueDate.Equal(created.Add(10*24*time.Hour)) {
		t.Errorf("payment = %+v", pay)
	}
}

func TestListOrdersNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)
	s.mustCreate(t, model.Client{ID: "old", Name: "Old", Email: "o@x.test", CreatedAt: created})
	s.mustCreate(t, model.Client{ID: "new", Name: "New", Email: "n@x.test", CreatedAt: created.Add(time.Hour)})

	recs, err := s.ListAll(ctx, model.EntityClient)
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}
	if len(recs) != 2 || recs[0].RecordID() != "new" {
		t.Errorf("order = %v", recs)
	}
}

func TestCreateDuplicate(t *testing.T) {
	s := openTemp(t)
	seed(t, s)
	_, err := s.Create(context.Background(), model.Client{ID: "c1", Name: "Again", Email: "a@x.test", CreatedAt: created})
	if !errors.Is(err, model.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)
	seed(t, s)

	received := created.Add(24 * time.Hour)
	upd := model.Payment{ID: "pay1", ProjectID: "p1", Amount: 1200.5, Status: model.PaymentReceived,
		DueDate: created, ReceivedAt: &received, CreatedAt: created}
	if _, err := s.Update(ctx, upd); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	recs, _ := s.ListAll(ctx, model.EntityPayment)
	got := recs[0].(model.Payment)
	if got.Status != model.PaymentReceived || got.ReceivedAt == nil || !got.ReceivedAt.Equal(received) {
		t.Errorf("payment after update = %+v", got)
	}

	if _, err := s.Update(ctx, model.Client{ID: "missing", Name: "x", Email: "x@x.test"}); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteCascades(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)
	seed(t, s)

	if err := s.Delete(ctx, model.EntityClient, "c1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	snap, err := storage.LoadSnapshot(ctx, s)
	if err != nil {
		t.Fatalf("LoadSnapshot() error = %v", err)
	}
	if snap.Len() != 0 {
		t.Errorf("expected empty database, got %+v", snap)
	}
	if err := s.Delete(ctx, model.EntityClient, "c1"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestForeignKeysEnforced(t *testing.T) {
	s := openTemp(t)
	_, err := s.Create(context.Background(), model.Project{ID: "p", ClientID: "ghost", Title: "x",
		Status: model.ProjectPending, CreatedAt: created})
	if err == nil {
		t.Error("expected foreign key violation")
	}
}

func TestResetAllAndReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	seed(t, &storeT{s})
	if err := s.ResetAll(ctx); err != nil {
		t.Fatalf("ResetAll() error = %v", err)
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s.Close()
	snap, err := s.LoadSnapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Len() != 0 {
		t.Errorf("expected empty after reset, got %d records", snap.Len())
	}
	if err := s.HealthCheck(ctx); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestReplaceAll(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)
	seed(t, s)

	snap := &model.Snapshot{
		Clients:  []model.Client{{ID: "c2", Name: "Globex", Email: "ap@globex.test", CreatedAt: created}},
		Projects: []model.Project{{ID: "p2", ClientID: "c2", Title: "Audit", Status: model.ProjectPending, CreatedAt: created}},
	}
	if err := storage.Replace(ctx, snap, s.Backend); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}

	got, err := storage.LoadSnapshot(ctx, s)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Clients) != 1 || got.Clients[0].ID != "c2" || len(got.Projects) != 1 || len(got.Payments) != 0 {
		t.Errorf("after replace = %+v", got)
	}
}

func TestReplaceAllRejectsDanglingReferences(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)
	seed(t, s)

	snap := &model.Snapshot{
		Clients:  []model.Client{{ID: "c2", Name: "Globex", Email: "ap@globex.test", CreatedAt: created}},
		Projects: []model.Project{{ID: "p2", ClientID: "gone", Title: "Audit", Status: model.ProjectPending, CreatedAt: created}},
	}
	err := storage.Replace(ctx, snap, s.Backend)
	if !errors.Is(err, model.ErrMalformedImport) {
		t.Fatalf("Replace() = %v, want ErrMalformedImport", err)
	}

	got, err := storage.LoadSnapshot(ctx, s)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Clients) != 1 || got.Clients[0].ID != "c1" || len(got.Projects) != 1 || len(got.Payments) != 1 {
		t.Errorf("rows changed by rejected replace: %+v", got)
	}
}
