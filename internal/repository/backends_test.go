package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/existflow/ironledger/internal/model"
	"github.com/existflow/ironledger/internal/storage"
	"github.com/existflow/ironledger/internal/storage/localfile"
	"github.com/existflow/ironledger/internal/storage/memory"
	"github.com/existflow/ironledger/internal/storage/sqlite"
)

// backendCase opens two handles on the same stored data, as two sessions
// of the app would
type backendCase struct {
	name string
	open func(t *testing.T) (first, second storage.Backend)
	// keepsDangling is set for backends without foreign keys
	keepsDangling bool
}

func backendCases() []backendCase {
	return []backendCase{
		{
			name: "memory",
			open: func(t *testing.T) (storage.Backend, storage.Backend) {
				m := memory.New()
				return m, m
			},
			keepsDangling: true,
		},
		{
			name: "localfile",
			open: func(t *testing.T) (storage.Backend, storage.Backend) {
				dir := t.TempDir()
				a, err := localfile.Open(dir)
				if err != nil {
					t.Fatal(err)
				}
				b, err := localfile.Open(dir)
				if err != nil {
					t.Fatal(err)
				}
				return a, b
			},
			keepsDangling: true,
		},
		{
			name: "sqlite",
			open: func(t *testing.T) (storage.Backend, storage.Backend) {
				path := filepath.Join(t.TempDir(), "ledger.db")
				a, err := sqlite.Open(path)
				if err != nil {
					t.Fatal(err)
				}
				t.Cleanup(func() { a.Close() })
				b, err := sqlite.Open(path)
				if err != nil {
					t.Fatal(err)
				}
				t.Cleanup(func() { b.Close() })
				return a, b
			},
		},
	}
}

// refusing turns down resets and bulk replaces, like a shared server
// started without resets enabled
type refusing struct {
	storage.Backend
	policy storage.WritePolicy
}

func (r refusing) Policy() storage.WritePolicy { return r.policy }

func (refusing) ResetAll(context.Context) error { return model.ErrResetRefused }

func (refusing) ReplaceAll(context.Context, *model.Snapshot) error { return model.ErrResetRefused }

// seedLedger adds a client, a project and the payment the project creates
func seedLedger(t *testing.T, r *Repository) {
	t.Helper()
	c := seedClient(t, r)
	if _, err := r.AddProject(context.Background(), model.Project{ClientID: c.ID, Title: "Website", Amount: 1200}); err != nil {
		t.Fatalf("AddProject: %v", err)
	}
}

func reloaded(t *testing.T, backend storage.Backend) *model.Snapshot {
	t.Helper()
	r := newTestRepo(t, backend)
	if err := r.ReloadAll(context.Background()); err != nil {
		t.Fatalf("ReloadAll: %v", err)
	}
	return r.Snapshot()
}

func sameSnapshot(t *testing.T, got, want *model.Snapshot) {
	t.Helper()
	if len(got.Clients) != len(want.Clients) || !sameJSON(t, got.Clients, want.Clients) && len(want.Clients) > 0 {
		t.Errorf("clients = %+v, want %+v", got.Clients, want.Clients)
	}
	if len(got.Projects) != len(want.Projects) || !sameJSON(t, got.Projects, want.Projects) && len(want.Projects) > 0 {
		t.Errorf("projects = %+v, want %+v", got.Projects, want.Projects)
	}
	if len(got.Payments) != len(want.Payments) || !sameJSON(t, got.Payments, want.Payments) && len(want.Payments) > 0 {
		t.Errorf("payments = %+v, want %+v", got.Payments, want.Payments)
	}
}

func TestBackendsImportRoundTrip(t *testing.T) {
	for _, tc := range backendCases() {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			src := newTestRepo(t, memory.New())
			seedLedger(t, src)
			if _, err := src.AddClient(ctx, model.Client{Name: "Globex", Email: "ap@globex.io"}); err != nil {
				t.Fatal(err)
			}
			data, err := src.ExportJSON()
			if err != nil {
				t.Fatal(err)
			}

			first, second := tc.open(t)
			dst := newTestRepo(t, first)
			if err := dst.Import(ctx, data); err != nil {
				t.Fatalf("Import: %v", err)
			}
			sameSnapshot(t, dst.Snapshot(), src.Snapshot())
			sameSnapshot(t, reloaded(t, second), src.Snapshot())
		})
	}
}

func TestBackendsDanglingImport(t *testing.T) {
	payload := `{
		"clients":[{"id":"c9","name":"Globex","email":"ap@globex.io","createdAt":"2026-01-02T00:00:00Z"}],
		"projects":[{"id":"p9","clientId":"gone","title":"Orphan","status":"pending","amount":5,"createdAt":"2026-01-02T00:00:00Z"}],
		"payments":[{"id":"pay9","projectId":"ghost","amount":5,"status":"pending","dueDate":"2026-01-09T00:00:00Z","createdAt":"2026-01-02T00:00:00Z"}]
	}`

	for _, tc := range backendCases() {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			first, second := tc.open(t)
			r := newTestRepo(t, first)
			seedLedger(t, r)
			before := r.Snapshot()

			err := r.Import(ctx, []byte(payload))
			if tc.keepsDangling {
				if err != nil {
					t.Fatalf("Import: %v", err)
				}
				sameSnapshot(t, reloaded(t, second), r.Snapshot())
				if p := r.Snapshot().Project("p9"); p == nil || p.ClientID != "gone" {
					t.Errorf("orphan project not imported: %+v", r.Projects())
				}
				return
			}

			if !errors.Is(err, model.ErrMalformedImport) {
				t.Fatalf("Import = %v, want ErrMalformedImport", err)
			}
			sameSnapshot(t, r.Snapshot(), before)
			after := reloaded(t, second)
			sameSnapshot(t, after, before)
			if len(after.Clients) != 1 || after.Clients[0].Name != "Acme" || after.Projects[0].Title != "Website" {
				t.Errorf("stored rows after rejected import = %+v", after)
			}
		})
	}
}

func TestBackendsRefusedImport(t *testing.T) {
	for _, tc := range backendCases() {
		for _, policy := range []storage.WritePolicy{storage.LocalFirst, storage.Confirmed} {
			t.Run(tc.name+"/"+policy.String(), func(t *testing.T) {
				first, second := tc.open(t)
				r := newTestRepo(t, refusing{Backend: first, policy: policy})
				seedLedger(t, r)
				before := r.Snapshot()

				err := r.Import(context.Background(), []byte(importPayload))
				if !errors.Is(err, model.ErrResetRefused) {
					t.Fatalf("Import = %v, want ErrResetRefused", err)
				}
				sameSnapshot(t, r.Snapshot(), before)
				sameSnapshot(t, reloaded(t, second), before)
			})
		}
	}
}

func TestBackendsReloadSeesOtherSession(t *testing.T) {
	for _, tc := range backendCases() {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			first, second := tc.open(t)
			a := newTestRepo(t, first)
			b := New(second, WithClock(a.now), WithIDFunc(func() string { return "other-1" }))
			if err := b.ReloadAll(ctx); err != nil {
				t.Fatal(err)
			}

			seedLedger(t, a)
			if err := b.ReloadAll(ctx); err != nil {
				t.Fatalf("ReloadAll: %v", err)
			}
			sameSnapshot(t, b.Snapshot(), a.Snapshot())

			if _, err := b.AddClient(ctx, model.Client{Name: "Globex", Email: "ap@globex.io"}); err != nil {
				t.Fatal(err)
			}
			if err := a.ReloadAll(ctx); err != nil {
				t.Fatalf("ReloadAll: %v", err)
			}
			if _, ok := a.GetClient("other-1"); !ok || len(a.Clients()) != 2 {
				t.Errorf("first session clients = %+v", a.Clients())
			}
		})
	}
}
