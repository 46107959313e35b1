package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/existflow/ironledger/internal/config"
	"github.com/existflow/ironledger/internal/model"
	"github.com/existflow/ironledger/internal/repository"
)

func testConfig(t *testing.T, backend config.BackendType) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Backend:   backend,
		DataDir:   filepath.Join(dir, "data"),
		DBPath:    filepath.Join(dir, "ledger.db"),
		ServerURL: "http://127.0.0.1:1",
		Currency:  "Rs",
	}
}

func TestOpenPersistsAcrossSessions(t *testing.T) {
	for _, backend := range []config.BackendType{config.BackendLocalFile, config.BackendSQLite} {
		t.Run(string(backend), func(t *testing.T) {
			ctx := context.Background()
			cfg := testConfig(t, backend)
			clock := repository.WithClock(func() time.Time {
				return time.Date(2026, time.June, 15, 12, 0, 0, 0, time.UTC)
			})

			a, err := Open(ctx, cfg, clock)
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			c, err := a.Repo.AddClient(ctx, model.Client{Name: "Acme", Email: "ops@acme.test"})
			if err != nil {
				t.Fatalf("AddClient() error = %v", err)
			}
			if _, err := a.Repo.AddProject(ctx, model.Project{ClientID: c.ID, Title: "Site", Amount: 500}); err != nil {
				t.Fatalf("AddProject() error = %v", err)
			}
			if err := a.Close(); err != nil {
				t.Fatalf("Close() error = %v", err)
			}

			a, err = Open(ctx, cfg, clock)
			if err != nil {
				t.Fatalf("reopen error = %v", err)
			}
			defer a.Close()
			st := a.Repo.Status()
			if st.Clients != 1 || st.Projects != 1 || st.Payments != 1 {
				t.Errorf("status after reopen = %+v", st)
			}
			if got := a.Analytics.TotalPendingAmount(); got != 500 {
				t.Errorf("TotalPendingAmount() = %v, want 500", got)
			}
		})
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	cfg := testConfig(t, "carrier-pigeon")
	if _, err := Open(context.Background(), cfg); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestHybridStartsOfflineFromCache(t *testing.T) {
	ctx := context.Background()
	a, err := Open(ctx, testConfig(t, config.BackendHybrid))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer a.Close()

	h, ok := a.Hybrid()
	if !ok {
		t.Fatal("expected hybrid backend")
	}
	if h.Online() {
		t.Error("nothing listens on the server url, expected offline")
	}

	changes := make(chan bool, 1)
	if !a.StartMonitor(time.Hour, func(online bool) {
		select {
		case changes <- online:
		default:
		}
	}) {
		t.Fatal("StartMonitor() = false for hybrid")
	}
	if a.StartMonitor(time.Hour, nil) {
		t.Error("second StartMonitor() should be a no-op")
	}
}

func TestStartMonitorIgnoredForOtherBackends(t *testing.T) {
	a, err := Open(context.Background(), testConfig(t, config.BackendMemory))
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	if a.StartMonitor(time.Second, nil) {
		t.Error("StartMonitor() = true for memory backend")
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{fmt.Errorf("wrap: %w", model.ErrNotFound), "not found"},
		{model.ErrResetRefused, "the storage backend refused to delete all data"},
		{errors.New("plain"), "plain"},
	}
	for _, tt := range tests {
		if got := Describe(tt.err); got != tt.want {
			t.Errorf("Describe(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
	if got := Describe(model.Client{}.Validate()); got == "" {
		t.Error("validation error described as empty")
	}
}
