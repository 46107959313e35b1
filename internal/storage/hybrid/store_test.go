package hybrid

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/existflow/ironledger/internal/model"
	"github.com/existflow/ironledger/internal/storage/localfile"
	"github.com/existflow/ironledger/internal/storage/memory"
)

var errOffline = model.Unavailable(errors.New("connection refused"))

// flaky is a remote that can be switched off
type flaky struct {
	*memory.Store
	down atomic.Bool
}

func (f *flaky) err() error {
	if f.down.Load() {
		return errOffline
	}
	return nil
}

func (f *flaky) Name() string { return "remote" }

func (f *flaky) HealthCheck(ctx context.Context) error { return f.err() }

func (f *flaky) LoadSnapshot(ctx context.Context) (*model.Snapshot, error) {
	if err := f.err(); err != nil {
		return nil, err
	}
	return f.Store.LoadSnapshot(ctx)
}

func (f *flaky) Create(ctx context.Context, rec model.Record) (model.Record, error) {
	if err := f.err(); err != nil {
		return nil, err
	}
	return f.Store.Create(ctx, rec)
}

func (f *flaky) Update(ctx context.Context, rec model.Record) (model.Record, error) {
	if err := f.err(); err != nil {
		return nil, err
	}
	return f.Store.Update(ctx, rec)
}

func (f *flaky) Delete(ctx context.Context, entity model.Entity, id string) error {
	if err := f.err(); err != nil {
		return err
	}
	return f.Store.Delete(ctx, entity, id)
}

func (f *flaky) ResetAll(ctx context.Context) error {
	if err := f.err(); err != nil {
		return err
	}
	return f.Store.ResetAll(ctx)
}

func (f *flaky) ReplaceAll(ctx context.Context, snap *model.Snapshot) error {
	if err := f.err(); err != nil {
		return err
	}
	return f.Store.ReplaceAll(ctx, snap)
}

var acme = model.Client{ID: "c1", Name: "Acme", Email: "ops@acme.test",
	CreatedAt: time.Date(2026, time.May, 1, 0, 0, 0, 0, time.UTC)}

func newHybrid(t *testing.T, opts ...memory.Option) (*Store, *flaky) {
	t.Helper()
	local, err := localfile.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	remote := &flaky{Store: memory.New(opts...)}
	return New(remote, local), remote
}

func TestLoadSnapshotRefreshesCache(t *testing.T) {
	ctx := context.Background()
	h, _ := newHybrid(t, memory.WithSnapshot(&model.Snapshot{Clients: []model.Client{acme}}))

	snap, err := h.LoadSnapshot(ctx)
	if err != nil {
		t.Fatalf("LoadSnapshot() error = %v", err)
	}
	if len(snap.Clients) != 1 || !h.Online() {
		t.Fatalf("snapshot = %+v online = %v", snap, h.Online())
	}

	cached, _ := h.local.LoadSnapshot(ctx)
	if len(cached.Clients) != 1 || cached.Clients[0].ID != "c1" {
		t.Errorf("cache not refreshed: %+v", cached)
	}
}

func TestLoadSnapshotFallsBackToCache(t *testing.T) {
	ctx := context.Background()
	h, remote := newHybrid(t, memory.WithSnapshot(&model.Snapshot{Clients: []model.Client{acme}}))
	if _, err := h.LoadSnapshot(ctx); err != nil {
		t.Fatal(err)
	}

	var changes []bool
	h.SetOnChange(func(online bool) { changes = append(changes, online) })
	remote.down.Store(true)

	snap, err := h.LoadSnapshot(ctx)
	if err != nil {
		t.Fatalf("LoadSnapshot() error = %v", err)
	}
	if len(snap.Clients) != 1 {
		t.Errorf("expected cached client, got %+v", snap)
	}
	if h.Online() {
		t.Error("expected offline")
	}
	if len(changes) != 1 || changes[0] {
		t.Errorf("onChange calls = %v", changes)
	}
}

func TestWriteWhileOfflineKeepsCacheAndPushes(t *testing.T) {
	ctx := context.Background()
	h, remote := newHybrid(t)
	remote.down.Store(true)

	stored, err := h.Create(ctx, acme)
	if !errors.Is(err, model.ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
	if stored == nil || stored.RecordID() != "c1" {
		t.Errorf("stored = %v", stored)
	}
	if !h.Unsynced() {
		t.Error("expected unsynced marker")
	}

	// remote back up, cache still wins until pushed
	remote.down.Store(false)
	snap, err := h.LoadSnapshot(ctx)
	if err != nil || len(snap.Clients) != 1 {
		t.Fatalf("LoadSnapshot() = %+v, %v", snap, err)
	}

	if _, err := h.Push(ctx); err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	if h.Unsynced() {
		t.Error("marker should be cleared after push")
	}
	if got := remote.Snapshot(); len(got.Clients) != 1 {
		t.Errorf("remote after push = %+v", got)
	}
}

func TestPullDiscardsCache(t *testing.T) {
	ctx := context.Background()
	h, remote := newHybrid(t)
	remote.down.Store(true)
	h.Create(ctx, acme)
	remote.down.Store(false)

	snap, err := h.Pull(ctx)
	if err != nil {
		t.Fatalf("Pull() error = %v", err)
	}
	if snap.Len() != 0 || h.Unsynced() {
		t.Errorf("pull result = %+v unsynced = %v", snap, h.Unsynced())
	}
	cached, _ := h.local.LoadSnapshot(ctx)
	if cached.Len() != 0 {
		t.Errorf("cache after pull = %+v", cached)
	}
}

func TestResetRefusedLeavesCache(t *testing.T) {
	ctx := context.Background()
	h, _ := newHybrid(t, memory.WithResetRefused())
	if _, err := h.Create(ctx, acme); err != nil {
		t.Fatal(err)
	}

	if err := h.ResetAll(ctx); !errors.Is(err, model.ErrResetRefused) {
		t.Fatalf("expected ErrResetRefused, got %v", err)
	}
	cached, _ := h.local.LoadSnapshot(ctx)
	if len(cached.Clients) != 1 {
		t.Errorf("cache was modified: %+v", cached)
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	h, remote := newHybrid(t)
	if _, err := h.Create(ctx, acme); err != nil {
		t.Fatal(err)
	}
	if err := h.Delete(ctx, model.EntityClient, "c1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if remote.Snapshot().Len() != 0 {
		t.Error("remote still has the client")
	}
	if err := h.Delete(ctx, model.EntityClient, "c1"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMonitorReportsOutage(t *testing.T) {
	h, remote := newHybrid(t)
	remote.down.Store(true)

	changed := make(chan bool, 4)
	h.SetOnChange(func(online bool) { changed <- online })

	m := NewMonitor(h, 10*time.Millisecond)
	m.Start()
	defer m.Stop()

	select {
	case online := <-changed:
		if online {
			t.Error("expected offline notification")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("monitor never reported")
	}

	remote.down.Store(false)
	select {
	case online := <-changed:
		if !online {
			t.Error("expected online notification")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("monitor never reported recovery")
	}
}

func TestReplaceAllOffline(t *testing.T) {
	ctx := context.Background()
	h, remote := newHybrid(t)
	remote.down.Store(true)

	snap := &model.Snapshot{Clients: []model.Client{acme}}
	if err := h.ReplaceAll(ctx, snap); !errors.Is(err, model.ErrBackendUnavailable) {
		t.Fatalf("ReplaceAll() = %v, want ErrBackendUnavailable", err)
	}
	if !h.Unsynced() {
		t.Error("expected unsynced marker")
	}
	cached, _ := h.local.LoadSnapshot(ctx)
	if len(cached.Clients) != 1 {
		t.Errorf("cache = %+v, want the replaced contents", cached)
	}

	remote.down.Store(false)
	if _, err := h.Push(ctx); err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	if remote.Snapshot().Len() != 1 || h.Unsynced() {
		t.Errorf("remote = %+v unsynced = %v after push", remote.Snapshot(), h.Unsynced())
	}
}

func TestReplaceAllRefusedKeepsCache(t *testing.T) {
	ctx := context.Background()
	h, _ := newHybrid(t, memory.WithResetRefused())
	if _, err := h.Create(ctx, acme); err != nil {
		t.Fatal(err)
	}

	err := h.ReplaceAll(ctx, &model.Snapshot{})
	if !errors.Is(err, model.ErrResetRefused) {
		t.Fatalf("ReplaceAll() = %v, want ErrResetRefused", err)
	}
	cached, _ := h.local.LoadSnapshot(ctx)
	if len(cached.Clients) != 1 {
		t.Errorf("cache changed after refused replace: %+v", cached)
	}
}
