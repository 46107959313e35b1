// Package hybrid combines a remote backend with a local-file cache. Reads
// prefer the remote and fall back to the cache; writes land in the cache
// first and are then forwarded.
package hybrid

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/existflow/ironledger/internal/logger"
	"github.com/existflow/ironledger/internal/model"
	"github.com/existflow/ironledger/internal/storage"
	"github.com/existflow/ironledger/internal/storage/localfile"
)

// unsyncedMarker is created in the cache directory while the cache holds
// writes the remote has not acknowledged
const unsyncedMarker = ".unsynced"

// Store is a storage.Backend over a remote and a local cache
type Store struct {
	remote storage.Backend
	local  *localfile.Store

	mu       sync.Mutex
	online   bool
	checked  bool
	onChange func(online bool)
}

var (
	_ storage.Backend          = (*Store)(nil)
	_ storage.SnapshotLoader   = (*Store)(nil)
	_ storage.SnapshotReplacer = (*Store)(nil)
)

// New combines remote with the cache in local
func New(remote storage.Backend, local *localfile.Store) *Store {
	return &Store{remote: remote, local: local}
}

func (s *Store) Name() string                { return "hybrid" }
func (s *Store) Policy() storage.WritePolicy { return storage.LocalFirst }

// SetOnChange registers a callback fired when the remote goes up or down
func (s *Store) SetOnChange(fn func(online bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// Online reports whether the last remote call succeeded
func (s *Store) Online() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}

func (s *Store) setOnline(online bool) {
	s.mu.Lock()
	changed := !s.checked || s.online != online
	s.online, s.checked = online, true
	callback := s.onChange
	s.mu.Unlock()

	if !changed {
		return
	}
	if online {
		logger.Info("Remote backend reachable", logger.F("backend", s.remote.Name()))
	} else {
		logger.Warn("Remote backend unreachable, using local cache", logger.F("backend", s.remote.Name()))
	}
	if callback != nil {
		callback(online)
	}
}

// Unsynced reports whether the cache holds writes the remote never saw
func (s *Store) Unsynced() bool {
	_, err := os.Stat(filepath.Join(s.local.Dir(), unsyncedMarker))
	return err == nil
}

func (s *Store) markUnsynced() {
	path := filepath.Join(s.local.Dir(), unsyncedMarker)
	if err := os.WriteFile(path, nil, 0644); err != nil {
		logger.Warn("Failed to record unsynced state", logger.F("error", err.Error()))
	}
}

func (s *Store) clearUnsynced() {
	err := os.Remove(filepath.Join(s.local.Dir(), unsyncedMarker))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("Failed to clear unsynced state", logger.F("error", err.Error()))
	}
}

// HealthCheck probes the remote and updates the online state
func (s *Store) HealthCheck(ctx context.Context) error {
	err := s.remote.HealthCheck(ctx)
	s.setOnline(err == nil)
	if err != nil {
		return model.Unavailable(err)
	}
	return nil
}

// LoadSnapshot loads from the remote and refreshes the cache with it. When
// the remote is down, or the cache holds unsynced writes, the cache wins.
func (s *Store) LoadSnapshot(ctx context.Context) (*model.Snapshot, error) {
	if s.Unsynced() {
		logger.Warn("Local cache has unsynced changes, loading from cache",
			logger.F("hint", "run ironledger sync --push"))
		return s.local.LoadSnapshot(ctx)
	}

	snap, err := storage.LoadSnapshot(ctx, s.remote)
	if err != nil {
		s.setOnline(false)
		logger.Warn("Failed to load from remote", logger.F("error", err.Error()))
		return s.local.LoadSnapshot(ctx)
	}
	s.setOnline(true)

	if err := s.local.ReplaceAll(ctx, snap); err != nil {
		logger.Warn("Failed to refresh local cache", logger.F("error", err.Error()))
	}
	return snap, nil
}

// ListAll lists one collection, remote first
func (s *Store) ListAll(ctx context.Context, entity model.Entity) ([]model.Record, error) {
	snap, err := s.LoadSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Records(entity), nil
}

// Create writes rec to the cache, then the remote
func (s *Store) Create(ctx context.Context, rec model.Record) (model.Record, error) {
	stored, err := s.local.Create(ctx, rec)
	if err != nil {
		return nil, err
	}
	if _, err := s.remote.Create(ctx, rec); err != nil {
		return stored, s.remoteFailed("create", rec.Entity(), rec.RecordID(), err)
	}
	s.setOnline(true)
	return stored, nil
}

// Update writes rec to the cache, then the remote
func (s *Store) Update(ctx context.Context, rec model.Record) (model.Record, error) {
	stored, err := s.local.Update(ctx, rec)
	if err != nil {
		return nil, err
	}
	if _, err := s.remote.Update(ctx, rec); err != nil {
		return stored, s.remoteFailed("update", rec.Entity(), rec.RecordID(), err)
	}
	s.setOnline(true)
	return stored, nil
}

// Delete removes the record from both sides. It reports model.ErrNotFound
// only when neither side had it.
func (s *Store) Delete(ctx context.Context, entity model.Entity, id string) error {
	localErr := s.local.Delete(ctx, entity, id)
	if localErr != nil && !errors.Is(localErr, model.ErrNotFound) {
		return localErr
	}

	remoteErr := s.remote.Delete(ctx, entity, id)
	switch {
	case remoteErr == nil:
		s.setOnline(true)
		return nil
	case errors.Is(remoteErr, model.ErrNotFound):
		s.setOnline(true)
		return localErr
	default:
		return s.remoteFailed("delete", entity, id, remoteErr)
	}
}

func (s *Store) remoteFailed(op string, entity model.Entity, id string, err error) error {
	if errors.Is(err, model.ErrBackendUnavailable) {
		s.setOnline(false)
	}
	s.markUnsynced()
	logger.Warn("Remote write failed, kept in local cache",
		logger.F("op", op),
		logger.F("entity", string(entity)),
		logger.F("id", id),
		logger.F("error", err.Error()))
	return model.Unavailable(fmt.Errorf("failed to %s %s %s on remote: %w", op, entity, id, err))
}

// ResetAll wipes the remote first. The cache is left alone when the remote
// refuses or is unreachable.
func (s *Store) ResetAll(ctx context.Context) error {
	if err := s.remote.ResetAll(ctx); err != nil {
		if errors.Is(err, model.ErrBackendUnavailable) {
			s.setOnline(false)
		}
		return err
	}
	s.setOnline(true)
	if err := s.local.ResetAll(ctx); err != nil {
		return err
	}
	s.clearUnsynced()
	return nil
}

// ReplaceAll replaces the remote contents first. A refusal leaves the cache
// alone; an unreachable remote leaves snap in the cache, marked unsynced.
func (s *Store) ReplaceAll(ctx context.Context, snap *model.Snapshot) error {
	err := storage.Replace(ctx, snap, s.remote)
	if err != nil && !errors.Is(err, model.ErrBackendUnavailable) {
		return err
	}
	if lerr := s.local.ReplaceAll(ctx, snap); lerr != nil {
		return lerr
	}
	if err != nil {
		s.setOnline(false)
		s.markUnsynced()
		logger.Warn("Remote replace failed, kept in local cache", logger.F("error", err.Error()))
		return model.Unavailable(fmt.Errorf("failed to replace remote contents: %w", err))
	}
	s.setOnline(true)
	s.clearUnsynced()
	return nil
}

// Push replaces the remote contents with the cache
func (s *Store) Push(ctx context.Context) (*model.Snapshot, error) {
	snap, err := s.local.LoadSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	if err := storage.Replace(ctx, snap, s.remote); err != nil {
		return nil, err
	}
	s.setOnline(true)
	s.clearUnsynced()
	return snap, nil
}

// Pull replaces the cache with the remote contents, discarding unsynced writes
func (s *Store) Pull(ctx context.Context) (*model.Snapshot, error) {
	snap, err := storage.LoadSnapshot(ctx, s.remote)
	if err != nil {
		return nil, err
	}
	s.setOnline(true)
	if err := s.local.ReplaceAll(ctx, snap); err != nil {
		return nil, err
	}
	s.clearUnsynced()
	return snap, nil
}

// Close closes both sides
func (s *Store) Close() error {
	return errors.Join(s.remote.Close(), s.local.Close())
}
