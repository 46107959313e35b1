// Package localfile stores each collection as a JSON array in a directory:
// clients.json, projects.json and payments.json.
package localfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/existflow/ironledger/internal/logger"
	"github.com/existflow/ironledger/internal/model"
	"github.com/existflow/ironledger/internal/storage"
	"github.com/existflow/ironledger/internal/storage/memory"
)

// Store is a storage.Backend over a directory of JSON files.
// The in-process copy is updated before the file is written and is not
// rolled back when the write fails. Loads always re-read the files.
type Store struct {
	dir   string
	cache *memory.Store
}

var (
	_ storage.Backend          = (*Store)(nil)
	_ storage.SnapshotReplacer = (*Store)(nil)
)

// Open loads the collections found in dir, creating it when missing.
// Missing files load as empty collections.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	snap, err := readSnapshot(dir)
	if err != nil {
		return nil, err
	}

	logger.Debug("Opened local data directory",
		logger.F("dir", dir),
		logger.F("records", snap.Len()))

	return &Store{dir: dir, cache: memory.New(memory.WithSnapshot(snap))}, nil
}

func (s *Store) Name() string                { return "localfile" }
func (s *Store) Policy() storage.WritePolicy { return storage.LocalFirst }
func (s *Store) Close() error                { return nil }

// Dir returns the data directory
func (s *Store) Dir() string { return s.dir }

// HealthCheck verifies that the directory is still writable
func (s *Store) HealthCheck(context.Context) error {
	f, err := os.CreateTemp(s.dir, ".health-*")
	if err != nil {
		return model.Unavailable(err)
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

func (s *Store) ListAll(ctx context.Context, entity model.Entity) ([]model.Record, error) {
	snap, err := s.LoadSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Records(entity), nil
}

// LoadSnapshot re-reads the three files, so writes made by another process
// on the same directory are picked up. The in-process copy is only replaced
// when every file parses.
func (s *Store) LoadSnapshot(ctx context.Context) (*model.Snapshot, error) {
	snap, err := readSnapshot(s.dir)
	if err != nil {
		return nil, err
	}
	if err := s.cache.ReplaceAll(ctx, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *Store) Create(ctx context.Context, rec model.Record) (model.Record, error) {
	stored, err := s.cache.Create(ctx, rec)
	if err != nil {
		return nil, err
	}
	return stored, s.flush(rec.Entity())
}

func (s *Store) Update(ctx context.Context, rec model.Record) (model.Record, error) {
	stored, err := s.cache.Update(ctx, rec)
	if err != nil {
		return nil, err
	}
	return stored, s.flush(rec.Entity())
}

func (s *Store) Delete(ctx context.Context, entity model.Entity, id string) error {
	if err := s.cache.Delete(ctx, entity, id); err != nil {
		return err
	}
	return s.flush(entity)
}

// ResetAll empties the collections and removes their files
func (s *Store) ResetAll(ctx context.Context) error {
	if err := s.cache.ResetAll(ctx); err != nil {
		return err
	}
	for _, entity := range model.Entities {
		err := os.Remove(s.path(entity))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return model.Unavailable(fmt.Errorf("failed to remove %s: %w", entity, err))
		}
	}
	return nil
}

// ReplaceAll swaps every collection for snap and writes each file once
func (s *Store) ReplaceAll(ctx context.Context, snap *model.Snapshot) error {
	if err := s.cache.ReplaceAll(ctx, snap); err != nil {
		return err
	}
	var errs []error
	for _, entity := range model.Entities {
		errs = append(errs, s.flush(entity))
	}
	return errors.Join(errs...)
}

func (s *Store) path(entity model.Entity) string {
	return filepath.Join(s.dir, string(entity)+".json")
}

// flush rewrites the file of one collection through a temp file and rename
func (s *Store) flush(entity model.Entity) error {
	snap := s.cache.Snapshot()

	var v any
	switch entity {
	case model.EntityClient:
		v = snap.Clients
	case model.EntityProject:
		v = snap.Projects
	case model.EntityPayment:
		v = snap.Payments
	default:
		return fmt.Errorf("unknown entity %q", entity)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", entity, err)
	}

	tmp, err := os.CreateTemp(s.dir, string(entity)+"-*.tmp")
	if err != nil {
		return model.Unavailable(fmt.Errorf("failed to write %s: %w", entity, err))
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return model.Unavailable(fmt.Errorf("failed to write %s: %w", entity, err))
	}
	if err := tmp.Close(); err != nil {
		return model.Unavailable(fmt.Errorf("failed to write %s: %w", entity, err))
	}
	if err := os.Rename(tmp.Name(), s.path(entity)); err != nil {
		logger.Warn("Failed to persist collection",
			logger.F("entity", entity),
			logger.F("error", err))
		return model.Unavailable(fmt.Errorf("failed to write %s: %w", entity, err))
	}
	return nil
}

func readSnapshot(dir string) (*model.Snapshot, error) {
	snap := &model.Snapshot{}
	if err := readCollection(dir, model.EntityClient, &snap.Clients); err != nil {
		return nil, err
	}
	if err := readCollection(dir, model.EntityProject, &snap.Projects); err != nil {
		return nil, err
	}
	if err := readCollection(dir, model.EntityPayment, &snap.Payments); err != nil {
		return nil, err
	}
	return snap, nil
}

func readCollection[T any](dir string, entity model.Entity, dst *[]T) error {
	data, err := os.ReadFile(filepath.Join(dir, string(entity)+".json"))
	if errors.Is(err, os.ErrNotExist) {
		*dst = []T{}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", entity, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to parse %s: %w", entity, err)
	}
	if *dst == nil {
		*dst = []T{}
	}
	return nil
}
