// Package memory keeps the three collections in process memory.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/existflow/ironledger/internal/model"
	"github.com/existflow/ironledger/internal/storage"
)

// Option configures a Store
type Option func(*Store)

// WithResetRefused makes ResetAll fail with model.ErrResetRefused
func WithResetRefused() Option {
	return func(s *Store) { s.refuseReset = true }
}

// WithSnapshot seeds the store
func WithSnapshot(snap *model.Snapshot) Option {
	return func(s *Store) {
		c := snap.Clone()
		s.clients, s.projects, s.payments = c.Clients, c.Projects, c.Payments
	}
}

// Store is an in-memory storage.Backend. New records are prepended.
type Store struct {
	mu          sync.RWMutex
	clients     []model.Client
	projects    []model.Project
	payments    []model.Payment
	refuseReset bool
}

var (
	_ storage.Backend          = (*Store)(nil)
	_ storage.SnapshotReplacer = (*Store)(nil)
)

// New creates an empty store
func New(opts ...Option) *Store {
	s := &Store{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Name() string                      { return "memory" }
func (s *Store) Policy() storage.WritePolicy       { return storage.Confirmed }
func (s *Store) HealthCheck(context.Context) error { return nil }
func (s *Store) Close() error                      { return nil }

// ListAll returns a copy of one collection
func (s *Store) ListAll(_ context.Context, entity model.Entity) ([]model.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked().Records(entity), nil
}

// LoadSnapshot returns a copy of every collection under one lock
func (s *Store) LoadSnapshot(context.Context) (*model.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked().Clone(), nil
}

// Snapshot returns a copy of every collection
func (s *Store) Snapshot() *model.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked().Clone()
}

func (s *Store) snapshotLocked() *model.Snapshot {
	return &model.Snapshot{Clients: s.clients, Projects: s.projects, Payments: s.payments}
}

// Create prepends rec to its collection
func (s *Store) Create(_ context.Context, rec model.Record) (model.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	switch r := rec.(type) {
	case model.Client:
		s.clients, err = insert(s.clients, r)
	case model.Project:
		s.projects, err = insert(s.projects, r)
	case model.Payment:
		s.payments, err = insert(s.payments, r)
	default:
		err = fmt.Errorf("unsupported record type %T", rec)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Update replaces the stored record with the same id
func (s *Store) Update(_ context.Context, rec model.Record) (model.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	switch r := rec.(type) {
	case model.Client:
		err = replace(s.clients, r)
	case model.Project:
		err = replace(s.projects, r)
	case model.Payment:
		err = replace(s.payments, r)
	default:
		err = fmt.Errorf("unsupported record type %T", rec)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Delete removes a single record. Dependents are left alone.
func (s *Store) Delete(_ context.Context, entity model.Entity, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ok bool
	switch entity {
	case model.EntityClient:
		s.clients, ok = remove(s.clients, id)
	case model.EntityProject:
		s.projects, ok = remove(s.projects, id)
	case model.EntityPayment:
		s.payments, ok = remove(s.payments, id)
	default:
		return fmt.Errorf("unknown entity %q", entity)
	}
	if !ok {
		return model.ErrNotFound
	}
	return nil
}

// ResetAll empties every collection
func (s *Store) ResetAll(context.Context) error {
	if s.refuseReset {
		return model.ErrResetRefused
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients, s.projects, s.payments = nil, nil, nil
	return nil
}

// ReplaceAll swaps every collection for a copy of snap. It is refused
// whenever ResetAll is.
func (s *Store) ReplaceAll(_ context.Context, snap *model.Snapshot) error {
	if s.refuseReset {
		return model.ErrResetRefused
	}
	c := snap.Clone()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients, s.projects, s.payments = c.Clients, c.Projects, c.Payments
	return nil
}

func find[T model.Record](recs []T, id string) int {
	for i, r := range recs {
		if r.RecordID() == id {
			return i
		}
	}
	return -1
}

func insert[T model.Record](recs []T, rec T) ([]T, error) {
	if find(recs, rec.RecordID()) >= 0 {
		return recs, fmt.Errorf("%s %s: %w", rec.Entity(), rec.RecordID(), model.ErrAlreadyExists)
	}
	return append([]T{rec}, recs...), nil
}

func replace[T model.Record](recs []T, rec T) error {
	i := find(recs, rec.RecordID())
	if i < 0 {
		return model.ErrNotFound
	}
	recs[i] = rec
	return nil
}

func remove[T model.Record](recs []T, id string) ([]T, bool) {
	i := find(recs, id)
	if i < 0 {
		return recs, false
	}
	return append(recs[:i:i], recs[i+1:]...), true
}
