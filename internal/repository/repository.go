// Package repository keeps the in-memory mirror of clients, projects and
// payments and writes every change through to a storage backend.
package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/existflow/ironledger/internal/logger"
	"github.com/existflow/ironledger/internal/model"
	"github.com/existflow/ironledger/internal/storage"
	"github.com/google/uuid"
)

// Option configures a Repository
type Option func(*Repository)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

// WithIDFunc replaces the id generator
func WithIDFunc(fn func() string) Option {
	return func(r *Repository) { r.newID = fn }
}

// Repository owns the three collections of one session.
//
// Writes follow the backend's WritePolicy: LocalFirst backends see the change
// applied in memory before the backend call and it stays there when the call
// fails; Confirmed backends must acknowledge the write before memory changes.
// A failed LocalFirst write returns the stored record together with the error.
type Repository struct {
	mu       sync.RWMutex
	backend  storage.Backend
	data     *model.Snapshot
	now      func() time.Time
	newID    func() string
	loadedAt time.Time
}

// New creates an empty repository over backend. Call ReloadAll to fill it.
func New(backend storage.Backend, opts ...Option) *Repository {
	r := &Repository{
		backend: backend,
		data:    &model.Snapshot{},
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Backend returns the storage backend
func (r *Repository) Backend() storage.Backend {
	return r.backend
}

// Snapshot returns a copy of the current collections
func (r *Repository) Snapshot() *model.Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.data.Clone()
}

// ReloadAll replaces memory with a fresh load of all three collections.
// On failure the current state is kept.
func (r *Repository) ReloadAll(ctx context.Context) error {
	snap, err := storage.LoadSnapshot(ctx, r.backend)
	if err != nil {
		logger.Warn("Reload failed, keeping current data",
			logger.F("backend", r.backend.Name()),
			logger.F("error", err))
		return fmt.Errorf("failed to reload from %s: %w", r.backend.Name(), err)
	}

	r.mu.Lock()
	r.data = snap
	r.loadedAt = r.now()
	r.mu.Unlock()

	logger.Info("Data loaded",
		logger.F("backend", r.backend.Name()),
		logger.F("clients", len(snap.Clients)),
		logger.F("projects", len(snap.Projects)),
		logger.F("payments", len(snap.Payments)))
	return nil
}

// Clear wipes the backend and then memory. A refused or failed reset leaves
// memory untouched.
func (r *Repository) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.backend.ResetAll(ctx); err != nil {
		logger.Warn("Reset not applied",
			logger.F("backend", r.backend.Name()),
			logger.F("error", err))
		return err
	}
	r.data = &model.Snapshot{}
	logger.Info("All data cleared", logger.F("backend", r.backend.Name()))
	return nil
}

// Status describes the repository and its backend
type Status struct {
	Backend  string    `json:"backend"`
	Policy   string    `json:"policy"`
	Clients  int       `json:"clients"`
	Projects int       `json:"projects"`
	Payments int       `json:"payments"`
	LoadedAt time.Time `json:"loadedAt"`
}

// Status reports counts and backend details
func (r *Repository) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Status{
		Backend:  r.backend.Name(),
		Policy:   r.backend.Policy().String(),
		Clients:  len(r.data.Clients),
		Projects: len(r.data.Projects),
		Payments: len(r.data.Payments),
		LoadedAt: r.loadedAt,
	}
}

// Health asks the backend whether it is reachable
func (r *Repository) Health(ctx context.Context) error {
	return r.backend.HealthCheck(ctx)
}

// write runs a backend call around an in-memory change according to the
// backend policy. Callers hold r.mu.
func (r *Repository) write(apply func(), persist func() error) error {
	if r.backend.Policy() == storage.LocalFirst {
		apply()
		if err := persist(); err != nil {
			logger.Warn("Change kept locally, backend write failed",
				logger.F("backend", r.backend.Name()),
				logger.F("error", err))
			return err
		}
		return nil
	}

	if err := persist(); err != nil {
		return err
	}
	apply()
	return nil
}

// kept reports whether a failed write still left the change in memory
func (r *Repository) kept() bool {
	return r.backend.Policy() == storage.LocalFirst
}

type ref struct {
	entity model.Entity
	id     string
}

// deleteAll removes refs from the backend and memory in the order given.
// Callers pass dependents before their parents. Callers hold r.mu.
func (r *Repository) deleteAll(ctx context.Context, refs []ref) error {
	del := func(x ref) error {
		err := r.backend.Delete(ctx, x.entity, x.id)
		if err != nil && !errors.Is(err, model.ErrNotFound) {
			return fmt.Errorf("failed to delete %s %s: %w", x.entity, x.id, err)
		}
		return nil
	}

	if r.backend.Policy() == storage.LocalFirst {
		for _, x := range refs {
			r.drop(x)
		}
		var errs []error
		for _, x := range refs {
			if err := del(x); err != nil {
				errs = append(errs, err)
			}
		}
		if len(errs) > 0 {
			err := errors.Join(errs...)
			logger.Warn("Delete kept locally, backend write failed",
				logger.F("backend", r.backend.Name()),
				logger.F("error", err))
			return err
		}
		return nil
	}

	for _, x := range refs {
		if err := del(x); err != nil {
			return err
		}
		r.drop(x)
	}
	return nil
}

func (r *Repository) drop(x ref) {
	switch x.entity {
	case model.EntityClient:
		r.data.Clients = without(r.data.Clients, x.id)
	case model.EntityProject:
		r.data.Projects = without(r.data.Projects, x.id)
	case model.EntityPayment:
		r.data.Payments = without(r.data.Payments, x.id)
	}
}

func indexOf[T model.Record](recs []T, id string) int {
	for i, rec := range recs {
		if rec.RecordID() == id {
			return i
		}
	}
	return -1
}

func without[T model.Record](recs []T, id string) []T {
	i := indexOf(recs, id)
	if i < 0 {
		return recs
	}
	return append(recs[:i:i], recs[i+1:]...)
}

func prepend[T any](recs []T, rec T) []T {
	return append([]T{rec}, recs...)
}

func replaceAt[T model.Record](recs []T, rec T) []T {
	out := append([]T(nil), recs...)
	if i := indexOf(out, rec.RecordID()); i >= 0 {
		out[i] = rec
	}
	return out
}
