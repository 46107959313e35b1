package storage

import (
	"context"
	"fmt"

	"github.com/existflow/ironledger/internal/model"
	"golang.org/x/sync/errgroup"
)

// WritePolicy decides whether the repository mutates memory before or after
// the backend acknowledges a write.
type WritePolicy int

const (
	// LocalFirst applies the change in memory first and keeps it when the
	// backend write fails.
	LocalFirst WritePolicy = iota
	// Confirmed applies the change in memory only after the backend write succeeded.
	Confirmed
)

func (p WritePolicy) String() string {
	switch p {
	case LocalFirst:
		return "local-first"
	case Confirmed:
		return "confirmed"
	default:
		return "unknown"
	}
}

// Backend persists the three record collections
type Backend interface {
	Name() string
	Policy() WritePolicy

	ListAll(ctx context.Context, entity model.Entity) ([]model.Record, error)
	Create(ctx context.Context, rec model.Record) (model.Record, error)
	Update(ctx context.Context, rec model.Record) (model.Record, error)
	Delete(ctx context.Context, entity model.Entity, id string) error

	HealthCheck(ctx context.Context) error
	ResetAll(ctx context.Context) error
	Close() error
}

// SnapshotLoader is implemented by backends that can load every collection
// in one consistent step
type SnapshotLoader interface {
	LoadSnapshot(ctx context.Context) (*model.Snapshot, error)
}

// LoadSnapshot fetches all three collections as one batch. Either every
// collection loads or an error is returned.
func LoadSnapshot(ctx context.Context, b Backend) (*model.Snapshot, error) {
	if l, ok := b.(SnapshotLoader); ok {
		return l.LoadSnapshot(ctx)
	}

	results := make([][]model.Record, len(model.Entities))
	g, gctx := errgroup.WithContext(ctx)
	for i, entity := range model.Entities {
		g.Go(func() error {
			recs, err := b.ListAll(gctx, entity)
			if err != nil {
				return fmt.Errorf("failed to list %s: %w", entity, err)
			}
			results[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snap := &model.Snapshot{
		Clients:  []model.Client{},
		Projects: []model.Project{},
		Payments: []model.Payment{},
	}
	for _, recs := range results {
		for _, rec := range recs {
			if err := snap.Add(rec); err != nil {
				return nil, err
			}
		}
	}
	return snap, nil
}

// Mirror replaces the contents of dst with snap. Records are written parents
// first and in reverse list order, so prepend-ordered backends end up in the
// same order as snap.
func Mirror(ctx context.Context, snap *model.Snapshot, dst Backend) error {
	if err := dst.ResetAll(ctx); err != nil {
		return fmt.Errorf("failed to reset %s: %w", dst.Name(), err)
	}
	for _, entity := range model.Entities {
		recs := snap.Records(entity)
		for i := len(recs) - 1; i >= 0; i-- {
			if _, err := dst.Create(ctx, recs[i]); err != nil {
				return fmt.Errorf("failed to copy %s %s to %s: %w", entity, recs[i].RecordID(), dst.Name(), err)
			}
		}
	}
	return nil
}

// SnapshotReplacer is implemented by backends that can swap every collection
// for a snapshot in one step, keeping the old contents when that fails.
type SnapshotReplacer interface {
	ReplaceAll(ctx context.Context, snap *model.Snapshot) error
}

// Replace swaps the contents of dst for snap, through ReplaceAll when dst
// has it and Mirror otherwise.
func Replace(ctx context.Context, snap *model.Snapshot, dst Backend) error {
	if r, ok := dst.(SnapshotReplacer); ok {
		return r.ReplaceAll(ctx, snap)
	}
	return Mirror(ctx, snap, dst)
}
