package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/existflow/ironledger/internal/logger"
	"github.com/existflow/ironledger/internal/model"
	"github.com/existflow/ironledger/internal/storage"
)

// Export is the portable dump of every collection
type Export struct {
	Clients    []model.Client  `json:"clients"`
	Projects   []model.Project `json:"projects"`
	Payments   []model.Payment `json:"payments"`
	ExportedAt time.Time       `json:"exportedAt"`
}

// Export captures the current collections
func (r *Repository) Export() Export {
	snap := r.Snapshot()
	return Export{
		Clients:    nonNil(snap.Clients),
		Projects:   nonNil(snap.Projects),
		Payments:   nonNil(snap.Payments),
		ExportedAt: r.now(),
	}
}

// ExportJSON returns Export as indented JSON
func (r *Repository) ExportJSON() ([]byte, error) {
	data, err := json.MarshalIndent(r.Export(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal export: %w", err)
	}
	return data, nil
}

// ParseExport decodes and checks an export payload. Missing collections
// load as empty. Foreign keys are not checked.
func ParseExport(data []byte) (*model.Snapshot, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrMalformedImport, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: expected a JSON object", model.ErrMalformedImport)
	}

	snap := &model.Snapshot{}
	if err := decodeCollection(raw, model.EntityClient, &snap.Clients); err != nil {
		return nil, err
	}
	if err := decodeCollection(raw, model.EntityProject, &snap.Projects); err != nil {
		return nil, err
	}
	if err := decodeCollection(raw, model.EntityPayment, &snap.Payments); err != nil {
		return nil, err
	}

	if err := checkIDs(snap.Clients); err != nil {
		return nil, err
	}
	if err := checkIDs(snap.Projects); err != nil {
		return nil, err
	}
	if err := checkIDs(snap.Payments); err != nil {
		return nil, err
	}
	for i, p := range snap.Projects {
		if p.Status == "" {
			snap.Projects[i].Status = model.ProjectPending
		} else if !p.Status.Valid() {
			return nil, fmt.Errorf("%w: project %s has unknown status %q", model.ErrMalformedImport, p.ID, p.Status)
		}
	}
	for i, p := range snap.Payments {
		if p.Status == "" {
			snap.Payments[i].Status = model.PaymentPending
		} else if !p.Status.Valid() {
			return nil, fmt.Errorf("%w: payment %s has unknown status %q", model.ErrMalformedImport, p.ID, p.Status)
		}
	}
	return snap, nil
}

// Import replaces every collection with the payload. A malformed payload is
// rejected before anything changes. The backend is replaced first for every
// write policy; local-first backends keep the import when only the copy
// behind them failed, and a refusal never changes anything.
func (r *Repository) Import(ctx context.Context, data []byte) error {
	snap, err := ParseExport(data)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	err = storage.Replace(ctx, snap, r.backend)
	if err != nil && !(r.kept() && errors.Is(err, model.ErrBackendUnavailable)) {
		logger.Warn("Import not applied",
			logger.F("backend", r.backend.Name()),
			logger.F("error", err.Error()))
		return err
	}
	r.data = snap

	logger.Info("Data imported",
		logger.F("backend", r.backend.Name()),
		logger.F("records", snap.Len()))
	return err
}

func decodeCollection[T any](raw map[string]json.RawMessage, entity model.Entity, dst *[]T) error {
	*dst = []T{}
	msg, ok := raw[string(entity)]
	if !ok || string(msg) == "null" {
		return nil
	}
	if err := json.Unmarshal(msg, dst); err != nil {
		return fmt.Errorf("%w: %s: %v", model.ErrMalformedImport, entity, err)
	}
	return nil
}

func checkIDs[T model.Record](recs []T) error {
	seen := make(map[string]bool, len(recs))
	for _, rec := range recs {
		id := rec.RecordID()
		if id == "" {
			return fmt.Errorf("%w: %s record without id", model.ErrMalformedImport, rec.Entity())
		}
		if seen[id] {
			return fmt.Errorf("%w: duplicate %s id %s", model.ErrMalformedImport, rec.Entity(), id)
		}
		seen[id] = true
	}
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
