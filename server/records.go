package server

import (
	"fmt"
	"time"

	"github.com/existflow/ironledger/internal/model"
	"github.com/labstack/echo/v4"
)

func bindRecord(c echo.Context, entity model.Entity) (model.Record, error) {
	var (
		rec model.Record
		err error
	)
	switch entity {
	case model.EntityClient:
		var v model.Client
		err = c.Bind(&v)
		rec = v
	case model.EntityProject:
		var v model.Project
		err = c.Bind(&v)
		rec = v
	case model.EntityPayment:
		var v model.Payment
		err = c.Bind(&v)
		rec = v
	default:
		return nil, fmt.Errorf("unknown entity %q", entity)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid %s body: %w", entity, err)
	}
	return rec, nil
}

func withID(rec model.Record, id string) model.Record {
	switch r := rec.(type) {
	case model.Client:
		r.ID = id
		return r
	case model.Project:
		r.ID = id
		return r
	case model.Payment:
		r.ID = id
		return r
	}
	return rec
}

// withCreatedAt fills a missing createdAt
func withCreatedAt(rec model.Record, now time.Time) model.Record {
	switch r := rec.(type) {
	case model.Client:
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		return r
	case model.Project:
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		return r
	case model.Payment:
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		return r
	}
	return rec
}

func keepCreatedAt(rec, existing model.Record) model.Record {
	switch r := rec.(type) {
	case model.Client:
		r.CreatedAt = existing.(model.Client).CreatedAt
		return r
	case model.Project:
		r.CreatedAt = existing.(model.Project).CreatedAt
		return r
	case model.Payment:
		r.CreatedAt = existing.(model.Payment).CreatedAt
		return r
	}
	return rec
}

func find(snap *model.Snapshot, entity model.Entity, id string) model.Record {
	switch entity {
	case model.EntityClient:
		if c := snap.Client(id); c != nil {
			return *c
		}
	case model.EntityProject:
		if p := snap.Project(id); p != nil {
			return *p
		}
	case model.EntityPayment:
		if p := snap.Payment(id); p != nil {
			return *p
		}
	}
	return nil
}

// checkRecord validates rec and the record it references
func checkRecord(snap *model.Snapshot, rec model.Record) error {
	switch r := rec.(type) {
	case model.Client:
		return r.Validate()
	case model.Project:
		if err := r.Validate(); err != nil {
			return err
		}
		if snap.Client(r.ClientID) == nil {
			return &model.ValidationError{Entity: model.EntityProject, Field: "clientId", Reason: "references an unknown client"}
		}
	case model.Payment:
		if err := r.Validate(); err != nil {
			return err
		}
		if snap.Project(r.ProjectID) == nil {
			return &model.ValidationError{Entity: model.EntityPayment, Field: "projectId", Reason: "references an unknown project"}
		}
	}
	return nil
}

// dependents lists the records that reference entity/id, leaves first
func dependents(snap *model.Snapshot, entity model.Entity, id string) []model.Record {
	var out []model.Record
	switch entity {
	case model.EntityClient:
		for _, p := range snap.PaymentsByClient(id) {
			out = append(out, p)
		}
		for _, p := range snap.ProjectsByClient(id) {
			out = append(out, p)
		}
	case model.EntityProject:
		for _, p := range snap.PaymentsByProject(id) {
			out = append(out, p)
		}
	}
	return out
}
