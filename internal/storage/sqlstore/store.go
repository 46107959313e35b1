// Package sqlstore implements storage.Backend on database/sql. The sqlite and
// postgres packages open the database and migrate the schema; this package
// runs the queries.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/existflow/ironledger/internal/model"
	"github.com/existflow/ironledger/internal/storage"
)

const (
	clientColumns  = "id, name, email, phone, company, created_at"
	projectColumns = "id, client_id, title, description, deadline, status, delivered_at, amount, created_at"
	paymentColumns = "id, project_id, amount, status, due_date, received_at, created_at"
)

// Store is a storage.Backend over an open database with the ironledger schema
type Store struct {
	db      *sql.DB
	dialect Dialect
	name    string
}

var (
	_ storage.Backend          = (*Store)(nil)
	_ storage.SnapshotLoader   = (*Store)(nil)
	_ storage.SnapshotReplacer = (*Store)(nil)
)

// New wraps db. name is what Name reports.
func New(db *sql.DB, dialect Dialect, name string) *Store {
	return &Store{db: db, dialect: dialect, name: name}
}

func (s *Store) Name() string                { return s.name }
func (s *Store) Policy() storage.WritePolicy { return storage.Confirmed }

// Close closes the connection pool
func (s *Store) Close() error {
	return s.db.Close()
}

// HealthCheck pings the database
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return model.Unavailable(fmt.Errorf("failed to ping %s: %w", s.name, err))
	}
	return nil
}

func (s *Store) q(query string) string {
	return s.dialect.Rebind(query)
}

func table(entity model.Entity) (string, error) {
	if !entity.Valid() {
		return "", fmt.Errorf("unknown entity %q", entity)
	}
	return string(entity), nil
}

func columns(entity model.Entity) string {
	switch entity {
	case model.EntityClient:
		return clientColumns
	case model.EntityProject:
		return projectColumns
	default:
		return paymentColumns
	}
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// ListAll returns one collection, newest first
func (s *Store) ListAll(ctx context.Context, entity model.Entity) ([]model.Record, error) {
	return s.list(ctx, s.db, entity)
}

func (s *Store) list(ctx context.Context, db querier, entity model.Entity) ([]model.Record, error) {
	tbl, err := table(entity)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY created_at DESC, id DESC", columns(entity), tbl)
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, model.Unavailable(fmt.Errorf("failed to query %s: %w", tbl, err))
	}
	defer rows.Close()

	var recs []model.Record
	for rows.Next() {
		var (
			rec model.Record
			err error
		)
		switch entity {
		case model.EntityClient:
			rec, err = scanClient(rows)
		case model.EntityProject:
			rec, err = scanProject(rows)
		case model.EntityPayment:
			rec, err = scanPayment(rows)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", tbl, err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, model.Unavailable(fmt.Errorf("failed to read %s: %w", tbl, err))
	}
	return recs, nil
}

// LoadSnapshot reads all three tables inside one read transaction
func (s *Store) LoadSnapshot(ctx context.Context) (*model.Snapshot, error) {
	tx, err := s.db.BeginTx(ctx, s.dialect.SnapshotTx)
	if err != nil {
		return nil, model.Unavailable(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback()

	snap := &model.Snapshot{
		Clients:  []model.Client{},
		Projects: []model.Project{},
		Payments: []model.Payment{},
	}
	for _, entity := range model.Entities {
		recs, err := s.list(ctx, tx, entity)
		if err != nil {
			return nil, err
		}
		for _, rec := range recs {
			if err := snap.Add(rec); err != nil {
				return nil, err
			}
		}
	}
	return snap, tx.Commit()
}

// Create inserts rec. An existing id yields model.ErrAlreadyExists.
func (s *Store) Create(ctx context.Context, rec model.Record) (model.Record, error) {
	tbl, err := table(rec.Entity())
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, model.Unavailable(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback()

	var n int
	err = tx.QueryRowContext(ctx, s.q("SELECT COUNT(*) FROM "+tbl+" WHERE id = ?"), rec.RecordID()).Scan(&n)
	if err != nil {
		return nil, model.Unavailable(fmt.Errorf("failed to check %s: %w", tbl, err))
	}
	if n > 0 {
		return nil, fmt.Errorf("%s %s: %w", tbl, rec.RecordID(), model.ErrAlreadyExists)
	}

	query, args, err := insertStmt(rec)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, s.q(query), args...); err != nil {
		return nil, fmt.Errorf("failed to insert into %s: %w", tbl, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, model.Unavailable(fmt.Errorf("failed to commit %s insert: %w", tbl, err))
	}
	return rec, nil
}

// Update overwrites every column of the row with rec's id
func (s *Store) Update(ctx context.Context, rec model.Record) (model.Record, error) {
	query, args, err := updateStmt(rec)
	if err != nil {
		return nil, err
	}
	res, err := s.db.ExecContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update %s: %w", rec.Entity(), err)
	}
	if err := requireRow(res); err != nil {
		return nil, err
	}
	return rec, nil
}

// Delete removes one row. Dependent rows go with it through ON DELETE CASCADE.
func (s *Store) Delete(ctx context.Context, entity model.Entity, id string) error {
	tbl, err := table(entity)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, s.q("DELETE FROM "+tbl+" WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("failed to delete from %s: %w", tbl, err)
	}
	return requireRow(res)
}

// ResetAll empties the three tables in one transaction, children first
func (s *Store) ResetAll(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Unavailable(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback()

	if err := clearTables(ctx, tx); err != nil {
		return err
	}
	return tx.Commit()
}

// ReplaceAll swaps the contents of every table for snap in one transaction.
// Snapshots with dangling references are rejected with
// model.ErrMalformedImport before anything is written.
func (s *Store) ReplaceAll(ctx context.Context, snap *model.Snapshot) error {
	if err := snap.CheckRefs(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Unavailable(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback()

	if err := clearTables(ctx, tx); err != nil {
		return err
	}
	for _, entity := range model.Entities {
		for _, rec := range snap.Records(entity) {
			query, args, err := insertStmt(rec)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, s.q(query), args...); err != nil {
				return fmt.Errorf("failed to insert %s %s: %w", entity, rec.RecordID(), err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return model.Unavailable(fmt.Errorf("failed to commit replace: %w", err))
	}
	return nil
}

// clearTables deletes every row, children first
func clearTables(ctx context.Context, tx *sql.Tx) error {
	for i := len(model.Entities) - 1; i >= 0; i-- {
		tbl := string(model.Entities[i])
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+tbl); err != nil {
			return fmt.Errorf("failed to clear %s: %w", tbl, err)
		}
	}
	return nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func insertStmt(rec model.Record) (string, []any, error) {
	switch r := rec.(type) {
	case model.Client:
		return "INSERT INTO clients (" + clientColumns + ") VALUES (?, ?, ?, ?, ?, ?)",
			[]any{r.ID, r.Name, r.Email, r.Phone, r.Company, formatTime(r.CreatedAt)}, nil
	case model.Project:
		return "INSERT INTO projects (" + projectColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
			[]any{r.ID, r.ClientID, r.Title, r.Description, formatOptTime(r.Deadline),
				string(r.Status), formatOptTime(r.DeliveredAt), r.Amount, formatTime(r.CreatedAt)}, nil
	case model.Payment:
		return "INSERT INTO payments (" + paymentColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?)",
			[]any{r.ID, r.ProjectID, r.Amount, string(r.Status), formatTime(r.DueDate),
				formatOptTime(r.ReceivedAt), formatTime(r.CreatedAt)}, nil
	default:
		return "", nil, fmt.Errorf("unsupported record type %T", rec)
	}
}

func updateStmt(rec model.Record) (string, []any, error) {
	switch r := rec.(type) {
	case model.Client:
		return `UPDATE clients SET name = ?, email = ?, phone = ?, company = ?, created_at = ?
			WHERE id = ?`,
			[]any{r.Name, r.Email, r.Phone, r.Company, formatTime(r.CreatedAt), r.ID}, nil
	case model.Project:
		return `UPDATE projects SET client_id = ?, title = ?, description = ?, deadline = ?,
			status = ?, delivered_at = ?, amount = ?, created_at = ?
			WHERE id = ?`,
			[]any{r.ClientID, r.Title, r.Description, formatOptTime(r.Deadline), string(r.Status),
				formatOptTime(r.DeliveredAt), r.Amount, formatTime(r.CreatedAt), r.ID}, nil
	case model.Payment:
		return `UPDATE payments SET project_id = ?, amount = ?, status = ?, due_date = ?,
			received_at = ?, created_at = ?
			WHERE id = ?`,
			[]any{r.ProjectID, r.Amount, string(r.Status), formatTime(r.DueDate),
				formatOptTime(r.ReceivedAt), formatTime(r.CreatedAt), r.ID}, nil
	default:
		return "", nil, fmt.Errorf("unsupported record type %T", rec)
	}
}
