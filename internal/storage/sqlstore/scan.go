package sqlstore

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/existflow/ironledger/internal/model"
)

// TimeLayout is how timestamps are stored. Fixed width UTC so that text
// ordering matches time ordering.
const TimeLayout = "2006-01-02T15:04:05.000000000Z"

type scanner interface {
	Scan(dest ...any) error
}

func formatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

func formatOptTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		// rows written by hand or by other tools
		t, err = time.Parse(time.RFC3339Nano, s)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func parseOptTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func scanClient(row scanner) (model.Client, error) {
	var (
		c       model.Client
		created string
	)
	if err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Company, &created); err != nil {
		return c, err
	}
	var err error
	c.CreatedAt, err = parseTime(created)
	return c, err
}

func scanProject(row scanner) (model.Project, error) {
	var (
		p                   model.Project
		status, created     string
		deadline, delivered sql.NullString
	)
	err := row.Scan(&p.ID, &p.ClientID, &p.Title, &p.Description, &deadline,
		&status, &delivered, &p.Amount, &created)
	if err != nil {
		return p, err
	}
	p.Status = model.ProjectStatus(status)
	if p.Deadline, err = parseOptTime(deadline); err != nil {
		return p, err
	}
	if p.DeliveredAt, err = parseOptTime(delivered); err != nil {
		return p, err
	}
	p.CreatedAt, err = parseTime(created)
	return p, err
}

func scanPayment(row scanner) (model.Payment, error) {
	var (
		p                    model.Payment
		status, due, created string
		received             sql.NullString
	)
	if err := row.Scan(&p.ID, &p.ProjectID, &p.Amount, &status, &due, &received, &created); err != nil {
		return p, err
	}
	p.Status = model.PaymentStatus(status)
	var err error
	if p.DueDate, err = parseTime(due); err != nil {
		return p, err
	}
	if p.ReceivedAt, err = parseOptTime(received); err != nil {
		return p, err
	}
	p.CreatedAt, err = parseTime(created)
	return p, err
}
