package model

import (
	"strings"
	"time"
)

// PaymentStatus is the collection state of a payment
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentReceived PaymentStatus = "received"
)

// PaymentStatuses lists every payment status
var PaymentStatuses = []PaymentStatus{PaymentPending, PaymentReceived}

// Valid reports whether s is a known status
func (s PaymentStatus) Valid() bool {
	return s == PaymentPending || s == PaymentReceived
}

// Payment is money owed for a project
type Payment struct {
	ID         string        `json:"id"`
	ProjectID  string        `json:"projectId"`
	Amount     float64       `json:"amount"`
	Status     PaymentStatus `json:"status"`
	DueDate    time.Time     `json:"dueDate"`
	ReceivedAt *time.Time    `json:"receivedAt,omitempty"`
	CreatedAt  time.Time     `json:"createdAt"`
}

func (p Payment) RecordID() string { return p.ID }
func (p Payment) Entity() Entity   { return EntityPayment }

// IsPending reports whether the payment is still outstanding
func (p Payment) IsPending() bool {
	return p.Status == PaymentPending
}

// Validate checks required fields. It does not check that ProjectID exists.
func (p Payment) Validate() error {
	if strings.TrimSpace(p.ProjectID) == "" {
		return invalid(EntityPayment, "projectId", "is required")
	}
	if p.Amount < 0 {
		return invalid(EntityPayment, "amount", "must not be negative")
	}
	if !p.Status.Valid() {
		return invalid(EntityPayment, "status", "must be pending or received")
	}
	if p.DueDate.IsZero() {
		return invalid(EntityPayment, "dueDate", "is required")
	}
	return nil
}

// StampReceipt applies the receivedAt rule for a transition from prev
func (p Payment) StampReceipt(prev PaymentStatus, now time.Time) Payment {
	switch {
	case p.Status == PaymentReceived && prev != PaymentReceived:
		t := now
		p.ReceivedAt = &t
	case p.Status != PaymentReceived:
		p.ReceivedAt = nil
	}
	return p
}

// PaymentPatch holds the fields of a partial payment update
type PaymentPatch struct {
	Amount  *float64       `json:"amount,omitempty"`
	Status  *PaymentStatus `json:"status,omitempty"`
	DueDate *time.Time     `json:"dueDate,omitempty"`
}

// Apply merges the patch onto p
func (pp PaymentPatch) Apply(p Payment) Payment {
	if pp.Amount != nil {
		p.Amount = *pp.Amount
	}
	if pp.Status != nil {
		p.Status = *pp.Status
	}
	if pp.DueDate != nil {
		p.DueDate = *pp.DueDate
	}
	return p
}

// DueDateFor returns the due date of the payment generated for a new project:
// one week after the deadline, or one week from now without a deadline.
func DueDateFor(deadline *time.Time, now time.Time) time.Time {
	if deadline == nil || deadline.IsZero() {
		return now.AddDate(0, 0, 7)
	}
	return deadline.AddDate(0, 0, 7)
}
