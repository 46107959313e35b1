package model

import (
	"strings"
	"time"
)

// ProjectStatus is the delivery state of a project
type ProjectStatus string

const (
	ProjectPending    ProjectStatus = "pending"
	ProjectInProgress ProjectStatus = "in-progress"
	ProjectDelivered  ProjectStatus = "delivered"
)

// ProjectStatuses lists every project status in workflow order
var ProjectStatuses = []ProjectStatus{ProjectPending, ProjectInProgress, ProjectDelivered}

// Valid reports whether s is a known status
func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectPending, ProjectInProgress, ProjectDelivered:
		return true
	}
	return false
}

// Project is a piece of work for a client
type Project struct {
	ID          string        `json:"id"`
	ClientID    string        `json:"clientId"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Deadline    *time.Time    `json:"deadline,omitempty"`
	Status      ProjectStatus `json:"status"`
	DeliveredAt *time.Time    `json:"deliveredAt,omitempty"`
	Amount      float64       `json:"amount"`
	CreatedAt   time.Time     `json:"createdAt"`
}

func (p Project) RecordID() string { return p.ID }
func (p Project) Entity() Entity   { return EntityProject }

// IsDelivered reports whether the project has been handed over
func (p Project) IsDelivered() bool {
	return p.Status == ProjectDelivered
}

// Validate checks required fields. It does not check that ClientID exists.
func (p Project) Validate() error {
	if strings.TrimSpace(p.ClientID) == "" {
		return invalid(EntityProject, "clientId", "is required")
	}
	if strings.TrimSpace(p.Title) == "" {
		return invalid(EntityProject, "title", "is required")
	}
	if p.Amount < 0 {
		return invalid(EntityProject, "amount", "must not be negative")
	}
	if !p.Status.Valid() {
		return invalid(EntityProject, "status", "must be pending, in-progress or delivered")
	}
	return nil
}

// StampDelivery applies the deliveredAt rule for a transition from prev.
// Entering delivered stamps now, leaving clears the stamp, staying keeps it.
func (p Project) StampDelivery(prev ProjectStatus, now time.Time) Project {
	switch {
	case p.Status == ProjectDelivered && prev != ProjectDelivered:
		t := now
		p.DeliveredAt = &t
	case p.Status != ProjectDelivered:
		p.DeliveredAt = nil
	}
	return p
}

// ProjectPatch holds the fields of a partial project update
type ProjectPatch struct {
	ClientID    *string        `json:"clientId,omitempty"`
	Title       *string        `json:"title,omitempty"`
	Description *string        `json:"description,omitempty"`
	Deadline    *time.Time     `json:"deadline,omitempty"`
	Status      *ProjectStatus `json:"status,omitempty"`
	Amount      *float64       `json:"amount,omitempty"`
}

// Apply merges the patch onto p
func (pp ProjectPatch) Apply(p Project) Project {
	if pp.ClientID != nil {
		p.ClientID = *pp.ClientID
	}
	if pp.Title != nil {
		p.Title = *pp.Title
	}
	if pp.Description != nil {
		p.Description = *pp.Description
	}
	if pp.Deadline != nil {
		d := *pp.Deadline
		p.Deadline = &d
	}
	if pp.Status != nil {
		p.Status = *pp.Status
	}
	if pp.Amount != nil {
		p.Amount = *pp.Amount
	}
	return p
}
