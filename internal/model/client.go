package model

import (
	"regexp"
	"strings"
	"time"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^[\d\s\-+()]+$`)
)

// Client is someone who commissions projects
type Client struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Company   string    `json:"company,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func (c Client) RecordID() string { return c.ID }
func (c Client) Entity() Entity   { return EntityClient }

// Validate checks required fields and formats
func (c Client) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return invalid(EntityClient, "name", "is required")
	}
	if strings.TrimSpace(c.Email) == "" {
		return invalid(EntityClient, "email", "is required")
	}
	if !emailPattern.MatchString(c.Email) {
		return invalid(EntityClient, "email", "is not a valid address")
	}
	if c.Phone != "" && !phonePattern.MatchString(c.Phone) {
		return invalid(EntityClient, "phone", "may only contain digits, spaces and + - ( )")
	}
	return nil
}

// ClientPatch holds the fields of a partial client update.
// Nil fields keep their current value.
type ClientPatch struct {
	Name    *string `json:"name,omitempty"`
	Email   *string `json:"email,omitempty"`
	Phone   *string `json:"phone,omitempty"`
	Company *string `json:"company,omitempty"`
}

// Apply merges the patch onto c
func (p ClientPatch) Apply(c Client) Client {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Email != nil {
		c.Email = *p.Email
	}
	if p.Phone != nil {
		c.Phone = *p.Phone
	}
	if p.Company != nil {
		c.Company = *p.Company
	}
	return c
}
