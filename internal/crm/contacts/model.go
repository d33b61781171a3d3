// Package contacts manages people at customer companies.
package contacts

import "time"

// Contact is a person, optionally linked to a company.
type Contact struct {
	ID          int64     `json:"id"`
	CompanyID   *int64    `json:"company_id,omitempty"`
	CompanyName string    `json:"company_name,omitempty"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name,omitempty"`
	Email       string    `json:"email,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	Role        string    `json:"role,omitempty"`
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// FullName joins first and last name.
func (c Contact) FullName() string {
	if c.LastName == "" {
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

// ContactRequest is the create/update payload.
type ContactRequest struct {
	CompanyID *int64 `json:"company_id" validate:"omitempty,gt=0"`
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"max=100"`
	Email     string `json:"email" validate:"omitempty,email"`
	Phone     string `json:"phone" validate:"max=50"`
	Role      string `json:"role" validate:"max=100"`
	Notes     string `json:"notes"`
}

// ListFilters narrows contact listings.
type ListFilters struct {
	Search    string
	CompanyID *int64
	Limit     int
	Offset    int
}
