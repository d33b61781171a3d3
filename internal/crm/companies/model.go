// Package companies manages customer organisations.
package companies

import "time"

// Company is a customer organisation.
type Company struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	Address   string    `json:"address,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	Contacts  int       `json:"contact_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CompanyRequest is the create/update payload.
type CompanyRequest struct {
	Name    string `json:"name" validate:"required,max=200"`
	Phone   string `json:"phone" validate:"max=50"`
	Email   string `json:"email" validate:"omitempty,email"`
	Address string `json:"address" validate:"max=500"`
	Notes   string `json:"notes"`
}

// ListFilters narrows company listings.
type ListFilters struct {
	Search string
	Limit  int
	Offset int
}
