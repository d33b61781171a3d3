package auth

import "time"

// User is a staff account that can sign in to the quoting service.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	PasswordHash string    `json:"-"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// LoginRequest is the JSON login payload.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// NewUser is the input for provisioning an account from the CLI.
type NewUser struct {
	Email    string `validate:"required,email"`
	FullName string `validate:"max=200"`
	Password string `validate:"required,min=8"`
}
