package models

import (
	"time"

	"github.com/google/uuid"
)

// Account is a field operator who signs in on a handset. Its ID is the uid
// used for the per-owner summary index in the remote tree.
type Account struct {
	ID           uuid.UUID  `json:"id"`
	Email        string     `json:"email"`
	DisplayName  string     `json:"display_name"`
	PasswordHash string     `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}
