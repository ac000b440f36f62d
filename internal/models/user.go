package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a student profile. The account itself lives with the
// hosted identity provider; this row mirrors the display data the app owns.
type User struct {
	ID           uuid.UUID `json:"id"`
	FullName     string    `json:"full_name"`
	ProfileImage string    `json:"profile_image,omitempty"`
	Bio          string    `json:"bio,omitempty"`
	Major        string    `json:"major,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
