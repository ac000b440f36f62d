package models

import (
	"time"

	"github.com/google/uuid"
)

// Service is a marketplace listing offered by a student.
type Service struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"user_id"`
	CategoryID   int64     `json:"category_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Price        float64   `json:"price,omitempty"`
	ContactEmail string    `json:"contact_email,omitempty"`
	ContactPhone string    `json:"contact_phone,omitempty"`
	ImageURLs    string    `json:"image_urls,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
