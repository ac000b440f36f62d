package models

// Category is a service category (Design, Tutoring, Finance, ...).
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
