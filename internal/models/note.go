package models

import (
	"time"
)

type Note struct {
	ID        string
	OwnerID   string
	Title     string
	Content   string // Sanitized HTML
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NoteImage is the metadata row for an image attachment.
// The image bytes live in object storage under ObjectKey.
type NoteImage struct {
	ID          string
	NoteID      string
	AltText     string
	ContentType string
	ObjectKey   string
	CreatedAt   time.Time
}
