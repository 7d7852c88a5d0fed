package models

import "time"

// Document is a user's document as stored by the server. CreatedAt and
// UpdatedAt are the client's timestamps and are stored as given.
type Document struct {
	ID         string    `json:"id"`
	UserID     string    `json:"-"`
	Name       string    `json:"name"`
	Content    string    `json:"content"`
	Category   string    `json:"category"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	ShareToken *string   `json:"share_token,omitempty"`
	IsShared   bool      `json:"is_shared,omitempty"`
}

// RecoveredDocument is an autosave snapshot kept until the client
// acknowledges it.
type RecoveredDocument struct {
	ID         string    `json:"id"`
	UserID     string    `json:"-"`
	DocumentID string    `json:"document_id,omitempty"`
	Name       string    `json:"name"`
	Category   string    `json:"category"`
	Content    string    `json:"content"`
	SavedAt    time.Time `json:"saved_at"`
}

// Share is a published copy of a document in object storage.
type Share struct {
	DocumentID string    `json:"document_id"`
	Token      string    `json:"share_token"`
	StorageKey string    `json:"-"`
	URL        string    `json:"url"`
	ExpiresAt  time.Time `json:"expires_at"`
}
