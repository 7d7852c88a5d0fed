package models

import "time"

// ConflictType tells why a RecoveryRecord was raised.
type ConflictType string

const (
	// ConflictOrphaned marks local work that no authenticated session claims.
	ConflictOrphaned ConflictType = "orphaned"
	// ConflictCollision marks a version that clashes with remote state.
	ConflictCollision ConflictType = "collision"
)

// RecoveryRecord is surfaced to the user for an explicit accept or discard.
// It is never stored as a Document.
type RecoveryRecord struct {
	LocalID      string       `json:"local_id"`
	DocumentID   string       `json:"document_id,omitempty"`
	Name         string       `json:"name"`
	Category     string       `json:"category"`
	Content      string       `json:"content"`
	Conflict     bool         `json:"conflict"`
	RecoveredAt  time.Time    `json:"recovered_at"`
	ConflictType ConflictType `json:"conflict_type"`
	// RecoveredID is the server autosave behind a collision, if any.
	RecoveredID string `json:"recovered_id,omitempty"`
}

// RecoveredDocument is a server-side autosave waiting to be claimed.
type RecoveredDocument struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id,omitempty"`
	Name       string    `json:"name"`
	Category   string    `json:"category"`
	Content    string    `json:"content"`
	SavedAt    time.Time `json:"saved_at"`
}

// Share describes a published document.
type Share struct {
	DocumentID string    `json:"document_id"`
	Token      string    `json:"share_token"`
	URL        string    `json:"url"`
	ExpiresAt  time.Time `json:"expires_at"`
}
