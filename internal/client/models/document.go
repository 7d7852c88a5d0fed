// Package models defines the client-side document, recovery and session
// shapes shared by the local store, the sync coordinator and the CLI.
package models

import (
	"strings"
	"time"

	"github.com/dmitrijs2005/docsync/internal/common"
	"github.com/google/uuid"
)

// Document is the unit of storage and synchronization.
type Document struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Content    string    `json:"content"`
	Category   string    `json:"category"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	ShareToken *string   `json:"share_token,omitempty"`
	IsShared   bool      `json:"is_shared,omitempty"`

	// Pending is local bookkeeping: the document carries changes the remote
	// store has not confirmed yet. It is never sent over the wire.
	Pending bool `json:"-"`
}

// NewLocalID synthesizes an id for a document that has no remote
// counterpart yet.
func NewLocalID() string {
	return common.LocalIDPrefix + uuid.NewString()
}

// IsLocalID reports whether id was synthesized locally (or is empty).
func IsLocalID(id string) bool {
	return id == "" || strings.HasPrefix(id, common.LocalIDPrefix)
}

// HasServerID reports whether the document was ever persisted remotely.
func (d *Document) HasServerID() bool {
	return !IsLocalID(d.ID)
}

// IsPlaceholder reports whether doc is the synthetic empty "Untitled
// Document": no server id, blank content, default category and default name.
// Placeholders stay local and are never published as the current document.
func IsPlaceholder(doc *Document) bool {
	if doc == nil {
		return true
	}
	return !doc.HasServerID() &&
		strings.TrimSpace(doc.Content) == "" &&
		CategoryOrDefault(doc.Category) == common.DefaultCategory &&
		doc.Name == common.DefaultDocumentName
}

// NewPlaceholder returns the document the editor opens with.
func NewPlaceholder() Document {
	return Document{Name: common.DefaultDocumentName, Category: common.DefaultCategory}
}

// CategoryOrDefault maps an empty category to the default one.
func CategoryOrDefault(category string) string {
	if strings.TrimSpace(category) == "" {
		return common.DefaultCategory
	}
	return category
}

// SameContent compares the user-visible fields of two documents.
func SameContent(a, b *Document) bool {
	return a.Name == b.Name && a.Category == b.Category && a.Content == b.Content
}
