// Package tracker keeps the pointer to the document open in the editor,
// persists it across restarts and mirrors it to the remote store.
package tracker

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/dmitrijs2005/docsync/internal/client/events"
	"github.com/dmitrijs2005/docsync/internal/client/models"
	"github.com/dmitrijs2005/docsync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/docsync/internal/common"
	"github.com/dmitrijs2005/docsync/internal/logging"
)

// Reader is the slice of the local store the tracker needs.
type Reader interface {
	Get(ctx context.Context, id string) (*models.Document, error)
}

// Publisher mirrors the pointer remotely. It returns false when the
// publication could not be queued (for example while signed out).
type Publisher interface {
	PublishCurrent(ctx context.Context, documentID string) bool
}

type Tracker struct {
	meta   metadata.Repository
	docs   Reader
	bus    *events.Bus
	logger logging.Logger

	mu        sync.Mutex
	current   *models.Document
	publisher Publisher
	// unpublished is set when the pointer changed but could not be
	// mirrored yet.
	unpublished bool
}

func New(meta metadata.Repository, docs Reader, bus *events.Bus, logger logging.Logger) *Tracker {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Tracker{meta: meta, docs: docs, bus: bus, logger: logger}
}

// Attach subscribes the tracker to store events. The returned function
// detaches it.
func (t *Tracker) Attach() func() {
	return t.bus.Subscribe(t.handle)
}

func (t *Tracker) SetPublisher(p Publisher) {
	t.mu.Lock()
	t.publisher = p
	t.mu.Unlock()
}

// Current returns a copy of the open document, or nil.
func (t *Tracker) Current() *models.Document {
	t.mu.Lock()
	defer t.mu.Unlock()
	return clone(t.current)
}

// Restore loads the persisted pointer. The stored copy of the document wins
// over the persisted snapshot; a snapshot whose document is gone from the
// store is still restored when it holds content, so nothing typed is lost.
func (t *Tracker) Restore(ctx context.Context) (*models.Document, error) {
	var snap models.Document
	found, err := metadata.GetJSON(ctx, t.meta, metadata.KeyCurrentDocument, &snap)
	if err != nil {
		return nil, err
	}

	id := snap.ID
	if !found {
		raw, err := t.meta.Get(ctx, metadata.KeyLastDocumentID)
		if err != nil {
			return nil, err
		}
		id = string(raw)
	}

	var doc *models.Document
	if id != "" {
		stored, err := t.docs.Get(ctx, id)
		switch {
		case err == nil:
			doc = stored
		case !errors.Is(err, common.ErrNotFound):
			return nil, err
		}
	}
	if doc == nil && found && !models.IsPlaceholder(&snap) {
		doc = &snap
	}

	t.mu.Lock()
	t.current = clone(doc)
	t.mu.Unlock()
	return clone(doc), nil
}

// Set makes doc the current document, persists the pointer and publishes it
// remotely when it is eligible.
func (t *Tracker) Set(ctx context.Context, doc *models.Document) error {
	if doc == nil {
		return t.Clear(ctx)
	}
	if err := t.persist(ctx, doc); err != nil {
		return err
	}

	t.mu.Lock()
	t.current = clone(doc)
	t.unpublished = true
	t.mu.Unlock()

	t.bus.Publish(ctx, events.Event{Kind: events.CurrentDocumentChanged, DocumentID: doc.ID, Document: clone(doc)})
	t.Republish(ctx)
	return nil
}

// Clear drops the pointer.
func (t *Tracker) Clear(ctx context.Context) error {
	if err := t.meta.Delete(ctx, metadata.KeyCurrentDocument); err != nil {
		return err
	}
	if err := t.meta.Delete(ctx, metadata.KeyLastDocumentID); err != nil {
		return err
	}

	t.mu.Lock()
	prev := t.current
	t.current = nil
	t.unpublished = false
	t.mu.Unlock()

	e := events.Event{Kind: events.CurrentDocumentCleared}
	if prev != nil {
		e.DocumentID = prev.ID
	}
	t.bus.Publish(ctx, e)
	return nil
}

// Republish retries a publication that has not gone through yet. Placeholders
// and documents without a server id are never published.
func (t *Tracker) Republish(ctx context.Context) {
	t.mu.Lock()
	doc, p, todo := t.current, t.publisher, t.unpublished
	t.mu.Unlock()

	if !todo || p == nil || models.IsPlaceholder(doc) || !doc.HasServerID() {
		return
	}
	if p.PublishCurrent(ctx, doc.ID) {
		t.mu.Lock()
		if t.current != nil && t.current.ID == doc.ID {
			t.unpublished = false
		}
		t.mu.Unlock()
	}
}

// Invalidate marks the pointer as not yet mirrored, e.g. after a new login.
func (t *Tracker) Invalidate() {
	t.mu.Lock()
	t.unpublished = t.current != nil
	t.mu.Unlock()
}

func (t *Tracker) persist(ctx context.Context, doc *models.Document) error {
	if err := metadata.SetJSON(ctx, t.meta, metadata.KeyCurrentDocument, doc); err != nil {
		return err
	}
	return t.meta.Set(ctx, metadata.KeyLastDocumentID, []byte(doc.ID))
}

func (t *Tracker) handle(ctx context.Context, e events.Event) {
	t.mu.Lock()
	cur := t.current
	t.mu.Unlock()
	if cur == nil {
		return
	}

	var err error
	switch e.Kind {
	case events.DocumentDeleted:
		if e.DocumentID == cur.ID {
			err = t.Clear(ctx)
		}
	case events.StorageCleared:
		if slices.Contains(e.DocumentIDs, cur.ID) {
			err = t.Clear(ctx)
		}
	case events.CategoryDeleted:
		if e.DeleteDocs && slices.Contains(e.DocumentIDs, cur.ID) {
			err = t.Clear(ctx)
		}
	case events.DocumentRelabeled:
		if e.PreviousID == cur.ID {
			moved := clone(cur)
			moved.ID = e.DocumentID
			err = t.Set(ctx, moved)
		}
	case events.DocumentSaved:
		if e.DocumentID == cur.ID && e.Document != nil {
			err = t.refresh(ctx, e.Document)
		}
	}
	if err != nil {
		t.logger.Error(ctx, "failed to follow store event", "kind", e.Kind, "error", err)
	}
}

// refresh replaces the snapshot without announcing a pointer change.
func (t *Tracker) refresh(ctx context.Context, doc *models.Document) error {
	if err := t.persist(ctx, doc); err != nil {
		return err
	}
	t.mu.Lock()
	if t.current != nil && t.current.ID == doc.ID {
		t.current = clone(doc)
	}
	t.mu.Unlock()
	return nil
}

func clone(d *models.Document) *models.Document {
	if d == nil {
		return nil
	}
	c := *d
	if d.ShareToken != nil {
		tok := *d.ShareToken
		c.ShareToken = &tok
	}
	return &c
}
