// Package events is the typed notification channel between the local store
// and its consumers: the sync coordinator, the current-document tracker and
// the CLI.
package events

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/docsync/internal/client/models"
)

type Kind string

const (
	DocumentSaved          Kind = "document-saved"
	DocumentDeleted        Kind = "document-deleted"
	DocumentRelabeled      Kind = "document-relabeled"
	CategoryAdded          Kind = "category-added"
	CategoryRenamed        Kind = "category-renamed"
	CategoryDeleted        Kind = "category-deleted"
	CurrentDocumentChanged Kind = "current-document-changed"
	CurrentDocumentCleared Kind = "current-document-cleared"
	StorageCleared         Kind = "storage-cleared"
	RecoveryAvailable      Kind = "recovery-available"
	PendingChanges         Kind = "pending-changes"
)

// Origin tells whether a change was made by the user or applied from the
// remote store. Remote-origin changes are never pushed back.
type Origin string

const (
	OriginLocal  Origin = "local"
	OriginRemote Origin = "remote"
)

// Event is a single notification. Which fields are set depends on Kind.
type Event struct {
	Kind   Kind
	Origin Origin

	// DocumentID is the affected document. For DocumentRelabeled it is the
	// new server id and PreviousID holds the local id.
	DocumentID string
	PreviousID string
	Document   *models.Document

	// DocumentIDs lists documents touched by a category operation or by a
	// storage clear.
	DocumentIDs []string

	Category    string
	NewCategory string
	MigrateTo   string
	DeleteDocs  bool

	Records []models.RecoveryRecord
	// Pending counts entries that exceeded their retry budget.
	Pending int
}

// Handler receives events synchronously, in publication order.
type Handler func(ctx context.Context, e Event)

// Bus fans events out to subscribers.
type Bus struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[int]Handler
	order    []int
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[int]Handler)}
}

// Subscribe registers h and returns a function that removes it.
func (b *Bus) Subscribe(h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.handlers[id] = h
	b.order = append(b.order, id)

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers, id)
		for i, v := range b.order {
			if v == id {
				b.order = append(b.order[:i], b.order[i+1:]...)
				break
			}
		}
	}
}

// Publish delivers e to every subscriber in subscription order. Handlers
// may publish further events.
func (b *Bus) Publish(ctx context.Context, e Event) {
	if e.Origin == "" {
		e.Origin = OriginLocal
	}

	b.mu.RLock()
	hs := make([]Handler, 0, len(b.order))
	for _, id := range b.order {
		hs = append(hs, b.handlers[id])
	}
	b.mu.RUnlock()

	for _, h := range hs {
		h(ctx, e)
	}
}

// Recorder collects events; handy in tests and for the CLI notice feed.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Handle(_ context.Context, e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Drain returns the collected events and resets the recorder.
func (r *Recorder) Drain() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.events
	r.events = nil
	return out
}

// Kinds lists the kinds of the collected events without draining them.
func (r *Recorder) Kinds() []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Kind, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Kind)
	}
	return out
}
