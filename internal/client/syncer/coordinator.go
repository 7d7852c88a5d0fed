// Package syncer pushes local mutations to the remote store. Store events are
// translated into queued operations which are coalesced per key, sent in
// FIFO order and retried with capped exponential backoff.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/dmitrijs2005/docsync/internal/client/client"
	"github.com/dmitrijs2005/docsync/internal/client/events"
	"github.com/dmitrijs2005/docsync/internal/client/models"
	"github.com/dmitrijs2005/docsync/internal/client/session"
	"github.com/dmitrijs2005/docsync/internal/common"
	"github.com/dmitrijs2005/docsync/internal/logging"
	"github.com/dmitrijs2005/docsync/internal/timex"
	"github.com/sethvargo/go-retry"
)

// Remote is the part of the backend API the coordinator writes to.
type Remote interface {
	CreateDocument(ctx context.Context, doc models.Document) (*models.Document, error)
	UpdateDocument(ctx context.Context, doc models.Document) (*models.Document, error)
	DeleteDocument(ctx context.Context, id string) error
	SetCurrentDocument(ctx context.Context, id string) error
	CreateCategory(ctx context.Context, name string) error
	RenameCategory(ctx context.Context, oldName, newName string) error
	DeleteCategory(ctx context.Context, name, migrateTo string, deleteDocs bool) error
}

// Store is the part of the local store the coordinator may touch.
type Store interface {
	Relabel(ctx context.Context, localID, serverID string) error
	MarkSynced(ctx context.Context, id string, updatedAt time.Time) (bool, error)
}

type Config struct {
	// MaxAttempts is the number of consecutive network failures after which
	// a pending-changes warning is raised. Retries continue regardless.
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func DefaultConfig() Config {
	return Config{MaxAttempts: 5, BaseDelay: time.Second, MaxDelay: time.Minute}
}

type Coordinator struct {
	remote Remote
	store  Store
	bus    *events.Bus
	cfg    Config
	clock  timex.Clock
	logger logging.Logger
	onHalt func(ctx context.Context)

	mu       sync.Mutex
	state    session.State
	gen      uint64
	seq      uint64
	queue    []*Entry
	byKey    map[string]*Entry
	inflight map[string]uint64
	// aliases maps promoted local ids to their server ids so late operations
	// on a local id reach the right remote document.
	aliases map[string]string

	signal chan struct{}
}

type Option func(*Coordinator)

func WithClock(c timex.Clock) Option { return func(s *Coordinator) { s.clock = c } }

func WithLogger(l logging.Logger) Option { return func(s *Coordinator) { s.logger = l } }

// WithOnHalt registers the hook invoked when the remote store rejects the
// credentials. The queue has already been dropped when it runs.
func WithOnHalt(f func(ctx context.Context)) Option { return func(s *Coordinator) { s.onHalt = f } }

func New(remote Remote, store Store, bus *events.Bus, cfg Config, opts ...Option) *Coordinator {
	def := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = def.BaseDelay
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = max(def.MaxDelay, cfg.BaseDelay)
	}

	c := &Coordinator{
		remote:   remote,
		store:    store,
		bus:      bus,
		cfg:      cfg,
		clock:    timex.SystemClock(),
		logger:   logging.NewNop(),
		state:    session.GuestState(),
		byKey:    make(map[string]*Entry),
		inflight: make(map[string]uint64),
		aliases:  make(map[string]string),
		signal:   make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Attach subscribes the coordinator to store events.
func (c *Coordinator) Attach() func() {
	return c.bus.Subscribe(c.handle)
}

func (c *Coordinator) newBackoff() retry.Backoff {
	return retry.WithCappedDuration(c.cfg.MaxDelay, retry.NewExponential(c.cfg.BaseDelay))
}

// OnAuthChanged installs a new session. Every call invalidates in-flight
// work; leaving the authenticated state also drops the queue.
func (c *Coordinator) OnAuthChanged(ctx context.Context, s session.State) {
	c.mu.Lock()
	c.gen++
	c.state = s
	if !s.IsAuthenticated() {
		c.dropLocked()
	}
	c.mu.Unlock()

	if s.IsAuthenticated() {
		c.wake()
	}
	c.logger.Debug(ctx, "sync session changed", "status", s.Status)
}

func (c *Coordinator) dropLocked() {
	c.queue = nil
	c.byKey = make(map[string]*Entry)
	c.inflight = make(map[string]uint64)
	c.aliases = make(map[string]string)
}

func (c *Coordinator) wake() {
	select {
	case c.signal <- struct{}{}:
	default:
	}
}

// Enqueue queues op. It returns false when signed out.
func (c *Coordinator) Enqueue(ctx context.Context, op Op) bool {
	c.mu.Lock()
	if !c.state.IsAuthenticated() {
		c.mu.Unlock()
		return false
	}

	if op.isDocument() {
		if serverID, ok := c.aliases[op.DocumentID]; ok {
			op = withDocumentID(op, serverID)
			if op.Kind == OpCreate {
				op.Kind = OpUpdate
			}
		}
	}
	key := keyOf(op, c.seq+1)
	if op.Kind == OpCategoryRename || op.Kind == OpCategoryDelete {
		c.pinCategoryCreatesLocked()
	}

	if op.Kind == OpDelete && models.IsLocalID(op.DocumentID) && !c.busyLocked(key) {
		if e, ok := c.byKey[key]; ok {
			c.removeLocked(e)
		}
		c.mu.Unlock()
		return true
	}

	if e, ok := c.byKey[key]; ok {
		merged, keep := coalesce(e.Op, op)
		if keep {
			e.Op = merged
		} else {
			c.removeLocked(e)
		}
	} else {
		c.pushLocked(&Entry{Key: key, Op: op, NextAttemptAt: c.clock.Now(), backoff: c.newBackoff()})
	}
	c.mu.Unlock()

	c.wake()
	c.logger.Debug(ctx, "sync op queued", "op", op.Kind, "key", key)
	return true
}

// PublishCurrent queues a set-current operation.
func (c *Coordinator) PublishCurrent(ctx context.Context, documentID string) bool {
	return c.Enqueue(ctx, Op{Kind: OpSetCurrent, DocumentID: documentID})
}

func keyOf(op Op, seq uint64) string {
	switch {
	case op.isDocument():
		return docKey(op.DocumentID)
	case op.Kind == OpSetCurrent:
		return currentKey
	case op.Kind == OpCategoryCreate:
		return categoryCreateKey(op.Category)
	default:
		// Renames and deletes are order-sensitive and never coalesce.
		return fmt.Sprintf("category:%d", seq)
	}
}

func categoryCreateKey(name string) string {
	return "category-create:" + common.NameKey(name)
}

// pinCategoryCreatesLocked gives queued category creates a unique key so a
// later create of the same name is not merged ahead of a rename or delete.
func (c *Coordinator) pinCategoryCreatesLocked() {
	for _, e := range c.queue {
		if e.Op.Kind != OpCategoryCreate || e.Key != categoryCreateKey(e.Op.Category) {
			continue
		}
		if c.byKey[e.Key] == e {
			delete(c.byKey, e.Key)
		}
		e.Key = fmt.Sprintf("category:%d", e.seq)
		c.byKey[e.Key] = e
	}
}

func withDocumentID(op Op, id string) Op {
	op.DocumentID = id
	if op.Document != nil {
		d := *op.Document
		d.ID = id
		op.Document = &d
	}
	return op
}

func (c *Coordinator) pushLocked(e *Entry) {
	c.seq++
	e.seq = c.seq
	c.queue = append(c.queue, e)
	c.byKey[e.Key] = e
}

// requeueLocked puts a failed entry back at its original position, merged
// with whatever was queued for the key meanwhile.
func (c *Coordinator) requeueLocked(e *Entry) {
	if newer, ok := c.byKey[e.Key]; ok {
		c.removeLocked(newer)
		merged, keep := coalesce(e.Op, newer.Op)
		if !keep {
			return
		}
		e.Op = merged
	}
	i, _ := slices.BinarySearchFunc(c.queue, e.seq, func(x *Entry, seq uint64) int {
		switch {
		case x.seq < seq:
			return -1
		case x.seq > seq:
			return 1
		}
		return 0
	})
	c.queue = slices.Insert(c.queue, i, e)
	c.byKey[e.Key] = e
}

func (c *Coordinator) removeLocked(e *Entry) {
	c.queue = slices.DeleteFunc(c.queue, func(x *Entry) bool { return x == e })
	if c.byKey[e.Key] == e {
		delete(c.byKey, e.Key)
	}
}

// busyLocked reports whether key has an operation in flight for the live
// session.
func (c *Coordinator) busyLocked(key string) bool {
	g, ok := c.inflight[key]
	return ok && g == c.gen
}

// Pending returns a snapshot of the queued entries in send order.
func (c *Coordinator) Pending() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Entry, 0, len(c.queue))
	for _, e := range c.queue {
		out = append(out, *e)
	}
	return out
}

// next takes the first due entry whose key is not in flight.
func (c *Coordinator) next() (*Entry, uint64, session.State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.IsAuthenticated() {
		return nil, 0, session.State{}, false
	}
	now := c.clock.Now()
	for _, e := range c.queue {
		if c.busyLocked(e.Key) || e.NextAttemptAt.After(now) {
			continue
		}
		c.removeLocked(e)
		c.inflight[e.Key] = c.gen
		return e, c.gen, c.state, true
	}
	return nil, 0, session.State{}, false
}

// ProcessQueue sends every entry that is due now, one at a time. Failed
// entries are rescheduled and not retried within the same call.
func (c *Coordinator) ProcessQueue(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		e, gen, st, ok := c.next()
		if !ok {
			return nil
		}
		res, err := c.execute(client.WithToken(ctx, st.Token), e.Op)
		c.complete(ctx, e, gen, res, err)
	}
}

func (c *Coordinator) execute(ctx context.Context, op Op) (*models.Document, error) {
	switch op.Kind {
	case OpCreate:
		return c.remote.CreateDocument(ctx, *op.Document)
	case OpUpdate:
		return c.remote.UpdateDocument(ctx, *op.Document)
	case OpDelete:
		return nil, c.remote.DeleteDocument(ctx, op.DocumentID)
	case OpSetCurrent:
		return nil, c.remote.SetCurrentDocument(ctx, op.DocumentID)
	case OpCategoryCreate:
		err := c.remote.CreateCategory(ctx, op.Category)
		if errors.Is(err, common.ErrConflict) {
			return nil, nil
		}
		return nil, err
	case OpCategoryRename:
		return nil, c.remote.RenameCategory(ctx, op.Category, op.NewCategory)
	case OpCategoryDelete:
		return nil, c.remote.DeleteCategory(ctx, op.Category, op.MigrateTo, op.DeleteDocs)
	default:
		return nil, fmt.Errorf("unknown sync op %q", op.Kind)
	}
}

// stale reports whether gen no longer matches the live session.
func (c *Coordinator) stale(gen uint64) bool {
	return gen != c.gen || !c.state.IsAuthenticated()
}

func (c *Coordinator) complete(ctx context.Context, e *Entry, gen uint64, res *models.Document, err error) {
	defer c.wake()

	c.mu.Lock()
	if c.inflight[e.Key] == gen {
		delete(c.inflight, e.Key)
	}
	if c.stale(gen) {
		c.mu.Unlock()
		return
	}

	switch {
	case err == nil:
		c.mu.Unlock()
		c.succeeded(ctx, e, gen, res)

	case errors.Is(err, common.ErrUnauthorized):
		c.gen++
		c.state = session.GuestState()
		c.dropLocked()
		c.mu.Unlock()
		c.logger.Warn(ctx, "credentials rejected, sync halted", "op", e.Op.Kind, "key", e.Key)
		if c.onHalt != nil {
			c.onHalt(ctx)
		}

	case errors.Is(err, common.ErrUnavailable), errors.Is(err, context.Canceled):
		warn := false
		if !errors.Is(err, context.Canceled) {
			e.Attempts++
			delay, _ := e.backoff.Next()
			e.NextAttemptAt = c.clock.Now().Add(delay)
			if e.Attempts >= c.cfg.MaxAttempts && !e.warned {
				e.warned = true
				warn = true
			}
		}
		c.requeueLocked(e)
		pending := len(c.queue)
		c.mu.Unlock()

		c.logger.Warn(ctx, "sync op deferred", "op", e.Op.Kind, "key", e.Key, "attempts", e.Attempts,
			"next_attempt_at", e.NextAttemptAt, "error", err)
		if warn && c.bus != nil {
			c.bus.Publish(ctx, events.Event{Kind: events.PendingChanges, DocumentID: e.Op.DocumentID, Pending: pending})
		}

	case errors.Is(err, common.ErrNotFound) && (e.Op.Kind == OpUpdate || e.Op.Kind == OpDelete):
		c.mu.Unlock()
		c.logger.Info(ctx, "remote document gone, op resolved", "op", e.Op.Kind, "id", e.Op.DocumentID)

	default:
		c.mu.Unlock()
		c.logger.Error(ctx, "sync op rejected", "op", e.Op.Kind, "key", e.Key, "error", err)
	}
}

func (c *Coordinator) succeeded(ctx context.Context, e *Entry, gen uint64, res *models.Document) {
	switch e.Op.Kind {
	case OpCreate:
		if res == nil || res.ID == "" {
			c.logger.Error(ctx, "create returned no id", "key", e.Key)
			return
		}
		localID, serverID := e.Op.DocumentID, res.ID

		c.mu.Lock()
		if c.stale(gen) {
			c.mu.Unlock()
			return
		}
		c.rekeyLocked(localID, serverID)
		c.mu.Unlock()

		if err := c.store.Relabel(ctx, localID, serverID); err != nil {
			if !errors.Is(err, common.ErrNotFound) {
				c.logger.Error(ctx, "failed to relabel document", "local_id", localID, "id", serverID, "error", err)
			}
			return
		}
		c.markSynced(ctx, serverID, e.Op.Document.UpdatedAt)

	case OpUpdate:
		c.markSynced(ctx, e.Op.DocumentID, e.Op.Document.UpdatedAt)
	}
}

func (c *Coordinator) markSynced(ctx context.Context, id string, updatedAt time.Time) {
	ok, err := c.store.MarkSynced(ctx, id, updatedAt)
	if err != nil {
		c.logger.Error(ctx, "failed to mark document synced", "id", id, "error", err)
		return
	}
	if !ok {
		c.logger.Debug(ctx, "document changed while in flight", "id", id)
	}
}

// rekeyLocked moves a queued entry of a promoted local id to its server id.
// A queued create becomes an update.
func (c *Coordinator) rekeyLocked(localID, serverID string) {
	c.aliases[localID] = serverID

	e, ok := c.byKey[docKey(localID)]
	if !ok {
		return
	}
	delete(c.byKey, e.Key)
	e.Op = withDocumentID(e.Op, serverID)
	if e.Op.Kind == OpCreate {
		e.Op.Kind = OpUpdate
	}
	e.Key = docKey(serverID)

	if existing, ok := c.byKey[e.Key]; ok {
		merged, keep := coalesce(e.Op, existing.Op)
		c.removeLocked(e)
		if keep {
			existing.Op = merged
		} else {
			c.removeLocked(existing)
		}
		return
	}
	c.byKey[e.Key] = e
}

// nextDue returns the earliest attempt time among queued entries that are
// not in flight. Busy keys are picked up again through the wake-up sent
// when their operation completes.
func (c *Coordinator) nextDue() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.IsAuthenticated() {
		return time.Time{}, false
	}
	var due time.Time
	found := false
	for _, e := range c.queue {
		if c.busyLocked(e.Key) {
			continue
		}
		if !found || e.NextAttemptAt.Before(due) {
			due, found = e.NextAttemptAt, true
		}
	}
	return due, found
}

// Run drains the queue whenever something is enqueued or an entry becomes
// due, until ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context) {
	for {
		if err := c.ProcessQueue(ctx); err != nil {
			return
		}

		var timer *time.Timer
		var fire <-chan time.Time
		if due, ok := c.nextDue(); ok {
			timer = time.NewTimer(max(due.Sub(c.clock.Now()), 0))
			fire = timer.C
		}

		select {
		case <-ctx.Done():
		case <-c.signal:
		case <-fire:
		}
		if timer != nil {
			timer.Stop()
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// handle translates store events into operations. Remote-origin events
// describe state the backend already has.
func (c *Coordinator) handle(ctx context.Context, e events.Event) {
	if e.Origin == events.OriginRemote {
		return
	}

	switch e.Kind {
	case events.DocumentSaved:
		if e.Document == nil || models.IsPlaceholder(e.Document) {
			return
		}
		doc := *e.Document
		kind := OpUpdate
		if !doc.HasServerID() {
			kind = OpCreate
		}
		c.Enqueue(ctx, Op{Kind: kind, DocumentID: doc.ID, Document: &doc})
	case events.DocumentDeleted:
		c.Enqueue(ctx, Op{Kind: OpDelete, DocumentID: e.DocumentID})
	case events.CategoryAdded:
		c.Enqueue(ctx, Op{Kind: OpCategoryCreate, Category: e.Category})
	case events.CategoryRenamed:
		c.Enqueue(ctx, Op{Kind: OpCategoryRename, Category: e.Category, NewCategory: e.NewCategory})
	case events.CategoryDeleted:
		c.Enqueue(ctx, Op{Kind: OpCategoryDelete, Category: e.Category, MigrateTo: e.MigrateTo, DeleteDocs: e.DeleteDocs})
	}
}
