// Package engine assembles the local-first sync engine: the local store, the
// current-document tracker, the sync coordinator, the merge resolver and the
// recovery manager, driven by the session state machine.
//
// Collaborators (the CLI) call the store directly for every mutation and
// report auth, network and visibility changes to the engine.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/docsync/internal/client/client"
	"github.com/dmitrijs2005/docsync/internal/client/events"
	"github.com/dmitrijs2005/docsync/internal/client/merge"
	"github.com/dmitrijs2005/docsync/internal/client/models"
	"github.com/dmitrijs2005/docsync/internal/client/recovery"
	"github.com/dmitrijs2005/docsync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/docsync/internal/client/session"
	"github.com/dmitrijs2005/docsync/internal/client/store"
	"github.com/dmitrijs2005/docsync/internal/client/syncer"
	"github.com/dmitrijs2005/docsync/internal/client/tracker"
	"github.com/dmitrijs2005/docsync/internal/common"
	"github.com/dmitrijs2005/docsync/internal/logging"
	"github.com/dmitrijs2005/docsync/internal/timex"
)

// Remote is everything the engine reads from and writes to the backend.
type Remote interface {
	syncer.Remote
	merge.Remote
	recovery.Remote
	GetCurrentDocument(ctx context.Context) (string, error)
}

type Engine struct {
	store    *store.Store
	meta     metadata.Repository
	bus      *events.Bus
	tracker  *tracker.Tracker
	sync     *syncer.Coordinator
	merger   *merge.Resolver
	recovery *recovery.Manager
	machine  *session.Machine
	remote   Remote
	logger   logging.Logger

	// mu serializes session transitions.
	mu     sync.Mutex
	detach []func()
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

type options struct {
	clock  timex.Clock
	logger logging.Logger
	newID  func() string
	sync   syncer.Config
}

type Option func(*options)

func WithClock(c timex.Clock) Option { return func(o *options) { o.clock = c } }

func WithLogger(l logging.Logger) Option { return func(o *options) { o.logger = l } }

// WithIDGenerator overrides local id synthesis.
func WithIDGenerator(f func() string) Option { return func(o *options) { o.newID = f } }

func WithSyncConfig(c syncer.Config) Option { return func(o *options) { o.sync = c } }

// New wires the engine over an open local database. Nothing runs until Start.
func New(db store.DB, remote Remote, opts ...Option) *Engine {
	o := options{clock: timex.SystemClock(), logger: logging.NewNop(), sync: syncer.DefaultConfig()}
	for _, f := range opts {
		f(&o)
	}

	bus := events.NewBus()
	storeOpts := []store.Option{store.WithClock(o.clock), store.WithLogger(o.logger)}
	if o.newID != nil {
		storeOpts = append(storeOpts, store.WithIDGenerator(o.newID))
	}
	st := store.New(db, bus, storeOpts...)
	meta := metadata.NewSQLiteRepository(db)

	e := &Engine{
		store:   st,
		meta:    meta,
		bus:     bus,
		machine: session.NewMachine(),
		remote:  remote,
		logger:  o.logger,
	}

	e.tracker = tracker.New(meta, st, bus, o.logger)
	e.sync = syncer.New(remote, st, bus, o.sync,
		syncer.WithClock(o.clock),
		syncer.WithLogger(o.logger),
		syncer.WithOnHalt(e.onHalt),
	)
	e.tracker.SetPublisher(e.sync)
	e.merger = merge.NewResolver(remote, st, e.sync, o.clock, o.logger)
	e.recovery = recovery.NewManager(st, remote, meta, bus, o.clock, o.logger)
	return e
}

func (e *Engine) Store() *store.Store { return e.store }

func (e *Engine) Tracker() *tracker.Tracker { return e.tracker }

func (e *Engine) Recovery() *recovery.Manager { return e.recovery }

func (e *Engine) Events() *events.Bus { return e.bus }

func (e *Engine) State() session.State { return e.machine.State() }

// Pending lists queued sync operations in FIFO order.
func (e *Engine) Pending() []syncer.Entry { return e.sync.Pending() }

// Flush sends every due queued operation now.
func (e *Engine) Flush(ctx context.Context) error { return e.sync.ProcessQueue(ctx) }

// Start subscribes the components to store events, restores the current
// document and runs the sync loop until Close. A session persisted by a
// previous run is resumed; otherwise local work is scanned for orphans.
func (e *Engine) Start(ctx context.Context) error {
	return e.start(ctx, true)
}

func (e *Engine) start(ctx context.Context, loop bool) error {
	e.detach = append(e.detach, e.tracker.Attach(), e.sync.Attach())

	if _, err := e.tracker.Restore(ctx); err != nil {
		return fmt.Errorf("failed to restore current document: %w", err)
	}

	if loop {
		runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		e.cancel = cancel
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.sync.Run(runCtx)
		}()
	}

	resumed, err := e.resume(ctx)
	if err != nil {
		return err
	}
	if !resumed {
		e.scan(ctx)
	}
	return nil
}

// Close stops the sync loop and detaches from the bus.
func (e *Engine) Close() {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
	for _, f := range e.detach {
		f()
	}
	e.detach = nil
}

func (e *Engine) resume(ctx context.Context) (bool, error) {
	status, err := e.meta.Get(ctx, metadata.KeySessionStatus)
	if err != nil {
		return false, err
	}
	token, err := e.meta.Get(ctx, metadata.KeyToken)
	if err != nil {
		return false, err
	}
	if session.ParseStatus(string(status)) != session.Authenticated || len(token) == 0 {
		return false, nil
	}
	user, err := e.meta.Get(ctx, metadata.KeyUser)
	if err != nil {
		return false, err
	}
	if err := e.AuthChanged(ctx, string(token), string(user), true); err != nil {
		if errors.Is(err, common.ErrUnauthorized) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// BeginAuth marks a login attempt in progress.
func (e *Engine) BeginAuth(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, err := e.machine.Transition(session.Authenticating, "", "")
	return err
}

// AuthChanged reports the outcome of authentication. A new token for an
// already authenticated session replaces the credentials and restarts
// in-flight work under them.
func (e *Engine) AuthChanged(ctx context.Context, token, user string, authenticated bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	cur := e.machine.State()
	if !authenticated {
		if cur.Status == session.Guest {
			return nil
		}
		return e.enterGuestLocked(ctx, false)
	}
	if token == "" {
		return fmt.Errorf("%w: empty token", common.ErrUnauthorized)
	}

	switch cur.Status {
	case session.Authenticated:
		if err := e.machine.Refresh(token, user); err != nil {
			return err
		}
		if err := e.persistSession(ctx, e.machine.State()); err != nil {
			return err
		}
		e.sync.OnAuthChanged(ctx, e.machine.State())
		return nil
	case session.Guest:
		if _, err := e.machine.Transition(session.Authenticating, token, user); err != nil {
			return err
		}
	}

	if _, err := e.machine.Transition(session.Authenticated, token, user); err != nil {
		return err
	}
	return e.enterAuthenticatedLocked(ctx)
}

func (e *Engine) enterAuthenticatedLocked(ctx context.Context) error {
	st := e.machine.State()
	if err := e.persistSession(ctx, st); err != nil {
		return err
	}
	e.sync.OnAuthChanged(ctx, st)
	e.tracker.Invalidate()
	e.logger.Info(ctx, "session authenticated", "user", st.User)

	if err := e.reconcileLocked(ctx, st); errors.Is(err, common.ErrUnauthorized) {
		return err
	}
	e.restoreRemoteCurrent(ctx, st)
	e.tracker.Republish(ctx)
	e.scanCollisionsLocked(ctx, st)
	return nil
}

// reconcileLocked runs one merge pass. A rejected token ends the session;
// other failures are logged and left for the next trigger.
func (e *Engine) reconcileLocked(ctx context.Context, st session.State) error {
	res, err := e.merger.Reconcile(ctx, st)
	if err != nil {
		if errors.Is(err, common.ErrUnauthorized) {
			e.logger.Warn(ctx, "credentials rejected during merge")
			_ = e.enterGuestLocked(ctx, false)
			return err
		}
		e.logger.Warn(ctx, "merge deferred", "error", err)
		return err
	}
	e.recovery.Report(ctx, res.Collisions)
	return nil
}

// restoreRemoteCurrent adopts the remote current-document pointer when the
// local one is unset.
func (e *Engine) restoreRemoteCurrent(ctx context.Context, st session.State) {
	if e.tracker.Current() != nil {
		return
	}
	id, err := e.remote.GetCurrentDocument(client.WithToken(ctx, st.Token))
	if err != nil || id == "" {
		if err != nil && !errors.Is(err, common.ErrNotFound) {
			e.logger.Debug(ctx, "remote current document unavailable", "error", err)
		}
		return
	}
	doc, err := e.store.Get(ctx, id)
	if err != nil {
		return
	}
	if err := e.tracker.Set(ctx, doc); err != nil {
		e.logger.Warn(ctx, "failed to adopt remote current document", "id", id, "error", err)
	}
}

// Logout is an explicit sign-out: sync halts, documents safely stored
// remotely are removed locally and unsynced work stays.
func (e *Engine) Logout(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.machine.Transition(session.LogoutRequested, "", ""); err != nil {
		return err
	}
	e.sync.OnAuthChanged(ctx, e.machine.State())

	removed, err := e.store.ClearSynced(ctx)
	if err != nil {
		e.logger.Error(ctx, "failed to clear synced documents", "error", err)
	} else {
		e.logger.Info(ctx, "local storage cleared", "removed", len(removed))
	}

	if err := e.enterGuestLocked(ctx, true); err != nil {
		return err
	}
	e.scanOrphansLocked(ctx)
	return nil
}

// ForceLogout ends the session without touching local documents, as after
// a rejected token.
func (e *Engine) ForceLogout(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.machine.State().Status == session.Guest {
		return nil
	}
	if err := e.enterGuestLocked(ctx, false); err != nil {
		return err
	}
	e.scanOrphansLocked(ctx)
	return nil
}

// enterGuestLocked halts the coordinator first, then records the session
// end. An explicit logout records the guest status; an auth failure keeps
// the authenticated marker so the orphan scan knows a session was lost.
func (e *Engine) enterGuestLocked(ctx context.Context, explicit bool) error {
	e.sync.OnAuthChanged(ctx, session.GuestState())

	if _, err := e.machine.Transition(session.Guest, "", ""); err != nil {
		return err
	}
	if err := e.meta.Delete(ctx, metadata.KeyToken); err != nil {
		return err
	}
	if explicit {
		if err := e.meta.Set(ctx, metadata.KeySessionStatus, []byte(session.Guest)); err != nil {
			return err
		}
		if err := e.meta.Delete(ctx, metadata.KeyUser); err != nil {
			return err
		}
	}
	e.logger.Info(ctx, "session ended", "explicit", explicit)
	return nil
}

func (e *Engine) persistSession(ctx context.Context, st session.State) error {
	if err := e.meta.Set(ctx, metadata.KeySessionStatus, []byte(st.Status)); err != nil {
		return err
	}
	if err := e.meta.Set(ctx, metadata.KeyToken, []byte(st.Token)); err != nil {
		return err
	}
	return e.meta.Set(ctx, metadata.KeyUser, []byte(st.User))
}

// onHalt runs on the sync loop after the backend rejected the token.
func (e *Engine) onHalt(ctx context.Context) {
	if err := e.ForceLogout(ctx); err != nil {
		e.logger.Error(ctx, "failed to end rejected session", "error", err)
	}
}

// NetworkOnline reconciles after a reconnect, drains the queue and scans.
func (e *Engine) NetworkOnline(ctx context.Context) {
	e.mu.Lock()
	st := e.machine.State()
	if st.IsAuthenticated() {
		if err := e.reconcileLocked(ctx, st); err == nil {
			e.tracker.Republish(ctx)
		}
	}
	e.mu.Unlock()

	e.drain(ctx)
	e.scan(ctx)
}

// VisibilityRegained drains the queue and scans.
func (e *Engine) VisibilityRegained(ctx context.Context) {
	e.drain(ctx)
	e.scan(ctx)
}

// Sync runs a merge pass on demand and drains the queue.
func (e *Engine) Sync(ctx context.Context) error {
	e.mu.Lock()
	st := e.machine.State()
	if !st.IsAuthenticated() {
		e.mu.Unlock()
		return common.ErrUnauthorized
	}
	err := e.reconcileLocked(ctx, st)
	e.mu.Unlock()
	if err != nil {
		return err
	}
	return e.sync.ProcessQueue(ctx)
}

func (e *Engine) drain(ctx context.Context) {
	if err := e.sync.ProcessQueue(ctx); err != nil {
		e.logger.Debug(ctx, "queue drain interrupted", "error", err)
	}
}

func (e *Engine) scan(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := e.machine.State()
	if st.IsAuthenticated() {
		e.scanCollisionsLocked(ctx, st)
		return
	}
	e.scanOrphansLocked(ctx)
}

func (e *Engine) scanOrphansLocked(ctx context.Context) {
	st := e.machine.State()
	if token, err := e.meta.Get(ctx, metadata.KeyToken); err == nil {
		st.Token = string(token)
	}
	if _, err := e.recovery.ScanOrphans(ctx, st); err != nil {
		e.logger.Warn(ctx, "orphan scan failed", "error", err)
	}
}

func (e *Engine) scanCollisionsLocked(ctx context.Context, st session.State) {
	_, err := e.recovery.ScanCollisions(ctx, st)
	switch {
	case err == nil:
	case errors.Is(err, common.ErrUnauthorized):
		_ = e.enterGuestLocked(ctx, false)
	default:
		e.logger.Warn(ctx, "collision scan failed", "error", err)
	}
}

// Records lists unresolved recovery records.
func (e *Engine) Records() []models.RecoveryRecord { return e.recovery.Records() }

// Accept resolves a recovery record by keeping its content.
func (e *Engine) Accept(ctx context.Context, i int) (*models.Document, error) {
	return e.recovery.Accept(ctx, e.State(), i)
}

// Discard resolves a recovery record by dropping its content.
func (e *Engine) Discard(ctx context.Context, i int) error {
	return e.recovery.Discard(ctx, e.State(), i)
}
