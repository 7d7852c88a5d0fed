package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/docsync/internal/client/client"
	"github.com/dmitrijs2005/docsync/internal/client/config"
	"github.com/dmitrijs2005/docsync/internal/client/engine"
	"github.com/dmitrijs2005/docsync/internal/client/events"
	"github.com/dmitrijs2005/docsync/internal/client/models"
	"github.com/dmitrijs2005/docsync/internal/client/services"
	"github.com/dmitrijs2005/docsync/internal/client/session"
	"github.com/dmitrijs2005/docsync/internal/client/storage"
	"github.com/dmitrijs2005/docsync/internal/client/syncer"
	"github.com/dmitrijs2005/docsync/internal/logging"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// Engine is the part of the sync engine the REPL drives.
type Engine interface {
	Start(ctx context.Context) error
	Close()
	State() session.State
	Events() *events.Bus
	Pending() []syncer.Entry
	Sync(ctx context.Context) error
	NetworkOnline(ctx context.Context)
	VisibilityRegained(ctx context.Context)
	Records() []models.RecoveryRecord
	Accept(ctx context.Context, i int) (*models.Document, error)
	Discard(ctx context.Context, i int) error
}

type App struct {
	config  *config.Config
	engine  Engine
	auth    services.AuthService
	docs    services.DocumentService
	logger  logging.Logger
	reader  *bufio.Reader
	closers []func() error

	// mu guards Mode and writes to out; notices arrive from the sync loop.
	mu   sync.Mutex
	Mode Mode
	out  io.Writer
}

// NewApp opens the local database and wires the engine, the REST client
// and the health probe.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	db, err := storage.Open(ctx, c.DatabasePath)
	if err != nil {
		logger.Error(ctx, "error initializing database", "error", err)
		return nil, err
	}

	health, err := client.NewHealthChecker(c.HealthAddr)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	api := client.NewHTTPClient(c.ServerURL)
	eng := engine.New(db, api,
		engine.WithLogger(logger),
		engine.WithSyncConfig(syncer.Config{
			MaxAttempts: c.MaxSyncAttempts,
			BaseDelay:   c.SyncBaseDelay,
			MaxDelay:    c.SyncMaxDelay,
		}),
	)

	as := services.NewAuthService(api, health, eng)
	ds := services.NewDocumentService(eng.Store(), eng.Tracker(), api, eng.State)

	a := newApp(c, eng, as, ds, logger, bufio.NewReader(os.Stdin), os.Stdout)
	a.closers = append(a.closers, db.Close)
	return a, nil
}

func newApp(c *config.Config, eng Engine, as services.AuthService, ds services.DocumentService,
	logger logging.Logger, r *bufio.Reader, out io.Writer) *App {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &App{
		config: c,
		engine: eng,
		auth:   as,
		docs:   ds,
		logger: logger,
		reader: r,
		out:    out,
		Mode:   ModeOffline,
	}
}

func (a *App) setMode(mode Mode) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.Mode == mode {
		return false
	}
	a.Mode = mode
	a.logger.Info(context.Background(), "connectivity changed", "mode", mode)
	return true
}

func (a *App) mode() Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Mode
}

func (a *App) printf(format string, args ...any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fmt.Fprintf(a.out, format, args...)
}

func (a *App) println(args ...any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fmt.Fprintln(a.out, args...)
}

// notify prints engine notices the user has to act on.
func (a *App) notify(_ context.Context, e events.Event) {
	switch e.Kind {
	case events.RecoveryAvailable:
		a.printf("! %d document(s) need recovery, type 'recover' to review\n", len(e.Records))
	case events.PendingChanges:
		a.printf("! %d change(s) could not be sent yet, they will be retried\n", e.Pending)
	}
}

// Run starts the engine and the connectivity watcher, then blocks in the
// REPL until the user exits.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	unsubscribe := a.engine.Events().Subscribe(a.notify)
	defer unsubscribe()

	if err := a.engine.Start(ctx); err != nil {
		return err
	}
	defer a.Close(ctx)

	go a.StartOnlineStatusWatcher(ctx, a.config.OnlineCheckInterval)

	runREPL(ctx, a, a.status, bufio.NewScanner(a.reader))
	return nil
}

// Close stops the engine and releases the probe and the database.
func (a *App) Close(ctx context.Context) {
	a.engine.Close()
	if err := a.auth.Close(ctx); err != nil {
		a.logger.Warn(ctx, "failed to close health probe", "error", err)
	}
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.logger.Warn(ctx, "failed to close resource", "error", err)
		}
	}
	a.closers = nil
}

// Snapshot stores unsynced work on the server before an abnormal exit.
func (a *App) Snapshot(ctx context.Context) {
	n, err := a.docs.Snapshot(ctx)
	if err != nil {
		a.logger.Error(ctx, "snapshot incomplete", "error", err)
	}
	a.logger.Info(ctx, "snapshot stored", "documents", n)
}

func (a *App) isLoggedIn() bool {
	return a.engine.State().IsAuthenticated()
}

func (a *App) status() string {
	st := a.engine.State()
	if st.IsAuthenticated() {
		return fmt.Sprintf("%s@%s", st.User, a.mode())
	}
	return fmt.Sprintf("%s@%s", st.Status, a.mode())
}

// StartOnlineStatusWatcher probes the backend every interval. Coming back
// online makes the engine reconcile and drain its queue.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.checkOnline(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) checkOnline(ctx context.Context) {
	if err := a.auth.Ping(ctx); err != nil {
		a.setMode(ModeOffline)
		return
	}
	if a.setMode(ModeOnline) {
		a.engine.NetworkOnline(ctx)
	}
}
