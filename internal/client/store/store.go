// Package store is the local-first document store. Every mutation runs in a
// single SQLite transaction under the store mutex, completes before the call
// returns and is announced on the event bus afterwards. The store has no
// network awareness.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/docsync/internal/client/events"
	"github.com/dmitrijs2005/docsync/internal/client/models"
	"github.com/dmitrijs2005/docsync/internal/client/repositories/categories"
	"github.com/dmitrijs2005/docsync/internal/client/repositories/documents"
	"github.com/dmitrijs2005/docsync/internal/common"
	"github.com/dmitrijs2005/docsync/internal/dbx"
	"github.com/dmitrijs2005/docsync/internal/logging"
	"github.com/dmitrijs2005/docsync/internal/timex"
)

// DB is what the store needs from the database handle.
type DB interface {
	dbx.DBTX
	dbx.TxBeginner
}

// DeleteCategoryOptions is the policy for documents of a deleted category.
// With neither field set they move to the default category.
type DeleteCategoryOptions struct {
	MigrateTo  string
	DeleteDocs bool
}

type Store struct {
	mu     sync.Mutex
	db     DB
	bus    *events.Bus
	clock  timex.Clock
	newID  func() string
	logger logging.Logger
}

type Option func(*Store)

func WithClock(c timex.Clock) Option { return func(s *Store) { s.clock = c } }

func WithIDGenerator(f func() string) Option { return func(s *Store) { s.newID = f } }

func WithLogger(l logging.Logger) Option { return func(s *Store) { s.logger = l } }

func New(db DB, bus *events.Bus, opts ...Option) *Store {
	s := &Store{
		db:     db,
		bus:    bus,
		clock:  timex.SystemClock(),
		newID:  models.NewLocalID,
		logger: logging.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// now is truncated to microseconds, the precision the server keeps.
func (s *Store) now() time.Time {
	return s.clock.Now().UTC().Truncate(time.Microsecond)
}

// mutate runs fn in a transaction under the store lock and publishes the
// collected events once the transaction has committed.
func (s *Store) mutate(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX, emit func(events.Event)) error) error {
	var pending []events.Event
	emit := func(e events.Event) { pending = append(pending, e) }

	s.mu.Lock()
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, tx, emit)
	})
	s.mu.Unlock()
	if err != nil {
		return err
	}

	if s.bus != nil {
		for _, e := range pending {
			s.bus.Publish(ctx, e)
		}
	}
	return nil
}

// Save creates or updates a document. Timestamps from the caller are
// ignored. The name is stored as given; uniqueness compares names by
// NameKey. The category is trimmed. A (name, category) pair already held by
// another document is rejected before anything is written.
func (s *Store) Save(ctx context.Context, in models.Document) (*models.Document, error) {
	doc := in
	doc.Category = models.CategoryOrDefault(strings.TrimSpace(doc.Category))
	check := doc
	check.Name = strings.TrimSpace(check.Name)
	if err := validateDocument(&check); err != nil {
		return nil, err
	}

	err := s.mutate(ctx, func(ctx context.Context, tx dbx.DBTX, emit func(events.Event)) error {
		docs := documents.NewSQLiteRepository(tx)
		now := s.now()

		var existing *models.Document
		if doc.ID != "" {
			found, err := docs.Get(ctx, doc.ID)
			switch {
			case err == nil:
				existing = found
			case !errors.Is(err, common.ErrNotFound):
				return err
			}
		}

		holder, err := docs.FindByName(ctx, doc.Category, doc.Name)
		switch {
		case err == nil && holder.ID != doc.ID:
			return common.NewValidationError("name", common.ErrDuplicate)
		case err != nil && !errors.Is(err, common.ErrNotFound):
			return err
		}

		if doc.ID == "" {
			doc.ID = s.newID()
		}
		doc.UpdatedAt = now
		if existing == nil {
			doc.CreatedAt = now
		} else {
			doc.CreatedAt = existing.CreatedAt
			doc.ShareToken = existing.ShareToken
			doc.IsShared = existing.IsShared
			if !doc.UpdatedAt.After(existing.UpdatedAt) {
				doc.UpdatedAt = existing.UpdatedAt.Add(time.Microsecond)
			}
		}
		doc.Pending = true

		if err := docs.Upsert(ctx, &doc); err != nil {
			return err
		}
		if err := s.ensureCategory(ctx, tx, doc.Category, events.OriginLocal, emit); err != nil {
			return err
		}

		saved := doc
		emit(events.Event{Kind: events.DocumentSaved, DocumentID: doc.ID, Document: &saved})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug(ctx, "document saved", "id", doc.ID)
	return &doc, nil
}

func (s *Store) ensureCategory(ctx context.Context, tx dbx.DBTX, name string, origin events.Origin, emit func(events.Event)) error {
	added, err := categories.NewSQLiteRepository(tx).Add(ctx, name)
	if err != nil {
		return err
	}
	if added {
		emit(events.Event{Kind: events.CategoryAdded, Category: name, Origin: origin})
	}
	return nil
}

// Delete removes a document. Unknown ids yield common.ErrNotFound.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.mutate(ctx, func(ctx context.Context, tx dbx.DBTX, emit func(events.Event)) error {
		docs := documents.NewSQLiteRepository(tx)
		doc, err := docs.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := docs.Delete(ctx, id); err != nil {
			return err
		}
		emit(events.Event{Kind: events.DocumentDeleted, DocumentID: id, Document: doc})
		return nil
	})
}

func (s *Store) Get(ctx context.Context, id string) (*models.Document, error) {
	return documents.NewSQLiteRepository(s.db).Get(ctx, id)
}

func (s *Store) List(ctx context.Context) ([]models.Document, error) {
	return documents.NewSQLiteRepository(s.db).List(ctx)
}

func (s *Store) Categories(ctx context.Context) ([]string, error) {
	return categories.NewSQLiteRepository(s.db).List(ctx)
}

// AddCategory appends a category. Adding an existing one is a no-op.
func (s *Store) AddCategory(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if err := validateCategory(name); err != nil {
		return err
	}
	return s.mutate(ctx, func(ctx context.Context, tx dbx.DBTX, emit func(events.Event)) error {
		return s.ensureCategory(ctx, tx, name, events.OriginLocal, emit)
	})
}

// RenameCategory renames a category and moves its documents along.
func (s *Store) RenameCategory(ctx context.Context, oldName, newName string) error {
	oldName, newName = strings.TrimSpace(oldName), strings.TrimSpace(newName)
	if oldName == common.DefaultCategory || newName == common.DefaultCategory {
		return common.NewValidationError("category", common.ErrDefaultCategory)
	}
	if err := validateCategory(newName); err != nil {
		return err
	}
	if oldName == newName {
		return nil
	}

	return s.mutate(ctx, func(ctx context.Context, tx dbx.DBTX, emit func(events.Event)) error {
		cats := categories.NewSQLiteRepository(tx)
		docs := documents.NewSQLiteRepository(tx)

		exists, err := cats.Exists(ctx, newName)
		if err != nil {
			return err
		}
		if exists {
			return common.NewValidationError("category", common.ErrConflict)
		}

		affected, err := docs.ListByCategory(ctx, oldName)
		if err != nil {
			return err
		}
		if err := cats.Rename(ctx, oldName, newName); err != nil {
			return err
		}
		if _, err := docs.MoveCategory(ctx, oldName, newName, s.now()); err != nil {
			return err
		}

		emit(events.Event{Kind: events.CategoryRenamed, Category: oldName, NewCategory: newName,
			DocumentIDs: ids(affected)})
		return emitMoved(ctx, docs, ids(affected), emit)
	})
}

// emitMoved announces documents whose category changed as saved, so their
// new state is pushed and their pending flag cleared like any other edit.
func emitMoved(ctx context.Context, docs documents.Repository, moved []string, emit func(events.Event)) error {
	for _, id := range moved {
		doc, err := docs.Get(ctx, id)
		if err != nil {
			return err
		}
		emit(events.Event{Kind: events.DocumentSaved, DocumentID: doc.ID, Document: doc})
	}
	return nil
}

// DeleteCategory removes a category. Its documents are deleted when
// opts.DeleteDocs is set, otherwise moved to opts.MigrateTo or to the default
// category.
func (s *Store) DeleteCategory(ctx context.Context, name string, opts DeleteCategoryOptions) error {
	name = strings.TrimSpace(name)
	if name == common.DefaultCategory {
		return common.NewValidationError("category", common.ErrDefaultCategory)
	}
	target := models.CategoryOrDefault(strings.TrimSpace(opts.MigrateTo))
	if !opts.DeleteDocs {
		if target == name {
			return common.NewValidationError("migrate_to", errors.New("must differ from the deleted category"))
		}
		if err := validateCategory(target); err != nil {
			return err
		}
	}

	return s.mutate(ctx, func(ctx context.Context, tx dbx.DBTX, emit func(events.Event)) error {
		cats := categories.NewSQLiteRepository(tx)
		docs := documents.NewSQLiteRepository(tx)

		exists, err := cats.Exists(ctx, name)
		if err != nil {
			return err
		}
		if !exists {
			return common.ErrNotFound
		}

		var affected []string
		if opts.DeleteDocs {
			if affected, err = docs.DeleteByCategory(ctx, name); err != nil {
				return err
			}
		} else {
			list, err := docs.ListByCategory(ctx, name)
			if err != nil {
				return err
			}
			affected = ids(list)
			if err := s.ensureCategory(ctx, tx, target, events.OriginLocal, emit); err != nil {
				return err
			}
			if _, err := docs.MoveCategory(ctx, name, target, s.now()); err != nil {
				return err
			}
		}
		if err := cats.Delete(ctx, name); err != nil {
			return err
		}

		e := events.Event{Kind: events.CategoryDeleted, Category: name, DocumentIDs: affected,
			DeleteDocs: opts.DeleteDocs}
		if opts.DeleteDocs {
			emit(e)
			return nil
		}
		e.MigrateTo = target
		emit(e)
		return emitMoved(ctx, docs, affected, emit)
	})
}

// Relabel swaps a local id for the server-assigned one after a successful
// remote create.
func (s *Store) Relabel(ctx context.Context, localID, serverID string) error {
	return s.mutate(ctx, func(ctx context.Context, tx dbx.DBTX, emit func(events.Event)) error {
		if err := documents.NewSQLiteRepository(tx).Relabel(ctx, localID, serverID); err != nil {
			return err
		}
		emit(events.Event{Kind: events.DocumentRelabeled, DocumentID: serverID, PreviousID: localID})
		return nil
	})
}

// MarkSynced clears the pending flag when the stored version is the one the
// remote store confirmed. A newer local edit keeps the flag.
func (s *Store) MarkSynced(ctx context.Context, id string, updatedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return documents.NewSQLiteRepository(s.db).MarkSynced(ctx, id, updatedAt)
}

// ApplyRemote stores remote-authoritative versions verbatim, timestamps
// included, in one transaction. Documents whose (name, category) is held by
// a document outside the batch are skipped and returned.
func (s *Store) ApplyRemote(ctx context.Context, batch []models.Document) ([]models.Document, error) {
	var skipped []models.Document

	err := s.mutate(ctx, func(ctx context.Context, tx dbx.DBTX, emit func(events.Event)) error {
		skipped = nil
		docs := documents.NewSQLiteRepository(tx)

		for _, d := range batch {
			if err := docs.Delete(ctx, d.ID); err != nil && !errors.Is(err, common.ErrNotFound) {
				return err
			}
		}

		for _, d := range batch {
			doc := d
			doc.Category = models.CategoryOrDefault(doc.Category)
			doc.Pending = false
			if err := docs.Upsert(ctx, &doc); err != nil {
				if errors.Is(err, common.ErrDuplicate) {
					skipped = append(skipped, doc)
					continue
				}
				return err
			}
			if err := s.ensureCategory(ctx, tx, doc.Category, events.OriginRemote, emit); err != nil {
				return err
			}
			saved := doc
			emit(events.Event{Kind: events.DocumentSaved, Origin: events.OriginRemote, DocumentID: doc.ID, Document: &saved})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return skipped, nil
}

// ReplaceCategories rewrites the category set, keeping the default first.
func (s *Store) ReplaceCategories(ctx context.Context, names []string) error {
	return s.mutate(ctx, func(ctx context.Context, tx dbx.DBTX, emit func(events.Event)) error {
		cats := categories.NewSQLiteRepository(tx)
		before, err := cats.List(ctx)
		if err != nil {
			return err
		}
		known := make(map[string]bool, len(before))
		for _, n := range before {
			known[n] = true
		}

		ordered := []string{common.DefaultCategory}
		for _, n := range names {
			if n != common.DefaultCategory {
				ordered = append(ordered, n)
			}
		}
		if err := cats.Replace(ctx, ordered); err != nil {
			return err
		}
		for _, n := range ordered {
			if !known[n] {
				known[n] = true
				emit(events.Event{Kind: events.CategoryAdded, Category: n, Origin: events.OriginRemote})
			}
		}
		return nil
	})
}

// ClearSynced drops documents that are safely stored remotely, keeping
// local-only and pending ones. Used on logout.
func (s *Store) ClearSynced(ctx context.Context) ([]string, error) {
	var removed []string
	err := s.mutate(ctx, func(ctx context.Context, tx dbx.DBTX, emit func(events.Event)) error {
		var err error
		removed, err = documents.NewSQLiteRepository(tx).DeleteSynced(ctx)
		if err != nil {
			return err
		}
		emit(events.Event{Kind: events.StorageCleared, DocumentIDs: removed})
		return nil
	})
	return removed, err
}

// Orphans lists documents holding real work that the remote store does not
// have: non-placeholder, non-empty, and either local-only or pending.
func (s *Store) Orphans(ctx context.Context) ([]models.Document, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.Document
	for i := range all {
		d := &all[i]
		if models.IsPlaceholder(d) || strings.TrimSpace(d.Content) == "" {
			continue
		}
		if !d.HasServerID() || d.Pending {
			out = append(out, *d)
		}
	}
	return out, nil
}

// UniqueName returns name, or name with the smallest " (n)" suffix that is
// free in category.
func (s *Store) UniqueName(ctx context.Context, category, name string) (string, error) {
	docs := documents.NewSQLiteRepository(s.db)
	candidate := name
	for n := 2; ; n++ {
		_, err := docs.FindByName(ctx, category, candidate)
		if errors.Is(err, common.ErrNotFound) {
			return candidate, nil
		}
		if err != nil {
			return "", err
		}
		candidate = fmt.Sprintf("%s (%d)", name, n)
	}
}

func ids(docs []models.Document) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.ID)
	}
	return out
}

var _ DB = (*sql.DB)(nil)
