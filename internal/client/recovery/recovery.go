// Package recovery surfaces local work that no session claims (orphans) and
// versions that clash with remote state (collisions), and lets the user
// accept or discard each record.
package recovery

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/dmitrijs2005/docsync/internal/client/client"
	"github.com/dmitrijs2005/docsync/internal/client/events"
	"github.com/dmitrijs2005/docsync/internal/client/models"
	"github.com/dmitrijs2005/docsync/internal/client/repositories/documents"
	"github.com/dmitrijs2005/docsync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/docsync/internal/client/session"
	"github.com/dmitrijs2005/docsync/internal/common"
	"github.com/dmitrijs2005/docsync/internal/logging"
	"github.com/dmitrijs2005/docsync/internal/timex"
)

var ErrNoRecord = errors.New("no such recovery record")

type Store interface {
	Get(ctx context.Context, id string) (*models.Document, error)
	List(ctx context.Context) ([]models.Document, error)
	Orphans(ctx context.Context) ([]models.Document, error)
	Save(ctx context.Context, doc models.Document) (*models.Document, error)
	Delete(ctx context.Context, id string) error
	UniqueName(ctx context.Context, category, name string) (string, error)
}

type Remote interface {
	ListRecovered(ctx context.Context) ([]models.RecoveredDocument, error)
	DeleteRecovered(ctx context.Context, id string) error
}

// Manager runs the scans and keeps the records of the latest passes until
// they are resolved.
type Manager struct {
	store  Store
	remote Remote
	meta   metadata.Repository
	bus    *events.Bus
	clock  timex.Clock
	logger logging.Logger

	mu      sync.Mutex
	records []models.RecoveryRecord
}

func NewManager(store Store, remote Remote, meta metadata.Repository, bus *events.Bus, clock timex.Clock, logger logging.Logger) *Manager {
	if clock == nil {
		clock = timex.SystemClock()
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{store: store, remote: remote, meta: meta, bus: bus, clock: clock, logger: logger}
}

// shouldScanOrphans: not signed in, and either no token was ever stored or
// the last known session was authenticated.
func (m *Manager) shouldScanOrphans(ctx context.Context, st session.State) (bool, error) {
	if st.IsAuthenticated() {
		return false, nil
	}
	if st.Token == "" {
		return true, nil
	}
	raw, err := m.meta.Get(ctx, metadata.KeySessionStatus)
	if err != nil {
		return false, err
	}
	return session.ParseStatus(string(raw)) == session.Authenticated, nil
}

// ScanOrphans packages every orphaned document as a record. Nothing is
// deleted.
func (m *Manager) ScanOrphans(ctx context.Context, st session.State) ([]models.RecoveryRecord, error) {
	ok, err := m.shouldScanOrphans(ctx, st)
	if err != nil || !ok {
		return nil, err
	}

	docs, err := m.store.Orphans(ctx)
	if err != nil {
		return nil, err
	}

	now := m.clock.Now()
	seen := make(map[string]bool, len(docs))
	var out []models.RecoveryRecord
	for _, d := range docs {
		if seen[d.ID] {
			continue
		}
		seen[d.ID] = true
		rec := models.RecoveryRecord{
			LocalID:      d.ID,
			Name:         d.Name,
			Category:     d.Category,
			Content:      d.Content,
			RecoveredAt:  now,
			ConflictType: models.ConflictOrphaned,
		}
		if d.HasServerID() {
			rec.DocumentID = d.ID
		}
		out = append(out, rec)
	}

	m.Report(ctx, out)
	return out, nil
}

// ScanCollisions lists the server-side autosaves and reports them. Conflict
// is set when a local document with the same id, or the same name and
// category, holds different content.
func (m *Manager) ScanCollisions(ctx context.Context, st session.State) ([]models.RecoveryRecord, error) {
	if !st.IsAuthenticated() {
		return nil, nil
	}
	recovered, err := m.remote.ListRecovered(client.WithToken(ctx, st.Token))
	if err != nil {
		return nil, fmt.Errorf("failed to list recovered documents: %w", err)
	}
	if len(recovered) == 0 {
		return nil, nil
	}

	local, err := m.store.List(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*models.Document, len(local))
	type nameKey struct{ category, name string }
	byName := make(map[nameKey]*models.Document, len(local))
	for i := range local {
		d := &local[i]
		byID[d.ID] = d
		byName[nameKey{d.Category, documents.NameKey(d.Name)}] = d
	}

	out := make([]models.RecoveryRecord, 0, len(recovered))
	for _, r := range recovered {
		category := models.CategoryOrDefault(r.Category)
		rec := models.RecoveryRecord{
			DocumentID:   r.DocumentID,
			Name:         r.Name,
			Category:     category,
			Content:      r.Content,
			RecoveredAt:  r.SavedAt,
			ConflictType: models.ConflictCollision,
			RecoveredID:  r.ID,
		}
		match := byID[r.DocumentID]
		if match == nil {
			match = byName[nameKey{category, documents.NameKey(r.Name)}]
		}
		if match != nil {
			rec.LocalID = match.ID
			rec.Conflict = match.Content != r.Content
		}
		out = append(out, rec)
	}

	m.Report(ctx, out)
	return out, nil
}

// Report adds records from any detection pass and announces them. Records
// already known are replaced rather than duplicated.
func (m *Manager) Report(ctx context.Context, recs []models.RecoveryRecord) {
	if len(recs) == 0 {
		return
	}
	m.mu.Lock()
	for _, r := range recs {
		i := slices.IndexFunc(m.records, func(x models.RecoveryRecord) bool { return sameRecord(x, r) })
		if i >= 0 {
			m.records[i] = r
		} else {
			m.records = append(m.records, r)
		}
	}
	m.mu.Unlock()

	if m.bus != nil {
		m.bus.Publish(ctx, events.Event{Kind: events.RecoveryAvailable, Records: slices.Clone(recs)})
	}
}

func sameRecord(a, b models.RecoveryRecord) bool {
	if a.ConflictType != b.ConflictType {
		return false
	}
	if a.RecoveredID != "" || b.RecoveredID != "" {
		return a.RecoveredID == b.RecoveredID
	}
	return a.LocalID == b.LocalID && a.Name == b.Name && a.Category == b.Category
}

// Records returns the unresolved records.
func (m *Manager) Records() []models.RecoveryRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.records)
}

// Clear forgets all records, e.g. after the local store was wiped.
func (m *Manager) Clear() {
	m.mu.Lock()
	m.records = nil
	m.mu.Unlock()
}

func (m *Manager) take(i int) (models.RecoveryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i < 0 || i >= len(m.records) {
		return models.RecoveryRecord{}, ErrNoRecord
	}
	return m.records[i], nil
}

func (m *Manager) drop(rec models.RecoveryRecord) {
	m.mu.Lock()
	m.records = slices.DeleteFunc(m.records, func(x models.RecoveryRecord) bool { return sameRecord(x, rec) })
	m.mu.Unlock()
}

// Accept resolves record i by keeping its content. An orphan is kept as is
// and syncs on the next login. A collision is saved as a new document
// unless an identical copy already exists locally.
func (m *Manager) Accept(ctx context.Context, st session.State, i int) (*models.Document, error) {
	rec, err := m.take(i)
	if err != nil {
		return nil, err
	}

	var doc *models.Document
	switch rec.ConflictType {
	case models.ConflictOrphaned:
		doc, err = m.store.Get(ctx, rec.LocalID)
		if err != nil && !errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
	default:
		doc, err = m.findCopy(ctx, rec)
		if err != nil {
			return nil, err
		}
		if doc == nil {
			name, err := m.store.UniqueName(ctx, rec.Category, rec.Name)
			if err != nil {
				return nil, err
			}
			doc, err = m.store.Save(ctx, models.Document{Name: name, Category: rec.Category, Content: rec.Content})
			if err != nil {
				return nil, err
			}
		}
		m.ackRemote(ctx, st, rec)
	}

	m.drop(rec)
	return doc, nil
}

// Discard resolves record i by dropping its content. An orphan is deleted
// locally. A collision deletes the server autosave, or the local copy that
// holds exactly the record's content.
func (m *Manager) Discard(ctx context.Context, st session.State, i int) error {
	rec, err := m.take(i)
	if err != nil {
		return err
	}

	switch rec.ConflictType {
	case models.ConflictOrphaned:
		if err := m.store.Delete(ctx, rec.LocalID); err != nil && !errors.Is(err, common.ErrNotFound) {
			return err
		}
	default:
		if rec.RecoveredID != "" {
			m.ackRemote(ctx, st, rec)
			break
		}
		doc, err := m.findCopy(ctx, rec)
		if err != nil {
			return err
		}
		if doc != nil {
			if err := m.store.Delete(ctx, doc.ID); err != nil && !errors.Is(err, common.ErrNotFound) {
				return err
			}
		}
	}

	m.drop(rec)
	return nil
}

// findCopy looks for a local document holding exactly the record content
// under the record name and category.
func (m *Manager) findCopy(ctx context.Context, rec models.RecoveryRecord) (*models.Document, error) {
	docs, err := m.store.List(ctx)
	if err != nil {
		return nil, err
	}
	key := documents.NameKey(rec.Name)
	for i := range docs {
		d := &docs[i]
		if d.Category == rec.Category && documents.NameKey(d.Name) == key && d.Content == rec.Content {
			return d, nil
		}
	}
	return nil, nil
}

func (m *Manager) ackRemote(ctx context.Context, st session.State, rec models.RecoveryRecord) {
	if rec.RecoveredID == "" || !st.IsAuthenticated() {
		return
	}
	if err := m.remote.DeleteRecovered(client.WithToken(ctx, st.Token), rec.RecoveredID); err != nil {
		m.logger.Warn(ctx, "failed to acknowledge recovered document", "id", rec.RecoveredID, "error", err)
	}
}
