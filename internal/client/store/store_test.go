package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/dmitrijs2005/docsync/internal/client/events"
	"github.com/dmitrijs2005/docsync/internal/client/models"
	"github.com/dmitrijs2005/docsync/internal/client/storage"
	"github.com/dmitrijs2005/docsync/internal/common"
	"github.com/dmitrijs2005/docsync/internal/timex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	store *Store
	clock *timex.ManualClock
	rec   *events.Recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := storage.OpenMemory(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	bus := events.NewBus()
	rec := &events.Recorder{}
	bus.Subscribe(rec.Handle)

	clock := timex.NewManualClock(start)
	n := 0
	s := New(db, bus, WithClock(clock), WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("doc_%d", n)
	}))
	return &fixture{store: s, clock: clock, rec: rec}
}

func TestSave_CreatesWithLocalIDAndTimestamps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := models.Document{Name: " Notes ", Content: "hello", CreatedAt: start.Add(-time.Hour), UpdatedAt: start.Add(time.Hour)}
	saved, err := f.store.Save(ctx, in)
	require.NoError(t, err)

	assert.Equal(t, "doc_1", saved.ID)
	assert.Equal(t, "Notes", saved.Name)
	assert.Equal(t, common.DefaultCategory, saved.Category)
	assert.Equal(t, start, saved.CreatedAt)
	assert.Equal(t, start, saved.UpdatedAt)
	assert.True(t, saved.Pending)

	got, err := f.store.Get(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, saved, got)

	assert.Equal(t, []events.Kind{events.DocumentSaved}, f.rec.Kinds())
}

func TestSave_RoundTripKeepsUserFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := models.Document{Name: "Plan", Category: "Work", Content: "# Q3\n- ship"}
	saved, err := f.store.Save(ctx, in)
	require.NoError(t, err)

	got, err := f.store.Get(ctx, saved.ID)
	require.NoError(t, err)
	assert.True(t, models.SameContent(&in, got))
}

func TestSave_KeepsNameAsGiven(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	saved, err := f.store.Save(ctx, models.Document{Name: "  Plan ", Category: "Work"})
	require.NoError(t, err)
	assert.Equal(t, "  Plan ", saved.Name)

	got, err := f.store.Get(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "  Plan ", got.Name)

	_, err = f.store.Save(ctx, models.Document{Name: "Plan", Category: "Work"})
	require.ErrorIs(t, err, common.ErrDuplicate)
}

func TestSave_DuplicateNameCategoryRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d1, err := f.store.Save(ctx, models.Document{Name: "Notes", Category: "General", Content: "first"})
	require.NoError(t, err)
	f.rec.Drain()

	_, err = f.store.Save(ctx, models.Document{Name: "Notes", Category: "General", Content: "second"})
	require.ErrorIs(t, err, common.ErrValidation)
	require.ErrorIs(t, err, common.ErrDuplicate)

	got, err := f.store.Get(ctx, d1.ID)
	require.NoError(t, err)
	assert.Equal(t, d1, got)
	assert.Empty(t, f.rec.Kinds())

	list, err := f.store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSave_SameNameOtherCategoryAllowed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.store.Save(ctx, models.Document{Name: "Notes", Category: "General"})
	require.NoError(t, err)
	_, err = f.store.Save(ctx, models.Document{Name: "Notes", Category: "Work"})
	require.NoError(t, err)

	cats, err := f.store.Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"General", "Work"}, cats)
	assert.Contains(t, f.rec.Kinds(), events.CategoryAdded)
}

func TestSave_UpdateKeepsCreatedAtAndBumpsUpdatedAt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, err := f.store.Save(ctx, models.Document{Name: "Notes", Content: "v1"})
	require.NoError(t, err)

	d.Content = "v2"
	again, err := f.store.Save(ctx, *d)
	require.NoError(t, err)
	assert.Equal(t, start, again.CreatedAt)
	assert.True(t, again.UpdatedAt.After(d.UpdatedAt), "updated_at must strictly increase")

	f.clock.Advance(time.Minute)
	again.Content = "v3"
	third, err := f.store.Save(ctx, *again)
	require.NoError(t, err)
	assert.Equal(t, start.Add(time.Minute), third.UpdatedAt)
}

func TestSave_RenameToOwnNameIsNotDuplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, err := f.store.Save(ctx, models.Document{Name: "Notes"})
	require.NoError(t, err)
	d.Content = "more"
	_, err = f.store.Save(ctx, *d)
	require.NoError(t, err)
}

func TestSave_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.store.Save(ctx, models.Document{Name: "   "})
	require.ErrorIs(t, err, common.ErrValidation)

	_, err = f.store.Save(ctx, models.Document{Name: "x", Category: "a/b"})
	require.ErrorIs(t, err, common.ErrValidation)

	long := make([]byte, maxNameLength+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err = f.store.Save(ctx, models.Document{Name: string(long)})
	require.ErrorIs(t, err, common.ErrValidation)
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, err := f.store.Save(ctx, models.Document{Name: "Notes"})
	require.NoError(t, err)
	f.rec.Drain()

	require.NoError(t, f.store.Delete(ctx, d.ID))
	evs := f.rec.Drain()
	require.Len(t, evs, 1)
	assert.Equal(t, events.DocumentDeleted, evs[0].Kind)
	assert.Equal(t, d.ID, evs[0].DocumentID)

	require.ErrorIs(t, f.store.Delete(ctx, d.ID), common.ErrNotFound)
	_, err = f.store.Get(ctx, d.ID)
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestAddCategory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.AddCategory(ctx, "Work"))
	require.NoError(t, f.store.AddCategory(ctx, "Work"))
	require.ErrorIs(t, f.store.AddCategory(ctx, ""), common.ErrValidation)

	assert.Equal(t, []events.Kind{events.CategoryAdded}, f.rec.Kinds())
}

func TestRenameCategory_MovesDocuments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, err := f.store.Save(ctx, models.Document{Name: "Plan", Category: "Work", Content: "x"})
	require.NoError(t, err)
	f.rec.Drain()

	require.NoError(t, f.store.RenameCategory(ctx, "Work", "Projects"))

	got, err := f.store.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "Projects", got.Category)
	assert.Equal(t, "x", got.Content)

	evs := f.rec.Drain()
	require.Len(t, evs, 2)
	assert.Equal(t, events.CategoryRenamed, evs[0].Kind)
	assert.Equal(t, "Work", evs[0].Category)
	assert.Equal(t, "Projects", evs[0].NewCategory)
	assert.Equal(t, []string{d.ID}, evs[0].DocumentIDs)

	assert.Equal(t, events.DocumentSaved, evs[1].Kind)
	require.NotNil(t, evs[1].Document)
	assert.Equal(t, "Projects", evs[1].Document.Category)
	assert.Equal(t, got.UpdatedAt, evs[1].Document.UpdatedAt)
}

func TestRenameCategory_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.AddCategory(ctx, "Work"))
	require.NoError(t, f.store.AddCategory(ctx, "Home"))

	require.ErrorIs(t, f.store.RenameCategory(ctx, common.DefaultCategory, "X"), common.ErrDefaultCategory)
	require.ErrorIs(t, f.store.RenameCategory(ctx, "Work", common.DefaultCategory), common.ErrDefaultCategory)
	require.ErrorIs(t, f.store.RenameCategory(ctx, "Work", "Home"), common.ErrConflict)
	require.ErrorIs(t, f.store.RenameCategory(ctx, "Missing", "Y"), common.ErrNotFound)
}

func TestDeleteCategory_DefaultsToGeneralAndKeepsContent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.store.Save(ctx, models.Document{Name: "A", Category: "Work", Content: "alpha"})
	require.NoError(t, err)
	b, err := f.store.Save(ctx, models.Document{Name: "B", Category: "Work", Content: "beta"})
	require.NoError(t, err)
	f.rec.Drain()

	require.NoError(t, f.store.DeleteCategory(ctx, "Work", DeleteCategoryOptions{}))

	for _, want := range []*models.Document{a, b} {
		got, err := f.store.Get(ctx, want.ID)
		require.NoError(t, err)
		assert.Equal(t, common.DefaultCategory, got.Category)
		assert.Equal(t, want.Content, got.Content)
		assert.Equal(t, want.ID, got.ID)
	}

	cats, err := f.store.Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{common.DefaultCategory}, cats)

	evs := f.rec.Drain()
	require.Len(t, evs, 3)
	assert.Equal(t, events.CategoryDeleted, evs[0].Kind)
	assert.Equal(t, common.DefaultCategory, evs[0].MigrateTo)
	assert.False(t, evs[0].DeleteDocs)
	for _, e := range evs[1:] {
		assert.Equal(t, events.DocumentSaved, e.Kind)
		assert.Equal(t, common.DefaultCategory, e.Document.Category)
	}
}

func TestDeleteCategory_MigrateToCreatesTarget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.store.Save(ctx, models.Document{Name: "A", Category: "Work"})
	require.NoError(t, err)

	require.NoError(t, f.store.DeleteCategory(ctx, "Work", DeleteCategoryOptions{MigrateTo: "Archive"}))

	got, err := f.store.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Archive", got.Category)

	cats, err := f.store.Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{common.DefaultCategory, "Archive"}, cats)
}

func TestDeleteCategory_DeleteDocs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.store.Save(ctx, models.Document{Name: "A", Category: "Work"})
	require.NoError(t, err)
	keep, err := f.store.Save(ctx, models.Document{Name: "K"})
	require.NoError(t, err)

	require.NoError(t, f.store.DeleteCategory(ctx, "Work", DeleteCategoryOptions{DeleteDocs: true}))

	_, err = f.store.Get(ctx, a.ID)
	require.ErrorIs(t, err, common.ErrNotFound)
	_, err = f.store.Get(ctx, keep.ID)
	require.NoError(t, err)
}

func TestDeleteCategory_MigrationCollisionRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	w, err := f.store.Save(ctx, models.Document{Name: "Same", Category: "Work"})
	require.NoError(t, err)
	_, err = f.store.Save(ctx, models.Document{Name: "Same", Category: common.DefaultCategory})
	require.NoError(t, err)

	err = f.store.DeleteCategory(ctx, "Work", DeleteCategoryOptions{})
	require.ErrorIs(t, err, common.ErrDuplicate)

	got, err := f.store.Get(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, "Work", got.Category)
	cats, err := f.store.Categories(ctx)
	require.NoError(t, err)
	assert.Contains(t, cats, "Work")
}

func TestDeleteCategory_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.ErrorIs(t, f.store.DeleteCategory(ctx, common.DefaultCategory, DeleteCategoryOptions{}), common.ErrDefaultCategory)
	require.ErrorIs(t, f.store.DeleteCategory(ctx, "Missing", DeleteCategoryOptions{}), common.ErrNotFound)
	require.NoError(t, f.store.AddCategory(ctx, "Work"))
	require.ErrorIs(t, f.store.DeleteCategory(ctx, "Work", DeleteCategoryOptions{MigrateTo: "Work"}), common.ErrValidation)
}

func TestRelabelAndMarkSynced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, err := f.store.Save(ctx, models.Document{Name: "Notes", Content: "x"})
	require.NoError(t, err)
	f.rec.Drain()

	require.NoError(t, f.store.Relabel(ctx, d.ID, "srv-1"))
	evs := f.rec.Drain()
	require.Len(t, evs, 1)
	assert.Equal(t, events.DocumentRelabeled, evs[0].Kind)
	assert.Equal(t, "srv-1", evs[0].DocumentID)
	assert.Equal(t, d.ID, evs[0].PreviousID)

	ok, err := f.store.MarkSynced(ctx, "srv-1", d.UpdatedAt)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := f.store.Get(ctx, "srv-1")
	require.NoError(t, err)
	assert.False(t, got.Pending)
}

func TestMarkSynced_StaleResponseKeepsPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d, err := f.store.Save(ctx, models.Document{ID: "srv-1", Name: "Notes", Content: "v1"})
	require.NoError(t, err)
	pushed := d.UpdatedAt

	f.clock.Advance(time.Second)
	d.Content = "v2"
	_, err = f.store.Save(ctx, *d)
	require.NoError(t, err)

	ok, err := f.store.MarkSynced(ctx, "srv-1", pushed)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := f.store.Get(ctx, "srv-1")
	require.NoError(t, err)
	assert.True(t, got.Pending)
	assert.Equal(t, "v2", got.Content)
}

func TestApplyRemote_VerbatimAndSkipsCollisions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.store.Save(ctx, models.Document{Name: "Mine", Content: "local"})
	require.NoError(t, err)
	f.rec.Drain()

	remoteTime := start.Add(-48 * time.Hour)
	batch := []models.Document{
		{ID: "srv-1", Name: "Theirs", Category: "Shared", Content: "r1", CreatedAt: remoteTime, UpdatedAt: remoteTime},
		{ID: "srv-2", Name: "Mine", Category: "General", Content: "r2", CreatedAt: remoteTime, UpdatedAt: remoteTime},
	}
	skipped, err := f.store.ApplyRemote(ctx, batch)
	require.NoError(t, err)
	require.Len(t, skipped, 1)
	assert.Equal(t, "srv-2", skipped[0].ID)

	got, err := f.store.Get(ctx, "srv-1")
	require.NoError(t, err)
	assert.Equal(t, remoteTime, got.UpdatedAt)
	assert.False(t, got.Pending)

	for _, e := range f.rec.Drain() {
		assert.Equal(t, events.OriginRemote, e.Origin)
	}
}

func TestApplyRemote_SwappedNamesInOneBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	old := start.Add(-time.Hour)
	_, err := f.store.ApplyRemote(ctx, []models.Document{
		{ID: "srv-a", Name: "One", Category: "General", CreatedAt: old, UpdatedAt: old},
		{ID: "srv-b", Name: "Two", Category: "General", CreatedAt: old, UpdatedAt: old},
	})
	require.NoError(t, err)

	skipped, err := f.store.ApplyRemote(ctx, []models.Document{
		{ID: "srv-a", Name: "Two", Category: "General", CreatedAt: old, UpdatedAt: start},
		{ID: "srv-b", Name: "One", Category: "General", CreatedAt: old, UpdatedAt: start},
	})
	require.NoError(t, err)
	assert.Empty(t, skipped)
}

func TestReplaceCategories(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.ReplaceCategories(ctx, []string{"Work", common.DefaultCategory, "Home"}))
	cats, err := f.store.Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{common.DefaultCategory, "Work", "Home"}, cats)
	assert.Len(t, f.rec.Drain(), 2)
}

func TestClearSyncedAndOrphans(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	old := start.Add(-time.Hour)
	_, err := f.store.ApplyRemote(ctx, []models.Document{
		{ID: "srv-clean", Name: "Clean", Content: "c", CreatedAt: old, UpdatedAt: old},
		{ID: "srv-dirty", Name: "Dirty", Content: "d", CreatedAt: old, UpdatedAt: old},
	})
	require.NoError(t, err)
	dirty, err := f.store.Get(ctx, "srv-dirty")
	require.NoError(t, err)
	dirty.Content = "edited"
	_, err = f.store.Save(ctx, *dirty)
	require.NoError(t, err)
	_, err = f.store.Save(ctx, models.Document{Name: "Local", Content: "l"})
	require.NoError(t, err)
	_, err = f.store.Save(ctx, models.NewPlaceholder())
	require.NoError(t, err)
	f.rec.Drain()

	orphans, err := f.store.Orphans(ctx)
	require.NoError(t, err)
	var names []string
	for _, o := range orphans {
		names = append(names, o.Name)
	}
	assert.ElementsMatch(t, []string{"Dirty", "Local"}, names)

	removed, err := f.store.ClearSynced(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"srv-clean"}, removed)
	assert.Equal(t, []events.Kind{events.StorageCleared}, f.rec.Kinds())

	list, err := f.store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

func TestUniqueName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	name, err := f.store.UniqueName(ctx, "General", "Notes")
	require.NoError(t, err)
	assert.Equal(t, "Notes", name)

	_, err = f.store.Save(ctx, models.Document{Name: "Notes"})
	require.NoError(t, err)
	_, err = f.store.Save(ctx, models.Document{Name: "Notes (2)"})
	require.NoError(t, err)

	name, err = f.store.UniqueName(ctx, "General", "Notes")
	require.NoError(t, err)
	assert.Equal(t, "Notes (3)", name)
}
