package categories

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/docsync/internal/client/storage"
	"github.com/dmitrijs2005/docsync/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	db, err := storage.OpenMemory(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewSQLiteRepository(db)
}

func TestList_DefaultCategorySeeded(t *testing.T) {
	r := newRepo(t)
	names, err := r.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{common.DefaultCategory}, names)
}

func TestAdd_AppendsAndDeduplicates(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	added, err := r.Add(ctx, "Work")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = r.Add(ctx, "Work")
	require.NoError(t, err)
	assert.False(t, added)

	_, err = r.Add(ctx, "Archive")
	require.NoError(t, err)

	names, err := r.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"General", "Work", "Archive"}, names)

	ok, err := r.Exists(ctx, "Archive")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRename_KeepsPosition(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	_, _ = r.Add(ctx, "Work")
	_, _ = r.Add(ctx, "Archive")

	require.NoError(t, r.Rename(ctx, "Work", "Projects"))
	names, err := r.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"General", "Projects", "Archive"}, names)

	require.ErrorIs(t, r.Rename(ctx, "Missing", "X"), common.ErrNotFound)
	require.ErrorIs(t, r.Rename(ctx, "Projects", "Archive"), common.ErrValidation)
}

func TestDelete(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	_, _ = r.Add(ctx, "Work")

	require.NoError(t, r.Delete(ctx, "Work"))
	require.ErrorIs(t, r.Delete(ctx, "Work"), common.ErrNotFound)
}

func TestReplace(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	_, _ = r.Add(ctx, "Old")

	require.NoError(t, r.Replace(ctx, []string{"General", "B", "A", "B"}))
	names, err := r.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"General", "B", "A"}, names)
}
