package services

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/docsync/internal/common"
	"github.com/dmitrijs2005/docsync/internal/server/models"
	"github.com/stretchr/testify/require"
)

func TestCategories_ListsDefaultFirst(t *testing.T) {
	s, rm, _ := newDocumentService(t)
	rm.cats.names = []string{"Work", "Home"}

	got, err := s.Categories(context.Background(), "u-1")
	require.NoError(t, err)
	require.Equal(t, []string{"General", "Work", "Home"}, got)
}

func TestCreateCategory(t *testing.T) {
	s, rm, _ := newDocumentService(t)
	ctx := context.Background()

	require.NoError(t, s.CreateCategory(ctx, "u-1", " Work "))
	require.Equal(t, []string{"Work"}, rm.cats.names)

	require.ErrorIs(t, s.CreateCategory(ctx, "u-1", "Work"), common.ErrConflict)
	require.ErrorIs(t, s.CreateCategory(ctx, "u-1", common.DefaultCategory), common.ErrConflict)
	require.ErrorIs(t, s.CreateCategory(ctx, "u-1", ""), common.ErrValidation)
}

func TestRenameCategory_MovesDocuments(t *testing.T) {
	s, rm, mock := newDocumentService(t)
	rm.cats.names = []string{"Work"}
	rm.docs.byID[docID1] = models.Document{ID: docID1, UserID: "u-1", Name: "Plan", Category: "Work"}
	mock.ExpectBegin()
	mock.ExpectCommit()

	require.NoError(t, s.RenameCategory(context.Background(), "u-1", "Work", "Job"))
	require.Equal(t, []string{"Job"}, rm.cats.names)
	require.Equal(t, "Job", rm.docs.byID[docID1].Category)
	require.Equal(t, fixedNow, rm.docs.byID[docID1].UpdatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRenameCategory_Rejections(t *testing.T) {
	s, rm, mock := newDocumentService(t)
	rm.cats.names = []string{"Work", "Job"}
	ctx := context.Background()

	require.ErrorIs(t, s.RenameCategory(ctx, "u-1", common.DefaultCategory, "X"), common.ErrDefaultCategory)
	require.ErrorIs(t, s.RenameCategory(ctx, "u-1", "Work", common.DefaultCategory), common.ErrDefaultCategory)
	require.NoError(t, s.RenameCategory(ctx, "u-1", "Work", "Work"))

	mock.ExpectBegin()
	mock.ExpectRollback()
	require.ErrorIs(t, s.RenameCategory(ctx, "u-1", "Work", "Job"), common.ErrConflict)

	mock.ExpectBegin()
	mock.ExpectRollback()
	require.ErrorIs(t, s.RenameCategory(ctx, "u-1", "Gone", "New"), common.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteCategory_DefaultPolicyMovesToGeneral(t *testing.T) {
	s, rm, mock := newDocumentService(t)
	rm.cats.names = []string{"Work"}
	rm.docs.byID[docID1] = models.Document{ID: docID1, UserID: "u-1", Name: "Plan", Category: "Work"}
	mock.ExpectBegin()
	mock.ExpectCommit()

	require.NoError(t, s.DeleteCategory(context.Background(), "u-1", "Work", DeleteCategoryOptions{}))
	require.Empty(t, rm.cats.names)
	require.Equal(t, common.DefaultCategory, rm.docs.byID[docID1].Category)
}

func TestDeleteCategory_MigrateTo(t *testing.T) {
	s, rm, mock := newDocumentService(t)
	rm.cats.names = []string{"Work"}
	rm.docs.byID[docID1] = models.Document{ID: docID1, UserID: "u-1", Name: "Plan", Category: "Work"}
	mock.ExpectBegin()
	mock.ExpectCommit()

	require.NoError(t, s.DeleteCategory(context.Background(), "u-1", "Work", DeleteCategoryOptions{MigrateTo: "Archive"}))
	require.Equal(t, []string{"Archive"}, rm.cats.names)
	require.Equal(t, "Archive", rm.docs.byID[docID1].Category)
}

func TestDeleteCategory_DeleteDocs(t *testing.T) {
	s, rm, mock := newDocumentService(t)
	rm.cats.names = []string{"Work"}
	rm.docs.byID[docID1] = models.Document{ID: docID1, UserID: "u-1", Name: "Plan", Category: "Work"}
	rm.docs.byID[docID2] = models.Document{ID: docID2, UserID: "u-1", Name: "Keep", Category: "General"}
	mock.ExpectBegin()
	mock.ExpectCommit()

	require.NoError(t, s.DeleteCategory(context.Background(), "u-1", "Work", DeleteCategoryOptions{DeleteDocs: true}))
	require.NotContains(t, rm.docs.byID, docID1)
	require.Contains(t, rm.docs.byID, docID2)
}

func TestDeleteCategory_Rejections(t *testing.T) {
	s, _, mock := newDocumentService(t)
	ctx := context.Background()

	require.ErrorIs(t, s.DeleteCategory(ctx, "u-1", common.DefaultCategory, DeleteCategoryOptions{}), common.ErrDefaultCategory)
	require.ErrorIs(t, s.DeleteCategory(ctx, "u-1", "Work", DeleteCategoryOptions{MigrateTo: "Work"}), common.ErrValidation)

	mock.ExpectBegin()
	mock.ExpectRollback()
	require.ErrorIs(t, s.DeleteCategory(ctx, "u-1", "Gone", DeleteCategoryOptions{}), common.ErrNotFound)
}
