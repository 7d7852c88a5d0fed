package services

import (
	"context"
	"database/sql"
	"sort"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/docsync/internal/common"
	"github.com/dmitrijs2005/docsync/internal/dbx"
	"github.com/dmitrijs2005/docsync/internal/server/models"
	"github.com/dmitrijs2005/docsync/internal/server/repositories/categories"
	"github.com/dmitrijs2005/docsync/internal/server/repositories/current"
	"github.com/dmitrijs2005/docsync/internal/server/repositories/documents"
	"github.com/dmitrijs2005/docsync/internal/server/repositories/recovered"
	"github.com/dmitrijs2005/docsync/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/docsync/internal/server/repositories/shares"
	"github.com/dmitrijs2005/docsync/internal/server/repositories/users"
)

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

// fakeRepoManager hands out in-memory repositories regardless of the DBTX,
// so transactions only show up as sqlmock Begin/Commit/Rollback.
type fakeRepoManager struct {
	repomanager.RepositoryManager

	users     *fakeUsersRepo
	docs      *fakeDocsRepo
	cats      *fakeCatsRepo
	current   *fakeCurrentRepo
	recovered *fakeRecoveredRepo
	shares    *fakeSharesRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{
		users:     &fakeUsersRepo{byName: map[string]*models.User{}},
		docs:      &fakeDocsRepo{byID: map[string]models.Document{}},
		cats:      &fakeCatsRepo{},
		current:   &fakeCurrentRepo{byUser: map[string]string{}},
		recovered: &fakeRecoveredRepo{},
		shares:    &fakeSharesRepo{byDoc: map[string]models.Share{}},
	}
}

func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository           { return m.users }
func (m *fakeRepoManager) Documents(dbx.DBTX) documents.Repository   { return m.docs }
func (m *fakeRepoManager) Categories(dbx.DBTX) categories.Repository { return m.cats }
func (m *fakeRepoManager) Current(dbx.DBTX) current.Repository       { return m.current }
func (m *fakeRepoManager) Recovered(dbx.DBTX) recovered.Repository   { return m.recovered }
func (m *fakeRepoManager) Shares(dbx.DBTX) shares.Repository         { return m.shares }

type fakeUsersRepo struct {
	byName map[string]*models.User
	err    error
}

func (f *fakeUsersRepo) Create(_ context.Context, u *models.User) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	if _, ok := f.byName[u.UserName]; ok {
		return nil, common.ErrConflict
	}
	u.ID = "u-" + u.UserName
	f.byName[u.UserName] = u
	return u, nil
}

func (f *fakeUsersRepo) GetUserByLogin(_ context.Context, name string) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.byName[name]
	if !ok {
		return nil, common.ErrNotFound
	}
	return u, nil
}

type fakeDocsRepo struct {
	byID map[string]models.Document
	err  error
}

func (f *fakeDocsRepo) List(_ context.Context, userID string) ([]models.Document, error) {
	out := []models.Document{}
	for _, d := range f.byID {
		if d.UserID == userID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, f.err
}

func (f *fakeDocsRepo) Get(_ context.Context, userID, id string) (*models.Document, error) {
	d, ok := f.byID[id]
	if !ok || d.UserID != userID {
		return nil, common.ErrNotFound
	}
	return &d, nil
}

func (f *fakeDocsRepo) taken(doc *models.Document) bool {
	for _, d := range f.byID {
		if d.ID != doc.ID && d.UserID == doc.UserID && d.Category == doc.Category &&
			common.NameKey(d.Name) == common.NameKey(doc.Name) {
			return true
		}
	}
	return false
}

func (f *fakeDocsRepo) Create(_ context.Context, doc *models.Document) error {
	if f.err != nil {
		return f.err
	}
	if f.taken(doc) {
		return common.ErrConflict
	}
	f.byID[doc.ID] = *doc
	return nil
}

func (f *fakeDocsRepo) Update(_ context.Context, doc *models.Document) error {
	if _, ok := f.byID[doc.ID]; !ok {
		return common.ErrNotFound
	}
	if f.taken(doc) {
		return common.ErrConflict
	}
	f.byID[doc.ID] = *doc
	return nil
}

func (f *fakeDocsRepo) Delete(_ context.Context, userID, id string) error {
	if d, ok := f.byID[id]; !ok || d.UserID != userID {
		return common.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeDocsRepo) MoveCategory(_ context.Context, userID, from, to string, at time.Time) (int64, error) {
	var n int64
	for id, d := range f.byID {
		if d.UserID == userID && d.Category == from {
			d.Category, d.UpdatedAt = to, at
			f.byID[id] = d
			n++
		}
	}
	return n, nil
}

func (f *fakeDocsRepo) DeleteByCategory(_ context.Context, userID, category string) (int64, error) {
	var n int64
	for id, d := range f.byID {
		if d.UserID == userID && d.Category == category {
			delete(f.byID, id)
			n++
		}
	}
	return n, nil
}

type fakeCatsRepo struct {
	names []string
}

func (f *fakeCatsRepo) index(name string) int {
	for i, n := range f.names {
		if n == name {
			return i
		}
	}
	return -1
}

func (f *fakeCatsRepo) List(context.Context, string) ([]string, error) {
	return append([]string(nil), f.names...), nil
}

func (f *fakeCatsRepo) Exists(_ context.Context, _, name string) (bool, error) {
	return f.index(name) >= 0, nil
}

func (f *fakeCatsRepo) Create(_ context.Context, _, name string) error {
	if f.index(name) >= 0 {
		return common.ErrConflict
	}
	f.names = append(f.names, name)
	return nil
}

func (f *fakeCatsRepo) Rename(_ context.Context, _, oldName, newName string) error {
	i := f.index(oldName)
	if i < 0 {
		return common.ErrNotFound
	}
	f.names[i] = newName
	return nil
}

func (f *fakeCatsRepo) Delete(_ context.Context, _, name string) error {
	i := f.index(name)
	if i < 0 {
		return common.ErrNotFound
	}
	f.names = append(f.names[:i], f.names[i+1:]...)
	return nil
}

type fakeCurrentRepo struct {
	byUser map[string]string
}

func (f *fakeCurrentRepo) Get(_ context.Context, userID string) (string, error) {
	return f.byUser[userID], nil
}

func (f *fakeCurrentRepo) Set(_ context.Context, userID, id string) error {
	f.byUser[userID] = id
	return nil
}

type fakeRecoveredRepo struct {
	docs []models.RecoveredDocument
}

func (f *fakeRecoveredRepo) List(_ context.Context, userID string) ([]models.RecoveredDocument, error) {
	out := []models.RecoveredDocument{}
	for _, d := range f.docs {
		if d.UserID == userID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeRecoveredRepo) Create(_ context.Context, doc *models.RecoveredDocument) error {
	f.docs = append(f.docs, *doc)
	return nil
}

func (f *fakeRecoveredRepo) Delete(_ context.Context, userID, id string) error {
	for i, d := range f.docs {
		if d.ID == id && d.UserID == userID {
			f.docs = append(f.docs[:i], f.docs[i+1:]...)
			return nil
		}
	}
	return common.ErrNotFound
}

type fakeSharesRepo struct {
	byDoc map[string]models.Share
	err   error
}

func (f *fakeSharesRepo) Upsert(_ context.Context, _ string, s *models.Share) error {
	if f.err != nil {
		return f.err
	}
	f.byDoc[s.DocumentID] = *s
	return nil
}

func (f *fakeSharesRepo) GetByDocument(_ context.Context, _, id string) (*models.Share, error) {
	s, ok := f.byDoc[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &s, nil
}
