package merge

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/docsync/internal/client/events"
	"github.com/dmitrijs2005/docsync/internal/client/models"
	"github.com/dmitrijs2005/docsync/internal/client/session"
	"github.com/dmitrijs2005/docsync/internal/client/storage"
	"github.com/dmitrijs2005/docsync/internal/client/store"
	"github.com/dmitrijs2005/docsync/internal/client/syncer"
	"github.com/dmitrijs2005/docsync/internal/common"
	"github.com/dmitrijs2005/docsync/internal/timex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRemote struct {
	docs []models.Document
	cats []string
	err  error
}

func (f *fakeRemote) ListDocuments(context.Context) ([]models.Document, error) {
	return f.docs, f.err
}

func (f *fakeRemote) ListCategories(context.Context) ([]string, error) {
	return f.cats, f.err
}

type fakePusher struct {
	ops []syncer.Op
}

func (f *fakePusher) Enqueue(_ context.Context, op syncer.Op) bool {
	f.ops = append(f.ops, op)
	return true
}

var authed = session.State{Status: session.Authenticated, Token: "tok"}

func newResolver(t *testing.T, remote *fakeRemote) (*Resolver, *store.Store, *fakePusher) {
	t.Helper()
	db, err := storage.OpenMemory(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	clock := timex.NewManualClock(t0.Add(time.Hour))
	st := store.New(db, events.NewBus(), store.WithClock(clock))
	p := &fakePusher{}
	return NewResolver(remote, st, p, clock, nil), st, p
}

func TestReconcile_RequiresSession(t *testing.T) {
	r, _, _ := newResolver(t, &fakeRemote{})
	_, err := r.Reconcile(context.Background(), session.GuestState())
	require.ErrorIs(t, err, common.ErrUnauthorized)
}

func TestReconcile_RemoteFailure(t *testing.T) {
	r, _, p := newResolver(t, &fakeRemote{err: common.ErrUnavailable})
	_, err := r.Reconcile(context.Background(), authed)
	require.ErrorIs(t, err, common.ErrUnavailable)
	assert.Empty(t, p.ops)
}

func TestReconcile_FullPassAndIdempotence(t *testing.T) {
	remote := &fakeRemote{
		docs: []models.Document{
			{ID: "srv-a", Name: "A", Category: "General", Content: "remote newer", CreatedAt: t0, UpdatedAt: t0.Add(time.Minute)},
			{ID: "srv-b", Name: "B", Category: "Shared", Content: "remote only", CreatedAt: t0, UpdatedAt: t0},
		},
		cats: []string{"General", "Shared"},
	}
	r, st, p := newResolver(t, remote)
	ctx := context.Background()

	_, err := st.ApplyRemote(ctx, []models.Document{
		{ID: "srv-a", Name: "A", Category: "General", Content: "stale", CreatedAt: t0, UpdatedAt: t0},
	})
	require.NoError(t, err)
	draft, err := st.Save(ctx, models.Document{Name: "Draft", Category: "Work", Content: "mine"})
	require.NoError(t, err)

	res, err := r.Reconcile(ctx, authed)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Applied)
	assert.Empty(t, res.Collisions)

	a, err := st.Get(ctx, "srv-a")
	require.NoError(t, err)
	assert.Equal(t, "remote newer", a.Content)
	b, err := st.Get(ctx, "srv-b")
	require.NoError(t, err)
	assert.Equal(t, "remote only", b.Content)

	var created []string
	var catOps []string
	for _, op := range p.ops {
		switch op.Kind {
		case syncer.OpCreate:
			created = append(created, op.DocumentID)
		case syncer.OpCategoryCreate:
			catOps = append(catOps, op.Category)
		}
	}
	assert.Equal(t, []string{draft.ID}, created)
	assert.Equal(t, []string{"Work"}, catOps)

	cats, err := st.Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"General", "Work", "Shared"}, cats)

	before, err := st.List(ctx)
	require.NoError(t, err)

	again, err := r.Reconcile(ctx, authed)
	require.NoError(t, err)
	assert.Zero(t, again.Applied)
	assert.Zero(t, again.Relabeled)
	assert.Zero(t, again.Renamed)

	after, err := st.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestReconcile_CollisionRenamesAndReports(t *testing.T) {
	remote := &fakeRemote{
		docs: []models.Document{
			{ID: "srv-2", Name: "Clash", Category: "General", Content: "theirs", CreatedAt: t0, UpdatedAt: t0},
			{ID: "srv-3", Name: "Twin", Category: "General", Content: "same", CreatedAt: t0, UpdatedAt: t0},
		},
		cats: []string{"General"},
	}
	r, st, p := newResolver(t, remote)
	ctx := context.Background()

	mine, err := st.Save(ctx, models.Document{Name: "Clash", Content: "mine"})
	require.NoError(t, err)
	twin, err := st.Save(ctx, models.Document{Name: "Twin", Content: "same"})
	require.NoError(t, err)

	res, err := r.Reconcile(ctx, authed)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Relabeled)
	assert.Equal(t, 1, res.Renamed)
	require.Len(t, res.Collisions, 1)
	assert.Equal(t, "Clash (2)", res.Collisions[0].Name)

	renamed, err := st.Get(ctx, mine.ID)
	require.NoError(t, err)
	assert.Equal(t, "Clash (2)", renamed.Name)
	assert.Equal(t, "mine", renamed.Content)

	theirs, err := st.Get(ctx, "srv-2")
	require.NoError(t, err)
	assert.Equal(t, "theirs", theirs.Content)

	_, err = st.Get(ctx, twin.ID)
	require.ErrorIs(t, err, common.ErrNotFound)
	adopted, err := st.Get(ctx, "srv-3")
	require.NoError(t, err)
	assert.False(t, adopted.Pending)

	require.Len(t, p.ops, 1)
	assert.Equal(t, syncer.OpCreate, p.ops[0].Kind)
	assert.Equal(t, "Clash (2)", p.ops[0].Document.Name)
}

// idleRemote is never called: the coordinator below only queues.
type idleRemote struct {
	syncer.Remote
}

func TestReconcile_SecondPassQueuesNothingNew(t *testing.T) {
	db, err := storage.OpenMemory(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	clock := timex.NewManualClock(t0.Add(time.Hour))
	bus := events.NewBus()
	st := store.New(db, bus, store.WithClock(clock))
	co := syncer.New(idleRemote{}, st, bus, syncer.DefaultConfig(), syncer.WithClock(clock))
	co.OnAuthChanged(ctx, authed)

	remote := &fakeRemote{cats: []string{"General"}}
	r := NewResolver(remote, st, co, clock, nil)

	_, err = st.Save(ctx, models.Document{Name: "Plan", Category: "Work", Content: "x"})
	require.NoError(t, err)

	_, err = r.Reconcile(ctx, authed)
	require.NoError(t, err)
	first := co.Pending()
	require.Len(t, first, 2)

	_, err = r.Reconcile(ctx, authed)
	require.NoError(t, err)
	second := co.Pending()
	require.Len(t, second, len(first))

	var catCreates int
	for _, e := range second {
		if e.Op.Kind == syncer.OpCategoryCreate {
			catCreates++
		}
	}
	assert.Equal(t, 1, catCreates)
}
