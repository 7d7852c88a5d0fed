package merge

import (
	"math/rand"
	"testing"
	"time"

	"github.com/dmitrijs2005/docsync/internal/client/models"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)

func doc(id, name, content string, at time.Duration) models.Document {
	return models.Document{ID: id, Name: name, Category: "General", Content: content,
		CreatedAt: t0, UpdatedAt: t0.Add(at)}
}

func TestMerge_LastWriterWins(t *testing.T) {
	local := []models.Document{
		doc("a", "A", "local newer", 2*time.Minute),
		doc("b", "B", "local older", time.Minute),
		doc("c", "C", "local tie", time.Minute),
		doc("doc_1", "L", "local only", 0),
	}
	remote := []models.Document{
		doc("a", "A", "remote older", time.Minute),
		doc("b", "B", "remote newer", 2*time.Minute),
		doc("c", "C", "remote tie", time.Minute),
		doc("r", "R", "remote only", 0),
	}

	got := Merge(local, remote)
	var contents []string
	for _, d := range got {
		contents = append(contents, d.Content)
	}
	assert.Equal(t, []string{"local newer", "remote newer", "remote tie", "local only", "remote only"}, contents)
}

func TestMerge_Idempotent(t *testing.T) {
	local := []models.Document{doc("a", "A", "l", 2*time.Minute), doc("doc_1", "L", "x", 0)}
	remote := []models.Document{doc("a", "A", "r", time.Minute), doc("b", "B", "r", 0)}

	once := Merge(local, remote)
	twice := Merge(once, remote)
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Fatalf("second merge changed result (-once +twice):\n%s", diff)
	}
}

func TestMerge_OrderIndependent(t *testing.T) {
	local := []models.Document{
		doc("a", "A", "l", 3*time.Minute), doc("b", "B", "l", 0), doc("c", "C", "l", time.Minute),
	}
	remote := []models.Document{
		doc("a", "A", "r", time.Minute), doc("b", "B", "r", time.Minute), doc("c", "C", "r", time.Minute), doc("d", "D", "r", 0),
	}
	want := Merge(local, remote)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		l := append([]models.Document(nil), local...)
		r := append([]models.Document(nil), remote...)
		rng.Shuffle(len(l), func(i, j int) { l[i], l[j] = l[j], l[i] })
		rng.Shuffle(len(r), func(i, j int) { r[i], r[j] = r[j], r[i] })
		require.Empty(t, cmp.Diff(want, Merge(l, r)))
	}
}

func TestMergeCategories(t *testing.T) {
	docs := []models.Document{{Category: "Ref"}, {Category: "Work"}, {Category: ""}}
	got := MergeCategories([]string{"General", "Work", "Home"}, []string{"Shared", "Work"}, docs)
	assert.Equal(t, []string{"General", "Work", "Home", "Shared", "Ref"}, got)
}

func TestBuildPlan_SameID(t *testing.T) {
	pendingTie := doc("t", "T", "local", time.Minute)
	pendingTie.Pending = true
	sameButPending := doc("s", "S", "same", time.Minute)
	sameButPending.Pending = true

	local := []models.Document{
		doc("a", "A", "newer", 2*time.Minute),
		doc("b", "B", "older", time.Minute),
		pendingTie,
		sameButPending,
		doc("u", "U", "same", time.Minute),
	}
	remote := []models.Document{
		doc("a", "A", "older", time.Minute),
		doc("b", "B", "newer", 2*time.Minute),
		doc("t", "T", "remote", time.Minute),
		doc("s", "S", "same", time.Minute),
		doc("u", "U", "same", time.Minute),
	}

	p := BuildPlan(local, remote, t0)

	require.Len(t, p.Push, 1)
	assert.Equal(t, "a", p.Push[0].Document.ID)
	assert.False(t, p.Push[0].Create)

	var applied []string
	for _, d := range p.Apply {
		applied = append(applied, d.ID)
	}
	assert.Equal(t, []string{"b", "t"}, applied)

	require.Len(t, p.Synced, 1)
	assert.Equal(t, "s", p.Synced[0].ID)

	require.Len(t, p.Collisions, 1)
	assert.Equal(t, "local", p.Collisions[0].Content)
	assert.Equal(t, models.ConflictCollision, p.Collisions[0].ConflictType)
}

func TestBuildPlan_LocalOnly(t *testing.T) {
	ph := models.NewPlaceholder()
	ph.ID = "doc_ph"
	gone := doc("srv-gone", "Gone", "kept", 0)

	p := BuildPlan([]models.Document{doc("doc_1", "New", "x", 0), ph, gone}, nil, t0)

	require.Len(t, p.Push, 2)
	for _, push := range p.Push {
		assert.True(t, push.Create)
		assert.NotEqual(t, "doc_ph", push.Document.ID)
	}
}

func TestBuildPlan_NameCollisions(t *testing.T) {
	local := []models.Document{
		doc("doc_1", "Same", "identical", 0),
		doc("doc_2", "Clash", "mine", 0),
		doc("doc_3", "Clash (2)", "other", 0),
	}
	remote := []models.Document{
		doc("srv-1", "Same", "identical", time.Minute),
		doc("srv-2", "Clash", "theirs", time.Minute),
	}

	p := BuildPlan(local, remote, t0)

	assert.Equal(t, []Relabel{{LocalID: "doc_1", RemoteID: "srv-1"}}, p.Relabel)

	require.Len(t, p.Rename, 1)
	assert.Equal(t, "doc_2", p.Rename[0].ID)
	assert.Equal(t, "Clash (3)", p.Rename[0].Name)

	require.Len(t, p.Collisions, 1)
	c := p.Collisions[0]
	assert.Equal(t, "doc_2", c.LocalID)
	assert.Equal(t, "srv-2", c.DocumentID)
	assert.Equal(t, "Clash (3)", c.Name)
	assert.Equal(t, "mine", c.Content)
	assert.True(t, c.Conflict)

	require.Len(t, p.Push, 1)
	assert.Equal(t, "doc_3", p.Push[0].Document.ID)
}

func TestBuildPlan_SecondPassIsEmpty(t *testing.T) {
	remote := []models.Document{doc("srv-1", "A", "x", time.Minute), doc("srv-2", "B", "y", 0)}
	local := Merge(nil, remote)

	p := BuildPlan(local, remote, t0)
	assert.True(t, p.Empty(), "%+v", p)
	assert.Empty(t, p.Collisions)
}
