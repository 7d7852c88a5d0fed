// Package merge reconciles the local document set with the remote one on
// login and reconnect. Conflicts are resolved per whole document by
// last-writer-wins on updated_at, ties favoring the remote copy.
package merge

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dmitrijs2005/docsync/internal/client/models"
	"github.com/dmitrijs2005/docsync/internal/client/repositories/documents"
	"github.com/dmitrijs2005/docsync/internal/common"
)

// localWins reports whether l beats r. Only a strictly newer local copy
// wins.
func localWins(l, r *models.Document) bool {
	return l.UpdatedAt.After(r.UpdatedAt)
}

// Merge returns the reconciled view of two document sets, sorted by id.
// It does not look at names; see BuildPlan for collision handling.
func Merge(local, remote []models.Document) []models.Document {
	byID := make(map[string]models.Document, len(local)+len(remote))
	for _, d := range local {
		byID[d.ID] = d
	}
	for _, r := range remote {
		if l, ok := byID[r.ID]; ok && localWins(&l, &r) {
			continue
		}
		byID[r.ID] = r
	}

	out := make([]models.Document, 0, len(byID))
	for _, d := range byID {
		d.Pending = false
		out = append(out, d)
	}
	sortByID(out)
	return out
}

// MergeCategories returns the default category first, then the local
// categories, the remote ones and finally any category referenced by docs,
// each in first-seen order.
func MergeCategories(local, remote []string, docs []models.Document) []string {
	seen := map[string]bool{common.DefaultCategory: true}
	out := []string{common.DefaultCategory}
	add := func(name string) {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		out = append(out, name)
	}
	for _, c := range local {
		add(c)
	}
	for _, c := range remote {
		add(c)
	}
	for _, d := range docs {
		add(d.Category)
	}
	return out
}

// Push is a local version to send to the remote store.
type Push struct {
	Document models.Document
	Create   bool
}

// Relabel adopts a remote id for a local-only document with identical
// content.
type Relabel struct {
	LocalID  string
	RemoteID string
}

// Plan is the set of actions that brings both sides to the merged state.
type Plan struct {
	// Relabel runs first, then Rename, then Apply, then Push.
	Relabel []Relabel
	// Rename holds local-only documents under a fresh name that no longer
	// clashes with a remote document.
	Rename []models.Document
	// Apply holds remote versions to store verbatim.
	Apply []models.Document
	// Synced holds local documents already equal to their remote copy
	// that are still flagged pending.
	Synced []models.Document
	Push   []Push

	Collisions []models.RecoveryRecord
}

// Empty reports whether the plan writes nothing.
func (p Plan) Empty() bool {
	return len(p.Relabel) == 0 && len(p.Rename) == 0 && len(p.Apply) == 0 &&
		len(p.Synced) == 0 && len(p.Push) == 0
}

type nameKey struct{ category, name string }

func keyOf(d *models.Document) nameKey {
	return nameKey{models.CategoryOrDefault(d.Category), documents.NameKey(d.Name)}
}

// BuildPlan computes the reconciliation of local against remote. It is pure:
// now only stamps the collision records.
func BuildPlan(local, remote []models.Document, now time.Time) Plan {
	local, remote = sorted(local), sorted(remote)

	localByID := make(map[string]*models.Document, len(local))
	for i := range local {
		localByID[local[i].ID] = &local[i]
	}
	remoteByID := make(map[string]*models.Document, len(remote))
	for i := range remote {
		remoteByID[remote[i].ID] = &remote[i]
	}

	// Names held by remote documents once merged.
	occupied := make(map[nameKey]string, len(remote))
	for i := range remote {
		w := &remote[i]
		if l, ok := localByID[w.ID]; ok && localWins(l, w) {
			w = l
		}
		occupied[keyOf(w)] = w.ID
	}

	var p Plan

	for i := range local {
		l := &local[i]
		r, ok := remoteByID[l.ID]
		if !ok {
			continue
		}
		switch {
		case localWins(l, r):
			p.Push = append(p.Push, Push{Document: *l})
		case l.UpdatedAt.Equal(r.UpdatedAt) && models.SameContent(l, r):
			if l.Pending {
				p.Synced = append(p.Synced, *l)
			}
		default:
			p.Apply = append(p.Apply, *r)
			if !models.SameContent(l, r) && (l.UpdatedAt.Equal(r.UpdatedAt) || l.Pending) {
				p.Collisions = append(p.Collisions, collision(l, r.ID, now))
			}
		}
	}

	for i := range remote {
		if _, ok := localByID[remote[i].ID]; !ok {
			p.Apply = append(p.Apply, remote[i])
		}
	}

	taken := make(map[nameKey]bool, len(occupied)+len(local))
	for k := range occupied {
		taken[k] = true
	}
	for i := range local {
		taken[keyOf(&local[i])] = true
	}

	for i := range local {
		l := &local[i]
		if _, ok := remoteByID[l.ID]; ok || models.IsPlaceholder(l) {
			continue
		}
		holderID, clash := occupied[keyOf(l)]
		if !clash {
			p.Push = append(p.Push, Push{Document: *l, Create: true})
			continue
		}

		r := remoteByID[holderID]
		if _, mirrored := localByID[holderID]; !mirrored && models.SameContent(l, r) {
			// The remote copy is already in Apply as a remote-only document.
			p.Relabel = append(p.Relabel, Relabel{LocalID: l.ID, RemoteID: r.ID})
			continue
		}

		renamed := *l
		renamed.Name = freeName(taken, keyOf(l).category, l.Name)
		taken[keyOf(&renamed)] = true
		p.Rename = append(p.Rename, renamed)

		rec := collision(l, r.ID, now)
		rec.Name = renamed.Name
		p.Collisions = append(p.Collisions, rec)
	}

	return p
}

func freeName(taken map[nameKey]bool, category, name string) string {
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s (%d)", name, n)
		if !taken[nameKey{category, documents.NameKey(candidate)}] {
			return candidate
		}
	}
}

func collision(l *models.Document, remoteID string, now time.Time) models.RecoveryRecord {
	return models.RecoveryRecord{
		LocalID:      l.ID,
		DocumentID:   remoteID,
		Name:         l.Name,
		Category:     models.CategoryOrDefault(l.Category),
		Content:      l.Content,
		Conflict:     true,
		RecoveredAt:  now,
		ConflictType: models.ConflictCollision,
	}
}

func sorted(docs []models.Document) []models.Document {
	out := slices.Clone(docs)
	sortByID(out)
	return out
}

func sortByID(docs []models.Document) {
	slices.SortFunc(docs, func(a, b models.Document) int { return strings.Compare(a.ID, b.ID) })
}
