package merge

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dmitrijs2005/docsync/internal/client/client"
	"github.com/dmitrijs2005/docsync/internal/client/models"
	"github.com/dmitrijs2005/docsync/internal/client/session"
	"github.com/dmitrijs2005/docsync/internal/client/syncer"
	"github.com/dmitrijs2005/docsync/internal/common"
	"github.com/dmitrijs2005/docsync/internal/logging"
	"github.com/dmitrijs2005/docsync/internal/timex"
)

type Remote interface {
	ListDocuments(ctx context.Context) ([]models.Document, error)
	ListCategories(ctx context.Context) ([]string, error)
}

type Store interface {
	List(ctx context.Context) ([]models.Document, error)
	Categories(ctx context.Context) ([]string, error)
	Save(ctx context.Context, doc models.Document) (*models.Document, error)
	Relabel(ctx context.Context, localID, serverID string) error
	MarkSynced(ctx context.Context, id string, updatedAt time.Time) (bool, error)
	ApplyRemote(ctx context.Context, batch []models.Document) ([]models.Document, error)
	ReplaceCategories(ctx context.Context, names []string) error
}

// Pusher queues remote writes; the sync coordinator implements it.
type Pusher interface {
	Enqueue(ctx context.Context, op syncer.Op) bool
}

// Result summarizes one reconciliation pass.
type Result struct {
	Applied    int
	Pushed     int
	Relabeled  int
	Renamed    int
	Collisions []models.RecoveryRecord
}

type Resolver struct {
	remote Remote
	store  Store
	pusher Pusher
	clock  timex.Clock
	logger logging.Logger
}

func NewResolver(remote Remote, store Store, pusher Pusher, clock timex.Clock, logger logging.Logger) *Resolver {
	if clock == nil {
		clock = timex.SystemClock()
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Resolver{remote: remote, store: store, pusher: pusher, clock: clock, logger: logger}
}

// Reconcile runs one full pass for the given session. Remote writes are
// queued on the pusher, local writes happen immediately.
func (r *Resolver) Reconcile(ctx context.Context, st session.State) (Result, error) {
	var res Result
	if !st.IsAuthenticated() {
		return res, common.ErrUnauthorized
	}
	rctx := client.WithToken(ctx, st.Token)

	remoteDocs, err := r.remote.ListDocuments(rctx)
	if err != nil {
		return res, fmt.Errorf("failed to fetch remote documents: %w", err)
	}
	remoteCats, err := r.remote.ListCategories(rctx)
	if err != nil {
		return res, fmt.Errorf("failed to fetch remote categories: %w", err)
	}

	local, err := r.store.List(ctx)
	if err != nil {
		return res, err
	}
	localCats, err := r.store.Categories(ctx)
	if err != nil {
		return res, err
	}

	plan := BuildPlan(local, remoteDocs, r.clock.Now())
	res.Collisions = plan.Collisions

	for _, rl := range plan.Relabel {
		if err := r.store.Relabel(ctx, rl.LocalID, rl.RemoteID); err != nil {
			return res, err
		}
		res.Relabeled++
	}

	for _, doc := range plan.Rename {
		saved, err := r.store.Save(ctx, doc)
		if err != nil {
			if errors.Is(err, common.ErrValidation) {
				r.logger.Warn(ctx, "could not rename colliding document", "id", doc.ID, "error", err)
				continue
			}
			return res, err
		}
		res.Renamed++
		if r.push(ctx, *saved, true) {
			res.Pushed++
		}
	}

	if len(plan.Apply) > 0 {
		skipped, err := r.store.ApplyRemote(ctx, plan.Apply)
		if err != nil {
			return res, err
		}
		res.Applied = len(plan.Apply) - len(skipped)
		now := r.clock.Now()
		for _, d := range skipped {
			res.Collisions = append(res.Collisions, models.RecoveryRecord{
				DocumentID:   d.ID,
				Name:         d.Name,
				Category:     d.Category,
				Content:      d.Content,
				Conflict:     true,
				RecoveredAt:  now,
				ConflictType: models.ConflictCollision,
			})
		}
	}

	for _, doc := range plan.Synced {
		if _, err := r.store.MarkSynced(ctx, doc.ID, doc.UpdatedAt); err != nil {
			return res, err
		}
	}

	for _, p := range plan.Push {
		if r.push(ctx, p.Document, p.Create) {
			res.Pushed++
		}
	}

	if err := r.reconcileCategories(ctx, localCats, remoteCats, Merge(local, remoteDocs)); err != nil {
		return res, err
	}

	r.logger.Info(ctx, "reconciled with remote store", "applied", res.Applied, "pushed", res.Pushed,
		"relabeled", res.Relabeled, "renamed", res.Renamed, "collisions", len(res.Collisions))
	return res, nil
}

func (r *Resolver) push(ctx context.Context, doc models.Document, create bool) bool {
	kind := syncer.OpUpdate
	if create {
		kind = syncer.OpCreate
	}
	d := doc
	return r.pusher.Enqueue(ctx, syncer.Op{Kind: kind, DocumentID: d.ID, Document: &d})
}

func (r *Resolver) reconcileCategories(ctx context.Context, localCats, remoteCats []string, merged []models.Document) error {
	cats := MergeCategories(localCats, remoteCats, merged)
	if !slices.Equal(cats, localCats) {
		if err := r.store.ReplaceCategories(ctx, cats); err != nil {
			return err
		}
	}
	for _, c := range cats {
		if c != common.DefaultCategory && !slices.Contains(remoteCats, c) {
			r.pusher.Enqueue(ctx, syncer.Op{Kind: syncer.OpCategoryCreate, Category: c})
		}
	}
	return nil
}
