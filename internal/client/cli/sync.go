package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/dmitrijs2005/docsync/internal/client/models"
	"github.com/dmitrijs2005/docsync/internal/common"
	"github.com/dmitrijs2005/docsync/internal/filex"
	"github.com/dmitrijs2005/docsync/internal/netx"
)

// fetchURL is a seam for downloading shared documents.
var fetchURL = netx.FetchPresignedURL

var errRecoverUsage = errors.New("usage: recover [accept|discard <n>]")

// Sync merges with the server now and sends every queued change.
func (a *App) Sync(ctx context.Context) error {
	if !a.isLoggedIn() {
		return fmt.Errorf("%w: log in to sync", common.ErrUnauthorized)
	}
	if err := a.engine.Sync(ctx); err != nil {
		if errors.Is(err, common.ErrUnavailable) {
			a.setMode(ModeOffline)
		}
		return err
	}
	a.printf("Synced, %d change(s) still queued\n", len(a.engine.Pending()))
	return nil
}

// Recover lists recovery records, or accepts or discards one by its number
// in that list.
func (a *App) Recover(ctx context.Context, args []string) error {
	if len(args) == 0 {
		a.engine.VisibilityRegained(ctx)
		a.printRecords(a.engine.Records())
		return nil
	}
	if len(args) != 2 {
		return errRecoverUsage
	}

	n, err := strconv.Atoi(args[1])
	if err != nil || n < 1 {
		return errRecoverUsage
	}

	switch args[0] {
	case "accept":
		doc, err := a.engine.Accept(ctx, n-1)
		if err != nil {
			return err
		}
		a.printf("Kept %q as %s\n", doc.Name, doc.ID)
	case "discard":
		if err := a.engine.Discard(ctx, n-1); err != nil {
			return err
		}
		a.println("Discarded.")
	default:
		return errRecoverUsage
	}
	return nil
}

func (a *App) printRecords(recs []models.RecoveryRecord) {
	if len(recs) == 0 {
		a.println("Nothing to recover.")
		return
	}
	for i, r := range recs {
		mark := ""
		if r.Conflict {
			mark = " (differs from the synced copy)"
		}
		a.printf("%d. [%s] %s / %s, %d bytes%s\n", i+1, r.ConflictType, r.Category, r.Name, len(r.Content), mark)
	}
}

func (a *App) Share(ctx context.Context, id string) error {
	share, err := a.docs.Share(ctx, id)
	if err != nil {
		return err
	}
	a.printf("Shared %s\n%s\n", id, share.URL)
	if !share.ExpiresAt.IsZero() {
		a.printf("link expires %s\n", share.ExpiresAt.Local().Format("2006-01-02 15:04"))
	}
	return nil
}

// Export writes a document as Markdown with a YAML header.
func (a *App) Export(ctx context.Context, id, path string) error {
	if err := filex.EnsureParentDir(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := a.docs.Export(ctx, id, f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	a.printf("Exported %s to %s\n", id, path)
	return nil
}

// Import reads a Markdown file written by Export (or by hand) into a new
// document. A share link is downloaded first.
func (a *App) Import(ctx context.Context, path string) error {
	var r io.Reader
	if netx.IsURL(path) {
		b, err := fetchURL(ctx, path)
		if err != nil {
			return err
		}
		r = bytes.NewReader(b)
	} else {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}

	doc, err := a.docs.Import(ctx, r)
	if err != nil {
		return err
	}
	a.printf("Imported %q as %s\n", doc.Name, doc.ID)
	return nil
}
