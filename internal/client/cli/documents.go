package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/dmitrijs2005/docsync/internal/client/models"
)

var errNoCurrent = errors.New("no document is open")

// New prompts for a document and stores it locally. The sync coordinator
// pushes it once a session is active.
func (a *App) New(ctx context.Context) error {
	name, err := askLine(a.reader, "Enter name (empty for \""+models.NewPlaceholder().Name+"\")", a.out)
	if err != nil {
		return err
	}
	category, err := askLine(a.reader, "Enter category (empty for General)", a.out)
	if err != nil {
		return err
	}
	content, err := askBody(a.reader, "Enter content", a.out)
	if err != nil {
		return err
	}

	doc, err := a.docs.Save(ctx, models.Document{Name: name, Category: category, Content: content})
	if err != nil {
		return err
	}
	if _, err := a.docs.Open(ctx, doc.ID); err != nil {
		a.logger.Warn(ctx, "failed to open new document", "id", doc.ID, "error", err)
	}
	a.printf("Created %s\n", doc.ID)
	return nil
}

// Edit updates a document. Empty answers keep the current value.
func (a *App) Edit(ctx context.Context, id string) error {
	doc, err := a.docs.Get(ctx, id)
	if err != nil {
		return err
	}

	if doc.Name, err = AskWithDefault(a.reader, "Name", doc.Name, a.out); err != nil {
		return err
	}
	if doc.Category, err = AskWithDefault(a.reader, "Category", doc.Category, a.out); err != nil {
		return err
	}
	content, err := askBody(a.reader, "New content (empty keeps the current text)", a.out)
	if err != nil {
		return err
	}
	if content != "" {
		doc.Content = content
	}

	saved, err := a.docs.Save(ctx, *doc)
	if err != nil {
		return err
	}
	a.printf("Saved %s\n", saved.ID)
	return nil
}

func (a *App) List(ctx context.Context) error {
	docs, err := a.docs.List(ctx)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		a.println("No documents.")
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tUPDATED\tSTATE")
	for _, d := range docs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", d.ID, d.Name, d.Category,
			d.UpdatedAt.Local().Format("2006-01-02 15:04"), docState(&d))
	}
	return tw.Flush()
}

func docState(d *models.Document) string {
	var flags []string
	if d.Pending {
		flags = append(flags, "pending")
	} else {
		flags = append(flags, "synced")
	}
	if d.IsShared {
		flags = append(flags, "shared")
	}
	return strings.Join(flags, ",")
}

func (a *App) Show(ctx context.Context, id string) error {
	doc, err := a.docs.Get(ctx, id)
	if err != nil {
		return err
	}
	a.printDocument(doc)
	return nil
}

func (a *App) printDocument(doc *models.Document) {
	a.printf("%s  [%s]  %s\n", doc.Name, doc.Category, doc.ID)
	a.printf("updated %s, %s\n\n", doc.UpdatedAt.Local().Format("2006-01-02 15:04"), docState(doc))
	a.println(doc.Content)
}

func (a *App) Delete(ctx context.Context, id string) error {
	if err := a.docs.Delete(ctx, id); err != nil {
		return err
	}
	a.printf("Deleted %s\n", id)
	return nil
}

// Open makes id the current document.
func (a *App) Open(ctx context.Context, id string) error {
	doc, err := a.docs.Open(ctx, id)
	if err != nil {
		return err
	}
	a.printDocument(doc)
	return nil
}

func (a *App) Current(ctx context.Context) error {
	doc := a.docs.Current()
	if doc == nil {
		return errNoCurrent
	}
	a.printDocument(doc)
	return nil
}
