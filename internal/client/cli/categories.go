package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/docsync/internal/client/store"
)

var errUsage = errors.New("usage: category add|rename|delete [name]")

func (a *App) Categories(ctx context.Context) error {
	cats, err := a.docs.Categories(ctx)
	if err != nil {
		return err
	}
	for _, c := range cats {
		a.println(" -", c)
	}
	return nil
}

// argOrPrompt returns args[i], or asks for it when the command line stops
// short. Prompting keeps names with spaces usable.
func (a *App) argOrPrompt(args []string, i int, prompt string) (string, error) {
	if i < len(args) {
		return args[i], nil
	}
	return askLine(a.reader, prompt, a.out)
}

// Category runs "category add|rename|delete".
func (a *App) Category(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}

	switch args[0] {
	case "add":
		name, err := a.argOrPrompt(args, 1, "Category name")
		if err != nil {
			return err
		}
		if err := a.docs.AddCategory(ctx, name); err != nil {
			return err
		}
		a.printf("Added %s\n", name)

	case "rename":
		oldName, err := a.argOrPrompt(args, 1, "Current name")
		if err != nil {
			return err
		}
		newName, err := a.argOrPrompt(args, 2, "New name")
		if err != nil {
			return err
		}
		if err := a.docs.RenameCategory(ctx, oldName, newName); err != nil {
			return err
		}
		a.printf("Renamed %s to %s\n", oldName, newName)

	case "delete":
		name, err := a.argOrPrompt(args, 1, "Category name")
		if err != nil {
			return err
		}
		opts, err := a.deletePolicy()
		if err != nil {
			return err
		}
		if err := a.docs.DeleteCategory(ctx, name, opts); err != nil {
			return err
		}
		a.printf("Deleted %s\n", name)

	default:
		return errUsage
	}
	return nil
}

// deletePolicy asks what happens to the documents of a deleted category.
func (a *App) deletePolicy() (store.DeleteCategoryOptions, error) {
	answer, err := askLine(a.reader,
		"Documents: (m)ove to another category or (d)elete them? [m]", a.out)
	if err != nil {
		return store.DeleteCategoryOptions{}, err
	}

	switch strings.ToLower(answer) {
	case "", "m", "move":
		target, err := askLine(a.reader, "Move to (empty for General)", a.out)
		if err != nil {
			return store.DeleteCategoryOptions{}, err
		}
		return store.DeleteCategoryOptions{MigrateTo: target}, nil
	case "d", "delete":
		return store.DeleteCategoryOptions{DeleteDocs: true}, nil
	default:
		return store.DeleteCategoryOptions{}, fmt.Errorf("unknown answer %q", answer)
	}
}
