package services

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/docsync/internal/common"
	"github.com/dmitrijs2005/docsync/internal/dbx"
)

// DeleteCategoryOptions selects what happens to the documents of a deleted
// category. Without DeleteDocs they move to MigrateTo, or to the default
// category when MigrateTo is empty.
type DeleteCategoryOptions struct {
	MigrateTo  string
	DeleteDocs bool
}

// Categories lists the default category followed by the user's own.
func (s *DocumentService) Categories(ctx context.Context, userID string) ([]string, error) {
	names, err := s.repomanager.Categories(s.db).List(ctx, userID)
	if err != nil {
		return nil, err
	}
	return append([]string{common.DefaultCategory}, names...), nil
}

// CreateCategory adds a category. The default one always exists and yields
// common.ErrConflict like any other existing name.
func (s *DocumentService) CreateCategory(ctx context.Context, userID, name string) error {
	name = strings.TrimSpace(name)
	if err := validateCategory(name); err != nil {
		return err
	}
	if name == common.DefaultCategory {
		return common.ErrConflict
	}
	return s.repomanager.Categories(s.db).Create(ctx, userID, name)
}

// RenameCategory renames a category and moves its documents along.
func (s *DocumentService) RenameCategory(ctx context.Context, userID, oldName, newName string) error {
	oldName, newName = strings.TrimSpace(oldName), strings.TrimSpace(newName)
	if oldName == common.DefaultCategory || newName == common.DefaultCategory {
		return common.NewValidationError("category", common.ErrDefaultCategory)
	}
	if err := validateCategory(newName); err != nil {
		return err
	}
	if oldName == newName {
		return nil
	}

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		cats := s.repomanager.Categories(tx)

		exists, err := cats.Exists(ctx, userID, newName)
		if err != nil {
			return err
		}
		if exists {
			return common.ErrConflict
		}
		if err := cats.Rename(ctx, userID, oldName, newName); err != nil {
			return err
		}
		_, err = s.repomanager.Documents(tx).MoveCategory(ctx, userID, oldName, newName, s.now())
		return err
	})
}

// DeleteCategory removes a category and moves or deletes its documents.
func (s *DocumentService) DeleteCategory(ctx context.Context, userID, name string, opts DeleteCategoryOptions) error {
	name = strings.TrimSpace(name)
	if name == common.DefaultCategory {
		return common.NewValidationError("category", common.ErrDefaultCategory)
	}
	target := strings.TrimSpace(opts.MigrateTo)
	if target == "" {
		target = common.DefaultCategory
	}
	if !opts.DeleteDocs {
		if target == name {
			return common.NewValidationError("migrate_to", errSameCategory)
		}
		if err := validateCategory(target); err != nil {
			return err
		}
	}

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		docs := s.repomanager.Documents(tx)

		exists, err := s.repomanager.Categories(tx).Exists(ctx, userID, name)
		if err != nil {
			return err
		}
		if !exists {
			return common.ErrNotFound
		}

		if opts.DeleteDocs {
			if _, err := docs.DeleteByCategory(ctx, userID, name); err != nil {
				return err
			}
		} else {
			if err := s.ensureCategory(ctx, tx, userID, target); err != nil {
				return err
			}
			if _, err := docs.MoveCategory(ctx, userID, name, target, s.now()); err != nil {
				return err
			}
		}
		return s.repomanager.Categories(tx).Delete(ctx, userID, name)
	})
}

// ensureCategory creates name unless it is the default or already exists.
func (s *DocumentService) ensureCategory(ctx context.Context, tx dbx.DBTX, userID, name string) error {
	if name == common.DefaultCategory {
		return nil
	}
	cats := s.repomanager.Categories(tx)
	exists, err := cats.Exists(ctx, userID, name)
	if err != nil || exists {
		return err
	}
	return cats.Create(ctx, userID, name)
}
