package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/dmitrijs2005/docsync/internal/common"
	"github.com/dmitrijs2005/docsync/internal/dbx"
	"github.com/dmitrijs2005/docsync/internal/server/models"
	"github.com/dmitrijs2005/docsync/internal/server/repositories/repomanager"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
)

// DocumentInput is the create and update payload. Zero timestamps are
// replaced by the server clock.
type DocumentInput struct {
	Name      string    `json:"name"`
	Content   string    `json:"content"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (in *DocumentInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Category = strings.TrimSpace(in.Category)
	if in.Category == "" {
		in.Category = common.DefaultCategory
	}
}

func (in DocumentInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.RuneLength(1, maxNameLength)),
		validation.Field(&in.Category, categoryRules...),
		validation.Field(&in.Content, validation.Length(0, maxContentBytes)),
	)
}

// DocumentService owns documents, categories, the current-document pointer
// and autosave snapshots. Every method is scoped to one user.
type DocumentService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	now         func() time.Time
	newID       func() string
}

func NewDocumentService(db *sql.DB, m repomanager.RepositoryManager) *DocumentService {
	return &DocumentService{
		db:          db,
		repomanager: m,
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewString,
	}
}

func (s *DocumentService) List(ctx context.Context, userID string) ([]models.Document, error) {
	return s.repomanager.Documents(s.db).List(ctx, userID)
}

func (s *DocumentService) Get(ctx context.Context, userID, id string) (*models.Document, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	return s.repomanager.Documents(s.db).Get(ctx, userID, id)
}

// Create stores a new document under a server-assigned id. The category is
// created on first use. A name already taken in the category yields
// common.ErrConflict.
func (s *DocumentService) Create(ctx context.Context, userID string, in DocumentInput) (*models.Document, error) {
	in.normalize()
	if err := toValidationError(in.Validate()); err != nil {
		return nil, err
	}

	now := s.now()
	doc := &models.Document{
		ID:        s.newID(),
		UserID:    userID,
		Name:      in.Name,
		Content:   in.Content,
		Category:  in.Category,
		CreatedAt: orNow(in.CreatedAt, now),
		UpdatedAt: orNow(in.UpdatedAt, now),
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.ensureCategory(ctx, tx, userID, doc.Category); err != nil {
			return err
		}
		return s.repomanager.Documents(tx).Create(ctx, doc)
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Update replaces the user-visible fields of a document. CreatedAt is kept.
func (s *DocumentService) Update(ctx context.Context, userID, id string, in DocumentInput) (*models.Document, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	in.normalize()
	if err := toValidationError(in.Validate()); err != nil {
		return nil, err
	}

	var doc *models.Document
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Documents(tx)

		existing, err := repo.Get(ctx, userID, id)
		if err != nil {
			return err
		}
		if err := s.ensureCategory(ctx, tx, userID, in.Category); err != nil {
			return err
		}

		existing.Name = in.Name
		existing.Content = in.Content
		existing.Category = in.Category
		existing.UpdatedAt = orNow(in.UpdatedAt, s.now())
		if err := repo.Update(ctx, existing); err != nil {
			return err
		}
		doc = existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *DocumentService) Delete(ctx context.Context, userID, id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	return s.repomanager.Documents(s.db).Delete(ctx, userID, id)
}

// CurrentDocument returns the user's current document id, or "".
func (s *DocumentService) CurrentDocument(ctx context.Context, userID string) (string, error) {
	return s.repomanager.Current(s.db).Get(ctx, userID)
}

// SetCurrentDocument stores id as current. The document must exist; an
// empty id clears the pointer.
func (s *DocumentService) SetCurrentDocument(ctx context.Context, userID, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return s.repomanager.Current(s.db).Set(ctx, userID, "")
	}
	if err := validateID(id); err != nil {
		return err
	}
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := s.repomanager.Documents(tx).Get(ctx, userID, id); err != nil {
			return err
		}
		return s.repomanager.Current(tx).Set(ctx, userID, id)
	})
}

// validateID rejects ids that are not server-assigned. Local "doc_" ids
// never exist remotely, so they read as unknown documents.
func validateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return common.ErrNotFound
	}
	return nil
}

func orNow(t, now time.Time) time.Time {
	if t.IsZero() {
		return now
	}
	return t.UTC()
}

var errSameCategory = errors.New("must differ from the deleted category")
