package services

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/docsync/internal/common"
	"github.com/dmitrijs2005/docsync/internal/server/models"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// RecoveredInput is an autosave snapshot sent by a client. DocumentID is
// empty for documents that never reached the server.
type RecoveredInput struct {
	DocumentID string `json:"document_id"`
	Name       string `json:"name"`
	Category   string `json:"category"`
	Content    string `json:"content"`
}

func (in RecoveredInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.RuneLength(0, maxNameLength)),
		validation.Field(&in.Category, validation.RuneLength(0, maxCategoryLength)),
		validation.Field(&in.Content, validation.Length(0, maxContentBytes)),
	)
}

// ListRecovered returns the snapshots waiting to be claimed.
func (s *DocumentService) ListRecovered(ctx context.Context, userID string) ([]models.RecoveredDocument, error) {
	return s.repomanager.Recovered(s.db).List(ctx, userID)
}

// SaveRecovered stores a snapshot. Blank names and categories fall back to
// the defaults so a snapshot is always presentable.
func (s *DocumentService) SaveRecovered(ctx context.Context, userID string, in RecoveredInput) (*models.RecoveredDocument, error) {
	if err := toValidationError(in.Validate()); err != nil {
		return nil, err
	}

	doc := &models.RecoveredDocument{
		ID:         s.newID(),
		UserID:     userID,
		DocumentID: strings.TrimSpace(in.DocumentID),
		Name:       strings.TrimSpace(in.Name),
		Category:   strings.TrimSpace(in.Category),
		Content:    in.Content,
		SavedAt:    s.now(),
	}
	if doc.Name == "" {
		doc.Name = common.DefaultDocumentName
	}
	if doc.Category == "" {
		doc.Category = common.DefaultCategory
	}
	if doc.DocumentID != "" && validateID(doc.DocumentID) != nil {
		doc.DocumentID = ""
	}

	if err := s.repomanager.Recovered(s.db).Create(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// DeleteRecovered acknowledges a snapshot.
func (s *DocumentService) DeleteRecovered(ctx context.Context, userID, id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	return s.repomanager.Recovered(s.db).Delete(ctx, userID, id)
}
