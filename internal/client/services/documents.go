package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/docsync/internal/client/client"
	"github.com/dmitrijs2005/docsync/internal/client/export"
	"github.com/dmitrijs2005/docsync/internal/client/models"
	"github.com/dmitrijs2005/docsync/internal/client/session"
	"github.com/dmitrijs2005/docsync/internal/client/store"
	"github.com/dmitrijs2005/docsync/internal/common"
)

// DocumentService is what the CLI does with documents. Every mutation goes
// to the local store first; pushing is left to the sync coordinator.
type DocumentService interface {
	List(ctx context.Context) ([]models.Document, error)
	Get(ctx context.Context, id string) (*models.Document, error)
	Save(ctx context.Context, doc models.Document) (*models.Document, error)
	Delete(ctx context.Context, id string) error

	Open(ctx context.Context, id string) (*models.Document, error)
	Current() *models.Document

	Categories(ctx context.Context) ([]string, error)
	AddCategory(ctx context.Context, name string) error
	RenameCategory(ctx context.Context, oldName, newName string) error
	DeleteCategory(ctx context.Context, name string, opts store.DeleteCategoryOptions) error

	Share(ctx context.Context, id string) (*models.Share, error)
	Export(ctx context.Context, id string, w io.Writer) error
	Import(ctx context.Context, r io.Reader) (*models.Document, error)
	Snapshot(ctx context.Context) (int, error)
}

// DocumentStore is the slice of the local store the service uses.
type DocumentStore interface {
	List(ctx context.Context) ([]models.Document, error)
	Get(ctx context.Context, id string) (*models.Document, error)
	Save(ctx context.Context, doc models.Document) (*models.Document, error)
	Delete(ctx context.Context, id string) error
	Categories(ctx context.Context) ([]string, error)
	AddCategory(ctx context.Context, name string) error
	RenameCategory(ctx context.Context, oldName, newName string) error
	DeleteCategory(ctx context.Context, name string, opts store.DeleteCategoryOptions) error
	UniqueName(ctx context.Context, category, name string) (string, error)
}

// Pointer is the current-document tracker.
type Pointer interface {
	Current() *models.Document
	Set(ctx context.Context, doc *models.Document) error
}

// Publisher holds the remote calls that bypass the sync queue.
type Publisher interface {
	ShareDocument(ctx context.Context, id string) (*models.Share, error)
	SaveRecovered(ctx context.Context, doc models.Document) (*models.RecoveredDocument, error)
}

type documentService struct {
	store   DocumentStore
	pointer Pointer
	remote  Publisher
	state   func() session.State
}

func NewDocumentService(s DocumentStore, p Pointer, remote Publisher, state func() session.State) DocumentService {
	return &documentService{store: s, pointer: p, remote: remote, state: state}
}

func (s *documentService) List(ctx context.Context) ([]models.Document, error) {
	return s.store.List(ctx)
}

func (s *documentService) Get(ctx context.Context, id string) (*models.Document, error) {
	return s.store.Get(ctx, id)
}

func (s *documentService) Save(ctx context.Context, doc models.Document) (*models.Document, error) {
	return s.store.Save(ctx, doc)
}

func (s *documentService) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

// Open makes id the current document.
func (s *documentService) Open(ctx context.Context, id string) (*models.Document, error) {
	doc, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.pointer.Set(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to set current document: %w", err)
	}
	return doc, nil
}

func (s *documentService) Current() *models.Document {
	return s.pointer.Current()
}

func (s *documentService) Categories(ctx context.Context) ([]string, error) {
	return s.store.Categories(ctx)
}

func (s *documentService) AddCategory(ctx context.Context, name string) error {
	return s.store.AddCategory(ctx, name)
}

func (s *documentService) RenameCategory(ctx context.Context, oldName, newName string) error {
	return s.store.RenameCategory(ctx, oldName, newName)
}

func (s *documentService) DeleteCategory(ctx context.Context, name string, opts store.DeleteCategoryOptions) error {
	return s.store.DeleteCategory(ctx, name, opts)
}

// Share publishes a synced document and returns its link. Sharing needs a
// live session and a server id.
func (s *documentService) Share(ctx context.Context, id string) (*models.Share, error) {
	st := s.state()
	if !st.IsAuthenticated() {
		return nil, common.ErrUnauthorized
	}
	doc, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !doc.HasServerID() {
		return nil, common.NewValidationError("id", errors.New("document has not been synced yet"))
	}

	share, err := s.remote.ShareDocument(client.WithToken(ctx, st.Token), doc.ID)
	if err != nil {
		return nil, fmt.Errorf("share error: %w", err)
	}
	return share, nil
}

func (s *documentService) Export(ctx context.Context, id string, w io.Writer) error {
	doc, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	return export.Markdown(w, doc)
}

// Import stores a Markdown file as a new document. The name gets a numeric
// suffix when it is taken.
func (s *documentService) Import(ctx context.Context, r io.Reader) (*models.Document, error) {
	parsed, err := export.Parse(r)
	if err != nil {
		return nil, err
	}
	if parsed.Name == "" {
		parsed.Name = common.DefaultDocumentName
	}

	name, err := s.store.UniqueName(ctx, parsed.Category, parsed.Name)
	if err != nil {
		return nil, err
	}
	return s.store.Save(ctx, models.Document{Name: name, Category: parsed.Category, Content: parsed.Content})
}

// Snapshot stores every unsynced document with content as a server-side
// autosave. It is meant for abnormal termination, so the next login can
// surface the work as a collision if the queue never drained.
func (s *documentService) Snapshot(ctx context.Context) (int, error) {
	st := s.state()
	if !st.IsAuthenticated() {
		return 0, nil
	}
	docs, err := s.store.List(ctx)
	if err != nil {
		return 0, err
	}

	rctx := client.WithToken(ctx, st.Token)
	n := 0
	var errs []error
	for _, d := range docs {
		if !d.Pending || strings.TrimSpace(d.Content) == "" {
			continue
		}
		if _, err := s.remote.SaveRecovered(rctx, d); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d.ID, err))
			continue
		}
		n++
	}
	return n, errors.Join(errs...)
}
