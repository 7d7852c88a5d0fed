package httpapi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/docsync/internal/common"
	"github.com/dmitrijs2005/docsync/internal/logging"
	"github.com/dmitrijs2005/docsync/internal/server/models"
	"github.com/dmitrijs2005/docsync/internal/server/services"
)

type UserService interface {
	Register(ctx context.Context, c services.Credentials) (*models.User, error)
	Login(ctx context.Context, c services.Credentials) (string, error)
	UserIDFromToken(token string) (string, error)
}

type DocumentService interface {
	List(ctx context.Context, userID string) ([]models.Document, error)
	Get(ctx context.Context, userID, id string) (*models.Document, error)
	Create(ctx context.Context, userID string, in services.DocumentInput) (*models.Document, error)
	Update(ctx context.Context, userID, id string, in services.DocumentInput) (*models.Document, error)
	Delete(ctx context.Context, userID, id string) error

	Categories(ctx context.Context, userID string) ([]string, error)
	CreateCategory(ctx context.Context, userID, name string) error
	RenameCategory(ctx context.Context, userID, oldName, newName string) error
	DeleteCategory(ctx context.Context, userID, name string, opts services.DeleteCategoryOptions) error

	CurrentDocument(ctx context.Context, userID string) (string, error)
	SetCurrentDocument(ctx context.Context, userID, id string) error

	ListRecovered(ctx context.Context, userID string) ([]models.RecoveredDocument, error)
	SaveRecovered(ctx context.Context, userID string, in services.RecoveredInput) (*models.RecoveredDocument, error)
	DeleteRecovered(ctx context.Context, userID, id string) error
}

type ShareService interface {
	Share(ctx context.Context, userID, documentID string) (*models.Share, error)
}

type Handler struct {
	users  UserService
	docs   DocumentService
	shares ShareService
	logger logging.Logger
}

func NewHandler(u UserService, d DocumentService, s ShareService, l logging.Logger) *Handler {
	return &Handler{users: u, docs: d, shares: s, logger: l.With("module", "http_api")}
}

type registerResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type nameRequest struct {
	Name string `json:"name"`
}

type currentDocument struct {
	DocumentID string `json:"document_id"`
}

// Routes builds the API mux. Literal segments such as /documents/categories
// take precedence over the /documents/{id} wildcard.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", h.healthz)
	mux.HandleFunc("POST /auth/register", h.register)
	mux.HandleFunc("POST /auth/login", h.login)

	authed := http.NewServeMux()
	authed.HandleFunc("GET /documents", h.listDocuments)
	authed.HandleFunc("POST /documents", h.createDocument)
	authed.HandleFunc("GET /documents/{id}", h.getDocument)
	authed.HandleFunc("PUT /documents/{id}", h.updateDocument)
	authed.HandleFunc("DELETE /documents/{id}", h.deleteDocument)
	authed.HandleFunc("POST /documents/{id}/share", h.shareDocument)

	authed.HandleFunc("GET /documents/categories", h.listCategories)
	authed.HandleFunc("POST /documents/categories", h.createCategory)
	authed.HandleFunc("PATCH /documents/categories/{name}", h.renameCategory)
	authed.HandleFunc("DELETE /documents/categories/{name}", h.deleteCategory)

	authed.HandleFunc("GET /documents/current", h.getCurrent)
	authed.HandleFunc("PUT /documents/current", h.setCurrent)

	authed.HandleFunc("GET /documents/recovered", h.listRecovered)
	authed.HandleFunc("POST /documents/recovered", h.saveRecovered)
	authed.HandleFunc("DELETE /documents/recovered/{id}", h.deleteRecovered)

	protected := h.Auth(authed)
	mux.Handle("/documents", protected)
	mux.Handle("/documents/", protected)

	return h.Recovery(h.Logging(mux))
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var c services.Credentials
	if err := ParseJSON(w, r, &c); err != nil {
		h.handleError(w, r, err)
		return
	}

	u, err := h.users.Register(r.Context(), c)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusCreated, registerResponse{ID: u.ID, Username: u.UserName})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var c services.Credentials
	if err := ParseJSON(w, r, &c); err != nil {
		h.handleError(w, r, err)
		return
	}

	token, err := h.users.Login(r.Context(), c)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, tokenResponse{Token: token})
}

func (h *Handler) listDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.docs.List(r.Context(), GetUserID(r.Context()))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	if docs == nil {
		docs = []models.Document{}
	}
	RespondJSON(w, http.StatusOK, docs)
}

func (h *Handler) getDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.docs.Get(r.Context(), GetUserID(r.Context()), r.PathValue("id"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, doc)
}

func (h *Handler) createDocument(w http.ResponseWriter, r *http.Request) {
	var in services.DocumentInput
	if err := ParseJSON(w, r, &in); err != nil {
		h.handleError(w, r, err)
		return
	}

	doc, err := h.docs.Create(r.Context(), GetUserID(r.Context()), in)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusCreated, doc)
}

func (h *Handler) updateDocument(w http.ResponseWriter, r *http.Request) {
	var in services.DocumentInput
	if err := ParseJSON(w, r, &in); err != nil {
		h.handleError(w, r, err)
		return
	}

	doc, err := h.docs.Update(r.Context(), GetUserID(r.Context()), r.PathValue("id"), in)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, doc)
}

func (h *Handler) deleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := h.docs.Delete(r.Context(), GetUserID(r.Context()), r.PathValue("id")); err != nil {
		h.handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) shareDocument(w http.ResponseWriter, r *http.Request) {
	share, err := h.shares.Share(r.Context(), GetUserID(r.Context()), r.PathValue("id"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, share)
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	names, err := h.docs.Categories(r.Context(), GetUserID(r.Context()))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, names)
}

func (h *Handler) createCategory(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := ParseJSON(w, r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}

	if err := h.docs.CreateCategory(r.Context(), GetUserID(r.Context()), req.Name); err != nil {
		h.handleError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusCreated, req)
}

func (h *Handler) renameCategory(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := ParseJSON(w, r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}

	if err := h.docs.RenameCategory(r.Context(), GetUserID(r.Context()), r.PathValue("name"), req.Name); err != nil {
		h.handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteCategory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := services.DeleteCategoryOptions{MigrateTo: q.Get("migrate_to")}
	if raw := q.Get("delete_docs"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			h.handleError(w, r, common.NewValidationError("delete_docs", err))
			return
		}
		opts.DeleteDocs = v
	}

	if err := h.docs.DeleteCategory(r.Context(), GetUserID(r.Context()), r.PathValue("name"), opts); err != nil {
		h.handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getCurrent(w http.ResponseWriter, r *http.Request) {
	id, err := h.docs.CurrentDocument(r.Context(), GetUserID(r.Context()))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, currentDocument{DocumentID: id})
}

func (h *Handler) setCurrent(w http.ResponseWriter, r *http.Request) {
	var req currentDocument
	if err := ParseJSON(w, r, &req); err != nil {
		h.handleError(w, r, err)
		return
	}

	if err := h.docs.SetCurrentDocument(r.Context(), GetUserID(r.Context()), req.DocumentID); err != nil {
		h.handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listRecovered(w http.ResponseWriter, r *http.Request) {
	items, err := h.docs.ListRecovered(r.Context(), GetUserID(r.Context()))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	if items == nil {
		items = []models.RecoveredDocument{}
	}
	RespondJSON(w, http.StatusOK, items)
}

func (h *Handler) saveRecovered(w http.ResponseWriter, r *http.Request) {
	var in services.RecoveredInput
	if err := ParseJSON(w, r, &in); err != nil {
		h.handleError(w, r, err)
		return
	}

	item, err := h.docs.SaveRecovered(r.Context(), GetUserID(r.Context()), in)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusCreated, item)
}

func (h *Handler) deleteRecovered(w http.ResponseWriter, r *http.Request) {
	if err := h.docs.DeleteRecovered(r.Context(), GetUserID(r.Context()), r.PathValue("id")); err != nil {
		h.handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
