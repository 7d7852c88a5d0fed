package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/docsync/internal/client/models"
	"github.com/dmitrijs2005/docsync/internal/common"
)

const defaultTimeout = 15 * time.Second

type HTTPClient struct {
	baseURL string
	http    *http.Client
}

type HTTPOption func(*HTTPClient)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTPClient) { h.http = c }
}

func NewHTTPClient(baseURL string, opts ...HTTPOption) *HTTPClient {
	c := &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

var _ Client = (*HTTPClient)(nil)

// do sends a JSON request and decodes a JSON response into out (when
// non-nil).
func (c *HTTPClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := TokenFrom(ctx); tok != "" {
		req.Header.Set(common.AuthorizationHeader, common.BearerPrefix+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return mapTransportError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return mapResponse(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", common.ErrUnavailable, err)
	}
	return nil
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

func (c *HTTPClient) Register(ctx context.Context, username, password string) error {
	return c.do(ctx, http.MethodPost, "/auth/register", credentials{username, password}, nil)
}

func (c *HTTPClient) Login(ctx context.Context, username, password string) (string, error) {
	var resp tokenResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", credentials{username, password}, &resp); err != nil {
		return "", err
	}
	return resp.Token, nil
}

func (c *HTTPClient) ListDocuments(ctx context.Context) ([]models.Document, error) {
	var out []models.Document
	if err := c.do(ctx, http.MethodGet, "/documents", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	var out models.Document
	if err := c.do(ctx, http.MethodGet, "/documents/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// documentPayload is the writable part of a document.
type documentPayload struct {
	Name      string    `json:"name"`
	Content   string    `json:"content"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func payloadOf(d models.Document) documentPayload {
	return documentPayload{Name: d.Name, Content: d.Content, Category: d.Category,
		CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt}
}

func (c *HTTPClient) CreateDocument(ctx context.Context, doc models.Document) (*models.Document, error) {
	var out models.Document
	if err := c.do(ctx, http.MethodPost, "/documents", payloadOf(doc), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) UpdateDocument(ctx context.Context, doc models.Document) (*models.Document, error) {
	var out models.Document
	if err := c.do(ctx, http.MethodPut, "/documents/"+url.PathEscape(doc.ID), payloadOf(doc), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) DeleteDocument(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/documents/"+url.PathEscape(id), nil, nil)
}

type categoryRequest struct {
	Name string `json:"name"`
}

func (c *HTTPClient) ListCategories(ctx context.Context) ([]string, error) {
	var out []string
	if err := c.do(ctx, http.MethodGet, "/documents/categories", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) CreateCategory(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodPost, "/documents/categories", categoryRequest{Name: name}, nil)
}

func (c *HTTPClient) RenameCategory(ctx context.Context, oldName, newName string) error {
	return c.do(ctx, http.MethodPatch, "/documents/categories/"+url.PathEscape(oldName),
		categoryRequest{Name: newName}, nil)
}

func (c *HTTPClient) DeleteCategory(ctx context.Context, name, migrateTo string, deleteDocs bool) error {
	q := url.Values{}
	if deleteDocs {
		q.Set("delete_docs", "true")
	} else if migrateTo != "" {
		q.Set("migrate_to", migrateTo)
	}
	path := "/documents/categories/" + url.PathEscape(name)
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

type currentDocument struct {
	DocumentID string `json:"document_id"`
}

func (c *HTTPClient) GetCurrentDocument(ctx context.Context) (string, error) {
	var out currentDocument
	if err := c.do(ctx, http.MethodGet, "/documents/current", nil, &out); err != nil {
		return "", err
	}
	return out.DocumentID, nil
}

func (c *HTTPClient) SetCurrentDocument(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPut, "/documents/current", currentDocument{DocumentID: id}, nil)
}

func (c *HTTPClient) ListRecovered(ctx context.Context) ([]models.RecoveredDocument, error) {
	var out []models.RecoveredDocument
	if err := c.do(ctx, http.MethodGet, "/documents/recovered", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) SaveRecovered(ctx context.Context, doc models.Document) (*models.RecoveredDocument, error) {
	in := models.RecoveredDocument{Name: doc.Name, Category: doc.Category, Content: doc.Content}
	if doc.HasServerID() {
		in.DocumentID = doc.ID
	}
	var out models.RecoveredDocument
	if err := c.do(ctx, http.MethodPost, "/documents/recovered", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) DeleteRecovered(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/documents/recovered/"+url.PathEscape(id), nil, nil)
}

func (c *HTTPClient) ShareDocument(ctx context.Context, id string) (*models.Share, error) {
	var out models.Share
	if err := c.do(ctx, http.MethodPost, "/documents/"+url.PathEscape(id)+"/share", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
