// Package export converts documents to and from Markdown files with YAML
// front matter.
package export

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dmitrijs2005/docsync/internal/client/models"
	"gopkg.in/yaml.v3"
)

var (
	ErrNoFrontMatter  = errors.New("missing front matter: file must start with '---'")
	ErrUnclosedHeader = errors.New("missing closing front matter delimiter '---'")
	errNilDocument    = errors.New("document is nil")
)

const delimiter = "---"

type frontMatter struct {
	ID       string     `yaml:"id,omitempty"`
	Name     string     `yaml:"name"`
	Category string     `yaml:"category"`
	Created  *time.Time `yaml:"created,omitempty"`
	Updated  *time.Time `yaml:"updated,omitempty"`
	Shared   bool       `yaml:"shared,omitempty"`
}

// Markdown writes doc as a Markdown file.
func Markdown(w io.Writer, doc *models.Document) error {
	if doc == nil {
		return errNilDocument
	}

	fm := frontMatter{
		ID:       doc.ID,
		Name:     doc.Name,
		Category: models.CategoryOrDefault(doc.Category),
		Shared:   doc.IsShared,
	}
	if !doc.CreatedAt.IsZero() {
		c := doc.CreatedAt.UTC()
		fm.Created = &c
	}
	if !doc.UpdatedAt.IsZero() {
		u := doc.UpdatedAt.UTC()
		fm.Updated = &u
	}

	header, err := yaml.Marshal(fm)
	if err != nil {
		return fmt.Errorf("failed to encode front matter: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(delimiter + "\n")
	buf.Write(header)
	buf.WriteString(delimiter + "\n")
	if doc.Content != "" {
		buf.WriteString("\n")
		buf.WriteString(doc.Content)
		if !strings.HasSuffix(doc.Content, "\n") {
			buf.WriteString("\n")
		}
	}

	_, err = w.Write(buf.Bytes())
	return err
}

// Parse reads a Markdown file written by Markdown (or by hand). The id and
// timestamps are informational; callers decide whether to keep them.
func Parse(r io.Reader) (*models.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	if !bytes.HasPrefix(data, []byte(delimiter+"\n")) {
		return nil, ErrNoFrontMatter
	}

	lines := bytes.Split(data, []byte("\n"))
	closing := 0
	for i := 1; i < len(lines); i++ {
		if bytes.Equal(bytes.TrimSpace(lines[i]), []byte(delimiter)) {
			closing = i
			break
		}
	}
	if closing == 0 {
		return nil, ErrUnclosedHeader
	}

	var fm frontMatter
	if err := yaml.Unmarshal(bytes.Join(lines[1:closing], []byte("\n")), &fm); err != nil {
		return nil, fmt.Errorf("failed to parse front matter: %w", err)
	}

	body := string(bytes.Join(lines[closing+1:], []byte("\n")))
	body = strings.TrimPrefix(body, "\n")

	doc := &models.Document{
		ID:       fm.ID,
		Name:     strings.TrimSpace(fm.Name),
		Category: models.CategoryOrDefault(fm.Category),
		Content:  body,
		IsShared: fm.Shared,
	}
	if fm.Created != nil {
		doc.CreatedAt = *fm.Created
	}
	if fm.Updated != nil {
		doc.UpdatedAt = *fm.Updated
	}
	return doc, nil
}
