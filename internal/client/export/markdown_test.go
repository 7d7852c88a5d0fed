package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/docsync/internal/client/models"
	"github.com/google/go-cmp/cmp"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkdown_Golden(t *testing.T) {
	tests := []struct {
		name string
		doc  models.Document
	}{
		{
			name: "synced",
			doc: models.Document{
				ID:        "srv-1",
				Name:      "Meeting notes",
				Category:  "Work",
				Content:   "# Agenda\n\n- budget\n- hiring",
				CreatedAt: time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
				UpdatedAt: time.Date(2026, 3, 2, 19, 5, 0, 0, time.FixedZone("EET", 2*60*60)),
				IsShared:  true,
			},
		},
		{
			name: "empty",
			doc:  models.Document{ID: "doc_1", Name: "Untitled Document"},
		},
	}

	g := goldie.New(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Markdown(&buf, &tt.doc))
			g.Assert(t, tt.name, buf.Bytes())
		})
	}
}

func TestMarkdown_NilDocument(t *testing.T) {
	require.Error(t, Markdown(&bytes.Buffer{}, nil))
}

func TestParse_RoundTrip(t *testing.T) {
	in := models.Document{
		ID:        "srv-9",
		Name:      "Plan: Q3",
		Category:  "Work",
		Content:   "line one\n---\nline three\n",
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		UpdatedAt: time.Date(2026, 1, 3, 3, 4, 5, 0, time.UTC),
	}

	var buf bytes.Buffer
	require.NoError(t, Markdown(&buf, &in))

	out, err := Parse(&buf)
	require.NoError(t, err)
	if diff := cmp.Diff(in, *out); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_HandWritten(t *testing.T) {
	src := "---\r\nname:  Shopping \r\n---\r\nmilk\r\neggs\r\n"

	doc, err := Parse(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, "Shopping", doc.Name)
	assert.Equal(t, "General", doc.Category)
	assert.Equal(t, "milk\neggs\n", doc.Content)
	assert.Empty(t, doc.ID)
	assert.True(t, doc.CreatedAt.IsZero())
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse(strings.NewReader("# no header\n"))
	require.ErrorIs(t, err, ErrNoFrontMatter)

	_, err = Parse(strings.NewReader("---\nname: x\n"))
	require.ErrorIs(t, err, ErrUnclosedHeader)

	_, err = Parse(strings.NewReader("---\nname: [unterminated\n---\n"))
	require.Error(t, err)
}
