package syncer

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/docsync/internal/client/models"
	"github.com/sethvargo/go-retry"
)

type OpKind string

const (
	OpCreate         OpKind = "create"
	OpUpdate         OpKind = "update"
	OpDelete         OpKind = "delete"
	OpSetCurrent     OpKind = "set-current"
	OpCategoryCreate OpKind = "category-create"
	OpCategoryRename OpKind = "category-rename"
	OpCategoryDelete OpKind = "category-delete"
)

// Op is one remote mutation.
type Op struct {
	Kind       OpKind
	DocumentID string
	// Document is the payload of create and update.
	Document *models.Document

	Category    string
	NewCategory string
	MigrateTo   string
	DeleteDocs  bool
}

func (o Op) isDocument() bool {
	return o.Kind == OpCreate || o.Kind == OpUpdate || o.Kind == OpDelete
}

func docKey(id string) string { return "doc:" + id }

const currentKey = "current"

// Entry is a queued Op. Key groups entries that coalesce; at most one entry
// per key is queued and at most one is in flight.
type Entry struct {
	Key           string
	Op            Op
	Attempts      int
	NextAttemptAt time.Time

	seq     uint64
	warned  bool
	backoff retry.Backoff
}

// coalesce folds next into prev for the same key. ok is false when the two
// cancel out.
func coalesce(prev, next Op) (op Op, ok bool) {
	switch prev.Kind {
	case OpCreate:
		switch next.Kind {
		case OpCreate, OpUpdate:
			next.Kind = OpCreate
			return next, true
		case OpDelete:
			return Op{}, false
		}
	}
	return next, true
}

func (e *Entry) String() string {
	return fmt.Sprintf("%s %s (attempt %d)", e.Op.Kind, e.Key, e.Attempts)
}
