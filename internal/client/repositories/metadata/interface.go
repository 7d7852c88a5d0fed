// Package metadata stores small client state values (session status,
// current-document pointer, last document id) in a key-value table.
package metadata

import (
	"context"
)

// Well-known keys.
const (
	KeyCurrentDocument = "currentDocument"
	KeyLastDocumentID  = "lastDocumentId"
	KeySessionStatus   = "lastSessionStatus"
	KeyToken           = "token"
	KeyUser            = "user"
)

// Repository is a key-value store. Get returns (nil, nil) for a missing key.
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string][]byte, error)
	Clear(ctx context.Context) error
}
