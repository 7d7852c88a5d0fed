package current

import "context"

// Repository remembers each user's current document. Get returns "" when
// none is set.
type Repository interface {
	Get(ctx context.Context, userID string) (string, error)
	Set(ctx context.Context, userID, documentID string) error
}
