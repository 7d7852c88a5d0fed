package categories

import "context"

// Repository stores the user-created categories. The default category is
// implicit and never stored.
type Repository interface {
	List(ctx context.Context, userID string) ([]string, error)
	Exists(ctx context.Context, userID, name string) (bool, error)
	Create(ctx context.Context, userID, name string) error
	Rename(ctx context.Context, userID, oldName, newName string) error
	Delete(ctx context.Context, userID, name string) error
}
