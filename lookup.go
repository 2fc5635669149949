package postadmin

import "context"

// PostStore is the persistence boundary the form controller writes through.
// *Store is the production implementation.
type PostStore interface {
	Create(ctx context.Context, draft PostDraft) (Post, error)
	Update(ctx context.Context, id int64, patch PostPatch) (Post, error)
	Delete(ctx context.Context, id int64) error
	DeleteMany(ctx context.Context, ids []int64) (int, error)
	Get(ctx context.Context, id int64) (Post, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	SlugsWithPrefix(ctx context.Context, base string) ([]string, error)
}

// CategoryLookup populates the category select and validates categoryId.
type CategoryLookup interface {
	ListCategories(ctx context.Context) ([]Category, error)
}

// UserLookup resolves post authors. Unknown ids fail with *NotFoundError.
type UserLookup interface {
	ResolveUser(ctx context.Context, id int64) (Author, error)
}

var (
	_ PostStore      = (*Store)(nil)
	_ CategoryLookup = (*Store)(nil)
	_ UserLookup     = (*Store)(nil)
	_ CategoryLookup = (*CategoryCache)(nil)
)
