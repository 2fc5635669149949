package postadmin

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupPostgresStore connects to TEST_DATABASE_URL and empties the tables.
func setupPostgresStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	s, err := NewPostgresStore(url)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	_, err = s.db.ExecContext(context.Background(), `TRUNCATE posts, categories, users RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	return s
}

func TestPostgresPostLifecycle(t *testing.T) {
	s := setupPostgresStore(t)
	ctx := context.Background()
	c, a := seedRefs(t, s)

	p := createPost(t, s, "Hello", "hello", c, a, StatusDraft)
	_, err := s.Create(ctx, PostDraft{Name: "Dup", Slug: "hello", CategoryID: c.ID, AuthorID: a.ID, Status: StatusDraft, Description: "x"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.Has("slug"))

	published := StatusPublished
	updated, err := s.Update(ctx, p.ID, PostPatch{Status: &published})
	require.NoError(t, err)
	assert.Equal(t, StatusPublished, updated.Status)
	assert.Equal(t, "hello", updated.Slug)

	posts, err := s.PublishedPosts(ctx, 10)
	require.NoError(t, err)
	require.Len(t, posts, 1)

	var inUse *InUseError
	require.ErrorAs(t, s.DeleteCategory(ctx, c.ID), &inUse)

	n, err := s.DeleteMany(ctx, []int64{p.ID, 999})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, IsNotFound(s.Delete(ctx, p.ID)))
}

func TestPostgresListPosts(t *testing.T) {
	s := setupPostgresStore(t)
	c, a := seedRefs(t, s)
	createPost(t, s, "beta", "beta", c, a, StatusDraft)
	createPost(t, s, "Alpha", "alpha", c, a, StatusPublished)
	createPost(t, s, "100% off", "100-off", c, a, StatusDraft)

	page, err := s.ListPosts(context.Background(), ListQuery{
		Filter:   FilterDraft,
		Sort:     Sort{Field: SortName, Direction: Asc},
		Page:     1,
		PageSize: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"100% off", "beta"}, names(page))
	assert.Equal(t, 1, page.Rows[0].SerialNumber)

	page, err = s.ListPosts(context.Background(), ListQuery{Search: "%", Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"100% off"}, names(page))

	slugs, err := s.SlugsWithPrefix(context.Background(), "alpha")
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha"}, slugs)
}
