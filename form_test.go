package postadmin

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/postadmin/events"
)

type fakeAssets struct {
	mu       sync.Mutex
	stored   []string
	deleted  []string
	storeErr error
}

func (f *fakeAssets) StoreImage(_ context.Context, data []byte, dirHint string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.storeErr != nil {
		return "", f.storeErr
	}
	ref := dirHint + "/img-" + string(rune('a'+len(f.stored))) + ".png"
	f.stored = append(f.stored, ref)
	return ref, nil
}

func (f *fakeAssets) DeleteImage(_ context.Context, ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, ref)
	return nil
}

func (f *fakeAssets) URL(ref string) string { return "/" + ref }

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.PostPublished
	err    error
}

func (r *recordingPublisher) PublishPostPublished(_ context.Context, e events.PostPublished) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.err
}

type formFixture struct {
	store    *Store
	forms    *FormController
	assets   *fakeAssets
	pub      *recordingPublisher
	category Category
	author   Author
}

func setupForms(t *testing.T) formFixture {
	t.Helper()
	s := setupTestStore(t)
	c, a := seedRefs(t, s)
	assets := &fakeAssets{}
	pub := &recordingPublisher{}
	return formFixture{
		store:    s,
		forms:    NewFormController(s, NewCategoryCache(s, 0), s, assets, pub, nil),
		assets:   assets,
		pub:      pub,
		category: c,
		author:   a,
	}
}

func (f formFixture) input(name string) CreateInput {
	return CreateInput{
		Name:        name,
		CategoryID:  f.category.ID,
		AuthorID:    f.author.ID,
		Description: "...",
	}
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestSubmitCreateGeneratesSlugAndDefaultsToDraft(t *testing.T) {
	f := setupForms(t)
	ctx := context.Background()

	post, err := f.forms.SubmitCreate(ctx, f.input("Hello World"))
	require.NoError(t, err)
	assert.Equal(t, "hello-world", post.Slug)
	assert.Equal(t, StatusDraft, post.Status)
	assert.Empty(t, f.pub.events, "drafts are not announced")

	second, err := f.forms.SubmitCreate(ctx, f.input("Hello World"))
	require.NoError(t, err)
	assert.Equal(t, "hello-world-2", second.Slug)

	third, err := f.forms.SubmitCreate(ctx, f.input("Hello, World!"))
	require.NoError(t, err)
	assert.Equal(t, "hello-world-3", third.Slug)
}

func TestSubmitCreateFallbackSlug(t *testing.T) {
	f := setupForms(t)
	post, err := f.forms.SubmitCreate(context.Background(), f.input("日本語"))
	require.NoError(t, err)
	assert.Equal(t, "post", post.Slug)
}

func TestSubmitCreateCollectsPresenceErrors(t *testing.T) {
	f := setupForms(t)
	_, err := f.forms.SubmitCreate(context.Background(), CreateInput{
		Name:   "  ",
		Status: "archived",
		Slug:   "Not A Slug",
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	for _, field := range []string{"name", "categoryId", "authorId", "description", "status", "slug"} {
		assert.True(t, verr.Has(field), field)
	}
}

func TestSubmitCreateUnknownCategory(t *testing.T) {
	f := setupForms(t)
	in := f.input("Lost")
	in.CategoryID = 999

	_, err := f.forms.SubmitCreate(context.Background(), in)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.Has("categoryId"))
	assert.False(t, verr.Has("authorId"))
}

func TestSubmitCreateUnknownAuthor(t *testing.T) {
	f := setupForms(t)
	in := f.input("Lost")
	in.AuthorID = 999

	_, err := f.forms.SubmitCreate(context.Background(), in)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.Has("authorId"))
}

func TestSubmitCreatePresenceBeforeReferences(t *testing.T) {
	f := setupForms(t)
	in := f.input("")
	in.CategoryID = 999

	_, err := f.forms.SubmitCreate(context.Background(), in)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.Has("name"))
	assert.False(t, verr.Has("categoryId"), "reference checks wait for presence to pass")
}

func TestSubmitCreateExplicitSlug(t *testing.T) {
	f := setupForms(t)
	ctx := context.Background()
	in := f.input("Anything")
	in.Slug = "custom-slug"

	post, err := f.forms.SubmitCreate(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "custom-slug", post.Slug)

	_, err = f.forms.SubmitCreate(ctx, in)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.Has("slug"), "a taken explicit slug is not renamed")
}

func TestSubmitCreatePublishedAnnounces(t *testing.T) {
	f := setupForms(t)
	in := f.input("Launch")
	in.Status = "published"

	post, err := f.forms.SubmitCreate(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, f.pub.events, 1)
	e := f.pub.events[0]
	assert.Equal(t, events.TypePostPublished, e.Type)
	assert.Equal(t, post.ID, e.Payload.PostID)
	assert.Equal(t, "launch", e.Payload.Slug)
}

func TestSubmitCreatePublishFailureDoesNotFailCreate(t *testing.T) {
	f := setupForms(t)
	f.pub.err = errors.New("broker down")
	in := f.input("Launch")
	in.Status = "published"

	post, err := f.forms.SubmitCreate(context.Background(), in)
	require.NoError(t, err)
	_, err = f.store.Get(context.Background(), post.ID)
	assert.NoError(t, err)
}

func TestSubmitCreateWithImage(t *testing.T) {
	f := setupForms(t)
	in := f.input("Pic")
	in.Image = &Upload{Filename: "a.png", Data: pngBytes(t)}

	post, err := f.forms.SubmitCreate(context.Background(), in)
	require.NoError(t, err)
	require.NotNil(t, post.Image)
	assert.Equal(t, f.assets.stored[0], *post.Image)
}

func TestSubmitCreateRejectsNonImage(t *testing.T) {
	f := setupForms(t)
	in := f.input("Pic")
	in.Image = &Upload{Filename: "a.txt", Data: []byte("not an image")}

	_, err := f.forms.SubmitCreate(context.Background(), in)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.Has("image"))
	assert.Empty(t, f.assets.stored)
}

func TestSubmitCreateStorageFailure(t *testing.T) {
	f := setupForms(t)
	f.assets.storeErr = errors.New("disk full")
	in := f.input("Pic")
	in.Image = &Upload{Filename: "a.png", Data: pngBytes(t)}

	_, err := f.forms.SubmitCreate(context.Background(), in)
	var serr *StorageError
	require.ErrorAs(t, err, &serr)

	page, err := f.store.ListPosts(context.Background(), ListQuery{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Zero(t, page.Total, "nothing is written when the image cannot be stored")
}

func TestSubmitEditChangesOnlyGivenFields(t *testing.T) {
	f := setupForms(t)
	ctx := context.Background()
	orig, err := f.forms.SubmitCreate(ctx, f.input("Draft Post"))
	require.NoError(t, err)

	published := "published"
	updated, err := f.forms.SubmitEdit(ctx, orig.ID, EditInput{Status: &published})
	require.NoError(t, err)
	assert.Equal(t, StatusPublished, updated.Status)
	assert.Equal(t, orig.Name, updated.Name)
	assert.Equal(t, orig.Slug, updated.Slug)
	assert.Equal(t, orig.CategoryID, updated.CategoryID)
	assert.Equal(t, orig.AuthorID, updated.AuthorID)
	assert.Equal(t, orig.Description, updated.Description)
	assert.True(t, orig.CreatedAt.Equal(updated.CreatedAt))

	require.Len(t, f.pub.events, 1, "draft to published is announced")

	_, err = f.forms.SubmitEdit(ctx, orig.ID, EditInput{Status: &published})
	require.NoError(t, err)
	assert.Len(t, f.pub.events, 1, "saving a published post again is not announced")
}

func TestSubmitEditIgnoresSlug(t *testing.T) {
	f := setupForms(t)
	ctx := context.Background()
	orig, err := f.forms.SubmitCreate(ctx, f.input("Stable"))
	require.NoError(t, err)

	name := "Renamed"
	slug := "renamed"
	updated, err := f.forms.SubmitEdit(ctx, orig.ID, EditInput{Name: &name, Slug: &slug})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, "stable", updated.Slug)
}

func TestSubmitEditValidation(t *testing.T) {
	f := setupForms(t)
	ctx := context.Background()
	orig, err := f.forms.SubmitCreate(ctx, f.input("Post"))
	require.NoError(t, err)

	empty := ""
	bad := "archived"
	_, err = f.forms.SubmitEdit(ctx, orig.ID, EditInput{Name: &empty, Description: &empty, Status: &bad})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.Has("name"))
	assert.True(t, verr.Has("description"))
	assert.True(t, verr.Has("status"))

	missing := int64(999)
	_, err = f.forms.SubmitEdit(ctx, orig.ID, EditInput{CategoryID: &missing})
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.Has("categoryId"))

	got, err := f.store.Get(ctx, orig.ID)
	require.NoError(t, err)
	assert.Equal(t, orig.Name, got.Name, "rejected edits leave the post untouched")
}

func TestSubmitEditUnknownPost(t *testing.T) {
	f := setupForms(t)
	name := "x"
	_, err := f.forms.SubmitEdit(context.Background(), 12345, EditInput{Name: &name})
	assert.True(t, IsNotFound(err))
}

func TestSubmitEditReplacesAndRemovesImage(t *testing.T) {
	f := setupForms(t)
	ctx := context.Background()
	in := f.input("Pic")
	in.Image = &Upload{Filename: "a.png", Data: pngBytes(t)}
	orig, err := f.forms.SubmitCreate(ctx, in)
	require.NoError(t, err)

	updated, err := f.forms.SubmitEdit(ctx, orig.ID, EditInput{Image: &Upload{Filename: "b.png", Data: pngBytes(t)}})
	require.NoError(t, err)
	require.NotNil(t, updated.Image)
	assert.NotEqual(t, *orig.Image, *updated.Image)

	updated, err = f.forms.SubmitEdit(ctx, orig.ID, EditInput{RemoveImage: true})
	require.NoError(t, err)
	assert.Nil(t, updated.Image)
}

func TestSubmitEditUnknownPostSkipsUpload(t *testing.T) {
	f := setupForms(t)
	ctx := context.Background()
	orig, err := f.forms.SubmitCreate(ctx, f.input("Post"))
	require.NoError(t, err)
	require.NoError(t, f.store.Delete(ctx, orig.ID))

	_, err = f.forms.SubmitEdit(ctx, orig.ID, EditInput{Image: &Upload{Filename: "a.png", Data: pngBytes(t)}})
	assert.True(t, IsNotFound(err))
	assert.Empty(t, f.assets.stored, "unknown posts are rejected before any upload")
}

type failingCreateStore struct {
	*Store
}

func (failingCreateStore) Create(context.Context, PostDraft) (Post, error) {
	return Post{}, errors.New("insert failed")
}

func TestSubmitCreateDiscardsImageWhenInsertFails(t *testing.T) {
	f := setupForms(t)
	forms := NewFormController(failingCreateStore{f.store}, f.store, f.store, f.assets, nil, nil)
	in := f.input("Pic")
	in.Image = &Upload{Filename: "a.png", Data: pngBytes(t)}

	_, err := forms.SubmitCreate(context.Background(), in)
	require.Error(t, err)
	require.Len(t, f.assets.stored, 1)
	assert.Equal(t, f.assets.stored, f.assets.deleted)
}
