package postadmin

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/eringen/postadmin/events"
)

// CreateInput is a create submission. Status defaults to draft and a blank
// Slug is generated from Name.
type CreateInput struct {
	Name        string
	CategoryID  int64
	AuthorID    int64
	Status      string
	Slug        string
	Description string
	Image       *Upload
}

// EditInput is an edit submission. Nil fields keep the stored value; fields
// that are present follow the same rules as on create. Slug is accepted so
// forms can post it back, but it is ignored: slugs never change.
type EditInput struct {
	Name        *string
	CategoryID  *int64
	AuthorID    *int64
	Status      *string
	Slug        *string
	Description *string
	Image       *Upload
	RemoveImage bool
}

// FormController validates create/edit submissions and applies them to the
// post store. Checks run in stages (presence and format, then references,
// then slug uniqueness) and the first failing stage is returned with every
// field it rejected.
type FormController struct {
	posts      PostStore
	categories CategoryLookup
	users      UserLookup
	assets     AssetStore
	publisher  events.Publisher
	log        *zap.Logger
}

func NewFormController(posts PostStore, categories CategoryLookup, users UserLookup, assets AssetStore, publisher events.Publisher, log *zap.Logger) *FormController {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &FormController{
		posts:      posts,
		categories: categories,
		users:      users,
		assets:     assets,
		publisher:  publisher,
		log:        log,
	}
}

// SubmitCreate validates in and creates the post.
func (f *FormController) SubmitCreate(ctx context.Context, in CreateInput) (Post, error) {
	log := f.log.With(zap.String("op", "create_post"))

	name := strings.TrimSpace(in.Name)
	slug := strings.TrimSpace(in.Slug)

	verr := &ValidationError{}
	if name == "" {
		verr.Add("name", "is required")
	}
	if in.CategoryID <= 0 {
		verr.Add("categoryId", "is required")
	}
	if in.AuthorID <= 0 {
		verr.Add("authorId", "is required")
	}
	if strings.TrimSpace(in.Description) == "" {
		verr.Add("description", "is required")
	}
	status, ok := ParseStatus(in.Status)
	if !ok {
		verr.Add("status", "must be draft or published")
	}
	if slug != "" && !ValidSlug(slug) {
		verr.Add("slug", "may only contain lowercase letters, digits and single hyphens")
	}
	checkUpload(in.Image, verr)
	if err := verr.orNil(); err != nil {
		log.Warn("create rejected", zap.Error(err))
		return Post{}, err
	}

	if err := f.checkReferences(ctx, in.CategoryID, in.AuthorID); err != nil {
		log.Warn("create rejected", zap.Error(err))
		return Post{}, err
	}

	if slug == "" {
		generated, err := f.generateSlug(ctx, name)
		if err != nil {
			return Post{}, err
		}
		slug = generated
	} else {
		taken, err := f.posts.SlugExists(ctx, slug)
		if err != nil {
			return Post{}, err
		}
		if taken {
			log.Warn("create rejected: slug taken", zap.String("slug", slug))
			return Post{}, invalidField("slug", "is already taken")
		}
	}

	image, err := f.storeImage(ctx, in.Image)
	if err != nil {
		log.Error("image upload failed", zap.Error(err))
		return Post{}, err
	}

	post, err := f.posts.Create(ctx, PostDraft{
		Name:        name,
		Slug:        slug,
		CategoryID:  in.CategoryID,
		AuthorID:    in.AuthorID,
		Image:       image,
		Status:      status,
		Description: in.Description,
	})
	if err != nil {
		f.discardImage(ctx, image)
		log.Warn("create failed", zap.String("slug", slug), zap.Error(err))
		return Post{}, err
	}

	log.Info("post created",
		zap.Int64("id", post.ID),
		zap.String("slug", post.Slug),
		zap.String("status", string(post.Status)),
	)
	if post.Published() {
		f.announce(ctx, post)
	}
	return post, nil
}

// SubmitEdit validates in against post id and applies it.
func (f *FormController) SubmitEdit(ctx context.Context, id int64, in EditInput) (Post, error) {
	log := f.log.With(zap.String("op", "edit_post"), zap.Int64("id", id))

	current, err := f.posts.Get(ctx, id)
	if err != nil {
		return Post{}, err
	}

	var patch PostPatch
	verr := &ValidationError{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			verr.Add("name", "is required")
		}
		patch.Name = &name
	}
	if in.CategoryID != nil {
		if *in.CategoryID <= 0 {
			verr.Add("categoryId", "is required")
		}
		patch.CategoryID = in.CategoryID
	}
	if in.AuthorID != nil {
		if *in.AuthorID <= 0 {
			verr.Add("authorId", "is required")
		}
		patch.AuthorID = in.AuthorID
	}
	if in.Description != nil {
		if strings.TrimSpace(*in.Description) == "" {
			verr.Add("description", "is required")
		}
		patch.Description = in.Description
	}
	if in.Status != nil {
		status, ok := ParseStatus(*in.Status)
		if !ok {
			verr.Add("status", "must be draft or published")
		}
		patch.Status = &status
	}
	checkUpload(in.Image, verr)
	if err := verr.orNil(); err != nil {
		log.Warn("edit rejected", zap.Error(err))
		return Post{}, err
	}

	var categoryID, authorID int64
	if patch.CategoryID != nil && *patch.CategoryID != current.CategoryID {
		categoryID = *patch.CategoryID
	}
	if patch.AuthorID != nil && *patch.AuthorID != current.AuthorID {
		authorID = *patch.AuthorID
	}
	if err := f.checkReferences(ctx, categoryID, authorID); err != nil {
		log.Warn("edit rejected", zap.Error(err))
		return Post{}, err
	}

	image, err := f.storeImage(ctx, in.Image)
	if err != nil {
		log.Error("image upload failed", zap.Error(err))
		return Post{}, err
	}
	patch.Image = image
	patch.ClearImage = in.RemoveImage && image == nil

	updated, err := f.posts.Update(ctx, id, patch)
	if err != nil {
		f.discardImage(ctx, image)
		log.Warn("edit failed", zap.Error(err))
		return Post{}, err
	}

	log.Info("post updated", zap.String("status", string(updated.Status)))
	if !current.Published() && updated.Published() {
		f.announce(ctx, updated)
	}
	return updated, nil
}

// checkReferences resolves the category and author; a zero id is skipped.
func (f *FormController) checkReferences(ctx context.Context, categoryID, authorID int64) error {
	verr := &ValidationError{}
	if categoryID != 0 {
		categories, err := f.categories.ListCategories(ctx)
		if err != nil {
			return err
		}
		if !categoryExists(categories, categoryID) {
			verr.Add("categoryId", "does not exist")
		}
	}
	if authorID != 0 {
		if _, err := f.users.ResolveUser(ctx, authorID); err != nil {
			if !IsNotFound(err) {
				return err
			}
			verr.Add("authorId", "does not exist")
		}
	}
	return verr.orNil()
}

func (f *FormController) generateSlug(ctx context.Context, name string) (string, error) {
	slugs, err := f.posts.SlugsWithPrefix(ctx, slugBase(name))
	if err != nil {
		return "", err
	}
	existing := make(map[string]struct{}, len(slugs))
	for _, s := range slugs {
		existing[s] = struct{}{}
	}
	return GenerateSlug(name, existing), nil
}

func (f *FormController) storeImage(ctx context.Context, up *Upload) (*string, error) {
	if up == nil {
		return nil, nil
	}
	ref, err := f.assets.StoreImage(ctx, up.Data, ImageDirectory)
	if err != nil {
		var serr *StorageError
		if errors.As(err, &serr) {
			return nil, serr
		}
		return nil, &StorageError{Op: "store", Err: err}
	}
	return &ref, nil
}

// discardImage removes an image stored for a write that did not go through.
func (f *FormController) discardImage(ctx context.Context, ref *string) {
	if ref == nil {
		return
	}
	if err := f.assets.DeleteImage(ctx, *ref); err != nil {
		f.log.Warn("orphaned image left behind", zap.String("ref", *ref), zap.Error(err))
	}
}

func (f *FormController) announce(ctx context.Context, p Post) {
	e := events.NewPostPublished(p.ID, p.Slug, p.Name, p.AuthorID)
	if err := f.publisher.PublishPostPublished(ctx, e); err != nil {
		f.log.Error("publish post.published failed", zap.Int64("id", p.ID), zap.Error(err))
	}
}

func checkUpload(up *Upload, verr *ValidationError) {
	if up == nil {
		return
	}
	if _, err := detectImage(up.Data); err != nil {
		verr.Add("image", err.Error())
	}
}
