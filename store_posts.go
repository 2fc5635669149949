package postadmin

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const postColumns = `p.id, p.name, p.slug, p.category_id, p.author_id, p.image, p.status, p.description, p.created_at, p.updated_at`

// deleteChunk bounds the IN list of a single bulk DELETE.
const deleteChunk = 500

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner, extra ...any) (Post, error) {
	var p Post
	var image sql.NullString
	var status string
	dest := []any{
		&p.ID, &p.Name, &p.Slug, &p.CategoryID, &p.AuthorID, &image, &status, &p.Description,
		dbTime{&p.CreatedAt}, dbTime{&p.UpdatedAt},
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return Post{}, err
	}
	if image.Valid {
		p.Image = &image.String
	}
	p.Status = Status(status)
	return p, nil
}

// Create inserts a new post. A slug that is already taken, or a category or
// author that does not exist, fails with *ValidationError.
func (s *Store) Create(ctx context.Context, d PostDraft) (Post, error) {
	if d.Status == "" {
		d.Status = StatusDraft
	}
	if _, ok := ParseStatus(string(d.Status)); !ok {
		return Post{}, invalidField("status", "must be draft or published")
	}
	if d.Slug == "" {
		return Post{}, invalidField("slug", "is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Post{}, err
	}
	defer tx.Rollback()

	verr := &ValidationError{}
	if err := s.checkCategory(ctx, tx, d.CategoryID, verr); err != nil {
		return Post{}, err
	}
	if err := s.checkAuthor(ctx, tx, d.AuthorID, verr); err != nil {
		return Post{}, err
	}
	if err := verr.orNil(); err != nil {
		return Post{}, err
	}

	ts := now()
	p := Post{
		Name:        d.Name,
		Slug:        d.Slug,
		CategoryID:  d.CategoryID,
		AuthorID:    d.AuthorID,
		Image:       d.Image,
		Status:      d.Status,
		Description: d.Description,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
	err = tx.QueryRowContext(ctx, s.bind(`
INSERT INTO posts (name, slug, category_id, author_id, image, status, description, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id`),
		p.Name, p.Slug, p.CategoryID, p.AuthorID, p.Image, string(p.Status), p.Description,
		s.dialect.timeValue(ts), s.dialect.timeValue(ts),
	).Scan(&p.ID)
	if err != nil {
		_ = tx.Rollback()
		return Post{}, s.postWriteError(ctx, err, p.CategoryID, p.AuthorID)
	}
	if err := tx.Commit(); err != nil {
		return Post{}, s.postWriteError(ctx, err, p.CategoryID, p.AuthorID)
	}
	return p, nil
}

// Update applies patch to post id. The slug and creation time never change.
func (s *Store) Update(ctx context.Context, id int64, patch PostPatch) (Post, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Post{}, err
	}
	defer tx.Rollback()

	p, err := s.get(ctx, tx, id)
	if err != nil {
		return Post{}, err
	}

	verr := &ValidationError{}
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Status != nil {
		st, ok := ParseStatus(string(*patch.Status))
		if !ok {
			verr.Add("status", "must be draft or published")
		}
		p.Status = st
	}
	if patch.CategoryID != nil && *patch.CategoryID != p.CategoryID {
		if err := s.checkCategory(ctx, tx, *patch.CategoryID, verr); err != nil {
			return Post{}, err
		}
		p.CategoryID = *patch.CategoryID
	}
	if patch.AuthorID != nil && *patch.AuthorID != p.AuthorID {
		if err := s.checkAuthor(ctx, tx, *patch.AuthorID, verr); err != nil {
			return Post{}, err
		}
		p.AuthorID = *patch.AuthorID
	}
	switch {
	case patch.ClearImage:
		p.Image = nil
	case patch.Image != nil:
		p.Image = patch.Image
	}
	if err := verr.orNil(); err != nil {
		return Post{}, err
	}

	p.UpdatedAt = now()
	_, err = tx.ExecContext(ctx, s.bind(`
UPDATE posts
SET name = ?, category_id = ?, author_id = ?, image = ?, status = ?, description = ?, updated_at = ?
WHERE id = ?`),
		p.Name, p.CategoryID, p.AuthorID, p.Image, string(p.Status), p.Description,
		s.dialect.timeValue(p.UpdatedAt), p.ID,
	)
	if err != nil {
		_ = tx.Rollback()
		return Post{}, s.postWriteError(ctx, err, p.CategoryID, p.AuthorID)
	}
	if err := tx.Commit(); err != nil {
		return Post{}, s.postWriteError(ctx, err, p.CategoryID, p.AuthorID)
	}
	return p, nil
}

// Get returns a post by id regardless of status.
func (s *Store) Get(ctx context.Context, id int64) (Post, error) {
	return s.get(ctx, s.db, id)
}

func (s *Store) get(ctx context.Context, q queryer, id int64) (Post, error) {
	row := q.QueryRowContext(ctx, s.bind(`SELECT `+postColumns+` FROM posts p WHERE p.id = ?`), id)
	p, err := scanPost(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Post{}, &NotFoundError{Entity: "post", ID: id}
		}
		return Post{}, err
	}
	return p, nil
}

// Delete hard-deletes a post.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.bind(`DELETE FROM posts WHERE id = ?`), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &NotFoundError{Entity: "post", ID: id}
	}
	return nil
}

// DeleteMany removes every listed post that exists and returns how many were
// removed. Unknown ids are skipped. Chunks are not wrapped in one
// transaction, so a failure part way through leaves earlier chunks deleted;
// the returned count still reflects them.
func (s *Store) DeleteMany(ctx context.Context, ids []int64) (int, error) {
	ids = uniqueIDs(ids)
	deleted := 0
	for start := 0; start < len(ids); start += deleteChunk {
		end := min(start+deleteChunk, len(ids))
		chunk := ids[start:end]
		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}
		q := `DELETE FROM posts WHERE id IN (` + placeholders(len(chunk)) + `)`
		res, err := s.db.ExecContext(ctx, s.bind(q), args...)
		if err != nil {
			return deleted, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return deleted, err
		}
		deleted += int(n)
	}
	return deleted, nil
}

// SlugExists reports whether any post already uses slug.
func (s *Store) SlugExists(ctx context.Context, slug string) (bool, error) {
	n, err := s.count(ctx, s.db, `SELECT COUNT(*) FROM posts WHERE slug = ?`, slug)
	return n > 0, err
}

// SlugsWithPrefix returns base itself and every base-N slug in use, which is
// the full set GenerateSlug can collide with.
func (s *Store) SlugsWithPrefix(ctx context.Context, base string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		s.bind(`SELECT slug FROM posts WHERE slug = ? OR slug LIKE ? ESCAPE '\'`),
		base, escapeLike(base)+"-%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slugs []string
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return nil, err
		}
		slugs = append(slugs, slug)
	}
	return slugs, rows.Err()
}

// PublishedPosts returns published posts, newest first, for the feed.
func (s *Store) PublishedPosts(ctx context.Context, limit int) ([]Post, error) {
	rows, err := s.db.QueryContext(ctx,
		s.bind(`SELECT `+postColumns+` FROM posts p WHERE p.status = ? ORDER BY p.created_at DESC, p.id DESC LIMIT ?`),
		string(StatusPublished), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

func (s *Store) checkCategory(ctx context.Context, q queryer, id int64, verr *ValidationError) error {
	n, err := s.count(ctx, q, `SELECT COUNT(*) FROM categories WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n == 0 {
		verr.Add("categoryId", "does not exist")
	}
	return nil
}

func (s *Store) checkAuthor(ctx context.Context, q queryer, id int64, verr *ValidationError) error {
	n, err := s.count(ctx, q, `SELECT COUNT(*) FROM users WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n == 0 {
		verr.Add("authorId", "does not exist")
	}
	return nil
}

// postWriteError turns constraint violations into validation errors. A
// foreign key failure means a reference was deleted after it was checked, so
// both are looked up again to name the one that is gone. Callers must have
// ended their transaction.
func (s *Store) postWriteError(ctx context.Context, err error, categoryID, authorID int64) error {
	switch {
	case isUniqueViolation(err):
		return invalidField("slug", "is already taken")
	case isForeignKeyViolation(err):
		verr := &ValidationError{}
		if cerr := s.checkCategory(ctx, s.db, categoryID, verr); cerr != nil {
			return fmt.Errorf("write post: %w", err)
		}
		if aerr := s.checkAuthor(ctx, s.db, authorID, verr); aerr != nil {
			return fmt.Errorf("write post: %w", err)
		}
		if len(verr.Fields) == 0 {
			verr.Add("categoryId", "category or author no longer exists")
			verr.Add("authorId", "category or author no longer exists")
		}
		return verr
	}
	return fmt.Errorf("write post: %w", err)
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
