package postadmin

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

// CreateCategory adds a category. Names are unique.
func (s *Store) CreateCategory(ctx context.Context, name string) (Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Category{}, invalidField("name", "is required")
	}
	c := Category{Name: name, CreatedAt: now()}
	err := s.db.QueryRowContext(ctx,
		s.bind(`INSERT INTO categories (name, created_at) VALUES (?, ?) RETURNING id`),
		c.Name, s.dialect.timeValue(c.CreatedAt),
	).Scan(&c.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return Category{}, invalidField("name", "is already taken")
		}
		return Category{}, err
	}
	return c, nil
}

// ListCategories returns every category ordered by name.
func (s *Store) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, created_at FROM categories ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, dbTime{&c.CreatedAt}); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteCategory removes a category no post refers to. A category still in
// use fails with *InUseError; posts are never reassigned implicitly.
func (s *Store) DeleteCategory(ctx context.Context, id int64) error {
	return s.deleteReferenced(ctx, "category", "categories", "category_id", id)
}

// CreateUser adds an author.
func (s *Store) CreateUser(ctx context.Context, name string) (Author, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Author{}, invalidField("name", "is required")
	}
	a := Author{Name: name, CreatedAt: now()}
	err := s.db.QueryRowContext(ctx,
		s.bind(`INSERT INTO users (name, created_at) VALUES (?, ?) RETURNING id`),
		a.Name, s.dialect.timeValue(a.CreatedAt),
	).Scan(&a.ID)
	if err != nil {
		return Author{}, err
	}
	return a, nil
}

// ListUsers returns every author ordered by name, for the author select.
func (s *Store) ListUsers(ctx context.Context) ([]Author, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, created_at FROM users ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Author
	for rows.Next() {
		var a Author
		if err := rows.Scan(&a.ID, &a.Name, dbTime{&a.CreatedAt}); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ResolveUser returns the author with id or a *NotFoundError.
func (s *Store) ResolveUser(ctx context.Context, id int64) (Author, error) {
	var a Author
	err := s.db.QueryRowContext(ctx, s.bind(`SELECT id, name, created_at FROM users WHERE id = ?`), id).
		Scan(&a.ID, &a.Name, dbTime{&a.CreatedAt})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Author{}, &NotFoundError{Entity: "user", ID: id}
		}
		return Author{}, err
	}
	return a, nil
}

// DeleteUser removes an author no post is credited to.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	return s.deleteReferenced(ctx, "user", "users", "author_id", id)
}

func (s *Store) deleteReferenced(ctx context.Context, entity, table, column string, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	refs, err := s.count(ctx, tx, `SELECT COUNT(*) FROM posts WHERE `+column+` = ?`, id)
	if err != nil {
		return err
	}
	if refs > 0 {
		return &InUseError{Entity: entity, ID: id, Posts: refs}
	}
	res, err := tx.ExecContext(ctx, s.bind(`DELETE FROM `+table+` WHERE id = ?`), id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return &InUseError{Entity: entity, ID: id}
		}
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &NotFoundError{Entity: entity, ID: id}
	}
	return tx.Commit()
}
