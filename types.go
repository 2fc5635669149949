package postadmin

import (
	"strings"
	"time"
)

// Status is the visibility state of a post.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
)

// ParseStatus maps form and API values onto a Status. An empty value is the
// default (draft); anything other than the two defined values is rejected.
func ParseStatus(s string) (Status, bool) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case "", StatusDraft:
		return StatusDraft, true
	case StatusPublished:
		return StatusPublished, true
	}
	return "", false
}

// Label is the human readable form used by the admin views.
func (s Status) Label() string {
	switch s {
	case StatusPublished:
		return "Published"
	case StatusDraft:
		return "Draft"
	}
	return string(s)
}

// Post is the core content type managed by the admin panel.
type Post struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	CategoryID  int64     `json:"categoryId"`
	AuthorID    int64     `json:"authorId"`
	Image       *string   `json:"image,omitempty"`
	Status      Status    `json:"status"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Published reports whether the post is publicly visible.
func (p Post) Published() bool {
	return p.Status == StatusPublished
}

// PostDraft is a fully validated post ready to be inserted.
type PostDraft struct {
	Name        string
	Slug        string
	CategoryID  int64
	AuthorID    int64
	Image       *string
	Status      Status
	Description string
}

// PostPatch lists the re-writable fields of a post. Nil fields are left
// untouched. Slug and creation time have no place here on purpose: they are
// immutable once the post exists.
type PostPatch struct {
	Name        *string
	CategoryID  *int64
	AuthorID    *int64
	Image       *string
	ClearImage  bool
	Status      *Status
	Description *string
}

// Category groups posts; the form offers them as a select.
type Category struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// Author is a user that can be credited on a post.
type Author struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// PageMeta carries per-page metadata into the admin layout.
type PageMeta struct {
	Title string
	Site  string
}
