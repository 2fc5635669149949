package postadmin

import (
	"context"
	"strconv"
	"strings"
)

// SortField names a sortable column of the post listing.
type SortField string

const (
	SortName       SortField = "name"
	SortCreatedAt  SortField = "createdAt"
	SortAuthorName SortField = "author.name"
)

// SortDirection is asc or desc.
type SortDirection string

const (
	Asc  SortDirection = "asc"
	Desc SortDirection = "desc"
)

// Sort orders the listing.
type Sort struct {
	Field     SortField
	Direction SortDirection
}

// DefaultSort shows the newest posts first.
var DefaultSort = Sort{Field: SortCreatedAt, Direction: Desc}

// Filter is the single-select status filter of the listing.
type Filter string

const (
	FilterAll       Filter = ""
	FilterDraft     Filter = Filter(StatusDraft)
	FilterPublished Filter = Filter(StatusPublished)
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// ListQuery selects one page of the post listing.
type ListQuery struct {
	Filter   Filter
	Sort     Sort
	Page     int
	PageSize int
	Search   string // case-insensitive substring of the name
}

// ListRow is one line of the listing table.
type ListRow struct {
	// SerialNumber is the 1-based position within the current page.
	SerialNumber int    `json:"serialNumber"`
	Post         Post   `json:"post"`
	AuthorName   string `json:"authorName"`
	CategoryName string `json:"categoryName"`
}

// ListPage is a page of rows plus the size of the whole filtered set.
type ListPage struct {
	Rows       []ListRow `json:"data"`
	Total      int       `json:"total"`
	Page       int       `json:"page"`
	PageSize   int       `json:"pageSize"`
	TotalPages int       `json:"totalPages"`
}

var sortColumns = map[SortField]string{
	SortName:       "LOWER(p.name)",
	SortCreatedAt:  "p.created_at",
	SortAuthorName: "LOWER(u.name)",
}

// ParseFilter accepts "", "all", "draft" and "published".
func ParseFilter(s string) (Filter, error) {
	switch f := Filter(strings.ToLower(strings.TrimSpace(s))); f {
	case FilterAll, "all":
		return FilterAll, nil
	case FilterDraft, FilterPublished:
		return f, nil
	}
	return "", &InvalidArgumentError{Argument: "filter", Reason: "must be draft or published"}
}

// ParseSort validates a field/direction pair. An empty field selects
// DefaultSort and an empty direction means ascending.
func ParseSort(field, direction string) (Sort, error) {
	field = strings.TrimSpace(field)
	direction = strings.ToLower(strings.TrimSpace(direction))
	if field == "" {
		if direction == "" {
			return DefaultSort, nil
		}
		field = string(DefaultSort.Field)
	}
	srt := Sort{Field: SortField(field), Direction: SortDirection(direction)}
	if srt.Direction == "" {
		srt.Direction = Asc
	}
	return srt, srt.validate()
}

func (s Sort) validate() error {
	if _, ok := sortColumns[s.Field]; !ok {
		return &InvalidArgumentError{Argument: "sort", Reason: "unsupported field " + strconv.Quote(string(s.Field))}
	}
	if s.Direction != Asc && s.Direction != Desc {
		return &InvalidArgumentError{Argument: "direction", Reason: "must be asc or desc"}
	}
	return nil
}

func (q *ListQuery) normalize() error {
	if q.Sort == (Sort{}) {
		q.Sort = DefaultSort
	}
	if q.Sort.Direction == "" {
		q.Sort.Direction = Asc
	}
	if err := q.Sort.validate(); err != nil {
		return err
	}
	if _, err := ParseFilter(string(q.Filter)); err != nil {
		return err
	}
	if q.Page < 1 {
		return &InvalidArgumentError{Argument: "page", Reason: "must be at least 1"}
	}
	if q.PageSize < 1 || q.PageSize > MaxPageSize {
		return &InvalidArgumentError{Argument: "pageSize", Reason: "must be between 1 and " + strconv.Itoa(MaxPageSize)}
	}
	q.Search = strings.TrimSpace(q.Search)
	return nil
}

func (q ListQuery) where() (string, []any) {
	var conds []string
	var args []any
	if q.Filter != FilterAll {
		conds = append(conds, "p.status = ?")
		args = append(args, string(q.Filter))
	}
	if q.Search != "" {
		conds = append(conds, `LOWER(p.name) LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(strings.ToLower(q.Search))+"%")
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListPosts returns one page of posts for the listing screen. Ordering is
// total (ties fall back to id), so pages are stable while the data set is
// unchanged.
func (s *Store) ListPosts(ctx context.Context, q ListQuery) (ListPage, error) {
	if err := q.normalize(); err != nil {
		return ListPage{}, err
	}
	where, args := q.where()

	total, err := s.count(ctx, s.db, `SELECT COUNT(*) FROM posts p`+where, args...)
	if err != nil {
		return ListPage{}, err
	}

	page := ListPage{
		Rows:       []ListRow{},
		Total:      total,
		Page:       q.Page,
		PageSize:   q.PageSize,
		TotalPages: (total + q.PageSize - 1) / q.PageSize,
	}
	// Past the last page; the offset would overflow for huge page numbers.
	if q.Page-1 >= page.TotalPages {
		return page, nil
	}

	dir := strings.ToUpper(string(q.Sort.Direction))
	query := `SELECT ` + postColumns + `, u.name, c.name
FROM posts p
JOIN users u ON u.id = p.author_id
JOIN categories c ON c.id = p.category_id` + where +
		` ORDER BY ` + sortColumns[q.Sort.Field] + ` ` + dir + `, p.id ` + dir +
		` LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, s.bind(query), append(args, q.PageSize, (q.Page-1)*q.PageSize)...)
	if err != nil {
		return ListPage{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var row ListRow
		p, err := scanPost(rows, &row.AuthorName, &row.CategoryName)
		if err != nil {
			return ListPage{}, err
		}
		row.Post = p
		row.SerialNumber = len(page.Rows) + 1
		page.Rows = append(page.Rows, row)
	}
	return page, rows.Err()
}
