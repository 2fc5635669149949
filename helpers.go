package postadmin

import (
	"net/url"
	"path"
	"strconv"
	"strings"
)

// BuildURL joins a base URL with path segments, ensuring a trailing slash.
func BuildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Path = path.Join(u.Path, path.Join(pathSegments...))
	if len(pathSegments) > 0 && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String()
}

// absoluteURL resolves ref against base; refs that are already absolute are
// returned unchanged.
func absoluteURL(base, ref string) string {
	r, err := url.Parse(ref)
	if err != nil || r.IsAbs() {
		return ref
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

// PageURL returns the listing URL for q with page replaced, keeping the
// filter, sort and search in the query string.
func PageURL(q ListQuery, page int) string {
	return listURL(q.Filter, q.Sort, q.Search, page)
}

// SortURL returns the listing URL ordering by field. Selecting the active
// field flips its direction.
func SortURL(q ListQuery, field SortField) string {
	s := Sort{Field: field, Direction: Asc}
	if q.Sort.Field == field && q.Sort.Direction == Asc {
		s.Direction = Desc
	}
	return listURL(q.Filter, s, q.Search, 1)
}

// FilterURL returns the listing URL showing only f.
func FilterURL(q ListQuery, f Filter) string {
	return listURL(f, q.Sort, q.Search, 1)
}

func listURL(f Filter, s Sort, search string, page int) string {
	v := url.Values{}
	if f != FilterAll {
		v.Set("status", string(f))
	}
	if s != DefaultSort && s.Field != "" {
		v.Set("sort", string(s.Field))
		v.Set("dir", string(s.Direction))
	}
	if search = strings.TrimSpace(search); search != "" {
		v.Set("q", search)
	}
	if page > 1 {
		v.Set("page", strconv.Itoa(page))
	}
	if len(v) == 0 {
		return "/admin/"
	}
	return "/admin/?" + v.Encode()
}
