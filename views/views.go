// Package views is the default set of admin pages. Each page is a
// templ.Component so applications can swap any of them through
// postadmin.ViewFuncs.
package views

//go:generate templ generate

import (
	"strconv"

	"github.com/eringen/postadmin"
)

const dateLayout = "2006-01-02 15:04"

// Default returns the stock admin pages.
func Default() postadmin.ViewFuncs {
	return postadmin.ViewFuncs{
		AdminLogin:  AdminLogin,
		AdminPosts:  AdminPosts,
		AdminForm:   AdminForm,
		NotFound:    NotFound,
		ServerError: ServerError,
	}
}

func pageTitle(meta postadmin.PageMeta) string {
	if meta.Title == "" {
		return meta.Site
	}
	return meta.Title + " | " + meta.Site
}

var statusFilters = []struct {
	filter postadmin.Filter
	label  string
}{
	{postadmin.FilterAll, "All"},
	{postadmin.FilterDraft, "Draft"},
	{postadmin.FilterPublished, "Published"},
}

var statuses = []postadmin.Status{postadmin.StatusDraft, postadmin.StatusPublished}

func sortArrow(d postadmin.SortDirection) string {
	if d == postadmin.Asc {
		return "▲"
	}
	return "▼"
}

func postURL(id int64) string {
	return "/admin/posts/" + itoa(id) + "/"
}

func editURL(id int64) string {
	return postURL(id) + "edit/"
}

func formAction(v postadmin.FormView) string {
	if v.Editing() {
		return postURL(v.Post.ID)
	}
	return "/admin/posts/"
}

// currentStatus is the radio to check; new posts start as drafts.
func currentStatus(v postadmin.FormView) string {
	if v.Values.Status == "" {
		return string(postadmin.StatusDraft)
	}
	return v.Values.Status
}

type option struct {
	value string
	label string
}

func categoryOptions(categories []postadmin.Category) []option {
	out := make([]option, 0, len(categories))
	for _, c := range categories {
		out = append(out, option{itoa(c.ID), c.Name})
	}
	return out
}

func authorOptions(authors []postadmin.Author) []option {
	out := make([]option, 0, len(authors))
	for _, a := range authors {
		out = append(out, option{itoa(a.ID), a.Name})
	}
	return out
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
