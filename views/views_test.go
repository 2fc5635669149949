package views

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/postadmin"
)

func render(t *testing.T, c templ.Component) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, c.Render(context.Background(), &buf))
	return buf.String()
}

func TestAdminLogin(t *testing.T) {
	html := render(t, AdminLogin(false, "tok"))
	assert.Contains(t, html, `name="_csrf" value="tok"`)
	assert.NotContains(t, html, "Wrong password")

	assert.Contains(t, render(t, AdminLogin(true, "tok")), "Wrong password")
}

func TestAdminPostsEscapesAndPaginates(t *testing.T) {
	q := postadmin.ListQuery{Filter: postadmin.FilterDraft, Sort: postadmin.DefaultSort, Page: 2, PageSize: 1}
	html := render(t, AdminPosts(postadmin.PostsView{
		Meta:  postadmin.PageMeta{Title: "Posts", Site: "Blog"},
		Query: q,
		Page: postadmin.ListPage{
			Rows: []postadmin.ListRow{{
				SerialNumber: 1,
				Post:         postadmin.Post{ID: 9, Name: "<script>alert(1)</script>", Status: postadmin.StatusPublished, CreatedAt: time.Now()},
				AuthorName:   "Ada & Co",
			}},
			Total: 3, Page: 2, PageSize: 1, TotalPages: 3,
		},
		Message:   "Created thing",
		CSRFToken: "tok",
	}))

	assert.NotContains(t, html, "<script>alert(1)</script>")
	assert.Contains(t, html, "&lt;script&gt;alert(1)&lt;/script&gt;")
	assert.Contains(t, html, "Ada &amp; Co")
	assert.Contains(t, html, `class="flash">Created thing`)
	assert.Contains(t, html, `href="/admin/posts/9/edit/"`)
	assert.Contains(t, html, `name="ids" value="9"`)
	assert.Contains(t, html, "Page 2 of 3")
	assert.Contains(t, html, "Previous")
	assert.Contains(t, html, "Next")
	assert.Contains(t, html, `class="badge published">Published`)
	assert.Contains(t, html, `class="active" aria-current="page">Draft`)
}

func TestAdminPostsEmpty(t *testing.T) {
	html := render(t, AdminPosts(postadmin.PostsView{Page: postadmin.ListPage{Page: 1, PageSize: 10}}))
	assert.Contains(t, html, "No posts match.")
	assert.NotContains(t, html, "Page 1 of")
}

func TestAdminFormCreate(t *testing.T) {
	html := render(t, AdminForm(postadmin.FormView{
		Meta:       postadmin.PageMeta{Title: "New post", Site: "Blog"},
		Values:     postadmin.FormValues{Name: `"quoted"`, CategoryID: "2"},
		Categories: []postadmin.Category{{ID: 1, Name: "News"}, {ID: 2, Name: "Tech"}},
		Authors:    []postadmin.Author{{ID: 1, Name: "Ada"}},
		Errors:     map[string]string{"authorId": "is required"},
		CSRFToken:  "tok",
	}))

	assert.Contains(t, html, `action="/admin/posts/"`)
	assert.Contains(t, html, `value="&#34;quoted&#34;"`)
	assert.Contains(t, html, `<option value="2" selected>Tech</option>`)
	assert.Contains(t, html, `id="authorId-error">is required`)
	assert.Contains(t, html, `value="draft" checked`)
	assert.NotContains(t, html, "readonly")
	assert.Contains(t, html, ">Create</button>")
}

func TestAdminFormEdit(t *testing.T) {
	post := &postadmin.Post{ID: 4, Name: "Hello", Slug: "hello", Status: postadmin.StatusPublished}
	html := render(t, AdminForm(postadmin.FormView{
		Meta:     postadmin.PageMeta{Title: "Edit Hello", Site: "Blog"},
		Post:     post,
		Values:   postadmin.FormValues{Name: "Hello", Slug: "hello", Status: "published"},
		ImageURL: "/uploads/posts/a.png",
	}))

	assert.Contains(t, html, `action="/admin/posts/4/"`)
	assert.Contains(t, html, `value="hello" readonly`)
	assert.Contains(t, html, `value="published" checked`)
	assert.Contains(t, html, `src="/uploads/posts/a.png"`)
	assert.Contains(t, html, `name="removeImage"`)
	assert.Contains(t, html, ">Save</button>")
}

func TestDefaultWiresEveryView(t *testing.T) {
	v := Default()
	assert.NotNil(t, v.AdminLogin)
	assert.NotNil(t, v.AdminPosts)
	assert.NotNil(t, v.AdminForm)
	assert.Contains(t, render(t, v.NotFound()), "Not found")
	assert.Contains(t, render(t, v.ServerError()), "Something went wrong")
}
