package postadmin_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/postadmin"
)

func TestAdminShowsLoginWhenAnonymous(t *testing.T) {
	h := newHarness(t)
	rec := h.get("/admin/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `action="/admin/login/"`)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	rec = h.get("/admin/posts/new/")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/admin/", rec.Header().Get("Location"))
}

func TestAdminLoginRejectsWrongPassword(t *testing.T) {
	h := newHarness(t)
	h.get("/admin/")
	rec := h.postForm("/admin/login/", url.Values{"password": {"nope"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Wrong password")
}

func TestAdminLoginRequiresCSRF(t *testing.T) {
	h := newHarness(t)
	rec := h.postForm("/admin/login/", url.Values{"password": {testPassword}})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminLoginIsRateLimited(t *testing.T) {
	h := newHarness(t)
	h.get("/admin/")
	for i := 0; i < 5; i++ {
		rec := h.postForm("/admin/login/", url.Values{"password": {"nope"}})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec := h.postForm("/admin/login/", url.Values{"password": {testPassword}})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestAdminLogout(t *testing.T) {
	h := newHarness(t)
	h.login()
	require.Equal(t, http.StatusOK, h.get("/admin/posts/new/").Code)

	rec := h.postForm("/admin/logout/", nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, http.StatusSeeOther, h.get("/admin/posts/new/").Code)
}

func TestAdminListFiltersAndSorts(t *testing.T) {
	h := newHarness(t)
	c, a := h.seed()
	h.createPost("Alpha", c, a, postadmin.StatusDraft)
	h.createPost("Beta", c, a, postadmin.StatusPublished)
	h.login()

	rec := h.get("/admin/")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Alpha")
	assert.Contains(t, body, "Beta")

	rec = h.get("/admin/?status=published&sort=name&dir=asc")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Beta")
	assert.NotContains(t, rec.Body.String(), "Alpha")

	assert.Equal(t, http.StatusBadRequest, h.get("/admin/?sort=slug").Code)
	assert.Equal(t, http.StatusBadRequest, h.get("/admin/?status=archived").Code)
}

func TestAdminCreatePost(t *testing.T) {
	h := newHarness(t)
	c, a := h.seed()
	h.login()

	rec := h.get("/admin/posts/new/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), ">News</option>")
	assert.Contains(t, rec.Body.String(), ">Ada</option>")

	rec = h.postMultipart("/admin/posts/", map[string]string{
		"name":        "Hello World",
		"categoryId":  strconv.FormatInt(c, 10),
		"authorId":    strconv.FormatInt(a, 10),
		"status":      "published",
		"description": "Body",
	}, fileField{name: "image", filename: "cover.png", data: testPNG(t)})
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	assert.Equal(t, "/admin/?msg=Created+Hello+World", rec.Header().Get("Location"))

	page, err := h.app.Store.ListPosts(context.Background(), postadmin.ListQuery{Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, page.Rows, 1)
	post := page.Rows[0].Post
	assert.Equal(t, "hello-world", post.Slug)
	assert.Equal(t, postadmin.StatusPublished, post.Status)
	require.NotNil(t, post.Image)

	local := h.app.Assets.(*postadmin.LocalAssetStore)
	_, err = os.Stat(filepath.Join(local.Root(), filepath.FromSlash(*post.Image)))
	assert.NoError(t, err)

	img := h.get(h.app.Assets.URL(*post.Image))
	assert.Equal(t, http.StatusOK, img.Code)
	assert.Contains(t, img.Header().Get("Cache-Control"), "immutable")

	rec = h.get("/admin/?msg=Created+Hello+World")
	assert.Contains(t, rec.Body.String(), "Created Hello World")
}

func TestAdminCreateShowsValidationErrors(t *testing.T) {
	h := newHarness(t)
	h.seed()
	h.login()

	rec := h.postMultipart("/admin/posts/", map[string]string{
		"name":       "",
		"categoryId": "abc",
		"status":     "draft",
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `id="categoryId-error"`)

	rec = h.postMultipart("/admin/posts/", map[string]string{"status": "draft"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body = rec.Body.String()
	assert.Contains(t, body, `id="name-error"`)
	assert.Contains(t, body, `id="categoryId-error"`)
	assert.Contains(t, body, `id="authorId-error"`)

	rec = h.postMultipart("/admin/posts/", map[string]string{
		"name":        "Ghost refs",
		"categoryId":  "999",
		"authorId":    "999",
		"description": "Body",
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), `id="categoryId-error">does not exist`)
	assert.Contains(t, rec.Body.String(), `id="authorId-error">does not exist`)
	assert.Contains(t, rec.Body.String(), `value="Ghost refs"`, "values are echoed back")

	page, err := h.app.Store.ListPosts(context.Background(), postadmin.ListQuery{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}

func TestAdminEditPost(t *testing.T) {
	h := newHarness(t)
	c, a := h.seed()
	post := h.createPost("Original", c, a, postadmin.StatusDraft)
	h.login()

	edit := "/admin/posts/" + strconv.FormatInt(post.ID, 10) + "/"
	rec := h.get(edit + "edit/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `value="original" readonly`)

	rec = h.postMultipart(edit, map[string]string{
		"name":        "Renamed",
		"slug":        "ignored",
		"categoryId":  strconv.FormatInt(c, 10),
		"authorId":    strconv.FormatInt(a, 10),
		"status":      "published",
		"description": "New body",
	})
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	assert.Equal(t, "/admin/?msg=Saved+Renamed", rec.Header().Get("Location"))

	got, err := h.app.Store.Get(context.Background(), post.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, "original", got.Slug)
	assert.Equal(t, postadmin.StatusPublished, got.Status)
	assert.Equal(t, "New body", got.Description)

	rec = h.postMultipart(edit, map[string]string{
		"name":       "",
		"categoryId": strconv.FormatInt(c, 10),
		"authorId":   strconv.FormatInt(a, 10),
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), `id="name-error"`)
}

func TestAdminEditUnknownPost(t *testing.T) {
	h := newHarness(t)
	h.login()

	rec := h.get("/admin/posts/999/edit/")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Not found")

	assert.Equal(t, http.StatusNotFound, h.get("/admin/posts/abc/edit/").Code)
	assert.Equal(t, http.StatusNotFound, h.postMultipart("/admin/posts/999/", map[string]string{"name": "x"}).Code)
}

func TestAdminBulkDelete(t *testing.T) {
	h := newHarness(t)
	c, a := h.seed()
	p1 := h.createPost("One", c, a, postadmin.StatusDraft)
	p2 := h.createPost("Two", c, a, postadmin.StatusDraft)
	p3 := h.createPost("Three", c, a, postadmin.StatusDraft)
	h.login()

	rec := h.postForm("/admin/posts/bulk-delete/", url.Values{
		"ids": {strconv.FormatInt(p1.ID, 10), strconv.FormatInt(p3.ID, 10), "999"},
	})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/admin/?msg=2+posts+deleted", rec.Header().Get("Location"))

	ctx := context.Background()
	_, err := h.app.Store.Get(ctx, p2.ID)
	assert.NoError(t, err)
	_, err = h.app.Store.Get(ctx, p1.ID)
	assert.True(t, postadmin.IsNotFound(err))

	rec = h.postForm("/admin/posts/bulk-delete/", url.Values{"ids": {"x"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminDeleteSingle(t *testing.T) {
	h := newHarness(t)
	c, a := h.seed()
	post := h.createPost("Doomed", c, a, postadmin.StatusDraft)
	h.login()

	list := h.get("/admin/")
	require.Equal(t, http.StatusOK, list.Code)
	target := "/admin/posts/" + strconv.FormatInt(post.ID, 10) + "/"
	assert.Contains(t, list.Body.String(), `data-delete="`+target+`"`, "each row carries a delete control")

	noToken := newRequest(http.MethodDelete, target)
	for _, ck := range h.cookies {
		noToken.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	h.app.Echo.ServeHTTP(rec, noToken)
	assert.Equal(t, http.StatusForbidden, rec.Code, "DELETE needs the CSRF header")

	rec = h.do(newRequest(http.MethodDelete, target))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/admin/?msg=Deleted+Doomed", rec.Header().Get("Location"))

	_, err := h.app.Store.Get(context.Background(), post.ID)
	assert.True(t, postadmin.IsNotFound(err))
	assert.Equal(t, http.StatusNotFound, h.do(newRequest(http.MethodDelete, target)).Code)
}

func TestAdminScriptReplacesInlineHandlers(t *testing.T) {
	h := newHarness(t)
	c, a := h.seed()
	h.createPost("Listed", c, a, postadmin.StatusDraft)
	h.login()

	body := h.get("/admin/").Body.String()
	assert.NotContains(t, body, "onsubmit")
	assert.NotContains(t, body, "onclick")
	assert.Contains(t, body, `<script src="/assets/admin.js" defer></script>`)
	assert.Contains(t, body, `data-confirm="Delete the selected posts?"`)
	assert.Contains(t, body, `<meta name="csrf-token" content="`+h.cookies["_csrf"].Value+`"`)

	rec := h.get("/assets/admin.js")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "javascript")
	assert.Contains(t, rec.Body.String(), "X-CSRF-Token")
	assert.Equal(t, "public, max-age=3600", rec.Header().Get("Cache-Control"))

	assert.Contains(t, body, `<link rel="stylesheet" href="/assets/admin.css">`)
	rec = h.get("/assets/admin.css")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/css")
}

func newRequest(method, target string) *http.Request {
	return httptest.NewRequest(method, target, nil)
}
