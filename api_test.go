package postadmin_test

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/postadmin"
	"github.com/eringen/postadmin/views"
)

type apiError struct {
	Error struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	} `json:"error"`
}

func TestAPIRequiresToken(t *testing.T) {
	h := newHarness(t)

	rec := h.apiWithToken(http.MethodGet, "/api/posts", nil, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "missing access token", decode[apiError](t, rec).Error.Message)

	rec = h.apiWithToken(http.MethodGet, "/api/posts", nil, "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	expired, err := postadmin.IssueAPIToken(testJWTSecret, "tester", -time.Minute)
	require.NoError(t, err)
	rec = h.apiWithToken(http.MethodGet, "/api/posts", nil, expired)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	forged, err := postadmin.IssueAPIToken("other-secret", "tester", time.Hour)
	require.NoError(t, err)
	rec = h.apiWithToken(http.MethodGet, "/api/posts", nil, forged)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPIRejectsNonAdminRole(t *testing.T) {
	h := newHarness(t)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "reader",
		"role": "editor",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)

	rec := h.apiWithToken(http.MethodGet, "/api/posts", nil, token)
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "admin role required", decode[apiError](t, rec).Error.Message)
}

func TestAPIDisabledWithoutSecret(t *testing.T) {
	dir := t.TempDir()
	app := postadmin.New(postadmin.SiteConfig{
		DatabasePath:  dir + "/posts.db",
		UploadsDir:    dir,
		AdminPassword: testPassword,
		SessionSecret: "0123456789abcdef0123456789abcdef",
	}, views.Default())
	require.NoError(t, app.Init(t.Context()))
	t.Cleanup(func() { _ = app.Close() })

	token, err := postadmin.IssueAPIToken(testJWTSecret, "tester", time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/posts", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	app.Echo.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPIPostLifecycle(t *testing.T) {
	h := newHarness(t)
	c, a := h.seed()

	rec := h.api(http.MethodPost, "/api/posts", map[string]any{
		"name":        "From the API",
		"categoryId":  c,
		"authorId":    a,
		"status":      "draft",
		"description": "Body",
		"image":       map[string]any{"filename": "a.png", "data": testPNG(t)},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[postadmin.Post](t, rec)
	assert.Equal(t, "from-the-api", created.Slug)
	require.NotNil(t, created.Image)

	id := strconv.FormatInt(created.ID, 10)
	rec = h.api(http.MethodGet, "/api/posts/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "From the API", decode[postadmin.Post](t, rec).Name)

	rec = h.api(http.MethodPatch, "/api/posts/"+id, map[string]any{
		"status":      "published",
		"removeImage": true,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	patched := decode[postadmin.Post](t, rec)
	assert.Equal(t, postadmin.StatusPublished, patched.Status)
	assert.Equal(t, "From the API", patched.Name, "absent fields stay untouched")
	assert.Nil(t, patched.Image)

	rec = h.api(http.MethodDelete, "/api/posts/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = h.api(http.MethodGet, "/api/posts/"+id, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decode[apiError](t, rec).Error.Code)
}

func TestAPIValidationDetails(t *testing.T) {
	h := newHarness(t)

	rec := h.api(http.MethodPost, "/api/posts", map[string]any{"status": "archived"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decode[apiError](t, rec)
	assert.Equal(t, "VALIDATION_ERROR", body.Error.Code)
	assert.Equal(t, "validation failed", body.Error.Message)
	for _, field := range []string{"name", "categoryId", "authorId", "description", "status"} {
		assert.Contains(t, body.Error.Details, field)
	}
}

func TestAPIListPosts(t *testing.T) {
	h := newHarness(t)
	c, a := h.seed()
	for _, name := range []string{"Gamma", "Alpha", "Beta"} {
		h.createPost(name, c, a, postadmin.StatusDraft)
	}
	h.createPost("Delta", c, a, postadmin.StatusPublished)

	rec := h.api(http.MethodGet, "/api/posts?status=draft&sort=name&dir=asc&pageSize=2&page=2", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	page := decode[postadmin.ListPage](t, rec)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Rows, 1)
	assert.Equal(t, "Gamma", page.Rows[0].Post.Name)
	assert.Equal(t, 1, page.Rows[0].SerialNumber)
	assert.Equal(t, "Ada", page.Rows[0].AuthorName)

	for _, target := range []string{
		"/api/posts?page=0",
		"/api/posts?page=abc",
		"/api/posts?pageSize=1000",
		"/api/posts?sort=slug",
		"/api/posts?status=archived",
	} {
		rec = h.api(http.MethodGet, target, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.Equal(t, "BAD_REQUEST", decode[apiError](t, rec).Error.Code, target)
	}
}

func TestAPIBulkDelete(t *testing.T) {
	h := newHarness(t)
	c, a := h.seed()
	p1 := h.createPost("One", c, a, postadmin.StatusDraft)
	p2 := h.createPost("Two", c, a, postadmin.StatusDraft)

	rec := h.api(http.MethodPost, "/api/posts/bulk-delete", map[string]any{"ids": []int64{p1.ID, p2.ID, 999}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]int{"deleted": 2}, decode[map[string]int](t, rec))
}

func TestAPICategoriesAndUsers(t *testing.T) {
	h := newHarness(t)

	rec := h.api(http.MethodPost, "/api/categories", map[string]string{"name": "Tech"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	category := decode[postadmin.Category](t, rec)

	rec = h.api(http.MethodGet, "/api/categories", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]postadmin.Category](t, rec), 1, "creating a category refreshes the cached list")

	rec = h.api(http.MethodPost, "/api/users", map[string]string{"name": "Grace"})
	require.Equal(t, http.StatusCreated, rec.Code)
	user := decode[postadmin.Author](t, rec)

	rec = h.api(http.MethodGet, "/api/users", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]postadmin.Author](t, rec), 1)

	post := h.createPost("Uses both", category.ID, user.ID, postadmin.StatusDraft)

	rec = h.api(http.MethodDelete, "/api/categories/"+strconv.FormatInt(category.ID, 10), nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CONFLICT", decode[apiError](t, rec).Error.Code)
	rec = h.api(http.MethodDelete, "/api/users/"+strconv.FormatInt(user.ID, 10), nil)
	require.Equal(t, http.StatusConflict, rec.Code)

	require.NoError(t, h.app.Store.Delete(t.Context(), post.ID))
	assert.Equal(t, http.StatusNoContent, h.api(http.MethodDelete, "/api/categories/"+strconv.FormatInt(category.ID, 10), nil).Code)
	assert.Equal(t, http.StatusNoContent, h.api(http.MethodDelete, "/api/users/"+strconv.FormatInt(user.ID, 10), nil).Code)

	rec = h.api(http.MethodGet, "/api/categories", nil)
	assert.Empty(t, decode[[]postadmin.Category](t, rec))

	rec = h.api(http.MethodDelete, "/api/users/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPICORSPreflight(t *testing.T) {
	h := newHarness(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/posts", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	req.Header.Set("Access-Control-Request-Headers", "authorization,content-type")
	rec := httptest.NewRecorder()
	h.app.Echo.ServeHTTP(rec, req)

	assert.Less(t, rec.Code, 300)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPatch)
	assert.Equal(t, "authorization,content-type", rec.Header().Get("Access-Control-Allow-Headers"))

	// Browsers send lowercase names; anything else is refused.
	req = httptest.NewRequest(http.MethodOptions, "/api/posts", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	rec = httptest.NewRecorder()
	h.app.Echo.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec = httptest.NewRecorder()
	h.app.Echo.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"), "CORS only applies to the API")
}
