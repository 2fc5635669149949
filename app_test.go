package postadmin_test

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/eringen/postadmin"
	"github.com/eringen/postadmin/views"
)

const (
	testPassword  = "correct horse"
	testJWTSecret = "jwt-test-secret"
)

// harness drives an initialised App through httptest, carrying cookies and
// the CSRF token between requests like a browser would.
type harness struct {
	t       *testing.T
	app     *postadmin.App
	cookies map[string]*http.Cookie
}

func newHarness(t *testing.T, opts ...postadmin.Option) *harness {
	t.Helper()
	dir := t.TempDir()
	cfg := postadmin.SiteConfig{
		Name:          "Test Blog",
		URL:           "https://blog.example.com",
		DatabasePath:  filepath.Join(dir, "posts.db"),
		UploadsDir:    filepath.Join(dir, "public"),
		AdminPassword: testPassword,
		SessionSecret: "0123456789abcdef0123456789abcdef",
		APIJWTSecret:  testJWTSecret,
	}
	app := postadmin.New(cfg, views.Default(), opts...)
	require.NoError(t, app.Init(context.Background()))
	t.Cleanup(func() { _ = app.Close() })
	return &harness{t: t, app: app, cookies: map[string]*http.Cookie{}}
}

func (h *harness) do(req *http.Request) *httptest.ResponseRecorder {
	h.t.Helper()
	for _, c := range h.cookies {
		req.AddCookie(c)
	}
	if req.Method != http.MethodGet {
		if tok, ok := h.cookies["_csrf"]; ok {
			req.Header.Set("X-CSRF-Token", tok.Value)
		}
	}
	rec := httptest.NewRecorder()
	h.app.Echo.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 {
			delete(h.cookies, c.Name)
			continue
		}
		h.cookies[c.Name] = c
	}
	return rec
}

func (h *harness) get(target string) *httptest.ResponseRecorder {
	return h.do(httptest.NewRequest(http.MethodGet, target, nil))
}

func (h *harness) postForm(target string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return h.do(req)
}

type fileField struct {
	name     string
	filename string
	data     []byte
}

func (h *harness) postMultipart(target string, fields map[string]string, files ...fileField) *httptest.ResponseRecorder {
	h.t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(h.t, w.WriteField(k, v))
	}
	for _, f := range files {
		part, err := w.CreateFormFile(f.name, f.filename)
		require.NoError(h.t, err)
		_, err = part.Write(f.data)
		require.NoError(h.t, err)
	}
	require.NoError(h.t, w.Close())
	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return h.do(req)
}

// login fetches the login page for a CSRF cookie and signs in.
func (h *harness) login() {
	h.t.Helper()
	rec := h.get("/admin/")
	require.Equal(h.t, http.StatusOK, rec.Code)
	require.Contains(h.t, h.cookies, "_csrf")

	rec = h.postForm("/admin/login/", url.Values{"password": {testPassword}})
	require.Equal(h.t, http.StatusSeeOther, rec.Code, rec.Body.String())
	require.Equal(h.t, "/admin/", rec.Header().Get("Location"))
}

func (h *harness) api(method, target string, body any) *httptest.ResponseRecorder {
	h.t.Helper()
	token, err := postadmin.IssueAPIToken(testJWTSecret, "tester", time.Hour)
	require.NoError(h.t, err)
	return h.apiWithToken(method, target, body, token)
}

func (h *harness) apiWithToken(method, target string, body any, token string) *httptest.ResponseRecorder {
	h.t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(h.t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.app.Echo.ServeHTTP(rec, req)
	return rec
}

// seed creates one category and one author.
func (h *harness) seed() (categoryID, authorID int64) {
	h.t.Helper()
	ctx := context.Background()
	c, err := h.app.Store.CreateCategory(ctx, "News")
	require.NoError(h.t, err)
	a, err := h.app.Store.CreateUser(ctx, "Ada")
	require.NoError(h.t, err)
	h.app.Categories.Invalidate()
	return c.ID, a.ID
}

func (h *harness) createPost(name string, categoryID, authorID int64, status postadmin.Status) postadmin.Post {
	h.t.Helper()
	post, err := h.app.Forms.SubmitCreate(context.Background(), postadmin.CreateInput{
		Name:        name,
		CategoryID:  categoryID,
		AuthorID:    authorID,
		Status:      string(status),
		Description: "Body of " + name,
	})
	require.NoError(h.t, err)
	return post
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
