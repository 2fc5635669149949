package postadmin

import (
	"crypto/subtle"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func (a *App) handleAdmin(c echo.Context) error {
	if !IsAdmin(c) {
		return Render(c, a.Views.AdminLogin(false, CsrfToken(c)))
	}
	q, err := a.listQueryFromRequest(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return a.renderPostList(c, q, c.QueryParam("msg"))
}

func (a *App) handleAdminLogin(c echo.Context) error {
	ip := c.RealIP()
	if !a.loginLimiter.Check(ip) {
		return c.String(http.StatusTooManyRequests, "Too many login attempts. Try again later.")
	}
	if !a.checkPassword(c.FormValue("password")) {
		a.loginLimiter.Record(ip)
		a.Logger.Warn("admin login failed", zap.String("ip", ip))
		return RenderStatus(c, http.StatusUnauthorized, a.Views.AdminLogin(true, CsrfToken(c)))
	}
	a.loginLimiter.Reset(ip)
	if err := setAdminSession(c); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/admin/")
}

func (a *App) checkPassword(pass string) bool {
	if a.Config.AdminPasswordHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(a.Config.AdminPasswordHash), []byte(pass)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(pass), []byte(a.Config.AdminPassword)) == 1
}

func handleAdminLogout(c echo.Context) error {
	if err := clearAdminSession(c); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/admin/")
}

func (a *App) handleAdminNewPost(c echo.Context) error {
	return a.renderForm(c, http.StatusOK, nil, FormValues{Status: string(StatusDraft)}, nil)
}

func (a *App) handleAdminCreate(c echo.Context) error {
	values := formValues(c)
	in := CreateInput{
		Name:        values.Name,
		Status:      values.Status,
		Slug:        values.Slug,
		Description: values.Description,
	}

	verr := &ValidationError{}
	in.CategoryID = formID(values.CategoryID, "categoryId", verr)
	in.AuthorID = formID(values.AuthorID, "authorId", verr)
	up, err := formUpload(c, "image")
	if err != nil {
		verr.Add("image", err.Error())
	}
	in.Image = up
	if err := verr.orNil(); err != nil {
		return a.renderFormError(c, nil, values, err)
	}

	post, err := a.Forms.SubmitCreate(c.Request().Context(), in)
	if err != nil {
		return a.renderFormError(c, nil, values, err)
	}
	return c.Redirect(http.StatusSeeOther, "/admin/?msg="+url.QueryEscape("Created "+post.Name))
}

func (a *App) handleAdminEditPost(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	post, err := a.Store.Get(c.Request().Context(), id)
	if err != nil {
		if IsNotFound(err) {
			return echo.NewHTTPError(http.StatusNotFound)
		}
		return err
	}
	return a.renderForm(c, http.StatusOK, &post, postValues(post), nil)
}

func (a *App) handleAdminUpdate(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	current, err := a.Store.Get(ctx, id)
	if err != nil {
		if IsNotFound(err) {
			return echo.NewHTTPError(http.StatusNotFound)
		}
		return err
	}

	values := formValues(c)
	values.Slug = current.Slug
	in := EditInput{
		Name:        &values.Name,
		Status:      &values.Status,
		Description: &values.Description,
		RemoveImage: c.FormValue("removeImage") != "",
	}

	verr := &ValidationError{}
	categoryID := formID(values.CategoryID, "categoryId", verr)
	authorID := formID(values.AuthorID, "authorId", verr)
	in.CategoryID = &categoryID
	in.AuthorID = &authorID
	up, err := formUpload(c, "image")
	if err != nil {
		verr.Add("image", err.Error())
	}
	in.Image = up
	if err := verr.orNil(); err != nil {
		return a.renderFormError(c, &current, values, err)
	}

	post, err := a.Forms.SubmitEdit(ctx, id, in)
	if err != nil {
		if IsNotFound(err) {
			return echo.NewHTTPError(http.StatusNotFound)
		}
		return a.renderFormError(c, &current, values, err)
	}
	return c.Redirect(http.StatusSeeOther, "/admin/?msg="+url.QueryEscape("Saved "+post.Name))
}

func (a *App) handleAdminBulkDelete(c echo.Context) error {
	if err := c.Request().ParseForm(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	var ids []int64
	for _, raw := range c.Request().Form["ids"] {
		id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil || id <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid post id "+strconv.Quote(raw))
		}
		ids = append(ids, id)
	}
	n, err := a.Store.DeleteMany(c.Request().Context(), ids)
	if err != nil {
		return err
	}
	a.Logger.Info("posts bulk deleted", zap.Int("requested", len(ids)), zap.Int("deleted", n))
	return c.Redirect(http.StatusSeeOther, "/admin/?msg="+url.QueryEscape(pluralPosts(n)+" deleted"))
}

func (a *App) handleAdminDelete(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	post, err := a.Store.Get(ctx, id)
	if err == nil {
		err = a.Store.Delete(ctx, id)
	}
	if err != nil {
		if IsNotFound(err) {
			return echo.NewHTTPError(http.StatusNotFound)
		}
		return err
	}
	a.Logger.Info("post deleted", zap.Int64("id", id))
	return c.Redirect(http.StatusSeeOther, "/admin/?msg="+url.QueryEscape("Deleted "+post.Name))
}

func (a *App) defaultListQuery() ListQuery {
	return ListQuery{Sort: DefaultSort, Page: 1, PageSize: a.Config.PageSize}
}

// listQueryFromRequest reads status, sort, dir, page and q. Malformed sort or
// filter values are errors; a missing or unparseable page falls back to 1.
func (a *App) listQueryFromRequest(c echo.Context) (ListQuery, error) {
	q := a.defaultListQuery()
	filter, err := ParseFilter(c.QueryParam("status"))
	if err != nil {
		return q, err
	}
	srt, err := ParseSort(c.QueryParam("sort"), c.QueryParam("dir"))
	if err != nil {
		return q, err
	}
	q.Filter = filter
	q.Sort = srt
	q.Search = c.QueryParam("q")
	if p, err := strconv.Atoi(c.QueryParam("page")); err == nil && p > 0 {
		q.Page = p
	}
	return q, nil
}

func (a *App) renderPostList(c echo.Context, q ListQuery, msg string) error {
	page, err := a.Store.ListPosts(c.Request().Context(), q)
	if err != nil {
		return err
	}
	return Render(c, a.Views.AdminPosts(PostsView{
		Meta:      a.meta("Posts"),
		Page:      page,
		Query:     q,
		Message:   msg,
		CSRFToken: CsrfToken(c),
	}))
}

func (a *App) renderForm(c echo.Context, code int, post *Post, values FormValues, errs map[string]string) error {
	ctx := c.Request().Context()
	categories, err := a.Categories.ListCategories(ctx)
	if err != nil {
		return err
	}
	authors, err := a.Store.ListUsers(ctx)
	if err != nil {
		return err
	}
	title := "New post"
	var image string
	if post != nil {
		title = "Edit " + post.Name
		if post.Image != nil {
			image = a.Assets.URL(*post.Image)
		}
	}
	return RenderStatus(c, code, a.Views.AdminForm(FormView{
		Meta:       a.meta(title),
		Post:       post,
		Values:     values,
		ImageURL:   image,
		Categories: categories,
		Authors:    authors,
		Errors:     errs,
		CSRFToken:  CsrfToken(c),
	}))
}

// renderFormError redisplays the form for errors the user can act on and
// hands anything else to the HTTP error handler.
func (a *App) renderFormError(c echo.Context, post *Post, values FormValues, err error) error {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return a.renderForm(c, http.StatusUnprocessableEntity, post, values, verr.Map())
	}
	var serr *StorageError
	if errors.As(err, &serr) {
		return a.renderForm(c, http.StatusBadGateway, post, values, map[string]string{
			"image": "could not be stored, try again",
		})
	}
	return err
}

func formValues(c echo.Context) FormValues {
	return FormValues{
		Name:        c.FormValue("name"),
		CategoryID:  strings.TrimSpace(c.FormValue("categoryId")),
		AuthorID:    strings.TrimSpace(c.FormValue("authorId")),
		Status:      c.FormValue("status"),
		Slug:        c.FormValue("slug"),
		Description: c.FormValue("description"),
	}
}

func postValues(p Post) FormValues {
	return FormValues{
		Name:        p.Name,
		CategoryID:  strconv.FormatInt(p.CategoryID, 10),
		AuthorID:    strconv.FormatInt(p.AuthorID, 10),
		Status:      string(p.Status),
		Slug:        p.Slug,
		Description: p.Description,
	}
}

// formID parses a select value. Blank stays 0 so the controller reports the
// field as required.
func formID(raw, field string, verr *ValidationError) int64 {
	if raw == "" {
		return 0
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		verr.Add(field, "is not a valid id")
		return 0
	}
	return id
}

// formUpload reads an optional file field. No file (or a non-multipart
// request) is not an error.
func formUpload(c echo.Context, field string) (*Upload, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, err
	}
	if fh.Size > maxUploadSize {
		return nil, errors.New("is larger than 10MB")
	}
	src, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()
	data, err := io.ReadAll(io.LimitReader(src, maxUploadSize))
	if err != nil {
		return nil, err
	}
	return &Upload{Filename: fh.Filename, Data: data}, nil
}

func pathID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusNotFound)
	}
	return id, nil
}

func pluralPosts(n int) string {
	if n == 1 {
		return "1 post"
	}
	return strconv.Itoa(n) + " posts"
}
