package postadmin

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type apiErrorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

type imagePayload struct {
	Filename string `json:"filename"`
	Data     []byte `json:"data"` // base64 in JSON
}

type postRequest struct {
	Name        *string       `json:"name"`
	CategoryID  *int64        `json:"categoryId"`
	AuthorID    *int64        `json:"authorId"`
	Status      *string       `json:"status"`
	Slug        *string       `json:"slug"`
	Description *string       `json:"description"`
	Image       *imagePayload `json:"image"`
	RemoveImage bool          `json:"removeImage"`
}

func (r postRequest) upload() *Upload {
	if r.Image == nil {
		return nil
	}
	return &Upload{Filename: r.Image.Filename, Data: r.Image.Data}
}

type bulkDeleteRequest struct {
	IDs []int64 `json:"ids"`
}

type nameRequest struct {
	Name string `json:"name"`
}

func (a *App) registerAPI() {
	if a.Config.APIJWTSecret == "" {
		return
	}
	api := a.Echo.Group("/api", a.requireJWT)

	api.GET("/posts", a.apiListPosts)
	api.POST("/posts", a.apiCreatePost)
	api.POST("/posts/bulk-delete", a.apiBulkDelete)
	api.GET("/posts/:id", a.apiGetPost)
	api.PATCH("/posts/:id", a.apiUpdatePost)
	api.DELETE("/posts/:id", a.apiDeletePost)

	api.GET("/categories", a.apiListCategories)
	api.POST("/categories", a.apiCreateCategory)
	api.DELETE("/categories/:id", a.apiDeleteCategory)

	api.GET("/users", a.apiListUsers)
	api.POST("/users", a.apiCreateUser)
	api.DELETE("/users/:id", a.apiDeleteUser)
}

func (a *App) apiErrorHandler(err error, c echo.Context) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg, _ := he.Message.(string)
		if msg == "" {
			msg = http.StatusText(he.Code)
		}
		_ = c.JSON(he.Code, map[string]apiErrorBody{"error": {Code: http.StatusText(he.Code), Message: msg}})
		return
	}

	code, kind, known := errorStatus(err)
	body := apiErrorBody{Code: kind, Message: err.Error()}
	var verr *ValidationError
	if errors.As(err, &verr) {
		body.Message = "validation failed"
		body.Details = verr.Map()
	}
	if !known || code >= 500 {
		a.Logger.Error("api error", zap.String("uri", c.Request().RequestURI), zap.Int("status", code), zap.Error(err))
	}
	if !known {
		body.Message = "internal error"
	}
	_ = c.JSON(code, map[string]apiErrorBody{"error": body})
}

func (a *App) apiListPosts(c echo.Context) error {
	q := a.defaultListQuery()
	filter, err := ParseFilter(c.QueryParam("status"))
	if err != nil {
		return err
	}
	srt, err := ParseSort(c.QueryParam("sort"), c.QueryParam("dir"))
	if err != nil {
		return err
	}
	q.Filter = filter
	q.Sort = srt
	q.Search = c.QueryParam("q")
	if q.Page, err = queryInt(c, "page", 1); err != nil {
		return err
	}
	if q.PageSize, err = queryInt(c, "pageSize", a.Config.PageSize); err != nil {
		return err
	}
	page, err := a.Store.ListPosts(c.Request().Context(), q)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page)
}

func (a *App) apiGetPost(c echo.Context) error {
	id, err := apiID(c)
	if err != nil {
		return err
	}
	post, err := a.Store.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, post)
}

func (a *App) apiCreatePost(c echo.Context) error {
	var req postRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	in := CreateInput{
		Name:        deref(req.Name),
		CategoryID:  deref(req.CategoryID),
		AuthorID:    deref(req.AuthorID),
		Status:      deref(req.Status),
		Slug:        deref(req.Slug),
		Description: deref(req.Description),
		Image:       req.upload(),
	}
	post, err := a.Forms.SubmitCreate(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, post)
}

func (a *App) apiUpdatePost(c echo.Context) error {
	id, err := apiID(c)
	if err != nil {
		return err
	}
	var req postRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	post, err := a.Forms.SubmitEdit(c.Request().Context(), id, EditInput{
		Name:        req.Name,
		CategoryID:  req.CategoryID,
		AuthorID:    req.AuthorID,
		Status:      req.Status,
		Slug:        req.Slug,
		Description: req.Description,
		Image:       req.upload(),
		RemoveImage: req.RemoveImage,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, post)
}

func (a *App) apiDeletePost(c echo.Context) error {
	id, err := apiID(c)
	if err != nil {
		return err
	}
	if err := a.Store.Delete(c.Request().Context(), id); err != nil {
		return err
	}
	a.Logger.Info("post deleted", zap.Int64("id", id), zap.Any("sub", c.Get(apiSubjectKey)))
	return c.NoContent(http.StatusNoContent)
}

func (a *App) apiBulkDelete(c echo.Context) error {
	var req bulkDeleteRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	n, err := a.Store.DeleteMany(c.Request().Context(), req.IDs)
	if err != nil {
		return err
	}
	a.Logger.Info("posts bulk deleted", zap.Int("requested", len(req.IDs)), zap.Int("deleted", n))
	return c.JSON(http.StatusOK, map[string]int{"deleted": n})
}

func (a *App) apiListCategories(c echo.Context) error {
	categories, err := a.Categories.ListCategories(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, categories)
}

func (a *App) apiCreateCategory(c echo.Context) error {
	var req nameRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	category, err := a.Store.CreateCategory(c.Request().Context(), req.Name)
	if err != nil {
		return err
	}
	a.Categories.Invalidate()
	return c.JSON(http.StatusCreated, category)
}

func (a *App) apiDeleteCategory(c echo.Context) error {
	id, err := apiID(c)
	if err != nil {
		return err
	}
	if err := a.Store.DeleteCategory(c.Request().Context(), id); err != nil {
		return err
	}
	a.Categories.Invalidate()
	return c.NoContent(http.StatusNoContent)
}

func (a *App) apiListUsers(c echo.Context) error {
	users, err := a.Store.ListUsers(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, users)
}

func (a *App) apiCreateUser(c echo.Context) error {
	var req nameRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	user, err := a.Store.CreateUser(c.Request().Context(), req.Name)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, user)
}

func (a *App) apiDeleteUser(c echo.Context) error {
	id, err := apiID(c)
	if err != nil {
		return err
	}
	if err := a.Store.DeleteUser(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func apiID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, &InvalidArgumentError{Argument: "id", Reason: "must be a positive integer"}
	}
	return id, nil
}

func queryInt(c echo.Context, name string, fallback int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &InvalidArgumentError{Argument: name, Reason: "must be an integer"}
	}
	return n, nil
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
