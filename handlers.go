package postadmin

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const feedSize = 50

func (a *App) handleFeed(c echo.Context) error {
	posts, err := a.Store.PublishedPosts(c.Request().Context(), feedSize)
	if err != nil {
		return err
	}
	return a.renderRSS(c, posts)
}

func (a *App) handleHealth(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()
	if err := a.Store.Ping(ctx); err != nil {
		a.Logger.Error("health check failed", zap.Error(err))
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// errorStatus maps domain errors onto HTTP statuses. ok is false for errors
// the domain does not know about.
func errorStatus(err error) (code int, kind string, ok bool) {
	var (
		verr  *ValidationError
		nf    *NotFoundError
		serr  *StorageError
		inval *InvalidArgumentError
		inUse *InUseError
	)
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", true
	case errors.As(err, &nf):
		return http.StatusNotFound, "NOT_FOUND", true
	case errors.As(err, &inval):
		return http.StatusBadRequest, "BAD_REQUEST", true
	case errors.As(err, &inUse):
		return http.StatusConflict, "CONFLICT", true
	case errors.As(err, &serr):
		return http.StatusBadGateway, "STORAGE_ERROR", true
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR", false
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	if isAPIPath(c.Request().URL.Path) {
		a.apiErrorHandler(err, c)
		return
	}
	he, ok := err.(*echo.HTTPError)
	if !ok {
		if code, _, known := errorStatus(err); known {
			he, ok = echo.NewHTTPError(code, err.Error()), true
		}
	}
	if ok && he.Code == http.StatusNotFound {
		_ = RenderStatus(c, http.StatusNotFound, a.Views.NotFound())
		return
	}
	code := http.StatusInternalServerError
	if ok {
		code = he.Code
	}
	if code >= 500 {
		a.Logger.Error("server error",
			zap.String("uri", c.Request().RequestURI),
			zap.Int("status", code),
			zap.Error(err),
		)
		_ = RenderStatus(c, code, a.Views.ServerError())
		return
	}
	a.Echo.DefaultHTTPErrorHandler(he, c)
}
