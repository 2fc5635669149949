package postadmin

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

// RoleAdmin is the only role allowed on the JSON API.
const RoleAdmin = "admin"

const apiSubjectKey = "api_subject"

type apiClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// IssueAPIToken signs an HS256 access token for subject with the admin role.
func IssueAPIToken(secret, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := apiClaims{
		Role: RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// requireJWT accepts "Authorization: Bearer <token>" signed with the API
// secret and carrying the admin role.
func (a *App) requireJWT(next echo.HandlerFunc) echo.HandlerFunc {
	secret := []byte(a.Config.APIJWTSecret)
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		if !strings.HasPrefix(header, "Bearer ") {
			a.Logger.Warn("api auth: missing bearer token", zap.String("ip", c.RealIP()))
			return echo.NewHTTPError(http.StatusUnauthorized, "missing access token")
		}

		claims := &apiClaims{}
		token, err := jwt.ParseWithClaims(strings.TrimPrefix(header, "Bearer "), claims,
			func(*jwt.Token) (any, error) { return secret, nil },
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		)
		if err != nil || !token.Valid {
			a.Logger.Warn("api auth: invalid token", zap.String("ip", c.RealIP()), zap.Error(err))
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
		}
		if claims.Role != RoleAdmin {
			a.Logger.Warn("api auth: role rejected", zap.String("sub", claims.Subject), zap.String("role", claims.Role))
			return echo.NewHTTPError(http.StatusForbidden, "admin role required")
		}

		c.Set(apiSubjectKey, claims.Subject)
		return next(c)
	}
}

// apiCORS answers preflights and sets CORS headers on /api paths. It runs
// before routing so OPTIONS requests never reach the router.
func apiCORS(origins []string) echo.MiddlewareFunc {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	wrapped := echo.WrapMiddleware(cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}).Handler)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		withCORS := wrapped(next)
		return func(c echo.Context) error {
			if isAPIPath(c.Request().URL.Path) {
				return withCORS(c)
			}
			return next(c)
		}
	}
}
