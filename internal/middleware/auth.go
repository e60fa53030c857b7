package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/shinyyama/unimarket-backend/internal/reqctx"
)

const (
	ContextKeyUID  = "uid"
	ContextKeyRole = "role"
)

var ErrInvalidToken = errors.New("invalid token")

// Identity is the caller resolved from a bearer token.
type Identity struct {
	UserID uint64
	Email  string
	Role   string
}

// Verifier turns a raw bearer token into an Identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

type AuthMiddleware struct {
	verifier Verifier
}

func NewAuthMiddleware(v Verifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: v}
}

func (m *AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		tokenStr := bearerToken(c.Request())
		if tokenStr == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
		}
		id, err := m.verifier.Verify(c.Request().Context(), tokenStr)
		if err != nil || id == nil || id.UserID == 0 {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid_token")
		}
		c.Set(ContextKeyUID, id.UserID)
		c.Set(ContextKeyRole, id.Role)
		req := c.Request()
		c.SetRequest(req.WithContext(reqctx.WithUserID(req.Context(), id.UserID)))
		return next(c)
	}
}

// bearerToken reads the Authorization header. Browsers cannot set headers on a
// websocket handshake, so upgrades may pass the token as ?token= instead.
func bearerToken(r *http.Request) string {
	authz := r.Header.Get(echo.HeaderAuthorization)
	if strings.HasPrefix(authz, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
	}
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return r.URL.Query().Get("token")
	}
	return ""
}

// UID returns the authenticated caller stored by RequireAuth, or 0.
func UID(c echo.Context) uint64 {
	uid, _ := c.Get(ContextKeyUID).(uint64)
	return uid
}
