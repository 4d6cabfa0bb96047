package auth

import (
	"errors"
	"net/http"
	"slices"

	"github.com/frahmantamala/document-request/internal"
	"github.com/frahmantamala/document-request/internal/transport"
)

type TokenValidator interface {
	ValidateToken(tokenString string) (*Claims, error)
}

type Handler struct {
	*transport.BaseHandler
	Tokens TokenValidator
}

func NewHandler(baseHandler *transport.BaseHandler, tokens TokenValidator) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Tokens:      tokens,
	}
}

// AuthMiddleware requires a valid bearer token and puts the caller's id and
// role on the request context.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := h.ExtractTokenFromHeader(r)
		if token == "" {
			h.HandleError(w, internal.ErrMissingToken)
			return
		}

		claims, err := h.Tokens.ValidateToken(token)
		if err != nil {
			h.Logger.Warn("token validation failed", "error", err)
			if errors.Is(err, ErrTokenExpired) {
				h.HandleError(w, internal.ErrTokenExpired)
				return
			}
			h.HandleError(w, internal.ErrInvalidToken)
			return
		}

		ctx := internal.ContextWithUserID(r.Context(), claims.UserID)
		ctx = internal.ContextWithRole(ctx, claims.Role.String())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole lets the request through only for the listed roles.
func (h *Handler) RequireRole(roles ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, err := RoleFromContext(r)
			if err != nil {
				h.HandleError(w, internal.ErrInvalidToken)
				return
			}
			if !slices.Contains(roles, role) {
				h.Logger.Warn("access denied: role not allowed",
					"user_id", internal.UserIDFromContext(r.Context()),
					"role", role,
					"allowed", roles)
				h.HandleError(w, internal.ErrForbiddenRole)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RoleFromContext reads the role AuthMiddleware stored on the request.
func RoleFromContext(r *http.Request) (Role, error) {
	return ParseRole(internal.RoleFromContext(r.Context()))
}
