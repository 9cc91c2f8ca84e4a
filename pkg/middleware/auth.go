package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	apperrors "libris/pkg/errors"
	"libris/pkg/jwt"
	"libris/pkg/logger"
	"libris/pkg/model"

	"github.com/julienschmidt/httprouter"
)

const principalKey contextKey = "principal"

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID string
	Role   model.Role
}

func (p Principal) IsAdmin() bool {
	return p.Role == model.RoleAdmin
}

// CanAccess reports whether p may act on a resource owned by ownerID.
func (p Principal) CanAccess(ownerID string) bool {
	return p.IsAdmin() || p.UserID == ownerID
}

type TokenValidator interface {
	ValidateToken(token string) (*jwt.Claims, error)
}

type Authenticator struct {
	tokens TokenValidator
	log    *logger.Logger
}

func NewAuthenticator(tokens TokenValidator, log *logger.Logger) *Authenticator {
	return &Authenticator{tokens: tokens, log: log}
}

// Require wraps a route so that it only runs for a valid bearer token.
func (a *Authenticator) Require(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		token := bearerToken(r)
		if token == "" {
			reject(w, a.log, r, apperrors.Unauthorized("Access token required"))
			return
		}

		claims, err := a.tokens.ValidateToken(token)
		if err != nil {
			message := "Invalid token"
			if errors.Is(err, jwt.ErrExpiredToken) {
				message = "Token expired"
			}
			reject(w, a.log, r, apperrors.Unauthorized(message))
			return
		}

		principal := Principal{UserID: claims.UserID, Role: model.Role(claims.Role)}
		next(w, r.WithContext(WithPrincipal(r.Context(), principal)), ps)
	}
}

// RequireRole authenticates the request and then checks the caller's role.
func (a *Authenticator) RequireRole(role model.Role, next httprouter.Handle) httprouter.Handle {
	return a.Require(func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		principal, _ := PrincipalFromContext(r.Context())
		if principal.Role != role {
			reject(w, a.log, r, apperrors.Forbidden("Insufficient permissions"))
			return
		}
		next(w, r, ps)
	})
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found {
		return ""
	}
	return strings.TrimSpace(token)
}
