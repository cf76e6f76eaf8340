// Package middleware provides HTTP middleware for the inbox service.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/counselhub/inbox-sync/internal/model"
)

// ContextKey is a type for context keys.
type ContextKey string

const (
	// IdentityKey is the context key for the session identity.
	IdentityKey ContextKey = "identity"
)

// Claims represents the portal session JWT claims.
type Claims struct {
	jwt.RegisteredClaims
	Role        string `json:"role"`
	DisplayName string `json:"name"`
}

// Auth creates JWT authentication middleware. The claims are the identity
// provider: user id (subject), role and display name.
func Auth(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, `{"error":"missing authorization header"}`, http.StatusUnauthorized)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				http.Error(w, `{"error":"invalid authorization header format"}`, http.StatusUnauthorized)
				return
			}

			tokenString := parts[1]

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(jwtSecret), nil
			})

			if err != nil || !token.Valid {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			role := model.Role(claims.Role)
			if !role.Valid() || role == model.RoleSystem {
				http.Error(w, `{"error":"unknown role"}`, http.StatusUnauthorized)
				return
			}

			identity := model.Identity{
				ID:          claims.Subject,
				Role:        role,
				DisplayName: claims.DisplayName,
			}

			ctx := context.WithValue(r.Context(), IdentityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetIdentity gets the session identity from context.
func GetIdentity(ctx context.Context) model.Identity {
	if v := ctx.Value(IdentityKey); v != nil {
		return v.(model.Identity)
	}
	return model.Identity{}
}
