package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"fintool-server/src/util"
)

type contextKey string

const (
	userIDKey     contextKey = "user_id"
	superAdminKey contextKey = "super_admin"
	requestIDKey  contextKey = "request_id"
)

var (
	errMissingToken  = errors.New("missing token")
	errInvalidToken  = errors.New("invalid token")
	errInvalidClaims = errors.New("invalid token claims")
)

// ParseTokenFromRequest extracts and validates the bearer token, returning
// its claims if valid.
func ParseTokenFromRequest(r *http.Request, secret []byte) (jwt.MapClaims, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, errMissingToken
	}
	tokenString := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
	if err != nil || !token.Valid {
		return nil, errInvalidToken
	}
	return claims, nil
}

func JWTAuthMiddleware(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := ParseTokenFromRequest(r, secret)
			if err != nil {
				util.WriteError(w, http.StatusUnauthorized, err.Error(), "")
				return
			}

			rawID, ok := claims["user_id"].(float64)
			if !ok || rawID <= 0 || rawID != float64(int64(rawID)) {
				util.WriteError(w, http.StatusUnauthorized, errInvalidClaims.Error(), "")
				return
			}
			superAdmin, _ := claims["super_admin"].(bool)

			ctx := WithUserID(r.Context(), int64(rawID))
			ctx = context.WithValue(ctx, superAdminKey, superAdmin)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func SuperAdminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		superAdmin, ok := r.Context().Value(superAdminKey).(bool)
		if !ok || !superAdmin {
			util.WriteError(w, http.StatusForbidden, "forbidden", "")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok
}
