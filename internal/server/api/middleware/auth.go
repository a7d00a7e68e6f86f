package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humaecho"
	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const (
	UserIDKey   contextKey = "user_id"
	UserRoleKey contextKey = "user_role"
)

func GetUserID(ctx context.Context) string {
	v, _ := ctx.Value(UserIDKey).(string)
	return v
}

func GetUserRole(ctx context.Context) string {
	v, _ := ctx.Value(UserRoleKey).(string)
	return v
}

// Auth validates the JWT bearer token and stores the caller's identity on
// the request context.
func Auth(jwtSecret string) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		auth := ctx.Header("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			writeError(ctx, http.StatusUnauthorized, "missing bearer token")
			return
		}

		tokenStr := strings.TrimPrefix(auth, "Bearer ")
		token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
			return []byte(jwtSecret), nil
		})
		if err != nil || !token.Valid {
			writeError(ctx, http.StatusUnauthorized, "invalid token")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			writeError(ctx, http.StatusUnauthorized, "invalid claims")
			return
		}

		userID, _ := claims["sub"].(string)
		role, _ := claims["role"].(string)

		echoCtx := humaecho.Unwrap(ctx)
		r := echoCtx.Request()
		newCtx := context.WithValue(r.Context(), UserIDKey, userID)
		newCtx = context.WithValue(newCtx, UserRoleKey, role)
		echoCtx.SetRequest(r.WithContext(newCtx))

		next(ctx)
	}
}

// AdminOnly rejects callers without the admin role. Must run after Auth.
func AdminOnly() func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		role := GetUserRole(humaecho.Unwrap(ctx).Request().Context())
		if role != "admin" {
			writeError(ctx, http.StatusForbidden, "admin access required")
			return
		}
		next(ctx)
	}
}

func writeError(ctx huma.Context, status int, message string) {
	ctx.SetHeader("Content-Type", "application/problem+json")
	ctx.SetStatus(status)
	json.NewEncoder(ctx.BodyWriter()).Encode(map[string]any{
		"title":  http.StatusText(status),
		"status": status,
		"detail": message,
	})
}
