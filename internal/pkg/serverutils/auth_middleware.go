package serverutils

import (
	"strings"

	"campus-rag-be/internal/constant"
	"campus-rag-be/pkg/store"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const userContextKey = "user_context"

// OptionalAuthMiddleware resolves the caller's UserContext from a bearer
// token. No token means a guest context; a present-but-invalid token is
// rejected. Verification is pure CPU work, no store lookups.
func OptionalAuthMiddleware(jwtSecret string) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		authHeader := ctx.Get("Authorization")
		if authHeader == "" {
			ctx.Locals(userContextKey, store.UserContext{
				UserID:   "guest",
				UserRole: constant.RoleGuest,
			})
			return ctx.Next()
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(jwtSecret), nil
		})
		if err != nil || !token.Valid {
			return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Invalid token"})
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Invalid claims"})
		}
		if claims["type"] != "access" {
			return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Invalid token type"})
		}

		user := store.UserContext{
			UserID:   asString(claims["sub"]),
			UserName: asString(claims["name"]),
			UserRole: asString(claims["role"]),
			DeptID:   asString(claims["dept"]),
		}
		if user.UserRole == "" {
			user.UserRole = constant.RoleGuest
		}
		ctx.Locals(userContextKey, user)
		return ctx.Next()
	}
}

// UserFromContext returns the UserContext placed by the auth middleware.
func UserFromContext(ctx *fiber.Ctx) store.UserContext {
	if user, ok := ctx.Locals(userContextKey).(store.UserContext); ok {
		return user
	}
	return store.UserContext{UserID: "guest", UserRole: constant.RoleGuest}
}

// RequireAuth rejects guests. Use behind OptionalAuthMiddleware.
func RequireAuth(ctx *fiber.Ctx) error {
	if !UserFromContext(ctx).IsAuthenticated() {
		return ctx.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Authentication required"})
	}
	return ctx.Next()
}

func asString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
