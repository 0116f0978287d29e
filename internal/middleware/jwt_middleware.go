package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"

	"pokeshop/internal/models"
	"pokeshop/internal/services"
)

const (
	localUserID   = "user_id"
	localUsername = "username"
	localRole     = "role"
)

// AuthRequired is a Fiber middleware to check for a valid JWT token.
func AuthRequired(authService *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString, msg := bearerToken(c)
		if msg != "" {
			return unauthorized(c, msg, nil)
		}

		claims, err := authService.ValidateToken(tokenString)
		if err != nil {
			return unauthorized(c, "Invalid or expired token", err)
		}

		setClaims(c, claims)
		return c.Next()
	}
}

// OptionalAuth attaches the caller's identity when a valid token is sent and
// lets anonymous requests through untouched.
func OptionalAuth(authService *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if tokenString, msg := bearerToken(c); msg == "" {
			if claims, err := authService.ValidateToken(tokenString); err == nil {
				setClaims(c, claims)
			}
		}
		return c.Next()
	}
}

// AdminRequired only lets administrators through. Any failure, including a
// valid customer token, is answered with 401.
func AdminRequired(authService *services.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString, msg := bearerToken(c)
		if msg != "" {
			return unauthorized(c, msg, nil)
		}

		claims, err := authService.ValidateToken(tokenString)
		if err != nil {
			return unauthorized(c, "Invalid or expired token", err)
		}
		if !claims.IsAdmin() {
			return unauthorized(c, "Administrator role required", nil)
		}

		setClaims(c, claims)
		return c.Next()
	}
}

// AdminOrCronSecret accepts either an administrator token or the shared cron
// secret as bearer token.
func AdminOrCronSecret(authService *services.AuthService, cronSecret string) fiber.Handler {
	admin := AdminRequired(authService)
	return func(c *fiber.Ctx) error {
		if cronSecret != "" {
			if tokenString, msg := bearerToken(c); msg == "" &&
				subtle.ConstantTimeCompare([]byte(tokenString), []byte(cronSecret)) == 1 {
				return c.Next()
			}
		}
		return admin(c)
	}
}

// UserID returns the authenticated user's id, or "" for anonymous requests.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(localUserID).(string)
	return id
}

// IsAdmin reports whether the request carries an administrator token.
func IsAdmin(c *fiber.Ctx) bool {
	role, _ := c.Locals(localRole).(models.Role)
	return role == models.RoleAdmin
}

func setClaims(c *fiber.Ctx, claims services.Claims) {
	c.Locals(localUserID, claims.UserID)
	c.Locals(localUsername, claims.Username)
	c.Locals(localRole, claims.Role)
}

// bearerToken extracts the token from "Authorization: Bearer <token>". On
// failure it returns a message for the client instead.
func bearerToken(c *fiber.Ctx) (string, string) {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return "", "Authorization header is required"
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if !(len(parts) == 2 && parts[0] == "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", "Authorization header format must be 'Bearer <token>'"
	}
	return strings.TrimSpace(parts[1]), ""
}

func unauthorized(c *fiber.Ctx, msg string, err error) error {
	body := fiber.Map{"message": msg}
	if err != nil {
		body["error"] = err.Error()
	}
	return c.Status(fiber.StatusUnauthorized).JSON(body)
}
