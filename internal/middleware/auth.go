package middleware

import (
	"errors"
	"net/url"
	"strconv"
	"strings"

	"quill/internal/config"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

var cfg *config.Config

// InitMiddleware initializes authentication middleware with the given config.
func InitMiddleware(c *config.Config) {
	cfg = c
}

// TokenCookie is the cookie carrying the session JWT for browser flows.
const TokenCookie = "quill_token"

// LoginPath is the authentication entry point unauthenticated actors are
// redirected to, carrying the original URL in the next parameter.
const LoginPath = "/auth/login"

var errNoToken = errors.New("no authentication token")

// LoginRequired enforces authentication for protected routes. Unauthenticated
// requests are never rejected with an error status; they are redirected to
// the login entry point with a return path, so the actor can come back after
// signing in.
func LoginRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := requestUserID(c)
		if err != nil {
			return RedirectToLogin(c)
		}
		c.Locals("userID", userID)
		return c.Next()
	}
}

// OptionalUser resolves the acting identity when a valid token is present and
// leaves the request anonymous otherwise. Public feed routes use it for the
// viewer-dependent following flag.
func OptionalUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if userID, err := requestUserID(c); err == nil {
			c.Locals("userID", userID)
		}
		return c.Next()
	}
}

// RedirectToLogin sends the actor to the login entry point with the original
// URL preserved in the next parameter.
func RedirectToLogin(c *fiber.Ctx) error {
	next := url.QueryEscape(c.OriginalURL())
	return c.Redirect(LoginPath+"?next="+next, fiber.StatusFound)
}

// ActingUserID returns the authenticated user id set by LoginRequired or
// OptionalUser, or 0 for an anonymous request.
func ActingUserID(c *fiber.Ctx) uint {
	if uid, ok := c.Locals("userID").(uint); ok {
		return uid
	}
	return 0
}

// requestUserID extracts and validates the JWT from the session cookie or the
// Authorization header and returns the subject user id.
func requestUserID(c *fiber.Ctx) (uint, error) {
	tokenString := c.Cookies(TokenCookie)
	if tokenString == "" {
		authHeader := c.Get("Authorization")
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return 0, errNoToken
		}
		tokenString = parts[1]
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return []byte(cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return 0, errors.New("invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, errors.New("invalid token claims")
	}

	subStr, ok := claims["sub"].(string)
	if !ok {
		return 0, errors.New("invalid token subject")
	}

	userID, err := strconv.ParseUint(subStr, 10, 32)
	if err != nil {
		return 0, errors.New("invalid user id in token")
	}

	return uint(userID), nil
}
