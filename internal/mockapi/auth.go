package mockapi

import (
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	jwt "github.com/golang-jwt/jwt/v5"
)

// SessionCookie is the session cookie name issued by /login.
const SessionCookie = "JSESSIONID"

const principalKey = "mock_principal"

// tokenManager issues and validates HS256 bearer tokens.
type tokenManager struct {
	secret []byte
}

// Claims is the bearer token payload. Subject is the username.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

func (tm *tokenManager) issue(u *User, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Role: u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tm.secret)
}

func (tm *tokenManager) parse(raw string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// authenticate accepts a session cookie, basic credentials or a bearer
// token, in that order.
func (s *Server) authenticate(c *fiber.Ctx) error {
	if id := c.Cookies(SessionCookie); id != "" {
		if u, ok := s.state.session(id); ok {
			c.Locals(principalKey, u)
			return c.Next()
		}
	}

	scheme, value, _ := strings.Cut(c.Get(fiber.HeaderAuthorization), " ")
	switch {
	case strings.EqualFold(scheme, "Basic"):
		decoded, err := base64.StdEncoding.DecodeString(value)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "malformed basic credentials")
		}
		username, password, _ := strings.Cut(string(decoded), ":")
		u, ok := s.state.authenticate(username, password)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "bad credentials")
		}
		c.Locals(principalKey, u)
		return c.Next()
	case strings.EqualFold(scheme, "Bearer"):
		claims, err := s.tokens.parse(value)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
		}
		u, ok := s.state.userByName(claims.Subject)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "user not found")
		}
		c.Locals(principalKey, u)
		return c.Next()
	}
	return fiber.NewError(fiber.StatusUnauthorized, "authentication required")
}

func principal(c *fiber.Ctx) *User {
	u, _ := c.Locals(principalKey).(*User)
	return u
}

// requireRole rejects callers whose role is not listed.
func requireRole(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		u := principal(c)
		if u == nil {
			return fiber.NewError(fiber.StatusUnauthorized, "authentication required")
		}
		for _, r := range roles {
			if u.Role == r {
				return c.Next()
			}
		}
		return fiber.NewError(fiber.StatusForbidden, "role "+u.Role+" may not perform this action")
	}
}
