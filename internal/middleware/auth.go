package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/retrocast/api/internal/auth"
	"github.com/retrocast/api/pkg/response"
)

const (
	localUserID = "userId"
	localEmail  = "email"
	localName   = "name"
)

// AuthMiddleware accepts OIDC tokens and, when a secret is configured,
// HMAC-signed development tokens.
type AuthMiddleware struct {
	verifier  auth.TokenVerifier
	jwtSecret string
}

func NewAuthMiddleware(verifier auth.TokenVerifier, jwtSecret string) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier, jwtSecret: jwtSecret}
}

// Authenticate rejects requests without a valid bearer token.
func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString, ok := bearerToken(c.Get("Authorization"))
		if !ok {
			return response.Unauthorized(c, "Missing or invalid authorization header")
		}

		if m.verifier != nil {
			claims, err := m.verifier.Validate(tokenString)
			if err == nil {
				setIdentity(c, claims.UserID, claims.Email, claims.Name)
				return c.Next()
			}
			if m.jwtSecret == "" {
				log.Debug().Err(err).Msg("Token rejected")
				return response.Unauthorized(c, "Invalid or expired token")
			}
		}

		if m.jwtSecret != "" {
			claims, err := auth.ValidateLegacyToken(tokenString, m.jwtSecret)
			if err != nil {
				return response.Unauthorized(c, "Invalid or expired token")
			}
			setIdentity(c, claims.UserID, claims.Email, "")
			return c.Next()
		}

		return response.Unauthorized(c, "Authentication not configured")
	}
}

// GenerateToken signs a development token. Only works with a secret set.
func (m *AuthMiddleware) GenerateToken(userID, email string) (string, error) {
	return auth.GenerateLegacyToken(m.jwtSecret, userID, email, 0)
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

func setIdentity(c *fiber.Ctx, userID, email, name string) {
	c.Locals(localUserID, userID)
	c.Locals(localEmail, email)
	c.Locals(localName, name)
}

func GetUserID(c *fiber.Ctx) string {
	if userID, ok := c.Locals(localUserID).(string); ok {
		return userID
	}
	return ""
}

func GetUserEmail(c *fiber.Ctx) string {
	if email, ok := c.Locals(localEmail).(string); ok {
		return email
	}
	return ""
}
