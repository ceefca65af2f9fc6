package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	pkgjwt "github.com/weiawesome/wes-io-live/membership-service/pkg/jwt"
	pkglog "github.com/weiawesome/wes-io-live/membership-service/pkg/log"
	"github.com/weiawesome/wes-io-live/membership-service/pkg/response"
)

const (
	UserIDKey     = "user_id"
	UsernameKey   = "username"
	AuthHeaderKey = "Authorization"
	BearerPrefix  = "Bearer "
)

// TokenValidator validates a bearer token and returns its claims.
type TokenValidator interface {
	ValidateToken(token string) (*pkgjwt.Claims, error)
}

// AuthMiddleware validates JWT tokens issued by the authentication service.
type AuthMiddleware struct {
	validator TokenValidator
}

// NewAuthMiddleware creates a new auth middleware.
func NewAuthMiddleware(validator TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{validator: validator}
}

// RequireAuth returns a Gin middleware that validates JWT tokens.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader(AuthHeaderKey)
		if authHeader == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}

		if !strings.HasPrefix(authHeader, BearerPrefix) {
			response.Unauthorized(c, "invalid authorization format")
			c.Abort()
			return
		}

		token := strings.TrimPrefix(authHeader, BearerPrefix)
		claims, err := m.validator.ValidateToken(token)
		if err != nil {
			l := pkglog.Ctx(c.Request.Context())
			l.Debug().Err(err).Msg("token rejected")
			response.Unauthorized(c, err.Error())
			c.Abort()
			return
		}

		// Set user info in context
		c.Set(UserIDKey, claims.UserID)
		c.Set(UsernameKey, claims.Username)

		// Enrich the request logger with the actor.
		l := pkglog.Ctx(c.Request.Context()).With().Uint64(pkglog.FieldUserID, claims.UserID).Logger()
		c.Request = c.Request.WithContext(pkglog.WithLogger(c.Request.Context(), l))

		c.Next()
	}
}

// GetUserID extracts user ID from Gin context.
func GetUserID(c *gin.Context) uint64 {
	if id, exists := c.Get(UserIDKey); exists {
		if v, ok := id.(uint64); ok {
			return v
		}
	}
	return 0
}

// GetUsername extracts username from Gin context.
func GetUsername(c *gin.Context) string {
	if username, exists := c.Get(UsernameKey); exists {
		if v, ok := username.(string); ok {
			return v
		}
	}
	return ""
}
