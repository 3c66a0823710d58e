package middleware

import (
	"ctchen222/tictactoe-minimax/internal/api/response"
	"ctchen222/tictactoe-minimax/internal/api/service"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const usernameKey = "auth.username"

// TokenParser verifies bearer tokens.
type TokenParser interface {
	ParseToken(tokenString string) (*service.Claims, error)
}

// Auth reads an optional "Authorization: Bearer <token>" header. A present but
// invalid token is always rejected; a missing one only when required is set.
func Auth(parser TokenParser, required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			if required {
				response.ErrorResponse(c, http.StatusUnauthorized, "missing bearer token")
				c.Abort()
				return
			}
			c.Next()
			return
		}

		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			response.ErrorResponse(c, http.StatusUnauthorized, "malformed authorization header")
			c.Abort()
			return
		}
		claims, err := parser.ParseToken(strings.TrimSpace(tokenString))
		if err != nil {
			response.ErrorResponse(c, http.StatusUnauthorized, service.ErrInvalidToken.Error())
			c.Abort()
			return
		}

		c.Set(usernameKey, claims.Username)
		c.Next()
	}
}

// Username returns the authenticated username, or "" for anonymous requests.
func Username(c *gin.Context) string {
	return c.GetString(usernameKey)
}
