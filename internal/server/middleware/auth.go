package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/polychat/pkg/api"
)

// Auth checks a static service key, sent as "Authorization: Bearer <key>" or
// "X-API-Key: <key>". With no keys configured the API stays open.
func Auth(staticKeys []string) gin.HandlerFunc {
	var keys [][]byte
	for _, k := range staticKeys {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, []byte(k))
		}
	}

	return func(c *gin.Context) {
		if len(keys) == 0 {
			c.Next()
			return
		}

		token := c.GetHeader("X-API-Key")
		if token == "" {
			authHeader := c.GetHeader("Authorization")
			if authHeader == "" {
				_ = c.Error(api.UnauthorizedError("Missing Authorization header"))
				c.Abort()
				return
			}
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				_ = c.Error(api.UnauthorizedError("Invalid Authorization header format"))
				c.Abort()
				return
			}
			token = strings.TrimSpace(parts[1])
		}

		for _, k := range keys {
			if subtle.ConstantTimeCompare(k, []byte(token)) == 1 {
				c.Next()
				return
			}
		}

		_ = c.Error(api.UnauthorizedError("Invalid API Key"))
		c.Abort()
	}
}
