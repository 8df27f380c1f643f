package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// AdminKeyAuth returns middleware that requires a valid admin key for access.
// If adminKey is empty all requests are allowed, which keeps local development open.
// The key is provided in the Authorization header as "Bearer <key>".
func AdminKeyAuth(adminKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if adminKey == "" {
			c.Next()
			return
		}

		code, msg := checkBearer(c.GetHeader("Authorization"), adminKey)
		if code != "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": msg,
				"code":  code,
			})
			return
		}

		c.Next()
	}
}

// VerifyAdminKey returns a handler clients use to check a stored admin key
func VerifyAdminKey(adminKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if adminKey == "" {
			c.JSON(http.StatusOK, gin.H{
				"valid":        true,
				"auth_enabled": false,
				"message":      "Authentication is not configured",
			})
			return
		}

		if code, msg := checkBearer(c.GetHeader("Authorization"), adminKey); code != "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"valid": false,
				"error": msg,
				"code":  code,
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"valid":        true,
			"auth_enabled": true,
		})
	}
}

// checkBearer validates an Authorization header against key.
// It returns an empty code when the header carries the right key.
func checkBearer(header, key string) (code, msg string) {
	if header == "" {
		return "AUTH_REQUIRED", "Authorization header required"
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "AUTH_INVALID_FORMAT", "Invalid authorization format. Use: Bearer <admin_key>"
	}

	// Constant-time comparison to prevent timing attacks
	if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(key)) != 1 {
		return "AUTH_INVALID_KEY", "Invalid admin key"
	}
	return "", ""
}
