package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/GoCCTP/burngate/internal/config"
	"github.com/gin-gonic/gin"
)

const HeaderAPIKey = "X-API-Key"

// AuthMiddleware gates the transfer endpoints behind a single operator API
// key when one is configured. The facilitator pays gas for every accepted
// request, so an open instance is an open wallet.
func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg == nil || !cfg.Auth.RequireAPIKey {
			c.Next()
			return
		}

		apiKey := c.GetHeader(HeaderAPIKey)
		if apiKey == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing API key"})
			c.Abort()
			return
		}
		if subtle.ConstantTimeCompare([]byte(apiKey), []byte(cfg.Auth.APIKey)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid API key"})
			c.Abort()
			return
		}

		c.Next()
	}
}
