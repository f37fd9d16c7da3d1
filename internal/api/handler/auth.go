package handler

import (
	"net/http"
	"strings"

	"crmchat/backend/internal/auth"

	"github.com/gin-gonic/gin"
)

const claimsKey = "claims"

// RequireAuth rejects requests without a valid bearer token and stores the
// token's claims on the context.
func (h *Handler) RequireAuth() gin.HandlerFunc {
	secret := []byte(h.Config.JWTSecret)
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenString == "" {
			fail(c, http.StatusUnauthorized, "Authorization token missing")
			return
		}
		claims, err := auth.ParseToken(tokenString, secret)
		if err != nil {
			fail(c, http.StatusUnauthorized, "Invalid token or expired")
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

func claimsFrom(c *gin.Context) *auth.Claims {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*auth.Claims)
	return claims
}
