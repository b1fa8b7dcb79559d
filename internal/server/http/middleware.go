package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/tourvault/internal/server/auth"
)

// principalKey is the gin context key holding the authenticated principal id.
const principalKey = "principal_id"

// authMiddleware validates the Bearer token on every API call and stores the
// principal id in the request context.
func authMiddleware(secretKey []byte) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		header := ctx.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, Failed("unauthorized", "missing bearer token"))
			return
		}

		userID, err := auth.GetUserIDFromToken(token, secretKey)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, Failed("unauthorized", "invalid or expired token"))
			return
		}

		ctx.Set(principalKey, userID)
		ctx.Next()
	}
}

// principal returns the authenticated principal id set by authMiddleware.
func principal(ctx *gin.Context) string {
	return ctx.GetString(principalKey)
}
