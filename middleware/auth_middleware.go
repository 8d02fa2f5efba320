package middlewares

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"community-help/logger"
	"community-help/models"
	"community-help/services"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	ContextUserID = "user_id"
	ContextRole   = "role"

	TokenCookie = "token"
)

// Authenticator verifies a session token and returns the caller with the
// role currently stored for them.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (services.Actor, error)
}

// AuthMiddleware accepts the token from the "token" cookie or an
// "Authorization: Bearer" header and stores user_id and role in the context.
func AuthMiddleware(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c.GetHeader("Authorization"))
		if tokenString == "" {
			tokenString, _ = c.Cookie(TokenCookie)
		}
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token required"})
			return
		}

		actor, err := auth.Authenticate(c.Request.Context(), tokenString)
		if errors.Is(err, services.ErrInvalidToken) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}
		if err != nil {
			logger.Log.WithError(err).Error("Failed to load session user")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to verify session"})
			return
		}

		c.Set(ContextUserID, actor.ID.Hex())
		c.Set(ContextRole, string(actor.Role))
		c.Next()
	}
}

// RequireRole lets the request through only for the given roles.
// It must run after AuthMiddleware.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := models.Role(c.GetString(ContextRole))
		for _, r := range roles {
			if r == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Insufficient role"})
	}
}

// CurrentActor returns the authenticated caller set by AuthMiddleware.
func CurrentActor(c *gin.Context) (services.Actor, bool) {
	id, err := primitive.ObjectIDFromHex(c.GetString(ContextUserID))
	if err != nil {
		return services.Actor{}, false
	}
	return services.Actor{ID: id, Role: models.Role(c.GetString(ContextRole))}, true
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
