package middlewares

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/moldpark_backend/models"
	"github.com/mmdatafocus/moldpark_backend/utils"
)

// TokenStore resolves a session token to a username. *config.Redis implements it.
type TokenStore interface {
	GetValue(ctx context.Context, key string) (string, bool, error)
}

type UserLookup interface {
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

// SessionMiddleware authenticates the "token" header against the session
// tokens kept in redis under "Token:<token>".
func SessionMiddleware(tokens TokenStore, users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Request.Header.Get("token")
		if token == "" || tokens == nil {
			c.Next()
			return
		}
		ctx := c.Request.Context()
		username, exists, err := tokens.GetValue(ctx, "Token:"+token)
		if err != nil || !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		user, err := users.GetUserByUsername(ctx, username)
		if err != nil || !user.IsActive {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		ctx = utils.SetTokenInContext(ctx, token)
		ctx = utils.SetUsernameInContext(ctx, username)
		ctx = utils.SetUserIdInContext(ctx, user.ID)
		ctx = utils.SetIsAdminInContext(ctx, user.IsAdmin())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
