package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
)

var ErrUnauthenticated = errors.New("unauthenticated")

type contextKey struct{}

const userHeader = "X-User-Id"

// WithUserID returns a context carrying the authenticated user identity.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, contextKey{}, userID)
}

// UserID extracts the authenticated user identity from the context.
func UserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(contextKey{}).(string)
	return userID, ok && userID != ""
}

// RequireUser rejects requests that carry no user identity. Upstream
// termination has already validated the credential; this layer trusts the
// forwarded identity header.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(userHeader))
		if userID == "" {
			_ = c.Error(ErrUnauthenticated)
			c.Abort()
			return
		}
		c.Request = c.Request.WithContext(WithUserID(c.Request.Context(), userID))
		c.Next()
	}
}
