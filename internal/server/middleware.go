package server

import (
	"github.com/gin-gonic/gin"
	obscontext "github.com/timehug/timehug/internal/observability/context"
	"github.com/timehug/timehug/internal/usercontext"
)

const contextUserIDKey = "user_id"

// AuthRequired resolves the session cookie once per request and threads
// the authenticated user id through the request context.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := s.sessions.ReadToken(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		session, err := s.authsvc.Authenticate(c.Request.Context(), token)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		ctx := usercontext.WithUserID(c.Request.Context(), int64(session.UserID))
		ctx = obscontext.WithUserID(ctx, session.UserID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Set(contextUserIDKey, session.UserID.String())
		c.Next()
	}
}
