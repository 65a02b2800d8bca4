package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// SessionCookie names the cookie holding the admin session token
const SessionCookie = "vidcatalog_session"

// LoginPath is where unauthenticated browsers are sent
const LoginPath = "/admin/login"

const apiPrefix = "/admin/api/"

// RequireAdmin rejects requests without a valid admin session.
// Browser routes are redirected to the login page, API routes get 401.
func RequireAdmin(a *Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(SessionCookie)
		if err == nil && token != "" {
			admin, err := a.ParseToken(token)
			if err == nil {
				c.Request = c.Request.WithContext(WithAdmin(c.Request.Context(), admin))
				c.Next()
				return
			}
			log.Debug().Err(err).Str("path", c.Request.URL.Path).Msg("Rejected admin session")
		}

		if strings.HasPrefix(c.Request.URL.Path, apiPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Redirect(http.StatusFound, LoginPath)
		c.Abort()
	}
}
