package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"paperdesk/models"
)

// userKey is the gin context key the middleware stores the user under.
const userKey = "auth.user"

// Middleware resolves the session cookie and aborts with 401 when no
// valid session is attached to the request.
func Middleware(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(svc.Config.SessionCookieName)
		if err != nil || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		user, err := svc.Resolve(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session expired or invalid"})
			return
		}
		c.Set(userKey, user)
		c.Next()
	}
}

// CurrentUser returns the authenticated user set by Middleware.
func CurrentUser(c *gin.Context) *models.User {
	if v, ok := c.Get(userKey); ok {
		if u, ok := v.(*models.User); ok {
			return u
		}
	}
	return nil
}

// SetSessionCookie writes the session cookie with the configured
// lifetime and flags.
func SetSessionCookie(c *gin.Context, svc *Service, token string) {
	maxAge := svc.Config.SessionTTLDays * 24 * 60 * 60
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(svc.Config.SessionCookieName, token, maxAge, "/", "", svc.Config.SecureCookies, true)
}

// ClearSessionCookie expires the session cookie.
func ClearSessionCookie(c *gin.Context, svc *Service) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(svc.Config.SessionCookieName, "", -1, "/", "", svc.Config.SecureCookies, true)
}
