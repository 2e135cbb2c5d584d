package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"example.com/miniblog/internal/auth"
	"example.com/miniblog/internal/models"
)

// SessionCookie carries the opaque session token between requests.
const SessionCookie = "blog_session"

const (
	ctxUserKey  = "current_user"
	ctxTokenKey = "session_token"
)

// SessionMiddleware resolves the request's session token, if any, and makes
// the authenticated user snapshot available to downstream handlers. It never
// rejects; that's RequireUser's job.
func SessionMiddleware(authSvc *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := tokenFromRequest(c)
		if user := authSvc.Resolve(token); user != nil {
			c.Set(ctxUserKey, user)
			c.Set(ctxTokenKey, token)
		}
		c.Next()
	}
}

// tokenFromRequest accepts the token either as a bearer header or as the
// session cookie set at login.
func tokenFromRequest(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if token, err := c.Cookie(SessionCookie); err == nil {
		return token
	}
	return ""
}

// CurrentUser returns the resolved user for this request, if a valid
// session was presented.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(ctxUserKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok
}

// SessionToken returns the token the current user authenticated with.
func SessionToken(c *gin.Context) string {
	return c.GetString(ctxTokenKey)
}

// RequireUser rejects requests that carry no valid session, before any
// handler runs. The response names the login path so clients know where
// to send the user.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentUser(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":    "login required",
				"location": "/auth/login",
			})
			return
		}
		c.Next()
	}
}

// SecurityHeadersMiddleware adds basic, sensible security headers.
func SecurityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Prevents clickjacking
		c.Header("X-Frame-Options", "DENY")
		// Prevents MIME-type sniffing
		c.Header("X-Content-Type-Options", "nosniff")
		c.Next()
	}
}
