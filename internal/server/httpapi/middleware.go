package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/passvault/internal/common"
	"github.com/dmitrijs2005/passvault/internal/server/models"
	"github.com/gin-gonic/gin"
)

const (
	cookieName = common.SessionCookieName
	userKey    = "user"
)

// requireAuth resolves the session cookie (or a bearer token) to a profile
// and stores it on the context. Requests without a valid session stop here
// with 401.
func (h *Handler) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(cookieName)
		if err != nil || token == "" {
			token = bearerToken(c.GetHeader("Authorization"))
		}
		if token == "" {
			fail(c, http.StatusUnauthorized, "unauthorized")
			return
		}

		profile, err := h.users.Authenticate(c.Request.Context(), token)
		if err != nil {
			h.writeError(c, err)
			return
		}

		c.Set(userKey, profile)
		c.Next()
	}
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

// currentUser is only valid behind requireAuth.
func currentUser(c *gin.Context) *models.Profile {
	v, ok := c.Get(userKey)
	if !ok {
		panic(common.ErrUnauthorized)
	}
	return v.(*models.Profile)
}

// requestLogger logs one line per request. Query strings are not logged.
func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		h.log.Info(c.Request.Context(), "request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"ip", c.ClientIP(),
		)
	}
}
