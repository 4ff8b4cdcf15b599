package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// NewRouter builds the gin engine with every route registered. Only
// Options.TrustedProxies may set the client IP through forwarding headers.
func NewRouter(h *Handler) (*gin.Engine, error) {
	r := gin.New()
	if err := r.SetTrustedProxies(h.opts.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}
	r.Use(gin.Recovery(), h.requestLogger(), h.metrics.Middleware())
	r.MaxMultipartMemory = h.opts.MaxImageSize + 1<<20

	r.GET("/healthz", h.healthz)
	r.GET("/metrics", gin.WrapH(h.metrics.Handler()))

	api := r.Group("/api")

	users := api.Group("/users")
	users.POST("/login", h.login)
	users.POST("/logout", h.logout)

	authed := users.Group("", h.requireAuth())
	authed.GET("/auth/check", h.authCheck)
	authed.POST("", h.createUser)
	authed.PATCH("/me", h.updateProfile)
	authed.PATCH("/me/password", h.changePassword)
	authed.GET("/profile-information", h.profile)
	authed.GET("/login-history", h.loginHistory)

	pw := api.Group("/passwords", h.requireAuth())
	pw.GET("", h.listCredentials)
	pw.POST("", h.createCredential)
	pw.GET("/export", h.export)
	pw.POST("/bulk-delete", h.bulkDelete)
	pw.POST("/generate-password", h.generatePassword)
	pw.GET("/:id", h.getCredential)
	pw.PATCH("/:id", h.updateCredential)
	pw.DELETE("/:id", h.deleteCredential)
	pw.GET("/:id/questions", h.securityQuestions)
	pw.POST("/:id/reveal", h.revealSecret)
	pw.GET("/:id/image", h.image)

	return r, nil
}

func (h *Handler) healthz(c *gin.Context) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			h.log.Warn(ctx, "database ping failed", "error", err)
			fail(c, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	success(c, http.StatusOK, "ok", nil)
}
