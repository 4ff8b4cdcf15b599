package httpapi

import (
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/passvault/internal/common"
	"github.com/dmitrijs2005/passvault/internal/server/services"
	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type createUserRequest struct {
	Username        string `json:"username" binding:"required"`
	Password        string `json:"password" binding:"required"`
	ConfirmPassword string `json:"confirmPassword" binding:"required"`
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
}

type updateProfileRequest struct {
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required"`
	ConfirmPassword string `json:"confirmPassword" binding:"required"`
}

func (h *Handler) setSessionCookie(c *gin.Context, token string, maxAge int) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(cookieName, token, maxAge, "/", "", h.opts.SecureCookie, true)
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, common.ErrMalformedRequest)
		return
	}

	res, err := h.users.Login(c.Request.Context(), req.Username, req.Password, c.ClientIP())
	h.metrics.ObserveLogin(err)
	if err != nil {
		h.writeError(c, err)
		return
	}

	h.setSessionCookie(c, res.Token, int(h.opts.TokenValidity.Seconds()))
	success(c, http.StatusOK, "logged in", res.Profile)
}

func (h *Handler) logout(c *gin.Context) {
	h.setSessionCookie(c, "", -1)
	success(c, http.StatusOK, "logged out", nil)
}

func (h *Handler) authCheck(c *gin.Context) {
	success(c, http.StatusOK, "authenticated", gin.H{
		"isAuthenticated": true,
		"user":            currentUser(c),
	})
}

func (h *Handler) createUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, common.ErrMalformedRequest)
		return
	}
	if req.Password != req.ConfirmPassword {
		h.writeError(c, common.ErrPasswordMismatch)
		return
	}

	username, err := h.users.CreateUser(c.Request.Context(), services.NewUser{
		Username:  req.Username,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	success(c, http.StatusCreated, "user created", gin.H{"username": username})
}

func (h *Handler) profile(c *gin.Context) {
	p, err := h.users.GetProfile(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	success(c, http.StatusOK, "profile", p)
}

func (h *Handler) updateProfile(c *gin.Context) {
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, common.ErrMalformedRequest)
		return
	}

	p, err := h.users.UpdateProfile(c.Request.Context(), currentUser(c).ID, services.ProfileUpdate{
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	success(c, http.StatusOK, "profile updated", p)
}

func (h *Handler) changePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, common.ErrMalformedRequest)
		return
	}
	if req.NewPassword != req.ConfirmPassword {
		h.writeError(c, common.ErrPasswordMismatch)
		return
	}

	if err := h.users.ChangePassword(c.Request.Context(), currentUser(c).ID, req.CurrentPassword, req.NewPassword); err != nil {
		h.writeError(c, err)
		return
	}
	success(c, http.StatusOK, "password changed", nil)
}

func (h *Handler) loginHistory(c *gin.Context) {
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			h.writeError(c, common.ErrMalformedRequest)
			return
		}
		limit = n
	}

	records, err := h.users.FetchLoginHistory(c.Request.Context(), currentUser(c).ID, limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	success(c, http.StatusOK, "login history", records)
}
