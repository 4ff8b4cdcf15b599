package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/passvault/internal/common"
	"github.com/dmitrijs2005/passvault/internal/passgen"
	"github.com/dmitrijs2005/passvault/internal/server/images"
	"github.com/dmitrijs2005/passvault/internal/server/models"
	"github.com/gin-gonic/gin"
)

const exportFilename = "passwords-export.json"

type createCredentialRequest struct {
	Name              string                 `json:"name" binding:"required"`
	Password          string                 `json:"password" binding:"required"`
	SecurityQuestions []models.QuestionInput `json:"securityQuestions"`
}

type updateCredentialRequest struct {
	Name              *string                 `json:"name"`
	Password          *string                 `json:"password"`
	SecurityQuestions *[]models.QuestionInput `json:"securityQuestions"`
}

type bulkDeleteRequest struct {
	IDs []int64 `json:"ids" binding:"required,min=1"`
}

func isMultipart(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "multipart/form-data")
}

func idParam(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("%w: invalid id", common.ErrMalformedRequest)
	}
	return id, nil
}

// saveImage stores the optional "image" form file. It returns nil when the
// request has none.
func (h *Handler) saveImage(c *gin.Context) (*string, error) {
	fh, err := c.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: image", common.ErrMalformedRequest)
	}

	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	upload, err := images.NewUpload(fh.Filename, f, h.opts.MaxImageSize)
	if err != nil {
		return nil, err
	}

	path, err := h.images.Save(c.Request.Context(), upload)
	if err != nil {
		return nil, err
	}
	return &path, nil
}

// discardImage removes an image saved for a request the service rejected.
func (h *Handler) discardImage(c *gin.Context, path *string) {
	if path == nil {
		return
	}
	if err := h.images.Remove(c.Request.Context(), *path); err != nil {
		h.log.Warn(c.Request.Context(), "error removing orphaned image", "path", *path, "error", err)
	}
}

func parseQuestions(raw string) ([]models.QuestionInput, error) {
	var qs []models.QuestionInput
	if err := json.Unmarshal([]byte(raw), &qs); err != nil {
		return nil, fmt.Errorf("%w: securityQuestions", common.ErrMalformedRequest)
	}
	return qs, nil
}

func (h *Handler) bindCreate(c *gin.Context) (models.CreateCredential, error) {
	if !isMultipart(c) {
		var req createCredentialRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return models.CreateCredential{}, common.ErrMalformedRequest
		}
		return models.CreateCredential{Name: req.Name, Secret: req.Password, Questions: req.SecurityQuestions}, nil
	}

	in := models.CreateCredential{Name: c.PostForm("name"), Secret: c.PostForm("password")}
	if raw := c.PostForm("securityQuestions"); raw != "" {
		qs, err := parseQuestions(raw)
		if err != nil {
			return in, err
		}
		in.Questions = qs
	}
	return in, nil
}

func (h *Handler) bindUpdate(c *gin.Context) (models.UpdateCredential, error) {
	if !isMultipart(c) {
		var req updateCredentialRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return models.UpdateCredential{}, common.ErrMalformedRequest
		}
		return models.UpdateCredential{Name: req.Name, Secret: req.Password, Questions: req.SecurityQuestions}, nil
	}

	var in models.UpdateCredential
	if v, ok := c.GetPostForm("name"); ok {
		in.Name = &v
	}
	if v, ok := c.GetPostForm("password"); ok {
		in.Secret = &v
	}
	if raw, ok := c.GetPostForm("securityQuestions"); ok {
		qs, err := parseQuestions(raw)
		if err != nil {
			return in, err
		}
		if qs == nil {
			qs = []models.QuestionInput{}
		}
		in.Questions = &qs
	}
	return in, nil
}

func (h *Handler) listCredentials(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))
	pageSize, _ := strconv.Atoi(c.Query("pageSize"))

	res, err := h.creds.List(c.Request.Context(), currentUser(c).ID, models.ListFilter{
		Page:     page,
		PageSize: pageSize,
		Search:   c.Query("search"),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	success(c, http.StatusOK, "passwords", res)
}

func (h *Handler) getCredential(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		h.writeError(c, err)
		return
	}

	cred, err := h.creds.Get(c.Request.Context(), id, currentUser(c).ID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	success(c, http.StatusOK, "password", cred)
}

func (h *Handler) createCredential(c *gin.Context) {
	in, err := h.bindCreate(c)
	if err != nil {
		h.writeError(c, err)
		return
	}

	if isMultipart(c) {
		if in.Image, err = h.saveImage(c); err != nil {
			h.writeError(c, err)
			return
		}
	}

	cred, err := h.creds.Create(c.Request.Context(), currentUser(c).ID, in)
	h.metrics.ObserveCredentialOp("create", err)
	if err != nil {
		h.discardImage(c, in.Image)
		h.writeError(c, err)
		return
	}
	success(c, http.StatusCreated, "password created", cred)
}

func (h *Handler) updateCredential(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		h.writeError(c, err)
		return
	}

	in, err := h.bindUpdate(c)
	if err != nil {
		h.writeError(c, err)
		return
	}

	if isMultipart(c) {
		if in.Image, err = h.saveImage(c); err != nil {
			h.writeError(c, err)
			return
		}
	}

	cred, err := h.creds.Update(c.Request.Context(), id, currentUser(c).ID, in)
	h.metrics.ObserveCredentialOp("update", err)
	if err != nil {
		h.discardImage(c, in.Image)
		h.writeError(c, err)
		return
	}
	success(c, http.StatusOK, "password updated", cred)
}

func (h *Handler) deleteCredential(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		h.writeError(c, err)
		return
	}

	err = h.creds.Delete(c.Request.Context(), id, currentUser(c).ID)
	h.metrics.ObserveCredentialOp("delete", err)
	if err != nil {
		h.writeError(c, err)
		return
	}
	success(c, http.StatusOK, "password deleted", nil)
}

func (h *Handler) bulkDelete(c *gin.Context) {
	var req bulkDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, common.ErrMalformedRequest)
		return
	}

	n, err := h.creds.DeleteBulk(c.Request.Context(), req.IDs, currentUser(c).ID)
	h.metrics.ObserveCredentialOp("bulk_delete", err)
	if err != nil {
		h.writeError(c, err)
		return
	}
	success(c, http.StatusOK, "passwords deleted", gin.H{"deleted": n})
}

func (h *Handler) securityQuestions(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		h.writeError(c, err)
		return
	}

	qs, err := h.creds.GetSecurityQuestions(c.Request.Context(), id, currentUser(c).ID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	success(c, http.StatusOK, "security questions", qs)
}

func (h *Handler) revealSecret(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		h.writeError(c, err)
		return
	}

	secret, err := h.creds.RevealSecret(c.Request.Context(), id, currentUser(c).ID)
	h.metrics.ObserveCredentialOp("reveal", err)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	success(c, http.StatusOK, "password", gin.H{"password": secret})
}

func (h *Handler) image(c *gin.Context) {
	id, err := idParam(c)
	if err != nil {
		h.writeError(c, err)
		return
	}

	path, err := h.creds.ImagePath(c.Request.Context(), id, currentUser(c).ID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	if o, ok := h.images.(images.Opener); ok {
		h.streamImage(c, o, path)
		return
	}

	url, err := h.images.URL(c.Request.Context(), path)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Redirect(http.StatusFound, url)
}

func (h *Handler) streamImage(c *gin.Context, o images.Opener, path string) {
	f, err := o.Open(c.Request.Context(), path)
	if err != nil {
		h.writeError(c, err)
		return
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Header("Cache-Control", "private, no-cache")
	http.ServeContent(c.Writer, c.Request, fi.Name(), fi.ModTime(), f)
}

func (h *Handler) generatePassword(c *gin.Context) {
	var opts passgen.Options
	if err := c.ShouldBindJSON(&opts); err != nil {
		h.writeError(c, common.ErrMalformedRequest)
		return
	}

	pw, err := h.creds.GeneratePassword(opts)
	if err != nil {
		h.writeError(c, err)
		return
	}
	success(c, http.StatusOK, "password generated", gin.H{"password": pw})
}

// export sends every credential decrypted, as a file download rather than an
// enveloped response.
func (h *Handler) export(c *gin.Context) {
	out, err := h.creds.ExportAll(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.metrics.ObserveExport()

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exportFilename))
	c.Header("Cache-Control", "no-store")
	c.IndentedJSON(http.StatusOK, out)
}
