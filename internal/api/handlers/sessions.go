package handlers

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pawtrip/backend/internal/models"
	"github.com/pawtrip/backend/internal/services"
)

const defaultMaxUpload = 32 << 20

type SessionHandler struct {
	sessions      *services.SessionService
	maxImageBytes int
}

func NewSessionHandler(sessions *services.SessionService, maxImageBytes int) *SessionHandler {
	return &SessionHandler{sessions: sessions, maxImageBytes: maxImageBytes}
}

// readImage accepts a multipart "image" file or a JSON body {image, mimeType}
func (h *SessionHandler) readImage(c *gin.Context) (services.ImageInput, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("image")
		if err != nil {
			return services.ImageInput{}, &services.ValidationError{Field: "image", Reason: "image file is required"}
		}
		if h.maxImageBytes > 0 && fh.Size > int64(h.maxImageBytes) {
			return services.ImageInput{}, &services.ValidationError{Field: "image", Reason: "image is too large"}
		}
		f, err := fh.Open()
		if err != nil {
			return services.ImageInput{}, err
		}
		defer f.Close()
		limit := int64(h.maxImageBytes)
		if limit <= 0 {
			limit = defaultMaxUpload
		}
		data, err := io.ReadAll(io.LimitReader(f, limit+1))
		if err != nil {
			return services.ImageInput{}, err
		}
		return services.NewImageInput("image", data, fh.Header.Get("Content-Type"), h.maxImageBytes)
	}

	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return services.ImageInput{}, err
	}
	return services.DecodeImageInput("image", req.Image, req.MIMEType, h.maxImageBytes)
}

// respondSession writes the session view, or the error with the session attached
// when the action moved it to Failed
func respondSession(c *gin.Context, status int, sess *models.StyleSession, err error) {
	if err == nil {
		c.JSON(status, services.View(sess))
		return
	}
	if sess == nil {
		respondError(c, err)
		return
	}
	code := services.CodeOf(err)
	c.JSON(StatusFor(code), ErrorResponse{Error: err.Error(), Code: code, Details: services.View(sess)})
}

// Create starts a session from a dog photo
// POST /api/style/sessions
func (h *SessionHandler) Create(c *gin.Context) {
	img, err := h.readImage(c)
	if err != nil {
		respondError(c, err)
		return
	}
	sess, err := h.sessions.Create(c.Request.Context(), img)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, services.View(sess))
}

// Get returns a session
// GET /api/style/sessions/:id
func (h *SessionHandler) Get(c *gin.Context) {
	sess, err := h.sessions.Get(c.Request.Context(), c.Param("id"))
	respondSession(c, http.StatusOK, sess, err)
}

// Analyze runs the analysis step
// POST /api/style/sessions/:id/analyze
func (h *SessionHandler) Analyze(c *gin.Context) {
	sess, warnings, err := h.sessions.Analyze(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondSession(c, 0, sess, err)
		return
	}
	view := services.View(sess)
	view.Warnings = warnings
	c.JSON(http.StatusOK, view)
}

// Select records the chosen concept and items
// POST /api/style/sessions/:id/select
func (h *SessionHandler) Select(c *gin.Context) {
	var sel models.StyleSelection
	if err := c.ShouldBindJSON(&sel); err != nil {
		respondError(c, err)
		return
	}
	sess, err := h.sessions.Select(c.Request.Context(), c.Param("id"), sel)
	respondSession(c, http.StatusOK, sess, err)
}

// Generate synthesizes the selected look
// POST /api/style/sessions/:id/generate
func (h *SessionHandler) Generate(c *gin.Context) {
	sess, _, err := h.sessions.Generate(c.Request.Context(), c.Param("id"))
	respondSession(c, http.StatusOK, sess, err)
}

// Retry uses the one manual retry of a failed session
// POST /api/style/sessions/:id/retry
func (h *SessionHandler) Retry(c *gin.Context) {
	sess, err := h.sessions.Retry(c.Request.Context(), c.Param("id"))
	respondSession(c, http.StatusOK, sess, err)
}

// Reset replaces the photo of a failed or finished session
// POST /api/style/sessions/:id/reset
func (h *SessionHandler) Reset(c *gin.Context) {
	img, err := h.readImage(c)
	if err != nil {
		respondError(c, err)
		return
	}
	sess, err := h.sessions.Reset(c.Request.Context(), c.Param("id"), img)
	respondSession(c, http.StatusOK, sess, err)
}
