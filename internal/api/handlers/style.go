package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pawtrip/backend/internal/models"
	"github.com/pawtrip/backend/internal/services"
)

type StyleHandler struct {
	style         *services.StyleService
	maxImageBytes int
}

func NewStyleHandler(style *services.StyleService, maxImageBytes int) *StyleHandler {
	return &StyleHandler{style: style, maxImageBytes: maxImageBytes}
}

type analyzeRequest struct {
	Image    string `json:"image" binding:"required"`
	MIMEType string `json:"mimeType"`
}

type analyzeResponse struct {
	Analysis *models.StyleAnalysis `json:"analysis"`
	Warnings []string              `json:"warnings"`
}

// Analyze returns breed, concepts and suggested items for a dog photo
// POST /api/style/analyze
func (h *StyleHandler) Analyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, err)
		return
	}
	img, err := services.DecodeImageInput("image", req.Image, req.MIMEType, h.maxImageBytes)
	if err != nil {
		respondError(c, err)
		return
	}

	analysis, warnings, err := h.style.Gemini().AnalyzeDog(c.Request.Context(), img)
	if err != nil {
		respondError(c, err)
		return
	}
	if warnings == nil {
		warnings = []string{}
	}
	c.JSON(http.StatusOK, analyzeResponse{Analysis: analysis, Warnings: warnings})
}

type itemRequest struct {
	Name     string `json:"name" binding:"required,max=200"`
	Image    string `json:"image"`
	ImageURL string `json:"imageUrl" binding:"omitempty,url"`
}

type generateRequest struct {
	Image          string                `json:"image" binding:"required"`
	MIMEType       string                `json:"mimeType"`
	Concept        string                `json:"concept" binding:"required,max=2000"`
	Instruction    string                `json:"instruction" binding:"max=2000"`
	Items          []itemRequest         `json:"items" binding:"max=10,dive"`
	Mode           models.SynthesisMode  `json:"mode" binding:"omitempty,oneof=fitting pictorial"`
	KeepBackground bool                  `json:"keepBackground"`
	Analysis       *models.StyleAnalysis `json:"analysis"`
}

func (h *StyleHandler) toStyleRequest(req generateRequest) (services.StyleRequest, error) {
	img, err := services.DecodeImageInput("image", req.Image, req.MIMEType, h.maxImageBytes)
	if err != nil {
		return services.StyleRequest{}, err
	}

	items := make([]services.ItemReference, 0, len(req.Items))
	for i, it := range req.Items {
		ref := services.ItemReference{Name: it.Name, ImageURL: it.ImageURL}
		if it.Image != "" {
			itemImg, err := services.DecodeImageInput(fmt.Sprintf("items[%d].image", i), it.Image, "", h.maxImageBytes)
			if err != nil {
				return services.StyleRequest{}, err
			}
			ref.Image = &itemImg
		}
		items = append(items, ref)
	}

	return services.StyleRequest{
		Image:          img,
		Concept:        req.Concept,
		Instruction:    req.Instruction,
		Items:          items,
		Mode:           req.Mode,
		KeepBackground: req.KeepBackground,
		Analysis:       req.Analysis,
	}, nil
}

// Generate produces the styled variants of a dog photo
// POST /api/style/generate
func (h *StyleHandler) Generate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, err)
		return
	}
	styleReq, err := h.toStyleRequest(req)
	if err != nil {
		respondError(c, err)
		return
	}

	result, err := h.style.GenerateStyles(c.Request.Context(), styleReq)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type itemImageRequest struct {
	ItemName string `json:"itemName" binding:"max=200"`
	Prompt   string `json:"prompt" binding:"required,max=4000"`
}

// ItemImage returns a product image for a suggested item, cached by prompt
// POST /api/style/item-image
func (h *StyleHandler) ItemImage(c *gin.Context) {
	var req itemImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, err)
		return
	}

	result, err := h.style.GenerateItemImage(c.Request.Context(), req.ItemName, req.Prompt)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
