package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/studynotify/internal/services"
	"github.com/charlesng35/studynotify/internal/trigger"
	appErrors "github.com/charlesng35/studynotify/pkg/errors"
	"github.com/charlesng35/studynotify/pkg/response"
)

// TemplateHandler lists notification templates and toggles their availability.
type TemplateHandler struct {
	service *services.TemplateService
}

// NewTemplateHandler constructs a template handler.
func NewTemplateHandler(service *services.TemplateService) (*TemplateHandler, error) {
	if service == nil {
		return nil, errors.New("template handler: service is required")
	}
	return &TemplateHandler{service: service}, nil
}

type templateResponse struct {
	Key         string `json:"key"`
	Type        string `json:"type"`
	Title       string `json:"title_template"`
	Body        string `json:"body_template"`
	ActionURL   string `json:"action_url_template,omitempty"`
	ActionLabel string `json:"action_label,omitempty"`
	Priority    int    `json:"priority"`
	Active      bool   `json:"is_active"`
}

type setTemplateActiveRequest struct {
	Active *bool `json:"is_active" validate:"required"`
}

func newTemplateResponse(tmpl trigger.Template) templateResponse {
	return templateResponse{
		Key:         tmpl.Key,
		Type:        tmpl.Type,
		Title:       tmpl.Title,
		Body:        tmpl.Body,
		ActionURL:   tmpl.ActionURL,
		ActionLabel: tmpl.ActionLabel,
		Priority:    tmpl.Priority,
		Active:      tmpl.Active,
	}
}

// List returns every template.
//
// GET /api/templates
func (h *TemplateHandler) List(c *gin.Context) {
	templates, err := h.service.List(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	out := make([]templateResponse, 0, len(templates))
	for _, tmpl := range templates {
		out = append(out, newTemplateResponse(tmpl))
	}
	response.Success(c, http.StatusOK, out)
}

// SetActive enables or disables a template by key.
//
// PATCH /api/templates/:key
func (h *TemplateHandler) SetActive(c *gin.Context) {
	key := strings.TrimSpace(c.Param("key"))
	if key == "" {
		response.Error(c, appErrors.NewBadRequest("template key is required"))
		return
	}

	var req setTemplateActiveRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.service.SetActive(requestContext(c), key, *req.Active); err != nil {
		if errors.Is(err, trigger.ErrTemplateNotFound) {
			response.Error(c, appErrors.NotFound("Template"))
			return
		}
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"key": key, "is_active": *req.Active})
}
