package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/studynotify/internal/services"
	appErrors "github.com/charlesng35/studynotify/pkg/errors"
	"github.com/charlesng35/studynotify/pkg/response"
)

// TriggerLogHandler serves the admission audit trail.
type TriggerLogHandler struct {
	service *services.TriggerLogService
}

// NewTriggerLogHandler constructs a trigger log handler.
func NewTriggerLogHandler(service *services.TriggerLogService) (*TriggerLogHandler, error) {
	if service == nil {
		return nil, errors.New("trigger log handler: service is required")
	}
	return &TriggerLogHandler{service: service}, nil
}

// List returns trigger logs for a user, newest first.
//
// GET /api/users/:id/trigger-logs?page=&per_page=&trigger_type=&created=&since=&until=
func (h *TriggerLogHandler) List(c *gin.Context) {
	userID, ok := userParam(c)
	if !ok {
		return
	}

	since, err := parseTimeQuery(c, "since")
	if err != nil {
		response.Error(c, appErrors.NewBadRequest("since must be an RFC3339 timestamp"))
		return
	}
	until, err := parseTimeQuery(c, "until")
	if err != nil {
		response.Error(c, appErrors.NewBadRequest("until must be an RFC3339 timestamp"))
		return
	}

	page := parseIntQuery(c, "page", 1)
	if page <= 0 {
		page = 1
	}
	perPage := parseIntQuery(c, "per_page", 50)
	if perPage <= 0 || perPage > 200 {
		perPage = 50
	}

	logs, total, err := h.service.List(requestContext(c), services.TriggerLogListOptions{
		Page:     page,
		PageSize: perPage,
		Filters: services.TriggerLogFilters{
			UserID:      userID,
			TriggerType: strings.TrimSpace(c.Query("trigger_type")),
			Created:     parseBoolQuery(c, "created"),
			Since:       since,
			Until:       until,
		},
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, logs, &response.Meta{
		Limit:  perPage,
		Offset: (page - 1) * perPage,
		Total:  int(total),
	})
}

func parseTimeQuery(c *gin.Context, key string) (*time.Time, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, err
	}
	parsed = parsed.UTC()
	return &parsed, nil
}
