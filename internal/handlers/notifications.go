package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/studynotify/internal/models"
	"github.com/charlesng35/studynotify/internal/services"
	appErrors "github.com/charlesng35/studynotify/pkg/errors"
	"github.com/charlesng35/studynotify/pkg/response"
)

// NotificationHandler exposes the notification queue to delivery workers and clients.
type NotificationHandler struct {
	service *services.NotificationService
	clock   func() time.Time
}

// NewNotificationHandler constructs a notification handler.
func NewNotificationHandler(service *services.NotificationService) (*NotificationHandler, error) {
	if service == nil {
		return nil, errors.New("notification handler: service is required")
	}
	return &NotificationHandler{
		service: service,
		clock:   func() time.Time { return time.Now().UTC() },
	}, nil
}

type markSentRequest struct {
	SentAt *time.Time `json:"sent_at"`
}

// List returns queued notifications for a user.
//
// GET /api/users/:id/notifications?status=&limit=&offset=
func (h *NotificationHandler) List(c *gin.Context) {
	userID, ok := userParam(c)
	if !ok {
		return
	}

	status := strings.TrimSpace(c.Query("status"))
	switch models.NotificationStatus(status) {
	case "", models.NotificationPending, models.NotificationSent, models.NotificationFailed:
	default:
		response.Error(c, appErrors.NewBadRequest("status must be one of: pending sent failed"))
		return
	}

	limit := parseIntQuery(c, "limit", 25)
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	offset := max(0, parseIntQuery(c, "offset", 0))

	items, total, err := h.service.ListForUser(requestContext(c), services.ListNotificationsInput{
		UserID: userID,
		Status: status,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, items, &response.Meta{
		Limit:  limit,
		Offset: offset,
		Total:  int(total),
	})
}

// MarkSent records that a delivery worker sent the notification.
//
// POST /api/notifications/:id/sent
func (h *NotificationHandler) MarkSent(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		response.Error(c, appErrors.NewBadRequest("notification id is required"))
		return
	}

	var req markSentRequest
	if c.Request.ContentLength > 0 {
		if !bindAndValidate(c, &req) {
			return
		}
	}

	sentAt := h.clock()
	if req.SentAt != nil {
		sentAt = req.SentAt.UTC()
	}

	if err := h.service.MarkSent(requestContext(c), id, sentAt); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"id": id, "status": models.NotificationSent, "sent_at": sentAt})
}

// MarkFailed records a terminal delivery failure.
//
// POST /api/notifications/:id/failed
func (h *NotificationHandler) MarkFailed(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		response.Error(c, appErrors.NewBadRequest("notification id is required"))
		return
	}

	if err := h.service.MarkFailed(requestContext(c), id); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"id": id, "status": models.NotificationFailed})
}
