package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/studynotify/internal/services"
	"github.com/charlesng35/studynotify/internal/trigger"
	appErrors "github.com/charlesng35/studynotify/pkg/errors"
	"github.com/charlesng35/studynotify/pkg/response"
)

// PreferencesHandler reads and updates per-user notification preferences.
type PreferencesHandler struct {
	service *services.PreferencesService
}

// NewPreferencesHandler constructs a preferences handler.
func NewPreferencesHandler(service *services.PreferencesService) (*PreferencesHandler, error) {
	if service == nil {
		return nil, errors.New("preferences handler: service is required")
	}
	return &PreferencesHandler{service: service}, nil
}

type updatePreferencesRequest struct {
	InAppEnabled *bool `json:"in_app_enabled"`
	EmailEnabled *bool `json:"email_enabled"`
	PushEnabled  *bool `json:"push_enabled"`
	SMSEnabled   *bool `json:"sms_enabled"`

	DeadlineEnabled     *bool `json:"deadline_enabled"`
	MoodEnabled         *bool `json:"mood_enabled"`
	PerformanceEnabled  *bool `json:"performance_enabled"`
	AISuggestionEnabled *bool `json:"ai_suggestion_enabled"`
	AchievementEnabled  *bool `json:"achievement_enabled"`

	QuietHoursStart *string `json:"quiet_hours_start" validate:"omitempty,clock"`
	QuietHoursEnd   *string `json:"quiet_hours_end" validate:"omitempty,clock"`
	Timezone        *string `json:"timezone" validate:"omitempty,tz"`

	MaxNotificationsPerDay       *int     `json:"max_notifications_per_day" validate:"omitempty,gte=0,lte=50"`
	MinHoursBetweenNotifications *float64 `json:"min_hours_between_notifications" validate:"omitempty,gte=0,lte=24"`
}

// Get returns the stored preferences of a user.
//
// GET /api/users/:id/preferences
func (h *PreferencesHandler) Get(c *gin.Context) {
	userID, ok := userParam(c)
	if !ok {
		return
	}

	prefs, err := h.service.Load(requestContext(c), userID)
	if err != nil {
		if errors.Is(err, trigger.ErrPreferencesNotFound) {
			response.Error(c, appErrors.NotFound("Preferences"))
			return
		}
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, prefs)
}

// Update applies a partial preference update, creating the record when absent.
//
// PUT /api/users/:id/preferences
func (h *PreferencesHandler) Update(c *gin.Context) {
	userID, ok := userParam(c)
	if !ok {
		return
	}

	var req updatePreferencesRequest
	if !bindAndValidate(c, &req) {
		return
	}

	prefs, err := h.service.Upsert(requestContext(c), userID, services.UpdatePreferencesInput{
		InAppEnabled:                 req.InAppEnabled,
		EmailEnabled:                 req.EmailEnabled,
		PushEnabled:                  req.PushEnabled,
		SMSEnabled:                   req.SMSEnabled,
		DeadlineEnabled:              req.DeadlineEnabled,
		MoodEnabled:                  req.MoodEnabled,
		PerformanceEnabled:           req.PerformanceEnabled,
		AISuggestionEnabled:          req.AISuggestionEnabled,
		AchievementEnabled:           req.AchievementEnabled,
		QuietHoursStart:              req.QuietHoursStart,
		QuietHoursEnd:                req.QuietHoursEnd,
		Timezone:                     req.Timezone,
		MaxNotificationsPerDay:       req.MaxNotificationsPerDay,
		MinHoursBetweenNotifications: req.MinHoursBetweenNotifications,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, prefs)
}
