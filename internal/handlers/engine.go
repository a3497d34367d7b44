package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/studynotify/internal/app/batch"
	"github.com/charlesng35/studynotify/internal/middleware"
	"github.com/charlesng35/studynotify/internal/trigger"
	appErrors "github.com/charlesng35/studynotify/pkg/errors"
	"github.com/charlesng35/studynotify/pkg/logger"
	"github.com/charlesng35/studynotify/pkg/response"
)

// UserEvaluator runs an on-demand evaluation for one user.
type UserEvaluator interface {
	EvaluateUser(ctx context.Context, userID string) (trigger.Report, error)
}

// AchievementRecorder pushes achievement events through admission.
type AchievementRecorder interface {
	RecordAchievement(ctx context.Context, userID string, event trigger.AchievementEvent) (trigger.Report, error)
}

// EngineHandler exposes on-demand evaluation and achievement endpoints.
type EngineHandler struct {
	evaluator    UserEvaluator
	achievements AchievementRecorder
}

// NewEngineHandler constructs an engine handler.
func NewEngineHandler(evaluator UserEvaluator, achievements AchievementRecorder) (*EngineHandler, error) {
	if evaluator == nil {
		return nil, errors.New("engine handler: evaluator is required")
	}
	if achievements == nil {
		return nil, errors.New("engine handler: achievement recorder is required")
	}
	return &EngineHandler{evaluator: evaluator, achievements: achievements}, nil
}

type achievementRequest struct {
	Kind       string     `json:"kind" validate:"required,oneof=streak perfect_week grade_improvement"`
	StreakDays int        `json:"streak_days" validate:"gte=0"`
	CourseID   string     `json:"course_id" validate:"omitempty,max=64"`
	CourseName string     `json:"course_name" validate:"omitempty,max=255"`
	GradeDelta float64    `json:"grade_delta"`
	OccurredAt *time.Time `json:"occurred_at"`
}

// Evaluate runs one evaluation cycle for the user.
//
// POST /api/users/:id/evaluate
func (h *EngineHandler) Evaluate(c *gin.Context) {
	userID, ok := userParam(c)
	if !ok {
		return
	}

	report, err := h.evaluator.EvaluateUser(requestContext(c), userID)
	if err != nil {
		if errors.Is(err, batch.ErrEvaluationInProgress) {
			response.Error(c, appErrors.ErrConflict)
			return
		}
		logger.WithUser("http", userID).Warn("evaluation failed",
			zap.String("subject", c.GetString(middleware.CtxSubjectKey)),
			zap.Error(err),
		)
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, report)
}

// RecordAchievement admits an event-driven achievement notification.
//
// POST /api/users/:id/achievements
func (h *EngineHandler) RecordAchievement(c *gin.Context) {
	userID, ok := userParam(c)
	if !ok {
		return
	}

	var req achievementRequest
	if !bindAndValidate(c, &req) {
		return
	}

	event := trigger.AchievementEvent{
		Kind:       trigger.AchievementKind(req.Kind),
		StreakDays: req.StreakDays,
		CourseID:   req.CourseID,
		CourseName: req.CourseName,
		GradeDelta: req.GradeDelta,
	}
	if req.OccurredAt != nil {
		event.OccurredAt = req.OccurredAt.UTC()
	}

	report, err := h.achievements.RecordAchievement(requestContext(c), userID, event)
	if err != nil {
		if errors.Is(err, trigger.ErrInvalidAchievement) {
			response.Error(c, appErrors.NewBadRequest(err.Error()))
			return
		}
		response.Error(c, err)
		return
	}

	status := http.StatusOK
	if len(report.Queued) > 0 {
		status = http.StatusCreated
	}
	response.Success(c, status, report)
}
