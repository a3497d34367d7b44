package trigger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/charlesng35/studynotify/internal/models"
	"github.com/charlesng35/studynotify/internal/monitoring"
	"github.com/charlesng35/studynotify/pkg/logger"
)

// ReasonExpired is recorded when a slot resolves after the candidate stopped being useful.
const ReasonExpired = "expired before send time"

// Config tunes the engine.
type Config struct {
	Slots           SlotHours
	Rules           RuleConfig
	CategoryTimeout time.Duration
	// UrgentBypassQuietHours lets urgent candidates skip the quiet-hour deferral.
	UrgentBypassQuietHours bool
	// Defaults apply to users without stored preferences.
	Defaults Preferences
}

// Dependencies are the collaborators the engine reads from and writes to.
type Dependencies struct {
	Contexts    ContextRepository
	Preferences PreferencesRepository
	Templates   TemplateRepository
	Queue       QueueRepository
	Audit       AuditRepository
	Publisher   Publisher
	Evaluators  []Evaluator
	Clock       func() time.Time
}

// Report summarises one evaluation for a user.
type Report struct {
	UserID      string               `json:"user_id"`
	EvaluatedAt time.Time            `json:"evaluated_at"`
	Candidates  int                  `json:"candidates"`
	Skipped     int                  `json:"skipped"`
	Queued      []QueuedNotification `json:"queued"`
	Rejected    map[string]int       `json:"rejected"`
	Failed      []Category           `json:"failed_categories,omitempty"`
}

func newReport(userID string, at time.Time) Report {
	return Report{
		UserID:      userID,
		EvaluatedAt: at,
		Queued:      []QueuedNotification{},
		Rejected:    map[string]int{},
	}
}

// Engine runs the evaluate, gate, schedule, render and queue pipeline for one user at a time.
type Engine struct {
	aggregator  *Aggregator
	preferences PreferencesRepository
	templates   TemplateRepository
	queue       QueueRepository
	audit       AuditRepository
	publisher   Publisher
	evaluators  []Evaluator
	achievement AchievementEvaluator
	scheduler   Scheduler
	gate        Gate
	locks       *userLocks
	clock       func() time.Time
	cfg         Config
	log         *zap.Logger
}

// NewEngine constructs an Engine.
func NewEngine(deps Dependencies, cfg Config) (*Engine, error) {
	switch {
	case deps.Contexts == nil:
		return nil, errors.New("trigger engine: context repository is required")
	case deps.Preferences == nil:
		return nil, errors.New("trigger engine: preferences repository is required")
	case deps.Templates == nil:
		return nil, errors.New("trigger engine: template repository is required")
	case deps.Queue == nil:
		return nil, errors.New("trigger engine: queue repository is required")
	case deps.Audit == nil:
		return nil, errors.New("trigger engine: audit repository is required")
	}

	if cfg.CategoryTimeout <= 0 {
		cfg.CategoryTimeout = 5 * time.Second
	}
	if cfg.Defaults.Toggles == nil {
		cfg.Defaults.Toggles = AllCategoriesEnabled()
	}

	evaluators := deps.Evaluators
	if len(evaluators) == 0 {
		evaluators = DefaultEvaluators(cfg.Rules)
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Engine{
		aggregator:  NewAggregator(deps.Contexts),
		preferences: deps.Preferences,
		templates:   deps.Templates,
		queue:       deps.Queue,
		audit:       deps.Audit,
		publisher:   deps.Publisher,
		evaluators:  evaluators,
		scheduler:   NewScheduler(cfg.Slots),
		locks:       newUserLocks(),
		clock:       clock,
		cfg:         cfg,
		log:         logger.WithModule("trigger.engine"),
	}, nil
}

// EvaluateUser runs one evaluation cycle for the user.
func (e *Engine) EvaluateUser(ctx context.Context, userID string) (Report, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Report{}, errors.New("trigger engine: user id is required")
	}

	started := time.Now()
	now := e.clock()
	report := newReport(userID, now)

	prefs, err := e.loadPreferences(ctx, userID)
	if err != nil {
		monitoring.RecordEvaluation("error", time.Since(started))
		return report, err
	}

	loc := prefs.Location()
	uc := e.aggregator.Build(ctx, userID, now, loc)

	candidates := e.collect(ctx, uc, prefs, &report)
	report.Candidates = len(candidates)

	release := e.locks.lock(userID)
	defer release()

	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			monitoring.RecordEvaluation("timeout", time.Since(started))
			return report, fmt.Errorf("trigger engine: evaluate user: %w", err)
		}
		e.admit(ctx, uc, prefs, candidate, &report)
	}

	monitoring.RecordEvaluation("ok", time.Since(started))
	return report, nil
}

// RecordAchievement pushes an event-driven achievement through the admission pipeline.
func (e *Engine) RecordAchievement(ctx context.Context, userID string, event AchievementEvent) (Report, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Report{}, errors.New("trigger engine: user id is required")
	}

	now := e.clock()
	if event.OccurredAt.IsZero() {
		event.OccurredAt = now
	}
	report := newReport(userID, now)

	candidate, err := e.achievement.Candidate(event)
	if err != nil {
		return report, err
	}

	prefs, err := e.loadPreferences(ctx, userID)
	if err != nil {
		return report, err
	}
	report.Candidates = 1
	if !prefs.Enabled(CategoryAchievement) {
		report.Skipped++
		monitoring.RecordCandidate(string(CategoryAchievement), "disabled")
		return report, nil
	}

	uc := UserContext{UserID: userID, Now: now, Location: prefs.Location()}

	release := e.locks.lock(userID)
	defer release()
	e.admit(ctx, uc, prefs, candidate, &report)
	return report, nil
}

func (e *Engine) loadPreferences(ctx context.Context, userID string) (Preferences, error) {
	prefs, err := e.preferences.Get(ctx, userID)
	if errors.Is(err, ErrPreferencesNotFound) {
		prefs = e.cfg.Defaults
		prefs.UserID = userID
		return prefs, nil
	}
	if err != nil {
		return Preferences{}, fmt.Errorf("trigger engine: load preferences: %w", err)
	}
	if prefs.MaxPerDay <= 0 {
		prefs.MaxPerDay = e.cfg.Defaults.MaxPerDay
	}
	return prefs, nil
}

type evaluation struct {
	category   Category
	candidates []Candidate
	err        error
	timedOut   bool
}

// collect runs the enabled evaluators concurrently and merges their candidates in
// descending priority order. Failures and timeouts contribute no candidates.
func (e *Engine) collect(ctx context.Context, uc UserContext, prefs Preferences, report *Report) []Candidate {
	results := make([]evaluation, len(e.evaluators))
	var wg sync.WaitGroup

	for i, evaluator := range e.evaluators {
		if !prefs.Enabled(evaluator.Category()) {
			results[i] = evaluation{category: evaluator.Category()}
			continue
		}
		wg.Add(1)
		go func(i int, evaluator Evaluator) {
			defer wg.Done()
			results[i] = e.runEvaluator(ctx, evaluator, uc, prefs)
		}(i, evaluator)
	}
	wg.Wait()

	var merged []Candidate
	for _, result := range results {
		if result.err == nil {
			merged = append(merged, result.candidates...)
			continue
		}

		kind, reason := "error", ReasonEvaluatorFailed
		if result.timedOut {
			kind, reason = "timeout", ReasonEvaluatorTimeout
		}
		monitoring.RecordEvaluatorFailure(string(result.category), kind)
		e.log.Warn("evaluator failed",
			zap.String("user_id", uc.UserID),
			zap.String("category", string(result.category)),
			zap.Error(result.err),
		)
		report.Failed = append(report.Failed, result.category)
		e.record(ctx, AuditEntry{
			UserID:      uc.UserID,
			TriggerType: "evaluator:" + string(result.category),
			TriggerData: map[string]any{"error": result.err.Error()},
			Reason:      reason,
		})
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Priority > merged[j].Priority
	})
	return merged
}

func (e *Engine) runEvaluator(ctx context.Context, evaluator Evaluator, uc UserContext, prefs Preferences) evaluation {
	category := evaluator.Category()
	ctx, cancel := context.WithTimeout(ctx, e.cfg.CategoryTimeout)
	defer cancel()

	done := make(chan evaluation, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- evaluation{category: category, err: fmt.Errorf("panic: %v", r)}
			}
		}()
		candidates, err := evaluator.Evaluate(ctx, uc, prefs)
		done <- evaluation{category: category, candidates: candidates, err: err}
	}()

	select {
	case result := <-done:
		if result.err != nil && errors.Is(result.err, context.DeadlineExceeded) {
			result.timedOut = true
		}
		for i := range result.candidates {
			result.candidates[i].Category = category
		}
		return result
	case <-ctx.Done():
		return evaluation{category: category, err: ctx.Err(), timedOut: errors.Is(ctx.Err(), context.DeadlineExceeded)}
	}
}

// admit schedules, renders and enqueues one candidate, auditing every rejection.
func (e *Engine) admit(ctx context.Context, uc UserContext, prefs Preferences, candidate Candidate, report *Report) {
	category := string(candidate.Category)
	if !prefs.Enabled(candidate.Category) {
		report.Skipped++
		monitoring.RecordCandidate(category, "disabled")
		return
	}

	loc := uc.Location
	if loc == nil {
		loc = time.UTC
	}
	sendAt := candidate.RequestedAt
	if sendAt.IsZero() {
		sendAt = e.scheduler.SlotTime(candidate.Slot, uc.Now, loc)
		// A slot after the expiry falls back to an immediate send, still subject to quiet hours.
		if !candidate.ExpiresAt.IsZero() && sendAt.After(candidate.ExpiresAt) {
			sendAt = uc.Now.In(loc)
		}
	}
	deferred := false
	if !(candidate.Urgent && e.cfg.UrgentBypassQuietHours) {
		sendAt, deferred = e.scheduler.Clamp(sendAt, loc, prefs.QuietWindow())
	}

	if !candidate.ExpiresAt.IsZero() && sendAt.After(candidate.ExpiresAt) {
		reason := ReasonExpired
		if deferred {
			reason = ReasonQuietPastExpiry
		}
		e.reject(ctx, uc.UserID, candidate, reason, report)
		return
	}

	tmpl, err := e.templates.Get(ctx, candidate.TemplateKey)
	if err != nil || !tmpl.Active {
		if err != nil && !errors.Is(err, ErrTemplateNotFound) {
			e.log.Error("template lookup failed",
				zap.String("template_key", candidate.TemplateKey),
				zap.Error(err),
			)
		}
		e.reject(ctx, uc.UserID, candidate, ReasonTemplateNotFound, report)
		return
	}

	rendered := Render(tmpl, candidate.Vars)
	priority := candidate.Priority
	if priority == 0 {
		priority = tmpl.Priority
	}
	notificationType := tmpl.Type
	if notificationType == "" {
		notificationType = category
	}

	metadata := make(map[string]any, len(candidate.Metadata)+5)
	for key, value := range candidate.Metadata {
		metadata[key] = value
	}
	metadata["trigger_type"] = candidate.TemplateKey
	metadata["dedup_key"] = candidate.DedupKey
	metadata["category"] = category
	metadata["slot"] = string(candidate.Slot)
	if deferred {
		metadata["deferred_for_quiet_hours"] = true
	}

	admission := Admission{
		Notification: QueuedNotification{
			UserID:       uc.UserID,
			TemplateKey:  candidate.TemplateKey,
			DedupKey:     candidate.DedupKey,
			Type:         notificationType,
			Title:        rendered.Title,
			Body:         rendered.Body,
			ActionURL:    rendered.ActionURL,
			ActionLabel:  rendered.ActionLabel,
			Priority:     clampPriority(priority),
			ScheduledFor: sendAt.UTC(),
			Channels:     prefs.Channels.Names(),
			Metadata:     metadata,
		},
		DedupWindow: candidate.DedupWindow,
		Now:         uc.Now,
		Location:    loc,
		MaxPerDay:   prefs.MaxPerDay,
		MinSpacing:  prefs.MinSpacing(),
		Audit: AuditEntry{
			UserID:      uc.UserID,
			TriggerType: candidate.TemplateKey,
			TriggerData: triggerData(candidate),
		},
		Gate: e.gate,
	}

	outcome, err := e.queue.Enqueue(ctx, admission)
	if err != nil {
		e.log.Error("queue write failed",
			zap.String("user_id", uc.UserID),
			zap.String("template_key", candidate.TemplateKey),
			zap.String("dedup_key", candidate.DedupKey),
			zap.Time("scheduled_for", admission.Notification.ScheduledFor),
			zap.Int("priority", admission.Notification.Priority),
			zap.String("title", admission.Notification.Title),
			zap.Any("metadata", metadata),
			zap.Error(err),
		)
		e.reject(ctx, uc.UserID, candidate, WriteFailedReason(err), report)
		return
	}
	if !outcome.Admitted {
		e.reject(ctx, uc.UserID, candidate, outcome.Reason, report)
		return
	}

	queued := admission.Notification
	queued.ID = outcome.NotificationID
	queued.Status = models.NotificationPending
	report.Queued = append(report.Queued, queued)
	monitoring.RecordCandidate(category, "queued")
	e.log.Debug("notification queued",
		zap.String("user_id", uc.UserID),
		zap.String("template_key", candidate.TemplateKey),
		zap.String("notification_id", outcome.NotificationID),
		zap.Time("scheduled_for", queued.ScheduledFor),
	)
	if e.publisher != nil {
		e.publisher.PublishQueued(queued)
	}
}

func (e *Engine) reject(ctx context.Context, userID string, candidate Candidate, reason string, report *Report) {
	report.Rejected[reason]++
	monitoring.RecordCandidate(string(candidate.Category), outcomeLabel(reason))
	e.record(ctx, AuditEntry{
		UserID:      userID,
		TriggerType: candidate.TemplateKey,
		TriggerData: triggerData(candidate),
		Reason:      reason,
	})
}

func (e *Engine) record(ctx context.Context, entry AuditEntry) {
	if err := e.audit.Record(ctx, entry); err != nil {
		e.log.Error("trigger log write failed",
			zap.String("user_id", entry.UserID),
			zap.String("trigger_type", entry.TriggerType),
			zap.String("reason", entry.Reason),
			zap.Error(err),
		)
	}
}

func triggerData(candidate Candidate) map[string]any {
	data := map[string]any{
		"category":     string(candidate.Category),
		"dedup_key":    candidate.DedupKey,
		"dedup_window": candidate.DedupWindow.String(),
		"priority":     candidate.Priority,
		"slot":         string(candidate.Slot),
	}
	if candidate.Urgent {
		data["urgent"] = true
	}
	if len(candidate.Vars) > 0 {
		data["vars"] = candidate.Vars
	}
	return data
}

func outcomeLabel(reason string) string {
	switch {
	case reason == ReasonDuplicate:
		return "duplicate"
	case reason == ReasonDailyCap:
		return "daily_cap"
	case reason == ReasonTooSoon:
		return "too_soon"
	case reason == ReasonQuietPastExpiry:
		return "quiet_expired"
	case reason == ReasonExpired:
		return "expired"
	case reason == ReasonTemplateNotFound:
		return "template_missing"
	case strings.HasPrefix(reason, reasonWriteFailedPrefix):
		return "write_error"
	default:
		return "rejected"
	}
}
