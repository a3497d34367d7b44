package database

import "github.com/charlesng35/studynotify/internal/models"

// DefaultTemplates returns the built-in copy for every trigger key.
func DefaultTemplates() []models.NotificationTemplate {
	return []models.NotificationTemplate{
		{
			Key:               "deadline_due_tomorrow",
			Type:              "deadline",
			TitleTemplate:     "{{ assignment_title }} is due tomorrow",
			BodyTemplate:      "Your assignment is due tomorrow at {{ due_time }}. A little progress today goes a long way.",
			ActionURLTemplate: "/assignments/{{ assignment_id }}",
			ActionLabel:       "View assignment",
			Priority:          80,
		},
		{
			Key:               "deadline_due_today",
			Type:              "deadline",
			TitleTemplate:     "{{ assignment_title }} is due today",
			BodyTemplate:      "About {{ hours_left }} hours left before the {{ due_time }} deadline.",
			ActionURLTemplate: "/assignments/{{ assignment_id }}",
			ActionLabel:       "Finish now",
			Priority:          90,
		},
		{
			Key:               "deadline_exam_tomorrow",
			Type:              "deadline",
			TitleTemplate:     "{{ event_title }} is tomorrow",
			BodyTemplate:      "Starts at {{ start_time }}. Review your notes tonight and get some rest.",
			ActionURLTemplate: "/calendar/{{ event_id }}",
			ActionLabel:       "Open calendar",
			Priority:          85,
		},
		{
			Key:               "deadline_session_starting",
			Type:              "deadline",
			TitleTemplate:     "{{ session_title }} starts in {{ minutes_until }} minutes",
			BodyTemplate:      "Your planned study session is about to begin.",
			ActionURLTemplate: "/study-sessions/{{ session_id }}",
			ActionLabel:       "Start session",
			Priority:          70,
		},
		{
			Key:           "mood_heavy_load",
			Type:          "mood",
			TitleTemplate: "A lot on your plate",
			BodyTemplate:  "You have {{ assignment_count }} assignments coming up and your mood has been low. Let's break things into smaller steps.",
			ActionLabel:   "Plan my week",
			Priority:      95,
		},
		{
			Key:           "mood_stressed_deadlines",
			Type:          "mood",
			TitleTemplate: "Feeling the pressure?",
			BodyTemplate:  "{{ due_soon_count }} deadlines are close. Try one focused block and a short break.",
			ActionLabel:   "Start a focus block",
			Priority:      90,
		},
		{
			Key:           "mood_consistently_low",
			Type:          "mood",
			TitleTemplate: "Checking in on you",
			BodyTemplate:  "You've felt low for {{ low_days }} days in a row. Support is available whenever you need it.",
			ActionLabel:   "Find support",
			Priority:      95,
		},
		{
			Key:           "mood_improvement",
			Type:          "mood",
			TitleTemplate: "Your mood is trending up",
			BodyTemplate:  "Whatever you've been doing lately is working. Keep it up!",
			Priority:      50,
		},
		{
			Key:               "performance_grade_dropped",
			Type:              "performance",
			TitleTemplate:     "Your {{ course_name }} grade dropped",
			BodyTemplate:      "It fell by {{ grade_drop }} points to {{ current_grade }}. Reviewing recent feedback can help.",
			ActionURLTemplate: "/courses/{{ course_id }}",
			ActionLabel:       "See grades",
			Priority:          85,
		},
		{
			Key:               "performance_missing_assignments",
			Type:              "performance",
			TitleTemplate:     "{{ missing_count }} missing assignments",
			BodyTemplate:      "Catching up on missing work protects your grade.",
			ActionURLTemplate: "/assignments?filter=missing",
			ActionLabel:       "Review missing work",
			Priority:          80,
		},
		{
			Key:               "performance_low_quiz_score",
			Type:              "performance",
			TitleTemplate:     "Quiz result: {{ percentage }}%",
			BodyTemplate:      "{{ assignment_title }} was tougher than usual. A quick review will help for next time.",
			ActionURLTemplate: "/assignments/{{ assignment_id }}",
			ActionLabel:       "Review quiz",
			Priority:          75,
		},
		{
			Key:           "performance_late_submissions",
			Type:          "performance",
			TitleTemplate: "{{ late_count }} late submissions recently",
			BodyTemplate:  "Starting assignments a day earlier can keep you ahead.",
			ActionLabel:   "Plan ahead",
			Priority:      80,
		},
		{
			Key:               "ai_study_block",
			Type:              "ai_suggestion",
			TitleTemplate:     "Schedule a study block",
			BodyTemplate:      "{{ assignment_title }} is due {{ relative_due }}. Blocking out time this afternoon keeps it manageable.",
			ActionURLTemplate: "/study-sessions/new?assignment={{ assignment_id }}",
			ActionLabel:       "Add study block",
			Priority:          60,
		},
		{
			Key:           "ai_workload_warning",
			Type:          "ai_suggestion",
			TitleTemplate: "Busy week ahead",
			BodyTemplate:  "Next week looks {{ workload_percent }}% full. Getting a head start this weekend will help.",
			ActionLabel:   "View next week",
			Priority:      65,
		},
		{
			Key:               "ai_review_recommendation",
			Type:              "ai_suggestion",
			TitleTemplate:     "Start reviewing for {{ event_title }}",
			BodyTemplate:      "It's {{ days_until }} days away. Short daily reviews beat one long cram.",
			ActionURLTemplate: "/calendar/{{ event_id }}",
			ActionLabel:       "Plan reviews",
			Priority:          70,
		},
		{
			Key:           "achievement_streak",
			Type:          "achievement",
			TitleTemplate: "{{ streak_days }}-day streak!",
			BodyTemplate:  "You've studied {{ streak_days }} days in a row.",
			Priority:      50,
		},
		{
			Key:           "achievement_perfect_week",
			Type:          "achievement",
			TitleTemplate: "Perfect week",
			BodyTemplate:  "Every assignment this week was submitted on time.",
			Priority:      55,
		},
		{
			Key:               "achievement_grade_improvement",
			Type:              "achievement",
			TitleTemplate:     "{{ course_name }} is looking up",
			BodyTemplate:      "Your grade improved by {{ grade_delta }} points.",
			ActionURLTemplate: "/courses/{{ course_id }}",
			ActionLabel:       "See grades",
			Priority:          45,
		},
	}
}
