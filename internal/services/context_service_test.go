package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/studynotify/internal/database/testutil"
	"github.com/charlesng35/studynotify/internal/models"
)

func seedAcademicRecords(t *testing.T, db *gorm.DB) {
	t.Helper()

	records := []interface{}{
		&models.Assignment{UserID: "user-1", Title: "Essay", DueAt: queueNow.Add(24 * time.Hour)},
		&models.Assignment{UserID: "user-1", Title: "Lab report", DueAt: queueNow.Add(20 * 24 * time.Hour)},
		&models.Assignment{UserID: "user-1", Title: "Past", DueAt: queueNow.Add(-time.Hour)},
		&models.Assignment{UserID: "user-2", Title: "Other user", DueAt: queueNow.Add(time.Hour)},
		&models.Course{UserID: "user-1", Name: "Biology", CurrentGrade: ptr(72.0), PreviousGrade: ptr(85.0)},
		&models.Submission{UserID: "user-1", AssignmentTitle: "Quiz 1", AssignmentType: "quiz", Score: ptr(5.0), PointsPossible: 10, SubmittedAt: ptr(queueNow.Add(-48 * time.Hour))},
		&models.Submission{UserID: "user-1", AssignmentTitle: "Worksheet", IsLate: true, SubmittedAt: ptr(queueNow.Add(-72 * time.Hour))},
		&models.Submission{UserID: "user-1", AssignmentTitle: "Old late", IsLate: true, SubmittedAt: ptr(queueNow.Add(-40 * 24 * time.Hour))},
		&models.Submission{UserID: "user-1", AssignmentTitle: "Missing", IsMissing: true},
		&models.StudySession{UserID: "user-1", Title: "Chemistry", StartsAt: queueNow.Add(10 * time.Minute)},
		&models.StudySession{UserID: "user-1", Title: "Yesterday", StartsAt: queueNow.Add(-24 * time.Hour)},
		&models.CalendarEvent{UserID: "user-1", Title: "Midterm", EventType: "exam", StartsAt: queueNow.Add(3 * 24 * time.Hour)},
		&models.MoodEntry{UserID: "user-1", Emotion: "stressed", Intensity: 4, RecordedAt: queueNow.Add(-time.Hour)},
		&models.MoodEntry{UserID: "user-1", Emotion: "happy", Intensity: 3, RecordedAt: queueNow.Add(-25 * time.Hour)},
		&models.MoodEntry{UserID: "user-1", Emotion: "mystery", Intensity: 1, RecordedAt: queueNow.Add(-49 * time.Hour)},
	}
	for _, record := range records {
		require.NoError(t, db.Create(record).Error)
	}
}

func TestContextServiceReadsScopedRecords(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	seedAcademicRecords(t, db)
	svc, err := NewContextService(db)
	require.NoError(t, err)
	ctx := context.Background()

	assignments, err := svc.UpcomingAssignments(ctx, "user-1", queueNow, queueNow.Add(14*24*time.Hour))
	require.NoError(t, err)
	require.Len(t, assignments, 1)
	require.Equal(t, "Essay", assignments[0].Title)

	courses, err := svc.Courses(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, courses, 1)
	require.Equal(t, 85.0, *courses[0].PreviousGrade)

	recent, err := svc.RecentSubmissions(ctx, "user-1", queueNow.Add(-30*24*time.Hour))
	require.NoError(t, err)
	require.Len(t, recent, 2)

	late, err := svc.LateSubmissions(ctx, "user-1", queueNow.Add(-14*24*time.Hour))
	require.NoError(t, err)
	require.Len(t, late, 1)
	require.Equal(t, "Worksheet", late[0].AssignmentTitle)

	missing, err := svc.MissingSubmissions(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, missing, 1)
	require.True(t, missing[0].IsMissing)

	sessions, err := svc.UpcomingSessions(ctx, "user-1", queueNow)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.Equal(t, "Chemistry", sessions[0].Title)

	events, err := svc.UpcomingEvents(ctx, "user-1", queueNow, queueNow.Add(14*24*time.Hour))
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.True(t, events[0].IsExam())
}

func TestContextServiceMoodSamplesNewestFirst(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	seedAcademicRecords(t, db)
	svc, err := NewContextService(db)
	require.NoError(t, err)

	samples, err := svc.MoodSamples(context.Background(), "user-1", 2)
	require.NoError(t, err)
	require.Len(t, samples, 2)
	require.Equal(t, "stressed", samples[0].Emotion)
	require.Equal(t, 2, samples[0].Sentiment)
	require.Equal(t, 5, samples[1].Sentiment)

	samples, err = svc.MoodSamples(context.Background(), "user-1", 0)
	require.NoError(t, err)
	require.Len(t, samples, 3)
	require.Equal(t, 3, samples[2].Sentiment, "unknown emotions are neutral")
}
