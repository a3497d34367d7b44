package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/studynotify/internal/cache"
	"github.com/charlesng35/studynotify/internal/database/testutil"
	"github.com/charlesng35/studynotify/internal/trigger"
)

type staticDirectory struct {
	users []string
	err   error
}

func (d staticDirectory) ActiveUserIDs(context.Context) ([]string, error) {
	return d.users, d.err
}

type recordingEvaluator struct {
	mu        sync.Mutex
	seen      []string
	failFor   map[string]bool
	queued    int
	delay     time.Duration
	active    atomic.Int32
	maxActive atomic.Int32
}

func (e *recordingEvaluator) EvaluateUser(ctx context.Context, userID string) (trigger.Report, error) {
	current := e.active.Add(1)
	defer e.active.Add(-1)
	for {
		peak := e.maxActive.Load()
		if current <= peak || e.maxActive.CompareAndSwap(peak, current) {
			break
		}
	}

	if e.delay > 0 {
		select {
		case <-time.After(e.delay):
		case <-ctx.Done():
			return trigger.Report{}, ctx.Err()
		}
	}

	e.mu.Lock()
	e.seen = append(e.seen, userID)
	e.mu.Unlock()

	if e.failFor[userID] {
		return trigger.Report{UserID: userID}, errors.New("context unavailable")
	}
	report := trigger.Report{UserID: userID}
	for i := 0; i < e.queued; i++ {
		report.Queued = append(report.Queued, trigger.QueuedNotification{UserID: userID})
	}
	return report, nil
}

func newLeaseStore(t *testing.T) *cache.DatabaseStore {
	t.Helper()
	return cache.NewDatabaseStore(testutil.MustOpenTestDB(t, testutil.WithAutoMigrate()))
}

func TestRunCycleEvaluatesEveryUser(t *testing.T) {
	engine := &recordingEvaluator{queued: 2}
	runner, err := NewRunner(engine, staticDirectory{users: []string{"u1", "u2", "u3"}}, newLeaseStore(t), Config{Concurrency: 2})
	require.NoError(t, err)

	result, err := runner.RunCycle(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, result.Users)
	require.Equal(t, 3, result.Evaluated)
	require.Equal(t, 6, result.Queued)
	require.Zero(t, result.Skipped)
	require.ElementsMatch(t, []string{"u1", "u2", "u3"}, engine.seen)
}

func TestRunCycleSkipsLeasedUsers(t *testing.T) {
	store := newLeaseStore(t)
	lease, err := cache.AcquireLease(context.Background(), store, LeaseKey("u2"), time.Minute)
	require.NoError(t, err)

	engine := &recordingEvaluator{}
	runner, err := NewRunner(engine, staticDirectory{users: []string{"u1", "u2"}}, store, Config{})
	require.NoError(t, err)

	result, err := runner.RunCycle(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, result.Evaluated)
	require.Equal(t, 1, result.Skipped)
	require.Equal(t, []string{"u1"}, engine.seen)

	require.NoError(t, lease.Release(context.Background()))
	result, err = runner.RunCycle(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, result.Evaluated)
}

func TestRunCycleCollectsFailures(t *testing.T) {
	engine := &recordingEvaluator{failFor: map[string]bool{"u2": true, "u3": true}}
	runner, err := NewRunner(engine, staticDirectory{users: []string{"u1", "u2", "u3"}}, nil, Config{})
	require.NoError(t, err)

	result, err := runner.RunCycle(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "user u2")
	require.Contains(t, err.Error(), "user u3")
	require.Equal(t, 1, result.Evaluated)
	require.Equal(t, 2, result.Failed)
}

func TestRunCycleBoundsConcurrency(t *testing.T) {
	users := make([]string, 12)
	for i := range users {
		users[i] = string(rune('a' + i))
	}
	engine := &recordingEvaluator{delay: 10 * time.Millisecond}
	runner, err := NewRunner(engine, staticDirectory{users: users}, nil, Config{Concurrency: 3})
	require.NoError(t, err)

	result, err := runner.RunCycle(context.Background())
	require.NoError(t, err)
	require.Equal(t, 12, result.Evaluated)
	require.LessOrEqual(t, engine.maxActive.Load(), int32(3))
}

func TestRunCycleStopsAtDeadline(t *testing.T) {
	engine := &recordingEvaluator{delay: 50 * time.Millisecond}
	runner, err := NewRunner(engine, staticDirectory{users: []string{"u1", "u2", "u3", "u4"}}, nil, Config{
		Concurrency:  1,
		CycleTimeout: 20 * time.Millisecond,
	})
	require.NoError(t, err)

	result, err := runner.RunCycle(context.Background())
	require.Error(t, err)
	require.Less(t, result.Evaluated, 4)
}

func TestRunCycleDeadlineWithWorkersInFlight(t *testing.T) {
	users := make([]string, 64)
	for i := range users {
		users[i] = fmt.Sprintf("user-%02d", i)
	}
	engine := &recordingEvaluator{delay: 50 * time.Millisecond}
	runner, err := NewRunner(engine, staticDirectory{users: users}, nil, Config{
		Concurrency:   4,
		RatePerSecond: 1000,
		CycleTimeout:  30 * time.Millisecond,
	})
	require.NoError(t, err)

	// Run with -race: the loop stops while workers are still recording failures.
	result, err := runner.RunCycle(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "batch: cycle stopped")
	require.Contains(t, err.Error(), "context deadline exceeded")
	require.Positive(t, result.Failed)
	require.Less(t, result.Evaluated+result.Failed, len(users))
}

func TestRunCycleDirectoryError(t *testing.T) {
	runner, err := NewRunner(&recordingEvaluator{}, staticDirectory{err: errors.New("db down")}, nil, Config{})
	require.NoError(t, err)

	_, err = runner.RunCycle(context.Background())
	require.ErrorContains(t, err, "db down")
}

func TestEvaluateUserReleasesLease(t *testing.T) {
	store := newLeaseStore(t)
	runner, err := NewRunner(&recordingEvaluator{queued: 1}, staticDirectory{}, store, Config{})
	require.NoError(t, err)

	report, err := runner.EvaluateUser(context.Background(), " u1 ")
	require.NoError(t, err)
	require.Len(t, report.Queued, 1)

	_, err = runner.EvaluateUser(context.Background(), "u1")
	require.NoError(t, err)

	lease, err := cache.AcquireLease(context.Background(), store, LeaseKey("u1"), time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { _ = lease.Release(context.Background()) })

	_, err = runner.EvaluateUser(context.Background(), "u1")
	require.ErrorIs(t, err, ErrEvaluationInProgress)
}

func TestNewRunnerValidatesDependencies(t *testing.T) {
	_, err := NewRunner(nil, staticDirectory{}, nil, Config{})
	require.Error(t, err)
	_, err = NewRunner(&recordingEvaluator{}, nil, nil, Config{})
	require.Error(t, err)
}

func TestStartSchedules(t *testing.T) {
	runner, err := NewRunner(&recordingEvaluator{}, staticDirectory{}, nil, Config{})
	require.NoError(t, err)
	require.NoError(t, runner.Start())
	<-runner.Stop().Done()

	runner, err = NewRunner(&recordingEvaluator{}, staticDirectory{}, nil, Config{Schedule: "every now and then"})
	require.NoError(t, err)
	require.Error(t, runner.Start())

	runner, err = NewRunner(&recordingEvaluator{}, staticDirectory{}, nil, Config{Schedule: "@every 1h"})
	require.NoError(t, err)
	require.NoError(t, runner.Start())
	<-runner.Stop().Done()
}
