package queuetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/queuekit/pkg/queue"
)

// Epoch is the starting instant of the clock handed to store factories
var Epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// StoreFactory returns an empty store whose timestamps come from clock
type StoreFactory func(t *testing.T, clock *Clock) queue.Store

// RunStoreSuite checks the behaviour every queue.Store driver must share.
// Subtests run sequentially so factories may reuse one database.
func RunStoreSuite(t *testing.T, factory StoreFactory) {
	t.Helper()

	cases := []struct {
		name string
		fn   func(t *testing.T, s queue.Store, clock *Clock)
	}{
		{"AddNormalizes", testAddNormalizes},
		{"IDsIncrease", testIDsIncrease},
		{"DelayedEligibility", testDelayedEligibility},
		{"EligibleOrdering", testEligibleOrdering},
		{"EligibleQueueFilterAndLimit", testEligibleQueueFilterAndLimit},
		{"ReserveOnce", testReserveOnce},
		{"ConcurrentReserve", testConcurrentReserve},
		{"TransitionsRequireProcessing", testTransitionsRequireProcessing},
		{"ReleaseReschedules", testReleaseReschedules},
		{"Stuck", testStuck},
		{"Stats", testStats},
		{"FailedJobs", testFailedJobs},
		{"RetryFailedJob", testRetryFailedJob},
		{"RetryAllFailedJobs", testRetryAllFailedJobs},
		{"Cleanup", testCleanup},
		{"PurgeFailedJobs", testPurgeFailedJobs},
		{"PurgeOldJobs", testPurgeOldJobs},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clock := NewClock(Epoch)
			s := factory(t, clock)
			tc.fn(t, s, clock)
		})
	}
}

func add(t *testing.T, s queue.Store, task string, opts ...queue.EnqueueOption) int64 {
	t.Helper()
	id, err := s.Add(context.Background(), task, queue.Payload{"task": task}, opts...)
	require.NoError(t, err)
	require.NotZero(t, id)
	return id
}

func reserve(t *testing.T, s queue.Store, id int64, now time.Time) *queue.Record {
	t.Helper()
	rec, err := s.Reserve(context.Background(), id, now, "suite")
	require.NoError(t, err)
	require.NotNil(t, rec, "record %d should be reservable", id)
	return rec
}

func complete(t *testing.T, s queue.Store, id int64, now time.Time) {
	t.Helper()
	rec := reserve(t, s, id, now)
	ok, err := s.Complete(context.Background(), id, rec.Attempts+1)
	require.NoError(t, err)
	require.True(t, ok)
}

func fail(t *testing.T, s queue.Store, id int64, now time.Time, msg string) {
	t.Helper()
	rec := reserve(t, s, id, now)
	ok, err := s.Fail(context.Background(), id, rec.Attempts+1, msg)
	require.NoError(t, err)
	require.True(t, ok)
}

func find(t *testing.T, s queue.Store, id int64) *queue.Record {
	t.Helper()
	rec, err := s.Find(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, rec, "record %d should exist", id)
	return rec
}

func testAddNormalizes(t *testing.T, s queue.Store, clock *Clock) {
	ctx := context.Background()

	high := add(t, s, "clamp.high", queue.WithPriority(15))
	low := add(t, s, "clamp.low", queue.WithPriority(-5))
	def := add(t, s, "defaults")

	assert.Equal(t, queue.PriorityMax, find(t, s, high).Priority)
	assert.Equal(t, queue.PriorityMin, find(t, s, low).Priority)

	rec := find(t, s, def)
	assert.Equal(t, "defaults", rec.Task)
	assert.Equal(t, queue.DefaultQueueName, rec.Queue)
	assert.Equal(t, queue.PriorityDefault, rec.Priority)
	assert.Equal(t, queue.StatusPending, rec.Status)
	assert.Equal(t, queue.DefaultOptions().MaxAttempts, rec.Options.MaxAttempts)
	assert.Equal(t, queue.BackoffExponential, rec.Options.Backoff)
	assert.Zero(t, rec.Attempts)
	assert.Empty(t, rec.Exception)
	assert.WithinDuration(t, clock.Now(), rec.AvailableAt, time.Millisecond)

	payload, err := queue.DecodePayload(rec.Payload)
	require.NoError(t, err)
	assert.Equal(t, queue.Payload{"task": "defaults"}, payload)

	tagged := add(t, s, "tagged",
		queue.WithQueue("emails"),
		queue.WithMaxAttempts(5),
		queue.WithBackoff(queue.BackoffLinear),
		queue.WithRetryDelay(10*time.Second),
		queue.WithTags("welcome"),
	)
	rec = find(t, s, tagged)
	assert.Equal(t, "emails", rec.Queue)
	assert.Equal(t, 5, rec.Options.MaxAttempts)
	assert.Equal(t, queue.BackoffLinear, rec.Options.Backoff)
	assert.Equal(t, 10*time.Second, rec.Options.RetryDelay)
	assert.Equal(t, []string{"welcome"}, rec.Options.Tags)

	missing, err := s.Find(ctx, 999999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func testIDsIncrease(t *testing.T, s queue.Store, _ *Clock) {
	var prev int64
	for range 5 {
		id := add(t, s, "seq")
		assert.Greater(t, id, prev)
		prev = id
	}
}

func testDelayedEligibility(t *testing.T, s queue.Store, clock *Clock) {
	ctx := context.Background()
	id := add(t, s, "later", queue.WithDelay(60*time.Second))

	rec := find(t, s, id)
	assert.Equal(t, queue.StatusDelayed, rec.Status)
	assert.True(t, rec.AvailableAt.After(clock.Now()))

	ids, err := s.Eligible(ctx, "", clock.Now(), 0)
	require.NoError(t, err)
	assert.NotContains(t, ids, id)

	got, err := s.Reserve(ctx, id, clock.Now(), "suite")
	require.NoError(t, err)
	assert.Nil(t, got, "delayed record must not be reservable early")

	clock.Advance(60 * time.Second)
	ids, err = s.Eligible(ctx, "", clock.Now(), 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{id}, ids)
}

func testEligibleOrdering(t *testing.T, s queue.Store, clock *Clock) {
	mid := add(t, s, "mid", queue.WithPriority(5))
	top := add(t, s, "top", queue.WithPriority(10))
	bottom := add(t, s, "bottom", queue.WithPriority(1))
	midLater := add(t, s, "mid.later", queue.WithPriority(5))

	ids, err := s.Eligible(context.Background(), queue.DefaultQueueName, clock.Now(), 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{top, mid, midLater, bottom}, ids)
}

func testEligibleQueueFilterAndLimit(t *testing.T, s queue.Store, clock *Clock) {
	ctx := context.Background()
	a1 := add(t, s, "a1", queue.WithQueue("a"))
	a2 := add(t, s, "a2", queue.WithQueue("a"))
	b1 := add(t, s, "b1", queue.WithQueue("b"), queue.WithPriority(9))

	ids, err := s.Eligible(ctx, "a", clock.Now(), 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{a1, a2}, ids)

	ids, err = s.Eligible(ctx, "", clock.Now(), 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{b1, a1}, ids)

	ids, err = s.Eligible(ctx, "nope", clock.Now(), 0)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func testReserveOnce(t *testing.T, s queue.Store, clock *Clock) {
	ctx := context.Background()
	id := add(t, s, "once")

	rec, err := s.Reserve(ctx, id, clock.Now(), "worker-a")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, queue.StatusProcessing, rec.Status)
	assert.Equal(t, "worker-a", rec.ReservedBy)
	require.NotNil(t, rec.ReservedAt)

	again, err := s.Reserve(ctx, id, clock.Now(), "worker-b")
	require.NoError(t, err)
	assert.Nil(t, again)

	ghost, err := s.Reserve(ctx, 999999, clock.Now(), "worker-b")
	require.NoError(t, err)
	assert.Nil(t, ghost)

	ids, err := s.Eligible(ctx, "", clock.Now(), 0)
	require.NoError(t, err)
	assert.NotContains(t, ids, id)
}

func testConcurrentReserve(t *testing.T, s queue.Store, clock *Clock) {
	id := add(t, s, "contended")

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, err := s.Reserve(context.Background(), id, clock.Now(), "racer")
			assert.NoError(t, err)
			if rec != nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func testTransitionsRequireProcessing(t *testing.T, s queue.Store, clock *Clock) {
	ctx := context.Background()
	id := add(t, s, "idle")

	ok, err := s.Complete(ctx, id, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.Fail(ctx, id, 1, "nope")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.Release(ctx, id, 1, clock.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, queue.StatusPending, find(t, s, id).Status)

	complete(t, s, id, clock.Now())
	rec := find(t, s, id)
	assert.Equal(t, queue.StatusCompleted, rec.Status)
	assert.Equal(t, 1, rec.Attempts)
	assert.Empty(t, rec.ReservedBy)

	ok, err = s.Complete(ctx, id, 2)
	require.NoError(t, err)
	assert.False(t, ok, "completed records are terminal")
}

func testReleaseReschedules(t *testing.T, s queue.Store, clock *Clock) {
	ctx := context.Background()
	id := add(t, s, "retry")
	reserve(t, s, id, clock.Now())

	retryAt := clock.Now().Add(2 * time.Minute)
	ok, err := s.Release(ctx, id, 1, retryAt)
	require.NoError(t, err)
	require.True(t, ok)

	rec := find(t, s, id)
	assert.Equal(t, queue.StatusPending, rec.Status)
	assert.Equal(t, 1, rec.Attempts)
	assert.Empty(t, rec.Exception)
	assert.WithinDuration(t, retryAt, rec.AvailableAt, time.Millisecond)

	ids, err := s.Eligible(ctx, "", clock.Now(), 0)
	require.NoError(t, err)
	assert.NotContains(t, ids, id)

	clock.Advance(2 * time.Minute)
	ids, err = s.Eligible(ctx, "", clock.Now(), 0)
	require.NoError(t, err)
	assert.Contains(t, ids, id)
}

func testStuck(t *testing.T, s queue.Store, clock *Clock) {
	ctx := context.Background()
	old := add(t, s, "old")
	fresh := add(t, s, "fresh")

	reserve(t, s, old, clock.Now())
	clock.Advance(10 * time.Minute)
	reserve(t, s, fresh, clock.Now())

	stuck, err := s.Stuck(ctx, clock.Now().Add(-5*time.Minute))
	require.NoError(t, err)
	require.Len(t, stuck, 1)
	assert.Equal(t, old, stuck[0].ID)
	assert.Equal(t, queue.StatusProcessing, stuck[0].Status)
}

func testStats(t *testing.T, s queue.Store, clock *Clock) {
	ctx := context.Background()

	add(t, s, "p1")
	add(t, s, "p2")
	add(t, s, "d1", queue.WithDelay(time.Hour))
	processing := add(t, s, "r1")
	done := add(t, s, "c1")
	broken := add(t, s, "f1", queue.WithQueue("other"))

	reserve(t, s, processing, clock.Now())
	complete(t, s, done, clock.Now())
	fail(t, s, broken, clock.Now(), "boom")

	stats, err := s.Stats(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, queue.Stats{Pending: 2, Delayed: 1, Processing: 1, Completed: 1, Failed: 1}, stats)

	stats, err = s.Stats(ctx, "other")
	require.NoError(t, err)
	assert.Equal(t, queue.Stats{Failed: 1}, stats)

	stats, err = s.Stats(ctx, "empty-queue")
	require.NoError(t, err)
	assert.Equal(t, queue.Stats{}, stats)
}

func testFailedJobs(t *testing.T, s queue.Store, clock *Clock) {
	ctx := context.Background()

	var ids []int64
	for range 3 {
		id := add(t, s, "flaky")
		fail(t, s, id, clock.Now(), "exhausted")
		ids = append(ids, id)
		clock.Advance(time.Second)
	}
	healthy := add(t, s, "healthy")

	page, err := s.FailedJobs(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, ids[2], page[0].ID, "most recently failed first")
	assert.Equal(t, ids[0], page[2].ID)
	assert.Equal(t, "exhausted", page[0].Exception)

	page, err = s.FailedJobs(ctx, 2, 1)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[1], page[0].ID)

	page, err = s.FailedJobs(ctx, 10, 10)
	require.NoError(t, err)
	assert.Empty(t, page)

	rec, err := s.FailedJob(ctx, ids[0])
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, queue.StatusFailed, rec.Status)

	rec, err = s.FailedJob(ctx, healthy)
	require.NoError(t, err)
	assert.Nil(t, rec, "pending records are not failed jobs")

	rec, err = s.FailedJob(ctx, 999999)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func testRetryFailedJob(t *testing.T, s queue.Store, clock *Clock) {
	ctx := context.Background()
	id := add(t, s, "flaky")
	fail(t, s, id, clock.Now(), "boom")

	ok, err := s.RetryFailedJob(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)

	rec := find(t, s, id)
	assert.Equal(t, queue.StatusPending, rec.Status)
	assert.Empty(t, rec.Exception)
	assert.Zero(t, rec.Attempts)

	ok, err = s.RetryFailedJob(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok, "record is no longer failed")

	ok, err = s.RetryFailedJob(ctx, 999999)
	require.NoError(t, err)
	assert.False(t, ok)

	ids, err := s.Eligible(ctx, "", clock.Now(), 0)
	require.NoError(t, err)
	assert.Contains(t, ids, id)
}

func testRetryAllFailedJobs(t *testing.T, s queue.Store, clock *Clock) {
	ctx := context.Background()
	for _, q := range []string{"a", "a", "b"} {
		id := add(t, s, "flaky", queue.WithQueue(q))
		fail(t, s, id, clock.Now(), "boom")
	}

	n, err := s.RetryAllFailedJobs(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.RetryAllFailedJobs(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stats, err := s.Stats(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Pending)
	assert.Zero(t, stats.Failed)
}

func testCleanup(t *testing.T, s queue.Store, clock *Clock) {
	ctx := context.Background()
	const completed, failed, pending = 3, 2, 4

	for range completed {
		complete(t, s, add(t, s, "done"), clock.Now())
	}
	for range failed {
		fail(t, s, add(t, s, "broken"), clock.Now(), "boom")
	}
	survivors := make([]int64, 0, pending)
	for range pending {
		survivors = append(survivors, add(t, s, "waiting"))
	}

	n, err := s.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, completed+failed, n)

	for _, id := range survivors {
		assert.Equal(t, queue.StatusPending, find(t, s, id).Status)
	}

	n, err = s.Cleanup(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func testPurgeFailedJobs(t *testing.T, s queue.Store, clock *Clock) {
	ctx := context.Background()
	fail(t, s, add(t, s, "x", queue.WithQueue("a")), clock.Now(), "boom")
	fail(t, s, add(t, s, "x", queue.WithQueue("b")), clock.Now(), "boom")
	done := add(t, s, "x", queue.WithQueue("a"))
	complete(t, s, done, clock.Now())

	n, err := s.PurgeFailedJobs(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.PurgeFailedJobs(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, queue.StatusCompleted, find(t, s, done).Status)
}

func testPurgeOldJobs(t *testing.T, s queue.Store, clock *Clock) {
	ctx := context.Background()

	oldDone := add(t, s, "old.done")
	oldFailed := add(t, s, "old.failed")
	oldPending := add(t, s, "old.pending")
	complete(t, s, oldDone, clock.Now())
	fail(t, s, oldFailed, clock.Now(), "boom")

	clock.Advance(10 * 24 * time.Hour)
	recent := add(t, s, "recent.done")
	complete(t, s, recent, clock.Now())

	n, err := s.PurgeOldJobs(ctx, 7*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Equal(t, queue.StatusPending, find(t, s, oldPending).Status)
	assert.Equal(t, queue.StatusCompleted, find(t, s, recent).Status)

	gone, err := s.Find(ctx, oldDone)
	require.NoError(t, err)
	assert.Nil(t, gone)
}
