package queue

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"
)

var _ Store = (*MemoryStorage)(nil)

// MemoryStorage implements Store in process memory, for tests and local development
type MemoryStorage struct {
	mu      sync.RWMutex
	records map[int64]*Record
	nextID  int64
	now     func() time.Time
}

// MemoryOption configures MemoryStorage
type MemoryOption func(*MemoryStorage)

// WithMemoryClock sets the time source used for timestamps
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(ms *MemoryStorage) {
		if now != nil {
			ms.now = now
		}
	}
}

// NewMemoryStorage creates an empty in-memory store
func NewMemoryStorage(opts ...MemoryOption) *MemoryStorage {
	ms := &MemoryStorage{
		records: make(map[int64]*Record),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(ms)
	}
	return ms
}

// Add implements Dispatcher
func (ms *MemoryStorage) Add(ctx context.Context, task string, payload Payload, opts ...EnqueueOption) (int64, error) {
	rec, err := NewRecord(task, payload, ms.now(), opts...)
	if err != nil {
		return 0, err
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.nextID++
	rec.ID = ms.nextID
	ms.records[rec.ID] = rec
	return rec.ID, nil
}

// Eligible implements Reserver
func (ms *MemoryStorage) Eligible(ctx context.Context, queue string, now time.Time, limit int) ([]int64, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	candidates := make([]*Record, 0)
	for _, rec := range ms.records {
		if queue != "" && rec.Queue != queue {
			continue
		}
		if rec.Eligible(now) {
			candidates = append(candidates, rec)
		}
	}

	slices.SortFunc(candidates, func(a, b *Record) int {
		if c := cmp.Compare(b.Priority, a.Priority); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	ids := make([]int64, len(candidates))
	for i, rec := range candidates {
		ids[i] = rec.ID
	}
	return ids, nil
}

// Reserve implements Reserver
func (ms *MemoryStorage) Reserve(ctx context.Context, id int64, now time.Time, owner string) (*Record, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	rec, ok := ms.records[id]
	if !ok || !rec.Eligible(now) {
		return nil, nil
	}

	reservedAt := now.UTC()
	rec.Status = StatusProcessing
	rec.ReservedAt = &reservedAt
	rec.ReservedBy = owner
	rec.UpdatedAt = reservedAt
	return rec.Clone(), nil
}

// Complete implements Reserver
func (ms *MemoryStorage) Complete(ctx context.Context, id int64, attempts int) (bool, error) {
	return ms.settle(id, func(rec *Record) {
		rec.Status = StatusCompleted
		rec.Attempts = attempts
		rec.Exception = ""
	}), nil
}

// Release implements Reserver
func (ms *MemoryStorage) Release(ctx context.Context, id int64, attempts int, availableAt time.Time) (bool, error) {
	return ms.settle(id, func(rec *Record) {
		rec.Status = StatusPending
		rec.Attempts = attempts
		rec.AvailableAt = availableAt.UTC()
		rec.Exception = ""
	}), nil
}

// Fail implements Reserver
func (ms *MemoryStorage) Fail(ctx context.Context, id int64, attempts int, exception string) (bool, error) {
	return ms.settle(id, func(rec *Record) {
		rec.Status = StatusFailed
		rec.Attempts = attempts
		rec.Exception = exception
	}), nil
}

// settle applies fn to a processing record and clears its reservation
func (ms *MemoryStorage) settle(id int64, fn func(*Record)) bool {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	rec, ok := ms.records[id]
	if !ok || rec.Status != StatusProcessing {
		return false
	}

	fn(rec)
	rec.ReservedAt = nil
	rec.ReservedBy = ""
	rec.UpdatedAt = ms.now().UTC()
	return true
}

// Stuck implements Reserver
func (ms *MemoryStorage) Stuck(ctx context.Context, reservedBefore time.Time) ([]*Record, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var stuck []*Record
	for _, rec := range ms.records {
		if rec.Status == StatusProcessing && rec.ReservedAt != nil && rec.ReservedAt.Before(reservedBefore) {
			stuck = append(stuck, rec.Clone())
		}
	}
	slices.SortFunc(stuck, func(a, b *Record) int { return cmp.Compare(a.ID, b.ID) })
	return stuck, nil
}

// Find implements Finder
func (ms *MemoryStorage) Find(ctx context.Context, id int64) (*Record, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	return ms.records[id].Clone(), nil
}

// Stats implements StatsReader
func (ms *MemoryStorage) Stats(ctx context.Context, queue string) (Stats, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var stats Stats
	for _, rec := range ms.records {
		if queue == "" || rec.Queue == queue {
			stats.Add(rec.Status, 1)
		}
	}
	return stats, nil
}

// FailedJobs implements FailedJobStore
func (ms *MemoryStorage) FailedJobs(ctx context.Context, limit, offset int) ([]*Record, error) {
	if limit <= 0 {
		limit = DefaultFailedJobsLimit
	}
	offset = max(offset, 0)

	ms.mu.RLock()
	defer ms.mu.RUnlock()

	failed := make([]*Record, 0)
	for _, rec := range ms.records {
		if rec.Status == StatusFailed {
			failed = append(failed, rec)
		}
	}
	slices.SortFunc(failed, func(a, b *Record) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})

	if offset >= len(failed) {
		return []*Record{}, nil
	}
	failed = failed[offset:min(offset+limit, len(failed))]

	out := make([]*Record, len(failed))
	for i, rec := range failed {
		out[i] = rec.Clone()
	}
	return out, nil
}

// FailedJob implements FailedJobStore
func (ms *MemoryStorage) FailedJob(ctx context.Context, id int64) (*Record, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	rec, ok := ms.records[id]
	if !ok || rec.Status != StatusFailed {
		return nil, nil
	}
	return rec.Clone(), nil
}

// RetryFailedJob implements FailedJobStore
func (ms *MemoryStorage) RetryFailedJob(ctx context.Context, id int64) (bool, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	rec, ok := ms.records[id]
	if !ok || rec.Status != StatusFailed {
		return false, nil
	}
	ms.requeue(rec)
	return true, nil
}

// RetryAllFailedJobs implements FailedJobStore
func (ms *MemoryStorage) RetryAllFailedJobs(ctx context.Context, queue string) (int, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	count := 0
	for _, rec := range ms.records {
		if rec.Status != StatusFailed || (queue != "" && rec.Queue != queue) {
			continue
		}
		ms.requeue(rec)
		count++
	}
	return count, nil
}

// requeue gives a failed record a fresh set of attempts
func (ms *MemoryStorage) requeue(rec *Record) {
	now := ms.now().UTC()
	rec.Status = StatusPending
	rec.Attempts = 0
	rec.Exception = ""
	rec.AvailableAt = now
	rec.UpdatedAt = now
}

// PurgeOldJobs implements Maintainer
func (ms *MemoryStorage) PurgeOldJobs(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := ms.now().Add(-olderThan)
	return ms.deleteWhere(func(rec *Record) bool {
		return rec.Status.IsTerminal() && rec.UpdatedAt.Before(cutoff)
	}), nil
}

// PurgeFailedJobs implements Maintainer
func (ms *MemoryStorage) PurgeFailedJobs(ctx context.Context, queue string) (int, error) {
	return ms.deleteWhere(func(rec *Record) bool {
		return rec.Status == StatusFailed && (queue == "" || rec.Queue == queue)
	}), nil
}

// Cleanup implements Maintainer
func (ms *MemoryStorage) Cleanup(ctx context.Context) (int, error) {
	return ms.deleteWhere(func(rec *Record) bool {
		return rec.Status.IsTerminal()
	}), nil
}

func (ms *MemoryStorage) deleteWhere(match func(*Record) bool) int {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	removed := 0
	for id, rec := range ms.records {
		if match(rec) {
			delete(ms.records, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored records
func (ms *MemoryStorage) Len() int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return len(ms.records)
}
