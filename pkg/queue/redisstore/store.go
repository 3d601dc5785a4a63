package redisstore

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/queuekit/pkg/queue"
)

var _ queue.Store = (*Store)(nil)

// Store implements queue.Store on Redis.
// Records are Hashes; Sorted Sets index them by status, and per queue Hashes keep status counts.
type Store struct {
	client redis.UniversalClient
	keys   keys
	now    func() time.Time
}

// Option configures the Store
type Option func(*Store)

// WithKeyPrefix namespaces every key, so several stores can share one database
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) {
		if prefix != "" {
			s.keys.prefix = prefix
		}
	}
}

// WithClock sets the time source used for every timestamp the store writes
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a store over client. The caller owns the client lifecycle.
func New(client redis.UniversalClient, opts ...Option) *Store {
	s := &Store{
		client: client,
		keys:   keys{prefix: DefaultKeyPrefix},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add implements queue.Dispatcher
func (s *Store) Add(ctx context.Context, task string, payload queue.Payload, opts ...queue.EnqueueOption) (int64, error) {
	rec, err := queue.NewRecord(task, payload, s.now(), opts...)
	if err != nil {
		return 0, err
	}

	if rec.ID, err = s.client.Incr(ctx, s.keys.seq()).Result(); err != nil {
		return 0, fmt.Errorf("queue/redisstore: next id: %w", err)
	}
	fields, err := recordToMap(rec)
	if err != nil {
		return 0, err
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.keys.job(rec.ID), fields)
	pipe.ZAdd(ctx, s.keys.scheduled(rec.Queue), redis.Z{Score: float64(micros(rec.AvailableAt)), Member: member(rec.ID)})
	pipe.SAdd(ctx, s.keys.queues(), rec.Queue)
	pipe.HIncrBy(ctx, s.keys.counts(rec.Queue), rec.Status.String(), 1)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("queue/redisstore: add job: %w", err)
	}
	return rec.ID, nil
}

// promoteBatch bounds the ids a single promote script moves
const promoteBatch = 256

// Eligible implements queue.Reserver.
// Due ids are first promoted into the per queue ready set, then read in rank order,
// so the work per call is bounded by limit rather than by the backlog.
func (s *Store) Eligible(ctx context.Context, queueName string, now time.Time, limit int) ([]int64, error) {
	queues := []string{queueName}
	if queueName == "" {
		var err error
		if queues, err = s.client.SMembers(ctx, s.keys.queues()).Result(); err != nil {
			return nil, fmt.Errorf("queue/redisstore: list queues: %w", err)
		}
	}

	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}

	var ready []redis.Z
	for _, q := range queues {
		if err := s.promote(ctx, q, now); err != nil {
			return nil, err
		}
		zs, err := s.client.ZRangeWithScores(ctx, s.keys.ready(q), 0, stop).Result()
		if err != nil {
			return nil, fmt.Errorf("queue/redisstore: eligible jobs of %q: %w", q, err)
		}
		ready = append(ready, zs...)
	}

	slices.SortFunc(ready, func(a, b redis.Z) int { return cmp.Compare(a.Score, b.Score) })
	if limit > 0 && len(ready) > limit {
		ready = ready[:limit]
	}

	ids := make([]int64, len(ready))
	for i, z := range ready {
		m, _ := z.Member.(string)
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("queue/redisstore: decode member %q: %w", m, err)
		}
		ids[i] = id
	}
	return ids, nil
}

// promote moves every id of queueName due at now into its ready set, a batch per round trip
func (s *Store) promote(ctx context.Context, queueName string, now time.Time) error {
	for {
		n, err := promoteScript.Run(ctx, s.client,
			[]string{s.keys.scheduled(queueName), s.keys.ready(queueName)},
			micros(now), promoteBatch, s.keys.jobPrefix(),
		).Int()
		if err != nil {
			return fmt.Errorf("queue/redisstore: promote due jobs of %q: %w", queueName, err)
		}
		if n < promoteBatch {
			return nil
		}
	}
}

// Reserve implements queue.Reserver
func (s *Store) Reserve(ctx context.Context, id int64, now time.Time, owner string) (*queue.Record, error) {
	ok, err := reserveScript.Run(ctx, s.client,
		[]string{s.keys.job(id), s.keys.processing()},
		member(id), micros(now), owner, s.keys.countsPrefix(), s.keys.scheduledPrefix(), s.keys.readyPrefix(),
	).Int()
	if err != nil {
		return nil, fmt.Errorf("queue/redisstore: reserve job %d: %w", id, err)
	}
	if ok == 0 {
		return nil, nil
	}
	return s.Find(ctx, id)
}

// Complete implements queue.Reserver
func (s *Store) Complete(ctx context.Context, id int64, attempts int) (bool, error) {
	now := micros(s.now())
	return s.settle(ctx, id, s.keys.completed(), false, queue.StatusCompleted, attempts, "", "", now)
}

// Release implements queue.Reserver
func (s *Store) Release(ctx context.Context, id int64, attempts int, availableAt time.Time) (bool, error) {
	at := micros(availableAt)
	return s.settle(ctx, id, s.keys.scheduledPrefix(), true, queue.StatusPending, attempts, "", strconv.FormatInt(at, 10), at)
}

// Fail implements queue.Reserver
func (s *Store) Fail(ctx context.Context, id int64, attempts int, exception string) (bool, error) {
	now := micros(s.now())
	return s.settle(ctx, id, s.keys.failed(), false, queue.StatusFailed, attempts, exception, "", now)
}

// settle runs settleScript. perQueue marks index as a prefix the record queue completes.
func (s *Store) settle(ctx context.Context, id int64, index string, perQueue bool, status queue.Status, attempts int, exception, availableAt string, score int64) (bool, error) {
	scoped := ""
	if perQueue {
		scoped = "1"
	}
	ok, err := settleScript.Run(ctx, s.client,
		[]string{s.keys.job(id), s.keys.processing()},
		member(id), status.String(), attempts, micros(s.now()), exception, availableAt, score, s.keys.countsPrefix(),
		index, scoped,
	).Int()
	if err != nil {
		return false, fmt.Errorf("queue/redisstore: settle job %d as %s: %w", id, status, err)
	}
	return ok == 1, nil
}

// Stuck implements queue.Reserver
func (s *Store) Stuck(ctx context.Context, reservedBefore time.Time) ([]*queue.Record, error) {
	members, err := s.client.ZRangeByScore(ctx, s.keys.processing(), &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(micros(reservedBefore), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("queue/redisstore: stuck jobs: %w", err)
	}

	records, err := s.load(ctx, members)
	if err != nil {
		return nil, err
	}
	stuck := records[:0]
	for _, rec := range records {
		if rec.Status == queue.StatusProcessing {
			stuck = append(stuck, rec)
		}
	}
	slices.SortFunc(stuck, func(a, b *queue.Record) int { return cmp.Compare(a.ID, b.ID) })
	return stuck, nil
}

// Find implements queue.Finder
func (s *Store) Find(ctx context.Context, id int64) (*queue.Record, error) {
	m, err := s.client.HGetAll(ctx, s.keys.job(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("queue/redisstore: find job %d: %w", id, err)
	}
	return mapToRecord(m)
}

// load fetches the records for members in one pipeline, skipping ids deleted meanwhile
func (s *Store) load(ctx context.Context, members []string) ([]*queue.Record, error) {
	if len(members) == 0 {
		return []*queue.Record{}, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(members))
	for i, m := range members {
		cmds[i] = pipe.HGetAll(ctx, s.keys.jobMember(m))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("queue/redisstore: load jobs: %w", err)
	}

	records := make([]*queue.Record, 0, len(members))
	for _, cmd := range cmds {
		rec, err := mapToRecord(cmd.Val())
		if err != nil {
			return nil, err
		}
		if rec != nil {
			records = append(records, rec)
		}
	}
	return records, nil
}

// Stats implements queue.StatsReader
func (s *Store) Stats(ctx context.Context, queueName string) (queue.Stats, error) {
	queues := []string{queueName}
	if queueName == "" {
		var err error
		if queues, err = s.client.SMembers(ctx, s.keys.queues()).Result(); err != nil {
			return queue.Stats{}, fmt.Errorf("queue/redisstore: list queues: %w", err)
		}
	}

	var stats queue.Stats
	for _, q := range queues {
		counts, err := s.client.HGetAll(ctx, s.keys.counts(q)).Result()
		if err != nil {
			return queue.Stats{}, fmt.Errorf("queue/redisstore: stats of %q: %w", q, err)
		}
		for name, v := range counts {
			status, err := queue.ParseStatus(name)
			if err != nil {
				return queue.Stats{}, err
			}
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return queue.Stats{}, fmt.Errorf("queue/redisstore: decode %s count of %q: %w", name, q, err)
			}
			stats.Add(status, n)
		}
	}
	return stats, nil
}

// FailedJobs implements queue.FailedJobStore
func (s *Store) FailedJobs(ctx context.Context, limit, offset int) ([]*queue.Record, error) {
	if limit <= 0 {
		limit = queue.DefaultFailedJobsLimit
	}
	offset = max(offset, 0)

	members, err := s.client.ZRevRange(ctx, s.keys.failed(), int64(offset), int64(offset+limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("queue/redisstore: failed jobs: %w", err)
	}
	return s.load(ctx, members)
}

// FailedJob implements queue.FailedJobStore
func (s *Store) FailedJob(ctx context.Context, id int64) (*queue.Record, error) {
	rec, err := s.Find(ctx, id)
	if err != nil || rec == nil || rec.Status != queue.StatusFailed {
		return nil, err
	}
	return rec, nil
}

// RetryFailedJob implements queue.FailedJobStore
func (s *Store) RetryFailedJob(ctx context.Context, id int64) (bool, error) {
	return s.retry(ctx, id, "")
}

// RetryAllFailedJobs implements queue.FailedJobStore
func (s *Store) RetryAllFailedJobs(ctx context.Context, queueName string) (int, error) {
	return s.each(ctx, s.keys.failed(), func(id int64) (bool, error) {
		return s.retry(ctx, id, queueName)
	})
}

func (s *Store) retry(ctx context.Context, id int64, queueName string) (bool, error) {
	ok, err := retryScript.Run(ctx, s.client,
		[]string{s.keys.job(id), s.keys.failed()},
		member(id), micros(s.now()), s.keys.countsPrefix(), queueName, s.keys.scheduledPrefix(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("queue/redisstore: retry job %d: %w", id, err)
	}
	return ok == 1, nil
}

// PurgeOldJobs implements queue.Maintainer
func (s *Store) PurgeOldJobs(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := "(" + strconv.FormatInt(micros(s.now().Add(-olderThan)), 10)

	total := 0
	for _, index := range []string{s.keys.completed(), s.keys.failed()} {
		members, err := s.client.ZRangeByScore(ctx, index, &redis.ZRangeBy{Min: "-inf", Max: cutoff}).Result()
		if err != nil {
			return total, fmt.Errorf("queue/redisstore: purge old jobs: %w", err)
		}
		n, err := s.deleteMembers(ctx, members)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// PurgeFailedJobs implements queue.Maintainer
func (s *Store) PurgeFailedJobs(ctx context.Context, queueName string) (int, error) {
	return s.each(ctx, s.keys.failed(), func(id int64) (bool, error) {
		return s.delete(ctx, id, queue.StatusFailed.String(), queueName)
	})
}

// Cleanup implements queue.Maintainer
func (s *Store) Cleanup(ctx context.Context) (int, error) {
	total := 0
	for _, index := range []string{s.keys.completed(), s.keys.failed()} {
		n, err := s.each(ctx, index, func(id int64) (bool, error) {
			return s.delete(ctx, id, "", "")
		})
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (s *Store) deleteMembers(ctx context.Context, members []string) (int, error) {
	removed := 0
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			return removed, fmt.Errorf("queue/redisstore: decode member %q: %w", m, err)
		}
		ok, err := s.delete(ctx, id, "", "")
		if err != nil {
			return removed, err
		}
		if ok {
			removed++
		}
	}
	return removed, nil
}

func (s *Store) delete(ctx context.Context, id int64, status, queueName string) (bool, error) {
	ok, err := deleteScript.Run(ctx, s.client,
		[]string{s.keys.job(id), s.keys.completed(), s.keys.failed()},
		member(id), status, queueName, s.keys.countsPrefix(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("queue/redisstore: delete job %d: %w", id, err)
	}
	return ok == 1, nil
}

// each applies fn to every id currently in index and counts the true results
func (s *Store) each(ctx context.Context, index string, fn func(id int64) (bool, error)) (int, error) {
	members, err := s.client.ZRange(ctx, index, 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("queue/redisstore: scan %s: %w", index, err)
	}

	count := 0
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			return count, fmt.Errorf("queue/redisstore: decode member %q: %w", m, err)
		}
		ok, err := fn(id)
		if err != nil {
			return count, err
		}
		if ok {
			count++
		}
	}
	return count, nil
}
