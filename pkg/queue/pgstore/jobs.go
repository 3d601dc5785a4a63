package pgstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/queuekit/pkg/pg"
	"github.com/dmitrymomot/queuekit/pkg/queue"
)

// Add implements queue.Dispatcher
func (s *Store) Add(ctx context.Context, task string, payload queue.Payload, opts ...queue.EnqueueOption) (int64, error) {
	rec, err := queue.NewRecord(task, payload, s.now(), opts...)
	if err != nil {
		return 0, err
	}
	options, err := json.Marshal(rec.Options)
	if err != nil {
		return 0, fmt.Errorf("queue/pgstore: encode options: %w", err)
	}

	var id int64
	err = s.db.QueryRow(ctx, `
		INSERT INTO queue_jobs (
			task, payload, queue, priority, status, available_at, attempts,
			options, exception, reserved_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, 0, $7, '', '', $8, $8)
		RETURNING id`,
		rec.Task, rec.Payload, rec.Queue, int(rec.Priority), rec.Status.String(), rec.AvailableAt,
		options, rec.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, wrapErr(fmt.Errorf("queue/pgstore: add job: %w", err))
	}
	return id, nil
}

// Eligible implements queue.Reserver
func (s *Store) Eligible(ctx context.Context, queueName string, now time.Time, limit int) ([]int64, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id FROM queue_jobs
		WHERE status IN ('pending', 'delayed')
		  AND available_at <= $1
		  AND ($2::text = '' OR queue = $2)
		ORDER BY priority DESC, id ASC
		LIMIT NULLIF($3::int, 0)`,
		now.UTC(), queueName, max(limit, 0),
	)
	if err != nil {
		return nil, wrapErr(fmt.Errorf("queue/pgstore: eligible jobs: %w", err))
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, wrapErr(fmt.Errorf("queue/pgstore: eligible jobs: %w", err))
	}
	if ids == nil {
		ids = []int64{}
	}
	return ids, nil
}

// Reserve implements queue.Reserver.
// The status predicate in the UPDATE makes the claim atomic.
func (s *Store) Reserve(ctx context.Context, id int64, now time.Time, owner string) (*queue.Record, error) {
	rec, err := scanRecord(s.db.QueryRow(ctx, `
		UPDATE queue_jobs
		SET status = 'processing', reserved_at = $2, reserved_by = $3, updated_at = $2
		WHERE id = $1
		  AND status IN ('pending', 'delayed')
		  AND available_at <= $2
		RETURNING `+recordColumns,
		id, now.UTC(), owner,
	))
	if pg.IsNotFoundError(err) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr(fmt.Errorf("queue/pgstore: reserve job %d: %w", id, err))
	}
	return rec, nil
}

// Complete implements queue.Reserver
func (s *Store) Complete(ctx context.Context, id int64, attempts int) (bool, error) {
	return s.settle(ctx, "complete", `
		UPDATE queue_jobs
		SET status = 'completed', attempts = $2, exception = '',
		    reserved_at = NULL, reserved_by = '', updated_at = $3
		WHERE id = $1 AND status = 'processing'`,
		id, attempts, s.now().UTC(),
	)
}

// Release implements queue.Reserver
func (s *Store) Release(ctx context.Context, id int64, attempts int, availableAt time.Time) (bool, error) {
	return s.settle(ctx, "release", `
		UPDATE queue_jobs
		SET status = 'pending', attempts = $2, available_at = $4, exception = '',
		    reserved_at = NULL, reserved_by = '', updated_at = $3
		WHERE id = $1 AND status = 'processing'`,
		id, attempts, s.now().UTC(), availableAt.UTC(),
	)
}

// Fail implements queue.Reserver
func (s *Store) Fail(ctx context.Context, id int64, attempts int, exception string) (bool, error) {
	return s.settle(ctx, "fail", `
		UPDATE queue_jobs
		SET status = 'failed', attempts = $2, exception = $4,
		    reserved_at = NULL, reserved_by = '', updated_at = $3
		WHERE id = $1 AND status = 'processing'`,
		id, attempts, s.now().UTC(), exception,
	)
}

func (s *Store) settle(ctx context.Context, op, sql string, args ...any) (bool, error) {
	tag, err := s.db.Exec(ctx, sql, args...)
	if err != nil {
		return false, wrapErr(fmt.Errorf("queue/pgstore: %s job: %w", op, err))
	}
	return tag.RowsAffected() == 1, nil
}

// Stuck implements queue.Reserver
func (s *Store) Stuck(ctx context.Context, reservedBefore time.Time) ([]*queue.Record, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+recordColumns+`
		FROM queue_jobs
		WHERE status = 'processing' AND reserved_at < $1
		ORDER BY id ASC`,
		reservedBefore.UTC(),
	)
	if err != nil {
		return nil, wrapErr(fmt.Errorf("queue/pgstore: stuck jobs: %w", err))
	}
	return collectRecords(rows)
}

// Find implements queue.Finder
func (s *Store) Find(ctx context.Context, id int64) (*queue.Record, error) {
	rec, err := scanRecord(s.db.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM queue_jobs WHERE id = $1`, id))
	if pg.IsNotFoundError(err) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr(fmt.Errorf("queue/pgstore: find job %d: %w", id, err))
	}
	return rec, nil
}

// Stats implements queue.StatsReader
func (s *Store) Stats(ctx context.Context, queueName string) (queue.Stats, error) {
	rows, err := s.db.Query(ctx, `
		SELECT status, count(*) FROM queue_jobs
		WHERE ($1::text = '' OR queue = $1)
		GROUP BY status`,
		queueName,
	)
	if err != nil {
		return queue.Stats{}, wrapErr(fmt.Errorf("queue/pgstore: stats: %w", err))
	}
	defer rows.Close()

	var stats queue.Stats
	for rows.Next() {
		var (
			name  string
			count int64
		)
		if err := rows.Scan(&name, &count); err != nil {
			return queue.Stats{}, wrapErr(fmt.Errorf("queue/pgstore: scan stats: %w", err))
		}
		status, err := queue.ParseStatus(name)
		if err != nil {
			return queue.Stats{}, err
		}
		stats.Add(status, count)
	}
	if err := rows.Err(); err != nil {
		return queue.Stats{}, wrapErr(fmt.Errorf("queue/pgstore: stats: %w", err))
	}
	return stats, nil
}

// FailedJobs implements queue.FailedJobStore
func (s *Store) FailedJobs(ctx context.Context, limit, offset int) ([]*queue.Record, error) {
	if limit <= 0 {
		limit = queue.DefaultFailedJobsLimit
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+recordColumns+`
		FROM queue_jobs
		WHERE status = 'failed'
		ORDER BY updated_at DESC, id DESC
		LIMIT $1 OFFSET $2`,
		limit, max(offset, 0),
	)
	if err != nil {
		return nil, wrapErr(fmt.Errorf("queue/pgstore: failed jobs: %w", err))
	}
	return collectRecords(rows)
}

// FailedJob implements queue.FailedJobStore
func (s *Store) FailedJob(ctx context.Context, id int64) (*queue.Record, error) {
	rec, err := scanRecord(s.db.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM queue_jobs WHERE id = $1 AND status = 'failed'`, id))
	if pg.IsNotFoundError(err) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr(fmt.Errorf("queue/pgstore: failed job %d: %w", id, err))
	}
	return rec, nil
}

// RetryFailedJob implements queue.FailedJobStore
func (s *Store) RetryFailedJob(ctx context.Context, id int64) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE queue_jobs
		SET status = 'pending', attempts = 0, exception = '', available_at = $2, updated_at = $2
		WHERE id = $1 AND status = 'failed'`,
		id, s.now().UTC(),
	)
	if err != nil {
		return false, wrapErr(fmt.Errorf("queue/pgstore: retry job %d: %w", id, err))
	}
	return tag.RowsAffected() == 1, nil
}

// RetryAllFailedJobs implements queue.FailedJobStore
func (s *Store) RetryAllFailedJobs(ctx context.Context, queueName string) (int, error) {
	return s.count(ctx, "retry failed jobs", `
		UPDATE queue_jobs
		SET status = 'pending', attempts = 0, exception = '', available_at = $2, updated_at = $2
		WHERE status = 'failed' AND ($1::text = '' OR queue = $1)`,
		queueName, s.now().UTC(),
	)
}

// PurgeOldJobs implements queue.Maintainer
func (s *Store) PurgeOldJobs(ctx context.Context, olderThan time.Duration) (int, error) {
	return s.count(ctx, "purge old jobs", `
		DELETE FROM queue_jobs
		WHERE status IN ('completed', 'failed') AND updated_at < $1`,
		s.now().Add(-olderThan).UTC(),
	)
}

// PurgeFailedJobs implements queue.Maintainer
func (s *Store) PurgeFailedJobs(ctx context.Context, queueName string) (int, error) {
	return s.count(ctx, "purge failed jobs", `
		DELETE FROM queue_jobs
		WHERE status = 'failed' AND ($1::text = '' OR queue = $1)`,
		queueName,
	)
}

// Cleanup implements queue.Maintainer
func (s *Store) Cleanup(ctx context.Context) (int, error) {
	return s.count(ctx, "cleanup",
		`DELETE FROM queue_jobs WHERE status IN ('completed', 'failed')`)
}

func (s *Store) count(ctx context.Context, op, sql string, args ...any) (int, error) {
	tag, err := s.db.Exec(ctx, sql, args...)
	if err != nil {
		return 0, wrapErr(fmt.Errorf("queue/pgstore: %s: %w", op, err))
	}
	return int(tag.RowsAffected()), nil
}
