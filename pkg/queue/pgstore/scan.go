package pgstore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/queuekit/pkg/queue"
)

const recordColumns = `id, task, payload, queue, priority, status, available_at, attempts,
	options, exception, reserved_at, reserved_by, created_at, updated_at`

func scanRecord(row pgx.Row) (*queue.Record, error) {
	var (
		rec        queue.Record
		priority   int
		status     string
		options    []byte
		reservedAt *time.Time
	)
	err := row.Scan(
		&rec.ID, &rec.Task, &rec.Payload, &rec.Queue, &priority, &status, &rec.AvailableAt, &rec.Attempts,
		&options, &rec.Exception, &reservedAt, &rec.ReservedBy, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Priority = queue.Priority(priority)
	if rec.Status, err = queue.ParseStatus(status); err != nil {
		return nil, err
	}
	if len(options) > 0 {
		if err := json.Unmarshal(options, &rec.Options); err != nil {
			return nil, fmt.Errorf("decode options of job %d: %w", rec.ID, err)
		}
	}

	rec.AvailableAt = rec.AvailableAt.UTC()
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	if reservedAt != nil {
		t := reservedAt.UTC()
		rec.ReservedAt = &t
	}
	return &rec, nil
}

func collectRecords(rows pgx.Rows) ([]*queue.Record, error) {
	defer rows.Close()

	records := make([]*queue.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("queue/pgstore: scan job row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("queue/pgstore: iterate job rows: %w", err)
	}
	return records, nil
}
