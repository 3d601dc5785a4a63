package redisstore

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrymomot/queuekit/pkg/queue"
)

// Timestamps are stored as unix microseconds so scripts can compare them numerically.
func micros(t time.Time) int64 { return t.UnixMicro() }

func fromMicros(s string) (time.Time, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMicro(n).UTC(), nil
}

func recordToMap(rec *queue.Record) (map[string]any, error) {
	options, err := json.Marshal(rec.Options)
	if err != nil {
		return nil, fmt.Errorf("queue/redisstore: encode options: %w", err)
	}
	return map[string]any{
		"id":           rec.ID,
		"task":         rec.Task,
		"payload":      string(rec.Payload),
		"queue":        rec.Queue,
		"priority":     int(rec.Priority),
		"rank":         rank(rec),
		"status":       rec.Status.String(),
		"available_at": micros(rec.AvailableAt),
		"attempts":     rec.Attempts,
		"options":      string(options),
		"exception":    rec.Exception,
		"reserved_at":  "",
		"reserved_by":  "",
		"created_at":   micros(rec.CreatedAt),
		"updated_at":   micros(rec.UpdatedAt),
	}, nil
}

// mapToRecord decodes an HGETALL reply. An empty map means the record does not exist.
func mapToRecord(m map[string]string) (*queue.Record, error) {
	if len(m) == 0 {
		return nil, nil
	}

	var (
		rec queue.Record
		err error
	)
	if rec.ID, err = strconv.ParseInt(m["id"], 10, 64); err != nil {
		return nil, fmt.Errorf("queue/redisstore: decode id: %w", err)
	}
	rec.Task = m["task"]
	rec.Payload = []byte(m["payload"])
	rec.Queue = m["queue"]
	rec.Exception = m["exception"]
	rec.ReservedBy = m["reserved_by"]

	priority, err := strconv.Atoi(m["priority"])
	if err != nil {
		return nil, fmt.Errorf("queue/redisstore: decode priority of job %d: %w", rec.ID, err)
	}
	rec.Priority = queue.Priority(priority)

	if rec.Attempts, err = strconv.Atoi(m["attempts"]); err != nil {
		return nil, fmt.Errorf("queue/redisstore: decode attempts of job %d: %w", rec.ID, err)
	}
	if rec.Status, err = queue.ParseStatus(m["status"]); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(m["options"]), &rec.Options); err != nil {
		return nil, fmt.Errorf("queue/redisstore: decode options of job %d: %w", rec.ID, err)
	}

	for field, dst := range map[string]*time.Time{
		"available_at": &rec.AvailableAt,
		"created_at":   &rec.CreatedAt,
		"updated_at":   &rec.UpdatedAt,
	} {
		if *dst, err = fromMicros(m[field]); err != nil {
			return nil, fmt.Errorf("queue/redisstore: decode %s of job %d: %w", field, rec.ID, err)
		}
	}
	if v := m["reserved_at"]; v != "" {
		t, err := fromMicros(v)
		if err != nil {
			return nil, fmt.Errorf("queue/redisstore: decode reserved_at of job %d: %w", rec.ID, err)
		}
		rec.ReservedAt = &t
	}
	return &rec, nil
}
