package mongostore

import (
	"time"

	"github.com/dmitrymomot/queuekit/pkg/queue"
)

type optionsDocument struct {
	MaxAttempts int      `bson:"max_attempts"`
	Timeout     int64    `bson:"timeout_ns"`
	Backoff     string   `bson:"backoff"`
	RetryDelay  int64    `bson:"retry_delay_ns"`
	Tags        []string `bson:"tags,omitempty"`
}

type jobDocument struct {
	ID          int64           `bson:"_id"`
	Task        string          `bson:"task"`
	Payload     string          `bson:"payload"`
	Queue       string          `bson:"queue"`
	Priority    int             `bson:"priority"`
	Status      string          `bson:"status"`
	AvailableAt time.Time       `bson:"available_at"`
	Attempts    int             `bson:"attempts"`
	Options     optionsDocument `bson:"options"`
	Exception   string          `bson:"exception"`
	ReservedAt  *time.Time      `bson:"reserved_at"`
	ReservedBy  string          `bson:"reserved_by"`
	CreatedAt   time.Time       `bson:"created_at"`
	UpdatedAt   time.Time       `bson:"updated_at"`
}

func toDocument(rec *queue.Record) *jobDocument {
	return &jobDocument{
		ID:          rec.ID,
		Task:        rec.Task,
		Payload:     string(rec.Payload),
		Queue:       rec.Queue,
		Priority:    int(rec.Priority),
		Status:      rec.Status.String(),
		AvailableAt: rec.AvailableAt,
		Attempts:    rec.Attempts,
		Options: optionsDocument{
			MaxAttempts: rec.Options.MaxAttempts,
			Timeout:     rec.Options.Timeout.Nanoseconds(),
			Backoff:     string(rec.Options.Backoff),
			RetryDelay:  rec.Options.RetryDelay.Nanoseconds(),
			Tags:        rec.Options.Tags,
		},
		Exception:  rec.Exception,
		ReservedAt: rec.ReservedAt,
		ReservedBy: rec.ReservedBy,
		CreatedAt:  rec.CreatedAt,
		UpdatedAt:  rec.UpdatedAt,
	}
}

func fromDocument(d *jobDocument) (*queue.Record, error) {
	status, err := queue.ParseStatus(d.Status)
	if err != nil {
		return nil, err
	}

	rec := &queue.Record{
		ID:          d.ID,
		Task:        d.Task,
		Payload:     []byte(d.Payload),
		Queue:       d.Queue,
		Priority:    queue.Priority(d.Priority),
		Status:      status,
		AvailableAt: d.AvailableAt.UTC(),
		Attempts:    d.Attempts,
		Options: queue.Options{
			MaxAttempts: d.Options.MaxAttempts,
			Timeout:     time.Duration(d.Options.Timeout),
			Backoff:     queue.BackoffStrategy(d.Options.Backoff),
			RetryDelay:  time.Duration(d.Options.RetryDelay),
			Tags:        d.Options.Tags,
		},
		Exception:  d.Exception,
		ReservedBy: d.ReservedBy,
		CreatedAt:  d.CreatedAt.UTC(),
		UpdatedAt:  d.UpdatedAt.UTC(),
	}
	if d.ReservedAt != nil {
		t := d.ReservedAt.UTC()
		rec.ReservedAt = &t
	}
	return rec, nil
}
