package queue

import (
	"encoding/json"
	"fmt"
	"time"
)

// DefaultQueueName is the default queue name used when no queue is specified
const DefaultQueueName = "default"

// Status represents the lifecycle state of a job record
type Status uint8

const (
	StatusPending Status = iota + 1
	StatusDelayed
	StatusProcessing
	StatusCompleted
	StatusFailed
)

var statusNames = map[Status]string{
	StatusPending:    "pending",
	StatusDelayed:    "delayed",
	StatusProcessing: "processing",
	StatusCompleted:  "completed",
	StatusFailed:     "failed",
}

// Statuses lists every status in lifecycle order
var Statuses = []Status{StatusPending, StatusDelayed, StatusProcessing, StatusCompleted, StatusFailed}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

// Valid reports whether s is one of the known statuses
func (s Status) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

// IsTerminal reports whether no automatic transition leaves s
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransitionTo reports whether the state machine allows moving from s to next.
// Terminal records only leave their state through an explicit operator retry,
// which is the failed -> pending edge.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending, StatusDelayed:
		return next == StatusProcessing
	case StatusProcessing:
		return next == StatusCompleted || next == StatusFailed || next == StatusPending
	case StatusFailed:
		return next == StatusPending
	case StatusCompleted:
		return false
	default:
		return false
	}
}

// ParseStatus converts a persisted status name back to a Status
func ParseStatus(name string) (Status, error) {
	for s, n := range statusNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownStatus, name)
}

func (s Status) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownStatus, uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Priority represents job priority (0-10, higher runs first within a sweep)
type Priority int

const (
	PriorityMin     Priority = 0
	PriorityMax     Priority = 10
	PriorityDefault Priority = 5
)

// ClampPriority forces p into [PriorityMin, PriorityMax]. Out of range input is never rejected.
func ClampPriority(p int) Priority {
	switch {
	case p < int(PriorityMin):
		return PriorityMin
	case p > int(PriorityMax):
		return PriorityMax
	default:
		return Priority(p)
	}
}

// BackoffStrategy names a retry delay progression
type BackoffStrategy string

const (
	BackoffExponential BackoffStrategy = "exponential"
	BackoffLinear      BackoffStrategy = "linear"
	BackoffFixed       BackoffStrategy = "fixed"
)

// Options holds per-job execution policy
type Options struct {
	MaxAttempts int             `json:"max_attempts"`
	Timeout     time.Duration   `json:"timeout"`
	Backoff     BackoffStrategy `json:"backoff_strategy"`
	RetryDelay  time.Duration   `json:"retry_delay"`
	Tags        []string        `json:"tags,omitempty"`
}

// DefaultOptions returns the policy applied when a caller leaves fields unset
func DefaultOptions() Options {
	return Options{
		MaxAttempts: 3,
		Timeout:     60 * time.Second,
		Backoff:     BackoffExponential,
		RetryDelay:  60 * time.Second,
	}
}

// normalize fills zero fields with defaults so stored records are always complete
func (o Options) normalize() Options {
	def := DefaultOptions()
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = def.MaxAttempts
	}
	if o.Timeout <= 0 {
		o.Timeout = def.Timeout
	}
	switch o.Backoff {
	case BackoffExponential, BackoffLinear, BackoffFixed:
	default:
		o.Backoff = def.Backoff
	}
	if o.RetryDelay < 0 {
		o.RetryDelay = 0
	}
	return o
}

// Record is a persisted unit of schedulable work
type Record struct {
	ID          int64      `json:"id"`
	Task        string     `json:"task"`
	Payload     []byte     `json:"payload,omitempty"`
	Queue       string     `json:"queue"`
	Priority    Priority   `json:"priority"`
	Status      Status     `json:"status"`
	AvailableAt time.Time  `json:"available_at"`
	Attempts    int        `json:"attempts"`
	Options     Options    `json:"options"`
	Exception   string     `json:"exception,omitempty"`
	ReservedAt  *time.Time `json:"reserved_at,omitempty"`
	ReservedBy  string     `json:"reserved_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Eligible reports whether a sweep running at now may pick the record up
func (r *Record) Eligible(now time.Time) bool {
	if r.Status != StatusPending && r.Status != StatusDelayed {
		return false
	}
	return !r.AvailableAt.After(now)
}

// Ref returns the identifying triple used in logs and metrics
func (r *Record) Ref() JobRef {
	return JobRef{ID: r.ID, Queue: r.Queue, Task: r.Task}
}

// Clone returns a deep copy so stores never hand out their internal state
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	if r.Payload != nil {
		c.Payload = append([]byte(nil), r.Payload...)
	}
	if r.Options.Tags != nil {
		c.Options.Tags = append([]string(nil), r.Options.Tags...)
	}
	if r.ReservedAt != nil {
		t := *r.ReservedAt
		c.ReservedAt = &t
	}
	return &c
}

// JobRef identifies a job in log entries and metrics
type JobRef struct {
	ID    int64
	Queue string
	Task  string
}

// Stats holds record counts per status
type Stats struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Completed  int64 `json:"completed"`
	Failed     int64 `json:"failed"`
	Delayed    int64 `json:"delayed"`
}

// Add increments the counter that matches status
func (s *Stats) Add(status Status, n int64) {
	switch status {
	case StatusPending:
		s.Pending += n
	case StatusDelayed:
		s.Delayed += n
	case StatusProcessing:
		s.Processing += n
	case StatusCompleted:
		s.Completed += n
	case StatusFailed:
		s.Failed += n
	}
}

// Count returns the counter for status
func (s Stats) Count(status Status) int64 {
	switch status {
	case StatusPending:
		return s.Pending
	case StatusDelayed:
		return s.Delayed
	case StatusProcessing:
		return s.Processing
	case StatusCompleted:
		return s.Completed
	case StatusFailed:
		return s.Failed
	default:
		return 0
	}
}

// Payload is the structured job input handed to Job.Handle
type Payload map[string]any

// Bind decodes the payload into v, typically a pointer to a struct
func (p Payload) Bind(v any) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPayloadEncode, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %w", ErrPayloadDecode, err)
	}
	return nil
}

// EncodePayload serializes p for storage. A nil payload encodes to an empty object.
func EncodePayload(p Payload) ([]byte, error) {
	if p == nil {
		p = Payload{}
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPayloadEncode, err)
	}
	return raw, nil
}

// DecodePayload restores a stored payload. Empty input decodes to an empty map.
func DecodePayload(raw []byte) (Payload, error) {
	p := Payload{}
	if len(raw) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPayloadDecode, err)
	}
	if p == nil {
		p = Payload{}
	}
	return p, nil
}
