package redisstore

import (
	"strconv"

	"github.com/dmitrymomot/queuekit/pkg/queue"
)

// DefaultKeyPrefix namespaces every key written by the store
const DefaultKeyPrefix = "queuekit:"

type keys struct {
	prefix string
}

// seq is the INCR counter that issues job ids
func (k keys) seq() string { return k.prefix + "seq" }

// job returns the Hash holding one record
func (k keys) job(id int64) string { return k.jobMember(member(id)) }

// jobMember returns the record Hash for an id read back from an index
func (k keys) jobMember(m string) string { return k.jobPrefix() + m }

// jobPrefix is the Hash key prefix scripts append an id to
func (k keys) jobPrefix() string { return k.prefix + "job:" }

// scheduled returns the Sorted Set of pending and delayed ids of queue scored by available_at
func (k keys) scheduled(queue string) string { return k.scheduledPrefix() + queue }

func (k keys) scheduledPrefix() string { return k.prefix + "scheduled:" }

// ready returns the Sorted Set of due ids of queue scored by rank
func (k keys) ready(queue string) string { return k.readyPrefix() + queue }

func (k keys) readyPrefix() string { return k.prefix + "ready:" }

// processing is the Sorted Set of reserved ids scored by reserved_at
func (k keys) processing() string { return k.prefix + "processing" }

// completed and failed are Sorted Sets of terminal ids scored by updated_at
func (k keys) completed() string { return k.prefix + "completed" }
func (k keys) failed() string    { return k.prefix + "failed" }

// queues is the Set of every queue name ever written
func (k keys) queues() string { return k.prefix + "queues" }

// counts returns the Hash of status -> record count for queue
func (k keys) counts(queue string) string { return k.countsPrefix() + queue }

func (k keys) countsPrefix() string { return k.prefix + "counts:" }

func member(id int64) string { return strconv.FormatInt(id, 10) }

const rankShift = 48

// rank orders ready ids by priority descending, then id ascending.
// It stays below 2^53, so a Sorted Set score holds it exactly.
func rank(rec *queue.Record) int64 {
	return int64(queue.PriorityMax-rec.Priority)<<rankShift | rec.ID
}
