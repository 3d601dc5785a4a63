package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrymomot/queuekit/pkg/queue"
)

// Default collection names
const (
	DefaultJobsCollection     = "queue_jobs"
	DefaultCountersCollection = "queue_counters"
)

var _ queue.Store = (*Store)(nil)

// waiting matches records a sweep may reserve, before the available_at check
var waiting = bson.M{"$in": bson.A{queue.StatusPending.String(), queue.StatusDelayed.String()}}

var terminal = bson.M{"$in": bson.A{queue.StatusCompleted.String(), queue.StatusFailed.String()}}

// Store implements queue.Store on MongoDB.
// Ids come from a counter document; reservation is a single FindOneAndUpdate.
type Store struct {
	jobs     *mongo.Collection
	counters *mongo.Collection
	counter  string
	now      func() time.Time
}

// Option configures the Store
type Option func(*storeOptions)

type storeOptions struct {
	jobs     string
	counters string
	now      func() time.Time
}

// WithCollections overrides the collection names
func WithCollections(jobs, counters string) Option {
	return func(o *storeOptions) {
		if jobs != "" {
			o.jobs = jobs
		}
		if counters != "" {
			o.counters = counters
		}
	}
}

// WithClock sets the time source used for every timestamp the store writes
func WithClock(now func() time.Time) Option {
	return func(o *storeOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// New creates a store in db. The caller owns the client lifecycle.
func New(db *mongo.Database, opts ...Option) *Store {
	o := &storeOptions{
		jobs:     DefaultJobsCollection,
		counters: DefaultCountersCollection,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return &Store{
		jobs:     db.Collection(o.jobs),
		counters: db.Collection(o.counters),
		counter:  o.jobs,
		now:      o.now,
	}
}

// EnsureIndexes creates the indexes sweeps and maintenance rely on
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.jobs.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "status", Value: 1},
			{Key: "queue", Value: 1},
			{Key: "priority", Value: -1},
			{Key: "_id", Value: 1},
		}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "reserved_at", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "updated_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("queue/mongostore: create indexes: %w", err)
	}
	return nil
}

func (s *Store) nextID(ctx context.Context) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": s.counter},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("queue/mongostore: next id: %w", err)
	}
	return counter.Seq, nil
}

// Add implements queue.Dispatcher
func (s *Store) Add(ctx context.Context, task string, payload queue.Payload, opts ...queue.EnqueueOption) (int64, error) {
	rec, err := queue.NewRecord(task, payload, s.now(), opts...)
	if err != nil {
		return 0, err
	}
	if rec.ID, err = s.nextID(ctx); err != nil {
		return 0, err
	}
	if _, err := s.jobs.InsertOne(ctx, toDocument(rec)); err != nil {
		return 0, fmt.Errorf("queue/mongostore: add job: %w", err)
	}
	return rec.ID, nil
}

// Eligible implements queue.Reserver
func (s *Store) Eligible(ctx context.Context, queueName string, now time.Time, limit int) ([]int64, error) {
	filter := bson.M{
		"status":       waiting,
		"available_at": bson.M{"$lte": now.UTC()},
	}
	if queueName != "" {
		filter["queue"] = queueName
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "priority", Value: -1}, {Key: "_id", Value: 1}}).
		SetProjection(bson.M{"_id": 1})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := s.jobs.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("queue/mongostore: eligible jobs: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		ID int64 `bson:"_id"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("queue/mongostore: eligible jobs decode: %w", err)
	}

	ids := make([]int64, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	return ids, nil
}

// Reserve implements queue.Reserver
func (s *Store) Reserve(ctx context.Context, id int64, now time.Time, owner string) (*queue.Record, error) {
	at := now.UTC()
	rec, err := s.findOneAndUpdate(ctx,
		bson.M{"_id": id, "status": waiting, "available_at": bson.M{"$lte": at}},
		bson.M{"$set": bson.M{
			"status":      queue.StatusProcessing.String(),
			"reserved_at": at,
			"reserved_by": owner,
			"updated_at":  at,
		}},
	)
	if err != nil {
		return nil, fmt.Errorf("queue/mongostore: reserve job %d: %w", id, err)
	}
	return rec, nil
}

// Complete implements queue.Reserver
func (s *Store) Complete(ctx context.Context, id int64, attempts int) (bool, error) {
	return s.settle(ctx, id, bson.M{
		"status":    queue.StatusCompleted.String(),
		"attempts":  attempts,
		"exception": "",
	})
}

// Release implements queue.Reserver
func (s *Store) Release(ctx context.Context, id int64, attempts int, availableAt time.Time) (bool, error) {
	return s.settle(ctx, id, bson.M{
		"status":       queue.StatusPending.String(),
		"attempts":     attempts,
		"available_at": availableAt.UTC(),
		"exception":    "",
	})
}

// Fail implements queue.Reserver
func (s *Store) Fail(ctx context.Context, id int64, attempts int, exception string) (bool, error) {
	return s.settle(ctx, id, bson.M{
		"status":    queue.StatusFailed.String(),
		"attempts":  attempts,
		"exception": exception,
	})
}

func (s *Store) settle(ctx context.Context, id int64, set bson.M) (bool, error) {
	set["reserved_at"] = nil
	set["reserved_by"] = ""
	set["updated_at"] = s.now().UTC()

	res, err := s.jobs.UpdateOne(ctx,
		bson.M{"_id": id, "status": queue.StatusProcessing.String()},
		bson.M{"$set": set},
	)
	if err != nil {
		return false, fmt.Errorf("queue/mongostore: settle job %d: %w", id, err)
	}
	return res.MatchedCount == 1, nil
}

// Stuck implements queue.Reserver
func (s *Store) Stuck(ctx context.Context, reservedBefore time.Time) ([]*queue.Record, error) {
	return s.find(ctx,
		bson.M{"status": queue.StatusProcessing.String(), "reserved_at": bson.M{"$lt": reservedBefore.UTC()}},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}),
	)
}

// Find implements queue.Finder
func (s *Store) Find(ctx context.Context, id int64) (*queue.Record, error) {
	rec, err := s.findOne(ctx, bson.M{"_id": id})
	if err != nil {
		return nil, fmt.Errorf("queue/mongostore: find job %d: %w", id, err)
	}
	return rec, nil
}

// Stats implements queue.StatsReader
func (s *Store) Stats(ctx context.Context, queueName string) (queue.Stats, error) {
	match := bson.M{}
	if queueName != "" {
		match["queue"] = queueName
	}

	cursor, err := s.jobs.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$status"},
			{Key: "count", Value: bson.M{"$sum": 1}},
		}}},
	})
	if err != nil {
		return queue.Stats{}, fmt.Errorf("queue/mongostore: stats: %w", err)
	}
	defer cursor.Close(ctx)

	var groups []struct {
		Status string `bson:"_id"`
		Count  int64  `bson:"count"`
	}
	if err := cursor.All(ctx, &groups); err != nil {
		return queue.Stats{}, fmt.Errorf("queue/mongostore: stats decode: %w", err)
	}

	var stats queue.Stats
	for _, g := range groups {
		status, err := queue.ParseStatus(g.Status)
		if err != nil {
			return queue.Stats{}, err
		}
		stats.Add(status, g.Count)
	}
	return stats, nil
}

// FailedJobs implements queue.FailedJobStore
func (s *Store) FailedJobs(ctx context.Context, limit, offset int) ([]*queue.Record, error) {
	if limit <= 0 {
		limit = queue.DefaultFailedJobsLimit
	}
	return s.find(ctx,
		bson.M{"status": queue.StatusFailed.String()},
		options.Find().
			SetSort(bson.D{{Key: "updated_at", Value: -1}, {Key: "_id", Value: -1}}).
			SetSkip(int64(max(offset, 0))).
			SetLimit(int64(limit)),
	)
}

// FailedJob implements queue.FailedJobStore
func (s *Store) FailedJob(ctx context.Context, id int64) (*queue.Record, error) {
	rec, err := s.findOne(ctx, bson.M{"_id": id, "status": queue.StatusFailed.String()})
	if err != nil {
		return nil, fmt.Errorf("queue/mongostore: failed job %d: %w", id, err)
	}
	return rec, nil
}

// RetryFailedJob implements queue.FailedJobStore
func (s *Store) RetryFailedJob(ctx context.Context, id int64) (bool, error) {
	res, err := s.jobs.UpdateOne(ctx,
		bson.M{"_id": id, "status": queue.StatusFailed.String()},
		s.requeue(),
	)
	if err != nil {
		return false, fmt.Errorf("queue/mongostore: retry job %d: %w", id, err)
	}
	return res.MatchedCount == 1, nil
}

// RetryAllFailedJobs implements queue.FailedJobStore
func (s *Store) RetryAllFailedJobs(ctx context.Context, queueName string) (int, error) {
	filter := bson.M{"status": queue.StatusFailed.String()}
	if queueName != "" {
		filter["queue"] = queueName
	}
	res, err := s.jobs.UpdateMany(ctx, filter, s.requeue())
	if err != nil {
		return 0, fmt.Errorf("queue/mongostore: retry failed jobs: %w", err)
	}
	return int(res.MatchedCount), nil
}

// requeue gives a failed record a fresh set of attempts
func (s *Store) requeue() bson.M {
	now := s.now().UTC()
	return bson.M{"$set": bson.M{
		"status":       queue.StatusPending.String(),
		"attempts":     0,
		"exception":    "",
		"available_at": now,
		"updated_at":   now,
	}}
}

// PurgeOldJobs implements queue.Maintainer
func (s *Store) PurgeOldJobs(ctx context.Context, olderThan time.Duration) (int, error) {
	return s.deleteMany(ctx, "purge old jobs", bson.M{
		"status":     terminal,
		"updated_at": bson.M{"$lt": s.now().Add(-olderThan).UTC()},
	})
}

// PurgeFailedJobs implements queue.Maintainer
func (s *Store) PurgeFailedJobs(ctx context.Context, queueName string) (int, error) {
	filter := bson.M{"status": queue.StatusFailed.String()}
	if queueName != "" {
		filter["queue"] = queueName
	}
	return s.deleteMany(ctx, "purge failed jobs", filter)
}

// Cleanup implements queue.Maintainer
func (s *Store) Cleanup(ctx context.Context) (int, error) {
	return s.deleteMany(ctx, "cleanup", bson.M{"status": terminal})
}

func (s *Store) deleteMany(ctx context.Context, op string, filter bson.M) (int, error) {
	res, err := s.jobs.DeleteMany(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("queue/mongostore: %s: %w", op, err)
	}
	return int(res.DeletedCount), nil
}

// findOne returns nil without error when nothing matches
func (s *Store) findOne(ctx context.Context, filter bson.M) (*queue.Record, error) {
	var doc jobDocument
	err := s.jobs.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return fromDocument(&doc)
}

func (s *Store) findOneAndUpdate(ctx context.Context, filter, update bson.M) (*queue.Record, error) {
	var doc jobDocument
	err := s.jobs.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return fromDocument(&doc)
}

func (s *Store) find(ctx context.Context, filter bson.M, opts *options.FindOptionsBuilder) ([]*queue.Record, error) {
	cursor, err := s.jobs.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("queue/mongostore: find jobs: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []jobDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("queue/mongostore: decode jobs: %w", err)
	}

	records := make([]*queue.Record, 0, len(docs))
	for i := range docs {
		rec, err := fromDocument(&docs[i])
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}
