// Package queue is a storage-agnostic job queue with priorities, delays and retries.
//
// The package is organised around a handful of small components:
//
//   - Resolver   maps task names to Job instances, optionally through a ResolveHook
//   - Executor   decodes a record's payload, resolves its job and runs it
//   - Store      the driver contract: enqueue, reserve, stats, failed jobs, maintenance
//   - Sweeper    selects eligible records in priority order and applies the retry policy
//   - Manager    one operational surface over a Store and an optional Runner
//   - Bus        the dispatch entry point used by application code
//   - Worker     runs sweeps on an interval and purges old records
//   - Scheduler  dispatches recurring tasks on a Schedule through any Dispatcher
//
// MemoryStorage implements Store in memory. Persistent drivers live in the
// pgstore, redisstore and mongostore sub-packages and share NewRecord for
// normalisation, so every driver clamps priorities and fills defaults identically.
//
// # Lifecycle
//
// A record starts pending, or delayed when enqueued with a positive delay. A sweep
// reserves eligible records (pending or delayed with AvailableAt in the past),
// highest priority first and oldest first within a priority. Successful executions
// become completed. A failed execution returns to pending with AvailableAt pushed
// back by the backoff strategy until MaxAttempts is reached, after which the record
// is failed and keeps the error message in Exception. Failed records only move
// again through RetryFailedJob or RetryAllFailedJobs.
//
// # Usage
//
//	resolver := queue.NewResolver()
//	_ = resolver.RegisterFunc("emails.send", func(ctx context.Context, p queue.Payload) error {
//	    return mailer.Send(ctx, p["to"].(string))
//	})
//
//	exec, _ := queue.NewExecutor(resolver, queue.WithExecutorLogger(queue.NewSlogLogger(log)))
//	store := queue.NewMemoryStorage()
//	manager, _ := queue.NewManager(store, queue.WithRunner(exec))
//
//	bus := queue.NewBus(queue.WithBusDispatcher(store), queue.WithSyncRunner(exec))
//	_, _ = bus.Task("emails.send").OnQueue("emails").Priority(8).Dispatch(ctx, queue.Payload{"to": "a@b.c"})
//
//	res, err := manager.ProcessBatch(ctx, queue.BatchOptions{Size: 100, MaxExecutionTime: time.Minute})
//
// # Errors
//
// Only storage faults are returned as errors from Store and Manager methods. Domain
// conditions such as a missing record are reported through false, nil or zero counts.
// Job errors never escape a sweep; they are recorded on the record.
package queue
