package main

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/queuekit/pkg/queue"
)

// logTask is a built-in task that writes its payload to the log.
// It is used to smoke test a deployment end to end.
const logTask = "queuekit.log"

func registerTasks(r *queue.Resolver, log *slog.Logger) error {
	return r.RegisterFunc(logTask, func(ctx context.Context, payload queue.Payload) error {
		log.InfoContext(ctx, "log task", slog.Any("payload", map[string]any(payload)))
		return nil
	})
}

// newHeartbeat schedules logTask on the first configured queue every cfg.Heartbeat.
// Returns nil when the heartbeat is disabled.
func newHeartbeat(d queue.Dispatcher, cfg queue.Config, log *slog.Logger) (*queue.Scheduler, error) {
	if cfg.Heartbeat <= 0 {
		return nil, nil
	}

	s, err := queue.NewScheduler(d, append(cfg.SchedulerOptions(), queue.WithSchedulerLogger(log))...)
	if err != nil {
		return nil, err
	}

	var target string
	if len(cfg.Queues) > 0 {
		target = cfg.Queues[0]
	}
	err = s.AddTask(logTask, queue.EveryInterval(cfg.Heartbeat),
		queue.WithTaskQueue(target),
		queue.WithTaskMaxAttempts(1),
		queue.WithTaskPayload(queue.Payload{"heartbeat": true}),
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}
