package queue

import "time"

// Config holds the queue engine settings.
// Driver connection settings live in the driver packages.
// A non-zero Heartbeat makes the binary dispatch its built-in log task on that interval.
type Config struct {
	Enabled             bool          `env:"QUEUE_ENABLED" envDefault:"true"`
	Driver              string        `env:"QUEUE_DRIVER" envDefault:"memory"`
	Queues              []string      `env:"QUEUE_QUEUES" envSeparator:"," envDefault:"default"`
	JobTimeout          time.Duration `env:"QUEUE_JOB_TIMEOUT" envDefault:"5m"`
	PollInterval        time.Duration `env:"QUEUE_POLL_INTERVAL" envDefault:"5s"`
	BatchSize           int           `env:"QUEUE_BATCH_SIZE" envDefault:"100"`
	MaxExecutionTime    time.Duration `env:"QUEUE_MAX_EXECUTION_TIME" envDefault:"55s"`
	Concurrency         int           `env:"QUEUE_CONCURRENCY" envDefault:"1"`
	RetryJitter         bool          `env:"QUEUE_RETRY_JITTER" envDefault:"true"`
	Retention           time.Duration `env:"QUEUE_RETENTION" envDefault:"168h"`
	MaintenanceInterval time.Duration `env:"QUEUE_MAINTENANCE_INTERVAL" envDefault:"1h"`
	ShutdownTimeout     time.Duration `env:"QUEUE_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	SettleTimeout       time.Duration `env:"QUEUE_SETTLE_TIMEOUT" envDefault:"10s"`
	SchedulerInterval   time.Duration `env:"QUEUE_SCHEDULER_INTERVAL" envDefault:"30s"`
	Heartbeat           time.Duration `env:"QUEUE_HEARTBEAT" envDefault:"0s"`
}

// SweeperOptions maps the config onto sweep behaviour
func (c Config) SweeperOptions() []SweeperOption {
	return []SweeperOption{
		WithJobTimeout(c.JobTimeout),
		WithRetryJitter(c.RetryJitter),
		WithSettleTimeout(c.SettleTimeout),
	}
}

// SchedulerOptions maps the config onto the recurring task scheduler
func (c Config) SchedulerOptions() []SchedulerOption {
	return []SchedulerOption{
		WithCheckInterval(c.SchedulerInterval),
	}
}

// WorkerOptions maps the config onto the worker loop
func (c Config) WorkerOptions() []WorkerOption {
	return []WorkerOption{
		WithQueues(c.Queues...),
		WithPollInterval(c.PollInterval),
		WithBatchSize(c.BatchSize),
		WithMaxExecutionTime(c.MaxExecutionTime),
		WithConcurrency(c.Concurrency),
		WithMaintenance(c.MaintenanceInterval, c.Retention),
	}
}
