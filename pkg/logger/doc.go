// Package logger builds *slog.Logger instances for queuekit processes.
//
// New returns a logger configured through Option functions: output format,
// minimum level, static attributes and ContextExtractor callbacks that pull
// values such as the running job out of context.Context on every record.
//
//	log := logger.New(
//	    logger.WithEnvironment(cfg.Env, "queuekit"),
//	    logger.WithContextExtractors(queue.JobContextExtractor),
//	)
//	logger.SetAsDefault(log)
//
//	log.InfoContext(ctx, "sweep finished",
//	    logger.Queue("emails"),
//	    logger.Count(processed),
//	    logger.Duration(time.Since(start)),
//	)
//
// Attribute helpers in attr.go keep key names consistent. Error and Errors
// yield an empty attribute for nil errors so they can be passed unconditionally.
package logger
