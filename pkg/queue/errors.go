package queue

import "errors"

// Common errors
var (
	// ErrStoreNil is returned when a nil store is provided
	ErrStoreNil = errors.New("store cannot be nil")

	// ErrResolverNil is returned when an executor is built without a resolver
	ErrResolverNil = errors.New("resolver cannot be nil")

	// ErrRunnerNil is returned when a sweep is requested without an executor
	ErrRunnerNil = errors.New("no job executor configured")

	// ErrEmptyTaskName is returned when a job is enqueued or registered without a task name
	ErrEmptyTaskName = errors.New("task name cannot be empty")

	// ErrPayloadEncode is returned when a payload cannot be serialized
	ErrPayloadEncode = errors.New("failed to encode job payload")

	// ErrPayloadDecode is returned when a stored payload cannot be decoded
	ErrPayloadDecode = errors.New("failed to decode job payload")

	// ErrUnresolvableTask is returned when a task name does not map to a known job type
	ErrUnresolvableTask = errors.New("unresolvable job type")

	// ErrContractViolation is returned when a resolved instance does not implement Job
	ErrContractViolation = errors.New("resolved instance does not implement queue.Job")

	// ErrTaskAlreadyRegistered is returned when trying to register a duplicate task
	ErrTaskAlreadyRegistered = errors.New("task already registered")

	// ErrNoDispatcher is returned when dispatch is attempted without an active dispatcher
	ErrNoDispatcher = errors.New("no dispatcher available")

	// ErrAlreadyDispatched is returned when a pending dispatch is reused
	ErrAlreadyDispatched = errors.New("pending dispatch already sent")

	// ErrUnknownStatus is returned when a persisted status name is not recognised
	ErrUnknownStatus = errors.New("unknown job status")

	// ErrJobPanicked wraps a recovered panic raised by a job
	ErrJobPanicked = errors.New("job panicked")

	// ErrJobTimedOut is recorded when a stuck processing record is reclaimed
	ErrJobTimedOut = errors.New("job exceeded the processing timeout")

	// ErrWorkerStarted is returned when Start is called twice
	ErrWorkerStarted = errors.New("worker already started")

	// ErrWorkerNotStarted is returned when Stop is called before Start
	ErrWorkerNotStarted = errors.New("worker not started")

	// ErrScheduleNil is returned when a recurring task is registered without a schedule
	ErrScheduleNil = errors.New("schedule cannot be nil")

	// ErrSchedulerNotConfigured is returned when a scheduler starts with no tasks
	ErrSchedulerNotConfigured = errors.New("scheduler has no tasks")
)
