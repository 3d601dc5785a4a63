package queue

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds a fresh job instance for one execution
type Factory func() any

// ResolveHook lets a dependency-injection container supply job instances.
// When installed it replaces direct instantiation entirely.
type ResolveHook func(task string) (any, error)

// Resolver turns task identifiers into executable Job instances.
// It is safe for concurrent use; the hook must be as well.
type Resolver struct {
	mu        sync.RWMutex
	factories map[string]Factory
	hook      ResolveHook
}

// ResolverOption configures a Resolver
type ResolverOption func(*Resolver)

// WithResolveHook installs the instantiation hook
func WithResolveHook(hook ResolveHook) ResolverOption {
	return func(r *Resolver) {
		r.hook = hook
	}
}

// NewResolver creates an empty resolver
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{factories: make(map[string]Factory)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register binds a task name to a factory
func (r *Resolver) Register(task string, factory Factory) error {
	if task == "" {
		return ErrEmptyTaskName
	}
	if factory == nil {
		return fmt.Errorf("%w: nil factory for %q", ErrUnresolvableTask, task)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[task]; exists {
		return fmt.Errorf("%w: %s", ErrTaskAlreadyRegistered, task)
	}
	r.factories[task] = factory
	return nil
}

// RegisterFunc binds a task name to a stateless function job
func (r *Resolver) RegisterFunc(task string, fn JobFunc) error {
	if fn == nil {
		return fmt.Errorf("%w: nil func for %q", ErrUnresolvableTask, task)
	}
	return r.Register(task, func() any { return fn })
}

// RegisterType registers job type T under its qualified type name and returns that name.
// Every resolution instantiates a new T.
//
// This is a package-level generic function because Go does not allow
// generic methods on non-generic receiver types.
func RegisterType[T any, PT interface {
	*T
	Job
}](r *Resolver) (string, error) {
	var zero T
	name := TaskName(zero)
	err := r.Register(name, func() any { return PT(new(T)) })
	return name, err
}

// Resolve returns a Job for task.
// Fails with ErrUnresolvableTask when nothing produces an instance and with
// ErrContractViolation when the instance does not implement Job.
func (r *Resolver) Resolve(task string) (Job, error) {
	if task == "" {
		return nil, ErrEmptyTaskName
	}

	r.mu.RLock()
	hook := r.hook
	factory, ok := r.factories[task]
	r.mu.RUnlock()

	var instance any
	switch {
	case hook != nil:
		v, err := hook(task)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrUnresolvableTask, task, err)
		}
		instance = v
	case ok:
		instance = factory()
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnresolvableTask, task)
	}

	if instance == nil {
		return nil, fmt.Errorf("%w: %s resolved to nil", ErrUnresolvableTask, task)
	}

	job, isJob := instance.(Job)
	if !isJob {
		return nil, fmt.Errorf("%w: %s resolved to %T", ErrContractViolation, task, instance)
	}
	return job, nil
}

// Tasks returns all registered task names in sorted order
func (r *Resolver) Tasks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
