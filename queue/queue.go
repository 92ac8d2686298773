// Package queue schedules backend operations for asynchronous,
// bounded-concurrency execution. It is the Go counterpart of
// shastity's original storagequeue.py: callers enqueue PUT/GET/DELETE
// operations as fast as they like, Enqueue blocks once max concurrency
// is reached, and Wait blocks until every operation submitted so far
// has completed (or one has failed, in which case Wait and any
// subsequent Enqueue return an error).
//
// The condition-variable-gated slot count mirrors
// registry/storage/driver/base's regulator, generalized from "at most
// N concurrent calls into one driver" to "at most N concurrent
// operations, each against an independently-owned backend instance
// drawn from a small reusable pool" - matching the original's
// backend_factory/__backends cache.
package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/scode/shastity/backend"
)

// Operation is a unit of work the queue can execute against a
// backend. Implementations are produced by the package-level
// constructors (Put, Get, Delete); callers do not implement this
// interface themselves.
type Operation interface {
	fmt.Stringer

	execute(ctx context.Context, b backend.Backend) (interface{}, error)
	setResult(success bool, value interface{}, err error)
}

type base struct {
	mnemonic    string
	description string
	callback    func(interface{})

	mu      sync.Mutex
	done    bool
	success bool
	value   interface{}
	err     error
}

// IsDone reports whether the operation has finished. Safe to call at
// any time.
func (b *base) IsDone() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.done
}

// Succeeded reports whether the operation completed successfully. It
// is only valid to call after the queue's Wait has returned for the
// batch containing this operation.
func (b *base) Succeeded() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.done {
		panic("queue: Succeeded called before operation was done")
	}
	return b.success
}

// Value returns the operation's result. Valid only if Succeeded.
func (b *base) Value() interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.done {
		panic("queue: Value called before operation was done")
	}
	if !b.success {
		panic("queue: Value called on a failed operation")
	}
	return b.value
}

// Err returns the error of a failed operation, or nil.
func (b *base) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

func (b *base) setResult(success bool, value interface{}, err error) {
	b.mu.Lock()
	b.done = true
	b.success = success
	b.value = value
	b.err = err
	b.mu.Unlock()

	if success && b.callback != nil {
		b.callback(value)
	}
}

func (b *base) String() string {
	return fmt.Sprintf("%s %s", b.mnemonic, b.description)
}

// PutOp is the operation produced by Put.
type PutOp struct {
	base
	Name string
	Data []byte
}

func (p *PutOp) execute(ctx context.Context, b backend.Backend) (interface{}, error) {
	return nil, b.Put(ctx, p.Name, p.Data)
}

// Put returns an Operation that writes data under name. callback, if
// non-nil, is invoked with a nil value on success.
func Put(name string, data []byte, callback func(interface{})) *PutOp {
	return &PutOp{
		base: base{
			mnemonic:    "PUT",
			description: fmt.Sprintf("%s (%d bytes)", name, len(data)),
			callback:    callback,
		},
		Name: name,
		Data: data,
	}
}

// GetOp is the operation produced by Get.
type GetOp struct {
	base
	Name string
}

func (g *GetOp) execute(ctx context.Context, b backend.Backend) (interface{}, error) {
	return b.Get(ctx, g.Name)
}

// Get returns an Operation that reads name. On success, callback (if
// non-nil) and Value() receive the read []byte.
func Get(name string, callback func(interface{})) *GetOp {
	return &GetOp{
		base: base{
			mnemonic:    "GET",
			description: name,
			callback:    callback,
		},
		Name: name,
	}
}

// DeleteOp is the operation produced by Delete.
type DeleteOp struct {
	base
	Name string
}

func (d *DeleteOp) execute(ctx context.Context, b backend.Backend) (interface{}, error) {
	return nil, b.Delete(ctx, d.Name)
}

// Delete returns an Operation that removes name.
func Delete(name string, callback func(interface{})) *DeleteOp {
	return &DeleteOp{
		base: base{
			mnemonic:    "DEL",
			description: name,
			callback:    callback,
		},
		Name: name,
	}
}

// FailedError is returned by Enqueue and Wait once any operation has
// failed; the queue refuses further work permanently after that
// point, since retrying in the face of an unknown failure would risk
// masking data loss.
type FailedError struct {
	Cause error
}

func (e FailedError) Error() string {
	return fmt.Sprintf("queue: a previous operation has failed: %v", e.Cause)
}

func (e FailedError) Unwrap() error {
	return e.Cause
}

// BackendFactory constructs a fresh backend instance for the queue's
// internal pool. It must return backends that are independently usable
// concurrently with others produced by the same factory.
type BackendFactory func(ctx context.Context) (backend.Backend, error)

// Queue drives concurrent execution of storage Operations against a
// pool of backend instances, bounding concurrency at maxConcurrency.
// A single Queue must not be shared across unrelated logical
// transactions: once any operation fails, the queue is permanently
// poisoned and every subsequent Enqueue/Wait call fails too.
type Queue struct {
	factory        BackendFactory
	maxConcurrency int
	log            *logrus.Entry

	mu        sync.Mutex
	cond      *sync.Cond
	inflight  map[Operation]struct{}
	backends  []backend.Backend
	failed    bool
	failedErr error
}

// New returns a Queue that executes at most maxConcurrency operations
// at a time, each against a backend obtained from factory (backends
// are pooled and reused across operations, never used concurrently by
// two operations at once).
func New(factory BackendFactory, maxConcurrency int) *Queue {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	q := &Queue{
		factory:        factory,
		maxConcurrency: maxConcurrency,
		log:            logrus.WithField("component", "queue"),
		inflight:       make(map[Operation]struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue schedules op for execution, blocking until a concurrency
// slot is available. It returns FailedError immediately if the queue
// has already been poisoned by an earlier failure.
func (q *Queue) Enqueue(ctx context.Context, op Operation) error {
	q.mu.Lock()
	if q.failed {
		err := FailedError{Cause: q.failedErr}
		q.mu.Unlock()
		return err
	}

	for len(q.inflight) >= q.maxConcurrency {
		q.cond.Wait()
		if q.failed {
			err := FailedError{Cause: q.failedErr}
			q.mu.Unlock()
			return err
		}
	}

	b, err := q.takeBackend(ctx)
	if err != nil {
		q.mu.Unlock()
		return fmt.Errorf("queue: obtaining backend: %w", err)
	}

	q.inflight[op] = struct{}{}
	q.mu.Unlock()

	go q.run(ctx, op, b)
	return nil
}

// takeBackend pops a pooled backend or creates a new one.
// @pre q.mu held
func (q *Queue) takeBackend(ctx context.Context) (backend.Backend, error) {
	if n := len(q.backends); n > 0 {
		b := q.backends[n-1]
		q.backends = q.backends[:n-1]
		return b, nil
	}
	q.log.Debug("instantiating new backend")
	return q.factory(ctx)
}

func (q *Queue) run(ctx context.Context, op Operation, b backend.Backend) {
	q.log.WithField("op", op.String()).Info("performing operation")

	value, err := op.execute(ctx, b)

	success := err == nil
	op.setResult(success, value, err)

	if success {
		q.log.WithField("op", op.String()).Debug("operation done")
	} else {
		q.log.WithFields(logrus.Fields{"op": op.String(), "error": err}).Error("operation failed")
	}

	q.mu.Lock()
	delete(q.inflight, op)
	q.backends = append(q.backends, b)
	if !success && !q.failed {
		q.failed = true
		q.failedErr = err
	}
	q.cond.Broadcast()
	q.mu.Unlock()
}

// Barrier guarantees every operation enqueued before this call
// completes before any enqueued after it is considered scheduled. The
// current implementation simply waits; callers that want non-blocking
// ordering should not rely on that remaining true.
func (q *Queue) Barrier(ctx context.Context) error {
	return q.Wait(ctx)
}

// Wait blocks until every outstanding operation completes, returning
// FailedError if any operation (in this call or a previous one) has
// failed.
func (q *Queue) Wait(ctx context.Context) error {
	q.mu.Lock()
	for len(q.inflight) > 0 {
		q.cond.Wait()
	}
	failed, cause := q.failed, q.failedErr
	q.mu.Unlock()

	if failed {
		return FailedError{Cause: cause}
	}
	return nil
}
