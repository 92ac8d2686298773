package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/scode/shastity/backend"
	"github.com/scode/shastity/backend/inmemory"
)

func factoryFor(b backend.Backend) BackendFactory {
	return func(ctx context.Context) (backend.Backend, error) {
		return b, nil
	}
}

func TestPutThenGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	b := inmemory.New("")
	q := New(factoryFor(b), 4)

	if err := q.Enqueue(ctx, Put("k", []byte("hello"), nil)); err != nil {
		t.Fatal(err)
	}
	if err := q.Wait(ctx); err != nil {
		t.Fatal(err)
	}

	get := Get("k", nil)
	if err := q.Enqueue(ctx, get); err != nil {
		t.Fatal(err)
	}
	if err := q.Wait(ctx); err != nil {
		t.Fatal(err)
	}

	if !get.Succeeded() {
		t.Fatalf("expected success")
	}
	if string(get.Value().([]byte)) != "hello" {
		t.Fatalf("got %q", get.Value())
	}
}

func TestConcurrencyBounded(t *testing.T) {
	ctx := context.Background()

	var current, max int64
	factory := func(ctx context.Context) (backend.Backend, error) {
		return &countingBackend{current: &current, max: &max}, nil
	}

	q := New(factory, 2)

	var ops []*PutOp
	for i := 0; i < 20; i++ {
		op := Put(fmt.Sprintf("k%d", i), []byte("x"), nil)
		ops = append(ops, op)
		if err := q.Enqueue(ctx, op); err != nil {
			t.Fatal(err)
		}
	}
	if err := q.Wait(ctx); err != nil {
		t.Fatal(err)
	}

	if atomic.LoadInt64(&max) > 2 {
		t.Fatalf("concurrency exceeded bound: saw %d", max)
	}
	for _, op := range ops {
		if !op.Succeeded() {
			t.Fatalf("expected all ops to succeed")
		}
	}
}

type countingBackend struct {
	current, max *int64
}

func (c *countingBackend) Put(ctx context.Context, name string, data []byte) error {
	n := atomic.AddInt64(c.current, 1)
	for {
		old := atomic.LoadInt64(c.max)
		if n <= old || atomic.CompareAndSwapInt64(c.max, old, n) {
			break
		}
	}
	time.Sleep(time.Millisecond)
	atomic.AddInt64(c.current, -1)
	return nil
}
func (c *countingBackend) Get(ctx context.Context, name string) ([]byte, error) { return nil, nil }
func (c *countingBackend) List(ctx context.Context) ([]string, error)          { return nil, nil }
func (c *countingBackend) Delete(ctx context.Context, name string) error       { return nil }
func (c *countingBackend) Exists(ctx context.Context) (bool, error)            { return true, nil }
func (c *countingBackend) Create(ctx context.Context) error                    { return nil }

func TestFailurePoisonsQueue(t *testing.T) {
	ctx := context.Background()
	q := New(factoryFor(&failingBackend{}), 4)

	if err := q.Enqueue(ctx, Put("k", []byte("x"), nil)); err != nil {
		t.Fatal(err)
	}

	err := q.Wait(ctx)
	if err == nil {
		t.Fatalf("expected failure")
	}
	var failed FailedError
	if !errors.As(err, &failed) {
		t.Fatalf("expected FailedError, got %v", err)
	}

	if err := q.Enqueue(ctx, Put("k2", []byte("x"), nil)); err == nil {
		t.Fatalf("expected poisoned queue to reject further enqueues")
	}
}

type failingBackend struct{}

func (f *failingBackend) Put(ctx context.Context, name string, data []byte) error {
	return errors.New("synthetic failure")
}
func (f *failingBackend) Get(ctx context.Context, name string) ([]byte, error) { return nil, nil }
func (f *failingBackend) List(ctx context.Context) ([]string, error)          { return nil, nil }
func (f *failingBackend) Delete(ctx context.Context, name string) error       { return nil }
func (f *failingBackend) Exists(ctx context.Context) (bool, error)            { return true, nil }
func (f *failingBackend) Create(ctx context.Context) error                    { return nil }

func TestCallbackInvokedOnSuccess(t *testing.T) {
	ctx := context.Background()
	b := inmemory.New("")
	q := New(factoryFor(b), 1)

	var mu sync.Mutex
	var gotValue interface{}
	cb := func(v interface{}) {
		mu.Lock()
		gotValue = v
		mu.Unlock()
	}

	if err := q.Enqueue(ctx, Put("k", []byte("data"), cb)); err != nil {
		t.Fatal(err)
	}
	if err := q.Wait(ctx); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	if gotValue != nil {
		t.Fatalf("put callback value should be nil, got %v", gotValue)
	}
}
