package backend

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Base wraps a concrete Backend and adds structured duration logging
// around every call, the way registry/storage/driver/base.Base wraps a
// driver's StorageDriver. Embed Base rather than implementing Backend
// directly so new operations added to the interface are proxied for
// free.
type Base struct {
	Backend
	log *logrus.Entry
}

// NewBase wraps inner with logging under the given backend name (used
// only for log attribution, e.g. "localdir", "inmemory", "s3").
func NewBase(name string, inner Backend) *Base {
	return &Base{
		Backend: inner,
		log:     logrus.WithField("backend", name),
	}
}

func (b *Base) Put(ctx context.Context, name string, data []byte) error {
	defer b.logDuration("put", name, time.Now())
	return b.Backend.Put(ctx, name, data)
}

func (b *Base) Get(ctx context.Context, name string) ([]byte, error) {
	defer b.logDuration("get", name, time.Now())
	return b.Backend.Get(ctx, name)
}

func (b *Base) List(ctx context.Context) ([]string, error) {
	defer b.logDuration("list", "", time.Now())
	return b.Backend.List(ctx)
}

func (b *Base) Delete(ctx context.Context, name string) error {
	defer b.logDuration("delete", name, time.Now())
	return b.Backend.Delete(ctx, name)
}

func (b *Base) logDuration(op, name string, started time.Time) {
	b.log.WithFields(logrus.Fields{
		"op":       op,
		"name":     name,
		"duration": time.Since(started),
	}).Debug("backend operation")
}
