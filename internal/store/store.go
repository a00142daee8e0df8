// Package store contains the observable state containers the UI renders
// from. Store methods follow one pattern: identical overlapping calls are
// coalesced, a loading flag is held for the duration of the facade call,
// state changes are applied under the store lock and then announced to
// subscribers, and failures go to the error handler before being returned.
package store

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/portgasray/yunnan-taste-mini-sub000/internal/apperr"
	"github.com/portgasray/yunnan-taste-mini-sub000/internal/loading"
	"github.com/portgasray/yunnan-taste-mini-sub000/internal/storage"
	"github.com/portgasray/yunnan-taste-mini-sub000/pkg/logger"
)

// Deps are the collaborators shared by every store.
type Deps struct {
	Loading *loading.Manager
	Errors  *apperr.Handler
	Storage storage.KV
	Log     *logger.Logger
}

func (d Deps) withDefaults(component string) Deps {
	if d.Log == nil {
		d.Log = logger.NewDefault(component)
	} else {
		d.Log = d.Log.Named(component)
	}
	if d.Loading == nil {
		d.Loading = loading.NewManager()
	}
	if d.Errors == nil {
		d.Errors = apperr.NewHandler(d.Log)
	}
	if d.Storage == nil {
		d.Storage = storage.NewMemory()
	}
	return d
}

// base carries the subscriber list and the shared operation runner.
type base struct {
	deps Deps
	sf   singleflight.Group

	smu    sync.Mutex
	nextID int
	subs   []subscriber
}

type subscriber struct {
	id int
	fn func()
}

func newBase(d Deps, component string) base {
	return base{deps: d.withDefaults(component)}
}

// Subscribe registers fn to run after every state change and returns the
// unregister func.
func (b *base) Subscribe(fn func()) func() {
	b.smu.Lock()
	defer b.smu.Unlock()
	id := b.nextID
	b.nextID++
	b.subs = append(b.subs, subscriber{id: id, fn: fn})
	return func() {
		b.smu.Lock()
		defer b.smu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

func (b *base) notify() {
	b.smu.Lock()
	fns := make([]func(), 0, len(b.subs))
	for _, s := range b.subs {
		fns = append(fns, s.fn)
	}
	b.smu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// op describes one store operation.
type op struct {
	// key coalesces overlapping calls; empty disables coalescing.
	key     string
	loading loading.Type
	message string
	// failure is the toast text used when the error has no category of
	// its own.
	failure string
}

// run executes fn under o. Overlapping calls with the same key share the
// first caller's execution, and its context.
func run[T any](ctx context.Context, b *base, o op, fn func(context.Context) (T, error)) (T, error) {
	exec := func() (any, error) {
		stop := b.deps.Loading.Track(o.loading, o.message)
		defer stop()
		v, err := fn(ctx)
		if err != nil {
			b.report(err, o.failure)
		}
		return v, err
	}

	var (
		v   any
		err error
	)
	if o.key == "" {
		v, err = exec()
	} else {
		v, err, _ = b.sf.Do(o.key, exec)
	}
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// report routes err to the error handler. Cancellation is not a user-facing
// failure.
func (b *base) report(err error, failure string) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		b.deps.Log.WithError(err).Debug("operation canceled")
		return
	}
	b.deps.Errors.Handle(err, failure)
}

// persist writes v under key, logging failures.
func (b *base) persist(ctx context.Context, key string, v any) {
	if err := b.deps.Storage.Set(ctx, key, v); err != nil {
		b.deps.Log.WithError(err).WithField("key", key).Warn("failed to persist state")
	}
}

// restore reads key into dst, logging failures.
func (b *base) restore(ctx context.Context, key string, dst any) bool {
	found, err := b.deps.Storage.Get(ctx, key, dst)
	if err != nil {
		b.deps.Log.WithError(err).WithField("key", key).Warn("failed to restore state")
		return false
	}
	return found
}

// pushRecent puts v at the front of list, dropping an earlier copy and
// anything beyond limit.
func pushRecent(list []string, v string, limit int) []string {
	out := make([]string, 0, len(list)+1)
	out = append(out, v)
	for _, s := range list {
		if s != v {
			out = append(out, s)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
