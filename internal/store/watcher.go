package store

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/lacuina/content-service/pkg/logger"
)

type getter func(ctx context.Context, path string) (json.RawMessage, error)

// watcher delivers coalesced emissions for one path on its own goroutine.
// Every signal re-reads the path, so a burst of writes yields at least one
// emission carrying the latest value.
type watcher struct {
	path   string
	signal chan struct{}
	done   chan struct{}
	once   sync.Once
}

func newWatcher(path string) *watcher {
	return &watcher{path: path, signal: make(chan struct{}, 1), done: make(chan struct{})}
}

func (w *watcher) notify() {
	select {
	case w.signal <- struct{}{}:
	default:
	}
}

func (w *watcher) stop() {
	w.once.Do(func() { close(w.done) })
}

func (w *watcher) stopped() bool {
	select {
	case <-w.done:
		return true
	default:
		return false
	}
}

// run emits once immediately, then after every signal until stopped.
func (w *watcher) run(ctx context.Context, get getter, fn Listener) {
	w.notify()
	for {
		select {
		case <-w.done:
			return
		case <-ctx.Done():
			return
		case <-w.signal:
			raw, err := get(ctx, w.path)
			if w.stopped() {
				return
			}
			switch {
			case errors.Is(err, ErrNotFound):
				fn(nil, false)
			case err != nil:
				if ctx.Err() != nil {
					return
				}
				logger.Warnf("store: watch %s read failed: %v", w.path, err)
			default:
				fn(raw, true)
			}
		}
	}
}
