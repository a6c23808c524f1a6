package siteconfig

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/lacuina/content-service/internal/store"
	"github.com/lacuina/content-service/pkg/logger"
	"github.com/lacuina/content-service/pkg/metrics"
)

// DocumentPath is where the singleton document lives in the store.
const DocumentPath = "websiteConfig"

var (
	ErrAlreadyStarted = errors.New("siteconfig: synchronizer already started")
	ErrWriteFailed    = errors.New("siteconfig: document write failed")
)

// Patch maps top-level section keys to their new JSON value.
type Patch map[string]json.RawMessage

// Synchronizer keeps one merged, fully populated document current with the
// remote websiteConfig node and fans every adopted value out to listeners.
// Listeners see documents in the order they were adopted.
type Synchronizer struct {
	st store.Store

	mu      sync.RWMutex
	tree    Tree
	doc     Document
	started bool
	cancel  func()

	lmu       sync.Mutex
	listeners map[int]func(Document)
	nextID    int

	// adopted documents waiting for delivery; one goroutine drains at a time
	qmu      sync.Mutex
	pending  []Document
	flushing bool

	readyOnce sync.Once
	ready     chan struct{}
}

func NewSynchronizer(st store.Store) *Synchronizer {
	return &Synchronizer{
		st:        st,
		tree:      DefaultTree(),
		doc:       Defaults(),
		listeners: map[int]func(Document){},
		ready:     make(chan struct{}),
	}
}

// Start opens the watch. It may be called once per Synchronizer.
func (s *Synchronizer) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.mu.Unlock()

	cancel, err := s.st.Watch(ctx, DocumentPath, func(raw json.RawMessage, exists bool) {
		s.onEmission(ctx, raw, exists)
	})
	if err != nil {
		s.mu.Lock()
		s.started = false
		s.mu.Unlock()
		return fmt.Errorf("watch %s: %w", DocumentPath, err)
	}
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	logger.Infof("siteconfig: watching %s", DocumentPath)
	return nil
}

// Stop cancels the watch. Listeners receive nothing from the store afterwards.
func (s *Synchronizer) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Ready is closed once the first emission has been adopted.
func (s *Synchronizer) Ready() <-chan struct{} { return s.ready }

// Get returns a copy of the current document.
func (s *Synchronizer) Get() Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Clone()
}

// Raw returns the current document as written to the store, including keys
// Document does not model.
func (s *Synchronizer) Raw() (json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return json.Marshal(s.tree)
}

// Subscribe registers fn for every newly adopted document and returns its
// cancel function.
func (s *Synchronizer) Subscribe(fn func(Document)) func() {
	s.lmu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.lmu.Unlock()
	return func() {
		s.lmu.Lock()
		delete(s.listeners, id)
		s.lmu.Unlock()
	}
}

func (s *Synchronizer) onEmission(ctx context.Context, raw json.RawMessage, exists bool) {
	metrics.ConfigEmissions.Inc()
	defer s.readyOnce.Do(func() { close(s.ready) })

	if !exists {
		logger.Infof("siteconfig: %s missing, writing defaults", DocumentPath)
		t := DefaultTree()
		if err := s.write(ctx, t); err != nil {
			logger.Errorf("siteconfig: seeding defaults: %v", err)
		}
		s.mu.Lock()
		err := s.adoptLocked(t)
		s.mu.Unlock()
		if err != nil {
			logger.Errorf("siteconfig: adopting defaults: %v", err)
		}
		s.flush()
		return
	}

	snap, err := Decode(raw)
	if err != nil {
		logger.Warnf("siteconfig: ignoring emission: %v", err)
		return
	}
	if len(snap.Ignored()) > 0 {
		logger.Debugf("siteconfig: carrying untyped sections %v", snap.Ignored())
	}
	if MigrateFormType(snap) {
		logger.Debugf("siteconfig: derived hero.formType")
	}

	s.mu.Lock()
	next, fallbacks := Merge(s.tree, snap)
	err = s.adoptLocked(next)
	s.mu.Unlock()
	if err != nil {
		logger.Warnf("siteconfig: ignoring emission: %v", err)
	}

	for _, key := range fallbacks {
		logger.Warnf("siteconfig: section %s kept prior value", key)
		metrics.ConfigSectionFallbacks.WithLabelValues(key).Inc()
	}
	s.flush()
}

// adoptLocked makes t current and queues its view for listeners. The caller
// holds mu, so queue order is adoption order.
func (s *Synchronizer) adoptLocked(t Tree) error {
	doc, err := t.Document()
	if err != nil {
		return err
	}
	s.tree = t
	s.doc = doc
	s.qmu.Lock()
	s.pending = append(s.pending, doc.Clone())
	s.qmu.Unlock()
	return nil
}

// flush delivers queued documents. A call made while another goroutine is
// delivering returns at once; that goroutine picks up the new entries.
func (s *Synchronizer) flush() {
	s.qmu.Lock()
	if s.flushing {
		s.qmu.Unlock()
		return
	}
	s.flushing = true
	for len(s.pending) > 0 {
		doc := s.pending[0]
		s.pending = s.pending[1:]
		s.qmu.Unlock()
		s.broadcast(doc)
		s.qmu.Lock()
	}
	s.flushing = false
	s.qmu.Unlock()
}

func (s *Synchronizer) broadcast(doc Document) {
	s.lmu.Lock()
	fns := make([]func(Document), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.lmu.Unlock()
	for _, fn := range fns {
		fn(doc.Clone())
	}
}

// Update applies a patch: every patched section is rebuilt over its default
// section and the rest of the document is kept. The new value is adopted
// before the whole-document write; a failed write is returned and the
// in-memory value stays as patched until the next emission.
func (s *Synchronizer) Update(ctx context.Context, patch Patch) error {
	snap, err := DecodePatch(patch)
	if err != nil {
		return err
	}
	MigrateFormType(snap)

	s.mu.Lock()
	next, fallbacks := ApplyPatch(s.tree, snap)
	if len(fallbacks) > 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrInvalidSection, fallbacks)
	}
	if err := s.adoptLocked(next); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrInvalidSection, err)
	}
	s.mu.Unlock()

	s.flush()
	return s.write(ctx, next)
}

// Replace overwrites the document with t, exactly.
func (s *Synchronizer) Replace(ctx context.Context, t Tree) error {
	t = t.Clone()
	s.mu.Lock()
	err := s.adoptLocked(t)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSection, err)
	}
	s.flush()
	return s.write(ctx, t)
}

func (s *Synchronizer) write(ctx context.Context, t Tree) error {
	b, err := json.Marshal(t)
	if err != nil {
		metrics.ConfigWrites.WithLabelValues("error").Inc()
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	if err := s.st.Set(ctx, DocumentPath, b); err != nil {
		metrics.ConfigWrites.WithLabelValues("error").Inc()
		logger.Errorf("siteconfig: write %s: %v", DocumentPath, err)
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	metrics.ConfigWrites.WithLabelValues("ok").Inc()
	return nil
}
