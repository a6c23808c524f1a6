package store

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
)

// MemoryStore is an in-process tree used by tests and local development.
type MemoryStore struct {
	mu       sync.RWMutex
	nodes    map[string]json.RawMessage
	watchers map[*watcher]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nodes: make(map[string]json.RawMessage), watchers: make(map[*watcher]struct{})}
}

func (m *MemoryStore) Get(ctx context.Context, path string) (json.RawMessage, error) {
	parent, key, err := Split(path)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if key != "" {
		v, ok := m.nodes[Join(parent, key)]
		if !ok {
			return nil, ErrNotFound
		}
		return append(json.RawMessage(nil), v...), nil
	}
	if v, ok := m.nodes[parent]; ok {
		return append(json.RawMessage(nil), v...), nil
	}
	children := map[string]json.RawMessage{}
	prefix := parent + "/"
	for p, v := range m.nodes {
		if strings.HasPrefix(p, prefix) {
			children[strings.TrimPrefix(p, prefix)] = v
		}
	}
	if len(children) == 0 {
		return nil, ErrNotFound
	}
	return json.Marshal(children)
}

func (m *MemoryStore) Set(ctx context.Context, path string, value json.RawMessage) error {
	parent, key, err := Split(path)
	if err != nil {
		return err
	}
	if isNull(value) {
		return m.Delete(ctx, path)
	}
	if !json.Valid(value) {
		return ErrInvalidValue
	}
	m.mu.Lock()
	if key == "" {
		m.dropChildren(parent)
		m.nodes[parent] = append(json.RawMessage(nil), value...)
	} else {
		m.nodes[Join(parent, key)] = append(json.RawMessage(nil), value...)
	}
	m.mu.Unlock()
	m.broadcast(strings.Trim(path, "/"))
	return nil
}

func (m *MemoryStore) Update(ctx context.Context, path string, fields map[string]interface{}) error {
	return m.update(path, fields, false)
}

func (m *MemoryStore) Patch(ctx context.Context, path string, fields map[string]interface{}) error {
	return m.update(path, fields, true)
}

func (m *MemoryStore) update(path string, fields map[string]interface{}, existing bool) error {
	parent, key, err := Split(path)
	if err != nil {
		return err
	}
	p := parent
	if key != "" {
		p = Join(parent, key)
	}
	m.mu.Lock()
	current, ok := m.nodes[p]
	if existing && !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	merged, err := mergeFields(current, fields)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	m.nodes[p] = merged
	m.mu.Unlock()
	m.broadcast(p)
	return nil
}

func (m *MemoryStore) Push(ctx context.Context, collection string, value json.RawMessage) (string, error) {
	if _, key, err := Split(collection); err != nil || key != "" {
		return "", ErrInvalidPath
	}
	id := newID()
	if err := m.Set(ctx, Join(collection, id), value); err != nil {
		return "", err
	}
	return id, nil
}

func (m *MemoryStore) Delete(ctx context.Context, path string) error {
	parent, key, err := Split(path)
	if err != nil {
		return err
	}
	m.mu.Lock()
	if key == "" {
		delete(m.nodes, parent)
		m.dropChildren(parent)
	} else {
		delete(m.nodes, Join(parent, key))
	}
	m.mu.Unlock()
	m.broadcast(strings.Trim(path, "/"))
	return nil
}

func (m *MemoryStore) Watch(ctx context.Context, path string, fn Listener) (func(), error) {
	if _, _, err := Split(path); err != nil {
		return nil, err
	}
	w := newWatcher(strings.Trim(path, "/"))
	m.mu.Lock()
	m.watchers[w] = struct{}{}
	m.mu.Unlock()
	go w.run(ctx, m.Get, fn)
	return func() {
		m.mu.Lock()
		delete(m.watchers, w)
		m.mu.Unlock()
		w.stop()
	}, nil
}

// dropChildren must be called with mu held.
func (m *MemoryStore) dropChildren(parent string) {
	prefix := parent + "/"
	for p := range m.nodes {
		if strings.HasPrefix(p, prefix) {
			delete(m.nodes, p)
		}
	}
}

func (m *MemoryStore) broadcast(changed string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for w := range m.watchers {
		if related(w.path, changed) {
			w.notify()
		}
	}
}
