package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lacuina/content-service/pkg/logger"
)

// Collection is a typed view over the children of one collection node.
type Collection[T any] struct {
	st   Store
	name string
}

func NewCollection[T any](st Store, name string) *Collection[T] {
	return &Collection[T]{st: st, name: name}
}

func (c *Collection[T]) Name() string { return c.name }

// Add pushes v under a store-generated id.
func (c *Collection[T]) Add(ctx context.Context, v T) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return c.st.Push(ctx, c.name, b)
}

func (c *Collection[T]) Get(ctx context.Context, id string) (T, error) {
	var v T
	raw, err := c.st.Get(ctx, Join(c.name, id))
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("decode %s/%s: %w", c.name, id, err)
	}
	return v, nil
}

// Put overwrites the child at id.
func (c *Collection[T]) Put(ctx context.Context, id string, v T) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.st.Set(ctx, Join(c.name, id), b)
}

// Patch updates fields of an existing child; ErrNotFound when it is absent.
// A child deleted concurrently is never recreated.
func (c *Collection[T]) Patch(ctx context.Context, id string, fields map[string]interface{}) error {
	return c.st.Patch(ctx, Join(c.name, id), fields)
}

// Delete removes an existing child; ErrNotFound when it is absent. The
// existence check and the delete are separate calls: a child removed in
// between is reported as deleted, which leaves the same end state.
func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	if _, err := c.st.Get(ctx, Join(c.name, id)); err != nil {
		return err
	}
	return c.st.Delete(ctx, Join(c.name, id))
}

// List returns every child keyed by id. Children that fail to decode are
// skipped and logged.
func (c *Collection[T]) List(ctx context.Context) (map[string]T, error) {
	raw, err := c.st.Get(ctx, c.name)
	if errors.Is(err, ErrNotFound) {
		return map[string]T{}, nil
	}
	if err != nil {
		return nil, err
	}
	return c.decodeAll(raw)
}

// Watch emits the whole collection on every change.
func (c *Collection[T]) Watch(ctx context.Context, fn func(map[string]T)) (func(), error) {
	return c.st.Watch(ctx, c.name, func(raw json.RawMessage, exists bool) {
		if !exists {
			fn(map[string]T{})
			return
		}
		items, err := c.decodeAll(raw)
		if err != nil {
			logger.Warnf("store: watch %s: %v", c.name, err)
			return
		}
		fn(items)
	})
}

func (c *Collection[T]) decodeAll(raw json.RawMessage) (map[string]T, error) {
	var children map[string]json.RawMessage
	if err := json.Unmarshal(raw, &children); err != nil {
		return nil, fmt.Errorf("decode %s: %w", c.name, err)
	}
	out := make(map[string]T, len(children))
	for id, b := range children {
		var v T
		if err := json.Unmarshal(b, &v); err != nil {
			logger.Warnf("store: skipping malformed %s/%s: %v", c.name, id, err)
			continue
		}
		out[id] = v
	}
	return out, nil
}
