// Package store provides the remote document tree the service synchronizes
// with. Paths are either a top-level node ("websiteConfig") or a child of a
// collection ("reservations/<id>"). Values are raw JSON.
package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound     = errors.New("store: node not found")
	ErrInvalidPath  = errors.New("store: invalid path")
	ErrInvalidValue = errors.New("store: value is not valid JSON")
)

// Listener receives the current value of a watched path. exists is false
// when nothing is stored there.
type Listener func(value json.RawMessage, exists bool)

// Store is the contract every backend implements.
type Store interface {
	Get(ctx context.Context, path string) (json.RawMessage, error)
	Set(ctx context.Context, path string, value json.RawMessage) error
	// Update merges fields into the node, creating it when absent.
	Update(ctx context.Context, path string, fields map[string]interface{}) error
	// Patch merges fields into an existing node in one step and fails with
	// ErrNotFound, writing nothing, when the node is absent.
	Patch(ctx context.Context, path string, fields map[string]interface{}) error
	Push(ctx context.Context, collection string, value json.RawMessage) (string, error)
	Delete(ctx context.Context, path string) error
	Watch(ctx context.Context, path string, fn Listener) (func(), error)
}

// newID returns a time-ordered identifier for pushed children.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

// mergeFields applies RTDB update() semantics to an object node: keys are
// replaced, nil values remove the key.
func mergeFields(current json.RawMessage, fields map[string]interface{}) (json.RawMessage, error) {
	obj := map[string]json.RawMessage{}
	if !isNull(current) {
		if err := json.Unmarshal(current, &obj); err != nil {
			return nil, ErrInvalidValue
		}
	}
	for k, v := range fields {
		if k == "" {
			return nil, ErrInvalidPath
		}
		if v == nil {
			delete(obj, k)
			continue
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		obj[k] = b
	}
	return json.Marshal(obj)
}
