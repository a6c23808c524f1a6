package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"firebase.google.com/go/v4/db"
	"github.com/lacuina/content-service/pkg/logger"
)

// FirebaseStore maps paths directly onto a Firebase Realtime Database.
// The Admin SDK has no streaming listener, so watches poll with ETags and
// only emit when the node changed.
type FirebaseStore struct {
	client   *db.Client
	interval time.Duration
}

func NewFirebaseStore(client *db.Client, pollInterval time.Duration) *FirebaseStore {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &FirebaseStore{client: client, interval: pollInterval}
}

func (f *FirebaseStore) ref(path string) (*db.Ref, error) {
	if _, _, err := Split(path); err != nil {
		return nil, err
	}
	return f.client.NewRef(strings.Trim(path, "/")), nil
}

func (f *FirebaseStore) Get(ctx context.Context, path string) (json.RawMessage, error) {
	ref, err := f.ref(path)
	if err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if err := ref.Get(ctx, &raw); err != nil {
		return nil, fmt.Errorf("firebase get %s: %w", path, err)
	}
	if isNull(raw) {
		return nil, ErrNotFound
	}
	return raw, nil
}

func (f *FirebaseStore) Set(ctx context.Context, path string, value json.RawMessage) error {
	ref, err := f.ref(path)
	if err != nil {
		return err
	}
	if isNull(value) {
		return f.Delete(ctx, path)
	}
	if !json.Valid(value) {
		return ErrInvalidValue
	}
	if err := ref.Set(ctx, value); err != nil {
		return fmt.Errorf("firebase set %s: %w", path, err)
	}
	return nil
}

func (f *FirebaseStore) Update(ctx context.Context, path string, fields map[string]interface{}) error {
	ref, err := f.ref(path)
	if err != nil {
		return err
	}
	if err := ref.Update(ctx, fields); err != nil {
		return fmt.Errorf("firebase update %s: %w", path, err)
	}
	return nil
}

// Patch merges inside a transaction; an absent node aborts it.
func (f *FirebaseStore) Patch(ctx context.Context, path string, fields map[string]interface{}) error {
	ref, err := f.ref(path)
	if err != nil {
		return err
	}
	err = ref.Transaction(ctx, func(tn db.TransactionNode) (interface{}, error) {
		var current map[string]interface{}
		if err := tn.Unmarshal(&current); err != nil {
			return nil, ErrInvalidValue
		}
		if current == nil {
			return nil, ErrNotFound
		}
		for k, v := range fields {
			if v == nil {
				delete(current, k)
				continue
			}
			current[k] = v
		}
		return current, nil
	})
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrInvalidValue):
		return err
	case err != nil:
		return fmt.Errorf("firebase patch %s: %w", path, err)
	}
	return nil
}

func (f *FirebaseStore) Push(ctx context.Context, collection string, value json.RawMessage) (string, error) {
	if _, key, err := Split(collection); err != nil || key != "" {
		return "", ErrInvalidPath
	}
	if !json.Valid(value) {
		return "", ErrInvalidValue
	}
	child, err := f.client.NewRef(strings.Trim(collection, "/")).Push(ctx, value)
	if err != nil {
		return "", fmt.Errorf("firebase push %s: %w", collection, err)
	}
	return child.Key, nil
}

func (f *FirebaseStore) Delete(ctx context.Context, path string) error {
	ref, err := f.ref(path)
	if err != nil {
		return err
	}
	if err := ref.Delete(ctx); err != nil {
		return fmt.Errorf("firebase delete %s: %w", path, err)
	}
	return nil
}

func (f *FirebaseStore) Watch(ctx context.Context, path string, fn Listener) (func(), error) {
	ref, err := f.ref(path)
	if err != nil {
		return nil, err
	}
	var raw json.RawMessage
	etag, err := ref.GetWithETag(ctx, &raw)
	if err != nil {
		return nil, fmt.Errorf("firebase watch %s: %w", path, err)
	}
	w := newWatcher(strings.Trim(path, "/"))
	go func() {
		fn(raw, !isNull(raw))
		t := time.NewTicker(f.interval)
		defer t.Stop()
		for {
			select {
			case <-w.done:
				return
			case <-ctx.Done():
				return
			case <-t.C:
			}
			var next json.RawMessage
			changed, tag, err := ref.GetIfChanged(ctx, etag, &next)
			if err != nil {
				if ctx.Err() == nil {
					logger.Warnf("store: poll %s failed: %v", path, err)
				}
				continue
			}
			if !changed || w.stopped() {
				continue
			}
			etag = tag
			fn(next, !isNull(next))
		}
	}()
	return w.stop, nil
}
