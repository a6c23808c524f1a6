package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps top-level nodes as strings and collections as hashes.
// Every write publishes the changed path on a pub/sub channel so watches in
// any process see it.
type RedisStore struct {
	client  *redis.Client
	prefix  string
	channel string
}

// NewRedisStore creates a Redis-backed store. Prefix may be empty.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "site:"
	}
	return &RedisStore{client: client, prefix: prefix, channel: prefix + "changes"}
}

func (r *RedisStore) nodeKey(path string) string     { return r.prefix + "node:" + path }
func (r *RedisStore) childrenKey(coll string) string { return r.prefix + "children:" + coll }

func (r *RedisStore) Get(ctx context.Context, path string) (json.RawMessage, error) {
	parent, key, err := Split(path)
	if err != nil {
		return nil, err
	}
	if key != "" {
		b, err := r.client.HGet(ctx, r.childrenKey(parent), key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("redis hget %s: %w", path, err)
		}
		return b, nil
	}
	b, err := r.client.Get(ctx, r.nodeKey(parent)).Bytes()
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis get %s: %w", path, err)
	}
	all, err := r.client.HGetAll(ctx, r.childrenKey(parent)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall %s: %w", path, err)
	}
	if len(all) == 0 {
		return nil, ErrNotFound
	}
	children := make(map[string]json.RawMessage, len(all))
	for k, v := range all {
		children[k] = json.RawMessage(v)
	}
	return json.Marshal(children)
}

func (r *RedisStore) Set(ctx context.Context, path string, value json.RawMessage) error {
	parent, key, err := Split(path)
	if err != nil {
		return err
	}
	if isNull(value) {
		return r.Delete(ctx, path)
	}
	if !json.Valid(value) {
		return ErrInvalidValue
	}
	if key != "" {
		err = r.client.HSet(ctx, r.childrenKey(parent), key, []byte(value)).Err()
	} else {
		_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Del(ctx, r.childrenKey(parent))
			p.Set(ctx, r.nodeKey(parent), []byte(value), 0)
			return nil
		})
	}
	if err != nil {
		return fmt.Errorf("redis set %s: %w", path, err)
	}
	return r.publish(ctx, path)
}

func (r *RedisStore) Update(ctx context.Context, path string, fields map[string]interface{}) error {
	parent, key, err := Split(path)
	if err != nil {
		return err
	}
	current, err := r.Get(ctx, path)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	merged, err := mergeFields(current, fields)
	if err != nil {
		return err
	}
	if key != "" {
		err = r.client.HSet(ctx, r.childrenKey(parent), key, []byte(merged)).Err()
	} else {
		err = r.client.Set(ctx, r.nodeKey(parent), []byte(merged), 0).Err()
	}
	if err != nil {
		return fmt.Errorf("redis update %s: %w", path, err)
	}
	return r.publish(ctx, path)
}

// Patch runs the read-merge-write under WATCH so a node deleted in between
// aborts the write instead of being recreated.
func (r *RedisStore) Patch(ctx context.Context, path string, fields map[string]interface{}) error {
	parent, key, err := Split(path)
	if err != nil {
		return err
	}
	watched := r.nodeKey(parent)
	if key != "" {
		watched = r.childrenKey(parent)
	}
	txf := func(tx *redis.Tx) error {
		var current []byte
		var err error
		if key != "" {
			current, err = tx.HGet(ctx, watched, key).Bytes()
		} else {
			current, err = tx.Get(ctx, watched).Bytes()
		}
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		merged, err := mergeFields(current, fields)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			if key != "" {
				p.HSet(ctx, watched, key, []byte(merged))
			} else {
				p.Set(ctx, watched, []byte(merged), 0)
			}
			return nil
		})
		return err
	}
	for attempt := 0; attempt < 3; attempt++ {
		err = r.client.Watch(ctx, txf, watched)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrInvalidValue), errors.Is(err, ErrInvalidPath):
		return err
	case err != nil:
		return fmt.Errorf("redis patch %s: %w", path, err)
	}
	return r.publish(ctx, path)
}

func (r *RedisStore) Push(ctx context.Context, collection string, value json.RawMessage) (string, error) {
	if _, key, err := Split(collection); err != nil || key != "" {
		return "", ErrInvalidPath
	}
	id := newID()
	if err := r.Set(ctx, Join(collection, id), value); err != nil {
		return "", err
	}
	return id, nil
}

func (r *RedisStore) Delete(ctx context.Context, path string) error {
	parent, key, err := Split(path)
	if err != nil {
		return err
	}
	if key != "" {
		err = r.client.HDel(ctx, r.childrenKey(parent), key).Err()
	} else {
		err = r.client.Del(ctx, r.nodeKey(parent), r.childrenKey(parent)).Err()
	}
	if err != nil {
		return fmt.Errorf("redis delete %s: %w", path, err)
	}
	return r.publish(ctx, path)
}

func (r *RedisStore) Watch(ctx context.Context, path string, fn Listener) (func(), error) {
	if _, _, err := Split(path); err != nil {
		return nil, err
	}
	sub := r.client.Subscribe(ctx, r.channel)
	// wait for the subscription confirmation so no write is missed
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}
	w := newWatcher(strings.Trim(path, "/"))
	go func() {
		for msg := range sub.Channel() {
			if related(w.path, msg.Payload) {
				w.notify()
			}
		}
	}()
	go w.run(ctx, r.Get, fn)
	return func() {
		w.stop()
		_ = sub.Close()
	}, nil
}

func (r *RedisStore) publish(ctx context.Context, path string) error {
	if err := r.client.Publish(ctx, r.channel, strings.Trim(path, "/")).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}
