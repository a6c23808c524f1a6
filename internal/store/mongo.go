package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/lacuina/content-service/pkg/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore keeps every node as one document in a collection:
// {_id: path, parent: collection-or-empty, value: <bson>}.
// Watches use change streams, which require a replica set.
type MongoStore struct {
	col *mongo.Collection
}

type mongoNode struct {
	ID     string        `bson:"_id"`
	Parent string        `bson:"parent"`
	Value  bson.RawValue `bson:"value"`
}

func NewMongoStore(col *mongo.Collection) *MongoStore {
	// children are listed by parent
	idxModel := mongo.IndexModel{Keys: bson.D{{Key: "parent", Value: 1}}}
	if _, err := col.Indexes().CreateOne(context.Background(), idxModel); err != nil {
		logger.Warnf("store: create parent index: %v", err)
	}
	return &MongoStore{col: col}
}

// toBSON converts any JSON value into a BSON value through extended JSON.
func toBSON(raw json.RawMessage) (interface{}, error) {
	var d bson.D
	wrapped := append(append([]byte(`{"v":`), raw...), '}')
	if err := bson.UnmarshalExtJSON(wrapped, false, &d); err != nil {
		return nil, ErrInvalidValue
	}
	if len(d) != 1 {
		return nil, ErrInvalidValue
	}
	return d[0].Value, nil
}

func fromBSON(rv bson.RawValue) (json.RawMessage, error) {
	b, err := bson.MarshalExtJSON(bson.D{{Key: "v", Value: rv}}, false, false)
	if err != nil {
		return nil, err
	}
	var w struct {
		V json.RawMessage `json:"v"`
	}
	if err := json.Unmarshal(b, &w); err != nil {
		return nil, err
	}
	return w.V, nil
}

func (m *MongoStore) Get(ctx context.Context, path string) (json.RawMessage, error) {
	parent, key, err := Split(path)
	if err != nil {
		return nil, err
	}
	id := parent
	if key != "" {
		id = Join(parent, key)
	}
	var n mongoNode
	err = m.col.FindOne(ctx, bson.M{"_id": id}).Decode(&n)
	if err == nil {
		return fromBSON(n.Value)
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("mongo get %s: %w", path, err)
	}
	if key != "" {
		return nil, ErrNotFound
	}
	cur, err := m.col.Find(ctx, bson.M{"parent": parent})
	if err != nil {
		return nil, fmt.Errorf("mongo list %s: %w", path, err)
	}
	defer cur.Close(ctx)
	children := map[string]json.RawMessage{}
	for cur.Next(ctx) {
		var c mongoNode
		if err := cur.Decode(&c); err != nil {
			return nil, err
		}
		v, err := fromBSON(c.Value)
		if err != nil {
			return nil, err
		}
		children[strings.TrimPrefix(c.ID, parent+"/")] = v
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	if len(children) == 0 {
		return nil, ErrNotFound
	}
	return json.Marshal(children)
}

func (m *MongoStore) Set(ctx context.Context, path string, value json.RawMessage) error {
	parent, key, err := Split(path)
	if err != nil {
		return err
	}
	if isNull(value) {
		return m.Delete(ctx, path)
	}
	v, err := toBSON(value)
	if err != nil {
		return err
	}
	id, owner := parent, ""
	if key != "" {
		id, owner = Join(parent, key), parent
	} else if _, err := m.col.DeleteMany(ctx, bson.M{"parent": parent}); err != nil {
		return fmt.Errorf("mongo set %s: %w", path, err)
	}
	doc := bson.D{{Key: "_id", Value: id}, {Key: "parent", Value: owner}, {Key: "value", Value: v}}
	if _, err := m.col.ReplaceOne(ctx, bson.M{"_id": id}, doc, options.Replace().SetUpsert(true)); err != nil {
		return fmt.Errorf("mongo set %s: %w", path, err)
	}
	return nil
}

func (m *MongoStore) Update(ctx context.Context, path string, fields map[string]interface{}) error {
	return m.update(ctx, path, fields, true)
}

// Patch never upserts: a missing document matches nothing.
func (m *MongoStore) Patch(ctx context.Context, path string, fields map[string]interface{}) error {
	return m.update(ctx, path, fields, false)
}

func (m *MongoStore) update(ctx context.Context, path string, fields map[string]interface{}, upsert bool) error {
	parent, key, err := Split(path)
	if err != nil {
		return err
	}
	id, owner := parent, ""
	if key != "" {
		id, owner = Join(parent, key), parent
	}
	set := bson.D{}
	unset := bson.D{}
	for k, fv := range fields {
		if k == "" || strings.ContainsAny(k, forbiddenChars) {
			return ErrInvalidPath
		}
		if fv == nil {
			unset = append(unset, bson.E{Key: "value." + k, Value: ""})
			continue
		}
		b, err := json.Marshal(fv)
		if err != nil {
			return err
		}
		bv, err := toBSON(b)
		if err != nil {
			return err
		}
		set = append(set, bson.E{Key: "value." + k, Value: bv})
	}
	upd := bson.D{{Key: "$setOnInsert", Value: bson.D{{Key: "parent", Value: owner}}}}
	if len(set) > 0 {
		upd = append(upd, bson.E{Key: "$set", Value: set})
	}
	if len(unset) > 0 {
		upd = append(upd, bson.E{Key: "$unset", Value: unset})
	}
	res, err := m.col.UpdateOne(ctx, bson.M{"_id": id}, upd, options.Update().SetUpsert(upsert))
	if err != nil {
		return fmt.Errorf("mongo update %s: %w", path, err)
	}
	if !upsert && res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoStore) Push(ctx context.Context, collection string, value json.RawMessage) (string, error) {
	if _, key, err := Split(collection); err != nil || key != "" {
		return "", ErrInvalidPath
	}
	id := newID()
	if err := m.Set(ctx, Join(collection, id), value); err != nil {
		return "", err
	}
	return id, nil
}

func (m *MongoStore) Delete(ctx context.Context, path string) error {
	parent, key, err := Split(path)
	if err != nil {
		return err
	}
	if key != "" {
		_, err = m.col.DeleteOne(ctx, bson.M{"_id": Join(parent, key)})
	} else {
		_, err = m.col.DeleteMany(ctx, bson.M{"$or": bson.A{bson.M{"_id": parent}, bson.M{"parent": parent}}})
	}
	if err != nil {
		return fmt.Errorf("mongo delete %s: %w", path, err)
	}
	return nil
}

func (m *MongoStore) Watch(ctx context.Context, path string, fn Listener) (func(), error) {
	if _, _, err := Split(path); err != nil {
		return nil, err
	}
	path = strings.Trim(path, "/")
	match := bson.D{{Key: "$match", Value: bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: "documentKey._id", Value: path}},
		bson.D{{Key: "documentKey._id", Value: bson.D{{Key: "$regex", Value: "^" + regexp.QuoteMeta(path) + "/"}}}},
	}}}}}
	wctx, cancel := context.WithCancel(ctx)
	cs, err := m.col.Watch(wctx, mongo.Pipeline{match})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("mongo watch %s: %w", path, err)
	}
	w := newWatcher(path)
	go func() {
		backoff := time.Second
		for {
			for cs.Next(wctx) {
				w.notify()
			}
			if wctx.Err() != nil {
				_ = cs.Close(context.Background())
				return
			}
			logger.Warnf("store: change stream on %s ended: %v; reopening in %s", path, cs.Err(), backoff)
			_ = cs.Close(context.Background())
			select {
			case <-wctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			next, err := m.col.Watch(wctx, mongo.Pipeline{match})
			if err != nil {
				logger.Warnf("store: reopen change stream on %s: %v", path, err)
				continue
			}
			cs = next
			backoff = time.Second
			// writes may have happened while the stream was down
			w.notify()
		}
	}()
	go w.run(wctx, m.Get, fn)
	return func() {
		w.stop()
		cancel()
	}, nil
}
