// Package rawstoretest provides an in-memory stand-in for the Mongo
// collections used by the raw store. It understands the filter-and-$set
// upserts the store issues and nothing more.
package rawstoretest

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/kdimtricp/moviewarehouse/internal/rawstore"
)

// Collection keeps documents as bson.M values in insertion order.
type Collection struct {
	mu   sync.Mutex
	docs []bson.M

	// Reject, when set, fails any write whose $set document it returns true for.
	Reject func(doc bson.M) bool
	// Err, when set, is returned from every call.
	Err error
}

// NewCollections returns one empty collection per raw collection name.
func NewCollections() map[string]*Collection {
	out := make(map[string]*Collection, len(rawstore.Collections))
	for _, name := range rawstore.Collections {
		out[name] = &Collection{}
	}
	return out
}

// AsStoreCollections adapts the map for rawstore.NewWithCollections.
func AsStoreCollections(in map[string]*Collection) map[string]rawstore.Collection {
	out := make(map[string]rawstore.Collection, len(in))
	for name, c := range in {
		out[name] = c
	}
	return out
}

func (c *Collection) BulkWrite(ctx context.Context, models []mongo.WriteModel, opts ...*options.BulkWriteOptions) (*mongo.BulkWriteResult, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	if len(models) == 0 {
		return nil, mongo.ErrEmptySlice
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	res := &mongo.BulkWriteResult{UpsertedIDs: make(map[int64]interface{})}
	var writeErrs []mongo.BulkWriteError

	for i, m := range models {
		um, ok := m.(*mongo.UpdateOneModel)
		if !ok {
			writeErrs = append(writeErrs, writeError(i, m, "unsupported write model"))
			continue
		}

		filter, err := toMap(um.Filter)
		if err != nil {
			writeErrs = append(writeErrs, writeError(i, m, err.Error()))
			continue
		}
		update, err := toMap(um.Update)
		if err != nil {
			writeErrs = append(writeErrs, writeError(i, m, err.Error()))
			continue
		}
		set, err := toMap(update["$set"])
		if err != nil {
			writeErrs = append(writeErrs, writeError(i, m, "update must be a $set document"))
			continue
		}

		if c.Reject != nil && c.Reject(set) {
			writeErrs = append(writeErrs, writeError(i, m, "document failed validation"))
			continue
		}

		idx := c.match(filter)
		if idx < 0 {
			if um.Upsert == nil || !*um.Upsert {
				continue
			}
			doc := bson.M{}
			for k, v := range filter {
				doc[k] = v
			}
			for k, v := range set {
				doc[k] = v
			}
			c.docs = append(c.docs, doc)
			res.UpsertedCount++
			res.UpsertedIDs[int64(i)] = len(c.docs) - 1
			continue
		}

		res.MatchedCount++
		changed := false
		for k, v := range set {
			if !reflect.DeepEqual(c.docs[idx][k], v) {
				c.docs[idx][k] = v
				changed = true
			}
		}
		if changed {
			res.ModifiedCount++
		}
	}

	if len(writeErrs) > 0 {
		return res, mongo.BulkWriteException{WriteErrors: writeErrs}
	}
	return res, nil
}

func (c *Collection) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error) {
	if c.Err != nil {
		return nil, c.Err
	}

	c.mu.Lock()
	docs := make([]interface{}, len(c.docs))
	for i, d := range c.docs {
		docs[i] = d
	}
	c.mu.Unlock()

	return mongo.NewCursorFromDocuments(docs, nil, nil)
}

func (c *Collection) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	if c.Err != nil {
		return 0, c.Err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return int64(len(c.docs)), nil
}

// Seed inserts documents as-is, bypassing the upsert path.
func (c *Collection) Seed(docs ...interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, d := range docs {
		m, err := toMap(d)
		if err != nil {
			return err
		}
		c.docs = append(c.docs, m)
	}
	return nil
}

// Docs returns a snapshot of the stored documents.
func (c *Collection) Docs() []bson.M {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]bson.M, len(c.docs))
	copy(out, c.docs)
	return out
}

func (c *Collection) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.docs)
}

func (c *Collection) match(filter bson.M) int {
	for i, doc := range c.docs {
		ok := true
		for k, v := range filter {
			if !reflect.DeepEqual(doc[k], v) {
				ok = false
				break
			}
		}
		if ok {
			return i
		}
	}
	return -1
}

func writeError(index int, m mongo.WriteModel, msg string) mongo.BulkWriteError {
	return mongo.BulkWriteError{
		WriteError: mongo.WriteError{Index: index, Code: 121, Message: msg},
		Request:    m,
	}
}

// toMap round-trips v through BSON so filters and documents compare with the
// same value types.
func toMap(v interface{}) (bson.M, error) {
	if v == nil {
		return nil, errors.New("nil document")
	}
	return roundTrip(v)
}

func roundTrip(v interface{}) (bson.M, error) {
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	var out bson.M
	if err := bson.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	return out, nil
}
