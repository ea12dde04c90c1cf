// Package memstore provides an in-memory implementation of the restive
// Collection interface. It is intended for development and testing;
// production deployments should use a persistent store such as
// mongostore.
package memstore

import (
	"context"
	"reflect"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/restive-dev/restive"
)

// Collection stores records in process memory, keyed by the "_id"
// field. Inserted records without an id are assigned a random uuid.
type Collection struct {
	name string

	mu   sync.RWMutex
	docs map[string]restive.Record
}

// NewCollection builds an empty in-memory collection with the given
// name.
func NewCollection(name string) *Collection {
	return &Collection{
		name: name,
		docs: map[string]restive.Record{},
	}
}

func (c *Collection) Name() string { return c.name }

func (c *Collection) Find(_ context.Context, sel restive.Selector, fields ...string) ([]restive.Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := []restive.Record{}
	for _, id := range c.sortedIDs() {
		if matches(c.docs[id], sel) {
			out = append(out, project(c.docs[id], fields))
		}
	}

	return out, nil
}

func (c *Collection) FindOne(_ context.Context, sel restive.Selector, fields ...string) (restive.Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, id := range c.sortedIDs() {
		if matches(c.docs[id], sel) {
			return project(c.docs[id], fields), nil
		}
	}

	return nil, nil
}

func (c *Collection) Insert(_ context.Context, doc restive.Record) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id, _ := doc["_id"].(string)
	if id == "" {
		id = uuid.NewString()
	}
	if _, exists := c.docs[id]; exists {
		return "", errors.Errorf("duplicate id '%s' in collection '%s'", id, c.name)
	}

	stored := project(doc, nil)
	stored["_id"] = id
	c.docs[id] = stored

	return id, nil
}

// Update replaces every matching record with doc, preserving the
// record's id.
func (c *Collection) Update(_ context.Context, sel restive.Selector, doc restive.Record) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for id, existing := range c.docs {
		if !matches(existing, sel) {
			continue
		}

		replacement := project(doc, nil)
		replacement["_id"] = id
		c.docs[id] = replacement
		count++
	}

	return count, nil
}

// Merge sets doc's fields on every matching record, leaving other
// fields in place.
func (c *Collection) Merge(_ context.Context, sel restive.Selector, doc restive.Record) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for _, existing := range c.docs {
		if !matches(existing, sel) {
			continue
		}

		for key, val := range doc {
			if key == "_id" {
				continue
			}
			existing[key] = val
		}
		count++
	}

	return count, nil
}

func (c *Collection) Remove(_ context.Context, sel restive.Selector) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for id, existing := range c.docs {
		if matches(existing, sel) {
			delete(c.docs, id)
			count++
		}
	}

	return count, nil
}

func (c *Collection) sortedIDs() []string {
	ids := make([]string, 0, len(c.docs))
	for id := range c.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return ids
}

func matches(doc restive.Record, sel restive.Selector) bool {
	for key, want := range sel {
		got, ok := doc[key]
		if !ok || !looseEqual(got, want) {
			return false
		}
	}

	return true
}

// looseEqual compares numerically when both sides are numbers, since
// selector coercion produces float64 while stored values may be any
// numeric type.
func looseEqual(a, b interface{}) bool {
	fa, aok := toFloat(a)
	fb, bok := toFloat(b)
	if aok && bok {
		return fa == fb
	}

	return reflect.DeepEqual(a, b)
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// project shallow-copies a record, restricted to the given fields when
// any are named. The id field is always included.
func project(doc restive.Record, fields []string) restive.Record {
	out := restive.Record{}
	if len(fields) == 0 {
		for key, val := range doc {
			out[key] = val
		}
		return out
	}

	if id, ok := doc["_id"]; ok {
		out["_id"] = id
	}
	for _, field := range fields {
		if val, ok := doc[field]; ok {
			out[field] = val
		}
	}

	return out
}
