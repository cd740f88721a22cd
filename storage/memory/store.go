// Package memory provides an in-memory implementation of the storage
// port. It backs tests and embedded single-process use; records are
// deep-copied through bson so callers never share memory with the store.
package memory

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"

	"go.pilab.hu/realm/storage"
)

// Store is an in-memory document store. Safe for concurrent use; every
// mutation takes the write lock, so PushToList is atomic per record.
type Store struct {
	mu   sync.RWMutex
	data map[string]map[string]bson.Raw // collection -> id -> document
}

var _ storage.Store = (*Store)(nil)

// NewStore returns an empty in-memory store.
func NewStore() *Store {
	return &Store{data: make(map[string]map[string]bson.Raw)}
}

func (s *Store) Save(_ context.Context, rec storage.Record) error {
	if rec.RecordID() == "" {
		rec.SetRecordID(uuid.NewString())
	}
	raw, err := bson.Marshal(rec)
	if err != nil {
		return fmt.Errorf("memory: marshal %s record: %w", rec.CollectionName(), err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collection(rec.CollectionName())[rec.RecordID()] = raw
	return nil
}

func (s *Store) Get(_ context.Context, rec storage.Record, id string) error {
	s.mu.RLock()
	raw, ok := s.collection(rec.CollectionName())[id]
	s.mu.RUnlock()
	if !ok {
		return storage.ErrNotFound
	}
	return bson.Unmarshal(raw, rec)
}

func (s *Store) FindOne(_ context.Context, rec storage.Record, q *storage.Query) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, raw := range s.collection(rec.CollectionName()) {
		ok, err := matches(raw, q)
		if err != nil {
			return err
		}
		if ok {
			return bson.Unmarshal(raw, rec)
		}
	}
	return storage.ErrNotFound
}

func (s *Store) FindAll(_ context.Context, out any, q *storage.Query) error {
	collection, err := storage.CollectionFor(out)
	if err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	slice := reflect.ValueOf(out).Elem()
	for _, raw := range s.collection(collection) {
		ok, err := matches(raw, q)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		elem := reflect.New(slice.Type().Elem().Elem())
		if err := bson.Unmarshal(raw, elem.Interface()); err != nil {
			return fmt.Errorf("memory: decode %s record: %w", collection, err)
		}
		slice.Set(reflect.Append(slice, elem))
	}
	return nil
}

func (s *Store) Delete(_ context.Context, rec storage.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collection(rec.CollectionName()), rec.RecordID())
	return nil
}

func (s *Store) DeleteAll(_ context.Context, collection string, q *storage.Query) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs := s.collection(collection)
	for id, raw := range docs {
		ok, err := matches(raw, q)
		if err != nil {
			return err
		}
		if ok {
			delete(docs, id)
		}
	}
	return nil
}

func (s *Store) PushToList(_ context.Context, rec storage.Record, field, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs := s.collection(rec.CollectionName())
	raw, ok := docs[rec.RecordID()]
	if !ok {
		return storage.ErrNotFound
	}
	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("memory: decode %s record: %w", rec.CollectionName(), err)
	}
	list, _ := doc[field].(bson.A)
	doc[field] = append(list, value)
	updated, err := bson.Marshal(doc)
	if err != nil {
		return fmt.Errorf("memory: marshal %s record: %w", rec.CollectionName(), err)
	}
	docs[rec.RecordID()] = updated
	return storage.MirrorPush(rec, field, value)
}

// collection returns the live document map, creating it on first use.
// Callers must hold the appropriate lock.
func (s *Store) collection(name string) map[string]bson.Raw {
	c, ok := s.data[name]
	if !ok {
		c = make(map[string]bson.Raw)
		s.data[name] = c
	}
	return c
}

func matches(raw bson.Raw, q *storage.Query) (bool, error) {
	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return false, fmt.Errorf("memory: decode record: %w", err)
	}
	if q == nil {
		return true, nil
	}
	for field, want := range q.EqConditions() {
		if !valueEqual(doc[field], want) {
			return false, nil
		}
	}
	if field, values, ok := q.InCondition(); ok {
		have, _ := doc[field].(string)
		found := false
		for _, v := range values {
			if v == have {
				found = true
				break
			}
		}
		if !found {
			return false, nil
		}
	}
	return true, nil
}

// valueEqual compares a decoded bson value against a query operand,
// normalizing integer widths (bson decodes small ints as int32).
func valueEqual(stored, want any) bool {
	if si, ok := asInt64(stored); ok {
		wi, ok := asInt64(want)
		return ok && si == wi
	}
	return stored == want
}

func asInt64(v any) (int64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint()), true
	default:
		return 0, false
	}
}
