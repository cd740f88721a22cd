// Package storage defines the document-store port the realm core is
// written against: records addressed by a store-assigned identifier,
// queried by equality/membership conditions, with an atomic
// append-to-list-field primitive as the only multi-writer-safe update.
package storage

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// ErrNotFound is returned by Get and FindOne when no record matches.
var ErrNotFound = errors.New("record not found")

// Record is implemented by every persistable type. Identifiers are
// opaque and assigned by the store on first save.
type Record interface {
	CollectionName() string
	RecordID() string
	SetRecordID(id string)
}

// Store is the persistence port. Multi-record operations carry no
// transaction: a failure partway through a sequence of calls leaves the
// completed calls committed.
type Store interface {
	// Save inserts or replaces rec by its record id, assigning one if
	// the record has none yet.
	Save(ctx context.Context, rec Record) error
	// Get loads the record with the given id into rec, or ErrNotFound.
	Get(ctx context.Context, rec Record, id string) error
	// FindOne loads the first record matching q into rec, or ErrNotFound.
	FindOne(ctx context.Context, rec Record, q *Query) error
	// FindAll appends every matching record to out, which must be a
	// pointer to a slice of record pointers (e.g. *[]*domain.Role).
	FindAll(ctx context.Context, out any, q *Query) error
	// Delete removes rec by its record id. Deleting an absent record is
	// not an error.
	Delete(ctx context.Context, rec Record) error
	// DeleteAll removes every record in the collection matching q.
	DeleteAll(ctx context.Context, collection string, q *Query) error
	// PushToList appends value to the named list field of the stored
	// record, atomically at the single-record level, and mirrors the
	// append on rec. No duplicate check is performed.
	PushToList(ctx context.Context, rec Record, field string, value string) error
}

// Query is a conjunction of field equality conditions, optionally
// combined with a single "field value is one of these ids" condition.
// Field names are the stored (bson tag) names.
type Query struct {
	eq       map[string]any
	inField  string
	inValues []string
}

// NewQuery returns an empty query matching every record in a collection.
func NewQuery() *Query {
	return &Query{eq: make(map[string]any)}
}

// Eq adds an equality condition and returns the query for chaining.
func (q *Query) Eq(field string, value any) *Query {
	q.eq[field] = value
	return q
}

// In constrains field to the given value set and returns the query for
// chaining. Only one membership condition is supported per query.
func (q *Query) In(field string, values []string) *Query {
	q.inField = field
	q.inValues = values
	return q
}

// EqConditions exposes the equality conditions to store implementations.
func (q *Query) EqConditions() map[string]any { return q.eq }

// InCondition exposes the membership condition, if any.
func (q *Query) InCondition() (field string, values []string, ok bool) {
	return q.inField, q.inValues, q.inField != ""
}

// CollectionFor derives the collection name from a FindAll destination,
// a *[]*T where *T implements Record.
func CollectionFor(out any) (string, error) {
	t := reflect.TypeOf(out)
	if t == nil || t.Kind() != reflect.Ptr || t.Elem().Kind() != reflect.Slice {
		return "", fmt.Errorf("storage: FindAll destination must be a pointer to a slice, got %T", out)
	}
	elem := t.Elem().Elem()
	if elem.Kind() != reflect.Ptr {
		return "", fmt.Errorf("storage: FindAll destination elements must be record pointers, got %s", elem)
	}
	rec, ok := reflect.New(elem.Elem()).Interface().(Record)
	if !ok {
		return "", fmt.Errorf("storage: %s does not implement storage.Record", elem)
	}
	return rec.CollectionName(), nil
}

// MirrorPush appends value to the slice field of rec whose bson tag
// matches field, keeping the in-memory record in sync with a stored
// list append. Store implementations call it after a successful push.
func MirrorPush(rec Record, field, value string) error {
	v := reflect.ValueOf(rec)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("storage: record must be a struct pointer, got %T", rec)
	}
	v = v.Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		tag := strings.Split(t.Field(i).Tag.Get("bson"), ",")[0]
		if tag != field {
			continue
		}
		f := v.Field(i)
		if f.Kind() != reflect.Slice || f.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("storage: field %q of %T is not a string list", field, rec)
		}
		f.Set(reflect.Append(f, reflect.ValueOf(value)))
		return nil
	}
	return fmt.Errorf("storage: %T has no list field %q", rec, field)
}
