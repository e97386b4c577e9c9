// Package docstore is the document store the social graph is kept in: named
// collections of keyed documents, nested sub-collections, field-level array
// and counter updates, and atomic multi-document batches.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound      = errors.New("document not found")
	ErrAlreadyExists = errors.New("document already exists")
)

// Fields is the write-side shape of a document. Values may be ServerTimestamp.
type Fields map[string]any

type serverTimestamp struct{}

// ServerTimestamp is replaced by the store's clock when the write is applied.
var ServerTimestamp = serverTimestamp{}

// CollectionRef addresses a top-level collection or a sub-collection of a document.
type CollectionRef struct {
	parent *DocRef
	name   string
}

// DocRef addresses one document inside a collection.
type DocRef struct {
	parent CollectionRef
	id     string
}

func Collection(name string) CollectionRef {
	return CollectionRef{name: name}
}

func (c CollectionRef) Doc(id string) DocRef {
	return DocRef{parent: c, id: id}
}

// Name is the last path segment, e.g. "posts" for users/a@x.com/posts.
func (c CollectionRef) Name() string {
	return c.name
}

// Parent returns the owning document of a sub-collection.
func (c CollectionRef) Parent() (DocRef, bool) {
	if c.parent == nil {
		return DocRef{}, false
	}
	return *c.parent, true
}

func (c CollectionRef) Path() string {
	if c.parent == nil {
		return c.name
	}
	return c.parent.Path() + "/" + c.name
}

func (d DocRef) ID() string {
	return d.id
}

func (d DocRef) Parent() CollectionRef {
	return d.parent
}

func (d DocRef) Collection(name string) CollectionRef {
	parent := d
	return CollectionRef{parent: &parent, name: name}
}

func (d DocRef) Path() string {
	return d.parent.Path() + "/" + d.id
}

// Validate rejects keys that would break path addressing in any backend.
func (d DocRef) Validate() error {
	if d.id == "" {
		return fmt.Errorf("empty document id in %s", d.parent.Path())
	}
	if strings.Contains(d.id, "/") {
		return fmt.Errorf("document id %q must not contain '/'", d.id)
	}
	return nil
}

type Op int

const (
	OpSet Op = iota
	OpArrayUnion
	OpArrayRemove
	OpIncrement
	OpIncrementFloor
)

func (o Op) String() string {
	switch o {
	case OpSet:
		return "set"
	case OpArrayUnion:
		return "arrayUnion"
	case OpArrayRemove:
		return "arrayRemove"
	case OpIncrement:
		return "increment"
	case OpIncrementFloor:
		return "incrementFloor"
	}
	return fmt.Sprintf("op(%d)", int(o))
}

// Update is one field-level operation. Updates are upserting: a missing
// document is created holding only the updated fields.
type Update struct {
	Field  string
	Op     Op
	Value  any
	Values []any
	Floor  int64
}

func Set(field string, value any) Update {
	return Update{Field: field, Op: OpSet, Value: value}
}

// ArrayUnion adds values not already present. With no values it only makes
// sure the field exists as an array.
func ArrayUnion(field string, values ...any) Update {
	return Update{Field: field, Op: OpArrayUnion, Values: values}
}

func ArrayRemove(field string, values ...any) Update {
	return Update{Field: field, Op: OpArrayRemove, Values: values}
}

func Increment(field string, n int64) Update {
	return Update{Field: field, Op: OpIncrement, Value: n}
}

// IncrementFloor adds n but never leaves the field below floor. Backends read
// and write the field in one atomic step, so concurrent callers cannot push
// it past the floor.
func IncrementFloor(field string, n, floor int64) Update {
	return Update{Field: field, Op: OpIncrementFloor, Value: n, Floor: floor}
}

// HasFloor reports whether any update needs the current value to be read
// before it can be written.
func HasFloor(updates []Update) bool {
	for _, u := range updates {
		if u.Op == OpIncrementFloor {
			return true
		}
	}
	return false
}

// Snapshot is a read document.
type Snapshot interface {
	Ref() DocRef
	DataTo(v any) error
}

type Direction int

const (
	Asc Direction = iota
	Desc
)

type QueryOptions struct {
	OrderBy   string
	Direction Direction
}

type QueryOption func(*QueryOptions)

// OrderBy sorts by a top-level field. Without it results come back in
// insertion order.
func OrderBy(field string, dir Direction) QueryOption {
	return func(o *QueryOptions) {
		o.OrderBy = field
		o.Direction = dir
	}
}

func BuildQueryOptions(opts ...QueryOption) QueryOptions {
	var o QueryOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type Store interface {
	Get(ctx context.Context, ref DocRef) (Snapshot, error)
	// Create fails with ErrAlreadyExists when the document is present.
	Create(ctx context.Context, ref DocRef, fields Fields) error
	Set(ctx context.Context, ref DocRef, fields Fields, merge bool) error
	Update(ctx context.Context, ref DocRef, updates ...Update) error
	Add(ctx context.Context, coll CollectionRef, fields Fields) (DocRef, error)
	Query(ctx context.Context, coll CollectionRef, opts ...QueryOption) ([]Snapshot, error)
	Batch() Batch
	Ping(ctx context.Context) error
	Close() error
}

// Batch collects writes that Commit applies all-or-nothing.
type Batch interface {
	Set(ref DocRef, fields Fields, merge bool)
	Update(ref DocRef, updates ...Update)
	Len() int
	Commit(ctx context.Context) error
}

// GetOrCreate returns the document at ref, creating it from defaults first
// when it does not exist. created reports whether this call created it.
func GetOrCreate(ctx context.Context, s Store, ref DocRef, defaults Fields) (snap Snapshot, created bool, err error) {
	snap, err = s.Get(ctx, ref)
	if err == nil {
		return snap, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	err = s.Create(ctx, ref, defaults)
	switch {
	case err == nil:
		created = true
	case errors.Is(err, ErrAlreadyExists):
		// lost the race to another writer, read what they created
	default:
		return nil, false, fmt.Errorf("create %s: %w", ref.Path(), err)
	}

	snap, err = s.Get(ctx, ref)
	if err != nil {
		return nil, false, err
	}
	return snap, created, nil
}
