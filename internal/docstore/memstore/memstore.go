// Package memstore keeps documents in process memory. It backs local
// development (STORE_BACKEND=memory) and the service tests.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"snapjournal/internal/docstore"
)

type document struct {
	seq  int64
	data map[string]any
}

// Hooks let callers observe or fail operations. A non-nil error from a hook
// aborts the operation before anything is written.
type Hooks struct {
	BeforeUpdate func(ref docstore.DocRef) error
	BeforeCommit func(writes int) error
	OnQuery      func(coll docstore.CollectionRef)
}

type Store struct {
	mu    sync.Mutex
	seq   int64
	colls map[string]map[string]*document
	now   func() time.Time
	hooks Hooks
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithHooks(h Hooks) Option {
	return func(s *Store) { s.hooks = h }
}

func New(opts ...Option) *Store {
	s := &Store{
		colls: make(map[string]map[string]*document),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetHooks replaces the hooks of a live store.
func (s *Store) SetHooks(h Hooks) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = h
}

func (s *Store) Get(ctx context.Context, ref docstore.DocRef) (docstore.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.colls[ref.Parent().Path()][ref.ID()]
	if !ok {
		return nil, fmt.Errorf("%s: %w", ref.Path(), docstore.ErrNotFound)
	}
	return snapshot(ref, doc.data)
}

func (s *Store) Create(ctx context.Context, ref docstore.DocRef, fields docstore.Fields) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	data, err := docstore.Resolve(fields, s.now())
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.colls[ref.Parent().Path()][ref.ID()]; ok {
		return fmt.Errorf("%s: %w", ref.Path(), docstore.ErrAlreadyExists)
	}
	s.put(ref, data)
	return nil
}

func (s *Store) Set(ctx context.Context, ref docstore.DocRef, fields docstore.Fields, merge bool) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	data, err := docstore.Resolve(fields, s.now())
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.set(ref, data, merge)
	return nil
}

func (s *Store) Update(ctx context.Context, ref docstore.DocRef, updates ...docstore.Update) error {
	if err := ref.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hooks.BeforeUpdate != nil {
		if err := s.hooks.BeforeUpdate(ref); err != nil {
			return err
		}
	}
	return s.update(ref, updates)
}

func (s *Store) Add(ctx context.Context, coll docstore.CollectionRef, fields docstore.Fields) (docstore.DocRef, error) {
	ref := coll.Doc(uuid.New().String())
	data, err := docstore.Resolve(fields, s.now())
	if err != nil {
		return docstore.DocRef{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(ref, data)
	return ref, nil
}

func (s *Store) Query(ctx context.Context, coll docstore.CollectionRef, opts ...docstore.QueryOption) ([]docstore.Snapshot, error) {
	o := docstore.BuildQueryOptions(opts...)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hooks.OnQuery != nil {
		s.hooks.OnQuery(coll)
	}

	type entry struct {
		id  string
		doc *document
	}
	entries := make([]entry, 0, len(s.colls[coll.Path()]))
	for id, doc := range s.colls[coll.Path()] {
		entries = append(entries, entry{id: id, doc: doc})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].doc.seq < entries[j].doc.seq })
	if o.OrderBy != "" {
		sort.SliceStable(entries, func(i, j int) bool {
			c := docstore.Compare(entries[i].doc.data[o.OrderBy], entries[j].doc.data[o.OrderBy])
			if o.Direction == docstore.Desc {
				return c > 0
			}
			return c < 0
		})
	}

	out := make([]docstore.Snapshot, 0, len(entries))
	for _, e := range entries {
		snap, err := snapshot(coll.Doc(e.id), e.doc.data)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, nil
}

func (s *Store) Batch() docstore.Batch {
	return &batch{store: s}
}

func (s *Store) Ping(ctx context.Context) error {
	return nil
}

func (s *Store) Close() error {
	return nil
}

// Count reports how many documents a collection holds.
func (s *Store) Count(coll docstore.CollectionRef) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.colls[coll.Path()])
}

func (s *Store) put(ref docstore.DocRef, data map[string]any) {
	coll := s.colls[ref.Parent().Path()]
	if coll == nil {
		coll = make(map[string]*document)
		s.colls[ref.Parent().Path()] = coll
	}
	s.seq++
	coll[ref.ID()] = &document{seq: s.seq, data: data}
}

func (s *Store) set(ref docstore.DocRef, data map[string]any, merge bool) {
	existing, ok := s.colls[ref.Parent().Path()][ref.ID()]
	if !ok {
		s.put(ref, data)
		return
	}
	if merge {
		existing.data = docstore.Merge(existing.data, data)
		return
	}
	existing.data = data
}

func (s *Store) update(ref docstore.DocRef, updates []docstore.Update) error {
	existing, ok := s.colls[ref.Parent().Path()][ref.ID()]
	var current map[string]any
	if ok {
		current = cloneMap(existing.data)
	}
	data, err := docstore.Apply(current, updates, s.now())
	if err != nil {
		return err
	}
	if ok {
		existing.data = data
		return nil
	}
	s.put(ref, data)
	return nil
}

type write struct {
	ref     docstore.DocRef
	fields  docstore.Fields
	merge   bool
	updates []docstore.Update
}

type batch struct {
	store  *Store
	writes []write
}

func (b *batch) Set(ref docstore.DocRef, fields docstore.Fields, merge bool) {
	b.writes = append(b.writes, write{ref: ref, fields: fields, merge: merge})
}

func (b *batch) Update(ref docstore.DocRef, updates ...docstore.Update) {
	b.writes = append(b.writes, write{ref: ref, updates: updates})
}

func (b *batch) Len() int {
	return len(b.writes)
}

// Commit applies every write against a copy of the affected collections and
// swaps them in only when all writes succeed.
func (b *batch) Commit(ctx context.Context) error {
	s := b.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hooks.BeforeCommit != nil {
		if err := s.hooks.BeforeCommit(len(b.writes)); err != nil {
			return err
		}
	}

	staged := &Store{colls: make(map[string]map[string]*document), seq: s.seq, now: s.now}
	for _, w := range b.writes {
		path := w.ref.Parent().Path()
		if _, ok := staged.colls[path]; !ok {
			staged.colls[path] = cloneColl(s.colls[path])
		}
	}

	for _, w := range b.writes {
		if err := w.ref.Validate(); err != nil {
			return err
		}
		if w.updates != nil {
			if err := staged.update(w.ref, w.updates); err != nil {
				return err
			}
			continue
		}
		data, err := docstore.Resolve(w.fields, s.now())
		if err != nil {
			return err
		}
		staged.set(w.ref, data, w.merge)
	}

	for path, coll := range staged.colls {
		s.colls[path] = coll
	}
	s.seq = staged.seq
	return nil
}

func snapshot(ref docstore.DocRef, data map[string]any) (docstore.Snapshot, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", ref.Path(), err)
	}
	return docstore.NewJSONSnapshot(ref, raw), nil
}

func cloneColl(coll map[string]*document) map[string]*document {
	out := make(map[string]*document, len(coll))
	for id, doc := range coll {
		out[id] = &document{seq: doc.seq, data: cloneMap(doc.data)}
	}
	return out
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if arr, ok := v.([]any); ok {
			cp := make([]any, len(arr))
			copy(cp, arr)
			out[k] = cp
			continue
		}
		out[k] = v
	}
	return out
}
