// Package firestore is the Cloud Firestore backend. Document paths map one to
// one onto Firestore paths and field ops onto native transforms.
package firestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"snapjournal/internal/docstore"
)

type Store struct {
	client *firestore.Client
}

func New(client *firestore.Client) *Store {
	return &Store{client: client}
}

func (s *Store) doc(ref docstore.DocRef) *firestore.DocumentRef {
	return s.client.Doc(ref.Path())
}

func (s *Store) Get(ctx context.Context, ref docstore.DocRef) (docstore.Snapshot, error) {
	snap, err := s.doc(ref).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("%s: %w", ref.Path(), docstore.ErrNotFound)
		}
		return nil, fmt.Errorf("get %s: %w", ref.Path(), err)
	}
	return snapshot(ref, snap.Data())
}

func (s *Store) Create(ctx context.Context, ref docstore.DocRef, fields docstore.Fields) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	if _, err := s.doc(ref).Create(ctx, toNative(fields)); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return fmt.Errorf("%s: %w", ref.Path(), docstore.ErrAlreadyExists)
		}
		return fmt.Errorf("create %s: %w", ref.Path(), err)
	}
	return nil
}

func (s *Store) Set(ctx context.Context, ref docstore.DocRef, fields docstore.Fields, merge bool) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	if _, err := s.doc(ref).Set(ctx, toNative(fields), setOptions(merge)...); err != nil {
		return fmt.Errorf("set %s: %w", ref.Path(), err)
	}
	return nil
}

// Update is a merge-set of transforms, so it creates a missing document
// instead of failing like Firestore's own Update.
func (s *Store) Update(ctx context.Context, ref docstore.DocRef, updates ...docstore.Update) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	data, err := transforms(updates)
	if err != nil {
		return err
	}
	floors := floorUpdates(updates)
	if len(floors) == 0 {
		if _, err := s.doc(ref).Set(ctx, data, firestore.MergeAll); err != nil {
			return fmt.Errorf("update %s: %w", ref.Path(), err)
		}
		return nil
	}

	err = s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		payload, err := s.readFloors(tx, ref, data, floors)
		if err != nil {
			return err
		}
		return tx.Set(s.doc(ref), payload, firestore.MergeAll)
	})
	if err != nil {
		return fmt.Errorf("update %s: %w", ref.Path(), err)
	}
	return nil
}

// readFloors reads the floored fields inside tx and returns data with their
// new values filled in.
func (s *Store) readFloors(tx *firestore.Transaction, ref docstore.DocRef, data map[string]interface{}, floors []docstore.Update) (map[string]interface{}, error) {
	current := map[string]interface{}{}
	snap, err := tx.Get(s.doc(ref))
	switch {
	case err == nil:
		current = snap.Data()
	case status.Code(err) != codes.NotFound:
		return nil, err
	}
	return withFloors(data, current, floors, time.Now())
}

func floorUpdates(updates []docstore.Update) []docstore.Update {
	var out []docstore.Update
	for _, u := range updates {
		if u.Op == docstore.OpIncrementFloor {
			out = append(out, u)
		}
	}
	return out
}

// withFloors applies floored increments to the current values and merges the
// results into a copy of data.
func withFloors(data, current map[string]interface{}, floors []docstore.Update, now time.Time) (map[string]interface{}, error) {
	fields := make(map[string]any, len(floors))
	for _, u := range floors {
		// Firestore stores whole numbers as int64; start absent fields there too.
		fields[u.Field] = int64(0)
		if v, ok := current[u.Field]; ok && v != nil {
			fields[u.Field] = v
		}
	}
	next, err := docstore.Apply(fields, floors, now)
	if err != nil {
		return nil, err
	}

	out := make(map[string]interface{}, len(data)+len(floors))
	for k, v := range data {
		out[k] = v
	}
	for _, u := range floors {
		out[u.Field] = next[u.Field]
	}
	return out, nil
}

func (s *Store) Add(ctx context.Context, coll docstore.CollectionRef, fields docstore.Fields) (docstore.DocRef, error) {
	native := s.client.Collection(coll.Path()).NewDoc()
	ref := coll.Doc(native.ID)
	if err := s.Create(ctx, ref, fields); err != nil {
		return docstore.DocRef{}, err
	}
	return ref, nil
}

// Query without OrderBy returns documents in Firestore's default order,
// which is by document id.
func (s *Store) Query(ctx context.Context, coll docstore.CollectionRef, opts ...docstore.QueryOption) ([]docstore.Snapshot, error) {
	o := docstore.BuildQueryOptions(opts...)
	q := s.client.Collection(coll.Path()).Query
	if o.OrderBy != "" {
		if err := docstore.ValidateField(o.OrderBy); err != nil {
			return nil, err
		}
		dir := firestore.Asc
		if o.Direction == docstore.Desc {
			dir = firestore.Desc
		}
		q = q.OrderBy(o.OrderBy, dir)
	}

	it := q.Documents(ctx)
	defer it.Stop()

	var out []docstore.Snapshot
	for {
		snap, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", coll.Path(), err)
		}
		doc, err := snapshot(coll.Doc(snap.Ref.ID), snap.Data())
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

func (s *Store) Batch() docstore.Batch {
	return &batch{store: s}
}

func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.Doc("settings/journalPrompt").Get(ctx)
	if err != nil && status.Code(err) != codes.NotFound {
		return err
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func setOptions(merge bool) []firestore.SetOption {
	if merge {
		return []firestore.SetOption{firestore.MergeAll}
	}
	return nil
}

// transforms maps field ops onto a MergeAll payload. Firestore allows a
// single transform per field in one write. Floored increments are left out.
func transforms(updates []docstore.Update) (map[string]interface{}, error) {
	data := make(map[string]interface{}, len(updates))
	kinds := make(map[string]docstore.Op, len(updates))

	for _, u := range updates {
		if err := docstore.ValidateField(u.Field); err != nil {
			return nil, err
		}
		if op, ok := kinds[u.Field]; ok {
			return nil, fmt.Errorf("duplicate updates %s and %s on field %q", op, u.Op, u.Field)
		}
		kinds[u.Field] = u.Op

		switch u.Op {
		case docstore.OpSet:
			data[u.Field] = nativeValue(u.Value)
		case docstore.OpArrayUnion:
			data[u.Field] = firestore.ArrayUnion(nativeValues(u.Values)...)
		case docstore.OpArrayRemove:
			data[u.Field] = firestore.ArrayRemove(nativeValues(u.Values)...)
		case docstore.OpIncrement:
			n, ok := u.Value.(int64)
			if !ok {
				return nil, fmt.Errorf("field %q: increment by non-integer %T", u.Field, u.Value)
			}
			data[u.Field] = firestore.Increment(n)
		case docstore.OpIncrementFloor:
			// needs the stored value, filled in by withFloors
		default:
			return nil, fmt.Errorf("unsupported update op %s", u.Op)
		}
	}
	return data, nil
}

func toNative(fields docstore.Fields) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		out[k] = nativeValue(v)
	}
	return out
}

func nativeValues(vals []any) []interface{} {
	out := make([]interface{}, 0, len(vals))
	for _, v := range vals {
		out = append(out, nativeValue(v))
	}
	return out
}

func nativeValue(v any) interface{} {
	switch t := v.(type) {
	case docstore.Fields:
		return toNative(t)
	case map[string]any:
		return toNative(docstore.Fields(t))
	}
	if v == docstore.ServerTimestamp {
		return firestore.ServerTimestamp
	}
	return v
}

// snapshot re-encodes Firestore data in the JSON shapes the other backends
// produce; timestamps become TimeLayout strings.
func snapshot(ref docstore.DocRef, data map[string]interface{}) (docstore.Snapshot, error) {
	body, err := json.Marshal(plainValue(data))
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", ref.Path(), err)
	}
	return docstore.NewJSONSnapshot(ref, body), nil
}

func plainValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, e := range t {
			out[k] = plainValue(e)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = plainValue(e)
		}
		return out
	case time.Time:
		return t.UTC().Format(docstore.TimeLayout)
	}
	return v
}

type batch struct {
	store *Store
	sets  []setWrite
}

type setWrite struct {
	ref    docstore.DocRef
	data   map[string]interface{}
	floors []docstore.Update
	merge  bool
	err    error
}

func (b *batch) Set(ref docstore.DocRef, fields docstore.Fields, merge bool) {
	b.sets = append(b.sets, setWrite{ref: ref, data: toNative(fields), merge: merge, err: ref.Validate()})
}

func (b *batch) Update(ref docstore.DocRef, updates ...docstore.Update) {
	data, err := transforms(updates)
	if err == nil {
		err = ref.Validate()
	}
	b.sets = append(b.sets, setWrite{ref: ref, data: data, floors: floorUpdates(updates), merge: true, err: err})
}

func (b *batch) Len() int {
	return len(b.sets)
}

// Commit writes everything in one transaction.
func (b *batch) Commit(ctx context.Context) error {
	for _, w := range b.sets {
		if w.err != nil {
			return fmt.Errorf("batch write %s: %w", w.ref.Path(), w.err)
		}
	}

	err := b.store.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		// Firestore wants every read of a transaction before its first write.
		payloads := make([]map[string]interface{}, len(b.sets))
		for i, w := range b.sets {
			payloads[i] = w.data
			if len(w.floors) == 0 {
				continue
			}
			payload, err := b.store.readFloors(tx, w.ref, w.data, w.floors)
			if err != nil {
				return err
			}
			payloads[i] = payload
		}

		for i, w := range b.sets {
			if err := tx.Set(b.store.doc(w.ref), payloads[i], setOptions(w.merge)...); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}
