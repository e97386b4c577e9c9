// Package mongostore keeps documents in MongoDB. Each collection name (the
// last path segment) maps to one Mongo collection; a stored document looks like
//
//	{_id: "<full path>", parent: "<collection path>", docId, seq, data: {...}}
package mongostore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"snapjournal/internal/docstore"
)

type Store struct {
	client *mongo.Client
	db     *mongo.Database
	now    func() time.Time
}

func New(db *mongo.Database) *Store {
	return &Store{client: db.Client(), db: db, now: time.Now}
}

// Connect dials uri and verifies the deployment answers.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return New(client.Database(database)), nil
}

// EnsureIndexes creates the parent/seq index used by Query on each collection.
func (s *Store) EnsureIndexes(ctx context.Context, collections ...string) error {
	for _, name := range collections {
		_, err := s.db.Collection(name).Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys: bson.D{{Key: "parent", Value: 1}, {Key: "seq", Value: 1}},
		})
		if err != nil {
			return fmt.Errorf("create index on %s: %w", name, err)
		}
	}
	return nil
}

func (s *Store) coll(ref docstore.CollectionRef) *mongo.Collection {
	return s.db.Collection(ref.Name())
}

func (s *Store) Get(ctx context.Context, ref docstore.DocRef) (docstore.Snapshot, error) {
	raw, err := s.coll(ref.Parent()).FindOne(ctx, bson.M{"_id": ref.Path()}).Raw()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%s: %w", ref.Path(), docstore.ErrNotFound)
		}
		return nil, fmt.Errorf("get %s: %w", ref.Path(), err)
	}
	return snapshot(ref, raw)
}

func (s *Store) Create(ctx context.Context, ref docstore.DocRef, fields docstore.Fields) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	data, err := docstore.Resolve(fields, s.now())
	if err != nil {
		return err
	}

	doc := bson.M{
		"_id":    ref.Path(),
		"parent": ref.Parent().Path(),
		"docId":  ref.ID(),
		"seq":    s.now().UnixNano(),
		"data":   data,
	}
	if _, err := s.coll(ref.Parent()).InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%s: %w", ref.Path(), docstore.ErrAlreadyExists)
		}
		return fmt.Errorf("create %s: %w", ref.Path(), err)
	}
	return nil
}

func (s *Store) Set(ctx context.Context, ref docstore.DocRef, fields docstore.Fields, merge bool) error {
	update, err := s.buildSet(ref, fields, merge)
	if err != nil {
		return err
	}
	return s.upsert(ctx, ref, update)
}

func (s *Store) Update(ctx context.Context, ref docstore.DocRef, updates ...docstore.Update) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	if docstore.HasFloor(updates) {
		pipeline, err := buildFloorPipeline(ref, updates, s.now())
		if err != nil {
			return err
		}
		_, err = s.coll(ref.Parent()).UpdateOne(ctx, bson.M{"_id": ref.Path()}, pipeline, options.Update().SetUpsert(true))
		if err != nil {
			return fmt.Errorf("write %s: %w", ref.Path(), err)
		}
		return nil
	}
	update, err := buildUpdate(updates, s.now())
	if err != nil {
		return err
	}
	return s.upsert(ctx, ref, update)
}

func (s *Store) Add(ctx context.Context, coll docstore.CollectionRef, fields docstore.Fields) (docstore.DocRef, error) {
	ref := coll.Doc(uuid.New().String())
	if err := s.Create(ctx, ref, fields); err != nil {
		return docstore.DocRef{}, err
	}
	return ref, nil
}

func (s *Store) Query(ctx context.Context, coll docstore.CollectionRef, opts ...docstore.QueryOption) ([]docstore.Snapshot, error) {
	sort, err := buildSort(docstore.BuildQueryOptions(opts...))
	if err != nil {
		return nil, err
	}

	cursor, err := s.coll(coll).Find(ctx, bson.M{"parent": coll.Path()}, options.Find().SetSort(sort))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", coll.Path(), err)
	}
	defer cursor.Close(ctx)

	var out []docstore.Snapshot
	for cursor.Next(ctx) {
		id, ok := cursor.Current.Lookup("docId").StringValueOK()
		if !ok {
			return nil, fmt.Errorf("query %s: document without docId", coll.Path())
		}
		snap, err := snapshot(coll.Doc(id), cursor.Current)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("query %s: %w", coll.Path(), err)
	}
	return out, nil
}

func (s *Store) Batch() docstore.Batch {
	return &batch{store: s}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Store) Close() error {
	return s.client.Disconnect(context.Background())
}

func (s *Store) upsert(ctx context.Context, ref docstore.DocRef, update bson.M) error {
	update["$setOnInsert"] = bson.M{
		"parent": ref.Parent().Path(),
		"docId":  ref.ID(),
		"seq":    s.now().UnixNano(),
	}
	_, err := s.coll(ref.Parent()).UpdateOne(ctx, bson.M{"_id": ref.Path()}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("write %s: %w", ref.Path(), err)
	}
	return nil
}

func (s *Store) buildSet(ref docstore.DocRef, fields docstore.Fields, merge bool) (bson.M, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	data, err := docstore.Resolve(fields, s.now())
	if err != nil {
		return nil, err
	}
	if !merge {
		return bson.M{"$set": bson.M{"data": data}}, nil
	}

	set := bson.M{}
	for k, v := range data {
		if err := docstore.ValidateField(k); err != nil {
			return nil, err
		}
		set["data."+k] = v
	}
	if len(set) == 0 {
		// upsert adds $setOnInsert, so merging nothing still materialises the document
		return bson.M{}, nil
	}
	return bson.M{"$set": set}, nil
}

// buildUpdate translates field ops into one Mongo update document. Repeated
// ops of the same kind on a field are combined; mixing kinds on one field is
// rejected because Mongo refuses conflicting paths.
func buildUpdate(updates []docstore.Update, now time.Time) (bson.M, error) {
	set := bson.M{}
	union := map[string][]any{}
	remove := map[string][]any{}
	inc := map[string]int64{}
	kinds := map[string]docstore.Op{}

	for _, u := range updates {
		if err := docstore.ValidateField(u.Field); err != nil {
			return nil, err
		}
		if op, ok := kinds[u.Field]; ok && op != u.Op {
			return nil, fmt.Errorf("conflicting updates %s and %s on field %q", op, u.Op, u.Field)
		}
		kinds[u.Field] = u.Op
		key := "data." + u.Field

		switch u.Op {
		case docstore.OpSet:
			v, err := docstore.ResolveValue(u.Value, now)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", u.Field, err)
			}
			set[key] = v
		case docstore.OpArrayUnion, docstore.OpArrayRemove:
			vals := make([]any, 0, len(u.Values))
			for _, raw := range u.Values {
				v, err := docstore.ResolveValue(raw, now)
				if err != nil {
					return nil, fmt.Errorf("field %q: %w", u.Field, err)
				}
				vals = append(vals, v)
			}
			if u.Op == docstore.OpArrayUnion {
				union[key] = append(nonNil(union[key]), vals...)
			} else {
				remove[key] = append(nonNil(remove[key]), vals...)
			}
		case docstore.OpIncrement:
			n, ok := u.Value.(int64)
			if !ok {
				return nil, fmt.Errorf("field %q: increment by non-integer %T", u.Field, u.Value)
			}
			inc[key] += n
		default:
			return nil, fmt.Errorf("unsupported update op %s", u.Op)
		}
	}

	out := bson.M{}
	if len(set) > 0 {
		out["$set"] = set
	}
	if len(union) > 0 {
		add := bson.M{}
		for k, vals := range union {
			add[k] = bson.M{"$each": vals}
		}
		out["$addToSet"] = add
	}
	if len(remove) > 0 {
		pull := bson.M{}
		for k, vals := range remove {
			pull[k] = bson.M{"$in": vals}
		}
		out["$pull"] = pull
	}
	if len(inc) > 0 {
		incs := bson.M{}
		for k, n := range inc {
			incs[k] = n
		}
		out["$inc"] = incs
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no updates")
	}
	return out, nil
}

// buildFloorPipeline expresses updates as an aggregation pipeline so a floored
// increment can read the stored value in the same write. Pipelines reject
// $setOnInsert, so the bookkeeping fields are filled with $ifNull instead.
func buildFloorPipeline(ref docstore.DocRef, updates []docstore.Update, now time.Time) (mongo.Pipeline, error) {
	stage := bson.D{
		{Key: "parent", Value: bson.M{"$ifNull": bson.A{"$parent", ref.Parent().Path()}}},
		{Key: "docId", Value: bson.M{"$ifNull": bson.A{"$docId", ref.ID()}}},
		{Key: "seq", Value: bson.M{"$ifNull": bson.A{"$seq", now.UnixNano()}}},
	}
	seen := map[string]bool{}

	for _, u := range updates {
		if err := docstore.ValidateField(u.Field); err != nil {
			return nil, err
		}
		if seen[u.Field] {
			return nil, fmt.Errorf("duplicate updates on field %q", u.Field)
		}
		seen[u.Field] = true
		key := "data." + u.Field

		var expr any
		switch u.Op {
		case docstore.OpSet:
			v, err := docstore.ResolveValue(u.Value, now)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", u.Field, err)
			}
			expr = bson.M{"$literal": v}
		case docstore.OpIncrement, docstore.OpIncrementFloor:
			n, ok := u.Value.(int64)
			if !ok {
				return nil, fmt.Errorf("field %q: increment by non-integer %T", u.Field, u.Value)
			}
			expr = bson.M{"$add": bson.A{bson.M{"$ifNull": bson.A{"$" + key, int64(0)}}, n}}
			if u.Op == docstore.OpIncrementFloor {
				expr = bson.M{"$max": bson.A{u.Floor, expr}}
			}
		default:
			return nil, fmt.Errorf("update op %s cannot be combined with a floored increment", u.Op)
		}
		stage = append(stage, bson.E{Key: key, Value: expr})
	}
	return mongo.Pipeline{{{Key: "$set", Value: stage}}}, nil
}

func nonNil(vals []any) []any {
	if vals == nil {
		return []any{}
	}
	return vals
}

func buildSort(o docstore.QueryOptions) (bson.D, error) {
	if o.OrderBy == "" {
		return bson.D{{Key: "seq", Value: 1}}, nil
	}
	if err := docstore.ValidateField(o.OrderBy); err != nil {
		return nil, err
	}
	dir := 1
	if o.Direction == docstore.Desc {
		dir = -1
	}
	return bson.D{{Key: "data." + o.OrderBy, Value: dir}, {Key: "seq", Value: dir}}, nil
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

// Commit runs every write in one multi-document transaction, which needs a
// replica set or sharded deployment.
func (b *batch) Commit(ctx context.Context) error {
	session, err := b.store.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		for _, w := range b.writes {
			var err error
			if w.updates != nil {
				err = b.store.Update(sessCtx, w.ref, w.updates...)
			} else {
				err = b.store.Set(sessCtx, w.ref, w.fields, w.merge)
			}
			if err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

func snapshot(ref docstore.DocRef, raw bson.Raw) (docstore.Snapshot, error) {
	dataVal, err := raw.LookupErr("data")
	if err != nil {
		// a document touched only by $setOnInsert has no data yet
		return docstore.NewJSONSnapshot(ref, []byte("{}")), nil
	}
	plain, err := plainValue(dataVal)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", ref.Path(), err)
	}
	body, err := json.Marshal(plain)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", ref.Path(), err)
	}
	return docstore.NewJSONSnapshot(ref, body), nil
}

// plainValue converts a BSON value into the JSON shapes every backend
// hands to DataTo.
func plainValue(v bson.RawValue) (any, error) {
	switch v.Type {
	case bson.TypeEmbeddedDocument:
		elems, err := v.Document().Elements()
		if err != nil {
			return nil, err
		}
		out := make(map[string]any, len(elems))
		for _, e := range elems {
			pv, err := plainValue(e.Value())
			if err != nil {
				return nil, err
			}
			out[e.Key()] = pv
		}
		return out, nil
	case bson.TypeArray:
		vals, err := v.Array().Values()
		if err != nil {
			return nil, err
		}
		out := make([]any, 0, len(vals))
		for _, rv := range vals {
			pv, err := plainValue(rv)
			if err != nil {
				return nil, err
			}
			out = append(out, pv)
		}
		return out, nil
	case bson.TypeDouble:
		return v.Double(), nil
	case bson.TypeInt32:
		return int64(v.Int32()), nil
	case bson.TypeInt64:
		return v.Int64(), nil
	case bson.TypeString:
		return v.StringValue(), nil
	case bson.TypeBoolean:
		return v.Boolean(), nil
	case bson.TypeNull, bson.TypeUndefined:
		return nil, nil
	case bson.TypeDateTime:
		return v.Time().UTC().Format(docstore.TimeLayout), nil
	}
	return nil, fmt.Errorf("unsupported bson type %s", v.Type)
}
