// Package postgres stores documents as JSONB rows of a single documents table,
// keyed by (collection path, document id).
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"snapjournal/internal/docstore"
)

const (
	getQuery = `SELECT doc_id, data FROM documents WHERE collection = $1 AND doc_id = $2`

	createQuery = `INSERT INTO documents (collection, doc_id, data) VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (collection, doc_id) DO NOTHING`

	replaceQuery = `INSERT INTO documents (collection, doc_id, data) VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (collection, doc_id) DO UPDATE SET data = EXCLUDED.data`

	mergeQuery = `INSERT INTO documents (collection, doc_id, data) VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (collection, doc_id) DO UPDATE SET data = documents.data || EXCLUDED.data`

	ensureQuery = `INSERT INTO documents (collection, doc_id, data) VALUES ($1, $2, '{}'::jsonb)
		ON CONFLICT (collection, doc_id) DO NOTHING`

	lockQuery = `SELECT data FROM documents WHERE collection = $1 AND doc_id = $2 FOR UPDATE`

	writeQuery = `UPDATE documents SET data = $3::jsonb WHERE collection = $1 AND doc_id = $2`

	listQuery = `SELECT doc_id, data FROM documents WHERE collection = $1`

	pingQuery = `SELECT 1`
)

type row struct {
	DocID string `db:"doc_id"`
	Data  []byte `db:"data"`
}

type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

func New(db *sqlx.DB) *Store {
	return &Store{db: db, now: time.Now}
}

func (s *Store) Get(ctx context.Context, ref docstore.DocRef) (docstore.Snapshot, error) {
	var r row
	err := s.db.GetContext(ctx, &r, getQuery, ref.Parent().Path(), ref.ID())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", ref.Path(), docstore.ErrNotFound)
		}
		return nil, fmt.Errorf("get %s: %w", ref.Path(), err)
	}
	return docstore.NewJSONSnapshot(ref, r.Data), nil
}

func (s *Store) Create(ctx context.Context, ref docstore.DocRef, fields docstore.Fields) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	body, err := s.encode(fields)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, createQuery, ref.Parent().Path(), ref.ID(), body)
	if err != nil {
		return fmt.Errorf("create %s: %w", ref.Path(), err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("create %s: %w", ref.Path(), err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", ref.Path(), docstore.ErrAlreadyExists)
	}
	return nil
}

func (s *Store) Set(ctx context.Context, ref docstore.DocRef, fields docstore.Fields, merge bool) error {
	return s.set(ctx, s.db, ref, fields, merge)
}

func (s *Store) Update(ctx context.Context, ref docstore.DocRef, updates ...docstore.Update) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update %s: %w", ref.Path(), err)
	}
	if err := s.update(ctx, tx, ref, updates); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update %s: %w", ref.Path(), err)
	}
	return nil
}

func (s *Store) Add(ctx context.Context, coll docstore.CollectionRef, fields docstore.Fields) (docstore.DocRef, error) {
	ref := coll.Doc(uuid.New().String())
	if err := s.Create(ctx, ref, fields); err != nil {
		return docstore.DocRef{}, err
	}
	return ref, nil
}

func (s *Store) Query(ctx context.Context, coll docstore.CollectionRef, opts ...docstore.QueryOption) ([]docstore.Snapshot, error) {
	query, err := buildListQuery(docstore.BuildQueryOptions(opts...))
	if err != nil {
		return nil, err
	}

	var rows []row
	if err := s.db.SelectContext(ctx, &rows, query, coll.Path()); err != nil {
		return nil, fmt.Errorf("query %s: %w", coll.Path(), err)
	}

	out := make([]docstore.Snapshot, 0, len(rows))
	for _, r := range rows {
		out = append(out, docstore.NewJSONSnapshot(coll.Doc(r.DocID), r.Data))
	}
	return out, nil
}

func (s *Store) Batch() docstore.Batch {
	return &batch{store: s}
}

func (s *Store) Ping(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, pingQuery)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

func buildListQuery(o docstore.QueryOptions) (string, error) {
	if o.OrderBy == "" {
		return listQuery + ` ORDER BY seq`, nil
	}
	if err := docstore.ValidateField(o.OrderBy); err != nil {
		return "", err
	}
	dir := "ASC"
	if o.Direction == docstore.Desc {
		dir = "DESC"
	}
	// field name is validated above, it cannot carry SQL
	return fmt.Sprintf("%s ORDER BY data->'%s' %s, seq %s", listQuery, o.OrderBy, dir, dir), nil
}

func (s *Store) encode(fields docstore.Fields) (string, error) {
	data, err := docstore.Resolve(fields, s.now())
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	return string(raw), nil
}

func (s *Store) set(ctx context.Context, exec sqlx.ExecerContext, ref docstore.DocRef, fields docstore.Fields, merge bool) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	body, err := s.encode(fields)
	if err != nil {
		return err
	}

	query := replaceQuery
	if merge {
		query = mergeQuery
	}
	if _, err := exec.ExecContext(ctx, query, ref.Parent().Path(), ref.ID(), body); err != nil {
		return fmt.Errorf("set %s: %w", ref.Path(), err)
	}
	return nil
}

// update makes sure the row exists, locks it and rewrites it with the
// updates applied, so concurrent field ops on one document serialise.
func (s *Store) update(ctx context.Context, tx *sqlx.Tx, ref docstore.DocRef, updates []docstore.Update) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	path, id := ref.Parent().Path(), ref.ID()

	if _, err := tx.ExecContext(ctx, ensureQuery, path, id); err != nil {
		return fmt.Errorf("update %s: %w", ref.Path(), err)
	}

	var raw []byte
	if err := tx.GetContext(ctx, &raw, lockQuery, path, id); err != nil {
		return fmt.Errorf("lock %s: %w", ref.Path(), err)
	}

	var current map[string]any
	if err := json.Unmarshal(raw, &current); err != nil {
		return fmt.Errorf("decode %s: %w", ref.Path(), err)
	}
	next, err := docstore.Apply(current, updates, s.now())
	if err != nil {
		return err
	}
	body, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encode %s: %w", ref.Path(), err)
	}

	if _, err := tx.ExecContext(ctx, writeQuery, path, id, string(body)); err != nil {
		return fmt.Errorf("update %s: %w", ref.Path(), err)
	}
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

func (b *batch) Commit(ctx context.Context) (err error) {
	tx, err := b.store.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	for _, w := range b.writes {
		if w.updates != nil {
			err = b.store.update(ctx, tx, w.ref, w.updates)
		} else {
			err = b.store.set(ctx, tx, w.ref, w.fields, w.merge)
		}
		if err != nil {
			return fmt.Errorf("batch write %s: %w", w.ref.Path(), err)
		}
	}
	return nil
}
