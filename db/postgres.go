package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/evergreen-ci/restadmin/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

type postgresStore struct {
	pool *pgxpool.Pool

	mu     sync.Mutex
	tables map[string]bool
}

// NewPostgresStore connects to the PostgreSQL database at url and returns
// a Store keeping each model in its own table of JSONB documents. Tables
// are created the first time a model is used.
func NewPostgresStore(ctx context.Context, url string) (Store, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, errors.Wrap(err, "creating connection pool")
	}
	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "pinging the database")
	}

	return &postgresStore{pool: pool, tables: map[string]bool{}}, nil
}

func tableName(m *model.Model) string {
	return pgx.Identifier{m.Collection()}.Sanitize()
}

func (s *postgresStore) ensureTable(ctx context.Context, m *model.Model) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tables[m.Collection()] {
		return nil
	}

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			seq BIGSERIAL,
			id TEXT PRIMARY KEY,
			data JSONB NOT NULL
		)`, tableName(m))
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return errors.Wrapf(err, "creating table for model '%s'", m.Label())
	}

	s.tables[m.Collection()] = true
	return nil
}

// where renders the query filter as SQL conditions starting at the given
// placeholder index.
func where(q *Query, id string, next int) (string, []interface{}, error) {
	conds := []string{}
	args := []interface{}{}

	doc := map[string]interface{}{}
	for k, v := range q.Filter {
		if k == model.IDField {
			conds = append(conds, fmt.Sprintf("id = $%d", next))
			args = append(args, fmt.Sprint(v))
			next++
			continue
		}
		doc[k] = v
	}
	if len(doc) > 0 {
		payload, err := json.Marshal(doc)
		if err != nil {
			return "", nil, errors.Wrap(err, "encoding query filter")
		}
		conds = append(conds, fmt.Sprintf("data @> $%d", next))
		args = append(args, payload)
		next++
	}
	if id != "" {
		conds = append(conds, fmt.Sprintf("id = $%d", next))
		args = append(args, id)
	}

	if len(conds) == 0 {
		return "", args, nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

func decodeRow(id string, raw []byte) (model.Record, error) {
	rec := model.Record{}
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, errors.Wrapf(err, "decoding record '%s'", id)
	}
	rec[model.IDField] = id
	return rec, nil
}

func encodeRecord(rec model.Record) ([]byte, error) {
	doc := rec.Copy()
	delete(doc, model.IDField)
	payload, err := json.Marshal(doc)
	return payload, errors.Wrap(err, "encoding record")
}

func (s *postgresStore) Find(ctx context.Context, q *Query, opts FindOptions) ([]model.Record, int, error) {
	if err := q.Validate(); err != nil {
		return nil, 0, errors.WithStack(err)
	}
	if err := s.ensureTable(ctx, q.Model); err != nil {
		return nil, 0, err
	}

	cond, args, err := where(q, "", 1)
	if err != nil {
		return nil, 0, err
	}

	var total int
	if err = s.pool.QueryRow(ctx, "SELECT count(*) FROM "+tableName(q.Model)+cond, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrapf(err, "counting %s", q.Model.VerboseNamePlural)
	}

	query := "SELECT id, data FROM " + tableName(q.Model) + cond + " ORDER BY seq"
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}
	if opts.Skip > 0 {
		query += fmt.Sprintf(" OFFSET %d", opts.Skip)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "finding %s", q.Model.VerboseNamePlural)
	}
	defer rows.Close()

	out := []model.Record{}
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err = rows.Scan(&id, &raw); err != nil {
			return nil, 0, errors.Wrapf(err, "scanning %s", q.Model.VerboseName)
		}
		rec, err := decodeRow(id, raw)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, rec)
	}

	return out, total, errors.Wrapf(rows.Err(), "iterating %s", q.Model.VerboseNamePlural)
}

func (s *postgresStore) Get(ctx context.Context, q *Query, id string) (model.Record, error) {
	if err := q.Validate(); err != nil {
		return nil, errors.WithStack(err)
	}
	if err := s.ensureTable(ctx, q.Model); err != nil {
		return nil, err
	}

	cond, args, err := where(q, id, 1)
	if err != nil {
		return nil, err
	}

	var raw []byte
	err = s.pool.QueryRow(ctx, "SELECT data FROM "+tableName(q.Model)+cond, args...).Scan(&raw)
	if err == pgx.ErrNoRows {
		return nil, errors.Wrapf(ErrNotFound, "%s '%s'", q.Model.VerboseName, id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "finding %s '%s'", q.Model.VerboseName, id)
	}

	return decodeRow(id, raw)
}

func (s *postgresStore) Insert(ctx context.Context, m *model.Model, rec model.Record) (model.Record, error) {
	if err := s.ensureTable(ctx, m); err != nil {
		return nil, err
	}

	out := prepareInsert(rec)
	payload, err := encodeRecord(out)
	if err != nil {
		return nil, err
	}

	_, err = s.pool.Exec(ctx, "INSERT INTO "+tableName(m)+" (id, data) VALUES ($1, $2)", out.ID(), payload)
	if err != nil {
		if IsDuplicateKey(err) {
			return nil, errors.Wrapf(ErrDuplicateKey, "%s '%s'", m.VerboseName, out.ID())
		}
		return nil, errors.Wrapf(err, "inserting %s", m.VerboseName)
	}

	return out, nil
}

func (s *postgresStore) Update(ctx context.Context, q *Query, id string, rec model.Record, partial bool) (model.Record, error) {
	if err := q.Validate(); err != nil {
		return nil, errors.WithStack(err)
	}
	if err := s.ensureTable(ctx, q.Model); err != nil {
		return nil, err
	}

	payload, err := encodeRecord(rec)
	if err != nil {
		return nil, err
	}

	set := "data = $1"
	if partial {
		set = "data = data || $1"
	}
	cond, args, err := where(q, id, 2)
	if err != nil {
		return nil, err
	}

	var raw []byte
	query := "UPDATE " + tableName(q.Model) + " SET " + set + cond + " RETURNING data"
	err = s.pool.QueryRow(ctx, query, append([]interface{}{payload}, args...)...).Scan(&raw)
	if err == pgx.ErrNoRows {
		return nil, errors.Wrapf(ErrNotFound, "%s '%s'", q.Model.VerboseName, id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "updating %s '%s'", q.Model.VerboseName, id)
	}

	return decodeRow(id, raw)
}

func (s *postgresStore) Delete(ctx context.Context, q *Query, id string) error {
	if err := q.Validate(); err != nil {
		return errors.WithStack(err)
	}
	if err := s.ensureTable(ctx, q.Model); err != nil {
		return err
	}

	cond, args, err := where(q, id, 1)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, "DELETE FROM "+tableName(q.Model)+cond, args...)
	if err != nil {
		return errors.Wrapf(err, "deleting %s '%s'", q.Model.VerboseName, id)
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(ErrNotFound, "%s '%s'", q.Model.VerboseName, id)
	}

	return nil
}

func (s *postgresStore) Close(ctx context.Context) error {
	s.pool.Close()
	return nil
}
