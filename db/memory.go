package db

import (
	"context"
	"sync"

	"github.com/evergreen-ci/restadmin/model"
	"github.com/pkg/errors"
)

type memoryCollection struct {
	order   []string
	records map[string]model.Record
}

type memoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
}

// NewMemoryStore returns a Store that keeps every record in process
// memory. It is used in tests and by the "memory" database driver.
func NewMemoryStore() Store {
	return &memoryStore{collections: map[string]*memoryCollection{}}
}

func (s *memoryStore) collection(m *model.Model) *memoryCollection {
	coll, ok := s.collections[m.Collection()]
	if !ok {
		coll = &memoryCollection{records: map[string]model.Record{}}
		s.collections[m.Collection()] = coll
	}
	return coll
}

// lookup returns the collection without creating it, for use under the
// read lock.
func (s *memoryStore) lookup(m *model.Model) *memoryCollection {
	if coll, ok := s.collections[m.Collection()]; ok {
		return coll
	}
	return &memoryCollection{records: map[string]model.Record{}}
}

func (s *memoryStore) Find(ctx context.Context, q *Query, opts FindOptions) ([]model.Record, int, error) {
	if err := q.Validate(); err != nil {
		return nil, 0, errors.WithStack(err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	coll := s.lookup(q.Model)
	matched := []model.Record{}
	for _, id := range coll.order {
		if rec := coll.records[id]; q.Matches(rec) {
			matched = append(matched, rec.Copy())
		}
	}

	total := len(matched)
	if opts.Skip > 0 {
		if opts.Skip >= len(matched) {
			return []model.Record{}, total, nil
		}
		matched = matched[opts.Skip:]
	}
	if opts.Limit > 0 && opts.Limit < len(matched) {
		matched = matched[:opts.Limit]
	}

	return matched, total, nil
}

func (s *memoryStore) Get(ctx context.Context, q *Query, id string) (model.Record, error) {
	if err := q.Validate(); err != nil {
		return nil, errors.WithStack(err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.lookup(q.Model).records[id]
	if !ok || !q.Matches(rec) {
		return nil, errors.Wrapf(ErrNotFound, "%s '%s'", q.Model.VerboseName, id)
	}

	return rec.Copy(), nil
}

func (s *memoryStore) Insert(ctx context.Context, m *model.Model, rec model.Record) (model.Record, error) {
	out := prepareInsert(rec)

	s.mu.Lock()
	defer s.mu.Unlock()

	coll := s.collection(m)
	if _, ok := coll.records[out.ID()]; ok {
		return nil, errors.Wrapf(ErrDuplicateKey, "%s '%s'", m.VerboseName, out.ID())
	}
	coll.records[out.ID()] = out
	coll.order = append(coll.order, out.ID())

	return out.Copy(), nil
}

func (s *memoryStore) Update(ctx context.Context, q *Query, id string, rec model.Record, partial bool) (model.Record, error) {
	if err := q.Validate(); err != nil {
		return nil, errors.WithStack(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	coll := s.collection(q.Model)
	existing, ok := coll.records[id]
	if !ok || !q.Matches(existing) {
		return nil, errors.Wrapf(ErrNotFound, "%s '%s'", q.Model.VerboseName, id)
	}

	var updated model.Record
	if partial {
		updated = existing.Merge(rec)
	} else {
		updated = rec.Copy()
	}
	updated[model.IDField] = id
	coll.records[id] = updated

	return updated.Copy(), nil
}

func (s *memoryStore) Delete(ctx context.Context, q *Query, id string) error {
	if err := q.Validate(); err != nil {
		return errors.WithStack(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	coll := s.collection(q.Model)
	existing, ok := coll.records[id]
	if !ok || !q.Matches(existing) {
		return errors.Wrapf(ErrNotFound, "%s '%s'", q.Model.VerboseName, id)
	}

	delete(coll.records, id)
	for i, oid := range coll.order {
		if oid == id {
			coll.order = append(coll.order[:i], coll.order[i+1:]...)
			break
		}
	}

	return nil
}

func (s *memoryStore) Close(ctx context.Context) error { return nil }
