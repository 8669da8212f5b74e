package db

import (
	"context"
	"fmt"
	"reflect"

	"github.com/evergreen-ci/restadmin/model"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Store is the data-access layer the generated views delegate to. All
// implementations are safe for concurrent use.
type Store interface {
	// Find returns the records of the query source in insertion order,
	// along with the total number of matching records before Skip and
	// Limit were applied.
	Find(context.Context, *Query, FindOptions) ([]model.Record, int, error)
	// Get returns one record of the query source; ErrNotFound if absent.
	Get(context.Context, *Query, string) (model.Record, error)
	// Insert persists a new record, assigning an id if it has none.
	Insert(context.Context, *model.Model, model.Record) (model.Record, error)
	// Update replaces every field of the record (partial=false) or merges
	// the given fields into it (partial=true), returning the result.
	Update(ctx context.Context, q *Query, id string, rec model.Record, partial bool) (model.Record, error)
	// Delete removes one record of the query source; ErrNotFound if absent.
	Delete(context.Context, *Query, string) error
	Close(context.Context) error
}

// FindOptions bounds a Find call. A zero Limit means no limit.
type FindOptions struct {
	Skip  int
	Limit int
}

// Query is a bound query source: the records of one model, optionally
// restricted by field equality.
type Query struct {
	Model  *model.Model
	Filter map[string]interface{}
}

// All returns the query source selecting every record of the model.
func All(m *model.Model) *Query {
	return &Query{Model: m}
}

// Where returns a copy of the query further restricted to records whose
// field equals value.
func (q *Query) Where(field string, value interface{}) *Query {
	out := &Query{
		Model:  q.Model,
		Filter: make(map[string]interface{}, len(q.Filter)+1),
	}
	for k, v := range q.Filter {
		out.Filter[k] = v
	}
	out.Filter[field] = value
	return out
}

func (q *Query) String() string {
	if len(q.Filter) == 0 {
		return fmt.Sprintf("%s.all()", q.Model.Label())
	}
	return fmt.Sprintf("%s.filter(%v)", q.Model.Label(), q.Filter)
}

// Validate checks that the query is bound to a model and only filters on
// fields the model has.
func (q *Query) Validate() error {
	if q == nil || q.Model == nil {
		return errors.New("query must be bound to a model")
	}
	for k := range q.Filter {
		if _, ok := q.Model.Field(k); !ok {
			return errors.Errorf("model '%s' has no field '%s' to filter on", q.Model.Label(), k)
		}
	}
	return nil
}

// Matches reports whether the record satisfies the query filter.
func (q *Query) Matches(rec model.Record) bool {
	for k, want := range q.Filter {
		got, ok := rec[k]
		if !ok || !valuesEqual(got, want) {
			return false
		}
	}
	return true
}

// NewID returns a fresh record id.
func NewID() string { return uuid.New().String() }

// prepareInsert copies the record and assigns it an id when it has none.
func prepareInsert(rec model.Record) model.Record {
	out := rec.Copy()
	if out.ID() == "" {
		out[model.IDField] = NewID()
	} else {
		out[model.IDField] = out.ID()
	}
	return out
}

func valuesEqual(a, b interface{}) bool {
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			return af == bf
		}
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v interface{}) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	default:
		return 0, false
	}
}
