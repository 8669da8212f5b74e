package model

import (
	"math"
	"time"

	"github.com/evergreen-ci/restadmin/model"
	"github.com/pkg/errors"
)

// APIRecord is the wire representation of a record.
type APIRecord map[string]interface{}

// Serializer converts records of one model to and from their wire
// representation.
type Serializer interface {
	Model() *model.Model
	// Fields returns the names of the exposed fields.
	Fields() []string
	// BuildFromService converts a stored record to its API form.
	BuildFromService(model.Record) (APIRecord, error)
	// ToService validates an API payload and converts it to a record. When
	// partial is true, required fields may be omitted.
	ToService(data APIRecord, partial bool) (model.Record, error)
}

// ModelSerializer is the default serializer: it exposes a set of the
// model's fields and checks incoming values against the field kinds.
type ModelSerializer struct {
	model  *model.Model
	fields []model.Field
}

// NewModelSerializer returns a serializer exposing the named fields of the
// model, or all of them when no names (or model.AllFields) are given.
func NewModelSerializer(m *model.Model, fields ...string) (*ModelSerializer, error) {
	if m == nil {
		return nil, errors.New("serializer must be bound to a model")
	}

	s := &ModelSerializer{model: m}
	if len(fields) == 0 || (len(fields) == 1 && fields[0] == model.AllFields) {
		s.fields = append(s.fields, m.Fields...)
		return s, nil
	}

	for _, name := range fields {
		f, ok := m.Field(name)
		if !ok {
			return nil, errors.Errorf("field '%s' is not a field of model '%s'", name, m.Label())
		}
		s.fields = append(s.fields, f)
	}

	return s, nil
}

func (s *ModelSerializer) Model() *model.Model { return s.model }

func (s *ModelSerializer) Fields() []string {
	out := make([]string, 0, len(s.fields))
	for _, f := range s.fields {
		out = append(out, f.Name)
	}
	return out
}

// BuildFromService includes every exposed field; fields the record does
// not carry are null.
func (s *ModelSerializer) BuildFromService(rec model.Record) (APIRecord, error) {
	if rec == nil {
		return nil, errors.Errorf("cannot serialize nil %s", s.model.VerboseName)
	}

	out := APIRecord{}
	for _, f := range s.fields {
		v, ok := rec[f.Name]
		if !ok {
			out[f.Name] = nil
			continue
		}
		if t, ok := v.(time.Time); ok {
			v = t.UTC().Format(time.RFC3339Nano)
		}
		out[f.Name] = v
	}

	return out, nil
}

// ToService ignores keys that are not exposed writable fields.
func (s *ModelSerializer) ToService(data APIRecord, partial bool) (model.Record, error) {
	verr := model.ValidationError{}
	out := model.Record{}

	for _, f := range s.fields {
		if f.ReadOnly {
			continue
		}

		v, ok := data[f.Name]
		if !ok {
			if f.Required && !partial {
				verr.Add(f.Name, "this field is required")
			}
			continue
		}
		if v == nil {
			if f.Required {
				verr.Add(f.Name, "this field may not be null")
				continue
			}
			out[f.Name] = nil
			continue
		}

		converted, err := convertValue(f.Kind, v)
		if err != nil {
			verr.Add(f.Name, err.Error())
			continue
		}
		out[f.Name] = converted
	}

	if verr.HasErrors() {
		return nil, verr
	}

	return out, nil
}

func convertValue(kind model.FieldKind, v interface{}) (interface{}, error) {
	switch kind {
	case model.KindString:
		if s, ok := v.(string); ok {
			return s, nil
		}
		return nil, errors.New("must be a string")
	case model.KindBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
		return nil, errors.New("must be a boolean")
	case model.KindInt:
		switch n := v.(type) {
		case int:
			return int64(n), nil
		case int32:
			return int64(n), nil
		case int64:
			return n, nil
		case float64:
			if n != math.Trunc(n) || math.IsInf(n, 0) || math.IsNaN(n) || n < math.MinInt64 || n >= math.MaxInt64 {
				return nil, errors.New("must be an integer")
			}
			return int64(n), nil
		}
		return nil, errors.New("must be an integer")
	case model.KindFloat:
		switch n := v.(type) {
		case int:
			return float64(n), nil
		case int64:
			return float64(n), nil
		case float64:
			return n, nil
		}
		return nil, errors.New("must be a number")
	case model.KindTime:
		switch t := v.(type) {
		case time.Time:
			return t.UTC(), nil
		case string:
			parsed, err := time.Parse(time.RFC3339Nano, t)
			if err != nil {
				return nil, errors.New("must be an RFC 3339 timestamp")
			}
			return parsed.UTC(), nil
		}
		return nil, errors.New("must be an RFC 3339 timestamp")
	case model.KindAny:
		return v, nil
	default:
		return nil, errors.Errorf("unsupported field kind '%s'", kind)
	}
}
