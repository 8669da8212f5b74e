package model

import (
	"fmt"
	"reflect"
	"strings"
	"time"
	"unicode"

	"github.com/pkg/errors"
)

// AllFields is the field list shorthand that selects every field of a model.
const AllFields = "__all__"

// IDField is the name of the primary key field every model carries.
const IDField = "id"

// FieldKind describes the JSON kind a field value must have.
type FieldKind string

const (
	KindString FieldKind = "string"
	KindInt    FieldKind = "int"
	KindFloat  FieldKind = "float"
	KindBool   FieldKind = "bool"
	KindTime   FieldKind = "time"
	KindAny    FieldKind = "any"
)

// Validate returns an error if the kind is not one of the known kinds.
func (k FieldKind) Validate() error {
	switch k {
	case KindString, KindInt, KindFloat, KindBool, KindTime, KindAny:
		return nil
	default:
		return errors.Errorf("invalid field kind '%s'", k)
	}
}

// Field describes a single attribute of a model.
type Field struct {
	Name     string    `json:"name" yaml:"name"`
	Kind     FieldKind `json:"kind" yaml:"kind"`
	Required bool      `json:"required" yaml:"required"`
	ReadOnly bool      `json:"read_only" yaml:"read_only"`
}

// Model is the descriptor of a data-record type: the namespace it belongs
// to, its name and its fields.
type Model struct {
	AppLabel          string
	Name              string
	VerboseName       string
	VerboseNamePlural string
	Abstract          bool
	Fields            []Field
}

// Label returns the "{app_label}.{model_name}" identifier of the model.
func (m *Model) Label() string {
	return fmt.Sprintf("%s.%s", m.AppLabel, m.Name)
}

func (m *Model) String() string { return m.Label() }

// Collection returns the storage name of the model.
func (m *Model) Collection() string {
	return fmt.Sprintf("%s_%s", m.AppLabel, m.Name)
}

// Field returns the named field, if the model has one.
func (m *Model) Field(name string) (Field, bool) {
	for _, f := range m.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// FieldNames returns the names of all fields in declaration order.
func (m *Model) FieldNames() []string {
	out := make([]string, 0, len(m.Fields))
	for _, f := range m.Fields {
		out = append(out, f.Name)
	}
	return out
}

// Validate checks the descriptor and fills in the derived names and the
// primary key field when they are missing.
func (m *Model) Validate() error {
	if m.AppLabel == "" {
		return errors.New("model must have an app label")
	}
	if m.Name == "" {
		return errors.Errorf("model in app '%s' must have a name", m.AppLabel)
	}
	if strings.ContainsAny(m.AppLabel+m.Name, "/ .") {
		return errors.Errorf("model '%s' contains characters not allowed in a path", m.Label())
	}

	m.Name = strings.ToLower(m.Name)
	if m.VerboseName == "" {
		m.VerboseName = strings.ToLower(m.Name)
	}
	if m.VerboseNamePlural == "" {
		m.VerboseNamePlural = m.VerboseName + "s"
	}

	seen := map[string]bool{}
	hasID := false
	for i := range m.Fields {
		f := &m.Fields[i]
		if f.Name == "" {
			return errors.Errorf("model '%s' has a field without a name", m.Label())
		}
		if seen[f.Name] {
			return errors.Errorf("model '%s' has duplicate field '%s'", m.Label(), f.Name)
		}
		seen[f.Name] = true
		if f.Kind == "" {
			f.Kind = KindAny
		}
		if err := f.Kind.Validate(); err != nil {
			return errors.Wrapf(err, "field '%s' of model '%s'", f.Name, m.Label())
		}
		if f.Name == IDField {
			hasID = true
			f.ReadOnly = true
			f.Required = false
		}
	}
	if !hasID {
		m.Fields = append([]Field{{Name: IDField, Kind: KindString, ReadOnly: true}}, m.Fields...)
	}

	return nil
}

// New constructs and validates a model descriptor.
func New(appLabel, name string, fields ...Field) (*Model, error) {
	m := &Model{
		AppLabel: appLabel,
		Name:     name,
		Fields:   fields,
	}
	if err := m.Validate(); err != nil {
		return nil, errors.WithStack(err)
	}
	return m, nil
}

// MustNew is New for package-level declarations; it panics on an invalid
// descriptor.
func MustNew(appLabel, name string, fields ...Field) *Model {
	m, err := New(appLabel, name, fields...)
	if err != nil {
		panic(err)
	}
	return m
}

var timeType = reflect.TypeOf(time.Time{})

// Describe builds a model descriptor from a struct value. The model name is
// the lowercased type name, the verbose name splits the type name on case
// boundaries, and the fields come from the exported struct fields using
// their json tag names. A `restadmin` tag may carry "required", "readonly"
// or "-" to skip the field.
func Describe(appLabel string, v interface{}) (*Model, error) {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil, errors.Errorf("cannot describe %T, must be a struct", v)
	}

	m := &Model{
		AppLabel:    appLabel,
		Name:        strings.ToLower(t.Name()),
		VerboseName: splitCamelCase(t.Name()),
	}

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.PkgPath != "" {
			continue
		}

		name := sf.Name
		if tag := sf.Tag.Get("json"); tag != "" {
			parts := strings.Split(tag, ",")
			if parts[0] == "-" {
				continue
			}
			if parts[0] != "" {
				name = parts[0]
			}
		}

		f := Field{Name: name, Kind: kindOf(sf.Type)}
		skip := false
		for _, opt := range strings.Split(sf.Tag.Get("restadmin"), ",") {
			switch strings.TrimSpace(opt) {
			case "-":
				skip = true
			case "required":
				f.Required = true
			case "readonly":
				f.ReadOnly = true
			}
		}
		if !skip {
			m.Fields = append(m.Fields, f)
		}
	}

	if err := m.Validate(); err != nil {
		return nil, errors.WithStack(err)
	}

	return m, nil
}

func kindOf(t reflect.Type) FieldKind {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == timeType {
		return KindTime
	}

	switch t.Kind() {
	case reflect.String:
		return KindString
	case reflect.Bool:
		return KindBool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return KindInt
	case reflect.Float32, reflect.Float64:
		return KindFloat
	default:
		return KindAny
	}
}

// splitCamelCase turns "BookReview" into "book review".
func splitCamelCase(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prevLower := unicode.IsLower(runes[i-1])
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevLower || (nextLower && unicode.IsUpper(runes[i-1])) {
				b.WriteRune(' ')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
