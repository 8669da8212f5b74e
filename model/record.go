package model

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

// Record is the storage and wire-neutral form of a single model instance.
type Record map[string]interface{}

// ID returns the primary key of the record as a string, or "" if it has
// none.
func (r Record) ID() string {
	v, ok := r[IDField]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Copy returns a shallow copy of the record.
func (r Record) Copy() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Merge writes every key of other into a copy of the record.
func (r Record) Merge(other Record) Record {
	out := r.Copy()
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Decode converts the record into out, which must be a pointer to a struct
// whose fields use json tags. Numeric values are converted to the target
// field types.
func (r Record) Decode(out interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
		DecodeHook:       mapstructure.StringToTimeHookFunc("2006-01-02T15:04:05Z07:00"),
	})
	if err != nil {
		return errors.Wrap(err, "constructing record decoder")
	}

	return errors.Wrap(dec.Decode(map[string]interface{}(r)), "decoding record")
}
