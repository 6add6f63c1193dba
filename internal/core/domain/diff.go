package domain

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"time"
)

// FieldMap is a desired attribute→value mapping keyed by wire attribute
// name. Values may be any JSON-marshalable type; they are normalized to
// their wire representation before comparison.
type FieldMap map[string]any

// Change records a single staged attribute with its previous and new wire
// values.
type Change struct {
	Attr string
	Old  any
	New  any
}

// String renders the change for the audit log. Wrapped platform dates are
// converted to readable timestamps.
func (c Change) String() string {
	return fmt.Sprintf("%s: %v -> %v", c.Attr, renderValue(c.Old), renderValue(c.New))
}

func renderValue(v any) any {
	if s, ok := v.(string); ok {
		if t, matched := ParseWrappedDate(s); matched {
			return t.Format(time.RFC3339)
		}
	}
	if v == nil {
		return "<unset>"
	}
	return v
}

// ChangeStrings renders changes for audit logging.
func ChangeStrings(changes []Change) []string {
	out := make([]string, len(changes))
	for i, c := range changes {
		out[i] = c.String()
	}
	return out
}

// ApplyFields compares every desired attribute against obj's current wire
// value and stages each attribute that differs onto obj, all or nothing. It
// returns the staged changes in attribute order; an empty result means obj
// was not touched and no remote write is needed. obj must be a pointer to a
// remote mirror struct.
func ApplyFields(obj any, desired FieldMap) ([]Change, error) {
	cur, err := toWireMap(obj)
	if err != nil {
		return nil, err
	}

	attrs := make([]string, 0, len(desired))
	for k := range desired {
		attrs = append(attrs, k)
	}
	sort.Strings(attrs)

	var changes []Change
	for _, attr := range attrs {
		want, err := normalizeValue(desired[attr])
		if err != nil {
			return nil, fmt.Errorf("normalize %s: %w", attr, err)
		}
		got := cur[attr]
		if reflect.DeepEqual(got, want) {
			continue
		}
		changes = append(changes, Change{Attr: attr, Old: got, New: want})
		cur[attr] = want
	}
	if len(changes) == 0 {
		return nil, nil
	}

	staged, err := json.Marshal(cur)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(staged, obj); err != nil {
		return nil, err
	}
	return changes, nil
}

// toWireMap flattens a remote mirror into its wire attribute map.
func toWireMap(obj any) (map[string]any, error) {
	raw, err := json.Marshal(obj)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// normalizeValue converts a desired value to the representation it would
// have after a JSON round trip, so comparisons against the current wire map
// are type-stable (ints become float64, structs become maps, and so on).
func normalizeValue(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
