package docstore

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"
)

// TimeLayout is a fixed-width UTC layout so that timestamps stored as JSON
// strings sort chronologically.
const TimeLayout = "2006-01-02T15:04:05.000000000Z"

// Resolve turns write-side fields into plain JSON-compatible values,
// replacing ServerTimestamp with now.
func Resolve(fields Fields, now time.Time) (map[string]any, error) {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		rv, err := resolveValue(v, now)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		out[k] = rv
	}
	return out, nil
}

// ResolveValue is Resolve for a single value.
func ResolveValue(v any, now time.Time) (any, error) {
	return resolveValue(v, now)
}

func resolveValue(v any, now time.Time) (any, error) {
	switch t := v.(type) {
	case serverTimestamp:
		return now.UTC().Format(TimeLayout), nil
	case time.Time:
		return t.UTC().Format(TimeLayout), nil
	case Fields:
		return Resolve(t, now)
	case map[string]any:
		return Resolve(Fields(t), now)
	}
	// round-trip through JSON so every backend sees the same value shapes
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

// Merge copies src over dst at the top level.
func Merge(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// Apply runs field updates against a decoded document. doc may be nil.
func Apply(doc map[string]any, updates []Update, now time.Time) (map[string]any, error) {
	if doc == nil {
		doc = make(map[string]any)
	}
	for _, u := range updates {
		if err := ValidateField(u.Field); err != nil {
			return nil, err
		}
		switch u.Op {
		case OpSet:
			v, err := resolveValue(u.Value, now)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", u.Field, err)
			}
			doc[u.Field] = v
		case OpArrayUnion:
			arr := asArray(doc[u.Field])
			for _, raw := range u.Values {
				v, err := resolveValue(raw, now)
				if err != nil {
					return nil, fmt.Errorf("field %q: %w", u.Field, err)
				}
				if indexOf(arr, v) < 0 {
					arr = append(arr, v)
				}
			}
			doc[u.Field] = arr
		case OpArrayRemove:
			arr := asArray(doc[u.Field])
			kept := arr[:0]
			for _, existing := range arr {
				remove := false
				for _, raw := range u.Values {
					v, err := resolveValue(raw, now)
					if err != nil {
						return nil, fmt.Errorf("field %q: %w", u.Field, err)
					}
					if reflect.DeepEqual(existing, v) {
						remove = true
						break
					}
				}
				if !remove {
					kept = append(kept, existing)
				}
			}
			doc[u.Field] = kept
		case OpIncrement, OpIncrementFloor:
			n, err := toInt64(u.Value)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", u.Field, err)
			}
			doc[u.Field] = add(doc[u.Field], n, u.Op == OpIncrementFloor, u.Floor)
		default:
			return nil, fmt.Errorf("unsupported update op %s", u.Op)
		}
	}
	return doc, nil
}

// ValidateField accepts plain top-level field names only.
func ValidateField(field string) error {
	if field == "" {
		return fmt.Errorf("empty field name")
	}
	for _, r := range field {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return fmt.Errorf("invalid field name %q", field)
		}
	}
	return nil
}

func asArray(v any) []any {
	switch t := v.(type) {
	case []any:
		out := make([]any, len(t))
		copy(out, t)
		return out
	case []string:
		out := make([]any, 0, len(t))
		for _, s := range t {
			out = append(out, s)
		}
		return out
	}
	// a non-array value is replaced, as Firestore does
	return []any{}
}

func indexOf(arr []any, v any) int {
	for i, e := range arr {
		if reflect.DeepEqual(e, v) {
			return i
		}
	}
	return -1
}

// add keeps the numeric type already stored. With floored set the result
// is clamped to floor.
func add(cur any, n int64, floored bool, floor int64) any {
	switch c := cur.(type) {
	case float64:
		v := c + float64(n)
		if floored && v < float64(floor) {
			v = float64(floor)
		}
		return v
	case int64:
		return clamp(c+n, floored, floor)
	case int:
		return clamp(int64(c)+n, floored, floor)
	}
	return float64(clamp(n, floored, floor))
}

func clamp(v int64, floored bool, floor int64) int64 {
	if floored && v < floor {
		return floor
	}
	return v
}

func toInt64(v any) (int64, error) {
	switch t := v.(type) {
	case int64:
		return t, nil
	case int:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case float64:
		return int64(t), nil
	}
	return 0, fmt.Errorf("increment by non-integer %T", v)
}

// Compare orders two decoded JSON values for OrderBy. Missing values sort first.
func Compare(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	switch av := a.(type) {
	case float64:
		if bv, ok := b.(float64); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
			return 0
		}
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv)
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case av == bv:
				return 0
			case !av:
				return -1
			}
			return 1
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

// JSONSnapshot is a Snapshot over a JSON-encoded document body.
type JSONSnapshot struct {
	ref DocRef
	raw []byte
}

func NewJSONSnapshot(ref DocRef, raw []byte) *JSONSnapshot {
	return &JSONSnapshot{ref: ref, raw: raw}
}

func (s *JSONSnapshot) Ref() DocRef {
	return s.ref
}

func (s *JSONSnapshot) DataTo(v any) error {
	if err := json.Unmarshal(s.raw, v); err != nil {
		return fmt.Errorf("decode %s: %w", s.ref.Path(), err)
	}
	return nil
}

// Raw returns the encoded document body.
func (s *JSONSnapshot) Raw() []byte {
	return s.raw
}
