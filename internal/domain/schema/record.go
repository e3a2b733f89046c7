package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/crm/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Record holds attribute values keyed by field name.
// A nil value stands for SQL NULL.
type Record map[string]any

// Mode selects how ValidateRecord treats absent fields
type Mode int

const (
	// ModeCreate requires every required field to be present and non-nil
	ModeCreate Mode = iota
	// ModeUpdate validates only the supplied fields
	ModeUpdate
)

// dateTimeLayouts are the string forms accepted for datetime fields
var dateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// FieldError describes a single invalid attribute
type FieldError struct {
	Entity string
	Field  string
	Reason string
	Err    error
}

// Error implements the error interface
func (e *FieldError) Error() string {
	return fmt.Sprintf("%s.%s: %s", e.Entity, e.Field, e.Reason)
}

// Unwrap exposes the domain sentinel
func (e *FieldError) Unwrap() error {
	return e.Err
}

// ValidationErrors lists every problem found in a record
type ValidationErrors []*FieldError

// Error implements the error interface
func (v ValidationErrors) Error() string {
	parts := make([]string, len(v))
	for i, fe := range v {
		parts[i] = fe.Error()
	}
	return "invalid record: " + strings.Join(parts, "; ")
}

// Unwrap lets errors.Is match any sentinel carried by a field error
func (v ValidationErrors) Unwrap() []error {
	errs := make([]error, len(v))
	for i, fe := range v {
		errs[i] = fe
	}
	return errs
}

// ValidateRecord checks rec against the declaration of entity and returns a
// normalized copy whose values have canonical Go types: string, int64,
// decimal.Decimal, time.Time or nil.
//
// The primary key is not an assignable attribute and is rejected.
func (r *Registry) ValidateRecord(entity string, rec Record, mode Mode) (Record, error) {
	e, ok := r.byName[entity]
	if !ok {
		return nil, fmt.Errorf("%w: %q", shared.ErrUnknownEntity, entity)
	}

	var errs ValidationErrors
	invalid := func(field, reason string, sentinel error) {
		errs = append(errs, &FieldError{Entity: entity, Field: field, Reason: reason, Err: sentinel})
	}

	out := make(Record, len(rec))
	for _, f := range e.Fields {
		v, present := rec[f.Name]
		if !present {
			if mode == ModeCreate && f.Required {
				invalid(f.Name, "required field is missing", shared.ErrRequiredField)
			}
			continue
		}
		normalized, err := coerce(f, v)
		if err != nil {
			invalid(f.Name, err.Error(), shared.ErrInvalidInput)
			continue
		}
		if normalized == nil && f.Required {
			invalid(f.Name, "required field cannot be null", shared.ErrRequiredField)
			continue
		}
		out[f.Name] = normalized
	}

	var unknown []string
	for name := range rec {
		if _, ok := e.Field(name); !ok {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)
	for _, name := range unknown {
		if name == e.PrimaryKey {
			invalid(name, "primary key is assigned by the database", shared.ErrInvalidInput)
			continue
		}
		invalid(name, "unknown field", shared.ErrInvalidInput)
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return out, nil
}

// coerce converts v to the canonical Go type of f
func coerce(f Field, v any) (any, error) {
	v = deref(v)
	if v == nil {
		return nil, nil
	}
	switch f.Type {
	case FieldString, FieldText:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", v)
		}
		if f.Size > 0 && utf8.RuneCountInString(s) > f.Size {
			return nil, fmt.Errorf("longer than %d characters", f.Size)
		}
		return s, nil
	case FieldInteger:
		return toInt64(v)
	case FieldReference:
		id, err := toInt64(v)
		if err != nil {
			return nil, err
		}
		if id <= 0 {
			return nil, fmt.Errorf("reference must be a positive id, got %d", id)
		}
		return id, nil
	case FieldDecimal:
		return toDecimal(v)
	case FieldDateTime:
		return toTime(v)
	}
	return nil, fmt.Errorf("unsupported field type %q", f.Type)
}

// deref unwraps typed pointers; a nil pointer becomes nil
func deref(v any) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	return rv.Interface()
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint:
		if uint64(n) > math.MaxInt64 {
			return 0, fmt.Errorf("integer %d out of range", n)
		}
		return int64(n), nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("integer %d out of range", n)
		}
		return int64(n), nil
	case float32:
		return integralFloat(float64(n))
	case float64:
		return integralFloat(n)
	case json.Number:
		return n.Int64()
	}
	return 0, fmt.Errorf("expected integer, got %T", v)
}

func integralFloat(f float64) (int64, error) {
	// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold
	if f != math.Trunc(f) || f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, fmt.Errorf("expected integer, got %v", f)
	}
	return int64(f), nil
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case decimal.Decimal:
		return n, nil
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return decimal.Decimal{}, fmt.Errorf("expected finite decimal, got %v", n)
		}
		return decimal.NewFromFloat(n), nil
	case float32:
		if math.IsNaN(float64(n)) || math.IsInf(float64(n), 0) {
			return decimal.Decimal{}, fmt.Errorf("expected finite decimal, got %v", n)
		}
		return decimal.NewFromFloat32(n), nil
	case string:
		return decimal.NewFromString(n)
	case json.Number:
		return decimal.NewFromString(n.String())
	}
	i, err := toInt64(v)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("expected decimal, got %T", v)
	}
	return decimal.NewFromInt(i), nil
}

func toTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		for _, layout := range dateTimeLayouts {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, nil
			}
		}
		return time.Time{}, fmt.Errorf("unrecognised datetime %q", t)
	}
	return time.Time{}, fmt.Errorf("expected datetime, got %T", v)
}
