package query

import (
	"fmt"

	"github.com/sunecz/Media-Downloader-Default-Plugins-sub000/errors"
)

// Operator is a field filter operator.
type Operator string

// Field filter operators
const (
	OpEqual            Operator = "EQUAL"
	OpIn               Operator = "IN"
	OpArrayContains    Operator = "ARRAY_CONTAINS"
	OpArrayContainsAny Operator = "ARRAY_CONTAINS_ANY"
)

// CompositeAnd is the only composite operator callers need.
const CompositeAnd = "AND"

// FieldReference names a document field.
type FieldReference struct {
	FieldPath string `json:"fieldPath"`
}

// Filter is either a field filter or a composite filter.
type Filter struct {
	FieldFilter     *FieldFilter     `json:"fieldFilter,omitempty"`
	CompositeFilter *CompositeFilter `json:"compositeFilter,omitempty"`
}

// FieldFilter compares one field with a value.
type FieldFilter struct {
	Field FieldReference `json:"field"`
	Op    Operator       `json:"op"`
	Value Value          `json:"value"`
}

// CompositeFilter combines filters.
type CompositeFilter struct {
	Op      string   `json:"op"`
	Filters []Filter `json:"filters"`
}

// Equal matches documents whose field equals v.
func Equal(field string, v Value) Filter {
	return fieldFilter(field, OpEqual, v)
}

// In matches documents whose field equals any of values.
func In(field string, values ...Value) Filter {
	return fieldFilter(field, OpIn, Array(values...))
}

// ArrayContains matches documents whose array field contains v.
func ArrayContains(field string, v Value) Filter {
	return fieldFilter(field, OpArrayContains, v)
}

// ArrayContainsAny matches documents whose array field contains any of values.
func ArrayContainsAny(field string, values ...Value) Filter {
	return fieldFilter(field, OpArrayContainsAny, Array(values...))
}

// And combines filters. A single filter is returned unchanged.
func And(filters ...Filter) Filter {
	if len(filters) == 1 {
		return filters[0]
	}
	return Filter{CompositeFilter: &CompositeFilter{Op: CompositeAnd, Filters: filters}}
}

func fieldFilter(field string, op Operator, v Value) Filter {
	return Filter{FieldFilter: &FieldFilter{
		Field: FieldReference{FieldPath: field},
		Op:    op,
		Value: v,
	}}
}

// Validate checks the filter tree.
func (f Filter) Validate() error {
	switch {
	case f.FieldFilter != nil && f.CompositeFilter != nil:
		return invalid("filter sets both field and composite")
	case f.FieldFilter != nil:
		return f.FieldFilter.validate()
	case f.CompositeFilter != nil:
		if f.CompositeFilter.Op != CompositeAnd {
			return invalid(fmt.Sprintf("composite operator %q", f.CompositeFilter.Op))
		}
		if len(f.CompositeFilter.Filters) == 0 {
			return invalid("empty composite filter")
		}
		for _, sub := range f.CompositeFilter.Filters {
			if err := sub.Validate(); err != nil {
				return err
			}
		}
		return nil
	default:
		return invalid("empty filter")
	}
}

func (ff *FieldFilter) validate() error {
	if ff.Field.FieldPath == "" {
		return invalid("filter without field path")
	}
	switch ff.Op {
	case OpEqual, OpArrayContains:
		if !ff.Value.isSimple() {
			return invalid(fmt.Sprintf("%s on %q needs a simple value", ff.Op, ff.Field.FieldPath))
		}
	case OpIn, OpArrayContainsAny:
		if ff.Value.ArrayValue == nil || len(ff.Value.ArrayValue.Values) == 0 {
			return invalid(fmt.Sprintf("%s on %q needs a non-empty list", ff.Op, ff.Field.FieldPath))
		}
		for _, v := range ff.Value.ArrayValue.Values {
			if !v.isSimple() {
				return invalid(fmt.Sprintf("%s on %q needs simple list values", ff.Op, ff.Field.FieldPath))
			}
		}
	default:
		return invalid(fmt.Sprintf("operator %q", ff.Op))
	}
	return nil
}

func invalid(action string) error {
	return errors.WrapInvalid(errors.ErrInvalidData, "query", "Validate", action)
}
