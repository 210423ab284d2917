package query

import "strconv"

// Value is a typed field value. Exactly one field is set.
type Value struct {
	StringValue    *string     `json:"stringValue,omitempty"`
	IntegerValue   *string     `json:"integerValue,omitempty"`
	ReferenceValue *string     `json:"referenceValue,omitempty"`
	ArrayValue     *ArrayValue `json:"arrayValue,omitempty"`
}

// ArrayValue is a list of values.
type ArrayValue struct {
	Values []Value `json:"values"`
}

// String returns a string value.
func String(s string) Value {
	return Value{StringValue: &s}
}

// Integer returns an integer value. Integers travel as decimal strings.
func Integer(n int64) Value {
	s := strconv.FormatInt(n, 10)
	return Value{IntegerValue: &s}
}

// Reference returns a document reference value.
func Reference(path string) Value {
	return Value{ReferenceValue: &path}
}

// Array returns an array value.
func Array(values ...Value) Value {
	if values == nil {
		values = []Value{}
	}
	return Value{ArrayValue: &ArrayValue{Values: values}}
}

// Strings converts each string to a string value.
func Strings(ss ...string) []Value {
	values := make([]Value, len(ss))
	for i, s := range ss {
		values[i] = String(s)
	}
	return values
}

func (v Value) isSet() bool {
	n := 0
	for _, set := range []bool{v.StringValue != nil, v.IntegerValue != nil, v.ReferenceValue != nil, v.ArrayValue != nil} {
		if set {
			n++
		}
	}
	return n == 1
}

func (v Value) isSimple() bool {
	return v.isSet() && v.ArrayValue == nil
}
