package domain

import (
	"sort"
	"strconv"
)

// ValueKind tags the scalar type carried by a Value.
type ValueKind int

const (
	// ValueUndefined marks an attribute whose value could not be
	// evaluated to a defined scalar.
	ValueUndefined ValueKind = iota

	// ValueString is a string scalar.
	ValueString

	// ValueInt is a 64-bit integer scalar.
	ValueInt

	// ValueReal is a floating point scalar.
	ValueReal

	// ValueBool is a boolean scalar.
	ValueBool

	// ValueExpr is an expression that could not be evaluated; the raw
	// expression text is kept in Str.
	ValueExpr
)

// Value is a tagged scalar attribute value from a ClassAd.
type Value struct {
	Kind ValueKind
	Str  string
	Int  int64
	Real float64
	Bool bool
}

// String constructors for the common kinds keep call sites readable.

func StringValue(s string) Value { return Value{Kind: ValueString, Str: s} }
func IntValue(i int64) Value     { return Value{Kind: ValueInt, Int: i} }
func RealValue(f float64) Value  { return Value{Kind: ValueReal, Real: f} }
func BoolValue(b bool) Value     { return Value{Kind: ValueBool, Bool: b} }
func ExprValue(raw string) Value { return Value{Kind: ValueExpr, Str: raw} }
func UndefinedValue() Value      { return Value{Kind: ValueUndefined} }

// AsString renders the scalar as a string, whatever its kind.
func (v Value) AsString() string {
	switch v.Kind {
	case ValueString, ValueExpr:
		return v.Str
	case ValueInt:
		return strconv.FormatInt(v.Int, 10)
	case ValueReal:
		return strconv.FormatFloat(v.Real, 'g', -1, 64)
	case ValueBool:
		return strconv.FormatBool(v.Bool)
	default:
		return ""
	}
}

// AsInt coerces the scalar to an integer. The second return is false
// when the value has no integer rendering.
func (v Value) AsInt() (int64, bool) {
	switch v.Kind {
	case ValueInt:
		return v.Int, true
	case ValueReal:
		return int64(v.Real), true
	case ValueBool:
		if v.Bool {
			return 1, true
		}
		return 0, true
	case ValueString:
		i, err := strconv.ParseInt(v.Str, 10, 64)
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}

// AsReal coerces the scalar to a float.
func (v Value) AsReal() (float64, bool) {
	switch v.Kind {
	case ValueReal:
		return v.Real, true
	case ValueInt:
		return float64(v.Int), true
	case ValueString:
		f, err := strconv.ParseFloat(v.Str, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// AsBool coerces the scalar to a boolean.
func (v Value) AsBool() (bool, bool) {
	switch v.Kind {
	case ValueBool:
		return v.Bool, true
	case ValueInt:
		return v.Int != 0, true
	case ValueString:
		b, err := strconv.ParseBool(v.Str)
		if err != nil {
			return false, false
		}
		return b, true
	default:
		return false, false
	}
}

// ClassAd is one raw history record: an ordered mapping of attribute
// name to tagged scalar value. Ads are read-only once fetched; they
// exist only for the duration of one harvest cycle.
type ClassAd struct {
	names  []string
	values map[string]Value
}

// NewClassAd returns an empty ad.
func NewClassAd() *ClassAd {
	return &ClassAd{values: make(map[string]Value)}
}

// Set stores an attribute, preserving first-insertion order.
func (a *ClassAd) Set(name string, v Value) {
	if a.values == nil {
		a.values = make(map[string]Value)
	}
	if _, ok := a.values[name]; !ok {
		a.names = append(a.names, name)
	}
	a.values[name] = v
}

// Get returns the attribute value and whether it is present.
func (a *ClassAd) Get(name string) (Value, bool) {
	v, ok := a.values[name]
	return v, ok
}

// Lookup returns the attribute value, or an undefined value when absent.
func (a *ClassAd) Lookup(name string) Value {
	if v, ok := a.values[name]; ok {
		return v
	}
	return UndefinedValue()
}

// Names returns the attribute names in insertion order. The returned
// slice is a copy.
func (a *ClassAd) Names() []string {
	out := make([]string, len(a.names))
	copy(out, a.names)
	return out
}

// SortedNames returns the attribute names sorted lexically. Useful in
// tests and anywhere deterministic iteration matters more than
// insertion order.
func (a *ClassAd) SortedNames() []string {
	out := a.Names()
	sort.Strings(out)
	return out
}

// Len returns the number of attributes.
func (a *ClassAd) Len() int {
	return len(a.names)
}
