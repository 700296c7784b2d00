package sql

import (
	"fmt"
	"strings"
	"time"
)

// Kind discriminates the tagged union of bindable values.
type Kind uint8

// Value kinds.
const (
	KindNull Kind = iota
	KindInt
	KindDecimal
	KindText
	KindDateTime
	KindRaw
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInt:
		return "int"
	case KindDecimal:
		return "decimal"
	case KindText:
		return "text"
	case KindDateTime:
		return "datetime"
	case KindRaw:
		return "raw"
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Type is the optional declared type of a bound value. The dialect coercion
// policy resolves untyped values at prepare time; a declared type always wins.
type Type uint8

// Declared types.
const (
	TypeUnspecified Type = iota
	TypeInt
	TypeDecimal
	TypeText
	TypeDateTime
	TypeRaw
)

// Value is a tagged union over the bindable value domain:
// Null | Int | Decimal | Text | DateTime | Raw.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
	t    time.Time
	b    []byte
}

// Null returns the null value.
func Null() Value { return Value{kind: KindNull} }

// Int returns an integer value.
func Int(v int64) Value { return Value{kind: KindInt, i: v} }

// Decimal returns a decimal value.
func Decimal(v float64) Value { return Value{kind: KindDecimal, f: v} }

// Text returns a text value.
func Text(v string) Value { return Value{kind: KindText, s: v} }

// DateTime returns a date/time value.
func DateTime(v time.Time) Value { return Value{kind: KindDateTime, t: v} }

// Raw returns an opaque byte value passed to the driver untouched.
func Raw(v []byte) Value { return Value{kind: KindRaw, b: v} }

// Kind returns the value's kind.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Native returns the value in the representation the database/sql driver
// layer accepts.
func (v Value) Native() any {
	switch v.kind {
	case KindNull:
		return nil
	case KindInt:
		return v.i
	case KindDecimal:
		return v.f
	case KindText:
		return v.s
	case KindDateTime:
		return v.t
	case KindRaw:
		return v.b
	}
	return nil
}

// Text returns the text payload of a KindText value.
func (v Value) TextValue() string { return v.s }

// String renders the value for debug output.
func (v Value) String() string {
	if v.kind == KindNull {
		return "NULL"
	}
	return fmt.Sprint(v.Native())
}

// TypedValue pairs a value with an explicitly declared type. Builder
// methods accepting any recognize it and carry the type onto the binding.
type TypedValue struct {
	Value Value
	Type  Type
}

// Typed wraps a value with a declared type.
func Typed(v any, t Type) TypedValue {
	return TypedValue{Value: AutoValue(v), Type: t}
}

// AutoValue maps arbitrary caller input onto the value union. Unrecognized
// types fall back to their text rendering.
func AutoValue(v any) Value {
	switch x := v.(type) {
	case nil:
		return Null()
	case Value:
		return x
	case TypedValue:
		return x.Value
	case bool:
		if x {
			return Int(1)
		}
		return Int(0)
	case int:
		return Int(int64(x))
	case int8:
		return Int(int64(x))
	case int16:
		return Int(int64(x))
	case int32:
		return Int(int64(x))
	case int64:
		return Int(x)
	case uint:
		return Int(int64(x))
	case uint8:
		return Int(int64(x))
	case uint16:
		return Int(int64(x))
	case uint32:
		return Int(int64(x))
	case uint64:
		return Int(int64(x))
	case float32:
		return Decimal(float64(x))
	case float64:
		return Decimal(x)
	case string:
		return Text(x)
	case []byte:
		return Raw(x)
	case time.Time:
		return DateTime(x)
	}
	return Text(fmt.Sprint(v))
}

// Binding is a named, optionally typed parameter value attached to one
// rendered statement. Names are unique within a statement.
type Binding struct {
	Name  string
	Value Value
	Type  Type
}

// String renders the binding for debug output.
func (b Binding) String() string {
	return b.Name + "=" + b.Value.String()
}

// nameSanitizer rewrites characters that are illegal inside a parameter
// placeholder into fixed sentinel tokens.
var nameSanitizer = strings.NewReplacer(
	".", "_dot_",
	"-", "_dash_",
	"/", "_sl_",
	`\`, "_bsl_",
)

// sanitizeName derives a placeholder-safe parameter name from a column name.
func sanitizeName(field string) string {
	return nameSanitizer.Replace(field)
}
