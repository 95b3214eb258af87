// Package codec implements the compact binary payload format used on the
// MQTT telemetry topics and the bulk report endpoint.
//
// A Shape describes the layout of a payload. It is either a struct
// expression (a string of single-character type codes, possibly wrapped in
// [] for arrays or the special [str] form) or a record of named fields,
// each with its own shape. Numerics are big-endian. Every encoded payload
// starts with a float64 Unix timestamp.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

var (
	// ErrBadShape indicates a structurally invalid shape.
	ErrBadShape = errors.New("bad shape")

	// ErrTruncated indicates the payload ended mid-field.
	ErrTruncated = errors.New("truncated payload")

	// ErrOverflow indicates an integer value does not fit its type code.
	ErrOverflow = errors.New("integer overflow")
)

// Type codes of the struct-shape grammar.
//
//	b/B  int8 / uint8
//	h/H  int16 / uint16
//	i/I  int32 / uint32
//	q/Q  int64 / uint64
//	f/d  float32 / float64
//	?    bool
const typeCodes = "bBhHiIqQfd?"

// stringShape is the special struct expression for a UTF-8 string.
const stringShape = "[str]"

// Field is one named member of a record shape.
type Field struct {
	Name  string
	Shape Shape
}

// Shape is the layout description of a payload. Exactly one of the two
// representations is populated: Expr for struct expressions (including the
// [s] array and [str] string forms) or Fields for heterogeneous records.
type Shape struct {
	Expr   string
	Fields []Field
}

// Struct returns a struct-expression shape such as "f", "ddI" or "[h]".
func Struct(expr string) Shape {
	return Shape{Expr: expr}
}

// Record returns a record shape with the given named fields.
func Record(fields ...Field) Shape {
	return Shape{Fields: fields}
}

// IsRecord reports whether the shape is a heterogeneous record.
func (s Shape) IsRecord() bool {
	return len(s.Fields) > 0
}

// IsArray reports whether the shape is a repeated array (including [str]).
func (s Shape) IsArray() bool {
	return !s.IsRecord() && len(s.Expr) > 1 && s.Expr[0] == '['
}

// IsString reports whether the shape is the [str] string form.
func (s Shape) IsString() bool {
	return s.Expr == stringShape
}

// Elem returns the element shape of an array shape.
func (s Shape) Elem() Shape {
	return Shape{Expr: s.Expr[1 : len(s.Expr)-1]}
}

// Numeric reports whether values of this shape participate in min/avg/max
// aggregation. Only single scalar codes qualify; booleans count as 0/1.
// Arrays, strings and compound shapes aggregate to the null triple.
func (s Shape) Numeric() bool {
	return !s.IsRecord() && len(s.Expr) == 1
}

// Validate checks the shape for structural validity.
func (s Shape) Validate() error {
	if s.IsRecord() {
		if s.Expr != "" {
			return fmt.Errorf("%w: record shape with struct expression %q", ErrBadShape, s.Expr)
		}
		for _, f := range s.Fields {
			if err := f.Shape.Validate(); err != nil {
				return err
			}
		}
		return nil
	}
	return validateExpr(s.Expr)
}

func validateExpr(expr string) error {
	if expr == "" {
		return fmt.Errorf("%w: empty struct expression", ErrBadShape)
	}
	if expr == stringShape {
		return nil
	}
	if expr[0] == '[' {
		if expr[len(expr)-1] != ']' {
			return fmt.Errorf("%w: unterminated array in %q", ErrBadShape, expr)
		}
		return validateExpr(expr[1 : len(expr)-1])
	}
	for i := 0; i < len(expr); i++ {
		if !isTypeCode(expr[i]) {
			return fmt.Errorf("%w: unknown type code %q in %q", ErrBadShape, expr[i], expr)
		}
	}
	return nil
}

func isTypeCode(c byte) bool {
	for i := 0; i < len(typeCodes); i++ {
		if typeCodes[i] == c {
			return true
		}
	}
	return false
}

// codeSize returns the encoded size of a single type code in bytes.
func codeSize(c byte) int {
	switch c {
	case 'b', 'B', '?':
		return 1
	case 'h', 'H':
		return 2
	case 'i', 'I', 'f':
		return 4
	case 'q', 'Q', 'd':
		return 8
	default:
		return 0
	}
}

// exprSize returns the fixed encoded size of a plain struct expression.
func exprSize(expr string) int {
	n := 0
	for i := 0; i < len(expr); i++ {
		n += codeSize(expr[i])
	}
	return n
}

// FixedSize returns the per-sample encoded size of the shape, excluding the
// leading timestamp, and whether the shape has a fixed size at all. Arrays
// and strings are variable-length.
func (s Shape) FixedSize() (int, bool) {
	if s.IsRecord() {
		total := 0
		for _, f := range s.Fields {
			n, ok := f.Shape.FixedSize()
			if !ok {
				return 0, false
			}
			total += n
		}
		return total, true
	}
	if s.IsArray() || s.IsString() {
		return 0, false
	}
	return exprSize(s.Expr), true
}

// Wire form: a struct expression serializes as a plain string, a record as
// an array of [name, shape] pairs. This matches what vessels already send.

// MarshalJSON implements json.Marshaler.
func (s Shape) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.wireValue())
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Shape) UnmarshalJSON(data []byte) error {
	var expr string
	if err := json.Unmarshal(data, &expr); err == nil {
		*s = Shape{Expr: expr}
		return s.Validate()
	}

	var pairs []json.RawMessage
	if err := json.Unmarshal(data, &pairs); err != nil {
		return fmt.Errorf("%w: shape must be a string or a list of [name, shape] pairs", ErrBadShape)
	}

	fields := make([]Field, 0, len(pairs))
	for _, p := range pairs {
		var pair []json.RawMessage
		if err := json.Unmarshal(p, &pair); err != nil || len(pair) != 2 {
			return fmt.Errorf("%w: record field must be a [name, shape] pair", ErrBadShape)
		}
		var f Field
		if err := json.Unmarshal(pair[0], &f.Name); err != nil {
			return fmt.Errorf("%w: record field name must be a string", ErrBadShape)
		}
		if err := json.Unmarshal(pair[1], &f.Shape); err != nil {
			return err
		}
		fields = append(fields, f)
	}
	*s = Shape{Fields: fields}
	return s.Validate()
}

// MarshalBSONValue implements bson.ValueMarshaler so shapes embed naturally
// in flight documents.
func (s Shape) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(s.wireValue())
}

// UnmarshalBSONValue implements bson.ValueUnmarshaler.
func (s *Shape) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw := bson.RawValue{Type: t, Value: data}

	if t == bson.TypeString {
		*s = Shape{Expr: raw.StringValue()}
		return s.Validate()
	}

	if t != bson.TypeArray {
		return fmt.Errorf("%w: shape must be a string or a list of [name, shape] pairs", ErrBadShape)
	}

	elems, err := raw.Array().Values()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadShape, err)
	}

	fields := make([]Field, 0, len(elems))
	for _, el := range elems {
		if el.Type != bson.TypeArray {
			return fmt.Errorf("%w: record field must be a [name, shape] pair", ErrBadShape)
		}
		pair, err := el.Array().Values()
		if err != nil || len(pair) != 2 {
			return fmt.Errorf("%w: record field must be a [name, shape] pair", ErrBadShape)
		}
		var f Field
		if pair[0].Type != bson.TypeString {
			return fmt.Errorf("%w: record field name must be a string", ErrBadShape)
		}
		f.Name = pair[0].StringValue()
		if err := f.Shape.UnmarshalBSONValue(pair[1].Type, pair[1].Value); err != nil {
			return err
		}
		fields = append(fields, f)
	}
	*s = Shape{Fields: fields}
	return s.Validate()
}

// wireValue returns the plain representation used by both JSON and BSON.
func (s Shape) wireValue() any {
	if !s.IsRecord() {
		return s.Expr
	}
	pairs := make([]any, 0, len(s.Fields))
	for _, f := range s.Fields {
		pairs = append(pairs, []any{f.Name, f.Shape.wireValue()})
	}
	return pairs
}

// String returns a compact human-readable form, for logs.
func (s Shape) String() string {
	if !s.IsRecord() {
		return s.Expr
	}
	out := "("
	for i, f := range s.Fields {
		if i > 0 {
			out += ", "
		}
		out += f.Name + ":" + f.Shape.String()
	}
	return out + ")"
}
