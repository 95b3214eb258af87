package codec

import (
	"encoding/binary"
	"fmt"
	"math"
)

const timestampSize = 8

// Encode serializes a payload value under the given shape, prefixed with the
// float64 Unix timestamp. The value conventions mirror Decode: signed
// integers are int64, unsigned are uint64, floats are float64, booleans are
// bool, arrays and multi-code structs are []any, [str] is a string and
// records are []any in field declaration order.
func Encode(s Shape, t float64, v any) ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	buf := make([]byte, timestampSize, timestampSize+16)
	binary.BigEndian.PutUint64(buf, math.Float64bits(t))

	buf, err := encodeValue(s, v, buf, true)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// Decode deserializes a payload encoded under the given shape, returning the
// leading timestamp and the value. A single-field record decodes to the bare
// field value rather than a one-element slice.
func Decode(s Shape, b []byte) (float64, any, error) {
	if err := s.Validate(); err != nil {
		return 0, nil, err
	}
	if len(b) < timestampSize {
		return 0, nil, fmt.Errorf("%w: missing timestamp", ErrTruncated)
	}

	t := math.Float64frombits(binary.BigEndian.Uint64(b))

	v, off, err := decodeValue(s, b, timestampSize, true)
	if err != nil {
		return 0, nil, err
	}
	if off < len(b) {
		return 0, nil, fmt.Errorf("%w: %d trailing bytes", ErrBadShape, len(b)-off)
	}
	return t, v, nil
}

// EncodeValue appends a bare value of the given shape to buf, without a
// timestamp. Arrays and strings are length-prefixed, as in nested
// positions. Bulk reports interleave values this way.
func EncodeValue(s Shape, v any, buf []byte) ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return encodeValue(s, v, buf, false)
}

// DecodeValue decodes a bare value of the given shape from b starting at
// off, returning the value and the offset past it. The counterpart of
// EncodeValue.
func DecodeValue(s Shape, b []byte, off int) (any, int, error) {
	if err := s.Validate(); err != nil {
		return nil, 0, err
	}
	return decodeValue(s, b, off, false)
}

func encodeValue(s Shape, v any, buf []byte, topLevel bool) ([]byte, error) {
	if s.IsRecord() {
		items, ok := v.([]any)
		if !ok || len(items) != len(s.Fields) {
			return nil, fmt.Errorf("%w: record %s wants %d values", ErrBadShape, s, len(s.Fields))
		}
		var err error
		for i, f := range s.Fields {
			if buf, err = encodeValue(f.Shape, items[i], buf, false); err != nil {
				return nil, fmt.Errorf("field %q: %w", f.Name, err)
			}
		}
		return buf, nil
	}

	if s.IsString() {
		str, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: [str] wants a string value", ErrBadShape)
		}
		if !topLevel {
			buf = binary.BigEndian.AppendUint32(buf, uint32(len(str)))
		}
		return append(buf, str...), nil
	}

	if s.IsArray() {
		items, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: array %s wants a slice value", ErrBadShape, s)
		}
		if !topLevel {
			buf = binary.BigEndian.AppendUint32(buf, uint32(len(items)))
		}
		elem := s.Elem()
		var err error
		for _, item := range items {
			if buf, err = encodeValue(elem, item, buf, false); err != nil {
				return nil, err
			}
		}
		return buf, nil
	}

	// Plain struct expression. A single code takes the bare value, multiple
	// codes take a tuple.
	if len(s.Expr) == 1 {
		return encodeScalar(s.Expr[0], v, buf)
	}
	items, ok := v.([]any)
	if !ok || len(items) != len(s.Expr) {
		return nil, fmt.Errorf("%w: struct %q wants %d values", ErrBadShape, s.Expr, len(s.Expr))
	}
	var err error
	for i := 0; i < len(s.Expr); i++ {
		if buf, err = encodeScalar(s.Expr[i], items[i], buf); err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func encodeScalar(code byte, v any, buf []byte) ([]byte, error) {
	switch code {
	case '?':
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: code '?' wants a bool", ErrBadShape)
		}
		if b {
			return append(buf, 1), nil
		}
		return append(buf, 0), nil

	case 'f':
		f, ok := toFloat(v)
		if !ok {
			return nil, fmt.Errorf("%w: code 'f' wants a float", ErrBadShape)
		}
		return binary.BigEndian.AppendUint32(buf, math.Float32bits(float32(f))), nil

	case 'd':
		f, ok := toFloat(v)
		if !ok {
			return nil, fmt.Errorf("%w: code 'd' wants a float", ErrBadShape)
		}
		return binary.BigEndian.AppendUint64(buf, math.Float64bits(f)), nil

	case 'b', 'h', 'i', 'q':
		n, ok := toInt(v)
		if !ok {
			return nil, fmt.Errorf("%w: code %q wants an integer", ErrBadShape, code)
		}
		bits := codeSize(code) * 8
		if bits < 64 {
			limit := int64(1) << (bits - 1)
			if n < -limit || n >= limit {
				return nil, fmt.Errorf("%w: %d does not fit %q", ErrOverflow, n, code)
			}
		}
		return appendUintBE(buf, uint64(n), codeSize(code)), nil

	case 'B', 'H', 'I', 'Q':
		u, ok := toUint(v)
		if !ok {
			return nil, fmt.Errorf("%w: code %q wants an unsigned integer", ErrBadShape, code)
		}
		bits := codeSize(code) * 8
		if bits < 64 && u >= uint64(1)<<bits {
			return nil, fmt.Errorf("%w: %d does not fit %q", ErrOverflow, u, code)
		}
		return appendUintBE(buf, u, codeSize(code)), nil

	default:
		return nil, fmt.Errorf("%w: unknown type code %q", ErrBadShape, code)
	}
}

func decodeValue(s Shape, b []byte, off int, topLevel bool) (any, int, error) {
	if s.IsRecord() {
		items := make([]any, 0, len(s.Fields))
		for _, f := range s.Fields {
			v, next, err := decodeValue(f.Shape, b, off, false)
			if err != nil {
				return nil, 0, fmt.Errorf("field %q: %w", f.Name, err)
			}
			items = append(items, v)
			off = next
		}
		// A single-field record decodes to the bare value.
		if len(items) == 1 {
			return items[0], off, nil
		}
		return items, off, nil
	}

	if s.IsString() {
		n := len(b) - off
		if !topLevel {
			var err error
			if n, off, err = readLength(b, off); err != nil {
				return nil, 0, err
			}
		}
		if off+n > len(b) {
			return nil, 0, fmt.Errorf("%w: string of %d bytes", ErrTruncated, n)
		}
		return string(b[off : off+n]), off + n, nil
	}

	if s.IsArray() {
		elem := s.Elem()
		var count int
		if topLevel {
			// Top-level arrays have no length prefix; the count is inferred
			// from the remaining bytes, which requires fixed-size elements.
			elemSize, fixed := elem.FixedSize()
			if !fixed || elemSize == 0 {
				return nil, 0, fmt.Errorf("%w: cannot infer length of %q", ErrBadShape, s.Expr)
			}
			count = (len(b) - off) / elemSize
		} else {
			var err error
			if count, off, err = readLength(b, off); err != nil {
				return nil, 0, err
			}
		}
		items := make([]any, 0, count)
		for i := 0; i < count; i++ {
			v, next, err := decodeValue(elem, b, off, false)
			if err != nil {
				return nil, 0, err
			}
			items = append(items, v)
			off = next
		}
		return items, off, nil
	}

	if len(s.Expr) == 1 {
		return decodeScalar(s.Expr[0], b, off)
	}
	items := make([]any, 0, len(s.Expr))
	for i := 0; i < len(s.Expr); i++ {
		v, next, err := decodeScalar(s.Expr[i], b, off)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, v)
		off = next
	}
	return items, off, nil
}

func decodeScalar(code byte, b []byte, off int) (any, int, error) {
	size := codeSize(code)
	if off+size > len(b) {
		return nil, 0, fmt.Errorf("%w: field %q at offset %d", ErrTruncated, code, off)
	}

	var u uint64
	for i := 0; i < size; i++ {
		u = u<<8 | uint64(b[off+i])
	}
	off += size

	switch code {
	case '?':
		return u != 0, off, nil
	case 'f':
		return float64(math.Float32frombits(uint32(u))), off, nil
	case 'd':
		return math.Float64frombits(u), off, nil
	case 'b', 'h', 'i', 'q':
		// Sign-extend from the field width.
		shift := 64 - size*8
		return int64(u<<shift) >> shift, off, nil
	default:
		return u, off, nil
	}
}

func readLength(b []byte, off int) (int, int, error) {
	if off+4 > len(b) {
		return 0, 0, fmt.Errorf("%w: length prefix", ErrTruncated)
	}
	n := binary.BigEndian.Uint32(b[off:])
	if int64(n) > int64(len(b)) {
		return 0, 0, fmt.Errorf("%w: length prefix %d exceeds payload", ErrTruncated, n)
	}
	return int(n), off + 4, nil
}

func appendUintBE(buf []byte, u uint64, size int) []byte {
	for i := size - 1; i >= 0; i-- {
		buf = append(buf, byte(u>>(8*i)))
	}
	return buf
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	default:
		return 0, false
	}
}

func toUint(v any) (uint64, bool) {
	switch n := v.(type) {
	case uint64:
		return n, true
	case int:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	case int64:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	default:
		return 0, false
	}
}
