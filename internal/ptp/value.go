package ptp

import (
	"fmt"
	"strconv"
)

// Value is a single decoded property value. Integer types keep their raw
// bits masked to the type width; strings keep the decoded text.
type Value struct {
	typ DataType
	num uint64
	str string
}

// UintValue returns an integer Value of type t holding the low bits of v.
func UintValue(t DataType, v uint64) Value {
	return Value{typ: t, num: mask(t, v)}
}

// IntValue returns an integer Value of type t holding v in two's complement.
func IntValue(t DataType, v int64) Value {
	return Value{typ: t, num: mask(t, uint64(v))}
}

// StringValue returns a string Value.
func StringValue(s string) Value {
	return Value{typ: TypeString, str: s}
}

func mask(t DataType, v uint64) uint64 {
	switch t.Width() {
	case 1:
		return v & 0xFF
	case 2:
		return v & 0xFFFF
	case 4:
		return v & 0xFFFFFFFF
	default:
		return v
	}
}

// Type returns the datatype tag.
func (v Value) Type() DataType { return v.typ }

// Uint returns the raw integer bits.
func (v Value) Uint() uint64 { return v.num }

// Int returns the integer sign-extended according to the datatype.
func (v Value) Int() int64 {
	switch v.typ {
	case TypeInt8:
		return int64(int8(v.num))
	case TypeInt16:
		return int64(int16(v.num))
	case TypeInt32:
		return int64(int32(v.num))
	default:
		return int64(v.num)
	}
}

// Str returns the string payload of a string Value.
func (v Value) Str() string { return v.str }

// Equal reports whether both values have the same type and payload.
func (v Value) Equal(o Value) bool {
	return v.typ == o.typ && v.num == o.num && v.str == o.str
}

func (v Value) String() string {
	switch {
	case v.typ == TypeString:
		return strconv.Quote(v.str)
	case v.typ.Signed():
		return strconv.FormatInt(v.Int(), 10)
	default:
		return fmt.Sprintf("0x%X", v.num)
	}
}

// less orders two integer values of the same type.
func (v Value) less(o Value) bool {
	if v.typ.Signed() {
		return v.Int() < o.Int()
	}
	return v.num < o.num
}

// AppendTo encodes v at the end of b.
func (v Value) AppendTo(b *Buffer) {
	if v.typ == TypeString {
		b.AppendString(v.str)
		return
	}
	if w := v.typ.Width(); w > 0 {
		b.PutUint(b.Len(), w, v.num)
	}
}

// Bytes returns the wire encoding of v.
func (v Value) Bytes() []byte {
	b := NewBuffer()
	v.AppendTo(b)
	return b.Bytes()
}

// ReadValue decodes a value of type t at off and returns it with the number
// of bytes consumed.
func ReadValue(b *Buffer, off int, t DataType) (Value, int, error) {
	if t == TypeString {
		s, n, ok := b.String(off)
		if !ok {
			return Value{}, 0, ErrTruncated
		}
		return StringValue(s), n, nil
	}
	w := t.Width()
	if w == 0 {
		return Value{}, 0, fmt.Errorf("%w: 0x%02X", ErrUnknownDataType, uint8(t))
	}
	raw, ok := b.Uint(off, w)
	if !ok {
		return Value{}, 0, ErrTruncated
	}
	return Value{typ: t, num: raw}, w, nil
}
