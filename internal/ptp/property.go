package ptp

import (
	"errors"
	"fmt"
	"log/slog"
)

// Decoding errors.
var (
	ErrTruncated       = errors.New("ptp: truncated data")
	ErrUnknownDataType = errors.New("ptp: unknown datatype")
	ErrUnknownForm     = errors.New("ptp: unknown form")
)

// DeviceProperty is a decoded device property descriptor. It is immutable;
// accessors return copies.
type DeviceProperty struct {
	code     PropertyCode
	dataType DataType
	writable bool
	current  Value
	factory  Value
	formKind uint8
	min      Value
	max      Value
	step     Value
	values   []Value
}

// Code returns the property code.
func (p *DeviceProperty) Code() PropertyCode { return p.code }

// DataType returns the wire datatype.
func (p *DeviceProperty) DataType() DataType { return p.dataType }

// Writable reports whether the camera accepts writes to this property.
func (p *DeviceProperty) Writable() bool { return p.writable }

// Current returns the current value.
func (p *DeviceProperty) Current() Value { return p.current }

// Factory returns the factory default value.
func (p *DeviceProperty) Factory() Value { return p.factory }

// FormKind returns FormNone, FormRange or FormEnum.
func (p *DeviceProperty) FormKind() uint8 { return p.formKind }

// Range returns the range form bounds. ok is false for other forms.
func (p *DeviceProperty) Range() (min, max, step Value, ok bool) {
	if p.formKind != FormRange {
		return Value{}, Value{}, Value{}, false
	}
	return p.min, p.max, p.step, true
}

// Enum returns a copy of the enumerated accepted values, or nil for other
// forms.
func (p *DeviceProperty) Enum() []Value {
	if p.formKind != FormEnum {
		return nil
	}
	out := make([]Value, len(p.values))
	copy(out, p.values)
	return out
}

// Accepts reports whether v is allowed by the property's form. Properties
// without a form accept any value of the right type.
func (p *DeviceProperty) Accepts(v Value) bool {
	if v.typ != p.dataType {
		return false
	}
	switch p.formKind {
	case FormEnum:
		for _, c := range p.values {
			if c.Equal(v) {
				return true
			}
		}
		return false
	case FormRange:
		if v.less(p.min) || p.max.less(v) {
			return false
		}
		if p.step.num == 0 {
			return true
		}
		if p.dataType.Signed() {
			return (v.Int()-p.min.Int())%p.step.Int() == 0
		}
		return (v.num-p.min.num)%p.step.num == 0
	default:
		return true
	}
}

func (p *DeviceProperty) String() string {
	return fmt.Sprintf("prop 0x%04X %s cur=%s writable=%t", uint16(p.code), p.dataType, p.current, p.writable)
}

// DecodeDeviceProperty decodes one property block starting at off and returns
// it with the number of bytes the block spans.
//
// Block layout: {2B code}{1B datatype}{1B writable}{current}{factory}
// {1B form}{form body}. A range body is min, max, step; an enum body is a
// 2-byte count followed by that many values.
func DecodeDeviceProperty(b *Buffer, off int) (*DeviceProperty, int, error) {
	code, ok := b.Word(off)
	if !ok {
		return nil, 0, ErrTruncated
	}
	tag, ok := b.Byte(off + 2)
	if !ok {
		return nil, 0, ErrTruncated
	}
	rw, ok := b.Byte(off + 3)
	if !ok {
		return nil, 0, ErrTruncated
	}
	p := &DeviceProperty{
		code:     PropertyCode(code),
		dataType: DataType(tag),
		writable: rw != 0,
	}
	pos := off + 4

	read := func() (Value, error) {
		v, n, err := ReadValue(b, pos, p.dataType)
		if err != nil {
			return Value{}, fmt.Errorf("property 0x%04X: %w", code, err)
		}
		pos += n
		return v, nil
	}

	var err error
	if p.current, err = read(); err != nil {
		return nil, 0, err
	}
	if p.factory, err = read(); err != nil {
		return nil, 0, err
	}

	form, ok := b.Byte(pos)
	if !ok {
		return nil, 0, ErrTruncated
	}
	pos++
	p.formKind = form

	switch form {
	case FormNone:
	case FormRange:
		if p.min, err = read(); err != nil {
			return nil, 0, err
		}
		if p.max, err = read(); err != nil {
			return nil, 0, err
		}
		if p.step, err = read(); err != nil {
			return nil, 0, err
		}
	case FormEnum:
		count, ok := b.Word(pos)
		if !ok {
			return nil, 0, ErrTruncated
		}
		pos += 2
		p.values = make([]Value, 0, count)
		for i := 0; i < int(count); i++ {
			v, err := read()
			if err != nil {
				return nil, 0, err
			}
			p.values = append(p.values, v)
		}
	default:
		return nil, 0, fmt.Errorf("%w: 0x%02X", ErrUnknownForm, form)
	}
	return p, pos - off, nil
}

// DecodeDevicePropertyArray decodes {8B count}{count x property block}
// starting at off. Decoding stops at the first block that cannot be parsed
// and everything decoded before it is returned.
func DecodeDevicePropertyArray(b *Buffer, off int) []*DeviceProperty {
	count, ok := b.QWord(off)
	if !ok {
		return nil
	}
	pos := off + 8
	var props []*DeviceProperty
	for i := uint64(0); i < count; i++ {
		p, n, err := DecodeDeviceProperty(b, pos)
		if err != nil {
			slog.Debug("property array decode halted", "index", i, "count", count, "offset", pos, "err", err)
			break
		}
		props = append(props, p)
		pos += n
	}
	return props
}

// PropertyBlock describes a property block for encoding. Responders and
// tests use it to produce the wire form that DecodeDeviceProperty reads.
type PropertyBlock struct {
	Code     PropertyCode
	Type     DataType
	Writable bool
	Current  Value
	Factory  Value
	Form     uint8
	Min      Value
	Max      Value
	Step     Value
	Values   []Value
}

// AppendTo encodes the block at the end of b.
func (pb PropertyBlock) AppendTo(b *Buffer) {
	b.AppendUint16(uint16(pb.Code))
	b.AppendUint8(uint8(pb.Type))
	if pb.Writable {
		b.AppendUint8(1)
	} else {
		b.AppendUint8(0)
	}
	pb.Current.AppendTo(b)
	pb.Factory.AppendTo(b)
	b.AppendUint8(pb.Form)
	switch pb.Form {
	case FormRange:
		pb.Min.AppendTo(b)
		pb.Max.AppendTo(b)
		pb.Step.AppendTo(b)
	case FormEnum:
		b.AppendUint16(uint16(len(pb.Values)))
		for _, v := range pb.Values {
			v.AppendTo(b)
		}
	}
}

// Bytes returns the encoded block.
func (pb PropertyBlock) Bytes() []byte {
	b := NewBuffer()
	pb.AppendTo(b)
	return b.Bytes()
}

// EncodePropertyArray encodes blocks as {8B count}{blocks}.
func EncodePropertyArray(blocks []PropertyBlock) []byte {
	b := NewBuffer()
	b.AppendUint64(uint64(len(blocks)))
	for _, pb := range blocks {
		pb.AppendTo(b)
	}
	return b.Bytes()
}
