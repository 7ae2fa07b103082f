package ptp

import "unicode/utf16"

// MaxStringLength is the longest string, in UTF-16 code units, that fits the
// one-byte length prefix together with its terminator.
const MaxStringLength = 254

// slot is one byte position of a Buffer. Positions skipped over by a write
// past the end stay unset, which is distinct from a written zero.
type slot struct {
	v   byte
	set bool
}

// Buffer is a growable little-endian byte buffer with random access.
// Reads of positions that were never written report ok=false.
type Buffer struct {
	slots []slot
}

// NewBuffer returns an empty Buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// BufferFrom returns a Buffer whose every position is set from b.
func BufferFrom(b []byte) *Buffer {
	buf := &Buffer{slots: make([]slot, len(b))}
	for i, c := range b {
		buf.slots[i] = slot{v: c, set: true}
	}
	return buf
}

// Len returns the number of positions, set or unset.
func (b *Buffer) Len() int { return len(b.slots) }

// Bytes returns the buffer contents. Unset positions are emitted as zero;
// use Byte to tell them apart.
func (b *Buffer) Bytes() []byte {
	out := make([]byte, len(b.slots))
	for i, s := range b.slots {
		out[i] = s.v
	}
	return out
}

// Byte returns the byte at off.
func (b *Buffer) Byte(off int) (byte, bool) {
	if off < 0 || off >= len(b.slots) || !b.slots[off].set {
		return 0, false
	}
	return b.slots[off].v, true
}

// SetByte writes v at off, extending the buffer with unset positions if off
// lies past the end.
func (b *Buffer) SetByte(off int, v byte) {
	if off < 0 {
		return
	}
	if off >= len(b.slots) {
		b.slots = append(b.slots, make([]slot, off+1-len(b.slots))...)
	}
	b.slots[off] = slot{v: v, set: true}
}

// Uint reads a little-endian unsigned integer of the given width (1, 2, 4
// or 8 bytes) at off. Any unset or out-of-range byte yields ok=false.
func (b *Buffer) Uint(off, width int) (uint64, bool) {
	if !validWidth(width) {
		return 0, false
	}
	var v uint64
	for i := 0; i < width; i++ {
		c, ok := b.Byte(off + i)
		if !ok {
			return 0, false
		}
		v |= uint64(c) << (8 * i)
	}
	return v, true
}

// PutUint writes v little-endian using width bytes at off. Invalid widths
// are ignored.
func (b *Buffer) PutUint(off, width int, v uint64) {
	if !validWidth(width) || off < 0 {
		return
	}
	for i := 0; i < width; i++ {
		b.SetByte(off+i, byte(v>>(8*i)))
	}
}

func validWidth(width int) bool {
	return width == 1 || width == 2 || width == 4 || width == 8
}

// Word reads a uint16 at off.
func (b *Buffer) Word(off int) (uint16, bool) {
	v, ok := b.Uint(off, 2)
	return uint16(v), ok
}

// DWord reads a uint32 at off.
func (b *Buffer) DWord(off int) (uint32, bool) {
	v, ok := b.Uint(off, 4)
	return uint32(v), ok
}

// QWord reads a uint64 at off.
func (b *Buffer) QWord(off int) (uint64, bool) {
	return b.Uint(off, 8)
}

// SetWord writes a uint16 at off.
func (b *Buffer) SetWord(off int, v uint16) { b.PutUint(off, 2, uint64(v)) }

// SetDWord writes a uint32 at off.
func (b *Buffer) SetDWord(off int, v uint32) { b.PutUint(off, 4, uint64(v)) }

// AppendUint8 appends one byte.
func (b *Buffer) AppendUint8(v uint8) { b.SetByte(len(b.slots), v) }

// AppendUint16 appends v little-endian.
func (b *Buffer) AppendUint16(v uint16) { b.PutUint(len(b.slots), 2, uint64(v)) }

// AppendUint32 appends v little-endian.
func (b *Buffer) AppendUint32(v uint32) { b.PutUint(len(b.slots), 4, uint64(v)) }

// AppendUint64 appends v little-endian.
func (b *Buffer) AppendUint64(v uint64) { b.PutUint(len(b.slots), 8, v) }

// AppendBytes appends raw bytes.
func (b *Buffer) AppendBytes(p []byte) {
	for _, c := range p {
		b.slots = append(b.slots, slot{v: c, set: true})
	}
}

// AppendString appends s as {count+1}{count x UTF-16 unit}{0x0000}. Strings
// longer than MaxStringLength code units are truncated.
func (b *Buffer) AppendString(s string) {
	units := utf16.Encode([]rune(s))
	if len(units) > MaxStringLength {
		units = units[:MaxStringLength]
	}
	b.AppendUint8(uint8(len(units) + 1))
	for _, u := range units {
		b.AppendUint16(u)
	}
	b.AppendUint16(0)
}

// String decodes a string written by AppendString at off and returns it with
// the number of bytes consumed. A zero length byte is the empty string with
// no code units following it.
func (b *Buffer) String(off int) (string, int, bool) {
	count, ok := b.Byte(off)
	if !ok {
		return "", 0, false
	}
	if count == 0 {
		return "", 1, true
	}
	units := make([]uint16, 0, count-1)
	pos := off + 1
	for i := 0; i < int(count)-1; i++ {
		u, ok := b.Word(pos)
		if !ok {
			return "", 0, false
		}
		units = append(units, u)
		pos += 2
	}
	term, ok := b.Word(pos)
	if !ok || term != 0 {
		return "", 0, false
	}
	pos += 2
	return string(utf16.Decode(units)), pos - off, true
}
