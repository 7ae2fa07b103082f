package ptp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf16"
)

// ProtocolVersion is the PTP-IP version sent during the init handshake.
const ProtocolVersion uint32 = 0x00010000

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

// header writes {length}{kind} in front of body.
func header(kind PacketKind, body []byte) []byte {
	buf := make([]byte, HeaderSize+len(body))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(buf)))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(kind))
	copy(buf[HeaderSize:], body)
	return buf
}

func appendUTF16z(dst []byte, s string) []byte {
	for _, u := range utf16.Encode([]rune(s)) {
		dst = binary.LittleEndian.AppendUint16(dst, u)
	}
	return binary.LittleEndian.AppendUint16(dst, 0)
}

// readUTF16z reads a NUL-terminated UTF-16 string and returns the bytes consumed.
func readUTF16z(b []byte) (string, int) {
	var units []uint16
	for i := 0; i+1 < len(b); i += 2 {
		u := binary.LittleEndian.Uint16(b[i : i+2])
		if u == 0 {
			return string(utf16.Decode(units)), i + 2
		}
		units = append(units, u)
	}
	return string(utf16.Decode(units)), len(b)
}

// PacketLength reads the length field of a packet header.
func PacketLength(hdr []byte) (uint32, error) {
	if len(hdr) < 4 {
		return 0, errors.New("packet header too short")
	}
	n := binary.LittleEndian.Uint32(hdr[0:4])
	if n < HeaderSize {
		return 0, fmt.Errorf("invalid packet length: %d", n)
	}
	return n, nil
}

// --------------------------------------------------------------------------
// Command request
// --------------------------------------------------------------------------

// CommandRequest is an operation sent to the camera.
type CommandRequest struct {
	Code          uint16
	TransactionID uint32
	Args          []uint32
}

// NewCommandRequest builds a command request for code with the given
// transaction id and arguments in order.
func NewCommandRequest(code uint16, transactionID uint32, args ...uint32) *CommandRequest {
	return &CommandRequest{Code: code, TransactionID: transactionID, Args: args}
}

// Marshal encodes {len}{kind=6}{2B code}{4B txid}{n x 4B args}.
func (r *CommandRequest) Marshal() []byte {
	body := make([]byte, 6+4*len(r.Args))
	binary.LittleEndian.PutUint16(body[0:2], r.Code)
	binary.LittleEndian.PutUint32(body[2:6], r.TransactionID)
	for i, a := range r.Args {
		binary.LittleEndian.PutUint32(body[6+4*i:], a)
	}
	return header(KindCommandRequest, body)
}

// ParseCommandRequest decodes a packet produced by Marshal.
func ParseCommandRequest(data []byte) (*CommandRequest, error) {
	if len(data) < HeaderSize+6 {
		return nil, errors.New("command request too short")
	}
	if kind := PacketKind(binary.LittleEndian.Uint32(data[4:8])); kind != KindCommandRequest {
		return nil, fmt.Errorf("unexpected packet kind: %s", kind)
	}
	r := &CommandRequest{
		Code:          binary.LittleEndian.Uint16(data[8:10]),
		TransactionID: binary.LittleEndian.Uint32(data[10:14]),
	}
	for off := 14; off+4 <= len(data); off += 4 {
		r.Args = append(r.Args, binary.LittleEndian.Uint32(data[off:off+4]))
	}
	return r, nil
}

// --------------------------------------------------------------------------
// Response, event and data packets
// --------------------------------------------------------------------------

// Packet is a decoded response, event, start-data, data or end-data packet.
// Code is zero for the data-phase kinds.
type Packet struct {
	Kind          PacketKind
	Code          uint16
	TransactionID uint32
	payload       *Buffer
}

// ParsePacket decodes a raw packet including its header.
func ParsePacket(raw []byte) (*Packet, error) {
	n, err := PacketLength(raw)
	if err != nil {
		return nil, err
	}
	if int(n) > len(raw) || len(raw) < HeaderSize {
		return nil, fmt.Errorf("packet truncated: have %d, want %d", len(raw), n)
	}
	raw = raw[:n]
	p := &Packet{Kind: PacketKind(binary.LittleEndian.Uint32(raw[4:8]))}
	body := raw[HeaderSize:]

	switch p.Kind {
	case KindCommandResponse, KindEvent:
		if len(body) < 6 {
			return nil, fmt.Errorf("%s packet too short", p.Kind)
		}
		p.Code = binary.LittleEndian.Uint16(body[0:2])
		p.TransactionID = binary.LittleEndian.Uint32(body[2:6])
		p.payload = BufferFrom(body[6:])
	case KindStartData, KindData, KindEndData, KindCancel:
		if len(body) < 4 {
			return nil, fmt.Errorf("%s packet too short", p.Kind)
		}
		p.TransactionID = binary.LittleEndian.Uint32(body[0:4])
		p.payload = BufferFrom(body[4:])
	default:
		p.payload = BufferFrom(body)
	}
	return p, nil
}

// Payload returns the bytes after the kind-specific fields.
func (p *Packet) Payload() []byte {
	if p.payload == nil {
		return nil
	}
	return p.payload.Bytes()
}

// Buffer returns the payload as a Buffer for indexed reads.
func (p *Packet) Buffer() *Buffer {
	if p.payload == nil {
		return NewBuffer()
	}
	return p.payload
}

// Word reads a uint16 at a payload offset.
func (p *Packet) Word(off int) (uint16, bool) { return p.Buffer().Word(off) }

// DWord reads a uint32 at a payload offset.
func (p *Packet) DWord(off int) (uint32, bool) { return p.Buffer().DWord(off) }

// Arg returns the i-th 32-bit parameter of a response or event.
func (p *Packet) Arg(i int) (uint32, bool) { return p.Buffer().DWord(4 * i) }

// TotalLength returns the announced data size of a start-data packet.
func (p *Packet) TotalLength() (uint64, bool) {
	if p.Kind != KindStartData {
		return 0, false
	}
	return p.Buffer().QWord(0)
}

func (p *Packet) String() string {
	return fmt.Sprintf("%s code=0x%04X tx=%d payload=%d", p.Kind, p.Code, p.TransactionID, p.Buffer().Len())
}

func codeBody(code uint16, transactionID uint32, args []uint32) []byte {
	body := make([]byte, 6, 6+4*len(args))
	binary.LittleEndian.PutUint16(body[0:2], code)
	binary.LittleEndian.PutUint32(body[2:6], transactionID)
	for _, a := range args {
		body = binary.LittleEndian.AppendUint32(body, a)
	}
	return body
}

// MarshalResponse builds {len}{kind=7}{2B code}{4B txid}{args}.
func MarshalResponse(code uint16, transactionID uint32, args ...uint32) []byte {
	return header(KindCommandResponse, codeBody(code, transactionID, args))
}

// MarshalEvent builds {len}{kind=8}{2B code}{4B txid}{args}.
func MarshalEvent(code uint16, transactionID uint32, args ...uint32) []byte {
	return header(KindEvent, codeBody(code, transactionID, args))
}

// MarshalStartData builds {len}{kind=9}{4B txid}{8B total length}.
func MarshalStartData(transactionID uint32, total uint64) []byte {
	body := make([]byte, 12)
	binary.LittleEndian.PutUint32(body[0:4], transactionID)
	binary.LittleEndian.PutUint64(body[4:12], total)
	return header(KindStartData, body)
}

func dataBody(transactionID uint32, payload []byte) []byte {
	body := make([]byte, 4+len(payload))
	binary.LittleEndian.PutUint32(body[0:4], transactionID)
	copy(body[4:], payload)
	return body
}

// MarshalData builds {len}{kind=10}{4B txid}{payload}.
func MarshalData(transactionID uint32, payload []byte) []byte {
	return header(KindData, dataBody(transactionID, payload))
}

// MarshalEndData builds {len}{kind=12}{4B txid}{payload}.
func MarshalEndData(transactionID uint32, payload []byte) []byte {
	return header(KindEndData, dataBody(transactionID, payload))
}

// MarshalProbeRequest builds a keep-alive probe.
func MarshalProbeRequest() []byte { return header(KindProbeRequest, nil) }

// MarshalProbeResponse builds the answer to a probe.
func MarshalProbeResponse() []byte { return header(KindProbeResponse, nil) }

// --------------------------------------------------------------------------
// Init handshake
// --------------------------------------------------------------------------

// InitCommandAck is the responder's answer to an init-command request.
type InitCommandAck struct {
	ConnectionNumber uint32
	GUID             [16]byte
	Name             string
	Version          uint32
}

// MarshalInitCommandRequest builds {len}{kind=1}{16B GUID}{UTF-16 name\0}{4B version}.
func MarshalInitCommandRequest(guid [16]byte, name string) []byte {
	body := append([]byte{}, guid[:]...)
	body = appendUTF16z(body, name)
	body = binary.LittleEndian.AppendUint32(body, ProtocolVersion)
	return header(KindInitCommandRequest, body)
}

// ParseInitCommandRequest decodes an init-command request.
func ParseInitCommandRequest(data []byte) (guid [16]byte, name string, err error) {
	if len(data) < HeaderSize+16+2 {
		return guid, "", errors.New("init command request too short")
	}
	if kind := PacketKind(binary.LittleEndian.Uint32(data[4:8])); kind != KindInitCommandRequest {
		return guid, "", fmt.Errorf("unexpected packet kind: %s", kind)
	}
	copy(guid[:], data[8:24])
	name, _ = readUTF16z(data[24:])
	return guid, name, nil
}

// MarshalInitCommandAck builds {len}{kind=2}{4B conn}{16B GUID}{UTF-16 name\0}{4B version}.
func MarshalInitCommandAck(ack InitCommandAck) []byte {
	body := binary.LittleEndian.AppendUint32(nil, ack.ConnectionNumber)
	body = append(body, ack.GUID[:]...)
	body = appendUTF16z(body, ack.Name)
	body = binary.LittleEndian.AppendUint32(body, ack.Version)
	return header(KindInitCommandAck, body)
}

// ParseInitCommandAck decodes an init-command ack. An init-fail packet is
// reported as an *InitFailError.
func ParseInitCommandAck(data []byte) (*InitCommandAck, error) {
	if len(data) < HeaderSize {
		return nil, errors.New("init command ack too short")
	}
	kind := PacketKind(binary.LittleEndian.Uint32(data[4:8]))
	if kind == KindInitFail {
		return nil, parseInitFail(data)
	}
	if kind != KindInitCommandAck {
		return nil, fmt.Errorf("unexpected packet kind: %s", kind)
	}
	if len(data) < HeaderSize+20 {
		return nil, errors.New("init command ack too short")
	}
	ack := &InitCommandAck{ConnectionNumber: binary.LittleEndian.Uint32(data[8:12])}
	copy(ack.GUID[:], data[12:28])
	name, n := readUTF16z(data[28:])
	ack.Name = name
	if rest := data[28+n:]; len(rest) >= 4 {
		ack.Version = binary.LittleEndian.Uint32(rest[0:4])
	}
	return ack, nil
}

// MarshalInitEventRequest builds {len}{kind=3}{4B connection number}.
func MarshalInitEventRequest(connectionNumber uint32) []byte {
	return header(KindInitEventRequest, binary.LittleEndian.AppendUint32(nil, connectionNumber))
}

// ParseInitEventRequest returns the connection number of an init-event request.
func ParseInitEventRequest(data []byte) (uint32, error) {
	if len(data) < HeaderSize+4 {
		return 0, errors.New("init event request too short")
	}
	if kind := PacketKind(binary.LittleEndian.Uint32(data[4:8])); kind != KindInitEventRequest {
		return 0, fmt.Errorf("unexpected packet kind: %s", kind)
	}
	return binary.LittleEndian.Uint32(data[8:12]), nil
}

// MarshalInitEventAck builds {len}{kind=4}.
func MarshalInitEventAck() []byte { return header(KindInitEventAck, nil) }

// ValidateInitEventAck checks an init-event ack.
func ValidateInitEventAck(data []byte) error {
	if len(data) < HeaderSize {
		return errors.New("init event ack too short")
	}
	switch kind := PacketKind(binary.LittleEndian.Uint32(data[4:8])); kind {
	case KindInitEventAck:
		return nil
	case KindInitFail:
		return parseInitFail(data)
	default:
		return fmt.Errorf("unexpected packet kind: %s", kind)
	}
}

// InitFailError reports a refused handshake.
type InitFailError struct {
	Reason uint32
}

func (e *InitFailError) Error() string {
	return fmt.Sprintf("ptp-ip init refused: reason 0x%X", e.Reason)
}

// MarshalInitFail builds {len}{kind=5}{4B reason}.
func MarshalInitFail(reason uint32) []byte {
	return header(KindInitFail, binary.LittleEndian.AppendUint32(nil, reason))
}

func parseInitFail(data []byte) error {
	e := &InitFailError{}
	if len(data) >= HeaderSize+4 {
		e.Reason = binary.LittleEndian.Uint32(data[8:12])
	}
	return e
}

// ResponseError reports a non-OK response code to an operation.
type ResponseError struct {
	Op   uint16
	Code uint16
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("operation 0x%04X failed: response 0x%04X", e.Op, e.Code)
}

// IsResponse reports whether err is a *ResponseError carrying code.
func IsResponse(err error, code uint16) bool {
	var re *ResponseError
	return errors.As(err, &re) && re.Code == code
}
