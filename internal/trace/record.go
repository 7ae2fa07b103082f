// Package trace records PTP-IP packets to CBOR files and reads them back.
package trace

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/mzyy94/ptpcam/internal/ptp"
)

// Direction indicates packet flow relative to this client.
type Direction uint8

const (
	// DirectionIn is a packet received from the camera.
	DirectionIn Direction = 0
	// DirectionOut is a packet sent to the camera.
	DirectionOut Direction = 1
)

func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Record is one traced packet. CBOR encoding uses integer keys.
type Record struct {
	Time      time.Time      `cbor:"1,keyasint"`
	Direction Direction      `cbor:"2,keyasint"`
	Channel   string         `cbor:"3,keyasint"`
	Kind      ptp.PacketKind `cbor:"4,keyasint"`

	// Code is the operation, response or event code. Zero for other kinds.
	Code          uint16 `cbor:"5,keyasint,omitempty"`
	TransactionID uint32 `cbor:"6,keyasint,omitempty"`

	// Payload holds the bytes after the kind-specific fields: arguments,
	// data-phase bytes or the init packet body.
	Payload []byte `cbor:"7,keyasint,omitempty"`
}

// NewRecord decodes the header fields of raw. Packets that do not parse are
// recorded with their kind and full body.
func NewRecord(at time.Time, outbound bool, channel string, raw []byte) Record {
	r := Record{Time: at, Channel: channel}
	if outbound {
		r.Direction = DirectionOut
	}
	if len(raw) < ptp.HeaderSize {
		r.Payload = append([]byte(nil), raw...)
		return r
	}
	r.Kind = ptp.PacketKind(binary.LittleEndian.Uint32(raw[4:8]))

	switch r.Kind {
	case ptp.KindCommandRequest:
		if req, err := ptp.ParseCommandRequest(raw); err == nil {
			r.Code = req.Code
			r.TransactionID = req.TransactionID
			r.Payload = append([]byte(nil), raw[ptp.HeaderSize+6:]...)
			return r
		}
	default:
		if p, err := ptp.ParsePacket(raw); err == nil {
			r.Code = p.Code
			r.TransactionID = p.TransactionID
			r.Payload = p.Payload()
			return r
		}
	}
	r.Payload = append([]byte(nil), raw[ptp.HeaderSize:]...)
	return r
}

func (r Record) String() string {
	s := fmt.Sprintf("%s %-3s %-7s %-16s", r.Time.Format("15:04:05.000000"), r.Direction, r.Channel, r.Kind)
	if r.Code != 0 {
		s += fmt.Sprintf(" code=0x%04X", r.Code)
	}
	if r.TransactionID != 0 {
		s += fmt.Sprintf(" tx=%d", r.TransactionID)
	}
	if len(r.Payload) > 0 {
		s += fmt.Sprintf(" len=%d", len(r.Payload))
	}
	return s
}
