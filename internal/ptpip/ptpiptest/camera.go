// Package ptpiptest provides an in-process PTP-IP camera for tests.
package ptpiptest

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"sync"

	"github.com/mzyy94/ptpcam/internal/ptp"
)

// Control is a control write the camera received.
type Control struct {
	Channel ptp.ControlChannel
	Code    ptp.PropertyCode
	Payload []byte
}

// Camera is a PTP-IP responder listening on a loopback port. It answers the
// init handshake, OpenSession and SDIO connect, serves property descriptors,
// applies settings written on channel A and records everything it receives.
type Camera struct {
	Name string
	GUID [16]byte

	ln net.Listener
	wg sync.WaitGroup

	mu        sync.Mutex
	props     map[ptp.PropertyCode]ptp.PropertyBlock
	order     []ptp.PropertyCode
	requests  []ptp.CommandRequest
	controls  []Control
	responses map[uint16]uint16
	onControl func(Control)
	conns     []net.Conn
	evt       net.Conn
	evtMu     sync.Mutex
	ready     chan struct{}
	readyOnce sync.Once
}

// NewCamera starts a camera on 127.0.0.1 with a random port.
func NewCamera(name string) (*Camera, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	c := &Camera{
		Name:      name,
		GUID:      [16]byte{0xCA, 0xFE},
		ln:        ln,
		props:     make(map[ptp.PropertyCode]ptp.PropertyBlock),
		responses: make(map[uint16]uint16),
		ready:     make(chan struct{}),
	}
	c.wg.Add(1)
	go c.accept()
	return c, nil
}

// Host returns the listening host.
func (c *Camera) Host() string {
	host, _, _ := net.SplitHostPort(c.ln.Addr().String())
	return host
}

// Port returns the listening port.
func (c *Camera) Port() int {
	_, port, _ := net.SplitHostPort(c.ln.Addr().String())
	n, _ := strconv.Atoi(port)
	return n
}

// Ready is closed once both connections completed the init handshake.
func (c *Camera) Ready() <-chan struct{} { return c.ready }

// SetProperty installs or replaces a property.
func (c *Camera) SetProperty(b ptp.PropertyBlock) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.props[b.Code]; !ok {
		c.order = append(c.order, b.Code)
	}
	c.props[b.Code] = b
}

// Property returns the current state of a property.
func (c *Camera) Property(code ptp.PropertyCode) (ptp.PropertyBlock, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.props[code]
	return b, ok
}

// SetResponse makes every later request with opcode op answer code.
func (c *Camera) SetResponse(op, code uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responses[op] = code
}

// OnControl registers fn to run after each control write is recorded.
func (c *Camera) OnControl(fn func(Control)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onControl = fn
}

// Requests returns the command requests received so far.
func (c *Camera) Requests() []ptp.CommandRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ptp.CommandRequest(nil), c.requests...)
}

// Controls returns the control writes received so far.
func (c *Camera) Controls() []Control {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Control(nil), c.controls...)
}

// SendEvent writes an event packet on the event connection.
func (c *Camera) SendEvent(code uint16, args ...uint32) error {
	c.evtMu.Lock()
	defer c.evtMu.Unlock()
	if c.evt == nil {
		return errors.New("event connection not established")
	}
	_, err := c.evt.Write(ptp.MarshalEvent(code, 0, args...))
	return err
}

// DropConnections closes the client connections but keeps listening.
func (c *Camera) DropConnections() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, conn := range c.conns {
		conn.Close()
	}
}

// Close stops the camera and waits for its goroutines.
func (c *Camera) Close() {
	c.ln.Close()
	c.DropConnections()
	c.wg.Wait()
}

func (c *Camera) accept() {
	defer c.wg.Done()
	for {
		conn, err := c.ln.Accept()
		if err != nil {
			return
		}
		c.mu.Lock()
		c.conns = append(c.conns, conn)
		c.mu.Unlock()
		c.wg.Add(1)
		go c.serve(conn)
	}
}

func (c *Camera) serve(conn net.Conn) {
	defer c.wg.Done()
	defer conn.Close()

	raw, err := readPacket(conn)
	if err != nil {
		return
	}
	switch ptp.PacketKind(binary.LittleEndian.Uint32(raw[4:8])) {
	case ptp.KindInitCommandRequest:
		if _, _, err := ptp.ParseInitCommandRequest(raw); err != nil {
			conn.Write(ptp.MarshalInitFail(1))
			return
		}
		ack := ptp.InitCommandAck{ConnectionNumber: 1, GUID: c.GUID, Name: c.Name, Version: ptp.ProtocolVersion}
		if _, err := conn.Write(ptp.MarshalInitCommandAck(ack)); err != nil {
			return
		}
		c.serveCommands(conn)
	case ptp.KindInitEventRequest:
		if _, err := conn.Write(ptp.MarshalInitEventAck()); err != nil {
			return
		}
		c.evtMu.Lock()
		c.evt = conn
		c.evtMu.Unlock()
		c.readyOnce.Do(func() { close(c.ready) })
		c.serveEvents(conn)
	}
}

func (c *Camera) serveEvents(conn net.Conn) {
	for {
		raw, err := readPacket(conn)
		if err != nil {
			return
		}
		if ptp.PacketKind(binary.LittleEndian.Uint32(raw[4:8])) == ptp.KindProbeRequest {
			c.evtMu.Lock()
			conn.Write(ptp.MarshalProbeResponse())
			c.evtMu.Unlock()
		}
	}
}

func (c *Camera) serveCommands(conn net.Conn) {
	for {
		raw, err := readPacket(conn)
		if err != nil {
			return
		}
		req, err := ptp.ParseCommandRequest(raw)
		if err != nil {
			slog.Debug("fake camera: ignoring packet", "err", err)
			continue
		}
		c.mu.Lock()
		c.requests = append(c.requests, *req)
		c.mu.Unlock()

		var out [][]byte
		switch req.Code {
		case ptp.OpSetControlDeviceA, ptp.OpSetControlDeviceB:
			payload, err := readDataPhase(conn, req.TransactionID)
			if err != nil {
				return
			}
			c.control(req, payload)
		case ptp.OpGetDevicePropDesc:
			if len(req.Args) > 0 {
				if b, ok := c.Property(ptp.PropertyCode(req.Args[0])); ok {
					out = dataPhase(req.TransactionID, b.Bytes())
				} else {
					c.writeAll(conn, ptp.MarshalResponse(ptp.RespDevicePropNotSupported, req.TransactionID))
					continue
				}
			}
		case ptp.OpGetAllDevicePropData:
			out = dataPhase(req.TransactionID, c.propertyArray())
		}
		code := ptp.RespOK
		c.mu.Lock()
		if override, ok := c.responses[req.Code]; ok {
			code = override
		}
		c.mu.Unlock()
		if code != ptp.RespOK {
			out = nil
		}
		out = append(out, ptp.MarshalResponse(code, req.TransactionID))
		if err := c.writeAll(conn, out...); err != nil {
			return
		}
	}
}

func (c *Camera) writeAll(conn net.Conn, packets ...[]byte) error {
	for _, p := range packets {
		if _, err := conn.Write(p); err != nil {
			return err
		}
	}
	return nil
}

func (c *Camera) control(req *ptp.CommandRequest, payload []byte) {
	ctl := Control{Channel: ptp.ChannelA, Payload: payload}
	if req.Code == ptp.OpSetControlDeviceB {
		ctl.Channel = ptp.ChannelB
	}
	if len(req.Args) > 0 {
		ctl.Code = ptp.PropertyCode(req.Args[0])
	}
	c.mu.Lock()
	c.controls = append(c.controls, ctl)
	if b, ok := c.props[ctl.Code]; ok && ctl.Channel == ptp.ChannelA {
		if v, _, err := ptp.ReadValue(ptp.BufferFrom(payload), 0, b.Type); err == nil {
			b.Current = v
			c.props[ctl.Code] = b
		}
	}
	fn := c.onControl
	c.mu.Unlock()
	if fn != nil {
		fn(ctl)
	}
}

func (c *Camera) propertyArray() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	blocks := make([]ptp.PropertyBlock, 0, len(c.order))
	for _, code := range c.order {
		blocks = append(blocks, c.props[code])
	}
	return ptp.EncodePropertyArray(blocks)
}

func dataPhase(txid uint32, payload []byte) [][]byte {
	return [][]byte{
		ptp.MarshalStartData(txid, uint64(len(payload))),
		ptp.MarshalEndData(txid, payload),
	}
}

// readDataPhase reads start-data, data and end-data packets of txid.
func readDataPhase(r io.Reader, txid uint32) ([]byte, error) {
	var payload []byte
	for {
		raw, err := readPacket(r)
		if err != nil {
			return nil, err
		}
		p, err := ptp.ParsePacket(raw)
		if err != nil {
			return nil, err
		}
		if p.TransactionID != txid {
			return nil, fmt.Errorf("data phase for tx %d, want %d", p.TransactionID, txid)
		}
		switch p.Kind {
		case ptp.KindData:
			payload = append(payload, p.Payload()...)
		case ptp.KindEndData:
			return append(payload, p.Payload()...), nil
		}
	}
}

func readPacket(r io.Reader) ([]byte, error) {
	hdr := make([]byte, 4)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return nil, err
	}
	n, err := ptp.PacketLength(hdr)
	if err != nil {
		return nil, err
	}
	raw := make([]byte, n)
	copy(raw, hdr)
	if _, err := io.ReadFull(r, raw[4:]); err != nil {
		return nil, err
	}
	return raw, nil
}
