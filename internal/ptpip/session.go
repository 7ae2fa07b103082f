package ptpip

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/mzyy94/ptpcam/internal/ptp"
)

// ErrSessionClosed is returned by calls on a closed session and by waits
// pending when the connection drops.
var ErrSessionClosed = errors.New("ptp-ip session closed")

// Options configures a session.
type Options struct {
	Host string
	Port int // default ptp.DefaultPort

	// Identity announced during the init handshake. Zero value uses
	// DefaultIdentity().
	Identity Identity

	DialTimeout       time.Duration // default 5s
	HeartbeatInterval time.Duration // default 10s, negative disables

	// Tracer, when set, observes every packet.
	Tracer Tracer
}

func (o Options) withDefaults() Options {
	if o.Port == 0 {
		o.Port = ptp.DefaultPort
	}
	if o.Identity.GUID == uuid.Nil {
		o.Identity = DefaultIdentity()
	}
	if o.DialTimeout == 0 {
		o.DialTimeout = 5 * time.Second
	}
	if o.HeartbeatInterval == 0 {
		o.HeartbeatInterval = 10 * time.Second
	}
	return o
}

// transaction collects the data phase and response of one request.
type transaction struct {
	op    uint16
	total uint64
	data  []byte
	resp  *ptp.Packet
	done  chan struct{}
}

// Session is an open PTP-IP session: a command connection carrying requests,
// data phases and responses, and an event connection carrying unsolicited
// events. It is safe for concurrent use.
type Session struct {
	cmd       *channel
	evt       *channel
	camera    ptp.InitCommandAck
	heartbeat *Heartbeat

	txid atomic.Uint32

	mu      sync.Mutex
	pending map[uint32]*transaction
	handler func(*ptp.Packet)
	err     error

	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Dial connects to the camera, performs the init handshake on both
// connections and opens the session.
func Dial(ctx context.Context, opts Options) (*Session, error) {
	opts = opts.withDefaults()
	addr := net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port))
	dialer := net.Dialer{Timeout: opts.DialTimeout}

	slog.Debug("command channel connecting", "addr", addr)
	cmdConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("command connect: %w", err)
	}
	cmd := newChannel("command", cmdConn, opts.Tracer)
	ack, err := initCommand(ctx, cmd, opts.Identity, opts.DialTimeout)
	if err != nil {
		cmd.close()
		return nil, err
	}
	slog.Info("camera accepted connection", "name", ack.Name, "connection", ack.ConnectionNumber)

	slog.Debug("event channel connecting", "addr", addr)
	evtConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		cmd.close()
		return nil, fmt.Errorf("event connect: %w", err)
	}
	evt := newChannel("event", evtConn, opts.Tracer)
	if err := initEvent(ctx, evt, ack.ConnectionNumber, opts.DialTimeout); err != nil {
		cmd.close()
		evt.close()
		return nil, err
	}

	s := newSession(cmd, evt, *ack)
	if opts.HeartbeatInterval > 0 {
		s.heartbeat = StartHeartbeat(s, opts.HeartbeatInterval)
	}
	if err := s.open(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func newSession(cmd, evt *channel, ack ptp.InitCommandAck) *Session {
	s := &Session{
		cmd:     cmd,
		evt:     evt,
		camera:  ack,
		pending: make(map[uint32]*transaction),
		closed:  make(chan struct{}),
	}
	s.wg.Add(2)
	go s.readLoop(cmd)
	go s.readLoop(evt)
	return s
}

func initCommand(ctx context.Context, c *channel, id Identity, timeout time.Duration) (*ptp.InitCommandAck, error) {
	c.conn.SetDeadline(time.Now().Add(timeout))
	defer c.conn.SetDeadline(time.Time{})
	if err := c.write(ctx, ptp.MarshalInitCommandRequest(id.GUID, id.Name)); err != nil {
		return nil, fmt.Errorf("init command: %w", err)
	}
	raw, err := c.read()
	if err != nil {
		return nil, fmt.Errorf("init command ack: %w", err)
	}
	return ptp.ParseInitCommandAck(raw)
}

func initEvent(ctx context.Context, c *channel, connection uint32, timeout time.Duration) error {
	c.conn.SetDeadline(time.Now().Add(timeout))
	defer c.conn.SetDeadline(time.Time{})
	if err := c.write(ctx, ptp.MarshalInitEventRequest(connection)); err != nil {
		return fmt.Errorf("init event: %w", err)
	}
	raw, err := c.read()
	if err != nil {
		return fmt.Errorf("init event ack: %w", err)
	}
	return ptp.ValidateInitEventAck(raw)
}

// open runs OpenSession followed by the vendor SDIO connect sequence.
func (s *Session) open(ctx context.Context) error {
	err := s.call(ctx, ptp.OpOpenSession, 1)
	if err != nil && !ptp.IsResponse(err, ptp.RespSessionAlreadyOpen) {
		return fmt.Errorf("open session: %w", err)
	}
	for _, phase := range []uint32{1, 2} {
		if err := s.call(ctx, ptp.OpSDIOConnect, phase, 0, 0); err != nil {
			return fmt.Errorf("sdio connect phase %d: %w", phase, err)
		}
	}
	if err := s.call(ctx, ptp.OpSDIOGetExtDeviceInfo, 0xC8); err != nil {
		slog.Warn("extended device info failed", "err", err)
	}
	if err := s.call(ctx, ptp.OpSDIOConnect, 3, 0, 0); err != nil {
		return fmt.Errorf("sdio connect phase 3: %w", err)
	}
	slog.Info("session opened", "camera", s.camera.Name)
	return nil
}

// call sends a request and waits for its response, discarding any data.
func (s *Session) call(ctx context.Context, op uint16, args ...uint32) error {
	txid := s.NextTransactionID()
	if err := s.SendCommandRequest(ctx, ptp.NewCommandRequest(op, txid, args...)); err != nil {
		return err
	}
	_, err := s.AwaitData(ctx, txid)
	return err
}

// CameraName returns the friendly name the camera announced.
func (s *Session) CameraName() string { return s.camera.Name }

// CameraGUID returns the GUID the camera announced.
func (s *Session) CameraGUID() uuid.UUID { return uuid.UUID(s.camera.GUID) }

// NextTransactionID allocates the next transaction id. Ids start at 1.
func (s *Session) NextTransactionID() uint32 {
	return s.txid.Add(1)
}

// SetEventHandler registers the receiver of event packets. It runs on the
// event connection's reader goroutine.
func (s *Session) SetEventHandler(fn func(*ptp.Packet)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = fn
}

func (s *Session) begin(req *ptp.CommandRequest) (*transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if _, dup := s.pending[req.TransactionID]; dup {
		return nil, fmt.Errorf("transaction %d already pending", req.TransactionID)
	}
	tx := &transaction{op: req.Code, done: make(chan struct{})}
	s.pending[req.TransactionID] = tx
	return tx, nil
}

func (s *Session) abandon(txid uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, txid)
}

// SendCommandRequest writes req and registers its transaction so that
// AwaitData can collect the outcome.
func (s *Session) SendCommandRequest(ctx context.Context, req *ptp.CommandRequest) error {
	if _, err := s.begin(req); err != nil {
		return err
	}
	slog.Debug("command", "op", fmt.Sprintf("0x%04X", req.Code), "txid", req.TransactionID)
	if err := s.cmd.write(ctx, req.Marshal()); err != nil {
		s.abandon(req.TransactionID)
		return err
	}
	return nil
}

// AwaitData waits for the response to transaction txid and returns the data
// phase that preceded it. A non-OK response is a *ptp.ResponseError. Each
// transaction can be awaited once.
func (s *Session) AwaitData(ctx context.Context, txid uint32) ([]byte, error) {
	s.mu.Lock()
	tx, ok := s.pending[txid]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("transaction %d not pending", txid)
	}
	defer s.abandon(txid)

	select {
	case <-tx.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.closed:
		return nil, s.closeErr()
	}
	if tx.resp.Code != ptp.RespOK {
		return nil, &ptp.ResponseError{Op: tx.op, Code: tx.resp.Code}
	}
	return tx.data, nil
}

// GetDevicePropDesc fetches and decodes the descriptor of one property.
func (s *Session) GetDevicePropDesc(ctx context.Context, code ptp.PropertyCode) (*ptp.DeviceProperty, error) {
	txid := s.NextTransactionID()
	if err := s.SendCommandRequest(ctx, ptp.NewCommandRequest(ptp.OpGetDevicePropDesc, txid, uint32(code))); err != nil {
		return nil, err
	}
	data, err := s.AwaitData(ctx, txid)
	if err != nil {
		return nil, err
	}
	p, _, err := ptp.DecodeDeviceProperty(ptp.BufferFrom(data), 0)
	if err != nil {
		return nil, fmt.Errorf("decode property 0x%04X: %w", uint16(code), err)
	}
	return p, nil
}

// SendSetControl writes value to property code with the opcode of ch. The
// command, start-data and end-data packets are written together.
func (s *Session) SendSetControl(ctx context.Context, code ptp.PropertyCode, value ptp.Value, ch ptp.ControlChannel) error {
	txid := s.NextTransactionID()
	req := ptp.NewCommandRequest(ch.Opcode(), txid, uint32(code))
	if _, err := s.begin(req); err != nil {
		return err
	}
	payload := value.Bytes()
	slog.Debug("set control", "channel", ch, "code", fmt.Sprintf("0x%04X", uint16(code)), "value", value, "txid", txid)
	err := s.cmd.write(ctx,
		req.Marshal(),
		ptp.MarshalStartData(txid, uint64(len(payload))),
		ptp.MarshalEndData(txid, payload),
	)
	if err != nil {
		s.abandon(txid)
		return err
	}
	_, err = s.AwaitData(ctx, txid)
	return err
}

// Probe sends a probe request on the event connection.
func (s *Session) Probe(ctx context.Context) error {
	return s.evt.write(ctx, ptp.MarshalProbeRequest())
}

func (s *Session) readLoop(c *channel) {
	defer s.wg.Done()
	for {
		raw, err := c.read()
		if err != nil {
			s.fail(err)
			return
		}
		p, err := ptp.ParsePacket(raw)
		if err != nil {
			slog.Debug("ignoring malformed packet", "channel", c.name, "err", err)
			continue
		}
		s.dispatch(c, p)
	}
}

func (s *Session) dispatch(c *channel, p *ptp.Packet) {
	switch p.Kind {
	case ptp.KindStartData, ptp.KindData, ptp.KindEndData, ptp.KindCommandResponse:
		s.deliver(p)
	case ptp.KindEvent:
		s.mu.Lock()
		fn := s.handler
		s.mu.Unlock()
		slog.Debug("event", "code", fmt.Sprintf("0x%04X", p.Code))
		if fn != nil {
			fn(p)
		}
	case ptp.KindProbeRequest:
		if err := c.write(context.Background(), ptp.MarshalProbeResponse()); err != nil {
			slog.Debug("probe response failed", "err", err)
		}
	case ptp.KindProbeResponse:
		if s.heartbeat != nil {
			s.heartbeat.ack()
		}
	case ptp.KindCancel:
		slog.Debug("transaction cancelled by camera", "txid", p.TransactionID)
	default:
		slog.Debug("ignoring packet", "channel", c.name, "kind", p.Kind)
	}
}

// deliver adds a data-phase or response packet to its transaction.
func (s *Session) deliver(p *ptp.Packet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.pending[p.TransactionID]
	if !ok || tx.resp != nil {
		slog.Debug("packet for unknown transaction", "kind", p.Kind, "txid", p.TransactionID)
		return
	}
	switch p.Kind {
	case ptp.KindStartData:
		tx.total, _ = p.TotalLength()
		tx.data = make([]byte, 0, min(tx.total, maxPacketSize))
	case ptp.KindData, ptp.KindEndData:
		tx.data = append(tx.data, p.Payload()...)
	case ptp.KindCommandResponse:
		if tx.total > 0 && uint64(len(tx.data)) != tx.total {
			slog.Warn("data phase length mismatch", "txid", p.TransactionID, "want", tx.total, "got", len(tx.data))
		}
		tx.resp = p
		close(tx.done)
	}
}

// fail records the first connection error and tears the session down.
func (s *Session) fail(err error) {
	s.mu.Lock()
	if s.err == nil {
		select {
		case <-s.closed:
			s.err = ErrSessionClosed
		default:
			s.err = fmt.Errorf("%w: %v", ErrSessionClosed, err)
			slog.Warn("session connection lost", "err", err)
		}
	}
	s.mu.Unlock()
	s.shutdown()
}

func (s *Session) closeErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	return ErrSessionClosed
}

func (s *Session) shutdown() {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.cmd.close()
		s.evt.close()
	})
}

// Close stops the heartbeat, closes both connections and fails pending
// waits with ErrSessionClosed.
func (s *Session) Close() error {
	if s.heartbeat != nil {
		s.heartbeat.Stop()
	}
	s.mu.Lock()
	if s.err == nil {
		s.err = ErrSessionClosed
	}
	s.mu.Unlock()
	s.shutdown()
	s.wg.Wait()
	slog.Info("session closed", "camera", s.camera.Name)
	return nil
}

// Done is closed when the session ends.
func (s *Session) Done() <-chan struct{} { return s.closed }
