package ptpip

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/mzyy94/ptpcam/internal/ptp"
)

// maxPacketSize bounds a single packet so a corrupt length field cannot
// trigger a huge allocation.
const maxPacketSize = 64 << 20

// Tracer observes every packet exchanged with the camera. channel is
// "command" or "event".
type Tracer interface {
	Packet(outbound bool, channel string, raw []byte)
}

// channel is one of the two TCP connections of a session. Writes are
// serialized; reads happen on a single goroutine.
type channel struct {
	name   string
	conn   net.Conn
	tracer Tracer

	writeMu sync.Mutex
}

func newChannel(name string, conn net.Conn, tracer Tracer) *channel {
	return &channel{name: name, conn: conn, tracer: tracer}
}

// write sends packets back to back while holding the write lock, so a
// command and its data phase are never interleaved with another request.
func (c *channel) write(ctx context.Context, packets ...[]byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if dl, ok := ctx.Deadline(); ok {
		c.conn.SetWriteDeadline(dl)
		defer c.conn.SetWriteDeadline(time.Time{})
	}
	for _, p := range packets {
		if err := ctx.Err(); err != nil {
			return err
		}
		if c.tracer != nil {
			c.tracer.Packet(true, c.name, p)
		}
		if _, err := c.conn.Write(p); err != nil {
			return fmt.Errorf("%s write: %w", c.name, err)
		}
	}
	return nil
}

// read reads one length-prefixed packet.
func (c *channel) read() ([]byte, error) {
	raw, err := readPacket(c.conn)
	if err != nil {
		return nil, fmt.Errorf("%s read: %w", c.name, err)
	}
	if c.tracer != nil {
		c.tracer.Packet(false, c.name, raw)
	}
	return raw, nil
}

func (c *channel) close() error {
	return c.conn.Close()
}

// readPacket reads a little-endian length-prefixed PTP-IP packet.
func readPacket(r io.Reader) ([]byte, error) {
	lenBuf := make([]byte, 4)
	if _, err := io.ReadFull(r, lenBuf); err != nil {
		return nil, fmt.Errorf("read packet length: %w", err)
	}
	n, err := ptp.PacketLength(lenBuf)
	if err != nil {
		return nil, err
	}
	if n > maxPacketSize {
		return nil, fmt.Errorf("packet too large: %d bytes", n)
	}
	raw := make([]byte, n)
	copy(raw[:4], lenBuf)
	if _, err := io.ReadFull(r, raw[4:]); err != nil {
		return nil, fmt.Errorf("read packet body: %w", err)
	}
	return raw, nil
}
