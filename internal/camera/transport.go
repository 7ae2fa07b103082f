package camera

import (
	"context"

	"github.com/mzyy94/ptpcam/internal/ptp"
)

// Transport is the session collaborator that owns the connection. It
// correlates requests with responses by transaction id and pushes
// unsolicited event packets to the registered handler.
type Transport interface {
	// SendCommandRequest writes a command request packet.
	SendCommandRequest(ctx context.Context, req *ptp.CommandRequest) error

	// AwaitData returns the data phase of the transaction once its response
	// arrives. Each transaction id can be awaited once.
	AwaitData(ctx context.Context, transactionID uint32) ([]byte, error)

	// GetDevicePropDesc fetches and decodes one property descriptor.
	GetDevicePropDesc(ctx context.Context, code ptp.PropertyCode) (*ptp.DeviceProperty, error)

	// SendSetControl writes value to the property on the given control
	// channel.
	SendSetControl(ctx context.Context, code ptp.PropertyCode, value ptp.Value, ch ptp.ControlChannel) error

	// NextTransactionID allocates the next transaction id of the session.
	NextTransactionID() uint32

	// SetEventHandler registers the receiver of unsolicited event packets.
	// The handler runs on the transport's reader goroutine.
	SetEventHandler(func(*ptp.Packet))
}
