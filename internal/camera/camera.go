package camera

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mzyy94/ptpcam/internal/ptp"
	"github.com/mzyy94/ptpcam/internal/ptpip"
)

var _ Transport = (*ptpip.Session)(nil)

// Camera is a connected camera: a PTP-IP session with a Dispatcher on top.
type Camera struct {
	*Dispatcher
	session *ptpip.Session

	mu   sync.Mutex
	last Event
}

// Connect opens a session with the camera and prepares the dispatcher.
func Connect(ctx context.Context, sessionOpts ptpip.Options, opts Options) (*Camera, error) {
	slog.Info("connecting to camera", "host", sessionOpts.Host, "port", sessionOpts.Port)
	s, err := ptpip.Dial(ctx, sessionOpts)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	c := &Camera{
		Dispatcher: NewDispatcher(s, opts),
		session:    s,
	}
	slog.Info("connected to camera", "name", s.CameraName())
	return c, nil
}

// Name returns the camera's friendly name.
func (c *Camera) Name() string { return c.session.CameraName() }

// Done is closed when the session ends.
func (c *Camera) Done() <-chan struct{} { return c.session.Done() }

// Close ends the session.
func (c *Camera) Close() error {
	return c.session.Close()
}

// Snapshot reads every setting and merges it into the last known state.
func (c *Camera) Snapshot(ctx context.Context) (Event, error) {
	ev, err := Execute(ctx, c.Dispatcher, GetEvent, None{})
	if err != nil {
		return Event{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = c.last.Merge(ev)
	return c.last, nil
}

// Watch calls fn with the current state, then again after every property
// change the camera announces, until ctx ends or the session closes.
func (c *Camera) Watch(ctx context.Context, fn func(Event)) error {
	changed := make(chan struct{}, 1)
	c.SetEventListener(func(p *ptp.Packet) {
		if p.Code != ptp.EventDevicePropChanged {
			return
		}
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer c.SetEventListener(nil)

	for {
		ev, err := c.Snapshot(ctx)
		if err != nil {
			return err
		}
		fn(ev)
		select {
		case <-ctx.Done():
			return nil
		case <-c.Done():
			return ptpip.ErrSessionClosed
		case <-changed:
		}
	}
}
