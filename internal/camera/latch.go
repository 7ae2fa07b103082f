package camera

import (
	"log/slog"
	"sync"

	"github.com/mzyy94/ptpcam/internal/ptp"
)

// eventLatch holds the most recent unsolicited event packet. The transport's
// reader goroutine writes it; capture waits read it. Every Set closes the
// current notify channel and installs a fresh one, so waiters wake on the
// next arrival.
type eventLatch struct {
	mu     sync.Mutex
	latest *ptp.Packet
	notify chan struct{}
}

func newEventLatch() *eventLatch {
	return &eventLatch{notify: make(chan struct{})}
}

// Set records p as the latest event and wakes all waiters.
func (l *eventLatch) Set(p *ptp.Packet) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.latest = p
	close(l.notify)
	l.notify = make(chan struct{})
	slog.Debug("event received", "packet", p)
}

// Latest returns the latest event, or nil if none arrived since the last
// Clear, together with the channel closed by the next Set.
func (l *eventLatch) Latest() (*ptp.Packet, <-chan struct{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.latest, l.notify
}

// Clear forgets the latest event.
func (l *eventLatch) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.latest = nil
}
