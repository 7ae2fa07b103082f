package ptpip

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// missedProbeLimit is the number of unanswered probes after which the
// heartbeat reports the camera as unresponsive.
const missedProbeLimit = 3

// prober sends one probe request.
type prober interface {
	Probe(ctx context.Context) error
}

// Heartbeat sends periodic probe requests on the event connection to keep
// the session alive and to notice an unresponsive camera.
type Heartbeat struct {
	cancel context.CancelFunc
	done   chan struct{}
	missed atomic.Int32
}

// StartHeartbeat begins probing every interval. Stop the returned Heartbeat
// to end it.
func StartHeartbeat(p prober, interval time.Duration) *Heartbeat {
	if interval == 0 {
		interval = 10 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &Heartbeat{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(h.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		slog.Debug("heartbeat started", "interval", interval)
		for {
			select {
			case <-ctx.Done():
				slog.Debug("heartbeat stopped")
				return
			case <-ticker.C:
			}
			if n := h.missed.Add(1); n > missedProbeLimit {
				slog.Warn("camera not answering probes", "missed", n-1)
			}
			sendCtx, sendCancel := context.WithTimeout(ctx, interval)
			if err := p.Probe(sendCtx); err != nil {
				slog.Debug("probe failed", "err", err)
			}
			sendCancel()
		}
	}()
	return h
}

// ack records a probe response.
func (h *Heartbeat) ack() {
	h.missed.Store(0)
}

// Missed returns the number of probes sent since the last response.
func (h *Heartbeat) Missed() int {
	return int(h.missed.Load())
}

// Stop stops the heartbeat and waits for its goroutine to exit.
func (h *Heartbeat) Stop() {
	h.cancel()
	<-h.done
}
