package trace

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Tracer observes raw packets. It matches the session's tracer hook.
type Tracer interface {
	Packet(outbound bool, channel string, raw []byte)
}

// FileRecorder appends packet records to a CBOR file. It is safe for
// concurrent use.
type FileRecorder struct {
	mu      sync.Mutex
	file    *os.File
	encoder *cbor.Encoder
	closed  bool
	now     func() time.Time
}

// NewFileRecorder opens path for appending, creating it with mode 0644.
func NewFileRecorder(path string) (*FileRecorder, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return &FileRecorder{file: f, encoder: newEncoder(f), now: time.Now}, nil
}

// Packet records one packet. Encoding errors are logged and dropped so
// tracing never disturbs the session.
func (r *FileRecorder) Packet(outbound bool, channel string, raw []byte) {
	rec := NewRecord(r.now(), outbound, channel, raw)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	if err := r.encoder.Encode(rec); err != nil {
		slog.Warn("trace write failed", "err", err)
	}
}

// Close closes the file. Later Packet calls are ignored.
func (r *FileRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return r.file.Close()
}

// Logger writes one debug line per packet.
type Logger struct {
	Log *slog.Logger
}

// Packet logs the decoded header of raw.
func (l Logger) Packet(outbound bool, channel string, raw []byte) {
	log := l.Log
	if log == nil {
		log = slog.Default()
	}
	if !log.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	rec := NewRecord(time.Now(), outbound, channel, raw)
	log.Debug("packet",
		"dir", rec.Direction,
		"channel", rec.Channel,
		"kind", rec.Kind,
		"code", rec.Code,
		"tx", rec.TransactionID,
		"len", len(rec.Payload),
	)
}

type tee []Tracer

func (t tee) Packet(outbound bool, channel string, raw []byte) {
	for _, tr := range t {
		tr.Packet(outbound, channel, raw)
	}
}

// Tee returns a Tracer that forwards to every non-nil tracer, or nil when
// there are none.
func Tee(tracers ...Tracer) Tracer {
	var out tee
	for _, t := range tracers {
		if t != nil {
			out = append(out, t)
		}
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	}
	return out
}
