package camera

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/OpenPrinting/go-mfp/util/optional"

	"github.com/mzyy94/ptpcam/internal/ptp"
)

// CaptureState is a step of the capture sequence.
type CaptureState int

const (
	StateIdle CaptureState = iota
	StatePressSent
	StateAwaitingFocus
	StateFocusConfirmed
	StateFocusTimedOut
	StateFocusSkipped
	StateReleaseSent
)

var captureStateNames = [...]string{
	StateIdle:           "idle",
	StatePressSent:      "press-sent",
	StateAwaitingFocus:  "awaiting-focus",
	StateFocusConfirmed: "focus-confirmed",
	StateFocusTimedOut:  "focus-timed-out",
	StateFocusSkipped:   "focus-skipped",
	StateReleaseSent:    "release-sent",
}

func (s CaptureState) String() string {
	if int(s) < len(captureStateNames) {
		return captureStateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// CaptureResult describes a finished capture.
type CaptureResult struct {
	// Focus is how the focus wait ended: StateFocusConfirmed,
	// StateFocusTimedOut or StateFocusSkipped.
	Focus CaptureState
	// ObjectHandle is the handle of the new image when the camera announced
	// it during the focus wait.
	ObjectHandle optional.Val[uint32]
	// Trace lists the states the capture went through.
	Trace []CaptureState
}

// focusSignal is produced by the event watcher or the focus poller when the
// focus wait may end.
type focusSignal struct {
	source string
	handle optional.Val[uint32]
}

// captureRun is the state of one capture. It is owned by the goroutine
// running the capture and discarded when it completes.
type captureRun struct {
	state CaptureState
	trace []CaptureState
}

func (r *captureRun) to(s CaptureState) {
	slog.Debug("capture state", "from", r.state, "to", s)
	r.state = s
	r.trace = append(r.trace, s)
}

// Capture starts a capture on a new goroutine and calls done there when it
// completes. It never blocks the caller.
func (d *Dispatcher) Capture(ctx context.Context, done func(CaptureResult, error)) {
	go func() {
		res, err := d.capture(ctx)
		if done != nil {
			done(res, err)
		}
	}()
}

// capture presses the shutter, waits for focus when the camera autofocuses,
// and releases the shutter. A focus timeout is not an error.
func (d *Dispatcher) capture(ctx context.Context) (CaptureResult, error) {
	run := &captureRun{state: StateIdle, trace: []CaptureState{StateIdle}}
	d.latch.Clear()

	if err := d.pressButton(ctx, ptp.PropFullPress, ptp.ButtonDown); err != nil {
		return CaptureResult{Trace: run.trace}, fmt.Errorf("press shutter: %w", err)
	}
	run.to(StatePressSent)

	res := CaptureResult{}
	mode, err := Execute(ctx, d, GetFocusMode, None{})
	switch {
	case err != nil:
		slog.Warn("focus mode unknown, skipping focus wait", "err", err)
		run.to(StateFocusSkipped)
	case !mode.IsAutofocus():
		run.to(StateFocusSkipped)
	default:
		run.to(StateAwaitingFocus)
		sig, ok := d.awaitFocus(ctx)
		if ok {
			slog.Debug("focus confirmed", "source", sig.source)
			res.ObjectHandle = sig.handle
			run.to(StateFocusConfirmed)
		} else {
			slog.Warn("focus wait timed out, releasing shutter", "timeout", d.opts.FocusTimeout)
			run.to(StateFocusTimedOut)
		}
	}
	res.Focus = run.state

	// Release even when ctx is done so the shutter is never left pressed.
	releaseCtx := context.WithoutCancel(ctx)
	if err := d.pressButton(releaseCtx, ptp.PropFullPress, ptp.ButtonUp); err != nil {
		res.Trace = run.trace
		return res, fmt.Errorf("release shutter: %w", err)
	}
	run.to(StateReleaseSent)
	run.to(StateIdle)
	res.Trace = run.trace
	slog.Info("capture complete", "focus", res.Focus)
	return res, nil
}

// awaitFocus races the event watcher and the focus poller against the focus
// timeout. ok is false on timeout or when ctx ends.
func (d *Dispatcher) awaitFocus(ctx context.Context) (sig focusSignal, ok bool) {
	ctx, cancel := context.WithTimeout(ctx, d.opts.FocusTimeout)
	defer cancel()

	signals := make(chan focusSignal, 2)
	go d.watchEvents(ctx, signals)
	go d.pollFocus(ctx, signals)

	select {
	case sig = <-signals:
		return sig, true
	case <-ctx.Done():
		return focusSignal{}, false
	}
}

// watchEvents waits for a focus-found property change or an object-added
// event on the latch.
func (d *Dispatcher) watchEvents(ctx context.Context, out chan<- focusSignal) {
	for {
		p, next := d.latch.Latest()
		if sig, ok := focusEvent(p); ok {
			select {
			case out <- sig:
			case <-ctx.Done():
			}
			return
		}
		select {
		case <-next:
		case <-ctx.Done():
			return
		}
	}
}

func focusEvent(p *ptp.Packet) (focusSignal, bool) {
	if p == nil || p.Kind != ptp.KindEvent {
		return focusSignal{}, false
	}
	switch p.Code {
	case ptp.EventDevicePropChanged:
		if code, ok := p.Arg(0); ok && ptp.PropertyCode(code) == ptp.PropFocusFound {
			return focusSignal{source: "event"}, true
		}
	case ptp.EventObjectAdded:
		sig := focusSignal{source: "object-added"}
		if handle, ok := p.Arg(0); ok {
			sig.handle = optional.New(handle)
		}
		return sig, true
	}
	return focusSignal{}, false
}

// pollFocus reads the camera event every poll interval until the focus
// status reports focused.
func (d *Dispatcher) pollFocus(ctx context.Context, out chan<- focusSignal) {
	ticker := time.NewTicker(d.opts.PollInterval)
	defer ticker.Stop()
	for {
		ev, err := Execute(ctx, d, GetEvent, None{})
		switch {
		case err != nil:
			if ctx.Err() == nil {
				slog.Debug("focus poll failed", "err", err)
			}
		case ev.FocusStatus != nil && *ev.FocusStatus == FocusFocused:
			select {
			case out <- focusSignal{source: "poll"}:
			case <-ctx.Done():
			}
			return
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}
