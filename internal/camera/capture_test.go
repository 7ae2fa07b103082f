package camera

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mzyy94/ptpcam/internal/ptp"
)

func newCaptureDispatcher(mode FocusMode, opts Options) (*Dispatcher, *fakeTransport) {
	f := newFakeTransport(focusModeBlock(mode), focusFoundBlock(1))
	return NewDispatcher(f, opts), f
}

func isShutter(c control, state uint16) bool {
	return c.code == ptp.PropFullPress && c.channel == ptp.ChannelB && c.value.Uint() == uint64(state)
}

func assertPressRelease(t *testing.T, f *fakeTransport) {
	t.Helper()
	w := f.writes()
	require.Len(t, w, 2)
	assert.True(t, isShutter(w[0], ptp.ButtonDown), "first write presses S2")
	assert.True(t, isShutter(w[1], ptp.ButtonUp), "second write releases S2")
}

func TestCapture_FocusEvent(t *testing.T) {
	d, f := newCaptureDispatcher(FocusAFSingle, Options{FocusTimeout: 5 * time.Second, PollInterval: time.Hour})
	f.onControl = func(c control) {
		if isShutter(c, ptp.ButtonDown) {
			go f.emit(ptp.EventDevicePropChanged, uint32(ptp.PropFocusFound))
		}
	}

	start := time.Now()
	res, err := Execute(context.Background(), d, TakePicture, None{})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)

	assert.Equal(t, StateFocusConfirmed, res.Focus)
	assert.Nil(t, res.ObjectHandle)
	assert.Equal(t, []CaptureState{
		StateIdle, StatePressSent, StateAwaitingFocus, StateFocusConfirmed, StateReleaseSent, StateIdle,
	}, res.Trace)
	assertPressRelease(t, f)
}

func TestCapture_ObjectAdded(t *testing.T) {
	d, f := newCaptureDispatcher(FocusAFContinue, Options{FocusTimeout: 5 * time.Second, PollInterval: time.Hour})
	f.onControl = func(c control) {
		if isShutter(c, ptp.ButtonDown) {
			go f.emit(ptp.EventObjectAdded, 0xFFFFC001)
		}
	}

	res, err := Execute(context.Background(), d, TakePicture, None{})
	require.NoError(t, err)
	assert.Equal(t, StateFocusConfirmed, res.Focus)
	require.NotNil(t, res.ObjectHandle)
	assert.Equal(t, uint32(0xFFFFC001), *res.ObjectHandle)
	assertPressRelease(t, f)
}

func TestCapture_IgnoresUnrelatedEvents(t *testing.T) {
	d, f := newCaptureDispatcher(FocusAFSingle, Options{FocusTimeout: 200 * time.Millisecond, PollInterval: time.Hour})
	f.onControl = func(c control) {
		if isShutter(c, ptp.ButtonDown) {
			go f.emit(ptp.EventDevicePropChanged, uint32(ptp.PropISO))
		}
	}

	res, err := Execute(context.Background(), d, TakePicture, None{})
	require.NoError(t, err)
	assert.Equal(t, StateFocusTimedOut, res.Focus)
}

func TestCapture_StaleEventIsCleared(t *testing.T) {
	d, f := newCaptureDispatcher(FocusAFSingle, Options{FocusTimeout: 200 * time.Millisecond, PollInterval: time.Hour})
	f.emit(ptp.EventDevicePropChanged, uint32(ptp.PropFocusFound))

	res, err := Execute(context.Background(), d, TakePicture, None{})
	require.NoError(t, err)
	assert.Equal(t, StateFocusTimedOut, res.Focus, "an event from before the press does not confirm focus")
}

func TestCapture_FocusPoll(t *testing.T) {
	d, f := newCaptureDispatcher(FocusAFSingle, Options{FocusTimeout: 5 * time.Second, PollInterval: 10 * time.Millisecond})
	f.onControl = func(c control) {
		if isShutter(c, ptp.ButtonDown) {
			f.set(focusFoundBlock(2))
		}
	}

	res, err := Execute(context.Background(), d, TakePicture, None{})
	require.NoError(t, err)
	assert.Equal(t, StateFocusConfirmed, res.Focus)
	assert.GreaterOrEqual(t, f.requestCount(ptp.OpGetAllDevicePropData), 1)
	assertPressRelease(t, f)
}

func TestCapture_Timeout(t *testing.T) {
	const timeout = 150 * time.Millisecond
	d, f := newCaptureDispatcher(FocusAFSingle, Options{FocusTimeout: timeout, PollInterval: 20 * time.Millisecond})

	start := time.Now()
	res, err := Execute(context.Background(), d, TakePicture, None{})
	elapsed := time.Since(start)

	require.NoError(t, err, "a focus timeout is not an error")
	assert.Equal(t, StateFocusTimedOut, res.Focus)
	assert.GreaterOrEqual(t, elapsed, timeout)
	assert.Less(t, elapsed, timeout+time.Second)
	assertPressRelease(t, f)
	assert.Greater(t, f.requestCount(ptp.OpGetAllDevicePropData), 1, "focus status was polled")
}

func TestCapture_ManualFocusSkipsWait(t *testing.T) {
	d, f := newCaptureDispatcher(FocusManual, Options{FocusTimeout: 5 * time.Second})

	start := time.Now()
	res, err := Execute(context.Background(), d, TakePicture, None{})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)

	assert.Equal(t, StateFocusSkipped, res.Focus)
	assert.NotContains(t, res.Trace, StateAwaitingFocus)
	assert.Zero(t, f.requestCount(ptp.OpGetAllDevicePropData))
	assertPressRelease(t, f)
}

func TestCapture_UnknownFocusModeSkipsWait(t *testing.T) {
	f := newFakeTransport()
	d := NewDispatcher(f, Options{FocusTimeout: 5 * time.Second})

	res, err := Execute(context.Background(), d, TakePicture, None{})
	require.NoError(t, err)
	assert.Equal(t, StateFocusSkipped, res.Focus)
	assertPressRelease(t, f)
}

func TestCapture_PressFails(t *testing.T) {
	d, f := newCaptureDispatcher(FocusAFSingle, Options{})
	f.failWrite = errors.New("broken pipe")

	_, err := Execute(context.Background(), d, TakePicture, None{})
	assert.ErrorContains(t, err, "press shutter")
	assert.Empty(t, f.writes())
}

func TestCapture_ReleasesWhenContextEnds(t *testing.T) {
	d, f := newCaptureDispatcher(FocusAFSingle, Options{FocusTimeout: 5 * time.Second, PollInterval: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.onControl = func(c control) {
		if isShutter(c, ptp.ButtonDown) {
			cancel()
		}
	}

	res, err := Execute(ctx, d, TakePicture, None{})
	require.NoError(t, err)
	assert.Equal(t, StateFocusTimedOut, res.Focus)
	assertPressRelease(t, f)
}

func TestCapture_Async(t *testing.T) {
	d, f := newCaptureDispatcher(FocusManual, Options{})

	done := make(chan CaptureResult, 1)
	d.Capture(context.Background(), func(res CaptureResult, err error) {
		assert.NoError(t, err)
		done <- res
	})

	select {
	case res := <-done:
		assert.Equal(t, StateFocusSkipped, res.Focus)
	case <-time.After(2 * time.Second):
		t.Fatal("capture did not complete")
	}
	assertPressRelease(t, f)
}

func TestCaptureStateString(t *testing.T) {
	assert.Equal(t, "focus-timed-out", StateFocusTimedOut.String())
	assert.Equal(t, "state(42)", CaptureState(42).String())
}
