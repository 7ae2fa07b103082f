package camera

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mzyy94/ptpcam/internal/ptp"
)

func isoBlock(current uint64) ptp.PropertyBlock {
	return enumBlock(ptp.PropISO, ptp.TypeUint32, current, 100, 200, 400, 800, 0x00FFFFFF)
}

func driveBlock(current StillCaptureMode, modes ...StillCaptureMode) ptp.PropertyBlock {
	values := make([]uint64, len(modes))
	for i, m := range modes {
		values[i] = uint64(m)
	}
	return enumBlock(ptp.PropStillCaptureMode, ptp.TypeUint32, uint64(current), values...)
}

func newTestDispatcher(blocks ...ptp.PropertyBlock) (*Dispatcher, *fakeTransport) {
	f := newFakeTransport(blocks...)
	return NewDispatcher(f, Options{}), f
}

func TestExecute_Get(t *testing.T) {
	d, _ := newTestDispatcher(isoBlock(400))

	v, err := Execute(context.Background(), d, GetISO, None{})
	require.NoError(t, err)
	assert.Equal(t, ISO{Value: 400}, v)

	pair, err := Execute(context.Background(), d, GetAvailableISO, None{})
	require.NoError(t, err)
	assert.Len(t, pair.Available, 5)
}

func TestExecute_GetMissingProperty(t *testing.T) {
	d, _ := newTestDispatcher()

	_, err := Execute(context.Background(), d, GetISO, None{})
	require.Error(t, err)
	assert.True(t, ptp.IsResponse(err, ptp.RespDevicePropNotSupported))
}

func TestExecute_GetUnrecognizedValue(t *testing.T) {
	d, _ := newTestDispatcher(focusModeBlock(0x7777))

	_, err := Execute(context.Background(), d, GetFocusMode, None{})
	assert.ErrorIs(t, err, ErrNoValue)
}

func TestExecute_SetWritesSettingsChannel(t *testing.T) {
	d, f := newTestDispatcher(isoBlock(400))

	_, err := Execute(context.Background(), d, SetISO, ISO{Value: 800})
	require.NoError(t, err)

	w := f.writes()
	require.Len(t, w, 1)
	assert.Equal(t, ptp.PropISO, w[0].code)
	assert.Equal(t, ptp.ChannelA, w[0].channel)
	assert.Equal(t, uint64(800), w[0].value.Uint())
	assert.Equal(t, ptp.TypeUint32, w[0].value.Type())
}

func TestExecute_SetValidatesAgainstCachedDescriptor(t *testing.T) {
	d, f := newTestDispatcher(isoBlock(400))
	ctx := context.Background()

	_, err := Execute(ctx, d, GetAvailableISO, None{})
	require.NoError(t, err)

	_, err = Execute(ctx, d, SetISO, ISO{Value: 12800})
	assert.ErrorIs(t, err, ErrValueNotAvailable)
	assert.Empty(t, f.writes())

	_, err = Execute(ctx, d, SetISO, ISOAuto)
	require.NoError(t, err)
	assert.Len(t, f.writes(), 1)
}

func TestExecute_SetReadOnly(t *testing.T) {
	b := isoBlock(400)
	b.Writable = false
	d, f := newTestDispatcher(b)
	ctx := context.Background()

	_, err := Execute(ctx, d, GetEvent, None{})
	require.NoError(t, err)

	_, err = Execute(ctx, d, SetISO, ISO{Value: 200})
	assert.ErrorIs(t, err, ErrNotWritable)
	assert.Empty(t, f.writes())
}

func TestExecute_SetWriteFailure(t *testing.T) {
	d, f := newTestDispatcher(isoBlock(400))
	f.failWrite = errors.New("connection reset")

	_, err := Execute(context.Background(), d, SetISO, ISO{Value: 800})
	assert.ErrorContains(t, err, "connection reset")
}

func TestPerform_InvalidPayloadSendsNothing(t *testing.T) {
	m := &mockTransport{}
	m.On("SetEventHandler", mock.Anything).Return()
	d := NewDispatcher(m, Options{})

	tests := []Request{
		{Op: OpSetISO, Payload: "800"},
		{Op: OpSetISO, Payload: nil},
		{Op: OpSetWhiteBalance, Payload: WBDaylight},
		{Op: OpGetISO, Payload: 1},
		{Op: OpTakePicture, Payload: ISOAuto},
	}
	for _, req := range tests {
		_, err := d.Perform(context.Background(), req)
		assert.ErrorIs(t, err, ErrInvalidPayload, "%s with %T", req.Op, req.Payload)
	}

	m.AssertNumberOfCalls(t, "SendSetControl", 0)
	m.AssertNumberOfCalls(t, "SendCommandRequest", 0)
	m.AssertNumberOfCalls(t, "GetDevicePropDesc", 0)
	m.AssertExpectations(t)
}

func TestPerform_NilPayloadForNone(t *testing.T) {
	d, _ := newTestDispatcher(isoBlock(200))

	v, err := d.Perform(context.Background(), Request{Op: OpGetISO})
	require.NoError(t, err)
	assert.Equal(t, ISO{Value: 200}, v)
}

func TestPerform_NoSuchMethod(t *testing.T) {
	d, f := newTestDispatcher()

	for _, op := range []Op{OpGetVersions, OpStartRecMode, OpGetCameraFunction, "notAMethod"} {
		_, err := d.Perform(context.Background(), Request{Op: op})
		var nsm *NoSuchMethodError
		require.ErrorAs(t, err, &nsm, op)
		assert.Equal(t, op, nsm.Op)
	}
	assert.Empty(t, f.writes())
}

func TestPerform_Unimplemented(t *testing.T) {
	d, f := newTestDispatcher()

	for _, op := range []Op{OpStartZooming, OpSetTouchAFPosition, OpStartLiveView} {
		v, err := d.Perform(context.Background(), Request{Op: op, Payload: "ignored"})
		require.NoError(t, err, op)
		assert.Equal(t, None{}, v, op)
	}
	assert.Empty(t, f.writes())
	assert.Zero(t, f.requestCount(ptp.OpGetAllDevicePropData))
}

func TestPerformAsync(t *testing.T) {
	d, _ := newTestDispatcher(isoBlock(800))

	type outcome struct {
		v   any
		err error
	}
	done := make(chan outcome, 1)
	d.PerformAsync(context.Background(), Request{Op: OpGetISO}, func(v any, err error) {
		done <- outcome{v, err}
	})

	select {
	case o := <-done:
		require.NoError(t, o.err)
		assert.Equal(t, ISO{Value: 800}, o.v)
	case <-time.After(time.Second):
		t.Fatal("completion not called")
	}
}

func TestButtons(t *testing.T) {
	d, f := newTestDispatcher()
	ctx := context.Background()

	_, err := Execute(ctx, d, HalfPressShutter, None{})
	require.NoError(t, err)
	_, err = Execute(ctx, d, CancelHalfPressShutter, None{})
	require.NoError(t, err)
	_, err = Execute(ctx, d, StartBulbShooting, None{})
	require.NoError(t, err)

	w := f.writes()
	require.Len(t, w, 3)
	want := []struct {
		code  ptp.PropertyCode
		state uint16
	}{
		{ptp.PropHalfPress, ptp.ButtonDown},
		{ptp.PropHalfPress, ptp.ButtonUp},
		{ptp.PropFullPress, ptp.ButtonDown},
	}
	for i, c := range w {
		assert.Equal(t, ptp.ChannelB, c.channel)
		assert.Equal(t, want[i].code, c.code)
		assert.Equal(t, uint64(want[i].state), c.value.Uint())
		assert.Equal(t, ptp.TypeUint16, c.value.Type())
	}
}

func TestSelfTimer(t *testing.T) {
	advertised := []StillCaptureMode{DriveSingle, DriveTimer10s, DriveTimer10s3, DriveTimer2s}
	ctx := context.Background()

	t.Run("get", func(t *testing.T) {
		d, _ := newTestDispatcher(driveBlock(DriveTimer10s3, advertised...))
		v, err := Execute(ctx, d, GetSelfTimer, None{})
		require.NoError(t, err)
		assert.Equal(t, SelfTimer10s, v)
	})

	t.Run("single candidate", func(t *testing.T) {
		d, f := newTestDispatcher(driveBlock(DriveSingle, advertised...))
		_, err := Execute(ctx, d, SetSelfTimer, SelfTimer2s)
		require.NoError(t, err)
		w := f.writes()
		require.Len(t, w, 1)
		assert.Equal(t, uint64(DriveTimer2s), w[0].value.Uint())
	})

	t.Run("ambiguous", func(t *testing.T) {
		d, f := newTestDispatcher(driveBlock(DriveSingle, advertised...))
		_, err := Execute(ctx, d, SetSelfTimer, SelfTimer10s)
		var amb *AmbiguousValueError
		require.ErrorAs(t, err, &amb)
		assert.Equal(t, []StillCaptureMode{DriveTimer10s, DriveTimer10s3}, amb.Candidates)
		assert.Empty(t, f.writes())
	})

	t.Run("not advertised", func(t *testing.T) {
		d, f := newTestDispatcher(driveBlock(DriveSingle, advertised...))
		_, err := Execute(ctx, d, SetSelfTimer, SelfTimer5s)
		assert.ErrorIs(t, err, ErrValueNotAvailable)
		assert.Empty(t, f.writes())
	})

	t.Run("off", func(t *testing.T) {
		d, f := newTestDispatcher(driveBlock(DriveTimer2s, advertised...))
		_, err := Execute(ctx, d, SetSelfTimer, SelfTimerOff)
		require.NoError(t, err)
		w := f.writes()
		require.Len(t, w, 1)
		assert.Equal(t, uint64(DriveSingle), w[0].value.Uint())
	})

	t.Run("available", func(t *testing.T) {
		d, _ := newTestDispatcher(driveBlock(DriveSingle, advertised...))
		pair, err := Execute(ctx, d, GetAvailableSelfTimer, None{})
		require.NoError(t, err)
		assert.Contains(t, pair.Available, SelfTimerOff)
		assert.Contains(t, pair.Available, SelfTimer10s)
		assert.Contains(t, pair.Available, SelfTimer2s)
		assert.NotContains(t, pair.Available, SelfTimer5s)
	})
}

func TestWhiteBalance(t *testing.T) {
	ctx := context.Background()
	wbBlock := enumBlock(ptp.PropWhiteBalance, ptp.TypeUint16, uint64(WBDaylight),
		uint64(WBAuto), uint64(WBDaylight), uint64(WBColorTemp))

	t.Run("mode only", func(t *testing.T) {
		d, _ := newTestDispatcher(wbBlock)
		wb, err := Execute(ctx, d, GetWhiteBalance, None{})
		require.NoError(t, err)
		assert.Equal(t, WBDaylight, wb.Mode)
		assert.Nil(t, wb.Temperature)
	})

	t.Run("with temperature", func(t *testing.T) {
		d, _ := newTestDispatcher(wbBlock, plainBlock(ptp.PropColorTemperature, ptp.TypeUint16, 6500))
		wb, err := Execute(ctx, d, GetWhiteBalance, None{})
		require.NoError(t, err)
		require.NotNil(t, wb.Temperature)
		assert.Equal(t, ColorTemperature(6500), *wb.Temperature)

		pair, err := Execute(ctx, d, GetAvailableWhiteBalance, None{})
		require.NoError(t, err)
		assert.Equal(t, wb, pair.Current)
		assert.Len(t, pair.Available, 3)
	})

	t.Run("set mode and temperature", func(t *testing.T) {
		d, f := newTestDispatcher(wbBlock, plainBlock(ptp.PropColorTemperature, ptp.TypeUint16, 6500))
		k := ColorTemperature(3200)
		_, err := Execute(ctx, d, SetWhiteBalance, WhiteBalance{Mode: WBColorTemp, Temperature: &k})
		require.NoError(t, err)

		w := f.writes()
		require.Len(t, w, 2)
		assert.Equal(t, ptp.PropWhiteBalance, w[0].code)
		assert.Equal(t, uint64(WBColorTemp), w[0].value.Uint())
		assert.Equal(t, ptp.PropColorTemperature, w[1].code)
		assert.Equal(t, uint64(3200), w[1].value.Uint())
	})

	t.Run("temperature ignored for presets", func(t *testing.T) {
		d, f := newTestDispatcher(wbBlock)
		k := ColorTemperature(3200)
		_, err := Execute(ctx, d, SetWhiteBalance, WhiteBalance{Mode: WBAuto, Temperature: &k})
		require.NoError(t, err)
		assert.Len(t, f.writes(), 1)
	})
}

func TestStillSize(t *testing.T) {
	ctx := context.Background()
	sizeBlock := enumBlock(ptp.PropImageSize, ptp.TypeUint8, uint64(ImageLarge), 1, 2, 3)
	aspectBlock := enumBlock(ptp.PropAspectRatio, ptp.TypeUint8, uint64(Aspect3x2), 1, 2, 3, 4)

	t.Run("get", func(t *testing.T) {
		d, _ := newTestDispatcher(sizeBlock, aspectBlock)
		v, err := Execute(ctx, d, GetStillSize, None{})
		require.NoError(t, err)
		assert.Equal(t, "L 3:2", v.String())
	})

	t.Run("get without aspect", func(t *testing.T) {
		d, _ := newTestDispatcher(sizeBlock)
		v, err := Execute(ctx, d, GetStillSize, None{})
		require.NoError(t, err)
		assert.Nil(t, v.Aspect)
	})

	t.Run("set aspect then size", func(t *testing.T) {
		d, f := newTestDispatcher(sizeBlock, aspectBlock)
		a := Aspect16x9
		_, err := Execute(ctx, d, SetStillSize, StillSize{Size: ImageSmall, Aspect: &a})
		require.NoError(t, err)

		w := f.writes()
		require.Len(t, w, 2)
		assert.Equal(t, ptp.PropAspectRatio, w[0].code)
		assert.Equal(t, uint64(Aspect16x9), w[0].value.Uint())
		assert.Equal(t, ptp.PropImageSize, w[1].code)
		assert.Equal(t, uint64(ImageSmall), w[1].value.Uint())
	})

	t.Run("set size only", func(t *testing.T) {
		d, f := newTestDispatcher(sizeBlock)
		_, err := Execute(ctx, d, SetStillSize, StillSize{Size: ImageMedium})
		require.NoError(t, err)
		assert.Len(t, f.writes(), 1)
	})
}

func TestGetFocusStatus(t *testing.T) {
	for wire, want := range map[uint8]FocusStatus{1: FocusNotFocusing, 2: FocusFocused, 3: FocusFocused} {
		d, _ := newTestDispatcher(focusFoundBlock(wire))
		v, err := Execute(context.Background(), d, GetFocusStatus, None{})
		require.NoError(t, err)
		assert.Equal(t, want, v, "wire %d", wire)
	}

	d, _ := newTestDispatcher(focusFoundBlock(0))
	_, err := Execute(context.Background(), d, GetFocusStatus, None{})
	assert.ErrorIs(t, err, ErrNoValue)
}

func TestGetEvent(t *testing.T) {
	d, f := newTestDispatcher(isoBlock(100), focusModeBlock(FocusAFContinue), focusFoundBlock(1))

	ev, err := Execute(context.Background(), d, GetEvent, None{})
	require.NoError(t, err)
	assert.Equal(t, 1, f.requestCount(ptp.OpGetAllDevicePropData))
	assert.Equal(t, ISO{Value: 100}, ev.ISO.Current)
	assert.Equal(t, FocusAFContinue, ev.FocusMode.Current)
	assert.Equal(t, FocusNotFocusing, *ev.FocusStatus)
}

func TestEventListener(t *testing.T) {
	d, f := newTestDispatcher()

	var got []uint16
	d.SetEventListener(func(p *ptp.Packet) { got = append(got, p.Code) })
	f.emit(ptp.EventDevicePropChanged, uint32(ptp.PropISO))
	f.emit(ptp.EventObjectAdded, 7)

	assert.Equal(t, []uint16{ptp.EventDevicePropChanged, ptp.EventObjectAdded}, got)
	p, _ := d.latch.Latest()
	require.NotNil(t, p)
	assert.Equal(t, ptp.EventObjectAdded, p.Code)
}

func TestLookupSetting(t *testing.T) {
	s, err := LookupSetting("White-Balance")
	require.NoError(t, err)
	assert.Equal(t, OpSetWhiteBalance, s.Set)

	v, err := s.Parse("5600K")
	require.NoError(t, err)
	assert.IsType(t, WhiteBalance{}, v)

	_, err = LookupSetting("zoom")
	assert.ErrorContains(t, err, "unknown setting")
}
