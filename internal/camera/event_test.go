package camera

import (
	"testing"

	"github.com/OpenPrinting/go-mfp/util/optional"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mzyy94/ptpcam/internal/ptp"
)

func decodeBlocks(blocks ...ptp.PropertyBlock) []*ptp.DeviceProperty {
	return ptp.DecodeDevicePropertyArray(ptp.BufferFrom(ptp.EncodePropertyArray(blocks)), 0)
}

func TestNewEvent(t *testing.T) {
	ev := NewEvent(decodeBlocks(
		enumBlock(ptp.PropISO, ptp.TypeUint32, 400, 100, 400, 0x00FFFFFF),
		enumBlock(ptp.PropFNumber, ptp.TypeUint16, 0xFFFE, 280, 400),
		focusModeBlock(FocusAFSingle),
		enumBlock(ptp.PropStillCaptureMode, ptp.TypeUint32, uint64(DriveSingle),
			uint64(DriveSingle), uint64(DriveTimer10s), uint64(DriveTimer10s3), uint64(DriveTimer2s)),
		focusFoundBlock(3),
	))

	require.NotNil(t, ev.ISO)
	assert.Equal(t, ISO{Value: 400}, ev.ISO.Current)
	assert.Equal(t, []ISO{{Value: 100}, {Value: 400}, ISOAuto}, ev.ISO.Available)

	assert.Nil(t, ev.Aperture, "no lens reading leaves the field unset")
	assert.Nil(t, ev.ShutterSpeed, "not reported")

	require.NotNil(t, ev.FocusMode)
	assert.Equal(t, FocusAFSingle, ev.FocusMode.Current)

	require.NotNil(t, ev.SelfTimer)
	assert.Equal(t, SelfTimerOff, ev.SelfTimer.Current)
	assert.Equal(t, []SelfTimer{SelfTimerOff, SelfTimer10s, SelfTimer2s}, ev.SelfTimer.Available)

	require.NotNil(t, ev.ContinuousSpeed)
	assert.Equal(t, ContinuousSingle, ev.ContinuousSpeed.Current)

	require.NotNil(t, ev.FocusStatus)
	assert.Equal(t, FocusFocused, *ev.FocusStatus)
}

func TestNewEvent_WhiteBalanceModeOnly(t *testing.T) {
	ev := NewEvent(decodeBlocks(
		enumBlock(ptp.PropWhiteBalance, ptp.TypeUint16, uint64(WBDaylight), uint64(WBAuto), uint64(WBDaylight)),
	))
	require.NotNil(t, ev.WhiteBalance)
	assert.Equal(t, WBDaylight, ev.WhiteBalance.Current.Mode)
	assert.Nil(t, ev.WhiteBalance.Current.Temperature)
	assert.Equal(t, []WhiteBalance{{Mode: WBAuto}, {Mode: WBDaylight}}, ev.WhiteBalance.Available)
}

func TestNewEvent_WhiteBalanceWithTemperature(t *testing.T) {
	ev := NewEvent(decodeBlocks(
		enumBlock(ptp.PropWhiteBalance, ptp.TypeUint16, uint64(WBColorTemp), uint64(WBColorTemp)),
		plainBlock(ptp.PropColorTemperature, ptp.TypeUint16, 5600),
	))
	require.NotNil(t, ev.WhiteBalance)
	require.NotNil(t, ev.WhiteBalance.Current.Temperature)
	assert.Equal(t, ColorTemperature(5600), *ev.WhiteBalance.Current.Temperature)
	assert.Equal(t, "color-temperature 5600K", ev.WhiteBalance.Current.String())
}

func TestNewEvent_StillSize(t *testing.T) {
	ev := NewEvent(decodeBlocks(
		enumBlock(ptp.PropImageSize, ptp.TypeUint8, uint64(ImageMedium), 1, 2, 3),
		enumBlock(ptp.PropAspectRatio, ptp.TypeUint8, uint64(Aspect3x2), 1, 2),
	))
	require.NotNil(t, ev.StillSize)
	assert.Equal(t, "M 3:2", ev.StillSize.Current.String())
	assert.Len(t, ev.StillSize.Available, 3)
}

func TestNewEvent_UnrecognizedValuesDoNotAbort(t *testing.T) {
	ev := NewEvent(decodeBlocks(
		enumBlock(ptp.PropFocusMode, ptp.TypeUint16, 0x7777),
		enumBlock(ptp.PropFlashMode, ptp.TypeUint16, uint64(FlashOff), uint64(FlashOff)),
		focusFoundBlock(9),
		// Wrong datatype for the code.
		plainBlock(ptp.PropISO, ptp.TypeUint16, 100),
	))
	assert.Nil(t, ev.FocusMode)
	assert.Nil(t, ev.FocusStatus)
	assert.Nil(t, ev.ISO)
	require.NotNil(t, ev.FlashMode)
	assert.Equal(t, FlashOff, ev.FlashMode.Current)
}

func TestEventMerge(t *testing.T) {
	base := NewEvent(decodeBlocks(
		enumBlock(ptp.PropISO, ptp.TypeUint32, 400, 400),
		focusModeBlock(FocusManual),
	))
	update := Event{
		FocusMode:   optional.New(Pair[FocusMode]{Current: FocusAFContinue}),
		FocusStatus: optional.New(FocusNotFocusing),
	}

	merged := base.Merge(update)
	assert.Equal(t, ISO{Value: 400}, merged.ISO.Current, "kept from base")
	assert.Equal(t, FocusAFContinue, merged.FocusMode.Current, "replaced by update")
	assert.Equal(t, FocusNotFocusing, *merged.FocusStatus)
	assert.Equal(t, FocusManual, base.FocusMode.Current, "base is unchanged")

	assert.Equal(t, map[string]string{
		"iso":          "400",
		"focus-mode":   "AF-C",
		"focus-status": "not-focusing",
	}, merged.Summary())
}
