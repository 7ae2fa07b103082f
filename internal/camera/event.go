package camera

import (
	"fmt"
	"log/slog"

	"github.com/OpenPrinting/go-mfp/util/optional"

	"github.com/mzyy94/ptpcam/internal/ptp"
)

// Event is a snapshot of camera settings assembled from property
// descriptors. A nil field means the camera did not report that setting in
// this snapshot. Events are values; treat the pointed-to pairs as read-only.
type Event struct {
	ISO              optional.Val[Pair[ISO]]
	ShutterSpeed     optional.Val[Pair[ShutterSpeed]]
	Aperture         optional.Val[Pair[Aperture]]
	FocusMode        optional.Val[Pair[FocusMode]]
	ExposureMode     optional.Val[Pair[ExposureMode]]
	FlashMode        optional.Val[Pair[FlashMode]]
	StillCaptureMode optional.Val[Pair[StillCaptureMode]]
	ContinuousSpeed  optional.Val[Pair[ContinuousSpeed]]
	SelfTimer        optional.Val[Pair[SelfTimer]]
	WhiteBalance     optional.Val[Pair[WhiteBalance]]
	StillSize        optional.Val[Pair[StillSize]]
	FocusStatus      optional.Val[FocusStatus]
}

// NewEvent assembles an Event from decoded descriptors. Descriptors whose
// values are not recognized leave their field nil; they never abort
// assembly.
func NewEvent(props []*ptp.DeviceProperty) Event {
	byCode := make(map[ptp.PropertyCode]*ptp.DeviceProperty, len(props))
	for _, p := range props {
		if p != nil {
			byCode[p.Code()] = p
		}
	}

	ev := Event{
		ISO:              decodePair(ISOConverter, byCode),
		ShutterSpeed:     decodePair(ShutterSpeedConverter, byCode),
		Aperture:         decodePair(ApertureConverter, byCode),
		FocusMode:        decodePair(FocusModeConverter, byCode),
		ExposureMode:     decodePair(ExposureModeConverter, byCode),
		FlashMode:        decodePair(FlashModeConverter, byCode),
		StillCaptureMode: decodePair(StillCaptureModeConverter, byCode),
		ContinuousSpeed:  decodePair(ContinuousSpeedConverter, byCode),
		SelfTimer:        decodePair(SelfTimerConverter, byCode),
		WhiteBalance:     decodeWhiteBalance(byCode),
		StillSize:        decodeStillSize(byCode),
	}
	if ev.SelfTimer != nil {
		st := *ev.SelfTimer
		st.Available = uniq(st.Available)
		ev.SelfTimer = optional.New(st)
	}
	if p, ok := byCode[ptp.PropFocusFound]; ok {
		if v, ok := FocusStatusConverter.FromWire(p.Current()); ok {
			ev.FocusStatus = optional.New(v)
		} else {
			slog.Debug("unrecognized focus status", "value", p.Current())
		}
	}
	return ev
}

func decodePair[T any](c Converter[T], byCode map[ptp.PropertyCode]*ptp.DeviceProperty) optional.Val[Pair[T]] {
	p, ok := byCode[c.Code]
	if !ok {
		return nil
	}
	pair, ok := c.Decode(p)
	if !ok {
		slog.Debug("unrecognized property value", "code", fmt.Sprintf("0x%04X", uint16(c.Code)), "value", p.Current())
		return nil
	}
	return optional.New(pair)
}

// decodeWhiteBalance merges the mode and the optional color temperature.
// A missing or unrecognized temperature leaves Temperature nil.
func decodeWhiteBalance(byCode map[ptp.PropertyCode]*ptp.DeviceProperty) optional.Val[Pair[WhiteBalance]] {
	modes := decodePair(WhiteBalanceModeConverter, byCode)
	if modes == nil {
		return nil
	}
	pair := Pair[WhiteBalance]{Current: WhiteBalance{Mode: modes.Current}}
	for _, m := range modes.Available {
		pair.Available = append(pair.Available, WhiteBalance{Mode: m})
	}
	if p, ok := byCode[ptp.PropColorTemperature]; ok {
		if k, ok := ColorTemperatureConverter.FromWire(p.Current()); ok {
			pair.Current.Temperature = &k
		}
	}
	return optional.New(pair)
}

// decodeStillSize merges the size class and the optional aspect ratio.
func decodeStillSize(byCode map[ptp.PropertyCode]*ptp.DeviceProperty) optional.Val[Pair[StillSize]] {
	sizes := decodePair(ImageSizeConverter, byCode)
	if sizes == nil {
		return nil
	}
	pair := Pair[StillSize]{Current: StillSize{Size: sizes.Current}}
	for _, s := range sizes.Available {
		pair.Available = append(pair.Available, StillSize{Size: s})
	}
	if aspects := decodePair(AspectRatioConverter, byCode); aspects != nil {
		a := aspects.Current
		pair.Current.Aspect = &a
	}
	return optional.New(pair)
}

func uniq[T comparable](in []T) []T {
	seen := make(map[T]bool, len(in))
	var out []T
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func pick[T any](base, update optional.Val[T]) optional.Val[T] {
	if update != nil {
		return update
	}
	return base
}

// Merge returns a new Event with the fields reported in update replacing
// those of e. Fields update does not report keep e's value.
func (e Event) Merge(update Event) Event {
	return Event{
		ISO:              pick(e.ISO, update.ISO),
		ShutterSpeed:     pick(e.ShutterSpeed, update.ShutterSpeed),
		Aperture:         pick(e.Aperture, update.Aperture),
		FocusMode:        pick(e.FocusMode, update.FocusMode),
		ExposureMode:     pick(e.ExposureMode, update.ExposureMode),
		FlashMode:        pick(e.FlashMode, update.FlashMode),
		StillCaptureMode: pick(e.StillCaptureMode, update.StillCaptureMode),
		ContinuousSpeed:  pick(e.ContinuousSpeed, update.ContinuousSpeed),
		SelfTimer:        pick(e.SelfTimer, update.SelfTimer),
		WhiteBalance:     pick(e.WhiteBalance, update.WhiteBalance),
		StillSize:        pick(e.StillSize, update.StillSize),
		FocusStatus:      pick(e.FocusStatus, update.FocusStatus),
	}
}

func addCurrent[T fmt.Stringer](m map[string]string, key string, v optional.Val[Pair[T]]) {
	if v != nil {
		m[key] = v.Current.String()
	}
}

// Summary returns the current value of every reported setting, keyed by
// setting name.
func (e Event) Summary() map[string]string {
	m := make(map[string]string)
	addCurrent(m, "iso", e.ISO)
	addCurrent(m, "shutter-speed", e.ShutterSpeed)
	addCurrent(m, "aperture", e.Aperture)
	addCurrent(m, "focus-mode", e.FocusMode)
	addCurrent(m, "exposure-mode", e.ExposureMode)
	addCurrent(m, "flash-mode", e.FlashMode)
	addCurrent(m, "drive-mode", e.StillCaptureMode)
	addCurrent(m, "self-timer", e.SelfTimer)
	addCurrent(m, "white-balance", e.WhiteBalance)
	addCurrent(m, "still-size", e.StillSize)
	if e.ContinuousSpeed != nil {
		m["continuous-speed"] = string(e.ContinuousSpeed.Current)
	}
	if e.FocusStatus != nil {
		m["focus-status"] = (*e.FocusStatus).String()
	}
	return m
}
