package camera

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mzyy94/ptpcam/internal/ptp"
)

// Setting is a domain value that maps onto exactly one device property.
type Setting interface {
	PropertyCode() ptp.PropertyCode
	DataType() ptp.DataType
	Wire() ptp.Value
}

// Converter turns wire values of one property into domain values of type T.
// FromWire reports ok=false for values it does not recognize.
type Converter[T any] struct {
	Code     ptp.PropertyCode
	DataType ptp.DataType
	FromWire func(ptp.Value) (T, bool)
}

// Pair is a current value together with the values the camera accepts.
type Pair[T any] struct {
	Current   T
	Available []T
}

// Describe renders the current and accepted values for display.
func (p Pair[T]) Describe() (current string, available []string) {
	current = fmt.Sprint(p.Current)
	for _, v := range p.Available {
		available = append(available, fmt.Sprint(v))
	}
	return current, available
}

// Decode converts a descriptor into a Pair. Unrecognized entries of the
// accepted-value list are skipped; an unrecognized current value fails.
func (c Converter[T]) Decode(p *ptp.DeviceProperty) (Pair[T], bool) {
	if p == nil || p.Code() != c.Code || p.DataType() != c.DataType {
		return Pair[T]{}, false
	}
	cur, ok := c.FromWire(p.Current())
	if !ok {
		return Pair[T]{}, false
	}
	pair := Pair[T]{Current: cur}
	for _, raw := range p.Enum() {
		if v, ok := c.FromWire(raw); ok {
			pair.Available = append(pair.Available, v)
		}
	}
	return pair, true
}

// names maps enumerated domain values to their display names.
type names[T comparable] map[T]string

func (n names[T]) name(v T, fallback string) string {
	if s, ok := n[v]; ok {
		return s
	}
	return fallback
}

func (n names[T]) parse(s string) (T, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for v, name := range n {
		if strings.ToLower(name) == s {
			return v, true
		}
	}
	var zero T
	return zero, false
}

func (n names[T]) list() []string {
	out := make([]string, 0, len(n))
	for _, s := range n {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func u16(v ptp.Value) uint16 { return uint16(v.Uint()) }
func u32(v ptp.Value) uint32 { return uint32(v.Uint()) }

// --------------------------------------------------------------------------
// ISO
// --------------------------------------------------------------------------

const isoAutoWire uint32 = 0x00FFFFFF

// ISO is a sensitivity setting. Auto ignores Value.
type ISO struct {
	Auto  bool
	Value uint32
}

// ISOAuto is automatic sensitivity.
var ISOAuto = ISO{Auto: true}

func (ISO) PropertyCode() ptp.PropertyCode { return ptp.PropISO }
func (ISO) DataType() ptp.DataType         { return ptp.TypeUint32 }

func (v ISO) Wire() ptp.Value {
	if v.Auto {
		return ptp.UintValue(ptp.TypeUint32, uint64(isoAutoWire))
	}
	return ptp.UintValue(ptp.TypeUint32, uint64(v.Value))
}

func (v ISO) String() string {
	if v.Auto {
		return "AUTO"
	}
	return strconv.FormatUint(uint64(v.Value), 10)
}

// ISOConverter decodes ISO values. The high byte carries noise-reduction
// flags this client does not model, so values using it are rejected.
var ISOConverter = Converter[ISO]{
	Code:     ptp.PropISO,
	DataType: ptp.TypeUint32,
	FromWire: func(w ptp.Value) (ISO, bool) {
		raw := u32(w)
		switch {
		case raw == isoAutoWire:
			return ISOAuto, true
		case raw == 0 || raw > isoAutoWire:
			return ISO{}, false
		}
		return ISO{Value: raw}, true
	},
}

// ParseISO parses "auto" or a decimal sensitivity.
func ParseISO(s string) (ISO, error) {
	if strings.EqualFold(strings.TrimSpace(s), "auto") {
		return ISOAuto, nil
	}
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil || n == 0 || n >= uint64(isoAutoWire) {
		return ISO{}, fmt.Errorf("invalid ISO %q", s)
	}
	return ISO{Value: uint32(n)}, nil
}

// --------------------------------------------------------------------------
// Shutter speed
// --------------------------------------------------------------------------

// ShutterSpeed is an exposure time expressed as a fraction. Bulb ignores the
// fraction.
type ShutterSpeed struct {
	Numerator   uint16
	Denominator uint16
	Bulb        bool
}

// ShutterBulb is bulb exposure.
var ShutterBulb = ShutterSpeed{Bulb: true}

func (ShutterSpeed) PropertyCode() ptp.PropertyCode { return ptp.PropShutterSpeed }
func (ShutterSpeed) DataType() ptp.DataType         { return ptp.TypeUint32 }

func (v ShutterSpeed) Wire() ptp.Value {
	if v.Bulb {
		return ptp.UintValue(ptp.TypeUint32, 0)
	}
	return ptp.UintValue(ptp.TypeUint32, uint64(v.Numerator)<<16|uint64(v.Denominator))
}

// Duration returns the exposure time. Bulb returns 0.
func (v ShutterSpeed) Duration() time.Duration {
	if v.Bulb || v.Denominator == 0 {
		return 0
	}
	return time.Duration(v.Numerator) * time.Second / time.Duration(v.Denominator)
}

func (v ShutterSpeed) String() string {
	switch {
	case v.Bulb:
		return "BULB"
	case v.Numerator == 1 && v.Denominator > 1:
		return fmt.Sprintf("1/%d", v.Denominator)
	case v.Denominator == 1:
		return fmt.Sprintf("%d\"", v.Numerator)
	default:
		return strconv.FormatFloat(float64(v.Numerator)/float64(v.Denominator), 'f', -1, 64) + "\""
	}
}

// ShutterSpeedConverter decodes shutter speeds. Zero is bulb.
var ShutterSpeedConverter = Converter[ShutterSpeed]{
	Code:     ptp.PropShutterSpeed,
	DataType: ptp.TypeUint32,
	FromWire: func(w ptp.Value) (ShutterSpeed, bool) {
		raw := u32(w)
		if raw == 0 {
			return ShutterBulb, true
		}
		v := ShutterSpeed{Numerator: uint16(raw >> 16), Denominator: uint16(raw)}
		if v.Numerator == 0 || v.Denominator == 0 {
			return ShutterSpeed{}, false
		}
		return v, true
	},
}

// ParseShutterSpeed parses "bulb", "1/250", "2\"", "2" or "0.5\"" style
// values.
func ParseShutterSpeed(s string) (ShutterSpeed, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "bulb") {
		return ShutterBulb, nil
	}
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err1 := strconv.ParseUint(num, 10, 16)
		d, err2 := strconv.ParseUint(den, 10, 16)
		if err1 != nil || err2 != nil || n == 0 || d == 0 {
			return ShutterSpeed{}, fmt.Errorf("invalid shutter speed %q", s)
		}
		return ShutterSpeed{Numerator: uint16(n), Denominator: uint16(d)}, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSuffix(s, "\""), 64)
	if err != nil || f <= 0 || f > 6553 {
		return ShutterSpeed{}, fmt.Errorf("invalid shutter speed %q", s)
	}
	if f == float64(uint16(f)) {
		return ShutterSpeed{Numerator: uint16(f), Denominator: 1}, nil
	}
	return ShutterSpeed{Numerator: uint16(f*10 + 0.5), Denominator: 10}, nil
}

// --------------------------------------------------------------------------
// Aperture
// --------------------------------------------------------------------------

// Aperture is an f-number multiplied by 100, as carried on the wire.
type Aperture uint16

func (Aperture) PropertyCode() ptp.PropertyCode { return ptp.PropFNumber }
func (Aperture) DataType() ptp.DataType         { return ptp.TypeUint16 }
func (v Aperture) Wire() ptp.Value              { return ptp.UintValue(ptp.TypeUint16, uint64(v)) }

// FNumber returns the f-number.
func (v Aperture) FNumber() float64 { return float64(v) / 100 }

func (v Aperture) String() string {
	return "f/" + strconv.FormatFloat(v.FNumber(), 'f', -1, 64)
}

// ApertureConverter decodes f-numbers. 0xFFFE and 0xFFFF mean no lens or
// no reading.
var ApertureConverter = Converter[Aperture]{
	Code:     ptp.PropFNumber,
	DataType: ptp.TypeUint16,
	FromWire: func(w ptp.Value) (Aperture, bool) {
		raw := u16(w)
		if raw == 0 || raw >= 0xFFFE {
			return 0, false
		}
		return Aperture(raw), true
	},
}

// ParseAperture parses "2.8" or "f/2.8".
func ParseAperture(s string) (Aperture, error) {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "f/")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 || f >= 655 {
		return 0, fmt.Errorf("invalid aperture %q", s)
	}
	return Aperture(f*100 + 0.5), nil
}

// --------------------------------------------------------------------------
// Focus mode
// --------------------------------------------------------------------------

// FocusMode selects manual or automatic focusing.
type FocusMode uint16

const (
	FocusManual     FocusMode = 0x0001
	FocusAFSingle   FocusMode = 0x0002
	FocusAFContinue FocusMode = 0x8004
	FocusAFAuto     FocusMode = 0x8005
	FocusDMF        FocusMode = 0x8006
)

var focusModeNames = names[FocusMode]{
	FocusManual:     "MF",
	FocusAFSingle:   "AF-S",
	FocusAFContinue: "AF-C",
	FocusAFAuto:     "AF-A",
	FocusDMF:        "DMF",
}

func (FocusMode) PropertyCode() ptp.PropertyCode { return ptp.PropFocusMode }
func (FocusMode) DataType() ptp.DataType         { return ptp.TypeUint16 }
func (v FocusMode) Wire() ptp.Value              { return ptp.UintValue(ptp.TypeUint16, uint64(v)) }
func (v FocusMode) String() string               { return focusModeNames.name(v, fmt.Sprintf("0x%04X", uint16(v))) }

// IsAutofocus reports whether the camera focuses by itself in this mode
// before a capture.
func (v FocusMode) IsAutofocus() bool {
	switch v {
	case FocusAFSingle, FocusAFContinue, FocusAFAuto, FocusDMF:
		return true
	}
	return false
}

// FocusModeConverter decodes focus modes.
var FocusModeConverter = Converter[FocusMode]{
	Code:     ptp.PropFocusMode,
	DataType: ptp.TypeUint16,
	FromWire: func(w ptp.Value) (FocusMode, bool) {
		v := FocusMode(u16(w))
		_, ok := focusModeNames[v]
		return v, ok
	},
}

// ParseFocusMode parses a focus mode name such as "AF-S".
func ParseFocusMode(s string) (FocusMode, error) {
	if v, ok := focusModeNames.parse(s); ok {
		return v, nil
	}
	return 0, fmt.Errorf("invalid focus mode %q (one of %s)", s, strings.Join(focusModeNames.list(), ", "))
}

// --------------------------------------------------------------------------
// Exposure mode
// --------------------------------------------------------------------------

// ExposureMode is the exposure program.
type ExposureMode uint32

const (
	ExposureManual          ExposureMode = 0x00000001
	ExposureProgram         ExposureMode = 0x00010002
	ExposureAperturePrio    ExposureMode = 0x00020003
	ExposureShutterPrio     ExposureMode = 0x00030004
	ExposureIntelligentAuto ExposureMode = 0x00048000
	ExposureSuperiorAuto    ExposureMode = 0x00048001
)

var exposureModeNames = names[ExposureMode]{
	ExposureManual:          "M",
	ExposureProgram:         "P",
	ExposureAperturePrio:    "A",
	ExposureShutterPrio:     "S",
	ExposureIntelligentAuto: "iAuto",
	ExposureSuperiorAuto:    "iAuto+",
}

func (ExposureMode) PropertyCode() ptp.PropertyCode { return ptp.PropExposureProgramMode }
func (ExposureMode) DataType() ptp.DataType         { return ptp.TypeUint32 }
func (v ExposureMode) Wire() ptp.Value              { return ptp.UintValue(ptp.TypeUint32, uint64(v)) }
func (v ExposureMode) String() string               { return exposureModeNames.name(v, fmt.Sprintf("0x%08X", uint32(v))) }

// ExposureModeConverter decodes exposure programs.
var ExposureModeConverter = Converter[ExposureMode]{
	Code:     ptp.PropExposureProgramMode,
	DataType: ptp.TypeUint32,
	FromWire: func(w ptp.Value) (ExposureMode, bool) {
		v := ExposureMode(u32(w))
		_, ok := exposureModeNames[v]
		return v, ok
	},
}

// ParseExposureMode parses an exposure program name such as "A".
func ParseExposureMode(s string) (ExposureMode, error) {
	if v, ok := exposureModeNames.parse(s); ok {
		return v, nil
	}
	return 0, fmt.Errorf("invalid exposure mode %q (one of %s)", s, strings.Join(exposureModeNames.list(), ", "))
}

// --------------------------------------------------------------------------
// Flash mode
// --------------------------------------------------------------------------

// FlashMode is the flash firing mode.
type FlashMode uint16

const (
	FlashAuto     FlashMode = 0x0001
	FlashOff      FlashMode = 0x0002
	FlashFill     FlashMode = 0x0003
	FlashWireless FlashMode = 0x8001
	FlashRearSync FlashMode = 0x8003
	FlashSlowSync FlashMode = 0x8032
)

var flashModeNames = names[FlashMode]{
	FlashAuto:     "auto",
	FlashOff:      "off",
	FlashFill:     "fill",
	FlashWireless: "wireless",
	FlashRearSync: "rear-sync",
	FlashSlowSync: "slow-sync",
}

func (FlashMode) PropertyCode() ptp.PropertyCode { return ptp.PropFlashMode }
func (FlashMode) DataType() ptp.DataType         { return ptp.TypeUint16 }
func (v FlashMode) Wire() ptp.Value              { return ptp.UintValue(ptp.TypeUint16, uint64(v)) }
func (v FlashMode) String() string               { return flashModeNames.name(v, fmt.Sprintf("0x%04X", uint16(v))) }

// FlashModeConverter decodes flash modes.
var FlashModeConverter = Converter[FlashMode]{
	Code:     ptp.PropFlashMode,
	DataType: ptp.TypeUint16,
	FromWire: func(w ptp.Value) (FlashMode, bool) {
		v := FlashMode(u16(w))
		_, ok := flashModeNames[v]
		return v, ok
	},
}

// ParseFlashMode parses a flash mode name such as "fill".
func ParseFlashMode(s string) (FlashMode, error) {
	if v, ok := flashModeNames.parse(s); ok {
		return v, nil
	}
	return 0, fmt.Errorf("invalid flash mode %q (one of %s)", s, strings.Join(flashModeNames.list(), ", "))
}

// --------------------------------------------------------------------------
// Still capture mode: continuous shooting speed and self-timer
// --------------------------------------------------------------------------

// StillCaptureMode is the raw drive mode. Continuous speeds and self-timer
// durations are both views onto it.
type StillCaptureMode uint32

const (
	DriveSingle        StillCaptureMode = 0x00000001
	DriveContinuousHi  StillCaptureMode = 0x00010002
	DriveContinuousHiP StillCaptureMode = 0x00018010
	DriveContinuousLo  StillCaptureMode = 0x00018011
	DriveContinuousMid StillCaptureMode = 0x00018012
	DriveTimer5s       StillCaptureMode = 0x00038003
	DriveTimer10s      StillCaptureMode = 0x00038004
	DriveTimer2s       StillCaptureMode = 0x00038005
	DriveTimer10s3     StillCaptureMode = 0x00088008
	DriveTimer10s5     StillCaptureMode = 0x00088009
	DriveTimer5s3      StillCaptureMode = 0x0008800C
	DriveTimer5s5      StillCaptureMode = 0x0008800D
	DriveTimer2s3      StillCaptureMode = 0x0008800E
	DriveTimer2s5      StillCaptureMode = 0x0008800F
)

type driveInfo struct {
	name   string
	speed  ContinuousSpeed
	timer  time.Duration
	images int
}

var driveModes = map[StillCaptureMode]driveInfo{
	DriveSingle:        {name: "single", speed: ContinuousSingle},
	DriveContinuousHi:  {name: "continuous-hi", speed: ContinuousHi},
	DriveContinuousHiP: {name: "continuous-hi+", speed: ContinuousHiPlus},
	DriveContinuousLo:  {name: "continuous-lo", speed: ContinuousLo},
	DriveContinuousMid: {name: "continuous-mid", speed: ContinuousMid},
	DriveTimer5s:       {name: "timer-5s", timer: 5 * time.Second, images: 1},
	DriveTimer10s:      {name: "timer-10s", timer: 10 * time.Second, images: 1},
	DriveTimer2s:       {name: "timer-2s", timer: 2 * time.Second, images: 1},
	DriveTimer10s3:     {name: "timer-10s-3", timer: 10 * time.Second, images: 3},
	DriveTimer10s5:     {name: "timer-10s-5", timer: 10 * time.Second, images: 5},
	DriveTimer5s3:      {name: "timer-5s-3", timer: 5 * time.Second, images: 3},
	DriveTimer5s5:      {name: "timer-5s-5", timer: 5 * time.Second, images: 5},
	DriveTimer2s3:      {name: "timer-2s-3", timer: 2 * time.Second, images: 3},
	DriveTimer2s5:      {name: "timer-2s-5", timer: 2 * time.Second, images: 5},
}

func (StillCaptureMode) PropertyCode() ptp.PropertyCode { return ptp.PropStillCaptureMode }
func (StillCaptureMode) DataType() ptp.DataType         { return ptp.TypeUint32 }
func (v StillCaptureMode) Wire() ptp.Value              { return ptp.UintValue(ptp.TypeUint32, uint64(v)) }

func (v StillCaptureMode) String() string {
	if info, ok := driveModes[v]; ok {
		return info.name
	}
	return fmt.Sprintf("0x%08X", uint32(v))
}

// StillCaptureModeConverter decodes drive modes.
var StillCaptureModeConverter = Converter[StillCaptureMode]{
	Code:     ptp.PropStillCaptureMode,
	DataType: ptp.TypeUint32,
	FromWire: func(w ptp.Value) (StillCaptureMode, bool) {
		v := StillCaptureMode(u32(w))
		_, ok := driveModes[v]
		return v, ok
	},
}

// ParseStillCaptureMode parses a drive mode name such as "timer-10s-3".
func ParseStillCaptureMode(s string) (StillCaptureMode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for v, info := range driveModes {
		if info.name == s {
			return v, nil
		}
	}
	return 0, fmt.Errorf("invalid drive mode %q", s)
}

// ContinuousSpeed is the burst rate of the drive mode.
type ContinuousSpeed string

const (
	ContinuousSingle ContinuousSpeed = "single"
	ContinuousLo     ContinuousSpeed = "lo"
	ContinuousMid    ContinuousSpeed = "mid"
	ContinuousHi     ContinuousSpeed = "hi"
	ContinuousHiPlus ContinuousSpeed = "hi+"
)

func (ContinuousSpeed) PropertyCode() ptp.PropertyCode { return ptp.PropStillCaptureMode }
func (ContinuousSpeed) DataType() ptp.DataType         { return ptp.TypeUint32 }

func (v ContinuousSpeed) Wire() ptp.Value {
	for mode, info := range driveModes {
		if info.speed == v {
			return mode.Wire()
		}
	}
	return DriveSingle.Wire()
}

// ContinuousSpeedConverter decodes the burst rate. Self-timer modes are not
// continuous speeds and fail.
var ContinuousSpeedConverter = Converter[ContinuousSpeed]{
	Code:     ptp.PropStillCaptureMode,
	DataType: ptp.TypeUint32,
	FromWire: func(w ptp.Value) (ContinuousSpeed, bool) {
		info, ok := driveModes[StillCaptureMode(u32(w))]
		if !ok || info.speed == "" {
			return "", false
		}
		return info.speed, true
	},
}

// ParseContinuousSpeed parses "single", "lo", "mid", "hi" or "hi+".
func ParseContinuousSpeed(s string) (ContinuousSpeed, error) {
	v := ContinuousSpeed(strings.ToLower(strings.TrimSpace(s)))
	switch v {
	case ContinuousSingle, ContinuousLo, ContinuousMid, ContinuousHi, ContinuousHiPlus:
		return v, nil
	}
	return "", fmt.Errorf("invalid continuous speed %q", s)
}

// SelfTimer is the self-timer delay. Zero means single-shot without timer.
type SelfTimer time.Duration

const (
	SelfTimerOff SelfTimer = 0
	SelfTimer2s  SelfTimer = SelfTimer(2 * time.Second)
	SelfTimer5s  SelfTimer = SelfTimer(5 * time.Second)
	SelfTimer10s SelfTimer = SelfTimer(10 * time.Second)
)

func (SelfTimer) PropertyCode() ptp.PropertyCode { return ptp.PropStillCaptureMode }
func (SelfTimer) DataType() ptp.DataType         { return ptp.TypeUint32 }

// Wire returns the single-image drive mode for the delay. Use
// StillCaptureModesFor to find every variant with the same delay.
func (v SelfTimer) Wire() ptp.Value {
	switch v {
	case SelfTimer2s:
		return DriveTimer2s.Wire()
	case SelfTimer5s:
		return DriveTimer5s.Wire()
	case SelfTimer10s:
		return DriveTimer10s.Wire()
	default:
		return DriveSingle.Wire()
	}
}

func (v SelfTimer) String() string {
	if v == SelfTimerOff {
		return "off"
	}
	return time.Duration(v).String()
}

// StillCaptureModesFor returns the drive modes among candidates whose delay
// equals v, in ascending wire order.
func StillCaptureModesFor(v SelfTimer, candidates []StillCaptureMode) []StillCaptureMode {
	var out []StillCaptureMode
	for _, c := range candidates {
		if info, ok := driveModes[c]; ok && info.timer == time.Duration(v) && info.speed == "" {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SelfTimerConverter decodes the self-timer delay. Drive modes without a
// recognized delay fall back to single-shot.
var SelfTimerConverter = Converter[SelfTimer]{
	Code:     ptp.PropStillCaptureMode,
	DataType: ptp.TypeUint32,
	FromWire: func(w ptp.Value) (SelfTimer, bool) {
		info, ok := driveModes[StillCaptureMode(u32(w))]
		if !ok {
			return SelfTimerOff, true
		}
		return SelfTimer(info.timer), true
	},
}

// ParseSelfTimer parses "off", "0", "2s", "5", "10s" and similar.
func ParseSelfTimer(s string) (SelfTimer, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "off" || s == "0" {
		return SelfTimerOff, nil
	}
	if !strings.HasSuffix(s, "s") {
		s += "s"
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid self-timer %q", s)
	}
	switch v := SelfTimer(d); v {
	case SelfTimer2s, SelfTimer5s, SelfTimer10s:
		return v, nil
	}
	return 0, fmt.Errorf("unsupported self-timer %s", d)
}

// --------------------------------------------------------------------------
// White balance
// --------------------------------------------------------------------------

// WhiteBalanceMode is the white balance preset.
type WhiteBalanceMode uint16

const (
	WBAuto            WhiteBalanceMode = 0x0002
	WBDaylight        WhiteBalanceMode = 0x0004
	WBIncandescent    WhiteBalanceMode = 0x0006
	WBFlash           WhiteBalanceMode = 0x0007
	WBFluorescentWarm WhiteBalanceMode = 0x8001
	WBFluorescentCool WhiteBalanceMode = 0x8002
	WBFluorescentDay  WhiteBalanceMode = 0x8003
	WBFluorescentDayL WhiteBalanceMode = 0x8004
	WBCloudy          WhiteBalanceMode = 0x8010
	WBShade           WhiteBalanceMode = 0x8011
	WBColorTemp       WhiteBalanceMode = 0x8012
	WBCustom1         WhiteBalanceMode = 0x8020
	WBUnderwaterAuto  WhiteBalanceMode = 0x8030
)

var whiteBalanceNames = names[WhiteBalanceMode]{
	WBAuto:            "auto",
	WBDaylight:        "daylight",
	WBIncandescent:    "incandescent",
	WBFlash:           "flash",
	WBFluorescentWarm: "fluorescent-warm",
	WBFluorescentCool: "fluorescent-cool",
	WBFluorescentDay:  "fluorescent-day-white",
	WBFluorescentDayL: "fluorescent-daylight",
	WBCloudy:          "cloudy",
	WBShade:           "shade",
	WBColorTemp:       "color-temperature",
	WBCustom1:         "custom-1",
	WBUnderwaterAuto:  "underwater-auto",
}

func (WhiteBalanceMode) PropertyCode() ptp.PropertyCode { return ptp.PropWhiteBalance }
func (WhiteBalanceMode) DataType() ptp.DataType         { return ptp.TypeUint16 }
func (v WhiteBalanceMode) Wire() ptp.Value              { return ptp.UintValue(ptp.TypeUint16, uint64(v)) }
func (v WhiteBalanceMode) String() string {
	return whiteBalanceNames.name(v, fmt.Sprintf("0x%04X", uint16(v)))
}

// WhiteBalanceModeConverter decodes white balance presets.
var WhiteBalanceModeConverter = Converter[WhiteBalanceMode]{
	Code:     ptp.PropWhiteBalance,
	DataType: ptp.TypeUint16,
	FromWire: func(w ptp.Value) (WhiteBalanceMode, bool) {
		v := WhiteBalanceMode(u16(w))
		_, ok := whiteBalanceNames[v]
		return v, ok
	},
}

// ColorTemperature is a white balance temperature in kelvin.
type ColorTemperature uint16

func (ColorTemperature) PropertyCode() ptp.PropertyCode { return ptp.PropColorTemperature }
func (ColorTemperature) DataType() ptp.DataType         { return ptp.TypeUint16 }
func (v ColorTemperature) Wire() ptp.Value              { return ptp.UintValue(ptp.TypeUint16, uint64(v)) }
func (v ColorTemperature) String() string               { return fmt.Sprintf("%dK", uint16(v)) }

// ColorTemperatureConverter decodes temperatures. Zero means unset.
var ColorTemperatureConverter = Converter[ColorTemperature]{
	Code:     ptp.PropColorTemperature,
	DataType: ptp.TypeUint16,
	FromWire: func(w ptp.Value) (ColorTemperature, bool) {
		v := ColorTemperature(u16(w))
		return v, v != 0
	},
}

// WhiteBalance combines the preset with the separate temperature property.
// Temperature is nil when the camera did not report one.
type WhiteBalance struct {
	Mode        WhiteBalanceMode
	Temperature *ColorTemperature
}

func (v WhiteBalance) String() string {
	if v.Temperature != nil {
		return v.Mode.String() + " " + v.Temperature.String()
	}
	return v.Mode.String()
}

// ParseWhiteBalance parses a preset name, optionally followed by a kelvin
// value: "daylight", "color-temperature 5600", "5600K".
func ParseWhiteBalance(s string) (WhiteBalance, error) {
	fields := strings.Fields(s)
	if len(fields) == 1 {
		if k, ok := parseKelvin(fields[0]); ok {
			return WhiteBalance{Mode: WBColorTemp, Temperature: &k}, nil
		}
	}
	if len(fields) == 0 || len(fields) > 2 {
		return WhiteBalance{}, fmt.Errorf("invalid white balance %q", s)
	}
	mode, ok := whiteBalanceNames.parse(fields[0])
	if !ok {
		return WhiteBalance{}, fmt.Errorf("invalid white balance %q (one of %s)", fields[0], strings.Join(whiteBalanceNames.list(), ", "))
	}
	wb := WhiteBalance{Mode: mode}
	if len(fields) == 2 {
		k, ok := parseKelvin(fields[1])
		if !ok {
			return WhiteBalance{}, fmt.Errorf("invalid color temperature %q", fields[1])
		}
		wb.Temperature = &k
	}
	return wb, nil
}

func parseKelvin(s string) (ColorTemperature, bool) {
	n, err := strconv.ParseUint(strings.TrimSuffix(strings.ToUpper(s), "K"), 10, 16)
	if err != nil || n == 0 {
		return 0, false
	}
	return ColorTemperature(n), true
}

// --------------------------------------------------------------------------
// Still size
// --------------------------------------------------------------------------

// ImageSize is the still image size class.
type ImageSize uint8

const (
	ImageLarge  ImageSize = 1
	ImageMedium ImageSize = 2
	ImageSmall  ImageSize = 3
)

var imageSizeNames = names[ImageSize]{
	ImageLarge:  "L",
	ImageMedium: "M",
	ImageSmall:  "S",
}

func (ImageSize) PropertyCode() ptp.PropertyCode { return ptp.PropImageSize }
func (ImageSize) DataType() ptp.DataType         { return ptp.TypeUint8 }
func (v ImageSize) Wire() ptp.Value              { return ptp.UintValue(ptp.TypeUint8, uint64(v)) }
func (v ImageSize) String() string               { return imageSizeNames.name(v, strconv.Itoa(int(v))) }

// ImageSizeConverter decodes image sizes.
var ImageSizeConverter = Converter[ImageSize]{
	Code:     ptp.PropImageSize,
	DataType: ptp.TypeUint8,
	FromWire: func(w ptp.Value) (ImageSize, bool) {
		v := ImageSize(w.Uint())
		_, ok := imageSizeNames[v]
		return v, ok
	},
}

// AspectRatio is the still image aspect ratio.
type AspectRatio uint8

const (
	Aspect3x2  AspectRatio = 1
	Aspect16x9 AspectRatio = 2
	Aspect4x3  AspectRatio = 3
	Aspect1x1  AspectRatio = 4
)

var aspectRatioNames = names[AspectRatio]{
	Aspect3x2:  "3:2",
	Aspect16x9: "16:9",
	Aspect4x3:  "4:3",
	Aspect1x1:  "1:1",
}

func (AspectRatio) PropertyCode() ptp.PropertyCode { return ptp.PropAspectRatio }
func (AspectRatio) DataType() ptp.DataType         { return ptp.TypeUint8 }
func (v AspectRatio) Wire() ptp.Value              { return ptp.UintValue(ptp.TypeUint8, uint64(v)) }
func (v AspectRatio) String() string               { return aspectRatioNames.name(v, strconv.Itoa(int(v))) }

// AspectRatioConverter decodes aspect ratios.
var AspectRatioConverter = Converter[AspectRatio]{
	Code:     ptp.PropAspectRatio,
	DataType: ptp.TypeUint8,
	FromWire: func(w ptp.Value) (AspectRatio, bool) {
		v := AspectRatio(w.Uint())
		_, ok := aspectRatioNames[v]
		return v, ok
	},
}

// StillSize combines the size class with the separate aspect ratio property.
// Aspect is nil when unknown or not to be changed.
type StillSize struct {
	Size   ImageSize
	Aspect *AspectRatio
}

func (v StillSize) String() string {
	if v.Aspect != nil {
		return v.Size.String() + " " + v.Aspect.String()
	}
	return v.Size.String()
}

// ParseStillSize parses "L", "M 16:9" and similar.
func ParseStillSize(s string) (StillSize, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 || len(fields) > 2 {
		return StillSize{}, fmt.Errorf("invalid still size %q", s)
	}
	size, ok := imageSizeNames.parse(fields[0])
	if !ok {
		return StillSize{}, fmt.Errorf("invalid image size %q (one of %s)", fields[0], strings.Join(imageSizeNames.list(), ", "))
	}
	v := StillSize{Size: size}
	if len(fields) == 2 {
		a, ok := aspectRatioNames.parse(fields[1])
		if !ok {
			return StillSize{}, fmt.Errorf("invalid aspect ratio %q (one of %s)", fields[1], strings.Join(aspectRatioNames.list(), ", "))
		}
		v.Aspect = &a
	}
	return v, nil
}

// --------------------------------------------------------------------------
// Focus status
// --------------------------------------------------------------------------

// FocusStatus reports whether autofocus has locked.
type FocusStatus uint8

const (
	FocusNotFocusing FocusStatus = 1
	FocusFocused     FocusStatus = 2
)

func (FocusStatus) PropertyCode() ptp.PropertyCode { return ptp.PropFocusFound }
func (FocusStatus) DataType() ptp.DataType         { return ptp.TypeUint8 }
func (v FocusStatus) Wire() ptp.Value              { return ptp.UintValue(ptp.TypeUint8, uint64(v)) }

func (v FocusStatus) String() string {
	if v == FocusFocused {
		return "focused"
	}
	return "not-focusing"
}

// FocusStatusConverter decodes the focus indicator: 1 is not focusing, 2
// and 3 are focused, anything else is unrecognized.
var FocusStatusConverter = Converter[FocusStatus]{
	Code:     ptp.PropFocusFound,
	DataType: ptp.TypeUint8,
	FromWire: func(w ptp.Value) (FocusStatus, bool) {
		switch w.Uint() {
		case 1:
			return FocusNotFocusing, true
		case 2, 3:
			return FocusFocused, true
		}
		return 0, false
	},
}
