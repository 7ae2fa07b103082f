package camera

import (
	"fmt"
	"strings"
)

// Op names a camera operation.
type Op string

// None is the payload or result type of operations that carry none.
type None struct{}

// Setting operations.
const (
	OpGetISO                   Op = "getIsoSpeedRate"
	OpSetISO                   Op = "setIsoSpeedRate"
	OpGetAvailableISO          Op = "getAvailableIsoSpeedRate"
	OpGetShutterSpeed          Op = "getShutterSpeed"
	OpSetShutterSpeed          Op = "setShutterSpeed"
	OpGetAvailableShutterSpeed Op = "getAvailableShutterSpeed"
	OpGetFNumber               Op = "getFNumber"
	OpSetFNumber               Op = "setFNumber"
	OpGetAvailableFNumber      Op = "getAvailableFNumber"
	OpGetFocusMode             Op = "getFocusMode"
	OpSetFocusMode             Op = "setFocusMode"
	OpGetAvailableFocusMode    Op = "getAvailableFocusMode"
	OpGetExposureMode          Op = "getExposureMode"
	OpSetExposureMode          Op = "setExposureMode"
	OpGetAvailableExposureMode Op = "getAvailableExposureMode"
	OpGetFlashMode             Op = "getFlashMode"
	OpSetFlashMode             Op = "setFlashMode"
	OpGetAvailableFlashMode    Op = "getAvailableFlashMode"
	OpGetContShootingSpeed     Op = "getContShootingSpeed"
	OpSetContShootingSpeed     Op = "setContShootingSpeed"
	OpGetAvailableContSpeed    Op = "getAvailableContShootingSpeed"
	OpGetDriveMode             Op = "getDriveMode"
	OpSetDriveMode             Op = "setDriveMode"
	OpGetAvailableDriveMode    Op = "getAvailableDriveMode"
	OpGetSelfTimer             Op = "getSelfTimer"
	OpSetSelfTimer             Op = "setSelfTimer"
	OpGetAvailableSelfTimer    Op = "getAvailableSelfTimer"
	OpGetWhiteBalance          Op = "getWhiteBalance"
	OpSetWhiteBalance          Op = "setWhiteBalance"
	OpGetAvailableWhiteBalance Op = "getAvailableWhiteBalance"
	OpGetStillSize             Op = "getStillSize"
	OpSetStillSize             Op = "setStillSize"
	OpGetAvailableStillSize    Op = "getAvailableStillSize"
	OpGetFocusStatus           Op = "getFocusStatus"
	OpGetEvent                 Op = "getEvent"
)

// Shutter and action operations.
const (
	OpTakePicture            Op = "actTakePicture"
	OpHalfPressShutter       Op = "actHalfPressShutter"
	OpCancelHalfPressShutter Op = "cancelHalfPressShutter"
	OpStartContShooting      Op = "startContShooting"
	OpStopContShooting       Op = "stopContShooting"
	OpStartBulbShooting      Op = "startBulbShooting"
	OpStopBulbShooting       Op = "stopBulbShooting"
)

// Operations the protocol has no equivalent for.
const (
	OpGetApplicationInfo Op = "getApplicationInfo"
	OpGetVersions        Op = "getVersions"
	OpGetMethodTypes     Op = "getMethodTypes"
	OpStartRecMode       Op = "startRecMode"
	OpStopRecMode        Op = "stopRecMode"
	OpGetContentCount    Op = "getContentCount"
	OpSetCameraFunction  Op = "setCameraFunction"
	OpGetCameraFunction  Op = "getCameraFunction"
)

// Operations that exist on the protocol but are not implemented yet. They
// succeed with an empty result.
const (
	OpStartZooming          Op = "startZooming"
	OpStopZooming           Op = "stopZooming"
	OpSetTouchAFPosition    Op = "setTouchAFPosition"
	OpCancelTouchAFPosition Op = "cancelTouchAFPosition"
	OpStartLiveView         Op = "startLiveview"
	OpStopLiveView          Op = "stopLiveview"
)

func (o Op) String() string { return string(o) }

// Command is an operation with its payload type S and result type R.
type Command[S, R any] struct {
	Op Op
}

// Typed commands.
var (
	GetISO                   = Command[None, ISO]{OpGetISO}
	SetISO                   = Command[ISO, None]{OpSetISO}
	GetAvailableISO          = Command[None, Pair[ISO]]{OpGetAvailableISO}
	GetShutterSpeed          = Command[None, ShutterSpeed]{OpGetShutterSpeed}
	SetShutterSpeed          = Command[ShutterSpeed, None]{OpSetShutterSpeed}
	GetAvailableShutterSpeed = Command[None, Pair[ShutterSpeed]]{OpGetAvailableShutterSpeed}
	GetFNumber               = Command[None, Aperture]{OpGetFNumber}
	SetFNumber               = Command[Aperture, None]{OpSetFNumber}
	GetAvailableFNumber      = Command[None, Pair[Aperture]]{OpGetAvailableFNumber}
	GetFocusMode             = Command[None, FocusMode]{OpGetFocusMode}
	SetFocusMode             = Command[FocusMode, None]{OpSetFocusMode}
	GetAvailableFocusMode    = Command[None, Pair[FocusMode]]{OpGetAvailableFocusMode}
	GetExposureMode          = Command[None, ExposureMode]{OpGetExposureMode}
	SetExposureMode          = Command[ExposureMode, None]{OpSetExposureMode}
	GetAvailableExposureMode = Command[None, Pair[ExposureMode]]{OpGetAvailableExposureMode}
	GetFlashMode             = Command[None, FlashMode]{OpGetFlashMode}
	SetFlashMode             = Command[FlashMode, None]{OpSetFlashMode}
	GetAvailableFlashMode    = Command[None, Pair[FlashMode]]{OpGetAvailableFlashMode}
	GetContShootingSpeed     = Command[None, ContinuousSpeed]{OpGetContShootingSpeed}
	SetContShootingSpeed     = Command[ContinuousSpeed, None]{OpSetContShootingSpeed}
	GetAvailableContSpeed    = Command[None, Pair[ContinuousSpeed]]{OpGetAvailableContSpeed}
	GetDriveMode             = Command[None, StillCaptureMode]{OpGetDriveMode}
	SetDriveMode             = Command[StillCaptureMode, None]{OpSetDriveMode}
	GetAvailableDriveMode    = Command[None, Pair[StillCaptureMode]]{OpGetAvailableDriveMode}
	GetSelfTimer             = Command[None, SelfTimer]{OpGetSelfTimer}
	SetSelfTimer             = Command[SelfTimer, None]{OpSetSelfTimer}
	GetAvailableSelfTimer    = Command[None, Pair[SelfTimer]]{OpGetAvailableSelfTimer}
	GetWhiteBalance          = Command[None, WhiteBalance]{OpGetWhiteBalance}
	SetWhiteBalance          = Command[WhiteBalance, None]{OpSetWhiteBalance}
	GetAvailableWhiteBalance = Command[None, Pair[WhiteBalance]]{OpGetAvailableWhiteBalance}
	GetStillSize             = Command[None, StillSize]{OpGetStillSize}
	SetStillSize             = Command[StillSize, None]{OpSetStillSize}
	GetAvailableStillSize    = Command[None, Pair[StillSize]]{OpGetAvailableStillSize}
	GetFocusStatus           = Command[None, FocusStatus]{OpGetFocusStatus}
	GetEvent                 = Command[None, Event]{OpGetEvent}

	TakePicture            = Command[None, CaptureResult]{OpTakePicture}
	HalfPressShutter       = Command[None, None]{OpHalfPressShutter}
	CancelHalfPressShutter = Command[None, None]{OpCancelHalfPressShutter}
	StartContShooting      = Command[None, None]{OpStartContShooting}
	StopContShooting       = Command[None, None]{OpStopContShooting}
	StartBulbShooting      = Command[None, None]{OpStartBulbShooting}
	StopBulbShooting       = Command[None, None]{OpStopBulbShooting}
)

// Request is an untyped operation request. Perform checks Payload against the
// payload type the operation declares.
type Request struct {
	Op      Op
	Payload any
}

// SettingInfo describes a user-facing setting by name.
type SettingInfo struct {
	Name      string
	Get       Op
	Set       Op
	Available Op
	Parse     func(string) (any, error)
}

func parser[T any](f func(string) (T, error)) func(string) (any, error) {
	return func(s string) (any, error) {
		v, err := f(s)
		if err != nil {
			return nil, err
		}
		return v, nil
	}
}

// Settings lists the settings addressable by name.
var Settings = []SettingInfo{
	{"iso", OpGetISO, OpSetISO, OpGetAvailableISO, parser(ParseISO)},
	{"shutter-speed", OpGetShutterSpeed, OpSetShutterSpeed, OpGetAvailableShutterSpeed, parser(ParseShutterSpeed)},
	{"aperture", OpGetFNumber, OpSetFNumber, OpGetAvailableFNumber, parser(ParseAperture)},
	{"focus-mode", OpGetFocusMode, OpSetFocusMode, OpGetAvailableFocusMode, parser(ParseFocusMode)},
	{"exposure-mode", OpGetExposureMode, OpSetExposureMode, OpGetAvailableExposureMode, parser(ParseExposureMode)},
	{"flash-mode", OpGetFlashMode, OpSetFlashMode, OpGetAvailableFlashMode, parser(ParseFlashMode)},
	{"continuous-speed", OpGetContShootingSpeed, OpSetContShootingSpeed, OpGetAvailableContSpeed, parser(ParseContinuousSpeed)},
	{"drive-mode", OpGetDriveMode, OpSetDriveMode, OpGetAvailableDriveMode, parser(ParseStillCaptureMode)},
	{"self-timer", OpGetSelfTimer, OpSetSelfTimer, OpGetAvailableSelfTimer, parser(ParseSelfTimer)},
	{"white-balance", OpGetWhiteBalance, OpSetWhiteBalance, OpGetAvailableWhiteBalance, parser(ParseWhiteBalance)},
	{"still-size", OpGetStillSize, OpSetStillSize, OpGetAvailableStillSize, parser(ParseStillSize)},
	{"focus-status", OpGetFocusStatus, "", "", nil},
}

// LookupSetting finds a setting by name.
func LookupSetting(name string) (SettingInfo, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	names := make([]string, len(Settings))
	for i, s := range Settings {
		if s.Name == name {
			return s, nil
		}
		names[i] = s.Name
	}
	return SettingInfo{}, fmt.Errorf("unknown setting %q (one of %s)", name, strings.Join(names, ", "))
}
