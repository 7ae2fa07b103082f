package ptp

// DefaultPort is the TCP port PTP-IP responders listen on.
const DefaultPort = 15740

// PacketKind is the PTP-IP packet type carried in the second header dword.
type PacketKind uint32

// PTP-IP packet kinds.
const (
	KindInitCommandRequest PacketKind = 0x01
	KindInitCommandAck     PacketKind = 0x02
	KindInitEventRequest   PacketKind = 0x03
	KindInitEventAck       PacketKind = 0x04
	KindInitFail           PacketKind = 0x05
	KindCommandRequest     PacketKind = 0x06
	KindCommandResponse    PacketKind = 0x07
	KindEvent              PacketKind = 0x08
	KindStartData          PacketKind = 0x09
	KindData               PacketKind = 0x0A
	KindCancel             PacketKind = 0x0B
	KindEndData            PacketKind = 0x0C
	KindProbeRequest       PacketKind = 0x0D
	KindProbeResponse      PacketKind = 0x0E
)

func (k PacketKind) String() string {
	switch k {
	case KindInitCommandRequest:
		return "init-command-request"
	case KindInitCommandAck:
		return "init-command-ack"
	case KindInitEventRequest:
		return "init-event-request"
	case KindInitEventAck:
		return "init-event-ack"
	case KindInitFail:
		return "init-fail"
	case KindCommandRequest:
		return "command-request"
	case KindCommandResponse:
		return "response"
	case KindEvent:
		return "event"
	case KindStartData:
		return "start-data"
	case KindData:
		return "data"
	case KindCancel:
		return "cancel"
	case KindEndData:
		return "end-data"
	case KindProbeRequest:
		return "probe-request"
	case KindProbeResponse:
		return "probe-response"
	default:
		return "unknown"
	}
}

// HeaderSize is the {length}{kind} prefix shared by every packet.
const HeaderSize = 8

// Operation codes. The 0x92xx range is the vendor SDIO extension.
const (
	OpGetDeviceInfo        uint16 = 0x1001
	OpOpenSession          uint16 = 0x1002
	OpCloseSession         uint16 = 0x1003
	OpGetDevicePropDesc    uint16 = 0x1014
	OpSDIOConnect          uint16 = 0x9201
	OpSDIOGetExtDeviceInfo uint16 = 0x9202
	OpSetControlDeviceA    uint16 = 0x9205 // persistent setting writes
	OpSetControlDeviceB    uint16 = 0x9207 // button-style control writes
	OpGetAllDevicePropData uint16 = 0x9209
)

// Response codes.
const (
	RespOK                     uint16 = 0x2001
	RespGeneralError           uint16 = 0x2002
	RespSessionNotOpen         uint16 = 0x2003
	RespOperationNotSupported  uint16 = 0x2005
	RespDevicePropNotSupported uint16 = 0x200A
	RespDeviceBusy             uint16 = 0x2019
	RespSessionAlreadyOpen     uint16 = 0x201E
)

// Event codes.
const (
	EventObjectAdded       uint16 = 0xC201
	EventObjectRemoved     uint16 = 0xC202
	EventDevicePropChanged uint16 = 0xC203
)

// ControlChannel selects which vendor control-write opcode carries a value.
type ControlChannel uint8

const (
	ChannelA ControlChannel = iota
	ChannelB
)

// Opcode returns the operation code used for writes on this channel.
func (c ControlChannel) Opcode() uint16 {
	if c == ChannelB {
		return OpSetControlDeviceB
	}
	return OpSetControlDeviceA
}

func (c ControlChannel) String() string {
	if c == ChannelB {
		return "B"
	}
	return "A"
}

// PropertyCode identifies a device property.
type PropertyCode uint16

// Device property codes used by the camera package.
const (
	PropWhiteBalance        PropertyCode = 0x5005
	PropFNumber             PropertyCode = 0x5007
	PropFocusMode           PropertyCode = 0x500A
	PropFlashMode           PropertyCode = 0x500C
	PropExposureProgramMode PropertyCode = 0x500E
	PropStillCaptureMode    PropertyCode = 0x5013
	PropImageSize           PropertyCode = 0xD203
	PropShutterSpeed        PropertyCode = 0xD20D
	PropColorTemperature    PropertyCode = 0xD20F
	PropAspectRatio         PropertyCode = 0xD211
	PropFocusFound          PropertyCode = 0xD213
	PropISO                 PropertyCode = 0xD21E
	PropHalfPress           PropertyCode = 0xD2C1 // S1 button
	PropFullPress           PropertyCode = 0xD2C2 // S2 button
)

// Button control values written to PropHalfPress / PropFullPress.
const (
	ButtonUp   uint16 = 1
	ButtonDown uint16 = 2
)

// DataType is the one-byte datatype tag of a property block.
type DataType uint8

// Datatype tags. Strings use the low byte of the 0xFFFF PTP string code.
const (
	TypeUndefined DataType = 0x00
	TypeInt8      DataType = 0x01
	TypeUint8     DataType = 0x02
	TypeInt16     DataType = 0x03
	TypeUint16    DataType = 0x04
	TypeInt32     DataType = 0x05
	TypeUint32    DataType = 0x06
	TypeInt64     DataType = 0x07
	TypeUint64    DataType = 0x08
	TypeString    DataType = 0xFF
)

// Width returns the fixed encoded width in bytes, or 0 for variable-length
// and unknown types.
func (t DataType) Width() int {
	switch t {
	case TypeInt8, TypeUint8:
		return 1
	case TypeInt16, TypeUint16:
		return 2
	case TypeInt32, TypeUint32:
		return 4
	case TypeInt64, TypeUint64:
		return 8
	default:
		return 0
	}
}

// Signed reports whether integer values of this type are sign-extended.
func (t DataType) Signed() bool {
	switch t {
	case TypeInt8, TypeInt16, TypeInt32, TypeInt64:
		return true
	}
	return false
}

func (t DataType) String() string {
	switch t {
	case TypeInt8:
		return "int8"
	case TypeUint8:
		return "uint8"
	case TypeInt16:
		return "int16"
	case TypeUint16:
		return "uint16"
	case TypeInt32:
		return "int32"
	case TypeUint32:
		return "uint32"
	case TypeInt64:
		return "int64"
	case TypeUint64:
		return "uint64"
	case TypeString:
		return "string"
	default:
		return "undefined"
	}
}

// Form tags of a property block.
const (
	FormNone  uint8 = 0x00
	FormRange uint8 = 0x01
	FormEnum  uint8 = 0x02
)
