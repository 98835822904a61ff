package ant

import "fmt"

// MessageID identifies the kind of an ANT serial message, matching
// message.py's Id enum and §6 of the spec.
type MessageID uint8

const (
	RFEvent              MessageID = 0x01
	ANTVersion           MessageID = 0x3E
	BroadcastData        MessageID = 0x4E
	AcknowledgedData     MessageID = 0x4F
	ChannelResponse      MessageID = 0x40
	Capabilities         MessageID = 0x54
	UnassignChannel      MessageID = 0x41
	AssignChannel        MessageID = 0x42
	ChannelPeriod        MessageID = 0x43
	ChannelSearchTimeout MessageID = 0x44
	ChannelRFFrequency   MessageID = 0x45
	SetNetworkKey        MessageID = 0x46
	ResetSystem          MessageID = 0x4A
	OpenChannel          MessageID = 0x4B
	CloseChannel         MessageID = 0x4C
	RequestMessage       MessageID = 0x4D
	ChannelID            MessageID = 0x51
	ChannelStatus        MessageID = 0x52
	ChannelTransmitPower MessageID = 0x60
	StartUp              MessageID = 0x6F
	BurstData            MessageID = 0x50
)

var messageIDNames = map[MessageID]string{
	RFEvent:              "RFEvent",
	ANTVersion:           "ANTVersion",
	BroadcastData:        "BroadcastData",
	AcknowledgedData:     "AcknowledgedData",
	ChannelResponse:      "ChannelResponse",
	Capabilities:         "Capabilities",
	UnassignChannel:      "UnassignChannel",
	AssignChannel:        "AssignChannel",
	ChannelPeriod:        "ChannelPeriod",
	ChannelSearchTimeout: "ChannelSearchTimeout",
	ChannelRFFrequency:   "ChannelRFFrequency",
	SetNetworkKey:        "SetNetworkKey",
	ResetSystem:          "ResetSystem",
	OpenChannel:          "OpenChannel",
	CloseChannel:         "CloseChannel",
	RequestMessage:       "RequestMessage",
	ChannelID:            "ChannelID",
	ChannelStatus:        "ChannelStatus",
	ChannelTransmitPower: "ChannelTransmitPower",
	StartUp:              "StartUp",
	BurstData:            "BurstData",
}

func (id MessageID) String() string {
	if name, ok := messageIDNames[id]; ok {
		return name
	}
	return fmt.Sprintf("MessageID(0x%02X)", uint8(id))
}

// ResponseCode is the third payload byte of a ChannelResponse message.
type ResponseCode uint8

const (
	ResponseNoError            ResponseCode = 0
	EventRXSearchTimeout       ResponseCode = 1
	EventRXFail                ResponseCode = 2
	EventTX                    ResponseCode = 3
	EventTransferRXFailed      ResponseCode = 4
	EventTransferTXCompleted   ResponseCode = 5
	EventTransferTXFailed      ResponseCode = 6
	EventChannelClosed         ResponseCode = 7
	EventRXFailGoToSearch      ResponseCode = 8
	EventChannelCollision      ResponseCode = 9
	EventTransferTXStart       ResponseCode = 10
	EventTransferNextDataBlock ResponseCode = 17
	ChannelInWrongState        ResponseCode = 21
	ChannelNotOpened           ResponseCode = 22
	ChannelIDNotSet            ResponseCode = 24
	CloseAllChannels           ResponseCode = 25
	TransferInProgress         ResponseCode = 31
	TransferSequenceNumberError ResponseCode = 32
	TransferInError            ResponseCode = 33
	MessageSizeExceedsLimit    ResponseCode = 39
	InvalidMessage             ResponseCode = 40
	InvalidNetworkNumber       ResponseCode = 41
	InvalidListID              ResponseCode = 48
	InvalidScanTxChannel       ResponseCode = 49
	InvalidParameterProvided   ResponseCode = 51
	EventSerialQueueOverflow   ResponseCode = 52
	EventQueueOverflow         ResponseCode = 53
	EncryptNegotiationSuccess  ResponseCode = 56
	EncryptNegotiationFail     ResponseCode = 57
	NVMFullError               ResponseCode = 64
	NVMWriteError              ResponseCode = 65
	USBStringWriteFail         ResponseCode = 112
	MesgSerialErrorID          ResponseCode = 174
)

// Manufacturer IDs, as used in page 80. See FitSDK profile.xlsx.
const (
	ManufacturerGarmin      = 1
	ManufacturerDynastream  = 15
	ManufacturerTacx        = 89
	ManufacturerTrainerRoad = 281
	ManufacturerDev         = 255
)

// Recognized USB product IDs for ANT USB radios.
const (
	ProductIDSuunto = 0x1008
	ProductIDGarmin = 0x1009
	ProductIDOlder  = 0x1004
)

// Network key / channel defaults (spec.md §6).
const (
	ANTPlusNetworkKey uint64 = 0x45C372BDFB21A5B9
	PublicNetworkKey  uint64 = 0x0000000000000000

	DefaultChannelFrequency uint8  = 66
	ANTPlusChannelFrequency uint8  = 57
	BushidoChannelFrequency uint8  = 60
	DefaultChannelPeriod    uint16 = 8192
	HRMChannelPeriod        uint16 = 8070
	SCSChannelPeriod        uint16 = 8086
	BushidoChannelPeriod    uint16 = 4096
	BushidoSearchTimeout    uint8  = 255
	DefaultTransmitPower    uint8  = 0x03
)

// TransmissionType is an OR-able bitfield describing a channel's
// transmission characteristics.
type TransmissionType uint8

const (
	TTPairing      TransmissionType = 0
	TTIndependent  TransmissionType = 1
	TTShared1      TransmissionType = 2
	TTShared2      TransmissionType = 3
	TTGlobalPages  TransmissionType = 4
)
