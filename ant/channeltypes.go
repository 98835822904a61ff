package ant

// ChannelType is the dongle-level channel configuration byte (spec.md §3).
type ChannelType uint8

const (
	ChannelBidirectionalReceive   ChannelType = 0x00 // slave
	ChannelBidirectionalTransmit  ChannelType = 0x10 // master
	ChannelUnidirectionalReceive  ChannelType = 0x40 // slave
	ChannelUnidirectionalTransmit ChannelType = 0x50 // master
	ChannelSharedBidiReceive      ChannelType = 0x20 // slave
	ChannelSharedBidiTransmit     ChannelType = 0x30 // master
)

// Status is a channel's lifecycle state (spec.md §3 "Lifecycle").
type Status uint8

const (
	StatusUnassigned Status = iota
	StatusAssigned
	StatusOpen
	StatusClosing
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusUnassigned:
		return "UNASSIGNED"
	case StatusAssigned:
		return "ASSIGNED"
	case StatusOpen:
		return "OPEN"
	case StatusClosing:
		return "CLOSING"
	case StatusClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}
