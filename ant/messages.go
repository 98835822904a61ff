package ant

// Builders for outbound control messages, mirroring the teacher's
// per-message methods (AssignChannel, SetChannelId, ...) but returning a
// Frame for the session layer to serialize and write, rather than writing
// directly — this keeps message construction unit-testable without a
// transport.

func newAssignChannelFrame(channel uint8, channelType ChannelType, networkSlot uint8) Frame {
	return Frame{ID: AssignChannel, Payload: []byte{channel, uint8(channelType), networkSlot}}
}

func newUnassignChannelFrame(channel uint8) Frame {
	return Frame{ID: UnassignChannel, Payload: []byte{channel}}
}

func newSetChannelIDFrame(channel uint8, deviceNumber uint16, deviceTypeID uint8, transmissionType TransmissionType) Frame {
	return Frame{ID: ChannelID, Payload: []byte{
		channel,
		byte(deviceNumber),
		byte(deviceNumber >> 8),
		deviceTypeID,
		uint8(transmissionType),
	}}
}

func newSetChannelRFFrequencyFrame(channel uint8, frequency uint8) Frame {
	return Frame{ID: ChannelRFFrequency, Payload: []byte{channel, frequency}}
}

func newSetChannelPeriodFrame(channel uint8, period uint16) Frame {
	return Frame{ID: ChannelPeriod, Payload: []byte{channel, byte(period), byte(period >> 8)}}
}

func newSetChannelTransmitPowerFrame(channel uint8, power uint8) Frame {
	return Frame{ID: ChannelTransmitPower, Payload: []byte{channel, power}}
}

func newSetChannelSearchTimeoutFrame(channel uint8, timeout uint8) Frame {
	return Frame{ID: ChannelSearchTimeout, Payload: []byte{channel, timeout}}
}

func newSetNetworkKeyFrame(slot uint8, key uint64) Frame {
	payload := make([]byte, 9)
	payload[0] = slot
	for i := 0; i < 8; i++ {
		payload[1+i] = byte(key >> (8 * i))
	}
	return Frame{ID: SetNetworkKey, Payload: payload}
}

func newResetSystemFrame() Frame {
	return Frame{ID: ResetSystem, Payload: []byte{0x00}}
}

func newOpenChannelFrame(channel uint8) Frame {
	return Frame{ID: OpenChannel, Payload: []byte{channel}}
}

func newCloseChannelFrame(channel uint8) Frame {
	return Frame{ID: CloseChannel, Payload: []byte{channel}}
}

func newRequestMessageFrame(channel uint8, requestedID MessageID) Frame {
	return Frame{ID: RequestMessage, Payload: []byte{channel, uint8(requestedID)}}
}

// NewDataFrame builds an outbound broadcast/acknowledged data frame from a
// page number and body, for use by Profile.BroadcastMessage/BroadcastPage
// implementations.
func NewDataFrame(id MessageID, channel uint8, pageNumber uint8, body PageBody) Frame {
	payload := make([]byte, 9)
	payload[0] = channel
	payload[1] = pageNumber
	copy(payload[2:], body[:])
	return Frame{ID: id, Payload: payload, Channel: channel, PageNumber: pageNumber}
}

// CapabilitiesResponse is the decoded reply to a RequestMessage(Capabilities).
type CapabilitiesResponse struct {
	MaxChannels uint8
	MaxNetworks uint8
}

func parseCapabilities(payload []byte) (CapabilitiesResponse, error) {
	if len(payload) < 2 {
		return CapabilitiesResponse{}, ErrInvalidFrame
	}
	return CapabilitiesResponse{MaxChannels: payload[0], MaxNetworks: payload[1]}, nil
}

func parseANTVersion(payload []byte) (string, error) {
	if len(payload) == 0 {
		return "", ErrInvalidFrame
	}
	end := len(payload)
	for end > 0 && payload[end-1] == 0 {
		end--
	}
	return string(payload[:end]), nil
}

// ChannelResponseInfo is the decoded body of a ChannelResponse message.
type ChannelResponseInfo struct {
	Channel   uint8
	MessageID MessageID
	Code      ResponseCode
}

func parseChannelResponse(payload []byte) (ChannelResponseInfo, error) {
	if len(payload) < 3 {
		return ChannelResponseInfo{}, ErrInvalidFrame
	}
	return ChannelResponseInfo{
		Channel:   payload[0],
		MessageID: MessageID(payload[1]),
		Code:      ResponseCode(payload[2]),
	}, nil
}

// StartupInfo decodes the dongle's post-reset startup message.
type StartupInfo struct {
	Bits string
	Type string
}

func parseStartupMessage(payload []byte) (StartupInfo, error) {
	if len(payload) == 0 {
		return StartupInfo{}, ErrInvalidFrame
	}
	b := payload[0]
	bits := make([]byte, 8)
	for i := 0; i < 8; i++ {
		if b&(1<<uint(7-i)) != 0 {
			bits[i] = '1'
		} else {
			bits[i] = '0'
		}
	}
	bitString := string(bits)

	if b == 0 {
		return StartupInfo{Bits: bitString, Type: "POWER_ON_RESET"}, nil
	}
	// bit 5 counted from the least-significant bit (0x20; bits[7-5] in the
	// string built most-significant-bit-first) signals a command reset.
	if bits[7-5] == '1' {
		return StartupInfo{Bits: bitString, Type: "COMMAND_RESET"}, nil
	}
	return StartupInfo{Bits: bitString, Type: bitString}, nil
}
