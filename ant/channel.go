package ant

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Profile supplies the data-plane behavior for a channel: page scheduling
// on the master side, and data-page decoding on either side. Channel owns
// all of the generic state machine, pairing and Page-70 logic described in
// spec.md §4.4 so that profiles only need to encode/decode pages.
type Profile interface {
	// DeviceTypeID identifies the ANT+ device class (spec.md §3).
	DeviceTypeID() uint8
	// InterleaveReset is the period of the broadcast schedule; masters
	// wrap their interleave counter back to 0 at this value.
	InterleaveReset() uint32
	// ChannelPeriod, ChannelFrequency, SearchTimeout, TransmitPower and
	// NetworkKey configure the dongle during configure_channel. A nil
	// NetworkKey means the public (no-key) network, as used by Bushido.
	ChannelPeriod() uint16
	ChannelFrequency() uint8
	SearchTimeout() uint8
	TransmitPower() uint8
	NetworkKey() *uint64
	MasterTransmissionType() TransmissionType
	SlaveTransmissionType() TransmissionType

	// BroadcastMessage returns the next page to send, keyed off the
	// channel's current interleave counter. Called only on master
	// channels, in response to EVENT_TX.
	BroadcastMessage(ch *Channel) (Frame, error)

	// BroadcastPage encodes a specific page on demand, used to answer
	// Page-70 "request for page" messages. Returns ErrUnsupportedPage if
	// the profile has no encoder for pageNumber.
	BroadcastPage(ch *Channel, pageNumber uint8, ackMessageID MessageID) (Frame, error)

	// HandleBroadcastData and HandleAcknowledgedData process a received
	// data page. A non-nil returned Frame is written back to the dongle,
	// which a normal sensor profile never needs (both return nil, nil) but
	// a Bridge channel uses to retransmit the page to its peer (spec.md
	// §4.6).
	HandleBroadcastData(ch *Channel, pageNumber uint8, body PageBody) (*Frame, error)
	HandleAcknowledgedData(ch *Channel, pageNumber uint8, body PageBody) (*Frame, error)
}

// RXFailHandler is an optional Profile extension: a slave that wants to
// speak on its own turn even when the master's transmission was missed
// (the Bushido head unit's choreography) implements this.
type RXFailHandler interface {
	OnRXFail(ch *Channel) (*Frame, error)
}

// Channel is a single virtual ANT connection: one dongle slot, one state
// machine, one Profile.
type Channel struct {
	mu   sync.Mutex
	cond *sync.Cond

	Number  uint8
	Master  bool
	Profile Profile

	status     Status
	lastAction MessageID
	hasAction  bool
	paired     bool

	deviceNumber     uint16
	deviceTypeID     uint8
	transmissionType TransmissionType

	networkSlot uint8
	interleave  uint32

	log *logrus.Entry
}

// NewChannel constructs a channel for the given profile. deviceNumber is
// the ANT+ device number the caller wants to present (masters) or match
// (slaves, 0 = wildcard).
func NewChannel(profile Profile, master bool, deviceNumber uint16) *Channel {
	c := &Channel{
		Master:       master,
		Profile:      profile,
		status:       StatusUnassigned,
		deviceNumber: deviceNumber,
		deviceTypeID: profile.DeviceTypeID(),
		log: logrus.WithFields(logrus.Fields{
			"component": "channel",
		}),
	}
	if master {
		c.transmissionType = profile.MasterTransmissionType()
	} else {
		c.transmissionType = profile.SlaveTransmissionType()
	}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Status returns the channel's current lifecycle state.
func (c *Channel) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Paired reports whether a slave has acquired the master's CHANNEL_ID.
func (c *Channel) Paired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paired
}

// MarkPaired bypasses the slave pairing gate. A Bridge channel must relay
// data transparently from the moment it opens (spec.md §4.6, Testable
// Property 7) since it never itself needs the counterparty's identity.
func (c *Channel) MarkPaired() {
	c.mu.Lock()
	c.paired = true
	c.mu.Unlock()
}

// DeviceNumber returns the ANT+ device number, as presented (master) or
// learned via pairing (slave).
func (c *Channel) DeviceNumber() uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deviceNumber
}

// Interleave returns the current position in the broadcast schedule.
func (c *Channel) Interleave() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.interleave
}

func (c *Channel) setStatus(s Status) {
	c.mu.Lock()
	old := c.status
	c.status = s
	c.mu.Unlock()
	if old != s {
		c.log.WithFields(logrus.Fields{"from": old, "to": s, "channel": c.Number}).Info("status changed")
	}
	c.cond.L.Lock()
	c.cond.Broadcast()
	c.cond.L.Unlock()
}

func (c *Channel) setAction(id MessageID) {
	c.mu.Lock()
	c.lastAction = id
	c.hasAction = true
	c.mu.Unlock()
	c.cond.L.Lock()
	c.cond.Broadcast()
	c.cond.L.Unlock()
}

// waitForStatus blocks until the channel reaches status or timeout
// elapses, per the 10s configuration deadline in spec.md §4.3.
func (c *Channel) waitForStatus(status Status, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	timer := time.AfterFunc(timeout, func() {
		c.mu.Lock()
		c.cond.Broadcast()
		c.mu.Unlock()
	})
	defer timer.Stop()

	c.mu.Lock()
	defer c.mu.Unlock()
	for c.status != status {
		if time.Now().After(deadline) {
			return false
		}
		c.cond.Wait()
	}
	return true
}

// waitForAction blocks until lastAction == action or timeout elapses.
func (c *Channel) waitForAction(action MessageID, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	timer := time.AfterFunc(timeout, func() {
		c.mu.Lock()
		c.cond.Broadcast()
		c.mu.Unlock()
	})
	defer timer.Stop()

	c.mu.Lock()
	defer c.mu.Unlock()
	for !(c.hasAction && c.lastAction == action) {
		if time.Now().After(deadline) {
			return false
		}
		c.cond.Wait()
	}
	return true
}

// broadcastMessage asks the profile for the next scheduled page and
// advances the interleave counter, wrapping at InterleaveReset.
func (c *Channel) broadcastMessage() (Frame, error) {
	f, err := c.Profile.BroadcastMessage(c)
	if err != nil {
		return Frame{}, err
	}
	c.mu.Lock()
	c.interleave++
	if reset := c.Profile.InterleaveReset(); reset > 0 && c.interleave >= reset {
		c.interleave = 0
	}
	c.mu.Unlock()
	return f, nil
}

// Handle processes a single inbound frame addressed to this channel,
// returning zero or more response frames to be written back to the
// dongle, per spec.md §4.4.
func (c *Channel) Handle(f Frame) ([]Frame, error) {
	if f.Channel != c.Number {
		return nil, ErrWrongChannel
	}
	switch f.ID {
	case ChannelID:
		c.handleChannelID(f)
		return nil, nil
	case ChannelResponse:
		return c.handleChannelResponse(f)
	case BroadcastData:
		return c.handleData(f, false)
	case AcknowledgedData:
		return c.handleData(f, true)
	case BurstData:
		c.log.Debug("ignoring burst data")
		return nil, nil
	default:
		return nil, ErrUnknownMessageID
	}
}

func (c *Channel) handleChannelID(f Frame) {
	if len(f.Payload) < 5 {
		return
	}
	deviceNumber := uint16(f.Payload[1]) | uint16(f.Payload[2])<<8
	deviceTypeID := f.Payload[3]
	transmissionType := TransmissionType(f.Payload[4])

	c.mu.Lock()
	c.paired = true
	c.deviceNumber = deviceNumber
	c.deviceTypeID = deviceTypeID
	c.transmissionType = transmissionType
	c.mu.Unlock()

	c.log.WithFields(logrus.Fields{
		"device_number": deviceNumber, "device_type_id": deviceTypeID,
	}).Info("received channel id")
}

func (c *Channel) handleChannelResponse(f Frame) ([]Frame, error) {
	if len(f.Payload) < 3 {
		return nil, ErrInvalidFrame
	}
	messageID := MessageID(f.Payload[1])
	code := ResponseCode(f.Payload[2])

	switch {
	case code == EventTX && c.Master:
		frame, err := c.broadcastMessage()
		if err != nil {
			return nil, err
		}
		return []Frame{frame}, nil
	case code == EventChannelClosed:
		c.setStatus(StatusClosed)
		return nil, nil
	case code == ResponseNoError:
		switch messageID {
		case AssignChannel:
			c.setStatus(StatusAssigned)
		case OpenChannel:
			c.setStatus(StatusOpen)
		case CloseChannel:
			c.setStatus(StatusClosing)
		case UnassignChannel:
			c.setStatus(StatusUnassigned)
		}
		c.setAction(messageID)
		return nil, nil
	case code == EventRXFail || code == EventRXFailGoToSearch || code == EventRXSearchTimeout:
		c.log.WithField("code", code).Warn("receive event")
		if code == EventRXFail {
			if handler, ok := c.Profile.(RXFailHandler); ok {
				frame, err := handler.OnRXFail(c)
				if err != nil {
					return nil, err
				}
				if frame != nil {
					return []Frame{*frame}, nil
				}
			}
		}
		return nil, nil
	default:
		c.log.WithField("code", code).Debug("channel response")
		return nil, nil
	}
}

func (c *Channel) handleData(f Frame, acknowledged bool) ([]Frame, error) {
	if !c.Master && !c.Paired() {
		return []Frame{c.requestChannelID()}, nil
	}
	pageNumber := f.PageNumber
	var body PageBody
	if len(f.Payload) >= 9 {
		copy(body[:], f.Payload[2:9])
	}

	if acknowledged && pageNumber == 70 {
		return c.handlePage70Request(body)
	}

	var resp *Frame
	var err error
	if acknowledged {
		resp, err = c.Profile.HandleAcknowledgedData(c, pageNumber, body)
	} else {
		resp, err = c.Profile.HandleBroadcastData(c, pageNumber, body)
	}
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, nil
	}
	return []Frame{*resp}, nil
}

func (c *Channel) requestChannelID() Frame {
	return Frame{
		ID:      RequestMessage,
		Payload: []byte{c.Number, uint8(ChannelID)},
	}
}

// handlePage70Request replies to a "request for page" common page with N
// copies of the requested page, broadcast or acknowledged per the
// descriptor's reply-as-ack bit (spec.md §4.4, §6).
func (c *Channel) handlePage70Request(body PageBody) ([]Frame, error) {
	req := ParsePage70Request(body)
	replyID := BroadcastData
	if req.RespondWithAcknowledged() {
		replyID = AcknowledgedData
	}
	n := req.NumberOfResponses()
	frames := make([]Frame, 0, n)
	for i := 0; i < n; i++ {
		frame, err := c.Profile.BroadcastPage(c, req.RequestedPage, replyID)
		if err != nil {
			c.log.WithError(err).WithField("page", req.RequestedPage).Info("page 70: unsupported request")
			return nil, nil
		}
		frames = append(frames, frame)
	}
	return frames, nil
}
