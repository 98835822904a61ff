package ant

import "github.com/sirupsen/logrus"

// bridgeProfile wraps a real Profile so it can be relayed rather than
// actively scheduled: broadcasts are never generated locally, only
// retransmitted from the peer side of the bridge with the channel number
// rewritten, per bridge.py's BridgeInterface.
type bridgeProfile struct {
	inner  Profile
	target uint8
	log    *logrus.Entry
}

func (b *bridgeProfile) DeviceTypeID() uint8     { return b.inner.DeviceTypeID() }
func (b *bridgeProfile) InterleaveReset() uint32 { return b.inner.InterleaveReset() }
func (b *bridgeProfile) ChannelPeriod() uint16   { return b.inner.ChannelPeriod() }
func (b *bridgeProfile) ChannelFrequency() uint8 { return b.inner.ChannelFrequency() }
func (b *bridgeProfile) SearchTimeout() uint8    { return b.inner.SearchTimeout() }
func (b *bridgeProfile) TransmitPower() uint8    { return b.inner.TransmitPower() }
func (b *bridgeProfile) NetworkKey() *uint64     { return b.inner.NetworkKey() }
func (b *bridgeProfile) MasterTransmissionType() TransmissionType {
	return b.inner.MasterTransmissionType()
}
func (b *bridgeProfile) SlaveTransmissionType() TransmissionType {
	return b.inner.SlaveTransmissionType()
}

// BroadcastMessage never originates traffic: a bridge side is purely
// reactive, per BridgeInterface.broadcast_message's empty override.
func (b *bridgeProfile) BroadcastMessage(ch *Channel) (Frame, error) {
	return Frame{}, ErrUnsupportedPage
}

func (b *bridgeProfile) BroadcastPage(ch *Channel, pageNumber uint8, ackMessageID MessageID) (Frame, error) {
	return Frame{}, ErrUnsupportedPage
}

// HandleBroadcastData retransmits the page verbatim to the peer channel,
// rewriting only the channel-number byte (bridge.py
// BridgeInterface._handle_broadcast_data).
func (b *bridgeProfile) HandleBroadcastData(ch *Channel, pageNumber uint8, body PageBody) (*Frame, error) {
	b.log.WithFields(logrus.Fields{"from": ch.Number, "to": b.target}).Info("retransmitting broadcast data")
	frame := NewDataFrame(BroadcastData, b.target, pageNumber, body)
	return &frame, nil
}

func (b *bridgeProfile) HandleAcknowledgedData(ch *Channel, pageNumber uint8, body PageBody) (*Frame, error) {
	b.log.WithFields(logrus.Fields{"from": ch.Number, "to": b.target}).Info("retransmitting acknowledged data")
	frame := NewDataFrame(AcknowledgedData, b.target, pageNumber, body)
	return &frame, nil
}

// Bridge relays an ANT+ device's traffic through two channels: a slave
// channel paired to the real master device, and a master channel replaying
// its pages to a real slave, rewriting the channel-number byte of every
// data page in transit (spec.md §4.6, bridge.py AntBridge).
type Bridge struct {
	Master *Channel
	Slave  *Channel

	masterProfile *bridgeProfile
	slaveProfile  *bridgeProfile
}

// ConfigureBridge builds and configures both bridge channels for the given
// profile factory, pairing the slave to deviceNumber and presenting the
// master side as a fresh device, per AntBridge.configure.
func ConfigureBridge(d *Dongle, newProfile func() Profile, deviceNumber uint16) (*Bridge, error) {
	slaveInner := newProfile()
	masterInner := newProfile()

	slaveProfile := &bridgeProfile{inner: slaveInner, log: logrus.WithField("component", "bridge-slave")}
	masterProfile := &bridgeProfile{inner: masterInner, log: logrus.WithField("component", "bridge-master")}

	slave, err := d.ConfigureChannel(slaveProfile, false, deviceNumber)
	if err != nil {
		return nil, err
	}
	master, err := d.ConfigureChannel(masterProfile, true, 0)
	if err != nil {
		_ = d.CloseAndUnassign(slave)
		return nil, err
	}

	slaveProfile.target = master.Number
	masterProfile.target = slave.Number

	// A bridge relays unconditionally; it never depends on the generic
	// slave pairing gate (spec.md §4.6, Testable Property 7).
	slave.MarkPaired()
	master.MarkPaired()

	return &Bridge{Master: master, Slave: slave, masterProfile: masterProfile, slaveProfile: slaveProfile}, nil
}
