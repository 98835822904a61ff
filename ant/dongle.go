package ant

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// configTimeout bounds every blocking step of channel configuration
// (spec.md §4.3).
const configTimeout = 10 * time.Second

// dongleTransport is the USB specifics a Dongle session depends on,
// mirroring the teacher's AntDriver split between protocol and I/O.
// usbdongle.go supplies the gousb-backed implementation; tests supply a
// mock.
type dongleTransport interface {
	Open() error
	Close() error
	ReadBulk(buf []byte) (int, error)
	WriteBulk(data []byte) (int, error)
	IsCYCPLUS() bool
}

// Dongle is an ANT USB radio session: one physical dongle, its allocated
// channels and network-key slots, and the reader/dispatcher goroutine
// pair that drive them.
type Dongle struct {
	transport dongleTransport

	MaxChannels uint8
	MaxNetworks uint8
	ANTVersion  string
	LastReset   string
	cycplus     bool

	extendedMessages bool
	scanTarget       *Channel

	mu          sync.Mutex
	channels    []*Channel
	networks    []*uint64
	networkFlag bool
	networkCond *sync.Cond

	writeMu sync.Mutex

	ring *frameRing

	log *logrus.Entry
}

// NewDongle wraps a transport in a protocol session. Most callers should
// use NewUSBDongle instead; this constructor exists so tests can supply a
// mock transport.
func NewDongle(transport dongleTransport) *Dongle {
	d := &Dongle{
		transport: transport,
		ring:      &frameRing{},
		log:       logrus.WithField("component", "dongle"),
	}
	d.networkCond = sync.NewCond(&d.mu)
	return d
}

// Startup opens the transport, resets the radio and queries its
// capabilities and ANT version (spec.md §4.3).
func (d *Dongle) Startup() error {
	if err := d.transport.Open(); err != nil {
		return errors.Join(ErrNoDongle, err)
	}
	d.cycplus = d.transport.IsCYCPLUS()

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if err := d.reset(); err != nil {
			lastErr = err
			continue
		}
		lastErr = nil
		break
	}
	if lastErr != nil {
		return lastErr
	}
	return d.calibrate()
}

// reset issues RESET_SYSTEM and reads the startup reply. It is also used
// (unconditionally of CYCPLUS) during Startup; Release consults the
// CYCPLUS flag itself before calling it again.
func (d *Dongle) reset() error {
	if _, err := d.rawWrite(newResetSystemFrame()); err != nil {
		return err
	}
	time.Sleep(500 * time.Millisecond)

	buf := make([]byte, 5)
	n, err := d.transport.ReadBulk(buf)
	if err != nil {
		return err
	}
	frame, err := DecodeFrame(buf[:n])
	if err != nil {
		return err
	}
	if frame.ID != StartUp {
		return &WrongMessageIDError{Received: frame.ID, Expected: StartUp}
	}
	info, err := parseStartupMessage(frame.Payload)
	if err != nil {
		return err
	}
	d.LastReset = info.Type
	d.log.WithField("reset_type", d.LastReset).Info("dongle reset")
	return nil
}

// calibrate queries capabilities and ANT version, run synchronously before
// the reader/dispatcher goroutines start.
func (d *Dongle) calibrate() error {
	resp, err := d.rawWriteThenRead(newRequestMessageFrame(0, Capabilities))
	if err != nil {
		return err
	}
	caps, err := parseCapabilities(resp.Payload)
	if err != nil {
		return err
	}
	d.MaxChannels = caps.MaxChannels
	d.MaxNetworks = caps.MaxNetworks
	d.channels = make([]*Channel, d.MaxChannels)
	d.networks = make([]*uint64, d.MaxNetworks)

	resp, err = d.rawWriteThenRead(newRequestMessageFrame(0, ANTVersion))
	if err != nil {
		return err
	}
	version, err := parseANTVersion(resp.Payload)
	if err != nil {
		return err
	}
	d.ANTVersion = version
	return nil
}

// rawWrite serializes and writes a frame under writeMu; every write the
// session makes (handshake, configuration and dispatcher replies) goes
// through it.
func (d *Dongle) rawWrite(f Frame) (int, error) {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	return d.transport.WriteBulk(f.Encode())
}

func (d *Dongle) rawWriteThenRead(f Frame) (Frame, error) {
	if _, err := d.rawWrite(f); err != nil {
		return Frame{}, err
	}
	buf := make([]byte, 64)
	n, err := d.transport.ReadBulk(buf)
	if err != nil {
		return Frame{}, err
	}
	return DecodeFrame(buf[:n])
}

// Run starts the reader and dispatcher goroutines and blocks until ctx is
// cancelled or one of them returns a fatal error. ConfigureChannel,
// CloseAndUnassign and getNetworkSlot wait for replies that only the
// dispatcher delivers, so they succeed only while Run is active; writes
// are always serialized through writeMu.
func (d *Dongle) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return d.readerLoop(gctx) })
	g.Go(func() error { return d.dispatcherLoop(gctx) })
	return g.Wait()
}

func (d *Dongle) readerLoop(ctx context.Context) error {
	buf := make([]byte, 64)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		n, err := d.transport.ReadBulk(buf)
		if err != nil {
			// Transient USB read errors are swallowed, per spec.md §4.3.
			continue
		}
		if n > 0 {
			d.ring.push(buf[:n])
		}
	}
}

func (d *Dongle) dispatcherLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		raw, err := d.ring.nextFrame()
		if err != nil {
			time.Sleep(time.Millisecond)
			continue
		}
		d.dispatch(raw)
	}
}

// dispatch decodes one raw frame and routes it, per spec.md §4.3.
func (d *Dongle) dispatch(raw []byte) {
	frame, err := DecodeFrame(raw)
	if err != nil {
		d.log.WithError(err).Warn("dropping invalid frame")
		return
	}

	if d.scanTarget != nil {
		d.recordScan(frame, ChecksumValid(raw))
		d.deliver(d.scanTarget, frame)
		return
	}

	if frame.ID == ChannelResponse && frame.Channel == 0 {
		info, err := parseChannelResponse(frame.Payload)
		if err == nil && info.Code == ResponseNoError && info.MessageID == SetNetworkKey {
			d.mu.Lock()
			d.networkFlag = true
			d.networkCond.Broadcast()
			d.mu.Unlock()
			return
		}
	}

	d.mu.Lock()
	var ch *Channel
	if int(frame.Channel) < len(d.channels) {
		ch = d.channels[frame.Channel]
	}
	d.mu.Unlock()

	if ch == nil {
		d.log.WithField("channel", frame.Channel).Warn("frame for unassigned channel")
		return
	}
	d.deliver(ch, frame)
}

// recordScan extracts extended channel-id/timestamp metadata trailing a
// scan-mode frame's normal 9-byte payload and, if the scan target is a
// ScannerProfile, logs the row (spec.md §4.7, scanner.py).
func (d *Dongle) recordScan(frame Frame, checksumOK bool) {
	scanner, ok := d.scanTarget.Profile.(*ScannerProfile)
	if !ok || len(frame.Payload) < 13 {
		return
	}
	flag := frame.Payload[9]
	if flag&0x20 == 0 {
		return
	}
	deviceNumber := uint16(frame.Payload[10]) | uint16(frame.Payload[11])<<8
	deviceTypeID := frame.Payload[12]

	var timestamp uint16
	if flag&0x40 != 0 && len(frame.Payload) >= 16 {
		timestamp = uint16(frame.Payload[14]) | uint16(frame.Payload[15])<<8
	}

	scanner.RecordExtended(deviceNumber, deviceTypeID, frame, checksumOK, timestamp)
}

func (d *Dongle) deliver(ch *Channel, frame Frame) {
	responses, err := ch.Handle(frame)
	if err != nil {
		switch {
		case errors.Is(err, ErrUnknownMessageID):
			d.log.WithField("id", frame.ID).Warn("unknown message id")
		case errors.Is(err, ErrWrongChannel):
			d.log.WithField("channel", frame.Channel).Warn("wrong channel")
		default:
			d.log.WithError(err).Warn("channel handler error")
		}
		return
	}
	for _, resp := range responses {
		if _, err := d.rawWrite(resp); err != nil {
			d.log.WithError(err).Warn("write failed")
		}
	}
}

// getNetworkSlot allocates (or reuses) a network key slot, sending
// SET_NETWORK_KEY only on first use, per spec.md §4.3 step 1 and the
// Open Question resolution in SPEC_FULL.md §11: the key sent is always
// the one associated with the allocated slot, never a hardcoded default.
func (d *Dongle) getNetworkSlot(key *uint64) (uint8, error) {
	if key == nil {
		return 0, nil
	}
	d.mu.Lock()
	for i, k := range d.networks {
		if k != nil && *k == *key {
			d.mu.Unlock()
			return uint8(i), nil
		}
	}
	slot := -1
	for i := 1; i < len(d.networks); i++ {
		if d.networks[i] == nil {
			slot = i
			break
		}
	}
	if slot == -1 {
		d.mu.Unlock()
		return 0, ErrNoMoreNetworks
	}
	d.networkFlag = false
	d.mu.Unlock()

	if _, err := d.rawWrite(newSetNetworkKeyFrame(uint8(slot), *key)); err != nil {
		return 0, err
	}

	deadline := time.Now().Add(configTimeout)
	d.mu.Lock()
	timer := time.AfterFunc(configTimeout, func() {
		d.mu.Lock()
		d.networkCond.Broadcast()
		d.mu.Unlock()
	})
	for !d.networkFlag {
		if time.Now().After(deadline) {
			d.mu.Unlock()
			timer.Stop()
			return 0, errors.New("ant: timed out waiting for network key acknowledgement")
		}
		d.networkCond.Wait()
	}
	timer.Stop()
	d.networks[slot] = key
	d.mu.Unlock()
	return uint8(slot), nil
}

func (d *Dongle) nextFreeChannel() (uint8, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, c := range d.channels {
		if c == nil {
			return uint8(i), nil
		}
	}
	return 0, ErrNoMoreChannels
}

// ConfigureChannel allocates a channel and runs the ASSIGN -> ID -> RF ->
// PERIOD -> POWER -> SEARCH_TIMEOUT -> OPEN sequence of spec.md §4.3,
// table in "configure_channel". Any step timing out fails the whole call;
// no half-configured channel is left assigned to the caller.
func (d *Dongle) ConfigureChannel(profile Profile, master bool, deviceNumber uint16) (*Channel, error) {
	number, err := d.nextFreeChannel()
	if err != nil {
		return nil, err
	}

	ch := NewChannel(profile, master, deviceNumber)
	ch.Number = number

	d.mu.Lock()
	d.channels[number] = ch
	d.mu.Unlock()

	fail := func(err error) (*Channel, error) {
		d.mu.Lock()
		d.channels[number] = nil
		d.mu.Unlock()
		return nil, err
	}

	slot, err := d.getNetworkSlot(profile.NetworkKey())
	if err != nil {
		return fail(err)
	}
	ch.networkSlot = slot

	channelType := ChannelBidirectionalReceive
	if master {
		channelType = ChannelBidirectionalTransmit
	}
	if _, err := d.rawWrite(newAssignChannelFrame(number, channelType, slot)); err != nil {
		return fail(err)
	}
	if !ch.waitForStatus(StatusAssigned, configTimeout) {
		return fail(errTimeout("ASSIGN_CHANNEL"))
	}

	if _, err := d.rawWrite(newSetChannelIDFrame(number, deviceNumber, profile.DeviceTypeID(), ch.transmissionType)); err != nil {
		return fail(err)
	}
	if !ch.waitForAction(ChannelID, configTimeout) {
		return fail(errTimeout("SET_CHANNEL_ID"))
	}

	if freq := profile.ChannelFrequency(); freq != DefaultChannelFrequency {
		if _, err := d.rawWrite(newSetChannelRFFrequencyFrame(number, freq)); err != nil {
			return fail(err)
		}
		if !ch.waitForAction(ChannelRFFrequency, configTimeout) {
			return fail(errTimeout("SET_CHANNEL_RF_FREQ"))
		}
	}

	if period := profile.ChannelPeriod(); period != DefaultChannelPeriod {
		if _, err := d.rawWrite(newSetChannelPeriodFrame(number, period)); err != nil {
			return fail(err)
		}
		if !ch.waitForAction(ChannelPeriod, configTimeout) {
			return fail(errTimeout("SET_CHANNEL_PERIOD"))
		}
	}

	if power := profile.TransmitPower(); power != DefaultTransmitPower {
		if _, err := d.rawWrite(newSetChannelTransmitPowerFrame(number, power)); err != nil {
			return fail(err)
		}
		if !ch.waitForAction(ChannelTransmitPower, configTimeout) {
			return fail(errTimeout("SET_CHANNEL_TX_POWER"))
		}
	}

	if !master {
		if _, err := d.rawWrite(newSetChannelSearchTimeoutFrame(number, profile.SearchTimeout())); err != nil {
			return fail(err)
		}
		if !ch.waitForAction(ChannelSearchTimeout, configTimeout) {
			return fail(errTimeout("SET_CHANNEL_SEARCH_TIMEOUT"))
		}
	}

	if _, err := d.rawWrite(newOpenChannelFrame(number)); err != nil {
		return fail(err)
	}
	if !ch.waitForStatus(StatusOpen, configTimeout) {
		return fail(errTimeout("OPEN_CHANNEL"))
	}

	return ch, nil
}

// CloseAndUnassign closes and unassigns a channel, freeing its slot.
func (d *Dongle) CloseAndUnassign(ch *Channel) error {
	if _, err := d.rawWrite(newCloseChannelFrame(ch.Number)); err != nil {
		return err
	}
	if !ch.waitForStatus(StatusClosed, configTimeout) {
		return errTimeout("CLOSE_CHANNEL")
	}
	if _, err := d.rawWrite(newUnassignChannelFrame(ch.Number)); err != nil {
		return err
	}
	if !ch.waitForStatus(StatusUnassigned, configTimeout) {
		return errTimeout("UNASSIGN_CHANNEL")
	}
	d.mu.Lock()
	d.channels[ch.Number] = nil
	d.mu.Unlock()
	return nil
}

// ConfigureExtendedMessages sets the session's extended-messages flag. It
// sends no message to the radio, and nothing in the session reads the
// flag; it does not by itself make the radio append channel-id or
// timestamp metadata to received data frames.
func (d *Dongle) ConfigureExtendedMessages() {
	d.extendedMessages = true
}

// ConfigureContinuousScan puts channel 0 into passive receive-all mode and
// routes every inbound frame to target regardless of channel number
// (spec.md §4.3).
func (d *Dongle) ConfigureContinuousScan(target *Channel) error {
	if _, err := d.rawWrite(Frame{ID: MessageID(0x5B), Payload: []byte{0, 1}}); err != nil {
		return err
	}
	d.scanTarget = target
	return nil
}

// Release tears down every live channel, resets the radio (unless it is a
// CYCPLUS dongle, which misbehaves when reset while still owning open
// channels — spec.md §4.3, §9) and closes the transport. It does not drain
// unread bytes from the transport before the reset.
func (d *Dongle) Release() error {
	d.mu.Lock()
	live := make([]*Channel, 0)
	for _, c := range d.channels {
		if c != nil {
			live = append(live, c)
		}
	}
	d.mu.Unlock()

	for _, c := range live {
		if err := d.CloseAndUnassign(c); err != nil {
			d.log.WithError(err).Warn("failed to close channel during release")
		}
	}

	if !d.cycplus {
		_ = d.reset()
	}
	return d.transport.Close()
}

func errTimeout(step string) error {
	return errors.New("ant: configuration step timed out: " + step)
}
