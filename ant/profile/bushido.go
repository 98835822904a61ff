package profile

import (
	"github.com/sirupsen/logrus"

	"github.com/slaclau/go-antplus/ant"
	"github.com/slaclau/go-antplus/ant/data"
)

const (
	deviceTypeBushidoBrake    = 81
	deviceTypeBushidoHeadUnit = 82
	bushidoCycleLength        = 32

	pageBushidoTarget           = 16
	pageBushidoCommand          = 1
	pageBushidoCalibration      = 2
	pageBushidoRequestInfo      = 172
	pageBushidoInfo             = 173
	pageBushidoTargetMode       = 0x01 // 220_01: target/mode
	pageBushidoWindResistance   = 0x02 // 220_02: wind/rolling-resistance
	pageBushidoExtended         = 220

	bushidoSubVersion      = 1
	bushidoSubBrakeVersion = 2
	bushidoSubBrakeSerial  = 3
	bushidoSubSerial       = 4 // page 173 response sub-page carrying brake mode/serial
)

// BushidoBrake is the Tacx Bushido brake-unit vendor profile, grounded on
// tacx/bushido.py's BushidoBrake and the round-robin schedule of spec.md
// §4.4 ("Bushido brake (period 32): page 16, 1, 2 in round-robin"). The
// wire protocol beyond page numbering is proprietary and undocumented
// upstream (the source only logged raw pages to a file), so body encoding
// stays minimal — spec.md's Non-goals exclude a full vendor page catalogue,
// only the scheduler's behavior is in scope.
type BushidoBrake struct {
	Data *data.TrainerData

	lastBroadcast ant.PageBody
	lastAck       ant.PageBody

	log *logrus.Entry
}

// NewBushidoBrake constructs a brake profile. Bushido channels use the
// public (no-key) network, per tacx/bushido.py's network_key = None.
func NewBushidoBrake(d *data.TrainerData) *BushidoBrake {
	return &BushidoBrake{Data: d, log: logrus.WithField("profile", "bushido_brake")}
}

func (p *BushidoBrake) DeviceTypeID() uint8                         { return deviceTypeBushidoBrake }
func (p *BushidoBrake) InterleaveReset() uint32                     { return bushidoCycleLength }
func (p *BushidoBrake) ChannelPeriod() uint16                       { return ant.BushidoChannelPeriod }
func (p *BushidoBrake) ChannelFrequency() uint8                     { return ant.BushidoChannelFrequency }
func (p *BushidoBrake) SearchTimeout() uint8                        { return ant.BushidoSearchTimeout }
func (p *BushidoBrake) TransmitPower() uint8                        { return ant.DefaultTransmitPower }
func (p *BushidoBrake) NetworkKey() *uint64                         { return nil }
func (p *BushidoBrake) MasterTransmissionType() ant.TransmissionType { return ant.TTIndependent }
func (p *BushidoBrake) SlaveTransmissionType() ant.TransmissionType  { return 0 }

// bushidoBrakeSequence is the three-page round-robin of spec.md §4.4.
var bushidoBrakeSequence = [3]uint8{pageBushidoTarget, pageBushidoCommand, pageBushidoCalibration}

// BroadcastMessage selects the next page of the round-robin schedule by
// interleave mod 3.
func (p *BushidoBrake) BroadcastMessage(ch *ant.Channel) (ant.Frame, error) {
	page := bushidoBrakeSequence[ch.Interleave()%3]
	return p.BroadcastPage(ch, page, ant.BroadcastData)
}

// BroadcastPage encodes one of the three round-robin pages. Page 16
// reflects the current resistance target (the only TrainerData field this
// vendor extension exposes); pages 1 and 2 carry no further decoded
// payload since the source never decoded them either.
func (p *BushidoBrake) BroadcastPage(ch *ant.Channel, pageNumber uint8, ackMessageID ant.MessageID) (ant.Frame, error) {
	var body ant.PageBody
	switch pageNumber {
	case pageBushidoTarget:
		snap := p.Data.Get()
		body[0] = byte(snap.Target * 2)
	case pageBushidoCommand, pageBushidoCalibration:
		// no decoded fields; round-robin placeholder per spec.md §4.4.
	default:
		return ant.Frame{}, ant.ErrUnsupportedPage
	}
	return ant.NewDataFrame(ackMessageID, ch.Number, pageNumber, body), nil
}

func (p *BushidoBrake) HandleBroadcastData(ch *ant.Channel, pageNumber uint8, body ant.PageBody) (*ant.Frame, error) {
	p.lastBroadcast = body
	p.log.WithField("page", pageNumber).Debug("recorded raw brake page")
	return nil, nil
}

func (p *BushidoBrake) HandleAcknowledgedData(ch *ant.Channel, pageNumber uint8, body ant.PageBody) (*ant.Frame, error) {
	p.lastAck = body
	p.log.WithField("page", pageNumber).Debug("recorded raw brake ack page")
	return nil, nil
}

// headUnitTransition is the mode-transition sequence a head unit drives the
// brake through before it will accept training commands (spec.md §4.5).
var headUnitTransition = []string{"standalone", "pc", "reset_distance", "paused", "training"}

// BushidoHeadUnit is the Tacx Bushido head-unit vendor profile, grounded on
// tacx/bushido.py's BushidoHeadUnit and the choreography of spec.md §4.5: a
// slave that also initiates request pages, speaking once per RX event
// (inbound frame or EVENT_RX_FAIL) rather than on its own TX schedule.
type BushidoHeadUnit struct {
	Data *data.TrainerData

	tick uint32

	brakeMode      string
	transitionIdx  int
	pendingRequest bool

	log *logrus.Entry
}

// NewBushidoHeadUnit constructs a head-unit profile.
func NewBushidoHeadUnit(d *data.TrainerData) *BushidoHeadUnit {
	return &BushidoHeadUnit{Data: d, log: logrus.WithField("profile", "bushido_head_unit")}
}

func (p *BushidoHeadUnit) DeviceTypeID() uint8                         { return deviceTypeBushidoHeadUnit }
func (p *BushidoHeadUnit) InterleaveReset() uint32                     { return bushidoCycleLength }
func (p *BushidoHeadUnit) ChannelPeriod() uint16                       { return ant.BushidoChannelPeriod }
func (p *BushidoHeadUnit) ChannelFrequency() uint8                     { return ant.BushidoChannelFrequency }
func (p *BushidoHeadUnit) SearchTimeout() uint8                        { return ant.BushidoSearchTimeout }
func (p *BushidoHeadUnit) TransmitPower() uint8                        { return ant.DefaultTransmitPower }
func (p *BushidoHeadUnit) NetworkKey() *uint64                         { return nil }
func (p *BushidoHeadUnit) MasterTransmissionType() ant.TransmissionType { return ant.TTIndependent }
func (p *BushidoHeadUnit) SlaveTransmissionType() ant.TransmissionType  { return 0 }

// BroadcastMessage is unused: the head unit is a slave and never answers
// EVENT_TX. Its broadcasts are driven by nextFrame via RX events instead.
func (p *BushidoHeadUnit) BroadcastMessage(ch *ant.Channel) (ant.Frame, error) {
	return ant.Frame{}, ant.ErrUnsupportedPage
}

func (p *BushidoHeadUnit) BroadcastPage(ch *ant.Channel, pageNumber uint8, ackMessageID ant.MessageID) (ant.Frame, error) {
	return ant.Frame{}, ant.ErrUnsupportedPage
}

// Tick returns the head unit's position in its 32-tick cycle.
func (p *BushidoHeadUnit) Tick() uint32 { return p.tick }

// BrakeMode reports the transition state last confirmed by the brake.
func (p *BushidoHeadUnit) BrakeMode() string { return p.brakeMode }

// nextFrame builds the next choreography frame and advances the tick
// counter, per spec.md §4.5:
//
//	tick 0       -> keep-alive (page 0)
//	tick 1       -> request page 172 sub-page "version"
//	tick 2       -> request page 172 sub-page "brake_version"
//	tick 3       -> request page 172 sub-page "brake_serial"
//	ticks 4..31  -> alternate page 220_01 / 220_02 by interleave mod 2
//
// If a mode-transition request is pending (triggered by a page-173 serial
// response), it takes priority over the ordinary ticks-4..31 alternation.
func (p *BushidoHeadUnit) nextFrame(ch *ant.Channel) ant.Frame {
	defer func() {
		p.tick++
		if p.tick >= bushidoCycleLength {
			p.tick = 0
		}
	}()

	switch {
	case p.tick == 0:
		var body ant.PageBody
		return ant.NewDataFrame(ant.BroadcastData, ch.Number, 0, body)
	case p.tick == 1:
		return p.requestInfo(ch, bushidoSubVersion)
	case p.tick == 2:
		return p.requestInfo(ch, bushidoSubBrakeVersion)
	case p.tick == 3:
		return p.requestInfo(ch, bushidoSubBrakeSerial)
	case p.pendingRequest && p.transitionIdx < len(headUnitTransition):
		return p.transitionRequest(ch)
	default:
		var body ant.PageBody
		if p.tick%2 == 0 {
			return ant.NewDataFrame(ant.AcknowledgedData, ch.Number, pageBushidoExtended, p.encodeTargetMode(body))
		}
		return ant.NewDataFrame(ant.AcknowledgedData, ch.Number, pageBushidoExtended, p.encodeWindResistance(body))
	}
}

func (p *BushidoHeadUnit) requestInfo(ch *ant.Channel, subpage byte) ant.Frame {
	var body ant.PageBody
	body[0] = subpage
	return ant.NewDataFrame(ant.AcknowledgedData, ch.Number, pageBushidoRequestInfo, body)
}

func (p *BushidoHeadUnit) transitionRequest(ch *ant.Channel) ant.Frame {
	var body ant.PageBody
	body[0] = byte(pageBushidoCommand)
	body[1] = byte(p.transitionIdx)
	return ant.NewDataFrame(ant.AcknowledgedData, ch.Number, pageBushidoCommand, body)
}

func (p *BushidoHeadUnit) encodeTargetMode(body ant.PageBody) ant.PageBody {
	snap := p.Data.Get()
	body[0] = pageBushidoTargetMode
	body[1] = byte(snap.Target * 2)
	return body
}

func (p *BushidoHeadUnit) encodeWindResistance(body ant.PageBody) ant.PageBody {
	snap := p.Data.Get()
	body[0] = pageBushidoWindResistance
	if snap.MaximumResistance != nil {
		body[1] = byte(*snap.MaximumResistance)
	}
	return body
}

// HandleBroadcastData advances the choreography on every inbound frame
// from the brake and, on a page-173 "serial" response, drives the
// standalone -> pc -> reset_distance -> paused -> training mode-transition
// sequence forward (spec.md §4.5).
func (p *BushidoHeadUnit) HandleBroadcastData(ch *ant.Channel, pageNumber uint8, body ant.PageBody) (*ant.Frame, error) {
	p.observe(pageNumber, body)
	f := p.nextFrame(ch)
	return &f, nil
}

func (p *BushidoHeadUnit) HandleAcknowledgedData(ch *ant.Channel, pageNumber uint8, body ant.PageBody) (*ant.Frame, error) {
	p.observe(pageNumber, body)
	f := p.nextFrame(ch)
	return &f, nil
}

// OnRXFail lets the head unit speak on its own turn even when the brake's
// transmission was missed, per spec.md §4.5.
func (p *BushidoHeadUnit) OnRXFail(ch *ant.Channel) (*ant.Frame, error) {
	f := p.nextFrame(ch)
	return &f, nil
}

func (p *BushidoHeadUnit) observe(pageNumber uint8, body ant.PageBody) {
	if pageNumber != pageBushidoInfo || body[0] != bushidoSubSerial {
		return
	}
	if p.transitionIdx >= len(headUnitTransition) {
		return
	}
	p.brakeMode = headUnitTransition[p.transitionIdx]
	p.log.WithField("mode", p.brakeMode).Info("brake mode transition confirmed")
	if p.brakeMode == "training" {
		p.pendingRequest = false
		return
	}
	p.transitionIdx++
	p.pendingRequest = true
}

var _ ant.RXFailHandler = (*BushidoHeadUnit)(nil)
