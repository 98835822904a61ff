package profile

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/slaclau/go-antplus/ant"
	"github.com/slaclau/go-antplus/ant/data"
)

const (
	modelNumberFE          = 2875
	serialNumberFE         = 19590705
	hwRevisionFE           = 1
	swRevisionMainFE       = 1
	swRevisionSupplementFE = 1
	deviceTypeFE           = 17
	interleaveResetFE      = 132
)

// FE is an ANT+ fitness-equipment (trainer) profile, grounded on
// plus/fe.py. It schedules pages 16/25/80/81 on broadcast and answers
// acknowledged page-48 resistance-target commands (the SPEC_FULL resistance
// supplement — the source's own page-48 handler is reproduced below rather
// than dropped as an unsupported page).
type FE struct {
	Data *data.TrainerData

	eventCount        int
	accumulatedPower  int
	accumulatedTime   float64
	distanceTravelled float64
	lastTick          time.Time

	log *logrus.Entry
}

// NewFE constructs an FE profile.
func NewFE(d *data.TrainerData) *FE {
	return &FE{Data: d, lastTick: time.Now(), log: logrus.WithField("profile", "fe")}
}

func (p *FE) DeviceTypeID() uint8        { return deviceTypeFE }
func (p *FE) InterleaveReset() uint32    { return interleaveResetFE }
func (p *FE) ChannelPeriod() uint16      { return ant.DefaultChannelPeriod }
func (p *FE) ChannelFrequency() uint8    { return ant.ANTPlusChannelFrequency }
func (p *FE) SearchTimeout() uint8       { return 12 }
func (p *FE) TransmitPower() uint8       { return ant.DefaultTransmitPower }
func (p *FE) NetworkKey() *uint64        { k := ant.ANTPlusNetworkKey; return &k }
func (p *FE) MasterTransmissionType() ant.TransmissionType {
	return ant.TTIndependent | ant.TTGlobalPages
}
func (p *FE) SlaveTransmissionType() ant.TransmissionType { return 0 }

// BroadcastMessage interleaves pages 16 (general FE data) and 25 (specific
// trainer data), with pages 80/81 (common manufacturer/product info) at two
// fixed windows, per AntFE._broadcast_message.
func (p *FE) BroadcastMessage(ch *ant.Channel) (ant.Frame, error) {
	i := ch.Interleave()
	switch {
	case i == 64 || i == 65:
		return p.BroadcastPage(ch, 80, ant.BroadcastData)
	case i == 130 || i == 131:
		return p.BroadcastPage(ch, 81, ant.BroadcastData)
	case i < 64 && (i%4 == 2 || i%4 == 3):
		return p.BroadcastPage(ch, 25, ant.BroadcastData)
	case i > 65 && (i%4 == 0 || i%4 == 1):
		return p.BroadcastPage(ch, 25, ant.BroadcastData)
	default:
		return p.BroadcastPage(ch, 16, ant.BroadcastData)
	}
}

// BroadcastPage encodes one of pages 16/25/80/81; any other request (e.g.
// from a page-70 request for an unsupported page) is rejected.
func (p *FE) BroadcastPage(ch *ant.Channel, pageNumber uint8, ackMessageID ant.MessageID) (ant.Frame, error) {
	snap := p.Data.Get()

	accumulatedPower := p.accumulatedPower
	eventCount := p.eventCount
	if snap.AccumulatedPower == nil || snap.PowerEventCount == nil {
		accumulatedPower = p.accumulatedPower + int(snap.Power)
		eventCount = p.eventCount + 1
	}

	now := time.Now()
	elapsedTime := p.accumulatedTime + now.Sub(p.lastTick).Seconds()
	if snap.ElapsedTime != nil {
		elapsedTime = *snap.ElapsedTime
	}
	p.lastTick = now

	distance := p.distanceTravelled + (snap.SpeedKmh/3.6)*(elapsedTime-p.accumulatedTime)
	if snap.Distance != nil {
		distance = *snap.Distance
	}

	power := int(snap.Power + 0.5)
	accumulatedPower &= 0xFFFF
	eventCount &= 0xFF

	var body ant.PageBody
	switch pageNumber {
	case 16:
		body[0] = 0x19 // EquipmentType: trainer
		body[1] = byte(int(elapsedTime*4) & 0xFF)
		capabilities := byte(0b00110011) // HRM | FEstate=IN_USE, no virtual-speed bit
		if distance > 0 {
			body[2] = byte(int(distance) & 0xFF)
			capabilities |= 0x04 // distance travelled enabled
		}
		speedMM := uint16(snap.SpeedKmh / 3.6 * 1000)
		body[3] = byte(speedMM)
		body[4] = byte(speedMM >> 8)
		body[5] = byte(snap.HeartRate)
		body[6] = capabilities
	case 25:
		body[0] = byte(eventCount)
		body[1] = byte(snap.Cadence)
		body[2] = byte(accumulatedPower)
		body[3] = byte(accumulatedPower >> 8)
		body[4] = byte(power)
		body[5] = byte(power >> 8)
		body[6] = 0x30
	case 80:
		frame := ant.NewDataFrame(ackMessageID, ch.Number, 80, ant.EncodePage80(ant.ManufacturerInfo{
			HWRevision:     hwRevisionFE,
			ManufacturerID: ant.ManufacturerTacx,
			ModelNumber:    modelNumberFE,
		}))
		p.commit(accumulatedPower, eventCount, elapsedTime, distance)
		return frame, nil
	case 81:
		frame := ant.NewDataFrame(ackMessageID, ch.Number, 81, ant.EncodePage81(ant.ProductInfo{
			SWRevisionSupplemental: swRevisionSupplementFE,
			SWRevisionMain:         swRevisionMainFE,
			SerialNumber:           serialNumberFE,
		}))
		p.commit(accumulatedPower, eventCount, elapsedTime, distance)
		return frame, nil
	default:
		return ant.Frame{}, ant.ErrUnsupportedPage
	}

	p.commit(accumulatedPower, eventCount, elapsedTime, distance)
	p.log.WithField("page", pageNumber).Info("broadcasting")
	return ant.NewDataFrame(ackMessageID, ch.Number, pageNumber, body), nil
}

func (p *FE) commit(accumulatedPower, eventCount int, elapsedTime, distance float64) {
	p.accumulatedPower = accumulatedPower
	p.eventCount = eventCount
	p.accumulatedTime = elapsedTime
	p.distanceTravelled = distance
}

// HandleBroadcastData is unexpected: an FE master never receives
// broadcast data from its slave.
func (p *FE) HandleBroadcastData(ch *ant.Channel, pageNumber uint8, body ant.PageBody) (*ant.Frame, error) {
	p.log.WithField("page", pageNumber).Warn("received unknown page")
	return nil, nil
}

// HandleAcknowledgedData implements the page-48 resistance-target command
// (SPEC_FULL §6.5 supplement: AntFE._handle_acknowledged_data in the
// source sets basic resistance mode from half-percent units).
func (p *FE) HandleAcknowledgedData(ch *ant.Channel, pageNumber uint8, body ant.PageBody) (*ant.Frame, error) {
	if pageNumber != 48 {
		p.log.WithField("page", pageNumber).Warn("received unknown acknowledged page")
		return nil, nil
	}
	resistance := float64(body[6]) / 2
	p.Data.SetResistanceTarget(resistance)
	p.log.WithField("resistance_percent", resistance).Info("switching to resistance mode")
	return nil, nil
}
