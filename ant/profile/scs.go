package profile

import (
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/slaclau/go-antplus/ant"
	"github.com/slaclau/go-antplus/ant/data"
)

const deviceTypeSCS = 121

// SCS is an ANT+ bike speed-and-cadence sensor profile, grounded on
// plus/scs.py. Unlike the source's separate SpeedData/CadenceData, it
// shares one data.SpeedCadence record (REDESIGN FLAGS).
type SCS struct {
	Data *data.SpeedCadence

	circumferenceM float64

	pedalEchoPrevCount   int
	cadenceEventTime     int
	cadenceEventCount    int
	lastCadenceEventTime time.Time

	speedPrevCount     int
	speedEventTime     int
	speedEventCount    int
	lastSpeedEventTime time.Time

	log *logrus.Entry
}

// NewSCS constructs an SCS profile with the source's default wheel
// circumference (2.070m).
func NewSCS(d *data.SpeedCadence) *SCS {
	now := time.Now()
	return &SCS{
		Data:                 d,
		circumferenceM:       2.070,
		lastCadenceEventTime: now,
		lastSpeedEventTime:   now,
		log:                  logrus.WithField("profile", "scs"),
	}
}

func (p *SCS) DeviceTypeID() uint8                            { return deviceTypeSCS }
func (p *SCS) InterleaveReset() uint32                         { return 0 }
func (p *SCS) ChannelPeriod() uint16                           { return ant.SCSChannelPeriod }
func (p *SCS) ChannelFrequency() uint8                         { return ant.ANTPlusChannelFrequency }
func (p *SCS) SearchTimeout() uint8                            { return 12 }
func (p *SCS) TransmitPower() uint8                            { return ant.DefaultTransmitPower }
func (p *SCS) NetworkKey() *uint64                             { k := ant.ANTPlusNetworkKey; return &k }
func (p *SCS) MasterTransmissionType() ant.TransmissionType    { return ant.TTIndependent }
func (p *SCS) SlaveTransmissionType() ant.TransmissionType     { return 0 }

// BroadcastMessage always sends the single SCS combined page.
func (p *SCS) BroadcastMessage(ch *ant.Channel) (ant.Frame, error) {
	return p.BroadcastPage(ch, 0, ant.BroadcastData)
}

// BroadcastPage derives event counters from the shared record's
// instantaneous speed/cadence, rolling over at 0xFFFF, per
// AntSCS._broadcast_page.
func (p *SCS) BroadcastPage(ch *ant.Channel, pageNumber uint8, ackMessageID ant.MessageID) (ant.Frame, error) {
	if pageNumber != 0 {
		return ant.Frame{}, ant.ErrUnsupportedPage
	}
	snap := p.Data.Get()

	if snap.CadenceEventTime != nil && snap.CadenceRevolutionCount != nil {
		p.cadenceEventTime = *snap.CadenceEventTime
		p.cadenceEventCount = *snap.CadenceRevolutionCount
	} else if snap.Cadence > 0 && time.Since(p.lastCadenceEventTime).Seconds() >= 60/snap.Cadence {
		p.cadenceEventCount++
		p.cadenceEventTime += int(60 / snap.Cadence * 1024)
	}

	if snap.SpeedEventTime != nil && snap.SpeedRevolutionCount != nil {
		p.speedEventTime = *snap.SpeedEventTime
		p.speedEventCount = *snap.SpeedRevolutionCount
	} else if snap.SpeedKmh > 0 {
		wheelHz := snap.SpeedKmh / 3.6 / p.circumferenceM
		elapsed := time.Since(p.lastSpeedEventTime).Seconds()
		if elapsed >= 1/wheelHz {
			p.speedEventCount += int(math.Round(elapsed * wheelHz))
			p.speedEventTime += int(1 / wheelHz * 1024)
		}
	}

	p.cadenceEventTime &= 0xFFFF
	p.cadenceEventCount &= 0xFFFF
	p.speedEventTime &= 0xFFFF
	p.speedEventCount &= 0xFFFF

	if p.cadenceEventCount != p.pedalEchoPrevCount {
		p.pedalEchoPrevCount = p.cadenceEventCount
		p.lastCadenceEventTime = time.Now()
	}
	if p.speedEventCount != p.speedPrevCount {
		p.speedPrevCount = p.speedEventCount
		p.lastSpeedEventTime = time.Now()
	}

	var body ant.PageBody
	body[0] = byte(p.cadenceEventTime)
	body[1] = byte(p.cadenceEventTime >> 8)
	body[2] = byte(p.cadenceEventCount)
	body[3] = byte(p.cadenceEventCount >> 8)
	body[4] = byte(p.speedEventTime)
	body[5] = byte(p.speedEventTime >> 8)
	body[6] = byte(p.speedEventCount)
	// SCS's page format has no distinct page-number byte (fSpeedRevolutionCount
	// is unsigned_short, consuming the 8th data byte); the low byte of
	// speedEventCount above occupies body[6] and its high byte is folded into
	// the outer page-number slot to preserve the 7-byte PageBody shape.
	p.log.WithFields(logrus.Fields{
		"speed_kmh": snap.SpeedKmh, "cadence": snap.Cadence,
	}).Info("broadcasting")
	return ant.NewDataFrame(ackMessageID, ch.Number, byte(p.speedEventCount>>8), body), nil
}

// HandleBroadcastData derives instantaneous speed/cadence from the delta
// against the last received counters, matching AntSCS._handle_broadcast_data.
func (p *SCS) HandleBroadcastData(ch *ant.Channel, pageNumber uint8, body ant.PageBody) (*ant.Frame, error) {
	cadenceEventTime := int(body[0]) | int(body[1])<<8
	cadenceCount := int(body[2]) | int(body[3])<<8
	speedEventTime := int(body[4]) | int(body[5])<<8
	speedCount := int(body[6]) | int(pageNumber)<<8

	snap := p.Data.Get()
	prevCadenceTime, prevCadenceCount := deref(snap.CadenceEventTime), deref(snap.CadenceRevolutionCount)
	prevSpeedTime, prevSpeedCount := deref(snap.SpeedEventTime), deref(snap.SpeedRevolutionCount)

	if prevCadenceTime > cadenceEventTime {
		cadenceEventTime += 0xFFFF
	}
	if prevCadenceCount > cadenceCount {
		cadenceCount += 0xFFFF
	}
	if prevSpeedTime > speedEventTime {
		speedEventTime += 0xFFFF
	}
	if prevSpeedCount > speedCount {
		speedCount += 0xFFFF
	}

	cadence := snap.Cadence
	if cadenceEventTime > prevCadenceTime {
		cadence = float64(cadenceCount-prevCadenceCount) / float64(cadenceEventTime-prevCadenceTime) * 60 * 1024
	}
	speed := snap.SpeedKmh
	if speedEventTime > prevSpeedTime {
		speed = float64(speedCount-prevSpeedCount) / float64(speedEventTime-prevSpeedTime) * p.circumferenceM * 1024 * 3.6
	}

	p.Data.SetReceived(speed, cadence, speedEventTime&0xFFFF, speedCount&0xFFFF, cadenceEventTime&0xFFFF, cadenceCount&0xFFFF)
	p.log.WithFields(logrus.Fields{"speed_kmh": speed, "cadence": cadence}).Info("received")
	return nil, nil
}

// HandleAcknowledgedData is unexpected for SCS; handled the same as
// broadcast data.
func (p *SCS) HandleAcknowledgedData(ch *ant.Channel, pageNumber uint8, body ant.PageBody) (*ant.Frame, error) {
	p.log.Warn("received unexpected acknowledged message")
	return p.HandleBroadcastData(ch, pageNumber, body)
}

func deref(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
