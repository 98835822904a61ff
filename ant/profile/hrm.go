// Package profile implements the ant+ device profiles named in spec.md
// §4.5: HRM, SCS, FE and the Tacx Bushido brake/head-unit pair. Each type
// satisfies ant.Profile and owns only its page encode/decode and schedule
// logic; the channel state machine, pairing and Page-70 handling live in
// the ant package itself.
package profile

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/slaclau/go-antplus/ant"
	"github.com/slaclau/go-antplus/ant/data"
)

const (
	modelNumberHRM    = 0x33
	serialNumberHRM   = 5975
	hwRevisionHRM     = 1
	swVersionHRM      = 1
	deviceTypeHRM     = 120
	interleaveResetHRM = 204
)

// HRM is an ANT+ heart rate monitor profile, master (the sensor) or slave
// (a head unit pairing to one), grounded on plus/hrm.py.
type HRM struct {
	Data *data.HeartRateData

	networkKey uint64

	pageChangeToggle  byte
	heartBeatCounter  int
	heartBeatEventSec float64
	lastBeatTime      time.Time

	manufacturer uint16
	serialNumber uint16
	hwVersion    byte
	swVersion    byte

	log *logrus.Entry
}

// NewHRM constructs an HRM profile over the ANT+ network key.
func NewHRM(d *data.HeartRateData) *HRM {
	return &HRM{
		Data:         d,
		networkKey:   ant.ANTPlusNetworkKey,
		lastBeatTime: time.Now(),
		log:          logrus.WithField("profile", "hrm"),
	}
}

func (p *HRM) DeviceTypeID() uint8         { return deviceTypeHRM }
func (p *HRM) InterleaveReset() uint32     { return interleaveResetHRM }
func (p *HRM) ChannelPeriod() uint16       { return ant.HRMChannelPeriod }
func (p *HRM) ChannelFrequency() uint8     { return ant.ANTPlusChannelFrequency }
func (p *HRM) SearchTimeout() uint8        { return 12 }
func (p *HRM) TransmitPower() uint8        { return ant.DefaultTransmitPower }
func (p *HRM) NetworkKey() *uint64         { k := p.networkKey; return &k }
func (p *HRM) MasterTransmissionType() ant.TransmissionType {
	return ant.TTIndependent
}
func (p *HRM) SlaveTransmissionType() ant.TransmissionType {
	return 0 // wildcard: pair with any HRM
}

// BroadcastMessage schedules common pages 2/3/6 at fixed interleave
// windows and page 0 (main data) otherwise, matching _broadcast_message.
func (p *HRM) BroadcastMessage(ch *ant.Channel) (ant.Frame, error) {
	i := ch.Interleave()
	switch {
	case i <= 3:
		return p.BroadcastPage(ch, 2, ant.BroadcastData)
	case i >= 68 && i <= 71:
		return p.BroadcastPage(ch, 3, ant.BroadcastData)
	case i >= 136 && i <= 139:
		return p.BroadcastPage(ch, 6, ant.BroadcastData)
	default:
		return p.BroadcastPage(ch, 0, ant.BroadcastData)
	}
}

// BroadcastPage encodes one of the four pages an HRM master ever sends.
func (p *HRM) BroadcastPage(ch *ant.Channel, pageNumber uint8, ackMessageID ant.MessageID) (ant.Frame, error) {
	heartRate, eventTime, eventCount := p.Data.Get()
	if heartRate == 0 {
		heartRate = 0xFF
	}

	if eventTime != nil && eventCount != nil {
		p.heartBeatEventSec = *eventTime
		p.heartBeatCounter = *eventCount
	} else if heartRate > 0 && heartRate != 0xFF {
		if time.Since(p.lastBeatTime).Seconds() >= 60/float64(heartRate) {
			p.heartBeatCounter++
			p.heartBeatEventSec += 60 / float64(heartRate)
			p.lastBeatTime = time.Now()
			if p.heartBeatEventSec >= 64 {
				p.heartBeatEventSec = 0
			}
			if p.heartBeatCounter >= 256 {
				p.heartBeatCounter = 0
			}
		}
	}

	if i := ch.Interleave(); i > 0 && i%4 == 0 {
		p.pageChangeToggle ^= 0x80
	}

	var spec1, spec2, spec3 byte
	switch pageNumber {
	case 2:
		spec1 = ant.ManufacturerGarmin
		spec2 = byte(serialNumberHRM & 0x00FF)
		spec3 = byte((serialNumberHRM & 0xFF00) >> 8)
	case 3:
		spec1 = hwRevisionHRM
		spec2 = swVersionHRM
		spec3 = modelNumberHRM
	case 6:
		spec1, spec2, spec3 = 0xFF, 0, 0
	case 0:
		spec1, spec2, spec3 = 0xFF, 0xFF, 0xFF
	default:
		return ant.Frame{}, ant.ErrUnsupportedPage
	}

	var body ant.PageBody
	body[0] = spec1
	body[1] = spec2
	body[2] = spec3
	beatTime := uint16(1024 * p.heartBeatEventSec)
	body[3] = byte(beatTime)
	body[4] = byte(beatTime >> 8)
	body[5] = byte(p.heartBeatCounter)
	body[6] = byte(heartRate)

	outerPageNumber := p.pageChangeToggle | pageNumber
	p.log.WithFields(logrus.Fields{"page": pageNumber, "heart_rate": heartRate}).Info("broadcasting")
	return ant.NewDataFrame(ackMessageID, ch.Number, outerPageNumber, body), nil
}

// HandleBroadcastData updates the shared heart-rate record and, for
// common pages, the device identity fields.
func (p *HRM) HandleBroadcastData(ch *ant.Channel, pageNumber uint8, body ant.PageBody) (*ant.Frame, error) {
	heartRate := int(body[6])
	p.Data.Set(heartRate)
	switch pageNumber & 0x7F {
	case 2:
		p.manufacturer = uint16(body[0])
		p.serialNumber = uint16(body[1]) | uint16(body[2])<<8
	case 3:
		p.hwVersion = body[0]
		p.swVersion = body[1]
	}
	return nil, nil
}

// HandleAcknowledgedData is unexpected for HRM; it is handled the same as
// broadcast data, per the source's fallback.
func (p *HRM) HandleAcknowledgedData(ch *ant.Channel, pageNumber uint8, body ant.PageBody) (*ant.Frame, error) {
	p.log.Warn("received unexpected acknowledged message")
	return p.HandleBroadcastData(ch, pageNumber, body)
}
