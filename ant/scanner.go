package ant

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/sirupsen/logrus"
)

// scannerColumns is the CSV header, matching scanner.py's DictWriter
// fieldnames plus a checksum_ok column (SPEC_FULL §6.1 supplement: the
// source trusted the OS-level USB read and never surfaced a corrupt-frame
// signal to its log).
var scannerColumns = []string{
	"device_number", "device_type_id", "source", "message", "message_dict",
	"page_number", "page_dict", "timestamp", "checksum_ok",
}

// ScannerProfile is a passive, receive-only Profile that logs every frame
// it observes to CSV instead of acting as a device of its own, grounded on
// scanner.py's ScannerInterface. It is installed via
// Dongle.ConfigureContinuousScan so the dongle forwards every page
// regardless of which channel number it was addressed to.
type ScannerProfile struct {
	writer *csv.Writer
	closer io.Closer

	lastTimestamp map[uint16]uint16
	seen          bool

	log *logrus.Entry
}

// NewScanner wraps w in a CSV writer and writes the header row to it.
func NewScanner(w io.Writer) (*ScannerProfile, error) {
	s := &ScannerProfile{
		writer:        csv.NewWriter(w),
		lastTimestamp: make(map[uint16]uint16),
		log:           logrus.WithField("component", "scanner"),
	}
	if err := s.writer.Write(scannerColumns); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *ScannerProfile) DeviceTypeID() uint8                         { return 0 }
func (s *ScannerProfile) InterleaveReset() uint32                     { return 0 }
func (s *ScannerProfile) ChannelPeriod() uint16                       { return DefaultChannelPeriod }
func (s *ScannerProfile) ChannelFrequency() uint8                     { return ANTPlusChannelFrequency }
func (s *ScannerProfile) SearchTimeout() uint8                        { return 255 }
func (s *ScannerProfile) TransmitPower() uint8                        { return DefaultTransmitPower }
func (s *ScannerProfile) NetworkKey() *uint64                         { k := ANTPlusNetworkKey; return &k }
func (s *ScannerProfile) MasterTransmissionType() TransmissionType    { return 0 }
func (s *ScannerProfile) SlaveTransmissionType() TransmissionType     { return 0 }

// BroadcastMessage never fires: a scanner channel only receives.
func (s *ScannerProfile) BroadcastMessage(ch *Channel) (Frame, error) {
	return Frame{}, ErrUnsupportedPage
}

func (s *ScannerProfile) BroadcastPage(ch *Channel, pageNumber uint8, ackMessageID MessageID) (Frame, error) {
	return Frame{}, ErrUnsupportedPage
}

// RecordExtended logs one frame carrying extended device-ID/timestamp
// metadata, per scanner.py's handle_received_message. deviceNumber and
// deviceTypeID come from the extended channel-id fields; timestamp is the
// dongle's rolling 1/1024s RF event counter.
func (s *ScannerProfile) RecordExtended(deviceNumber uint16, deviceTypeID uint8, frame Frame, checksumOK bool, timestamp uint16) {
	source := "master"
	last, ok := s.lastTimestamp[deviceNumber]
	if ok {
		interval := int(timestamp) - int(last)
		if interval < 0 {
			interval += 1 << 16
		}
		if interval < 100 {
			source = "slave"
		}
		if interval > int(s.ChannelPeriod())+10 {
			s.log.Warn("message interval much greater than channel period, messages may have been missed")
		}
	}
	s.lastTimestamp[deviceNumber] = timestamp

	row := []string{
		strconv.Itoa(int(deviceNumber)),
		strconv.Itoa(int(deviceTypeID)),
		source,
		fmt.Sprintf("% X", frame.Encode()),
		fmt.Sprintf("%+v", frame),
		strconv.Itoa(int(frame.PageNumber)),
		fmt.Sprintf("%+v", frame.Payload),
		strconv.Itoa(int(timestamp)),
		strconv.FormatBool(checksumOK),
	}
	if err := s.writer.Write(row); err != nil {
		s.log.WithError(err).Warn("failed to write scanner row")
	}
	s.writer.Flush()
}

// HandleBroadcastData and HandleAcknowledgedData are no-ops: all logging
// happens in RecordExtended, called directly by the dongle's dispatcher
// before Channel.Handle ever routes into the profile (scanner.py's
// _handle_broadcast_data/_handle_acknowledged_data are empty overrides).
func (s *ScannerProfile) HandleBroadcastData(ch *Channel, pageNumber uint8, body PageBody) (*Frame, error) {
	return nil, nil
}

func (s *ScannerProfile) HandleAcknowledgedData(ch *Channel, pageNumber uint8, body PageBody) (*Frame, error) {
	return nil, nil
}
