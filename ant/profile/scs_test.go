package profile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slaclau/go-antplus/ant"
	"github.com/slaclau/go-antplus/ant/data"
)

// TestSCSSpeedEventCountRoundsNotTruncates covers Scenario S4: at
// 20.5 km/h over a 2.070m wheel, one second of elapsed time yields 2.75
// wheel revolutions, which must round to 3, not truncate to 2.
func TestSCSSpeedEventCountRoundsNotTruncates(t *testing.T) {
	scs := NewSCS(&data.SpeedCadence{SpeedKmh: 20.5})
	ch := ant.NewChannel(scs, true, 0)
	scs.lastSpeedEventTime = time.Now().Add(-time.Second)

	frame, err := scs.BroadcastMessage(ch)
	require.NoError(t, err)

	count := int(frame.Payload[8]) | int(frame.PageNumber)<<8
	assert.Equal(t, 3, count)
}

func TestSCSNoSpeedEventBelowThreshold(t *testing.T) {
	scs := NewSCS(&data.SpeedCadence{SpeedKmh: 20.5})
	ch := ant.NewChannel(scs, true, 0)
	scs.lastSpeedEventTime = time.Now()

	frame, err := scs.BroadcastMessage(ch)
	require.NoError(t, err)
	count := int(frame.Payload[8]) | int(frame.PageNumber)<<8
	assert.Equal(t, 0, count)
}

func TestSCSHandleBroadcastDataDerivesSpeedFromDelta(t *testing.T) {
	d := &data.SpeedCadence{}
	scs := NewSCS(d)
	ch := ant.NewChannel(scs, false, 0)

	var body1 ant.PageBody
	body1[4], body1[5] = 0, 0 // speedEventTime = 0
	body1[6] = 0              // speedCount low byte
	_, err := scs.HandleBroadcastData(ch, 0, body1) // pageNumber high byte = 0
	require.NoError(t, err)

	var body2 ant.PageBody
	eventTime := 1024 // one second later, in 1/1024s units
	body2[4] = byte(eventTime)
	body2[5] = byte(eventTime >> 8)
	body2[6] = 1 // one wheel revolution
	_, err = scs.HandleBroadcastData(ch, 0, body2)
	require.NoError(t, err)

	snap := d.Get()
	expectedSpeed := 1.0 / 1024.0 * 2.070 * 1024 * 3.6
	assert.InDelta(t, expectedSpeed, snap.SpeedKmh, 0.01)
}

func TestSCSBroadcastPageRejectsUnknownPage(t *testing.T) {
	scs := NewSCS(&data.SpeedCadence{})
	ch := ant.NewChannel(scs, true, 0)

	_, err := scs.BroadcastPage(ch, 5, ant.BroadcastData)
	assert.ErrorIs(t, err, ant.ErrUnsupportedPage)
}
