package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slaclau/go-antplus/ant"
	"github.com/slaclau/go-antplus/ant/data"
)

func driveFETX(t *testing.T, ch *ant.Channel) ant.Frame {
	t.Helper()
	frame := ant.Frame{
		ID:      ant.ChannelResponse,
		Channel: ch.Number,
		Payload: []byte{ch.Number, uint8(ant.EventTX), uint8(ant.EventTX)},
	}
	resp, err := ch.Handle(frame)
	require.NoError(t, err)
	require.Len(t, resp, 1)
	return resp[0]
}

// TestFEBroadcastScheduleWindows covers Testable Property 3 over one
// InterleaveReset cycle: pages 80/81 appear at their two fixed windows,
// and 16/25 at the sampled positions before and after the first window.
func TestFEBroadcastScheduleWindows(t *testing.T) {
	fe := NewFE(&data.TrainerData{SpeedKmh: 30, Power: 150, Cadence: 90})
	ch := ant.NewChannel(fe, true, 0)

	var pages []uint8
	for i := 0; i < int(fe.InterleaveReset()); i++ {
		resp := driveFETX(t, ch)
		pages = append(pages, resp.PageNumber)
	}

	assert.Equal(t, uint8(80), pages[64])
	assert.Equal(t, uint8(80), pages[65])
	assert.Equal(t, uint8(81), pages[130])
	assert.Equal(t, uint8(81), pages[131])
	assert.Equal(t, uint8(25), pages[2])
	assert.Equal(t, uint8(25), pages[3])
	assert.Equal(t, uint8(16), pages[0])
	assert.Equal(t, uint8(16), pages[1])
	assert.Equal(t, uint8(16), pages[66])
	assert.Equal(t, uint8(16), pages[67])
	assert.Equal(t, uint8(25), pages[68])
	assert.Equal(t, uint8(25), pages[69])
}

func TestFEResistanceTargetCommand(t *testing.T) {
	d := &data.TrainerData{}
	fe := NewFE(d)
	ch := ant.NewChannel(fe, false, 0)

	var body ant.PageBody
	body[6] = 50 // 25.0% in half-percent units
	_, err := fe.HandleAcknowledgedData(ch, 48, body)
	require.NoError(t, err)

	snap := d.Get()
	assert.Equal(t, data.TrainerModeResistance, snap.Mode)
	assert.Equal(t, 25.0, snap.Target)
}

func TestFEBroadcastPageRejectsUnknownPage(t *testing.T) {
	fe := NewFE(&data.TrainerData{})
	ch := ant.NewChannel(fe, true, 0)

	_, err := fe.BroadcastPage(ch, 99, ant.BroadcastData)
	assert.ErrorIs(t, err, ant.ErrUnsupportedPage)
}

func TestFEHandleAcknowledgedDataIgnoresOtherPages(t *testing.T) {
	d := &data.TrainerData{}
	fe := NewFE(d)
	ch := ant.NewChannel(fe, false, 0)

	var body ant.PageBody
	resp, err := fe.HandleAcknowledgedData(ch, 16, body)
	require.NoError(t, err)
	assert.Nil(t, resp)
	assert.Equal(t, data.TrainerModeNone, d.Get().Mode)
}
