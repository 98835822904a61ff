package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slaclau/go-antplus/ant"
	"github.com/slaclau/go-antplus/ant/data"
)

func driveEventTX(t *testing.T, ch *ant.Channel) ant.Frame {
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

// TestHRMToggleClearAtInterleaveZero covers Scenario S2: the first page a
// newly opened master sends (interleave 0) carries no page-change toggle
// bit.
func TestHRMToggleClearAtInterleaveZero(t *testing.T) {
	hrm := NewHRM(&data.HeartRateData{HeartRate: 65})
	ch := ant.NewChannel(hrm, true, 0)

	resp := driveEventTX(t, ch)
	assert.Equal(t, uint8(2), resp.PageNumber, "interleave 0 schedules common page 2")
	assert.Zero(t, resp.PageNumber&0x80)
}

// TestHRMToggleSetAtInterleave68 covers Scenario S3: by interleave 68 the
// toggle has flipped an odd number of times (17, at interleaves 4..68) and
// is set.
func TestHRMToggleSetAtInterleave68(t *testing.T) {
	hrm := NewHRM(&data.HeartRateData{HeartRate: 65})
	ch := ant.NewChannel(hrm, true, 0)

	var resp ant.Frame
	for i := 0; i < 69; i++ {
		resp = driveEventTX(t, ch)
	}
	assert.Equal(t, uint32(69), ch.Interleave())
	assert.Equal(t, uint8(3)|0x80, resp.PageNumber, "interleave 68 schedules common page 3 with toggle set")
}

func TestHRMBroadcastMessageWindows(t *testing.T) {
	hrm := NewHRM(&data.HeartRateData{HeartRate: 70})
	ch := ant.NewChannel(hrm, true, 0)

	pages := make(map[uint8]int)
	for i := 0; i < int(hrm.InterleaveReset()); i++ {
		resp := driveEventTX(t, ch)
		pages[resp.PageNumber&0x7F]++
	}
	assert.Greater(t, pages[2], 0)
	assert.Greater(t, pages[3], 0)
	assert.Greater(t, pages[6], 0)
	assert.Greater(t, pages[0], 0)
}

func TestHRMHandleBroadcastDataUpdatesSharedRecord(t *testing.T) {
	d := &data.HeartRateData{}
	hrm := NewHRM(d)
	ch := ant.NewChannel(hrm, false, 0)

	var body ant.PageBody
	body[6] = 142
	_, err := hrm.HandleBroadcastData(ch, 0, body)
	require.NoError(t, err)

	got, _, _ := d.Get()
	assert.Equal(t, 142, got)
}
