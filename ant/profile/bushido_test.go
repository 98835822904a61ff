package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slaclau/go-antplus/ant"
	"github.com/slaclau/go-antplus/ant/data"
)

// TestBushidoBrakeRoundRobin covers Testable Property 3 extended to the
// vendor brake: pages cycle 16, 1, 2 by interleave mod 3.
func TestBushidoBrakeRoundRobin(t *testing.T) {
	brake := NewBushidoBrake(&data.TrainerData{Target: 40})
	ch := ant.NewChannel(brake, true, 0)

	want := []uint8{16, 1, 2, 16, 1, 2, 16}
	for i, w := range want {
		resp := driveFETX(t, ch)
		assert.Equal(t, w, resp.PageNumber, "interleave %d", i)
	}
}

func TestBushidoBrakeTargetPageReflectsResistance(t *testing.T) {
	brake := NewBushidoBrake(&data.TrainerData{Target: 40})
	ch := ant.NewChannel(brake, true, 0)

	frame, err := brake.BroadcastPage(ch, 16, ant.BroadcastData)
	require.NoError(t, err)
	assert.Equal(t, byte(80), frame.Payload[2])
}

func TestBushidoBrakeRejectsUnknownPage(t *testing.T) {
	brake := NewBushidoBrake(&data.TrainerData{})
	ch := ant.NewChannel(brake, true, 0)

	_, err := brake.BroadcastPage(ch, 99, ant.BroadcastData)
	assert.ErrorIs(t, err, ant.ErrUnsupportedPage)
}

// TestBushidoHeadUnitKeepAliveThenInfoRequests covers ticks 0-3 of the
// choreography described in spec.md §4.5.
func TestBushidoHeadUnitKeepAliveThenInfoRequests(t *testing.T) {
	hu := NewBushidoHeadUnit(&data.TrainerData{})
	ch := ant.NewChannel(hu, false, 0)
	var body ant.PageBody

	resp, err := hu.HandleBroadcastData(ch, 0, body)
	require.NoError(t, err)
	assert.Equal(t, uint8(0), resp.PageNumber)
	assert.Equal(t, uint32(1), hu.Tick())

	resp, err = hu.HandleBroadcastData(ch, 0, body)
	require.NoError(t, err)
	assert.Equal(t, uint8(pageBushidoRequestInfo), resp.PageNumber)
	assert.Equal(t, byte(bushidoSubVersion), resp.Payload[2])

	resp, err = hu.HandleBroadcastData(ch, 0, body)
	require.NoError(t, err)
	assert.Equal(t, byte(bushidoSubBrakeVersion), resp.Payload[2])

	resp, err = hu.HandleBroadcastData(ch, 0, body)
	require.NoError(t, err)
	assert.Equal(t, byte(bushidoSubBrakeSerial), resp.Payload[2])
}

func TestBushidoHeadUnitAlternatesExtendedPagesAfterTick3(t *testing.T) {
	hu := NewBushidoHeadUnit(&data.TrainerData{})
	ch := ant.NewChannel(hu, false, 0)
	var body ant.PageBody

	for i := 0; i < 4; i++ {
		_, err := hu.HandleBroadcastData(ch, 0, body)
		require.NoError(t, err)
	}
	assert.Equal(t, uint32(4), hu.Tick())

	resp, err := hu.HandleBroadcastData(ch, 0, body)
	require.NoError(t, err)
	assert.Equal(t, uint8(pageBushidoExtended), resp.PageNumber)
	assert.Equal(t, byte(pageBushidoTargetMode), resp.Payload[2])

	resp, err = hu.HandleBroadcastData(ch, 0, body)
	require.NoError(t, err)
	assert.Equal(t, byte(pageBushidoWindResistance), resp.Payload[2])
}

// TestBushidoHeadUnitTransitionSequence covers the standalone -> pc ->
// reset_distance -> paused -> training mode-transition choreography driven
// by page-173 serial responses.
func TestBushidoHeadUnitTransitionSequence(t *testing.T) {
	hu := NewBushidoHeadUnit(&data.TrainerData{})
	ch := ant.NewChannel(hu, false, 0)
	var body ant.PageBody

	// Ticks 0-3 always take priority over a pending transition request, so
	// advance past them first.
	for i := 0; i < 4; i++ {
		_, err := hu.HandleBroadcastData(ch, 0, body)
		require.NoError(t, err)
	}
	require.Equal(t, uint32(4), hu.Tick())

	var serialBody ant.PageBody
	serialBody[0] = bushidoSubSerial

	expected := []string{"standalone", "pc", "reset_distance", "paused", "training"}
	for i, want := range expected {
		resp, err := hu.HandleBroadcastData(ch, pageBushidoInfo, serialBody)
		require.NoError(t, err)
		assert.Equal(t, want, hu.BrakeMode())
		if want != "training" {
			assert.Equal(t, uint8(pageBushidoCommand), resp.PageNumber, "step %d", i)
		}
	}
}

func TestBushidoHeadUnitOnRXFailAdvancesChoreography(t *testing.T) {
	hu := NewBushidoHeadUnit(&data.TrainerData{})
	ch := ant.NewChannel(hu, false, 0)

	resp, err := hu.OnRXFail(ch)
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, uint32(1), hu.Tick())
}

func TestBushidoHeadUnitBroadcastMessageUnsupported(t *testing.T) {
	hu := NewBushidoHeadUnit(&data.TrainerData{})
	ch := ant.NewChannel(hu, false, 0)

	_, err := hu.BroadcastMessage(ch)
	assert.ErrorIs(t, err, ant.ErrUnsupportedPage)
}
