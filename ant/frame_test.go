package ant

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestFrameRoundTrip covers Testable Property 1: decompose(compose(id,
// payload)) == (id, payload), and the XOR field verifies.
func TestFrameRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, n := range []int{0, 1, 2, 8, 9, 64, 255} {
		payload := make([]byte, n)
		rng.Read(payload)

		f := Frame{ID: BroadcastData, Payload: payload}
		wire := f.Encode()

		require.True(t, ChecksumValid(wire))

		decoded, err := DecodeFrame(wire)
		require.NoError(t, err)
		assert.Equal(t, f.ID, decoded.ID)
		assert.Equal(t, payload, decoded.Payload)
	}
}

func TestFrameEncodeTooLong(t *testing.T) {
	defer func() {
		assert.NotNil(t, recover())
	}()
	Frame{ID: BroadcastData, Payload: make([]byte, 256)}.Encode()
}

func TestDecodeFrameRejectsBadSync(t *testing.T) {
	_, err := DecodeFrame([]byte{0x00, 0x01, 0x4E, 0xAA, 0x00})
	assert.ErrorIs(t, err, ErrInvalidFrame)
}

func TestDecodeFrameRejectsBadLength(t *testing.T) {
	_, err := DecodeFrame([]byte{Sync, 0x05, 0x4E, 0xAA})
	assert.ErrorIs(t, err, ErrInvalidFrame)
}

func TestDecodeFrameChannelAndPageNumber(t *testing.T) {
	f := NewDataFrame(BroadcastData, 3, 42, PageBody{1, 2, 3, 4, 5, 6, 7})
	wire := f.Encode()

	decoded, err := DecodeFrame(wire)
	require.NoError(t, err)
	assert.Equal(t, uint8(3), decoded.Channel)
	assert.Equal(t, uint8(42), decoded.PageNumber)
}

func TestDecodeFrameBurstChannelAndSeq(t *testing.T) {
	// channel 5 | burst sequence 3 packed into payload[0]'s top bits.
	payload := []byte{5 | (3 << 5), 0xAA}
	f := Frame{ID: BurstData, Payload: payload}
	wire := f.Encode()

	decoded, err := DecodeFrame(wire)
	require.NoError(t, err)
	assert.Equal(t, uint8(5), decoded.Channel)
	assert.Equal(t, uint8(3), decoded.BurstSeq)
}

func TestChecksumValidDetectsCorruption(t *testing.T) {
	wire := NewDataFrame(BroadcastData, 0, 0, PageBody{}).Encode()
	wire[4] ^= 0xFF
	assert.False(t, ChecksumValid(wire))
}
