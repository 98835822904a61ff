package ant

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestScannerHeaderRow verifies the CSV header is written immediately on
// construction.
func TestScannerHeaderRow(t *testing.T) {
	var buf bytes.Buffer
	_, err := NewScanner(&buf)
	require.NoError(t, err)

	header := strings.Split(strings.TrimSpace(buf.String()), ",")
	assert.Equal(t, scannerColumns, header)
}

// TestScannerClassifiesMasterOnFirstSighting covers spec.md §4.7: with no
// prior timestamp on record, a device is logged as a master.
func TestScannerClassifiesMasterOnFirstSighting(t *testing.T) {
	var buf bytes.Buffer
	s, err := NewScanner(&buf)
	require.NoError(t, err)

	s.RecordExtended(1234, 120, NewDataFrame(BroadcastData, 0, 0, PageBody{}), true, 500)

	rows := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, rows, 2)
	assert.Contains(t, rows[1], "master")
}

// TestScannerClassifiesSlaveOnShortInterval covers the small-interval
// ("< 100") slave-classification rule.
func TestScannerClassifiesSlaveOnShortInterval(t *testing.T) {
	var buf bytes.Buffer
	s, err := NewScanner(&buf)
	require.NoError(t, err)

	frame := NewDataFrame(BroadcastData, 0, 0, PageBody{})
	s.RecordExtended(1234, 120, frame, true, 1000)
	s.RecordExtended(1234, 120, frame, true, 1050) // interval 50 < 100

	rows := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, rows, 3)
	assert.Contains(t, rows[2], "slave")
}

// TestScannerIntervalWrapsAcrossUint16Boundary covers the wrap-aware
// interval math: a timestamp that wraps past 0xFFFF must not be read as a
// huge negative interval.
func TestScannerIntervalWrapsAcrossUint16Boundary(t *testing.T) {
	var buf bytes.Buffer
	s, err := NewScanner(&buf)
	require.NoError(t, err)

	frame := NewDataFrame(BroadcastData, 0, 0, PageBody{})
	s.RecordExtended(1234, 120, frame, true, 0xFFF0)
	s.RecordExtended(1234, 120, frame, true, 0x0010) // wrapped: interval = 0x20 = 32

	rows := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, rows, 3)
	assert.Contains(t, rows[2], "slave", "a wrapped 32-tick interval is still a short (slave) interval")
}

func TestScannerRecordsChecksumValidity(t *testing.T) {
	var buf bytes.Buffer
	s, err := NewScanner(&buf)
	require.NoError(t, err)

	frame := NewDataFrame(BroadcastData, 0, 0, PageBody{})
	s.RecordExtended(1, 1, frame, false, 0)

	assert.Contains(t, buf.String(), "false")
}
