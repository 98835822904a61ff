// Package data holds the shared, concurrency-safe records that ant
// profiles read from (when broadcasting) and write to (when receiving).
// Each record embeds its own mutex rather than relying on a caller-shared
// lock, following the source's per-record Data.lock but flattened into Go
// structs instead of a dataclass inheritance chain (REDESIGN FLAGS: "flat
// per-profile structs with an embedded mutex are simpler and avoid
// ambiguous multiple inheritance of mutable state").
package data

import "sync"

// HeartRateData is read by a master HRM channel and written by a slave
// one.
type HeartRateData struct {
	mu sync.Mutex

	HeartRate int // beats per minute; 0xFF means "not yet known"

	// EventTime/EventCount, when both non-nil, are externally supplied
	// (e.g. replayed from a capture) and bypass the internal elapsed-time
	// heart-beat simulation entirely.
	EventTime  *float64
	EventCount *int
}

// Get returns a snapshot of the record under lock.
func (d *HeartRateData) Get() (heartRate int, eventTime *float64, eventCount *int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.HeartRate, d.EventTime, d.EventCount
}

// Set stores a newly received heart rate.
func (d *HeartRateData) Set(heartRate int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.HeartRate = heartRate
}

// SpeedCadence merges the source's separate SpeedData and CadenceData
// records: the SCS profile always reads and writes both together, so
// splitting them into two locks only invites partial updates.
type SpeedCadence struct {
	mu sync.Mutex

	SpeedKmh              float64
	SpeedEventTime        *int
	SpeedRevolutionCount  *int

	Cadence               float64
	CadenceEventTime      *int
	CadenceRevolutionCount *int
}

// Get returns a snapshot of the record under lock.
func (d *SpeedCadence) Get() SpeedCadence {
	d.mu.Lock()
	defer d.mu.Unlock()
	return SpeedCadence{
		SpeedKmh:               d.SpeedKmh,
		SpeedEventTime:         d.SpeedEventTime,
		SpeedRevolutionCount:   d.SpeedRevolutionCount,
		Cadence:                d.Cadence,
		CadenceEventTime:       d.CadenceEventTime,
		CadenceRevolutionCount: d.CadenceRevolutionCount,
	}
}

// SetReceived stores newly decoded event counters together with the
// instantaneous speed/cadence the caller derived from their delta against
// the previous snapshot (see profile/scs.go).
func (d *SpeedCadence) SetReceived(speedKmh, cadence float64, speedEventTime, speedCount, cadenceEventTime, cadenceCount int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.SpeedKmh = speedKmh
	d.Cadence = cadence
	d.SpeedEventTime = &speedEventTime
	d.SpeedRevolutionCount = &speedCount
	d.CadenceEventTime = &cadenceEventTime
	d.CadenceRevolutionCount = &cadenceCount
}

// TrainerTargetMode is the control mode most recently commanded on a
// fitness-equipment channel by acknowledged data (spec.md §4.5).
type TrainerTargetMode int

const (
	TrainerModeNone TrainerTargetMode = iota
	TrainerModeResistance
	TrainerModeTargetPower
	TrainerModeSimulation
)

// TrainerData is the fitness-equipment record shared by FE and Bushido
// brake profiles: sensor readings the master broadcasts, plus the
// target/mode state a slave's acknowledged commands write back.
type TrainerData struct {
	mu sync.Mutex

	ElapsedTime        *float64
	Distance           *float64
	SpeedKmh           float64
	WheelCircumference float64
	HeartRate          int
	Power              float64
	AccumulatedPower   *int
	PowerEventCount    *int
	Cadence            int

	Resistance        float64
	MaximumResistance *int

	BasicSupported      bool
	PowerSupported      bool
	SimulationSupported bool

	Mode   TrainerTargetMode
	Target float64
}

// Get returns a snapshot of the broadcast-relevant fields under lock.
func (d *TrainerData) Get() TrainerData {
	d.mu.Lock()
	defer d.mu.Unlock()
	return TrainerData{
		ElapsedTime:         d.ElapsedTime,
		Distance:            d.Distance,
		SpeedKmh:            d.SpeedKmh,
		WheelCircumference:  d.WheelCircumference,
		HeartRate:           d.HeartRate,
		Power:               d.Power,
		AccumulatedPower:    d.AccumulatedPower,
		PowerEventCount:     d.PowerEventCount,
		Cadence:             d.Cadence,
		Resistance:          d.Resistance,
		MaximumResistance:   d.MaximumResistance,
		BasicSupported:      d.BasicSupported,
		PowerSupported:      d.PowerSupported,
		SimulationSupported: d.SimulationSupported,
		Mode:                d.Mode,
		Target:              d.Target,
	}
}

// SetResistanceTarget records a resistance-mode command received on an
// acknowledged page-48 (spec.md §4.5 supplement).
func (d *TrainerData) SetResistanceTarget(resistancePercent float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Mode = TrainerModeResistance
	d.Target = resistancePercent
}
