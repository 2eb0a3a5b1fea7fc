// Package msm decodes Multiple Signal Messages (MSM), the observation
// messages that carry a base station's view of the satellite signals.
// MSM4 and MSM7 are handled; an MSM4 is simply a lower resolution MSM7
// so the two share a decoder that is told which field widths to use.
//
// An MSM is a header (station, epoch, flags, then satellite, signal
// and cell masks) followed by one block of satellite cells and one
// block of signal cells.  Each block is stored field by field - all
// the rough ranges, then all the extended info values, and so on -
// rather than cell by cell, which is why the decoder fills arrays one
// field at a time.
package msm

import (
	"fmt"

	"github.com/skybrush-io/flockwave-gps/rtcm/bits"
)

// Format selects the field widths used by the decoder.
type Format int

const (
	// FormatMSM4 is the lower resolution format, precise enough for
	// 2 cm positioning.
	FormatMSM4 Format = 4
	// FormatMSM7 is the full resolution format.
	FormatMSM7 Format = 7
)

// InvalidRoughRange is the whole-millisecond rough range value that
// marks a satellite cell as invalid.
const InvalidRoughRange = 0xff

// Satellite is one satellite cell.  The rough range is the signal
// transit time in milliseconds, split into an 8-bit whole part and a
// 10-bit fractional part in 1/1024 ms units.
type Satellite struct {
	// ID is the satellite ID within its constellation, counted from 1.
	ID uint

	// RangeWholeMillis is the whole part of the rough range.  The
	// value InvalidRoughRange means the range is unknown.
	RangeWholeMillis uint

	// RangeFractionalMillis is the fractional part in 1/1024 ms.
	RangeFractionalMillis uint

	// ExtendedInfo - MSM7 only, 4 bits.
	ExtendedInfo uint

	// PhaseRangeRate - MSM7 only, int14, metres per second.
	PhaseRangeRate int64
}

// Signal is one signal cell: the fine-grained deltas that refine the
// rough range of the satellite the signal belongs to.  The deltas are
// kept raw, in the units the message uses.
type Signal struct {
	// SatelliteID is the satellite the signal was observed from.
	SatelliteID uint

	// SignalID identifies the band and modulation within the
	// constellation's signal table.
	SignalID uint

	// RangeDelta refines the rough range - int15 in an MSM4, int20 in
	// an MSM7.
	RangeDelta int64

	// PhaseRangeDelta - int22 in an MSM4, int24 in an MSM7.
	PhaseRangeDelta int64

	// LockTimeIndicator - uint4 in an MSM4, uint10 in an MSM7.
	LockTimeIndicator uint

	// HalfCycleAmbiguity - single bit.
	HalfCycleAmbiguity bool

	// CNR is the carrier-to-noise ratio - uint6 in an MSM4, uint10 in
	// an MSM7.
	CNR uint

	// PhaseRangeRateDelta - MSM7 only, int15.
	PhaseRangeRateDelta int64
}

// Message is a decoded MSM.
type Message struct {
	Format Format

	// MessageType - uint12.
	MessageType uint

	// StationID - uint12.
	StationID uint

	// EpochTime is the 30-bit timestamp: milliseconds since the start
	// of the constellation's week, except for Glonass where it is a
	// 3-bit day and a 27-bit millisecond of day.
	EpochTime uint

	// MultipleMessage is set when more messages for the same epoch
	// follow.
	MultipleMessage bool

	// IssueOfDataStation - uint3.
	IssueOfDataStation uint

	// ClockSteeringIndicator - uint2.
	ClockSteeringIndicator uint

	// ExternalClockIndicator - uint2.
	ExternalClockIndicator uint

	// SmoothingIndicator and SmoothingInterval describe the
	// divergence-free smoothing applied by the station.
	SmoothingIndicator bool
	SmoothingInterval  uint

	// Satellites holds one entry per bit set in the satellite mask.
	Satellites []Satellite

	// Signals holds one entry per bit set in the cell mask.
	Signals []Signal
}

// String gives a short summary for logging.
func (m *Message) String() string {
	return fmt.Sprintf("station %d, epoch %d, %d satellites, %d signals",
		m.StationID, m.EpochTime, len(m.Satellites), len(m.Signals))
}

// Decode decodes an MSM payload (without the frame leader and CRC) in
// the given format.  A payload whose masks promise more cells than it
// contains fails with a field-bounds error.
func Decode(payload []byte, format Format) (*Message, error) {
	reader := bits.NewReader(payload)

	message := Message{Format: format}

	messageType, err := reader.Uint64(12)
	if err != nil {
		return nil, err
	}
	message.MessageType = uint(messageType)

	stationID, _ := reader.Uint64(12)
	message.StationID = uint(stationID)
	epoch, _ := reader.Uint64(30)
	message.EpochTime = uint(epoch)
	multiple, _ := reader.Uint64(1)
	message.MultipleMessage = multiple == 1
	iods, _ := reader.Uint64(3)
	message.IssueOfDataStation = uint(iods)
	reader.Skip(7) // reserved
	clockSteering, _ := reader.Uint64(2)
	message.ClockSteeringIndicator = uint(clockSteering)
	externalClock, _ := reader.Uint64(2)
	message.ExternalClockIndicator = uint(externalClock)
	smoothing, _ := reader.Uint64(1)
	message.SmoothingIndicator = smoothing == 1
	smoothingInterval, _ := reader.Uint64(3)
	message.SmoothingInterval = uint(smoothingInterval)

	satelliteMask, _ := reader.Uint64(64)
	signalMask, _ := reader.Uint64(32)
	if err := reader.Err(); err != nil {
		return nil, err
	}

	satelliteIDs := maskedIDs(satelliteMask, 64)
	signalIDs := maskedIDs(signalMask, 32)

	// The cell mask has one bit per satellite/signal combination and
	// is at most 64 bits long by the standard.
	cellCount := uint(len(satelliteIDs) * len(signalIDs))
	if cellCount > 64 {
		return nil, fmt.Errorf("cell mask needs %d bits, the maximum is 64", cellCount)
	}
	cellMask, err := reader.Uint64(cellCount)
	if err != nil {
		return nil, err
	}

	if err := decodeSatellites(reader, &message, satelliteIDs); err != nil {
		return nil, err
	}
	if err := decodeSignals(reader, &message, satelliteIDs, signalIDs, cellMask, cellCount); err != nil {
		return nil, err
	}

	return &message, nil
}

// maskedIDs converts a left-aligned mask into the list of IDs whose
// bits are set.  Bit 0 (the most significant) corresponds to ID 1.
func maskedIDs(mask uint64, width uint) []uint {
	ids := make([]uint, 0, 8)
	for i := uint(0); i < width; i++ {
		if mask&(1<<(width-1-i)) != 0 {
			ids = append(ids, i+1)
		}
	}
	return ids
}

// decodeSatellites reads the satellite cell block.  The block is laid
// out field by field across all satellites.
func decodeSatellites(reader *bits.Reader, message *Message, satelliteIDs []uint) error {
	satellites := make([]Satellite, len(satelliteIDs))
	for i, id := range satelliteIDs {
		satellites[i].ID = id
	}

	for i := range satellites {
		v, _ := reader.Uint64(8)
		satellites[i].RangeWholeMillis = uint(v)
	}
	if message.Format == FormatMSM7 {
		for i := range satellites {
			v, _ := reader.Uint64(4)
			satellites[i].ExtendedInfo = uint(v)
		}
	}
	for i := range satellites {
		v, _ := reader.Uint64(10)
		satellites[i].RangeFractionalMillis = uint(v)
	}
	if message.Format == FormatMSM7 {
		for i := range satellites {
			v, _ := reader.Int64(14)
			satellites[i].PhaseRangeRate = v
		}
	}

	if err := reader.Err(); err != nil {
		return err
	}
	message.Satellites = satellites
	return nil
}

// decodeSignals reads the signal cell block for the cells whose bit is
// set in the cell mask.  Field widths differ between MSM4 and MSM7.
func decodeSignals(reader *bits.Reader, message *Message,
	satelliteIDs, signalIDs []uint, cellMask uint64, cellCount uint) error {

	signals := make([]Signal, 0, cellCount)
	for cell := uint(0); cell < cellCount; cell++ {
		if cellMask&(1<<(cellCount-1-cell)) == 0 {
			continue
		}
		signals = append(signals, Signal{
			SatelliteID: satelliteIDs[cell/uint(len(signalIDs))],
			SignalID:    signalIDs[cell%uint(len(signalIDs))],
		})
	}

	msm7 := message.Format == FormatMSM7

	rangeDeltaBits := uint(15)
	phaseDeltaBits := uint(22)
	lockTimeBits := uint(4)
	cnrBits := uint(6)
	if msm7 {
		rangeDeltaBits = 20
		phaseDeltaBits = 24
		lockTimeBits = 10
		cnrBits = 10
	}

	for i := range signals {
		v, _ := reader.Int64(rangeDeltaBits)
		signals[i].RangeDelta = v
	}
	for i := range signals {
		v, _ := reader.Int64(phaseDeltaBits)
		signals[i].PhaseRangeDelta = v
	}
	for i := range signals {
		v, _ := reader.Uint64(lockTimeBits)
		signals[i].LockTimeIndicator = uint(v)
	}
	for i := range signals {
		v, _ := reader.Uint64(1)
		signals[i].HalfCycleAmbiguity = v == 1
	}
	for i := range signals {
		v, _ := reader.Uint64(cnrBits)
		signals[i].CNR = uint(v)
	}
	if msm7 {
		for i := range signals {
			v, _ := reader.Int64(15)
			signals[i].PhaseRangeRateDelta = v
		}
	}

	if err := reader.Err(); err != nil {
		return err
	}
	message.Signals = signals
	return nil
}
