// Package type1005 decodes message type 1005, the stationary RTK
// reference station antenna reference point.  This is the message that
// tells a rover where the base station antenna is, as an ECEF position
// in units of a tenth of a millimetre.
package type1005

import (
	"fmt"

	"github.com/skybrush-io/flockwave-gps/coords"
	"github.com/skybrush-io/flockwave-gps/rtcm/bits"
)

const expectedMessageType = 1005

// coordScale converts the int38 antenna reference point fields, which
// are in 0.0001 m units, to metres.
const coordScale = 0.0001

// Message contains a decoded message of type 1005.
type Message struct {
	// MessageType - uint12 - always 1005.
	MessageType uint `json:"message_type"`

	// StationID - uint12.
	StationID uint `json:"station_id"`

	// ITRFRealisationYear - uint6.
	ITRFRealisationYear uint `json:"itrf_realisation_year"`

	// GPSIndicator, GlonassIndicator and GalileoIndicator say which
	// constellations the station observes.
	GPSIndicator     bool `json:"gps"`
	GlonassIndicator bool `json:"glonass"`
	GalileoIndicator bool `json:"galileo"`

	// ReferenceStationIndicator - single bit.
	ReferenceStationIndicator bool `json:"reference_station"`

	// AntennaRefX/Y/Z are the antenna reference point coordinates in
	// ECEF - int38, scaled integers in 0.0001 m units.
	AntennaRefX int64 `json:"antenna_ref_x"`

	// SingleReceiverOscillator - single bit.
	SingleReceiverOscillator bool `json:"single_receiver_oscillator"`

	// Reserved - single bit.
	Reserved bool `json:"-"`

	AntennaRefY int64 `json:"antenna_ref_y"`

	// QuarterCycleIndicator - two bits.
	QuarterCycleIndicator uint `json:"quarter_cycle_indicator"`

	AntennaRefZ int64 `json:"antenna_ref_z"`
}

// ECEF returns the antenna reference point in metres.
func (m *Message) ECEF() coords.ECEFCoordinate {
	return coords.ECEFCoordinate{
		X: float64(m.AntennaRefX) * coordScale,
		Y: float64(m.AntennaRefY) * coordScale,
		Z: float64(m.AntennaRefZ) * coordScale,
	}
}

// String returns a short readable version of the message.
func (m *Message) String() string {
	p := m.ECEF()
	return fmt.Sprintf("station %d, ECEF (%.4f, %.4f, %.4f)",
		m.StationID, p.X, p.Y, p.Z)
}

// Decode decodes a type 1005 payload (without the frame leader and
// CRC).  It fails with a field-bounds error if the payload is too
// short for the fixed-length field list.
func Decode(payload []byte) (*Message, error) {
	reader := bits.NewReader(payload)

	var message Message
	message.MessageType = readUint(reader, 12)
	if err := reader.Err(); err != nil {
		return nil, err
	}
	if message.MessageType != expectedMessageType {
		return nil, fmt.Errorf("expected message type %d got %d",
			expectedMessageType, message.MessageType)
	}

	message.StationID = readUint(reader, 12)
	message.ITRFRealisationYear = readUint(reader, 6)
	message.GPSIndicator = readFlag(reader)
	message.GlonassIndicator = readFlag(reader)
	message.GalileoIndicator = readFlag(reader)
	message.ReferenceStationIndicator = readFlag(reader)
	message.AntennaRefX = readInt(reader, 38)
	message.SingleReceiverOscillator = readFlag(reader)
	message.Reserved = readFlag(reader)
	message.AntennaRefY = readInt(reader, 38)
	message.QuarterCycleIndicator = readUint(reader, 2)
	message.AntennaRefZ = readInt(reader, 38)

	if err := reader.Err(); err != nil {
		return nil, err
	}
	return &message, nil
}

func readUint(r *bits.Reader, n uint) uint {
	v, _ := r.Uint64(n)
	return uint(v)
}

func readInt(r *bits.Reader, n uint) int64 {
	v, _ := r.Int64(n)
	return v
}

func readFlag(r *bits.Reader) bool {
	v, _ := r.Uint64(1)
	return v == 1
}
