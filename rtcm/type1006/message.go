// Package type1006 decodes message type 1006, which is a type 1005
// station reference point with an antenna height field on the end.
package type1006

import (
	"fmt"

	"github.com/skybrush-io/flockwave-gps/coords"
	"github.com/skybrush-io/flockwave-gps/rtcm/bits"
)

const expectedMessageType = 1006

// coordScale converts the 0.0001 m units of the coordinate and height
// fields to metres.
const coordScale = 0.0001

// Message contains a decoded message of type 1006.  The field layout
// matches type 1005 with a uint16 antenna height appended.
type Message struct {
	MessageType               uint `json:"message_type"`
	StationID                 uint `json:"station_id"`
	ITRFRealisationYear       uint `json:"itrf_realisation_year"`
	GPSIndicator              bool `json:"gps"`
	GlonassIndicator          bool `json:"glonass"`
	GalileoIndicator          bool `json:"galileo"`
	ReferenceStationIndicator bool `json:"reference_station"`

	// AntennaRefX/Y/Z - int38, 0.0001 m units.
	AntennaRefX int64 `json:"antenna_ref_x"`

	SingleReceiverOscillator bool `json:"single_receiver_oscillator"`
	Reserved                 bool `json:"-"`

	AntennaRefY int64 `json:"antenna_ref_y"`

	QuarterCycleIndicator uint `json:"quarter_cycle_indicator"`

	AntennaRefZ int64 `json:"antenna_ref_z"`

	// AntennaHeight - uint16, 0.0001 m units above the reference point.
	AntennaHeight uint `json:"antenna_height"`
}

// ECEF returns the antenna reference point in metres.
func (m *Message) ECEF() coords.ECEFCoordinate {
	return coords.ECEFCoordinate{
		X: float64(m.AntennaRefX) * coordScale,
		Y: float64(m.AntennaRefY) * coordScale,
		Z: float64(m.AntennaRefZ) * coordScale,
	}
}

// HeightMetres returns the antenna height in metres.
func (m *Message) HeightMetres() float64 {
	return float64(m.AntennaHeight) * coordScale
}

// String returns a short readable version of the message.
func (m *Message) String() string {
	p := m.ECEF()
	return fmt.Sprintf("station %d, ECEF (%.4f, %.4f, %.4f), antenna height %.4f",
		m.StationID, p.X, p.Y, p.Z, m.HeightMetres())
}

// Decode decodes a type 1006 payload (without the frame leader and
// CRC).
func Decode(payload []byte) (*Message, error) {
	reader := bits.NewReader(payload)

	var message Message
	messageType, err := reader.Uint64(12)
	if err != nil {
		return nil, err
	}
	message.MessageType = uint(messageType)
	if message.MessageType != expectedMessageType {
		return nil, fmt.Errorf("expected message type %d got %d",
			expectedMessageType, message.MessageType)
	}

	stationID, _ := reader.Uint64(12)
	message.StationID = uint(stationID)
	itrf, _ := reader.Uint64(6)
	message.ITRFRealisationYear = uint(itrf)
	message.GPSIndicator = flag(reader)
	message.GlonassIndicator = flag(reader)
	message.GalileoIndicator = flag(reader)
	message.ReferenceStationIndicator = flag(reader)
	message.AntennaRefX, _ = reader.Int64(38)
	message.SingleReceiverOscillator = flag(reader)
	message.Reserved = flag(reader)
	message.AntennaRefY, _ = reader.Int64(38)
	quarterCycle, _ := reader.Uint64(2)
	message.QuarterCycleIndicator = uint(quarterCycle)
	message.AntennaRefZ, _ = reader.Int64(38)
	height, _ := reader.Uint64(16)
	message.AntennaHeight = uint(height)

	if err := reader.Err(); err != nil {
		return nil, err
	}
	return &message, nil
}

func flag(r *bits.Reader) bool {
	v, _ := r.Uint64(1)
	return v == 1
}
