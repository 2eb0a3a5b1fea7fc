package nmea

import (
	"math"
	"time"

	"github.com/skybrush-io/flockwave-gps/coords"
)

// FixQuality is the quality indicator from a GGA sentence.
type FixQuality int

const (
	QualityNoFix FixQuality = iota
	QualityGPS
	QualityDGPS
	QualityRTKFixed
	QualityRTKFloat
	QualityDeadReckoning
)

func (q FixQuality) String() string {
	switch q {
	case QualityNoFix:
		return "no fix"
	case QualityGPS:
		return "GPS"
	case QualityDGPS:
		return "DGPS"
	case QualityRTKFixed:
		return "RTK fixed"
	case QualityRTKFloat:
		return "RTK float"
	case QualityDeadReckoning:
		return "dead reckoning"
	}
	return "unknown"
}

// samePositionLimit is how close two reported positions must be, in
// degrees, to count as the same position.
const samePositionLimit = 1e-9

// FixRecord is the combined picture of one talker's fix, built up from
// related sentences in the same cycle (typically GGA plus RMC, with
// GSA, GSV and VTG filling in the rest).  A field stays nil until some
// sentence supplies it; a later sentence fills unset fields but never
// silently overwrites a value that is already there.
type FixRecord struct {
	// Talker identifies the receiver the record was built from.
	Talker string

	// Time is the UTC fix time.  A sentence that carries only a time
	// of day yields a year-zero timestamp; the date is filled in when
	// an RMC arrives.
	Time *time.Time

	// Position is the reported position.
	Position *coords.GeodeticCoordinate

	// AltPosition is set when a sentence reports a position that
	// disagrees with Position.  Neither value wins; the caller sees
	// both and applies its own policy.
	AltPosition *coords.GeodeticCoordinate

	// Quality is the GGA fix quality.
	Quality *FixQuality

	// HDOP and VDOP are the dilution of precision values.
	HDOP *float64
	VDOP *float64

	// SatelliteCount is the number of satellites in use.
	SatelliteCount *int

	// SpeedKnots and CourseDegrees are the ground speed and true
	// course from RMC or VTG.
	SpeedKnots    *float64
	CourseDegrees *float64
}

// setTime records a fix time.  A dated timestamp replaces a dateless
// one from an earlier time-of-day-only sentence; otherwise the first
// value sticks.
func (r *FixRecord) setTime(t time.Time, hasDate bool) {
	if r.Time == nil || (hasDate && r.Time.Year() == 0) {
		r.Time = &t
	}
}

// setPosition records a reported position.  A repeat of the current
// position may refine it with an altitude; a different position goes
// into AltPosition so that the conflict stays visible.
func (r *FixRecord) setPosition(p coords.GeodeticCoordinate, hasAltitude bool) {
	if r.Position == nil {
		r.Position = &p
		return
	}
	if math.Abs(r.Position.Lat-p.Lat) <= samePositionLimit &&
		math.Abs(r.Position.Lon-p.Lon) <= samePositionLimit {
		if hasAltitude && r.Position.Alt == 0 {
			r.Position = &p
		}
		return
	}
	r.AltPosition = &p
}

func (r *FixRecord) setQuality(q FixQuality) {
	if r.Quality == nil {
		r.Quality = &q
	}
}

func setFloat(target **float64, value float64) {
	if *target == nil {
		*target = &value
	}
}

func setInt(target **int, value int) {
	if *target == nil {
		*target = &value
	}
}
