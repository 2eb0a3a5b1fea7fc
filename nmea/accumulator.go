package nmea

import (
	"time"

	gonmea "github.com/adrianmo/go-nmea"

	"github.com/skybrush-io/flockwave-gps/coords"
)

// extractors is the static dispatch table from sentence type to field
// extractor.  A new sentence type is supported by registering an entry
// here; anything without an entry passes through as raw fields.
var extractors = map[string]func(parsed gonmea.Sentence, record *FixRecord){
	gonmea.TypeGGA: extractGGA,
	gonmea.TypeRMC: extractRMC,
	gonmea.TypeGSA: extractGSA,
	gonmea.TypeGSV: extractGSV,
	gonmea.TypeVTG: extractVTG,
}

// Accumulator folds a stream of NMEA sentences into one FixRecord per
// talker.  It is not safe for concurrent use; each stream gets its own
// Accumulator.
type Accumulator struct {
	records  map[string]*FixRecord
	rejected uint64
}

// NewAccumulator creates an empty Accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{records: make(map[string]*FixRecord)}
}

// Feed parses one line and folds it into the talker's record, which it
// returns.  A rejected line counts towards Rejected and yields a
// *ParseError or *ChecksumError; the Accumulator stays usable and the
// next line is processed as if the bad one had never arrived.
func (a *Accumulator) Feed(line string) (*FixRecord, error) {
	sentence, err := Parse(line)
	if err != nil {
		a.rejected++
		return nil, err
	}

	record := a.records[sentence.Talker]
	if record == nil {
		record = &FixRecord{Talker: sentence.Talker}
		a.records[sentence.Talker] = record
	}

	extract, recognised := extractors[sentence.Type]
	if !recognised {
		// Unknown sentence type: the raw fields stay available on the
		// Sentence but there is nothing to fold in.
		return record, nil
	}

	parsed, err := gonmea.Parse(sentence.Raw)
	if err != nil {
		a.rejected++
		return nil, &ParseError{Line: sentence.Raw, Reason: err.Error()}
	}

	extract(parsed, record)
	return record, nil
}

// Fix returns the record accumulated for a talker, or nil if no
// sentence from that talker has been seen.
func (a *Accumulator) Fix(talker string) *FixRecord {
	return a.records[talker]
}

// Rejected returns the number of lines dropped for checksum or parse
// failures.
func (a *Accumulator) Rejected() uint64 {
	return a.rejected
}

// qualityFromGGA maps the GGA quality digit onto a FixQuality.  The
// unmapped digits (PPS, manual, simulator) fold into no-fix.
func qualityFromGGA(digit string) FixQuality {
	switch digit {
	case "1":
		return QualityGPS
	case "2":
		return QualityDGPS
	case "4":
		return QualityRTKFixed
	case "5":
		return QualityRTKFloat
	case "6":
		return QualityDeadReckoning
	}
	return QualityNoFix
}

func extractGGA(parsed gonmea.Sentence, record *FixRecord) {
	gga, ok := parsed.(gonmea.GGA)
	if !ok {
		return
	}

	record.setQuality(qualityFromGGA(gga.FixQuality))

	if gga.Time.Valid {
		record.setTime(clockOnly(gga.Time), false)
	}
	if gga.FixQuality != "0" {
		record.setPosition(coords.GeodeticCoordinate{
			Lat: gga.Latitude,
			Lon: gga.Longitude,
			Alt: gga.Altitude,
		}, true)
	}
	if gga.NumSatellites > 0 {
		setInt(&record.SatelliteCount, int(gga.NumSatellites))
	}
	if gga.HDOP > 0 {
		setFloat(&record.HDOP, gga.HDOP)
	}
}

func extractRMC(parsed gonmea.Sentence, record *FixRecord) {
	rmc, ok := parsed.(gonmea.RMC)
	if !ok {
		return
	}

	if rmc.Time.Valid {
		if rmc.Date.Valid {
			// Two-digit years: 80..99 are the 1900s, the rest the 2000s.
			year := 2000 + rmc.Date.YY
			if rmc.Date.YY >= 80 {
				year = 1900 + rmc.Date.YY
			}
			t := time.Date(year, time.Month(rmc.Date.MM), rmc.Date.DD,
				rmc.Time.Hour, rmc.Time.Minute, rmc.Time.Second,
				rmc.Time.Millisecond*int(time.Millisecond), time.UTC)
			record.setTime(t, true)
		} else {
			record.setTime(clockOnly(rmc.Time), false)
		}
	}

	if rmc.Validity == "A" {
		record.setPosition(coords.GeodeticCoordinate{
			Lat: rmc.Latitude,
			Lon: rmc.Longitude,
		}, false)
	}

	setFloat(&record.SpeedKnots, rmc.Speed)
	setFloat(&record.CourseDegrees, rmc.Course)
}

func extractGSA(parsed gonmea.Sentence, record *FixRecord) {
	gsa, ok := parsed.(gonmea.GSA)
	if !ok {
		return
	}
	if gsa.HDOP > 0 {
		setFloat(&record.HDOP, gsa.HDOP)
	}
	if gsa.VDOP > 0 {
		setFloat(&record.VDOP, gsa.VDOP)
	}
}

func extractGSV(parsed gonmea.Sentence, record *FixRecord) {
	gsv, ok := parsed.(gonmea.GSV)
	if !ok {
		return
	}
	if gsv.NumberSVsInView > 0 {
		setInt(&record.SatelliteCount, int(gsv.NumberSVsInView))
	}
}

func extractVTG(parsed gonmea.Sentence, record *FixRecord) {
	vtg, ok := parsed.(gonmea.VTG)
	if !ok {
		return
	}
	if vtg.GroundSpeedKnots > 0 {
		setFloat(&record.SpeedKnots, vtg.GroundSpeedKnots)
	}
	if vtg.TrueTrack > 0 {
		setFloat(&record.CourseDegrees, vtg.TrueTrack)
	}
}

// clockOnly turns a time-of-day into a year-zero timestamp, so that a
// record fed only from GGA still carries the clock reading.
func clockOnly(t gonmea.Time) time.Time {
	return time.Date(0, time.January, 1,
		t.Hour, t.Minute, t.Second, t.Millisecond*int(time.Millisecond), time.UTC)
}
