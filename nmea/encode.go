package nmea

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/skybrush-io/flockwave-gps/coords"
)

// Format builds a complete sentence from a talker, a type and a list
// of fields: the address and fields joined with commas, the checksum
// computed and appended, and the line terminated with CR LF.
func Format(talker, sentenceType string, fields []string) string {
	body := talker + sentenceType
	if len(fields) > 0 {
		body += "," + strings.Join(fields, ",")
	}
	return fmt.Sprintf("$%s*%02X\r\n", body, Checksum(body))
}

// EncodeGGA builds a GGA sentence from a record.  The record must have
// a position; everything else falls back to an empty field.
func (r *FixRecord) EncodeGGA() (string, error) {
	if r.Position == nil {
		return "", &ParseError{Reason: "cannot encode a GGA sentence without a position"}
	}

	talker := r.Talker
	if talker == "" {
		talker = "GP"
	}

	quality := "0"
	if r.Quality != nil {
		quality = ggaQualityDigit(*r.Quality)
	}

	satellites := ""
	if r.SatelliteCount != nil {
		satellites = fmt.Sprintf("%02d", *r.SatelliteCount)
	}

	hdop := ""
	if r.HDOP != nil {
		hdop = strconv.FormatFloat(*r.HDOP, 'f', 1, 64)
	}

	lat, ns := formatLatitude(r.Position.Lat)
	lon, ew := formatLongitude(r.Position.Lon)

	fields := []string{
		formatClock(r.Time),
		lat, ns,
		lon, ew,
		quality,
		satellites,
		hdop,
		fmt.Sprintf("%.2f", r.Position.Alt), "M",
		"", "", // height of geoid and its unit, not carried
		"", "", // age of corrections and station ID, not carried
	}
	return Format(talker, "GGA", fields), nil
}

// EncodeRMC builds an RMC sentence from a record.
func (r *FixRecord) EncodeRMC() (string, error) {
	if r.Position == nil {
		return "", &ParseError{Reason: "cannot encode an RMC sentence without a position"}
	}

	talker := r.Talker
	if talker == "" {
		talker = "GP"
	}

	speed := ""
	if r.SpeedKnots != nil {
		speed = strconv.FormatFloat(*r.SpeedKnots, 'f', 1, 64)
	}
	course := ""
	if r.CourseDegrees != nil {
		course = strconv.FormatFloat(*r.CourseDegrees, 'f', 1, 64)
	}

	date := ""
	if r.Time != nil && r.Time.Year() != 0 {
		date = r.Time.Format("020106")
	}

	lat, ns := formatLatitude(r.Position.Lat)
	lon, ew := formatLongitude(r.Position.Lon)

	fields := []string{
		formatClock(r.Time),
		"A",
		lat, ns,
		lon, ew,
		speed,
		course,
		date,
		"", "", // magnetic variation and its sign, not carried
	}
	return Format(talker, "RMC", fields), nil
}

// GGAFromPosition formats a position as a GGA sentence the way a rover
// reports itself to a VRS-style caster: a plain GPS fix with nominal
// satellite count and dilution values.  A zero time means now.
func GGAFromPosition(position coords.GeodeticCoordinate, t time.Time) string {
	if t.IsZero() {
		t = time.Now().UTC()
	}

	lat, ns := formatLatitude(position.Lat)
	lon, ew := formatLongitude(position.Lon)

	fields := []string{
		fmt.Sprintf("%s.%02d", t.Format("150405"), t.Nanosecond()/int(10*time.Millisecond)),
		lat, ns,
		lon, ew,
		"1",
		"10",
		"1",
		fmt.Sprintf("%.2f", position.Alt), "M",
		"", "",
		"0.0", "0000",
	}
	return Format("GP", "GGA", fields)
}

func ggaQualityDigit(q FixQuality) string {
	switch q {
	case QualityGPS:
		return "1"
	case QualityDGPS:
		return "2"
	case QualityRTKFixed:
		return "4"
	case QualityRTKFloat:
		return "5"
	case QualityDeadReckoning:
		return "6"
	}
	return "0"
}

// formatClock renders the time-of-day field, hhmmss.ss, or an empty
// field when the record has no time.
func formatClock(t *time.Time) string {
	if t == nil {
		return ""
	}
	return fmt.Sprintf("%s.%02d", t.Format("150405"), t.Nanosecond()/int(10*time.Millisecond))
}

// formatLatitude renders a latitude as ddmm.mmmm plus a hemisphere
// letter.
func formatLatitude(lat float64) (string, string) {
	hemisphere := "N"
	if lat < 0 {
		hemisphere = "S"
	}
	degrees, minutes := math.Modf(math.Abs(lat))
	return fmt.Sprintf("%02d%07.4f", int(degrees), minutes*60), hemisphere
}

// formatLongitude renders a longitude as dddmm.mmmm plus a hemisphere
// letter.
func formatLongitude(lon float64) (string, string) {
	hemisphere := "E"
	if lon < 0 {
		hemisphere = "W"
	}
	degrees, minutes := math.Modf(math.Abs(lon))
	return fmt.Sprintf("%03d%07.4f", int(degrees), minutes*60), hemisphere
}
