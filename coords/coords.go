// Package coords contains the coordinate types used throughout the
// flockwave-gps software and the conversions between them: geodetic
// (latitude, longitude and ellipsoidal height), Earth-Centred
// Earth-Fixed (ECEF) Cartesian and local east/north/up tangent planes.
// All conversions work on the WGS84 reference ellipsoid.
//
// The types are plain value types.  They are freely copyable, they can
// be compared with == and used as map keys, and all the functions here
// are pure, so everything in this package is safe to use from many
// goroutines at once without locking.
package coords

import (
	"encoding/json"
	"errors"
	"math"
)

// WGS84 ellipsoid parameters.

// SemiMajorAxis is the WGS84 semi-major axis a in metres.
const SemiMajorAxis = 6378137.0

// Flattening is the WGS84 flattening f.
const Flattening = 1.0 / 298.257223563

// EccentricitySquared is the first eccentricity squared, e2 = f(2-f).
const EccentricitySquared = Flattening * (2 - Flattening)

// degToRad converts degrees to radians.
const degToRad = math.Pi / 180

// radToDeg converts radians to degrees.
const radToDeg = 180 / math.Pi

// convergenceLimit is the tolerance (in radians) between successive
// latitude estimates at which the ECEF to geodetic conversion is
// considered to have converged.
const convergenceLimit = 1e-11

// maxIterations bounds the ECEF to geodetic refinement loop.
const maxIterations = 10

// ErrNoConvergence is returned by ToGeodetic when the iterative
// refinement fails to converge within the iteration bound.  That only
// happens for degenerate input such as a point at the centre of the
// earth.
var ErrNoConvergence = errors.New("coords: latitude iteration did not converge")

// GeodeticCoordinate is a position given as latitude and longitude in
// degrees and ellipsoidal height in metres.  Latitude is in the range
// [-90,90].  Longitude is normalised to (-180,180] by NewGeodetic.
type GeodeticCoordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
	Alt float64 `json:"alt"`
}

// NewGeodetic creates a geodetic coordinate with the longitude
// normalised to (-180,180].
func NewGeodetic(lat, lon, alt float64) GeodeticCoordinate {
	return GeodeticCoordinate{Lat: lat, Lon: NormalizeLon(lon), Alt: alt}
}

// NormalizeLon brings a longitude in degrees into the range (-180,180].
func NormalizeLon(lon float64) float64 {
	lon = math.Mod(lon, 360)
	if lon > 180 {
		lon -= 360
	} else if lon <= -180 {
		lon += 360
	}
	return lon
}

// ECEFCoordinate is a position in the Earth-Centred Earth-Fixed
// Cartesian frame.  The components are always metres internally.  The
// JSON form carries each axis as an integer number of millimetres, so
// a round trip through JSON may lose sub-millimetre precision.
type ECEFCoordinate struct {
	X float64
	Y float64
	Z float64
}

// ecefJSON is the wire form of an ECEF coordinate - integer millimetres.
type ecefJSON struct {
	X int64 `json:"x"`
	Y int64 `json:"y"`
	Z int64 `json:"z"`
}

// MarshalJSON encodes the coordinate with each axis rounded to a whole
// number of millimetres.
func (e ECEFCoordinate) MarshalJSON() ([]byte, error) {
	return json.Marshal(ecefJSON{
		X: int64(math.Round(e.X * 1000)),
		Y: int64(math.Round(e.Y * 1000)),
		Z: int64(math.Round(e.Z * 1000)),
	})
}

// UnmarshalJSON decodes the millimetre wire form back into metres.
func (e *ECEFCoordinate) UnmarshalJSON(data []byte) error {
	var wire ecefJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	e.X = float64(wire.X) / 1000
	e.Y = float64(wire.Y) / 1000
	e.Z = float64(wire.Z) / 1000
	return nil
}

// Distance returns the straight-line distance in metres between this
// position and another ECEF position.
func (e ECEFCoordinate) Distance(other ECEFCoordinate) float64 {
	dx := e.X - other.X
	dy := e.Y - other.Y
	dz := e.Z - other.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// primeVerticalRadius computes N(lat), the prime vertical radius of
// curvature, for a latitude given in radians.
func primeVerticalRadius(latRad float64) float64 {
	s := math.Sin(latRad)
	return SemiMajorAxis / math.Sqrt(1-EccentricitySquared*s*s)
}

// ToECEF converts the geodetic coordinate to the ECEF frame using the
// closed-form expression.  It always succeeds for finite input.
func (g GeodeticCoordinate) ToECEF() ECEFCoordinate {
	latRad := g.Lat * degToRad
	lonRad := g.Lon * degToRad
	n := primeVerticalRadius(latRad)
	cosLat := math.Cos(latRad)
	return ECEFCoordinate{
		X: (n + g.Alt) * cosLat * math.Cos(lonRad),
		Y: (n + g.Alt) * cosLat * math.Sin(lonRad),
		Z: (n*(1-EccentricitySquared) + g.Alt) * math.Sin(latRad),
	}
}

// ToGeodetic converts the ECEF coordinate back to geodetic form by
// successive approximation of the latitude.  The loop stops when two
// successive latitude estimates agree to within 1e-11 radians, which
// normally takes four or five rounds.  If the estimates are still
// moving after ten rounds the input is degenerate and ErrNoConvergence
// is returned.
func (e ECEFCoordinate) ToGeodetic() (GeodeticCoordinate, error) {
	p := math.Hypot(e.X, e.Y)
	lonRad := math.Atan2(e.Y, e.X)

	// First estimate ignores the flattening of the ellipsoid.
	latRad := math.Atan2(e.Z, p*(1-EccentricitySquared))

	var n, alt float64
	converged := false
	for i := 0; i < maxIterations; i++ {
		n = primeVerticalRadius(latRad)
		sinLat := math.Sin(latRad)
		cosLat := math.Cos(latRad)
		if math.Abs(cosLat) > 1e-10 {
			alt = p/cosLat - n
		} else {
			// Near the poles p/cos(lat) is unusable; derive the
			// height from the polar axis instead.
			alt = e.Z/sinLat - n*(1-EccentricitySquared)
		}
		next := math.Atan2(e.Z, p*(1-EccentricitySquared*n/(n+alt)))
		if math.Abs(next-latRad) < convergenceLimit {
			latRad = next
			converged = true
			break
		}
		latRad = next
	}
	if !converged {
		return GeodeticCoordinate{}, ErrNoConvergence
	}

	return GeodeticCoordinate{
		Lat: latRad * radToDeg,
		Lon: NormalizeLon(lonRad * radToDeg),
		Alt: alt,
	}, nil
}

// ENUOffset is a displacement in the local tangent plane of some
// origin: metres east, north and up.
type ENUOffset struct {
	East  float64
	North float64
	Up    float64
}

// ToENU expresses the position of point in the local east/north/up
// frame of the origin.  The ECEF delta between the two points is
// rotated by the matrix derived from the origin's latitude and
// longitude.  This is the usual way to compute short RTK baselines.
func ToENU(origin, point GeodeticCoordinate) ENUOffset {
	o := origin.ToECEF()
	p := point.ToECEF()
	dx := p.X - o.X
	dy := p.Y - o.Y
	dz := p.Z - o.Z

	latRad := origin.Lat * degToRad
	lonRad := origin.Lon * degToRad
	sinLat, cosLat := math.Sincos(latRad)
	sinLon, cosLon := math.Sincos(lonRad)

	return ENUOffset{
		East:  -sinLon*dx + cosLon*dy,
		North: -sinLat*cosLon*dx - sinLat*sinLon*dy + cosLat*dz,
		Up:    cosLat*cosLon*dx + cosLat*sinLon*dy + sinLat*dz,
	}
}

// FromENU is the inverse of ToENU: it resolves an east/north/up offset
// from the given origin back into a geodetic coordinate.  It can fail
// with ErrNoConvergence for degenerate offsets (for example one that
// lands at the centre of the earth).
func FromENU(origin GeodeticCoordinate, offset ENUOffset) (GeodeticCoordinate, error) {
	latRad := origin.Lat * degToRad
	lonRad := origin.Lon * degToRad
	sinLat, cosLat := math.Sincos(latRad)
	sinLon, cosLon := math.Sincos(lonRad)

	// Transpose of the rotation used by ToENU.
	dx := -sinLon*offset.East - sinLat*cosLon*offset.North + cosLat*cosLon*offset.Up
	dy := cosLon*offset.East - sinLat*sinLon*offset.North + cosLat*sinLon*offset.Up
	dz := cosLat*offset.North + sinLat*offset.Up

	o := origin.ToECEF()
	return ECEFCoordinate{X: o.X + dx, Y: o.Y + dy, Z: o.Z + dz}.ToGeodetic()
}

// meanEarthRadius is the mean earth radius in metres, used by the
// great-circle functions.
const meanEarthRadius = 6371000.0

// DistanceAndBearing returns the haversine great-circle distance in
// metres between two geodetic points and the initial bearing in
// degrees, in the range [0,360).  Altitude is ignored.
func DistanceAndBearing(a, b GeodeticCoordinate) (distance, bearing float64) {
	lat1 := a.Lat * degToRad
	lat2 := b.Lat * degToRad
	dLat := (b.Lat - a.Lat) * degToRad
	dLon := (b.Lon - a.Lon) * degToRad

	sinHalfLat := math.Sin(dLat / 2)
	sinHalfLon := math.Sin(dLon / 2)
	h := sinHalfLat*sinHalfLat +
		math.Cos(lat1)*math.Cos(lat2)*sinHalfLon*sinHalfLon
	distance = 2 * meanEarthRadius * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	bearing = math.Atan2(y, x) * radToDeg
	if bearing < 0 {
		bearing += 360
	}
	return distance, bearing
}
