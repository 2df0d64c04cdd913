// Package geodesy converts polar sweep samples (bearing, distance) from a fixed
// origin into geographic coordinates on a spherical earth.
package geodesy

import "math"

// EarthRadius is the mean earth radius in meters.
const EarthRadius = 6371e3

// LatLng is a geographic position in degrees.
type LatLng struct {
	Lat, Lng float64
}

// DestinationPoint returns the point reached by travelling distanceM meters
// from origin along the great circle with the given initial bearing
// (degrees clockwise from north). The result is rounded to 6 decimal places.
func DestinationPoint(origin LatLng, bearingDeg, distanceM float64) LatLng {
	lat1 := origin.Lat * math.Pi / 180
	lng1 := origin.Lng * math.Pi / 180
	brng := bearingDeg * math.Pi / 180
	d := distanceM / EarthRadius

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(d) + math.Cos(lat1)*math.Sin(d)*math.Cos(brng))
	lng2 := lng1 + math.Atan2(
		math.Sin(brng)*math.Sin(d)*math.Cos(lat1),
		math.Cos(d)-math.Sin(lat1)*math.Sin(lat2),
	)

	return LatLng{
		Lat: round6(lat2 * 180 / math.Pi),
		Lng: round6(lng2 * 180 / math.Pi),
	}
}

// LocalOffset returns the east and north offset in meters of p from center,
// using an equirectangular approximation. Good to well under a pixel at
// sweep display ranges (tens of kilometers).
func LocalOffset(center, p LatLng) (east, north float64) {
	latRad := center.Lat * math.Pi / 180
	dLng := p.Lng - center.Lng
	if dLng > 180 {
		dLng -= 360
	} else if dLng < -180 {
		dLng += 360
	}
	east = dLng * math.Pi / 180 * math.Cos(latRad) * EarthRadius
	north = (p.Lat - center.Lat) * math.Pi / 180 * EarthRadius
	return east, north
}

// Normalize maps an angle in degrees into [0, 360).
func Normalize(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	// -1e-15 + 360 rounds to 360 in float64.
	if deg >= 360 {
		deg = 0
	}
	return deg
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
