package prayer

import "math"

// Kaaba coordinates, the reference point for the Qibla bearing.
const (
	kaabaLat = 21.4225
	kaabaLon = 39.8262
)

// cardinals in 45-degree steps, clockwise from north.
var cardinals = []string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

// Qibla returns the great-circle bearing from the given coordinates to
// the Kaaba, in degrees clockwise from true north [0, 360).
func Qibla(lat, lon float64) float64 {
	lat1 := lat * math.Pi / 180
	lon1 := lon * math.Pi / 180
	lat2 := kaabaLat * math.Pi / 180
	lon2 := kaabaLon * math.Pi / 180

	y := math.Sin(lon2 - lon1)
	x := math.Cos(lat1)*math.Tan(lat2) - math.Sin(lat1)*math.Cos(lon2-lon1)
	deg := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(deg+360, 360)
}

// Cardinal maps a bearing in degrees to its nearest eight-point compass
// direction.
func Cardinal(deg float64) string {
	idx := int(math.Round(deg/45)) % 8
	return cardinals[idx]
}
