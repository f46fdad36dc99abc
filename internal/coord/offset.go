package coord

import (
	"math"

	"github.com/tidwall/geodesic"
)

// zeroY replaces a zero forward offset so the bearing arctangent stays finite.
const zeroY = 0.0000000000001

// Offset is a horizontal lever arm in the vessel frame, meters.
// X is positive to starboard, Y positive forward.
type Offset struct {
	X float64
	Y float64
}

// CourseFix is a position with its course over ground.
type CourseFix struct {
	LatDeg    float64
	LonDeg    float64
	CourseDeg float64
}

type LatLon struct {
	LatDeg float64
	LonDeg float64
}

// OffsetDistance is the horizontal length of the lever arm.
func OffsetDistance(o Offset) float64 {
	return math.Hypot(o.X, o.Y)
}

// OffsetBearing returns the lever-arm direction relative to the bow in [0,360),
// rounded to 4 decimals.
func OffsetBearing(o Offset) float64 {
	x, y := o.X, o.Y
	if y == 0 {
		y = zeroY
	}
	raw := math.Atan(x/y) * 180 / math.Pi

	var bearing float64
	switch {
	case x >= 0 && y >= 0:
		bearing = raw
	case x < 0 && y > 0:
		bearing = 360 + raw
	default:
		bearing = 180 + raw
	}
	return math.Round(bearing*10000) / 10000
}

// Projector solves the geodesic direct problem on a reference ellipsoid.
type Projector struct {
	ellipsoid *geodesic.Ellipsoid
}

// NewProjector builds a projector for the given ellipsoid. A flattening larger
// than one is taken as inverse flattening (298.257223563 style). Non-positive
// parameters fall back to WGS84.
func NewProjector(semiMajorAxis, flattening float64) *Projector {
	if semiMajorAxis <= 0 || flattening <= 0 {
		return &Projector{ellipsoid: geodesic.WGS84}
	}
	if flattening > 1 {
		flattening = 1 / flattening
	}
	return &Projector{ellipsoid: geodesic.NewEllipsoid(semiMajorAxis, flattening)}
}

// Destination moves distM meters from (latDeg, lonDeg) along bearingDeg.
func (p *Projector) Destination(latDeg, lonDeg, bearingDeg, distM float64) LatLon {
	var lat2, lon2 float64
	p.ellipsoid.Direct(latDeg, lonDeg, bearingDeg, distM, &lat2, &lon2, nil)
	return LatLon{LatDeg: lat2, LonDeg: lon2}
}

// Project returns the position of the offset sensor for every fix, in input order.
func (p *Projector) Project(o Offset, fixes []CourseFix) []LatLon {
	dist := OffsetDistance(o)
	bearing := OffsetBearing(o)

	out := make([]LatLon, 0, len(fixes))
	for _, f := range fixes {
		course := math.Mod(f.CourseDeg+bearing, 360)
		if course < 0 {
			course += 360
		}
		out = append(out, p.Destination(f.LatDeg, f.LonDeg, course, dist))
	}
	return out
}
