package sim

import (
	"fmt"
	"math"
	"time"
)

const (
	metersPerDegLat = 111320.0
	knotsPerMS      = 1 / 0.514444
)

// Vessel is a deterministic survey launch running a figure-eight around a
// center point, heaving gently on a short swell.
type Vessel struct {
	CenterLatDeg float64
	CenterLonDeg float64
	RadiusM      float64
	Period       time.Duration

	// HeightM is the antenna orthometric height at rest.
	HeightM   float64
	GeoidSepM float64
}

func (v Vessel) period() time.Duration {
	if v.Period <= 0 {
		return 10 * time.Minute
	}
	return v.Period
}

func (v Vessel) radiusM() float64 {
	if v.RadiusM <= 0 {
		return 200
	}
	return v.RadiusM
}

func (v Vessel) phase(now time.Time) float64 {
	p := v.period()
	return 2 * math.Pi * float64(now.UnixNano()%p.Nanoseconds()) / float64(p.Nanoseconds())
}

// Position returns the track position and course over ground.
//
//	x = cos(w)       east-west, scaled by cos(lat) for longitude
//	y = 0.5*sin(2w)  north-south
func (v Vessel) Position(now time.Time) (latDeg, lonDeg, courseDeg float64) {
	w := v.phase(now)
	radiusDeg := v.radiusM() / metersPerDegLat
	x := math.Cos(w)
	y := 0.5 * math.Sin(2*w)

	latDeg = v.CenterLatDeg + radiusDeg*y
	lonDeg = v.CenterLonDeg + (radiusDeg*x)/math.Cos(v.CenterLatDeg*math.Pi/180.0)

	vx, vy := v.velocity(w)
	courseDeg = math.Mod(math.Atan2(vx, vy)*180/math.Pi+360, 360)
	return latDeg, lonDeg, courseDeg
}

// velocity is d/dt of the track in m/s (east, north).
func (v Vessel) velocity(w float64) (float64, float64) {
	k := 2 * math.Pi / v.period().Seconds() * v.radiusM()
	return -k * math.Sin(w), k * math.Cos(2*w)
}

// SpeedKnots is the speed over ground.
func (v Vessel) SpeedKnots(now time.Time) float64 {
	vx, vy := v.velocity(v.phase(now))
	return math.Hypot(vx, vy) * knotsPerMS
}

// Heave is the vertical displacement of the antenna, 0.2 m on an 8 s swell.
func (v Vessel) Heave(now time.Time) float64 {
	const swell = 8 * time.Second
	ph := float64(now.UnixNano()%swell.Nanoseconds()) / float64(swell.Nanoseconds())
	return 0.2 * math.Sin(2*math.Pi*ph)
}

// Payloads renders GGA, RMC, VTG and GLL payloads (without '$' and checksum)
// for the vessel state at now.
func (v Vessel) Payloads(now time.Time) []string {
	now = now.UTC()
	lat, lon, course := v.Position(now)
	la, laH := nmeaCoord(lat, 2, "N", "S")
	lo, loH := nmeaCoord(lon, 3, "E", "W")
	hms := now.Format("150405.00")
	kn := v.SpeedKnots(now)

	return []string{
		fmt.Sprintf("GNGGA,%s,%s,%s,%s,%s,4,12,0.7,%.3f,M,%.3f,M,1.0,0000",
			hms, la, laH, lo, loH, v.HeightM+v.Heave(now), v.GeoidSepM),
		fmt.Sprintf("GNRMC,%s,A,%s,%s,%s,%s,%.2f,%.1f,%s,,,R",
			hms, la, laH, lo, loH, kn, course, now.Format("020106")),
		fmt.Sprintf("GNVTG,%.1f,T,,M,%.2f,N,%.2f,K,R", course, kn, kn*1.852),
		fmt.Sprintf("GNGLL,%s,%s,%s,%s,%s,A,R", la, laH, lo, loH, hms),
	}
}

// nmeaCoord formats decimal degrees as ddmm.mmmmm (or dddmm.mmmmm).
func nmeaCoord(deg float64, width int, pos, neg string) (string, string) {
	hemi := pos
	if deg < 0 {
		hemi = neg
		deg = -deg
	}
	d := math.Floor(deg)
	m := math.Round((deg-d)*60*1e5) / 1e5
	if m >= 60 {
		d++
		m = 0
	}
	return fmt.Sprintf("%0*d%08.5f", width, int(d), m), hemi
}
