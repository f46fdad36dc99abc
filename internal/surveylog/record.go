package surveylog

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Field is one data cell after best-effort typing: cells that parse as a finite
// number carry Num, everything else stays text. Text always holds the original cell.
type Field struct {
	Text    string
	Num     float64
	Numeric bool
}

// ParseField coerces a cell to a number when possible.
func ParseField(s string) Field {
	f := Field{Text: s}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) {
		f.Num = v
		f.Numeric = true
	}
	return f
}

// Float returns the numeric value, if the cell was numeric.
func (f Field) Float() (float64, bool) {
	return f.Num, f.Numeric
}

func (f Field) String() string { return f.Text }

// RecordKind tags the five record shapes of a raw log.
type RecordKind string

const (
	KindDepth RecordKind = "DEPTH"
	KindVTG   RecordKind = "VTG"
	KindRMC   RecordKind = "RMC"
	KindGGA   RecordKind = "GGA"
	KindGLL   RecordKind = "GLL"
)

// Row arity per record kind, including the timestamp and tag columns.
var recordArity = map[RecordKind]int{
	KindDepth: 9,
	KindVTG:   11,
	KindRMC:   15,
	KindGGA:   16,
	KindGLL:   9,
}

// Record is one decoded raw-log row: *Depth, *VTG, *RMC, *GGA or *GLL.
type Record interface {
	Kind() RecordKind
	Time() time.Time
}

// Sentence carries the columns shared by every NMEA record.
type Sentence struct {
	At time.Time
	// Tag is the sentence identifier as logged, e.g. "$GNGGA".
	Tag string
	// Checksum is the hex checksum split off the last field.
	Checksum string
	// Text is the sentence verbatim, tag through checksum.
	Text string
}

func (s Sentence) Time() time.Time { return s.At }

// Talker returns the talker id ("GN", "GP", ...).
func (s Sentence) Talker() string {
	t := strings.TrimPrefix(s.Tag, "$")
	if len(t) < 3 {
		return ""
	}
	return t[:len(t)-3]
}

type Depth struct {
	At           time.Time
	DepthMM      Field
	Confidence   Field
	DurationUS   Field
	ScanStartMM  Field
	ScanLengthMM Field
	Gain         Field
	SoundSpeed   Field
}

func (d *Depth) Kind() RecordKind { return KindDepth }
func (d *Depth) Time() time.Time  { return d.At }

// DepthM converts the logged millimeters to meters.
func (d *Depth) DepthM() (float64, bool) {
	v, ok := d.DepthMM.Float()
	return v / 1000, ok
}

type VTG struct {
	Sentence
	TrackTrue  Field
	TrueRef    Field
	TrackMag   Field
	MagRef     Field
	SpeedKnots Field
	KnotsUnit  Field
	SpeedKmh   Field
	KmhUnit    Field
	Mode       Field
}

func (v *VTG) Kind() RecordKind { return KindVTG }

type RMC struct {
	Sentence
	UTC        Field
	Status     Field
	Lat        Field
	LatHem     Field
	Lon        Field
	LonHem     Field
	SpeedKnots Field
	TrackTrue  Field
	Date       Field
	MagVar     Field
	MagVarDir  Field
	Mode       Field
	NavStatus  Field
}

func (r *RMC) Kind() RecordKind { return KindRMC }

// Position returns decimal degrees when both coordinates are present.
func (r *RMC) Position() (lat, lon float64, ok bool) {
	return nmeaPosition(r.Lat, r.LatHem, r.Lon, r.LonHem)
}

type GGA struct {
	Sentence
	UTC          Field
	Lat          Field
	LatHem       Field
	Lon          Field
	LonHem       Field
	Quality      Field
	Satellites   Field
	HDOP         Field
	OrthoHeight  Field
	OrthoUnit    Field
	GeoidSep     Field
	GeoidUnit    Field
	DGPSAge      Field
	RefStationID Field
}

func (g *GGA) Kind() RecordKind { return KindGGA }

func (g *GGA) Position() (lat, lon float64, ok bool) {
	return nmeaPosition(g.Lat, g.LatHem, g.Lon, g.LonHem)
}

// EllipsoidHeight is the antenna height above the ellipsoid
// (orthometric height plus geoid separation).
func (g *GGA) EllipsoidHeight() (float64, bool) {
	h, ok1 := g.OrthoHeight.Float()
	n, ok2 := g.GeoidSep.Float()
	return h + n, ok1 && ok2
}

type GLL struct {
	Sentence
	Lat    Field
	LatHem Field
	Lon    Field
	LonHem Field
	UTC    Field
	Status Field
	Mode   Field
}

func (g *GLL) Kind() RecordKind { return KindGLL }

func (g *GLL) Position() (lat, lon float64, ok bool) {
	return nmeaPosition(g.Lat, g.LatHem, g.Lon, g.LonHem)
}

// nmeaPosition converts ddmm.mmmm / dddmm.mmmm plus hemisphere to decimal degrees.
func nmeaPosition(lat, latHem, lon, lonHem Field) (float64, float64, bool) {
	la, ok1 := nmeaDegrees(lat, latHem)
	lo, ok2 := nmeaDegrees(lon, lonHem)
	return la, lo, ok1 && ok2
}

func nmeaDegrees(v, hem Field) (float64, bool) {
	raw, ok := v.Float()
	if !ok {
		return 0, false
	}
	deg := math.Floor(raw / 100)
	dec := deg + (raw-deg*100)/60
	switch strings.ToUpper(strings.TrimSpace(hem.Text)) {
	case "N", "E":
	case "S", "W":
		dec = -dec
	default:
		return 0, false
	}
	return dec, true
}

// splitChecksum separates "value*hh" into value and checksum.
func splitChecksum(s string) (string, string) {
	star := strings.LastIndexByte(s, '*')
	if star == -1 {
		return s, ""
	}
	return s[:star], s[star+1:]
}
