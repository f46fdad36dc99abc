// Package device defines the capabilities the acquisition loop needs from the
// positioning receiver, the echo-sounder and the sound-speed probe.
package device

import (
	"context"
	"errors"
	"math"
	"time"
)

// ErrUnavailable marks a device that is not connected or produced no usable
// reading. Callers treat it as "nothing this tick", never as fatal.
var ErrUnavailable = errors.New("device unavailable")

// Sound speeds outside this band (m/s) are not physical for sea or fresh water.
const (
	MinSoundSpeed = 1300.0
	MaxSoundSpeed = 1700.0
)

// ValidSoundSpeed reports whether v is a usable sound speed in m/s.
func ValidSoundSpeed(v float64) bool {
	return !math.IsNaN(v) && v >= MinSoundSpeed && v <= MaxSoundSpeed
}

// Position is one parsed positioning sentence.
type Position struct {
	At time.Time

	// Sentence is the verbatim sentence text, without line terminator.
	Sentence string
	// Type is the normalized sentence identifier (GGA, RMC, GLL, VTG, ...).
	Type   string
	Talker string

	// Pingable is true for GGA, RMC and GLL.
	Pingable bool

	LatDeg   float64
	LonDeg   float64
	LatLonOK bool

	// GGA only.
	OrthoHeightM float64
	GeoidSepM    float64
	HeightOK     bool
}

// Sounding is one echo-sounder reading in the device's native units.
type Sounding struct {
	At time.Time

	DistanceMM         uint32
	Confidence         uint16
	TransmitDurationUS uint16
	PingNumber         uint32
	ScanStartMM        uint32
	ScanLengthMM       uint32
	GainSetting        uint32
}

// DepthM is the sounding in meters.
func (s Sounding) DepthM() float64 {
	return float64(s.DistanceMM) / 1000
}

type PositionSource interface {
	Connect() error
	Close() error
	// Poll blocks until one sentence parses, the adapter gives up, or ctx ends.
	Poll(ctx context.Context) (Position, error)
}

type DepthSource interface {
	Connect() error
	Close() error
	Poll(ctx context.Context) (Sounding, error)
	SetSoundSpeed(ctx context.Context, metersPerSecond float64) error
	SoundSpeed(ctx context.Context) (float64, error)
}

type SoundSpeedSource interface {
	Connect() error
	Close() error
	// Poll returns the surface sound speed in m/s.
	Poll(ctx context.Context) (float64, error)
}
