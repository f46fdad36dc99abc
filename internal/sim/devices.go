package sim

import (
	"context"
	"fmt"
	"math"
	"time"

	"opensonar/internal/device"
	"opensonar/internal/gps"
)

// GNSS emits the vessel's sentences in turn, one per poll.
type GNSS struct {
	Vessel Vessel
	Now    func() time.Time

	connected bool
	next      int
}

func (g *GNSS) Connect() error { g.connected = true; return nil }
func (g *GNSS) Close() error   { g.connected = false; return nil }

func (g *GNSS) Poll(ctx context.Context) (device.Position, error) {
	if !g.connected {
		return device.Position{}, fmt.Errorf("%w: sim gnss not connected", device.ErrUnavailable)
	}
	if err := ctx.Err(); err != nil {
		return device.Position{}, err
	}
	now := nowFunc(g.Now)()
	payloads := g.Vessel.Payloads(now)
	p := payloads[g.next%len(payloads)]
	g.next++
	return gps.ParseSentence(now, gps.Sentence(p))
}

// Sonar reports the seabed under the vessel. The reported distance scales with
// the configured sound speed relative to the true one, as a real echo-sounder
// would.
type Sonar struct {
	// DepthM is the mean water depth; the seabed undulates 1.5 m around it.
	DepthM         float64
	TrueSoundSpeed float64
	Now            func() time.Time

	connected  bool
	soundSpeed float64
	ping       uint32
}

func (s *Sonar) Connect() error {
	s.connected = true
	if s.soundSpeed == 0 {
		s.soundSpeed = 1500
	}
	return nil
}

func (s *Sonar) Close() error { s.connected = false; return nil }

func (s *Sonar) trueSpeed() float64 {
	if s.TrueSoundSpeed <= 0 {
		return 1480
	}
	return s.TrueSoundSpeed
}

func (s *Sonar) Poll(ctx context.Context) (device.Sounding, error) {
	if !s.connected {
		return device.Sounding{}, fmt.Errorf("%w: sim sonar not connected", device.ErrUnavailable)
	}
	if err := ctx.Err(); err != nil {
		return device.Sounding{}, err
	}
	now := nowFunc(s.Now)()
	base := s.DepthM
	if base <= 0 {
		base = 12
	}
	const swath = 90 * time.Second
	ph := float64(now.UnixNano()%swath.Nanoseconds()) / float64(swath.Nanoseconds())
	truth := base + 1.5*math.Sin(2*math.Pi*ph)
	reported := truth * s.soundSpeed / s.trueSpeed()

	s.ping++
	return device.Sounding{
		At:                 now,
		DistanceMM:         uint32(math.Round(reported * 1000)),
		Confidence:         100,
		TransmitDurationUS: 208,
		PingNumber:         s.ping,
		ScanStartMM:        0,
		ScanLengthMM:       uint32(math.Ceil(base*2)) * 1000,
		GainSetting:        3,
	}, nil
}

func (s *Sonar) SetSoundSpeed(ctx context.Context, mps float64) error {
	if !s.connected {
		return fmt.Errorf("%w: sim sonar not connected", device.ErrUnavailable)
	}
	if !device.ValidSoundSpeed(mps) {
		return fmt.Errorf("sim sonar: sound speed %g out of range", mps)
	}
	s.soundSpeed = mps
	return nil
}

func (s *Sonar) SoundSpeed(ctx context.Context) (float64, error) {
	if !s.connected {
		return 0, fmt.Errorf("%w: sim sonar not connected", device.ErrUnavailable)
	}
	return s.soundSpeed, nil
}

// Probe reports a surface sound speed drifting 0.5 m/s around SoundSpeed.
type Probe struct {
	SoundSpeed float64
	Now        func() time.Time

	connected bool
}

func (p *Probe) Connect() error { p.connected = true; return nil }
func (p *Probe) Close() error   { p.connected = false; return nil }

func (p *Probe) Poll(ctx context.Context) (float64, error) {
	if !p.connected {
		return 0, fmt.Errorf("%w: sim svp not connected", device.ErrUnavailable)
	}
	base := p.SoundSpeed
	if base <= 0 {
		base = 1480
	}
	const drift = 30 * time.Minute
	now := nowFunc(p.Now)()
	ph := float64(now.UnixNano()%drift.Nanoseconds()) / float64(drift.Nanoseconds())
	return math.Round((base+0.5*math.Sin(2*math.Pi*ph))*1000) / 1000, nil
}

func nowFunc(f func() time.Time) func() time.Time {
	if f != nil {
		return f
	}
	return time.Now
}
