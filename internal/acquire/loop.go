// Package acquire drives one survey session: it interleaves positioning,
// depth and sound-speed polls and appends the results to the raw and simple
// survey logs.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"opensonar/internal/device"
	"opensonar/internal/surveylog"
)

const (
	// DefaultPeriod is the number of ticks between sound-speed recalibrations.
	DefaultPeriod = 100

	// DefaultSoundSpeed is used when the echo-sounder cannot report its own.
	DefaultSoundSpeed = 1500.0
)

var ErrClosed = errors.New("acquisition loop is closed")

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseTicking
	PhaseRecalibratePending
	PhaseStable
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseTicking:
		return "ticking"
	case PhaseRecalibratePending:
		return "recalibrate_pending"
	case PhaseStable:
		return "stable"
	case PhaseClosed:
		return "closed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

type Config struct {
	Recalibrate bool
	Period      int

	// Console receives every simple fix. Defaults to stdout.
	Console io.Writer
	// OnFix, if set, is called after a simple fix has been logged.
	OnFix func(surveylog.Fix)
}

// State is the session-wide mutable state threaded through every tick.
type State struct {
	SoundSpeed float64
	Counter    int
}

type Stats struct {
	Ticks          uint64
	Positions      uint64
	Soundings      uint64
	Fixes          uint64
	Recalibrations uint64
	DeviceErrors   uint64
}

type Loop struct {
	cfg Config
	md  surveylog.Metadata

	gnss  device.PositionSource
	sonar device.DepthSource
	svp   device.SoundSpeedSource

	raw    *surveylog.Writer
	simple *surveylog.Writer

	state State
	phase Phase
	stats Stats

	lastErr map[string]string
}

// New wires a loop over already connected devices and already opened logs.
// svp may be nil when recalibration is disabled.
func New(cfg Config, md surveylog.Metadata, gnss device.PositionSource, sonar device.DepthSource, svp device.SoundSpeedSource, raw, simple *surveylog.Writer) (*Loop, error) {
	if gnss == nil || sonar == nil {
		return nil, fmt.Errorf("acquire: gnss and sonar sources are required")
	}
	if raw == nil || simple == nil {
		return nil, fmt.Errorf("acquire: raw and simple logs are required")
	}
	if cfg.Recalibrate && svp == nil {
		return nil, fmt.Errorf("acquire: recalibration needs an svp source")
	}
	if cfg.Period <= 0 {
		cfg.Period = DefaultPeriod
	}
	if cfg.Console == nil {
		cfg.Console = os.Stdout
	}
	return &Loop{
		cfg:     cfg,
		md:      md,
		gnss:    gnss,
		sonar:   sonar,
		svp:     svp,
		raw:     raw,
		simple:  simple,
		lastErr: map[string]string{},
	}, nil
}

func (l *Loop) State() State { return l.state }
func (l *Loop) Phase() Phase { return l.phase }
func (l *Loop) Stats() Stats { return l.stats }

// start seeds the sound speed from the echo-sounder.
func (l *Loop) start(ctx context.Context) {
	l.state = State{SoundSpeed: DefaultSoundSpeed}
	ss, err := l.sonar.SoundSpeed(ctx)
	if err != nil {
		l.deviceError("sonar", err)
	} else if device.ValidSoundSpeed(ss) {
		l.state.SoundSpeed = ss
	}
	l.phase = PhaseTicking
	log.Printf("acquire started sound_speed=%.3f recalibrate=%t period=%d",
		l.state.SoundSpeed, l.cfg.Recalibrate, l.cfg.Period)
}

// Tick runs one polling cycle. Device failures end the tick early without an
// error; only log I/O failures and a closed loop are returned.
func (l *Loop) Tick(ctx context.Context) (State, error) {
	switch l.phase {
	case PhaseClosed:
		return l.state, ErrClosed
	case PhaseIdle:
		l.start(ctx)
	}
	l.phase = PhaseTicking
	l.stats.Ticks++

	if l.cfg.Recalibrate {
		l.state.Counter++
		if l.state.Counter >= l.cfg.Period {
			l.phase = PhaseRecalibratePending
			l.recalibrate(ctx)
			l.state.Counter = 0
		}
	}
	l.phase = PhaseStable

	pos, err := l.gnss.Poll(ctx)
	if err != nil {
		l.deviceError("gnss", err)
		return l.state, nil
	}
	l.stats.Positions++
	if err := l.raw.WritePositioning(pos.At, pos.Sentence); err != nil {
		return l.state, fmt.Errorf("raw log: %w", err)
	}
	if !pos.Pingable {
		return l.state, nil
	}

	snd, err := l.sonar.Poll(ctx)
	if err != nil {
		l.deviceError("sonar", err)
		return l.state, nil
	}
	l.stats.Soundings++
	if err := l.raw.WriteDepth(snd.At, snd, l.state.SoundSpeed); err != nil {
		return l.state, fmt.Errorf("raw log: %w", err)
	}

	if pos.Type != "GGA" {
		return l.state, nil
	}
	if !pos.LatLonOK || !pos.HeightOK {
		// No fix yet.
		return l.state, nil
	}
	fix := VerticalFix(pos, snd, l.md.GNSS, l.md.Sonar, l.state.SoundSpeed)
	if err := l.simple.WriteFix(fix); err != nil {
		return l.state, fmt.Errorf("simple log: %w", err)
	}
	l.stats.Fixes++
	fmt.Fprintln(l.cfg.Console, surveylog.FormatFix(fix))
	if l.cfg.OnFix != nil {
		l.cfg.OnFix(fix)
	}
	return l.state, nil
}

// recalibrate pushes a fresh probe reading to the echo-sounder. On failure the
// applied sound speed is left unchanged.
func (l *Loop) recalibrate(ctx context.Context) {
	ss, err := l.svp.Poll(ctx)
	if err == nil && !device.ValidSoundSpeed(ss) {
		err = fmt.Errorf("%w: svp sound speed %g out of range", device.ErrUnavailable, ss)
	}
	if err != nil {
		l.deviceError("svp", err)
		return
	}
	if err := l.sonar.SetSoundSpeed(ctx, ss); err != nil {
		l.deviceError("sonar", err)
		return
	}
	l.state.SoundSpeed = ss
	l.stats.Recalibrations++
	log.Printf("acquire recalibrated sound_speed=%.3f", ss)
}

// deviceError counts every failure but only logs when the message for a
// device changes, so an unplugged receiver does not flood the console.
func (l *Loop) deviceError(dev string, err error) {
	l.stats.DeviceErrors++
	msg := err.Error()
	if l.lastErr[dev] == msg {
		return
	}
	l.lastErr[dev] = msg
	log.Printf("acquire %s unavailable: %v", dev, err)
}

// Run ticks at interval until ctx is done or a log write fails.
func (l *Loop) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("acquire: interval must be > 0")
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if _, err := l.Tick(ctx); err != nil {
				return err
			}
		}
	}
}

// Close flushes and closes both logs and disconnects every device.
func (l *Loop) Close() error {
	if l.phase == PhaseClosed {
		return nil
	}
	l.phase = PhaseClosed
	errs := []error{l.raw.Close(), l.simple.Close(), l.gnss.Close(), l.sonar.Close()}
	if l.svp != nil {
		errs = append(errs, l.svp.Close())
	}
	log.Printf("acquire closed ticks=%d fixes=%d recalibrations=%d device_errors=%d",
		l.stats.Ticks, l.stats.Fixes, l.stats.Recalibrations, l.stats.DeviceErrors)
	return errors.Join(errs...)
}
