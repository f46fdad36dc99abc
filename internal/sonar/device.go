package sonar

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"time"

	"opensonar/internal/device"
	"opensonar/internal/serialport"
)

type Config struct {
	Device  string
	Baud    int
	Timeout time.Duration
	// MaxFrames bounds how many unrelated frames are skipped while waiting
	// for a reply.
	MaxFrames int
}

// Device is a Ping1D on a serial line.
type Device struct {
	cfg  Config
	open func(serialport.Config) (serialport.Port, error)
	now  func() time.Time

	port serialport.Port
	r    *bufio.Reader
}

func New(cfg Config) *Device {
	if cfg.Baud == 0 {
		cfg.Baud = 115200
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 500 * time.Millisecond
	}
	if cfg.MaxFrames <= 0 {
		cfg.MaxFrames = 8
	}
	return &Device{cfg: cfg, open: serialport.Open, now: func() time.Time { return time.Now().UTC() }}
}

func (d *Device) Connect() error {
	p, err := d.open(serialport.Config{Path: d.cfg.Device, Baud: d.cfg.Baud, Timeout: d.cfg.Timeout})
	if err != nil {
		log.Printf("sonar open failed device=%s baud=%d: %v", d.cfg.Device, d.cfg.Baud, err)
		return fmt.Errorf("%w: sonar %s: %v", device.ErrUnavailable, d.cfg.Device, err)
	}
	d.port = p
	d.r = bufio.NewReader(p)
	log.Printf("sonar connected device=%s baud=%d", d.cfg.Device, d.cfg.Baud)
	return nil
}

func (d *Device) Close() error {
	if d.port == nil {
		return nil
	}
	err := d.port.Close()
	d.port = nil
	d.r = nil
	return err
}

// request sends m and waits for a reply carrying wantID (or a nack for m).
func (d *Device) request(ctx context.Context, m message, wantID uint16) (message, error) {
	if d.port == nil {
		return message{}, fmt.Errorf("%w: sonar not connected", device.ErrUnavailable)
	}
	if err := d.port.Flush(); err != nil {
		return message{}, fmt.Errorf("%w: sonar flush: %v", device.ErrUnavailable, err)
	}
	d.r.Reset(d.port)
	if _, err := d.port.Write(encode(m)); err != nil {
		return message{}, fmt.Errorf("%w: sonar write: %v", device.ErrUnavailable, err)
	}

	for i := 0; i < d.cfg.MaxFrames; i++ {
		if err := ctx.Err(); err != nil {
			return message{}, err
		}
		reply, err := decode(d.r)
		if errors.Is(err, errBadChecksum) {
			continue
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return message{}, fmt.Errorf("%w: sonar timeout waiting for message %d", device.ErrUnavailable, wantID)
		}
		if err != nil {
			return message{}, fmt.Errorf("%w: sonar read: %v", device.ErrUnavailable, err)
		}
		if reply.ID == msgNack {
			return message{}, fmt.Errorf("%w: sonar rejected message %d", device.ErrUnavailable, m.ID)
		}
		if reply.ID == wantID {
			return reply, nil
		}
	}
	return message{}, fmt.Errorf("%w: sonar no reply for message %d", device.ErrUnavailable, wantID)
}

// Poll takes one ping.
func (d *Device) Poll(ctx context.Context) (device.Sounding, error) {
	reply, err := d.request(ctx, generalRequest(msgDistance), msgDistance)
	if err != nil {
		return device.Sounding{}, err
	}
	dist, err := parseDistance(reply.Payload)
	if err != nil {
		return device.Sounding{}, fmt.Errorf("%w: %v", device.ErrUnavailable, err)
	}
	return device.Sounding{
		At:                 d.now(),
		DistanceMM:         dist.DistanceMM,
		Confidence:         dist.Confidence,
		TransmitDurationUS: dist.TransmitDurationUS,
		PingNumber:         dist.PingNumber,
		ScanStartMM:        dist.ScanStartMM,
		ScanLengthMM:       dist.ScanLengthMM,
		GainSetting:        dist.GainSetting,
	}, nil
}

// SetSoundSpeed pushes a sound speed in m/s; the head takes mm/s.
func (d *Device) SetSoundSpeed(ctx context.Context, metersPerSecond float64) error {
	if !device.ValidSoundSpeed(metersPerSecond) {
		return fmt.Errorf("sonar: sound speed %g out of range", metersPerSecond)
	}
	mms := uint32(math.Round(metersPerSecond * 1000))
	if _, err := d.request(ctx, setSpeedOfSound(mms), msgAck); err != nil {
		return err
	}
	log.Printf("sonar sound speed set speed_mps=%g", metersPerSecond)
	return nil
}

// SoundSpeed reads the sound speed configured on the head, m/s.
func (d *Device) SoundSpeed(ctx context.Context) (float64, error) {
	reply, err := d.request(ctx, generalRequest(msgSpeedOfSound), msgSpeedOfSound)
	if err != nil {
		return 0, err
	}
	if len(reply.Payload) < 4 {
		return 0, fmt.Errorf("%w: sonar short speed_of_sound payload", device.ErrUnavailable)
	}
	return float64(binary.LittleEndian.Uint32(reply.Payload)) / 1000, nil
}
