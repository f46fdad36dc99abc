// Package svp reads surface sound speed from a line-oriented probe.
//
// The probe streams one reading per line in mm/s.
package svp

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"opensonar/internal/device"
	"opensonar/internal/serialport"
)

type Config struct {
	Device  string
	Baud    int
	Timeout time.Duration
}

type Probe struct {
	cfg  Config
	open func(serialport.Config) (serialport.Port, error)
	port serialport.Port
}

func New(cfg Config) *Probe {
	if cfg.Baud == 0 {
		cfg.Baud = 19200
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2500 * time.Millisecond
	}
	return &Probe{cfg: cfg, open: serialport.Open}
}

func (p *Probe) Connect() error {
	port, err := p.open(serialport.Config{Path: p.cfg.Device, Baud: p.cfg.Baud, Timeout: p.cfg.Timeout})
	if err != nil {
		log.Printf("svp open failed device=%s baud=%d: %v", p.cfg.Device, p.cfg.Baud, err)
		return fmt.Errorf("%w: svp %s: %v", device.ErrUnavailable, p.cfg.Device, err)
	}
	p.port = port
	log.Printf("svp connected device=%s baud=%d", p.cfg.Device, p.cfg.Baud)
	return nil
}

func (p *Probe) Close() error {
	if p.port == nil {
		return nil
	}
	err := p.port.Close()
	p.port = nil
	return err
}

// Poll discards buffered readings and returns the next one in m/s.
func (p *Probe) Poll(ctx context.Context) (float64, error) {
	if p.port == nil {
		return 0, fmt.Errorf("%w: svp not connected", device.ErrUnavailable)
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := p.port.Flush(); err != nil {
		return 0, fmt.Errorf("%w: svp flush: %v", device.ErrUnavailable, err)
	}
	line, err := bufio.NewReader(p.port).ReadString('\n')
	if err != nil {
		return 0, fmt.Errorf("%w: svp read: %v", device.ErrUnavailable, err)
	}
	return ParseReading(line)
}

// ParseReading converts one probe line (mm/s) to m/s. Readings outside
// device.MinSoundSpeed..device.MaxSoundSpeed, such as the tail of a line cut by
// Flush, are rejected.
func ParseReading(line string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(line), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: svp reading %q", device.ErrUnavailable, strings.TrimSpace(line))
	}
	ss := v / 1000
	if !device.ValidSoundSpeed(ss) {
		return 0, fmt.Errorf("%w: svp reading %q out of range", device.ErrUnavailable, strings.TrimSpace(line))
	}
	return ss, nil
}
