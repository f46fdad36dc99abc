package gps

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"opensonar/internal/device"
	"opensonar/internal/serialport"
)

// Config controls the serial GNSS source.
type Config struct {
	Device  string
	Baud    int
	Timeout time.Duration
	// MaxAttempts bounds the reads per Poll before the receiver is reported
	// unavailable for this tick.
	MaxAttempts int
}

// SerialSource polls an NMEA receiver on a serial line, one sentence per Poll.
type SerialSource struct {
	cfg  Config
	open func(serialport.Config) (serialport.Port, error)
	now  func() time.Time

	port serialport.Port

	lastErr string
}

func NewSerialSource(cfg Config) *SerialSource {
	if cfg.Baud == 0 {
		cfg.Baud = 9600
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 100 * time.Millisecond
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 50
	}
	return &SerialSource{cfg: cfg, open: serialport.Open, now: func() time.Time { return time.Now().UTC() }}
}

func (s *SerialSource) Connect() error {
	path := strings.TrimSpace(s.cfg.Device)
	p, err := s.open(serialport.Config{Path: path, Baud: s.cfg.Baud, Timeout: s.cfg.Timeout})
	if err != nil {
		log.Printf("gps open failed device=%s baud=%d: %v", path, s.cfg.Baud, err)
		return fmt.Errorf("%w: gnss %s: %v", device.ErrUnavailable, path, err)
	}
	s.port = p
	log.Printf("gps connected device=%s baud=%d", path, s.cfg.Baud)
	return nil
}

func (s *SerialSource) Close() error {
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	return err
}

// Poll discards stale input and reads until one sentence parses. Unparseable
// lines and empty reads are retried silently up to MaxAttempts.
func (s *SerialSource) Poll(ctx context.Context) (device.Position, error) {
	if s.port == nil {
		return device.Position{}, fmt.Errorf("%w: gnss not connected", device.ErrUnavailable)
	}
	if err := s.port.Flush(); err != nil {
		s.lastErr = err.Error()
	}

	r := bufio.NewReaderSize(s.port, 512)
	var partial strings.Builder
	for attempt := 0; attempt < s.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return device.Position{}, err
		}
		chunk, err := r.ReadString('\n')
		partial.WriteString(chunk)
		if err != nil {
			if errors.Is(err, io.EOF) {
				// Read timeout with no terminator yet.
				continue
			}
			return device.Position{}, fmt.Errorf("%w: gnss read: %v", device.ErrUnavailable, err)
		}

		line := strings.TrimSpace(partial.String())
		partial.Reset()
		if !strings.HasPrefix(line, "$") {
			continue
		}
		pos, perr := ParseSentence(s.now(), line)
		if perr != nil {
			s.lastErr = perr.Error()
			continue
		}
		return pos, nil
	}
	return device.Position{}, fmt.Errorf("%w: gnss no sentence after %d reads (last error: %s)", device.ErrUnavailable, s.cfg.MaxAttempts, s.lastErr)
}
