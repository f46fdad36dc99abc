// Package serialport opens the serial lines used by the survey sensors.
package serialport

import (
	"fmt"
	"io"
	"time"
)

// Port is an open serial line.
type Port interface {
	io.ReadWriteCloser
	// Flush discards input received but not yet read.
	Flush() error
}

// Config describes one line. Timeout bounds every Read; a read that times out
// returns no data.
type Config struct {
	Path    string
	Baud    int
	Timeout time.Duration
}

// Open opens the configured line in raw 8N1 mode.
func Open(cfg Config) (Port, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("serial path is empty")
	}
	if cfg.Baud <= 0 {
		return nil, fmt.Errorf("serial %s: invalid baud %d", cfg.Path, cfg.Baud)
	}
	return openPort(cfg)
}
