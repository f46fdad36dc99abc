// Package indicator pulses a status LED each time a simple fix is logged, so
// the operator can see the loop is alive without watching the console.
package indicator

import (
	"fmt"
	"log"
	"sync"
	"time"
)

type Config struct {
	// GPIO is BCM numbering.
	GPIO  int
	Pulse time.Duration
}

// line is a single digital output.
type line interface {
	SetValue(v int) error
	Close() error
}

var openLineFn = openLine
var afterFuncFn = time.AfterFunc

type LED struct {
	cfg Config

	mu     sync.Mutex
	line   line
	timer  *time.Timer
	closed bool
}

func New(cfg Config) (*LED, error) {
	if cfg.Pulse <= 0 {
		cfg.Pulse = 100 * time.Millisecond
	}
	l, err := openLineFn(cfg.GPIO)
	if err != nil {
		return nil, err
	}
	log.Printf("indicator enabled gpio=%d pulse=%s", cfg.GPIO, cfg.Pulse)
	return &LED{cfg: cfg, line: l}, nil
}

// Pulse turns the LED on and schedules it off. Pulses that arrive while the
// LED is lit extend the pulse.
func (d *LED) Pulse() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	if err := d.line.SetValue(1); err != nil {
		log.Printf("indicator gpio=%d set failed: %v", d.cfg.GPIO, err)
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = afterFuncFn(d.cfg.Pulse, d.off)
}

func (d *LED) off() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	_ = d.line.SetValue(0)
}

func (d *LED) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	if d.timer != nil {
		d.timer.Stop()
	}
	_ = d.line.SetValue(0)
	if err := d.line.Close(); err != nil {
		return fmt.Errorf("indicator: close gpio %d: %w", d.cfg.GPIO, err)
	}
	return nil
}
