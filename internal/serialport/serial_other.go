//go:build !linux

package serialport

import (
	"github.com/tarm/serial"
)

func openPort(cfg Config) (Port, error) {
	p, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Path,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}
