//go:build !linux || (!arm && !arm64)

package indicator

import "fmt"

// Stub implementation for non-Linux and/or non-ARM platforms.
func openLine(pin int) (line, error) {
	return nil, fmt.Errorf("indicator: gpio unsupported on this platform")
}
