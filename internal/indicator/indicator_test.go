package indicator

import (
	"errors"
	"testing"
	"time"
)

type fakeLine struct {
	values []int
	closed bool
}

func (f *fakeLine) SetValue(v int) error { f.values = append(f.values, v); return nil }
func (f *fakeLine) Close() error         { f.closed = true; return nil }

func withFakes(t *testing.T, fl *fakeLine) *[]func() {
	t.Helper()
	var pending []func()
	oldOpen, oldAfter := openLineFn, afterFuncFn
	openLineFn = func(pin int) (line, error) { return fl, nil }
	afterFuncFn = func(d time.Duration, f func()) *time.Timer {
		pending = append(pending, f)
		return time.NewTimer(time.Hour)
	}
	t.Cleanup(func() { openLineFn, afterFuncFn = oldOpen, oldAfter })
	return &pending
}

func TestLED_PulseOnThenOff(t *testing.T) {
	fl := &fakeLine{}
	pending := withFakes(t, fl)

	led, err := New(Config{GPIO: 17})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	led.Pulse()
	if len(fl.values) != 1 || fl.values[0] != 1 {
		t.Fatalf("values=%v want [1]", fl.values)
	}
	if len(*pending) != 1 {
		t.Fatalf("scheduled=%d want 1", len(*pending))
	}
	(*pending)[0]()
	if fl.values[len(fl.values)-1] != 0 {
		t.Fatalf("values=%v want trailing 0", fl.values)
	}
}

func TestLED_CloseTurnsOffAndIgnoresLaterPulses(t *testing.T) {
	fl := &fakeLine{}
	withFakes(t, fl)

	led, err := New(Config{GPIO: 17})
	if err != nil {
		t.Fatal(err)
	}
	if err := led.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if !fl.closed || fl.values[len(fl.values)-1] != 0 {
		t.Fatalf("closed=%v values=%v", fl.closed, fl.values)
	}
	n := len(fl.values)
	led.Pulse()
	if len(fl.values) != n {
		t.Fatalf("pulse after close changed line: %v", fl.values)
	}
}

func TestNew_OpenFailure(t *testing.T) {
	old := openLineFn
	openLineFn = func(pin int) (line, error) { return nil, errors.New("busy") }
	t.Cleanup(func() { openLineFn = old })

	if _, err := New(Config{GPIO: 17}); err == nil {
		t.Fatalf("expected error")
	}
}
