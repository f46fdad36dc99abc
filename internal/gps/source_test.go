package gps

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"opensonar/internal/device"
	"opensonar/internal/serialport"
)

// fakePort replays canned reads; an empty chunk simulates a read timeout.
type fakePort struct {
	chunks  []string
	flushes int
	closed  bool
}

func (p *fakePort) Read(b []byte) (int, error) {
	if len(p.chunks) == 0 {
		return 0, io.EOF
	}
	c := p.chunks[0]
	if c == "" {
		p.chunks = p.chunks[1:]
		return 0, io.EOF
	}
	n := copy(b, c)
	if n < len(c) {
		p.chunks[0] = c[n:]
	} else {
		p.chunks = p.chunks[1:]
	}
	return n, nil
}

func (p *fakePort) Write(b []byte) (int, error) { return len(b), nil }
func (p *fakePort) Close() error                { p.closed = true; return nil }
func (p *fakePort) Flush() error                { p.flushes++; return nil }

func newTestSource(port *fakePort) *SerialSource {
	s := NewSerialSource(Config{Device: "/dev/ttyFAKE", MaxAttempts: 10})
	s.open = func(serialport.Config) (serialport.Port, error) { return port, nil }
	s.now = func() time.Time { return time.Date(2022, 1, 14, 12, 0, 0, 0, time.UTC) }
	return s
}

func TestSerialSource_RetriesUntilSentenceParses(t *testing.T) {
	good := Sentence("GNGGA,120000,4552.500,S,17030.000,E,1,08,0.9,10.0,M,0.5,M,,")
	port := &fakePort{chunks: []string{
		"",
		"garbage\r\n",
		"$GNGGA,bad*00\r\n",
		good[:20],
		"",
		good[20:] + "\r\n",
	}}
	s := newTestSource(port)
	if err := s.Connect(); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}

	p, err := s.Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll() error: %v", err)
	}
	if p.Sentence != good {
		t.Fatalf("sentence=%q want %q", p.Sentence, good)
	}
	if port.flushes != 1 {
		t.Fatalf("flushes=%d want 1", port.flushes)
	}
	if err := s.Close(); err != nil || !port.closed {
		t.Fatalf("Close() err=%v closed=%v", err, port.closed)
	}
}

func TestSerialSource_GivesUpAfterMaxAttempts(t *testing.T) {
	s := newTestSource(&fakePort{})
	if err := s.Connect(); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	_, err := s.Poll(context.Background())
	if !errors.Is(err, device.ErrUnavailable) {
		t.Fatalf("err=%v want ErrUnavailable", err)
	}
}

func TestSerialSource_NotConnected(t *testing.T) {
	s := NewSerialSource(Config{})
	_, err := s.Poll(context.Background())
	if !errors.Is(err, device.ErrUnavailable) {
		t.Fatalf("err=%v want ErrUnavailable", err)
	}
}

func TestSerialSource_ConnectFailureIsUnavailable(t *testing.T) {
	s := NewSerialSource(Config{Device: "/dev/ttyNONE"})
	s.open = func(serialport.Config) (serialport.Port, error) { return nil, errors.New("no such device") }
	err := s.Connect()
	if !errors.Is(err, device.ErrUnavailable) || !strings.Contains(err.Error(), "/dev/ttyNONE") {
		t.Fatalf("err=%v", err)
	}
}
