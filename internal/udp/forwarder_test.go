package udp

import (
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"opensonar/internal/surveylog"
)

type fakeConn struct {
	writes    [][]byte
	writeErr  error
	closed    bool
	writeHits int
}

func (c *fakeConn) Write(p []byte) (int, error) {
	c.writeHits++
	if c.writeErr != nil {
		return 0, c.writeErr
	}
	cp := append([]byte(nil), p...)
	c.writes = append(c.writes, cp)
	return len(p), nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

func TestNewForwarder_DialsResolvedAddr(t *testing.T) {
	var gotNetwork string
	var gotRaddr *net.UDPAddr
	fc := &fakeConn{}

	dial := func(network string, laddr, raddr *net.UDPAddr) (udpConn, error) {
		gotNetwork = network
		gotRaddr = raddr
		return fc, nil
	}

	f, err := newForwarder("127.0.0.1:10110", net.ResolveUDPAddr, dial)
	if err != nil {
		t.Fatalf("newForwarder() error: %v", err)
	}
	defer f.Close()

	if gotNetwork != "udp" {
		t.Fatalf("network=%q want %q", gotNetwork, "udp")
	}
	if gotRaddr == nil || gotRaddr.Port != 10110 || !gotRaddr.IP.Equal(net.IPv4(127, 0, 0, 1)) {
		t.Fatalf("raddr=%v want 127.0.0.1:10110", gotRaddr)
	}
}

func TestNewForwarder_ResolveFailure(t *testing.T) {
	resolveErr := errors.New("nope")
	resolve := func(network, address string) (*net.UDPAddr, error) {
		return nil, resolveErr
	}
	dial := func(network string, laddr, raddr *net.UDPAddr) (udpConn, error) {
		return &fakeConn{}, nil
	}

	_, err := newForwarder("bad:addr", resolve, dial)
	if !errors.Is(err, resolveErr) {
		t.Fatalf("err=%v want %v", err, resolveErr)
	}
}

func TestForwarder_Send_EmptyNoWrite(t *testing.T) {
	fc := &fakeConn{}
	f := &Forwarder{dest: "x", conn: fc}

	if err := f.Send(nil); err != nil {
		t.Fatalf("Send(nil) error: %v", err)
	}
	if fc.writeHits != 0 {
		t.Fatalf("expected no writes, got %d", fc.writeHits)
	}
}

func TestForwarder_SendFix(t *testing.T) {
	fc := &fakeConn{}
	f := &Forwarder{dest: "x", conn: fc}

	fix := surveylog.Fix{
		At:         time.Date(2022, 1, 14, 12, 0, 0, 0, time.UTC),
		LatDeg:     -45.875,
		LonDeg:     170.5,
		DepthM:     2.1,
		HeightM:    8.35,
		SoundSpeed: 1500,
	}
	if err := f.SendFix(fix); err != nil {
		t.Fatalf("SendFix() error: %v", err)
	}
	if len(fc.writes) != 1 {
		t.Fatalf("writes=%d want 1", len(fc.writes))
	}
	got := string(fc.writes[0])
	if !strings.HasSuffix(got, "\r\n") || !strings.HasPrefix(got, "12:00:00.000000,-45.87500000,170.50000000,2.100,8.350,1500") {
		t.Fatalf("datagram=%q", got)
	}
}

func TestForwarder_Send_Error(t *testing.T) {
	werr := errors.New("network down")
	f := &Forwarder{dest: "x", conn: &fakeConn{writeErr: werr}}
	if err := f.Send([]byte("x")); !errors.Is(err, werr) {
		t.Fatalf("err=%v want %v", err, werr)
	}
}

func TestForwarder_CloseNilConn(t *testing.T) {
	f := &Forwarder{}
	if err := f.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
}
