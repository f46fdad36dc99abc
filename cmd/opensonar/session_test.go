package main

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"opensonar/internal/config"
	"opensonar/internal/surveylog"
	"opensonar/internal/udp"
)

func writeSurveyConfig(t *testing.T, dir string) string {
	t.Helper()
	header := testRawLog[:strings.Index(testRawLog, "Header_End")+len("Header_End\n")]
	path := filepath.Join(dir, "survey.csv")
	if err := os.WriteFile(path, []byte(header), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	return path
}

func TestSessionName(t *testing.T) {
	md := surveylog.Metadata{Survey: surveylog.Survey{Name: "Otago Harbour, Line 4"}}
	start := time.Date(2022, 1, 14, 12, 35, 19, 0, time.FixedZone("NZDT", 13*3600))
	if got, want := sessionName(md, start), "Otago_Harbour__Line_4_20220113T233519Z"; got != want {
		t.Fatalf("sessionName=%q want %q", got, want)
	}
	if got := sessionName(surveylog.Metadata{}, start); !strings.HasPrefix(got, "survey_") {
		t.Fatalf("sessionName=%q want survey_ prefix", got)
	}
}

func TestBuildDevices_EndpointsFromMetadata(t *testing.T) {
	if got := pick("", "/dev/ttyUSB0"); got != "/dev/ttyUSB0" {
		t.Fatalf("pick=%q", got)
	}
	if got := pick(" /dev/ttyS1 ", "/dev/ttyUSB0"); got != "/dev/ttyS1" {
		t.Fatalf("pick override=%q", got)
	}
	if got := pickInt(0, 115200); got != 115200 {
		t.Fatalf("pickInt=%d", got)
	}
	if got := pickInt(9600, 115200); got != 9600 {
		t.Fatalf("pickInt override=%d", got)
	}
}

func TestSiblingPath(t *testing.T) {
	cases := map[string]string{
		"/data/line4_raw.csv": "/data/line4_raw_offsets.csv",
		"line4":               "line4_offsets.csv",
	}
	for in, want := range cases {
		if got := siblingPath(in, "_offsets"); got != want {
			t.Fatalf("siblingPath(%q)=%q want %q", in, got, want)
		}
	}
}

func TestRunSession_Simulated(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Config{
		Metadata:    writeSurveyConfig(t, dir),
		OutputDir:   filepath.Join(dir, "out"),
		Interval:    2 * time.Millisecond,
		Recalibrate: config.RecalibrateConfig{Enable: true, Period: 5},
		Sim: config.SimConfig{
			Enable:    true,
			CenterLat: "-45.8",
			CenterLon: "170.6",
		},
	}
	if err := config.DefaultAndValidate(&cfg); err != nil {
		t.Fatalf("DefaultAndValidate() error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 400*time.Millisecond)
	defer cancel()
	if err := runSession(ctx, cfg); err != nil {
		t.Fatalf("runSession() error: %v", err)
	}

	raws, _ := filepath.Glob(filepath.Join(cfg.OutputDir, "Line_4_*_raw.csv"))
	simples, _ := filepath.Glob(filepath.Join(cfg.OutputDir, "Line_4_*_simple.csv"))
	if len(raws) != 1 || len(simples) != 1 {
		t.Fatalf("raw=%v simple=%v", raws, simples)
	}

	lg, err := surveylog.ReadLog(raws[0])
	if err != nil {
		t.Fatalf("ReadLog() error: %v", err)
	}
	if lg.Stats.Dropped != 0 {
		t.Fatalf("dropped=%d last=%s", lg.Stats.Dropped, lg.Stats.LastDrop)
	}
	s := summarizeLog(lg)
	if s.KindCounts[surveylog.KindGGA] == 0 || s.KindCounts[surveylog.KindDepth] == 0 {
		t.Fatalf("kind counts=%v", s.KindCounts)
	}

	f, err := os.Open(simples[0])
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	fixes, err := surveylog.NewReader(f).ReadFixes()
	if err != nil {
		t.Fatalf("ReadFixes() error: %v", err)
	}
	// Cancellation can land between the GGA row and its sounding.
	if n := s.KindCounts[surveylog.KindGGA]; len(fixes) != n && len(fixes) != n-1 {
		t.Fatalf("fixes=%d want one per GGA (%d)", len(fixes), n)
	}
}

func TestRunSession_MissingMetadata(t *testing.T) {
	cfg := config.Config{Metadata: filepath.Join(t.TempDir(), "missing.csv"), Interval: time.Millisecond}
	if err := runSession(context.Background(), cfg); err == nil {
		t.Fatalf("expected error")
	}
}

func TestReprocess(t *testing.T) {
	raw := writeTestRawLog(t)
	if err := reprocess(raw, ""); err != nil {
		t.Fatalf("reprocess() error: %v", err)
	}
	b, err := os.ReadFile(siblingPath(raw, "_reduced"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), ",2.100,8.350,1500") {
		t.Fatalf("reduced log missing fix:\n%s", b)
	}
}

func TestFixHooks_ForwardsOverUDP(t *testing.T) {
	if fixHooks(nil, nil) != nil {
		t.Fatalf("expected no hook without LED or forwarder")
	}

	pc, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("ListenUDP() error: %v", err)
	}
	defer pc.Close()

	fwd, err := udp.NewForwarder(pc.LocalAddr().String())
	if err != nil {
		t.Fatalf("NewForwarder() error: %v", err)
	}
	defer fwd.Close()

	hook := fixHooks(nil, fwd)
	hook(surveylog.Fix{At: time.Date(2022, 1, 14, 12, 0, 0, 0, time.UTC), DepthM: 2.1, HeightM: 8.35, SoundSpeed: 1500})

	buf := make([]byte, 512)
	_ = pc.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, _, err := pc.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("ReadFromUDP() error: %v", err)
	}
	if got := string(buf[:n]); !strings.Contains(got, ",2.100,8.350,1500") {
		t.Fatalf("datagram=%q", got)
	}
}
