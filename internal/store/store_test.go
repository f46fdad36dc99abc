package store

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"opensonar/internal/surveylog"
)

const rawLog = `OSP_RAW_LOG
Header_Start
Line 4,ops,2022-01-14
6378137,298.257223563
RV Tiaki
F9P,GNSS1,0.05,0.1,-0.25,1.2
Ping1D,SON1,0.1,0.3,0.4,-0.2
miniSVS,SVP1,0.15
GNSS,/dev/ttyACM0,9600
Sonar,/dev/ttyUSB0,115200
SVP,/dev/ttyUSB1,19200
Header_End
12:00:00.000000,$GPGGA,120000.00,4807.0380,N,01131.0000,E,1,08,0.9,10.000,M,0.500,M,,*68
12:00:00.250000,$DEPTH,2000,100,208,0,24000,3,1500
12:00:01.000000,$GPVTG,054.7,T,034.4,M,005.5,N,010.2,K,A*25
12:00:01.250000,BADTAG,1,2
`

func writeLog(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "line4_raw.csv")
	if err := os.WriteFile(path, []byte(rawLog), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	return path
}

func TestExport_RoundTrip(t *testing.T) {
	lg, err := surveylog.ReadLog(writeLog(t))
	if err != nil {
		t.Fatalf("ReadLog() error: %v", err)
	}

	s := NewSqliteStore(filepath.Join(t.TempDir(), "survey.db"))
	defer s.Close()
	ctx := context.Background()

	id, err := s.Export(ctx, lg)
	if err != nil {
		t.Fatalf("Export() error: %v", err)
	}

	sessions, err := s.Sessions(ctx)
	if err != nil {
		t.Fatalf("Sessions() error: %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID != id {
		t.Fatalf("sessions=%+v", sessions)
	}
	if !reflect.DeepEqual(sessions[0].Metadata, lg.Header.Metadata) {
		t.Fatalf("metadata mismatch\n got: %+v\nwant: %+v", sessions[0].Metadata, lg.Header.Metadata)
	}
	if sessions[0].Survey != "Line 4" || sessions[0].Dropped != lg.Stats.Dropped {
		t.Fatalf("session=%+v", sessions[0])
	}

	counts, err := s.RecordCounts(ctx, id)
	if err != nil {
		t.Fatalf("RecordCounts() error: %v", err)
	}
	want := map[surveylog.RecordKind]int{}
	for _, r := range lg.Records {
		want[r.Kind()]++
	}
	if !reflect.DeepEqual(counts, want) {
		t.Fatalf("counts=%v want %v", counts, want)
	}

	snd, err := s.Soundings(ctx, id)
	if err != nil {
		t.Fatalf("Soundings() error: %v", err)
	}
	if len(snd) != 1 {
		t.Fatalf("soundings=%d want 1", len(snd))
	}
	if !snd[0].DepthM.Valid || snd[0].DepthM.Float64 != 2 || snd[0].SoundSpeed.Float64 != 1500 {
		t.Fatalf("sounding=%+v", snd[0])
	}
	if !strings.HasPrefix(snd[0].TimeOfDay, "12:00:00.25") {
		t.Fatalf("time_of_day=%q", snd[0].TimeOfDay)
	}
}

func TestExport_TwoSessions(t *testing.T) {
	lg, err := surveylog.ReadLog(writeLog(t))
	if err != nil {
		t.Fatal(err)
	}
	s := NewSqliteStore(filepath.Join(t.TempDir(), "survey.db"))
	defer s.Close()
	ctx := context.Background()

	a, err := s.Export(ctx, lg)
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.Export(ctx, lg)
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Fatalf("session ids should differ: %d", a)
	}
	snd, err := s.Soundings(ctx, b)
	if err != nil {
		t.Fatal(err)
	}
	if len(snd) != 1 {
		t.Fatalf("soundings for second session=%d want 1", len(snd))
	}
}
