package surveylog

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"opensonar/internal/device"
)

// Log format: comma-delimited text.
//
//	OSP_RAW_LOG | OSP_SIMPLE_LOG
//	Header_Start
//	<nine metadata rows>
//	<column names, simple log only>
//	Header_End
//	<data rows>
//
// Raw data rows are either a timestamped positioning sentence
// (hh:mm:ss.ffffff,$GNGGA,...*hh) or a depth row
// (hh:mm:ss.ffffff,$DEPTH,depth_mm,confidence,duration_us,start_mm,length_mm,gain,sound_speed).
// Simple rows are hh:mm:ss.ffffff,lat,lon,depth,height,sound_speed.

const (
	HeaderStart = "Header_Start"
	HeaderEnd   = "Header_End"

	// DepthTag identifies echo-sounder rows.
	DepthTag = "$DEPTH"

	// TimeLayout is the row timestamp (UTC time of day).
	TimeLayout = "15:04:05.000000"
)

// Kind selects the log flavor.
type Kind int

const (
	KindRaw Kind = iota
	KindSimple
)

var kindMarkers = map[Kind]string{
	KindRaw:    "OSP_RAW_LOG",
	KindSimple: "OSP_SIMPLE_LOG",
}

func (k Kind) String() string {
	if s, ok := kindMarkers[k]; ok {
		return s
	}
	return "UNKNOWN"
}

func kindFromMarker(s string) (Kind, bool) {
	for k, m := range kindMarkers {
		if m == s {
			return k, true
		}
	}
	return 0, false
}

// SimpleColumns is the column-name row of the simple log.
var SimpleColumns = []string{"Time", "Latitude", "Longitude", "Depth_Below_Water", "Height_Ellipsoidal", "Soundspeed"}

// Fix is one derived row of the simple log.
type Fix struct {
	At         time.Time
	LatDeg     float64
	LonDeg     float64
	DepthM     float64
	HeightM    float64
	SoundSpeed float64
}

type Writer struct {
	c      io.Closer
	w      *bufio.Writer
	kind   Kind
	closed bool
}

// Create opens a new log at path and writes its header. Nothing is created if
// the extension or the metadata is rejected.
func Create(path string, kind Kind, md Metadata) (*Writer, error) {
	if err := CheckExtension(path); err != nil {
		return nil, err
	}
	if err := md.Validate(); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	ww, err := NewWriter(f, kind, md)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	ww.c = f
	return ww, nil
}

// NewWriter writes the header to w. If w is an io.Closer it is not closed by
// Writer.Close; use Create for file ownership.
func NewWriter(w io.Writer, kind Kind, md Metadata) (*Writer, error) {
	if _, ok := kindMarkers[kind]; !ok {
		return nil, fmt.Errorf("unknown log kind %d", int(kind))
	}
	if err := md.Validate(); err != nil {
		return nil, err
	}

	ww := &Writer{w: bufio.NewWriter(w), kind: kind}
	cw := csv.NewWriter(ww.w)
	records := [][]string{{kind.String()}, {HeaderStart}}
	records = append(records, md.rows()...)
	if kind == KindSimple {
		records = append(records, SimpleColumns)
	}
	records = append(records, []string{HeaderEnd})
	if err := cw.WriteAll(records); err != nil {
		return nil, err
	}
	if err := ww.w.Flush(); err != nil {
		return nil, err
	}
	return ww, nil
}

func (ww *Writer) Kind() Kind { return ww.kind }

// WritePositioning appends a timestamped positioning sentence verbatim.
func (ww *Writer) WritePositioning(at time.Time, sentence string) error {
	return ww.writeLine(at.UTC().Format(TimeLayout) + "," + sentence)
}

// WriteDepth appends one echo-sounder reading and the sound speed applied to it.
func (ww *Writer) WriteDepth(at time.Time, s device.Sounding, soundSpeed float64) error {
	line := fmt.Sprintf("%s,%s,%d,%d,%d,%d,%d,%d,%s",
		at.UTC().Format(TimeLayout), DepthTag,
		s.DistanceMM, s.Confidence, s.TransmitDurationUS,
		s.ScanStartMM, s.ScanLengthMM, s.GainSetting,
		formatFloat(soundSpeed))
	return ww.writeLine(line)
}

// WriteFix appends a simple-log row.
func (ww *Writer) WriteFix(f Fix) error {
	return ww.writeLine(FormatFix(f))
}

// FormatFix renders a simple-log row without line terminator.
func FormatFix(f Fix) string {
	return f.At.UTC().Format(TimeLayout) + "," +
		strconv.FormatFloat(f.LatDeg, 'f', 8, 64) + "," +
		strconv.FormatFloat(f.LonDeg, 'f', 8, 64) + "," +
		strconv.FormatFloat(f.DepthM, 'f', 3, 64) + "," +
		strconv.FormatFloat(f.HeightM, 'f', 3, 64) + "," +
		formatFloat(f.SoundSpeed)
}

func (ww *Writer) writeLine(line string) error {
	if ww.closed {
		return errors.New("survey log writer is closed")
	}
	if _, err := ww.w.WriteString(line + "\n"); err != nil {
		return err
	}
	return ww.w.Flush()
}

func (ww *Writer) Close() error {
	if ww.closed {
		return nil
	}
	ww.closed = true
	err := ww.w.Flush()
	if ww.c != nil {
		if cerr := ww.c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
