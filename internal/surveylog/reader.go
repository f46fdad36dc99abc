package surveylog

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"
)

// Header is the metadata block at the top of a log or survey configuration file.
type Header struct {
	// Kind is only meaningful when KindKnown is set; survey configuration
	// files carry no kind marker.
	Kind      Kind
	KindKnown bool
	Metadata  Metadata
	// Columns holds the column-name row of a simple log.
	Columns []string
}

// Stats counts data lines seen by a Reader.
type Stats struct {
	Lines   int
	Decoded int
	Dropped int
	// LastDrop describes the most recent dropped line.
	LastDrop string
}

// Reader decodes a log in a single forward pass: ReadHeader, then ReadRecords
// or ReadFixes. Reading records without reading the header first skips it.
type Reader struct {
	s          *lineReader
	headerDone bool
	stats      Stats
}

func NewReader(r io.Reader) *Reader {
	return &Reader{s: &lineReader{br: bufio.NewReader(r)}}
}

// MaxLineLen bounds a single row. Longer data rows are dropped whole.
const MaxLineLen = 256 * 1024

// lineReader yields newline-terminated lines like bufio.Scanner but keeps
// going past a line longer than MaxLineLen, flagging it instead.
type lineReader struct {
	br      *bufio.Reader
	line    string
	tooLong bool
	err     error
}

func (lr *lineReader) Scan() bool {
	lr.line, lr.tooLong = "", false
	if lr.err != nil {
		return false
	}
	var buf []byte
	read := false
	for {
		chunk, err := lr.br.ReadSlice('\n')
		if len(chunk) > 0 {
			read = true
			if !lr.tooLong && len(buf)+len(chunk) <= MaxLineLen+2 {
				buf = append(buf, chunk...)
			} else {
				lr.tooLong = true
				buf = nil
			}
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		if err != nil && err != io.EOF {
			lr.err = err
		}
		if err != nil && !read {
			return false
		}
		break
	}
	lr.line = strings.TrimRight(string(buf), "\r\n")
	return true
}

func (lr *lineReader) Text() string  { return lr.line }
func (lr *lineReader) TooLong() bool { return lr.tooLong }
func (lr *lineReader) Err() error    { return lr.err }

func (rd *Reader) Stats() Stats { return rd.stats }

// ReadHeader scans to Header_Start and maps the rows up to Header_End.
func (rd *Reader) ReadHeader() (Header, error) {
	if rd.headerDone {
		return Header{}, fmt.Errorf("%w: header already consumed", ErrFormat)
	}
	var h Header
	started := false
	var rows [][]string
	for rd.s.Scan() {
		if rd.s.TooLong() {
			return Header{}, fmt.Errorf("%w: header line longer than %d bytes", ErrFormat, MaxLineLen)
		}
		line := rd.s.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		cells, err := parseCSVLine(line)
		if err != nil {
			return Header{}, fmt.Errorf("%w: %v", ErrFormat, err)
		}
		first := strings.TrimSpace(cells[0])
		if !started {
			if first == HeaderStart {
				started = true
			} else if k, ok := kindFromMarker(first); ok {
				h.Kind, h.KindKnown = k, true
			}
			continue
		}
		if first == HeaderEnd {
			rd.headerDone = true
			md, err := metadataFromRows(rows)
			if err != nil {
				return Header{}, err
			}
			h.Metadata = md
			if len(rows) > headerRows {
				h.Columns = rows[headerRows]
			}
			return h, nil
		}
		rows = append(rows, cells)
	}
	if err := rd.s.Err(); err != nil {
		return Header{}, err
	}
	if !started {
		return Header{}, fmt.Errorf("%w: missing %s", ErrFormat, HeaderStart)
	}
	return Header{}, fmt.Errorf("%w: missing %s after %d rows", ErrFormat, HeaderEnd, len(rows))
}

func parseCSVLine(line string) ([]string, error) {
	cr := csv.NewReader(strings.NewReader(line))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cells, err := cr.Read()
	if err != nil {
		return nil, err
	}
	return cells, nil
}

// skipHeader advances past Header_End when the caller did not read the header.
func (rd *Reader) skipHeader() {
	if rd.headerDone {
		return
	}
	rd.headerDone = true
	for rd.s.Scan() {
		if strings.TrimSpace(rd.s.Text()) == HeaderEnd {
			return
		}
	}
}

// ReadRecords decodes every remaining data line in file order. Lines with fewer
// than two fields, an unknown tag, the wrong field count for their tag or an
// unreadable timestamp are dropped and counted in Stats.
func (rd *Reader) ReadRecords() ([]Record, error) {
	rd.skipHeader()
	var out []Record
	for rd.s.Scan() {
		if rd.s.TooLong() {
			rd.stats.Lines++
			rd.drop("", fmt.Sprintf("line longer than %d bytes", MaxLineLen))
			continue
		}
		line := rd.s.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		rd.stats.Lines++
		rec, reason := DecodeLine(line)
		if rec == nil {
			rd.drop(line, reason)
			continue
		}
		rd.stats.Decoded++
		out = append(out, rec)
	}
	if err := rd.s.Err(); err != nil {
		return out, err
	}
	return out, nil
}

// ReadFixes decodes the remaining rows of a simple log.
func (rd *Reader) ReadFixes() ([]Fix, error) {
	rd.skipHeader()
	var out []Fix
	for rd.s.Scan() {
		if rd.s.TooLong() {
			rd.stats.Lines++
			rd.drop("", fmt.Sprintf("line longer than %d bytes", MaxLineLen))
			continue
		}
		line := rd.s.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		rd.stats.Lines++
		fix, reason := decodeFix(line)
		if reason != "" {
			rd.drop(line, reason)
			continue
		}
		rd.stats.Decoded++
		out = append(out, fix)
	}
	if err := rd.s.Err(); err != nil {
		return out, err
	}
	return out, nil
}

func (rd *Reader) drop(line, reason string) {
	rd.stats.Dropped++
	rd.stats.LastDrop = fmt.Sprintf("%s: %q", reason, line)
}

// DecodeLine decodes one raw data row. It returns nil and a reason when the row
// is dropped.
func DecodeLine(line string) (Record, string) {
	cells := strings.Split(line, ",")
	if len(cells) < 2 {
		return nil, "short row"
	}
	tag := strings.TrimSpace(cells[1])
	kind, ok := tagKind(tag)
	if !ok {
		return nil, "unknown tag"
	}
	if len(cells) != recordArity[kind] {
		return nil, fmt.Sprintf("%s row has %d fields, want %d", kind, len(cells), recordArity[kind])
	}
	at, err := parseTime(cells[0])
	if err != nil {
		return nil, "bad timestamp"
	}

	if kind == KindDepth {
		f := fields(cells[2:])
		return &Depth{
			At:           at,
			DepthMM:      f[0],
			Confidence:   f[1],
			DurationUS:   f[2],
			ScanStartMM:  f[3],
			ScanLengthMM: f[4],
			Gain:         f[5],
			SoundSpeed:   f[6],
		}, ""
	}

	text := strings.TrimSpace(line[len(cells[0])+1:])
	last := len(cells) - 1
	var ck string
	cells[last], ck = splitChecksum(cells[last])
	s := Sentence{At: at, Tag: tag, Checksum: ck, Text: text}
	f := fields(cells[2:])

	switch kind {
	case KindVTG:
		return &VTG{
			Sentence:   s,
			TrackTrue:  f[0],
			TrueRef:    f[1],
			TrackMag:   f[2],
			MagRef:     f[3],
			SpeedKnots: f[4],
			KnotsUnit:  f[5],
			SpeedKmh:   f[6],
			KmhUnit:    f[7],
			Mode:       f[8],
		}, ""
	case KindRMC:
		return &RMC{
			Sentence:   s,
			UTC:        f[0],
			Status:     f[1],
			Lat:        f[2],
			LatHem:     f[3],
			Lon:        f[4],
			LonHem:     f[5],
			SpeedKnots: f[6],
			TrackTrue:  f[7],
			Date:       f[8],
			MagVar:     f[9],
			MagVarDir:  f[10],
			Mode:       f[11],
			NavStatus:  f[12],
		}, ""
	case KindGGA:
		return &GGA{
			Sentence:     s,
			UTC:          f[0],
			Lat:          f[1],
			LatHem:       f[2],
			Lon:          f[3],
			LonHem:       f[4],
			Quality:      f[5],
			Satellites:   f[6],
			HDOP:         f[7],
			OrthoHeight:  f[8],
			OrthoUnit:    f[9],
			GeoidSep:     f[10],
			GeoidUnit:    f[11],
			DGPSAge:      f[12],
			RefStationID: f[13],
		}, ""
	default:
		return &GLL{
			Sentence: s,
			Lat:      f[0],
			LatHem:   f[1],
			Lon:      f[2],
			LonHem:   f[3],
			UTC:      f[4],
			Status:   f[5],
			Mode:     f[6],
		}, ""
	}
}

func tagKind(tag string) (RecordKind, bool) {
	if tag == DepthTag {
		return KindDepth, true
	}
	for _, k := range []RecordKind{KindVTG, KindRMC, KindGGA, KindGLL} {
		if strings.HasSuffix(tag, string(k)) {
			return k, true
		}
	}
	return "", false
}

func fields(cells []string) []Field {
	out := make([]Field, len(cells))
	for i, c := range cells {
		out[i] = ParseField(c)
	}
	return out
}

// parseTime reads a time of day; the fractional part is optional.
func parseTime(s string) (time.Time, error) {
	return time.Parse("15:04:05", strings.TrimSpace(s))
}

func decodeFix(line string) (Fix, string) {
	cells := strings.Split(line, ",")
	if len(cells) != len(SimpleColumns) {
		return Fix{}, fmt.Sprintf("simple row has %d fields, want %d", len(cells), len(SimpleColumns))
	}
	at, err := parseTime(cells[0])
	if err != nil {
		return Fix{}, "bad timestamp"
	}
	var v [5]float64
	for i := range v {
		f := ParseField(cells[i+1])
		if !f.Numeric {
			return Fix{}, fmt.Sprintf("%s is not numeric", SimpleColumns[i+1])
		}
		v[i] = f.Num
	}
	return Fix{At: at, LatDeg: v[0], LonDeg: v[1], DepthM: v[2], HeightM: v[3], SoundSpeed: v[4]}, ""
}

// Log is a fully decoded raw log.
type Log struct {
	Path    string
	Header  Header
	Records []Record
	Stats   Stats
}

// ReadLog reads the header and all records of the raw log at path. Each call
// reopens the file, so repeated calls yield the same sequence.
func ReadLog(path string) (*Log, error) {
	if err := CheckExtension(path); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rd := NewReader(f)
	h, err := rd.ReadHeader()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	recs, err := rd.ReadRecords()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	st := rd.Stats()
	if st.Dropped > 0 {
		log.Printf("surveylog dropped rows path=%s dropped=%d lines=%d last=%s", path, st.Dropped, st.Lines, st.LastDrop)
	}
	return &Log{Path: path, Header: h, Records: recs, Stats: st}, nil
}

// LoadMetadata reads the header block of a survey configuration file.
func LoadMetadata(path string) (Metadata, error) {
	if err := CheckExtension(path); err != nil {
		return Metadata{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return Metadata{}, err
	}
	defer f.Close()

	h, err := NewReader(f).ReadHeader()
	if err != nil {
		return Metadata{}, fmt.Errorf("%s: %w", path, err)
	}
	return h.Metadata, nil
}
