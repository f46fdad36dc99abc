package surveylog

import (
	"fmt"
	"strconv"
	"strings"
)

// Section names in header order.
var sectionNames = [...]string{
	"Survey", "Geodetics", "Vessel", "GNSS", "Sonar", "SVP",
	"GNSS_Com", "Sonar_Com", "SVP_Com",
}

// headerRows is the number of metadata rows between the header sentinels.
const headerRows = len(sectionNames)

type Survey struct {
	Name     string
	Operator string
	Date     string
}

// Geodetics holds the reference ellipsoid.
type Geodetics struct {
	SemiMajorAxis float64
	Flattening    float64
}

type Vessel struct {
	Name string
}

// Mount is a sensor fixed to the hull. Vertical is the antenna height offset
// for the GNSS and the waterline offset for the sonar; X/Y/Z are the lever arm.
type Mount struct {
	Name     string
	ComID    string
	Vertical float64
	X        float64
	Y        float64
	Z        float64
}

type Probe struct {
	Name   string
	ComID  string
	Offset float64
}

// Endpoint is a serial connection: Port is the device path, Baud the line rate.
type Endpoint struct {
	Name string
	Port string
	Baud int
}

// Metadata describes one survey session. It is written once at the top of every
// log and read back by post-processing.
type Metadata struct {
	Survey    Survey
	Geodetics Geodetics
	Vessel    Vessel
	GNSS      Mount
	Sonar     Mount
	SVP       Probe
	GNSSCom   Endpoint
	SonarCom  Endpoint
	SVPCom    Endpoint
}

// Validate reports the first missing section.
func (m Metadata) Validate() error {
	missing := ""
	switch {
	case m.Survey == (Survey{}):
		missing = "Survey"
	case m.Geodetics.SemiMajorAxis <= 0 || m.Geodetics.Flattening <= 0:
		missing = "Geodetics"
	case strings.TrimSpace(m.Vessel.Name) == "":
		missing = "Vessel"
	case m.GNSS == (Mount{}):
		missing = "GNSS"
	case m.Sonar == (Mount{}):
		missing = "Sonar"
	case m.SVP == (Probe{}):
		missing = "SVP"
	case m.GNSSCom == (Endpoint{}):
		missing = "GNSS_Com"
	case m.SonarCom == (Endpoint{}):
		missing = "Sonar_Com"
	case m.SVPCom == (Endpoint{}):
		missing = "SVP_Com"
	}
	if missing != "" {
		return fmt.Errorf("%w: metadata section %s is missing", ErrConfig, missing)
	}
	for i, row := range m.rows() {
		for _, c := range row {
			if strings.ContainsAny(c, "\r\n") {
				return fmt.Errorf("%w: metadata section %s contains a line break", ErrConfig, sectionNames[i])
			}
			if v := strings.TrimSpace(c); v == HeaderStart || v == HeaderEnd {
				return fmt.Errorf("%w: metadata section %s contains the marker %s", ErrConfig, sectionNames[i], v)
			}
		}
	}
	return nil
}

// rows renders the nine header rows in fixed order.
func (m Metadata) rows() [][]string {
	return [][]string{
		{m.Survey.Name, m.Survey.Operator, m.Survey.Date},
		{formatFloat(m.Geodetics.SemiMajorAxis), formatFloat(m.Geodetics.Flattening)},
		{m.Vessel.Name},
		m.GNSS.row(),
		m.Sonar.row(),
		{m.SVP.Name, m.SVP.ComID, formatFloat(m.SVP.Offset)},
		m.GNSSCom.row(),
		m.SonarCom.row(),
		m.SVPCom.row(),
	}
}

func (mt Mount) row() []string {
	return []string{mt.Name, mt.ComID, formatFloat(mt.Vertical), formatFloat(mt.X), formatFloat(mt.Y), formatFloat(mt.Z)}
}

func (e Endpoint) row() []string {
	return []string{e.Name, e.Port, strconv.Itoa(e.Baud)}
}

// metadataFromRows maps header rows onto Metadata. Extra rows (the simple-log
// column names) are ignored.
func metadataFromRows(rows [][]string) (Metadata, error) {
	if len(rows) < headerRows {
		return Metadata{}, fmt.Errorf("%w: header has %d rows, want %d", ErrFormat, len(rows), headerRows)
	}
	p := rowParser{rows: rows}
	var m Metadata

	m.Survey = Survey{Name: p.str(0, 0), Operator: p.str(0, 1), Date: p.str(0, 2)}
	m.Geodetics = Geodetics{SemiMajorAxis: p.float(1, 0), Flattening: p.float(1, 1)}
	m.Vessel = Vessel{Name: p.str(2, 0)}
	m.GNSS = p.mount(3)
	m.Sonar = p.mount(4)
	m.SVP = Probe{Name: p.str(5, 0), ComID: p.str(5, 1), Offset: p.float(5, 2)}
	m.GNSSCom = p.endpoint(6)
	m.SonarCom = p.endpoint(7)
	m.SVPCom = p.endpoint(8)

	if p.err != nil {
		return Metadata{}, p.err
	}
	return m, nil
}

// rowParser keeps the first cell error so section mapping reads straight through.
type rowParser struct {
	rows [][]string
	err  error
}

func (p *rowParser) cell(row, col int) (string, bool) {
	if p.err != nil {
		return "", false
	}
	if col >= len(p.rows[row]) {
		p.err = fmt.Errorf("%w: %s row has %d fields, want at least %d", ErrFormat, sectionNames[row], len(p.rows[row]), col+1)
		return "", false
	}
	return p.rows[row][col], true
}

func (p *rowParser) str(row, col int) string {
	v, _ := p.cell(row, col)
	return v
}

func (p *rowParser) float(row, col int) float64 {
	v, ok := p.cell(row, col)
	if !ok {
		return 0
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		p.err = fmt.Errorf("%w: %s field %d: %q is not a number", ErrFormat, sectionNames[row], col, v)
		return 0
	}
	return f
}

func (p *rowParser) int(row, col int) int {
	v, ok := p.cell(row, col)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		p.err = fmt.Errorf("%w: %s field %d: %q is not an integer", ErrFormat, sectionNames[row], col, v)
		return 0
	}
	return n
}

func (p *rowParser) mount(row int) Mount {
	return Mount{
		Name:     p.str(row, 0),
		ComID:    p.str(row, 1),
		Vertical: p.float(row, 2),
		X:        p.float(row, 3),
		Y:        p.float(row, 4),
		Z:        p.float(row, 5),
	}
}

func (p *rowParser) endpoint(row int) Endpoint {
	return Endpoint{Name: p.str(row, 0), Port: p.str(row, 1), Baud: p.int(row, 2)}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
