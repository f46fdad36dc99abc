// Package gps reads NMEA 0183 positioning sentences from a GNSS receiver.
//
// Sentences are validated (checksum) and the handful of fields the survey loop
// needs are extracted; the verbatim sentence is kept for the raw log.
package gps

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"opensonar/internal/device"
)

var (
	errFraming  = errors.New("nmea: bad framing")
	errChecksum = errors.New("nmea: checksum mismatch")
)

// frame is a checksum-verified sentence split into talker, type and fields.
// fields[0] is the address field (talker + type).
type frame struct {
	talker string
	typ    string
	fields []string
}

func unframe(line string) (frame, error) {
	line = strings.TrimSpace(line)
	body, sum, found := strings.Cut(strings.TrimPrefix(line, "$"), "*")
	if !found || !strings.HasPrefix(line, "$") || len(sum) < 2 {
		return frame{}, fmt.Errorf("%w: %q", errFraming, line)
	}
	got, err := strconv.ParseUint(sum[:2], 16, 8)
	if err != nil {
		return frame{}, fmt.Errorf("%w: checksum %q", errFraming, sum)
	}
	if byte(got) != Checksum(body) {
		return frame{}, fmt.Errorf("%w: got %02X want %02X", errChecksum, got, Checksum(body))
	}
	fields := strings.Split(body, ",")
	addr := strings.ToUpper(fields[0])
	if len(addr) < 3 {
		return frame{}, fmt.Errorf("%w: address %q", errFraming, fields[0])
	}
	return frame{talker: addr[:len(addr)-3], typ: addr[len(addr)-3:], fields: fields}, nil
}

// pingable sentence types trigger an echo-sounder ping.
var pingable = map[string]bool{"GGA": true, "RMC": true, "GLL": true}

// ParseSentence validates one NMEA line and extracts position and height.
// Fields that are empty (no fix yet) leave the corresponding OK flag unset.
func ParseSentence(at time.Time, line string) (device.Position, error) {
	fr, err := unframe(line)
	if err != nil {
		return device.Position{}, err
	}
	p := device.Position{
		At:       at,
		Sentence: strings.TrimSpace(line),
		Type:     fr.typ,
		Talker:   fr.talker,
		Pingable: pingable[fr.typ],
	}
	f := fr.fields

	switch fr.typ {
	case "GGA":
		// 1 time, 2-3 lat, 4-5 lon, 6 quality, 7 sats, 8 hdop,
		// 9 altitude, 10 M, 11 geoid separation, 12 M
		if len(f) < 12 {
			return device.Position{}, fmt.Errorf("nmea: short GGA")
		}
		p.LatDeg, p.LonDeg, p.LatLonOK = latLon(f[2], f[3], f[4], f[5])
		h, ok1 := parseFloat(f[9])
		n, ok2 := parseFloat(f[11])
		if ok1 && ok2 {
			p.OrthoHeightM, p.GeoidSepM, p.HeightOK = h, n, true
		}
	case "RMC":
		// 1 time, 2 status, 3-4 lat, 5-6 lon
		if len(f) < 7 {
			return device.Position{}, fmt.Errorf("nmea: short RMC")
		}
		if strings.TrimSpace(f[2]) == "A" {
			p.LatDeg, p.LonDeg, p.LatLonOK = latLon(f[3], f[4], f[5], f[6])
		}
	case "GLL":
		// 1-2 lat, 3-4 lon, 5 time, 6 status
		if len(f) < 5 {
			return device.Position{}, fmt.Errorf("nmea: short GLL")
		}
		p.LatDeg, p.LonDeg, p.LatLonOK = latLon(f[1], f[2], f[3], f[4])
	}
	return p, nil
}

func latLon(lat, latHemi, lon, lonHemi string) (float64, float64, bool) {
	la, ok1 := nmeaDegrees(lat, latHemi, 90)
	lo, ok2 := nmeaDegrees(lon, lonHemi, 180)
	return la, lo, ok1 && ok2
}

func parseFloat(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// nmeaDegrees converts a [d]ddmm.mmmm value and its hemisphere letter to signed
// decimal degrees.
func nmeaDegrees(v, hemi string, limit float64) (float64, bool) {
	sign := 1.0
	switch strings.ToUpper(strings.TrimSpace(hemi)) {
	case "N", "E":
	case "S", "W":
		sign = -1
	default:
		return 0, false
	}
	raw, ok := parseFloat(v)
	if !ok || raw < 0 {
		return 0, false
	}
	deg := math.Floor(raw / 100)
	mins := raw - deg*100
	if mins >= 60 || deg > limit {
		return 0, false
	}
	return sign * (deg + mins/60), true
}

// Checksum returns the NMEA XOR checksum of a payload (without '$' and '*').
func Checksum(payload string) byte {
	ck := byte(0)
	for i := 0; i < len(payload); i++ {
		ck ^= payload[i]
	}
	return ck
}

// Sentence frames a payload as "$payload*hh".
func Sentence(payload string) string {
	return fmt.Sprintf("$%s*%02X", payload, Checksum(payload))
}
