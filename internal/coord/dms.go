// Package coord converts survey angles and projects lever-arm offsets.
package coord

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrFormat is returned for angle strings that match none of the accepted layouts.
var ErrFormat = errors.New("coord: malformed angle")

const dmsDelimiters = ":,°"

// dmsLayout locates the degree, minute and second digits inside an angle string.
// Offsets are in runes.
type dmsLayout struct {
	deg, min, sec [2]int
	delims        []int
}

// Accepted layouts keyed by (delimited, signed, length).
var dmsLayouts = map[[3]int]dmsLayout{
	// DD:MM:SS, DDD:MM:SS
	{1, 0, 8}: {deg: [2]int{0, 2}, min: [2]int{3, 5}, sec: [2]int{6, 8}, delims: []int{2, 5}},
	{1, 0, 9}: {deg: [2]int{0, 3}, min: [2]int{4, 6}, sec: [2]int{7, 9}, delims: []int{3, 6}},
	// -DD:MM:SS, -DDD:MM:SS
	{1, 1, 9}:  {deg: [2]int{1, 3}, min: [2]int{4, 6}, sec: [2]int{7, 9}, delims: []int{3, 6}},
	{1, 1, 10}: {deg: [2]int{1, 4}, min: [2]int{5, 7}, sec: [2]int{8, 10}, delims: []int{4, 7}},
	// DDMMSS, DDDMMSS
	{0, 0, 6}: {deg: [2]int{0, 2}, min: [2]int{2, 4}, sec: [2]int{4, 6}},
	{0, 0, 7}: {deg: [2]int{0, 3}, min: [2]int{3, 5}, sec: [2]int{5, 7}},
	// -DDMMSS, -DDDMMSS
	{0, 1, 7}: {deg: [2]int{1, 3}, min: [2]int{3, 5}, sec: [2]int{5, 7}},
	{0, 1, 8}: {deg: [2]int{1, 4}, min: [2]int{4, 6}, sec: [2]int{6, 8}},
}

// DMSToDecimal converts a sexagesimal angle to decimal degrees.
//
// The degree field is two or three digits wide depending on the total length of
// the string, so latitude-style and longitude-style magnitudes share one parser.
// Strings whose length does not fit their branch are rejected with ErrFormat.
func DMSToDecimal(s string) (float64, error) {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) == 0 {
		return 0, fmt.Errorf("%w: empty", ErrFormat)
	}

	delimited := strings.ContainsAny(s, dmsDelimiters)
	negative := r[0] == '-'

	key := [3]int{0, 0, len(r)}
	if delimited {
		key[0] = 1
	}
	if negative {
		key[1] = 1
	}
	layout, ok := dmsLayouts[key]
	if !ok {
		return 0, fmt.Errorf("%w: unexpected length %d for %q", ErrFormat, len(r), s)
	}
	for _, i := range layout.delims {
		if !strings.ContainsRune(dmsDelimiters, r[i]) {
			return 0, fmt.Errorf("%w: expected delimiter at %d in %q", ErrFormat, i, s)
		}
	}

	deg, err := dmsDigits(r, layout.deg)
	if err != nil {
		return 0, fmt.Errorf("%w: degrees in %q", ErrFormat, s)
	}
	mins, err := dmsDigits(r, layout.min)
	if err != nil || mins >= 60 {
		return 0, fmt.Errorf("%w: minutes in %q", ErrFormat, s)
	}
	secs, err := dmsDigits(r, layout.sec)
	if err != nil || secs >= 60 {
		return 0, fmt.Errorf("%w: seconds in %q", ErrFormat, s)
	}

	dd := float64(deg) + float64(mins)/60 + float64(secs)/3600
	if negative {
		dd = -dd
	}
	return dd, nil
}

func dmsDigits(r []rune, span [2]int) (int, error) {
	v := 0
	for _, c := range r[span[0]:span[1]] {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("non-digit %q", c)
		}
		v = v*10 + int(c-'0')
	}
	return v, nil
}

// DecimalToDMS encodes d as whole degrees, minutes and seconds. degWidth is 2 or 3.
// Fractional seconds are rounded to the nearest second.
func DecimalToDMS(d float64, delimited bool, degWidth int) string {
	neg := d < 0
	total := int(math.Round(math.Abs(d) * 3600))
	deg := total / 3600
	mins := (total % 3600) / 60
	secs := total % 60

	var b strings.Builder
	if neg && total != 0 {
		b.WriteByte('-')
	}
	b.WriteString(fmt.Sprintf("%0*d", degWidth, deg))
	if delimited {
		b.WriteByte(':')
	}
	b.WriteString(fmt.Sprintf("%02d", mins))
	if delimited {
		b.WriteByte(':')
	}
	b.WriteString(fmt.Sprintf("%02d", secs))
	return b.String()
}

// ParseAngle accepts plain decimal degrees ("-45.875") or any DMS layout
// accepted by DMSToDecimal.
func ParseAngle(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if !strings.ContainsAny(s, dmsDelimiters) && strings.Contains(s, ".") {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrFormat, s)
		}
		return v, nil
	}
	return DMSToDecimal(s)
}
