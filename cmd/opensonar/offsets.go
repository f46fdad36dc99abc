package main

import (
	"encoding/csv"
	"os"
	"strconv"

	"opensonar/internal/coord"
	"opensonar/internal/surveylog"
)

var offsetColumns = []string{"Time", "Latitude", "Longitude", "Course", "Sonar_Latitude", "Sonar_Longitude"}

type offsetRow struct {
	Time  string
	Fix   coord.CourseFix
	Sonar coord.LatLon
}

// projectOffsets moves every valid RMC fix onto the transducer using the
// sonar lever arm and the log's ellipsoid.
func projectOffsets(lg *surveylog.Log) []offsetRow {
	md := lg.Header.Metadata
	var times []string
	var fixes []coord.CourseFix
	for _, r := range lg.Records {
		rmc, ok := r.(*surveylog.RMC)
		if !ok {
			continue
		}
		lat, lon, ok := rmc.Position()
		if !ok {
			continue
		}
		course, ok := rmc.TrackTrue.Float()
		if !ok {
			continue
		}
		times = append(times, rmc.At.Format(surveylog.TimeLayout))
		fixes = append(fixes, coord.CourseFix{LatDeg: lat, LonDeg: lon, CourseDeg: course})
	}

	p := coord.NewProjector(md.Geodetics.SemiMajorAxis, md.Geodetics.Flattening)
	projected := p.Project(coord.Offset{X: md.Sonar.X, Y: md.Sonar.Y}, fixes)

	rows := make([]offsetRow, len(fixes))
	for i := range fixes {
		rows[i] = offsetRow{Time: times[i], Fix: fixes[i], Sonar: projected[i]}
	}
	return rows
}

// writeOffsets writes <raw>_offsets.csv next to the raw log.
func writeOffsets(rawPath string) (string, int, error) {
	lg, err := surveylog.ReadLog(rawPath)
	if err != nil {
		return "", 0, err
	}
	rows := projectOffsets(lg)

	out := siblingPath(rawPath, "_offsets")
	f, err := os.Create(out)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(offsetColumns); err != nil {
		return "", 0, err
	}
	ff := func(v float64) string { return strconv.FormatFloat(v, 'f', 8, 64) }
	for _, r := range rows {
		rec := []string{r.Time, ff(r.Fix.LatDeg), ff(r.Fix.LonDeg), strconv.FormatFloat(r.Fix.CourseDeg, 'f', -1, 64), ff(r.Sonar.LatDeg), ff(r.Sonar.LonDeg)}
		if err := cw.Write(rec); err != nil {
			return "", 0, err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", 0, err
	}
	return out, len(rows), f.Close()
}
