package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"opensonar/internal/surveylog"
)

type depthStats struct {
	N      int
	Min    float64
	Max    float64
	Mean   float64
	StdDev float64
	Median float64
}

type logSummary struct {
	Records    int
	Dropped    int
	KindCounts map[surveylog.RecordKind]int
	Depth      depthStats
	// SoundSpeeds lists each distinct applied sound speed in log order.
	SoundSpeeds []float64
	FirstTime   string
	LastTime    string
}

func summarizeLog(lg *surveylog.Log) logSummary {
	s := logSummary{
		Records:    len(lg.Records),
		Dropped:    lg.Stats.Dropped,
		KindCounts: map[surveylog.RecordKind]int{},
	}
	var depths []float64
	for i, r := range lg.Records {
		s.KindCounts[r.Kind()]++
		if i == 0 {
			s.FirstTime = r.Time().Format(surveylog.TimeLayout)
		}
		s.LastTime = r.Time().Format(surveylog.TimeLayout)

		d, ok := r.(*surveylog.Depth)
		if !ok {
			continue
		}
		if m, ok := d.DepthM(); ok {
			depths = append(depths, m)
		}
		if ss, ok := d.SoundSpeed.Float(); ok {
			if n := len(s.SoundSpeeds); n == 0 || s.SoundSpeeds[n-1] != ss {
				s.SoundSpeeds = append(s.SoundSpeeds, ss)
			}
		}
	}
	s.Depth = summarizeDepths(depths)
	return s
}

func summarizeDepths(depths []float64) depthStats {
	if len(depths) == 0 {
		return depthStats{}
	}
	sorted := append([]float64(nil), depths...)
	sort.Float64s(sorted)
	ds := depthStats{
		N:      len(sorted),
		Min:    floats.Min(sorted),
		Max:    floats.Max(sorted),
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
	}
	ds.Mean, ds.StdDev = stat.MeanStdDev(sorted, nil)
	if ds.N == 1 {
		ds.StdDev = 0
	}
	return ds
}

func printLogSummary(w io.Writer, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("path is empty")
	}
	lg, err := surveylog.ReadLog(path)
	if err != nil {
		return err
	}
	fi, err := os.Stat(path)
	if err != nil {
		return err
	}
	s := summarizeLog(lg)
	md := lg.Header.Metadata

	fmt.Fprintf(w, "path: %s\n", path)
	fmt.Fprintf(w, "size: %s\n", humanize.Bytes(uint64(fi.Size())))
	fmt.Fprintf(w, "survey: %s (%s, %s)\n", md.Survey.Name, md.Survey.Operator, md.Survey.Date)
	fmt.Fprintf(w, "vessel: %s\n", md.Vessel.Name)
	fmt.Fprintf(w, "records: %s\n", humanize.Comma(int64(s.Records)))
	fmt.Fprintf(w, "dropped: %s\n", humanize.Comma(int64(s.Dropped)))
	if s.Records > 0 {
		fmt.Fprintf(w, "span: %s - %s\n", s.FirstTime, s.LastTime)
	}

	kinds := make([]string, 0, len(s.KindCounts))
	for k := range s.KindCounts {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	fmt.Fprintf(w, "kind_counts:\n")
	for _, k := range kinds {
		fmt.Fprintf(w, "  %s: %s\n", k, humanize.Comma(int64(s.KindCounts[surveylog.RecordKind(k)])))
	}

	if s.Depth.N > 0 {
		fmt.Fprintf(w, "depth_m: n=%d min=%.3f max=%.3f mean=%.3f median=%.3f stddev=%.3f\n",
			s.Depth.N, s.Depth.Min, s.Depth.Max, s.Depth.Mean, s.Depth.Median, s.Depth.StdDev)
	}
	if len(s.SoundSpeeds) > 0 {
		parts := make([]string, len(s.SoundSpeeds))
		for i, v := range s.SoundSpeeds {
			parts[i] = humanize.FtoaWithDigits(v, 3)
		}
		fmt.Fprintf(w, "sound_speeds: %s\n", strings.Join(parts, " -> "))
	}
	return nil
}
