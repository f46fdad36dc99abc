// Package replay reduces a recorded raw log to simple-log fixes again, so
// offsets corrected after the survey can be applied without re-running it.
package replay

import (
	"fmt"
	"log"
	"math"

	"opensonar/internal/acquire"
	"opensonar/internal/device"
	"opensonar/internal/surveylog"
)

type Result struct {
	Fixes []surveylog.Fix
	// Skipped counts GGA rows without a usable fix or without a following depth
	// row carrying a usable depth and sound speed.
	Skipped int
}

// Reduce pairs every GGA row with the depth row logged right after it, the
// same pairing the acquisition loop makes online.
func Reduce(recs []surveylog.Record, md surveylog.Metadata) Result {
	var res Result
	for i, rec := range recs {
		gga, ok := rec.(*surveylog.GGA)
		if !ok {
			continue
		}
		var depth *surveylog.Depth
		if i+1 < len(recs) {
			depth, _ = recs[i+1].(*surveylog.Depth)
		}
		pos, pok := position(gga)
		snd, ss, sok := sounding(depth)
		if !pok || !sok {
			res.Skipped++
			continue
		}
		res.Fixes = append(res.Fixes, acquire.VerticalFix(pos, snd, md.GNSS, md.Sonar, ss))
	}
	return res
}

func position(g *surveylog.GGA) (device.Position, bool) {
	lat, lon, ok := g.Position()
	if !ok {
		return device.Position{}, false
	}
	h, hok := g.OrthoHeight.Float()
	n, nok := g.GeoidSep.Float()
	if !hok || !nok {
		return device.Position{}, false
	}
	return device.Position{
		At:           g.At,
		Sentence:     g.Text,
		Type:         "GGA",
		Talker:       g.Talker(),
		Pingable:     true,
		LatDeg:       lat,
		LonDeg:       lon,
		LatLonOK:     true,
		OrthoHeightM: h,
		GeoidSepM:    n,
		HeightOK:     true,
	}, true
}

func sounding(d *surveylog.Depth) (device.Sounding, float64, bool) {
	if d == nil {
		return device.Sounding{}, 0, false
	}
	mm, ok := d.DepthMM.Float()
	if !ok || !(mm >= 0 && mm <= math.MaxUint32) {
		return device.Sounding{}, 0, false
	}
	ss, ok := d.SoundSpeed.Float()
	if !ok || !device.ValidSoundSpeed(ss) {
		return device.Sounding{}, 0, false
	}
	conf, _ := d.Confidence.Float()
	return device.Sounding{
		At:         d.At,
		DistanceMM: uint32(mm),
		Confidence: uint16(conf),
	}, ss, true
}

// ReduceFile reads the raw log at rawPath and writes the reduced simple log to
// simplePath. When md is nil the raw log's own metadata is used.
func ReduceFile(rawPath, simplePath string, md *surveylog.Metadata) (Result, error) {
	lg, err := surveylog.ReadLog(rawPath)
	if err != nil {
		return Result{}, err
	}
	meta := lg.Header.Metadata
	if md != nil {
		meta = *md
	}

	res := Reduce(lg.Records, meta)
	w, err := surveylog.Create(simplePath, surveylog.KindSimple, meta)
	if err != nil {
		return Result{}, err
	}
	for _, f := range res.Fixes {
		if err := w.WriteFix(f); err != nil {
			_ = w.Close()
			return Result{}, fmt.Errorf("%s: %w", simplePath, err)
		}
	}
	if err := w.Close(); err != nil {
		return Result{}, err
	}
	log.Printf("replay reduced raw=%s simple=%s fixes=%d skipped=%d", rawPath, simplePath, len(res.Fixes), res.Skipped)
	return res, nil
}
