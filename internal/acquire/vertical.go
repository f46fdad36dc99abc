package acquire

import (
	"opensonar/internal/device"
	"opensonar/internal/surveylog"
)

// VerticalFix reduces a GGA position and a sounding to the simple-log row.
//
//	depth  = sounding + sonar waterline offset
//	height = orthometric height + geoid separation - depth - antenna height
func VerticalFix(pos device.Position, s device.Sounding, gnss, sonar surveylog.Mount, soundSpeed float64) surveylog.Fix {
	depth := s.DepthM() + sonar.Vertical
	return surveylog.Fix{
		At:         pos.At,
		LatDeg:     pos.LatDeg,
		LonDeg:     pos.LonDeg,
		DepthM:     depth,
		HeightM:    pos.OrthoHeightM + pos.GeoidSepM - depth - gnss.Vertical,
		SoundSpeed: soundSpeed,
	}
}
