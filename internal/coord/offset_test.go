package coord

import (
	"math"
	"testing"
)

func TestOffsetBearing_Quadrants(t *testing.T) {
	if b := OffsetBearing(Offset{X: 0, Y: 2}); b != 0 {
		t.Fatalf("forward offset bearing=%v want 0", b)
	}
	if b := OffsetBearing(Offset{X: 1.5, Y: 0}); math.Abs(b-90) > 1e-6 {
		t.Fatalf("starboard offset bearing=%v want 90", b)
	}
	if b := OffsetBearing(Offset{X: -1, Y: -1}); b <= 180 || b >= 270 {
		t.Fatalf("port-aft offset bearing=%v want (180,270)", b)
	}
	if b := OffsetBearing(Offset{X: -1, Y: 1}); math.Abs(b-315) > 1e-6 {
		t.Fatalf("port-forward offset bearing=%v want 315", b)
	}
	if b := OffsetBearing(Offset{X: 1, Y: -1}); math.Abs(b-135) > 1e-6 {
		t.Fatalf("starboard-aft offset bearing=%v want 135", b)
	}
}

func TestOffsetDistance(t *testing.T) {
	if d := OffsetDistance(Offset{X: 3, Y: 4}); d != 5 {
		t.Fatalf("distance=%v want 5", d)
	}
}

func TestProjector_ProjectKeepsOrderAndDistance(t *testing.T) {
	p := NewProjector(6378137, 298.257223563)
	fixes := []CourseFix{
		{LatDeg: -45.0, LonDeg: 170.0, CourseDeg: 0},
		{LatDeg: -45.0, LonDeg: 170.0, CourseDeg: 90},
		{LatDeg: 10.0, LonDeg: -20.0, CourseDeg: 350},
	}
	out := p.Project(Offset{X: 0, Y: 10}, fixes)
	if len(out) != len(fixes) {
		t.Fatalf("len=%d want %d", len(out), len(fixes))
	}

	// Heading north: latitude grows, longitude unchanged.
	if out[0].LatDeg <= fixes[0].LatDeg || math.Abs(out[0].LonDeg-fixes[0].LonDeg) > 1e-9 {
		t.Fatalf("north projection unexpected: %+v", out[0])
	}
	// Heading east: longitude grows.
	if out[1].LonDeg <= fixes[1].LonDeg {
		t.Fatalf("east projection unexpected: %+v", out[1])
	}
	// 10 m is ~9e-5 degrees of latitude.
	dLat := math.Abs(out[0].LatDeg - fixes[0].LatDeg)
	if dLat < 8e-5 || dLat > 1e-4 {
		t.Fatalf("north projection distance off: dLat=%v", dLat)
	}
}

func TestProjector_CourseWrap(t *testing.T) {
	p := NewProjector(0, 0)
	// 350 + 90 wraps to 80 degrees.
	out := p.Project(Offset{X: 5, Y: 0}, []CourseFix{{LatDeg: 0, LonDeg: 0, CourseDeg: 350}})
	if out[0].LonDeg <= 0 || out[0].LatDeg <= 0 {
		t.Fatalf("expected north-east projection, got %+v", out[0])
	}
}
