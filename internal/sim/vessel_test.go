package sim

import (
	"math"
	"testing"
	"time"

	"opensonar/internal/gps"
)

func TestVessel_Position_Invariants(t *testing.T) {
	v := Vessel{CenterLatDeg: -45.8, CenterLonDeg: 170.6, RadiusM: 300, Period: 5 * time.Minute}

	start := time.Date(2022, 1, 14, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 300; i += 7 {
		now := start.Add(time.Duration(i) * time.Second)
		lat, lon, course := v.Position(now)
		for name, x := range map[string]float64{"lat": lat, "lon": lon, "course": course} {
			if math.IsNaN(x) || math.IsInf(x, 0) {
				t.Fatalf("%s invalid at %s: %v", name, now, x)
			}
		}
		if course < 0 || course >= 360 {
			t.Fatalf("course out of range: %v", course)
		}
		radiusDeg := v.RadiusM / metersPerDegLat
		if math.Abs(lat-v.CenterLatDeg) > radiusDeg*0.51 {
			t.Fatalf("lat offset too large: %f", math.Abs(lat-v.CenterLatDeg))
		}
		maxLonDeg := radiusDeg / math.Cos(v.CenterLatDeg*math.Pi/180.0)
		if math.Abs(lon-v.CenterLonDeg) > maxLonDeg*1.01 {
			t.Fatalf("lon offset too large: %f want <= %f", math.Abs(lon-v.CenterLonDeg), maxLonDeg)
		}
	}
}

func TestVessel_Position_DeterministicForNow(t *testing.T) {
	v := Vessel{CenterLatDeg: 1, CenterLonDeg: 2}
	now := time.Date(2022, 1, 14, 12, 0, 0, 123, time.UTC)

	lat1, lon1, c1 := v.Position(now)
	lat2, lon2, c2 := v.Position(now)
	if lat1 != lat2 || lon1 != lon2 || c1 != c2 {
		t.Fatalf("expected deterministic result for same now")
	}
}

func TestVessel_PayloadsParse(t *testing.T) {
	v := Vessel{CenterLatDeg: -45.8, CenterLonDeg: 170.6, HeightM: 12, GeoidSepM: 7.5}
	now := time.Date(2022, 1, 14, 12, 0, 1, 0, time.UTC)
	lat, lon, _ := v.Position(now)

	wantTypes := []string{"GGA", "RMC", "VTG", "GLL"}
	for i, payload := range v.Payloads(now) {
		pos, err := gps.ParseSentence(now, gps.Sentence(payload))
		if err != nil {
			t.Fatalf("%s: %v", payload, err)
		}
		if pos.Type != wantTypes[i] {
			t.Fatalf("type=%s want %s", pos.Type, wantTypes[i])
		}
		if pos.Type == "VTG" {
			continue
		}
		if !pos.LatLonOK {
			t.Fatalf("%s: no position", pos.Type)
		}
		if math.Abs(pos.LatDeg-lat) > 1e-6 || math.Abs(pos.LonDeg-lon) > 1e-6 {
			t.Fatalf("%s: position=(%f,%f) want (%f,%f)", pos.Type, pos.LatDeg, pos.LonDeg, lat, lon)
		}
		if pos.Type == "GGA" {
			if !pos.HeightOK || math.Abs(pos.OrthoHeightM-12) > 0.21 || pos.GeoidSepM != 7.5 {
				t.Fatalf("GGA heights=%v,%v ok=%v", pos.OrthoHeightM, pos.GeoidSepM, pos.HeightOK)
			}
		}
	}
}

func TestNMEACoord_RollsMinutes(t *testing.T) {
	s, h := nmeaCoord(-45.99999999999, 2, "N", "S")
	if s != "4600.00000" || h != "S" {
		t.Fatalf("got %s %s", s, h)
	}
	s, h = nmeaCoord(170.5, 3, "E", "W")
	if s != "17030.00000" || h != "E" {
		t.Fatalf("got %s %s", s, h)
	}
}
