/*
NAME
  obstacle_test.go

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package obstacle

import "testing"

func TestClassifyZoneDanger(t *testing.T) {
	// expansion 1.0, avg_distance 20, fps 30 => ttc = 20/(1*30) = 0.667s < 1.0
	// danger threshold.
	z := classifyZone(1.0, 20, 2.0, 2.0, 1.0, 30)
	if z.Status != StatusDanger {
		t.Errorf("status = %v, want danger, ttc=%v", z.Status, z.TTC)
	}
}

func TestClassifyZoneWarning(t *testing.T) {
	// ttc = 40/(1*30) = 1.33s, between danger(1.0) and warning(2.0).
	z := classifyZone(1.0, 40, 2.0, 2.0, 1.0, 30)
	if z.Status != StatusWarning {
		t.Errorf("status = %v, want warning, ttc=%v", z.Status, z.TTC)
	}
}

func TestClassifyZoneCaution(t *testing.T) {
	// expansion 2.5 > threshold 2.0 but ttc large (big avg distance).
	z := classifyZone(2.5, 1000, 2.0, 2.0, 1.0, 30)
	if z.Status != StatusCaution {
		t.Errorf("status = %v, want caution, ttc=%v", z.Status, z.TTC)
	}
}

func TestClassifyZoneClear(t *testing.T) {
	z := classifyZone(0.1, 100, 2.0, 2.0, 1.0, 30)
	if z.Status != StatusClear {
		t.Errorf("status = %v, want clear", z.Status)
	}
}

func TestInferSafeDirectionsInteriorClearsForward(t *testing.T) {
	zones := make([][]Zone, 3)
	for r := range zones {
		zones[r] = make([]Zone, 4)
	}
	zones[1][1] = Zone{Status: StatusWarning} // interior cell

	safe := inferSafeDirections(zones)
	if safe.Forward {
		t.Error("forward should be cleared by an interior warning zone")
	}
	if !safe.Up || !safe.Down || !safe.Left || !safe.Right {
		t.Errorf("edges should remain safe, got %+v", safe)
	}
}

func TestInferSafeDirectionsEdges(t *testing.T) {
	zones := make([][]Zone, 3)
	for r := range zones {
		zones[r] = make([]Zone, 4)
	}
	zones[0][0] = Zone{Status: StatusDanger} // top-left corner

	safe := inferSafeDirections(zones)
	if !safe.Up && !safe.Left {
		// fine, both cleared
	}
	if safe.Up {
		t.Error("top row zone should clear up")
	}
	if safe.Left {
		t.Error("leftmost column zone should clear left")
	}
	if !safe.Forward {
		t.Error("a corner zone is not interior and should not clear forward")
	}
}

func TestRawDangerLevelScales(t *testing.T) {
	zones := [][]Zone{{{Status: StatusWarning}}}
	if got := rawDangerLevel(zones, VariantDense); got != 1 {
		t.Errorf("dense warning raw = %d, want 1", got)
	}
	if got := rawDangerLevel(zones, VariantSparse); got != 2 {
		t.Errorf("sparse warning raw = %d, want 2", got)
	}

	zones = [][]Zone{{{Status: StatusDanger}}}
	if got := rawDangerLevel(zones, VariantDense); got != 2 {
		t.Errorf("dense danger raw = %d, want 2", got)
	}
	if got := rawDangerLevel(zones, VariantSparse); got != 3 {
		t.Errorf("sparse danger raw = %d, want 3", got)
	}
}

func TestNormalizeDangerLevel(t *testing.T) {
	cases := []struct {
		raw  int
		want int
	}{
		{0, 0}, {1, 1}, {2, 2}, {3, 3}, {4, 3},
	}
	for _, c := range cases {
		if got := NormalizeDangerLevel(c.raw); got != c.want {
			t.Errorf("NormalizeDangerLevel(%d) = %d, want %d", c.raw, got, c.want)
		}
	}
}

func TestSafeDirectionMapHasFiveBooleans(t *testing.T) {
	// Compile-time-ish structural check: SafeDirections exposes exactly the
	// five documented directions.
	s := AllSafe()
	count := 0
	for _, v := range []bool{s.Forward, s.Left, s.Right, s.Up, s.Down} {
		if v {
			count++
		}
	}
	if count != 5 {
		t.Errorf("expected all 5 directions true initially, got %d", count)
	}
}

func TestRecommendationVariesByDanger(t *testing.T) {
	clear := ObstacleResult{RawDangerLevel: 0, Safe: AllSafe()}
	if clear.Recommendation() == "" {
		t.Error("expected non-empty recommendation")
	}

	danger := ObstacleResult{RawDangerLevel: 3, Safe: SafeDirections{}}
	if danger.Recommendation() == clear.Recommendation() {
		t.Error("expected different recommendation for danger vs clear")
	}
}
