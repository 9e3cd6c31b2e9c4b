/*
NAME
  nav_test.go

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package nav

import (
	"math"
	"testing"
	"time"

	"github.com/corvidflight/visionpilot/pipeline/config"
)

func testConfig() config.Config {
	cfg := config.Config{}
	cfg.Validate()
	return cfg
}

// TestBalancerZeroFlow is the boundary test: a zero-magnitude flow map
// yields all balance outputs zero and all recommendations CENTERED/OK/LEVEL.
func TestBalancerZeroFlow(t *testing.T) {
	b := NewBalancer(testConfig())
	mag := make([][]float64, 9)
	for i := range mag {
		mag[i] = make([]float64, 12)
	}
	res := b.Analyze(mag)
	if res.LateralBalance != 0 || res.VerticalBalance != 0 {
		t.Errorf("balances = %+v, want zero", res)
	}
	if res.Lateral != Centered || res.Speed != SpeedOK || res.Vertical != Level {
		t.Errorf("recommendations = %+v, want CENTERED/OK/LEVEL", res)
	}
	if res.Control != ([3]float64{0, 0, 0}) {
		t.Errorf("control = %v, want zero vector", res.Control)
	}
}

func TestBalancerLateralRange(t *testing.T) {
	b := NewBalancer(testConfig())
	mag := make([][]float64, 9)
	for i := range mag {
		mag[i] = make([]float64, 12)
		for j := 0; j < 4; j++ {
			mag[i][j] = 5.0
		}
	}
	res := b.Analyze(mag)
	if res.LateralBalance < -1 || res.LateralBalance > 1 {
		t.Errorf("lateral_balance = %v, out of [-1,1]", res.LateralBalance)
	}
	if res.Lateral != GoRight {
		t.Errorf("recommendation = %v, want GO_RIGHT (more flow on the left)", res.Lateral)
	}
}

// TestTauSingleSampleReturnsNone is the boundary test: tau with only one
// sample for a region returns no estimate until a second distinct-time
// sample arrives.
func TestTauSingleSampleReturnsNone(t *testing.T) {
	e := NewTauEstimator(testConfig())
	_, ok := e.Update("obj1", 20, 0.0)
	if ok {
		t.Fatal("expected no tau estimate from a single sample")
	}
	_, ok = e.Update("obj1", 22, 0.1)
	if !ok {
		t.Fatal("expected a tau estimate from a second distinct-time sample")
	}
}

func TestTauIgnoresSmallSize(t *testing.T) {
	e := NewTauEstimator(testConfig())
	_, ok := e.Update("obj1", 5, 0.0)
	if ok {
		t.Fatal("expected no estimate for size below threshold")
	}
	if e.RegionCount() != 0 {
		t.Errorf("region count = %d, want 0 (sample below threshold should not be recorded)", e.RegionCount())
	}
}

// TestTauApproachingSeries is scenario test 6: sizes [20, 22, 25, 29] at
// times [0.0, 0.1, 0.2, 0.3] yield tau = 0.725s at the final sample,
// classified WARNING.
func TestTauApproachingSeries(t *testing.T) {
	e := NewTauEstimator(testConfig())
	sizes := []float64{20, 22, 25, 29}
	times := []float64{0.0, 0.1, 0.2, 0.3}

	var last TauResult
	var ok bool
	for i := range sizes {
		last, ok = e.Update("obj1", sizes[i], times[i])
	}
	if !ok {
		t.Fatal("expected a tau estimate at the final sample")
	}
	if math.Abs(last.Tau-0.725) > 1e-6 {
		t.Errorf("tau = %v, want 0.725", last.Tau)
	}
	if last.Level != Warning {
		t.Errorf("level = %v, want WARNING", last.Level)
	}
}

func TestTauSweepRemovesStaleRegions(t *testing.T) {
	e := NewTauEstimator(testConfig())
	fakeNow := time.Unix(1000, 0)
	e.now = func() time.Time { return fakeNow }

	e.Update("obj1", 20, 0.0)
	if e.RegionCount() != 1 {
		t.Fatalf("region count = %d, want 1", e.RegionCount())
	}

	fakeNow = fakeNow.Add(3 * time.Second)
	e.Sweep()
	if e.RegionCount() != 0 {
		t.Errorf("region count after sweep = %d, want 0 (stale)", e.RegionCount())
	}
}

func TestTauHistoryCapped(t *testing.T) {
	cfg := testConfig()
	cfg.TauHistoryCap = 3
	e := NewTauEstimator(cfg)
	for i := 0; i < 10; i++ {
		e.Update("obj1", 20+float64(i), float64(i)*0.1)
	}
	r := e.regions["obj1"]
	if len(r.samples) != 3 {
		t.Errorf("sample count = %d, want 3 (capped)", len(r.samples))
	}
}

func TestDivergenceMapScaling(t *testing.T) {
	div := [][]float64{{0.02, 0.005}, {0.1, 0.5}}
	mag := [][]float64{{2, 2}, {2, 2}}
	out := DivergenceMap(div, mag)
	if out[0][1] != 0 {
		t.Errorf("cell below divergence threshold should be 0, got %v", out[0][1])
	}
	if out[1][1] == 0 {
		t.Errorf("cell above divergence threshold should be non-zero")
	}
}
