/*
NAME
  odometry_test.go

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package vo

import (
	"math"
	"testing"

	"github.com/corvidflight/visionpilot/pipeline/config"
)

func newTestTracker(t *testing.T) *Tracker {
	t.Helper()
	cfg := config.Config{}
	cfg.Validate()
	return NewTracker(cfg, nil)
}

// TestIntegratePureTranslation is scenario test 5: a synthetic pose step
// (the R and t recovered from matched pairs) with a unit +x translation,
// >= 30 inliers and ‖t‖ > 0.5 must grow the trajectory by one entry whose
// x-component is positive and whose y, z components are approximately zero.
func TestIntegratePureTranslation(t *testing.T) {
	tr := newTestTracker(t)

	// A rotation far enough from identity to pass the motion gate
	// (‖R-I‖_F > 0.15) but still close to identity, paired with a pure +x
	// unit translation.
	R := Rotation3{
		0.99, -0.2, 0,
		0.2, 0.99, 0,
		0, 0, 1,
	}
	update := tr.integrate(R, [3]float64{1, 0, 0}, 40)

	if update.State != StateMoving {
		t.Fatalf("state = %v, want moving", update.State)
	}
	traj := tr.Trajectory()
	if len(traj) != 1 {
		t.Fatalf("trajectory length = %d, want 1", len(traj))
	}
	p := traj[0]
	if p[0] <= 0 {
		t.Errorf("x = %v, want > 0", p[0])
	}
	if math.Abs(p[1]) > 1e-6 || math.Abs(p[2]) > 1e-6 {
		t.Errorf("y,z = %v,%v, want ~0", p[1], p[2])
	}
}

func TestIntegrateGatesSmallTranslation(t *testing.T) {
	tr := newTestTracker(t)
	update := tr.integrate(Rotation3{0.99, -0.2, 0, 0.2, 0.99, 0, 0, 0, 1}, [3]float64{0.01, 0, 0}, 40)
	if update.State != StateStationary {
		t.Fatalf("state = %v, want stationary", update.State)
	}
	if len(tr.Trajectory()) != 0 {
		t.Fatalf("trajectory should be empty, got %d", len(tr.Trajectory()))
	}
}

func TestIntegrateGatesLowInliers(t *testing.T) {
	tr := newTestTracker(t)
	update := tr.integrate(Rotation3{0.99, -0.2, 0, 0.2, 0.99, 0, 0, 0, 1}, [3]float64{1, 0, 0}, 5)
	if update.State != StateStationary {
		t.Fatalf("state = %v, want stationary", update.State)
	}
}

func TestIntegrateGatesSmallRotation(t *testing.T) {
	tr := newTestTracker(t)
	update := tr.integrate(Identity3, [3]float64{1, 0, 0}, 40)
	if update.State != StateStationary {
		t.Fatalf("state = %v, want stationary (rotation too close to identity)", update.State)
	}
}

func TestTrajectoryCap(t *testing.T) {
	cfg := config.Config{TrajectoryCap: 3}
	cfg.Validate()
	tr := NewTracker(cfg, nil)
	R := Rotation3{0.99, -0.2, 0, 0.2, 0.99, 0, 0, 0, 1}
	for i := 0; i < 10; i++ {
		tr.integrate(R, [3]float64{1, 0, 0}, 40)
	}
	if len(tr.Trajectory()) != 3 {
		t.Fatalf("trajectory length = %d, want 3 (capped)", len(tr.Trajectory()))
	}
}

func TestRenormalizationCounted(t *testing.T) {
	cfg := config.Config{RenormalizeEvery: 2}
	cfg.Validate()
	tr := NewTracker(cfg, nil)
	R := Rotation3{0.99, -0.2, 0, 0.2, 0.99, 0, 0, 0, 1}
	for i := 0; i < 5; i++ {
		tr.integrate(R, [3]float64{1, 0, 0}, 40)
	}
	if tr.Stats().Renormalizations < 2 {
		t.Errorf("renormalizations = %d, want >= 2", tr.Stats().Renormalizations)
	}
}

func TestOrthonormalityDriftWithinTolerance(t *testing.T) {
	cfg := config.Config{}
	cfg.Validate()
	tr := NewTracker(cfg, nil)
	R := Rotation3{0.99, -0.2, 0, 0.2, 0.99, 0, 0, 0, 1}
	for i := 0; i < 200; i++ {
		tr.integrate(R, [3]float64{1, 0, 0}, 40)
	}
	drift := OrthonormalityDrift(tr.Pose().Rotation)
	if drift > 1e-3 {
		t.Errorf("orthonormality drift = %v, want <= 1e-3", drift)
	}
}

func TestSkipPreservesState(t *testing.T) {
	tr := newTestTracker(t)
	tr.state = StateMoving
	tr.skip()
	if tr.State() != StateMoving {
		t.Errorf("state = %v, want preserved moving", tr.State())
	}
	if tr.Stats().SkippedFrames != 1 {
		t.Errorf("skipped frames = %d, want 1", tr.Stats().SkippedFrames)
	}
}
