/*
NAME
  controller_test.go

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package autopilot

import (
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/corvidflight/visionpilot/nav"
	"github.com/corvidflight/visionpilot/obstacle"
	"github.com/corvidflight/visionpilot/pipeline/config"
)

func newTestController(t *testing.T) *Controller {
	t.Helper()
	cfg := config.Config{}
	cfg.Validate()
	c := NewController(cfg, nil)
	c.Enable()
	return c
}

func allSafe() obstacle.SafeDirections { return obstacle.AllSafe() }

// TestCenteredLowFlow is scenario test 1.
func TestCenteredLowFlow(t *testing.T) {
	c := newTestController(t)
	vr := VisionResult{
		Balance: &nav.BalanceResult{LateralBalance: 0.05},
		Flow:    1.5,
		Danger:  0,
		Safe:    allSafe(),
	}
	cmd, emitted := c.Synthesize(vr, time.Unix(0, 0))
	if !emitted {
		t.Fatal("expected emission on first tick")
	}
	if cmd.Action != "FORWARD_SLOW" {
		t.Errorf("action = %q, want FORWARD_SLOW", cmd.Action)
	}
	if math.Abs(cmd.VX-0.2) > 1e-9 {
		t.Errorf("vx = %v, want 0.2", cmd.VX)
	}
	if cmd.VY != 0 {
		t.Errorf("vy = %v, want 0 (within deadband)", cmd.VY)
	}
	if cmd.VZ != 0 || cmd.Yaw != 0 {
		t.Errorf("vz,yaw = %v,%v, want 0,0", cmd.VZ, cmd.Yaw)
	}
}

// TestDriftingRight is scenario test 2.
func TestDriftingRight(t *testing.T) {
	c := newTestController(t)
	vr := VisionResult{
		Balance: &nav.BalanceResult{LateralBalance: -0.45},
		Flow:    4.8,
		Danger:  0,
		Safe:    allSafe(),
	}
	cmd, _ := c.Synthesize(vr, time.Unix(0, 0))
	// Note: at flow=4.8 against a default target of 3.0, flow is actually
	// above the 1.5x-target threshold (TOO_FAST), not the 1.2x-1.5x SLOWING
	// band; see DESIGN.md's open-question resolution. Both bins drive vx to
	// ~0 here, so only the numeric outputs are asserted.
	wantVY := 0.45 * 0.3
	if math.Abs(cmd.VY-wantVY) > 1e-6 {
		t.Errorf("vy = %v, want %v", cmd.VY, wantVY)
	}
	if cmd.VX < -1e-9 || cmd.VX > 1e-6 {
		t.Errorf("vx = %v, want ~0", cmd.VX)
	}
}

// TestObstacleAheadStops is scenario test 3.
func TestObstacleAheadStops(t *testing.T) {
	c := newTestController(t)
	vr := VisionResult{
		Balance: &nav.BalanceResult{LateralBalance: 0.10},
		Flow:    6.5,
		Danger:  2,
		Safe:    obstacle.SafeDirections{Forward: false, Left: true, Right: true, Up: true, Down: true},
	}
	cmd, emitted := c.Synthesize(vr, time.Unix(0, 0))
	if !emitted {
		t.Fatal("expected emission")
	}
	want := Command{Action: "STOP"}
	if diff := cmp.Diff(want, cmd); diff != "" {
		t.Errorf("unexpected command (-want +got):\n%s", diff)
	}
	if c.consecutiveStops != 1 {
		t.Errorf("consecutive_stops = %d, want 1", c.consecutiveStops)
	}
}

// TestThirdConsecutiveStopEntersEmergency is scenario test 4.
func TestThirdConsecutiveStopEntersEmergency(t *testing.T) {
	c := newTestController(t)
	vr := VisionResult{
		Balance: &nav.BalanceResult{LateralBalance: -0.20},
		Flow:    8.2,
		Danger:  3,
		Safe:    obstacle.SafeDirections{Forward: false, Left: false, Right: false, Up: true, Down: false},
	}

	base := time.Unix(0, 0)
	for i := 0; i < 2; i++ {
		cmd, _ := c.Synthesize(vr, base.Add(time.Duration(i)*time.Second))
		if cmd.Action != "STOP" {
			t.Fatalf("tick %d action = %q, want STOP", i, cmd.Action)
		}
	}

	cmd, emitted := c.Synthesize(vr, base.Add(2*time.Second))
	if !emitted {
		t.Fatal("expected emission on the transitioning tick")
	}
	if cmd.Action != "EMERGENCY" {
		t.Errorf("action = %q, want EMERGENCY", cmd.Action)
	}
	if c.State() != StateEmergency {
		t.Fatalf("state = %v, want EMERGENCY", c.State())
	}

	cmd, _ = c.Synthesize(vr, base.Add(3*time.Second))
	if cmd.Action != "EMERGENCY" {
		t.Errorf("further calls should return EMERGENCY, got %q", cmd.Action)
	}
}

func TestEmergencyIsOneWayUntilReset(t *testing.T) {
	c := newTestController(t)
	c.state = StateEmergency
	c.Enable()
	if c.State() != StateEmergency {
		t.Fatal("Enable should not clear EMERGENCY")
	}
	c.ResetEmergency()
	c.Enable()
	if c.State() != StateEnabled {
		t.Fatal("Enable after ResetEmergency should succeed")
	}
}

func TestRateLimiting(t *testing.T) {
	c := newTestController(t)
	vr := VisionResult{
		Balance: &nav.BalanceResult{LateralBalance: 0},
		Flow:    1.0,
		Danger:  0,
		Safe:    allSafe(),
	}
	base := time.Unix(0, 0)
	_, emitted1 := c.Synthesize(vr, base)
	_, emitted2 := c.Synthesize(vr, base.Add(50*time.Millisecond))
	if !emitted1 {
		t.Error("expected first emission")
	}
	if emitted2 {
		t.Error("expected second emission to be rate-limited")
	}
	_, emitted3 := c.Synthesize(vr, base.Add(250*time.Millisecond))
	if !emitted3 {
		t.Error("expected emission after rate limit window elapses")
	}
}

func TestClampsRespected(t *testing.T) {
	c := newTestController(t)
	vr := VisionResult{
		Balance: &nav.BalanceResult{LateralBalance: -10},
		Flow:    100,
		Danger:  0,
		Safe:    allSafe(),
	}
	cmd, _ := c.Synthesize(vr, time.Unix(0, 0))
	if cmd.VY > 0.3 || cmd.VY < -0.3 {
		t.Errorf("vy = %v, out of clamp [-0.3, 0.3]", cmd.VY)
	}
	if cmd.VX > 0.5 || cmd.VX < -0.2 {
		t.Errorf("vx = %v, out of clamp [-0.2, 0.5]", cmd.VX)
	}
}

func TestNoVisionWhenBalanceMissing(t *testing.T) {
	c := newTestController(t)
	cmd, _ := c.Synthesize(VisionResult{}, time.Unix(0, 0))
	if cmd.Action != "NO_VISION" {
		t.Errorf("action = %q, want NO_VISION", cmd.Action)
	}
}

func TestDisabledStopsImmediately(t *testing.T) {
	cfg := config.Config{}
	cfg.Validate()
	c := NewController(cfg, nil)
	cmd, _ := c.Synthesize(VisionResult{Balance: &nav.BalanceResult{}, Safe: allSafe()}, time.Unix(0, 0))
	if cmd.Action != "STOPPED" {
		t.Errorf("action = %q, want STOPPED", cmd.Action)
	}
}

func TestEgressPriorityVerticalOverLateral(t *testing.T) {
	cfg := config.Config{}
	cfg.Validate()
	cmd := Command{VZ: 0.1, VY: 0.2}
	tok := ToToken(cmd, cfg)
	if tok != TokenMoveUp {
		t.Errorf("token = %v, want move/up (vertical beats lateral)", tok)
	}
}

func TestEgressStopWhenAllDeadbanded(t *testing.T) {
	cfg := config.Config{}
	cfg.Validate()
	tok := ToToken(Command{}, cfg)
	if tok != TokenStop {
		t.Errorf("token = %v, want stop", tok)
	}
}

func TestEgressNeverTransmitsVX(t *testing.T) {
	cfg := config.Config{}
	cfg.Validate()
	// A large VX alone, with everything else deadbanded, must still yield
	// stop: vx is never transmitted.
	tok := ToToken(Command{VX: 0.5}, cfg)
	if tok != TokenStop {
		t.Errorf("token = %v, want stop (vx must never be transmitted)", tok)
	}
}
