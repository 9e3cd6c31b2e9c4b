/*
NAME
  controller.go

DESCRIPTION
  controller.go implements the Autopilot Controller: a state machine over
  {DISABLED, ENABLED, EMERGENCY} that synthesizes a smoothed, rate-limited,
  clamped flight command from a per-frame vision result, and translates it
  to the downstream drone's discrete directional token surface.

AUTHORS
  Vision Core Team

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package autopilot implements the Autopilot Controller: command synthesis
// from vision results, smoothing, rate limiting, and egress translation to
// the downstream drone's discrete command tokens.
package autopilot

import (
	"time"

	"github.com/ausocean/utils/logging"

	"github.com/corvidflight/visionpilot/nav"
	"github.com/corvidflight/visionpilot/obstacle"
	"github.com/corvidflight/visionpilot/pipeline/config"
)

// State is the controller's coarse state machine position.
type State int

const (
	StateDisabled State = iota
	StateEnabled
	StateEmergency
)

func (s State) String() string {
	switch s {
	case StateDisabled:
		return "disabled"
	case StateEnabled:
		return "enabled"
	case StateEmergency:
		return "emergency"
	default:
		return "unknown"
	}
}

// VisionResult is the autopilot's per-call input: the fused output of the
// balance, obstacle, and flow analyzers for the current frame. Balance is
// nil when no balance estimate is available for this frame.
type VisionResult struct {
	Balance *nav.BalanceResult
	Flow    float64
	Danger  int // normalized 0..3, per obstacle.NormalizeDangerLevel
	Safe    obstacle.SafeDirections
	Yaw     float64
}

// Command is the autopilot's synthesized output.
type Command struct {
	Action string
	VX, VY, VZ, Yaw float64
}

type ring struct {
	values []float64
	cap    int
}

func newRing(cap int) *ring {
	if cap <= 0 {
		cap = config.DefaultSmoothingWindow
	}
	return &ring{cap: cap}
}

func (r *ring) push(v float64) float64 {
	r.values = append(r.values, v)
	if len(r.values) > r.cap {
		r.values = r.values[len(r.values)-r.cap:]
	}
	var sum float64
	for _, x := range r.values {
		sum += x
	}
	return sum / float64(len(r.values))
}

// Controller is the autopilot's state machine and command synthesizer. It
// is not safe for concurrent use without external locking; the
// specification requires the cross-thread autopilot state to be protected
// by a mutex or equivalent at the pipeline layer.
type Controller struct {
	cfg config.Config
	log logging.Logger

	state            State
	consecutiveStops int

	vxRing, vyRing, vzRing, yawRing *ring

	lastEmit     time.Time
	hasLastEmit  bool
	lastCommand  Command

	confirmed bool
}

// NewController returns a Controller in the DISABLED state.
func NewController(cfg config.Config, log logging.Logger) *Controller {
	cfg.Validate()
	window := cfg.SmoothingWindow
	return &Controller{
		cfg:     cfg,
		log:     log,
		state:   StateDisabled,
		vxRing:  newRing(window),
		vyRing:  newRing(window),
		vzRing:  newRing(window),
		yawRing: newRing(window),
	}
}

// Enable transitions the controller to ENABLED. It has no effect from
// EMERGENCY: EMERGENCY is one-way until ResetEmergency is called explicitly,
// per the specification's safety-trigger semantics.
func (c *Controller) Enable() {
	if c.state == StateEmergency {
		return
	}
	c.state = StateEnabled
	c.consecutiveStops = 0
}

// Disable transitions the controller to DISABLED. It has no effect from
// EMERGENCY, which only ResetEmergency leaves.
func (c *Controller) Disable() {
	if c.state == StateEmergency {
		return
	}
	c.state = StateDisabled
}

// ResetEmergency explicitly clears an EMERGENCY state back to DISABLED, the
// only sanctioned way out of EMERGENCY.
func (c *Controller) ResetEmergency() {
	c.state = StateDisabled
	c.consecutiveStops = 0
	c.confirmed = false
}

// State returns the controller's current state.
func (c *Controller) State() State { return c.state }

// Confirm marks this tick as user-confirmed, required before Synthesize
// will emit a live command when cfg.RequireConfirmation is set. It is a
// one-shot gate: it must be called again before the next emission.
func (c *Controller) Confirm() {
	c.confirmed = true
}

// Synthesize computes the autopilot's response to vr at time now. It
// returns the resulting Command and whether it was actually emitted (false
// when suppressed by the rate limiter, in which case callers should not
// transmit anything downstream).
func (c *Controller) Synthesize(vr VisionResult, now time.Time) (Command, bool) {
	if vr.Balance == nil {
		return Command{Action: "NO_VISION"}, true
	}
	if c.state == StateEmergency {
		return Command{Action: "EMERGENCY"}, true
	}
	if c.state != StateEnabled {
		return Command{Action: "STOPPED"}, true
	}
	if c.cfg.RequireConfirmation && !c.confirmed {
		return Command{Action: "AWAITING_CONFIRMATION"}, true
	}
	c.confirmed = false

	if vr.Danger >= 3 || !vr.Safe.Forward {
		c.consecutiveStops++
		maxStops := c.cfg.MaxConsecutiveStops
		if maxStops == 0 {
			maxStops = config.DefaultMaxConsecutiveStops
		}
		if c.consecutiveStops >= maxStops {
			c.state = StateEmergency
			return Command{Action: "EMERGENCY"}, true
		}
		return Command{Action: "STOP"}, true
	}
	c.consecutiveStops = 0

	balanceGain := c.cfg.AutopilotBalanceGain
	if balanceGain == 0 {
		balanceGain = config.DefaultAutopilotBalanceGain
	}
	deadband := c.cfg.Deadband
	if deadband == 0 {
		deadband = config.DefaultDeadband
	}

	vy := -vr.Balance.LateralBalance * balanceGain
	if abs(vy) < deadband {
		vy = 0
	}

	target := c.cfg.AutopilotTargetFlow
	if target == 0 {
		target = config.DefaultAutopilotTargetFlow
	}
	speedGain := c.cfg.AutopilotSpeedGain
	if speedGain == 0 {
		speedGain = config.DefaultAutopilotSpeedGain
	}
	flowError := (vr.Flow - target) / (target + 0.01)

	var vx float64
	var action string
	switch {
	case vr.Flow <= 0.5*target:
		vx = 0.2
		action = "FORWARD_SLOW"
	case vr.Flow <= 1.2*target:
		vx = 0.15 - flowError*speedGain
		action = "CRUISE"
	case vr.Flow <= 1.5*target:
		vx = maxf(0, 0.1-flowError*speedGain)
		action = "SLOWING"
	default:
		vx = 0
		action = "TOO_FAST"
	}

	var vz float64
	switch {
	case vr.Danger >= 2:
		vx = 0
		vy *= 1.5
		action = "OBSTACLE_AVOID"
	case vr.Danger >= 1:
		vx *= 0.5
		action = "OBSTACLE_CAUTION"
	}

	if !vr.Safe.Left && !vr.Safe.Right {
		switch {
		case vr.Safe.Up:
			vz = 0.15
			action = "OBSTACLE_CLIMB"
		case vr.Safe.Down:
			vz = -0.10
			action = "OBSTACLE_DESCEND"
		}
	}

	vx = clampRange(vx, c.cfg.VXClamp, config.DefaultVXClamp)
	vy = clampRange(vy, c.cfg.VYClamp, config.DefaultVYClamp)
	vz = clampRange(vz, c.cfg.VZClamp, config.DefaultVZClamp)
	yaw := clampRange(vr.Yaw, c.cfg.YawClamp, config.DefaultYawClamp)

	rateLimit := c.cfg.RateLimit
	if rateLimit == 0 {
		rateLimit = config.DefaultRateLimit
	}
	if c.hasLastEmit && now.Sub(c.lastEmit) < rateLimit {
		return c.lastCommand, false
	}

	cmd := Command{
		Action: action,
		VX:     c.vxRing.push(vx),
		VY:     c.vyRing.push(vy),
		VZ:     c.vzRing.push(vz),
		Yaw:    c.yawRing.push(yaw),
	}
	c.lastCommand = cmd
	c.lastEmit = now
	c.hasLastEmit = true
	return cmd, true
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func clampRange(v float64, configured, def [2]float64) float64 {
	r := configured
	if r == ([2]float64{}) {
		r = def
	}
	if v < r[0] {
		return r[0]
	}
	if v > r[1] {
		return r[1]
	}
	return v
}
