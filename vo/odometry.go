/*
NAME
  odometry.go

DESCRIPTION
  odometry.go holds the Visual Odometry core: pose state, trajectory
  bookkeeping, motion gating, and pose integration. It is deliberately free
  of any gocv dependency so it builds and tests without OpenCV; the
  feature-detection and essential-matrix estimation that feeds it lives in
  detect_withcv.go, tagged withcv.

AUTHORS
  Vision Core Team

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package vo implements the Visual Odometry component: it estimates
// inter-frame camera motion from matched feature correspondences and
// integrates a trajectory in an arbitrary monocular-unit scale.
package vo

import (
	"github.com/ausocean/utils/logging"

	"github.com/corvidflight/visionpilot/pipeline/config"
)

// Pose is the tracker's camera pose at a point in the trajectory.
type Pose struct {
	Position [3]float64
	Rotation Rotation3
}

// State is the tracker's coarse state-machine view, per the specification's
// "INIT -> TRACKING (moving | stationary) -> TRACKING" description.
type State int

const (
	StateInit State = iota
	StateMoving
	StateStationary
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateMoving:
		return "moving"
	case StateStationary:
		return "stationary"
	default:
		return "unknown"
	}
}

// Update is the per-frame result of the tracker.
type Update struct {
	State      State
	Position   [3]float64
	Inliers    int
	Translation float64 // ‖t‖, for diagnostics
}

// Stats summarizes the tracker's running behaviour, mirroring the
// get_stats-style introspection the specification's analogous Python
// trackers expose.
type Stats struct {
	FramesSeen        int64
	AcceptedFrames    int64
	StationaryFrames  int64
	SkippedFrames     int64
	Renormalizations  int64
	TrajectoryLength  int
}

// Tracker is the Visual Odometry component. It is not safe for concurrent
// use; a single analyzer goroutine owns it per the pipeline's ordering
// guarantees.
type Tracker struct {
	cfg config.Config
	log logging.Logger

	state      State
	position   [3]float64
	rotation   Rotation3
	trajectory [][3]float64

	acceptedSinceRenorm int

	stats Stats
}

// NewTracker returns a Tracker configured by cfg. cfg is validated via
// Validate before use if the caller has not already done so.
func NewTracker(cfg config.Config, log logging.Logger) *Tracker {
	cfg.Validate()
	return &Tracker{
		cfg:      cfg,
		log:      log,
		state:    StateInit,
		rotation: Identity3,
	}
}

// Trajectory returns the accumulated trajectory, oldest first, capped at
// cfg.TrajectoryCap entries.
func (t *Tracker) Trajectory() [][3]float64 {
	out := make([][3]float64, len(t.trajectory))
	copy(out, t.trajectory)
	return out
}

// Pose returns the tracker's current camera pose.
func (t *Tracker) Pose() Pose {
	return Pose{Position: t.position, Rotation: t.rotation}
}

// State returns the tracker's current coarse state.
func (t *Tracker) State() State { return t.state }

// Stats returns a snapshot of the tracker's running counters.
func (t *Tracker) Stats() Stats {
	s := t.stats
	s.TrajectoryLength = len(t.trajectory)
	return s
}

// integrate applies the motion gate and, on acceptance, integrates R and t
// into the tracker's pose and trajectory. It returns the resulting Update.
// integrate is the pure core exercised directly by tests that supply
// synthetic rotation, translation and inlier inputs, bypassing feature
// detection entirely.
func (t *Tracker) integrate(R Rotation3, tr [3]float64, inliers int) Update {
	t.stats.FramesSeen++

	tNorm := norm3(tr)
	rMagnitude := RotationMagnitude(R)

	minTranslation := t.cfg.MinTranslation
	minRotation := t.cfg.MinRotation
	minInliers := t.cfg.MinInliers

	accepted := tNorm > minTranslation && rMagnitude > minRotation && inliers >= minInliers
	if !accepted {
		t.state = StateStationary
		t.stats.StationaryFrames++
		return Update{State: StateStationary, Position: t.position, Inliers: inliers, Translation: tNorm}
	}

	scale := t.cfg.Scale
	if scale == 0 {
		scale = config.DefaultScale
	}

	moved := t.rotation.Apply(tr)
	t.position[0] += moved[0] * scale
	t.position[1] += moved[1] * scale
	t.position[2] += moved[2] * scale
	t.rotation = R.Mul(t.rotation)

	t.appendTrajectory(t.position)

	t.acceptedSinceRenorm++
	renormalizeEvery := t.cfg.RenormalizeEvery
	if renormalizeEvery == 0 {
		renormalizeEvery = config.DefaultRenormalizeEvery
	}
	if t.acceptedSinceRenorm >= renormalizeEvery {
		t.rotation = Renormalize(t.rotation)
		t.acceptedSinceRenorm = 0
		t.stats.Renormalizations++
	}

	t.state = StateMoving
	t.stats.AcceptedFrames++
	return Update{State: StateMoving, Position: t.position, Inliers: inliers, Translation: tNorm}
}

func (t *Tracker) appendTrajectory(p [3]float64) {
	cap := t.cfg.TrajectoryCap
	if cap == 0 {
		cap = config.DefaultTrajectoryCap
	}
	t.trajectory = append(t.trajectory, p)
	if len(t.trajectory) > cap {
		t.trajectory = t.trajectory[len(t.trajectory)-cap:]
	}
}

// skip records a frame that could not be matched (grayscale conversion
// failed, fewer than two descriptors, or fewer than MinMatches accepted
// matches), preserving the previous state per the specification's
// state-machine view.
func (t *Tracker) skip() {
	t.stats.FramesSeen++
	t.stats.SkippedFrames++
}
