/*
NAME
  config.go

DESCRIPTION
  config.go provides the Config struct for the vision navigation pipeline,
  and the defaults for every tunable named in the pipeline specification.

AUTHORS
  Vision Core Team

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package config holds the configuration surface of the vision navigation
// pipeline: grid sizing, thresholds, camera intrinsics, motion gating,
// clamps and logging, following the shape of revid/config.Config.
package config

import (
	"strconv"
	"time"

	"github.com/ausocean/utils/logging"
)

// Obstacle analyzer variants.
const (
	ObstacleDense = iota
	ObstacleSparse
)

// Config provides every tunable parameter of the pipeline. Zero-value fields
// are replaced by their defaults in Validate.
type Config struct {
	// Logger holds an implementation of the Logger interface. This must be
	// set for the pipeline to work correctly.
	Logger logging.Logger

	// LogLevel is the logging verbosity. Valid values are defined by enums
	// from the logging package: logging.Debug, logging.Info,
	// logging.Warning, logging.Error, logging.Fatal.
	LogLevel int8

	// Suppress holds logger suppression state.
	Suppress bool

	// --- Demuxer ---

	// MaxUnitSize is the largest length prefix the demuxer will honour
	// before degrading the chunk to a single fallback unit.
	MaxUnitSize int

	// --- Visual odometry ---

	// MaxFeatures is the maximum number of ORB keypoints detected per frame.
	MaxFeatures int

	// ORBLevels is the number of pyramid levels used by the ORB detector.
	ORBLevels int

	// ORBScaleFactor is the pyramid scale factor used by the ORB detector.
	ORBScaleFactor float64

	// LoweRatio is the Lowe ratio-test threshold for descriptor matching.
	LoweRatio float64

	// MinMatches is the minimum number of accepted matches required before
	// essential-matrix estimation is attempted.
	MinMatches int

	// RANSACProb is the confidence probability used for essential matrix
	// RANSAC estimation.
	RANSACProb float64

	// RANSACThreshold is the reprojection error threshold (pixels) used for
	// essential matrix RANSAC estimation.
	RANSACThreshold float64

	// FocalLength is the assumed camera focal length in pixels.
	FocalLength float64

	// PrincipalPoint is the assumed camera principal point in pixels.
	PrincipalPoint [2]float64

	// MinTranslation is the minimum translation magnitude accepted as motion.
	MinTranslation float64

	// MinRotation is the minimum rotation magnitude (Frobenius norm of R-I)
	// accepted as motion.
	MinRotation float64

	// MinInliers is the minimum RANSAC inlier count accepted as motion.
	MinInliers int

	// Scale is the constant (non-metric) scale applied to accepted
	// translations when integrating the trajectory.
	Scale float64

	// TrajectoryCap is the maximum number of positions retained in the
	// trajectory before the oldest is dropped.
	TrajectoryCap int

	// RenormalizeEvery is the maximum number of accepted frames between
	// Gram-Schmidt renormalizations of the rotation matrix.
	RenormalizeEvery int

	// --- Obstacle analyzer ---

	// ObstacleVariant selects ObstacleDense or ObstacleSparse.
	ObstacleVariant int

	// GridCols and GridRows define the obstacle analysis grid.
	GridCols int
	GridRows int

	// DenseExpansionThreshold and SparseExpansionThreshold are the
	// per-variant expansion thresholds used for the "caution" status.
	DenseExpansionThreshold  float64
	SparseExpansionThreshold float64

	// TTCWarning and TTCDanger are time-to-contact thresholds in seconds.
	TTCWarning float64
	TTCDanger  float64

	// NominalFPS is the assumed frame rate used by the TTC heuristic.
	NominalFPS float64

	// MaxCorners, CornerQuality and MinCornerDistance configure the sparse
	// variant's goodFeaturesToTrack corner pool.
	MaxCorners        int
	CornerQuality     float64
	MinCornerDistance float64

	// MinTrackedCorners triggers re-seeding of the sparse corner pool when
	// the tracked count drops below it.
	MinTrackedCorners int

	// --- Balance / tau ---

	// BalanceThreshold is the |lateral_balance| below which the lateral
	// recommendation is CENTERED.
	BalanceThreshold float64

	// SpeedTarget is the target ventral flow magnitude (px/frame).
	SpeedTarget float64

	// BalanceGain scales balance into a control vector.
	BalanceGain float64

	// TauMinSize is the minimum region size (pixels) the tau estimator will
	// accept a sample for.
	TauMinSize float64

	// TauMinRate is the minimum |rate| (pixels/second) the tau estimator
	// requires before computing tau.
	TauMinRate float64

	// TauHistoryCap is the maximum number of (size, time) samples retained
	// per region.
	TauHistoryCap int

	// TauMaxAge is the maximum time since a region's last sample before it
	// is garbage collected.
	TauMaxAge time.Duration

	// --- Autopilot ---

	// AutopilotBalanceGain and AutopilotSpeedGain are control gains used in
	// command synthesis. ObstacleGain is defaulted and live-tunable through
	// Update, but command synthesis does not read it.
	AutopilotBalanceGain float64
	AutopilotSpeedGain   float64
	ObstacleGain         float64

	// AutopilotTargetFlow is the target forward flow (px/frame).
	AutopilotTargetFlow float64

	// Deadband is the minimum absolute command magnitude that is
	// transmitted rather than zeroed/suppressed.
	Deadband float64

	// YawDeadband is the minimum |yaw| (deg/s) transmitted as a yaw command.
	YawDeadband float64

	// VXClamp, VYClamp, VZClamp and YawClamp are [min, max] clamps applied
	// to the synthesized command.
	VXClamp  [2]float64
	VYClamp  [2]float64
	VZClamp  [2]float64
	YawClamp [2]float64

	// SmoothingWindow is the length of each command ring buffer.
	SmoothingWindow int

	// RateLimit is the minimum duration between successful emissions.
	RateLimit time.Duration

	// MaxConsecutiveStops is the number of consecutive forward-blocked
	// ticks before the controller enters EMERGENCY.
	MaxConsecutiveStops int

	// RequireConfirmation gates the controller's Synthesize behind an
	// explicit Confirm call.
	RequireConfirmation bool
}

// Default parameter values, drawn directly from the pipeline specification.
const (
	DefaultMaxUnitSize = 100000

	DefaultMaxFeatures    = 1000
	DefaultORBLevels      = 8
	DefaultORBScaleFactor = 1.2
	DefaultLoweRatio      = 0.75
	DefaultMinMatches     = 8

	DefaultRANSACProb      = 0.999
	DefaultRANSACThreshold = 1.0
	DefaultFocalLength     = 800.0

	DefaultMinTranslation   = 0.5
	DefaultMinRotation      = 0.15
	DefaultMinInliers       = 30
	DefaultScale            = 1.0
	DefaultTrajectoryCap    = 500
	DefaultRenormalizeEvery = 100

	DefaultGridCols                 = 4
	DefaultGridRows                 = 3
	DefaultDenseExpansionThreshold  = 2.0
	DefaultSparseExpansionThreshold = 1.5
	DefaultTTCWarning               = 2.0
	DefaultTTCDanger                = 1.0
	DefaultNominalFPS               = 30.0

	DefaultMaxCorners        = 150
	DefaultCornerQuality     = 0.01
	DefaultMinCornerDistance = 10.0
	DefaultMinTrackedCorners = 50

	DefaultBalanceThreshold = 0.3
	DefaultSpeedTarget      = 5.0
	DefaultBalanceGain      = 1.0

	DefaultTauMinSize = 10.0
	DefaultTauMinRate = 0.1
	DefaultTauHistCap = 10
	DefaultTauMaxAge  = 2 * time.Second

	DefaultAutopilotBalanceGain = 0.3
	DefaultAutopilotSpeedGain   = 0.2
	DefaultObstacleGain         = 0.5
	DefaultAutopilotTargetFlow  = 3.0
	DefaultDeadband             = 0.05
	DefaultYawDeadband          = 5.0

	DefaultSmoothingWindow     = 5
	DefaultRateLimit           = 200 * time.Millisecond
	DefaultMaxConsecutiveStops = 3
)

// DefaultPrincipalPoint is the assumed camera principal point for a
// 1280x720 frame.
var DefaultPrincipalPoint = [2]float64{640, 360}

// Default clamps, in m/s and deg/s.
var (
	DefaultVXClamp  = [2]float64{-0.2, 0.5}
	DefaultVYClamp  = [2]float64{-0.3, 0.3}
	DefaultVZClamp  = [2]float64{-0.2, 0.2}
	DefaultYawClamp = [2]float64{-15, 15}
)

// Validate fills any unset (zero-value) fields with their defaults. It
// never fails; the pipeline specification has no parameter combination
// that is invalid, only unset.
func (c *Config) Validate() error {
	if c.Logger == nil {
		c.Logger = logging.New(c.LogLevel, nil, c.Suppress)
	}

	setIntDefault(&c.MaxUnitSize, DefaultMaxUnitSize)

	setIntDefault(&c.MaxFeatures, DefaultMaxFeatures)
	setIntDefault(&c.ORBLevels, DefaultORBLevels)
	setFloatDefault(&c.ORBScaleFactor, DefaultORBScaleFactor)
	setFloatDefault(&c.LoweRatio, DefaultLoweRatio)
	setIntDefault(&c.MinMatches, DefaultMinMatches)

	setFloatDefault(&c.RANSACProb, DefaultRANSACProb)
	setFloatDefault(&c.RANSACThreshold, DefaultRANSACThreshold)
	setFloatDefault(&c.FocalLength, DefaultFocalLength)
	if c.PrincipalPoint == ([2]float64{}) {
		c.PrincipalPoint = DefaultPrincipalPoint
	}

	setFloatDefault(&c.MinTranslation, DefaultMinTranslation)
	setFloatDefault(&c.MinRotation, DefaultMinRotation)
	setIntDefault(&c.MinInliers, DefaultMinInliers)
	setFloatDefault(&c.Scale, DefaultScale)
	setIntDefault(&c.TrajectoryCap, DefaultTrajectoryCap)
	setIntDefault(&c.RenormalizeEvery, DefaultRenormalizeEvery)

	setIntDefault(&c.GridCols, DefaultGridCols)
	setIntDefault(&c.GridRows, DefaultGridRows)
	setFloatDefault(&c.DenseExpansionThreshold, DefaultDenseExpansionThreshold)
	setFloatDefault(&c.SparseExpansionThreshold, DefaultSparseExpansionThreshold)
	setFloatDefault(&c.TTCWarning, DefaultTTCWarning)
	setFloatDefault(&c.TTCDanger, DefaultTTCDanger)
	setFloatDefault(&c.NominalFPS, DefaultNominalFPS)

	setIntDefault(&c.MaxCorners, DefaultMaxCorners)
	setFloatDefault(&c.CornerQuality, DefaultCornerQuality)
	setFloatDefault(&c.MinCornerDistance, DefaultMinCornerDistance)
	setIntDefault(&c.MinTrackedCorners, DefaultMinTrackedCorners)

	setFloatDefault(&c.BalanceThreshold, DefaultBalanceThreshold)
	setFloatDefault(&c.SpeedTarget, DefaultSpeedTarget)
	setFloatDefault(&c.BalanceGain, DefaultBalanceGain)

	setFloatDefault(&c.TauMinSize, DefaultTauMinSize)
	setFloatDefault(&c.TauMinRate, DefaultTauMinRate)
	setIntDefault(&c.TauHistoryCap, DefaultTauHistCap)
	if c.TauMaxAge == 0 {
		c.TauMaxAge = DefaultTauMaxAge
	}

	setFloatDefault(&c.AutopilotBalanceGain, DefaultAutopilotBalanceGain)
	setFloatDefault(&c.AutopilotSpeedGain, DefaultAutopilotSpeedGain)
	setFloatDefault(&c.ObstacleGain, DefaultObstacleGain)
	setFloatDefault(&c.AutopilotTargetFlow, DefaultAutopilotTargetFlow)
	setFloatDefault(&c.Deadband, DefaultDeadband)
	setFloatDefault(&c.YawDeadband, DefaultYawDeadband)

	if c.VXClamp == ([2]float64{}) {
		c.VXClamp = DefaultVXClamp
	}
	if c.VYClamp == ([2]float64{}) {
		c.VYClamp = DefaultVYClamp
	}
	if c.VZClamp == ([2]float64{}) {
		c.VZClamp = DefaultVZClamp
	}
	if c.YawClamp == ([2]float64{}) {
		c.YawClamp = DefaultYawClamp
	}

	setIntDefault(&c.SmoothingWindow, DefaultSmoothingWindow)
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
	setIntDefault(&c.MaxConsecutiveStops, DefaultMaxConsecutiveStops)

	return nil
}

// Update applies live reconfiguration of the handful of parameters safe to
// change while the pipeline is running: gains, thresholds and target flow,
// not structural parameters like grid size or clamps. Unknown keys and
// malformed values are logged and otherwise ignored, mirroring
// revid/config.Config's Update.
func (c *Config) Update(vars map[string]string) {
	for name, raw := range vars {
		dst, ok := c.tunable(name)
		if !ok {
			c.Logger.Warning("unknown config key, ignoring", "key", name)
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			c.Logger.Warning("bad config value, ignoring", "key", name, "value", raw)
			continue
		}
		*dst = v
		c.Logger.Info("config updated", "key", name, "value", v)
	}
}

// tunable maps a config key name to the field Update may overwrite.
func (c *Config) tunable(name string) (*float64, bool) {
	switch name {
	case "BalanceGain":
		return &c.BalanceGain, true
	case "BalanceThreshold":
		return &c.BalanceThreshold, true
	case "SpeedTarget":
		return &c.SpeedTarget, true
	case "AutopilotBalanceGain":
		return &c.AutopilotBalanceGain, true
	case "AutopilotSpeedGain":
		return &c.AutopilotSpeedGain, true
	case "AutopilotTargetFlow":
		return &c.AutopilotTargetFlow, true
	case "ObstacleGain":
		return &c.ObstacleGain, true
	case "Deadband":
		return &c.Deadband, true
	case "YawDeadband":
		return &c.YawDeadband, true
	default:
		return nil, false
	}
}

func setIntDefault(f *int, def int) {
	if *f == 0 {
		*f = def
	}
}

func setFloatDefault(f *float64, def float64) {
	if *f == 0 {
		*f = def
	}
}
