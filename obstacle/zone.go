/*
NAME
  zone.go

DESCRIPTION
  zone.go defines the shared obstacle-analysis output contract — Zone,
  ObstacleResult, SafeDirections — and the per-zone classification, safe-
  direction inference, and danger-level normalization logic common to both
  the dense and sparse flow variants. It has no gocv dependency.

AUTHORS
  Vision Core Team

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package obstacle implements the Obstacle Analyzer: two interchangeable
// optical-flow variants (dense, Farneback; sparse, Lucas-Kanade) sharing one
// output contract, modeled here as the Analyzer capability.
package obstacle

import (
	"math"

	"github.com/corvidflight/visionpilot/codec"
	"github.com/corvidflight/visionpilot/pipeline/config"
)

// Status is a zone's coarse obstacle-proximity classification.
type Status string

const (
	StatusClear   Status = "clear"
	StatusCaution Status = "caution"
	StatusWarning Status = "warning"
	StatusDanger  Status = "danger"
)

// Zone is one cell of the analysis grid's result.
type Zone struct {
	Row, Col int

	AvgMagnitude  float64
	Divergence    float64
	Expanding     bool
	ExpansionRate float64

	// TTC is the time-to-contact heuristic in seconds. It is math.Inf(1)
	// when expansion is not above the gating threshold.
	TTC float64

	Status Status
}

// SafeDirections is a boolean per {forward, left, right, up, down},
// initialized true and cleared by warning/danger zones per the
// specification's edge/interior rule.
type SafeDirections struct {
	Forward, Left, Right, Up, Down bool
}

// AllSafe returns a SafeDirections with every direction true.
func AllSafe() SafeDirections {
	return SafeDirections{Forward: true, Left: true, Right: true, Up: true, Down: true}
}

// Variant identifies which analyzer produced an ObstacleResult, since the
// two variants use different raw danger-level scales.
type Variant int

const (
	VariantDense Variant = iota
	VariantSparse
)

// ObstacleResult is the obstacle analyzer's output contract, shared by both
// variants.
type ObstacleResult struct {
	Variant Variant
	Zones   [][]Zone // [row][col]

	Safe SafeDirections

	// RawDangerLevel is in the producing variant's own scale: 0/1/2 for
	// dense, 0/2/3 for sparse. Use NormalizeDangerLevel to unify.
	RawDangerLevel int
}

// MagnitudeGrid returns the per-zone average flow magnitude as a [row][col]
// grid, the shape the balance and tau estimators consume. It is a coarse,
// zone-resolution stand-in for the full-resolution flow field: the balance
// estimator only needs fractional sums over thirds of the frame, which a
// grid this coarse still approximates correctly.
func (r ObstacleResult) MagnitudeGrid() [][]float64 {
	out := make([][]float64, len(r.Zones))
	for i, row := range r.Zones {
		out[i] = make([]float64, len(row))
		for j, z := range row {
			out[i][j] = z.AvgMagnitude
		}
	}
	return out
}

// classifyZone applies the shared status rule to a zone given its
// divergence, average distance from zone center, and the variant's
// expansion threshold. fps is the assumed nominal frame rate used by the
// TTC heuristic.
func classifyZone(divergence, avgDistance, expansionThreshold, ttcWarning, ttcDanger, fps float64) Zone {
	expanding := divergence > 0.5
	expansionRate := math.Max(0, divergence)

	ttc := math.Inf(1)
	if expansionRate > 0.5 {
		ttc = avgDistance / (expansionRate * fps)
	}

	status := StatusClear
	switch {
	case ttc < ttcDanger:
		status = StatusDanger
	case ttc < ttcWarning:
		status = StatusWarning
	case expansionRate > expansionThreshold:
		status = StatusCaution
	}

	return Zone{
		Divergence:    divergence,
		Expanding:     expanding,
		ExpansionRate: expansionRate,
		TTC:           ttc,
		Status:        status,
	}
}

// inferSafeDirections applies the specification's edge/interior rule: a
// warning or danger zone in the top row clears up, the bottom row clears
// down, the leftmost column clears left, the rightmost column clears
// right, and any interior zone (non-edge row AND non-edge column) clears
// forward.
func inferSafeDirections(zones [][]Zone) SafeDirections {
	safe := AllSafe()
	rows := len(zones)
	if rows == 0 {
		return safe
	}
	cols := len(zones[0])

	for r := 0; r < rows; r++ {
		for c := 0; c < cols && c < len(zones[r]); c++ {
			z := zones[r][c]
			if z.Status != StatusWarning && z.Status != StatusDanger {
				continue
			}
			if r == 0 {
				safe.Up = false
			}
			if r == rows-1 {
				safe.Down = false
			}
			if c == 0 {
				safe.Left = false
			}
			if c == cols-1 {
				safe.Right = false
			}
			if r != 0 && r != rows-1 && c != 0 && c != cols-1 {
				safe.Forward = false
			}
		}
	}
	return safe
}

// rawDangerLevel computes the variant-scale raw danger level from the
// grid: 0 if no zone is warning/danger, the variant's warning code if any
// zone is warning, the variant's danger code if any zone is danger.
func rawDangerLevel(zones [][]Zone, variant Variant) int {
	warningCode, dangerCode := 1, 2
	if variant == VariantSparse {
		warningCode, dangerCode = 2, 3
	}

	hasWarning, hasDanger := false, false
	for _, row := range zones {
		for _, z := range row {
			switch z.Status {
			case StatusDanger:
				hasDanger = true
			case StatusWarning:
				hasWarning = true
			}
		}
	}
	switch {
	case hasDanger:
		return dangerCode
	case hasWarning:
		return warningCode
	default:
		return 0
	}
}

// NormalizeDangerLevel unifies a variant-scale raw danger level onto the
// controller's 0..3 scale: danger_in >= 3 -> 3, >= 2 -> 2, >= 1 -> 1, else 0.
func NormalizeDangerLevel(raw int) int {
	switch {
	case raw >= 3:
		return 3
	case raw >= 2:
		return 2
	case raw >= 1:
		return 1
	default:
		return 0
	}
}

// Recommendation returns a human-readable flight recommendation derived
// from the result's safe directions and danger level, mirroring the
// flight-recommendation summaries the source trackers expose.
func (r ObstacleResult) Recommendation() string {
	level := NormalizeDangerLevel(r.RawDangerLevel)
	switch {
	case level >= 3:
		return "DANGER: obstacle imminent, stop or evade immediately"
	case level >= 2:
		if !r.Safe.Forward {
			if r.Safe.Up {
				return "WARNING: path blocked, climb to avoid"
			}
			if r.Safe.Down {
				return "WARNING: path blocked, descend to avoid"
			}
		}
		return "WARNING: obstacle approaching, reduce speed"
	case level >= 1:
		return "CAUTION: obstacle detected, proceed carefully"
	default:
		return "CLEAR: path ahead is clear"
	}
}

// Analyzer is the obstacle analyzer capability both variants implement
// (through DenseComponent and SparseComponent), per the specification's
// "polymorphic obstacle analyzer" re-architecture note: model as a
// capability, not a polymorphic implementation detail.
type Analyzer interface {
	// Analyze computes an ObstacleResult between the previously seen
	// grayscale frame and f's, alongside the zone-resolution flow magnitude
	// grid. Implementations own whatever per-call state (tracked corner
	// pools, previous frames) their variant requires.
	Analyze(f codec.Frame) (ObstacleResult, [][]float64, error)
}

// gridGeometry resolves the configured grid size, defaulting when unset.
func gridGeometry(cfg config.Config) (cols, rows int) {
	cols = cfg.GridCols
	if cols == 0 {
		cols = config.DefaultGridCols
	}
	rows = cfg.GridRows
	if rows == 0 {
		rows = config.DefaultGridRows
	}
	return cols, rows
}
