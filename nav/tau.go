/*
NAME
  tau.go

DESCRIPTION
  tau.go implements Lee's tau (time-to-contact) estimator: a per-region-id
  ring buffer of (size, time) samples, danger classification, and scheduled
  garbage collection of stale regions. It follows the specification's
  re-architecture note: a fixed-capacity ring buffer per key with a
  last-touched timestamp, swept on a schedule rather than on every insert.

AUTHORS
  Vision Core Team

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package nav

import (
	"time"

	"github.com/corvidflight/visionpilot/pipeline/config"
)

// DangerLevel is the tau estimator's danger classification.
type DangerLevel string

const (
	Safe    DangerLevel = "SAFE"
	Caution DangerLevel = "CAUTION"
	Warning DangerLevel = "WARNING"
	Danger  DangerLevel = "DANGER"
)

// TauSample is one (apparent size, time) observation for a tracked region.
type TauSample struct {
	Size float64
	Time float64
}

// TauResult is the tau estimator's per-update output.
type TauResult struct {
	Tau      float64
	TauDot   float64
	HasTauDot bool
	Level    DangerLevel
	Urgency  float64
}

type region struct {
	samples    []TauSample
	lastTau    float64
	hasTau     bool
	lastTouch  time.Time
}

// TauEstimator tracks apparent-size history per region id and derives
// time-to-contact estimates. It is not safe for concurrent use.
type TauEstimator struct {
	cfg     config.Config
	regions map[string]*region
	now     func() time.Time
}

// NewTauEstimator returns a TauEstimator configured by cfg.
func NewTauEstimator(cfg config.Config) *TauEstimator {
	cfg.Validate()
	return &TauEstimator{
		cfg:     cfg,
		regions: make(map[string]*region),
		now:     time.Now,
	}
}

// Update appends a new (size, time) sample for regionID and returns a
// TauResult if tau could be computed, or false if not (too few samples,
// size below threshold, rate below threshold, or tau <= 0).
func (e *TauEstimator) Update(regionID string, size, t float64) (TauResult, bool) {
	minSize := e.cfg.TauMinSize
	if minSize == 0 {
		minSize = config.DefaultTauMinSize
	}
	if size < minSize {
		return TauResult{}, false
	}

	r, ok := e.regions[regionID]
	if !ok {
		r = &region{}
		e.regions[regionID] = r
	}
	r.lastTouch = e.now()

	cap := e.cfg.TauHistoryCap
	if cap == 0 {
		cap = config.DefaultTauHistCap
	}
	r.samples = append(r.samples, TauSample{Size: size, Time: t})
	if len(r.samples) > cap {
		r.samples = r.samples[len(r.samples)-cap:]
	}

	n := len(r.samples)
	if n < 2 {
		return TauResult{}, false
	}

	prev := r.samples[n-2]
	curr := r.samples[n-1]
	dt := curr.Time - prev.Time

	minRate := e.cfg.TauMinRate
	if minRate == 0 {
		minRate = config.DefaultTauMinRate
	}
	if dt < 1e-6 {
		return TauResult{}, false
	}
	rate := (curr.Size - prev.Size) / dt
	if abs(rate) < minRate {
		return TauResult{}, false
	}

	tau := curr.Size / rate
	if tau <= 0 {
		return TauResult{}, false
	}

	result := TauResult{Tau: tau}

	if n >= 3 && r.hasTau {
		result.TauDot = (tau - r.lastTau) / dt
		result.HasTauDot = true
	}
	r.lastTau = tau
	r.hasTau = true

	level, urgency := classify(tau)
	if result.HasTauDot {
		switch {
		case result.TauDot < -0.1:
			urgency = clamp(urgency*1.5, 0, 1)
		case result.TauDot > 0.1:
			urgency = clamp(urgency*0.7, 0, 1)
		}
	}
	result.Level = level
	result.Urgency = urgency

	return result, true
}

func classify(tau float64) (DangerLevel, float64) {
	switch {
	case tau < 0.5:
		return Danger, 1.0
	case tau < 1.0:
		return Warning, 0.7
	case tau < 2.0:
		return Caution, 0.4
	default:
		urgency := 1 - tau/10
		if urgency < 0 {
			urgency = 0
		}
		return Safe, urgency
	}
}

// Sweep removes any region whose most recent sample is older than
// cfg.TauMaxAge, relative to now. It is intended to be called on a
// schedule rather than after every Update.
func (e *TauEstimator) Sweep() {
	maxAge := e.cfg.TauMaxAge
	if maxAge == 0 {
		maxAge = config.DefaultTauMaxAge
	}
	now := e.now()
	for id, r := range e.regions {
		if now.Sub(r.lastTouch) > maxAge {
			delete(e.regions, id)
		}
	}
}

// RegionCount returns the number of tracked regions, for diagnostics and
// tests.
func (e *TauEstimator) RegionCount() int {
	return len(e.regions)
}

// DivergenceMap computes the bulk tau variant: tau[i][j] = 1 / divergence[i][j]
// where divergence > 0.01, scaled by 10/mean_magnitude when mean > 1.0.
// Cells that don't meet the divergence threshold are left at zero (no
// estimate).
func DivergenceMap(divergence, magnitude [][]float64) [][]float64 {
	out := make([][]float64, len(divergence))
	mean := meanOf(magnitude)
	scale := 1.0
	if mean > 1.0 {
		scale = 10 / mean
	}
	for i, row := range divergence {
		out[i] = make([]float64, len(row))
		for j, d := range row {
			if d > 0.01 {
				out[i][j] = (1 / d) * scale
			}
		}
	}
	return out
}

func meanOf(m [][]float64) float64 {
	var sum float64
	var n int
	for _, row := range m {
		for _, v := range row {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
