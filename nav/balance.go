/*
NAME
  balance.go

DESCRIPTION
  balance.go implements the bee-inspired flow balancer: a stateless-per-call
  analysis of a 2-D optical flow magnitude map into lateral, speed, and
  vertical recommendations and a clamped control vector.

AUTHORS
  Vision Core Team

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package nav implements the balance and tau (time-to-contact) estimators
// that sit between the obstacle analyzer and the autopilot controller.
package nav

import (
	"github.com/corvidflight/visionpilot/pipeline/config"
)

// LateralRecommendation is the balancer's lateral-drift verdict.
type LateralRecommendation string

const (
	Centered LateralRecommendation = "CENTERED"
	GoLeft   LateralRecommendation = "GO_LEFT"
	GoRight  LateralRecommendation = "GO_RIGHT"
)

// SpeedRecommendation is the balancer's forward-speed verdict.
type SpeedRecommendation string

const (
	SpeedOK         SpeedRecommendation = "OK"
	TooFast         SpeedRecommendation = "TOO_FAST"
	ReduceSpeed     SpeedRecommendation = "REDUCE_SPEED"
	TooSlow         SpeedRecommendation = "TOO_SLOW"
)

// VerticalRecommendation is the balancer's altitude verdict.
type VerticalRecommendation string

const (
	Level VerticalRecommendation = "LEVEL"
	GoUp  VerticalRecommendation = "GO_UP"
	GoDown VerticalRecommendation = "GO_DOWN"
)

// BalanceResult is the per-call output of the flow balancer.
type BalanceResult struct {
	LateralBalance  float64
	VerticalBalance float64

	Lateral  LateralRecommendation
	Speed    SpeedRecommendation
	Vertical VerticalRecommendation

	// Control is (lateral_cmd, speed_cmd, vertical_cmd), each clamped to
	// [-1, 1].
	Control [3]float64
}

// flowEpsilon is the minimum left+right (or dorsal+ventral) sum below which
// the corresponding balance defaults to zero rather than dividing by a
// near-zero denominator. A map whose total flow is below it yields the
// zero-flow result.
const flowEpsilon = 0.1

// Balancer computes flight recommendations from a flow magnitude map, per
// the specification's bee-inspired balance analogy.
type Balancer struct {
	cfg config.Config
}

// NewBalancer returns a Balancer configured by cfg.
func NewBalancer(cfg config.Config) *Balancer {
	cfg.Validate()
	return &Balancer{cfg: cfg}
}

// Analyze computes a BalanceResult from magnitude, a row-major h x w flow
// magnitude map. A nil or zero-sized map, or one whose total flow is below
// flowEpsilon, yields the zero-flow boundary result: all balances zero, all
// recommendations CENTERED/OK/LEVEL, and a zero control vector.
func (b *Balancer) Analyze(magnitude [][]float64) BalanceResult {
	h := len(magnitude)
	if h == 0 {
		return b.zeroResult()
	}
	w := len(magnitude[0])
	if w == 0 {
		return b.zeroResult()
	}

	leftEnd := w / 3
	rightStart := w - w/3

	var left, right, dorsal, ventral, total float64
	topEnd := h / 3
	bottomStart := h - h/3

	for y := 0; y < h; y++ {
		row := magnitude[y]
		for x := 0; x < w && x < len(row); x++ {
			v := row[x]
			total += v
			if x < leftEnd {
				left += v
			}
			if x >= rightStart {
				right += v
			}
		}
		if y < topEnd {
			for _, v := range row {
				dorsal += v
			}
		}
		if y >= bottomStart {
			for _, v := range row {
				ventral += v
			}
		}
	}
	if total < flowEpsilon {
		return b.zeroResult()
	}

	lateral := 0.0
	if left+right > flowEpsilon {
		lateral = (left - right) / (left + right)
	}
	vertical := 0.0
	if dorsal+ventral > flowEpsilon {
		vertical = (dorsal - ventral) / (dorsal + ventral)
	}

	threshold := b.cfg.BalanceThreshold
	if threshold == 0 {
		threshold = config.DefaultBalanceThreshold
	}

	lateralRec := Centered
	switch {
	case lateral > threshold:
		lateralRec = GoRight
	case lateral < -threshold:
		lateralRec = GoLeft
	}

	target := b.cfg.SpeedTarget
	if target == 0 {
		target = config.DefaultSpeedTarget
	}
	rows := h
	ventralAvg := ventral / float64(max(1, w*(rows-bottomStart)))
	if rows-bottomStart <= 0 {
		ventralAvg = 0
	}

	speedRec := speedRecommendation(ventralAvg, target)

	verticalRec := Level
	switch {
	case vertical > threshold:
		verticalRec = GoUp
	case vertical < -threshold:
		verticalRec = GoDown
	}

	gain := b.cfg.BalanceGain
	if gain == 0 {
		gain = config.DefaultBalanceGain
	}

	control := [3]float64{
		clamp(-lateral*gain, -1, 1),
		clamp(-(ventralAvg-target)/target, -1, 1),
		clamp(-vertical*gain, -1, 1),
	}

	return BalanceResult{
		LateralBalance:  lateral,
		VerticalBalance: vertical,
		Lateral:         lateralRec,
		Speed:           speedRec,
		Vertical:        verticalRec,
		Control:         control,
	}
}

func speedRecommendation(ventral, target float64) SpeedRecommendation {
	if target <= 0 {
		return SpeedOK
	}
	ratio := ventral / target
	switch {
	case ratio > 1.5:
		return TooFast
	case ratio > 1.2:
		return ReduceSpeed
	case ratio < 0.5 && ventral > 0.5:
		return TooSlow
	default:
		return SpeedOK
	}
}

func (b *Balancer) zeroResult() BalanceResult {
	return BalanceResult{
		Lateral:  Centered,
		Speed:    SpeedOK,
		Vertical: Level,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
