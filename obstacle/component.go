//go:build withcv
// +build withcv

/*
NAME
  component.go

DESCRIPTION
  component.go adapts DenseAnalyzer and SparseAnalyzer, whose Update method
  takes a raw grayscale image, to the pipeline's ObstacleComponent contract,
  which operates on a decoded codec.Frame and also needs the flow magnitude
  grid the balance/tau estimators consume.

AUTHORS
  Vision Core Team

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package obstacle

import (
	"github.com/corvidflight/visionpilot/codec"
	"github.com/corvidflight/visionpilot/pipeline/config"
)

// DenseComponent adapts a DenseAnalyzer to the pipeline's ObstacleComponent
// interface.
type DenseComponent struct {
	*DenseAnalyzer
}

// NewDenseComponent returns a DenseComponent configured by cfg.
func NewDenseComponent(cfg config.Config) DenseComponent {
	return DenseComponent{NewDenseAnalyzer(cfg)}
}

// Analyze runs the dense flow analysis on f's grayscale view and returns its
// ObstacleResult alongside the zone-resolution magnitude grid.
func (d DenseComponent) Analyze(f codec.Frame) (ObstacleResult, [][]float64, error) {
	r, err := d.Update(f.Gray)
	if err != nil {
		return ObstacleResult{}, nil, err
	}
	return r, r.MagnitudeGrid(), nil
}

// SparseComponent adapts a SparseAnalyzer to the pipeline's ObstacleComponent
// interface.
type SparseComponent struct {
	*SparseAnalyzer
}

// NewSparseComponent returns a SparseComponent configured by cfg.
func NewSparseComponent(cfg config.Config) SparseComponent {
	return SparseComponent{NewSparseAnalyzer(cfg)}
}

// Analyze runs the sparse flow analysis on f's grayscale view and returns its
// ObstacleResult alongside the zone-resolution magnitude grid.
func (s SparseComponent) Analyze(f codec.Frame) (ObstacleResult, [][]float64, error) {
	r, err := s.Update(f.Gray)
	if err != nil {
		return ObstacleResult{}, nil, err
	}
	return r, r.MagnitudeGrid(), nil
}
