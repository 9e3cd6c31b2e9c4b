//go:build withcv
// +build withcv

/*
NAME
  dense.go

DESCRIPTION
  dense.go implements the dense flow obstacle analyzer variant: a
  Farneback optical flow field between consecutive grayscale frames,
  partitioned into a configurable grid, with per-zone divergence sampled
  over a 5x5 sub-grid.

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
	"image"
	"math"

	"gocv.io/x/gocv"

	"github.com/corvidflight/visionpilot/pipeline/config"
)

// DenseAnalyzer computes the dense (Farneback) flow variant of the obstacle
// analyzer. It is not safe for concurrent use.
type DenseAnalyzer struct {
	cfg config.Config

	prevGray gocv.Mat
	hasPrev  bool
}

// NewDenseAnalyzer returns a DenseAnalyzer configured by cfg.
func NewDenseAnalyzer(cfg config.Config) *DenseAnalyzer {
	cfg.Validate()
	return &DenseAnalyzer{cfg: cfg}
}

// Close releases the analyzer's retained frame buffer.
func (a *DenseAnalyzer) Close() error {
	if a.hasPrev {
		a.prevGray.Close()
	}
	return nil
}

// Update computes an ObstacleResult between the analyzer's retained
// previous frame and gray. On the first call (no previous frame), it
// stores gray and returns the zero-flow result.
func (a *DenseAnalyzer) Update(gray *image.Gray) (ObstacleResult, error) {
	mat, err := gocv.ImageGrayToMatGray(gray)
	if err != nil {
		return ObstacleResult{}, err
	}

	if !a.hasPrev {
		a.prevGray = mat
		a.hasPrev = true
		return zeroResult(VariantDense, a.cfg), nil
	}
	defer func() {
		a.prevGray.Close()
		a.prevGray = mat
	}()

	flow := gocv.NewMat()
	defer flow.Close()

	gocv.CalcOpticalFlowFarneback(a.prevGray, mat, &flow, 0.5, 3, 15, 3, 5, 1.2, 0)

	cols, rows := gridGeometry(a.cfg)
	w, h := gray.Bounds().Dx(), gray.Bounds().Dy()

	threshold := a.cfg.DenseExpansionThreshold
	if threshold == 0 {
		threshold = config.DefaultDenseExpansionThreshold
	}
	ttcWarning := a.cfg.TTCWarning
	if ttcWarning == 0 {
		ttcWarning = config.DefaultTTCWarning
	}
	ttcDanger := a.cfg.TTCDanger
	if ttcDanger == 0 {
		ttcDanger = config.DefaultTTCDanger
	}
	fps := a.cfg.NominalFPS
	if fps == 0 {
		fps = config.DefaultNominalFPS
	}

	zones := make([][]Zone, rows)
	zoneW, zoneH := w/cols, h/rows

	for r := 0; r < rows; r++ {
		zones[r] = make([]Zone, cols)
		for c := 0; c < cols; c++ {
			cx := float64(c*zoneW + zoneW/2)
			cy := float64(r*zoneH + zoneH/2)

			avgMag, divergence, avgDist := sampleZoneDense(flow, c*zoneW, r*zoneH, zoneW, zoneH, cx, cy)
			z := classifyZone(divergence, avgDist, threshold, ttcWarning, ttcDanger, fps)
			z.Row, z.Col = r, c
			z.AvgMagnitude = avgMag
			zones[r][c] = z
		}
	}

	return ObstacleResult{
		Variant:        VariantDense,
		Zones:          zones,
		Safe:           inferSafeDirections(zones),
		RawDangerLevel: rawDangerLevel(zones, VariantDense),
	}, nil
}

// sampleZoneDense computes avg magnitude and a 5x5-sample divergence for
// one zone's pixel rectangle, per the specification's step: "sample a 5x5
// sub-grid; for each sample, compute the signed projection of the flow
// vector onto the unit vector from zone center to the sample."
func sampleZoneDense(flow gocv.Mat, x0, y0, w, h int, cx, cy float64) (avgMag, divergence, avgDist float64) {
	if w <= 0 || h <= 0 {
		return 0, 0, 0
	}

	var magSum float64
	var magCount int
	for y := y0; y < y0+h; y++ {
		for x := x0; x < x0+w; x++ {
			if y >= flow.Rows() || x >= flow.Cols() {
				continue
			}
			v := flow.GetVecfAt(y, x)
			magSum += math.Hypot(float64(v[0]), float64(v[1]))
			magCount++
		}
	}
	if magCount > 0 {
		avgMag = magSum / float64(magCount)
	}

	const grid = 5
	var divSum float64
	var distSum float64
	var sampleCount int
	for i := 0; i < grid; i++ {
		for j := 0; j < grid; j++ {
			sx := x0 + (i*w)/grid + w/(2*grid)
			sy := y0 + (j*h)/grid + h/(2*grid)
			if sy >= flow.Rows() || sx >= flow.Cols() || sy < 0 || sx < 0 {
				continue
			}
			v := flow.GetVecfAt(sy, sx)

			dx, dy := float64(sx)-cx, float64(sy)-cy
			dist := math.Hypot(dx, dy)
			distSum += dist
			sampleCount++
			if dist < 1e-6 {
				continue
			}
			ux, uy := dx/dist, dy/dist
			divSum += float64(v[0])*ux + float64(v[1])*uy
		}
	}
	if sampleCount > 0 {
		divergence = divSum / float64(sampleCount)
		avgDist = distSum / float64(sampleCount)
	}
	return avgMag, divergence, avgDist
}

func zeroResult(variant Variant, cfg config.Config) ObstacleResult {
	cols, rows := gridGeometry(cfg)
	zones := make([][]Zone, rows)
	for r := range zones {
		zones[r] = make([]Zone, cols)
		for c := range zones[r] {
			zones[r][c] = Zone{Row: r, Col: c, Status: StatusClear, TTC: math.Inf(1)}
		}
	}
	return ObstacleResult{
		Variant: variant,
		Zones:   zones,
		Safe:    AllSafe(),
	}
}
