//go:build withcv
// +build withcv

/*
NAME
  sparse.go

DESCRIPTION
  sparse.go implements the sparse flow obstacle analyzer variant: a pool of
  tracked corners followed by pyramidal Lucas-Kanade optical flow, with
  per-zone divergence computed from tracked point vectors rather than a
  dense field.

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

// SparseAnalyzer computes the sparse (Lucas-Kanade) flow variant of the
// obstacle analyzer. It is not safe for concurrent use.
type SparseAnalyzer struct {
	cfg config.Config

	prevGray gocv.Mat
	hasPrev  bool

	points gocv.Mat // tracked corner pool, Nx1 CV_32FC2
}

// NewSparseAnalyzer returns a SparseAnalyzer configured by cfg.
func NewSparseAnalyzer(cfg config.Config) *SparseAnalyzer {
	cfg.Validate()
	return &SparseAnalyzer{cfg: cfg}
}

// Close releases the analyzer's retained frame buffer and corner pool.
func (a *SparseAnalyzer) Close() error {
	if a.hasPrev {
		a.prevGray.Close()
	}
	if !a.points.Empty() {
		a.points.Close()
	}
	return nil
}

// Update computes an ObstacleResult between the analyzer's retained
// previous frame and gray. On the first call it seeds the corner pool and
// returns the zero-flow result.
func (a *SparseAnalyzer) Update(gray *image.Gray) (ObstacleResult, error) {
	mat, err := gocv.ImageGrayToMatGray(gray)
	if err != nil {
		return ObstacleResult{}, err
	}

	maxCorners := a.cfg.MaxCorners
	if maxCorners == 0 {
		maxCorners = config.DefaultMaxCorners
	}
	quality := a.cfg.CornerQuality
	if quality == 0 {
		quality = config.DefaultCornerQuality
	}
	minDist := a.cfg.MinCornerDistance
	if minDist == 0 {
		minDist = config.DefaultMinCornerDistance
	}
	minTracked := a.cfg.MinTrackedCorners
	if minTracked == 0 {
		minTracked = config.DefaultMinTrackedCorners
	}

	if !a.hasPrev {
		a.prevGray = mat
		a.hasPrev = true
		a.points = gocv.GoodFeaturesToTrack(mat, maxCorners, quality, minDist)
		return zeroResult(VariantSparse, a.cfg), nil
	}

	nextPts := gocv.NewMat()
	status := gocv.NewMat()
	errOut := gocv.NewMat()
	defer nextPts.Close()
	defer status.Close()
	defer errOut.Close()

	gocv.CalcOpticalFlowPyrLK(a.prevGray, mat, a.points, &nextPts, &status, &errOut)

	prevKept, currKept := filterTracked(a.points, nextPts, status)

	a.prevGray.Close()
	a.prevGray = mat

	if len(prevKept) < minTracked {
		a.points.Close()
		a.points = gocv.GoodFeaturesToTrack(mat, maxCorners, quality, minDist)
	} else {
		a.points.Close()
		a.points = gocv.NewPoint2fVectorFromPoints(currKept).ToMat()
	}

	cols, rows := gridGeometry(a.cfg)
	w, h := gray.Bounds().Dx(), gray.Bounds().Dy()
	zoneW, zoneH := w/cols, h/rows

	threshold := a.cfg.SparseExpansionThreshold
	if threshold == 0 {
		threshold = config.DefaultSparseExpansionThreshold
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
	for r := 0; r < rows; r++ {
		zones[r] = make([]Zone, cols)
		for c := 0; c < cols; c++ {
			cx := float64(c*zoneW + zoneW/2)
			cy := float64(r*zoneH + zoneH/2)

			avgMag, divergence, avgDist, n := sampleZoneSparse(prevKept, currKept, c*zoneW, r*zoneH, zoneW, zoneH, cx, cy)
			var z Zone
			if n >= 3 {
				z = classifyZone(divergence, avgDist, threshold, ttcWarning, ttcDanger, fps)
			} else {
				z = Zone{Status: StatusClear, TTC: math.Inf(1)}
			}
			z.Row, z.Col = r, c
			z.AvgMagnitude = avgMag
			zones[r][c] = z
		}
	}

	return ObstacleResult{
		Variant:        VariantSparse,
		Zones:          zones,
		Safe:           inferSafeDirections(zones),
		RawDangerLevel: rawDangerLevel(zones, VariantSparse),
	}, nil
}

// filterTracked returns the previous and current point pairs whose LK
// status is 1 (successfully tracked).
func filterTracked(prev, next, status gocv.Mat) (prevPts, currPts []gocv.Point2f) {
	n := prev.Rows()
	for i := 0; i < n; i++ {
		if status.GetUCharAt(i, 0) != 1 {
			continue
		}
		pv := prev.GetVecfAt(i, 0)
		nv := next.GetVecfAt(i, 0)
		prevPts = append(prevPts, gocv.Point2f{X: pv[0], Y: pv[1]})
		currPts = append(currPts, gocv.Point2f{X: nv[0], Y: nv[1]})
	}
	return prevPts, currPts
}

// sampleZoneSparse computes the sparse divergence for one zone: vectors
// from tracked points inside the zone to the zone center, normalized,
// dotted with the per-point flow vector, averaged.
func sampleZoneSparse(prevPts, currPts []gocv.Point2f, x0, y0, w, h int, cx, cy float64) (avgMag, divergence, avgDist float64, n int) {
	var magSum, divSum, distSum float64
	for i := range prevPts {
		p := prevPts[i]
		if float64(p.X) < float64(x0) || float64(p.X) >= float64(x0+w) || float64(p.Y) < float64(y0) || float64(p.Y) >= float64(y0+h) {
			continue
		}
		flowX := float64(currPts[i].X - p.X)
		flowY := float64(currPts[i].Y - p.Y)
		magSum += math.Hypot(flowX, flowY)

		dx, dy := float64(p.X)-cx, float64(p.Y)-cy
		dist := math.Hypot(dx, dy)
		distSum += dist
		n++
		if dist < 1e-6 {
			continue
		}
		ux, uy := dx/dist, dy/dist
		divSum += flowX*ux + flowY*uy
	}
	if n > 0 {
		avgMag = magSum / float64(n)
		divergence = divSum / float64(n)
		avgDist = distSum / float64(n)
	}
	return avgMag, divergence, avgDist, n
}
