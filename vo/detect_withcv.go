//go:build withcv
// +build withcv

/*
NAME
  detect_withcv.go

DESCRIPTION
  detect_withcv.go drives ORB feature detection, brute-force Hamming
  matching with a Lowe ratio test, and essential-matrix-based pose recovery,
  feeding the result to Tracker.integrate. This is the gocv-dependent half
  of the Visual Odometry component; Tracker itself stays untagged so the
  pose-integration math is testable without OpenCV.

AUTHORS
  Vision Core Team

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package vo

import (
	"gocv.io/x/gocv"

	"github.com/corvidflight/visionpilot/codec"
)

// Detector wraps a Tracker with an ORB detector and matcher, implementing
// the full per-frame pipeline described in the specification: detect,
// match, estimate, gate, integrate.
type Detector struct {
	*Tracker

	orb     gocv.ORB
	matcher gocv.BFMatcher

	prevGray gocv.Mat
	prevDesc gocv.Mat
	prevKP   []gocv.KeyPoint
	hasPrev  bool
}

// NewDetector returns a Detector wrapping tracker, configured with the
// tracker's MaxFeatures/ORBLevels/ORBScaleFactor parameters.
func NewDetector(tracker *Tracker) *Detector {
	cfg := tracker.cfg
	orb := gocv.NewORBWithParams(
		cfg.MaxFeatures, float32(cfg.ORBScaleFactor), cfg.ORBLevels,
		31, 0, 2, gocv.ORBScoreTypeHarris, 31, 20,
	)
	matcher := gocv.NewBFMatcherWithParams(gocv.NormHamming, false)
	return &Detector{Tracker: tracker, orb: orb, matcher: matcher}
}

// Close releases the detector's OpenCV resources.
func (d *Detector) Close() error {
	d.orb.Close()
	d.matcher.Close()
	if d.hasPrev {
		d.prevGray.Close()
		d.prevDesc.Close()
	}
	return nil
}

// Process runs the full VO pipeline against a single decoded frame and
// returns the resulting Update. On the first frame seen (no previous
// frame), it stores the frame's features and returns a StateInit update
// without attempting matching, per the specification's step 2.
func (d *Detector) Process(f codec.Frame) Update {
	gray, err := grayMat(f)
	if err != nil {
		d.skip()
		return Update{State: d.state, Position: d.position}
	}

	var desc gocv.Mat = gocv.NewMat()
	kp := d.orb.DetectAndCompute(gray, gocv.NewMat(), &desc)

	if !d.hasPrev {
		d.prevGray = gray
		d.prevDesc = desc
		d.prevKP = kp
		d.hasPrev = true
		return Update{State: StateInit, Position: d.position}
	}

	if desc.Rows() < 2 || d.prevDesc.Rows() < 2 {
		d.skip()
		gray.Close()
		desc.Close()
		return Update{State: d.state, Position: d.position}
	}

	matches := d.matcher.KnnMatch(d.prevDesc, desc, 2)
	loweRatio := d.cfg.LoweRatio
	if loweRatio == 0 {
		loweRatio = 0.75
	}

	var prevPts, currPts []gocv.Point2f
	for _, m := range matches {
		if len(m) < 2 {
			continue
		}
		if m[0].Distance < loweRatio*m[1].Distance {
			prevPts = append(prevPts, gocv.Point2f{X: d.prevKP[m[0].QueryIdx].X, Y: d.prevKP[m[0].QueryIdx].Y})
			currPts = append(currPts, gocv.Point2f{X: kp[m[0].TrainIdx].X, Y: kp[m[0].TrainIdx].Y})
		}
	}

	d.prevGray.Close()
	d.prevDesc.Close()
	d.prevGray = gray
	d.prevDesc = desc
	d.prevKP = kp

	minMatches := d.cfg.MinMatches
	if minMatches == 0 {
		minMatches = 8
	}
	if len(prevPts) < minMatches {
		d.skip()
		return Update{State: d.state, Position: d.position}
	}

	focal := d.cfg.FocalLength
	if focal == 0 {
		focal = 800.0
	}
	pp := d.cfg.PrincipalPoint
	if pp == ([2]float64{}) {
		pp = [2]float64{640, 360}
	}

	prevMat := gocv.NewPoint2fVectorFromPoints(prevPts)
	currMat := gocv.NewPoint2fVectorFromPoints(currPts)
	defer prevMat.Close()
	defer currMat.Close()

	ransacProb := d.cfg.RANSACProb
	if ransacProb == 0 {
		ransacProb = 0.999
	}
	ransacThreshold := d.cfg.RANSACThreshold
	if ransacThreshold == 0 {
		ransacThreshold = 1.0
	}

	essential := gocv.FindFundamentalMat(prevMat, currMat, gocv.FmRansac, ransacThreshold, ransacProb, nil)
	defer essential.Close()

	if essential.Empty() {
		return d.integrate(Identity3, [3]float64{}, 0)
	}

	R, tVec, inliers := recoverPose(essential, prevMat, currMat, focal, pp)
	return d.integrate(R, tVec, inliers)
}

func grayMat(f codec.Frame) (gocv.Mat, error) {
	if f.Gray == nil {
		return gocv.NewMat(), nil
	}
	return gocv.ImageGrayToMatGray(f.Gray)
}

// recoverPose decomposes an essential/fundamental matrix into a rotation
// and unit translation, selecting the chirality-positive solution, and
// counts inliers among the provided matched points. The concrete gocv call
// surface for essential matrix decomposition varies by build; this
// function isolates that surface so it can be swapped without touching the
// tracker core.
func recoverPose(E gocv.Mat, prev, curr gocv.Point2fVector, focal float64, pp [2]float64) (Rotation3, [3]float64, int) {
	camMatrix := gocv.NewMatWithSize(3, 3, gocv.MatTypeCV64F)
	defer camMatrix.Close()
	camMatrix.SetDoubleAt(0, 0, focal)
	camMatrix.SetDoubleAt(1, 1, focal)
	camMatrix.SetDoubleAt(0, 2, pp[0])
	camMatrix.SetDoubleAt(1, 2, pp[1])
	camMatrix.SetDoubleAt(2, 2, 1)

	R := gocv.NewMat()
	defer R.Close()
	t := gocv.NewMat()
	defer t.Close()

	inliers := gocv.RecoverPose(E, prev, curr, camMatrix, &R, &t, gocv.NewMat())

	rot := Identity3
	if R.Rows() == 3 && R.Cols() == 3 {
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				rot[i*3+j] = R.GetDoubleAt(i, j)
			}
		}
	}

	var tv [3]float64
	if t.Rows() == 3 {
		tv = [3]float64{t.GetDoubleAt(0, 0), t.GetDoubleAt(1, 0), t.GetDoubleAt(2, 0)}
	}

	return rot, tv, inliers
}
