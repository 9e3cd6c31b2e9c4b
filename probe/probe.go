//go:build debug && withcv
// +build debug,withcv

/*
NAME
  probe.go

DESCRIPTION
  probe.go displays debug windows for the vision navigation pipeline:
  the current frame overlaid with obstacle zone status and the autopilot's
  synthesized command, adapted from filter's debugWindows concept.

AUTHORS
  Vision Core Team

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package probe provides optional, debug-build-only frame-level
// instrumentation windows for the vision navigation pipeline.
package probe

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/corvidflight/visionpilot/autopilot"
	"github.com/corvidflight/visionpilot/obstacle"
)

// Windows displays the current frame, its obstacle zone grid, and the last
// synthesized autopilot command.
type Windows struct {
	windows []*gocv.Window
}

// New creates debug windows named after name.
func New(name string) Windows {
	return Windows{
		windows: []*gocv.Window{
			gocv.NewWindow(name + ": Frame"),
			gocv.NewWindow(name + ": Obstacle Zones"),
		},
	}
}

// Close frees the windows' resources.
func (w *Windows) Close() error {
	for _, window := range w.windows {
		if err := window.Close(); err != nil {
			return err
		}
	}
	return nil
}

var (
	clear   = color.RGBA{0, 191, 0, 0}
	caution = color.RGBA{191, 191, 0, 0}
	warning = color.RGBA{223, 127, 0, 0}
	danger  = color.RGBA{191, 0, 0, 0}
)

func statusColor(s obstacle.Status) color.RGBA {
	switch s {
	case obstacle.StatusCaution:
		return caution
	case obstacle.StatusWarning:
		return warning
	case obstacle.StatusDanger:
		return danger
	default:
		return clear
	}
}

// Show renders frame with the obstacle zone grid overlaid in its second
// window, and frame itself with the autopilot command annotated in its
// first window.
func (w *Windows) Show(frame image.Image, result obstacle.ObstacleResult, cmd autopilot.Command) {
	im, err := gocv.ImageToMatRGB(frame)
	if err != nil {
		return
	}
	defer im.Close()

	overlay := im.Clone()
	defer overlay.Close()

	bounds := frame.Bounds()
	w2, h2 := bounds.Dx(), bounds.Dy()
	rows := len(result.Zones)
	for r, row := range result.Zones {
		cols := len(row)
		for c, z := range row {
			x0 := c * w2 / maxInt(1, cols)
			y0 := r * h2 / maxInt(1, rows)
			x1 := (c + 1) * w2 / maxInt(1, cols)
			y1 := (r + 1) * h2 / maxInt(1, rows)
			gocv.Rectangle(&overlay, image.Rect(x0, y0, x1, y1), statusColor(z.Status), 2)
		}
	}

	text := fmt.Sprintf("%s vx=%.2f vy=%.2f vz=%.2f yaw=%.1f", cmd.Action, cmd.VX, cmd.VY, cmd.VZ, cmd.Yaw)
	gocv.PutText(&im, text, image.Pt(16, 24), gocv.FontHersheyPlain, 1.4, clear, 2)

	w.windows[0].IMShow(im)
	w.windows[1].IMShow(overlay)
	w.windows[0].WaitKey(1)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
