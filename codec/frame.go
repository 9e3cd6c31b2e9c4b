/*
NAME
  frame.go

DESCRIPTION
  frame.go defines Frame, the decoded-image type shared by every analyzer
  downstream of the Frame Decoder.

AUTHORS
  Vision Core Team

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package codec provides the Frame Decoder: it drives a pluggable Codec
// with compressed units from the demuxer and emits decoded Frames in
// capture order.
package codec

import (
	"image"
	"time"
)

// Frame is a single decoded image, produced by the Frame Decoder and
// consumed by the VO, obstacle and balance/tau analyzers. A Frame is
// single-owner: callers must not retain a Frame past the next call that
// produces a new one unless they copy it.
type Frame struct {
	// Index is the frame's position in capture order. Index is strictly
	// increasing across a session.
	Index int64

	// Timestamp is the frame's wall-clock capture time, in seconds.
	Timestamp float64

	// Width and Height are the frame's pixel dimensions. These are stable
	// across a session after the first keyframe.
	Width, Height int

	// Color is the RGB (or BGR, depending on the codec driver) pixel view.
	Color image.Image

	// Gray is the grayscale pixel view, derived deterministically from
	// Color.
	Gray *image.Gray
}

// grayFromColor derives a grayscale view from a color image using the
// standard library's luminance-weighted conversion, giving every Codec
// implementation the same deterministic grayscale derivation regardless of
// how it produced Color.
func grayFromColor(src image.Image) *image.Gray {
	b := src.Bounds()
	dst := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(x, y, src.At(x, y))
		}
	}
	return dst
}

// DecodedImage is what a Codec implementation produces for a single decoded
// picture, before the Decoder attaches an index and timestamp.
type DecodedImage struct {
	Width, Height int
	Color         image.Image
}

// Codec is the black-box video codec collaborator: feed it a compressed
// unit, get back zero or more decoded images. The specification treats the
// actual H.264/H.265 bitstream decode as an external dependency; Codec is
// the seam a concrete decoder implementation plugs into.
type Codec interface {
	// Decode feeds a single compressed unit to the codec context and
	// returns any pictures that became ready as a result. A unit may yield
	// zero, one, or multiple images (B-frame reordering, parameter sets
	// that yield nothing by themselves, and so on).
	Decode(unit CompressedUnit) ([]DecodedImage, error)

	// Close releases the codec context.
	Close() error
}

// CompressedUnit mirrors stream.CompressedUnit without importing the stream
// package, keeping codec decoupled from the ingress framing scheme; the
// pipeline's receiver converts one into the other before calling Decode.
type CompressedUnit struct {
	Data []byte
}

// now is overridable in tests so Decoder output is deterministic.
var now = func() time.Time { return time.Now() }
