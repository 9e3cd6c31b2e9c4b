//go:build withcv
// +build withcv

/*
NAME
  jpeg.go

DESCRIPTION
  jpeg.go provides a Codec implementation for MJPEG-style streams, where
  each compressed unit is a single complete JPEG picture. It serves
  callers that don't have a real H.264/H.265 decoder context wired in.

AUTHORS
  Vision Core Team

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package jpegcodec adapts codec/jpeg-style per-picture framing to the
// codec.Codec interface, decoding each unit with gocv's IMDecode rather
// than the standard library's image/jpeg, matching the rest of this
// module's computer-vision stack.
package jpegcodec

import (
	"bytes"
	"fmt"

	"gocv.io/x/gocv"

	"github.com/corvidflight/visionpilot/codec"
)

// Codec decodes compressed units that are each one complete JPEG picture.
// It strips the Annex-B style start code the Decoder prepends before
// handing bytes to gocv, since JPEG has no notion of NAL start codes.
type Codec struct{}

// New returns a ready-to-use JPEG Codec.
func New() *Codec { return &Codec{} }

// Decode decodes unit as a single JPEG picture. It returns an error for a
// unit that isn't a valid JPEG, which the Decoder swallows and counts as a
// decode error.
func (c *Codec) Decode(unit codec.CompressedUnit) ([]codec.DecodedImage, error) {
	data := bytes.TrimPrefix(unit.Data, codec.StartCode[:])

	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("jpegcodec: decode failed: %w", err)
	}
	defer mat.Close()

	if mat.Empty() {
		return nil, fmt.Errorf("jpegcodec: unit is not a decodable JPEG picture")
	}

	img, err := mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("jpegcodec: mat to image: %w", err)
	}

	return []codec.DecodedImage{{
		Width:  mat.Cols(),
		Height: mat.Rows(),
		Color:  img,
	}}, nil
}

// Close is a no-op: the JPEG codec holds no codec-context resources.
func (c *Codec) Close() error { return nil }

// Kind reports that this Codec decodes single-picture JPEG units.
func (c *Codec) Kind() codec.Kind { return codec.KindJPEG }
