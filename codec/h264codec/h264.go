/*
NAME
  h264.go

DESCRIPTION
  h264.go delimits H.264 Annex B access units from a NAL lexer, adapted
  from codec/h264's NAL unit scanner. The actual bitstream decode (CABAC,
  motion compensation, reference management) is out of scope: it is the
  external decoder collaborator the specification treats as a black box.
  This codec's job ends at access-unit framing; it never produces a decoded
  image itself, so it is only useful wrapped by a real decoder context.

AUTHORS
  Vision Core Team

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package h264codec provides NAL-unit access-unit delimiting for an
// Annex B H.264/H.265 stream. It is a framing-only Codec: a real decode
// backend (hardware, cgo, or a remote service) must be supplied via
// WithDecodeFunc for Decode to yield images; without one it still delimits
// access units but discards each completed one, so Decode returns no images
// and no error. This is consistent with the specification's black-box
// treatment of the underlying video codec.
package h264codec

import (
	"fmt"
	"image"

	"github.com/corvidflight/visionpilot/codec"
)

// nalType is the low 5 bits of a NAL unit's header byte.
type nalType uint8

const (
	nalSlice      nalType = 1
	nalIDRSlice   nalType = 5
	nalSEI        nalType = 6
	nalSPS        nalType = 7
	nalPPS        nalType = 8
	nalAUD        nalType = 9
)

// isVCL reports whether t is a video-coding-layer NAL unit (carries picture
// data, as opposed to parameter sets or supplemental metadata).
func isVCL(t nalType) bool {
	return t == nalSlice || t == nalIDRSlice
}

// DecodeFunc decodes one complete access unit (the concatenated NAL units
// belonging to a single picture) into a raw image. Callers wire in a real
// H.264 decoder through this seam; Codec itself only performs framing.
type DecodeFunc func(accessUnit [][]byte) (image.Image, error)

// Codec delimits NAL units into access units and hands complete access
// units to an injected DecodeFunc, mirroring codec/h264's lexer-driven
// framing but generalized to arbitrary decode backends.
type Codec struct {
	decode DecodeFunc

	// pending accumulates NAL units for the access unit currently being
	// assembled.
	pending [][]byte
}

// New returns a Codec that delimits access units but cannot decode them: it
// always returns zero images per unit. Use WithDecodeFunc to supply a real
// decode backend.
func New() *Codec {
	return &Codec{}
}

// WithDecodeFunc sets the decode backend used once an access unit is
// complete, returning c for chaining.
func (c *Codec) WithDecodeFunc(fn DecodeFunc) *Codec {
	c.decode = fn
	return c
}

// Decode accepts one compressed unit (expected to be a single NAL unit,
// start-code prefixed by the Decoder) and returns a decoded image only once
// an access-unit boundary is crossed and a DecodeFunc is configured.
func (c *Codec) Decode(unit codec.CompressedUnit) ([]codec.DecodedImage, error) {
	data := stripStartCode(unit.Data)
	if len(data) == 0 {
		return nil, nil
	}
	t := nalType(data[0] & 0x1f)

	boundary := t == nalAUD || (isVCL(t) && firstSliceInPicture(data))
	if boundary && len(c.pending) > 0 {
		au := c.pending
		c.pending = nil
		img, err := c.decodeAccessUnit(au)
		if err != nil {
			return nil, err
		}
		if t != nalAUD {
			c.pending = append(c.pending, data)
		}
		if img == nil {
			return nil, nil
		}
		b := img.Bounds()
		return []codec.DecodedImage{{Width: b.Dx(), Height: b.Dy(), Color: img}}, nil
	}

	if t != nalAUD {
		c.pending = append(c.pending, data)
	}
	return nil, nil
}

func (c *Codec) decodeAccessUnit(au [][]byte) (image.Image, error) {
	if c.decode == nil {
		return nil, nil
	}
	img, err := c.decode(au)
	if err != nil {
		return nil, fmt.Errorf("h264codec: decode access unit: %w", err)
	}
	return img, nil
}

// firstSliceInPicture reports whether the slice NAL unit data begins a new
// picture, per the first_mb_in_slice field of the slice header being zero.
// This is a simplified check sufficient for well-formed Annex B streams
// produced by a single encoder; it does not parse the full slice header.
func firstSliceInPicture(data []byte) bool {
	if len(data) < 2 {
		return false
	}
	return data[1]&0x80 != 0
}

func stripStartCode(data []byte) []byte {
	if len(data) >= 4 && data[0] == 0 && data[1] == 0 && data[2] == 0 && data[3] == 1 {
		return data[4:]
	}
	if len(data) >= 3 && data[0] == 0 && data[1] == 0 && data[2] == 1 {
		return data[3:]
	}
	return data
}

// Close is a no-op: the framing codec holds no external resources of its
// own. A DecodeFunc backend owns whatever resources it allocates.
func (c *Codec) Close() error { return nil }

// Kind reports that this Codec delimits a raw H.264 Annex B bytestream.
func (c *Codec) Kind() codec.Kind { return codec.KindH264 }
