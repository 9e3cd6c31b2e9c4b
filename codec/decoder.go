/*
NAME
  decoder.go

DESCRIPTION
  decoder.go drives a Codec with compressed units and attaches a monotonic
  frame index and capture timestamp to each decoded image, counting and
  swallowing decode errors rather than propagating them.

AUTHORS
  Vision Core Team

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package codec

import (
	"sync/atomic"

	"github.com/ausocean/utils/logging"
)

// StartCode is the prefix the decoder prepends to every compressed unit
// before feeding it to the codec, as required by bytestream-oriented
// decoders (H.264/H.265 Annex B).
var StartCode = [4]byte{0x00, 0x00, 0x00, 0x01}

// Decoder drives a Codec, producing Frames in capture order. A Decoder is
// not safe for concurrent use; it is owned by the pipeline's receiver
// goroutine.
type Decoder struct {
	codec Codec
	log   logging.Logger

	nextIndex int64

	// decodeErrors counts swallowed decode failures, for diagnostics.
	decodeErrors int64

	width, height int
}

// NewDecoder returns a Decoder driving codec. log may be nil, in which case
// decode errors are counted but not logged.
func NewDecoder(codec Codec, log logging.Logger) *Decoder {
	return &Decoder{codec: codec, log: log}
}

// Decode feeds unit to the underlying codec (prefixed with StartCode) and
// returns any Frames that became ready, in capture order. Decode never
// fails: decode errors are counted and no frame is emitted for them.
func (d *Decoder) Decode(unit CompressedUnit) []Frame {
	prefixed := make([]byte, 0, len(StartCode)+len(unit.Data))
	prefixed = append(prefixed, StartCode[:]...)
	prefixed = append(prefixed, unit.Data...)

	imgs, err := d.codec.Decode(CompressedUnit{Data: prefixed})
	if err != nil {
		atomic.AddInt64(&d.decodeErrors, 1)
		if d.log != nil {
			d.log.Warning("decode error, dropping unit", "error", err.Error())
		}
		return nil
	}

	frames := make([]Frame, 0, len(imgs))
	for _, img := range imgs {
		if img.Width == 0 || img.Height == 0 {
			continue
		}
		if d.width == 0 {
			d.width, d.height = img.Width, img.Height
		}

		f := Frame{
			Index:     d.nextIndex,
			Timestamp: timestampSeconds(now()),
			Width:     img.Width,
			Height:    img.Height,
			Color:     img.Color,
			Gray:      grayFromColor(img.Color),
		}
		d.nextIndex++
		frames = append(frames, f)
	}
	return frames
}

// DecodeErrors returns the number of decode errors swallowed so far.
func (d *Decoder) DecodeErrors() int64 {
	return atomic.LoadInt64(&d.decodeErrors)
}

// Dimensions returns the stable width/height established by the first
// successfully decoded keyframe, or (0, 0) if none has arrived yet.
func (d *Decoder) Dimensions() (int, int) {
	return d.width, d.height
}

// Close releases the underlying codec's resources.
func (d *Decoder) Close() error {
	return d.codec.Close()
}

func timestampSeconds(t interface{ UnixNano() int64 }) float64 {
	return float64(t.UnixNano()) / 1e9
}
