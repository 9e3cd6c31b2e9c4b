/*
NAME
  kind.go

DESCRIPTION
  kind.go names the compressed-unit encodings a Codec implementation may
  handle, adapted from codec/codecutil's codec-name list.

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

// Kind names a compressed-unit encoding a Codec implementation decodes.
type Kind string

// Known encodings. H264AU denotes pre-delimited access units (no further
// lexing required), as opposed to H264, a raw bytestream.
const (
	KindJPEG  Kind = "jpeg"
	KindMJPEG Kind = "mjpeg"
	KindH264  Kind = "h264"
	KindH264AU Kind = "h264_au"
	KindH265  Kind = "h265"
)

// IsValid reports whether k is one of the known encodings.
func IsValid(k Kind) bool {
	switch k {
	case KindJPEG, KindMJPEG, KindH264, KindH264AU, KindH265:
		return true
	default:
		return false
	}
}

// Describer is implemented by Codec implementations that can report which
// Kind they decode, for diagnostics and logging.
type Describer interface {
	Kind() Kind
}
