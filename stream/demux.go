/*
NAME
  demux.go

DESCRIPTION
  demux.go parses a framed byte stream into self-delimited compressed units,
  degrading gracefully on malformed length prefixes rather than failing.

AUTHORS
  Vision Core Team

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package stream provides the ingress demuxer that turns arbitrarily
// chunked, length-prefixed bytes into CompressedUnits for the frame decoder.
package stream

import "encoding/binary"

// UnitType is a coarse tag derived from the low 5 bits of a compressed
// unit's first payload byte. The demuxer records it on each unit but does
// not act on it.
type UnitType uint8

// Unit type tags, as derivable from the low 5 bits of the first payload byte.
const (
	UnitKey UnitType = iota
	UnitDelta
	UnitParameterSet
	UnitOther
)

// typeFromFirstByte derives a coarse UnitType from the low 5 bits of b. Only
// a handful of tag values are given names; anything else is UnitOther.
// Demux uses it only to fill in CompressedUnit.Type; parsing never depends
// on the tag.
func typeFromFirstByte(b byte) UnitType {
	switch b & 0x1f {
	case 1:
		return UnitDelta
	case 5:
		return UnitKey
	case 7, 8:
		return UnitParameterSet
	default:
		return UnitOther
	}
}

// CompressedUnit is a single self-delimited compressed unit extracted from
// the ingress stream.
type CompressedUnit struct {
	// Data is the unit's payload bytes.
	Data []byte

	// Type is the coarse tag derived from Data's first byte.
	Type UnitType

	// Degraded is true when this unit is a fallback (the whole chunk, or the
	// remainder of it) rather than a clean length-prefixed unit.
	Degraded bool
}

// Demuxer is the Stream Demuxer described in the pipeline specification. It
// is not safe for concurrent use; a single receiver goroutine owns it.
type Demuxer struct {
	// MaxUnitSize is the largest length prefix honoured before the chunk is
	// treated as a single fallback unit. Zero means the package default of
	// 100000 bytes.
	MaxUnitSize int
}

// New returns a Demuxer with the given maximum unit size. A maxUnitSize of
// 0 selects the specification default of 100000 bytes.
func New(maxUnitSize int) *Demuxer {
	if maxUnitSize <= 0 {
		maxUnitSize = defaultMaxUnitSize
	}
	return &Demuxer{MaxUnitSize: maxUnitSize}
}

const defaultMaxUnitSize = 100000

const lengthPrefixSize = 4

// Demux parses chunk into zero or more CompressedUnits. Demux never fails:
// if any length prefix in chunk is zero, exceeds MaxUnitSize, or exceeds the
// bytes remaining in the chunk, the whole chunk degrades to a single
// fallback unit, per the degraded-fallback contract.
func (d *Demuxer) Demux(chunk []byte) []CompressedUnit {
	if len(chunk) == 0 {
		return nil
	}

	max := d.MaxUnitSize
	if max <= 0 {
		max = defaultMaxUnitSize
	}

	var units []CompressedUnit
	rest := chunk
	for len(rest) > 0 {
		if len(rest) < lengthPrefixSize {
			return []CompressedUnit{fallbackUnit(chunk)}
		}

		l := int(binary.BigEndian.Uint32(rest[:lengthPrefixSize]))
		body := rest[lengthPrefixSize:]

		if l == 0 || l > max || l > len(body) {
			return []CompressedUnit{fallbackUnit(chunk)}
		}

		units = append(units, CompressedUnit{
			Data: body[:l],
			Type: typeFromFirstByte(firstByte(body[:l])),
		})
		rest = body[l:]
	}
	return units
}

// fallbackUnit builds the degraded, whole-chunk unit used when a length
// prefix cannot be trusted.
func fallbackUnit(chunk []byte) CompressedUnit {
	return CompressedUnit{
		Data:     chunk,
		Type:     typeFromFirstByte(firstByte(chunk)),
		Degraded: true,
	}
}

func firstByte(b []byte) byte {
	if len(b) == 0 {
		return 0
	}
	return b[0]
}
