/*
NAME
  demux_test.go

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package stream

import (
	"encoding/binary"
	"testing"
)

func prefixed(payload ...[]byte) []byte {
	var out []byte
	for _, p := range payload {
		var l [4]byte
		binary.BigEndian.PutUint32(l[:], uint32(len(p)))
		out = append(out, l[:]...)
		out = append(out, p...)
	}
	return out
}

func TestDemuxWellFormed(t *testing.T) {
	a := []byte{0x65, 1, 2, 3}
	b := []byte{0x01, 4, 5}
	chunk := prefixed(a, b)

	d := New(0)
	units := d.Demux(chunk)
	if len(units) != 2 {
		t.Fatalf("got %d units, want 2", len(units))
	}
	if string(units[0].Data) != string(a) || units[0].Degraded {
		t.Errorf("unit 0 = %+v, want %v undegraded", units[0], a)
	}
	if string(units[1].Data) != string(b) || units[1].Degraded {
		t.Errorf("unit 1 = %+v, want %v undegraded", units[1], b)
	}
}

func TestDemuxZeroLengthDegrades(t *testing.T) {
	chunk := append([]byte{0, 0, 0, 0}, []byte("junk")...)
	d := New(0)
	units := d.Demux(chunk)
	if len(units) != 1 || !units[0].Degraded || string(units[0].Data) != string(chunk) {
		t.Fatalf("got %+v, want single degraded unit covering whole chunk", units)
	}
}

func TestDemuxOversizeLengthDegrades(t *testing.T) {
	var l [4]byte
	binary.BigEndian.PutUint32(l[:], 100001)
	chunk := append(l[:], make([]byte, 50)...)

	d := New(0)
	units := d.Demux(chunk)
	if len(units) != 1 || !units[0].Degraded {
		t.Fatalf("got %+v, want single degraded unit", units)
	}
}

func TestDemuxLengthExceedsRemainingDegrades(t *testing.T) {
	var l [4]byte
	binary.BigEndian.PutUint32(l[:], 9999)
	chunk := append(l[:], []byte("short")...)

	d := New(0)
	units := d.Demux(chunk)
	if len(units) != 1 || !units[0].Degraded || string(units[0].Data) != string(chunk) {
		t.Fatalf("got %+v, want single degraded unit covering whole chunk", units)
	}
}

func TestDemuxTruncatedPrefixDegrades(t *testing.T) {
	chunk := []byte{0, 0, 1}
	d := New(0)
	units := d.Demux(chunk)
	if len(units) != 1 || !units[0].Degraded {
		t.Fatalf("got %+v, want single degraded unit", units)
	}
}

func TestDemuxEmptyChunk(t *testing.T) {
	d := New(0)
	if units := d.Demux(nil); units != nil {
		t.Fatalf("got %+v, want nil", units)
	}
}

// TestDemuxInvariant checks that, for a well-formed chunk, the sum of
// emitted unit lengths plus 4 bytes of prefix per unit equals the input
// length.
func TestDemuxInvariant(t *testing.T) {
	parts := [][]byte{{1, 2, 3}, {4}, {}, {5, 6, 7, 8, 9}}
	var valid [][]byte
	for _, p := range parts {
		if len(p) > 0 {
			valid = append(valid, p)
		}
	}
	chunk := prefixed(valid...)

	d := New(0)
	units := d.Demux(chunk)

	total := 0
	for _, u := range units {
		total += lengthPrefixSize + len(u.Data)
	}
	if total != len(chunk) {
		t.Errorf("accounted %d bytes, want %d", total, len(chunk))
	}
}

func TestDemuxMaxUnitSizeConfigurable(t *testing.T) {
	chunk := prefixed([]byte{1, 2, 3, 4, 5})
	d := New(4)
	units := d.Demux(chunk)
	if len(units) != 1 || !units[0].Degraded {
		t.Fatalf("got %+v, want degraded (exceeds configured MaxUnitSize)", units)
	}
}
