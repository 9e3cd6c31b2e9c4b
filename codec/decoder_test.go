/*
NAME
  decoder_test.go

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package codec

import (
	"errors"
	"image"
	"testing"
	"time"
)

type fakeCodec struct {
	imgs [][]DecodedImage
	errs []error
	i    int
	closed bool
}

func (f *fakeCodec) Decode(u CompressedUnit) ([]DecodedImage, error) {
	if f.i >= len(f.imgs) {
		return nil, nil
	}
	imgs, err := f.imgs[f.i], f.errs[f.i]
	f.i++
	return imgs, err
}

func (f *fakeCodec) Close() error {
	f.closed = true
	return nil
}

func solidImage(w, h int) image.Image {
	return image.NewRGBA(image.Rect(0, 0, w, h))
}

func TestDecoderAssignsIncrementingIndex(t *testing.T) {
	restore := fixNow(time.Unix(100, 0))
	defer restore()

	fc := &fakeCodec{
		imgs: [][]DecodedImage{
			{{Width: 4, Height: 4, Color: solidImage(4, 4)}},
			{{Width: 4, Height: 4, Color: solidImage(4, 4)}},
		},
		errs: []error{nil, nil},
	}
	d := NewDecoder(fc, nil)

	f0 := d.Decode(CompressedUnit{Data: []byte{0x65, 1}})
	f1 := d.Decode(CompressedUnit{Data: []byte{0x65, 2}})

	if len(f0) != 1 || len(f1) != 1 {
		t.Fatalf("got %d, %d frames, want 1, 1", len(f0), len(f1))
	}
	if f0[0].Index != 0 || f1[0].Index != 1 {
		t.Errorf("indices = %d, %d, want 0, 1", f0[0].Index, f1[0].Index)
	}
	if f0[0].Gray == nil {
		t.Error("expected a derived grayscale view")
	}
}

func TestDecoderSwallowsErrors(t *testing.T) {
	fc := &fakeCodec{
		imgs: [][]DecodedImage{nil},
		errs: []error{errors.New("malformed unit")},
	}
	d := NewDecoder(fc, nil)

	frames := d.Decode(CompressedUnit{Data: []byte{0xff}})
	if frames != nil {
		t.Fatalf("got %v, want nil frames on decode error", frames)
	}
	if d.DecodeErrors() != 1 {
		t.Errorf("decode errors = %d, want 1", d.DecodeErrors())
	}
}

func TestDecoderDimensionsStableAfterFirstFrame(t *testing.T) {
	fc := &fakeCodec{
		imgs: [][]DecodedImage{{{Width: 640, Height: 480, Color: solidImage(640, 480)}}},
		errs: []error{nil},
	}
	d := NewDecoder(fc, nil)
	d.Decode(CompressedUnit{Data: []byte{0x65}})

	w, h := d.Dimensions()
	if w != 640 || h != 480 {
		t.Errorf("dimensions = %d,%d, want 640,480", w, h)
	}
}

func TestDecoderCloseDelegates(t *testing.T) {
	fc := &fakeCodec{}
	d := NewDecoder(fc, nil)
	if err := d.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !fc.closed {
		t.Error("expected underlying codec to be closed")
	}
}

func fixNow(t time.Time) func() {
	orig := now
	now = func() time.Time { return t }
	return func() { now = orig }
}
