package thumbnail

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"comicloader/internal/archive/archivetest"
	"comicloader/internal/core/types"
)

func TestDecodeRejectsOversizedImages(t *testing.T) {
	data := archivetest.PNG(t, 100, 100, color.White)

	if _, err := Decode(data, 100*100*4-1); !errors.Is(err, ErrImageTooLarge) {
		t.Fatalf("Decode() error = %v, want ErrImageTooLarge", err)
	}
	img, err := Decode(data, 100*100*4)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if img.Bounds().Dx() != 100 {
		t.Errorf("decoded width = %d, want 100", img.Bounds().Dx())
	}
	if _, err := Decode(data, 0); err != nil {
		t.Errorf("Decode() with no budget error = %v", err)
	}
}

func TestDecodeGarbage(t *testing.T) {
	if _, err := Decode([]byte("nope"), 0); err == nil {
		t.Fatal("expected an error for undecodable data")
	}
}

func TestFrameFitsAndCentres(t *testing.T) {
	g := Geometry{Width: 120, Height: 160, InnerWidth: 100, InnerHeight: 140, Border: 2}
	src := image.NewRGBA(image.Rect(0, 0, 50, 100))

	out := Frame(src, g)
	if out.Bounds().Dx() != 120 || out.Bounds().Dy() != 160 {
		t.Fatalf("canvas = %v, want 120x160", out.Bounds())
	}
	// Scaled page is 70x140, framed 74x144, centred: left edge at x=23.
	if _, _, _, a := out.At(22, 80).RGBA(); a != 0 {
		t.Errorf("pixel left of the frame is not transparent")
	}
	if got := color.NRGBAModel.Convert(out.At(23, 80)); got != BorderColor {
		t.Errorf("frame pixel = %v, want border colour", got)
	}
}

func TestFrameRotatesLandscapeIntoPortraitBox(t *testing.T) {
	g := Geometry{Width: 120, Height: 160, InnerWidth: 100, InnerHeight: 140, Border: 0}
	src := image.NewRGBA(image.Rect(0, 0, 200, 100))
	for y := range 100 {
		for x := range 200 {
			src.Set(x, y, color.White)
		}
	}

	out := Frame(src, g)
	// After a quarter turn the page is 100x200, scaled to 70x140 and centred.
	if _, _, _, a := out.At(60, 15).RGBA(); a == 0 {
		t.Error("expected page content near the top after rotation")
	}
	if _, _, _, a := out.At(10, 80).RGBA(); a != 0 {
		t.Error("expected transparent margin beside a rotated page")
	}
}

func TestMosaic(t *testing.T) {
	if _, err := Mosaic(nil, 120, 160, 9); !errors.Is(err, ErrNoImages) {
		t.Fatalf("Mosaic(nil) error = %v, want ErrNoImages", err)
	}

	red := image.NewRGBA(image.Rect(0, 0, 60, 80))
	for y := range 80 {
		for x := range 60 {
			red.Set(x, y, color.RGBA{255, 0, 0, 255})
		}
	}
	blue := image.NewRGBA(image.Rect(0, 0, 60, 80))
	for y := range 80 {
		for x := range 60 {
			blue.Set(x, y, color.RGBA{0, 0, 255, 255})
		}
	}

	out, err := Mosaic([]image.Image{red, blue}, 120, 160, 9)
	if err != nil {
		t.Fatalf("Mosaic() error = %v", err)
	}
	// The first image is painted last, unrotated, on top.
	r, _, b, _ := out.At(60, 80).RGBA()
	if r == 0 || b != 0 {
		t.Errorf("centre pixel should come from the top layer, got r=%d b=%d", r, b)
	}
}

func TestCompositorCoverAndMosaic(t *testing.T) {
	c := NewCompositor(types.DefaultThumbnailConfig(), nil)

	cover, err := c.Cover(archivetest.PNG(t, 30, 40, color.White))
	if err != nil {
		t.Fatalf("Cover() error = %v", err)
	}
	img, err := png.Decode(bytes.NewReader(cover))
	if err != nil {
		t.Fatalf("cover is not a png: %v", err)
	}
	if img.Bounds().Dx() != 120 || img.Bounds().Dy() != 160 {
		t.Errorf("cover size = %v, want 120x160", img.Bounds())
	}

	mosaic, err := c.Mosaic([][]byte{cover, []byte("broken"), cover})
	if err != nil {
		t.Fatalf("Mosaic() error = %v", err)
	}
	if _, err := png.Decode(bytes.NewReader(mosaic)); err != nil {
		t.Fatalf("mosaic is not a png: %v", err)
	}

	if _, err := c.Mosaic([][]byte{[]byte("broken")}); !errors.Is(err, ErrNoImages) {
		t.Errorf("Mosaic() of only broken layers error = %v, want ErrNoImages", err)
	}
}
