// Package thumbnail turns decoded pages into cover thumbnails: a framed
// single page for an archive, a fanned stack of child covers for a directory.
package thumbnail

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"comicloader/internal/core/types"

	"github.com/disintegration/imaging"
)

var (
	ErrImageTooLarge = errors.New("image too large to decode")
	ErrNoImages      = errors.New("no images to compose")
)

// BorderColor frames every archive cover.
var BorderColor = color.NRGBA{R: 0x30, G: 0x30, B: 0x30, A: 0xff}

// Geometry describes the canvas and the box a page is fitted into.
type Geometry struct {
	Width, Height           int // outer canvas
	InnerWidth, InnerHeight int // maximum size of the scaled page
	Border                  int
}

// Decode decodes an image unless its decoded RGBA size exceeds maxBytes.
// maxBytes <= 0 disables the check.
func Decode(data []byte, maxBytes int64) (image.Image, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if need := int64(cfg.Width) * int64(cfg.Height) * 4; maxBytes > 0 && need > maxBytes {
		return nil, fmt.Errorf("%w: %dx%d needs %s", ErrImageTooLarge, cfg.Width, cfg.Height, types.Bytes(need))
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return img, nil
}

// Frame fits img into the inner box and centres it, bordered, on the canvas.
// Landscape pages are turned upright when the inner box is portrait.
func Frame(img image.Image, g Geometry) image.Image {
	b := img.Bounds()
	if b.Dx() > b.Dy() && g.InnerHeight > g.InnerWidth {
		img = imaging.Rotate90(img)
		b = img.Bounds()
	}

	scale := min(float64(g.InnerWidth)/float64(b.Dx()), float64(g.InnerHeight)/float64(b.Dy()))
	w := max(1, int(float64(b.Dx())*scale+0.5))
	h := max(1, int(float64(b.Dy())*scale+0.5))
	scaled := imaging.Resize(img, w, h, imaging.Lanczos)

	framed := imaging.New(w+2*g.Border, h+2*g.Border, BorderColor)
	framed = imaging.Paste(framed, scaled, image.Pt(g.Border, g.Border))

	canvas := imaging.New(g.Width, g.Height, color.Transparent)
	return imaging.PasteCenter(canvas, framed)
}

// Mosaic paints images back to front, layer i turned by i*angle degrees,
// all centred, giving a fanned stack with images[0] on top.
func Mosaic(images []image.Image, width, height int, angle float64) (image.Image, error) {
	if len(images) == 0 {
		return nil, ErrNoImages
	}
	canvas := imaging.New(width, height, color.Transparent)
	boxW, boxH := width*4/5, height*4/5
	for i := len(images) - 1; i >= 0; i-- {
		layer := imaging.Fit(images[i], boxW, boxH, imaging.Lanczos)
		if i > 0 {
			layer = imaging.Rotate(layer, float64(i)*angle, color.Transparent)
		}
		lb := layer.Bounds()
		pos := image.Pt((width-lb.Dx())/2, (height-lb.Dy())/2)
		canvas = imaging.Overlay(canvas, layer, pos, 1.0)
	}
	return canvas, nil
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
