package thumbnail

import (
	"errors"
	"image"

	"comicloader/internal/core/logger"
	"comicloader/internal/core/types"
)

// Compositor produces encoded cover thumbnails from raw image bytes.
type Compositor struct {
	cfg    types.ThumbnailConfig
	logger *logger.Logger
}

// NewCompositor creates a compositor for the configured geometry.
func NewCompositor(cfg types.ThumbnailConfig, log *logger.Logger) *Compositor {
	if log == nil {
		log = logger.Discard()
	}
	return &Compositor{cfg: cfg, logger: log}
}

func (c *Compositor) geometry() Geometry {
	return Geometry{
		Width:       c.cfg.Width,
		Height:      c.cfg.Height,
		InnerWidth:  c.cfg.InnerWidth,
		InnerHeight: c.cfg.InnerHeight,
		Border:      c.cfg.Border,
	}
}

// Cover frames one page and returns the PNG thumbnail.
func (c *Compositor) Cover(data []byte) ([]byte, error) {
	img, err := Decode(data, c.cfg.MaxDecode.Int64())
	if err != nil {
		return nil, err
	}
	return EncodePNG(Frame(img, c.geometry()))
}

// Mosaic composes child thumbnails into a directory cover. Children that
// cannot be decoded are skipped; at least one must survive.
func (c *Compositor) Mosaic(children [][]byte) ([]byte, error) {
	images := make([]image.Image, 0, len(children))
	for i, data := range children {
		img, err := Decode(data, c.cfg.MaxDecode.Int64())
		if err != nil {
			if errors.Is(err, ErrImageTooLarge) {
				c.logger.Warn("skipping oversized mosaic layer", "layer", i, "error", err)
			} else {
				c.logger.Warn("skipping unreadable mosaic layer", "layer", i, "error", err)
			}
			continue
		}
		images = append(images, img)
	}
	img, err := Mosaic(images, c.cfg.Width, c.cfg.Height, c.cfg.MosaicAngle)
	if err != nil {
		return nil, err
	}
	return EncodePNG(img)
}
