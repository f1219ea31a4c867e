package domain

import (
	"context"
	"image"
)

// Captioner produces a natural-language caption for an encoded image.
// ok=false with a nil error means no caption is available and the caller
// should fall back to the heuristic caption.
type Captioner interface {
	Caption(ctx context.Context, image []byte) (caption string, ok bool, err error)
}

// ImageDecoder turns encoded image bytes into a pixel grid.
// Malformed input fails with ErrInvalidImage.
type ImageDecoder interface {
	Decode(data []byte) (image.Image, error)
}
