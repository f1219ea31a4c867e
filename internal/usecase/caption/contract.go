package caption

import (
	"image"

	"github.com/kailas-cloud/vecrank/internal/domain"
)

// ImageProcessor decodes uploads and produces the fixed-size sample the heuristic reads.
type ImageProcessor interface {
	domain.ImageDecoder
	Downsample(img image.Image, width, height int) image.Image
}
