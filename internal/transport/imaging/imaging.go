// Package imaging decodes uploaded images and resamples them for analysis.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"  // register GIF
	_ "image/jpeg" // register JPEG
	_ "image/png"  // register PNG

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register WebP

	"github.com/kailas-cloud/vecrank/internal/domain"
)

// DefaultMaxPixels rejects images whose header claims more pixels than this.
const DefaultMaxPixels = 50_000_000

// Processor decodes PNG, JPEG, GIF and WebP and downsamples with a bicubic kernel.
type Processor struct {
	maxPixels int
}

// New creates a Processor. maxPixels <= 0 uses DefaultMaxPixels.
func New(maxPixels int) *Processor {
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	return &Processor{maxPixels: maxPixels}
}

// Decode implements domain.ImageDecoder. The header is checked before the
// pixel data is decoded so oversized images never allocate a full frame.
func (p *Processor) Decode(data []byte) (image.Image, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("read image header: %w: %w", domain.ErrInvalidImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%s image has no pixels: %w", format, domain.ErrInvalidImage)
	}
	if cfg.Width*cfg.Height > p.maxPixels {
		return nil, fmt.Errorf("%s image %dx%d exceeds %d pixels: %w",
			format, cfg.Width, cfg.Height, p.maxPixels, domain.ErrInvalidImage)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w: %w", format, domain.ErrInvalidImage, err)
	}
	return img, nil
}

// Downsample scales img to exactly width x height, ignoring aspect ratio.
// Alpha is dropped before resampling: every pixel keeps its straight colour
// at full opacity, so transparent regions do not average in as black.
func (p *Processor) Downsample(img image.Image, width, height int) image.Image {
	src := flatten(img)
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// flatten returns an opaque copy of img. Images that are already opaque are
// returned as is.
func flatten(img image.Image) image.Image {
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return img
	}

	b := img.Bounds()
	out := image.NewRGBA(b)
	if n, ok := img.(*image.NRGBA); ok {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			si := n.PixOffset(b.Min.X, y)
			di := out.PixOffset(b.Min.X, y)
			for x := 0; x < b.Dx(); x++ {
				copy(out.Pix[di:di+3], n.Pix[si:si+3])
				out.Pix[di+3] = 0xff
				si, di = si+4, di+4
			}
		}
		return out
	}

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			out.SetRGBA(x, y, color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff})
		}
	}
	return out
}
