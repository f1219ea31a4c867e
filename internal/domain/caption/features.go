package caption

import (
	"fmt"
	"image"
	"image/color"
)

// SampleSize is the edge length images are downsampled to before analysis.
const SampleSize = 100

// BrightThreshold separates "bright" from "dark" on the 0-255 brightness scale.
const BrightThreshold = 150

// Color names produced by the heuristic.
const (
	ColorRed          = "red"
	ColorGreen        = "green"
	ColorBlue         = "blue"
	ColorYellow       = "yellow"
	ColorPurple       = "purple"
	ColorCyan         = "cyan"
	ColorWhite        = "white"
	ColorBlack        = "black"
	ColorMulticolored = "multicolored"
)

// Features are the coarse visual properties the heuristic caption is built from.
type Features struct {
	DominantColor string
	Brightness    float64
	Width         int
	Height        int
}

// Analyze computes mean-color features over sample. width and height are the
// dimensions of the original image, reported unchanged.
func Analyze(sample image.Image, width, height int) Features {
	r, g, b := meanRGB(sample)
	return Features{
		DominantColor: classify(r, g, b),
		Brightness:    (r + g + b) / 3,
		Width:         width,
		Height:        height,
	}
}

// BrightnessLabel returns "bright" or "dark".
func (f Features) BrightnessLabel() string {
	if f.Brightness > BrightThreshold {
		return "bright"
	}
	return "dark"
}

// BasicCaption is the heuristic caption, e.g. "A bright red item".
func (f Features) BasicCaption() string {
	return fmt.Sprintf("A %s %s item", f.BrightnessLabel(), f.DominantColor)
}

func meanRGB(img image.Image) (r, g, b float64) {
	bounds := img.Bounds()
	n := float64(bounds.Dx() * bounds.Dy())
	if n == 0 {
		return 0, 0, 0
	}
	var sr, sg, sb float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c, _ := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			sr += float64(c.R)
			sg += float64(c.G)
			sb += float64(c.B)
		}
	}
	return sr / n, sg / n, sb / n
}

// classify maps a mean color to a name. Order matters: the first matching rule wins.
func classify(r, g, b float64) string {
	switch {
	case r > 150 && g < 100 && b < 100:
		return ColorRed
	case r < 100 && g > 150 && b < 100:
		return ColorGreen
	case r < 100 && g < 100 && b > 150:
		return ColorBlue
	case r > 150 && g > 150 && b < 100:
		return ColorYellow
	case r > 150 && g < 150 && b > 150:
		return ColorPurple
	case r < 100 && g > 150 && b > 150:
		return ColorCyan
	case r > 200 && g > 200 && b > 200:
		return ColorWhite
	case r < 100 && g < 100 && b < 100:
		return ColorBlack
	default:
		return ColorMulticolored
	}
}
