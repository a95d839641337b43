package render

import (
	"github.com/disintegration/imaging"
	"image"
	"image/color"
)

// Background is the blank value of the panel.
var Background = color.White

// Compose pastes img centered on a blank canvas of the panel size. The
// image is not scaled: parts outside the canvas are clipped. The canvas is
// laid out in the viewer orientation, then turned counter-clockwise by
// rotation degrees to match how the panel is mounted.
func Compose(img image.Image, panelBounds image.Rectangle, rotation int) *image.NRGBA {
	width, height := panelBounds.Dx(), panelBounds.Dy()
	if rotation == 90 || rotation == 270 {
		width, height = height, width
	}

	canvas := imaging.New(width, height, Background)
	if img != nil {
		canvas = imaging.PasteCenter(canvas, img)
	}

	switch rotation {
	case 90:
		return imaging.Rotate90(canvas)
	case 180:
		return imaging.Rotate180(canvas)
	case 270:
		return imaging.Rotate270(canvas)
	default:
		return canvas
	}
}
