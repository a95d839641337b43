package srv

import (
	"github.com/hajimehoshi/bitmapfont/v2"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
	"image"
	"image/color"
	"image/draw"
)

var splashForeground = image.NewUniform(color.Black)

// Splash draws lines centered on a white canvas of the given size.
func Splash(bounds image.Rectangle, lines []string) *image.RGBA {
	img := image.NewRGBA(bounds)
	draw.Draw(img, bounds, image.White, image.Point{}, draw.Src)

	lineHeight := bitmapfont.Face.Metrics().Height.Ceil()
	top := bounds.Min.Y + (bounds.Dy()-lineHeight*len(lines))/2
	for i, line := range lines {
		AddCenteredLabel(img, top+(i+1)*lineHeight, line)
	}
	return img
}

func AddLabel(img draw.Image, x, y int, label string) {
	d := &font.Drawer{
		Dst:  img,
		Src:  splashForeground,
		Face: bitmapfont.Face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(label)
}

func AddCenteredLabel(img draw.Image, y int, label string) {
	bounds := img.Bounds()
	width := font.MeasureString(bitmapfont.Face, label).Ceil()
	AddLabel(img, bounds.Min.X+(bounds.Dx()-width)/2, y, label)
}
