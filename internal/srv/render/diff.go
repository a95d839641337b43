package render

import "image"

// ImagesDiffer reports whether candidate must be drawn in place of
// previous: either is missing, sizes differ, or at least one pixel differs.
func ImagesDiffer(previous image.Image, candidate image.Image) bool {
	if previous == nil || candidate == nil {
		return true
	}
	if previous.Bounds().Size() != candidate.Bounds().Size() {
		return true
	}
	return !DiffBounds(previous, candidate).Empty()
}

// DiffBounds returns the smallest rectangle, relative to the top left corner
// of both images, holding every differing pixel. Images must have the same
// size.
func DiffBounds(a image.Image, b image.Image) image.Rectangle {
	ab, bb := a.Bounds(), b.Bounds()
	size := ab.Size()

	diff := image.Rectangle{}
	for y := 0; y < size.Y; y++ {
		for x := 0; x < size.X; x++ {
			if samePixel(a, ab.Min.X+x, ab.Min.Y+y, b, bb.Min.X+x, bb.Min.Y+y) {
				continue
			}
			diff = diff.Union(image.Rect(x, y, x+1, y+1))
		}
	}
	return diff
}

func samePixel(a image.Image, ax, ay int, b image.Image, bx, by int) bool {
	ar, ag, ab, aa := a.At(ax, ay).RGBA()
	br, bg, bb, ba := b.At(bx, by).RGBA()
	return ar == br && ag == bg && ab == bb && aa == ba
}
