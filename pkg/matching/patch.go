package matching

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// PatchBounds returns the source window of a size.Y x size.X patch centered
// at center inside a scene of sceneSize (X = width, Y = height).
// The window never starts below zero. When the far edge clamps against the
// scene, the window is shifted back instead of shrunk, so the result only
// comes out smaller than size when the scene itself is smaller.
func PatchBounds(sceneSize, center, size image.Point) image.Rectangle {
	x0, x1 := window(center.X, size.X, sceneSize.X)
	y0, y1 := window(center.Y, size.Y, sceneSize.Y)
	return image.Rect(x0, y0, x1, y1)
}

func window(c, n, limit int) (int, int) {
	start := max(0, c-n/2)
	end := min(limit, start+n)
	if end-start < n {
		start = max(0, end-n)
	}
	return start, end
}

// ExtractPatch copies the window computed by PatchBounds out of scene.
// If the scene is smaller than size in either dimension the copy is padded
// with black on the bottom and right so the patch is always exactly size.
// The caller owns the returned Mat.
func ExtractPatch(scene gocv.Mat, center, size image.Point) (gocv.Mat, image.Rectangle) {
	bounds := PatchBounds(image.Pt(scene.Cols(), scene.Rows()), center, size)

	region := scene.Region(bounds)
	patch := region.Clone()
	region.Close()

	padY := size.Y - bounds.Dy()
	padX := size.X - bounds.Dx()
	if padY > 0 || padX > 0 {
		padded := gocv.NewMat()
		gocv.CopyMakeBorder(patch, &padded, 0, padY, 0, padX, gocv.BorderConstant, color.RGBA{0, 0, 0, 0})
		patch.Close()
		patch = padded
	}
	return patch, bounds
}
