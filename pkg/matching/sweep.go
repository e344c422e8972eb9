package matching

import (
	"image"
	"math"
)

// SweepPosition maps a slider value in [0,1] onto one of the valid top-left
// placements of a template inside a scene, walking them row by row.
// Out-of-range alphas are clamped. If the template does not fit, (0,0) is
// returned.
func SweepPosition(alpha float64, sceneSize, templateSize image.Point) image.Point {
	cols := sceneSize.X - templateSize.X + 1
	rows := sceneSize.Y - templateSize.Y + 1
	if cols <= 0 || rows <= 0 {
		return image.Point{}
	}
	if math.IsNaN(alpha) {
		alpha = 0
	}
	alpha = math.Max(0, math.Min(1, alpha))

	n := cols * rows
	idx := int(math.Round(alpha * float64(n-1)))
	return image.Pt(idx%cols, idx/cols)
}
