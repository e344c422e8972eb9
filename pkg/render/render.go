package render

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/etesami/template-matching-demo/pkg/matching"
	"gocv.io/x/gocv"
)

var (
	boxColor     = color.RGBA{0, 255, 0, 0}
	boxThickness = 3
	dimFactor    = float32(0.25)
)

// Heatmap renders the normalized score map as an 8-bit gray image, one pixel
// per placement. The caller owns the returned Mat.
func Heatmap(sm *matching.ScoreMap) (gocv.Mat, error) {
	if sm == nil || sm.Rows == 0 || sm.Cols == 0 {
		return gocv.NewMat(), fmt.Errorf("empty score map")
	}
	norm := sm.Normalized()
	data := make([]byte, len(norm))
	for i, v := range norm {
		data[i] = uint8(math.Round(v * 255))
	}
	m, err := gocv.NewMatFromBytes(sm.Rows, sm.Cols, gocv.MatTypeCV8U, data)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to build heatmap: %w", err)
	}
	// NewMatFromBytes borrows data
	defer m.Close()
	return m.Clone(), nil
}

// toBGR returns a 3-channel copy of img.
func toBGR(img gocv.Mat) gocv.Mat {
	out := gocv.NewMat()
	switch img.Channels() {
	case 1:
		gocv.CvtColor(img, &out, gocv.ColorGrayToBGR)
	case 4:
		gocv.CvtColor(img, &out, gocv.ColorBGRAToBGR)
	default:
		img.CopyTo(&out)
	}
	return out
}

func drawBoxes(img *gocv.Mat, cands []matching.Candidate, size image.Point) {
	for _, c := range cands {
		gocv.Rectangle(img, c.Box(size), boxColor, boxThickness)
	}
}

// Detections returns a copy of scene with a template-sized box drawn at each
// candidate.
func Detections(scene gocv.Mat, cands []matching.Candidate, size image.Point) gocv.Mat {
	out := toBGR(scene)
	drawBoxes(&out, cands, size)
	return out
}

// Comparison places template and patch side by side.
func Comparison(template, patch gocv.Mat) (gocv.Mat, error) {
	if template.Rows() != patch.Rows() {
		return gocv.NewMat(), fmt.Errorf("comparison needs equal heights, got %d and %d", template.Rows(), patch.Rows())
	}
	left := toBGR(template)
	defer left.Close()
	right := toBGR(patch)
	defer right.Close()

	out := gocv.NewMat()
	gocv.Hconcat(left, right, &out)
	return out, nil
}

// SweepFrame draws one slider frame: the dimmed scene, the heatmap revealed
// above the template row, the template at pos and the boxes of candidates the
// sweep has already passed.
func SweepFrame(scene, template, heatmap gocv.Mat, pos image.Point, cands []matching.Candidate) (gocv.Mat, error) {
	tw, th := template.Cols(), template.Rows()
	if tw > scene.Cols() || th > scene.Rows() {
		return gocv.NewMat(), matching.ErrTemplateTooLarge
	}

	out := toBGR(scene)
	out.MultiplyFloat(dimFactor)

	if !heatmap.Empty() && pos.Y > 0 {
		padded := gocv.NewMat()
		defer padded.Close()
		top, left := th/2, tw/2
		bottom := max(0, scene.Rows()-heatmap.Rows()-top)
		right := max(0, scene.Cols()-heatmap.Cols()-left)
		gocv.CopyMakeBorder(heatmap, &padded, top, bottom, left, right, gocv.BorderConstant, color.RGBA{0, 0, 0, 0})
		heat := toBGR(padded)
		defer heat.Close()

		rows := min(pos.Y, scene.Rows())
		band := image.Rect(0, 0, scene.Cols(), rows)
		src := heat.Region(band)
		dst := out.Region(band)
		src.CopyTo(&dst)
		src.Close()
		dst.Close()
	}

	tpl := toBGR(template)
	defer tpl.Close()
	at := image.Rectangle{Min: pos, Max: pos.Add(image.Pt(tw, th))}
	dst := out.Region(at)
	tpl.CopyTo(&dst)
	dst.Close()

	var passed []matching.Candidate
	for _, c := range cands {
		if c.Location.Y < pos.Y || (c.Location.Y == pos.Y && c.Location.X <= pos.X) {
			passed = append(passed, c)
		}
	}
	drawBoxes(&out, passed, image.Pt(tw, th))
	return out, nil
}

// EncodePNG encodes img as PNG bytes.
func EncodePNG(img gocv.Mat) ([]byte, error) {
	if img.Empty() {
		return nil, matching.ErrEmptyImage
	}
	buf, err := gocv.IMEncode(gocv.PNGFileExt, img)
	if err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	defer buf.Close()
	return append([]byte(nil), buf.GetBytes()...), nil
}
