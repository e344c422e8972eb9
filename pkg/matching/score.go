package matching

import (
	"errors"
	"math"

	"gocv.io/x/gocv"
)

var (
	ErrEmptyImage       = errors.New("empty image")
	ErrTemplateTooLarge = errors.New("template larger than scene")
)

// Preprocess converts img to a single channel and stretches its own
// intensity range to [0,255]. A constant image comes out all zero.
// The caller owns the returned Mat.
func Preprocess(img gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	switch img.Channels() {
	case 4:
		gocv.CvtColor(img, &gray, gocv.ColorBGRAToGray)
	case 3:
		gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
	default:
		img.CopyTo(&gray)
	}
	gocv.Normalize(gray, &gray, 0, 255, gocv.NormMinMax)
	return gray
}

func isConstant(gray gocv.Mat) bool {
	minVal, maxVal, _, _ := gocv.MinMaxLoc(gray)
	return minVal == maxVal
}

// sameShape reports whether a and b have identical rows, cols and channels.
func sameShape(a, b gocv.Mat) bool {
	return a.Rows() == b.Rows() && a.Cols() == b.Cols() && a.Channels() == b.Channels()
}

// Score returns the normalized correlation coefficient of two equally sized
// images after grayscale conversion and per-image min-max stretching.
//
// Images of different shape score 0. If either image has no contrast the
// coefficient is undefined; two flat images score 1 (after stretching they
// are identical) and a flat image against a textured one scores 0.
func Score(a, b gocv.Mat) float64 {
	if a.Empty() || b.Empty() || !sameShape(a, b) {
		return 0.0
	}

	ga := Preprocess(a)
	defer ga.Close()
	gb := Preprocess(b)
	defer gb.Close()

	flatA, flatB := isConstant(ga), isConstant(gb)
	switch {
	case flatA && flatB:
		return 1.0
	case flatA || flatB:
		return 0.0
	}

	res := gocv.NewMat()
	defer res.Close()
	mask := gocv.NewMat()
	defer mask.Close()
	gocv.MatchTemplate(ga, gb, &res, gocv.TmCcoeffNormed, mask)
	if res.Empty() {
		return 0.0
	}
	return finite(float64(res.GetFloatAt(0, 0)))
}

// ComputeScoreMap scores template at every top-left placement inside scene.
// Both inputs go through Preprocess once.
func ComputeScoreMap(scene, template gocv.Mat) (*ScoreMap, error) {
	if scene.Empty() || template.Empty() {
		return nil, ErrEmptyImage
	}
	if template.Rows() > scene.Rows() || template.Cols() > scene.Cols() {
		return nil, ErrTemplateTooLarge
	}

	gs := Preprocess(scene)
	defer gs.Close()
	gt := Preprocess(template)
	defer gt.Close()

	res := gocv.NewMat()
	defer res.Close()
	mask := gocv.NewMat()
	defer mask.Close()
	gocv.MatchTemplate(gs, gt, &res, gocv.TmCcoeffNormed, mask)

	sm := &ScoreMap{
		Rows: res.Rows(),
		Cols: res.Cols(),
		Data: make([]float32, res.Rows()*res.Cols()),
	}
	if data, err := res.DataPtrFloat32(); err == nil && len(data) == len(sm.Data) {
		copy(sm.Data, data)
	} else {
		for y := 0; y < sm.Rows; y++ {
			for x := 0; x < sm.Cols; x++ {
				sm.Data[y*sm.Cols+x] = res.GetFloatAt(y, x)
			}
		}
	}
	for i, v := range sm.Data {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			sm.Data[i] = 0
		}
	}
	return sm, nil
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0.0
	}
	return v
}
