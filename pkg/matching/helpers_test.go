package matching

import (
	"math/rand"
	"testing"

	"gocv.io/x/gocv"
)

// newMat builds a rows x cols 3-channel Mat whose pixels come from fill.
func newMat(t *testing.T, rows, cols int, fill func(y, x, c int) uint8) gocv.Mat {
	t.Helper()
	data := make([]byte, rows*cols*3)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			for c := 0; c < 3; c++ {
				data[(y*cols+x)*3+c] = fill(y, x, c)
			}
		}
	}
	m, err := gocv.NewMatFromBytes(rows, cols, gocv.MatTypeCV8UC3, data)
	if err != nil {
		t.Fatalf("Failed to create mat: %v", err)
	}
	owned := m.Clone()
	m.Close()
	return owned
}

func randomMat(t *testing.T, rows, cols int, seed int64) gocv.Mat {
	r := rand.New(rand.NewSource(seed))
	return newMat(t, rows, cols, func(_, _, _ int) uint8 { return uint8(r.Intn(256)) })
}

func flatMat(t *testing.T, rows, cols int, v uint8) gocv.Mat {
	return newMat(t, rows, cols, func(_, _, _ int) uint8 { return v })
}

func sameBytes(a, b gocv.Mat) bool {
	if !sameShape(a, b) {
		return false
	}
	ab, bb := a.ToBytes(), b.ToBytes()
	if len(ab) != len(bb) {
		return false
	}
	for i := range ab {
		if ab[i] != bb[i] {
			return false
		}
	}
	return true
}
