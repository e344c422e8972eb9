package matching

import (
	"image"
	"testing"
)

func TestPatchBounds(t *testing.T) {
	tests := []struct {
		name   string
		scene  image.Point
		center image.Point
		size   image.Point
		want   image.Rectangle
	}{
		{"centered", image.Pt(100, 100), image.Pt(50, 50), image.Pt(10, 10), image.Rect(45, 45, 55, 55)},
		{"origin clamps", image.Pt(10, 10), image.Pt(0, 0), image.Pt(4, 4), image.Rect(0, 0, 4, 4)},
		{"far edge shifts back", image.Pt(100, 100), image.Pt(99, 99), image.Pt(10, 10), image.Rect(90, 90, 100, 100)},
		{"whole scene", image.Pt(10, 10), image.Pt(5, 5), image.Pt(10, 10), image.Rect(0, 0, 10, 10)},
		{"negative center", image.Pt(10, 10), image.Pt(-20, -20), image.Pt(4, 4), image.Rect(0, 0, 4, 4)},
		{"far outside", image.Pt(10, 10), image.Pt(500, 500), image.Pt(4, 4), image.Rect(6, 6, 10, 10)},
		{"odd size", image.Pt(40, 30), image.Pt(10, 20), image.Pt(5, 7), image.Rect(8, 17, 13, 24)},
		{"scene smaller than target", image.Pt(3, 3), image.Pt(1, 1), image.Pt(5, 5), image.Rect(0, 0, 3, 3)},
		{"mixed axes", image.Pt(20, 4), image.Pt(19, 2), image.Pt(6, 6), image.Rect(14, 0, 20, 4)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PatchBounds(tt.scene, tt.center, tt.size)
			if got != tt.want {
				t.Errorf("PatchBounds(%v, %v, %v) = %v, want %v", tt.scene, tt.center, tt.size, got, tt.want)
			}
		})
	}
}

func TestPatchBoundsKeepsTargetSize(t *testing.T) {
	scene := image.Pt(23, 17)
	for _, size := range []image.Point{{1, 1}, {4, 4}, {5, 3}, {23, 17}, {8, 16}} {
		for y := -5; y < scene.Y+5; y++ {
			for x := -5; x < scene.X+5; x++ {
				b := PatchBounds(scene, image.Pt(x, y), size)
				if b.Dx() != size.X || b.Dy() != size.Y {
					t.Fatalf("center (%d,%d) size %v: got %v", x, y, size, b)
				}
				if !b.In(image.Rect(0, 0, scene.X, scene.Y)) {
					t.Fatalf("center (%d,%d) size %v: %v outside scene", x, y, size, b)
				}
			}
		}
	}
}

func TestPatchBoundsUnclampedWhenWindowFits(t *testing.T) {
	scene := image.Pt(30, 30)
	size := image.Pt(6, 4)
	for y := size.Y / 2; y+size.Y-size.Y/2 <= scene.Y; y++ {
		for x := size.X / 2; x+size.X-size.X/2 <= scene.X; x++ {
			want := image.Rect(x-size.X/2, y-size.Y/2, x-size.X/2+size.X, y-size.Y/2+size.Y)
			if got := PatchBounds(scene, image.Pt(x, y), size); got != want {
				t.Fatalf("center (%d,%d): got %v, want %v", x, y, got, want)
			}
		}
	}
}

func TestExtractPatchWholeScene(t *testing.T) {
	scene := randomMat(t, 10, 10, 1)
	defer scene.Close()

	patch, bounds := ExtractPatch(scene, image.Pt(5, 5), image.Pt(10, 10))
	defer patch.Close()

	if bounds != image.Rect(0, 0, 10, 10) {
		t.Errorf("Expected bounds [0,10)x[0,10), got %v", bounds)
	}
	if !sameBytes(patch, scene) {
		t.Error("Patch should equal the entire scene")
	}
	if s := Score(patch, scene); s < 0.9999 {
		t.Errorf("Expected score 1.0, got %f", s)
	}
}

func TestExtractPatchClampsAtOrigin(t *testing.T) {
	scene := randomMat(t, 10, 10, 2)
	defer scene.Close()

	patch, bounds := ExtractPatch(scene, image.Pt(0, 0), image.Pt(4, 4))
	defer patch.Close()

	if bounds != image.Rect(0, 0, 4, 4) {
		t.Errorf("Expected bounds [0,4)x[0,4), got %v", bounds)
	}
	if patch.Rows() != 4 || patch.Cols() != 4 {
		t.Fatalf("Expected 4x4 patch, got %dx%d", patch.Rows(), patch.Cols())
	}
	region := scene.Region(bounds)
	defer region.Close()
	want := region.Clone()
	defer want.Close()
	if !sameBytes(patch, want) {
		t.Error("Patch content differs from the scene window")
	}
}

func TestExtractPatchPadsSmallScene(t *testing.T) {
	scene := flatMat(t, 3, 4, 200)
	defer scene.Close()

	patch, bounds := ExtractPatch(scene, image.Pt(2, 1), image.Pt(6, 5))
	defer patch.Close()

	if bounds != image.Rect(0, 0, 4, 3) {
		t.Errorf("Expected bounds (0,0)-(4,3), got %v", bounds)
	}
	if patch.Rows() != 5 || patch.Cols() != 6 {
		t.Fatalf("Expected 5x6 patch, got %dx%d", patch.Rows(), patch.Cols())
	}
	if v := patch.GetVecbAt(0, 0)[0]; v != 200 {
		t.Errorf("Expected copied pixel 200, got %d", v)
	}
	if v := patch.GetVecbAt(4, 5)[0]; v != 0 {
		t.Errorf("Expected black padding, got %d", v)
	}
	if v := patch.GetVecbAt(2, 4)[0]; v != 0 {
		t.Errorf("Expected black padding on the right, got %d", v)
	}
}
