package registry

import (
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"gocv.io/x/gocv"
)

func randomMat(t *testing.T, rows, cols int, seed int64) gocv.Mat {
	t.Helper()
	r := rand.New(rand.NewSource(seed))
	data := make([]byte, rows*cols*3)
	r.Read(data)
	m, err := gocv.NewMatFromBytes(rows, cols, gocv.MatTypeCV8UC3, data)
	if err != nil {
		t.Fatalf("Failed to create mat: %v", err)
	}
	owned := m.Clone()
	m.Close()
	return owned
}

func writePNG(t *testing.T, path string, rows, cols int, seed int64) {
	t.Helper()
	m := randomMat(t, rows, cols, seed)
	defer m.Close()
	if ok := gocv.IMWrite(path, m); !ok {
		t.Fatalf("Failed to write %s", path)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "template.png"), 8, 6, 1)
	writePNG(t, filepath.Join(dir, "scene.png"), 40, 50, 2)

	yml := `pairs:
  - name: waldo
    template: template.png
    scene: scene.png
  - name: strict
    template: template.png
    scene: scene.png
    threshold: 0.9
`
	path := filepath.Join(dir, "pairs.yaml")
	if err := os.WriteFile(path, []byte(yml), 0644); err != nil {
		t.Fatalf("Failed to write pairs file: %v", err)
	}

	r, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	defer r.Close()

	list := r.List()
	if len(list) != 2 || list[0].Name != "strict" || list[1].Name != "waldo" {
		t.Fatalf("Unexpected pairs %+v", list)
	}
	if list[1].Threshold != 0.6 {
		t.Errorf("Expected default threshold 0.6, got %f", list[1].Threshold)
	}
	if list[0].Threshold != 0.9 {
		t.Errorf("Expected threshold 0.9, got %f", list[0].Threshold)
	}
	if list[1].TemplateWidth != 6 || list[1].TemplateHeight != 8 || list[1].SceneWidth != 50 || list[1].SceneHeight != 40 {
		t.Errorf("Unexpected dimensions %+v", list[1])
	}

	a, _ := r.Get("waldo")
	b, _ := r.Get("strict")
	if a.TemplateKey != b.TemplateKey || a.SceneKey != b.SceneKey {
		t.Error("Identical images should hash to identical keys")
	}
	if a.TemplateKey == a.SceneKey {
		t.Error("Different images should hash differently")
	}
}

func TestLoadFromFileErrors(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "t.png"), 4, 4, 3)

	tests := []struct {
		name string
		yml  string
	}{
		{"empty", "pairs: []\n"},
		{"missing name", "pairs:\n  - template: t.png\n    scene: t.png\n"},
		{"missing image", "pairs:\n  - name: a\n    template: t.png\n    scene: nope.png\n"},
		{"duplicate", "pairs:\n  - name: a\n    template: t.png\n    scene: t.png\n  - name: a\n    template: t.png\n    scene: t.png\n"},
		{"bad yaml", "pairs: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".yaml")
			if err := os.WriteFile(path, []byte(tt.yml), 0644); err != nil {
				t.Fatalf("Failed to write: %v", err)
			}
			if r, err := LoadFromFile(path); err == nil {
				r.Close()
				t.Error("Expected error")
			}
		})
	}
}

func TestGetUnknownPair(t *testing.T) {
	r := New()
	if _, err := r.Get("nope"); !errors.Is(err, ErrUnknownPair) {
		t.Errorf("Expected ErrUnknownPair, got %v", err)
	}
}

func TestAddRejectsOversizedTemplate(t *testing.T) {
	r := New()
	defer r.Close()
	template := randomMat(t, 10, 10, 4)
	defer template.Close()
	scene := randomMat(t, 5, 20, 5)
	defer scene.Close()

	if err := r.Add("big", template, scene, 0); err == nil {
		t.Error("Expected error for template taller than scene")
	}
}
