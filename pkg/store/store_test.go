package store

import (
	"errors"
	"image"
	"path/filepath"
	"testing"
	"time"

	api "github.com/etesami/template-matching-demo/api"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", "history.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenRunsMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	v, err := s.Version()
	if err != nil {
		t.Fatalf("Failed to get version: %v", err)
	}
	if v != len(migrations) {
		t.Errorf("Expected version %d, got %d", len(migrations), v)
	}
	if s.Path() != path {
		t.Errorf("Expected path %s, got %s", path, s.Path())
	}
	s.Close()

	// reopening is a no-op
	s, err = Open(path)
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	defer s.Close()
	if v2, _ := s.Version(); v2 != v {
		t.Errorf("Version changed on reopen: %d -> %d", v, v2)
	}
}

func TestRecordAndListAttempts(t *testing.T) {
	s := openTestStore(t)
	base := time.UnixMilli(1_700_000_000_000)

	scores := []float64{0.2, 0.9, 0.5}
	for i, sc := range scores {
		_, err := s.RecordAttempt(api.Attempt{
			SessionID: "s1",
			Pair:      "waldo",
			Center:    api.PointOf(image.Pt(i, i)),
			Bounds:    api.BoxOf(image.Rect(i, i, i+10, i+20)),
			Score:     sc,
			Quality:   "poor",
			Found:     sc > 0.8,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("RecordAttempt failed: %v", err)
		}
	}
	other, err := s.RecordAttempt(api.Attempt{SessionID: "s2", Pair: "waldo", Score: 0.4})
	if err != nil {
		t.Fatalf("RecordAttempt failed: %v", err)
	}
	if other.ID == 0 || other.CreatedAt.IsZero() {
		t.Errorf("Expected ID and timestamp to be set, got %+v", other)
	}

	list, err := s.ListAttempts("s1", 2)
	if err != nil {
		t.Fatalf("ListAttempts failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("Expected 2 attempts, got %d", len(list))
	}
	if list[0].Score != 0.5 || list[1].Score != 0.9 {
		t.Errorf("Expected newest first, got %v then %v", list[0].Score, list[1].Score)
	}
	if list[1].Bounds.Rect() != image.Rect(1, 1, 11, 21) || !list[1].Found {
		t.Errorf("Attempt fields not preserved: %+v", list[1])
	}
	if !list[0].CreatedAt.Equal(base.Add(2 * time.Second)) {
		t.Errorf("Unexpected timestamp %v", list[0].CreatedAt)
	}

	all, _ := s.ListAttempts("s1", 0)
	if len(all) != 3 {
		t.Errorf("Expected all 3 attempts, got %d", len(all))
	}
}

func TestBestAttempt(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.BestAttempt("s1"); !errors.Is(err, ErrNoAttempts) {
		t.Errorf("Expected ErrNoAttempts, got %v", err)
	}
	for _, sc := range []float64{0.3, 0.8, 0.1} {
		if _, err := s.RecordAttempt(api.Attempt{SessionID: "s1", Pair: "p", Score: sc}); err != nil {
			t.Fatalf("RecordAttempt failed: %v", err)
		}
	}
	best, err := s.BestAttempt("s1")
	if err != nil {
		t.Fatalf("BestAttempt failed: %v", err)
	}
	if best.Score != 0.8 {
		t.Errorf("Expected best 0.8, got %f", best.Score)
	}
}

func TestPairSummary(t *testing.T) {
	s := openTestStore(t)

	empty, err := s.PairSummary("waldo")
	if err != nil {
		t.Fatalf("PairSummary failed: %v", err)
	}
	if empty.Attempts != 0 || empty.Best != 0 {
		t.Errorf("Expected empty summary, got %+v", empty)
	}

	for i, sc := range []float64{0.2, 1.0, 0.6} {
		a := api.Attempt{SessionID: "s", Pair: "waldo", Score: sc, Found: i == 1}
		if _, err := s.RecordAttempt(a); err != nil {
			t.Fatalf("RecordAttempt failed: %v", err)
		}
	}
	if _, err := s.RecordAttempt(api.Attempt{SessionID: "s", Pair: "other", Score: 0.9}); err != nil {
		t.Fatalf("RecordAttempt failed: %v", err)
	}

	sum, err := s.PairSummary("waldo")
	if err != nil {
		t.Fatalf("PairSummary failed: %v", err)
	}
	if sum.Attempts != 3 || sum.Found != 1 || sum.Best != 1.0 {
		t.Errorf("Unexpected summary %+v", sum)
	}
	if d := sum.Average - 0.6; d > 1e-9 || d < -1e-9 {
		t.Errorf("Expected average 0.6, got %f", sum.Average)
	}
}
