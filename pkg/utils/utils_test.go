package utils

import (
	"image"
	"math"
	"testing"
	"time"
)

func TestParseBuckets(t *testing.T) {
	got := ParseBuckets("0.5, 1,2.5")
	want := []float64{0.5, 1, 2.5}
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("bucket %d = %f, want %f", i, got[i], want[i])
		}
	}
	if ParseBuckets("") != nil {
		t.Error("Expected nil for empty input")
	}
	if ParseBuckets("1,x") != nil {
		t.Error("Expected nil for malformed input")
	}
}

func TestGetIoU(t *testing.T) {
	tests := []struct {
		name     string
		a, b     image.Rectangle
		expected float64
	}{
		{"identical", image.Rect(0, 0, 10, 10), image.Rect(0, 0, 10, 10), 1.0},
		{"disjoint", image.Rect(0, 0, 5, 5), image.Rect(6, 6, 9, 9), 0.0},
		{"half overlap", image.Rect(0, 0, 4, 2), image.Rect(2, 0, 6, 2), 4.0 / 12.0},
		{"empty", image.Rect(0, 0, 0, 0), image.Rect(0, 0, 3, 3), 0.0},
	}
	for _, tt := range tests {
		if got := GetIoU(tt.a, tt.b); math.Abs(got-tt.expected) > 1e-9 {
			t.Errorf("%s: GetIoU = %f, want %f", tt.name, got, tt.expected)
		}
	}
}

func TestCalculateRtt(t *testing.T) {
	base := time.UnixMilli(1_700_000_000_000)
	rtt, err := CalculateRtt(base, base.Add(3*time.Millisecond), base.Add(13*time.Millisecond), base.Add(16*time.Millisecond))
	if err != nil {
		t.Fatalf("CalculateRtt failed: %v", err)
	}
	if math.Abs(rtt-6.0) > 1e-9 {
		t.Errorf("Expected 6ms, got %f", rtt)
	}

	if _, err := CalculateRtt(base, base, base, base.Add(-time.Second)); err == nil {
		t.Error("Expected error when ack precedes send")
	}
}

func TestUnixMilliToTime(t *testing.T) {
	tm := UnixMilliToTime(1_700_000_000_123)
	if tm.UnixMilli() != 1_700_000_000_123 {
		t.Errorf("Round trip failed: %d", tm.UnixMilli())
	}
}
