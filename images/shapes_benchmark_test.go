package images

import (
	"math/rand"
	"testing"
)

// BenchmarkIoU_NonOverlapping takes the early return for disjoint boxes.
func BenchmarkIoU_NonOverlapping(b *testing.B) {
	r1 := Rect{X1: 0, Y1: 0, X2: 100, Y2: 100}
	r2 := Rect{X1: 200, Y1: 200, X2: 300, Y2: 300}

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = CalculateIoU(r1, r2)
	}
}

// BenchmarkIoU_PartialOverlap runs the full calculation.
func BenchmarkIoU_PartialOverlap(b *testing.B) {
	r1 := Rect{X1: 166, Y1: 166, X2: 249, Y2: 249}
	r2 := Rect{X1: 180, Y1: 170, X2: 260, Y2: 250}

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = CalculateIoU(r1, r2)
	}
}

// BenchmarkIoU_RandomPairs compares random boxes inside a 640x480 frame.
func BenchmarkIoU_RandomPairs(b *testing.B) {
	rng := rand.New(rand.NewSource(1))
	boxes := make([]Rect, 1024)
	for i := range boxes {
		x, y := rng.Intn(600), rng.Intn(440)
		boxes[i] = RectFromXYWH(x, y, 1+rng.Intn(640-x), 1+rng.Intn(480-y))
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = CalculateIoU(boxes[i%len(boxes)], boxes[(i+1)%len(boxes)])
	}
}
