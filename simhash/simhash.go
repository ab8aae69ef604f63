package simhash

import (
	"image"
	"math/bits"
)

const (
	gridW = 9
	gridH = 8
)

// Image computes a 64-bit difference hash of img. The image is reduced to a
// 9x8 grayscale grid and each bit records whether a cell is brighter than its
// right-hand neighbour. Resized or re-encoded copies of the same picture land
// within a few bits of each other.
func Image(img image.Image) uint64 {
	b := img.Bounds()
	if b.Empty() {
		return 0
	}

	var grid [gridH][gridW]float64
	for gy := 0; gy < gridH; gy++ {
		y0, y1 := span(b.Min.Y, b.Dy(), gy, gridH)
		for gx := 0; gx < gridW; gx++ {
			x0, x1 := span(b.Min.X, b.Dx(), gx, gridW)
			grid[gy][gx] = meanLuma(img, x0, y0, x1, y1)
		}
	}

	var fingerprint uint64
	bit := 0
	for gy := 0; gy < gridH; gy++ {
		for gx := 0; gx < gridW-1; gx++ {
			if grid[gy][gx] > grid[gy][gx+1] {
				fingerprint |= 1 << uint(bit)
			}
			bit++
		}
	}
	return fingerprint
}

// span returns the half-open pixel range of cell i out of n along an axis
// starting at min with the given length. Cells are never empty.
func span(min, length, i, n int) (int, int) {
	lo := min + i*length/n
	hi := min + (i+1)*length/n
	if lo >= min+length {
		lo = min + length - 1
	}
	if hi <= lo {
		hi = lo + 1
	}
	return lo, hi
}

// meanLuma averages the luminance of a cell, sampling at most 8x8 points.
func meanLuma(img image.Image, x0, y0, x1, y1 int) float64 {
	sx := max(1, (x1-x0)/8)
	sy := max(1, (y1-y0)/8)
	var sum float64
	var n int
	for y := y0; y < y1; y += sy {
		for x := x0; x < x1; x += sx {
			r, g, b, _ := img.At(x, y).RGBA()
			sum += 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
			n++
		}
	}
	return sum / float64(n)
}

// Distance returns the Hamming distance between two fingerprints.
func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// Similar returns true if the Hamming distance between two fingerprints
// is less than or equal to the threshold.
func Similar(a, b uint64, threshold int) bool {
	return Distance(a, b) <= threshold
}
