// Package silence locates low-amplitude stretches in a channel. The cutoff
// amplitude is a rank statistic over the channel's own samples, so the same
// ratio behaves consistently on quiet and loud recordings.
package silence

import (
	"errors"
	"math"
	"slices"
)

// ErrEmptySignal is returned when a cutoff is requested for zero samples.
var ErrEmptySignal = errors.New("silence: empty signal")

// CutoffAmplitude returns the magnitude at rank floor(ratio*len) of the
// sorted absolute samples. Samples at or below it count as silent. The
// ratio is clamped to [0, 1].
func CutoffAmplitude(samples []int, ratio float64) (int, error) {
	if len(samples) == 0 {
		return 0, ErrEmptySignal
	}
	sorted := make([]int, len(samples))
	for i, v := range samples {
		if v < 0 {
			v = -v
		}
		sorted[i] = v
	}
	slices.Sort(sorted)
	return sorted[rankIndex(ratio, len(sorted))], nil
}

// CutoffAmplitudeFloat is CutoffAmplitude for float samples.
func CutoffAmplitudeFloat(samples []float64, ratio float64) (float64, error) {
	if len(samples) == 0 {
		return 0, ErrEmptySignal
	}
	sorted := make([]float64, len(samples))
	for i, v := range samples {
		sorted[i] = math.Abs(v)
	}
	slices.Sort(sorted)
	return sorted[rankIndex(ratio, len(sorted))], nil
}

func rankIndex(ratio float64, n int) int {
	if math.IsNaN(ratio) || ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	return min(int(math.Floor(ratio*float64(n))), n-1)
}
