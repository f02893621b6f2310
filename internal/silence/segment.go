package silence

import "github.com/maauso/autocut/internal/audio"

// Segment returns every maximal run of samples with |x| <= threshold whose
// length is at least minSamples, in ascending order. It returns nil when no
// run qualifies.
func Segment(samples []int, threshold, minSamples int) []audio.Interval {
	return collect(samples, threshold, minSamples)
}

// SegmentFloat is Segment for float samples.
func SegmentFloat(samples []float64, threshold float64, minSamples int) []audio.Interval {
	return collect(samples, threshold, minSamples)
}

// MinSamples converts a minimum interval in seconds to a sample count. The
// result is at least one sample.
func MinSamples(minIntervalSec float64, sampleRate int) int {
	return max(int(minIntervalSec*float64(sampleRate)), 1)
}

// ToSpans converts sample intervals to second-valued spans.
func ToSpans(intervals []audio.Interval, sampleRate int) []audio.Span {
	if len(intervals) == 0 {
		return nil
	}
	spans := make([]audio.Span, len(intervals))
	for i, iv := range intervals {
		spans[i] = iv.Seconds(sampleRate)
	}
	return spans
}

// collect run-length encodes the silent mask in a single pass.
func collect[T int | float64](samples []T, threshold T, minSamples int) []audio.Interval {
	minSamples = max(minSamples, 1)
	n := len(samples)

	var out []audio.Interval
	runStart := -1
	for i, v := range samples {
		if v < 0 {
			v = -v
		}
		if v <= threshold {
			if runStart < 0 {
				runStart = i
			}
			continue
		}
		if runStart >= 0 {
			if i-runStart >= minSamples {
				out = append(out, audio.Interval{Start: runStart, End: i})
			}
			runStart = -1
		}
	}
	if runStart >= 0 && n-runStart >= minSamples {
		out = append(out, audio.Interval{Start: runStart, End: n})
	}
	return out
}
