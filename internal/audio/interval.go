package audio

import "fmt"

// Interval is a half-open [Start, End) range of sample indices.
type Interval struct {
	Start int
	End   int
}

// Len returns the number of samples covered by the interval.
func (iv Interval) Len() int {
	return iv.End - iv.Start
}

// Empty reports whether the interval covers no samples.
func (iv Interval) Empty() bool {
	return iv.End <= iv.Start
}

// Within reports whether the interval lies inside [0, n).
func (iv Interval) Within(n int) bool {
	return iv.Start >= 0 && iv.End <= n && iv.Start <= iv.End
}

// Seconds converts the interval to a Span using the given sample rate.
func (iv Interval) Seconds(sampleRate int) Span {
	r := float64(sampleRate)
	return Span{Start: float64(iv.Start) / r, End: float64(iv.End) / r}
}

func (iv Interval) String() string {
	return fmt.Sprintf("[%d, %d)", iv.Start, iv.End)
}

// Span is a half-open [Start, End) range expressed in seconds.
type Span struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Duration returns the span length in seconds.
func (sp Span) Duration() float64 {
	return sp.End - sp.Start
}

func (sp Span) String() string {
	return fmt.Sprintf("[%.3fs, %.3fs)", sp.Start, sp.End)
}

// Longest returns the longest interval in the list. The earliest one wins
// ties. ok is false for an empty list.
func Longest(intervals []Interval) (Interval, bool) {
	if len(intervals) == 0 {
		return Interval{}, false
	}
	best := intervals[0]
	for _, iv := range intervals[1:] {
		if iv.Len() > best.Len() {
			best = iv
		}
	}
	return best, true
}
