package denoise

import (
	"context"
	"fmt"

	"github.com/maauso/autocut/internal/audio"
	"github.com/maauso/autocut/internal/silence"
)

// stepsPerIter is the cost of a full search iteration. Raising the cutoff
// ratio costs one step, so several bumps still fit the iteration budget.
const stepsPerIter = 5

// Search configures SelectReference.
type Search struct {
	// CutoffRatio is the initial rank ratio for the silence threshold.
	CutoffRatio float64 `json:"cutoff_ratio" validate:"gte=0,lte=1"`
	// MinSamples is the shortest window accepted as a reference.
	MinSamples int `json:"min_samples" validate:"gt=0"`
	// MaxIntervalRatio bounds later references to this fraction of the
	// signal. Longer candidates end the search.
	MaxIntervalRatio float64 `json:"max_interval_ratio" validate:"gt=0,lte=1"`
	// NIter is the number of full search iterations.
	NIter int `json:"n_iter" validate:"gte=1"`
}

// RefineFunc denoises with the given reference window and returns the
// signal searched by the next iteration.
type RefineFunc func(ctx context.Context, reference audio.Interval) ([]float64, error)

// SelectReference looks for the longest quiet window in samples and hands
// every accepted window to refine. It returns the last accepted window and
// the signal refine produced for it, or a nil window when none was found.
//
// When no window qualifies the cutoff ratio moves toward one by
// (1-ratio)^2 and the search retries at a fifth of an iteration's cost.
// After the first accepted window, a candidate longer than MaxIntervalRatio
// of the signal stops the search and the previous window is kept.
func SelectReference(ctx context.Context, samples []float64, s Search, refine RefineFunc) (*audio.Interval, []float64, error) {
	if err := validate.Struct(s); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	if len(samples) == 0 {
		return nil, nil, fmt.Errorf("%w: empty signal", ErrInvalidParams)
	}

	var (
		ref     *audio.Interval
		refined []float64
	)
	current := samples
	ratio := s.CutoffRatio
	limit := s.MaxIntervalRatio * float64(len(samples))

	for steps := 0; steps < stepsPerIter*s.NIter; {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		threshold, err := silence.CutoffAmplitudeFloat(current, ratio)
		if err != nil {
			return nil, nil, err
		}
		candidate, ok := audio.Longest(silence.SegmentFloat(current, threshold, s.MinSamples))
		if !ok {
			ratio += (1 - ratio) * (1 - ratio)
			steps++
			continue
		}
		if ref != nil && float64(candidate.Len()) > limit {
			break
		}

		out, err := refine(ctx, candidate)
		if err != nil {
			return nil, nil, err
		}
		ref = &candidate
		refined = out
		current = out
		steps += stepsPerIter
	}

	return ref, refined, nil
}
