package editor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/maauso/autocut/internal/audio"
	"github.com/maauso/autocut/internal/denoise"
	"github.com/maauso/autocut/internal/silence"
)

// DenoiseReport describes the outcome of NoiseReduction.
type DenoiseReport struct {
	// Found is false when no noise reference qualified; the audio is then
	// left untouched.
	Found bool `json:"found"`
	// Reference is the last accepted reference window.
	Reference audio.Span `json:"reference"`
	// Windows lists every accepted window in sample units, in search order.
	Windows []audio.Interval `json:"-"`
}

// NoiseReduction searches channel 0 for a quiet noise reference and
// filters every channel with it. It is allowed only before clipping. A
// search that finds nothing is reported with Found == false, not as an
// error.
func (e *Editor) NoiseReduction(ctx context.Context, opts DenoiseOptions) (DenoiseReport, error) {
	if err := validateOptions(opts); err != nil {
		return DenoiseReport{}, err
	}
	if e.state != StateLoaded {
		return DenoiseReport{}, fmt.Errorf("%w: noise reduction from %s", ErrInvalidState, e.state)
	}

	denoised, report, err := e.denoise(ctx, e.output.Audio, opts)
	if err != nil {
		return DenoiseReport{}, err
	}
	if report.Found {
		e.output = e.output.WithAudio(denoised)
		e.state = StateDenoised
		e.modified = true
	}
	return report, nil
}

// denoise runs the reference search on channel 0 and replays the accepted
// windows on the remaining channels. It returns src unchanged when no
// reference is found.
func (e *Editor) denoise(ctx context.Context, src *audio.Signal, opts DenoiseOptions) (*audio.Signal, DenoiseReport, error) {
	e.report(StageDenoising)

	search := denoise.Search{
		CutoffRatio:      opts.CutoffRatio,
		MinSamples:       silence.MinSamples(opts.MinIntervalSec, src.SampleRate),
		MaxIntervalRatio: opts.MaxIntervalRatio,
		NIter:            opts.NIter,
	}

	var windows []audio.Interval
	current := src.Float64(0)
	refine := func(ctx context.Context, w audio.Interval) ([]float64, error) {
		out, err := denoise.FilterWindow(ctx, current, w, opts.Params)
		if err != nil {
			return nil, err
		}
		windows = append(windows, w)
		current = out
		return out, nil
	}

	ref, refined, err := denoise.SelectReference(ctx, current, search, refine)
	if err != nil {
		return nil, DenoiseReport{}, fmt.Errorf("noise reduction: %w", err)
	}
	if ref == nil {
		e.logger.Info("no noise reference found, skipping noise reduction",
			slog.Float64("cutoff_ratio", opts.CutoffRatio),
			slog.Int("n_iter", opts.NIter),
		)
		return src, DenoiseReport{}, nil
	}

	channels := make([][]int, src.NumChannels())
	channels[0] = src.Quantize(refined)
	for c := 1; c < len(channels); c++ {
		x := src.Float64(c)
		for _, w := range windows {
			if x, err = denoise.FilterWindow(ctx, x, w, opts.Params); err != nil {
				return nil, DenoiseReport{}, fmt.Errorf("noise reduction channel %d: %w", c, err)
			}
		}
		channels[c] = src.Quantize(x)
	}

	report := DenoiseReport{
		Found:     true,
		Reference: ref.Seconds(src.SampleRate),
		Windows:   windows,
	}
	e.logger.Debug("noise reduction applied",
		slog.String("reference", report.Reference.String()),
		slog.Int("windows", len(windows)),
	)
	return src.WithChannels(channels), report, nil
}
