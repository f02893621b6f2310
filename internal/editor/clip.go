package editor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/maauso/autocut/internal/audio"
	"github.com/maauso/autocut/internal/media"
	"github.com/maauso/autocut/internal/silence"
	"github.com/maauso/autocut/internal/timeline"
)

// ClipReport describes the outcome of AmplitudeClip.
type ClipReport struct {
	// Edited is false when no quiet stretch was removed.
	Edited bool `json:"edited"`
	// Threshold is the cutoff amplitude used for detection.
	Threshold int `json:"threshold"`
	// Drops lists the removed stretches in source seconds.
	Drops []audio.Span `json:"drops"`
	// RemovedSec is the source duration not present in the output.
	RemovedSec float64 `json:"removed_sec"`
	// Denoise is set when ClipOptions.NoiseReduction was requested.
	Denoise *DenoiseReport `json:"denoise,omitempty"`
}

// AmplitudeClip removes quiet stretches of channel 0 from every channel
// and from the video, joining the parts with crossfades.
//
// With ClipOptions.NoiseReduction the recording is denoised first and the
// quiet stretches are detected on the denoised channel 0, but the original
// audio is what gets stitched. After an explicit NoiseReduction, detection
// and stitching both use the denoised audio.
func (e *Editor) AmplitudeClip(ctx context.Context, opts ClipOptions) (ClipReport, error) {
	if err := validateOptions(opts); err != nil {
		return ClipReport{}, err
	}
	if e.state != StateLoaded && e.state != StateDenoised {
		return ClipReport{}, fmt.Errorf("%w: clip from %s", ErrInvalidState, e.state)
	}

	var report ClipReport
	base := e.output.Audio
	detect := base
	if opts.NoiseReduction != nil {
		if e.state == StateDenoised {
			return ClipReport{}, fmt.Errorf("%w: recording is already denoised", ErrInvalidState)
		}
		denoised, dr, err := e.denoise(ctx, base, *opts.NoiseReduction)
		if err != nil {
			return ClipReport{}, err
		}
		detect = denoised
		report.Denoise = &dr
	}

	threshold, err := silence.CutoffAmplitude(detect.Channels[0], opts.CutoffRatio)
	if err != nil {
		return ClipReport{}, err
	}
	drops := silence.Segment(detect.Channels[0], threshold, silence.MinSamples(opts.MinIntervalSec, detect.SampleRate))
	report.Threshold = threshold

	e.logger.Debug("quiet stretches detected",
		slog.Int("threshold", threshold),
		slog.Int("drops", len(drops)),
		slog.Float64("min_interval_sec", opts.MinIntervalSec),
		slog.Float64("cutoff_ratio", opts.CutoffRatio),
	)
	if len(drops) == 0 {
		e.logger.Info("nothing to remove")
		return report, nil
	}

	if err := ctx.Err(); err != nil {
		return ClipReport{}, err
	}
	e.report(StageStitching)

	res, err := timeline.Stitch(e.track(base), drops, opts.CrossfadeSec)
	if err != nil {
		return ClipReport{}, fmt.Errorf("stitch: %w", err)
	}
	if res.Edits == 0 {
		e.logger.Info("nothing to remove")
		return report, nil
	}

	out := e.output.WithAudio(res.Audio)
	if res.Video != nil && out.Video != nil {
		out.Video = out.Video.WithCuts(res.Video.Cuts)
	}

	e.output = out
	e.state = StateClipped
	e.modified = true

	report.Edited = true
	report.Drops = silence.ToSpans(drops, base.SampleRate)
	report.RemovedSec = float64(res.Removed(base.Len())) / float64(base.SampleRate)

	e.logger.Info("quiet stretches removed",
		slog.Int("drops", res.Edits),
		slog.Float64("removed_sec", report.RemovedSec),
		slog.Float64("original_sec", base.Duration()),
		slog.Float64("output_sec", res.Audio.Duration()),
	)
	return report, nil
}

// track wraps s in the timeline variant matching the recording.
func (e *Editor) track(s *audio.Signal) timeline.Track {
	if v := e.output.Video; v != nil {
		return timeline.AudioWithVideo{Audio: s, Video: v}
	}
	return timeline.AudioOnly{Audio: s}
}

var _ timeline.VideoClip = (*media.Video)(nil)
