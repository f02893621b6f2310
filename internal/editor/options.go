package editor

import (
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/autocut/internal/denoise"
)

var validate = validator.New()

// Options configures an Editor.
type Options struct {
	// MaxSampleLength rejects recordings with more samples per channel.
	// Zero means unlimited.
	MaxSampleLength int `validate:"gte=0"`
	// Logger receives debug and info events. Nil uses slog.Default().
	Logger *slog.Logger `validate:"-"`
	// Progress is called when a long-running stage starts. May be nil.
	Progress func(Stage) `validate:"-"`
}

// ClipOptions configures AmplitudeClip.
type ClipOptions struct {
	// MinIntervalSec is the shortest quiet stretch that gets removed.
	MinIntervalSec float64 `json:"min_interval_sec" validate:"gt=0"`
	// CutoffRatio is the fraction of samples, by rank of absolute
	// amplitude, treated as quiet.
	CutoffRatio float64 `json:"cutoff_ratio" validate:"gte=0,lte=1"`
	// CrossfadeSec is the longest fade used at each splice.
	CrossfadeSec float64 `json:"crossfade_sec" validate:"gte=0"`
	// NoiseReduction, when set, denoises before detection. Cut points are
	// found on the denoised signal but the original audio is stitched.
	NoiseReduction *DenoiseOptions `json:"noise_reduction,omitempty" validate:"omitempty"`
}

// DefaultClipOptions returns the stock clipping configuration.
func DefaultClipOptions() ClipOptions {
	return ClipOptions{
		MinIntervalSec: 0.125,
		CutoffRatio:    0.85,
		CrossfadeSec:   0.1,
	}
}

// DenoiseOptions configures NoiseReduction.
type DenoiseOptions struct {
	// MinIntervalSec is the shortest window accepted as noise reference.
	MinIntervalSec float64 `json:"min_interval_sec" validate:"gt=0"`
	// CutoffRatio is the initial quiet ratio of the reference search.
	CutoffRatio float64 `json:"cutoff_ratio" validate:"gte=0,lte=1"`
	// MaxIntervalRatio bounds later references to this fraction of the file.
	MaxIntervalRatio float64 `json:"max_interval_ratio" validate:"gt=0,lte=1"`
	// NIter is the number of reference search iterations.
	NIter int `json:"n_iter" validate:"gte=1"`
	// Params configures the spectral filter.
	Params denoise.Params `json:"params"`
}

// DefaultDenoiseOptions returns the stock denoising configuration.
func DefaultDenoiseOptions() DenoiseOptions {
	return DenoiseOptions{
		MinIntervalSec:   0.125,
		CutoffRatio:      0.85,
		MaxIntervalRatio: 0.15,
		NIter:            1,
		Params:           denoise.DefaultParams(),
	}
}

func validateOptions(v any) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}
	return nil
}

// Validate checks o against its field constraints.
func (o ClipOptions) Validate() error {
	return validateOptions(o)
}

// Validate checks o against its field constraints.
func (o DenoiseOptions) Validate() error {
	return validateOptions(o)
}
