// Package denoise removes stationary background noise with a
// non-negative matrix factorization of the spectrogram. A noise basis is
// learned from a reference window, held fixed while the rest of the
// recording is factorized, and the signal-only part of the model drives a
// Wiener-style mask.
package denoise

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/go-playground/validator/v10"
	"gonum.org/v1/gonum/mat"

	"github.com/maauso/autocut/internal/audio"
)

// Static errors for filter preconditions.
var (
	// ErrInvalidReference is returned for an empty or out-of-range noise window.
	ErrInvalidReference = errors.New("denoise: invalid noise reference")
	// ErrInvalidParams is returned when Params fail validation.
	ErrInvalidParams = errors.New("denoise: invalid parameters")
)

var validate = validator.New()

// Params configures Filter.
type Params struct {
	// BasisNoiseNum is the number of noise bases learned from the reference.
	BasisNoiseNum int `json:"basis_noise_num" validate:"gt=0"`
	// BasisNum is the number of free signal bases.
	BasisNum int `json:"basis_num" validate:"gt=0"`
	// NMFIter is the number of update rounds per factorization.
	NMFIter int `json:"nmf_iter" validate:"gt=0"`
	// Divergence is "kl" or "euc".
	Divergence Divergence `json:"divergence" validate:"oneof=kl euc"`
	// NormalizeScale sets the output peak relative to the input peak.
	NormalizeScale float64 `json:"normalize_scale" validate:"gt=0"`
	// FFTSize is the STFT frame length in samples.
	FFTSize int `json:"fft_size" validate:"gte=2"`
	// HopSize is the STFT frame advance in samples.
	HopSize int `json:"hop_size" validate:"gt=0"`
	// Seed makes the random initialization reproducible. Zero draws a
	// fresh seed per call.
	Seed uint64 `json:"seed,omitempty"`
}

// DefaultParams returns the stock filter configuration.
func DefaultParams() Params {
	return Params{
		BasisNoiseNum:  20,
		BasisNum:       20,
		NMFIter:        50,
		Divergence:     KL,
		NormalizeScale: 1.0,
		FFTSize:        2048,
		HopSize:        512,
	}
}

// Validate checks the parameter ranges.
func (p Params) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	return nil
}

func (p Params) rng() *rand.Rand {
	if p.Seed == 0 {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rand.New(rand.NewPCG(p.Seed, p.Seed^0x9e3779b97f4a7c15))
}

// Filter denoises signal using reference as the noise exemplar. The result
// has the same length as signal and its peak is NormalizeScale times the
// input peak.
func Filter(ctx context.Context, signal, reference []float64, p Params) ([]float64, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if len(reference) == 0 {
		return nil, fmt.Errorf("%w: empty reference", ErrInvalidReference)
	}
	if len(signal) == 0 {
		return nil, fmt.Errorf("%w: empty signal", ErrInvalidParams)
	}

	stft, err := NewSTFT(p.FFTSize, p.HopSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	rng := p.rng()

	noise, err := NMF(ctx, stft.Forward(reference).Magnitude(), NMFOptions{
		Rank:       p.BasisNoiseNum,
		Iter:       p.NMFIter,
		Divergence: p.Divergence,
		Rand:       rng,
	})
	if err != nil {
		return nil, fmt.Errorf("factorize noise reference: %w", err)
	}

	spectrum := stft.Forward(signal)
	model, err := NMF(ctx, spectrum.Magnitude(), NMFOptions{
		Rank:       p.BasisNoiseNum + p.BasisNum,
		Iter:       p.NMFIter,
		Divergence: p.Divergence,
		Fixed:      noise.H,
		Rand:       rng,
	})
	if err != nil {
		return nil, fmt.Errorf("factorize signal: %w", err)
	}

	spectrum.ApplyMask(wienerMask(model, p.BasisNoiseNum))
	out := stft.Inverse(spectrum, len(signal))
	rescale(out, peak(signal)*p.NormalizeScale)
	return out, nil
}

// FilterWindow denoises signal using signal[window] as the noise exemplar.
func FilterWindow(ctx context.Context, signal []float64, window audio.Interval, p Params) ([]float64, error) {
	if window.Empty() || !window.Within(len(signal)) {
		return nil, fmt.Errorf("%w: window %s outside [0, %d)", ErrInvalidReference, window, len(signal))
	}
	return Filter(ctx, signal, signal[window.Start:window.End], p)
}

// wienerMask returns HsUs / (HU + eps), where the signal part skips the
// first noise bases.
func wienerMask(f *Factorization, noiseBases int) *mat.Dense {
	rows, rank := f.H.Dims()
	_, cols := f.U.Dims()

	var full, target mat.Dense
	full.Mul(f.H, f.U)
	target.Mul(
		f.H.Slice(0, rows, noiseBases, rank),
		f.U.Slice(noiseBases, rank, 0, cols),
	)
	target.Apply(func(i, j int, v float64) float64 {
		return v / (full.At(i, j) + eps)
	}, &target)
	return &target
}

func peak(x []float64) float64 {
	var p float64
	for _, v := range x {
		p = math.Max(p, math.Abs(v))
	}
	return p
}

// rescale scales x in place so its peak equals target. Silent input is left
// untouched.
func rescale(x []float64, target float64) {
	p := peak(x)
	if p == 0 {
		return
	}
	g := target / p
	for i := range x {
		x[i] *= g
	}
}
