// Package audio provides the in-memory PCM representation shared by the
// silence detector, the crossfade timeline builder and the denoiser, along
// with sample/second interval types and a WAV codec.
package audio

import (
	"errors"
	"fmt"
	"math"
)

// Static errors for signal validation.
var (
	// ErrNoChannels is returned when a signal carries no channel data.
	ErrNoChannels = errors.New("audio: signal has no channels")
	// ErrEmptySignal is returned when a signal has zero samples.
	ErrEmptySignal = errors.New("audio: signal is empty")
	// ErrChannelLength is returned when channels differ in length.
	ErrChannelLength = errors.New("audio: channels differ in length")
	// ErrInvalidSampleRate is returned when the sample rate is not positive.
	ErrInvalidSampleRate = errors.New("audio: sample rate must be positive")
	// ErrInvalidBitDepth is returned for bit depths outside 8..32 or not byte aligned.
	ErrInvalidBitDepth = errors.New("audio: bit depth must be 8, 16, 24 or 32")
)

// Signal is a decoded multi-channel PCM recording. All channels share the
// same length and sample rate. Channel 0 drives detection decisions.
type Signal struct {
	// Channels holds one sample slice per channel.
	Channels [][]int
	// SampleRate is the frame rate in Hz.
	SampleRate int
	// BitDepth is the sample width in bits.
	BitDepth int
}

// NewSignal creates a signal from per-channel samples and validates it.
func NewSignal(channels [][]int, sampleRate, bitDepth int) (*Signal, error) {
	s := &Signal{Channels: channels, SampleRate: sampleRate, BitDepth: bitDepth}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the structural invariants of the signal.
func (s *Signal) Validate() error {
	if len(s.Channels) == 0 {
		return ErrNoChannels
	}
	n := len(s.Channels[0])
	if n == 0 {
		return ErrEmptySignal
	}
	for i, ch := range s.Channels[1:] {
		if len(ch) != n {
			return fmt.Errorf("%w: channel %d has %d samples, want %d", ErrChannelLength, i+1, len(ch), n)
		}
	}
	if s.SampleRate <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidSampleRate, s.SampleRate)
	}
	switch s.BitDepth {
	case 8, 16, 24, 32:
	default:
		return fmt.Errorf("%w: got %d", ErrInvalidBitDepth, s.BitDepth)
	}
	return nil
}

// Len returns the number of samples per channel.
func (s *Signal) Len() int {
	if len(s.Channels) == 0 {
		return 0
	}
	return len(s.Channels[0])
}

// NumChannels returns the channel count.
func (s *Signal) NumChannels() int {
	return len(s.Channels)
}

// Duration returns the signal length in seconds.
func (s *Signal) Duration() float64 {
	if s.SampleRate <= 0 {
		return 0
	}
	return float64(s.Len()) / float64(s.SampleRate)
}

// MaxAmplitude returns the largest representable magnitude for the bit depth.
func (s *Signal) MaxAmplitude() int {
	if s.BitDepth <= 0 || s.BitDepth > 32 {
		return math.MaxInt32
	}
	return 1<<(s.BitDepth-1) - 1
}

// Peak returns the largest absolute sample value across all channels.
func (s *Signal) Peak() int {
	peak := 0
	for _, ch := range s.Channels {
		for _, v := range ch {
			if v < 0 {
				v = -v
			}
			if v > peak {
				peak = v
			}
		}
	}
	return peak
}

// Clone returns a deep copy of the signal.
func (s *Signal) Clone() *Signal {
	channels := make([][]int, len(s.Channels))
	for i, ch := range s.Channels {
		channels[i] = make([]int, len(ch))
		copy(channels[i], ch)
	}
	return &Signal{Channels: channels, SampleRate: s.SampleRate, BitDepth: s.BitDepth}
}

// Equal reports whether two signals carry identical format and samples.
func (s *Signal) Equal(o *Signal) bool {
	if s == nil || o == nil {
		return s == o
	}
	if s.SampleRate != o.SampleRate || s.BitDepth != o.BitDepth || len(s.Channels) != len(o.Channels) {
		return false
	}
	for i := range s.Channels {
		if len(s.Channels[i]) != len(o.Channels[i]) {
			return false
		}
		for j := range s.Channels[i] {
			if s.Channels[i][j] != o.Channels[i][j] {
				return false
			}
		}
	}
	return true
}

// Float64 returns channel ch converted to float64.
func (s *Signal) Float64(ch int) []float64 {
	src := s.Channels[ch]
	out := make([]float64, len(src))
	for i, v := range src {
		out[i] = float64(v)
	}
	return out
}

// WithChannels returns a new signal sharing the format of s with the given
// channel data.
func (s *Signal) WithChannels(channels [][]int) *Signal {
	return &Signal{Channels: channels, SampleRate: s.SampleRate, BitDepth: s.BitDepth}
}

// Quantize rounds float samples to integers, clamped to the range of the
// signal's bit depth.
func (s *Signal) Quantize(data []float64) []int {
	limit := float64(s.MaxAmplitude())
	out := make([]int, len(data))
	for i, v := range data {
		switch {
		case math.IsNaN(v):
			v = 0
		case v > limit:
			v = limit
		case v < -limit-1:
			v = -limit - 1
		}
		out[i] = int(math.Round(v))
	}
	return out
}

// SecondsToSamples converts a duration in seconds to a sample count,
// truncating toward zero.
func (s *Signal) SecondsToSamples(sec float64) int {
	return int(sec * float64(s.SampleRate))
}
