package denoise

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/mat"
)

// ErrInvalidFrame is returned for FFT or hop sizes that cannot frame a signal.
var ErrInvalidFrame = errors.New("denoise: invalid STFT frame configuration")

// Spectrogram is a complex short-time spectrum stored frame-major.
type Spectrogram struct {
	// Frames holds FFTSize/2+1 coefficients per frame.
	Frames [][]complex128
	// Length is the number of time-domain samples the spectrogram covers.
	Length int
}

// Bins returns the number of frequency bins per frame.
func (sp *Spectrogram) Bins() int {
	if len(sp.Frames) == 0 {
		return 0
	}
	return len(sp.Frames[0])
}

// Magnitude returns |X| as a bins x frames matrix.
func (sp *Spectrogram) Magnitude() *mat.Dense {
	bins, frames := sp.Bins(), len(sp.Frames)
	m := mat.NewDense(bins, frames, nil)
	for f, frame := range sp.Frames {
		for b, c := range frame {
			m.Set(b, f, cmplx.Abs(c))
		}
	}
	return m
}

// ApplyMask scales every coefficient by the matching bins x frames mask
// entry. The phase is left untouched.
func (sp *Spectrogram) ApplyMask(mask mat.Matrix) {
	for f, frame := range sp.Frames {
		for b := range frame {
			frame[b] *= complex(mask.At(b, f), 0)
		}
	}
}

// STFT is a Hann-windowed short-time Fourier transform with centered frames.
type STFT struct {
	size   int
	hop    int
	window []float64
	fft    *fourier.FFT
}

// NewSTFT creates a transform with the given frame and hop sizes.
func NewSTFT(fftSize, hopSize int) (*STFT, error) {
	if fftSize < 2 || fftSize%2 != 0 {
		return nil, fmt.Errorf("%w: fft size %d must be even and at least 2", ErrInvalidFrame, fftSize)
	}
	if hopSize <= 0 || hopSize > fftSize/2 {
		return nil, fmt.Errorf("%w: hop size %d must be in [1, %d]", ErrInvalidFrame, hopSize, fftSize/2)
	}

	window := make([]float64, fftSize)
	for i := range window {
		window[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(fftSize))
	}
	return &STFT{size: fftSize, hop: hopSize, window: window, fft: fourier.NewFFT(fftSize)}, nil
}

// Forward transforms x. The signal is reflection padded by half a frame on
// both sides so frame k is centered on sample k*hop.
func (s *STFT) Forward(x []float64) *Spectrogram {
	pad := s.size / 2
	padded := reflectPad(x, pad)
	n := 1 + (len(padded)-s.size)/s.hop

	frames := make([][]complex128, n)
	buf := make([]float64, s.size)
	for f := range frames {
		off := f * s.hop
		for i := range buf {
			buf[i] = padded[off+i] * s.window[i]
		}
		frames[f] = s.fft.Coefficients(nil, buf)
	}
	return &Spectrogram{Frames: frames, Length: len(x)}
}

// Inverse resynthesizes length samples by weighted overlap-add.
func (s *STFT) Inverse(sp *Spectrogram, length int) []float64 {
	pad := s.size / 2
	total := max((len(sp.Frames)-1)*s.hop+s.size, length+2*pad)
	acc := make([]float64, total)
	norm := make([]float64, total)

	buf := make([]float64, s.size)
	scale := 1 / float64(s.size)
	for f, frame := range sp.Frames {
		s.fft.Sequence(buf, frame)
		off := f * s.hop
		for i, v := range buf {
			w := s.window[i]
			acc[off+i] += v * scale * w
			norm[off+i] += w * w
		}
	}

	out := make([]float64, length)
	for i := range out {
		if d := norm[pad+i]; d > 1e-10 {
			out[i] = acc[pad+i] / d
		}
	}
	return out
}

// reflectPad mirrors pad samples around both ends of x without repeating
// the edge sample. Positions that cannot be mirrored stay zero.
func reflectPad(x []float64, pad int) []float64 {
	n := len(x)
	out := make([]float64, n+2*pad)
	copy(out[pad:], x)
	for i := 1; i <= pad; i++ {
		if i < n {
			out[pad-i] = x[i]
			out[pad+n-1+i] = x[n-1-i]
		}
	}
	return out
}
