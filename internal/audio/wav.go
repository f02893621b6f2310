package audio

import (
	"errors"
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrInvalidWAV is returned when the input is not a readable PCM WAV stream.
var ErrInvalidWAV = errors.New("audio: invalid WAV file")

// wavFormatPCM is the WAVE_FORMAT_PCM tag.
const wavFormatPCM = 1

// DecodeWAV reads a PCM WAV stream into a Signal, de-interleaving channels.
func DecodeWAV(r io.ReadSeeker) (*Signal, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, ErrInvalidWAV
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("read PCM buffer: %w", err)
	}
	if buf.Format == nil || buf.Format.NumChannels <= 0 {
		return nil, fmt.Errorf("%w: missing format chunk", ErrInvalidWAV)
	}

	numChans := buf.Format.NumChannels
	frames := len(buf.Data) / numChans
	channels := make([][]int, numChans)
	for c := range channels {
		channels[c] = make([]int, frames)
	}
	for i := 0; i < frames; i++ {
		base := i * numChans
		for c := 0; c < numChans; c++ {
			channels[c][i] = buf.Data[base+c]
		}
	}

	return NewSignal(channels, buf.Format.SampleRate, int(dec.BitDepth))
}

// EncodeWAV writes the signal as an interleaved PCM WAV stream.
func EncodeWAV(w io.WriteSeeker, s *Signal) error {
	if err := s.Validate(); err != nil {
		return err
	}

	numChans := s.NumChannels()
	frames := s.Len()
	data := make([]int, frames*numChans)
	for i := 0; i < frames; i++ {
		base := i * numChans
		for c := 0; c < numChans; c++ {
			data[base+c] = s.Channels[c][i]
		}
	}

	enc := wav.NewEncoder(w, s.SampleRate, s.BitDepth, numChans, wavFormatPCM)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: numChans, SampleRate: s.SampleRate},
		Data:           data,
		SourceBitDepth: s.BitDepth,
	}
	if err := enc.Write(buf); err != nil {
		_ = enc.Close()
		return fmt.Errorf("write PCM buffer: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalize WAV: %w", err)
	}
	return nil
}

// ReadWAVFile decodes the WAV file at path.
func ReadWAVFile(path string) (*Signal, error) {
	f, err := os.Open(path) // #nosec G304 - path is provided by trusted caller
	if err != nil {
		return nil, fmt.Errorf("open wav: %w", err)
	}
	defer func() { _ = f.Close() }()
	return DecodeWAV(f)
}

// WriteWAVFile encodes s to path, removing the partial file on failure.
func WriteWAVFile(path string, s *Signal) error {
	f, err := os.Create(path) // #nosec G304 - path is provided by trusted caller
	if err != nil {
		return fmt.Errorf("create wav: %w", err)
	}
	if err := EncodeWAV(f, s); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("close wav: %w", err)
	}
	return nil
}
