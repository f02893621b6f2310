// Package editor composes silence detection, crossfade stitching and
// spectral noise reduction into a single editing session over one
// recording.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/maauso/autocut/internal/media"
)

// Static errors for editor preconditions.
var (
	// ErrInvalidOptions is returned when options fail validation.
	ErrInvalidOptions = errors.New("editor: invalid options")
	// ErrTooLong is returned when a recording exceeds MaxSampleLength.
	ErrTooLong = errors.New("editor: sample data exceeds max sample length")
	// ErrInvalidState is returned for operations not allowed in the
	// current state.
	ErrInvalidState = errors.New("editor: operation not allowed in current state")
)

// MediaIO loads and writes recordings.
type MediaIO interface {
	Load(ctx context.Context, path string) (*media.Media, error)
	Write(ctx context.Context, prefix string, m *media.Media) (string, error)
}

// Discarder is implemented by a MediaIO that can remove files its Load
// created. Open calls it for media it rejects.
type Discarder interface {
	Discard(m *media.Media) error
}

// State is the edit state of an Editor.
type State string

const (
	// StateLoaded means the output equals the loaded recording.
	StateLoaded State = "loaded"
	// StateDenoised means noise reduction replaced the working audio.
	StateDenoised State = "denoised"
	// StateClipped means quiet stretches were removed.
	StateClipped State = "clipped"
	// StateExported means the output was written.
	StateExported State = "exported"
)

// Stage identifies a long-running step reported through Options.Progress.
type Stage string

const (
	// StageDenoising covers the noise reference search and filtering.
	StageDenoising Stage = "denoising"
	// StageStitching covers silence detection and crossfade stitching.
	StageStitching Stage = "stitching"
	// StageExporting covers encoding and writing the output.
	StageExporting Stage = "exporting"
)

func accept(m *media.Media, path string, opts Options) error {
	if m.Audio == nil {
		return fmt.Errorf("open %s: %w", path, media.ErrNoAudio)
	}
	if err := m.Audio.Validate(); err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	if n := m.Audio.Len(); opts.MaxSampleLength > 0 && n > opts.MaxSampleLength {
		return fmt.Errorf("%w: %d > %d", ErrTooLong, n, opts.MaxSampleLength)
	}
	return nil
}

// Editor is a single-owner editing session. It is not safe for concurrent
// use.
type Editor struct {
	io       MediaIO
	logger   *slog.Logger
	progress func(Stage)

	original *media.Media
	output   *media.Media
	state    State
	modified bool
}

// Open loads path through io and starts a session in StateLoaded.
func Open(ctx context.Context, io MediaIO, path string, opts Options) (*Editor, error) {
	if err := validateOptions(opts); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	m, err := io.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := accept(m, path, opts); err != nil {
		if d, ok := io.(Discarder); ok {
			if derr := d.Discard(m); derr != nil {
				logger.Warn("failed to discard rejected media", slog.String("error", derr.Error()))
			}
		}
		return nil, err
	}

	logger.Debug("recording opened",
		slog.String("path", path),
		slog.Int("samples", m.Audio.Len()),
		slog.Float64("duration_sec", m.Audio.Duration()),
		slog.Int("channels", m.Audio.NumChannels()),
		slog.Int("sample_rate", m.Audio.SampleRate),
		slog.Int("bit_depth", m.Audio.BitDepth),
		slog.Int("peak", m.Audio.Peak()),
		slog.Bool("video", m.HasVideo()),
	)

	return &Editor{
		io:       io,
		logger:   logger,
		progress: opts.Progress,
		original: m,
		output:   m,
		state:    StateLoaded,
	}, nil
}

// State returns the current edit state.
func (e *Editor) State() State { return e.state }

// Original returns the recording as loaded. It is never modified.
func (e *Editor) Original() *media.Media { return e.original }

// Output returns the recording as it will be exported.
func (e *Editor) Output() *media.Media { return e.output }

// Modified reports whether any operation changed the audio.
func (e *Editor) Modified() bool { return e.modified }

// Reset discards every edit and returns to StateLoaded.
func (e *Editor) Reset() {
	e.output = e.original
	e.state = StateLoaded
	e.modified = false
}

// Export writes the output to prefix plus the format's extension and
// returns the written path.
func (e *Editor) Export(ctx context.Context, prefix string) (string, error) {
	return e.export(ctx, prefix, e.output)
}

// ExportAudio writes only the output audio as WAV.
func (e *Editor) ExportAudio(ctx context.Context, prefix string) (string, error) {
	return e.export(ctx, prefix, e.output.AudioOnly(media.FormatWAV))
}

func (e *Editor) export(ctx context.Context, prefix string, m *media.Media) (string, error) {
	e.report(StageExporting)
	path, err := e.io.Write(ctx, prefix, m)
	if err != nil {
		return "", err
	}
	e.state = StateExported
	return path, nil
}

func (e *Editor) report(s Stage) {
	if e.progress != nil {
		e.progress(s)
	}
}
