package media

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/maauso/autocut/internal/audio"
)

// Static errors for media loading.
var (
	// ErrUnsupportedFormat is returned for file extensions FileIO cannot handle.
	ErrUnsupportedFormat = errors.New("unsupported media format")
	// ErrTooManyChannels is returned for audio with more than two channels.
	ErrTooManyChannels = errors.New("audio has more than two channels")
	// ErrNoAudio is returned when Write is called without decoded audio.
	ErrNoAudio = errors.New("no audio to export")
)

// MaxChannels is the largest channel count accepted by Load.
const MaxChannels = 2

// Audio-only and video containers understood by FileIO.
const (
	FormatWAV = "wav"
	FormatMP3 = "mp3"
	FormatM4A = "m4a"
	FormatMP4 = "mp4"
	FormatMOV = "mov"
)

// Video is a handle to a normalized MP4 file, optionally narrowed to a list
// of cuts.
type Video struct {
	// Path is the MP4 file holding the full video.
	Path string
	// SourceDuration is the length of the file at Path in seconds.
	SourceDuration float64
	// Cuts lists the second ranges kept, in output order. Empty means the
	// whole file.
	Cuts []audio.Span
}

// Duration returns the length of the video as it will be written.
func (v *Video) Duration() float64 {
	if len(v.Cuts) == 0 {
		return v.SourceDuration
	}
	var d float64
	for _, c := range v.Cuts {
		d += c.Duration()
	}
	return d
}

// WithCuts returns a copy of v narrowed to cuts of the source file.
func (v *Video) WithCuts(cuts []audio.Span) *Video {
	c := *v
	c.Cuts = append([]audio.Span(nil), cuts...)
	return &c
}

// Media is a decoded recording together with its optional video track.
type Media struct {
	// Audio is the decoded PCM signal.
	Audio *audio.Signal
	// Video is nil for audio-only files.
	Video *Video
	// Format is the container written by Write: wav, mp3, m4a or mp4.
	Format string
	// Source is the path Load was called with.
	Source string
	// Converted is set when the source container was normalized to MP4.
	Converted bool
}

// HasVideo reports whether the media carries a video track.
func (m *Media) HasVideo() bool {
	return m.Video != nil
}

// ConvertedPath returns the MP4 file Load wrote next to the source, or ""
// when the source was used as is.
func (m *Media) ConvertedPath() string {
	if !m.Converted || m.Video == nil {
		return ""
	}
	return m.Video.Path
}

// WithAudio returns a shallow copy of m carrying s as its audio.
func (m *Media) WithAudio(s *audio.Signal) *Media {
	c := *m
	c.Audio = s
	return &c
}

// AudioOnly returns a shallow copy of m without video, written as format.
func (m *Media) AudioOnly(format string) *Media {
	c := *m
	c.Video = nil
	c.Format = format
	return &c
}

// formatOf returns the lower-case extension of path without the dot.
func formatOf(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}
