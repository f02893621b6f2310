// Package timeline stitches the kept parts of a recording back together
// after silent stretches are removed. Adjacent keeps are joined with a short
// linear crossfade borrowed from the dropped gap, and a parallel video
// timeline, when present, is cut at the midpoint of every fade so both
// tracks keep the same length.
package timeline

import "github.com/maauso/autocut/internal/audio"

// VideoClip is an externally owned handle into a video timeline.
type VideoClip interface {
	// Duration returns the clip length in seconds.
	Duration() float64
}

// Track is the input to Stitch: either AudioOnly or AudioWithVideo.
type Track interface {
	// Signal returns the audio that drives the edit.
	Signal() *audio.Signal

	sinks(total int) []sink
}

// AudioOnly is a track without a video timeline.
type AudioOnly struct {
	Audio *audio.Signal
}

// Signal implements Track.
func (t AudioOnly) Signal() *audio.Signal { return t.Audio }

func (t AudioOnly) sinks(total int) []sink {
	return []sink{newAudioSink(t.Audio, total)}
}

// AudioWithVideo is a track whose video must follow every audio cut.
type AudioWithVideo struct {
	Audio *audio.Signal
	Video VideoClip
}

// Signal implements Track.
func (t AudioWithVideo) Signal() *audio.Signal { return t.Audio }

func (t AudioWithVideo) sinks(total int) []sink {
	return []sink{
		newAudioSink(t.Audio, total),
		newVideoSink(t.Video, t.Audio.SampleRate),
	}
}

// VideoEdit describes the stitched video as an ordered list of cuts into
// the source clip.
type VideoEdit struct {
	Source VideoClip
	Cuts   []audio.Span
}

// Duration returns the total length of the cut list in seconds.
func (v *VideoEdit) Duration() float64 {
	var d float64
	for _, c := range v.Cuts {
		d += c.Duration()
	}
	return d
}
