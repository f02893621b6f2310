package timeline

import (
	"math"

	"github.com/maauso/autocut/internal/audio"
)

// sink receives every keep in output order and writes its share of the
// Result once the fold is done.
type sink interface {
	emit(k Keep)
	finish(r *Result)
}

// audioSink overlap-adds keeps onto a growing copy of every channel.
type audioSink struct {
	src *audio.Signal
	out [][]int
}

func newAudioSink(src *audio.Signal, total int) *audioSink {
	out := make([][]int, src.NumChannels())
	for c := range out {
		out[c] = make([]int, 0, total)
	}
	return &audioSink{src: src, out: out}
}

// emit appends [Start-Lead, End+Trail) of every channel. The first Lead
// samples are blended with the last Lead samples already written.
func (s *audioSink) emit(k Keep) {
	clip := k.Clip()
	for c, ch := range s.src.Channels {
		s.out[c] = appendCrossfade(s.out[c], ch[clip.Start:clip.End], k.Lead)
	}
}

func (s *audioSink) finish(r *Result) {
	r.Audio = s.src.WithChannels(s.out)
}

// appendCrossfade appends next to acc, overlapping the tail of acc and the
// head of next by fade samples with a linear ramp.
func appendCrossfade(acc, next []int, fade int) []int {
	fade = min(fade, len(acc), len(next))
	if fade <= 0 {
		return append(acc, next...)
	}

	base := len(acc) - fade
	for i := 0; i < fade; i++ {
		w := (float64(i) + 0.5) / float64(fade)
		v := float64(acc[base+i])*(1-w) + float64(next[i])*w
		acc[base+i] = int(math.Round(v))
	}
	return append(acc, next[fade:]...)
}

// videoSink mirrors every keep as a second-valued cut placed at the middle
// of the adjoining fades.
type videoSink struct {
	src  VideoClip
	rate float64
	cuts []audio.Span
}

func newVideoSink(src VideoClip, sampleRate int) *videoSink {
	return &videoSink{src: src, rate: float64(sampleRate)}
}

func (s *videoSink) emit(k Keep) {
	limit := s.src.Duration()
	start := (float64(k.Start) - float64(k.Lead)/2) / s.rate
	end := (float64(k.End) + float64(k.Trail)/2) / s.rate
	s.cuts = append(s.cuts, audio.Span{
		Start: clamp(start, 0, limit),
		End:   clamp(end, 0, limit),
	})
}

func (s *videoSink) finish(r *Result) {
	r.Video = &VideoEdit{Source: s.src, Cuts: s.cuts}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}
