package timeline

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/autocut/internal/audio"
)

type fakeVideo float64

func (v fakeVideo) Duration() float64 { return float64(v) }

func tone(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = int(math.Round(1000 * math.Cos(2*math.Pi*float64(i)/10)))
	}
	return out
}

func mustSignal(t *testing.T, rate int, channels ...[]int) *audio.Signal {
	t.Helper()
	s, err := audio.NewSignal(channels, rate, 16)
	require.NoError(t, err)
	return s
}

func TestStitch_NoDropsIsIdentity(t *testing.T) {
	src := mustSignal(t, 100, tone(1000), tone(1000))

	for _, drops := range [][]audio.Interval{
		nil,
		{},
		{{Start: 10, End: 10}},
		{{Start: 0, End: 1000}},
	} {
		res, err := Stitch(AudioOnly{Audio: src}, drops, 0.1)
		require.NoError(t, err)
		assert.Equal(t, 0, res.Edits)
		assert.Same(t, src, res.Audio)
		assert.Nil(t, res.Video)
		assert.Zero(t, res.Removed(src.Len()))
	}
}

func TestStitch_SingleGap(t *testing.T) {
	samples := tone(1000)
	for i := 300; i < 500; i++ {
		samples[i] = 0
	}
	src := mustSignal(t, 100, samples)

	res, err := Stitch(AudioOnly{Audio: src}, []audio.Interval{{Start: 300, End: 500}}, 0.1)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Edits)
	require.Len(t, res.Junctions, 1)
	assert.Equal(t, 10, res.Junctions[0].Crossfade)
	assert.Equal(t, audio.Interval{Start: 300, End: 500}, res.Junctions[0].Gap)
	assert.Equal(t, []Keep{
		{Interval: audio.Interval{Start: 0, End: 300}, Trail: 10},
		{Interval: audio.Interval{Start: 500, End: 1000}, Lead: 10},
	}, res.Keeps)

	out := res.Audio.Channels[0]
	require.Len(t, out, 810)
	assert.Equal(t, samples[:300], out[:300])
	assert.Equal(t, samples[500:], out[310:])
	for i := 300; i < 310; i++ {
		assert.Zero(t, out[i], "fade sample %d borrows only silent material", i)
	}
	assert.Equal(t, 200, res.Removed(src.Len()))
}

func TestStitch_FadeBlendsBothSides(t *testing.T) {
	samples := make([]int, 100)
	for i := range samples {
		samples[i] = 1000
	}
	src := mustSignal(t, 1000, samples)
	for i := 50; i < 100; i++ {
		src.Channels[0][i] = -1000
	}

	res, err := Stitch(AudioOnly{Audio: src}, []audio.Interval{{Start: 40, End: 60}}, 0.004)
	require.NoError(t, err)
	require.Equal(t, 4, res.Junctions[0].Crossfade)

	out := res.Audio.Channels[0]
	require.Len(t, out, 84)
	// Fade runs from the +1000 side of the gap to the -1000 side.
	assert.Equal(t, []int{750, 250, -250, -750}, out[40:44])
	for i := 1; i < 4; i++ {
		assert.Less(t, out[40+i], out[40+i-1])
	}
}

func TestStitch_AllChannelsEdited(t *testing.T) {
	a := tone(400)
	b := make([]int, 400)
	for i := range b {
		b[i] = -a[i]
	}
	src := mustSignal(t, 100, a, b)

	res, err := Stitch(AudioOnly{Audio: src}, []audio.Interval{{Start: 100, End: 200}}, 0.05)
	require.NoError(t, err)
	require.Equal(t, 2, res.Audio.NumChannels())
	for i := range res.Audio.Channels[0] {
		assert.Equal(t, -res.Audio.Channels[0][i], res.Audio.Channels[1][i])
	}
	assert.Equal(t, src.SampleRate, res.Audio.SampleRate)
	assert.Equal(t, src.BitDepth, res.Audio.BitDepth)
}

func TestStitch_LeadingAndTrailingDrops(t *testing.T) {
	src := mustSignal(t, 100, tone(1000))
	drops := []audio.Interval{{Start: 0, End: 100}, {Start: 400, End: 500}, {Start: 900, End: 1000}}

	res, err := Stitch(AudioOnly{Audio: src}, drops, 0.1)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Edits)
	require.Len(t, res.Keeps, 2)
	assert.Equal(t, audio.Interval{Start: 100, End: 400}, res.Keeps[0].Interval)
	assert.Equal(t, audio.Interval{Start: 500, End: 900}, res.Keeps[1].Interval)
	assert.Zero(t, res.Keeps[0].Lead, "no fade before the first keep")
	assert.Zero(t, res.Keeps[1].Trail, "no fade after the last keep")
	assert.Len(t, res.Audio.Channels[0], 300+400+10)
}

func TestStitch_AdjacentDropsShareOneJunction(t *testing.T) {
	src := mustSignal(t, 100, tone(1000))
	drops := []audio.Interval{{Start: 200, End: 300}, {Start: 300, End: 400}}

	res, err := Stitch(AudioOnly{Audio: src}, drops, 0.1)
	require.NoError(t, err)
	require.Len(t, res.Junctions, 1)
	assert.Equal(t, audio.Interval{Start: 200, End: 400}, res.Junctions[0].Gap)
}

func TestStitch_EveryKeepDropped(t *testing.T) {
	src := mustSignal(t, 100, tone(100))
	res, err := Stitch(AudioOnly{Audio: src}, []audio.Interval{{Start: 0, End: 50}, {Start: 50, End: 100}}, 0.1)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Edits)
	assert.Same(t, src, res.Audio)
}

func TestStitch_Validation(t *testing.T) {
	src := mustSignal(t, 100, tone(100))

	tests := []struct {
		name    string
		drops   []audio.Interval
		cf      float64
		wantErr error
	}{
		{"out of range", []audio.Interval{{Start: 90, End: 120}}, 0.1, ErrInvalidInterval},
		{"negative start", []audio.Interval{{Start: -1, End: 5}}, 0.1, ErrInvalidInterval},
		{"inverted", []audio.Interval{{Start: 10, End: 5}}, 0.1, ErrInvalidInterval},
		{"overlap", []audio.Interval{{Start: 10, End: 30}, {Start: 20, End: 40}}, 0.1, ErrInvalidInterval},
		{"unsorted", []audio.Interval{{Start: 50, End: 60}, {Start: 10, End: 20}}, 0.1, ErrInvalidInterval},
		{"negative crossfade", nil, -0.1, ErrInvalidCrossfade},
		{"nan crossfade", nil, math.NaN(), ErrInvalidCrossfade},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Stitch(AudioOnly{Audio: src}, tt.drops, tt.cf)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err := Stitch(AudioOnly{}, nil, 0.1)
	assert.ErrorIs(t, err, ErrNoTrack)
}

func TestStitch_CrossfadeSafety(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	const n = 20000
	src := mustSignal(t, 8000, tone(n))

	for round := 0; round < 50; round++ {
		var drops []audio.Interval
		pos := rng.IntN(50)
		for pos < n {
			length := 1 + rng.IntN(400)
			end := min(pos+length, n)
			drops = append(drops, audio.Interval{Start: pos, End: end})
			pos = end + 1 + rng.IntN(600)
		}

		requested := 0.002 + rng.Float64()*0.05
		res, err := Stitch(AudioOnly{Audio: src}, drops, requested)
		require.NoError(t, err)
		if res.Edits == 0 {
			continue
		}

		reqSamples := int(math.Round(requested * 8000))
		want := 0
		for _, k := range res.Keeps {
			want += k.Len() + k.Trail
			assert.LessOrEqual(t, k.Lead+k.Trail, k.Len())
		}
		assert.Len(t, res.Audio.Channels[0], want)

		for _, j := range res.Junctions {
			left, right := res.Keeps[j.Left], res.Keeps[j.Right]
			assert.GreaterOrEqual(t, j.Crossfade, 0)
			assert.LessOrEqual(t, j.Crossfade, reqSamples)
			assert.LessOrEqual(t, j.Crossfade, left.Len()/2)
			assert.LessOrEqual(t, j.Crossfade, right.Len()/2)
			assert.LessOrEqual(t, 2*j.Crossfade, j.Gap.Len())
			assert.True(t, j.Crossfade == 0 || j.Crossfade >= 8, "fades under 1ms are dropped")
			assert.True(t, left.Clip().Within(n))
			assert.True(t, right.Clip().Within(n))
		}
	}
}

func TestStitch_VideoFollowsAudio(t *testing.T) {
	src := mustSignal(t, 100, tone(1000))
	video := fakeVideo(10)
	drops := []audio.Interval{{Start: 200, End: 300}, {Start: 600, End: 700}}

	res, err := Stitch(AudioWithVideo{Audio: src, Video: video}, drops, 0.1)
	require.NoError(t, err)
	require.NotNil(t, res.Video)
	assert.Equal(t, video, res.Video.Source)

	require.Len(t, res.Video.Cuts, 3)
	assert.InDelta(t, 0.0, res.Video.Cuts[0].Start, 1e-9)
	assert.InDelta(t, 2.05, res.Video.Cuts[0].End, 1e-9)
	assert.InDelta(t, 2.95, res.Video.Cuts[1].Start, 1e-9)
	assert.InDelta(t, 6.05, res.Video.Cuts[1].End, 1e-9)
	assert.InDelta(t, 6.95, res.Video.Cuts[2].Start, 1e-9)
	assert.InDelta(t, 10.0, res.Video.Cuts[2].End, 1e-9)

	assert.InDelta(t, res.Audio.Duration(), res.Video.Duration(), 1e-9)
}

func TestStitch_VideoCutsClampedToClip(t *testing.T) {
	src := mustSignal(t, 100, tone(1000))

	res, err := Stitch(AudioWithVideo{Audio: src, Video: fakeVideo(9.5)}, []audio.Interval{{Start: 400, End: 500}}, 0.1)
	require.NoError(t, err)
	for _, c := range res.Video.Cuts {
		assert.GreaterOrEqual(t, c.Start, 0.0)
		assert.LessOrEqual(t, c.End, 9.5)
	}
}

func TestPlanner_Step(t *testing.T) {
	p := planner{total: 1000, requested: 10, floor: 1}

	st, keeps, j := p.step(state{last: -1}, nil, audio.Interval{Start: 0, End: 100})
	assert.Nil(t, j)
	assert.Equal(t, state{prevKeepEnd: 100, last: 0}, st)

	st, keeps, j = p.step(st, keeps, audio.Interval{Start: 104, End: 200})
	require.NotNil(t, j)
	assert.Equal(t, 2, j.Crossfade, "half the 4-sample gap")
	assert.Equal(t, 2, keeps[0].Trail)
	assert.Equal(t, 2, keeps[1].Lead)
	assert.Equal(t, 2, st.prevCF)

	unchanged, same, j := p.step(st, keeps, audio.Interval{Start: 300, End: 300})
	assert.Nil(t, j)
	assert.Equal(t, st, unchanged)
	assert.Len(t, same, 2)
}

func TestPlanner_Crossfade(t *testing.T) {
	p := planner{requested: 100, floor: 5}

	assert.Equal(t, 100, p.crossfade(1000, 1000, 1000, 0))
	assert.Equal(t, 30, p.crossfade(60, 1000, 1000, 0), "gap bound")
	assert.Equal(t, 20, p.crossfade(1000, 40, 1000, 0), "left keep bound")
	assert.Equal(t, 25, p.crossfade(1000, 1000, 50, 0), "right keep bound")
	assert.Equal(t, 0, p.crossfade(8, 1000, 1000, 0), "below floor")
	assert.Equal(t, 0, p.crossfade(1000, 1000, 1000, 2000), "left keep used up")
}

func TestAppendCrossfade(t *testing.T) {
	assert.Equal(t, []int{1, 2, 3, 4}, appendCrossfade([]int{1, 2}, []int{3, 4}, 0))
	assert.Equal(t, []int{1, 5, 5}, appendCrossfade([]int{1, 5}, []int{5, 5}, 1))
	assert.Equal(t, []int{7}, appendCrossfade(nil, []int{7}, 3))
}
