package denoise

import (
	"context"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/maauso/autocut/internal/audio"
)

func sine(n int, freq, rate, amp float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/rate)
	}
	return out
}

func whiteNoise(seed uint64, n int, amp float64) []float64 {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * (2*rng.Float64() - 1)
	}
	return out
}

func smallParams() Params {
	return Params{
		BasisNoiseNum:  4,
		BasisNum:       4,
		NMFIter:        30,
		Divergence:     KL,
		NormalizeScale: 1,
		FFTSize:        256,
		HopSize:        64,
		Seed:           42,
	}
}

func TestSTFT_RoundTrip(t *testing.T) {
	x := whiteNoise(1, 3000, 1)

	for _, cfg := range []struct{ size, hop int }{{256, 64}, {512, 128}, {64, 32}} {
		s, err := NewSTFT(cfg.size, cfg.hop)
		require.NoError(t, err)

		spectrum := s.Forward(x)
		assert.Equal(t, cfg.size/2+1, spectrum.Bins())
		assert.Equal(t, 1+len(x)/cfg.hop, len(spectrum.Frames))

		y := s.Inverse(spectrum, len(x))
		require.Len(t, y, len(x))
		for i := range x {
			require.InDelta(t, x[i], y[i], 1e-9, "sample %d", i)
		}
	}
}

func TestSTFT_ShortSignal(t *testing.T) {
	s, err := NewSTFT(256, 64)
	require.NoError(t, err)

	x := []float64{0.5, -0.25, 0.125}
	y := s.Inverse(s.Forward(x), len(x))
	assert.InDeltaSlice(t, x, y, 1e-9)
}

func TestNewSTFT_Invalid(t *testing.T) {
	for _, cfg := range []struct{ size, hop int }{{0, 1}, {255, 64}, {256, 0}, {256, 200}} {
		_, err := NewSTFT(cfg.size, cfg.hop)
		assert.ErrorIs(t, err, ErrInvalidFrame, "size %d hop %d", cfg.size, cfg.hop)
	}
}

func lowRank(t *testing.T) *mat.Dense {
	t.Helper()
	rng := rand.New(rand.NewPCG(9, 9))
	h := randomDense(rng, 30, 3)
	u := randomDense(rng, 3, 40)
	var y mat.Dense
	y.Mul(h, u)
	return &y
}

func TestNMF_CostDecreases(t *testing.T) {
	y := lowRank(t)

	for _, d := range []Divergence{KL, Euclidean} {
		f, err := NMF(context.Background(), y, NMFOptions{
			Rank:       3,
			Iter:       100,
			Divergence: d,
			Rand:       rand.New(rand.NewPCG(1, 1)),
		})
		require.NoError(t, err)
		require.Len(t, f.Cost, 100)
		assert.Less(t, f.Cost[99], f.Cost[0]*0.5, "divergence %s", d)

		for i := 1; i < len(f.Cost); i++ {
			assert.LessOrEqual(t, f.Cost[i], f.Cost[i-1]*(1+1e-6), "divergence %s iteration %d", d, i)
		}

		r, c := f.H.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				assert.GreaterOrEqual(t, f.H.At(i, j), 0.0)
			}
		}
	}
}

func TestNMF_FixedColumnsArePinned(t *testing.T) {
	y := lowRank(t)
	fixed := randomDense(rand.New(rand.NewPCG(5, 5)), 30, 2)

	f, err := NMF(context.Background(), y, NMFOptions{
		Rank:  5,
		Iter:  20,
		Fixed: fixed,
		Rand:  rand.New(rand.NewPCG(2, 2)),
	})
	require.NoError(t, err)
	assert.True(t, mat.Equal(fixed, f.H.Slice(0, 30, 0, 2)))
}

func TestNMF_Seeded(t *testing.T) {
	y := lowRank(t)
	run := func() *Factorization {
		f, err := NMF(context.Background(), y, NMFOptions{Rank: 3, Iter: 10, Rand: rand.New(rand.NewPCG(7, 7))})
		require.NoError(t, err)
		return f
	}
	a, b := run(), run()
	assert.True(t, mat.Equal(a.H, b.H))
	assert.True(t, mat.Equal(a.U, b.U))
}

func TestNMF_Invalid(t *testing.T) {
	y := lowRank(t)
	ctx := context.Background()

	_, err := NMF(ctx, y, NMFOptions{Rank: 0, Iter: 1})
	assert.ErrorIs(t, err, ErrInvalidFactorization)

	_, err = NMF(ctx, y, NMFOptions{Rank: 3, Iter: 1, Divergence: "is"})
	assert.ErrorIs(t, err, ErrInvalidFactorization)

	_, err = NMF(ctx, y, NMFOptions{Rank: 2, Iter: 1, Fixed: mat.NewDense(30, 2, nil)})
	assert.ErrorIs(t, err, ErrInvalidFactorization)
}

func TestNMF_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NMF(ctx, lowRank(t), NMFOptions{Rank: 3, Iter: 5})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFilter_SineInNoise(t *testing.T) {
	const n = 8000
	clean := sine(n, 440, 8000, 1)
	noise := whiteNoise(3, n, 0.3)
	reference := whiteNoise(4, 2000, 0.3)

	noisy := make([]float64, n)
	for i := range noisy {
		noisy[i] = clean[i] + noise[i]
	}

	out, err := Filter(context.Background(), noisy, reference, smallParams())
	require.NoError(t, err)
	require.Len(t, out, n)

	withClean := stat.Correlation(out, clean, nil)
	withNoise := stat.Correlation(out, noise, nil)
	assert.Greater(t, withClean, withNoise)
	assert.Greater(t, withClean, 0.7)
	assert.InDelta(t, peak(noisy), peak(out), 1e-9)
}

func TestFilter_NormalizeScale(t *testing.T) {
	x := sine(2000, 300, 8000, 0.5)
	for i, v := range whiteNoise(8, 2000, 0.05) {
		x[i] += v
	}
	p := smallParams()
	p.NormalizeScale = 0.5

	out, err := Filter(context.Background(), x, whiteNoise(9, 1000, 0.05), p)
	require.NoError(t, err)
	assert.InDelta(t, 0.5*peak(x), peak(out), 1e-9)
}

func TestFilter_Errors(t *testing.T) {
	ctx := context.Background()
	x := sine(1000, 100, 8000, 1)

	_, err := Filter(ctx, x, nil, smallParams())
	assert.ErrorIs(t, err, ErrInvalidReference)

	bad := smallParams()
	bad.BasisNum = 0
	_, err = Filter(ctx, x, x[:100], bad)
	assert.ErrorIs(t, err, ErrInvalidParams)

	bad = smallParams()
	bad.Divergence = "is"
	_, err = Filter(ctx, x, x[:100], bad)
	assert.ErrorIs(t, err, ErrInvalidParams)

	bad = smallParams()
	bad.HopSize = 512
	_, err = Filter(ctx, x, x[:100], bad)
	assert.ErrorIs(t, err, ErrInvalidParams)

	for _, w := range []audio.Interval{{Start: 10, End: 10}, {Start: 900, End: 1100}} {
		_, err = FilterWindow(ctx, x, w, smallParams())
		assert.ErrorIs(t, err, ErrInvalidReference)
	}

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	_, err = Filter(cctx, x, x[:200], smallParams())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDefaultParams_Valid(t *testing.T) {
	assert.NoError(t, DefaultParams().Validate())
}

// quietGap is a loud tone with a low-level stretch at [4000, 6000).
func quietGap() []float64 {
	x := sine(10000, 200, 8000, 1)
	for i := 4000; i < 6000; i++ {
		x[i] *= 0.001
	}
	return x
}

func TestSelectReference_FindsQuietStretch(t *testing.T) {
	x := quietGap()
	var calls []audio.Interval
	refine := func(_ context.Context, w audio.Interval) ([]float64, error) {
		calls = append(calls, w)
		return x, nil
	}

	ref, out, err := SelectReference(context.Background(), x, Search{
		CutoffRatio:      0.1,
		MinSamples:       500,
		MaxIntervalRatio: 0.5,
		NIter:            2,
	}, refine)
	require.NoError(t, err)
	require.NotNil(t, ref)
	assert.Len(t, calls, 2)
	assert.GreaterOrEqual(t, ref.Start, 3990)
	assert.LessOrEqual(t, ref.End, 6010)
	assert.GreaterOrEqual(t, ref.Len(), 500)
	assert.Equal(t, x, out)
}

func TestSelectReference_RatioBumpsTerminate(t *testing.T) {
	// No run can reach MinSamples, so every round only raises the ratio.
	x := sine(4000, 200, 8000, 1)

	calls := 0
	refine := func(_ context.Context, _ audio.Interval) ([]float64, error) {
		calls++
		return x, nil
	}

	ref, out, err := SelectReference(context.Background(), x, Search{
		CutoffRatio:      0.5,
		MinSamples:       100000,
		MaxIntervalRatio: 0.15,
		NIter:            3,
	}, refine)
	require.NoError(t, err)
	assert.Nil(t, ref)
	assert.Nil(t, out)
	assert.Zero(t, calls)
}

func TestSelectReference_LongCandidateStopsSearch(t *testing.T) {
	x := quietGap()
	silent := make([]float64, len(x))

	var calls []audio.Interval
	refine := func(_ context.Context, w audio.Interval) ([]float64, error) {
		calls = append(calls, w)
		// The refined signal is all silence, so the next candidate spans
		// the whole file and must be rejected.
		return silent, nil
	}

	ref, out, err := SelectReference(context.Background(), x, Search{
		CutoffRatio:      0.1,
		MinSamples:       500,
		MaxIntervalRatio: 0.3,
		NIter:            3,
	}, refine)
	require.NoError(t, err)
	require.NotNil(t, ref)
	require.Len(t, calls, 1)
	assert.Equal(t, calls[0], *ref)
	assert.Equal(t, silent, out)
}

func TestSelectReference_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := SelectReference(ctx, quietGap(), Search{CutoffRatio: 0.1, MinSamples: 10, MaxIntervalRatio: 0.5, NIter: 1},
		func(context.Context, audio.Interval) ([]float64, error) { return nil, nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSelectReference_InvalidSearch(t *testing.T) {
	_, _, err := SelectReference(context.Background(), quietGap(), Search{CutoffRatio: 2, MinSamples: 10, MaxIntervalRatio: 0.5, NIter: 1}, nil)
	assert.ErrorIs(t, err, ErrInvalidParams)
}
