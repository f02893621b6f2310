package denoise

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// eps floors every denominator in the multiplicative updates and the mask.
const eps = 2.220446049250313e-16

// Divergence selects the NMF cost function.
type Divergence string

// Supported divergences.
const (
	KL        Divergence = "kl"
	Euclidean Divergence = "euc"
)

// ErrInvalidFactorization is returned for NMF inputs that cannot be factorized.
var ErrInvalidFactorization = errors.New("denoise: invalid factorization request")

// NMFOptions configures a factorization Y ~ HU.
type NMFOptions struct {
	// Rank is the number of bases (columns of H).
	Rank int
	// Iter is the number of multiplicative update rounds.
	Iter int
	// Divergence is KL or Euclidean.
	Divergence Divergence
	// Fixed, when set, is copied into the first columns of H and restored
	// after every H update.
	Fixed *mat.Dense
	// Rand draws the random initialization.
	Rand *rand.Rand
}

// Factorization is the result of NMF.
type Factorization struct {
	// H holds the bases, rows x Rank.
	H *mat.Dense
	// U holds the activations, Rank x cols.
	U *mat.Dense
	// Cost is the divergence measured before each update round.
	Cost []float64
}

// NMF factorizes the non-negative matrix y with multiplicative updates. The
// context is checked between update rounds.
func NMF(ctx context.Context, y *mat.Dense, opts NMFOptions) (*Factorization, error) {
	m, n := y.Dims()
	if opts.Rank <= 0 || opts.Iter < 0 {
		return nil, fmt.Errorf("%w: rank %d, iterations %d", ErrInvalidFactorization, opts.Rank, opts.Iter)
	}
	fixed := 0
	if opts.Fixed != nil {
		fr, fc := opts.Fixed.Dims()
		if fr != m || fc >= opts.Rank {
			return nil, fmt.Errorf("%w: fixed basis is %dx%d, want %dx(<%d)", ErrInvalidFactorization, fr, fc, m, opts.Rank)
		}
		fixed = fc
	}
	var update updateFunc
	switch opts.Divergence {
	case KL, "":
		update = klUpdate
	case Euclidean:
		update = euclideanUpdate
	default:
		return nil, fmt.Errorf("%w: unknown divergence %q", ErrInvalidFactorization, opts.Divergence)
	}

	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	h := randomDense(rng, m, opts.Rank)
	u := randomDense(rng, opts.Rank, n)
	pin := func() {}
	if fixed > 0 {
		pin = func() {
			h.Slice(0, m, 0, fixed).(*mat.Dense).Copy(opts.Fixed)
		}
		pin()
	}

	cost := make([]float64, 0, opts.Iter)
	var lam mat.Dense
	for i := 0; i < opts.Iter; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		lam.Mul(h, u)
		cost = append(cost, divergence(opts.Divergence, y, &lam))
		update(y, h, u, pin)
	}

	return &Factorization{H: h, U: u, Cost: cost}, nil
}

// updateFunc performs one round of H then U updates. pin runs between them.
type updateFunc func(y, h, u *mat.Dense, pin func())

// klUpdate applies the Kullback-Leibler multiplicative rules:
//
//	H <- H * ((Y/HU) U^T) / rowsum(U)
//	U <- U * (H^T (Y/HU)) / colsum(H)
func klUpdate(y, h, u *mat.Dense, pin func()) {
	var ratio, num mat.Dense

	quotient(&ratio, y, h, u)
	num.Mul(&ratio, u.T())
	rows := rowSums(u)
	h.Apply(func(i, k int, v float64) float64 {
		return v * num.At(i, k) / (rows[k] + eps)
	}, h)
	pin()

	quotient(&ratio, y, h, u)
	num.Reset()
	num.Mul(h.T(), &ratio)
	cols := colSums(h)
	u.Apply(func(k, j int, v float64) float64 {
		return v * num.At(k, j) / (cols[k] + eps)
	}, u)
}

// euclideanUpdate applies the squared-error multiplicative rules:
//
//	H <- H * (Y U^T) / (H U U^T)
//	U <- U * (H^T Y) / (H^T H U)
func euclideanUpdate(y, h, u *mat.Dense, pin func()) {
	var num, gram, den mat.Dense

	num.Mul(y, u.T())
	gram.Mul(u, u.T())
	den.Mul(h, &gram)
	h.Apply(func(i, k int, v float64) float64 {
		return v * num.At(i, k) / (den.At(i, k) + eps)
	}, h)
	pin()

	num.Reset()
	gram.Reset()
	den.Reset()
	num.Mul(h.T(), y)
	gram.Mul(h.T(), h)
	den.Mul(&gram, u)
	u.Apply(func(k, j int, v float64) float64 {
		return v * num.At(k, j) / (den.At(k, j) + eps)
	}, u)
}

// quotient stores Y / (HU + eps) in dst.
func quotient(dst, y, h, u *mat.Dense) {
	dst.Reset()
	dst.Mul(h, u)
	dst.Apply(func(i, j int, v float64) float64 {
		return y.At(i, j) / (v + eps)
	}, dst)
}

func rowSums(a *mat.Dense) []float64 {
	r, _ := a.Dims()
	out := make([]float64, r)
	for i := range out {
		out[i] = mat.Sum(a.RowView(i))
	}
	return out
}

func colSums(a *mat.Dense) []float64 {
	_, c := a.Dims()
	out := make([]float64, c)
	for j := range out {
		out[j] = mat.Sum(a.ColView(j))
	}
	return out
}

func randomDense(rng *rand.Rand, r, c int) *mat.Dense {
	data := make([]float64, r*c)
	for i := range data {
		data[i] = rng.Float64()
	}
	return mat.NewDense(r, c, data)
}

func divergence(d Divergence, y, lam *mat.Dense) float64 {
	m, n := y.Dims()
	var sum float64
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			yv, lv := y.At(i, j), lam.At(i, j)
			if d == Euclidean {
				diff := yv - lv
				sum += 0.5 * diff * diff
				continue
			}
			sum += yv*math.Log(math.Max(yv/(lv+eps), eps)) - yv + lv
		}
	}
	return sum
}
