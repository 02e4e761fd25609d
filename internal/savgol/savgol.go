// Package savgol implements Savitzky-Golay smoothing and differentiation.
//
// Each output point is the value (or derivative) at that point of the least
// squares polynomial fitted to the window around it. Near the edges the
// window is not centered: the first and last windows of the signal are
// used and the polynomial is evaluated off-center.
package savgol

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrWindow means the window is even, shorter than the polynomial needs
	// or longer than the signal
	ErrWindow = errors.New("savgol: invalid window size")
	// ErrPolynomial means the polynomial or derivative order is invalid
	ErrPolynomial = errors.New("savgol: invalid polynomial or derivative order")
	// ErrSpacing means a derivative was asked for with a non-positive sample spacing
	ErrSpacing = errors.New("savgol: sample spacing must be positive")
)

// Options selects the filter
type Options struct {
	Window     int // odd number of points in the window
	Polynomial int // order of the fitted polynomial
	Derivative int // 0 smooths, 1 and 2 give first and second derivative
}

// Filter applies the filter to y, sampled with spacing h.
func Filter(y []float64, h float64, opts Options) ([]float64, error) {
	n := len(y)
	w := opts.Window
	if opts.Polynomial < 0 || opts.Derivative < 0 || opts.Derivative > opts.Polynomial {
		return nil, ErrPolynomial
	}
	if w%2 == 0 || w <= opts.Polynomial || w > n {
		return nil, ErrWindow
	}
	if opts.Derivative > 0 && !(h > 0) {
		return nil, ErrSpacing
	}

	m := w / 2
	out := make([]float64, n)

	center, err := coefficients(w, opts.Polynomial, opts.Derivative, 0)
	if err != nil {
		return nil, err
	}
	for i := m; i < n-m; i++ {
		out[i] = floats.Dot(center, y[i-m:i+m+1])
	}
	for i := 0; i < m; i++ {
		c, err := coefficients(w, opts.Polynomial, opts.Derivative, i-m)
		if err != nil {
			return nil, err
		}
		out[i] = floats.Dot(c, y[:w])
	}
	for i := n - m; i < n; i++ {
		c, err := coefficients(w, opts.Polynomial, opts.Derivative, i-(n-1-m))
		if err != nil {
			return nil, err
		}
		out[i] = floats.Dot(c, y[n-w:])
	}

	if opts.Derivative > 0 {
		floats.Scale(1/math.Pow(h, float64(opts.Derivative)), out)
	}
	return out, nil
}

// coefficients returns the weights that, applied to a window of the given
// size, give the derivative of the fitted polynomial at offset t from the
// window center.
//
// With J the Vandermonde matrix of the window offsets, the fit is
// a = (J'J)^-1 J'y and the derivative at t is v'a, so the weights are
// J (J'J)^-1 v.
func coefficients(window, polynomial, derivative, t int) ([]float64, error) {
	m := window / 2
	j := mat.NewDense(window, polynomial+1, nil)
	for i := 0; i < window; i++ {
		x := float64(i - m)
		p := 1.0
		for k := 0; k <= polynomial; k++ {
			j.Set(i, k, p)
			p *= x
		}
	}

	v := mat.NewVecDense(polynomial+1, nil)
	for k := derivative; k <= polynomial; k++ {
		f := 1.0
		for d := 0; d < derivative; d++ {
			f *= float64(k - d)
		}
		v.SetVec(k, f*math.Pow(float64(t), float64(k-derivative)))
	}

	var jtj mat.Dense
	jtj.Mul(j.T(), j)
	var z mat.VecDense
	if err := z.SolveVec(&jtj, v); err != nil {
		return nil, err
	}
	var c mat.VecDense
	c.MulVec(j, &z)
	return mat.Col(nil, 0, &c), nil
}
