// Package gsd finds peaks in a sampled signal using the Global Spectral
// Deconvolution approach: the signal is smoothed and differentiated with a
// Savitzky-Golay filter, the inflection points bound each peak and the
// minima of the second derivative mark the apexes.
package gsd

import (
	"errors"
	"math"

	"github.com/524D/gcmscompare/internal/savgol"

	"gonum.org/v1/gonum/floats"
)

var (
	// ErrLengthMismatch means x and y differ in length
	ErrLengthMismatch = errors.New("gsd: x and y must have the same length")
	// ErrTooShort means the signal is shorter than the smoothing window
	ErrTooShort = errors.New("gsd: signal shorter than smoothing window")
)

// Boundary is a peak limit on the x axis
type Boundary struct {
	Index int
	X     float64
}

// Peak is a detected peak. Index is the apex position in the signal.
type Peak struct {
	Index  int
	X      float64 // x of the apex
	Y      float64 // signal at the apex
	Width  float64 // distance between the boundaries on the x axis
	Height float64
	Left   Boundary
	Right  Boundary
}

// Options controls the detection
type Options struct {
	NoiseLevel       float64 // apexes below this signal value are ignored
	RealTopDetection bool    // refine the apex on the raw signal
	SmoothY          bool    // look for apexes on the smoothed signal
	SGWindow         int
	SGPolynomial     int
	// HeightFactor scales the apex height above the mean of the boundary
	// values. When 0, Height is the apex value.
	HeightFactor float64
	Boundaries   bool
	// MinMaxRatio drops apexes lower than this fraction of the signal maximum
	MinMaxRatio float64
}

// DefaultOptions returns the options used for chromatographic peaks
func DefaultOptions() Options {
	return Options{
		SmoothY:      true,
		SGWindow:     5,
		SGPolynomial: 2,
		Boundaries:   true,
		MinMaxRatio:  0.00025,
	}
}

type interval struct {
	left, right Boundary
}

func (iv interval) contains(x float64) bool {
	mid := (iv.left.X + iv.right.X) / 2
	return math.Abs(x-mid) < (iv.right.X-iv.left.X)/2
}

// Detect returns the peaks of y sampled at x, in order of x. x should be
// (close to) equally spaced.
func Detect(x, y []float64, opts Options) ([]Peak, error) {
	n := len(y)
	if len(x) != n {
		return nil, ErrLengthMismatch
	}
	if n < opts.SGWindow || n < 3 {
		return nil, ErrTooShort
	}
	h := (x[n-1] - x[0]) / float64(n-1)

	sg := savgol.Options{Window: opts.SGWindow, Polynomial: opts.SGPolynomial}
	ys := y
	if opts.SmoothY {
		var err error
		if ys, err = savgol.Filter(y, h, sg); err != nil {
			return nil, err
		}
	}
	sg.Derivative = 1
	dy, err := savgol.Filter(y, h, sg)
	if err != nil {
		return nil, err
	}
	sg.Derivative = 2
	ddy, err := savgol.Filter(y, h, sg)
	if err != nil {
		return nil, err
	}

	maxY := math.Abs(floats.Max(ys))
	if minY := math.Abs(floats.Min(ys)); minY > maxY {
		maxY = minY
	}

	// Inflection points: a maximum of the first derivative opens a peak,
	// the next minimum closes it.
	var intervals []interval
	var open *Boundary
	var apexes []int
	for i := 1; i < n-1; i++ {
		if (dy[i] > dy[i-1] && dy[i] >= dy[i+1]) || (dy[i] >= dy[i-1] && dy[i] > dy[i+1]) {
			open = &Boundary{Index: i, X: x[i]}
		}
		if (dy[i] < dy[i-1] && dy[i] <= dy[i+1]) || (dy[i] <= dy[i-1] && dy[i] < dy[i+1]) {
			if open != nil {
				intervals = append(intervals, interval{left: *open, right: Boundary{Index: i, X: x[i]}})
				open = nil
			}
		}
		if ddy[i] < ddy[i-1] && ddy[i] < ddy[i+1] && ys[i] >= opts.NoiseLevel {
			apexes = append(apexes, i)
		}
	}

	var peaks []Peak
	lastK := -1
	for _, idx := range apexes {
		possible := -1
		for k := lastK + 1; k < len(intervals); k++ {
			if intervals[k].contains(x[idx]) {
				possible = k
				break
			}
		}
		if possible == -1 {
			continue
		}
		lastK = possible
		if math.Abs(ys[idx]) <= opts.MinMaxRatio*maxY {
			continue
		}
		iv := intervals[possible]
		p := Peak{
			Index: idx,
			X:     x[idx],
			Y:     ys[idx],
			Width: math.Abs(iv.right.X - iv.left.X),
		}
		if opts.RealTopDetection {
			p.X, p.Y = realTop(x, y, idx, h)
		}
		if opts.Boundaries {
			p.Left = iv.left
			p.Right = iv.right
		}
		if opts.HeightFactor != 0 {
			base := (ys[iv.left.Index] + ys[iv.right.Index]) / 2
			p.Height = opts.HeightFactor * (p.Y - base)
		} else {
			p.Height = p.Y
		}
		peaks = append(peaks, p)
	}
	return peaks, nil
}

// realTop fits a parabola through the raw apex and its neighbours and
// returns the position and value of its vertex.
func realTop(x, y []float64, idx int, h float64) (float64, float64) {
	if idx == 0 || idx == len(y)-1 {
		return x[idx], y[idx]
	}
	a, b, c := y[idx-1], y[idx], y[idx+1]
	den := a - 2*b + c
	if den >= 0 {
		return x[idx], b
	}
	delta := 0.5 * (a - c) / den
	if math.Abs(delta) > 1 {
		return x[idx], b
	}
	return x[idx] + delta*h, b - 0.25*(a-c)*delta
}
