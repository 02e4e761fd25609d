// Package peakpicking selects the significant peaks of a total ion
// chromatogram with two detection passes: a first pass with a fixed
// smoothing window estimates the typical peak width, a second pass smooths
// with a window of that width, and only peaks well above the median height
// are kept.
package peakpicking

import (
	"errors"
	"sort"

	"github.com/524D/gcmscompare/internal/gsd"

	"gonum.org/v1/gonum/stat"
)

// DefaultHeightFilter is the default minimum ratio of a peak's height to
// the median candidate height
const DefaultHeightFilter = 2.0

const (
	explorationWindow = 5
	minWindow         = 5
	polynomial        = 2
	heightFactor      = 2
)

var (
	// ErrInsufficientSignal means a detection pass found no candidate peaks
	ErrInsufficientSignal = errors.New("peakpicking: no candidate peaks in signal")
	// ErrInvalidHeightFilter means the height filter is not a positive number
	ErrInvalidHeightFilter = errors.New("peakpicking: height filter must be positive")
)

// Detector is a single pass peak-shape detector.
type Detector interface {
	DetectPeaks(times, values []float64, opts gsd.Options) ([]gsd.Peak, error)
}

// DetectorFunc adapts a function to the Detector interface.
type DetectorFunc func(times, values []float64, opts gsd.Options) ([]gsd.Peak, error)

// DetectPeaks calls f.
func (f DetectorFunc) DetectPeaks(times, values []float64, opts gsd.Options) ([]gsd.Peak, error) {
	return f(times, values, opts)
}

// GSD is the default detector.
var GSD Detector = DetectorFunc(gsd.Detect)

// Report describes what the two passes did.
type Report struct {
	ExploratoryCandidates int
	Window                int // smoothing window of the refined pass
	RefinedCandidates     int
	MedianHeight          float64
	Retained              int
}

// Picker runs the two pass peak picking.
type Picker struct {
	Detector     Detector
	HeightFilter float64
}

// New returns a picker. A nil detector selects GSD.
func New(d Detector, heightFilter float64) *Picker {
	if d == nil {
		d = GSD
	}
	return &Picker{Detector: d, HeightFilter: heightFilter}
}

// Pick returns the retained peaks of the signal. The result is ordered by
// height, not by time.
func (p *Picker) Pick(times, tic []float64) ([]gsd.Peak, error) {
	peaks, _, err := p.PickWithReport(times, tic)
	return peaks, err
}

// PickWithReport is Pick that also reports the intermediate values.
func (p *Picker) PickWithReport(times, tic []float64) ([]gsd.Peak, Report, error) {
	var report Report
	if !(p.HeightFilter > 0) {
		return nil, report, ErrInvalidHeightFilter
	}

	candidates, err := p.Detector.DetectPeaks(times, tic, passOptions(explorationWindow))
	if err != nil {
		return nil, report, err
	}
	report.ExploratoryCandidates = len(candidates)
	if len(candidates) == 0 {
		return nil, report, ErrInsufficientSignal
	}
	widths := make([]int, len(candidates))
	for i, c := range candidates {
		widths[i] = c.Right.Index - c.Left.Index
	}
	report.Window = RefinedWindow(widths)

	refined, err := p.Detector.DetectPeaks(times, tic, passOptions(report.Window))
	if err != nil {
		return nil, report, err
	}
	report.RefinedCandidates = len(refined)
	if len(refined) == 0 {
		return nil, report, ErrInsufficientSignal
	}
	sort.SliceStable(refined, func(i, j int) bool { return refined[i].Height < refined[j].Height })
	heights := make([]float64, len(refined))
	for i, c := range refined {
		heights[i] = c.Height
	}
	report.MedianHeight = median(heights)

	limit := report.MedianHeight * p.HeightFilter
	var kept []gsd.Peak
	for _, c := range refined {
		if c.Height > limit {
			kept = append(kept, c)
		}
	}
	report.Retained = len(kept)
	return kept, report, nil
}

// RefinedWindow returns the smoothing window for the refined pass: the
// median candidate width, at least 5 and odd.
func RefinedWindow(widths []int) int {
	if len(widths) == 0 {
		return minWindow
	}
	sorted := make([]float64, len(widths))
	for i, w := range widths {
		sorted[i] = float64(w)
	}
	sort.Float64s(sorted)
	w := int(median(sorted))
	if w < minWindow {
		w = minWindow
	}
	if w%2 == 0 {
		w--
	}
	return w
}

// median returns the element at rank floor((n-1)/2) of the ascending
// values. The empirical quantile at 0.5 is exactly that element.
func median(sorted []float64) float64 {
	return stat.Quantile(0.5, stat.Empirical, sorted, nil)
}

func passOptions(window int) gsd.Options {
	opts := gsd.DefaultOptions()
	opts.NoiseLevel = 0
	opts.RealTopDetection = false
	opts.SmoothY = true
	opts.SGWindow = window
	opts.SGPolynomial = polynomial
	opts.HeightFactor = heightFactor
	opts.Boundaries = true
	return opts
}
