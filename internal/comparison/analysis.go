package comparison

import (
	"github.com/524D/gcmscompare/internal/chromatogram"
	"github.com/524D/gcmscompare/internal/gsd"
	"github.com/524D/gcmscompare/internal/peakpicking"
	"github.com/524D/gcmscompare/internal/spectra"
)

// SignalAnalysis holds the numeric primitives a comparison is built from.
// Implementations must be safe for concurrent use.
type SignalAnalysis interface {
	peakpicking.Detector
	IntegrateMass(peaks []gsd.Peak, ms []chromatogram.Spectrum, opts spectra.IntegrateOptions) ([]chromatogram.Spectrum, error)
	BuildFingerprint(integrated []chromatogram.Spectrum, opts spectra.VectorOptions) ([]spectra.Vector, error)
	CosineSimilarity(xA, yA, xB, yB []float64) float64
}

// DefaultAnalysis detects peaks with GSD and compares spectra by the cosine
// of their weighted nominal mass vectors.
var DefaultAnalysis SignalAnalysis = defaultAnalysis{}

type defaultAnalysis struct{}

func (defaultAnalysis) DetectPeaks(times, values []float64, opts gsd.Options) ([]gsd.Peak, error) {
	return gsd.Detect(times, values, opts)
}

func (defaultAnalysis) IntegrateMass(peaks []gsd.Peak, ms []chromatogram.Spectrum, opts spectra.IntegrateOptions) ([]chromatogram.Spectrum, error) {
	return spectra.Integrate(peaks, ms, opts)
}

func (defaultAnalysis) BuildFingerprint(integrated []chromatogram.Spectrum, opts spectra.VectorOptions) ([]spectra.Vector, error) {
	return spectra.Vectorize(integrated, opts)
}

func (defaultAnalysis) CosineSimilarity(xA, yA, xB, yB []float64) float64 {
	return spectra.Cosine(xA, yA, xB, yB)
}
