package comparison

import (
	"github.com/524D/gcmscompare/internal/peakpicking"
	"github.com/524D/gcmscompare/internal/spectra"
)

// Options controls a comparison. The zero value is not useful, start from
// DefaultOptions.
type Options struct {
	// ThresholdFactor drops integrated masses at or below this fraction of
	// the most intense mass of the peak. 0 disables the filter.
	ThresholdFactor float64
	// MaxNumberPeaks keeps this many of the most intense integrated masses
	// per peak. 0 keeps all.
	MaxNumberPeaks int
	// GroupWidth keeps only the local maximum among integrated masses
	// closer than this. 0 disables the filter.
	GroupWidth float64
	// HeightFilter is the minimum ratio of a peak's height to the median
	// candidate height
	HeightFilter float64
	MassPower    float64
	IntPower     float64
	// SimilarityThreshold is the cosine similarity a pair must exceed
	SimilarityThreshold float64
	// Workers is the number of goroutines that compute similarities
	Workers int
}

// DefaultOptions returns the default comparison options
func DefaultOptions() Options {
	return Options{
		HeightFilter:        peakpicking.DefaultHeightFilter,
		MassPower:           3,
		IntPower:            0.6,
		SimilarityThreshold: 0.7,
		Workers:             1,
	}
}

func (o Options) integrateOptions() spectra.IntegrateOptions {
	return spectra.IntegrateOptions{
		ThresholdFactor: o.ThresholdFactor,
		MaxNumberPeaks:  o.MaxNumberPeaks,
		GroupWidth:      o.GroupWidth,
	}
}

func (o Options) vectorOptions() spectra.VectorOptions {
	return spectra.VectorOptions{MassPower: o.MassPower, IntPower: o.IntPower}
}
