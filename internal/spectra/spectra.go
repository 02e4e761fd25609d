// Package spectra turns the mass spectra under a chromatographic peak into a
// fingerprint that can be compared between runs.
package spectra

import (
	"errors"
	"math"
	"sort"

	"github.com/524D/gcmscompare/internal/chromatogram"
	"github.com/524D/gcmscompare/internal/gsd"

	"gonum.org/v1/gonum/floats"
)

var (
	// ErrPeakRange means a peak's boundaries do not lie inside the MS series
	ErrPeakRange = errors.New("spectra: peak boundaries outside mass spectrum series")
	// ErrNegativeIntensity means a fingerprint was requested for a negative intensity
	ErrNegativeIntensity = errors.New("spectra: negative intensity")
	// ErrLengthMismatch means mass and intensity coordinates differ in length
	ErrLengthMismatch = errors.New("spectra: coordinate lengths differ")
)

// IntegrateOptions filters the integrated spectrum of each peak. The zero
// value only drops masses without intensity.
type IntegrateOptions struct {
	// ThresholdFactor drops masses at or below this fraction of the most
	// intense mass
	ThresholdFactor float64
	// MaxNumberPeaks keeps only the most intense masses. 0 keeps all.
	MaxNumberPeaks int
	// GroupWidth keeps only the most intense mass among masses closer
	// than this
	GroupWidth float64
}

// Integrate sums, for every peak, the intensities of the MS series between
// the peak boundaries (inclusive) per nominal mass. The result is aligned
// with peaks and each spectrum is in ascending mass order.
func Integrate(peaks []gsd.Peak, ms []chromatogram.Spectrum, opts IntegrateOptions) ([]chromatogram.Spectrum, error) {
	out := make([]chromatogram.Spectrum, len(peaks))
	for i, p := range peaks {
		if p.Left.Index < 0 || p.Right.Index >= len(ms) || p.Left.Index > p.Right.Index {
			return nil, ErrPeakRange
		}
		sum := make(map[float64]float64)
		for _, s := range ms[p.Left.Index : p.Right.Index+1] {
			if len(s.Mass) != len(s.Intensity) {
				return nil, ErrLengthMismatch
			}
			for k, m := range s.Mass {
				sum[math.Round(m)] += s.Intensity[k]
			}
		}
		list := make([]massIntensity, 0, len(sum))
		for m, v := range sum {
			list = append(list, massIntensity{m, v})
		}
		out[i] = filter(list, opts)
	}
	return out, nil
}

type massIntensity struct {
	mass, intensity float64
}

func filter(list []massIntensity, opts IntegrateOptions) chromatogram.Spectrum {
	top := math.Inf(-1)
	for _, mi := range list {
		top = math.Max(top, mi.intensity)
	}
	threshold := opts.ThresholdFactor * top
	kept := list[:0]
	for _, mi := range list {
		if mi.intensity > threshold {
			kept = append(kept, mi)
		}
	}

	if opts.GroupWidth > 0 || (opts.MaxNumberPeaks > 0 && len(kept) > opts.MaxNumberPeaks) {
		sort.Slice(kept, func(i, j int) bool {
			if kept[i].intensity != kept[j].intensity {
				return kept[i].intensity > kept[j].intensity
			}
			return kept[i].mass < kept[j].mass
		})
		if opts.GroupWidth > 0 {
			kept = localMaxima(kept, opts.GroupWidth)
		}
		if opts.MaxNumberPeaks > 0 && len(kept) > opts.MaxNumberPeaks {
			kept = kept[:opts.MaxNumberPeaks]
		}
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].mass < kept[j].mass })

	s := chromatogram.Spectrum{
		Mass:      make([]float64, len(kept)),
		Intensity: make([]float64, len(kept)),
	}
	for i, mi := range kept {
		s.Mass[i] = mi.mass
		s.Intensity[i] = mi.intensity
	}
	return s
}

// localMaxima walks list from most to least intense and drops every mass
// closer than width to a mass already kept.
func localMaxima(list []massIntensity, width float64) []massIntensity {
	var kept []massIntensity
next:
	for _, mi := range list {
		for _, k := range kept {
			if math.Abs(mi.mass-k.mass) < width {
				continue next
			}
		}
		kept = append(kept, mi)
	}
	return kept
}

// VectorOptions sets the exponents of the fingerprint weighting
type VectorOptions struct {
	MassPower float64
	IntPower  float64
}

// Vector is a fingerprint: X holds the masses in ascending order, Y the
// weighted intensities.
type Vector struct {
	X []float64
	Y []float64
}

// Vectorize weights every integrated spectrum as
// mass^MassPower * intensity^IntPower.
func Vectorize(integrated []chromatogram.Spectrum, opts VectorOptions) ([]Vector, error) {
	out := make([]Vector, len(integrated))
	for i, s := range integrated {
		if len(s.Mass) != len(s.Intensity) {
			return nil, ErrLengthMismatch
		}
		v := Vector{
			X: make([]float64, len(s.Mass)),
			Y: make([]float64, len(s.Mass)),
		}
		for k, m := range s.Mass {
			if s.Intensity[k] < 0 {
				return nil, ErrNegativeIntensity
			}
			v.X[k] = m
			v.Y[k] = math.Pow(m, opts.MassPower) * math.Pow(s.Intensity[k], opts.IntPower)
		}
		out[i] = v
	}
	return out, nil
}

// Cosine returns the cosine similarity of two sparse vectors given as
// ascending masses and their values. Masses present in only one vector
// contribute to its norm only. A vector without weight has similarity 0
// with everything.
func Cosine(xA, yA, xB, yB []float64) float64 {
	if len(xA) != len(yA) || len(xB) != len(yB) {
		return 0
	}
	normA := floats.Norm(yA, 2)
	normB := floats.Norm(yB, 2)
	if normA == 0 || normB == 0 {
		return 0
	}
	var a, b []float64
	for i, j := 0, 0; i < len(xA) && j < len(xB); {
		switch {
		case xA[i] < xB[j]:
			i++
		case xA[i] > xB[j]:
			j++
		default:
			a = append(a, yA[i])
			b = append(b, yB[j])
			i++
			j++
		}
	}
	if len(a) == 0 {
		return 0
	}
	return floats.Dot(a, b) / (normA * normB)
}
