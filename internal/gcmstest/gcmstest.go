// Package gcmstest builds synthetic GC/MS runs for tests: Gaussian elution
// profiles with a fixed mass spectrum per compound.
package gcmstest

import (
	"io"
	"math"
	"sort"

	"github.com/524D/gcmscompare/internal/chromatogram"
	"github.com/524D/gcmscompare/internal/mzml"
)

// Compound is a single eluting substance. Apex and Sigma are in scans.
// Amplitude is the TIC contribution at the apex; the spectrum gives the
// relative abundances and is normalised so that its intensities sum to one.
type Compound struct {
	Apex      int
	Sigma     float64
	Amplitude float64
	Spectrum  chromatogram.Spectrum
}

// Chromatogram returns a run of n scans, dt seconds apart, holding the
// given compounds. The TIC of each scan is the sum of its spectrum.
func Chromatogram(n int, dt float64, compounds []Compound) *chromatogram.Chromatogram {
	times := make([]float64, n)
	tic := make([]float64, n)
	ms := make([]chromatogram.Spectrum, n)
	for i := range times {
		times[i] = float64(i) * dt
		intens := make(map[float64]float64)
		for _, c := range compounds {
			d := float64(i-c.Apex) / c.Sigma
			g := c.Amplitude * math.Exp(-d*d/2)
			if g == 0 {
				continue
			}
			var total float64
			for _, v := range c.Spectrum.Intensity {
				total += v
			}
			for k, m := range c.Spectrum.Mass {
				intens[m] += g * c.Spectrum.Intensity[k] / total
			}
		}
		masses := make([]float64, 0, len(intens))
		for m := range intens {
			masses = append(masses, m)
		}
		sort.Float64s(masses)
		spec := chromatogram.Spectrum{
			Mass:      masses,
			Intensity: make([]float64, len(masses)),
		}
		for k, m := range masses {
			spec.Intensity[k] = intens[m]
			tic[i] += intens[m]
		}
		ms[i] = spec
	}

	c := chromatogram.New(times)
	// lengths match by construction
	_ = c.AddTrace(chromatogram.TIC, tic)
	_ = c.AddSpectra(chromatogram.MS, ms)
	return c
}

// Mixture returns seven compounds 40 scans apart starting at scan 40,
// shifted by shift scans and with all amplitudes multiplied by scale. The
// compounds at 80, 160 and 240 (before the shift) are large; the others
// are small enough to fall below the default height filter.
func Mixture(shift int, scale float64) []Compound {
	amplitudes := []float64{60, 1000, 50, 2000, 70, 3000, 80}
	compounds := make([]Compound, len(amplitudes))
	for k, a := range amplitudes {
		base := 40 + 20*float64(k)
		compounds[k] = Compound{
			Apex:      40*(k+1) + shift,
			Sigma:     4,
			Amplitude: a * scale,
			Spectrum: chromatogram.Spectrum{
				Mass:      []float64{base + 1.04, base + 3.05, base + 7.02, base + 12.97},
				Intensity: []float64{float64(10 + k), 100, float64(5 * (k + 1)), 40},
			},
		}
	}
	return compounds
}

// RunLength is the number of scans that holds a Mixture with a shift of
// up to 20 scans.
const RunLength = 320

// WriteMzML writes the TIC and MS series of c as an mzML run.
func WriteMzML(w io.Writer, c *chromatogram.Chromatogram) error {
	spectra, err := c.Spectra(chromatogram.MS)
	if err != nil {
		return err
	}
	f := mzml.New("gcmstest")
	f.AppendSoftwareInfo("gcmstest", "1")
	for i, t := range c.Times() {
		s := spectra[i]
		peaks := make([]mzml.Peak, s.Len())
		for k := range peaks {
			peaks[k] = mzml.Peak{Mz: s.Mass[k], Intens: s.Intensity[k]}
		}
		if err := f.AppendSpectrum(t, peaks); err != nil {
			return err
		}
	}
	return f.Write(w)
}
