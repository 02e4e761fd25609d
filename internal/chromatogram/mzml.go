package chromatogram

import (
	"math"

	"github.com/524D/gcmscompare/internal/mzml"
)

// FromMzML builds a chromatogram from the MS1 spectra of an mzML run, in
// file order. The time axis is the scan start time in seconds. The TIC is
// taken from the total ion current term of each spectrum, or computed from
// its peaks when the term is absent.
func FromMzML(f *mzml.MzML) (*Chromatogram, error) {
	numSpecs := f.NumSpecs()
	times := make([]float64, 0, numSpecs)
	tic := make([]float64, 0, numSpecs)
	ms := make([]Spectrum, 0, numSpecs)

	for i := 0; i < numSpecs; i++ {
		msLevel, err := f.MSLevel(i)
		if err != nil {
			return nil, err
		}
		if msLevel != 1 {
			continue
		}
		rt, err := f.RetentionTime(i)
		if err != nil {
			return nil, err
		}
		peaks, err := f.ReadScan(i)
		if err != nil {
			return nil, err
		}
		spec := Spectrum{
			Mass:      make([]float64, len(peaks)),
			Intensity: make([]float64, len(peaks)),
		}
		var sum float64
		for j, p := range peaks {
			spec.Mass[j] = p.Mz
			spec.Intensity[j] = p.Intens
			sum += p.Intens
		}
		total, err := f.TotalIonCurrent(i)
		if err != nil {
			return nil, err
		}
		if math.IsNaN(total) {
			total = sum
		}
		times = append(times, rt)
		tic = append(tic, total)
		ms = append(ms, spec)
	}

	c := New(times)
	if err := c.AddTrace(TIC, tic); err != nil {
		return nil, err
	}
	if err := c.AddSpectra(MS, ms); err != nil {
		return nil, err
	}
	return c, nil
}
