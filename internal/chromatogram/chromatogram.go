// Package chromatogram holds a GC/MS run as a time axis with named,
// time-aligned series: the total ion chromatogram and the mass spectra.
package chromatogram

import (
	"errors"
	"fmt"
	"sort"
)

// Names of the series the comparison needs
const (
	TIC = "tic"
	MS  = "ms"
)

var (
	// ErrLengthMismatch means a series does not have one value per time point
	ErrLengthMismatch = errors.New("chromatogram: series length differs from time axis")
	// ErrSeriesKind means a series exists under the name but holds another kind of data
	ErrSeriesKind = errors.New("chromatogram: series has unexpected kind")
)

// MissingSeriesError is returned when a required named series is absent.
type MissingSeriesError struct {
	Name string
}

func (e *MissingSeriesError) Error() string {
	return fmt.Sprintf("chromatogram: series %q not found", e.Name)
}

// Spectrum is a sparse mass spectrum, masses in ascending order.
type Spectrum struct {
	Mass      []float64
	Intensity []float64
}

// Len returns the number of (mass, intensity) pairs.
func (s Spectrum) Len() int {
	return len(s.Mass)
}

// Series is a named signal aligned index for index with the time axis.
type Series interface {
	Name() string
	Len() int
}

// Trace is a series with a single intensity per time point.
type Trace struct {
	name string
	Data []float64
}

func (t *Trace) Name() string { return t.name }
func (t *Trace) Len() int     { return len(t.Data) }

// SpectrumSeries is a series with a mass spectrum per time point.
type SpectrumSeries struct {
	name string
	Data []Spectrum
}

func (s *SpectrumSeries) Name() string { return s.name }
func (s *SpectrumSeries) Len() int     { return len(s.Data) }

// Chromatogram is a time axis with named series. It is not safe to add
// series while other goroutines read it; reading concurrently is fine.
type Chromatogram struct {
	times  []float64
	series map[string]Series
}

// New creates a chromatogram on the given time axis (seconds).
func New(times []float64) *Chromatogram {
	return &Chromatogram{
		times:  times,
		series: make(map[string]Series),
	}
}

// Times returns the time axis.
func (c *Chromatogram) Times() []float64 {
	return c.times
}

// Len returns the number of time points.
func (c *Chromatogram) Len() int {
	return len(c.times)
}

// AddTrace adds or replaces a single valued series.
func (c *Chromatogram) AddTrace(name string, data []float64) error {
	if len(data) != len(c.times) {
		return ErrLengthMismatch
	}
	c.series[name] = &Trace{name: name, Data: data}
	return nil
}

// AddSpectra adds or replaces a mass spectrum series. Spectra are sorted by
// mass in place when needed.
func (c *Chromatogram) AddSpectra(name string, data []Spectrum) error {
	if len(data) != len(c.times) {
		return ErrLengthMismatch
	}
	for i := range data {
		if len(data[i].Mass) != len(data[i].Intensity) {
			return ErrLengthMismatch
		}
		sortSpectrum(&data[i])
	}
	c.series[name] = &SpectrumSeries{name: name, Data: data}
	return nil
}

// FindSeriesByName looks up a series by its exact name.
func (c *Chromatogram) FindSeriesByName(name string) (Series, bool) {
	s, ok := c.series[name]
	return s, ok
}

// SeriesNames returns the names of all series, sorted.
func (c *Chromatogram) SeriesNames() []string {
	names := make([]string, 0, len(c.series))
	for name := range c.series {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Trace returns the data of a single valued series.
func (c *Chromatogram) Trace(name string) ([]float64, error) {
	s, ok := c.FindSeriesByName(name)
	if !ok {
		return nil, &MissingSeriesError{Name: name}
	}
	t, ok := s.(*Trace)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a trace", ErrSeriesKind, name)
	}
	return t.Data, nil
}

// Spectra returns the data of a mass spectrum series.
func (c *Chromatogram) Spectra(name string) ([]Spectrum, error) {
	s, ok := c.FindSeriesByName(name)
	if !ok {
		return nil, &MissingSeriesError{Name: name}
	}
	ss, ok := s.(*SpectrumSeries)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a spectrum series", ErrSeriesKind, name)
	}
	return ss.Data, nil
}

type byMass struct{ s *Spectrum }

func (b byMass) Len() int           { return len(b.s.Mass) }
func (b byMass) Less(i, j int) bool { return b.s.Mass[i] < b.s.Mass[j] }
func (b byMass) Swap(i, j int) {
	b.s.Mass[i], b.s.Mass[j] = b.s.Mass[j], b.s.Mass[i]
	b.s.Intensity[i], b.s.Intensity[j] = b.s.Intensity[j], b.s.Intensity[i]
}

func sortSpectrum(s *Spectrum) {
	if !sort.IsSorted(byMass{s}) {
		sort.Stable(byMass{s})
	}
}
