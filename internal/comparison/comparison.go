// Package comparison matches the peaks of two GC/MS runs by the similarity
// of their mass spectra.
//
// Each run is preprocessed on its own: the significant peaks of the total
// ion chromatogram are picked, and the mass spectra under each peak are
// integrated into a weighted fingerprint. A sample peak is then paired with
// a reference peak when that reference peak is the only one whose
// fingerprint is similar enough, and no other sample peak claims it.
package comparison

import (
	"errors"
	"sort"

	"github.com/524D/gcmscompare/internal/chromatogram"
	"github.com/524D/gcmscompare/internal/gsd"
	"github.com/524D/gcmscompare/internal/peakpicking"
	"github.com/524D/gcmscompare/internal/spectra"

	"golang.org/x/sync/errgroup"
)

// ErrMisaligned means the peaks and fingerprints of a preprocessed run
// differ in length
var ErrMisaligned = errors.New("comparison: peaks and fingerprints not aligned")

// Preprocessed is a run reduced to its significant peaks. The slices are
// aligned by position and the peaks are in ascending apex order.
type Preprocessed struct {
	Peaks        []gsd.Peak
	IntegratedMS []chromatogram.Spectrum
	Vectors      []spectra.Vector
	Picking      peakpicking.Report
}

// Result holds the matched pairs, aligned by position, in ascending order
// of the reference peak.
type Result struct {
	PeaksFirst      []gsd.Peak // reference run
	PeaksSecond     []gsd.Peak // sample run
	PeaksSimilarity []float64
}

// Len returns the number of matched pairs.
func (r *Result) Len() int {
	return len(r.PeaksSimilarity)
}

// Comparer compares runs with fixed options. It is safe for concurrent use.
type Comparer struct {
	opts     Options
	analysis SignalAnalysis
	picker   *peakpicking.Picker
}

// New returns a Comparer. A nil analysis selects DefaultAnalysis.
func New(opts Options, analysis SignalAnalysis) *Comparer {
	if analysis == nil {
		analysis = DefaultAnalysis
	}
	return &Comparer{
		opts:     opts,
		analysis: analysis,
		picker:   peakpicking.New(analysis, opts.HeightFilter),
	}
}

// SpectraComparison matches the peaks of sample against those of reference.
func SpectraComparison(reference, sample *chromatogram.Chromatogram, opts Options) (*Result, error) {
	return New(opts, nil).Compare(reference, sample)
}

// Compare preprocesses both runs concurrently and matches them.
func (c *Comparer) Compare(reference, sample *chromatogram.Chromatogram) (*Result, error) {
	var ref, smp *Preprocessed
	var g errgroup.Group
	g.Go(func() error {
		var err error
		ref, err = c.Preprocess(reference)
		return err
	})
	g.Go(func() error {
		var err error
		smp, err = c.Preprocess(sample)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return c.Match(ref, smp)
}

// Preprocess picks the significant peaks of the TIC of chrom and builds a
// fingerprint for each of them from its MS series.
func (c *Comparer) Preprocess(chrom *chromatogram.Chromatogram) (*Preprocessed, error) {
	tic, err := chrom.Trace(chromatogram.TIC)
	if err != nil {
		return nil, err
	}
	peaks, report, err := c.picker.PickWithReport(chrom.Times(), tic)
	if err != nil {
		return nil, err
	}
	sort.Slice(peaks, func(i, j int) bool { return peaks[i].Index < peaks[j].Index })

	ms, err := chrom.Spectra(chromatogram.MS)
	if err != nil {
		return nil, err
	}
	integrated, err := c.analysis.IntegrateMass(peaks, ms, c.opts.integrateOptions())
	if err != nil {
		return nil, err
	}
	vectors, err := c.analysis.BuildFingerprint(integrated, c.opts.vectorOptions())
	if err != nil {
		return nil, err
	}
	return &Preprocessed{
		Peaks:        peaks,
		IntegratedMS: integrated,
		Vectors:      vectors,
		Picking:      report,
	}, nil
}

// Similarities returns the similarity of sample peak i to every reference
// peak.
func (c *Comparer) Similarities(ref, sample *Preprocessed, i int) []float64 {
	v := sample.Vectors[i]
	row := make([]float64, len(ref.Vectors))
	for j, r := range ref.Vectors {
		row[j] = c.analysis.CosineSimilarity(v.X, v.Y, r.X, r.Y)
	}
	return row
}

type claim struct {
	ref        int // -1 when the sample peak claims nothing
	similarity float64
}

// claim returns the reference peak that sample peak i unambiguously
// resembles: the only one above the similarity threshold.
func (c *Comparer) claim(ref, sample *Preprocessed, i int) claim {
	best := claim{ref: -1}
	biggerCounter := 0
	for j, s := range c.Similarities(ref, sample, i) {
		if s > c.opts.SimilarityThreshold {
			biggerCounter++
			if best.ref < 0 || s > best.similarity {
				best = claim{ref: j, similarity: s}
			}
		}
	}
	if biggerCounter != 1 {
		return claim{ref: -1}
	}
	return best
}

// Match pairs the peaks of sample with those of ref. A sample peak takes
// part only when exactly one reference peak exceeds the similarity
// threshold, and a reference peak only when exactly one sample peak
// claims it.
func (c *Comparer) Match(ref, sample *Preprocessed) (*Result, error) {
	if len(ref.Peaks) != len(ref.Vectors) || len(sample.Peaks) != len(sample.Vectors) {
		return nil, ErrMisaligned
	}

	claims := make([]claim, len(sample.Peaks))
	if c.opts.Workers <= 1 {
		for i := range claims {
			claims[i] = c.claim(ref, sample, i)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(c.opts.Workers)
		for i := range claims {
			i := i
			g.Go(func() error {
				claims[i] = c.claim(ref, sample, i)
				return nil
			})
		}
		_ = g.Wait()
	}

	const (
		unclaimed = -1
		contested = -2
	)
	claimedBy := make([]int, len(ref.Peaks))
	for j := range claimedBy {
		claimedBy[j] = unclaimed
	}
	for i, cl := range claims {
		switch {
		case cl.ref < 0:
		case claimedBy[cl.ref] == unclaimed:
			claimedBy[cl.ref] = i
		default:
			claimedBy[cl.ref] = contested
		}
	}

	result := &Result{}
	for j, i := range claimedBy {
		if i < 0 {
			continue
		}
		result.PeaksFirst = append(result.PeaksFirst, ref.Peaks[j])
		result.PeaksSecond = append(result.PeaksSecond, sample.Peaks[i])
		result.PeaksSimilarity = append(result.PeaksSimilarity, claims[i].similarity)
	}
	return result, nil
}
