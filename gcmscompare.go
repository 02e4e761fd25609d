// Copyright 2018 Rob Marissen.
// SPDX-License-Identifier: MIT

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"time"

	"github.com/524D/gcmscompare/internal/chromatogram"
	"github.com/524D/gcmscompare/internal/comparison"
	"github.com/524D/gcmscompare/internal/gsd"
	"github.com/524D/gcmscompare/internal/mzml"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

// Program name and version, reported in the JSON output
const progName = "gcmscompare"

var progVersion = `Unknown`

// Format of output, if it ever changes we should still be able to parse
// output from old versions
const outputFormatVersion = "1.0"

const (
	infoDefault = iota
	infoSilent
	infoVerbose
)

// Command line parameters
type params struct {
	refFilename    string
	sampleFilename string
	outFilename    string // Filename where the JSON match report will be written
	opts           comparison.Options
	debugPeaks     string // Range of sample peaks to print similarities for
	verbose        bool
	quiet          bool
	verbosity      int  // Verbosity of progress messages (infoDefault...)
	debug          bool // Enable debug info (environment variable GCMSCOMPARE_DEBUG=1)
}

// matchReport is the JSON output of a comparison
type matchReport struct {
	GcmsCompareVersion string
	FormatVersion      string
	Options            comparison.Options
	Reference          runReport
	Sample             runReport
	Matches            []matchedPair
}

type runReport struct {
	Filename  string
	Peaks     int
	DebugInfo *pickDebugInfo `json:",omitempty"`
}

type peakReport struct {
	Index         int
	RetentionTime float64
	Height        float64
	Width         float64
	LeftIndex     int
	RightIndex    int
}

type matchedPair struct {
	Reference  peakReport
	Sample     peakReport
	Similarity float64
	RTShift    float64 // sample minus reference retention time
}

// peaksReport is the JSON output of the peaks command
type peaksReport struct {
	GcmsCompareVersion string
	FormatVersion      string
	Filename           string
	Peaks              []peakReport
	DebugInfo          *pickDebugInfo `json:",omitempty"`
}

var ErrRangeSpec = errors.New("invalid range specified")

// Parse string like "-12:6" into 2 values, -12 and 6
// Parameters min and max are the "default" min/max values,
// when a value is not specified (e.g. "-12:"), the default is assigned
func parseIntRange(r string, min int, max int) (int, int, error) {
	re := regexp.MustCompile(`\s*(\-?\d*):(\-?\d*)`)
	m := re.FindStringSubmatch(r)
	minOut := min
	maxOut := max
	if len(m) >= 2 && m[1] != "" {
		minOut, _ = strconv.Atoi(m[1])
		if minOut < min {
			minOut = min
		}
	}
	if len(m) >= 3 && m[2] != "" {
		maxOut, _ = strconv.Atoi(m[2])
		if maxOut > max {
			maxOut = max
		}
	}
	var err error
	if minOut > maxOut {
		err = ErrRangeSpec
		minOut = maxOut
	}
	return minOut, maxOut, err
}

// addOptionFlags binds the comparison options to flags. The current values
// of opts are the defaults.
func addOptionFlags(fs *pflag.FlagSet, opts *comparison.Options) {
	fs.Float64Var(&opts.HeightFilter, "height-filter", opts.HeightFilter,
		"keep peaks higher than this `factor` times the median peak height")
	fs.Float64Var(&opts.MassPower, "mass-power", opts.MassPower,
		"`exponent` applied to the mass in the spectrum fingerprint")
	fs.Float64Var(&opts.IntPower, "int-power", opts.IntPower,
		"`exponent` applied to the intensity in the spectrum fingerprint")
	fs.Float64Var(&opts.SimilarityThreshold, "similarity", opts.SimilarityThreshold,
		"minimum cosine `similarity` of matched peaks (exclusive)")
	fs.Float64Var(&opts.ThresholdFactor, "threshold-factor", opts.ThresholdFactor,
		"drop integrated masses below this `fraction` of the base peak (0 = no filter)")
	fs.IntVar(&opts.MaxNumberPeaks, "max-peaks", opts.MaxNumberPeaks,
		"keep only the `N` most intense integrated masses per peak (0 = all)")
	fs.Float64Var(&opts.GroupWidth, "group-width", opts.GroupWidth,
		"keep only the most intense mass within this mass `radius` (0 = no filter)")
	fs.IntVar(&opts.Workers, "workers", opts.Workers,
		"`number` of goroutines computing similarities")
}

// readChromatogram reads an mzML file into a chromatogram
func readChromatogram(filename string) (*chromatogram.Chromatogram, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	mzML, err := mzml.Read(f)
	if err != nil {
		return nil, fmt.Errorf("mzml.Read %s: %w", filename, err)
	}
	c, err := chromatogram.FromMzML(&mzML)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return c, nil
}

// preprocessFile reads and preprocesses a single run
func preprocessFile(c *comparison.Comparer, filename string) (*comparison.Preprocessed, error) {
	chrom, err := readChromatogram(filename)
	if err != nil {
		return nil, err
	}
	p, err := c.Preprocess(chrom)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return p, nil
}

func makePeakReport(p gsd.Peak) peakReport {
	return peakReport{
		Index:         p.Index,
		RetentionTime: p.X,
		Height:        p.Height,
		Width:         p.Width,
		LeftIndex:     p.Left.Index,
		RightIndex:    p.Right.Index,
	}
}

// compareFiles matches the peaks of the sample file against those of the
// reference file and writes the report
func compareFiles(par params, debugOut io.Writer) (matchReport, error) {
	report := matchReport{
		GcmsCompareVersion: progVersion,
		FormatVersion:      outputFormatVersion,
		Options:            par.opts,
		Reference:          runReport{Filename: par.refFilename},
		Sample:             runReport{Filename: par.sampleFilename},
	}
	t := time.Now()
	if par.verbosity == infoVerbose {
		fmt.Fprintf(os.Stderr, "Reading and preprocessing %s and %s: ",
			par.refFilename, par.sampleFilename)
	}

	c := comparison.New(par.opts, nil)
	var ref, smp *comparison.Preprocessed
	var g errgroup.Group
	g.Go(func() error {
		var err error
		ref, err = preprocessFile(c, par.refFilename)
		return err
	})
	g.Go(func() error {
		var err error
		smp, err = preprocessFile(c, par.sampleFilename)
		return err
	})
	if err := g.Wait(); err != nil {
		return report, err
	}
	report.Reference.Peaks = len(ref.Peaks)
	report.Sample.Peaks = len(smp.Peaks)
	if par.debug {
		report.Reference.DebugInfo = genDebugInfo(ref.Picking)
		report.Sample.DebugInfo = genDebugInfo(smp.Picking)
	}

	if par.verbosity == infoVerbose {
		fmt.Fprintf(os.Stderr, "%s\n", time.Since(t))
		t = time.Now()
		fmt.Fprintf(os.Stderr, "Matching peaks: ")
	}

	debugLogSimilarities(debugOut, c, ref, smp, par)
	result, err := c.Match(ref, smp)
	if err != nil {
		return report, err
	}
	report.Matches = make([]matchedPair, 0, result.Len())
	for k := 0; k < result.Len(); k++ {
		first, second := result.PeaksFirst[k], result.PeaksSecond[k]
		report.Matches = append(report.Matches, matchedPair{
			Reference:  makePeakReport(first),
			Sample:     makePeakReport(second),
			Similarity: result.PeaksSimilarity[k],
			RTShift:    second.X - first.X,
		})
	}

	if par.verbosity == infoVerbose {
		fmt.Fprintf(os.Stderr, "%s\n", time.Since(t))
	}
	if par.verbosity != infoSilent {
		fmt.Fprintf(os.Stderr, "Reference peaks: %d Sample peaks: %d Matched: %d\n",
			len(ref.Peaks), len(smp.Peaks), result.Len())
	}
	return report, nil
}

func writeJSON(w io.Writer, v any) error {
	e := json.NewEncoder(w)
	e.SetIndent(``, `  `) // Make output easier to read for humans
	return e.Encode(v)
}

func writeReport(report any, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := writeJSON(f, report); err != nil {
		return err
	}
	return f.Close()
}

// outputName derives the report filename from the input filename
func outputName(filename string, suffix string) string {
	var extension = filepath.Ext(filename)
	var startName = filename[0 : len(filename)-len(extension)]
	return startName + suffix
}

// sanatizeParams does some checks on parameters, and fills missing
// filenames if possible
func sanatizeParams(par *params, args []string) error {
	par.refFilename = args[0]
	par.sampleFilename = args[1]
	if par.outFilename == "" {
		par.outFilename = outputName(par.sampleFilename, "-match.json")
	}
	if par.verbose {
		par.verbosity = infoVerbose
	}
	if par.quiet {
		par.verbosity = infoSilent
	}
	if !(par.opts.HeightFilter > 0) {
		return fmt.Errorf("invalid height filter %v", par.opts.HeightFilter)
	}
	if par.opts.Workers < 1 {
		par.opts.Workers = 1
	}
	if par.debugPeaks != "" {
		if _, _, err := parseIntRange(par.debugPeaks, 0, math.MaxInt32); err != nil {
			return fmt.Errorf("invalid value for parameter 'debug': %w", err)
		}
	}
	// Check if debug output should be enabled
	par.debug = os.Getenv("GCMSCOMPARE_DEBUG") == `1`
	return nil
}

func newRootCmd() *cobra.Command {
	var par params
	par.opts = comparison.DefaultOptions()
	par.opts.Workers = runtime.GOMAXPROCS(0)

	rootCmd := &cobra.Command{
		Use:   progName + " [flags] <reference.mzML> <sample.mzML>",
		Short: "Match the peaks of two GC/MS runs by their mass spectra",
		Long: `gcmscompare finds the corresponding chromatographic peaks of two GC/MS runs.

The significant peaks of the total ion chromatogram of each run are picked,
and the mass spectra under each peak are summed into a fingerprint. A sample
peak is matched to a reference peak when that is the only reference peak
with a fingerprint similarity above the threshold, and no other sample peak
is matched to it.

The matched pairs are written as JSON to <sample>-match.json, or to the file
given with -o.

When environment variable GCMSCOMPARE_DEBUG=1, peak picking statistics are
added to the JSON output.`,
		Example: `  gcmscompare standard.mzML sample.mzML
    Match the peaks of sample.mzML against those of standard.mzML and write
    the result to sample-match.json.

  gcmscompare --similarity 0.9 --debug 0:5 -o match.json standard.mzML sample.mzML
    Only accept pairs with similarity above 0.9, and print the similarities
    of the first six sample peaks to all reference peaks.`,
		Version:       progVersion,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := sanatizeParams(&par, args); err != nil {
				return err
			}
			report, err := compareFiles(par, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			t := time.Now()
			if par.verbosity == infoVerbose {
				fmt.Fprintf(os.Stderr, "Writing %s: ", par.outFilename)
			}
			if err := writeReport(report, par.outFilename); err != nil {
				return err
			}
			if par.verbosity == infoVerbose {
				fmt.Fprintf(os.Stderr, "%s\n", time.Since(t))
			}
			return nil
		},
	}
	addOptionFlags(rootCmd.Flags(), &par.opts)
	rootCmd.Flags().StringVarP(&par.outFilename, "out", "o", "",
		"`filename` of the JSON match report")
	rootCmd.Flags().StringVar(&par.debugPeaks, "debug", "",
		"print similarities for the sample peak `range` e.g. 3:6")
	rootCmd.PersistentFlags().BoolVarP(&par.verbose, "verbose", "v", false,
		"print more verbose progress information")
	rootCmd.PersistentFlags().BoolVarP(&par.quiet, "quiet", "q", false,
		"don't print any output except for errors")

	rootCmd.AddCommand(newPeaksCmd(&par))
	return rootCmd
}

// newPeaksCmd returns the command that only picks the peaks of a run
func newPeaksCmd(root *params) *cobra.Command {
	opts := comparison.DefaultOptions()
	var outFilename string
	cmd := &cobra.Command{
		Use:   "peaks [flags] <file.mzML>",
		Short: "Print the significant peaks of a GC/MS run",
		Long: `Pick the significant peaks of the total ion chromatogram of a run and
print them as JSON, or write them to the file given with -o.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !(opts.HeightFilter > 0) {
				return fmt.Errorf("invalid height filter %v", opts.HeightFilter)
			}
			t := time.Now()
			if root.verbose && !root.quiet {
				fmt.Fprintf(os.Stderr, "Picking peaks of %s: ", args[0])
			}
			p, err := preprocessFile(comparison.New(opts, nil), args[0])
			if err != nil {
				return err
			}
			if root.verbose && !root.quiet {
				fmt.Fprintf(os.Stderr, "%s\n", time.Since(t))
			}
			report := peaksReport{
				GcmsCompareVersion: progVersion,
				FormatVersion:      outputFormatVersion,
				Filename:           args[0],
				Peaks:              make([]peakReport, len(p.Peaks)),
			}
			for i, peak := range p.Peaks {
				report.Peaks[i] = makePeakReport(peak)
			}
			if os.Getenv("GCMSCOMPARE_DEBUG") == `1` {
				report.DebugInfo = genDebugInfo(p.Picking)
			}
			if outFilename == "" {
				return writeJSON(cmd.OutOrStdout(), report)
			}
			return writeReport(report, outFilename)
		},
	}
	cmd.Flags().Float64Var(&opts.HeightFilter, "height-filter", opts.HeightFilter,
		"keep peaks higher than this `factor` times the median peak height")
	cmd.Flags().StringVarP(&outFilename, "out", "o", "",
		"`filename` of the JSON peak list (default standard output)")
	return cmd
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if err := newRootCmd().Execute(); err != nil {
		log.Fatalf("%s: %v", progName, err)
	}
}
