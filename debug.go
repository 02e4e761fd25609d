// This file contains code to help debugging, and is
// separated in from the rest in order not to litter
// the main code with debugging stuff

package main

import (
	"fmt"
	"io"

	"github.com/524D/gcmscompare/internal/comparison"
	"github.com/524D/gcmscompare/internal/peakpicking"
)

// pickDebugInfo is added to the JSON output when GCMSCOMPARE_DEBUG=1
type pickDebugInfo struct {
	ExploratoryCandidates int
	RefinedWindow         int
	RefinedCandidates     int
	MedianHeight          float64
}

func genDebugInfo(r peakpicking.Report) *pickDebugInfo {
	return &pickDebugInfo{
		ExploratoryCandidates: r.ExploratoryCandidates,
		RefinedWindow:         r.Window,
		RefinedCandidates:     r.RefinedCandidates,
		MedianHeight:          r.MedianHeight,
	}
}

// debugLogSimilarities prints the similarity of each sample peak in the
// --debug range to every reference peak. Similarities above the threshold
// are marked with '+'.
func debugLogSimilarities(w io.Writer, c *comparison.Comparer,
	ref, smp *comparison.Preprocessed, par params) {

	if par.debugPeaks == `` || len(smp.Peaks) == 0 {
		return
	}
	debugMin, debugMax, _ := parseIntRange(par.debugPeaks, 0, len(smp.Peaks)-1)
	for i := debugMin; i <= debugMax; i++ {
		p := smp.Peaks[i]
		fmt.Fprintf(w, "Sample peak:%d index:%d rt:%f height:%f\n",
			i, p.Index, p.X, p.Height)
		var biggerCounter int
		for j, s := range c.Similarities(ref, smp, i) {
			used := `-`
			if s > par.opts.SimilarityThreshold {
				used = `+`
				biggerCounter++
			}
			fmt.Fprintf(w, "%d index:%d rt:%f similarity:%f %s\n",
				j, ref.Peaks[j].Index, ref.Peaks[j].X, s, used)
		}
		fmt.Fprintf(w, "Reference peaks above threshold: %d\n", biggerCounter)
	}
}
