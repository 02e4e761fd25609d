package peakpicking

import (
	"errors"
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/524D/gcmscompare/internal/gsd"

	"github.com/google/go-cmp/cmp"
)

// stubDetector returns canned candidates per pass and records the options
// it was called with.
type stubDetector struct {
	passes [][]gsd.Peak
	err    error
	calls  []gsd.Options
}

func (s *stubDetector) DetectPeaks(times, values []float64, opts gsd.Options) ([]gsd.Peak, error) {
	s.calls = append(s.calls, opts)
	if s.err != nil {
		return nil, s.err
	}
	pass := s.passes[len(s.calls)-1]
	out := make([]gsd.Peak, len(pass))
	copy(out, pass)
	return out, nil
}

func withWidth(index, width int) gsd.Peak {
	return gsd.Peak{Index: index, Left: gsd.Boundary{Index: index - width/2}, Right: gsd.Boundary{Index: index - width/2 + width}}
}

func withHeight(index int, height float64) gsd.Peak {
	return gsd.Peak{Index: index, Height: height, Left: gsd.Boundary{Index: index - 2}, Right: gsd.Boundary{Index: index + 2}}
}

func TestRefinedWindow(t *testing.T) {
	tests := []struct {
		widths []int
		want   int
	}{
		{nil, 5},
		{[]int{1, 2, 3}, 5},
		{[]int{6}, 5},
		{[]int{8}, 7},
		{[]int{7}, 7},
		{[]int{10, 2, 9, 4}, 5},
		{[]int{12, 14, 11, 20, 30}, 13},
		{[]int{20, 22, 21, 40}, 21},
	}
	for _, tc := range tests {
		if got := RefinedWindow(tc.widths); got != tc.want {
			t.Errorf("RefinedWindow(%v) = %d, want %d", tc.widths, got, tc.want)
		}
	}
}

func TestRefinedWindowIsOddAndAtLeastFive(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 1000; i++ {
		widths := make([]int, 1+r.Intn(20))
		for j := range widths {
			widths[j] = r.Intn(60)
		}
		w := RefinedWindow(widths)
		if w < 5 || w%2 == 0 {
			t.Fatalf("RefinedWindow(%v) = %d, want odd and >= 5", widths, w)
		}
	}
}

func TestTwoPasses(t *testing.T) {
	d := &stubDetector{passes: [][]gsd.Peak{
		{withWidth(10, 10), withWidth(30, 6), withWidth(50, 8)},
		{withHeight(10, 10), withHeight(30, 100), withHeight(50, 20)},
	}}
	peaks, report, err := New(d, 2).PickWithReport(nil, nil)
	if err != nil {
		t.Fatalf("Pick: %v", err)
	}
	if len(d.calls) != 2 {
		t.Fatalf("detector called %d times, want 2", len(d.calls))
	}
	for i, wantWindow := range []int{5, 7} {
		want := gsd.DefaultOptions()
		want.SGWindow = wantWindow
		want.SGPolynomial = 2
		want.HeightFactor = 2
		want.SmoothY = true
		want.Boundaries = true
		if diff := cmp.Diff(want, d.calls[i]); diff != "" {
			t.Errorf("pass %d options mismatch (-want +got):\n%s", i+1, diff)
		}
	}
	wantReport := Report{ExploratoryCandidates: 3, Window: 7, RefinedCandidates: 3, MedianHeight: 20, Retained: 1}
	if diff := cmp.Diff(wantReport, report); diff != "" {
		t.Errorf("report mismatch (-want +got):\n%s", diff)
	}
	if len(peaks) != 1 || peaks[0].Index != 30 {
		t.Errorf("Pick = %+v, want only the peak at 30", peaks)
	}
}

func TestHeightFilterIsStrict(t *testing.T) {
	d := &stubDetector{passes: [][]gsd.Peak{
		{withWidth(10, 5)},
		{withHeight(10, 1), withHeight(20, 2), withHeight(30, 3), withHeight(40, 6), withHeight(50, 7)},
	}}
	peaks, err := New(d, 2).Pick(nil, nil)
	if err != nil {
		t.Fatalf("Pick: %v", err)
	}
	// median height 3, limit 6: the peak at exactly 6 is dropped
	if len(peaks) != 1 || peaks[0].Height != 7 {
		t.Errorf("Pick = %+v, want only the peak with height 7", peaks)
	}
}

func TestEqualHeightsGiveNoPeaks(t *testing.T) {
	d := &stubDetector{passes: [][]gsd.Peak{
		{withWidth(10, 5), withWidth(20, 5)},
		{withHeight(10, 4), withHeight(20, 4), withHeight(30, 4)},
	}}
	peaks, err := New(d, 2).Pick(nil, nil)
	if err != nil {
		t.Fatalf("Pick: %v", err)
	}
	if len(peaks) != 0 {
		t.Errorf("Pick = %+v, want none", peaks)
	}
}

func TestInsufficientSignal(t *testing.T) {
	tests := []struct {
		name   string
		passes [][]gsd.Peak
	}{
		{"exploratory pass empty", [][]gsd.Peak{nil, nil}},
		{"refined pass empty", [][]gsd.Peak{{withWidth(10, 5)}, nil}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(&stubDetector{passes: tc.passes}, 2).Pick(nil, nil)
			if !errors.Is(err, ErrInsufficientSignal) {
				t.Errorf("Pick: error %v, want ErrInsufficientSignal", err)
			}
		})
	}
}

func TestErrors(t *testing.T) {
	if _, err := New(&stubDetector{}, 0).Pick(nil, nil); !errors.Is(err, ErrInvalidHeightFilter) {
		t.Errorf("Pick: error %v, want ErrInvalidHeightFilter", err)
	}
	if _, err := New(&stubDetector{}, math.NaN()).Pick(nil, nil); !errors.Is(err, ErrInvalidHeightFilter) {
		t.Errorf("Pick: error %v, want ErrInvalidHeightFilter", err)
	}
	errDetector := errors.New("detector failed")
	if _, err := New(&stubDetector{err: errDetector}, 2).Pick(nil, nil); err != errDetector {
		t.Errorf("Pick: error %v, want the detector error unchanged", err)
	}
}

func TestPickWithGSD(t *testing.T) {
	const n = 320
	apexes := []int{40, 80, 120, 160, 200, 240, 280}
	amplitudes := []float64{60, 1000, 50, 2000, 70, 3000, 80}
	times := make([]float64, n)
	tic := make([]float64, n)
	for i := range times {
		times[i] = float64(i) * 0.5
		for k, a := range apexes {
			d := float64(i-a) / 4
			tic[i] += amplitudes[k] * math.Exp(-d*d/2)
		}
	}
	peaks, report, err := New(nil, DefaultHeightFilter).PickWithReport(times, tic)
	if err != nil {
		t.Fatalf("Pick: %v", err)
	}
	if report.ExploratoryCandidates != len(apexes) || report.RefinedCandidates != len(apexes) {
		t.Errorf("candidates %d/%d, want %d in both passes", report.ExploratoryCandidates, report.RefinedCandidates, len(apexes))
	}
	if report.Window < 5 || report.Window%2 == 0 {
		t.Errorf("refined window %d", report.Window)
	}
	got := make([]int, len(peaks))
	for i, p := range peaks {
		got[i] = p.Index
	}
	sort.Ints(got)
	if diff := cmp.Diff([]int{80, 160, 240}, got); diff != "" {
		t.Errorf("retained apexes mismatch (-want +got):\n%s", diff)
	}
}
