package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/524D/gcmscompare/internal/gcmstest"

	"github.com/google/go-cmp/cmp"
)

func TestParseIntRange(t *testing.T) {
	tests := []struct {
		r       string
		wantMin int
		wantMax int
		wantErr error
	}{
		{"3:6", 3, 6, nil},
		{"", 0, 10, nil},
		{":4", 0, 4, nil},
		{"4:", 4, 10, nil},
		{"-5:20", 0, 10, nil},
		{"8:2", 2, 2, ErrRangeSpec},
	}
	for _, tc := range tests {
		min, max, err := parseIntRange(tc.r, 0, 10)
		if !errors.Is(err, tc.wantErr) {
			t.Errorf("parseIntRange(%q): expected error %v, got: %v", tc.r, tc.wantErr, err)
		}
		if min != tc.wantMin || max != tc.wantMax {
			t.Errorf("parseIntRange(%q) = %d, %d, expected %d, %d", tc.r, min, max, tc.wantMin, tc.wantMax)
		}
	}
}

func TestOutputName(t *testing.T) {
	if got := outputName(filepath.Join("data", "run1.mzML"), "-match.json"); got != filepath.Join("data", "run1-match.json") {
		t.Errorf("outputName = %q", got)
	}
}

func JSONCompare(t testing.TB, expected, actual io.Reader) {
	alwaysEqual := cmp.Comparer(func(_, _ interface{}) bool { return true })

	opts := cmp.Options{
		// This option declares that a float64 comparison is equal only if
		// both inputs are NaN.
		cmp.FilterValues(func(x, y float64) bool {
			return math.IsNaN(x) && math.IsNaN(y)
		}, alwaysEqual),

		// This option declares approximate equality on float64s only if
		// both inputs are not NaN.
		cmp.FilterValues(func(x, y float64) bool {
			return !math.IsNaN(x) && !math.IsNaN(y)
		}, cmp.Comparer(func(x, y float64) bool {
			if x == y {
				return true
			}
			delta := math.Abs(x - y)
			mean := math.Abs(x+y) / 2.0
			return delta/mean < 0.00001
		})),
	}

	var in1 map[string]any
	var in2 map[string]any

	dec := json.NewDecoder(expected)
	err := dec.Decode(&in1)
	if err != nil {
		t.Fatalf("Error decoding expected JSON: %v", err)
	}
	dec = json.NewDecoder(actual)
	err = dec.Decode(&in2)
	if err != nil {
		t.Fatalf("Error decoding actual JSON: %v", err)
	}

	if diff := cmp.Diff(in1, in2, opts); diff != "" {
		t.Errorf("JSON mismatch (-want +got):\n%s", diff)
	}
}

// JSONCompareFile compares the contents of two JSON files
func JSONCompareFile(t testing.TB, expectedFile, actualFile string) {
	expected, err := os.Open(expectedFile)
	if err != nil {
		t.Fatalf("Error opening expected file: %v", err)
	}
	defer expected.Close()
	actual, err := os.Open(actualFile)
	if err != nil {
		t.Fatalf("Error opening actual file: %v", err)
	}
	defer actual.Close()
	JSONCompare(t, expected, actual)
}

// writeTestRuns writes a reference run and a sample run, eluting 4 scans
// later, to dir
func writeTestRuns(t testing.TB, dir string) (string, string) {
	names := []string{filepath.Join(dir, "reference.mzML"), filepath.Join(dir, "sample.mzML")}
	for k, shift := range []int{0, 4} {
		f, err := os.Create(names[k])
		if err != nil {
			t.Fatal(err)
		}
		c := gcmstest.Chromatogram(gcmstest.RunLength, 0.5, gcmstest.Mixture(shift, 1+float64(k)))
		if err := gcmstest.WriteMzML(f, c); err != nil {
			t.Fatalf("WriteMzML: %v", err)
		}
		if err := f.Close(); err != nil {
			t.Fatal(err)
		}
	}
	return names[0], names[1]
}

func runCmd(t testing.TB, args ...string) (string, error) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func readMatchReport(t testing.TB, filename string) matchReport {
	f, err := os.Open(filename)
	if err != nil {
		t.Fatalf("Error opening report: %v", err)
	}
	defer f.Close()
	var report matchReport
	if err := json.NewDecoder(f).Decode(&report); err != nil {
		t.Fatalf("Error decoding report: %v", err)
	}
	return report
}

func TestCompare(t *testing.T) {
	dir := t.TempDir()
	ref, sample := writeTestRuns(t, dir)

	if _, err := runCmd(t, "-q", ref, sample); err != nil {
		t.Fatalf("gcmscompare: %v", err)
	}
	defaultOut := filepath.Join(dir, "sample-match.json")
	report := readMatchReport(t, defaultOut)
	if report.FormatVersion != outputFormatVersion {
		t.Errorf("FormatVersion %q, expected %q", report.FormatVersion, outputFormatVersion)
	}
	if report.Reference.Peaks != 3 || report.Sample.Peaks != 3 {
		t.Errorf("peaks %d and %d, expected 3 in both runs", report.Reference.Peaks, report.Sample.Peaks)
	}
	if report.Reference.DebugInfo != nil {
		t.Errorf("debug info present without GCMSCOMPARE_DEBUG")
	}
	if len(report.Matches) != 3 {
		t.Fatalf("%d matches, expected 3", len(report.Matches))
	}
	for _, m := range report.Matches {
		if m.Similarity < 0.99 {
			t.Errorf("similarity %f, expected about 1", m.Similarity)
		}
		if shift := m.Sample.Index - m.Reference.Index; shift < 3 || shift > 5 {
			t.Errorf("sample peak %d scans after reference, expected 4", shift)
		}
		if math.Abs(m.RTShift-(m.Sample.RetentionTime-m.Reference.RetentionTime)) > 1e-9 {
			t.Errorf("RTShift %f inconsistent with retention times", m.RTShift)
		}
	}

	// Same comparison with one worker and an explicit output file
	explicitOut := filepath.Join(dir, "explicit.json")
	if _, err := runCmd(t, "-q", "--workers", "1", "-o", explicitOut, ref, sample); err != nil {
		t.Fatalf("gcmscompare: %v", err)
	}
	explicit := readMatchReport(t, explicitOut)
	if diff := cmp.Diff(report.Matches, explicit.Matches); diff != "" {
		t.Errorf("matches depend on worker count (-want +got):\n%s", diff)
	}
}

func TestCompareRepeatable(t *testing.T) {
	dir := t.TempDir()
	ref, sample := writeTestRuns(t, dir)
	first := filepath.Join(dir, "first.json")
	second := filepath.Join(dir, "second.json")
	for _, out := range []string{first, second} {
		if _, err := runCmd(t, "-q", "-o", out, ref, sample); err != nil {
			t.Fatalf("gcmscompare: %v", err)
		}
	}
	JSONCompareFile(t, first, second)
}

func TestCompareDebug(t *testing.T) {
	t.Setenv("GCMSCOMPARE_DEBUG", "1")
	dir := t.TempDir()
	ref, sample := writeTestRuns(t, dir)
	out, err := runCmd(t, "-q", "--debug", "0:1", ref, sample)
	if err != nil {
		t.Fatalf("gcmscompare: %v", err)
	}
	for _, want := range []string{"Sample peak:0 ", "Sample peak:1 ", "Reference peaks above threshold: 1"} {
		if !strings.Contains(out, want) {
			t.Errorf("debug output lacks %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Sample peak:2 ") {
		t.Errorf("debug output beyond requested range:\n%s", out)
	}
	report := readMatchReport(t, filepath.Join(dir, "sample-match.json"))
	if report.Sample.DebugInfo == nil || report.Sample.DebugInfo.RefinedWindow < 5 {
		t.Errorf("debug info %+v, expected refined window of at least 5", report.Sample.DebugInfo)
	}
}

func TestCompareErrors(t *testing.T) {
	dir := t.TempDir()
	ref, _ := writeTestRuns(t, dir)
	tests := []struct {
		name string
		args []string
	}{
		{"one file", []string{"-q", ref}},
		{"missing file", []string{"-q", ref, filepath.Join(dir, "absent.mzML")}},
		{"invalid height filter", []string{"-q", "--height-filter", "0", ref, ref}},
		{"invalid debug range", []string{"-q", "--debug", "5:2", ref, ref}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := runCmd(t, tc.args...); err == nil {
				t.Errorf("expected error, got nil")
			}
		})
	}
}

func TestPeaks(t *testing.T) {
	dir := t.TempDir()
	ref, _ := writeTestRuns(t, dir)
	out, err := runCmd(t, "peaks", "-q", ref)
	if err != nil {
		t.Fatalf("gcmscompare peaks: %v", err)
	}
	var report peaksReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("Error decoding peaks output: %v\n%s", err, out)
	}
	if len(report.Peaks) != 3 {
		t.Fatalf("%d peaks, expected 3", len(report.Peaks))
	}
	for i, want := range []int{80, 160, 240} {
		p := report.Peaks[i]
		if p.Index < want-1 || p.Index > want+1 {
			t.Errorf("peak %d at %d, expected %d", i, p.Index, want)
		}
		if !(p.LeftIndex < p.Index && p.Index < p.RightIndex) {
			t.Errorf("peak %d boundaries %d..%d do not enclose apex %d", i, p.LeftIndex, p.RightIndex, p.Index)
		}
	}
}
