package chromatogram_test

import (
	"bytes"
	"testing"

	"github.com/524D/gcmscompare/internal/chromatogram"
	"github.com/524D/gcmscompare/internal/gcmstest"
	"github.com/524D/gcmscompare/internal/mzml"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestFromMzML(t *testing.T) {
	want := gcmstest.Chromatogram(gcmstest.RunLength, 0.5, gcmstest.Mixture(3, 1))

	var buf bytes.Buffer
	if err := gcmstest.WriteMzML(&buf, want); err != nil {
		t.Fatalf("WriteMzML: %v", err)
	}
	f, err := mzml.Read(&buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	got, err := chromatogram.FromMzML(&f)
	if err != nil {
		t.Fatalf("FromMzML: %v", err)
	}

	if diff := cmp.Diff(want.Times(), got.Times()); diff != "" {
		t.Errorf("times mismatch (-want +got):\n%s", diff)
	}
	wantTIC, _ := want.Trace(chromatogram.TIC)
	gotTIC, err := got.Trace(chromatogram.TIC)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(wantTIC, gotTIC, cmpopts.EquateApprox(1e-12, 0)); diff != "" {
		t.Errorf("TIC mismatch (-want +got):\n%s", diff)
	}
	wantMS, _ := want.Spectra(chromatogram.MS)
	gotMS, err := got.Spectra(chromatogram.MS)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(wantMS, gotMS, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("MS mismatch (-want +got):\n%s", diff)
	}
}
