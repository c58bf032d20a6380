package dataset

import (
	"errors"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestAtReturnsConfiguredShape(t *testing.T) {
	ds := makeDataset(t, 9)
	if ds.Len() != 9 {
		t.Fatalf("expected 9 samples, got %d", ds.Len())
	}
	for i := 0; i < ds.Len(); i++ {
		sample, err := ds.At(i)
		if err != nil {
			t.Fatalf("At(%d): %v", i, err)
		}
		r, c := sample.Features.Dims()
		if r != testOpts.SeqLen || c != testOpts.Channels {
			t.Fatalf("At(%d) shape [%d, %d]", i, r, c)
		}
		if sample.Label < 0 || sample.Label >= testOpts.NumClasses {
			t.Fatalf("At(%d) label %d out of range", i, sample.Label)
		}
	}
}

func TestAtOutOfRange(t *testing.T) {
	ds := makeDataset(t, 2)
	for _, i := range []int{-1, 2, 100} {
		if _, err := ds.At(i); !errors.Is(err, ErrIndex) {
			t.Fatalf("At(%d): got %v, want ErrIndex", i, err)
		}
	}
}

func TestNewRejectsBadData(t *testing.T) {
	good := mat.NewDense(testOpts.SeqLen, testOpts.Channels, nil)
	cases := map[string]struct {
		features []*mat.Dense
		labels   []int
	}{
		"length mismatch": {[]*mat.Dense{good, good}, []int{0}},
		"empty":           {nil, nil},
		"nil features":    {[]*mat.Dense{nil}, []int{0}},
		"wrong shape":     {[]*mat.Dense{mat.NewDense(testOpts.SeqLen, testOpts.Channels+1, nil)}, []int{0}},
		"label too large": {[]*mat.Dense{good}, []int{testOpts.NumClasses}},
		"negative label":  {[]*mat.Dense{good}, []int{-1}},
	}
	for name, tc := range cases {
		if _, err := New(tc.features, tc.labels, testOpts); !errors.Is(err, ErrData) {
			t.Fatalf("%s: got %v, want ErrData", name, err)
		}
	}
}
