package replay

import (
	"path/filepath"
	"reflect"
	"testing"

	"github.com/hamdii02/Targeted-Adversarial-Attacks-on-Sentiment-Analysis-Models/internal/store"
)

// #region fixture-tests

func TestFixture_Load(t *testing.T) {
	f, err := LoadFixture(filepath.Join("testdata", "runs.json"))
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}
	if len(f.Runs) != 3 || f.Runs[0].Precision != 3 {
		t.Fatalf("unexpected fixture %+v", f)
	}
	if f.Runs[2].Scores != nil {
		t.Errorf("failed run should carry no scores")
	}
}

func TestFixture_MissingFile(t *testing.T) {
	if _, err := LoadFixture(filepath.Join("testdata", "nope.json")); err == nil {
		t.Fatal("expected error")
	}
}

func TestFixture_ExportRoundTrip(t *testing.T) {
	runs := []store.RunRecord{{
		RunID:         "r1",
		Reference:     "My grandmother's secret sauce is the best ever made!",
		FinalSentence: "Nobody cooks a finer broth than my old nana does.",
		Labels:        []string{"POSITIVE", "NEGATIVE"},
		Scores:        []float64{0.9981, 0.0019},
		Target:        []float64{0.998, 0.002},
		Precision:     3,
		Status:        store.StatusSucceeded,
	}}
	path := filepath.Join(t.TempDir(), "export.json")
	if err := WriteFixture(path, FixtureFromRuns("export", runs)); err != nil {
		t.Fatalf("WriteFixture: %v", err)
	}
	f, err := LoadFixture(path)
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}
	if f.Description != "export" || !reflect.DeepEqual(f.ToRunRecords(), runs) {
		t.Errorf("export lost data: %+v", f.ToRunRecords())
	}
}

// #endregion fixture-tests
