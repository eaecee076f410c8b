package index

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mzscope/mzscope/internal/mzml"
)

func TestBuildSeparatesLevels(t *testing.T) {
	spectra := []mzml.Spectrum{
		{MSLevel: 1, RetentionTime: 10, MZs: []float64{100}, Intensities: []float64{1}},
		{MSLevel: 2, RetentionTime: 12, HasPrecursor: true, PrecursorMZ: 500},
		{MSLevel: 1, RetentionTime: 20, MZs: []float64{100}, Intensities: []float64{2}},
		{MSLevel: 2, RetentionTime: 22, HasPrecursor: true, PrecursorMZ: 600},
		{MSLevel: 2, RetentionTime: 24}, // no precursor: dropped silently
		{MSLevel: 3, RetentionTime: 26}, // other levels ignored
	}

	idx := Build(spectra)

	if idx.MS1Count() != 2 {
		t.Errorf("MS1Count = %d, want 2", idx.MS1Count())
	}
	if idx.MS2Count() != 2 {
		t.Errorf("MS2Count = %d, want 2", idx.MS2Count())
	}
	if diff := cmp.Diff([]int{0, 2}, idx.MS1SourceIndices); diff != "" {
		t.Errorf("MS1 source indices mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{1, 3}, idx.MS2SourceIndices); diff != "" {
		t.Errorf("MS2 source indices mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{500, 600}, idx.MS2PrecursorMZs); diff != "" {
		t.Errorf("MS2 precursor m/z mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildParallelSlicesShareLength(t *testing.T) {
	spectra := []mzml.Spectrum{
		{MSLevel: 1, RetentionTime: 1, MZs: []float64{10}, Intensities: []float64{1}},
		{MSLevel: 2, RetentionTime: 2, HasPrecursor: true, PrecursorMZ: 300},
		{MSLevel: 1, RetentionTime: 3, MZs: []float64{10}, Intensities: []float64{2}},
	}

	idx := Build(spectra)

	ms1 := idx.MS1Count()
	if len(idx.MS1SourceIndices) != ms1 || len(idx.ScanSummary) != ms1 ||
		len(idx.TICRetentionTimes) != ms1 || len(idx.TICIntensities) != ms1 {
		t.Errorf("MS1-parallel slices diverged: rts=%d src=%d summary=%d ticRTs=%d ticInts=%d",
			ms1, len(idx.MS1SourceIndices), len(idx.ScanSummary),
			len(idx.TICRetentionTimes), len(idx.TICIntensities))
	}
	ms2 := idx.MS2Count()
	if len(idx.MS2PrecursorMZs) != ms2 || len(idx.MS2SourceIndices) != ms2 {
		t.Errorf("MS2-parallel slices diverged: rts=%d mzs=%d src=%d",
			ms2, len(idx.MS2PrecursorMZs), len(idx.MS2SourceIndices))
	}
}

func TestScanSummaryIDsContiguous(t *testing.T) {
	var spectra []mzml.Spectrum
	for i := 0; i < 5; i++ {
		spectra = append(spectra, mzml.Spectrum{
			MSLevel:       1,
			RetentionTime: float64(i),
			MZs:           []float64{100},
			Intensities:   []float64{1},
		})
		spectra = append(spectra, mzml.Spectrum{
			MSLevel: 2, RetentionTime: float64(i), HasPrecursor: true, PrecursorMZ: 400,
		})
	}

	idx := Build(spectra)

	if len(idx.ScanSummary) != 5 {
		t.Fatalf("scan summary length = %d, want the MS1 count 5", len(idx.ScanSummary))
	}
	for i, info := range idx.ScanSummary {
		if info.ID != i {
			t.Errorf("summary[%d].ID = %d, want %d", i, info.ID, i)
		}
	}
}

func TestTICPrefersPrecomputedValue(t *testing.T) {
	spectra := []mzml.Spectrum{
		{
			MSLevel:         1,
			RetentionTime:   10,
			MZs:             []float64{100, 200},
			Intensities:     []float64{3, 7},
			TotalIonCurrent: 1000, // file metadata wins over summation
		},
		{
			MSLevel:       1,
			RetentionTime: 20,
			MZs:           []float64{100, 200},
			Intensities:   []float64{3, 7},
			// no precomputed TIC: summed from the peak list
		},
	}

	idx := Build(spectra)

	if idx.ScanSummary[0].TIC != 1000 {
		t.Errorf("scan 0 TIC = %v, want precomputed 1000", idx.ScanSummary[0].TIC)
	}
	if idx.ScanSummary[1].TIC != 10 {
		t.Errorf("scan 1 TIC = %v, want summed 10", idx.ScanSummary[1].TIC)
	}
	if diff := cmp.Diff([]float64{1000, 10}, idx.TICIntensities); diff != "" {
		t.Errorf("TIC series mismatch (-want +got):\n%s", diff)
	}
}

func TestBasePeakTieBrokenByFirstOccurrence(t *testing.T) {
	spectra := []mzml.Spectrum{
		{
			MSLevel:       1,
			RetentionTime: 10,
			MZs:           []float64{100, 150, 200, 250},
			Intensities:   []float64{5, 7, 7, 3},
		},
	}

	idx := Build(spectra)

	if idx.ScanSummary[0].BasePeakMZ != 150 {
		t.Errorf("base peak m/z = %v, want 150 (first of the tied maxima)", idx.ScanSummary[0].BasePeakMZ)
	}
	if idx.ScanSummary[0].BasePeakIntensity != 7 {
		t.Errorf("base peak intensity = %v, want 7", idx.ScanSummary[0].BasePeakIntensity)
	}
}

func TestEmptyMS1Spectrum(t *testing.T) {
	spectra := []mzml.Spectrum{
		{MSLevel: 1, RetentionTime: 10},
	}

	idx := Build(spectra)

	info := idx.ScanSummary[0]
	if info.TIC != 0 || info.BasePeakMZ != 0 || info.BasePeakIntensity != 0 {
		t.Errorf("peakless scan summary = %+v, want zero TIC and base peak", info)
	}
}
