// Package index builds the per-run in-memory index that the query engine
// operates on. A RunIndex is built in a single pass over the spectra and is
// immutable afterwards, so any number of queries may read it concurrently
// without locking.
package index

import (
	"gonum.org/v1/gonum/floats"

	"github.com/mzscope/mzscope/internal/mzml"
)

// ScanInfo is the scan-list summary entry for one MS1 scan.
type ScanInfo struct {
	// ID is a 0-based sequential number in MS1 encounter order, not the
	// file's native spectrum index.
	ID                int     `json:"id"`
	RetentionTime     float64 `json:"rt"`
	TIC               float64 `json:"tic"`
	BasePeakMZ        float64 `json:"base_peak_mz"`
	BasePeakIntensity float64 `json:"base_peak_int"`
}

// RunIndex holds the precomputed lookup structures for one run.
//
// The MS1 slices are parallel: position i describes the i-th MS1 scan in
// file order. Likewise the MS2 slices, which carry one entry per MS2 scan
// that has a precursor. MS1RetentionTimes is ascending as long as the file
// records scans in acquisition order; that ordering is a precondition of
// the nearest-RT search, not something Build verifies.
type RunIndex struct {
	MS1RetentionTimes []float64
	MS1SourceIndices  []int

	MS2PrecursorMZs   []float64
	MS2RetentionTimes []float64
	MS2SourceIndices  []int

	ScanSummary []ScanInfo

	// TICRetentionTimes and TICIntensities form the precomputed total-ion
	// chromatogram, one point per MS1 scan.
	TICRetentionTimes []float64
	TICIntensities    []float64
}

// Build constructs a RunIndex from the spectra of one run in a single
// linear pass. MS2 scans without a precursor are dropped; MS levels other
// than 1 and 2 are ignored.
func Build(spectra []mzml.Spectrum) *RunIndex {
	idx := &RunIndex{}

	for i := range spectra {
		s := &spectra[i]
		switch s.MSLevel {
		case 1:
			idx.addMS1(i, s)
		case 2:
			if s.HasPrecursor {
				idx.MS2PrecursorMZs = append(idx.MS2PrecursorMZs, s.PrecursorMZ)
				idx.MS2RetentionTimes = append(idx.MS2RetentionTimes, s.RetentionTime)
				idx.MS2SourceIndices = append(idx.MS2SourceIndices, i)
			}
		}
	}
	return idx
}

func (idx *RunIndex) addMS1(sourceIndex int, s *mzml.Spectrum) {
	idx.MS1RetentionTimes = append(idx.MS1RetentionTimes, s.RetentionTime)
	idx.MS1SourceIndices = append(idx.MS1SourceIndices, sourceIndex)

	tic := s.TotalIonCurrent
	if tic <= 0 && len(s.Intensities) > 0 {
		tic = floats.Sum(s.Intensities)
	}

	bpMZ, bpIntensity := basePeak(s)

	idx.ScanSummary = append(idx.ScanSummary, ScanInfo{
		ID:                len(idx.ScanSummary),
		RetentionTime:     s.RetentionTime,
		TIC:               tic,
		BasePeakMZ:        bpMZ,
		BasePeakIntensity: bpIntensity,
	})

	idx.TICRetentionTimes = append(idx.TICRetentionTimes, s.RetentionTime)
	idx.TICIntensities = append(idx.TICIntensities, tic)
}

// basePeak returns the m/z and intensity of the most intense peak, ties
// broken by first occurrence.
func basePeak(s *mzml.Spectrum) (mz, intensity float64) {
	if len(s.Intensities) == 0 {
		return 0, 0
	}
	at := floats.MaxIdx(s.Intensities)
	return s.MZs[at], s.Intensities[at]
}

// MS1Count returns the number of MS1 scans in the run.
func (idx *RunIndex) MS1Count() int {
	return len(idx.MS1RetentionTimes)
}

// MS2Count returns the number of MS2 scans with a precursor.
func (idx *RunIndex) MS2Count() int {
	return len(idx.MS2RetentionTimes)
}
