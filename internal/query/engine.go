// Package query implements the four query algorithms that run against a
// RunIndex: TIC retrieval, extracted-ion chromatograms, nearest-RT spectrum
// lookup with MS2 annotation, and precursor-matched MS2 lookup. All
// operations are pure reads; a loaded run is never mutated.
package query

import (
	"errors"
	"math"
	"net/http"
	"sort"

	"github.com/mzscope/mzscope/internal/index"
	"github.com/mzscope/mzscope/internal/mzml"
	apperrors "github.com/mzscope/mzscope/pkg/errors"
)

// Sentinels for the distinguishable not-found conditions of the lookup
// operations.
var (
	ErrNoMS1Scans        = errors.New("run contains no MS1 scans")
	ErrPrecursorNotFound = errors.New("no MS2 scan matches precursor m/z")
	ErrRTWindowExceeded  = errors.New("no matching MS2 scan within retention-time window")
)

// Tolerances are the windows used by spectrum and MS2 lookups. The defaults
// assume typical LC-MS/MS scan rates; override them per instrument through
// configuration.
type Tolerances struct {
	// MS2AnnotationRTWindow restricts, in seconds, which MS2 acquisitions
	// may annotate an MS1 scan's peaks. Strict comparison: an MS2 scan
	// exactly at the window boundary does not qualify.
	MS2AnnotationRTWindow float64
	// MS2AnnotationMZTol is the m/z distance within which an MS1 peak is
	// considered fragmented.
	MS2AnnotationMZTol float64
	// PrecursorMZTol is the precursor tolerance of MS2Spectrum, in m/z.
	PrecursorMZTol float64
	// PrecursorRTWindow is the retention-time window of MS2Spectrum, in
	// seconds.
	PrecursorRTWindow float64
	// MaxSeriesPoints caps chromatogram series length; longer series are
	// stride-decimated before leaving the engine.
	MaxSeriesPoints int
}

// DefaultTolerances returns the stock tolerance windows.
func DefaultTolerances() Tolerances {
	return Tolerances{
		MS2AnnotationRTWindow: 60.0,
		MS2AnnotationMZTol:    0.1,
		PrecursorMZTol:        0.2,
		PrecursorRTWindow:     120.0,
		MaxSeriesPoints:       100000,
	}
}

// Engine executes queries against loaded runs.
type Engine struct {
	tol Tolerances
}

func New(tol Tolerances) *Engine {
	return &Engine{tol: tol}
}

// Series is a retention-time/intensity pair of parallel arrays.
type Series struct {
	RetentionTimes []float64 `json:"rts"`
	Intensities    []float64 `json:"ints"`
}

// SpectrumResult is the peak list of one MS1 scan plus the subset of its
// peak m/z values that triggered MS2 acquisitions nearby.
type SpectrumResult struct {
	MZs           []float64 `json:"mzs"`
	Intensities   []float64 `json:"ints"`
	RetentionTime float64   `json:"rt"`
	AnnotatedMZs  []float64 `json:"has_ms2"`
}

// MS2Result is the peak list of one fragmentation scan.
type MS2Result struct {
	MZs           []float64 `json:"mzs"`
	Intensities   []float64 `json:"ints"`
	RetentionTime float64   `json:"rt"`
	PrecursorMZ   float64   `json:"precursor_mz"`
}

// TIC returns the precomputed total-ion chromatogram, decimated if longer
// than the series cap. Nothing is recomputed.
func (e *Engine) TIC(idx *index.RunIndex) Series {
	rts, ints := Decimate(idx.TICRetentionTimes, idx.TICIntensities, e.tol.MaxSeriesPoints)
	return Series{RetentionTimes: rts, Intensities: ints}
}

// ExtractChromatogram sums, per MS1 scan, the intensities of peaks whose
// m/z lies in the closed interval [minMZ, maxMZ]. This is a full scan of
// the peak data; intensity-in-range cannot be precomputed for an arbitrary
// range. An inverted range is a valid degenerate query producing an
// all-zero series.
func (e *Engine) ExtractChromatogram(spectra []mzml.Spectrum, minMZ, maxMZ float64) Series {
	var rts, ints []float64
	for i := range spectra {
		s := &spectra[i]
		if s.MSLevel != 1 {
			continue
		}
		sum := 0.0
		for p, mz := range s.MZs {
			if mz >= minMZ && mz <= maxMZ {
				sum += s.Intensities[p]
			}
		}
		rts = append(rts, s.RetentionTime)
		ints = append(ints, sum)
	}
	rts, ints = Decimate(rts, ints, e.tol.MaxSeriesPoints)
	return Series{RetentionTimes: rts, Intensities: ints}
}

// Spectrum returns the MS1 scan closest in retention time to targetRT,
// with its peaks annotated against nearby MS2 precursors.
func (e *Engine) Spectrum(spectra []mzml.Spectrum, idx *index.RunIndex, targetRT float64) (*SpectrumResult, error) {
	if idx.MS1Count() == 0 {
		return nil, apperrors.New(ErrNoMS1Scans, http.StatusNotFound, "no spectrum to select")
	}

	best := nearestMS1(idx.MS1RetentionTimes, targetRT)
	s := &spectra[idx.MS1SourceIndices[best]]

	return &SpectrumResult{
		MZs:           s.MZs,
		Intensities:   s.Intensities,
		RetentionTime: s.RetentionTime,
		AnnotatedMZs:  e.annotateMS2(idx, s),
	}, nil
}

// nearestMS1 locates the position in the ascending rts slice closest to
// target. On an exact distance tie the insertion-point candidate (the later
// scan) wins, the comparison against the previous element being strict.
func nearestMS1(rts []float64, target float64) int {
	i := sort.SearchFloat64s(rts, target)
	if i >= len(rts) {
		return len(rts) - 1
	}
	if i > 0 && math.Abs(rts[i-1]-target) < math.Abs(rts[i]-target) {
		return i - 1
	}
	return i
}

// annotateMS2 returns the peak m/z values of s, in original peak order,
// that lie within the annotation tolerance of some MS2 precursor recorded
// within the annotation RT window of s.
func (e *Engine) annotateMS2(idx *index.RunIndex, s *mzml.Spectrum) []float64 {
	var candidates []float64
	for j, rt := range idx.MS2RetentionTimes {
		if math.Abs(rt-s.RetentionTime) < e.tol.MS2AnnotationRTWindow {
			candidates = append(candidates, idx.MS2PrecursorMZs[j])
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.Float64s(candidates)

	var flagged []float64
	for _, mz := range s.MZs {
		pos := sort.SearchFloat64s(candidates, mz)
		match := false
		if pos < len(candidates) && math.Abs(candidates[pos]-mz) < e.tol.MS2AnnotationMZTol {
			match = true
		}
		if !match && pos > 0 && math.Abs(candidates[pos-1]-mz) < e.tol.MS2AnnotationMZTol {
			match = true
		}
		if match {
			flagged = append(flagged, mz)
		}
	}
	return flagged
}

// MS2Spectrum returns the fragmentation scan whose precursor m/z lies
// within the precursor tolerance of precursorMZ and whose retention time is
// closest to targetRT within the RT window. The two failure modes are
// distinguishable: no precursor match at all, or precursor matches only
// outside the RT window.
func (e *Engine) MS2Spectrum(spectra []mzml.Spectrum, idx *index.RunIndex, precursorMZ, targetRT float64) (*MS2Result, error) {
	var matched []int
	for j, mz := range idx.MS2PrecursorMZs {
		if math.Abs(mz-precursorMZ) < e.tol.PrecursorMZTol {
			matched = append(matched, j)
		}
	}
	if len(matched) == 0 {
		return nil, apperrors.Newf(ErrPrecursorNotFound, http.StatusNotFound,
			"precursor m/z %.4f (tolerance %.4f)", precursorMZ, e.tol.PrecursorMZTol)
	}

	best := -1
	bestDiff := math.Inf(1)
	for _, j := range matched {
		diff := math.Abs(idx.MS2RetentionTimes[j] - targetRT)
		if diff >= e.tol.PrecursorRTWindow {
			continue
		}
		if diff < bestDiff {
			best = j
			bestDiff = diff
		}
	}
	if best < 0 {
		return nil, apperrors.Newf(ErrRTWindowExceeded, http.StatusNotFound,
			"rt %.2f s (window %.0f s)", targetRT, e.tol.PrecursorRTWindow)
	}

	s := &spectra[idx.MS2SourceIndices[best]]
	return &MS2Result{
		MZs:           s.MZs,
		Intensities:   s.Intensities,
		RetentionTime: s.RetentionTime,
		PrecursorMZ:   s.PrecursorMZ,
	}, nil
}

// ScanList returns the precomputed per-MS1-scan summary in encounter
// order, unfiltered and undecimated.
func (e *Engine) ScanList(idx *index.RunIndex) []index.ScanInfo {
	return idx.ScanSummary
}
