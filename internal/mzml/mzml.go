// Package mzml reads mzML mass-spectrometry files into flat spectrum
// records. All controlled-vocabulary metadata (MS level, retention time,
// precursor m/z, precomputed totals) is resolved once at parse time, so
// callers never touch cvParams.
package mzml

import (
	"encoding/xml"
	"errors"
)

// Spectrum is one scan of a run, with peak data as parallel m/z and
// intensity arrays in file order.
type Spectrum struct {
	// Index is the position of the scan in the file's spectrum list.
	Index int
	// ID is the native spectrum identifier from the file.
	ID string
	// MSLevel is 1 for survey scans, 2 for fragmentation scans.
	MSLevel int
	// RetentionTime is in seconds. Files recording minutes are converted.
	RetentionTime float64
	MZs           []float64
	Intensities   []float64
	// HasPrecursor reports whether the scan carries a selected precursor
	// ion; PrecursorMZ is only meaningful when it is true.
	HasPrecursor bool
	PrecursorMZ  float64
	// TotalIonCurrent is the file's precomputed TIC, 0 when absent.
	TotalIonCurrent float64
	// BasePeakMZ and BasePeakIntensity are the file's precomputed base
	// peak, 0 when absent.
	BasePeakMZ        float64
	BasePeakIntensity float64
}

// Run holds the ordered spectra of one mzML file. Spectra appear in file
// order, which for real acquisitions is non-decreasing retention time; the
// reader does not verify this.
type Run struct {
	Spectra []Spectrum
}

var (
	// ErrUnsupportedCompression is returned for MS-Numpress encoded peak
	// arrays, which this reader does not decode.
	ErrUnsupportedCompression = errors.New("mzml: unsupported peak compression")
	// ErrNoSpectrumList is returned when the document carries no run data.
	ErrNoSpectrumList = errors.New("mzml: no spectrum list")
)

// CV accessions resolved by the reader.
const (
	cvMSLevel           = "MS:1000511"
	cvScanStartTime     = "MS:1000016"
	cvTotalIonCurrent   = "MS:1000285"
	cvBasePeakMZ        = "MS:1000504"
	cvBasePeakIntensity = "MS:1000505"
	cvSelectedIonMZ     = "MS:1000744"

	cvZlibCompression = "MS:1000574"
	cvMZArray         = "MS:1000514"
	cvIntensityArray  = "MS:1000515"
	cvFloat64         = "MS:1000523"
	cvFloat32         = "MS:1000521"

	// Time units for scan start time; both denote minutes.
	unitMinuteUO = "UO:0000031"
	unitMinuteMS = "MS:1000038"
)

// numpressAccessions are the MS-Numpress compression schemes, plain and
// zlib-wrapped.
var numpressAccessions = map[string]bool{
	"MS:1002312": true,
	"MS:1002313": true,
	"MS:1002314": true,
	"MS:1002746": true,
	"MS:1002747": true,
	"MS:1002748": true,
}

// The XML schema subset needed for reading. Sections only relevant for
// writing mzML back out (file description, instrument configuration, ...)
// are not mapped.
type mzMLDoc struct {
	XMLName xml.Name `xml:"http://psi.hupo.org/ms/mzml mzML"`
	Run     struct {
		ID           string `xml:"id,attr"`
		SpectrumList struct {
			Count    int           `xml:"count,attr"`
			Spectrum []xmlSpectrum `xml:"spectrum"`
		} `xml:"spectrumList"`
	} `xml:"run"`
}

type xmlSpectrum struct {
	Index              int        `xml:"index,attr"`
	ID                 string     `xml:"id,attr"`
	DefaultArrayLength int        `xml:"defaultArrayLength,attr"`
	CVParams           []cvParam  `xml:"cvParam"`
	ScanList           struct {
		Scan []struct {
			CVParams []cvParam `xml:"cvParam"`
		} `xml:"scan"`
	} `xml:"scanList"`
	PrecursorList struct {
		Precursor []struct {
			SelectedIonList struct {
				SelectedIon []struct {
					CVParams []cvParam `xml:"cvParam"`
				} `xml:"selectedIon"`
			} `xml:"selectedIonList"`
		} `xml:"precursor"`
	} `xml:"precursorList"`
	BinaryDataArrayList struct {
		BinaryDataArray []binaryDataArray `xml:"binaryDataArray"`
	} `xml:"binaryDataArrayList"`
}

type binaryDataArray struct {
	EncodedLength int       `xml:"encodedLength,attr"`
	CVParams      []cvParam `xml:"cvParam"`
	Binary        string    `xml:"binary"`
}

type cvParam struct {
	Accession     string `xml:"accession,attr"`
	Name          string `xml:"name,attr"`
	Value         string `xml:"value,attr"`
	UnitAccession string `xml:"unitAccession,attr"`
}
