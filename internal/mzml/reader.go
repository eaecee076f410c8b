package mzml

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"encoding/binary"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"golang.org/x/net/html/charset"
)

// ReadFile parses the mzML file at path.
func ReadFile(path string) (*Run, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// Read parses an mzML document from reader. Documents wrapped in
// indexedmzML are handled by skipping to the inner mzML element.
func Read(reader io.Reader) (*Run, error) {
	var doc mzMLDoc
	seen := false

	d := xml.NewDecoder(reader)
	d.CharsetReader = charset.NewReaderLabel

	for {
		t, tokenErr := d.Token()
		if tokenErr != nil {
			if tokenErr == io.EOF {
				break
			}
			return nil, fmt.Errorf("mzml: decoding document: %w", tokenErr)
		}
		if se, ok := t.(xml.StartElement); ok && se.Name.Local == "mzML" {
			if err := d.DecodeElement(&doc, &se); err != nil {
				return nil, fmt.Errorf("mzml: decoding mzML element: %w", err)
			}
			seen = true
		}
	}
	if !seen {
		return nil, ErrNoSpectrumList
	}

	run := &Run{Spectra: make([]Spectrum, 0, len(doc.Run.SpectrumList.Spectrum))}
	for i := range doc.Run.SpectrumList.Spectrum {
		s, err := resolveSpectrum(i, &doc.Run.SpectrumList.Spectrum[i])
		if err != nil {
			return nil, fmt.Errorf("mzml: spectrum %d (%s): %w", i, doc.Run.SpectrumList.Spectrum[i].ID, err)
		}
		run.Spectra = append(run.Spectra, s)
	}
	return run, nil
}

// resolveSpectrum flattens one XML spectrum into a Spectrum record,
// resolving cvParams and decoding the peak arrays.
func resolveSpectrum(index int, xs *xmlSpectrum) (Spectrum, error) {
	s := Spectrum{
		Index:   index,
		ID:      xs.ID,
		MSLevel: 1, // mzML allows omitting ms level; a survey scan is the safe guess
	}

	for _, cv := range xs.CVParams {
		switch cv.Accession {
		case cvMSLevel:
			level, err := strconv.Atoi(cv.Value)
			if err != nil {
				return s, fmt.Errorf("bad ms level %q: %w", cv.Value, err)
			}
			s.MSLevel = level
		case cvTotalIonCurrent:
			if v, err := strconv.ParseFloat(cv.Value, 64); err == nil {
				s.TotalIonCurrent = v
			}
		case cvBasePeakMZ:
			if v, err := strconv.ParseFloat(cv.Value, 64); err == nil {
				s.BasePeakMZ = v
			}
		case cvBasePeakIntensity:
			if v, err := strconv.ParseFloat(cv.Value, 64); err == nil {
				s.BasePeakIntensity = v
			}
		}
	}

	rt, err := retentionTime(xs)
	if err != nil {
		return s, err
	}
	s.RetentionTime = rt

	if mz, ok := firstPrecursorMZ(xs); ok {
		s.HasPrecursor = true
		s.PrecursorMZ = mz
	}

	if err := decodePeaks(&s, xs); err != nil {
		return s, err
	}
	return s, nil
}

// retentionTime extracts the scan start time in seconds. Values recorded in
// minutes carry a minute unit accession and are converted.
func retentionTime(xs *xmlSpectrum) (float64, error) {
	for _, scan := range xs.ScanList.Scan {
		for _, cv := range scan.CVParams {
			if cv.Accession != cvScanStartTime {
				continue
			}
			rt, err := strconv.ParseFloat(cv.Value, 64)
			if err != nil {
				return 0, fmt.Errorf("bad scan start time %q: %w", cv.Value, err)
			}
			if cv.UnitAccession == unitMinuteUO || cv.UnitAccession == unitMinuteMS {
				rt *= 60
			}
			return rt, nil
		}
	}
	return -1, nil
}

// firstPrecursorMZ returns the selected ion m/z of the first precursor, if
// the scan has one.
func firstPrecursorMZ(xs *xmlSpectrum) (float64, bool) {
	for _, prec := range xs.PrecursorList.Precursor {
		for _, ion := range prec.SelectedIonList.SelectedIon {
			for _, cv := range ion.CVParams {
				if cv.Accession != cvSelectedIonMZ {
					continue
				}
				if mz, err := strconv.ParseFloat(cv.Value, 64); err == nil {
					return mz, true
				}
			}
		}
	}
	return 0, false
}

// decodePeaks fills s.MZs and s.Intensities from the spectrum's binary data
// arrays.
func decodePeaks(s *Spectrum, xs *xmlSpectrum) error {
	for i := range xs.BinaryDataArrayList.BinaryDataArray {
		bda := &xs.BinaryDataArrayList.BinaryDataArray[i]
		values, isMZ, isIntensity, err := decodeArray(bda)
		if err != nil {
			return err
		}
		switch {
		case isMZ:
			s.MZs = values
		case isIntensity:
			s.Intensities = values
		}
	}
	// Peak arrays must stay parallel; a file with mismatched array lengths
	// is unusable downstream.
	if len(s.MZs) != len(s.Intensities) {
		return fmt.Errorf("m/z and intensity arrays differ in length (%d vs %d)",
			len(s.MZs), len(s.Intensities))
	}
	return nil
}

// decodeArray base64-decodes one binary data array, inflating zlib payloads
// and converting 32- or 64-bit little-endian floats.
func decodeArray(bda *binaryDataArray) (values []float64, isMZ, isIntensity bool, err error) {
	zlibCompressed := false
	bits64 := false

	for _, cv := range bda.CVParams {
		switch {
		case cv.Accession == cvZlibCompression:
			zlibCompressed = true
		case cv.Accession == cvMZArray:
			isMZ = true
		case cv.Accession == cvIntensityArray:
			isIntensity = true
		case cv.Accession == cvFloat64:
			bits64 = true
		case cv.Accession == cvFloat32:
			bits64 = false
		case numpressAccessions[cv.Accession]:
			return nil, false, false, fmt.Errorf("%w: %s", ErrUnsupportedCompression, cv.Accession)
		}
	}
	if !isMZ && !isIntensity {
		// Other array types (charge, noise, ...) are not needed.
		return nil, false, false, nil
	}

	data, err := base64.StdEncoding.DecodeString(bda.Binary)
	if err != nil {
		return nil, false, false, fmt.Errorf("base64 decode: %w", err)
	}
	if zlibCompressed {
		z, zerr := zlib.NewReader(bytes.NewReader(data))
		if zerr != nil {
			return nil, false, false, fmt.Errorf("zlib init: %w", zerr)
		}
		defer z.Close()
		data, zerr = io.ReadAll(z)
		if zerr != nil {
			return nil, false, false, fmt.Errorf("zlib inflate: %w", zerr)
		}
	}

	if bits64 {
		cnt := len(data) / 8
		values = make([]float64, cnt)
		for i := 0; i < cnt; i++ {
			values[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[i*8:]))
		}
	} else {
		cnt := len(data) / 4
		values = make([]float64, cnt)
		for i := 0; i < cnt; i++ {
			values[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:])))
		}
	}
	return values, isMZ, isIntensity, nil
}
