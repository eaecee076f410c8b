package query

// Decimate uniformly downsamples a pair of parallel series to at most limit
// points by keeping every stride-th element starting at position 0, where
// stride = len/limit. This is a positional subsample, not an
// area-preserving downsample; it is applied only to full-run time series,
// never to spectrum payloads. Both slices are subsampled identically so
// their pairing survives.
//
// Series at or under the limit are returned as-is, without copying.
func Decimate(rts, ints []float64, limit int) ([]float64, []float64) {
	n := len(rts)
	if limit < 1 || n <= limit {
		return rts, ints
	}

	stride := n / limit
	outLen := (n + stride - 1) / stride
	outRTs := make([]float64, 0, outLen)
	outInts := make([]float64, 0, outLen)
	for i := 0; i < n; i += stride {
		outRTs = append(outRTs, rts[i])
		outInts = append(outInts, ints[i])
	}
	return outRTs, outInts
}
