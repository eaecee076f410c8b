package query

import "testing"

func TestDecimateUnderLimitUntouched(t *testing.T) {
	rts := []float64{1, 2, 3}
	ints := []float64{4, 5, 6}

	outRTs, outInts := Decimate(rts, ints, 3)
	if len(outRTs) != 3 || len(outInts) != 3 {
		t.Fatalf("series under the limit must pass through, got lengths %d/%d", len(outRTs), len(outInts))
	}
	if &outRTs[0] != &rts[0] {
		t.Error("series under the limit should not be copied")
	}
}

func TestDecimateStrideSampling(t *testing.T) {
	const n = 250000
	const limit = 100000

	rts := make([]float64, n)
	ints := make([]float64, n)
	for i := range rts {
		rts[i] = float64(i)
		ints[i] = float64(i * 10)
	}

	outRTs, outInts := Decimate(rts, ints, limit)

	stride := n / limit // 2
	wantLen := (n + stride - 1) / stride
	if len(outRTs) != wantLen {
		t.Fatalf("decimated length = %d, want %d", len(outRTs), wantLen)
	}
	if len(outInts) != len(outRTs) {
		t.Fatalf("parallel arrays diverged: %d vs %d", len(outRTs), len(outInts))
	}
	for k := range outRTs {
		if outRTs[k] != float64(k*stride) {
			t.Fatalf("output position %d holds input %v, want input position %d", k, outRTs[k], k*stride)
		}
		if outInts[k] != float64(k*stride*10) {
			t.Fatalf("intensity pairing broken at output position %d", k)
		}
	}
}

func TestDecimateLargeStride(t *testing.T) {
	rts := make([]float64, 10)
	ints := make([]float64, 10)
	for i := range rts {
		rts[i] = float64(i)
	}

	outRTs, _ := Decimate(rts, ints, 3)
	// stride = 3: keeps positions 0, 3, 6, 9.
	want := []float64{0, 3, 6, 9}
	if len(outRTs) != len(want) {
		t.Fatalf("length = %d, want %d", len(outRTs), len(want))
	}
	for i, v := range want {
		if outRTs[i] != v {
			t.Errorf("position %d = %v, want %v", i, outRTs[i], v)
		}
	}
}
