package viz

import (
	"math"
	"strings"
	"testing"
)

func TestDecimateShortInputPassthrough(t *testing.T) {
	data := []float64{1, 2, 3}
	out := decimate(data, 160)
	if len(out) != 3 {
		t.Fatalf("short input was resampled to %d points", len(out))
	}
}

func TestDecimatePreservesExtremes(t *testing.T) {
	data := make([]float64, 10000)
	for i := range data {
		data[i] = math.Sin(float64(i) / 50)
	}
	data[4321] = 25   // isolated spike
	data[7777] = -30

	out := decimate(data, 160)
	if len(out) > 2*160 {
		t.Fatalf("decimated to %d points, want at most %d", len(out), 2*160)
	}

	lo, hi := out[0], out[0]
	for _, v := range out {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if hi != 25 || lo != -30 {
		t.Fatalf("spikes lost: min %g max %g", lo, hi)
	}
}

func TestSparklineRendersCaption(t *testing.T) {
	data := make([]float64, 500)
	for i := range data {
		data[i] = math.Cos(float64(i) / 20)
	}
	s := Sparkline(data, "test channel")
	if !strings.Contains(s, "test channel") {
		t.Fatal("caption missing from plot")
	}
	if len(strings.Split(s, "\n")) < 5 {
		t.Fatal("plot suspiciously short")
	}
}
