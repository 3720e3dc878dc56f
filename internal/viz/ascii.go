package viz

import "github.com/guptarohit/asciigraph"

// Sparkline plots a channel as an ascii graph sized for a standard terminal.
// Long histories are decimated by peak-preserving min/max pairs so transients
// survive the downsampling.
func Sparkline(data []float64, caption string) string {
	return asciigraph.Plot(decimate(data, 160),
		asciigraph.Height(12),
		asciigraph.Width(80),
		asciigraph.Caption(caption),
	)
}

func decimate(data []float64, target int) []float64 {
	if len(data) <= target {
		return data
	}
	bucket := (len(data) + target/2 - 1) / (target / 2)
	out := make([]float64, 0, target)
	for i := 0; i < len(data); i += bucket {
		end := i + bucket
		if end > len(data) {
			end = len(data)
		}
		lo, hi := data[i], data[i]
		loAt, hiAt := i, i
		for j := i + 1; j < end; j++ {
			if data[j] < lo {
				lo, loAt = data[j], j
			}
			if data[j] > hi {
				hi, hiAt = data[j], j
			}
		}
		if loAt <= hiAt {
			out = append(out, lo, hi)
		} else {
			out = append(out, hi, lo)
		}
	}
	return out
}
