package probe

import "math"

const (
	// WaveformColumns is the number of peaks in a waveform.
	WaveformColumns = 1000
	// WaveformRate is the mono sample rate waveforms are computed from.
	WaveformRate = 2000
)

// Peaks reduces mono samples to columns peak magnitudes, each the maximum
// absolute sample of its block, clamped to 1. Fewer samples than columns
// yields one peak per sample.
func Peaks(samples []float32, columns int) []float32 {
	if len(samples) == 0 || columns <= 0 {
		return nil
	}
	block := max(len(samples)/columns, 1)
	n := min(columns, (len(samples)+block-1)/block)

	peaks := make([]float32, n)
	for i := range peaks {
		end := min((i+1)*block, len(samples))
		var peak float64
		for _, s := range samples[i*block : end] {
			peak = math.Max(peak, math.Abs(float64(s)))
		}
		peaks[i] = float32(math.Min(peak, 1))
	}
	return peaks
}
