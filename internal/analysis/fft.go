package analysis

import (
	"errors"
	"fmt"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

var ErrTooShort = errors.New("analysis: series too short")

// PowerSpectrum returns the magnitude of the first half of the transform of
// data with its mean removed.
func PowerSpectrum(data []float64) []float64 {
	mean := 0.0
	for _, v := range data {
		mean += v
	}
	if len(data) > 0 {
		mean /= float64(len(data))
	}
	centered := make([]float64, len(data))
	for i, v := range data {
		centered[i] = v - mean
	}

	spectrum := fft.FFTReal(centered)
	ps := make([]float64, len(spectrum)/2)
	for i := range ps {
		ps[i] = cmplx.Abs(spectrum[i])
	}
	return ps
}

// Resample linearly interpolates values sampled at increasing times onto n
// evenly spaced points spanning the same interval.
func Resample(times, values []float64, n int) ([]float64, float64, error) {
	if len(times) != len(values) {
		return nil, 0, fmt.Errorf("resample: %d times for %d values", len(times), len(values))
	}
	if len(times) < 2 || n < 2 {
		return nil, 0, ErrTooShort
	}
	t0, t1 := times[0], times[len(times)-1]
	step := (t1 - t0) / float64(n-1)
	out := make([]float64, n)
	j := 0
	for i := range out {
		t := t0 + float64(i)*step
		for j < len(times)-2 && times[j+1] < t {
			j++
		}
		span := times[j+1] - times[j]
		frac := 0.0
		if span > 0 {
			frac = (t - times[j]) / span
		}
		out[i] = values[j] + frac*(values[j+1]-values[j])
	}
	return out, step, nil
}

// DominantFrequency returns the frequency in Hz of the largest non-zero
// spectral peak. Unevenly sampled series are resampled first.
func DominantFrequency(times, values []float64) (float64, error) {
	if len(values) < 4 {
		return 0, ErrTooShort
	}
	uniform, dt, err := Resample(times, values, len(values))
	if err != nil {
		return 0, err
	}
	ps := PowerSpectrum(uniform)
	n := len(uniform)

	peak := 1
	for k := 2; k < len(ps); k++ {
		if ps[k] > ps[peak] {
			peak = k
		}
	}
	return float64(peak) / (float64(n) * dt), nil
}
