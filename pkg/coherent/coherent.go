// Package coherent snaps measurement frequencies onto coherent bins.
//
// A coherent frequency completes an integer number of cycles K inside a
// window of N samples, f = K/N*fs. Keeping K coprime with N makes every
// sample in the window land on a distinct phase of the tone.
package coherent

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidArgument is returned for a non-positive sample rate or window
// length, non-finite inputs, or a shape that does not describe the data.
var ErrInvalidArgument = errors.New("invalid argument")

// Array is a row-major N-dimensional block of target frequencies.
// An empty Shape describes a scalar and must carry exactly one value.
type Array struct {
	Shape []int
	Data  []float64
}

// Result holds coherent frequencies and cycle counts in the shape of the
// request that produced them.
type Result struct {
	Shape  []int
	Freqs  []float64
	Cycles []int
}

// Select returns the coherent frequency nearest below f0 and its cycle count.
//
// The initial estimate is floor(f0/fs*n). When it shares a factor with n it
// is decremented once; no further search is made.
func Select(f0, fs float64, n int) (float64, int, error) {
	if err := validate(fs, n); err != nil {
		return 0, 0, err
	}
	k, err := cycles(f0, fs, n)
	if err != nil {
		return 0, 0, err
	}
	return frequency(k, fs, n), k, nil
}

// SelectSlice applies Select to every element of f0.
func SelectSlice(f0 []float64, fs float64, n int) ([]float64, []int, error) {
	if err := validate(fs, n); err != nil {
		return nil, nil, err
	}

	freqs := make([]float64, len(f0))
	ks := make([]int, len(f0))
	for i, f := range f0 {
		k, err := cycles(f, fs, n)
		if err != nil {
			return nil, nil, fmt.Errorf("element %d: %w", i, err)
		}
		ks[i] = k
		freqs[i] = frequency(k, fs, n)
	}
	return freqs, ks, nil
}

// SelectArray applies Select elementwise and keeps the input shape.
func SelectArray(f0 Array, fs float64, n int) (Result, error) {
	size := 1
	for i, d := range f0.Shape {
		if d < 0 {
			return Result{}, fmt.Errorf("%w: dimension %d is negative: %d", ErrInvalidArgument, i, d)
		}
		size *= d
	}
	if size != len(f0.Data) {
		return Result{}, fmt.Errorf("%w: shape %v holds %d values, got %d", ErrInvalidArgument, f0.Shape, size, len(f0.Data))
	}

	freqs, ks, err := SelectSlice(f0.Data, fs, n)
	if err != nil {
		return Result{}, err
	}

	shape := make([]int, len(f0.Shape))
	copy(shape, f0.Shape)
	return Result{Shape: shape, Freqs: freqs, Cycles: ks}, nil
}

// Stimulus renders n samples of a sine at the coherent frequency selected
// for f0, together with that frequency and its cycle count.
func Stimulus(f0, fs float64, n int, amplitude float64) ([]float64, float64, int, error) {
	fi, k, err := Select(f0, fs, n)
	if err != nil {
		return nil, 0, 0, err
	}
	if math.IsNaN(amplitude) || math.IsInf(amplitude, 0) {
		return nil, 0, 0, fmt.Errorf("%w: amplitude must be finite: %f", ErrInvalidArgument, amplitude)
	}

	out := make([]float64, n)
	step := 2 * math.Pi * fi / fs
	for i := range out {
		out[i] = amplitude * math.Sin(step*float64(i))
	}
	return out, fi, k, nil
}

func validate(fs float64, n int) error {
	if math.IsNaN(fs) || math.IsInf(fs, 0) || fs <= 0 {
		return fmt.Errorf("%w: sample rate must be > 0: %f", ErrInvalidArgument, fs)
	}
	if n <= 0 {
		return fmt.Errorf("%w: window length must be > 0: %d", ErrInvalidArgument, n)
	}
	return nil
}

func cycles(f0, fs float64, n int) (int, error) {
	est := math.Floor(f0 / fs * float64(n))
	if math.IsNaN(est) || est >= math.MaxInt64 || est < math.MinInt64 {
		return 0, fmt.Errorf("%w: frequency %g has no integer cycle count", ErrInvalidArgument, f0)
	}

	k := int(est)
	if gcd(k, n) != 1 {
		k--
	}
	return k, nil
}

func frequency(k int, fs float64, n int) float64 {
	return float64(k) / float64(n) * fs
}

// gcd follows the sign-agnostic convention: gcd(0, n) = |n|.
func gcd(a, b int) int {
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
