// Package lpcext implements the linear-prediction signal extension used
// to extrapolate a short tail of samples past the end of real input, so
// drain produces a cleaner end-of-stream than hard zero-padding.
//
// There is no teacher or original_source implementation of this: the
// retrieved C snapshot stubs end-of-stream padding with a fixed zero
// fill. This package is built directly from the autocorrelation /
// Levinson-Durbin / linear-prediction description in the specification.
package lpcext

import "math"

// Order is the LPC analysis order.
const Order = 24

// epsilon and epsilonAbs bound the Levinson-Durbin recursion's early exit:
// it stops once the accumulated prediction error falls below
// epsilon*autocorrelation[0] + epsilonAbs.
const (
	epsilon    = 1e-9
	epsilonAbs = 1e-9
)

// damping is applied to each coefficient as damping^k (k = 1-indexed
// coefficient position), tempering the filter so extrapolation doesn't
// diverge.
const damping = 0.99

// Extend returns "after" samples extrapolated past the end of a single
// channel's PCM history using linear prediction; history itself is left
// unchanged. If history has fewer than 4*Order
// samples, it returns after zero-valued samples instead (insufficient
// history to fit a stable filter).
func Extend(history []float32, after int) []float32 {
	out := make([]float32, after)
	if len(history) < 4*Order {
		return out
	}

	coeffs := levinsonDurbin(autocorrelate(history, Order))

	// Seed the recursion with the tail of the real history so the first
	// extrapolated samples are continuous with it.
	buf := make([]float64, len(history)+after)
	for i, v := range history {
		buf[i] = float64(v)
	}
	for n := len(history); n < len(buf); n++ {
		var pred float64
		for k := 0; k < Order; k++ {
			pred += coeffs[k] * buf[n-1-k]
		}
		buf[n] = pred
	}
	for i := 0; i < after; i++ {
		out[i] = float32(buf[len(history)+i])
	}
	return out
}

// autocorrelate computes lags 0..order of history.
func autocorrelate(history []float32, order int) []float64 {
	aut := make([]float64, order+1)
	n := len(history)
	for lag := 0; lag <= order; lag++ {
		var sum float64
		for i := 0; i+lag < n; i++ {
			sum += float64(history[i]) * float64(history[i+lag])
		}
		aut[lag] = sum
	}
	return aut
}

// levinsonDurbin runs the recursion over autocorrelation lags aut,
// returning Order damped linear-prediction coefficients. It exits early
// once the accumulated error drops below the configured threshold,
// leaving any remaining coefficients at zero.
func levinsonDurbin(aut []float64) []float64 {
	order := len(aut) - 1
	coeffs := make([]float64, order)
	if aut[0] == 0 {
		return coeffs
	}

	err := aut[0]
	threshold := epsilon*aut[0] + epsilonAbs

	for i := 0; i < order; i++ {
		var acc float64
		for j := 0; j < i; j++ {
			acc += coeffs[j] * aut[i-j]
		}
		k := (aut[i+1] - acc) / err

		updated := make([]float64, i+1)
		for j := 0; j < i; j++ {
			updated[j] = coeffs[j] - k*coeffs[i-1-j]
		}
		updated[i] = k
		copy(coeffs, updated)

		err *= 1 - k*k
		if err < threshold {
			break
		}
	}

	for k := range coeffs {
		coeffs[k] *= math.Pow(damping, float64(k+1))
	}
	return coeffs
}
