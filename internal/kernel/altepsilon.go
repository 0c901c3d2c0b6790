package kernel

import "math/cmplx"

// AlternateEpsilon computes the exploratory epsilon formula referenced
// in the design notes — epsilon = R * mean(PSD1, PSD2) — instead of
// aliasing epsilon to Determinism. No surviving implementation of this
// formula exists in the retained original sources; this is a
// documented, unwired reconstruction from the spec's description only.
//
// It is never called by the reference kernel variant used in
// Compute; a deployment that wants this behavior must explicitly
// select it via devicemodel.WithKernelVariant(devicemodel.
// KernelVariantAlternateEpsilon) and accept that it diverges from the
// reference Compute Server's bit-for-bit output. No cmd/ binary does
// this today.
func AlternateEpsilon(r float64, sig1, sig2 *Signal) float64 {
	psd1 := periodogram(sig1)
	psd2 := periodogram(sig2)

	var sum float64
	for i := range psd1 {
		sum += (psd1[i] + psd2[i]) / 2
	}
	mean := sum / float64(len(psd1))

	return r * mean
}

// periodogram returns a naive power-spectral-density estimate via a
// direct (O(N^2)) discrete Fourier transform. N=512 keeps this cheap
// enough to run without an FFT library; this path is not on the
// reference hot path.
func periodogram(sig *Signal) []float64 {
	n := len(sig)
	psd := make([]float64, n/2+1)

	for k := 0; k <= n/2; k++ {
		var acc complex128
		for t := 0; t < n; t++ {
			angle := -2 * 3.141592653589793 * float64(k) * float64(t) / float64(n)
			acc += complex(sig[t], 0) * cmplx.Exp(complex(0, angle))
		}
		psd[k] = (cmplx.Abs(acc) * cmplx.Abs(acc)) / float64(n)
	}
	return psd
}
