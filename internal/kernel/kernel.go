// Package kernel implements the pure CRQA (Cross-Recurrence
// Quantification Analysis) compute function. It has no I/O and no
// concurrency: the same inputs always produce bit-identical outputs.
package kernel

import (
	"math"

	"github.com/qcrqa/crqa-accel/internal/constants"
)

// N is the fixed signal length.
const N = constants.N

// Signal is an ordered sequence of exactly N samples.
type Signal = [N]float64

// MetricBundle is the eight-metric response, in the fixed order
// defined by the protocol: epsilon, recurrence_rate, determinism,
// laminarity, trapping_time, max_diag_line, divergence, entropy.
type MetricBundle struct {
	Epsilon        float64
	RecurrenceRate float64
	Determinism    float64
	Laminarity     float64
	TrappingTime   float64
	MaxDiagLine    float64
	Divergence     float64
	Entropy        float64
}

// ToArray returns the bundle as the eight doubles in wire order.
func (b MetricBundle) ToArray() [8]float64 {
	return [8]float64{
		b.Epsilon, b.RecurrenceRate, b.Determinism, b.Laminarity,
		b.TrappingTime, b.MaxDiagLine, b.Divergence, b.Entropy,
	}
}

// BundleFromArray reconstructs a MetricBundle from the eight doubles
// in wire order.
func BundleFromArray(a [8]float64) MetricBundle {
	return MetricBundle{
		Epsilon:        a[0],
		RecurrenceRate: a[1],
		Determinism:    a[2],
		Laminarity:     a[3],
		TrappingTime:   a[4],
		MaxDiagLine:    a[5],
		Divergence:     a[6],
		Entropy:        a[7],
	}
}

// Compute runs the CRQA algorithm on sig1/sig2 with recurrence
// threshold r, grounded on the reference compute kernel
// (compute_crqa_complete in the SystemC CRQA model): normalize, embed,
// build the cross-recurrence matrix, analyze diagonal and vertical
// lines, and derive the eight response metrics.
func Compute(r float64, sig1, sig2 *Signal) MetricBundle {
	n1, _, std1 := normalize(sig1)
	n2, _, std2 := normalize(sig2)

	e1, e2, L := embed(n1, std1, n2, std2)
	if L <= 0 {
		return MetricBundle{}
	}

	rm, rec := crossRecurrenceMatrix(e1, e2, r, L)

	dLines, dPoints, dMax, dEnt := diagonalLineAnalysis(rm, L)
	vLines, vPoints, vMax := verticalLineAnalysis(rm, L)
	_ = dLines
	_ = vLines
	_ = vMax

	RR := float64(rec) / float64(L*L)

	var det, lam, div float64
	if rec > 0 {
		det = float64(dPoints) / float64(rec)
		lam = float64(vPoints) / float64(rec)
	}
	if dMax > 0 {
		div = 1.0 / float64(dMax)
	}

	vAvg := 0.0
	if vLines > 0 {
		vAvg = float64(vPoints) / float64(vLines)
	}

	return MetricBundle{
		Epsilon:        det, // aliased to Determinism, see spec §9.
		RecurrenceRate: RR,
		Determinism:    det,
		Laminarity:     lam,
		TrappingTime:   vAvg,
		MaxDiagLine:    float64(dMax),
		Divergence:     div,
		Entropy:        dEnt,
	}
}

// normalize returns a zero-mean, unit-variance copy of sig, along with
// the mean and the standard deviation actually used (1 if the computed
// std fell below constants.StdFloor).
func normalize(sig *Signal) (out Signal, mean, std float64) {
	var sum float64
	for _, v := range sig {
		sum += v
	}
	mean = sum / float64(N)

	var sq float64
	for _, v := range sig {
		d := v - mean
		sq += d * d
	}
	std = math.Sqrt(sq / float64(N))
	if std < constants.StdFloor {
		std = 1
	}

	for i, v := range sig {
		out[i] = (v - mean) / std
	}
	return out, mean, std
}

// embedVec is one m-dimensional embedded sample.
type embedVec [constants.EmbedDim]float64

// embed builds the delay-embedded vector series for both (already
// normalized) signals. The second return values (std1/std2) are
// accepted only to keep call sites symmetric with normalize's
// signature; embedding itself operates on the already-scaled values.
func embed(n1 Signal, std1 float64, n2 Signal, std2 float64) (e1, e2 []embedVec, L int) {
	_ = std1
	_ = std2
	L = constants.EmbedLength
	if L <= 0 {
		return nil, nil, L
	}
	e1 = make([]embedVec, L)
	e2 = make([]embedVec, L)
	for i := 0; i < L; i++ {
		for j := 0; j < constants.EmbedDim; j++ {
			e1[i][j] = n1[i+j*constants.EmbedDelay]
			e2[i][j] = n2[i+j*constants.EmbedDelay]
		}
	}
	return e1, e2, L
}

// crossRecurrenceMatrix builds RM[i][j] = dist(e1[i], e2[j]) <= r and
// returns it alongside the total recurrence point count.
func crossRecurrenceMatrix(e1, e2 []embedVec, r float64, L int) (rm [][]bool, rec int) {
	rm = make([][]bool, L)
	for i := 0; i < L; i++ {
		rm[i] = make([]bool, L)
		for j := 0; j < L; j++ {
			var distSq float64
			for k := 0; k < constants.EmbedDim; k++ {
				d := e1[i][k] - e2[j][k]
				distSq += d * d
			}
			if math.Sqrt(distSq) <= r {
				rm[i][j] = true
				rec++
			}
		}
	}
	return rm, rec
}

// diagonalLineAnalysis walks every diagonal k in [-(L-1), L-1], counting
// maximal runs of true entries with length >= MinDiagLine.
func diagonalLineAnalysis(rm [][]bool, L int) (lines, points, max int, entropy float64) {
	var lengths []int
	var total float64

	flush := func(cur int) {
		if cur >= constants.MinDiagLine {
			lines++
			points += cur
			lengths = append(lengths, cur)
			total += float64(cur)
			if cur > max {
				max = cur
			}
		}
	}

	for k := -(L - 1); k < L; k++ {
		cur := 0
		i, j := 0, 0
		if k < 0 {
			i = -k
		} else {
			j = k
		}
		for i < L && j < L {
			if rm[i][j] {
				cur++
			} else {
				flush(cur)
				cur = 0
			}
			i++
			j++
		}
		flush(cur)
	}

	if total > 0 {
		for _, l := range lengths {
			p := float64(l) / total
			if p > 0 {
				entropy -= p * math.Log2(p)
			}
		}
	}

	return lines, points, max, entropy
}

// verticalLineAnalysis walks every column, counting maximal runs of
// true entries with length >= MinVertLine.
func verticalLineAnalysis(rm [][]bool, L int) (lines, points, max int) {
	for j := 0; j < L; j++ {
		cur := 0
		flush := func() {
			if cur >= constants.MinVertLine {
				lines++
				points += cur
				if cur > max {
					max = cur
				}
			}
		}
		for i := 0; i < L; i++ {
			if rm[i][j] {
				cur++
			} else {
				flush()
				cur = 0
			}
		}
		flush()
	}
	return lines, points, max
}
