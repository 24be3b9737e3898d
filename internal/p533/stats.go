package p533

import "math"

// decileZ is the standard normal deviate of the 10% and 90% points.
const decileZ = 1.2816

// normalCDF returns the standard normal distribution function.
func normalCDF(x float64) float64 {
	return 0.5 * math.Erfc(-x/math.Sqrt2)
}

// normalQuantile returns z with normalCDF(z) = p for p in (0, 1).
func normalQuantile(p float64) float64 {
	return math.Sqrt2 * math.Erfinv(2*p-1)
}

// exceed returns the probability that a quantity with the given median and
// upper and lower decile deviations is at least r. Each side is a half
// normal with sigma = decile / 1.2816.
func exceed(median, du, dl, r float64) float64 {
	diff := r - median
	d := dl
	if diff > 0 {
		d = du
	}
	if d <= 0 {
		if diff <= 0 {
			return 1
		}
		return 0
	}
	return 1 - normalCDF(diff*decileZ/d)
}

// powerSum adds decibel quantities as powers.
func powerSum(values ...float64) float64 {
	var s float64
	for _, v := range values {
		s += math.Pow(10, v/10)
	}
	if s == 0 {
		return FieldFloor
	}
	return 10 * math.Log10(s)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
