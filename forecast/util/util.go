package util

import "math"

// IndentExpand repeats indent for each nesting level of a printed model or option table.
func IndentExpand(indent string, growth int) string {
	indentByte := []byte(indent)
	out := make([]byte, 0, len(indent)*growth)
	for i := 0; i < growth; i++ {
		out = append(out, indentByte...)
	}
	return string(out)
}

// SliceMap transforms values in place, used to move demand in and out of log space.
func SliceMap(arr []float64, lambda func(float64) float64) []float64 {
	for i, v := range arr {
		arr[i] = lambda(v)
	}
	return arr
}

// Round rounds half away from zero to the given number of decimals. Negative zero is
// returned as zero.
func Round(x float64, decimals int) float64 {
	scale := math.Pow(10, float64(decimals))
	r := math.Round(x*scale) / scale
	if r == 0 {
		return 0
	}
	return r
}
