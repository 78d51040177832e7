package cuckoofilter

import "math"

func errorRateBits(rate float64) uint64 {
	return math.Float64bits(rate)
}

func errorRateFromBits(bits uint64) float64 {
	return math.Float64frombits(bits)
}
