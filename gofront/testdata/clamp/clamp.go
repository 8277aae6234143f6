package clamp

// Clamp returns x limited to the range [lo, hi].
func Clamp(x, lo, hi int) int {
	if lo > hi {
		panic("invalid range")
	}
	if x < lo {
		return lo
	} else if x > hi {
		return hi
	}
	return x
}
