package control

import "math"

// ScanSample is one sweep of range readings in meters.
type ScanSample struct {
	Ranges []float64

	// Readings outside [RangeMin, RangeMax] are discarded. A zero bound is
	// not applied.
	RangeMin float64
	RangeMax float64
}

// MinRange returns the nearest valid reading of the scan, or +Inf when the
// scan holds none. Zero, negative and non-finite readings are invalid.
func MinRange(scan ScanSample) float64 {
	nearest := math.Inf(1)
	for _, r := range scan.Ranges {
		if math.IsNaN(r) || math.IsInf(r, 0) || r <= 0 {
			continue
		}
		if scan.RangeMin > 0 && r < scan.RangeMin {
			continue
		}
		if scan.RangeMax > 0 && r > scan.RangeMax {
			continue
		}
		if r < nearest {
			nearest = r
		}
	}
	return nearest
}
