package utils

import "math"

func bitMask(bitLen int) uint64 {
	if bitLen >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(bitLen)) - 1
}

// rawLimits is the integer range the signal's bits can hold.
func (s SignalDef) rawLimits() (lo, hi int64) {
	if s.BitLength >= 64 {
		if s.Signed {
			return math.MinInt64, math.MaxInt64
		}
		return 0, math.MaxInt64
	}
	if s.Signed {
		half := int64(1) << uint(s.BitLength-1)
		return -half, half - 1
	}
	return 0, int64(bitMask(s.BitLength))
}

// pack writes the physical value v into payload. Values outside [Min, Max]
// are clamped when Min < Max, then the raw value saturates at the bit width.
func (s SignalDef) pack(payload uint64, v float64) uint64 {
	if math.IsNaN(v) {
		v = s.Default
	}
	if s.Min < s.Max {
		v = math.Max(s.Min, math.Min(s.Max, v))
	}

	lo, hi := s.rawLimits()
	raw := math.Round((v - s.Offset) / s.Factor)
	var r int64
	switch {
	case raw <= float64(lo):
		r = lo
	case raw >= float64(hi):
		r = hi
	default:
		r = int64(raw)
	}

	mask := bitMask(s.BitLength)
	payload &^= mask << uint(s.StartBit)
	payload |= (uint64(r) & mask) << uint(s.StartBit)
	return payload
}

// unpack reads the physical value from payload, sign-extending signed signals.
func (s SignalDef) unpack(payload uint64) float64 {
	mask := bitMask(s.BitLength)
	u := (payload >> uint(s.StartBit)) & mask

	raw := int64(u)
	if s.Signed && s.BitLength < 64 && u&(uint64(1)<<uint(s.BitLength-1)) != 0 {
		raw = int64(u | ^mask)
	}
	return float64(raw)*s.Factor + s.Offset
}
