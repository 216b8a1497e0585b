package logger

import (
	"strconv"
	"strings"
	"sync/atomic"
)

// ratioSampler lets num of every den events through. A zero ratio lets everything through.
type ratioSampler struct {
	ratio atomic.Uint64 // num<<32 | den
	seen  atomic.Uint64
}

func newRatioSampler(num, den int) *ratioSampler {
	s := &ratioSampler{}
	s.Set(num, den)
	return s
}

// Set replaces the ratio and restarts the cycle.
func (s *ratioSampler) Set(num, den int) {
	s.seen.Store(0)
	if num <= 0 || den <= 0 {
		s.ratio.Store(0)
		return
	}
	num = min(num, den)
	s.ratio.Store(uint64(num)<<32 | uint64(uint32(den)))
}

// Allow reports whether the next event passes.
func (s *ratioSampler) Allow() bool {
	r := s.ratio.Load()
	if r == 0 {
		return true
	}
	num, den := r>>32, r&0xffffffff
	return (s.seen.Add(1)-1)%den < num
}

// parseRatioSpec reads "num/den" or "den" (meaning 1/den). Anything else disables sampling.
func parseRatioSpec(spec string) (int, int) {
	spec = strings.TrimSpace(spec)
	if a, b, ok := strings.Cut(spec, "/"); ok {
		num, err1 := strconv.Atoi(strings.TrimSpace(a))
		den, err2 := strconv.Atoi(strings.TrimSpace(b))
		if err1 != nil || err2 != nil {
			return 0, 0
		}
		return num, den
	}
	if den, err := strconv.Atoi(spec); err == nil && den > 0 {
		return 1, den
	}
	return 0, 0
}
