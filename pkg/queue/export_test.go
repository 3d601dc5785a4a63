package queue

// WithRand returns a copy of b drawing jitter from r
func (b Backoff) WithRand(r func() float64) Backoff {
	b.rand = r
	return b
}
