package buffer

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// CircularFloat keeps the most recent BufSize float64 values. Once full, the
// window splits into an older and a newer half for comparing estimates over
// time.
type CircularFloat struct {
	values    []float64 // ring storage
	next      int       // slot for the next Add
	BufSize   int       // BufSize is the (even) window length
	Count     int       // Count is the number of values held, at most BufSize
	TotalSeen int64     // TotalSeen counts every Add, including overwritten values
}

// NewCircularFloat makes a window of size rounded down to an even number,
// with a minimum of 2.
func NewCircularFloat(size int) *CircularFloat {
	size -= size % 2
	if size < 2 {
		size = 2
	}
	return &CircularFloat{
		values:  make([]float64, size),
		BufSize: size,
	}
}

// Add records f, replacing the oldest value when the window is full
func (c *CircularFloat) Add(f float64) {
	c.values[c.next] = f
	c.next = (c.next + 1) % c.BufSize
	c.TotalSeen++
	if c.Count < c.BufSize {
		c.Count++
	}
}

// Full is true once BufSize values have been added
func (c *CircularFloat) Full() bool {
	return c.Count == c.BufSize
}

// Values returns a copy of the held values, oldest first
func (c *CircularFloat) Values() []float64 {
	start := 0
	if c.Full() {
		start = c.next
	}
	out := make([]float64, c.Count)
	for i := range out {
		out[i] = c.values[(start+i)%c.BufSize]
	}
	return out
}

// Halves splits a full window into its older and newer halves. ok is false
// until the window is full.
func (c *CircularFloat) Halves() (older, newer []float64, ok bool) {
	if !c.Full() {
		return nil, nil, false
	}
	all := c.Values()
	half := c.BufSize / 2
	return all[:half], all[half:], true
}

// HalfSummary holds the mean and unbiased variance of each window half
type HalfSummary struct {
	N         int // values per half
	OlderMean float64
	OlderVar  float64
	NewerMean float64
	NewerVar  float64
}

// Summarize returns per-half statistics for a full window. ok is false if
// the window is not full or holds a non-finite value.
func (c *CircularFloat) Summarize() (HalfSummary, bool) {
	older, newer, ok := c.Halves()
	if !ok {
		return HalfSummary{}, false
	}
	for _, v := range c.values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return HalfSummary{}, false
		}
	}

	s := HalfSummary{N: len(older)}
	s.OlderMean, s.OlderVar = stat.MeanVariance(older, nil)
	s.NewerMean, s.NewerVar = stat.MeanVariance(newer, nil)
	return s, true
}
