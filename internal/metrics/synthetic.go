package metrics

import (
	"math"
	"math/rand"
	"strconv"
	"strings"
)

// SyntheticRequestCount is the fixed value reported on the request_count line.
const SyntheticRequestCount = 100

const (
	minResponseTime = 0.1
	maxResponseTime = 1.0
)

// Source yields uniformly distributed values in [0, 1).
type Source interface {
	Float64() float64
}

type globalSource struct{}

// Float64 uses the process-wide generator, which is safe for concurrent use.
func (globalSource) Float64() float64 { return rand.Float64() }

// DefaultSource returns an unseeded, concurrency-safe random source.
func DefaultSource() Source { return globalSource{} }

// Sample is one synthetic scrape result. It is never stored.
type Sample struct {
	RequestCount int
	ResponseTime float64
}

// Text renders the two-line scrape format.
func (s Sample) Text() string {
	var b strings.Builder
	b.WriteString("request_count ")
	b.WriteString(strconv.Itoa(s.RequestCount))
	b.WriteString("\nresponse_time ")
	b.WriteString(strconv.FormatFloat(s.ResponseTime, 'f', -1, 64))
	b.WriteByte('\n')
	return b.String()
}

// Sampler produces synthetic samples from a Source.
type Sampler struct {
	src Source
}

// NewSampler returns a Sampler drawing from src, or from DefaultSource when src is nil.
func NewSampler(src Source) *Sampler {
	if src == nil {
		src = DefaultSource()
	}
	return &Sampler{src: src}
}

// Sample draws a fresh response time in [0.1, 1.0).
func (s *Sampler) Sample() Sample {
	return Sample{
		RequestCount: SyntheticRequestCount,
		ResponseTime: scale(s.src.Float64()),
	}
}

func scale(u float64) float64 {
	v := minResponseTime + u*(maxResponseTime-minResponseTime)
	// rounding can land exactly on the open upper bound
	if v >= maxResponseTime {
		v = math.Nextafter(maxResponseTime, 0)
	}
	if v < minResponseTime {
		v = minResponseTime
	}
	return v
}
