package telemetry

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

type Counter struct {
	val atomic.Int64
}

func (c *Counter) Inc()         { c.val.Add(1) }
func (c *Counter) Add(n int64)  { c.val.Add(n) }
func (c *Counter) Value() int64 { return c.val.Load() }

// LatencyTracker keeps a bounded window of duration samples.
type LatencyTracker struct {
	mu      sync.Mutex
	samples []time.Duration
	maxKeep int
}

func NewLatencyTracker(maxKeep int) *LatencyTracker {
	return &LatencyTracker{maxKeep: maxKeep}
}

func (lt *LatencyTracker) Record(d time.Duration) {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	lt.samples = append(lt.samples, d)
	if len(lt.samples) > lt.maxKeep {
		lt.samples = lt.samples[len(lt.samples)-lt.maxKeep:]
	}
}

func (lt *LatencyTracker) P50() time.Duration { return lt.percentile(0.50) }
func (lt *LatencyTracker) P99() time.Duration { return lt.percentile(0.99) }

func (lt *LatencyTracker) percentile(p float64) time.Duration {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	if len(lt.samples) == 0 {
		return 0
	}
	sorted := make([]time.Duration, len(lt.samples))
	copy(sorted, lt.samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}

// Metrics holds process-local counters for a single CLI invocation.
// There is no exporter; the values feed the --verbose summary line.
var Metrics = struct {
	QuotesFetched Counter
	OrdersSent    Counter
	OrderErrors   Counter
	PollAttempts  Counter
	APILatency    *LatencyTracker
}{
	APILatency: NewLatencyTracker(256),
}

// Summary returns a one-line counter dump for verbose mode.
func Summary() string {
	return fmt.Sprintf("quotes=%d orders=%d errors=%d polls=%d api_p50=%s",
		Metrics.QuotesFetched.Value(),
		Metrics.OrdersSent.Value(),
		Metrics.OrderErrors.Value(),
		Metrics.PollAttempts.Value(),
		Metrics.APILatency.P50())
}
