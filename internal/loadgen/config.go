// Package loadgen drives a running matching service with synthetic traffic
// and checks that every ranking it gets back is well formed.
package loadgen

import "time"

// Config holds the parameters of one load run.
type Config struct {
	ClientIDs []string      // clients to request matches for, round robin
	Requests  int           // total number of match requests
	Workers   int           // concurrent requesters
	Limit     int           // per-request limit, 0 for the server default
	NoCache   float64       // fraction of requests sent with use_cache=false
	Timeout   time.Duration // overall deadline for the run, 0 for none
	Verbose   bool
}

// Stats summarizes a load run.
type Stats struct {
	Requests  int
	Scored    int
	Cached    int
	Fallback  int
	Failed    int
	Malformed int

	Latencies []time.Duration // sorted ascending
	StartTime time.Time
	Duration  time.Duration
}

// Percentile returns the p-th latency percentile (0..100).
func (s *Stats) Percentile(p float64) time.Duration {
	if len(s.Latencies) == 0 {
		return 0
	}
	idx := int(p / 100 * float64(len(s.Latencies)-1))
	return s.Latencies[idx]
}

// Throughput returns completed requests per second.
func (s *Stats) Throughput() float64 {
	if s.Duration <= 0 {
		return 0
	}
	return float64(s.Requests) / s.Duration.Seconds()
}
