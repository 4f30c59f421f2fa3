// Package aggregate recomputes per-Domain and per-IP neighborhood
// statistics from the current graph. Aggregates are derived values:
// every run recomputes them from scratch so they can never drift from
// the topology.
package aggregate

import (
	"math"
	"time"
)

// Policy controls the generic "Mal" composite score computed per FQDN
// alongside the raw engagement aggregates. The composite is engagement
// scaled by observation recency; Decay 1.0 disables the scaling and
// the composite equals raw engagement.
type Policy struct {
	// Decay is the per-day multiplier applied for each day between the
	// FQDN's last observation and the run day. Must be in (0, 1].
	Decay float64
	// RunDay anchors the recency computation.
	RunDay time.Time
}

// DefaultPolicy returns the identity composite (no decay).
func DefaultPolicy(runDay time.Time) Policy {
	return Policy{Decay: 1.0, RunDay: runDay}
}

// Composite scores one FQDN given its raw engagement and the logday of
// its most recent observation (RFC3339 date, e.g. "2026-08-25").
func (p Policy) Composite(engagement float64, logday string) float64 {
	if p.Decay >= 1.0 || logday == "" {
		return engagement
	}
	seen, err := time.Parse("2006-01-02", logday)
	if err != nil {
		return engagement
	}
	days := p.RunDay.Sub(seen).Hours() / 24
	if days <= 0 {
		return engagement
	}
	return engagement * math.Pow(p.Decay, days)
}

// summary accumulates count/sum/min/max over a stream of values.
type summary struct {
	count int
	sum   float64
	min   float64
	max   float64
}

func (s *summary) add(v float64) {
	if s.count == 0 {
		s.min = v
		s.max = v
	} else {
		if v < s.min {
			s.min = v
		}
		if v > s.max {
			s.max = v
		}
	}
	s.count++
	s.sum += v
}

// avg resolves to 0 on an empty summary, never a fault.
func (s *summary) avg() float64 {
	if s.count == 0 {
		return 0
	}
	return s.sum / float64(s.count)
}

// ratio resolves num/den to 0 when den is 0.
func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}
