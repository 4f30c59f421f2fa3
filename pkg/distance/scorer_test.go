package distance

import (
	"testing"

	"github.com/dd0wney/beaconforge/pkg/graph"
	"github.com/dd0wney/beaconforge/pkg/labels"
)

func buildGraph(t *testing.T, rows []graph.BatchRow, malicious []labels.MaliciousRow) *graph.MemoryStore {
	t.Helper()
	ms := graph.NewMemoryStore()
	if _, err := ms.UpsertBatch(rows); err != nil {
		t.Fatalf("Failed to build graph: %v", err)
	}
	if _, err := labels.Apply(ms, malicious); err != nil {
		t.Fatalf("Failed to apply labels: %v", err)
	}
	return ms
}

func scoreMap(t *testing.T, scores []Score) map[string]Score {
	t.Helper()
	m := make(map[string]Score, len(scores))
	for _, s := range scores {
		m[s.Host] = s
	}
	return m
}

func TestScoreAll_SharedIP(t *testing.T) {
	ms := buildGraph(t,
		[]graph.BatchRow{
			{Host: "a.example.com", ServerIP: "1.1.1.1", RegisteredDomain: "example.com", LogDay: "2026-08-26", Popularity: -1},
			{Host: "b.evil.com", ServerIP: "1.1.1.1", RegisteredDomain: "evil.com", LogDay: "2026-08-26", Popularity: -1},
		},
		[]labels.MaliciousRow{{Host: "b.evil.com", Engagement: 5}},
	)

	idx := BuildIndex(ms)
	if idx.SeedCount() != 1 {
		t.Fatalf("Expected 1 seed, got %d", idx.SeedCount())
	}

	scores, err := ScoreAll(idx, []string{"a.example.com", "b.evil.com"}, DefaultOptions())
	if err != nil {
		t.Fatalf("ScoreAll failed: %v", err)
	}
	m := scoreMap(t, scores)

	// a.example.com shares IP 1.1.1.1 with the malicious host.
	a := m["a.example.com"]
	if a.Min != 1 || a.Avg != 1 || a.Max != 1 {
		t.Errorf("Expected distance 1 via shared IP, got %+v", a)
	}

	// A malicious target scores zero across the board.
	b := m["b.evil.com"]
	if b.Min != 0 || b.Avg != 0 || b.Max != 0 {
		t.Errorf("Malicious host should have zero distances, got %+v", b)
	}
}

func TestScoreAll_Sentinel(t *testing.T) {
	ms := buildGraph(t,
		[]graph.BatchRow{
			{Host: "a.example.com", ServerIP: "1.1.1.1", RegisteredDomain: "example.com", LogDay: "2026-08-26", Popularity: -1},
		},
		nil, // no malicious seeds anywhere
	)

	opts := Options{Radius: 4, Sentinel: 42}
	scores, err := ScoreAll(BuildIndex(ms), []string{"a.example.com"}, opts)
	if err != nil {
		t.Fatalf("ScoreAll failed: %v", err)
	}

	a := scores[0]
	if a.Min != 42 || a.Avg != 42 || a.Max != 42 {
		t.Errorf("Expected sentinel 42 for all three, got %+v", a)
	}
}

func TestScoreAll_TransitivePath(t *testing.T) {
	// bad.com -(shared IP)- mid.com -(shared domain)- far host: 2 hops.
	ms := buildGraph(t,
		[]graph.BatchRow{
			{Host: "x.bad.com", ServerIP: "1.1.1.1", RegisteredDomain: "bad.com", LogDay: "2026-08-26", Popularity: -1},
			{Host: "a.mid.com", ServerIP: "1.1.1.1", RegisteredDomain: "mid.com", LogDay: "2026-08-26", Popularity: -1},
			{Host: "b.mid.com", ServerIP: "2.2.2.2", RegisteredDomain: "mid.com", LogDay: "2026-08-26", Popularity: -1},
			{Host: "c.far.com", ServerIP: "2.2.2.2", RegisteredDomain: "far.com", LogDay: "2026-08-26", Popularity: -1},
		},
		[]labels.MaliciousRow{{Host: "x.bad.com", Engagement: 3}},
	)

	scores, err := ScoreAll(BuildIndex(ms), []string{"a.mid.com", "b.mid.com", "c.far.com"}, DefaultOptions())
	if err != nil {
		t.Fatalf("ScoreAll failed: %v", err)
	}
	m := scoreMap(t, scores)

	if got := m["a.mid.com"].Min; got != 1 {
		t.Errorf("a.mid.com shares an IP with the seed, expected 1, got %f", got)
	}
	if got := m["b.mid.com"].Min; got != 2 {
		t.Errorf("b.mid.com is 2 hops out via shared domain, got %f", got)
	}
	if got := m["c.far.com"].Min; got != 3 {
		t.Errorf("c.far.com is 3 hops out, got %f", got)
	}
}

func TestScoreAll_RadiusBound(t *testing.T) {
	ms := buildGraph(t,
		[]graph.BatchRow{
			{Host: "x.bad.com", ServerIP: "1.1.1.1", RegisteredDomain: "bad.com", LogDay: "2026-08-26", Popularity: -1},
			{Host: "a.mid.com", ServerIP: "1.1.1.1", RegisteredDomain: "mid.com", LogDay: "2026-08-26", Popularity: -1},
			{Host: "b.mid.com", ServerIP: "2.2.2.2", RegisteredDomain: "mid.com", LogDay: "2026-08-26", Popularity: -1},
			{Host: "c.far.com", ServerIP: "2.2.2.2", RegisteredDomain: "far.com", LogDay: "2026-08-26", Popularity: -1},
		},
		[]labels.MaliciousRow{{Host: "x.bad.com", Engagement: 3}},
	)

	opts := Options{Radius: 2, Sentinel: 99}
	scores, err := ScoreAll(BuildIndex(ms), []string{"c.far.com"}, opts)
	if err != nil {
		t.Fatalf("ScoreAll failed: %v", err)
	}

	// c.far.com sits 3 hops out, beyond the radius.
	c := scores[0]
	if c.Min != 99 || c.Avg != 99 || c.Max != 99 {
		t.Errorf("Beyond-radius target should get the sentinel, got %+v", c)
	}
}

func TestScoreAll_MultiSeedStats(t *testing.T) {
	// Two seeds: one at distance 1 (shared IP), one at distance 2.
	ms := buildGraph(t,
		[]graph.BatchRow{
			{Host: "near.bad.com", ServerIP: "1.1.1.1", RegisteredDomain: "bad.com", LogDay: "2026-08-26", Popularity: -1},
			{Host: "target.mid.com", ServerIP: "1.1.1.1", RegisteredDomain: "mid.com", LogDay: "2026-08-26", Popularity: -1},
			{Host: "bridge.mid.com", ServerIP: "2.2.2.2", RegisteredDomain: "mid.com", LogDay: "2026-08-26", Popularity: -1},
			{Host: "far.worse.com", ServerIP: "2.2.2.2", RegisteredDomain: "worse.com", LogDay: "2026-08-26", Popularity: -1},
		},
		[]labels.MaliciousRow{
			{Host: "near.bad.com", Engagement: 3},
			{Host: "far.worse.com", Engagement: 4},
		},
	)

	scores, err := ScoreAll(BuildIndex(ms), []string{"target.mid.com"}, DefaultOptions())
	if err != nil {
		t.Fatalf("ScoreAll failed: %v", err)
	}

	target := scores[0]
	if target.Min != 1 {
		t.Errorf("Expected min 1, got %f", target.Min)
	}
	if target.Max != 2 {
		t.Errorf("Expected max 2, got %f", target.Max)
	}
	if target.Avg != 1.5 {
		t.Errorf("Expected avg 1.5, got %f", target.Avg)
	}
}

func TestScoreAll_InvalidRadius(t *testing.T) {
	idx := BuildIndex(graph.NewMemoryStore())
	if _, err := ScoreAll(idx, nil, Options{Radius: 0, Sentinel: 1}); err == nil {
		t.Error("Radius 0 should be rejected")
	}
}
