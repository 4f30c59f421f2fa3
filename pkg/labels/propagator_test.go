package labels

import (
	"testing"

	"github.com/dd0wney/beaconforge/pkg/graph"
)

func seedStore(t *testing.T) *graph.MemoryStore {
	t.Helper()
	ms := graph.NewMemoryStore()
	_, _, err := ms.UpsertNode(graph.KindFQDN, "b.evil.com", nil)
	if err != nil {
		t.Fatalf("Failed to seed store: %v", err)
	}
	return ms
}

func TestApply_MarksExistingHost(t *testing.T) {
	ms := seedStore(t)

	updated, err := Apply(ms, []MaliciousRow{{Host: "b.evil.com", Engagement: 5}})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if updated != 1 {
		t.Errorf("Expected 1 update, got %d", updated)
	}

	node, err := ms.Node(graph.KindFQDN, "b.evil.com")
	if err != nil {
		t.Fatalf("Missing node: %v", err)
	}
	if !node.Bool(graph.PropIsMalicious) {
		t.Error("Host should be marked malicious")
	}
	if got := node.Float(graph.PropMalEngagement); got != 5 {
		t.Errorf("Expected engagement 5, got %f", got)
	}
}

func TestApply_Monotonic(t *testing.T) {
	ms := seedStore(t)

	if _, err := Apply(ms, []MaliciousRow{{Host: "b.evil.com", Engagement: 5}}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	// A lower incoming score must not reduce the stored one.
	if _, err := Apply(ms, []MaliciousRow{{Host: "b.evil.com", Engagement: 2}}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	node, _ := ms.Node(graph.KindFQDN, "b.evil.com")
	if got := node.Float(graph.PropMalEngagement); got != 5 {
		t.Errorf("Engagement decreased: expected 5, got %f", got)
	}
	if !node.Bool(graph.PropIsMalicious) {
		t.Error("Malicious mark was lost")
	}

	// A higher score raises it.
	if _, err := Apply(ms, []MaliciousRow{{Host: "b.evil.com", Engagement: 9}}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	node, _ = ms.Node(graph.KindFQDN, "b.evil.com")
	if got := node.Float(graph.PropMalEngagement); got != 9 {
		t.Errorf("Expected engagement 9, got %f", got)
	}
}

func TestApply_SkipsUnknownHosts(t *testing.T) {
	ms := seedStore(t)

	updated, err := Apply(ms, []MaliciousRow{
		{Host: "never-seen.example.org", Engagement: 7},
		{Host: "", Engagement: 3},
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if updated != 0 {
		t.Errorf("Expected 0 updates, got %d", updated)
	}

	// No orphan creation.
	if _, err := ms.Node(graph.KindFQDN, "never-seen.example.org"); err == nil {
		t.Error("Label propagation must not create nodes")
	}
}
