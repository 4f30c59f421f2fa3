// Package labels merges the externally maintained malicious-host
// history onto FQDN nodes already present in the graph.
package labels

import (
	"github.com/dd0wney/beaconforge/pkg/graph"
)

// MaliciousRow is one entry of the historical malicious list.
type MaliciousRow struct {
	Host       string
	Engagement float64
}

// Apply marks the listed hosts malicious. The mark is monotonic: once
// set it is never cleared here, and the engagement score only ever
// increases. Hosts absent from the graph are skipped — label
// propagation annotates existing topology, it does not expand it.
// Returns the number of FQDN nodes updated.
func Apply(store graph.Store, rows []MaliciousRow) (int, error) {
	updated := 0

	for _, row := range rows {
		if row.Host == "" {
			continue
		}

		node, err := store.Node(graph.KindFQDN, row.Host)
		if err != nil {
			// Not in the graph, no orphan creation.
			continue
		}

		engagement := node.Float(graph.PropMalEngagement)
		if row.Engagement > engagement {
			engagement = row.Engagement
		}

		_, _, err = store.UpsertNode(graph.KindFQDN, row.Host, map[string]graph.Value{
			graph.PropIsMalicious:   graph.BoolValue(true),
			graph.PropMalEngagement: graph.FloatValue(engagement),
		})
		if err != nil {
			return updated, err
		}
		updated++
	}

	return updated, nil
}
