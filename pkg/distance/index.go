// Package distance computes per-FQDN hop distances to the nearest
// known-malicious hosts through shared registration and hosting
// infrastructure. Two FQDNs are adjacent (distance 1) when they share
// a Domain node or an IP node.
package distance

import (
	"github.com/dd0wney/beaconforge/pkg/graph"
)

// Index is the adjacency index built once per run: group (Domain or
// IP) to member FQDNs, and FQDN to its groups. BFS runs over this
// index instead of live graph traversal calls, decoupling the search
// from the storage engine.
type Index struct {
	groups  map[graph.NodeRef][]string // Domain/IP ref -> member FQDN keys
	byFQDN  map[string][]graph.NodeRef // FQDN key -> group refs
	seeds   []string                   // malicious FQDN keys
	seedSet map[string]bool
}

// BuildIndex scans the store and assembles the shared-infrastructure
// adjacency index along with the malicious seed set.
func BuildIndex(store graph.Store) *Index {
	idx := &Index{
		groups:  make(map[graph.NodeRef][]string),
		byFQDN:  make(map[string][]graph.NodeRef),
		seedSet: make(map[string]bool),
	}

	for _, fqdn := range store.NodesByKind(graph.KindFQDN) {
		ref := fqdn.Ref()

		for _, dref := range store.Out(ref, graph.EdgeBelongsTo) {
			idx.groups[dref] = append(idx.groups[dref], fqdn.Key)
			idx.byFQDN[fqdn.Key] = append(idx.byFQDN[fqdn.Key], dref)
		}
		for _, ipRef := range store.Out(ref, graph.EdgeResolvesTo) {
			idx.groups[ipRef] = append(idx.groups[ipRef], fqdn.Key)
			idx.byFQDN[fqdn.Key] = append(idx.byFQDN[fqdn.Key], ipRef)
		}

		if fqdn.Bool(graph.PropIsMalicious) {
			idx.seeds = append(idx.seeds, fqdn.Key)
			idx.seedSet[fqdn.Key] = true
		}
	}

	return idx
}

// SeedCount returns the number of malicious seeds in the index.
func (idx *Index) SeedCount() int {
	return len(idx.seeds)
}
