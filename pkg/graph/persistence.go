package graph

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang/snappy"
)

const snapshotFile = "graph.snapshot"

// snapshotState is the on-disk form of the graph. Nodes and edges are
// flattened to slices; adjacency and kind indexes are rebuilt on load.
type snapshotState struct {
	Nodes []*Node `json:"nodes"`
	Edges []*Edge `json:"edges"`
}

// Snapshot persists the full graph to the store's data directory.
// The snapshot is snappy-compressed and published atomically
// (write-tmp-then-rename), so a crash mid-write leaves the previous
// snapshot intact.
func (ms *MemoryStore) Snapshot() error {
	if ms.dataDir == "" {
		return fmt.Errorf("store has no data directory")
	}

	ms.mu.RLock()
	state := snapshotState{
		Nodes: make([]*Node, 0, len(ms.nodes)),
		Edges: make([]*Edge, 0, len(ms.edges)),
	}
	for _, node := range ms.nodes {
		state.Nodes = append(state.Nodes, node)
	}
	for _, edge := range ms.edges {
		state.Edges = append(state.Edges, edge)
	}
	data, err := json.Marshal(state)
	ms.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := os.MkdirAll(ms.dataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	compressed := snappy.Encode(nil, data)

	snapshotPath := filepath.Join(ms.dataDir, snapshotFile)
	tmpPath := snapshotPath + ".tmp"

	if err := os.WriteFile(tmpPath, compressed, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, snapshotPath); err != nil {
		return fmt.Errorf("failed to rename snapshot: %w", err)
	}

	return nil
}

// loadSnapshot restores the graph from disk. A missing snapshot is a
// fresh graph, not an error.
func (ms *MemoryStore) loadSnapshot() error {
	snapshotPath := filepath.Join(ms.dataDir, snapshotFile)

	compressed, err := os.ReadFile(snapshotPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	data, err := snappy.Decode(nil, compressed)
	if err != nil {
		return fmt.Errorf("failed to decompress snapshot: %w", err)
	}

	var state snapshotState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	for _, node := range state.Nodes {
		ref := node.Ref()
		if node.Properties == nil {
			node.Properties = make(map[string]Value)
		}
		ms.nodes[ref] = node
		ms.nodesByKind[node.Kind] = append(ms.nodesByKind[node.Kind], ref)
		ms.stats.NodeCount++
	}

	for _, edge := range state.Edges {
		id := edgeID{From: edge.From, To: edge.To, Kind: edge.Kind}
		if _, exists := ms.edges[id]; exists {
			continue
		}
		ms.edges[id] = edge
		if ms.outgoing[edge.From] == nil {
			ms.outgoing[edge.From] = make(map[EdgeKind][]NodeRef)
		}
		ms.outgoing[edge.From][edge.Kind] = append(ms.outgoing[edge.From][edge.Kind], edge.To)
		if ms.incoming[edge.To] == nil {
			ms.incoming[edge.To] = make(map[EdgeKind][]NodeRef)
		}
		ms.incoming[edge.To][edge.Kind] = append(ms.incoming[edge.To][edge.Kind], edge.From)
		ms.stats.EdgeCount++
	}

	return nil
}
