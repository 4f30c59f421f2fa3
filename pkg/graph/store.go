package graph

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrNodeNotFound = fmt.Errorf("node not found")
)

// Store is the property-graph contract the pipeline passes depend on.
// Passes receive a Store explicitly so tests can substitute their own
// in-memory graph.
type Store interface {
	// UpsertNode creates the node or merges properties into it.
	// Returns the node after the merge and whether it was created.
	UpsertNode(kind NodeKind, key string, props map[string]Value) (*Node, bool, error)
	// UpsertEdge creates the edge unless the identical (from, to, kind)
	// triple already exists. Both endpoints must exist.
	UpsertEdge(from, to NodeRef, kind EdgeKind) (bool, error)
	// Node retrieves a node by natural key.
	Node(kind NodeKind, key string) (*Node, error)
	// NodesByKind returns all nodes of one kind.
	NodesByKind(kind NodeKind) []*Node
	// Out returns targets of edges of the given kind leaving ref.
	Out(ref NodeRef, kind EdgeKind) []NodeRef
	// In returns sources of edges of the given kind arriving at ref.
	In(ref NodeRef, kind EdgeKind) []NodeRef
	// UpsertBatch applies one day's traffic rows, see BatchRow.
	UpsertBatch(rows []BatchRow) (BatchResult, error)
	// Statistics returns current node/edge counts.
	Statistics() Statistics
}

// Statistics tracks graph size counters.
type Statistics struct {
	NodeCount uint64
	EdgeCount uint64
}

// MemoryStore is the in-memory graph engine backing a pipeline run.
// The graph is cumulative across days: Open loads the prior snapshot
// and UpsertBatch only adds the current day on top.
type MemoryStore struct {
	nodes map[NodeRef]*Node
	edges map[edgeID]*Edge

	// Adjacency indexes, one slice per (node, edge kind).
	outgoing map[NodeRef]map[EdgeKind][]NodeRef
	incoming map[NodeRef]map[EdgeKind][]NodeRef

	// Kind index for full-pass scans.
	nodesByKind map[NodeKind][]NodeRef

	mu sync.RWMutex

	dataDir string
	stats   Statistics
}

type edgeID struct {
	From NodeRef
	To   NodeRef
	Kind EdgeKind
}

// NewMemoryStore creates an empty in-memory graph with no persistence.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nodes:       make(map[NodeRef]*Node),
		edges:       make(map[edgeID]*Edge),
		outgoing:    make(map[NodeRef]map[EdgeKind][]NodeRef),
		incoming:    make(map[NodeRef]map[EdgeKind][]NodeRef),
		nodesByKind: make(map[NodeKind][]NodeRef),
	}
}

// Open creates a store bound to dataDir and loads the latest snapshot
// if one exists. A missing snapshot means a fresh graph; an unreadable
// one is fatal, the caller must not run the day on a partial graph.
func Open(dataDir string) (*MemoryStore, error) {
	ms := NewMemoryStore()
	ms.dataDir = dataDir
	if err := ms.loadSnapshot(); err != nil {
		return nil, fmt.Errorf("failed to load graph snapshot: %w", err)
	}
	return ms, nil
}

// UpsertNode creates or merges a node. Merge overwrites only the keys
// present in props; existing properties not mentioned are kept.
func (ms *MemoryStore) UpsertNode(kind NodeKind, key string, props map[string]Value) (*Node, bool, error) {
	if key == "" {
		return nil, false, fmt.Errorf("node key must not be empty")
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	ref := NodeRef{Kind: kind, Key: key}
	now := time.Now().Unix()

	if node, exists := ms.nodes[ref]; exists {
		for k, v := range props {
			node.Properties[k] = v
		}
		node.UpdatedAt = now
		return node.Clone(), false, nil
	}

	node := &Node{
		Kind:       kind,
		Key:        key,
		Properties: make(map[string]Value, len(props)),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	for k, v := range props {
		node.Properties[k] = v
	}

	ms.nodes[ref] = node
	ms.nodesByKind[kind] = append(ms.nodesByKind[kind], ref)
	atomic.AddUint64(&ms.stats.NodeCount, 1)

	return node.Clone(), true, nil
}

// UpsertEdge creates an edge unless the identical triple exists.
func (ms *MemoryStore) UpsertEdge(from, to NodeRef, kind EdgeKind) (bool, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.nodes[from]; !exists {
		return false, fmt.Errorf("source node %s not found", from)
	}
	if _, exists := ms.nodes[to]; !exists {
		return false, fmt.Errorf("target node %s not found", to)
	}

	id := edgeID{From: from, To: to, Kind: kind}
	if _, exists := ms.edges[id]; exists {
		return false, nil
	}

	ms.edges[id] = &Edge{
		From:      from,
		To:        to,
		Kind:      kind,
		CreatedAt: time.Now().Unix(),
	}

	if ms.outgoing[from] == nil {
		ms.outgoing[from] = make(map[EdgeKind][]NodeRef)
	}
	ms.outgoing[from][kind] = append(ms.outgoing[from][kind], to)

	if ms.incoming[to] == nil {
		ms.incoming[to] = make(map[EdgeKind][]NodeRef)
	}
	ms.incoming[to][kind] = append(ms.incoming[to][kind], from)

	atomic.AddUint64(&ms.stats.EdgeCount, 1)
	return true, nil
}

// Node retrieves a node by natural key.
func (ms *MemoryStore) Node(kind NodeKind, key string) (*Node, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	node, exists := ms.nodes[NodeRef{Kind: kind, Key: key}]
	if !exists {
		return nil, ErrNodeNotFound
	}
	return node.Clone(), nil
}

// NodesByKind returns all nodes of one kind.
func (ms *MemoryStore) NodesByKind(kind NodeKind) []*Node {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	refs := ms.nodesByKind[kind]
	nodes := make([]*Node, 0, len(refs))
	for _, ref := range refs {
		if node, exists := ms.nodes[ref]; exists {
			nodes = append(nodes, node.Clone())
		}
	}
	return nodes
}

// Out returns targets of edges of the given kind leaving ref.
func (ms *MemoryStore) Out(ref NodeRef, kind EdgeKind) []NodeRef {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	targets := ms.outgoing[ref][kind]
	out := make([]NodeRef, len(targets))
	copy(out, targets)
	return out
}

// In returns sources of edges of the given kind arriving at ref.
func (ms *MemoryStore) In(ref NodeRef, kind EdgeKind) []NodeRef {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	sources := ms.incoming[ref][kind]
	in := make([]NodeRef, len(sources))
	copy(in, sources)
	return in
}

// Statistics returns current node/edge counts.
func (ms *MemoryStore) Statistics() Statistics {
	return Statistics{
		NodeCount: atomic.LoadUint64(&ms.stats.NodeCount),
		EdgeCount: atomic.LoadUint64(&ms.stats.EdgeCount),
	}
}
