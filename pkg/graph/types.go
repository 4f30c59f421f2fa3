package graph

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// NodeKind classifies a node in the infrastructure graph.
type NodeKind string

const (
	KindFQDN   NodeKind = "FQDN"
	KindDomain NodeKind = "Domain"
	KindIP     NodeKind = "IP"
)

// EdgeKind classifies a relationship between nodes.
type EdgeKind string

const (
	// EdgeBelongsTo links an FQDN to its registered domain.
	EdgeBelongsTo EdgeKind = "BELONGS_TO"
	// EdgeResolvesTo links an FQDN to a server address it resolved to.
	EdgeResolvesTo EdgeKind = "RESOLVES_TO"
)

// Well-known FQDN property keys.
const (
	PropLogDay        = "logday"
	PropIsMalicious   = "isMalicious"
	PropMalEngagement = "malEngagement"
	PropPopularity    = "popularity"
	PropIsIP          = "isIP"
)

// ValueType represents the type of a property value
type ValueType uint8

const (
	TypeString ValueType = iota
	TypeInt
	TypeFloat
	TypeBool
	TypeTimestamp
)

// Value represents a typed property value
type Value struct {
	Type ValueType
	Data []byte
}

// Helper functions to create typed values
func StringValue(s string) Value {
	return Value{Type: TypeString, Data: []byte(s)}
}

func IntValue(i int64) Value {
	data := make([]byte, 8)
	binary.LittleEndian.PutUint64(data, uint64(i))
	return Value{Type: TypeInt, Data: data}
}

func FloatValue(f float64) Value {
	data := make([]byte, 8)
	binary.LittleEndian.PutUint64(data, math.Float64bits(f))
	return Value{Type: TypeFloat, Data: data}
}

func BoolValue(b bool) Value {
	data := []byte{0}
	if b {
		data[0] = 1
	}
	return Value{Type: TypeBool, Data: data}
}

func TimestampValue(t time.Time) Value {
	data := make([]byte, 8)
	binary.LittleEndian.PutUint64(data, uint64(t.Unix()))
	return Value{Type: TypeTimestamp, Data: data}
}

// Decode methods
func (v Value) AsString() (string, error) {
	if v.Type != TypeString {
		return "", fmt.Errorf("value is not a string")
	}
	return string(v.Data), nil
}

func (v Value) AsInt() (int64, error) {
	if v.Type != TypeInt {
		return 0, fmt.Errorf("value is not an int")
	}
	return int64(binary.LittleEndian.Uint64(v.Data)), nil
}

func (v Value) AsFloat() (float64, error) {
	if v.Type != TypeFloat {
		return 0, fmt.Errorf("value is not a float")
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(v.Data)), nil
}

func (v Value) AsBool() (bool, error) {
	if v.Type != TypeBool {
		return false, fmt.Errorf("value is not a bool")
	}
	return v.Data[0] == 1, nil
}

func (v Value) AsTimestamp() (time.Time, error) {
	if v.Type != TypeTimestamp {
		return time.Time{}, fmt.Errorf("value is not a timestamp")
	}
	return time.Unix(int64(binary.LittleEndian.Uint64(v.Data)), 0), nil
}

// Equal reports whether two values have the same type and payload.
func (v Value) Equal(other Value) bool {
	return v.Type == other.Type && string(v.Data) == string(other.Data)
}

// NodeRef identifies a node by its natural key.
type NodeRef struct {
	Kind NodeKind
	Key  string
}

func (r NodeRef) String() string {
	return string(r.Kind) + ":" + r.Key
}

// Node represents a vertex in the graph. Identity is (Kind, Key);
// re-ingesting the same key merges attributes instead of duplicating.
type Node struct {
	Kind       NodeKind
	Key        string
	Properties map[string]Value
	CreatedAt  int64
	UpdatedAt  int64
}

// Edge represents a relationship between nodes. Identity is
// (From, To, Kind); upserting the same triple is a no-op.
type Edge struct {
	From      NodeRef
	To        NodeRef
	Kind      EdgeKind
	CreatedAt int64
}

// Ref returns the node's reference.
func (n *Node) Ref() NodeRef {
	return NodeRef{Kind: n.Kind, Key: n.Key}
}

// Clone creates a deep copy of a node
func (n *Node) Clone() *Node {
	clone := &Node{
		Kind:       n.Kind,
		Key:        n.Key,
		Properties: make(map[string]Value, len(n.Properties)),
		CreatedAt:  n.CreatedAt,
		UpdatedAt:  n.UpdatedAt,
	}
	for k, v := range n.Properties {
		clone.Properties[k] = v
	}
	return clone
}

// GetProperty gets a property value
func (n *Node) GetProperty(key string) (Value, bool) {
	val, ok := n.Properties[key]
	return val, ok
}

// Bool returns a boolean property, false when absent or mistyped.
func (n *Node) Bool(key string) bool {
	if v, ok := n.Properties[key]; ok {
		if b, err := v.AsBool(); err == nil {
			return b
		}
	}
	return false
}

// Float returns a float property, 0 when absent or mistyped.
func (n *Node) Float(key string) float64 {
	if v, ok := n.Properties[key]; ok {
		if f, err := v.AsFloat(); err == nil {
			return f
		}
	}
	return 0
}

// Text returns a string property, "" when absent or mistyped.
func (n *Node) Text(key string) string {
	if v, ok := n.Properties[key]; ok {
		if s, err := v.AsString(); err == nil {
			return s
		}
	}
	return ""
}
