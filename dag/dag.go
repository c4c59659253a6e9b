// Package dag wraps a gonum directed graph whose nodes and edges carry DOT
// attributes.
package dag

import (
	"fmt"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/encoding"
	"gonum.org/v1/gonum/graph/encoding/dot"
	"gonum.org/v1/gonum/graph/simple"
)

type Graph struct {
	*simple.DirectedGraph
}

func New() *Graph {
	return &Graph{DirectedGraph: simple.NewDirectedGraph()}
}

// NewNode returns a node with a fresh id. It is not added to the graph.
func (g *Graph) NewNode() *Node {
	return &Node{Node: g.DirectedGraph.NewNode()}
}

type Node struct {
	graph.Node
	dotID string
	attrs encoding.Attributes
}

// DOTID implements dot.Node.
func (n *Node) DOTID() string {
	if n.dotID == "" {
		return fmt.Sprintf("n%d", n.ID())
	}
	return n.dotID
}

// SetDOTID sets the node's DOT ID.
func (n *Node) SetDOTID(id string) {
	n.dotID = id
}

func (n *Node) Attributes() []encoding.Attribute {
	return n.attrs.Attributes()
}

func (n *Node) SetAttribute(attr encoding.Attribute) error {
	return n.attrs.SetAttribute(attr)
}

// Attribute returns the value of key, or "".
func (n *Node) Attribute(key string) string {
	for _, a := range n.attrs {
		if a.Key == key {
			return a.Value
		}
	}
	return ""
}

// Connect adds an edge from -> to. Both nodes must already be in the graph.
func (g *Graph) Connect(from, to int64) error {
	f := g.Node(from)
	if f == nil {
		return fmt.Errorf("node %d does not exist", from)
	}
	t := g.Node(to)
	if t == nil {
		return fmt.Errorf("node %d does not exist", to)
	}
	if from == to {
		return fmt.Errorf("self edge on node %d", from)
	}
	g.SetEdge(g.NewEdge(f, t))
	return nil
}

// ExportToDot exports the graph to Graphviz .dot format.
func (g *Graph) ExportToDot(name string) (string, error) {
	data, err := dot.Marshal(g, name, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to export DAG to DOT format: %v", err)
	}
	return string(data), nil
}
