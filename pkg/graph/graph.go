// Package graph builds directed dependency graphs of workflow nodes and
// restricts them to the ancestor set of a retry target.
package graph

import (
	"sort"

	"github.com/BolajiAyodeji/lightning/pkg/models"
)

// Graph is a directed graph over trigger and job identifiers. Workflow
// graphs are acyclic by construction; traversal is still visited-set
// protected so a malformed graph cannot loop forever.
type Graph struct {
	nodes    map[string]struct{}
	incoming map[string][]string
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		nodes:    make(map[string]struct{}),
		incoming: make(map[string][]string),
	}
}

// FromEdges builds a graph from workflow edges. The edge source may be a
// trigger or a job.
func FromEdges(edges []*models.Edge) *Graph {
	g := New()

	for _, edge := range edges {
		source := edge.SourceID()
		if source == "" || edge.TargetJobID == "" {
			continue
		}

		g.AddEdge(source, edge.TargetJobID)
	}

	return g
}

// AddEdge inserts a directed edge between two node identifiers.
func (g *Graph) AddEdge(source, target string) {
	g.nodes[source] = struct{}{}
	g.nodes[target] = struct{}{}
	g.incoming[target] = append(g.incoming[target], source)
}

// Contains reports whether the node is part of the graph.
func (g *Graph) Contains(id string) bool {
	_, ok := g.nodes[id]

	return ok
}

// Nodes returns the node identifiers in the graph, sorted for determinism.
func (g *Graph) Nodes() []string {
	nodes := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		nodes = append(nodes, id)
	}

	sort.Strings(nodes)

	return nodes
}

// Prune returns the subgraph of ancestors of target: the target itself plus
// every node it transitively depends on via incoming edges. Downstream nodes
// and independent branches are excluded. Pruning at an unknown node yields an
// empty graph.
func (g *Graph) Prune(target string) *Graph {
	pruned := New()

	if !g.Contains(target) {
		return pruned
	}

	visited := map[string]struct{}{target: {}}
	queue := []string{target}

	pruned.nodes[target] = struct{}{}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, source := range g.incoming[current] {
			pruned.nodes[source] = struct{}{}
			pruned.incoming[current] = append(pruned.incoming[current], source)

			if _, seen := visited[source]; seen {
				continue
			}

			visited[source] = struct{}{}
			queue = append(queue, source)
		}
	}

	return pruned
}
