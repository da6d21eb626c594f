// This file contains thin wrappers around the graph module
// for managing the dependencies between the matches of a tournament.
package core

import (
	"cmp"
	"errors"
	"fmt"
	"iter"
	"slices"

	"github.com/dominikbraun/graph"
)

var (
	ErrUnknownMatch = errors.New("referenced match does not exist")
	ErrUnknownGroup = errors.New("referenced group does not exist")
	ErrSelfRef      = errors.New("match references its own result")
	ErrCyclicRef    = errors.New("match reference creates a cycle")
)

type NodeKind int

const (
	MatchNode NodeKind = iota
	GroupNode
)

// A vertex of the ResolutionGraph
type Node struct {
	Kind NodeKind
	ID   string
}

func (n Node) hash() string {
	if n.Kind == GroupNode {
		return "group:" + n.ID
	}
	return "match:" + n.ID
}

func nodeHash(n Node) string {
	return n.hash()
}

// A ResolutionGraph contains the matches and groups of a tournament
// as its nodes. The directed edges model where a match gets its
// opponents from.
//
// A match that resolves a slot from the result of another match has an
// incoming edge from that match. A match that resolves a slot from a
// group's standings has an incoming edge from that group.
//
// The graph is kept acyclic. References that would create a cycle
// are rejected and recorded as invalid so the resolver can skip them.
type ResolutionGraph struct {
	graph.Graph[string, Node]

	invalid map[sideKey]error
}

type sideKey struct {
	matchID string
	side    Side
}

func NewResolutionGraph(matches []*Match, groups []*Group) *ResolutionGraph {
	g := &ResolutionGraph{
		Graph:   graph.New(nodeHash, graph.Directed(), graph.PreventCycles()),
		invalid: make(map[sideKey]error),
	}

	for _, grp := range groups {
		_ = g.AddVertex(Node{Kind: GroupNode, ID: grp.ID})
	}
	for _, m := range matches {
		_ = g.AddVertex(Node{Kind: MatchNode, ID: m.ID})
	}

	// Sorted to make the rejection of cyclic references deterministic
	sorted := slices.Clone(matches)
	slices.SortFunc(sorted, func(a, b *Match) int { return cmp.Compare(a.ID, b.ID) })

	for _, m := range sorted {
		for _, side := range []Side{Home, Away} {
			if err := g.link(m, side, groups); err != nil {
				g.invalid[sideKey{m.ID, side}] = err
			}
		}
	}

	return g
}

func (g *ResolutionGraph) link(m *Match, side Side, groups []*Group) error {
	ref := m.SourceOn(side)
	if ref == nil {
		return nil
	}
	if err := ref.Validate(); err != nil {
		return err
	}

	var source Node
	switch {
	case ref.Kind == SourceTeam:
		return nil
	case ref.Kind == SourceGroupPos:
		i := slices.IndexFunc(groups, func(grp *Group) bool { return grp.ID == ref.GroupID })
		if i < 0 {
			i = slices.IndexFunc(groups, func(grp *Group) bool { return grp.Name != "" && grp.Name == ref.GroupID })
		}
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrUnknownGroup, ref.GroupID)
		}
		source = Node{Kind: GroupNode, ID: groups[i].ID}
	case ref.IsMatchResult():
		if ref.MatchID == m.ID {
			return ErrSelfRef
		}
		source = Node{Kind: MatchNode, ID: ref.MatchID}
	default:
		return ErrUnknownSourceKind
	}

	err := g.AddEdge(source.hash(), Node{Kind: MatchNode, ID: m.ID}.hash())
	switch {
	case err == nil, errors.Is(err, graph.ErrEdgeAlreadyExists):
		return nil
	case errors.Is(err, graph.ErrEdgeCreatesCycle):
		return fmt.Errorf("%w: %s", ErrCyclicRef, ref)
	case errors.Is(err, graph.ErrVertexNotFound):
		return fmt.Errorf("%w: %s", ErrUnknownMatch, ref.MatchID)
	}
	return err
}

// Returns the reason why the source of the given match side can not
// be resolved, or nil when the reference is well-formed
func (g *ResolutionGraph) Invalid(matchID string, side Side) error {
	return g.invalid[sideKey{matchID, side}]
}

// Iterates the nodes that are reachable from the start node in
// breadth-first order. The start node itself is not yielded.
func (g *ResolutionGraph) BreadthSearchIter(start Node) iter.Seq[Node] {
	startHash := start.hash()
	iterator := func(yield func(v Node) bool) {
		visitor := func(key string) bool {
			if key == startHash {
				return false
			}
			v, _ := g.Vertex(key)
			return !yield(v)
		}
		_ = graph.BFS(g.Graph, startHash, visitor)
	}
	return iterator
}

// Returns the ids of all matches that directly or transitively
// get an opponent from the result of the given match
func (g *ResolutionGraph) Dependants(matchID string) []string {
	return g.dependantMatches(Node{Kind: MatchNode, ID: matchID})
}

// Returns the ids of all matches that directly or transitively
// get an opponent from the standings of the given group
func (g *ResolutionGraph) GroupDependants(groupID string) []string {
	return g.dependantMatches(Node{Kind: GroupNode, ID: groupID})
}

func (g *ResolutionGraph) dependantMatches(start Node) []string {
	if _, err := g.Vertex(start.hash()); err != nil {
		return nil
	}
	ids := make([]string, 0, 4)
	for node := range g.BreadthSearchIter(start) {
		if node.Kind == MatchNode {
			ids = append(ids, node.ID)
		}
	}
	return ids
}

// Returns the direct prerequisites of a match: the matches and
// groups it gets its opponents from.
func (g *ResolutionGraph) Prerequisites(matchID string) []Node {
	predecessors, err := g.PredecessorMap()
	if err != nil {
		return nil
	}
	incoming := predecessors[Node{Kind: MatchNode, ID: matchID}.hash()]
	nodes := make([]Node, 0, len(incoming))
	for key := range incoming {
		v, _ := g.Vertex(key)
		nodes = append(nodes, v)
	}
	slices.SortFunc(nodes, func(a, b Node) int { return cmp.Compare(a.hash(), b.hash()) })
	return nodes
}
