package core

import (
	"slices"
	"testing"
)

func TestResolutionGraphDependants(t *testing.T) {
	f := knockoutFixture()
	g := NewResolutionGraph(f.s.Matches, f.s.Groups)

	dependants := g.Dependants("sf1")
	slices.Sort(dependants)
	if !slices.Equal(dependants, []string{"final", "third"}) {
		t.Fatal("The dependants of the semi-final are wrong")
	}

	dependants = g.GroupDependants("ga")
	slices.Sort(dependants)
	if !slices.Equal(dependants, []string{"final", "sf1", "sf2", "third"}) {
		t.Fatal("The transitive dependants of the group are wrong")
	}

	if len(g.Dependants("final")) != 0 {
		t.Fatal("The final has dependants")
	}
	if g.Dependants("missing") != nil {
		t.Fatal("An unknown match has dependants")
	}
}

func TestResolutionGraphPrerequisites(t *testing.T) {
	f := knockoutFixture()
	g := NewResolutionGraph(f.s.Matches, f.s.Groups)

	prerequisites := g.Prerequisites("sf1")
	expected := []Node{{Kind: GroupNode, ID: "ga"}, {Kind: GroupNode, ID: "gb"}}
	if !slices.Equal(prerequisites, expected) {
		t.Fatal("The prerequisites of the semi-final are not the two groups")
	}

	prerequisites = g.Prerequisites("final")
	expected = []Node{{Kind: MatchNode, ID: "sf1"}, {Kind: MatchNode, ID: "sf2"}}
	if !slices.Equal(prerequisites, expected) {
		t.Fatal("The prerequisites of the final are not the semi-finals")
	}
}

func TestResolutionGraphRejectsCycles(t *testing.T) {
	f := newFixture()
	f.pending("m1", "p", WinnerOf("m3"), nil)
	f.pending("m2", "p", WinnerOf("m1"), nil)
	f.pending("m3", "p", WinnerOf("m2"), LoserOf("m1"))

	g := NewResolutionGraph(f.s.Matches, f.s.Groups)

	eq1 := g.Invalid("m1", Home) == nil
	eq2 := g.Invalid("m2", Home) == nil
	eq3 := g.Invalid("m3", Home) != nil
	eq4 := g.Invalid("m3", Away) != nil
	if !eq1 || !eq2 || !eq3 || !eq4 {
		t.Fatal("The references closing the cycle were not rejected")
	}
}
