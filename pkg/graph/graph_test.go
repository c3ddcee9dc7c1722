package graph

import (
	"testing"

	"github.com/BolajiAyodeji/lightning/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestPrune_AncestorsOnly(t *testing.T) {
	t.Parallel()

	// trigger -> a -> b -> c, plus a -> d
	g := New()
	g.AddEdge("trigger", "a")
	g.AddEdge("a", "b")
	g.AddEdge("b", "c")
	g.AddEdge("a", "d")

	pruned := g.Prune("b")

	assert.Equal(t, []string{"a", "b", "trigger"}, pruned.Nodes())
	assert.False(t, pruned.Contains("c"))
	assert.False(t, pruned.Contains("d"))
}

func TestPrune_AtRoot(t *testing.T) {
	t.Parallel()

	g := New()
	g.AddEdge("trigger", "a")
	g.AddEdge("a", "b")

	pruned := g.Prune("trigger")

	assert.Equal(t, []string{"trigger"}, pruned.Nodes())
}

func TestPrune_UnknownNode(t *testing.T) {
	t.Parallel()

	g := New()
	g.AddEdge("a", "b")

	pruned := g.Prune("missing")

	assert.Empty(t, pruned.Nodes())
}

func TestPrune_DiamondDependency(t *testing.T) {
	t.Parallel()

	// a -> b -> d and a -> c -> d
	g := New()
	g.AddEdge("a", "b")
	g.AddEdge("a", "c")
	g.AddEdge("b", "d")
	g.AddEdge("c", "d")

	pruned := g.Prune("d")

	assert.Equal(t, []string{"a", "b", "c", "d"}, pruned.Nodes())
}

func TestPrune_CycleDoesNotLoop(t *testing.T) {
	t.Parallel()

	g := New()
	g.AddEdge("a", "b")
	g.AddEdge("b", "a")

	pruned := g.Prune("a")

	assert.Equal(t, []string{"a", "b"}, pruned.Nodes())
}

func TestFromEdges(t *testing.T) {
	t.Parallel()

	triggerID := "trigger-1"
	jobA := "job-a"

	g := FromEdges([]*models.Edge{
		{SourceTriggerID: &triggerID, TargetJobID: jobA, Enabled: true},
		{SourceJobID: &jobA, TargetJobID: "job-b", Enabled: true},
		{TargetJobID: "job-orphan"}, // no source, skipped
	})

	assert.Equal(t, []string{jobA, "job-b", triggerID}, g.Nodes())

	pruned := g.Prune("job-b")
	assert.Equal(t, []string{jobA, "job-b", triggerID}, pruned.Nodes())
}
