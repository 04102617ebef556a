package community

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/papergraph/internal/core/model"
)

func nodes(ids ...string) []model.Node {
	out := make([]model.Node, len(ids))
	for i, id := range ids {
		out[i] = model.Node{ID: id, Type: model.NodePaper}
	}
	return out
}

func edges(pairs ...[2]string) []model.Edge {
	out := make([]model.Edge, len(pairs))
	for i, p := range pairs {
		out[i] = model.Edge{FromNode: p[0], ToNode: p[1], Type: model.SimilarTo}
	}
	return out
}

func ids(c []model.Node) []string {
	out := make([]string, len(c))
	for i, n := range c {
		out[i] = n.ID
	}
	return out
}

func TestLPA_DisconnectedComponents(t *testing.T) {
	communities, err := NewLabelPropagationDetector().Detect(
		nodes("1", "2", "3", "4", "5", "6"),
		edges([2]string{"1", "2"}, [2]string{"2", "3"}, [2]string{"3", "1"},
			[2]string{"4", "5"}, [2]string{"5", "6"}, [2]string{"6", "4"}),
	)
	require.NoError(t, err)
	require.Len(t, communities, 2)
	assert.Equal(t, []string{"1", "2", "3"}, ids(communities[0]))
	assert.Equal(t, []string{"4", "5", "6"}, ids(communities[1]))
}

func TestLPA_BridgeNode(t *testing.T) {
	communities, err := NewLabelPropagationDetector().Detect(
		nodes("1", "2", "3", "4", "5", "6"),
		edges([2]string{"1", "2"}, [2]string{"2", "3"}, [2]string{"3", "1"},
			[2]string{"3", "4"},
			[2]string{"4", "5"}, [2]string{"5", "6"}, [2]string{"6", "4"}),
	)
	require.NoError(t, err)
	assert.Len(t, communities, 2)
}

func TestLPA_LargeClique(t *testing.T) {
	ns := nodes("1", "2", "3", "4", "5")
	var pairs [][2]string
	for i := range ns {
		for j := i + 1; j < len(ns); j++ {
			pairs = append(pairs, [2]string{ns[i].ID, ns[j].ID})
		}
	}

	communities, err := NewLabelPropagationDetector().Detect(ns, edges(pairs...))
	require.NoError(t, err)
	require.Len(t, communities, 1)
	assert.Len(t, communities[0], 5)
}

func TestLPA_SingletonsAndForeignEdges(t *testing.T) {
	d := NewLabelPropagationDetector()
	communities, err := d.Detect(
		nodes("a", "b", "lonely"),
		edges([2]string{"a", "b"}, [2]string{"b", "outside"}, [2]string{"a", "a"}),
	)
	require.NoError(t, err)
	require.Len(t, communities, 1)
	assert.Equal(t, []string{"a", "b"}, ids(communities[0]))

	d.MinSize = 1
	communities, err = d.Detect(nodes("a", "b", "lonely"), edges([2]string{"a", "b"}))
	require.NoError(t, err)
	require.Len(t, communities, 2)

	assignment := Assign(communities)
	assert.Equal(t, 0, assignment["a"])
	assert.Equal(t, 0, assignment["b"])
	assert.Equal(t, 1, assignment["lonely"])
}

func TestLPA_Empty(t *testing.T) {
	communities, err := NewLabelPropagationDetector().Detect(nil, nil)
	require.NoError(t, err)
	assert.Nil(t, communities)
}

func TestLPA_Deterministic(t *testing.T) {
	var ns []model.Node
	var pairs [][2]string
	for c := 0; c < 4; c++ {
		for i := 0; i < 5; i++ {
			ns = append(ns, model.Node{ID: fmt.Sprintf("c%d-n%d", c, i)})
			if i > 0 {
				pairs = append(pairs, [2]string{fmt.Sprintf("c%d-n%d", c, i-1), fmt.Sprintf("c%d-n%d", c, i)})
				pairs = append(pairs, [2]string{fmt.Sprintf("c%d-n0", c), fmt.Sprintf("c%d-n%d", c, i)})
			}
		}
	}

	first, err := NewLabelPropagationDetector().Detect(ns, edges(pairs...))
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := NewLabelPropagationDetector().Detect(ns, edges(pairs...))
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}
