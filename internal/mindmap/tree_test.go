package mindmap

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llamamind/mindmap/store"
)

func testNode(id int32, parent int32, level int32) *store.Node {
	node := &store.Node{ID: id, Level: level}
	if parent != 0 {
		node.ParentID = &parent
	}
	return node
}

func TestBuildTreeKeepsSiblingOrder(t *testing.T) {
	nodes := []*store.Node{
		testNode(1, 0, 0),
		testNode(2, 1, 1),
		testNode(3, 1, 1),
		testNode(4, 2, 2),
		testNode(5, 1, 1),
		testNode(6, 2, 2),
	}
	root, err := buildTree(nodes)
	require.NoError(t, err)
	require.Equal(t, int32(1), root.Node.ID)

	ids := func(list []*TreeNode) []int32 {
		out := []int32{}
		for _, n := range list {
			out = append(out, n.Node.ID)
		}
		return out
	}
	assert.Equal(t, []int32{2, 3, 5}, ids(root.Children))
	assert.Equal(t, []int32{4, 6}, ids(root.Children[0].Children))
	assert.Empty(t, root.Children[1].Children)
}

func TestBuildTreeDataIntegrity(t *testing.T) {
	chain := []*store.Node{testNode(1, 0, 0)}
	for id := int32(2); id <= store.MaxNodeLevel+2; id++ {
		chain = append(chain, testNode(id, id-1, id-1))
	}

	tests := []struct {
		name  string
		nodes []*store.Node
	}{
		{name: "empty", nodes: nil},
		{name: "no root", nodes: []*store.Node{testNode(1, 2, 1), testNode(2, 1, 1)}},
		{name: "two roots", nodes: []*store.Node{testNode(1, 0, 0), testNode(2, 0, 0)}},
		{name: "cycle beside root", nodes: []*store.Node{testNode(1, 0, 0), testNode(2, 3, 1), testNode(3, 2, 1)}},
		{name: "self parent", nodes: []*store.Node{testNode(1, 0, 0), testNode(2, 2, 1)}},
		{name: "dangling parent", nodes: []*store.Node{testNode(1, 0, 0), testNode(2, 99, 1)}},
		{name: "too deep", nodes: chain},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := buildTree(tt.nodes)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrDataIntegrity))
		})
	}
}

func TestBuildTreeAtMaximumDepth(t *testing.T) {
	nodes := []*store.Node{testNode(1, 0, 0)}
	for id := int32(2); id <= store.MaxNodeLevel+1; id++ {
		nodes = append(nodes, testNode(id, id-1, id-1))
	}
	root, err := buildTree(nodes)
	require.NoError(t, err)

	depth := 0
	for node := root; len(node.Children) > 0; node = node.Children[0] {
		depth++
	}
	assert.Equal(t, store.MaxNodeLevel, depth)
}
