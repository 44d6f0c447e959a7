package mindmap

import (
	"github.com/pkg/errors"

	"github.com/llamamind/mindmap/store"
)

// Tree is a conversation with its nodes arranged under the root.
type Tree struct {
	Conversation *store.Conversation
	Root         *TreeNode
}

type TreeNode struct {
	Node     *store.Node
	Children []*TreeNode
}

// buildTree arranges a flat node list, ordered by id, into a tree. It walks
// with an explicit stack so malformed parent links surface as
// ErrDataIntegrity instead of unbounded recursion.
func buildTree(nodes []*store.Node) (*TreeNode, error) {
	var root *store.Node
	children := make(map[int32][]*store.Node, len(nodes))
	for _, node := range nodes {
		if node.ParentID == nil {
			if root != nil {
				return nil, errors.Wrapf(ErrDataIntegrity, "multiple roots: %d and %d", root.ID, node.ID)
			}
			root = node
			continue
		}
		children[*node.ParentID] = append(children[*node.ParentID], node)
	}
	if root == nil {
		return nil, errors.Wrap(ErrDataIntegrity, "no root node")
	}

	type frame struct {
		tree  *TreeNode
		depth int
	}
	rootTree := &TreeNode{Node: root}
	visited := map[int32]bool{root.ID: true}
	stack := []frame{{tree: rootTree}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		kids := children[top.tree.Node.ID]
		if len(kids) > 0 && top.depth+1 > store.MaxNodeLevel {
			return nil, errors.Wrapf(ErrDataIntegrity, "node %d exceeds maximum depth", kids[0].ID)
		}
		top.tree.Children = make([]*TreeNode, 0, len(kids))
		for _, kid := range kids {
			if visited[kid.ID] {
				return nil, errors.Wrapf(ErrDataIntegrity, "node %d reached twice", kid.ID)
			}
			visited[kid.ID] = true
			child := &TreeNode{Node: kid}
			top.tree.Children = append(top.tree.Children, child)
			stack = append(stack, frame{tree: child, depth: top.depth + 1})
		}
	}
	if len(visited) != len(nodes) {
		return nil, errors.Wrapf(ErrDataIntegrity, "%d node(s) unreachable from root", len(nodes)-len(visited))
	}
	return rootTree, nil
}
