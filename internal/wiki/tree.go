package wiki

import (
	"sort"
	"strings"
)

// TreeNode wraps a page together with its ordered children. The tree is a
// derived, ephemeral view; edits go through the flat records and trigger a
// full re-derivation.
type TreeNode struct {
	Page     Page
	Children []*TreeNode
}

// BuildTree materializes the flat parent-referencing record list into an
// ordered forest of root nodes. The derivation is pure and idempotent.
//
// Records whose parent id is absent from the input degrade to roots instead
// of disappearing. A record whose ancestry chain loops back onto itself is
// re-rooted so traversal always terminates. When two records share an id the
// later one wins.
func BuildTree(records []Page) []*TreeNode {
	nodes := make(map[int64]*TreeNode, len(records))
	inputOrder := make([]int64, 0, len(records))
	for _, record := range records {
		if _, seen := nodes[record.ID]; !seen {
			inputOrder = append(inputOrder, record.ID)
		}
		nodes[record.ID] = &TreeNode{Page: record}
	}

	roots := make([]*TreeNode, 0, len(inputOrder))
	for _, id := range inputOrder {
		node := nodes[id]
		parentID := node.Page.ParentID
		if parentID == nil || *parentID == id {
			roots = append(roots, node)
			continue
		}
		parent, present := nodes[*parentID]
		if !present || ancestryReaches(nodes, *parentID, id) {
			roots = append(roots, node)
			continue
		}
		parent.Children = append(parent.Children, node)
	}

	sortForest(roots)
	return roots
}

// ancestryReaches reports whether walking raw parent pointers from startID
// arrives at targetID. A loop in the chain that never touches targetID is
// harmless here: every member of such a loop re-roots itself through its own
// check, so no edge of the loop survives into the tree.
func ancestryReaches(nodes map[int64]*TreeNode, startID, targetID int64) bool {
	visited := make(map[int64]bool)
	current := startID
	for current != targetID {
		if visited[current] {
			return false
		}
		visited[current] = true
		node, present := nodes[current]
		if !present || node.Page.ParentID == nil {
			return false
		}
		current = *node.Page.ParentID
	}
	return true
}

// sortForest orders every sibling sequence recursively, using an explicit
// work stack rather than call recursion so depth is bounded only by memory.
func sortForest(roots []*TreeNode) {
	stack := [][]*TreeNode{roots}
	for len(stack) > 0 {
		siblings := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		sortSiblings(siblings)
		for _, node := range siblings {
			if len(node.Children) > 0 {
				stack = append(stack, node.Children)
			}
		}
	}
}

// sortSiblings sorts by display order ascending, then title ascending
// case-insensitively. The sort is stable, so records with identical keys keep
// their relative input order.
func sortSiblings(siblings []*TreeNode) {
	sort.SliceStable(siblings, func(i, j int) bool {
		left, right := siblings[i].Page, siblings[j].Page
		if left.EffectiveOrder() != right.EffectiveOrder() {
			return left.EffectiveOrder() < right.EffectiveOrder()
		}
		return strings.ToLower(left.Title) < strings.ToLower(right.Title)
	})
}
