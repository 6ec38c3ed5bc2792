package bptree

import (
	"slices"
	"time"

	"github.com/sirupsen/logrus"
)

// rebalance restores the minimum occupancy of n after a removal, first by
// borrowing from a sibling and otherwise by merging with one. Underflow of the
// parent is repaired recursively and an empty root is collapsed.
// 删除后节点下溢时进行平衡：优先从兄弟节点借，否则与兄弟节点合并
//
// Caller holds t.mu exclusively.
func (t *Tree[K, V]) rebalance(n *node[K, V]) {
	parent := n.parent
	if parent == nil {
		return
	}

	var start = time.Now()
	defer func() { t.stats.IncRebalanceTime(time.Since(start)) }()
	t.stats.IncRebalance(1)

	parent.mu.Lock()
	index := parent.childIndex(n)
	_assert(index >= 0, "rebalance: node missing from its parent")
	_assert(len(parent.children) > 1, "rebalance: parent has a single child")

	left, right := n.prevSibling(index), n.nextSibling(index)
	switch {
	case left != nil && len(left.keys) > t.minKeys:
		t.borrowLeft(parent, index, left, n)
		parent.mu.Unlock()
		return
	case right != nil && len(right.keys) > t.minKeys:
		t.borrowRight(parent, index, n, right)
		parent.mu.Unlock()
		return
	}

	// Neither sibling can spare a key: merge into the left one when there is one.
	survivor := n
	if left != nil {
		survivor = left
		t.merge(parent, index-1, left, n)
	} else {
		t.merge(parent, index, n, right)
	}
	remaining := len(parent.keys)
	parent.mu.Unlock()

	// gofail: var afterMerge struct{}

	switch {
	case parent.parent == nil && remaining == 0:
		t.collapseRoot(parent, survivor)
	case parent.parent != nil && remaining < t.minKeys:
		t.rebalance(parent)
	}
}

// borrowLeft moves the last entry of left to the front of n. parent.keys[index-1]
// separates the two. Caller holds t.mu exclusively and parent.mu.
func (t *Tree[K, V]) borrowLeft(parent *node[K, V], index int, left, n *node[K, V]) {
	left.mu.Lock()
	n.mu.Lock()

	last := len(left.keys) - 1
	if n.isLeaf {
		n.insertAt(0, left.keys[last], left.values[last])
		left.removeAt(last)
		parent.keys[index-1] = n.keys[0]
	} else {
		// Rotate through the parent: the separator comes down, left's last key
		// goes up, and left's last child changes parent.
		child := left.children[last+1]
		n.keys = slices.Insert(n.keys, 0, parent.keys[index-1])
		n.children = slices.Insert(n.children, 0, child)
		parent.keys[index-1] = left.keys[last]
		left.keys = slices.Delete(left.keys, last, last+1)
		left.children = slices.Delete(left.children, last+1, last+2)
		child.parent = n
	}

	n.mu.Unlock()
	left.mu.Unlock()

	t.stats.IncBorrow(1)
	t.logger.WithField("leaf", n.isLeaf).Debug("BORROW_LEFT")
}

// borrowRight moves the first entry of right to the end of n. parent.keys[index]
// separates the two. Caller holds t.mu exclusively and parent.mu.
func (t *Tree[K, V]) borrowRight(parent *node[K, V], index int, n, right *node[K, V]) {
	n.mu.Lock()
	right.mu.Lock()

	if n.isLeaf {
		n.insertAt(len(n.keys), right.keys[0], right.values[0])
		right.removeAt(0)
		parent.keys[index] = right.keys[0]
	} else {
		child := right.children[0]
		n.keys = append(n.keys, parent.keys[index])
		n.children = append(n.children, child)
		parent.keys[index] = right.keys[0]
		right.keys = slices.Delete(right.keys, 0, 1)
		right.children = slices.Delete(right.children, 0, 1)
		child.parent = n
	}

	right.mu.Unlock()
	n.mu.Unlock()

	t.stats.IncBorrow(1)
	t.logger.WithField("leaf", n.isLeaf).Debug("BORROW_RIGHT")
}

// merge appends right to left and removes right together with its separator
// parent.keys[index] from the parent. right is marked dead but keeps its next
// pointer so a cursor parked on it can still move forward.
// 合并两个兄弟节点，右节点被摘除
//
// Caller holds t.mu exclusively and parent.mu.
func (t *Tree[K, V]) merge(parent *node[K, V], index int, left, right *node[K, V]) {
	left.mu.Lock()
	right.mu.Lock()

	if left.isLeaf {
		left.keys = append(left.keys, right.keys...)
		left.values = append(left.values, right.values...)
		left.next = right.next
	} else {
		left.keys = append(left.keys, parent.keys[index])
		left.keys = append(left.keys, right.keys...)
		left.children = append(left.children, right.children...)
		for _, child := range right.children {
			child.parent = left
		}
	}
	right.keys, right.values, right.children = nil, nil, nil
	right.parent = nil
	right.dead = true

	right.mu.Unlock()
	left.mu.Unlock()

	parent.removeChild(index)

	t.stats.IncMerge(1)
	t.logger.WithFields(logrus.Fields{
		"leaf": left.isLeaf,
		"keys": len(left.keys),
	}).Debug("MERGE")
}

// collapseRoot replaces a root branch left without keys by its only child.
// Caller holds t.mu exclusively.
// 根节点没有key时，唯一的孩子成为新的根节点，树高度减一
func (t *Tree[K, V]) collapseRoot(root, child *node[K, V]) {
	root.mu.Lock()
	_assert(len(root.keys) == 0 && len(root.children) == 1 && root.children[0] == child,
		"collapse of root with %d keys", len(root.keys))
	root.children = nil
	root.dead = true
	root.mu.Unlock()

	child.parent = nil
	t.root = child

	t.stats.IncShrink(1)
	t.logger.Debug("ROOT_COLLAPSE")
}
