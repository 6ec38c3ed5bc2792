package bptree

import "github.com/sirupsen/logrus"

// splitLeaf breaks an overfull leaf into two. The upper half moves into a new
// right sibling that is linked into the leaf chain, and a copy of the
// sibling's first key is promoted into the parent.
// 叶子节点分裂：后半部分移动到新的右兄弟节点，右兄弟的第一个key复制到父节点
//
// Caller holds t.mu exclusively.
func (t *Tree[K, V]) splitLeaf(n *node[K, V]) {
	n.mu.Lock()
	_assert(len(n.keys) > t.maxKeys, "split of leaf with %d keys", len(n.keys))

	mid := (len(n.keys) + 1) / 2
	next := newLeaf[K, V](t.maxKeys + 1)
	next.keys = append(next.keys, n.keys[mid:]...)
	next.values = append(next.values, n.values[mid:]...)
	clear(n.keys[mid:])
	clear(n.values[mid:])
	n.keys = n.keys[:mid]
	n.values = n.values[:mid]

	next.parent = n.parent
	next.next = n.next
	n.next = next
	separator := next.keys[0]
	n.mu.Unlock()

	t.stats.IncSplit(1)
	t.logger.WithFields(logrus.Fields{
		"left":  len(n.keys),
		"right": len(next.keys),
	}).Debug("LEAF_SPLIT")

	// gofail: var beforeLeafPromote struct{}
	t.promote(n, separator, next)
}

// splitBranch breaks an overfull branch into two. The median key moves up into
// the parent and is kept in neither half.
// 分支节点分裂：中间的key上移到父节点
//
// Caller holds t.mu exclusively.
func (t *Tree[K, V]) splitBranch(n *node[K, V]) {
	n.mu.Lock()
	_assert(len(n.keys) > t.maxKeys, "split of branch with %d keys", len(n.keys))

	mid := len(n.keys) / 2
	separator := n.keys[mid]
	next := newBranch[K, V](t.maxKeys + 1)
	next.keys = append(next.keys, n.keys[mid+1:]...)
	next.children = append(next.children, n.children[mid+1:]...)
	clear(n.keys[mid:])
	clear(n.children[mid+1:])
	n.keys = n.keys[:mid]
	n.children = n.children[:mid+1]
	next.parent = n.parent
	n.mu.Unlock()

	for _, child := range next.children {
		child.parent = next
	}

	t.stats.IncSplit(1)
	t.logger.WithFields(logrus.Fields{
		"left":  len(n.keys),
		"right": len(next.keys),
	}).Debug("BRANCH_SPLIT")

	// gofail: var beforeBranchPromote struct{}
	t.promote(n, separator, next)
}

// promote inserts separator and the new right node into the parent of left,
// creating a new root when left was the root. An overflowing parent is split
// in turn. Caller holds t.mu exclusively.
// 把分隔键和新节点插入到父节点，没有父节点时创建新的根节点
func (t *Tree[K, V]) promote(left *node[K, V], separator K, right *node[K, V]) {
	parent := left.parent
	if parent == nil {
		root := newBranch[K, V](t.maxKeys + 1)
		root.keys = append(root.keys, separator)
		root.children = append(root.children, left, right)
		left.parent = root
		right.parent = root
		t.root = root

		t.stats.IncGrow(1)
		t.logger.WithField("separator", separator).Debug("ROOT_GROW")
		return
	}

	parent.mu.Lock()
	index := parent.childIndex(left)
	_assert(index >= 0, "promote: node missing from its parent")
	parent.insertChild(index, separator, right)
	right.parent = parent
	overflow := len(parent.keys) > t.maxKeys
	parent.mu.Unlock()

	if overflow {
		t.splitBranch(parent)
	}
}
