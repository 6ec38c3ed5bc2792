package bptree

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
)

// Check performs several consistency checks on the tree and returns every
// violation found, joined into a single error. A nil error means the tree is
// well formed.
// 检查树的结构是否一致
//
// Check is meant for quiescent trees. Leaf-local writes running at the same
// time can make the entry count disagree with Len.
func (t *Tree[K, V]) Check() error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	c := &checker[K, V]{tree: t, leafDepth: -1}
	c.walk(t.root, nil, nil, nil, 0)
	c.checkChain()

	if n := t.Len(); c.entries != n {
		c.errorf("entry count %d does not match Len %d", c.entries, n)
	}
	return errors.Join(c.errs...)
}

type checker[K any, V any] struct {
	tree      *Tree[K, V]
	errs      []error
	leaves    []*node[K, V]
	leafDepth int
	entries   int
}

func (c *checker[K, V]) errorf(format string, v ...interface{}) {
	c.errs = append(c.errs, fmt.Errorf(format, v...))
}

// walk verifies n and its subtree. Every key of n must lie in [lo, hi); a nil
// bound is open.
func (c *checker[K, V]) walk(n, parent *node[K, V], lo, hi *K, depth int) {
	t := c.tree

	n.mu.RLock()
	keys := slices.Clone(n.keys)
	children := slices.Clone(n.children)
	values := len(n.values)
	dead := n.dead
	n.mu.RUnlock()

	if dead {
		c.errorf("detached node %s reachable at depth %d", n, depth)
	}
	if n.parent != parent {
		c.errorf("node %s at depth %d has a wrong parent reference", n, depth)
	}
	if len(keys) > t.maxKeys {
		c.errorf("node %s holds %d keys, maximum is %d", n, len(keys), t.maxKeys)
	}
	if parent != nil && len(keys) < t.minKeys {
		c.errorf("node %s holds %d keys, minimum is %d", n, len(keys), t.minKeys)
	}
	if parent == nil && !n.isLeaf && len(keys) == 0 {
		c.errorf("root branch holds no keys")
	}
	for i := 1; i < len(keys); i++ {
		if t.compare(keys[i-1], keys[i]) >= 0 {
			c.errorf("node %s keys out of order at %d", n, i)
		}
	}
	for _, k := range keys {
		if lo != nil && t.compare(k, *lo) < 0 {
			c.errorf("node %s key %v below separator %v", n, k, *lo)
		}
		if hi != nil && t.compare(k, *hi) >= 0 {
			c.errorf("node %s key %v not below separator %v", n, k, *hi)
		}
	}

	if n.isLeaf {
		if values != len(keys) {
			c.errorf("leaf %s holds %d values for %d keys", n, values, len(keys))
		}
		if c.leafDepth == -1 {
			c.leafDepth = depth
		} else if c.leafDepth != depth {
			c.errorf("leaf %s at depth %d, expected %d", n, depth, c.leafDepth)
		}
		c.leaves = append(c.leaves, n)
		c.entries += len(keys)
		return
	}

	if len(children) != len(keys)+1 {
		c.errorf("branch %s holds %d children for %d keys", n, len(children), len(keys))
		return
	}
	for i, child := range children {
		childLo, childHi := lo, hi
		if i > 0 {
			childLo = &keys[i-1]
		}
		if i < len(keys) {
			childHi = &keys[i]
		}
		c.walk(child, n, childLo, childHi, depth+1)
	}
}

// checkChain verifies that the leaf chain visits exactly the leaves found by
// the walk, left to right, with ascending keys, and then terminates.
func (c *checker[K, V]) checkChain() {
	if len(c.leaves) == 0 {
		return
	}
	t := c.tree

	var prev *K
	n := c.leaves[0]
	for i := 0; n != nil; i++ {
		if i >= len(c.leaves) {
			c.errorf("leaf chain continues past the last leaf")
			return
		}
		if n != c.leaves[i] {
			c.errorf("leaf chain position %d is %s, expected %s", i, n, c.leaves[i])
			return
		}

		n.mu.RLock()
		if len(n.keys) > 0 {
			if prev != nil && t.compare(*prev, n.keys[0]) >= 0 {
				c.errorf("leaf chain not ascending at position %d", i)
			}
			last := n.keys[len(n.keys)-1]
			prev = &last
		}
		next := n.next
		n.mu.RUnlock()

		if next == nil && i != len(c.leaves)-1 {
			c.errorf("leaf chain ends after %d of %d leaves", i+1, len(c.leaves))
		}
		n = next
	}
}

// Dump writes an indented view of the tree followed by the leaf sequence.
// 打印树的结构以及叶子节点序列
func (t *Tree[K, V]) Dump(w io.Writer) error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var b strings.Builder
	b.WriteString("B+ Tree Structure:\n")
	t.dumpNode(&b, t.root, 0)

	b.WriteString("Leaf sequence:")
	for n := t.edgeLeaf(false); n != nil; {
		n.mu.RLock()
		for i := range n.keys {
			fmt.Fprintf(&b, " %v", n.keys[i])
		}
		next := n.next
		n.mu.RUnlock()
		if next != nil {
			b.WriteString(" |")
		}
		n = next
	}
	b.WriteString("\n")

	_, err := io.WriteString(w, b.String())
	return err
}

func (t *Tree[K, V]) dumpNode(b *strings.Builder, n *node[K, V], depth int) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	b.WriteString(strings.Repeat("  ", depth))
	if n.isLeaf {
		b.WriteString("Leaf:")
		for i := range n.keys {
			fmt.Fprintf(b, " %v(%v)", n.keys[i], n.values[i])
		}
		b.WriteString("\n")
		return
	}

	b.WriteString("Internal:")
	for _, k := range n.keys {
		fmt.Fprintf(b, " %v", k)
	}
	b.WriteString("\n")
	for _, child := range n.children {
		t.dumpNode(b, child, depth+1)
	}
}
