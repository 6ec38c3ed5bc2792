package bptree

// Cursor represents an iterator that traverses the key/value pairs of a tree in
// ascending key order by walking the leaf chain.
// Cursor 表示一个迭代器，沿着叶子链表按照key升序遍历键值对
//
// A cursor copies one leaf at a time under that leaf's shared lock and holds no
// lock between calls. It is not a snapshot: writes made while it is open may or
// may not be observed, but a cursor never returns a key less than or equal to
// one it already returned, so its output is strictly ascending.
//
// A Cursor is not safe for concurrent use by multiple goroutines.
// 游标不是快照：遍历过程中其他的写入可能看得到也可能看不到，但返回的key一定严格递增
type Cursor[K any, V any] struct {
	tree *Tree[K, V]
	// 当前快照所在的叶子节点
	leaf *node[K, V]
	// 当前叶子节点中键值对的拷贝
	keys   []K
	values []V
	index  int
	// 最后一次返回的key
	last    K
	hasLast bool
}

// Cursor creates a cursor over the tree. It must be positioned with First,
// Last or Seek before Next is called.
func (t *Tree[K, V]) Cursor() *Cursor[K, V] {
	t.stats.IncCursorCount(1)
	return &Cursor[K, V]{tree: t}
}

// First moves the cursor to the smallest key and returns its key and value.
// ok is false when the tree is empty.
// 移动游标到最小的key，并返回其key和value
func (c *Cursor[K, V]) First() (key K, value V, ok bool) {
	c.tree.mu.RLock()
	c.load(c.tree.edgeLeaf(false))
	c.tree.mu.RUnlock()

	c.index = 0
	c.hasLast = false
	return c.settle()
}

// Last moves the cursor to the largest key and returns its key and value.
// ok is false when the tree is empty. A following Next reports the end unless
// larger keys were inserted meanwhile.
// 移动游标到最大的key，并返回其key和value
func (c *Cursor[K, V]) Last() (key K, value V, ok bool) {
	c.tree.mu.RLock()
	c.load(c.tree.edgeLeaf(true))
	c.tree.mu.RUnlock()

	c.hasLast = false
	if len(c.keys) == 0 {
		c.index = 0
		return c.settle()
	}
	c.index = len(c.keys) - 1
	return c.emit()
}

// Seek moves the cursor to the first key that is greater than or equal to seek
// and returns its key and value. ok is false when no such key exists.
// 移动游标到第一个大于等于seek的key
func (c *Cursor[K, V]) Seek(seek K) (key K, value V, ok bool) {
	c.tree.mu.RLock()
	c.load(c.tree.leafFor(seek))
	c.tree.mu.RUnlock()

	c.index, _ = c.findIndex(seek)
	c.hasLast = false
	return c.settle()
}

// Next moves the cursor to the next key and returns its key and value.
// ok is false once the end of the tree has been reached.
// 移动游标到下一个key
func (c *Cursor[K, V]) Next() (key K, value V, ok bool) {
	if c.leaf == nil {
		return key, value, false
	}
	c.index++
	return c.settle()
}

// load copies the keys and values of n into the cursor under n's shared lock.
func (c *Cursor[K, V]) load(n *node[K, V]) {
	n.mu.RLock()
	c.leaf = n
	c.keys = append(c.keys[:0], n.keys...)
	c.values = append(c.values[:0], n.values...)
	n.mu.RUnlock()
}

// settle returns the entry at the current index or, if it was already passed
// over, the next entry with a key above the last one returned. It moves along
// the leaf chain as needed.
func (c *Cursor[K, V]) settle() (key K, value V, ok bool) {
	for {
		for ; c.index < len(c.keys); c.index++ {
			if c.hasLast && c.tree.compare(c.keys[c.index], c.last) <= 0 {
				continue
			}
			return c.emit()
		}
		if !c.advance() {
			return key, value, false
		}
	}
}

// emit returns the entry at the current index and remembers its key.
func (c *Cursor[K, V]) emit() (K, V, bool) {
	c.last, c.hasLast = c.keys[c.index], true
	return c.keys[c.index], c.values[c.index], true
}

// advance follows the next pointer of the current leaf. The pointer is read
// again at this moment so that splits made since the leaf was copied are seen.
// A detached leaf keeps its next pointer, which still leads forward.
// 跳到叶子链表中的下一个叶子节点
func (c *Cursor[K, V]) advance() bool {
	if c.leaf == nil {
		return false
	}

	c.leaf.mu.RLock()
	next := c.leaf.next
	c.leaf.mu.RUnlock()

	if next == nil {
		c.leaf = nil
		c.keys, c.values = c.keys[:0], c.values[:0]
		c.index = 0
		return false
	}

	c.load(next)
	c.index = 0
	return true
}

// findIndex returns the position of the first copied key >= key.
func (c *Cursor[K, V]) findIndex(key K) (int, bool) {
	lo, hi := 0, len(c.keys)
	for lo < hi {
		h := int(uint(lo+hi) >> 1)
		if c.tree.compare(c.keys[h], key) < 0 {
			lo = h + 1
		} else {
			hi = h
		}
	}
	return lo, lo < len(c.keys) && c.tree.compare(c.keys[lo], key) == 0
}
