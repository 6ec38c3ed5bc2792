package bptree

import (
	"fmt"
	"slices"
	"sort"
	"sync"
)

// node represents a single in-memory B+tree node.
// node 表示内存中的一个B+树节点
//
// Leaf nodes hold keys and values in two parallel slices and are chained in key
// order through next. Branch nodes hold separator keys and len(keys)+1 children.
// A branch owns its children; parent and next are plain back/side references and
// never own the node they point at.
type node[K any, V any] struct {
	mu       sync.RWMutex // guards keys, values, children, next and dead
	isLeaf   bool         // 是否是叶子节点，创建后不再改变
	dead     bool         // 被合并或者根节点收缩后从树上摘除
	parent   *node[K, V]  // guarded by Tree.mu, not by mu
	next     *node[K, V]  // 叶子链表中的下一个叶子
	keys     []K
	values   []V           // 仅叶子节点使用
	children []*node[K, V] // 仅分支节点使用
}

// newLeaf returns an empty leaf able to hold capacity keys without growing.
func newLeaf[K any, V any](capacity int) *node[K, V] {
	return &node[K, V]{
		isLeaf: true,
		keys:   make([]K, 0, capacity),
		values: make([]V, 0, capacity),
	}
}

// newBranch returns an empty branch able to hold capacity keys without growing.
func newBranch[K any, V any](capacity int) *node[K, V] {
	return &node[K, V]{
		keys:     make([]K, 0, capacity),
		children: make([]*node[K, V], 0, capacity+1),
	}
}

// search returns the index of the child whose key range covers key: the first
// child whose upper separator is strictly greater than key.
// 返回覆盖key的孩子节点索引，即第一个分隔键严格大于key的位置
func (n *node[K, V]) search(key K, compare func(a, b K) int) int {
	return sort.Search(len(n.keys), func(i int) bool { return compare(key, n.keys[i]) < 0 })
}

// find returns the position of key in a leaf and whether it is an exact match.
// If there is no match the position is where key would be inserted.
func (n *node[K, V]) find(key K, compare func(a, b K) int) (int, bool) {
	return slices.BinarySearchFunc(n.keys, key, compare)
}

// insertAt inserts a key/value pair into a leaf at index.
// 在叶子节点的index位置插入一个key/value
func (n *node[K, V]) insertAt(index int, key K, value V) {
	n.keys = slices.Insert(n.keys, index, key)
	n.values = slices.Insert(n.values, index, value)
}

// removeAt removes the key/value pair at index from a leaf.
func (n *node[K, V]) removeAt(index int) {
	n.keys = slices.Delete(n.keys, index, index+1)
	n.values = slices.Delete(n.values, index, index+1)
}

// insertChild adds separator key at index and child right after it, so child
// becomes children[index+1].
// 在分支节点中插入分隔键以及它右侧的孩子
func (n *node[K, V]) insertChild(index int, key K, child *node[K, V]) {
	n.keys = slices.Insert(n.keys, index, key)
	n.children = slices.Insert(n.children, index+1, child)
}

// removeChild drops separator keys[index] together with children[index+1].
func (n *node[K, V]) removeChild(index int) {
	n.keys = slices.Delete(n.keys, index, index+1)
	n.children = slices.Delete(n.children, index+1, index+2)
}

// childIndex returns the index of a given child node, or -1.
// 返回孩子节点的索引
func (n *node[K, V]) childIndex(child *node[K, V]) int {
	for i, c := range n.children {
		if c == child {
			return i
		}
	}
	return -1
}

// prevSibling returns the previous node with the same parent.
// 返回相同父节点的前一个节点（上一个兄弟节点）
func (n *node[K, V]) prevSibling(index int) *node[K, V] {
	if n.parent == nil || index == 0 {
		return nil
	}
	return n.parent.children[index-1]
}

// nextSibling returns the next node with the same parent.
// 返回相同父节点的下一个节点（下一个兄弟节点）
func (n *node[K, V]) nextSibling(index int) *node[K, V] {
	if n.parent == nil || index >= len(n.parent.children)-1 {
		return nil
	}
	return n.parent.children[index+1]
}

// String describes the node for debugging and check messages.
func (n *node[K, V]) String() string {
	typ := "branch"
	if n.isLeaf {
		typ = "leaf"
	}
	return fmt.Sprintf("[%s count=%d keys=%v]", typ, len(n.keys), n.keys)
}
