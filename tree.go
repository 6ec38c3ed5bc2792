package bptree

import (
	"cmp"
	"fmt"
	"io"
	"iter"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultDegree is the degree used when Options.Degree is zero.
	DefaultDegree = 100

	// MinDegree is the smallest degree a tree accepts.
	MinDegree = 2
)

// Options represents the options that can be set when creating a tree.
type Options struct {
	// Degree is the branching parameter D. Every node other than the root keeps
	// between D-1 and 2D-1 keys. Zero selects DefaultDegree.
	// 树的度，非根节点的key数量在 D-1 到 2D-1 之间
	Degree int

	// Logger receives Debug events for structural changes such as splits and
	// merges. A nil Logger discards them.
	Logger logrus.FieldLogger
}

// DefaultOptions represent the options used if nil options are passed into New.
var DefaultOptions = &Options{
	Degree: DefaultDegree,
}

// Tree is an in-memory B+tree mapping unique keys of type K to values of type V.
// Tree 是一个支持并发访问的内存B+树
//
// All methods are safe for concurrent use. Point operations take the tree lock
// shared and only escalate to an exclusive tree lock when a split or a
// rebalance is required. Iteration is not a snapshot: see Cursor.
type Tree[K any, V any] struct {
	mu      sync.RWMutex // shared for key operations, exclusive for structural changes
	root    *node[K, V]  // guarded by mu
	compare func(a, b K) int

	degree  int
	maxKeys int
	minKeys int

	count  atomic.Int64
	stats  Stats
	logger logrus.FieldLogger
}

// New creates an empty tree ordered by compare. compare must return a negative
// number when a < b, zero when a == b and a positive number when a > b.
//
// New panics if compare is nil or if the degree is below MinDegree.
func New[K any, V any](compare func(a, b K) int, options *Options) *Tree[K, V] {
	if compare == nil {
		panic("bptree: nil compare function")
	}
	if options == nil {
		options = DefaultOptions
	}

	degree := options.Degree
	if degree == 0 {
		degree = DefaultDegree
	}
	if degree < MinDegree {
		panic(fmt.Sprintf("bptree: degree %d is below minimum %d", degree, MinDegree))
	}

	logger := options.Logger
	if logger == nil {
		logger = discardLogger()
	}

	t := &Tree[K, V]{
		compare: compare,
		degree:  degree,
		maxKeys: 2*degree - 1,
		minKeys: degree - 1,
		logger:  logger,
	}
	t.root = newLeaf[K, V](t.maxKeys + 1)
	return t
}

// NewOrdered creates an empty tree for a naturally ordered key type.
func NewOrdered[K cmp.Ordered, V any](options *Options) *Tree[K, V] {
	return New[K, V](cmp.Compare[K], options)
}

// Degree returns the branching parameter of the tree.
func (t *Tree[K, V]) Degree() int {
	return t.degree
}

// Len returns the number of entries stored in the tree.
func (t *Tree[K, V]) Len() int {
	return int(t.count.Load())
}

// Stats retrieves a copy of the tree's structural statistics.
func (t *Tree[K, V]) Stats() Stats {
	return t.stats.snapshot()
}

// Insert stores value under key. An existing key has its value replaced.
// 插入或者覆盖key对应的value
func (t *Tree[K, V]) Insert(key K, value V) {
	// Fast path: the leaf has room or already holds the key.
	t.mu.RLock()
	leaf := t.leafFor(key)
	leaf.mu.Lock()
	index, exact := leaf.find(key, t.compare)
	if exact || len(leaf.keys) < t.maxKeys {
		t.put(leaf, index, exact, key, value)
		leaf.mu.Unlock()
		t.mu.RUnlock()
		return
	}
	leaf.mu.Unlock()
	t.mu.RUnlock()

	// Slow path: the leaf may overflow, so restart with the tree locked.
	t.mu.Lock()
	defer t.mu.Unlock()

	leaf = t.leafFor(key)
	leaf.mu.Lock()
	index, exact = leaf.find(key, t.compare)
	t.put(leaf, index, exact, key, value)
	overflow := len(leaf.keys) > t.maxKeys
	leaf.mu.Unlock()

	if overflow {
		t.splitLeaf(leaf)
	}
}

// put writes a key/value pair into a leaf locked by the caller.
func (t *Tree[K, V]) put(leaf *node[K, V], index int, exact bool, key K, value V) {
	if exact {
		leaf.values[index] = value
		return
	}
	leaf.insertAt(index, key, value)
	t.count.Add(1)
}

// Search returns the value stored under key and whether the key was found.
func (t *Tree[K, V]) Search(key K) (V, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	leaf := t.leafFor(key)
	leaf.mu.RLock()
	defer leaf.mu.RUnlock()

	if index, ok := leaf.find(key, t.compare); ok {
		return leaf.values[index], true
	}
	var zero V
	return zero, false
}

// Remove deletes key from the tree and reports whether it was present.
// 删除key，返回key是否存在
func (t *Tree[K, V]) Remove(key K) bool {
	// Fast path: the removal cannot leave the leaf under its minimum.
	t.mu.RLock()
	leaf := t.leafFor(key)
	leaf.mu.Lock()
	index, exact := leaf.find(key, t.compare)
	if !exact || leaf.parent == nil || len(leaf.keys) > t.minKeys {
		if exact {
			leaf.removeAt(index)
			t.count.Add(-1)
		}
		leaf.mu.Unlock()
		t.mu.RUnlock()
		return exact
	}
	leaf.mu.Unlock()
	t.mu.RUnlock()

	// Slow path: the leaf may underflow, so restart with the tree locked.
	t.mu.Lock()
	defer t.mu.Unlock()

	leaf = t.leafFor(key)
	leaf.mu.Lock()
	index, exact = leaf.find(key, t.compare)
	if !exact {
		leaf.mu.Unlock()
		return false
	}
	leaf.removeAt(index)
	t.count.Add(-1)
	underflow := leaf.parent != nil && len(leaf.keys) < t.minKeys
	leaf.mu.Unlock()

	if underflow {
		t.rebalance(leaf)
	}
	return true
}

// Scan returns an iterator over every entry in ascending key order.
//
// The iteration is not a snapshot. Keys are always yielded in strictly
// ascending order, but entries written concurrently may or may not be seen.
func (t *Tree[K, V]) Scan() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		c := t.Cursor()
		for k, v, ok := c.First(); ok; k, v, ok = c.Next() {
			if !yield(k, v) {
				return
			}
		}
	}
}

// ScanFrom returns an iterator over the entries whose key is >= start, in
// ascending key order.
func (t *Tree[K, V]) ScanFrom(start K) iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		c := t.Cursor()
		for k, v, ok := c.Seek(start); ok; k, v, ok = c.Next() {
			if !yield(k, v) {
				return
			}
		}
	}
}

// ForEach executes a function for each key/value pair in ascending key order.
// If the provided function returns an error then the iteration is stopped and
// the error is returned to the caller.
func (t *Tree[K, V]) ForEach(fn func(k K, v V) error) error {
	c := t.Cursor()
	for k, v, ok := c.First(); ok; k, v, ok = c.Next() {
		if err := fn(k, v); err != nil {
			return err
		}
	}
	return nil
}

// leafFor descends from the root to the leaf whose key range covers key.
// Each node is read under its shared lock, which is released before stepping
// into the child. Caller holds t.mu in either mode.
// 从根节点向下查找key所在的叶子节点
func (t *Tree[K, V]) leafFor(key K) *node[K, V] {
	n := t.root
	for {
		n.mu.RLock()
		if n.isLeaf {
			n.mu.RUnlock()
			return n
		}
		child := n.children[n.search(key, t.compare)]
		n.mu.RUnlock()
		n = child
	}
}

// edgeLeaf descends to the leftmost or the rightmost leaf. Caller holds t.mu.
func (t *Tree[K, V]) edgeLeaf(rightmost bool) *node[K, V] {
	n := t.root
	for {
		n.mu.RLock()
		if n.isLeaf {
			n.mu.RUnlock()
			return n
		}
		child := n.children[0]
		if rightmost {
			child = n.children[len(n.children)-1]
		}
		n.mu.RUnlock()
		n = child
	}
}

// discardLogger returns a logger that drops every entry.
func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// _assert will panic with a given formatted message if the given condition is false.
func _assert(condition bool, msg string, v ...interface{}) {
	if !condition {
		panic(fmt.Sprintf("assertion failed: "+msg, v...))
	}
}
