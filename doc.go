/*
Package bptree implements a concurrent, generic, in-memory B+tree used as the
index engine of a small embedded SQL database.

A Tree maps unique keys to opaque values. Keys are ordered by a comparator
supplied at construction, so any key type with a total order can be indexed;
NewOrdered covers the built-in ordered types. Values live only in leaves and
the leaves are chained left to right, which lets cursors scan a key range
without going back through the branches.

	t := bptree.NewOrdered[int64, string](&bptree.Options{Degree: 32})
	t.Insert(10, "ten")
	v, ok := t.Search(10)
	for k, v := range t.ScanFrom(5) {
		...
	}

Every node other than the root keeps between D-1 and 2D-1 keys, where D is the
degree. Inserts split full nodes bottom-up and removals borrow from or merge
with a sibling. The tree grows and shrinks in height only at the root.

# Concurrency

All operations are safe for concurrent use. Searches and writes that stay
inside one leaf hold the tree lock shared plus the lock of the single node they
touch, so they proceed in parallel. A write that needs a split or a rebalance
restarts with the tree lock held exclusively. Cursors hold at most one leaf
lock at a time and none between calls; they never return a key twice or out of
order, but they are not snapshots.

# Caveats

The tree is not persisted. Callers that need durability rebuild it from their
own storage, as the engine package does at startup.
*/
package bptree
