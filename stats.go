package bptree

import (
	"sync/atomic"
	"time"
)

// Stats represents statistics about the structural work performed by a tree.
// Stats 记录树在结构调整上的统计信息
//
// The counters are updated atomically while the tree is in use. Read them with
// the Get methods or take a copy through Tree.Stats.
type Stats struct {
	// Split statistics.
	// 节点分裂数统计
	Split int64 // number of nodes split
	// 根节点分裂产生新根的次数
	Grow int64 // number of new roots created

	// Rebalance statistics.
	// 下溢修复次数统计
	Rebalance int64 // number of underflow repairs
	// 平衡花费的实际统计
	RebalanceTime time.Duration // total time spent rebalancing
	Borrow        int64         // number of keys borrowed from a sibling
	Merge         int64         // number of sibling merges
	// 根节点收缩次数
	Shrink int64 // number of root collapses

	// Cursor statistics.
	// 游标数量统计
	CursorCount int64 // number of cursors created
}

// Sub calculates and returns the difference between two sets of statistics.
// This is useful when obtaining stats at two different points in time and
// you need the work performed within that time span.
func (s *Stats) Sub(other *Stats) Stats {
	var diff Stats
	diff.Split = s.GetSplit() - other.GetSplit()
	diff.Grow = s.GetGrow() - other.GetGrow()
	diff.Rebalance = s.GetRebalance() - other.GetRebalance()
	diff.RebalanceTime = s.GetRebalanceTime() - other.GetRebalanceTime()
	diff.Borrow = s.GetBorrow() - other.GetBorrow()
	diff.Merge = s.GetMerge() - other.GetMerge()
	diff.Shrink = s.GetShrink() - other.GetShrink()
	diff.CursorCount = s.GetCursorCount() - other.GetCursorCount()
	return diff
}

// snapshot returns a copy of s read atomically field by field.
func (s *Stats) snapshot() Stats {
	var empty Stats
	return s.Sub(&empty)
}

// GetSplit returns Split atomically.
func (s *Stats) GetSplit() int64 {
	return atomic.LoadInt64(&s.Split)
}

// IncSplit increases Split atomically and returns the new value.
func (s *Stats) IncSplit(delta int64) int64 {
	return atomic.AddInt64(&s.Split, delta)
}

// GetGrow returns Grow atomically.
func (s *Stats) GetGrow() int64 {
	return atomic.LoadInt64(&s.Grow)
}

// IncGrow increases Grow atomically and returns the new value.
func (s *Stats) IncGrow(delta int64) int64 {
	return atomic.AddInt64(&s.Grow, delta)
}

// GetRebalance returns Rebalance atomically.
func (s *Stats) GetRebalance() int64 {
	return atomic.LoadInt64(&s.Rebalance)
}

// IncRebalance increases Rebalance atomically and returns the new value.
func (s *Stats) IncRebalance(delta int64) int64 {
	return atomic.AddInt64(&s.Rebalance, delta)
}

// GetRebalanceTime returns RebalanceTime atomically.
func (s *Stats) GetRebalanceTime() time.Duration {
	return time.Duration(atomic.LoadInt64((*int64)(&s.RebalanceTime)))
}

// IncRebalanceTime increases RebalanceTime atomically and returns the new value.
func (s *Stats) IncRebalanceTime(delta time.Duration) time.Duration {
	return time.Duration(atomic.AddInt64((*int64)(&s.RebalanceTime), int64(delta)))
}

// GetBorrow returns Borrow atomically.
func (s *Stats) GetBorrow() int64 {
	return atomic.LoadInt64(&s.Borrow)
}

// IncBorrow increases Borrow atomically and returns the new value.
func (s *Stats) IncBorrow(delta int64) int64 {
	return atomic.AddInt64(&s.Borrow, delta)
}

// GetMerge returns Merge atomically.
func (s *Stats) GetMerge() int64 {
	return atomic.LoadInt64(&s.Merge)
}

// IncMerge increases Merge atomically and returns the new value.
func (s *Stats) IncMerge(delta int64) int64 {
	return atomic.AddInt64(&s.Merge, delta)
}

// GetShrink returns Shrink atomically.
func (s *Stats) GetShrink() int64 {
	return atomic.LoadInt64(&s.Shrink)
}

// IncShrink increases Shrink atomically and returns the new value.
func (s *Stats) IncShrink(delta int64) int64 {
	return atomic.AddInt64(&s.Shrink, delta)
}

// GetCursorCount returns CursorCount atomically.
func (s *Stats) GetCursorCount() int64 {
	return atomic.LoadInt64(&s.CursorCount)
}

// IncCursorCount increases CursorCount atomically and returns the new value.
func (s *Stats) IncCursorCount(delta int64) int64 {
	return atomic.AddInt64(&s.CursorCount, delta)
}
