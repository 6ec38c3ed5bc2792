package bptree_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jmszg/bptree"
)

func TestStats_ConcurrentInc(t *testing.T) {
	var s bptree.Stats
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.IncRebalanceTime(time.Millisecond)
				s.IncMerge(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 800*time.Millisecond, s.GetRebalanceTime())
	assert.Equal(t, int64(800), s.GetMerge())
}

func TestStats_Sub(t *testing.T) {
	var before, after bptree.Stats
	before.IncRebalanceTime(2 * time.Second)
	before.IncSplit(3)
	after.IncRebalanceTime(5 * time.Second)
	after.IncSplit(7)
	after.IncCursorCount(1)

	diff := after.Sub(&before)
	assert.Equal(t, 3*time.Second, diff.RebalanceTime)
	assert.Equal(t, int64(4), diff.Split)
	assert.Equal(t, int64(1), diff.CursorCount)
}
