package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordTiming(t *testing.T) {
	c := NewCollector()
	c.RecordTiming(OpAIAction, 100*time.Millisecond)
	c.RecordTiming(OpAIAction, 300*time.Millisecond)

	snap := c.Snapshot()
	require.NotNil(t, snap.AIAction)
	assert.Equal(t, int64(2), snap.AIAction.Count)
	assert.Equal(t, int64(100), snap.AIAction.MinTimeMs)
	assert.Equal(t, int64(300), snap.AIAction.MaxTimeMs)
	assert.InDelta(t, 200.0, snap.AIAction.AvgTimeMs, 0.001)
	assert.Nil(t, snap.Query, "untouched operations are omitted")
}

func TestObserveCountsErrors(t *testing.T) {
	c := NewCollector()
	start := time.Now()
	c.Observe(OpMutation, start, nil)
	c.Observe(OpMutation, start, errors.New("boom"))

	snap := c.Snapshot()
	require.NotNil(t, snap.Mutation)
	assert.Equal(t, int64(2), snap.Mutation.Count)
	assert.Equal(t, int64(1), snap.Mutation.Errors)
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.RecordTiming(OpQuery, time.Second)
		c.RecordError(OpQuery)
		_ = c.Snapshot()
	})
}

func TestConcurrentRecording(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RecordTiming(OpSubscriptionEvent, time.Millisecond)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(50), c.Snapshot().SubscriptionEvents.Count)
}
