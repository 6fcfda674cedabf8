package history

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDeliveryBuffer(t *testing.T) {
	testCases := []struct {
		name       string
		maxRecords int
		expected   int
	}{
		{name: "explicit", maxRecords: 5, expected: 5},
		{name: "zero_defaults", maxRecords: 0, expected: defaultMaxRecords},
		{name: "negative_defaults", maxRecords: -3, expected: defaultMaxRecords},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			buffer := NewDeliveryBuffer(tc.maxRecords)
			assert.Equal(t, tc.expected, buffer.maxRecords)
			assert.Empty(t, buffer.buffers)
		})
	}
}

func TestAddEvictsOldest(t *testing.T) {
	buffer := NewDeliveryBuffer(3)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		buffer.Add(7, Record{Timestamp: now.Add(time.Duration(i) * time.Second), Message: fmt.Sprintf("m%d", i)})
	}

	records := buffer.buffers[7]
	require.Len(t, records, 3)
	assert.Equal(t, "m2", records[0].Message)
	assert.Equal(t, "m4", records[2].Message)
}

func TestRecent(t *testing.T) {
	buffer := NewDeliveryBuffer(10)
	buffer.Add(1, Record{Message: "first", Success: true})
	buffer.Add(1, Record{Message: "second"})
	buffer.Add(2, Record{Message: "other"})

	recent := buffer.Recent(1, 0)
	require.Len(t, recent, 2)
	assert.Equal(t, "second", recent[0].Message)
	assert.Equal(t, "first", recent[1].Message)

	assert.Len(t, buffer.Recent(1, 1), 1)
	assert.Empty(t, buffer.Recent(99, 5))

	latest, ok := buffer.Latest(2)
	require.True(t, ok)
	assert.Equal(t, "other", latest.Message)

	buffer.Forget(1)
	_, ok = buffer.Latest(1)
	assert.False(t, ok)
}

func TestConcurrentAdd(t *testing.T) {
	buffer := NewDeliveryBuffer(100)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				buffer.Add(1, Record{Message: fmt.Sprintf("%d-%d", n, j)})
			}
		}(i)
	}
	wg.Wait()
	assert.Len(t, buffer.Recent(1, 0), 100)
}
