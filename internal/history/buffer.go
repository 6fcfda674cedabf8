package history

import (
	"sync"
	"time"
)

// Record is the outcome of one notification delivery attempt.
type Record struct {
	Timestamp time.Time `json:"time"`
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Test      bool      `json:"test"`
}

// DeliveryBuffer keeps the most recent delivery records per instance.
type DeliveryBuffer struct {
	sync.RWMutex
	buffers    map[int][]Record // instance id -> records, oldest first
	maxRecords int
}

const defaultMaxRecords = 20

func NewDeliveryBuffer(maxRecords int) *DeliveryBuffer {
	if maxRecords <= 0 {
		maxRecords = defaultMaxRecords
	}
	return &DeliveryBuffer{
		buffers:    make(map[int][]Record),
		maxRecords: maxRecords,
	}
}

// Add appends a record for an instance.
// It evicts the oldest record if the buffer for that instance exceeds maxRecords.
func (hb *DeliveryBuffer) Add(instanceID int, rec Record) {
	hb.Lock()
	defer hb.Unlock()

	records, exists := hb.buffers[instanceID]
	if !exists {
		records = make([]Record, 0, hb.maxRecords)
	}

	records = append(records, rec)

	if len(records) > hb.maxRecords {
		records = records[len(records)-hb.maxRecords:] // Keep the newest N records
	}
	hb.buffers[instanceID] = records
}

// Recent returns up to limit records for an instance, newest first.
// A limit <= 0 returns everything retained.
func (hb *DeliveryBuffer) Recent(instanceID int, limit int) []Record {
	hb.RLock()
	defer hb.RUnlock()

	records := hb.buffers[instanceID]
	if limit <= 0 || limit > len(records) {
		limit = len(records)
	}
	result := make([]Record, 0, limit)
	for i := len(records) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, records[i])
	}
	return result
}

// Latest returns the most recent record for an instance, if any.
func (hb *DeliveryBuffer) Latest(instanceID int) (Record, bool) {
	hb.RLock()
	defer hb.RUnlock()

	records, exists := hb.buffers[instanceID]
	if !exists || len(records) == 0 {
		return Record{}, false
	}
	return records[len(records)-1], true
}

// Forget drops every record of a deleted instance.
func (hb *DeliveryBuffer) Forget(instanceID int) {
	hb.Lock()
	defer hb.Unlock()
	delete(hb.buffers, instanceID)
}
