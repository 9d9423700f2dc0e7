package remote

import "sync"

// Queue is a bounded FIFO of outbound lines.
//
// When full, Push drops the oldest entry. Entries are not deduplicated.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Queue struct {
	mu      sync.Mutex
	items   [][]byte
	limit   int
	dropped uint64
}

// NewQueue creates a queue holding at most limit entries.
// A limit of zero or less means unbounded.
func NewQueue(limit int) *Queue {
	return &Queue{limit: limit}
}

// Push appends a line.
func (q *Queue) Push(line []byte) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.limit > 0 && len(q.items) >= q.limit {
		q.items[0] = nil
		q.items = q.items[1:]
		q.dropped++
	}
	q.items = append(q.items, line)
}

// Pop removes and returns the oldest line.
func (q *Queue) Pop() ([]byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil, false
	}
	line := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return line, true
}

// Len returns the number of queued lines.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Dropped returns how many entries were discarded because the queue was full.
func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
