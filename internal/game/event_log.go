package game

import (
	"encoding/json"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const (
	JournalBufferSize     = 1024                   // Circular buffer size
	MaxRecordsPerSec      = 5000                   // Global rate limit
	MaxRecordsPerSession  = 500                    // Per-session rate limit per second
	JournalFlushSize      = 64                     // Records per batch write
	JournalFlushInterval  = 100 * time.Millisecond // How often to flush
	SessionLimiterCleanup = 5 * time.Minute        // Cleanup interval for session limiters
)

// EventLog is the match journal: a bounded, rate-limited, append-only
// newline-delimited JSON log of world events across all sessions.
// Emit never blocks; under pressure the oldest pending records are dropped.
type EventLog struct {
	mu     sync.Mutex
	buffer [JournalBufferSize]Record
	head   uint64 // records ever accepted
	tail   uint64 // records handed to the writer

	globalLimiter   *rate.Limiter
	sessionLimiters sync.Map // map[string]*sessionLimiterEntry

	writerWg sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
	running  atomic.Bool

	out    io.Writer
	closer io.Closer
	outMu  sync.Mutex

	droppedCount atomic.Uint64
	totalCount   atomic.Uint64
}

// sessionLimiterEntry tracks per-session rate limiting
type sessionLimiterEntry struct {
	limiter  *rate.Limiter
	lastUsed atomic.Int64
}

// NewEventLog creates a new bounded journal
func NewEventLog() *EventLog {
	return &EventLog{
		globalLimiter: rate.NewLimiter(MaxRecordsPerSec, MaxRecordsPerSec/10),
		stopChan:      make(chan struct{}),
	}
}

// Start opens filePath for append and begins the async writer.
func (el *EventLog) Start(filePath string) error {
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	el.StartWriter(file, file)
	return nil
}

// StartWriter begins the async writer on an arbitrary sink. closer may be nil.
func (el *EventLog) StartWriter(w io.Writer, closer io.Closer) {
	if el.running.Swap(true) {
		return
	}
	el.out = w
	el.closer = closer
	el.writerWg.Add(2)
	go el.writerLoop()
	go el.cleanupLoop()
}

// Stop flushes pending records and closes the sink.
func (el *EventLog) Stop() {
	el.stopOnce.Do(func() {
		if !el.running.Swap(false) {
			return
		}
		close(el.stopChan)
		el.writerWg.Wait()

		el.outMu.Lock()
		if el.closer != nil {
			el.closer.Close()
		}
		el.outMu.Unlock()
	})
}

// Emit adds a record. Returns false if rate limited or the log is not running.
func (el *EventLog) Emit(rec Record) bool {
	if el == nil || !el.running.Load() {
		return false
	}

	if !el.globalLimiter.Allow() {
		el.droppedCount.Add(1)
		return false
	}
	if rec.Session != "" && !el.sessionLimiter(rec.Session).Allow() {
		el.droppedCount.Add(1)
		return false
	}

	el.mu.Lock()
	if el.head-el.tail >= JournalBufferSize {
		// Drop oldest pending record (rolling window)
		el.tail++
		el.droppedCount.Add(1)
	}
	el.head++
	rec.Sequence = el.head
	el.buffer[el.head%JournalBufferSize] = rec
	el.mu.Unlock()

	el.totalCount.Add(1)
	return true
}

// EmitEvents journals a batch of world events for one session
func (el *EventLog) EmitEvents(session string, events []Event) {
	for _, ev := range events {
		el.Emit(NewRecord(session, ev))
	}
}

func (el *EventLog) sessionLimiter(session string) *rate.Limiter {
	now := time.Now().UnixNano()
	if entry, ok := el.sessionLimiters.Load(session); ok {
		e := entry.(*sessionLimiterEntry)
		e.lastUsed.Store(now)
		return e.limiter
	}

	entry := &sessionLimiterEntry{
		limiter: rate.NewLimiter(MaxRecordsPerSession, MaxRecordsPerSession/10),
	}
	entry.lastUsed.Store(now)
	actual, _ := el.sessionLimiters.LoadOrStore(session, entry)
	return actual.(*sessionLimiterEntry).limiter
}

// writerLoop batches and writes records asynchronously
func (el *EventLog) writerLoop() {
	defer el.writerWg.Done()

	ticker := time.NewTicker(JournalFlushInterval)
	defer ticker.Stop()

	batch := make([]Record, 0, JournalFlushSize)

	for {
		select {
		case <-el.stopChan:
			// Final flush of everything pending
			for {
				batch = el.collectBatch(batch[:0])
				if len(batch) == 0 {
					return
				}
				el.flushBatch(batch)
			}

		case <-ticker.C:
			batch = el.collectBatch(batch[:0])
			if len(batch) > 0 {
				el.flushBatch(batch)
			}
		}
	}
}

// cleanupLoop removes stale session limiters
func (el *EventLog) cleanupLoop() {
	defer el.writerWg.Done()

	ticker := time.NewTicker(SessionLimiterCleanup)
	defer ticker.Stop()

	for {
		select {
		case <-el.stopChan:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-SessionLimiterCleanup).UnixNano()
			el.sessionLimiters.Range(func(key, value interface{}) bool {
				if value.(*sessionLimiterEntry).lastUsed.Load() < cutoff {
					el.sessionLimiters.Delete(key)
				}
				return true
			})
		}
	}
}

// collectBatch reads available records from the circular buffer
func (el *EventLog) collectBatch(batch []Record) []Record {
	el.mu.Lock()
	defer el.mu.Unlock()

	for el.tail < el.head && len(batch) < JournalFlushSize {
		el.tail++
		batch = append(batch, el.buffer[el.tail%JournalBufferSize])
	}
	return batch
}

// flushBatch writes records (append-only, newline-delimited JSON)
func (el *EventLog) flushBatch(batch []Record) {
	el.outMu.Lock()
	defer el.outMu.Unlock()

	if el.out == nil {
		return
	}

	for _, rec := range batch {
		data, err := json.Marshal(rec)
		if err != nil {
			continue
		}
		data = append(data, '\n')
		el.out.Write(data)
	}
}

// GetStats returns journal statistics for monitoring
func (el *EventLog) GetStats() map[string]interface{} {
	el.mu.Lock()
	pending := el.head - el.tail
	el.mu.Unlock()

	return map[string]interface{}{
		"total":   el.totalCount.Load(),
		"dropped": el.droppedCount.Load(),
		"pending": pending,
		"running": el.running.Load(),
	}
}
