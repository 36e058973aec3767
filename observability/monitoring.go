package observability

import (
	"sync"
	"sync/atomic"
	"time"
)

// RelayStats is the snapshot served by GET /health.
type RelayStats struct {
	EventsReceived uint64  `json:"events_received"`
	EventsDropped  uint64  `json:"events_dropped"`
	RecordsDropped uint64  `json:"records_dropped"`
	MessagesStored uint64  `json:"messages_stored"`
	RSSBytes       uint64  `json:"rss_bytes"`
	CPUPercent     float64 `json:"cpu_percent"`
	Goroutines     int     `json:"goroutines"`
	UptimeSeconds  int64   `json:"uptime_seconds"`
}

// MonitoringManager aggregates relay counters and process stats.
// Counters are atomic; the sampled process stats sit behind a mutex.
type MonitoringManager struct {
	startedAt time.Time

	eventsReceived uint64
	eventsDropped  uint64
	recordsDropped uint64
	messagesStored uint64

	mu         sync.RWMutex
	rssBytes   uint64
	cpuPercent float64
	goroutines int
}

func NewMonitoringManager() *MonitoringManager {
	return &MonitoringManager{startedAt: time.Now().UTC()}
}

func (mm *MonitoringManager) IncrEventsReceived() {
	atomic.AddUint64(&mm.eventsReceived, 1)
}

func (mm *MonitoringManager) IncrEventsDropped() {
	atomic.AddUint64(&mm.eventsDropped, 1)
}

func (mm *MonitoringManager) IncrRecordsDropped() {
	atomic.AddUint64(&mm.recordsDropped, 1)
}

func (mm *MonitoringManager) IncrMessagesStored() {
	atomic.AddUint64(&mm.messagesStored, 1)
}

func (mm *MonitoringManager) SetProcessStats(rss uint64, cpu float64, goroutines int) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	mm.rssBytes = rss
	mm.cpuPercent = cpu
	mm.goroutines = goroutines
}

func (mm *MonitoringManager) Snapshot() RelayStats {
	mm.mu.RLock()
	defer mm.mu.RUnlock()
	return RelayStats{
		EventsReceived: atomic.LoadUint64(&mm.eventsReceived),
		EventsDropped:  atomic.LoadUint64(&mm.eventsDropped),
		RecordsDropped: atomic.LoadUint64(&mm.recordsDropped),
		MessagesStored: atomic.LoadUint64(&mm.messagesStored),
		RSSBytes:       mm.rssBytes,
		CPUPercent:     mm.cpuPercent,
		Goroutines:     mm.goroutines,
		UptimeSeconds:  int64(time.Since(mm.startedAt).Seconds()),
	}
}
