package build

import (
	"sync"
	"time"

	"github.com/conneroisu/winforge/internal/types"
)

// Metrics tracks build outcomes across a watch or serve session.
type Metrics struct {
	mutex            sync.RWMutex
	totalBuilds      int64
	successfulBuilds int64
	failedBuilds     int64
	invalidDocuments int64
	averageDuration  time.Duration
	totalDuration    time.Duration
	lastBuild        time.Time
}

// MetricsSnapshot is a point-in-time copy of session metrics.
type MetricsSnapshot struct {
	TotalBuilds      int64
	SuccessfulBuilds int64
	FailedBuilds     int64
	InvalidDocuments int64
	AverageDuration  time.Duration
	TotalDuration    time.Duration
	LastBuild        time.Time
}

// NewMetrics creates a new build metrics tracker
func NewMetrics() *Metrics {
	return &Metrics{}
}

// Record folds one build result into the metrics
func (m *Metrics) Record(result *types.BuildResult) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.totalBuilds++
	m.lastBuild = time.Now()

	if result.Stats != nil {
		m.totalDuration += result.Stats.Duration
	}

	if result.Success {
		m.successfulBuilds++
		if !result.Valid {
			m.invalidDocuments++
		}
	} else {
		m.failedBuilds++
	}

	if m.totalBuilds > 0 {
		m.averageDuration = m.totalDuration / time.Duration(m.totalBuilds)
	}
}

// Snapshot returns a copy of the current metrics without the lock
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return MetricsSnapshot{
		TotalBuilds:      m.totalBuilds,
		SuccessfulBuilds: m.successfulBuilds,
		FailedBuilds:     m.failedBuilds,
		InvalidDocuments: m.invalidDocuments,
		AverageDuration:  m.averageDuration,
		TotalDuration:    m.totalDuration,
		LastBuild:        m.lastBuild,
	}
}

// Reset clears all recorded metrics
func (m *Metrics) Reset() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.totalBuilds = 0
	m.successfulBuilds = 0
	m.failedBuilds = 0
	m.invalidDocuments = 0
	m.averageDuration = 0
	m.totalDuration = 0
	m.lastBuild = time.Time{}
}
