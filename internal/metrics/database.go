package metrics

import (
	"database/sql"
	"strings"
	"time"
)

// UpdateDBStats updates database connection pool metrics. Wait counters
// advance by the delta since the previous sample.
func (m *Metrics) UpdateDBStats(statsInterface interface{}) {
	m.safeExecute("UpdateDBStats", func() {
		stats, ok := statsInterface.(sql.DBStats)
		if !ok {
			return
		}
		m.DBConnectionsOpen.Set(float64(stats.OpenConnections))
		m.DBConnectionsInUse.Set(float64(stats.InUse))
		m.DBConnectionsIdle.Set(float64(stats.Idle))
		m.DBConnectionsMax.Set(float64(stats.MaxOpenConnections))

		m.mu.Lock()
		defer m.mu.Unlock()
		if d := stats.WaitCount - m.lastWaits; d > 0 {
			m.DBConnectionWaitTotal.Add(float64(d))
		}
		if d := stats.WaitDuration.Seconds() - m.lastWait; d > 0 {
			m.DBConnectionWaitDuration.Add(d)
		}
		m.lastWaits = stats.WaitCount
		m.lastWait = stats.WaitDuration.Seconds()
	})
}

// RecordDBQuery records database query metrics
func (m *Metrics) RecordDBQuery(operation, table string, duration time.Duration, err error) {
	m.safeExecute("RecordDBQuery", func() {
		operation = strings.ToLower(operation)
		m.DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())

		if err != nil {
			m.DBQueryErrors.WithLabelValues(operation, table).Inc()
		}
	})
}
