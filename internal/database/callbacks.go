package database

import (
	"time"

	"gorm.io/gorm"
)

const queryStartKey = "metrics:query_start"

// MetricsRecorder is an interface for recording database metrics
type MetricsRecorder interface {
	RecordDBQuery(operation, table string, duration time.Duration, err error)
	UpdateDBStats(stats interface{})
}

// RegisterMetricsCallbacks times every gorm operation and reports it to recorder.
func RegisterMetricsCallbacks(db *gorm.DB, recorder MetricsRecorder) {
	cb := db.Callback()

	_ = cb.Query().Before("gorm:query").Register("metrics:query_before", markStart)
	_ = cb.Query().After("gorm:query").Register("metrics:query_after", recordAs("select", recorder))

	_ = cb.Create().Before("gorm:create").Register("metrics:create_before", markStart)
	_ = cb.Create().After("gorm:create").Register("metrics:create_after", recordAs("insert", recorder))

	_ = cb.Update().Before("gorm:update").Register("metrics:update_before", markStart)
	_ = cb.Update().After("gorm:update").Register("metrics:update_after", recordAs("update", recorder))

	_ = cb.Delete().Before("gorm:delete").Register("metrics:delete_before", markStart)
	_ = cb.Delete().After("gorm:delete").Register("metrics:delete_after", recordAs("delete", recorder))

	_ = cb.Raw().Before("gorm:raw").Register("metrics:raw_before", markStart)
	_ = cb.Raw().After("gorm:raw").Register("metrics:raw_after", recordAs("raw", recorder))
}

func markStart(db *gorm.DB) {
	db.InstanceSet(queryStartKey, time.Now())
}

func recordAs(operation string, recorder MetricsRecorder) func(*gorm.DB) {
	return func(db *gorm.DB) {
		v, ok := db.InstanceGet(queryStartKey)
		if !ok {
			return
		}
		start, ok := v.(time.Time)
		if !ok {
			return
		}
		table := db.Statement.Table
		if table == "" {
			table = "unknown"
		}
		err := db.Error
		if err == gorm.ErrRecordNotFound {
			err = nil
		}
		recorder.RecordDBQuery(operation, table, time.Since(start), err)
	}
}

// StartDBStatsCollector reports pool statistics every interval until the returned channel is closed.
func StartDBStatsCollector(db *gorm.DB, recorder MetricsRecorder, interval time.Duration) chan struct{} {
	done := make(chan struct{})

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				sqlDB, err := db.DB()
				if err != nil {
					continue
				}
				recorder.UpdateDBStats(sqlDB.Stats())
			case <-done:
				return
			}
		}
	}()

	return done
}
