package model

import (
	"time"

	log "github.com/sirupsen/logrus"
)

const SlowExecutionThreshold = 2 * time.Second

// LogOnSlowExecutionWithParams warns when time since start crosses SlowExecutionThreshold.
// Usage: defer LogOnSlowExecutionWithParams(time.Now(), &logFields)
func LogOnSlowExecutionWithParams(start time.Time, logFields *log.Fields) {
	elapsed := time.Since(start)
	if elapsed < SlowExecutionThreshold {
		return
	}

	fields := log.Fields{}
	if logFields != nil {
		for k, v := range *logFields {
			fields[k] = v
		}
	}
	fields["time_taken_in_ms"] = elapsed.Milliseconds()
	log.WithFields(fields).Warn("Slow execution.")
}
