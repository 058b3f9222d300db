package workq

import (
	"strconv"
	"time"
)

// Redis hash field names for the metadata hash at meta-<item_key>.
const (
	fieldProcessCount = "process_count"
	fieldBailCount    = "bail_count"
	fieldTimeCreated  = "time_created"
	fieldTimeEnqueued = "time_enqueued"
	fieldLastError    = "last_error"
)

// metaHashFields flattens a Metadata value into the field/value pairs
// HSet expects.
func metaHashFields(m Metadata) map[string]interface{} {
	fields := map[string]interface{}{
		fieldProcessCount: m.ProcessCount,
		fieldBailCount:    m.BailCount,
		fieldTimeCreated:  formatTime(m.TimeCreated),
		fieldTimeEnqueued: formatTime(m.TimeEnqueued),
	}
	if m.LastError != "" {
		fields[fieldLastError] = m.LastError
	}
	return fields
}

// parseMeta reconstructs a Metadata value from an HGetAll result. Missing
// fields are left at their zero value rather than erroring, since a
// concurrent ack or GC pass may race a metadata read (see the "benign
// races" error-handling category).
func parseMeta(raw map[string]string) Metadata {
	var m Metadata
	if v, ok := raw[fieldProcessCount]; ok {
		m.ProcessCount, _ = strconv.Atoi(v)
	}
	if v, ok := raw[fieldBailCount]; ok {
		m.BailCount, _ = strconv.Atoi(v)
	}
	if v, ok := raw[fieldTimeCreated]; ok {
		m.TimeCreated = parseTime(v)
	}
	if v, ok := raw[fieldTimeEnqueued]; ok {
		m.TimeEnqueued = parseTime(v)
	}
	m.LastError = raw[fieldLastError]
	return m
}

func formatTime(t time.Time) string {
	return strconv.FormatFloat(float64(t.UnixNano())/1e9, 'f', 6, 64)
}

func parseTime(s string) time.Time {
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(0, int64(secs*1e9))
}
