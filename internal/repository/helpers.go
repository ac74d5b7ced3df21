package repository

import (
	"encoding/json"
	"time"
)

// ensureJSON guards against writing malformed payloads into jsonb columns.
// Invalid input is wrapped rather than dropped.
func ensureJSON(raw string) string {
	if raw == "" {
		return "{}"
	}
	if json.Valid([]byte(raw)) {
		return raw
	}
	encoded, err := json.Marshal(map[string]string{"raw": raw})
	if err != nil {
		return "{}"
	}
	return string(encoded)
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func dayBounds(day time.Time) (time.Time, time.Time) {
	start := day.UTC().Truncate(24 * time.Hour)
	return start, start.Add(24 * time.Hour)
}
