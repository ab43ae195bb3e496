package feed

import (
	"encoding/json"
	"strconv"
	"time"
)

// Helper functions for safe field extraction from map[string]any. The live
// feeds are inconsistent about numeric encoding (ms epochs and counts
// arrive as JSON strings as often as numbers), so every accessor tolerates
// both forms.

func stringField(m map[string]any, key string) string {
	if v, ok := m[key]; ok {
		switch s := v.(type) {
		case string:
			return s
		case float64:
			return strconv.FormatFloat(s, 'f', -1, 64)
		}
	}
	return ""
}

func mapField(m map[string]any, key string) map[string]any {
	if v, ok := m[key]; ok {
		if sub, ok := v.(map[string]any); ok {
			return sub
		}
	}
	return nil
}

func intField(m map[string]any, key string) int {
	if v, ok := m[key]; ok {
		return int(toInt64(v))
	}
	return 0
}

func int64Field(m map[string]any, key string) int64 {
	if v, ok := m[key]; ok {
		return toInt64(v)
	}
	return 0
}

func floatField(m map[string]any, key string) float64 {
	if v, ok := m[key]; ok {
		switch n := v.(type) {
		case float64:
			return n
		case string:
			f, _ := strconv.ParseFloat(n, 64)
			return f
		}
	}
	return 0
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	case json.Number:
		i, _ := n.Int64()
		return i
	case string:
		i, _ := strconv.ParseInt(n, 10, 64)
		return i
	}
	return 0
}

// msTime converts a millisecond epoch to a UTC instant, truncated to
// whole seconds the way the upstream documents timestamps.
func msTime(ms int64) time.Time {
	return time.Unix(ms/1000, 0).UTC()
}
