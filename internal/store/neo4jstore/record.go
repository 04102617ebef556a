package neo4jstore

import (
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

func getString(rec *neo4j.Record, key string) string {
	v, _ := rec.Get(key)
	s, _ := v.(string)
	return s
}

func getFloat(rec *neo4j.Record, key string) float64 {
	v, _ := rec.Get(key)
	switch t := v.(type) {
	case float64:
		return t
	case int64:
		return float64(t)
	}
	return 0
}

func getInt(rec *neo4j.Record, key string) int64 {
	v, _ := rec.Get(key)
	switch t := v.(type) {
	case int64:
		return t
	case float64:
		return int64(t)
	}
	return 0
}

func getTime(rec *neo4j.Record, key string) time.Time {
	v, _ := rec.Get(key)
	switch t := v.(type) {
	case time.Time:
		return t.UTC()
	case neo4j.LocalDateTime:
		return t.Time().UTC()
	}
	return time.Time{}
}

func getStrings(rec *neo4j.Record, key string) []string {
	v, _ := rec.Get(key)
	items, _ := v.([]interface{})
	if len(items) == 0 {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func getVector(rec *neo4j.Record, key string) []float32 {
	v, _ := rec.Get(key)
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]float32, len(items))
	for i, item := range items {
		switch t := item.(type) {
		case float64:
			out[i] = float32(t)
		case int64:
			out[i] = float32(t)
		}
	}
	return out
}

func toFloat64s(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}
