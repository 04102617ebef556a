package common

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kaptinlin/jsonrepair"
)

// ParseJSON cleans and unmarshals a JSON string into a type T.
// It handles common LLM quirks like surrounding markdown or extra text, and
// falls back to jsonrepair for truncated or slightly malformed output.
func ParseJSON[T any](response string) (T, error) {
	var zero T

	jsonStr, err := extractJSON(response)
	if err != nil {
		return zero, err
	}

	var result T
	if err := json.Unmarshal([]byte(jsonStr), &result); err == nil {
		return result, nil
	}

	repaired, repairErr := jsonrepair.JSONRepair(jsonStr)
	if repairErr != nil {
		return zero, fmt.Errorf("failed to repair JSON: %w\nData: %s", repairErr, jsonStr)
	}

	result = *new(T)
	if err := json.Unmarshal([]byte(repaired), &result); err != nil {
		return zero, fmt.Errorf("failed to unmarshal JSON: %w\nData: %s", err, repaired)
	}

	return result, nil
}

// ParseJSONList accepts a JSON array of T, a single T object, or an object
// holding exactly one array field (e.g. {"relationships": [...]}).
func ParseJSONList[T any](response string) ([]T, error) {
	raw, err := ParseJSON[json.RawMessage](response)
	if err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	if raw[0] == '[' {
		var list []T
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("failed to unmarshal JSON array: %w", err)
		}
		return list, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err == nil && len(fields) == 1 {
		for _, v := range fields {
			v = bytes.TrimSpace(v)
			if len(v) > 0 && v[0] == '[' {
				var list []T
				if err := json.Unmarshal(v, &list); err != nil {
					return nil, fmt.Errorf("failed to unmarshal JSON array: %w", err)
				}
				return list, nil
			}
		}
	}

	var single T
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON object: %w", err)
	}
	return []T{single}, nil
}

// extractJSON trims markdown fences and prose around the outermost object or array.
func extractJSON(response string) (string, error) {
	start := strings.IndexAny(response, "{[")
	if start == -1 {
		return "", fmt.Errorf("no JSON object found in response (missing '{' or '[')")
	}

	closer := byte('}')
	if response[start] == '[' {
		closer = ']'
	}

	end := strings.LastIndexByte(response, closer)
	if end < start {
		// Truncated output; let jsonrepair close it.
		return response[start:], nil
	}
	return response[start : end+1], nil
}

// Truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
// n <= 0 leaves s unchanged.
func Truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
