package extraction

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

type rawMetadata struct {
	Title         string      `json:"title"`
	Abstract      string      `json:"abstract"`
	Year          looseInt    `json:"year"`
	Venue         string      `json:"venue"`
	DOI           string      `json:"doi"`
	ArxivID       string      `json:"arxiv_id"`
	CitationCount looseInt    `json:"citation_count"`
	Authors       looseString `json:"authors"`
	Keywords      looseString `json:"keywords"`
}

// looseInt accepts 2023, 2023.0, "2023" and null.
type looseInt int

func (i *looseInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*i = 0
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*i = looseInt(f)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		*i = 0
		return nil
	}
	*i = looseInt(n)
	return nil
}

// looseString accepts ["a", "b"], "a, b", [{"name": "a"}] and null.
type looseString []string

func (l *looseString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*l = splitList(s)
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		var str string
		if err := json.Unmarshal(item, &str); err == nil {
			if str = strings.TrimSpace(str); str != "" {
				out = append(out, str)
			}
			continue
		}
		var named struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(item, &named); err == nil && named.Name != "" {
			out = append(out, strings.TrimSpace(named.Name))
		}
	}
	*l = out
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
