package linking

import (
	"fmt"
	"strings"

	"github.com/agenthands/papergraph/internal/core/common"
	"github.com/agenthands/papergraph/internal/core/model"
)

// Paper node properties the context builder renders when present.
const (
	PropAbstract   = "abstract"
	PropFullText   = "full_text"
	PropMethods    = "methods"
	PropMetrics    = "metrics"
	PropKeyResults = "key_results"
	PropLimitation = "limitations"
)

// BuildPaperContext serializes a paper for the relationship oracle. meta may
// be nil. The full text is cut to maxTextChars when that is positive.
func BuildPaperContext(node *model.Node, meta *model.PaperMetadata, maxTextChars int) string {
	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}

	line("Title: %s", node.Label)
	abstract := node.Properties.String(PropAbstract)

	if meta != nil {
		if meta.Title != "" && meta.Title != node.Label {
			line("Title: %s", meta.Title)
		}
		if len(meta.Authors) > 0 {
			line("Authors: %s", strings.Join(meta.Authors, ", "))
		}
		if meta.Year > 0 {
			line("Year: %d", meta.Year)
		}
		if meta.Venue != "" {
			line("Venue: %s", meta.Venue)
		}
		if meta.ArxivID != "" {
			line("ArXiv ID: %s", meta.ArxivID)
		}
		if meta.DOI != "" {
			line("DOI: %s", meta.DOI)
		}
		if meta.Abstract != "" {
			abstract = meta.Abstract
		}
	}

	if abstract != "" {
		line("\nAbstract:\n%s", abstract)
	}

	if text := node.Properties.String(PropFullText); text != "" {
		text = common.Truncate(text, maxTextChars)
		line("\nFull Text:\n%s", text)
	}

	if meta != nil && len(meta.Keywords) > 0 {
		line("\nKeywords: %s", strings.Join(meta.Keywords, ", "))
	}

	for _, section := range []struct{ key, title string }{
		{PropMethods, "Methods"},
		{PropKeyResults, "Key Results"},
		{PropMetrics, "Metrics"},
		{PropLimitation, "Limitations"},
	} {
		v, ok := node.Properties[section.key]
		if !ok || v.Empty() {
			continue
		}
		line("\n%s:\n%s", section.title, renderValue(v, ""))
	}

	return strings.TrimRight(b.String(), "\n")
}

// renderValue prints lists as bullets and maps as sorted "key: value" lines.
func renderValue(v model.Value, indent string) string {
	switch v.Kind() {
	case model.KindList:
		lines := make([]string, 0, len(v.Items()))
		for _, item := range v.Items() {
			lines = append(lines, indent+"- "+strings.TrimLeft(renderValue(item, indent+"  "), " "))
		}
		return strings.Join(lines, "\n")
	case model.KindMap:
		fields := v.Fields()
		lines := make([]string, 0, len(fields))
		for _, k := range fields.Keys() {
			f := fields[k]
			if f.Kind() == model.KindList || f.Kind() == model.KindMap {
				lines = append(lines, fmt.Sprintf("%s%s:\n%s", indent, k, renderValue(f, indent+"  ")))
				continue
			}
			lines = append(lines, fmt.Sprintf("%s%s: %s", indent, k, f.Text()))
		}
		return strings.Join(lines, "\n")
	default:
		return indent + v.Text()
	}
}
