// Package loader turns files on disk into documents ready for ingestion.
// JSON files hold one paper record or an array of them; PDF, text and
// markdown files are read as a single paper each.
package loader

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/agenthands/papergraph/internal/core"
	"github.com/agenthands/papergraph/internal/core/model"
	"github.com/agenthands/papergraph/internal/logger"
)

var ErrUnsupported = errors.New("unsupported file type")

// Load reads path, which may be a file or a directory. Directories are read
// non-recursively in name order; unsupported files in them are skipped.
func Load(path string) ([]core.Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	if !info.IsDir() {
		return LoadFile(path)
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", path, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && Supported(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var docs []core.Document
	for _, name := range names {
		loaded, err := LoadFile(filepath.Join(path, name))
		if err != nil {
			logger.Warn("[Loader] skipping file", "path", name, "error", err)
			continue
		}
		docs = append(docs, loaded...)
	}
	return docs, nil
}

// Supported reports whether LoadFile understands the file extension.
func Supported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".pdf", ".txt", ".md":
		return true
	}
	return false
}

func LoadFile(path string) ([]core.Document, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return loadJSON(path)
	case ".pdf", ".txt", ".md":
		text, err := ReadText(path)
		if err != nil {
			return nil, err
		}
		return []core.Document{{Text: text, Source: path}}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, path)
	}
}

// ReadText returns the plain text of a PDF, text or markdown file.
func ReadText(path string) (string, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return readPDF(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}

func readPDF(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening PDF: %w", err)
	}
	defer f.Close()

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("pdf plaintext: %w", err)
	}
	b, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("pdf read: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

func loadJSON(path string) ([]core.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var records []map[string]any
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		err = json.Unmarshal(data, &records)
	} else {
		var one map[string]any
		err = json.Unmarshal(data, &one)
		records = []map[string]any{one}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	docs := make([]core.Document, 0, len(records))
	for i, rec := range records {
		doc, err := recordDocument(rec, filepath.Dir(path))
		if err != nil {
			logger.Warn("[Loader] skipping record", "path", path, "index", i, "error", err)
			continue
		}
		if doc.Source == "" {
			doc.Source = fmt.Sprintf("%s#%d", path, i)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// known record keys; everything else lands in Document.Extra.
var recordKeys = map[string]bool{
	"title": true, "text": true, "content": true, "body": true, "abstract": true,
	"year": true, "venue": true, "doi": true, "arxiv_id": true, "citation_count": true,
	"authors": true, "keywords": true, "file_path": true,
}

// recordDocument maps one JSON paper record. Text comes from text or
// content, then from file_path (relative to dir), and finally from the
// title, abstract and body fields.
func recordDocument(rec map[string]any, dir string) (core.Document, error) {
	doc := core.Document{
		Title:         str(rec["title"]),
		Abstract:      str(rec["abstract"]),
		Year:          num(rec["year"]),
		Venue:         str(rec["venue"]),
		DOI:           str(rec["doi"]),
		ArxivID:       str(rec["arxiv_id"]),
		CitationCount: num(rec["citation_count"]),
		Authors:       list(rec["authors"]),
		Keywords:      list(rec["keywords"]),
	}

	doc.Text = str(rec["text"])
	if doc.Text == "" {
		doc.Text = str(rec["content"])
	}
	if doc.Text == "" {
		if p := str(rec["file_path"]); p != "" {
			if !filepath.IsAbs(p) {
				p = filepath.Join(dir, p)
			}
			text, err := ReadText(p)
			if err != nil {
				return doc, err
			}
			doc.Text = text
			doc.Source = p
		}
	}
	if doc.Text == "" {
		var parts []string
		if doc.Title != "" {
			parts = append(parts, "Title: "+doc.Title)
		}
		if doc.Abstract != "" {
			parts = append(parts, "Abstract: "+doc.Abstract)
		}
		if body := str(rec["body"]); body != "" {
			parts = append(parts, body)
		}
		doc.Text = strings.Join(parts, "\n\n")
	}
	if strings.TrimSpace(doc.Text) == "" {
		return doc, errors.New("record has no text")
	}

	for k, v := range rec {
		if recordKeys[k] {
			continue
		}
		if doc.Extra == nil {
			doc.Extra = model.Properties{}
		}
		doc.Extra[k] = model.FromAny(v)
	}
	return doc, nil
}

func str(v any) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	return ""
}

func num(v any) int {
	switch x := v.(type) {
	case float64:
		return int(x)
	case string:
		n, _ := strconv.Atoi(strings.TrimSpace(x))
		return n
	}
	return 0
}

// list accepts an array of strings or {"name": ...} objects, or a comma
// separated string.
func list(v any) []string {
	var out []string
	switch x := v.(type) {
	case string:
		for _, s := range strings.Split(x, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	case []any:
		for _, item := range x {
			s := str(item)
			if m, ok := item.(map[string]any); ok {
				s = str(m["name"])
			}
			if s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
