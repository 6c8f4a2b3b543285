package segment

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/qualia-lab/qualia/internal/model"
)

// speakerLinePattern matches a line-start capitalized name (up to three
// words) followed by ": " or a timestamp, the two transcript conventions
// the segmenter understands.
var speakerLinePattern = regexp.MustCompile(`(?m)^([A-Z][A-Za-z.'-]*(?:[ \t][A-Z][A-Za-z.'-]*){0,2})(?::[ \t]|[ \t]+\d{1,3}:\d{2})`)

// LoadDocuments reads every .txt and .md file in dir into a Document,
// truncating any file larger than maxBytes and setting its truncation flag.
// Files are ingested in lexical order so document ids are reproducible
// across runs of the same corpus.
func LoadDocuments(dir string, maxBytes int64) ([]model.Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read corpus dir: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".txt", ".md":
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	if len(names) == 0 {
		return nil, fmt.Errorf("no .txt or .md documents found in %s", dir)
	}

	var docs []model.Document
	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read document %s: %w", path, err)
		}

		truncated := false
		if maxBytes > 0 && int64(len(data)) > maxBytes {
			data = data[:maxBytes]
			truncated = true
		}

		doc := model.Document{
			ID:        uuid.NewString(),
			Name:      name,
			Text:      string(data),
			Truncated: truncated,
		}
		doc.Speakers = DetectSpeakers(doc.Text)
		docs = append(docs, doc)
	}

	return docs, nil
}

// DetectSpeakers scans transcript text for recurring line-start speaker
// labels. A name must open at least two lines to count: one-off matches are
// usually headings, not speakers.
func DetectSpeakers(text string) []string {
	counts := make(map[string]int)
	var order []string
	for _, m := range speakerLinePattern.FindAllStringSubmatch(text, -1) {
		name := m[1]
		if counts[name] == 0 {
			order = append(order, name)
		}
		counts[name]++
	}

	var speakers []string
	for _, name := range order {
		if counts[name] >= 2 {
			speakers = append(speakers, name)
		}
	}
	return speakers
}
