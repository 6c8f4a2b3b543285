package segment

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/qualia-lab/qualia/internal/model"
)

// Segmenter splits documents into codeable units. Documents with detected
// speakers are split into speaker turns; everything else is chunked into
// paragraph groups near the word budget. Segments are cheap and regenerated
// per invocation, never stored.
type Segmenter struct {
	wordBudget int
}

// NewSegmenter creates a segmenter with the given paragraph word budget.
// A non-positive budget falls back to the default of 500 words.
func NewSegmenter(wordBudget int) *Segmenter {
	if wordBudget <= 0 {
		wordBudget = 500
	}
	return &Segmenter{wordBudget: wordBudget}
}

// Segment produces the codeable units for every document, in document order
func (s *Segmenter) Segment(docs []model.Document) []model.Segment {
	var segments []model.Segment
	for _, doc := range docs {
		if len(doc.Speakers) > 0 {
			segments = append(segments, s.splitTurns(doc)...)
		} else {
			segments = append(segments, s.chunkParagraphs(doc)...)
		}
	}
	return segments
}

// splitTurns splits a transcript at every line-start occurrence of a known
// speaker name followed by ": " or a timestamp ("Name   12:04"). Each match
// begins a turn running to the next match. A transcript whose text never
// matches becomes a single segment.
func (s *Segmenter) splitTurns(doc model.Document) []model.Segment {
	pattern := turnPattern(doc.Speakers)
	matches := pattern.FindAllStringSubmatchIndex(doc.Text, -1)

	if len(matches) == 0 {
		if strings.TrimSpace(doc.Text) == "" {
			return nil
		}
		return []model.Segment{{
			DocumentID: doc.ID,
			Index:      0,
			Text:       strings.TrimSpace(doc.Text),
		}}
	}

	var segments []model.Segment
	for i, m := range matches {
		speaker := doc.Text[m[2]:m[3]]
		end := len(doc.Text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		text := strings.TrimSpace(doc.Text[m[1]:end])
		if text == "" {
			continue
		}
		segments = append(segments, model.Segment{
			DocumentID: doc.ID,
			Index:      len(segments),
			Text:       text,
			Speaker:    speaker,
		})
	}
	return segments
}

// chunkParagraphs splits on blank lines, then greedily packs consecutive
// paragraphs until adding the next would exceed the word budget. One
// paragraph larger than the budget becomes its own oversized chunk; a
// paragraph is never split internally.
func (s *Segmenter) chunkParagraphs(doc model.Document) []model.Segment {
	paragraphs := splitParagraphs(doc.Text)
	if len(paragraphs) == 0 {
		return nil
	}

	var segments []model.Segment
	var current []string
	currentWords := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		segments = append(segments, model.Segment{
			DocumentID: doc.ID,
			Index:      len(segments),
			Text:       strings.Join(current, "\n\n"),
		})
		current = nil
		currentWords = 0
	}

	for _, para := range paragraphs {
		words := model.CountWords(para)
		if currentWords > 0 && currentWords+words > s.wordBudget {
			flush()
		}
		current = append(current, para)
		currentWords += words
	}
	flush()

	return segments
}

// turnPattern builds the line-start regex matching any known speaker name
// followed by a colon-and-space or a whitespace-separated m:ss timestamp
func turnPattern(speakers []string) *regexp.Regexp {
	quoted := make([]string, len(speakers))
	for i, name := range speakers {
		quoted[i] = regexp.QuoteMeta(name)
	}
	expr := fmt.Sprintf(`(?m)^(%s)(?::[ \t]|[ \t]+\d{1,3}:\d{2})`, strings.Join(quoted, "|"))
	return regexp.MustCompile(expr)
}

var blankLinePattern = regexp.MustCompile(`\n[ \t]*\n`)

// splitParagraphs splits text on blank lines, dropping whitespace-only paragraphs
func splitParagraphs(text string) []string {
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	var paragraphs []string
	for _, para := range blankLinePattern.Split(normalized, -1) {
		para = strings.TrimSpace(para)
		if para != "" {
			paragraphs = append(paragraphs, para)
		}
	}
	return paragraphs
}
