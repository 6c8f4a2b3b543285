package model

// Document represents one ingested transcript or text source
type Document struct {
	ID        string   `json:"id"`                  // Stable document identifier
	Name      string   `json:"name"`                // Original file name or label
	Text      string   `json:"text"`                // Raw text content
	Speakers  []string `json:"speakers,omitempty"`  // Detected speaker names (interview transcripts)
	Truncated bool     `json:"truncated,omitempty"` // Whether ingestion cut the text at the size limit
}

// Segment is one codeable unit produced by the segmenter.
// Segments are derived per run and never persisted.
type Segment struct {
	DocumentID string `json:"document_id"`
	Index      int    `json:"index"` // Sequence position within the document
	Text       string `json:"text"`
	Speaker    string `json:"speaker,omitempty"` // Empty for paragraph-chunked documents
}

// WordCount returns the number of whitespace-separated words in the segment
func (s Segment) WordCount() int {
	return CountWords(s.Text)
}

// CountWords counts whitespace-separated words in text. The segmenter's
// word budget is measured in these units.
func CountWords(text string) int {
	count := 0
	inWord := false
	for _, r := range text {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			inWord = false
		} else if !inWord {
			inWord = true
			count++
		}
	}
	return count
}
