package llm

import (
	"fmt"
	"strings"

	"github.com/qualia-lab/qualia/internal/model"
)

// DefaultSystemPrompt frames the analysis service as a qualitative coder.
// Reliability studies append prompt-variation suffixes to this.
const DefaultSystemPrompt = `You are a qualitative researcher performing constant-comparison coding. ` +
	`You respond ONLY with a single JSON object matching the requested schema: no prose, no markdown.`

// BuildCodingPrompt constructs the per-segment prompt: the full current
// codebook as context, then the segment text, then the response schema.
func BuildCodingPrompt(cb *model.Codebook, seg model.Segment) string {
	var b strings.Builder

	b.WriteString("Compare this data segment against the current codebook. Apply existing codes where they fit, propose new codes for themes the codebook misses, and suggest modifications where a definition no longer matches the data.\n\n")

	b.WriteString("CURRENT CODEBOOK:\n")
	b.WriteString(CodebookContext(cb))
	b.WriteString("\n")

	b.WriteString("DATA SEGMENT")
	if seg.Speaker != "" {
		fmt.Fprintf(&b, " (speaker: %s)", seg.Speaker)
	}
	b.WriteString(":\n")
	b.WriteString(seg.Text)
	b.WriteString("\n\n")

	b.WriteString(`Respond with JSON only:
{
  "applications": [{"code_name": "existing code name", "quote": "exact supporting quote", "confidence": 0.0, "reasoning": "why it fits"}],
  "new_codes": [{"name": "new code name", "description": "definition", "parent_name": "optional existing parent", "properties": ["optional"], "examples": ["quote"], "confidence": 0.0, "reasoning": "why a new code is needed"}],
  "modifications": [{"name": "existing code name", "description": "revised definition", "properties": ["additional properties"]}],
  "memo": "optional short analytical note"
}`)

	return b.String()
}

// CodebookContext renders the codebook for prompt embedding: one line per
// code with its description and up to five properties. An empty or missing
// codebook renders as an explicit marker so the first segment is coded
// against a stated-empty context, not a blank one.
func CodebookContext(cb *model.Codebook) string {
	if cb == nil || len(cb.Codes) == 0 {
		return "(empty codebook - no codes defined yet)\n"
	}

	var b strings.Builder
	for _, code := range cb.Codes {
		fmt.Fprintf(&b, "- %s: %s", code.Name, code.Description)
		if len(code.Properties) > 0 {
			props := code.Properties
			if len(props) > 5 {
				props = props[:5]
			}
			fmt.Fprintf(&b, " [properties: %s]", strings.Join(props, ", "))
		}
		b.WriteString("\n")
	}
	return b.String()
}
