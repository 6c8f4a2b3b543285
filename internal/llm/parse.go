package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseExtractResponse validates raw model output into an ExtractResponse.
// Malformed responses are rejected, never coerced into empty content: a
// response the engine cannot parse is a failed analysis call.
func ParseExtractResponse(raw string) (*ExtractResponse, error) {
	cleaned := stripCodeFence(strings.TrimSpace(raw))
	if cleaned == "" {
		return nil, fmt.Errorf("empty response from analysis service")
	}

	dec := json.NewDecoder(strings.NewReader(cleaned))
	var resp ExtractResponse
	if err := dec.Decode(&resp); err != nil {
		return nil, fmt.Errorf("malformed analysis response: %w", err)
	}

	for i, app := range resp.Applications {
		if strings.TrimSpace(app.CodeName) == "" {
			return nil, fmt.Errorf("malformed analysis response: application %d has no code_name", i)
		}
	}
	for i, nc := range resp.NewCodes {
		if strings.TrimSpace(nc.Name) == "" {
			return nil, fmt.Errorf("malformed analysis response: new_codes[%d] has no name", i)
		}
	}
	for i, rev := range resp.Modifications {
		if strings.TrimSpace(rev.Name) == "" {
			return nil, fmt.Errorf("malformed analysis response: modifications[%d] has no name", i)
		}
	}

	return &resp, nil
}

// stripCodeFence removes a surrounding markdown code fence. Models often
// wrap JSON in ```json blocks despite instructions not to.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
