package coder

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/qualia-lab/qualia/internal/cache"
	"github.com/qualia-lab/qualia/internal/llm"
	"github.com/qualia-lab/qualia/internal/model"
	"github.com/qualia-lab/qualia/internal/saturation"
	"github.com/qualia-lab/qualia/internal/worker"
)

// Coder runs the constant-comparison loop: every segment is coded against
// the full current codebook, results are merged immediately so later
// segments in the same pass see earlier segments' new codes, and passes
// repeat until the codebook stabilizes.
type Coder struct {
	provider llm.Provider
	cache    cache.Cache     // nil disables response caching
	limiter  *worker.Limiter // nil disables rate limiting

	methodology   string
	threshold     float64
	maxIterations int
	verbose       bool

	// System and Model override the provider defaults; reliability studies
	// set these per pass.
	System string
	Model  string
}

// Options configures a Coder
type Options struct {
	Provider      llm.Provider
	Cache         cache.Cache
	Limiter       *worker.Limiter
	Methodology   string
	Threshold     float64
	MaxIterations int
	Verbose       bool
}

// New creates a Coder. Zero threshold and iteration values fall back to
// the standard defaults (0.15, 3).
func New(opts Options) *Coder {
	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = 0.15
	}
	maxIterations := opts.MaxIterations
	if maxIterations <= 0 {
		maxIterations = 3
	}
	return &Coder{
		provider:      opts.Provider,
		cache:         opts.Cache,
		limiter:       opts.Limiter,
		methodology:   opts.Methodology,
		threshold:     threshold,
		maxIterations: maxIterations,
		verbose:       opts.Verbose,
	}
}

// Result summarizes one completed constant-comparison run
type Result struct {
	Passes    int     `json:"passes"`
	Saturated bool    `json:"saturated"`
	PctChange float64 `json:"pct_change"` // Change across the final pass
	Codes     int     `json:"codes"`
}

// Run codes every segment repeatedly until saturation or the iteration cap.
// Zero segments is a data error, not convergence: an empty corpus must
// never read as "saturated after 0 passes".
func (c *Coder) Run(ctx context.Context, state *model.ProjectState, segments []model.Segment) (*Result, error) {
	if len(segments) == 0 {
		return nil, fmt.Errorf("no codeable segments produced from %d documents; nothing to code", len(state.Documents))
	}

	if state.Codebook == nil {
		state.Codebook = &model.Codebook{
			Version:     1,
			Methodology: c.methodology,
			CreatedBy:   model.ProvenanceSystem,
		}
	}

	var lastPassStart model.Codebook
	var lastDelta saturation.Delta
	passes := 0

	for passes < c.maxIterations {
		lastPassStart = state.Codebook.Clone()

		for _, seg := range segments {
			resp, err := c.extract(ctx, state.Codebook, seg)
			if err != nil {
				return nil, fmt.Errorf("pass %d, document %s segment %d: %w", passes+1, seg.DocumentID, seg.Index, err)
			}
			c.merge(state, seg, resp)
		}
		passes++

		lastDelta = saturation.Compare(&lastPassStart, state.Codebook)
		if c.verbose {
			fmt.Fprintf(os.Stderr, "pass %d: %d codes, %.1f%% change\n",
				passes, len(state.Codebook.Codes), lastDelta.PctChange*100)
		}
		if lastDelta.PctChange < c.threshold {
			break
		}
	}

	// History keeps the second-to-last snapshot so a later saturation check
	// can compare against what the final pass started from.
	state.CodebookHistory = append(state.CodebookHistory, lastPassStart)
	state.Iterations = passes

	return &Result{
		Passes:    passes,
		Saturated: lastDelta.PctChange < c.threshold,
		PctChange: lastDelta.PctChange,
		Codes:     len(state.Codebook.Codes),
	}, nil
}

// extract runs one analysis call, consulting the response cache first and
// waiting on the rate limiter before going to the service.
func (c *Coder) extract(ctx context.Context, cb *model.Codebook, seg model.Segment) (*llm.ExtractResponse, error) {
	req := llm.ExtractRequest{
		Prompt: llm.BuildCodingPrompt(cb, seg),
		System: c.System,
		Model:  c.Model,
	}

	var key string
	if c.cache != nil {
		key = cache.Key(c.provider.Name(), c.Model, c.System, req.Prompt)
		if data, found := c.cache.Get(key); found {
			var resp llm.ExtractResponse
			if err := json.Unmarshal(data, &resp); err == nil {
				return &resp, nil
			}
			// Unreadable cache entry: fall through to a fresh call
			_ = c.cache.Delete(key)
		}
	}

	resp, err := c.extractWithRetry(ctx, req)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if data, err := json.Marshal(resp); err == nil {
			_ = c.cache.Set(key, data, 0)
		}
	}

	return resp, nil
}

// extractRetries is how many extra attempts a failed service call gets
const extractRetries = 2

// retryBaseDelay is the backoff unit between attempts; tests shorten it
var retryBaseDelay = time.Second

// extractWithRetry calls the analysis service, retrying transient
// failures (API errors, malformed output) with exponential backoff.
// Every attempt waits for rate limit clearance first.
func (c *Coder) extractWithRetry(ctx context.Context, req llm.ExtractRequest) (*llm.ExtractResponse, error) {
	var lastErr error
	for attempt := 0; attempt <= extractRetries; attempt++ {
		if c.limiter != nil {
			backoff := time.Duration(0)
			if attempt > 0 {
				backoff = time.Duration(1<<uint(attempt-1)) * retryBaseDelay
			}
			if err := c.limiter.WaitWithDelay(ctx, c.provider.Name(), backoff); err != nil {
				return nil, fmt.Errorf("rate limiter: %w", err)
			}
		}

		resp, err := c.provider.Extract(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if c.verbose {
			fmt.Fprintf(os.Stderr, "extract attempt %d/%d failed: %v\n", attempt+1, extractRetries+1, err)
		}
	}
	return nil, lastErr
}

// merge folds one segment's analysis into the live codebook and the
// project's applications, in new-codes / modifications / applications order
// so an application can reference a code proposed in the same response.
func (c *Coder) merge(state *model.ProjectState, seg model.Segment, resp *llm.ExtractResponse) {
	cb := state.Codebook

	for _, nc := range resp.NewCodes {
		if cb.FindCodeByName(nc.Name) != nil {
			continue // No duplicate insertion: the theme already exists
		}
		code := model.Code{
			ID:          uuid.NewString(),
			Name:        nc.Name,
			Description: nc.Description,
			Properties:  nc.Properties,
			Examples:    nc.Examples,
			Confidence:  nc.Confidence,
			Provenance:  model.ProvenanceGenerated,
			Version:     cb.Version,
			Reasoning:   nc.Reasoning,
		}
		if nc.ParentName != "" {
			if parent := cb.FindCodeByName(nc.ParentName); parent != nil {
				code.ParentID = parent.ID
				code.Level = parent.Level + 1
			}
			// Unresolvable parent: the code joins at the root, orphaned
		}
		cb.Codes = append(cb.Codes, code)
	}

	for _, rev := range resp.Modifications {
		code := cb.FindCodeByName(rev.Name)
		if code == nil {
			continue
		}
		if rev.Description != "" {
			code.Description = rev.Description
		}
		code.Properties = unionStrings(code.Properties, rev.Properties)
	}

	for _, app := range resp.Applications {
		code := cb.FindCodeByName(app.CodeName)
		if code == nil {
			continue // Never fabricate a code from a bare application
		}
		code.Mentions++
		state.Applications = append(state.Applications, model.CodeApplication{
			ID:         uuid.NewString(),
			CodeID:     code.ID,
			DocumentID: seg.DocumentID,
			Quote:      app.Quote,
			Speaker:    seg.Speaker,
			Confidence: app.Confidence,
			Provenance: model.ProvenanceGenerated,
			Version:    cb.Version,
		})
	}
}

// unionStrings appends the members of extra not already present
func unionStrings(base, extra []string) []string {
	seen := make(map[string]bool, len(base))
	for _, s := range base {
		seen[s] = true
	}
	for _, s := range extra {
		if !seen[s] {
			seen[s] = true
			base = append(base, s)
		}
	}
	return base
}
