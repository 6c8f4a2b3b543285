package model

import "time"

// IRRResult is the write-once output of one inter-rater reliability study
type IRRResult struct {
	RunAt            time.Time        `json:"run_at"`
	Passes           int              `json:"passes"`
	Stage            string           `json:"stage"`
	Models           []string         `json:"models,omitempty"` // Per-pass model, when varied
	Aligned          []string         `json:"aligned"`          // Normalized names present in >= 2 passes
	Unmatched        []string         `json:"unmatched"`        // Normalized names present in exactly 1 pass
	Matrix           map[string][]int `json:"matrix"`           // Normalized name -> 0/1 presence per pass
	PercentAgreement float64          `json:"percent_agreement"`
	CohensKappa      float64          `json:"cohens_kappa,omitempty"` // Only for 2-pass studies
	FleissKappa      float64          `json:"fleiss_kappa"`
	Interpretation   string           `json:"interpretation"` // Landis & Koch bucket
}

// StabilityClass buckets a code name by how consistently it reappears
type StabilityClass string

const (
	StabilityStable   StabilityClass = "stable"   // Appears in >= 80% of runs
	StabilityModerate StabilityClass = "moderate" // Appears in >= 50% of runs
	StabilityUnstable StabilityClass = "unstable"
)

// CodeStability is the per-name breakdown inside a stability study
type CodeStability struct {
	Name  string         `json:"name"`  // Normalized code name
	Score float64        `json:"score"` // Fraction of runs producing the name
	Class StabilityClass `json:"class"`
}

// StabilityResult is the write-once output of one multi-run stability study
type StabilityResult struct {
	RunAt        time.Time       `json:"run_at"`
	Runs         int             `json:"runs"`
	Stage        string          `json:"stage"`
	Codes        []CodeStability `json:"codes"`
	OverallScore float64         `json:"overall_score"` // Mean per-name stability score
}
