package model

import (
	"fmt"
	"time"
)

// PipelineStatus tracks the overall state of a project run
type PipelineStatus string

const (
	StatusPending         PipelineStatus = "pending"
	StatusRunning         PipelineStatus = "running"
	StatusCompleted       PipelineStatus = "completed"
	StatusPausedForReview PipelineStatus = "paused_for_review"
	StatusFailed          PipelineStatus = "failed"
)

// PhaseStatus tracks the state of a single pipeline stage
type PhaseStatus string

const (
	PhasePending   PhaseStatus = "pending"
	PhaseRunning   PhaseStatus = "running"
	PhaseCompleted PhaseStatus = "completed"
	PhasePaused    PhaseStatus = "paused_for_review"
	PhaseFailed    PhaseStatus = "failed"
	PhaseSkipped   PhaseStatus = "skipped"
)

// PhaseResult records the latest attempt of one named stage.
// Re-executing a stage overwrites its record rather than appending.
type PhaseResult struct {
	Stage       string      `json:"stage"`
	Status      PhaseStatus `json:"status"`
	StartedAt   time.Time   `json:"started_at,omitempty"`
	CompletedAt time.Time   `json:"completed_at,omitempty"`
	Error       string      `json:"error,omitempty"`
}

// ReviewAction is the kind of change a reviewer requested
type ReviewAction string

const (
	ActionApprove ReviewAction = "approve"
	ActionReject  ReviewAction = "reject"
	ActionModify  ReviewAction = "modify"
	ActionMerge   ReviewAction = "merge"
	ActionSplit   ReviewAction = "split"
)

// ReviewTarget is the kind of object a review decision addresses
type ReviewTarget string

const (
	TargetCode        ReviewTarget = "code"
	TargetApplication ReviewTarget = "application"
	TargetCodebook    ReviewTarget = "codebook"
)

// ReviewDecision is one human review action, appended to the audit log once applied
type ReviewDecision struct {
	Target    ReviewTarget   `json:"target"`
	TargetID  string         `json:"target_id"`
	Action    ReviewAction   `json:"action"`
	Payload   map[string]any `json:"payload,omitempty"`
	Rationale string         `json:"rationale,omitempty"`
	AppliedAt time.Time      `json:"applied_at,omitempty"`
	Warning   string         `json:"warning,omitempty"` // Set by the engine when a decision has side effects the reviewer should know about
}

// ProjectState is the single aggregate mutated by coding, review, and
// reliability runs. Exactly one writer per project at a time.
type ProjectState struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Documents []Document `json:"documents"`

	Codebook        *Codebook  `json:"codebook,omitempty"`
	CodebookHistory []Codebook `json:"codebook_history,omitempty"` // Append-only prior versions

	Applications []CodeApplication `json:"applications,omitempty"`
	ReviewLog    []ReviewDecision  `json:"review_log,omitempty"`

	Status       PipelineStatus `json:"status"`
	CurrentPhase string         `json:"current_phase,omitempty"` // Set while paused for review
	Phases       []PhaseResult  `json:"phases,omitempty"`
	Iterations   int            `json:"iterations"` // Completed constant-comparison passes

	// Artifacts carries string outputs stashed by one stage for later stages
	// (e.g. the current codebook rendered as prompt text).
	Artifacts map[string]string `json:"artifacts,omitempty"`

	IRRResults       []IRRResult       `json:"irr_results,omitempty"`
	StabilityResults []StabilityResult `json:"stability_results,omitempty"`
}

// SetPhase records the result for a stage, overwriting any prior record
// with the same stage name.
func (p *ProjectState) SetPhase(result PhaseResult) {
	for i := range p.Phases {
		if p.Phases[i].Stage == result.Stage {
			p.Phases[i] = result
			return
		}
	}
	p.Phases = append(p.Phases, result)
}

// Phase returns the recorded result for a stage name, or nil
func (p *ProjectState) Phase(stage string) *PhaseResult {
	for i := range p.Phases {
		if p.Phases[i].Stage == stage {
			return &p.Phases[i]
		}
	}
	return nil
}

// SetArtifact stashes a named output for downstream stages
func (p *ProjectState) SetArtifact(key, value string) {
	if p.Artifacts == nil {
		p.Artifacts = make(map[string]string)
	}
	p.Artifacts[key] = value
}

// RequireArtifact returns the named artifact or an error identifying both
// the missing key and the stage that needed it.
func (p *ProjectState) RequireArtifact(stage, key string) (string, error) {
	if v, ok := p.Artifacts[key]; ok {
		return v, nil
	}
	return "", fmt.Errorf("stage %q requires upstream artifact %q, which no earlier stage produced", stage, key)
}

// ArchiveCodebook deep-copies the current codebook into history and bumps
// the live version. No-op when the project has no codebook yet.
func (p *ProjectState) ArchiveCodebook() {
	if p.Codebook == nil {
		return
	}
	p.CodebookHistory = append(p.CodebookHistory, p.Codebook.Clone())
	p.Codebook.Version++
}

// ApplicationsForCode returns the ids of all applications referencing the code
func (p *ProjectState) ApplicationsForCode(codeID string) []string {
	var ids []string
	for _, app := range p.Applications {
		if app.CodeID == codeID {
			ids = append(ids, app.ID)
		}
	}
	return ids
}
