package pipeline

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/qualia-lab/qualia/internal/model"
)

// Stage is one named step of a coding pipeline
type Stage interface {
	// Name identifies the stage; PhaseResults are keyed by it
	Name() string

	// CanExecute is the stage's precondition. A false return records the
	// stage as skipped and moves on: no execution, no error.
	CanExecute(state *model.ProjectState) bool

	// RequiresReview pauses the pipeline after this stage completes,
	// returning control to the caller until an explicit resume.
	RequiresReview() bool

	// Execute runs the stage against the project state
	Execute(ctx context.Context, state *model.ProjectState, cfg *model.Config) error
}

// PersistFunc saves project state; the engine calls it after every
// successful stage and on every terminal status transition, so both
// mid-run progress and a review pause survive the process.
type PersistFunc func(state *model.ProjectState) error

// Engine walks an ordered stage list over one project, recording a
// PhaseResult per stage and pausing at review checkpoints.
type Engine struct {
	stages  []Stage
	persist PersistFunc // nil disables checkpointing
	verbose bool
}

// NewEngine creates a pipeline engine over the given stages
func NewEngine(stages []Stage, persist PersistFunc, verbose bool) *Engine {
	return &Engine{
		stages:  stages,
		persist: persist,
		verbose: verbose,
	}
}

// Run executes the stage list in order. A non-empty resumeFrom skips
// stages until the named stage is reached (inclusive); naming a stage the
// pipeline does not contain is a configuration error, never a silent full
// restart. The first stage failure records the error, marks the pipeline
// failed, and propagates; nothing after it runs.
func (e *Engine) Run(ctx context.Context, state *model.ProjectState, cfg *model.Config, resumeFrom string) error {
	if resumeFrom != "" && !e.hasStage(resumeFrom) {
		return fmt.Errorf("cannot resume from unknown stage %q (pipeline stages: %v)", resumeFrom, e.stageNames())
	}

	state.Status = model.StatusRunning
	skipping := resumeFrom != ""

	for _, stage := range e.stages {
		if skipping {
			if stage.Name() != resumeFrom {
				continue
			}
			skipping = false
		}

		if !stage.CanExecute(state) {
			state.SetPhase(model.PhaseResult{
				Stage:  stage.Name(),
				Status: model.PhaseSkipped,
			})
			if e.verbose {
				fmt.Fprintf(os.Stderr, "stage %s: skipped (precondition not met)\n", stage.Name())
			}
			continue
		}

		started := time.Now().UTC()
		state.SetPhase(model.PhaseResult{
			Stage:     stage.Name(),
			Status:    model.PhaseRunning,
			StartedAt: started,
		})
		if e.verbose {
			fmt.Fprintf(os.Stderr, "stage %s: running\n", stage.Name())
		}

		if err := stage.Execute(ctx, state, cfg); err != nil {
			state.SetPhase(model.PhaseResult{
				Stage:       stage.Name(),
				Status:      model.PhaseFailed,
				StartedAt:   started,
				CompletedAt: time.Now().UTC(),
				Error:       err.Error(),
			})
			state.Status = model.StatusFailed
			if perr := e.checkpoint(state); perr != nil {
				fmt.Fprintf(os.Stderr, "stage %s: persist after failure: %v\n", stage.Name(), perr)
			}
			return fmt.Errorf("stage %s: %w", stage.Name(), err)
		}

		state.SetPhase(model.PhaseResult{
			Stage:       stage.Name(),
			Status:      model.PhaseCompleted,
			StartedAt:   started,
			CompletedAt: time.Now().UTC(),
		})

		// Set the pause before checkpointing: the durable record must show
		// the review checkpoint, or a rerun would re-execute the stage.
		if stage.RequiresReview() {
			state.Status = model.StatusPausedForReview
			state.CurrentPhase = stage.Name()
		}

		if err := e.checkpoint(state); err != nil {
			state.Status = model.StatusFailed
			return fmt.Errorf("stage %s: persist checkpoint: %w", stage.Name(), err)
		}

		if state.Status == model.StatusPausedForReview {
			if e.verbose {
				fmt.Fprintf(os.Stderr, "stage %s: paused for review\n", stage.Name())
			}
			return nil
		}
	}

	state.Status = model.StatusCompleted
	state.CurrentPhase = ""
	if err := e.checkpoint(state); err != nil {
		state.Status = model.StatusFailed
		return fmt.Errorf("persist final state: %w", err)
	}
	return nil
}

// checkpoint saves state through the persist func, if one is configured
func (e *Engine) checkpoint(state *model.ProjectState) error {
	if e.persist == nil {
		return nil
	}
	return e.persist(state)
}

// hasStage reports whether the pipeline contains the named stage
func (e *Engine) hasStage(name string) bool {
	for _, s := range e.stages {
		if s.Name() == name {
			return true
		}
	}
	return false
}

// stageNames returns the ordered stage names
func (e *Engine) stageNames() []string {
	names := make([]string, len(e.stages))
	for i, s := range e.stages {
		names[i] = s.Name()
	}
	return names
}
