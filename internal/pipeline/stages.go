package pipeline

import (
	"context"
	"fmt"

	"github.com/qualia-lab/qualia/internal/coder"
	"github.com/qualia-lab/qualia/internal/llm"
	"github.com/qualia-lab/qualia/internal/model"
	"github.com/qualia-lab/qualia/internal/segment"
)

// ArtifactCodebookText is the current codebook rendered as prompt text,
// stashed by the coding stage for downstream consumers.
const ArtifactCodebookText = "codebook_text"

// ArtifactCodingSummary is the finalize stage's human-readable run summary
const ArtifactCodingSummary = "coding_summary"

// IngestStage loads the corpus directory into project documents, with
// speaker detection. Skipped when the project already holds documents,
// so a resumed run never re-ingests.
type IngestStage struct {
	Dir string
}

func (s *IngestStage) Name() string { return "ingest" }

func (s *IngestStage) CanExecute(state *model.ProjectState) bool {
	return len(state.Documents) == 0
}

func (s *IngestStage) RequiresReview() bool { return false }

func (s *IngestStage) Execute(ctx context.Context, state *model.ProjectState, cfg *model.Config) error {
	docs, err := segment.LoadDocuments(s.Dir, cfg.Project.MaxDocBytes)
	if err != nil {
		return err
	}
	state.Documents = docs
	return nil
}

// OpenCodingStage runs the constant-comparison loop over the full corpus.
// It declares a review checkpoint: the generated codebook pauses the
// pipeline for human review before anything downstream consumes it.
type OpenCodingStage struct {
	Coder *coder.Coder
}

func (s *OpenCodingStage) Name() string { return "open_coding" }

func (s *OpenCodingStage) CanExecute(state *model.ProjectState) bool { return true }

func (s *OpenCodingStage) RequiresReview() bool { return true }

func (s *OpenCodingStage) Execute(ctx context.Context, state *model.ProjectState, cfg *model.Config) error {
	segmenter := segment.NewSegmenter(cfg.Segmenter.WordBudget)
	segments := segmenter.Segment(state.Documents)

	result, err := s.Coder.Run(ctx, state, segments)
	if err != nil {
		return err
	}

	state.SetArtifact(ArtifactCodebookText, llm.CodebookContext(state.Codebook))
	state.SetArtifact("open_coding_passes", fmt.Sprintf("%d", result.Passes))
	return nil
}

// FinalizeStage summarizes the reviewed codebook. It depends on the coding
// stage's codebook-text artifact and fails loudly if that upstream output
// is missing rather than summarizing an empty context.
type FinalizeStage struct{}

func (s *FinalizeStage) Name() string { return "finalize" }

func (s *FinalizeStage) CanExecute(state *model.ProjectState) bool { return true }

func (s *FinalizeStage) RequiresReview() bool { return false }

func (s *FinalizeStage) Execute(ctx context.Context, state *model.ProjectState, cfg *model.Config) error {
	codebookText, err := state.RequireArtifact(s.Name(), ArtifactCodebookText)
	if err != nil {
		return err
	}
	if state.Codebook == nil {
		return fmt.Errorf("no codebook to finalize")
	}

	summary := fmt.Sprintf("codebook v%d: %d codes, %d applications, %d completed passes\n\n%s",
		state.Codebook.Version,
		len(state.Codebook.Codes),
		len(state.Applications),
		state.Iterations,
		codebookText,
	)
	state.SetArtifact(ArtifactCodingSummary, summary)
	return nil
}
