package model

import (
	"strings"
	"testing"
)

func TestProjectState_SetPhase_OverwritesByStage(t *testing.T) {
	state := &ProjectState{}

	state.SetPhase(PhaseResult{Stage: "open_coding", Status: PhaseFailed})
	state.SetPhase(PhaseResult{Stage: "finalize", Status: PhasePending})
	state.SetPhase(PhaseResult{Stage: "open_coding", Status: PhaseCompleted})

	if len(state.Phases) != 2 {
		t.Fatalf("Expected 2 phase results, got %d", len(state.Phases))
	}

	phase := state.Phase("open_coding")
	if phase == nil {
		t.Fatal("Expected open_coding phase to exist")
	}
	if phase.Status != PhaseCompleted {
		t.Errorf("Expected rerun to overwrite status, got %s", phase.Status)
	}
}

func TestProjectState_RequireArtifact(t *testing.T) {
	state := &ProjectState{}
	state.SetArtifact("codebook_text", "codes: ...")

	got, err := state.RequireArtifact("finalize", "codebook_text")
	if err != nil {
		t.Fatalf("Expected artifact to resolve, got error: %v", err)
	}
	if got != "codes: ..." {
		t.Errorf("Expected artifact value, got %q", got)
	}

	_, err = state.RequireArtifact("finalize", "coding_summary")
	if err == nil {
		t.Fatal("Expected error for missing artifact")
	}
	if !strings.Contains(err.Error(), "finalize") || !strings.Contains(err.Error(), "coding_summary") {
		t.Errorf("Expected error to name stage and artifact, got: %v", err)
	}
}

func TestProjectState_ArchiveCodebook(t *testing.T) {
	state := &ProjectState{
		Codebook: &Codebook{
			Version: 1,
			Codes: []Code{
				{ID: "c1", Name: "coping", Properties: []string{"active"}},
			},
		},
	}

	state.ArchiveCodebook()

	if state.Codebook.Version != 2 {
		t.Errorf("Expected version bump to 2, got %d", state.Codebook.Version)
	}
	if len(state.CodebookHistory) != 1 {
		t.Fatalf("Expected 1 archived codebook, got %d", len(state.CodebookHistory))
	}
	if state.CodebookHistory[0].Version != 1 {
		t.Errorf("Expected archived version 1, got %d", state.CodebookHistory[0].Version)
	}

	// The archive must be a deep copy, not an alias
	state.Codebook.Codes[0].Properties[0] = "changed"
	if state.CodebookHistory[0].Codes[0].Properties[0] != "active" {
		t.Error("Expected archived codebook to be isolated from later edits")
	}
}

func TestCodebook_FindCodeByName(t *testing.T) {
	cb := &Codebook{
		Codes: []Code{
			{ID: "c1", Name: "Coping Strategies"},
			{ID: "c2", Name: "family support"},
		},
	}

	if got := cb.FindCodeByName("coping strategies"); got == nil || got.ID != "c1" {
		t.Errorf("Expected lookup by normalized name to find c1, got %+v", got)
	}
	if got := cb.FindCodeByName("missing"); got != nil {
		t.Errorf("Expected nil for unknown name, got %+v", got)
	}
}
