package review

import (
	"strings"
	"testing"

	"github.com/qualia-lab/qualia/internal/model"
)

func testState() *model.ProjectState {
	return &model.ProjectState{
		Codebook: &model.Codebook{
			Version: 1,
			Codes: []model.Code{
				{ID: "c1", Name: "coping strategies", Mentions: 2, Provenance: model.ProvenanceGenerated},
				{ID: "c2", Name: "family support", Mentions: 1, Provenance: model.ProvenanceGenerated},
			},
		},
		Applications: []model.CodeApplication{
			{ID: "a1", CodeID: "c1", Quote: "one day at a time"},
			{ID: "a2", CodeID: "c1", Quote: "I manage somehow"},
			{ID: "a3", CodeID: "c2", Quote: "my sister helped"},
		},
	}
}

func TestManager_ApproveCode_NoVersionBump(t *testing.T) {
	state := testState()
	mgr := NewManager()

	err := mgr.ApplyAll(state, []model.ReviewDecision{
		{Target: model.TargetCode, TargetID: "c1", Action: model.ActionApprove},
	})
	if err != nil {
		t.Fatalf("ApplyAll failed: %v", err)
	}

	if state.Codebook.Version != 1 {
		t.Errorf("Expected pure approval to keep version 1, got %d", state.Codebook.Version)
	}
	if len(state.CodebookHistory) != 0 {
		t.Errorf("Expected no archive for approvals, got %d", len(state.CodebookHistory))
	}
	if state.Codebook.FindCode("c1").Provenance != model.ProvenanceHuman {
		t.Error("Expected approved code marked human")
	}
	if len(state.ReviewLog) != 1 {
		t.Errorf("Expected 1 audit entry, got %d", len(state.ReviewLog))
	}
}

func TestManager_RejectCode_CascadesApplications(t *testing.T) {
	state := testState()
	mgr := NewManager()

	err := mgr.ApplyAll(state, []model.ReviewDecision{
		{Target: model.TargetCode, TargetID: "c1", Action: model.ActionReject},
	})
	if err != nil {
		t.Fatalf("ApplyAll failed: %v", err)
	}

	if state.Codebook.FindCode("c1") != nil {
		t.Error("Expected rejected code removed")
	}
	if len(state.Applications) != 1 {
		t.Fatalf("Expected exactly the 2 c1 applications removed, got %d remaining", len(state.Applications))
	}
	if state.Applications[0].ID != "a3" {
		t.Errorf("Expected unrelated application untouched, got %+v", state.Applications[0])
	}

	// Structural change bumps the version and archives the old codebook
	if state.Codebook.Version != 2 {
		t.Errorf("Expected version bump to 2, got %d", state.Codebook.Version)
	}
	if len(state.CodebookHistory) != 1 {
		t.Errorf("Expected pre-review codebook archived, got %d entries", len(state.CodebookHistory))
	}
	if !strings.Contains(state.ReviewLog[0].Warning, "2 applications") {
		t.Errorf("Expected cascade warning, got %q", state.ReviewLog[0].Warning)
	}
}

func TestManager_ModifyCode(t *testing.T) {
	state := testState()
	mgr := NewManager()

	err := mgr.ApplyAll(state, []model.ReviewDecision{
		{Target: model.TargetCode, TargetID: "c1", Action: model.ActionModify, Payload: map[string]any{
			"name":        "active coping",
			"description": "Deliberate stress management",
			"confidence":  0.95,
		}},
	})
	if err != nil {
		t.Fatalf("ApplyAll failed: %v", err)
	}

	code := state.Codebook.FindCode("c1")
	if code.Name != "active coping" || code.Description != "Deliberate stress management" {
		t.Errorf("Expected fields patched, got %+v", code)
	}
	if code.Provenance != model.ProvenanceHuman {
		t.Error("Expected modified code marked human")
	}
	if state.Codebook.Version != 2 {
		t.Errorf("Expected structural bump, got version %d", state.Codebook.Version)
	}
}

func TestManager_ModifyCode_UnknownField(t *testing.T) {
	state := testState()
	mgr := NewManager()

	err := mgr.ApplyAll(state, []model.ReviewDecision{
		{Target: model.TargetCode, TargetID: "c1", Action: model.ActionModify, Payload: map[string]any{
			"color": "red",
		}},
	})
	if err == nil {
		t.Fatal("Expected error for unknown payload field")
	}
	if !strings.Contains(err.Error(), "color") {
		t.Errorf("Expected error to name the field, got: %v", err)
	}
}

func TestManager_MergeCode_PreservesApplications(t *testing.T) {
	state := testState()
	mgr := NewManager()

	before := len(state.Applications)
	err := mgr.ApplyAll(state, []model.ReviewDecision{
		{Target: model.TargetCode, TargetID: "c1", Action: model.ActionMerge, Payload: map[string]any{
			"target_code_id": "c2",
		}},
	})
	if err != nil {
		t.Fatalf("ApplyAll failed: %v", err)
	}

	if len(state.Applications) != before {
		t.Errorf("Expected merge to preserve all %d applications, got %d", before, len(state.Applications))
	}
	for _, app := range state.Applications {
		if app.CodeID != "c2" {
			t.Errorf("Expected all applications on the merge target, got %+v", app)
		}
	}

	target := state.Codebook.FindCode("c2")
	if target.Mentions != 3 {
		t.Errorf("Expected mentions transferred (2+1), got %d", target.Mentions)
	}
	if state.Codebook.FindCode("c1") != nil {
		t.Error("Expected merge source removed")
	}
}

func TestManager_MergeCode_SelfMergeRejected(t *testing.T) {
	state := testState()
	mgr := NewManager()

	_, err := mgr.Apply(state, model.ReviewDecision{
		Target: model.TargetCode, TargetID: "c1", Action: model.ActionMerge,
		Payload: map[string]any{"target_code_id": "c1"},
	})
	if err == nil {
		t.Fatal("Expected error for self-merge")
	}
}

func TestManager_SplitCode(t *testing.T) {
	state := testState()
	mgr := NewManager()

	before := len(state.Applications)
	err := mgr.ApplyAll(state, []model.ReviewDecision{
		{Target: model.TargetCode, TargetID: "c1", Action: model.ActionSplit, Payload: map[string]any{
			"new_codes": []any{
				map[string]any{"name": "active coping", "description": "Doing something about it"},
				map[string]any{"name": "avoidant coping", "description": "Looking away from it"},
			},
		}},
	})
	if err != nil {
		t.Fatalf("ApplyAll failed: %v", err)
	}

	if state.Codebook.FindCode("c1") != nil {
		t.Error("Expected split source removed")
	}
	if len(state.Codebook.Codes) != 3 {
		t.Fatalf("Expected 3 codes (2 splits + family support), got %d", len(state.Codebook.Codes))
	}

	// Split never deletes applications; they wait for manual reassignment
	if len(state.Applications) != before {
		t.Errorf("Expected all %d applications kept, got %d", before, len(state.Applications))
	}
	if !strings.Contains(state.ReviewLog[0].Warning, "manual reassignment") {
		t.Errorf("Expected reassignment warning, got %q", state.ReviewLog[0].Warning)
	}
}

func TestManager_RejectApplication(t *testing.T) {
	state := testState()
	mgr := NewManager()

	err := mgr.ApplyAll(state, []model.ReviewDecision{
		{Target: model.TargetApplication, TargetID: "a2", Action: model.ActionReject},
	})
	if err != nil {
		t.Fatalf("ApplyAll failed: %v", err)
	}

	if len(state.Applications) != 2 {
		t.Errorf("Expected 2 applications after reject, got %d", len(state.Applications))
	}
	// Application decisions are not structural
	if state.Codebook.Version != 1 {
		t.Errorf("Expected no version bump, got %d", state.Codebook.Version)
	}
}

func TestManager_UnsupportedCombination(t *testing.T) {
	state := testState()
	mgr := NewManager()

	_, err := mgr.Apply(state, model.ReviewDecision{
		Target: model.TargetApplication, TargetID: "a1", Action: model.ActionSplit,
	})
	if err == nil {
		t.Fatal("Expected error for unsupported target/action combination")
	}
	if !strings.Contains(err.Error(), "split") || !strings.Contains(err.Error(), "application") {
		t.Errorf("Expected error to name action and target, got: %v", err)
	}
}

func TestManager_ApplyAll_StopsAtFirstFailure(t *testing.T) {
	state := testState()
	mgr := NewManager()

	err := mgr.ApplyAll(state, []model.ReviewDecision{
		{Target: model.TargetCode, TargetID: "c1", Action: model.ActionApprove},
		{Target: model.TargetCode, TargetID: "missing", Action: model.ActionApprove},
		{Target: model.TargetCode, TargetID: "c2", Action: model.ActionApprove},
	})
	if err == nil {
		t.Fatal("Expected batch to fail on the second decision")
	}
	if !strings.Contains(err.Error(), "decision 1") {
		t.Errorf("Expected error to name the failing decision index, got: %v", err)
	}

	// The first decision applied before the failure
	if len(state.ReviewLog) != 1 {
		t.Errorf("Expected 1 applied decision in the log, got %d", len(state.ReviewLog))
	}
	if state.Codebook.FindCode("c2").Provenance == model.ProvenanceHuman {
		t.Error("Expected third decision not applied after failure")
	}
}
