package saturation

import (
	"testing"

	"github.com/qualia-lab/qualia/internal/model"
)

func codebook(codes ...model.Code) *model.Codebook {
	return &model.Codebook{Version: 1, Codes: codes}
}

func TestCompare_SelfComparisonIsZeroChange(t *testing.T) {
	cb := codebook(
		model.Code{Name: "coping strategies", Description: "Ways of managing stress", Confidence: 0.8},
		model.Code{Name: "family support", Description: "Help from relatives", Confidence: 0.7},
	)

	delta := Compare(cb, cb)

	if delta.PctChange != 0 {
		t.Errorf("Expected pct_change 0 for self-comparison, got %f", delta.PctChange)
	}
	if len(delta.Stable) != 2 {
		t.Errorf("Expected both codes stable, got %v", delta.Stable)
	}
	if len(delta.Added)+len(delta.Removed)+len(delta.Modified) != 0 {
		t.Errorf("Expected no changes, got %+v", delta)
	}
}

func TestCompare_AddRemoveModify(t *testing.T) {
	old := codebook(
		model.Code{Name: "coping strategies", Description: "Ways of managing stress", Confidence: 0.8},
		model.Code{Name: "dropped theme", Description: "Gone next pass"},
		model.Code{Name: "stable theme", Description: "Unchanged"},
	)
	new := codebook(
		model.Code{Name: "Coping Strategies", Description: "Ways of managing daily stress", Confidence: 0.8},
		model.Code{Name: "stable theme", Description: "Unchanged"},
		model.Code{Name: "new theme", Description: "Emerged this pass"},
	)

	delta := Compare(old, new)

	if len(delta.Added) != 1 || delta.Added[0] != "new theme" {
		t.Errorf("Expected added [new theme], got %v", delta.Added)
	}
	if len(delta.Removed) != 1 || delta.Removed[0] != "dropped theme" {
		t.Errorf("Expected removed [dropped theme], got %v", delta.Removed)
	}
	if len(delta.Modified) != 1 || delta.Modified[0] != "coping strategies" {
		t.Errorf("Expected modified [coping strategies], got %v", delta.Modified)
	}
	if len(delta.Stable) != 1 || delta.Stable[0] != "stable theme" {
		t.Errorf("Expected stable [stable theme], got %v", delta.Stable)
	}

	// 3 changed over a union of 4 names
	if delta.PctChange != 0.75 {
		t.Errorf("Expected pct_change 0.75, got %f", delta.PctChange)
	}
}

func TestCompare_ConfidenceTolerance(t *testing.T) {
	old := codebook(model.Code{Name: "theme", Description: "d", Confidence: 0.70})

	// Within the 0.1 tolerance: stable
	within := codebook(model.Code{Name: "theme", Description: "d", Confidence: 0.75})
	if delta := Compare(old, within); len(delta.Stable) != 1 {
		t.Errorf("Expected small confidence drift to be stable, got %+v", delta)
	}

	// Beyond the tolerance: modified
	beyond := codebook(model.Code{Name: "theme", Description: "d", Confidence: 0.85})
	if delta := Compare(old, beyond); len(delta.Modified) != 1 {
		t.Errorf("Expected large confidence drift to be modified, got %+v", delta)
	}
}

func TestCompare_EmptyBothSides(t *testing.T) {
	delta := Compare(codebook(), codebook())
	if delta.PctChange != 0 {
		t.Errorf("Expected pct_change 0 for two empty codebooks, got %f", delta.PctChange)
	}
}

func TestCheckSaturation_FirstIterationContinues(t *testing.T) {
	state := &model.ProjectState{
		Codebook: codebook(model.Code{Name: "theme"}),
	}

	check := CheckSaturation(state, 0.15)

	if check.Saturated {
		t.Error("Expected first iteration to continue")
	}
	if check.PctChange != 1.0 {
		t.Errorf("Expected pct_change 1.0 with no history, got %f", check.PctChange)
	}
	if check.Message == "" {
		t.Error("Expected explanatory message")
	}
}

func TestCheckSaturation_AgainstLatestSnapshot(t *testing.T) {
	stable := model.Code{Name: "theme", Description: "d"}
	state := &model.ProjectState{
		Codebook:        codebook(stable),
		CodebookHistory: []model.Codebook{*codebook(stable)},
	}

	check := CheckSaturation(state, 0.15)

	if !check.Saturated {
		t.Errorf("Expected saturation for unchanged codebook, got %+v", check)
	}
	if check.PctChange != 0 {
		t.Errorf("Expected pct_change 0, got %f", check.PctChange)
	}
}
