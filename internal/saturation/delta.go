package saturation

import (
	"fmt"
	"math"
	"sort"

	"github.com/qualia-lab/qualia/internal/model"
)

// Delta describes how one codebook snapshot differs from another. Codes are
// matched by normalized name, not id, so renumbered or regenerated codes
// still compare as the same theme.
type Delta struct {
	Added     []string `json:"added"`
	Removed   []string `json:"removed"`
	Modified  []string `json:"modified"`
	Stable    []string `json:"stable"`
	PctChange float64  `json:"pct_change"` // (added+removed+modified) / union of names
}

// SaturationCheck is the outcome of comparing the current codebook against
// its most recent archived snapshot
type SaturationCheck struct {
	Saturated bool    `json:"saturated"`
	PctChange float64 `json:"pct_change"`
	Threshold float64 `json:"threshold"`
	Message   string  `json:"message"`
}

// Compare computes the delta between two codebook snapshots. A code present
// in both counts as modified when its description changed, its parent
// changed, or its confidence moved by more than 0.1.
func Compare(old, new *model.Codebook) Delta {
	oldByName := indexByName(old)
	newByName := indexByName(new)

	var delta Delta
	for name, newCode := range newByName {
		oldCode, ok := oldByName[name]
		if !ok {
			delta.Added = append(delta.Added, name)
			continue
		}
		if oldCode.Description != newCode.Description ||
			oldCode.ParentID != newCode.ParentID ||
			math.Abs(oldCode.Confidence-newCode.Confidence) > 0.1 {
			delta.Modified = append(delta.Modified, name)
		} else {
			delta.Stable = append(delta.Stable, name)
		}
	}
	for name := range oldByName {
		if _, ok := newByName[name]; !ok {
			delta.Removed = append(delta.Removed, name)
		}
	}

	sort.Strings(delta.Added)
	sort.Strings(delta.Removed)
	sort.Strings(delta.Modified)
	sort.Strings(delta.Stable)

	union := len(delta.Added) + len(delta.Removed) + len(delta.Modified) + len(delta.Stable)
	if union < 1 {
		union = 1
	}
	changed := len(delta.Added) + len(delta.Removed) + len(delta.Modified)
	delta.PctChange = float64(changed) / float64(union)

	return delta
}

// CheckSaturation compares the project's current codebook against the most
// recent history entry. The first iteration always continues: with no prior
// snapshot there is nothing to converge against.
func CheckSaturation(state *model.ProjectState, threshold float64) SaturationCheck {
	if len(state.CodebookHistory) == 0 || state.Codebook == nil {
		return SaturationCheck{
			Saturated: false,
			PctChange: 1.0,
			Threshold: threshold,
			Message:   "no prior codebook snapshot; first iteration always continues",
		}
	}

	prev := state.CodebookHistory[len(state.CodebookHistory)-1]
	delta := Compare(&prev, state.Codebook)

	check := SaturationCheck{
		PctChange: delta.PctChange,
		Threshold: threshold,
		Saturated: delta.PctChange < threshold,
	}
	if check.Saturated {
		check.Message = fmt.Sprintf("codebook change %.1f%% below threshold %.1f%%: saturated",
			delta.PctChange*100, threshold*100)
	} else {
		check.Message = fmt.Sprintf("codebook change %.1f%% at or above threshold %.1f%%: continue",
			delta.PctChange*100, threshold*100)
	}
	return check
}

// indexByName maps normalized code name to code for one snapshot. When two
// codes normalize to the same name the later one wins, matching the merge
// policy's no-duplicate-insertion rule.
func indexByName(cb *model.Codebook) map[string]model.Code {
	out := make(map[string]model.Code)
	if cb == nil {
		return out
	}
	for _, c := range cb.Codes {
		out[model.NormalizeCodeName(c.Name)] = c
	}
	return out
}
