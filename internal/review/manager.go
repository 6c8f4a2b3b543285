package review

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/qualia-lab/qualia/internal/model"
)

// Manager applies human review decisions to project state. Decisions are
// applied one at a time and appended to the audit log as they land; a batch
// stops at the first failing decision with everything before it applied.
type Manager struct{}

// NewManager creates a review manager
func NewManager() *Manager {
	return &Manager{}
}

// ApplyAll applies each decision in order. When any applied decision was a
// structural code action, the codebook is archived and its version bumped
// before the pipeline resumes; pure approvals never bump the version.
func (m *Manager) ApplyAll(state *model.ProjectState, decisions []model.ReviewDecision) error {
	structural := false
	for i, d := range decisions {
		wasStructural, err := m.Apply(state, d)
		if err != nil {
			return fmt.Errorf("decision %d (%s %s): %w", i, d.Action, d.Target, err)
		}
		structural = structural || wasStructural
	}

	if structural {
		state.ArchiveCodebook()
	}
	return nil
}

// Apply applies one decision and appends it to the audit log. The returned
// bool reports whether the decision structurally changed the codebook
// (modify, merge, split, or reject of a code).
func (m *Manager) Apply(state *model.ProjectState, d model.ReviewDecision) (bool, error) {
	if state.Codebook == nil {
		return false, fmt.Errorf("project has no codebook to review")
	}

	var structural bool
	var err error

	switch {
	case d.Target == model.TargetCode && d.Action == model.ActionApprove:
		err = m.approveCode(state, &d)

	case d.Target == model.TargetCode && d.Action == model.ActionReject:
		structural = true
		err = m.rejectCode(state, &d)

	case d.Target == model.TargetCode && d.Action == model.ActionModify:
		structural = true
		err = m.modifyCode(state, &d)

	case d.Target == model.TargetCode && d.Action == model.ActionMerge:
		structural = true
		err = m.mergeCode(state, &d)

	case d.Target == model.TargetCode && d.Action == model.ActionSplit:
		structural = true
		err = m.splitCode(state, &d)

	case d.Target == model.TargetApplication && d.Action == model.ActionApprove:
		err = m.approveApplication(state, &d)

	case d.Target == model.TargetApplication && d.Action == model.ActionReject:
		err = m.rejectApplication(state, &d)

	default:
		return false, fmt.Errorf("unsupported review action %q on target %q", d.Action, d.Target)
	}

	if err != nil {
		return false, err
	}

	d.AppliedAt = time.Now().UTC()
	state.ReviewLog = append(state.ReviewLog, d)
	return structural, nil
}

// approveCode marks the code as human-reviewed without structural change
func (m *Manager) approveCode(state *model.ProjectState, d *model.ReviewDecision) error {
	code := state.Codebook.FindCode(d.TargetID)
	if code == nil {
		return fmt.Errorf("code %s not found", d.TargetID)
	}
	code.Provenance = model.ProvenanceHuman
	return nil
}

// rejectCode deletes the code and cascade-deletes every application
// referencing it. The cascade is explicit: affected application ids are
// collected first, then removed, so the operation stays auditable.
func (m *Manager) rejectCode(state *model.ProjectState, d *model.ReviewDecision) error {
	code := state.Codebook.FindCode(d.TargetID)
	if code == nil {
		return fmt.Errorf("code %s not found", d.TargetID)
	}

	affected := state.ApplicationsForCode(d.TargetID)
	removeApplications(state, affected)
	removeCode(state.Codebook, d.TargetID)

	if len(affected) > 0 {
		d.Warning = fmt.Sprintf("cascade-deleted %d applications", len(affected))
	}
	return nil
}

// modifyCode patches named fields from the decision payload
func (m *Manager) modifyCode(state *model.ProjectState, d *model.ReviewDecision) error {
	code := state.Codebook.FindCode(d.TargetID)
	if code == nil {
		return fmt.Errorf("code %s not found", d.TargetID)
	}

	for field, value := range d.Payload {
		switch field {
		case "name":
			s, ok := value.(string)
			if !ok || s == "" {
				return fmt.Errorf("modify payload field %q must be a non-empty string", field)
			}
			code.Name = s
		case "description":
			s, ok := value.(string)
			if !ok {
				return fmt.Errorf("modify payload field %q must be a string", field)
			}
			code.Description = s
		case "properties":
			props, err := stringSlice(value)
			if err != nil {
				return fmt.Errorf("modify payload field %q: %w", field, err)
			}
			code.Properties = props
		case "confidence":
			f, ok := value.(float64)
			if !ok || f < 0 || f > 1 {
				return fmt.Errorf("modify payload field %q must be a number in [0,1]", field)
			}
			code.Confidence = f
		default:
			return fmt.Errorf("modify payload has unknown field %q", field)
		}
	}

	code.Provenance = model.ProvenanceHuman
	return nil
}

// mergeCode reassigns every application from the source code to the
// payload's target, then deletes the source. Applications are preserved,
// not dropped; contrast with reject.
func (m *Manager) mergeCode(state *model.ProjectState, d *model.ReviewDecision) error {
	source := state.Codebook.FindCode(d.TargetID)
	if source == nil {
		return fmt.Errorf("merge source code %s not found", d.TargetID)
	}

	targetID, ok := d.Payload["target_code_id"].(string)
	if !ok || targetID == "" {
		return fmt.Errorf("merge payload requires target_code_id")
	}
	target := state.Codebook.FindCode(targetID)
	if target == nil {
		return fmt.Errorf("merge target code %s not found", targetID)
	}
	if targetID == d.TargetID {
		return fmt.Errorf("cannot merge code %s into itself", targetID)
	}

	moved := 0
	for i := range state.Applications {
		if state.Applications[i].CodeID == d.TargetID {
			state.Applications[i].CodeID = targetID
			moved++
		}
	}
	target.Mentions += source.Mentions

	removeCode(state.Codebook, d.TargetID)
	d.Warning = fmt.Sprintf("reassigned %d applications to %s", moved, target.Name)
	return nil
}

// splitCode creates one new code per payload entry and deletes the source.
// Applications that referenced the source are left pointing at the deleted
// id rather than guessed onto a split result; the decision's audit entry
// carries a warning so a reviewer can reassign them explicitly.
func (m *Manager) splitCode(state *model.ProjectState, d *model.ReviewDecision) error {
	source := state.Codebook.FindCode(d.TargetID)
	if source == nil {
		return fmt.Errorf("split source code %s not found", d.TargetID)
	}

	raw, ok := d.Payload["new_codes"]
	if !ok {
		return fmt.Errorf("split payload requires new_codes")
	}
	entries, ok := raw.([]any)
	if !ok || len(entries) == 0 {
		return fmt.Errorf("split payload new_codes must be a non-empty list")
	}

	for i, entry := range entries {
		fields, ok := entry.(map[string]any)
		if !ok {
			return fmt.Errorf("split payload new_codes[%d] must be an object", i)
		}
		name, _ := fields["name"].(string)
		if name == "" {
			return fmt.Errorf("split payload new_codes[%d] requires a name", i)
		}
		description, _ := fields["description"].(string)

		state.Codebook.Codes = append(state.Codebook.Codes, model.Code{
			ID:          uuid.NewString(),
			Name:        name,
			Description: description,
			ParentID:    source.ParentID,
			Level:       source.Level,
			Confidence:  source.Confidence,
			Provenance:  model.ProvenanceHuman,
			Version:     state.Codebook.Version,
		})
	}

	orphaned := len(state.ApplicationsForCode(d.TargetID))
	removeCode(state.Codebook, d.TargetID)

	if orphaned > 0 {
		d.Warning = fmt.Sprintf("%d applications still reference the split source and need manual reassignment", orphaned)
	}
	return nil
}

// approveApplication marks one application as human-reviewed
func (m *Manager) approveApplication(state *model.ProjectState, d *model.ReviewDecision) error {
	for i := range state.Applications {
		if state.Applications[i].ID == d.TargetID {
			state.Applications[i].Provenance = model.ProvenanceHuman
			return nil
		}
	}
	return fmt.Errorf("application %s not found", d.TargetID)
}

// rejectApplication deletes one application
func (m *Manager) rejectApplication(state *model.ProjectState, d *model.ReviewDecision) error {
	for i := range state.Applications {
		if state.Applications[i].ID == d.TargetID {
			state.Applications = append(state.Applications[:i], state.Applications[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("application %s not found", d.TargetID)
}

// removeCode deletes a code from the codebook by id
func removeCode(cb *model.Codebook, id string) {
	for i := range cb.Codes {
		if cb.Codes[i].ID == id {
			cb.Codes = append(cb.Codes[:i], cb.Codes[i+1:]...)
			return
		}
	}
}

// removeApplications deletes the applications with the given ids
func removeApplications(state *model.ProjectState, ids []string) {
	if len(ids) == 0 {
		return
	}
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	kept := state.Applications[:0]
	for _, app := range state.Applications {
		if !drop[app.ID] {
			kept = append(kept, app)
		}
	}
	state.Applications = kept
}

// stringSlice converts a decoded payload value to []string
func stringSlice(value any) ([]string, error) {
	items, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("must be a list of strings")
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("must be a list of strings")
		}
		out = append(out, s)
	}
	return out, nil
}
