package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/qualia-lab/qualia/internal/model"
	"github.com/qualia-lab/qualia/internal/review"
	"github.com/qualia-lab/qualia/internal/store"
	"github.com/spf13/cobra"
)

var reviewProject string

// reviewCmd represents the review command
var reviewCmd = &cobra.Command{
	Use:   "review <decisions-file>",
	Short: "Apply human review decisions to a paused project",
	Long: `Review applies a batch of decisions to the project's codebook and
applications. The decisions file is a JSON array; each entry names a
target (code or application), a target id, an action, and an optional
payload:

  [
    {"target": "code", "target_id": "...", "action": "approve"},
    {"target": "code", "target_id": "...", "action": "modify",
     "payload": {"description": "Clearer wording"}},
    {"target": "code", "target_id": "...", "action": "merge",
     "payload": {"target_code_id": "..."}},
    {"target": "application", "target_id": "...", "action": "reject"}
  ]

Structural changes (reject, modify, merge, split) bump the codebook
version; the pre-review codebook is archived in history. Every decision
is appended to the project's review log.

Example:
  qualia review decisions.json --project pilot-study`,
	Args: cobra.ExactArgs(1),
	RunE: runReview,
}

func init() {
	rootCmd.AddCommand(reviewCmd)

	reviewCmd.Flags().StringVar(&reviewProject, "project", "default", "project name")
}

func runReview(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read decisions file: %w", err)
	}

	var decisions []model.ReviewDecision
	if err := json.Unmarshal(data, &decisions); err != nil {
		return fmt.Errorf("decisions file is not a valid JSON decision list: %w", err)
	}
	if len(decisions) == 0 {
		return fmt.Errorf("decisions file contains no decisions")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := store.NewDiskStore(cfg.Project.Dir)
	if err != nil {
		return err
	}
	state, err := st.Load(reviewProject)
	if err != nil {
		return err
	}

	versionBefore := 0
	if state.Codebook != nil {
		versionBefore = state.Codebook.Version
	}

	mgr := review.NewManager()
	if err := mgr.ApplyAll(state, decisions); err != nil {
		return err
	}
	if err := st.Save(state); err != nil {
		return err
	}

	applied := state.ReviewLog[len(state.ReviewLog)-len(decisions):]
	for _, entry := range applied {
		fmt.Printf("✓ %s %s: %s\n", entry.Action, entry.Target, entry.TargetID)
		if entry.Warning != "" {
			fmt.Printf("  warning: %s\n", entry.Warning)
		}
	}

	if state.Codebook != nil && state.Codebook.Version > versionBefore {
		fmt.Printf("\nCodebook bumped to v%d (previous version archived).\n", state.Codebook.Version)
	}
	if state.Status == model.StatusPausedForReview {
		fmt.Printf("\nResume the pipeline with:\n  qualia code <corpus-dir> --project %s --resume-from finalize\n", state.ID)
	}
	return nil
}
