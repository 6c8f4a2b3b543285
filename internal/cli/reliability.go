package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/qualia-lab/qualia/internal/model"
	"github.com/qualia-lab/qualia/internal/reliability"
	"github.com/qualia-lab/qualia/internal/segment"
	"github.com/qualia-lab/qualia/internal/store"
	"github.com/spf13/cobra"
)

var (
	relProject string
	relDir     string
	relTimeout time.Duration
	relWorkers int
	irrPasses  int
	irrModels  []string
	stabRuns   int
)

// irrCmd represents the irr command
var irrCmd = &cobra.Command{
	Use:   "irr",
	Short: "Run an inter-rater reliability study",
	Long: `IRR codes the project's corpus several times from an empty codebook,
each pass prompted as a distinct rater (and optionally a distinct model),
then measures agreement between the resulting codebooks:
- Percent agreement over aligned code names
- Cohen's kappa (2 passes) or Fleiss' kappa (3+)
- A Landis & Koch interpretation bucket

Passes bypass the response cache so agreement is never an artifact of
replayed responses.

Example:
  qualia irr --project pilot-study --passes 2
  qualia irr --project pilot-study --passes 3 --models gpt-4o-mini,gpt-4o,o3-mini`,
	RunE: runIRR,
}

// stabilityCmd represents the stability command
var stabilityCmd = &cobra.Command{
	Use:   "stability",
	Short: "Run a test-retest stability study",
	Long: `Stability codes the project's corpus several times under identical
configuration and scores each code name by the fraction of runs that
rediscover it (stable >= 0.8, moderate >= 0.5, unstable below).

Example:
  qualia stability --project pilot-study --runs 3`,
	RunE: runStability,
}

func init() {
	rootCmd.AddCommand(irrCmd)
	rootCmd.AddCommand(stabilityCmd)

	for _, c := range []*cobra.Command{irrCmd, stabilityCmd} {
		c.Flags().StringVar(&relProject, "project", "default", "project name")
		c.Flags().StringVar(&relDir, "dir", "", "corpus directory (only needed when the project has not ingested yet)")
		c.Flags().DurationVar(&relTimeout, "timeout", 60*time.Minute, "overall study timeout")
		c.Flags().IntVar(&relWorkers, "workers", 0, "parallel passes (default: sequential)")
	}

	irrCmd.Flags().IntVar(&irrPasses, "passes", 2, "number of independent coding passes")
	irrCmd.Flags().StringSliceVar(&irrModels, "models", nil, "per-pass model names (one per pass)")
	stabilityCmd.Flags().IntVar(&stabRuns, "runs", 3, "number of identical coding runs")
}

func runIRR(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), relTimeout)
	defer cancel()

	analyzer, state, st, err := setupStudy()
	if err != nil {
		return err
	}

	result, err := analyzer.RunIRR(ctx, state, irrPasses, irrModels)
	if err != nil {
		return err
	}
	if err := st.Save(state); err != nil {
		return err
	}

	fmt.Printf("Inter-rater reliability (%d passes)\n", result.Passes)
	fmt.Printf("  Aligned codes:     %d\n", len(result.Aligned))
	fmt.Printf("  Unmatched codes:   %d\n", len(result.Unmatched))
	fmt.Printf("  Percent agreement: %.2f\n", result.PercentAgreement)
	if result.Passes == 2 {
		fmt.Printf("  Cohen's kappa:     %.3f\n", result.CohensKappa)
	}
	fmt.Printf("  Fleiss' kappa:     %.3f\n", result.FleissKappa)
	fmt.Printf("  Interpretation:    %s\n", result.Interpretation)
	return nil
}

func runStability(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), relTimeout)
	defer cancel()

	analyzer, state, st, err := setupStudy()
	if err != nil {
		return err
	}

	result, err := analyzer.RunStability(ctx, state, stabRuns)
	if err != nil {
		return err
	}
	if err := st.Save(state); err != nil {
		return err
	}

	fmt.Printf("Code stability (%d runs)\n", result.Runs)
	for _, cs := range result.Codes {
		fmt.Printf("  %-8s %.2f  %s\n", cs.Class, cs.Score, cs.Name)
	}
	fmt.Printf("  Overall: %.2f\n", result.OverallScore)
	return nil
}

// setupStudy wires the analyzer and loads (or ingests) the project corpus
func setupStudy() (*reliability.Analyzer, *model.ProjectState, store.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	if relWorkers > 0 {
		cfg.Concurrency.ReliabilityWorkers = relWorkers
	}

	provider, err := buildProvider(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	st, err := store.NewDiskStore(cfg.Project.Dir)
	if err != nil {
		return nil, nil, nil, err
	}
	state, err := openProject(st, relProject)
	if err != nil {
		return nil, nil, nil, err
	}

	if len(state.Documents) == 0 {
		if relDir == "" {
			return nil, nil, nil, fmt.Errorf("project %s has no documents; run 'qualia code' first or pass --dir", relProject)
		}
		docs, err := segment.LoadDocuments(relDir, cfg.Project.MaxDocBytes)
		if err != nil {
			return nil, nil, nil, err
		}
		state.Documents = docs
		if err := st.Save(state); err != nil {
			return nil, nil, nil, err
		}
	}

	limiter := buildLimiter(cfg)
	return reliability.NewAnalyzer(provider, limiter, cfg), state, st, nil
}
