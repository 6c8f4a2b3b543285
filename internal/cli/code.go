package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/qualia-lab/qualia/internal/cache"
	"github.com/qualia-lab/qualia/internal/coder"
	"github.com/qualia-lab/qualia/internal/model"
	"github.com/qualia-lab/qualia/internal/pipeline"
	"github.com/qualia-lab/qualia/internal/store"
	"github.com/spf13/cobra"
)

var (
	projectName   string
	corpusDir     string
	resumeFrom    string
	codeTimeout   time.Duration
	noCache       bool
	llmProvider   string
	llmModel      string
	maxIterations int
	threshold     float64
	wordBudget    int
	methodology   string
)

// codeCmd represents the code command
var codeCmd = &cobra.Command{
	Use:   "code <corpus-dir>",
	Short: "Code a corpus of transcripts until the codebook saturates",
	Long: `Code runs the full analysis pipeline over a directory of .txt/.md
transcripts:
- Ingest documents, detecting speakers in interview transcripts
- Segment into coherent chunks (speaker turns, then paragraph groups)
- Code every segment against the evolving codebook, pass after pass,
  until codebook change falls below the saturation threshold
- Pause for human review of the generated codebook
- After review, finalize the codebook and coding summary

Example:
  qualia code ./interviews
  qualia code ./interviews --project pilot-study --max-iterations 5
  qualia code ./interviews --project pilot-study --resume-from finalize`,
	Args: cobra.ExactArgs(1),
	RunE: runCode,
}

func init() {
	rootCmd.AddCommand(codeCmd)

	codeCmd.Flags().StringVar(&projectName, "project", "default", "project name (state persists under this name)")
	codeCmd.Flags().StringVar(&resumeFrom, "resume-from", "", "resume the pipeline at this stage (ingest, open_coding, finalize)")
	codeCmd.Flags().DurationVar(&codeTimeout, "timeout", 30*time.Minute, "overall run timeout")
	codeCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the analysis-response cache")

	// Analysis flags
	codeCmd.Flags().StringVar(&llmProvider, "provider", "", "analysis provider (openai, anthropic, ollama)")
	codeCmd.Flags().StringVar(&llmModel, "model", "", "analysis model name")

	// Coding flags
	codeCmd.Flags().IntVar(&maxIterations, "max-iterations", 0, "cap on constant-comparison passes")
	codeCmd.Flags().Float64Var(&threshold, "saturation-threshold", 0, "codebook change fraction below which coding stops")
	codeCmd.Flags().IntVar(&wordBudget, "word-budget", 0, "target words per segment")
	codeCmd.Flags().StringVar(&methodology, "methodology", "", "coding methodology label recorded on the codebook")
}

func runCode(cmd *cobra.Command, args []string) error {
	corpusDir = args[0]
	ctx, cancel := context.WithTimeout(context.Background(), codeTimeout)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyCodeFlags(cfg)

	provider, err := buildProvider(cfg)
	if err != nil {
		return err
	}

	st, err := store.NewDiskStore(cfg.Project.Dir)
	if err != nil {
		return err
	}
	state, err := openProject(st, projectName)
	if err != nil {
		return err
	}

	if state.Status == model.StatusPausedForReview && resumeFrom == "" {
		return fmt.Errorf("project %s is paused for review of stage %s; apply review decisions with 'qualia review', then rerun with --resume-from",
			state.ID, state.CurrentPhase)
	}

	c := coder.New(coder.Options{
		Provider:      provider,
		Cache:         cache.FromConfig(cfg.Cache),
		Limiter:       buildLimiter(cfg),
		Methodology:   cfg.Coding.Methodology,
		Threshold:     cfg.Coding.SaturationThreshold,
		MaxIterations: cfg.Coding.MaxIterations,
		Verbose:       cfg.Output.Verbose,
	})

	engine := pipeline.NewEngine([]pipeline.Stage{
		&pipeline.IngestStage{Dir: corpusDir},
		&pipeline.OpenCodingStage{Coder: c},
		&pipeline.FinalizeStage{},
	}, st.Save, cfg.Output.Verbose)

	if err := engine.Run(ctx, state, cfg, resumeFrom); err != nil {
		return err
	}

	switch state.Status {
	case model.StatusPausedForReview:
		fmt.Printf("Generated codebook v%d with %d codes (%d applications, %d passes).\n",
			state.Codebook.Version, len(state.Codebook.Codes), len(state.Applications), state.Iterations)
		fmt.Printf("\nPaused for review of stage %s. Next:\n", state.CurrentPhase)
		fmt.Printf("  qualia review decisions.json --project %s\n", state.ID)
		fmt.Printf("  qualia code %s --project %s --resume-from finalize\n", corpusDir, state.ID)
	case model.StatusCompleted:
		if summary, ok := state.Artifacts[pipeline.ArtifactCodingSummary]; ok {
			fmt.Println(summary)
		}
		fmt.Printf("Project %s completed.\n", state.ID)
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "\nState saved under %s\n", cfg.Project.Dir)
	}
	return nil
}

// applyCodeFlags overlays explicitly-set CLI flags onto the loaded config
func applyCodeFlags(cfg *model.Config) {
	if llmProvider != "" {
		cfg.LLM.Provider = llmProvider
	}
	if llmModel != "" {
		cfg.LLM.Model = llmModel
	}
	if maxIterations > 0 {
		cfg.Coding.MaxIterations = maxIterations
	}
	if threshold > 0 {
		cfg.Coding.SaturationThreshold = threshold
	}
	if wordBudget > 0 {
		cfg.Segmenter.WordBudget = wordBudget
	}
	if methodology != "" {
		cfg.Coding.Methodology = methodology
	}
	if noCache {
		cfg.Cache.Enabled = false
	}
}
