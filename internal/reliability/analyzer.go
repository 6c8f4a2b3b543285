package reliability

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/qualia-lab/qualia/internal/coder"
	"github.com/qualia-lab/qualia/internal/llm"
	"github.com/qualia-lab/qualia/internal/model"
	"github.com/qualia-lab/qualia/internal/segment"
	"github.com/qualia-lab/qualia/internal/worker"
)

// promptVariations are appended to the system prompt so IRR passes behave
// like distinct raters instead of replaying one rater N times. Pass i uses
// variation i mod len.
var promptVariations = []string{
	"Prioritize recall: surface every plausible concept, even tentative ones.",
	"Prioritize precision: only propose codes with strong direct support in the text.",
	"Read for process and action: prefer gerund-form codes describing what is happening.",
	"Read for meaning and emotion: prefer codes describing how participants experience events.",
	"Read for structure and context: prefer codes describing conditions and circumstances.",
}

// Analyzer runs repeated independent coding passes over the same corpus
// and measures how well their codebooks agree.
//
// Passes deliberately bypass the response cache: a cache hit would replay
// one rater's answer and report false agreement.
type Analyzer struct {
	provider llm.Provider
	limiter  *worker.Limiter
	cfg      *model.Config
	verbose  bool
}

// NewAnalyzer creates an Analyzer. The limiter may be nil.
func NewAnalyzer(provider llm.Provider, limiter *worker.Limiter, cfg *model.Config) *Analyzer {
	return &Analyzer{
		provider: provider,
		limiter:  limiter,
		cfg:      cfg,
		verbose:  cfg.Output.Verbose,
	}
}

// RunIRR performs an inter-rater study: `passes` independent codings of the
// project's documents, each with its own prompt variation (and model, when
// `models` supplies one per pass). The result is appended to state.IRRResults.
func (a *Analyzer) RunIRR(ctx context.Context, state *model.ProjectState, passes int, models []string) (*model.IRRResult, error) {
	if passes < 2 {
		return nil, fmt.Errorf("inter-rater study needs at least 2 passes, got %d", passes)
	}
	if len(models) > 0 && len(models) != passes {
		return nil, fmt.Errorf("got %d models for %d passes; supply one per pass or none", len(models), passes)
	}

	passNames, err := a.runPasses(ctx, state, passes, func(i int) (string, string) {
		system := llm.DefaultSystemPrompt + "\n\n" + promptVariations[i%len(promptVariations)]
		m := ""
		if len(models) > 0 {
			m = models[i]
		}
		return system, m
	})
	if err != nil {
		return nil, err
	}

	matrix := BuildMatrix(passNames)
	aligned, unmatched := Alignment(matrix)

	result := &model.IRRResult{
		RunAt:            time.Now(),
		Passes:           passes,
		Stage:            "open_coding",
		Models:           models,
		Aligned:          aligned,
		Unmatched:        unmatched,
		Matrix:           matrix,
		PercentAgreement: PercentAgreement(matrix),
		FleissKappa:      FleissKappa(matrix, passes),
	}
	if passes == 2 {
		result.CohensKappa = CohensKappa(matrix)
		result.Interpretation = Interpret(result.CohensKappa)
	} else {
		result.Interpretation = Interpret(result.FleissKappa)
	}

	state.IRRResults = append(state.IRRResults, *result)
	return result, nil
}

// RunStability performs a test-retest study: `runs` codings under identical
// configuration, scoring each code name by the fraction of runs that
// produced it. The result is appended to state.StabilityResults.
func (a *Analyzer) RunStability(ctx context.Context, state *model.ProjectState, runs int) (*model.StabilityResult, error) {
	if runs < 2 {
		return nil, fmt.Errorf("stability study needs at least 2 runs, got %d", runs)
	}

	passNames, err := a.runPasses(ctx, state, runs, func(int) (string, string) {
		return "", ""
	})
	if err != nil {
		return nil, err
	}

	matrix := BuildMatrix(passNames)

	result := &model.StabilityResult{
		RunAt: time.Now(),
		Runs:  runs,
		Stage: "open_coding",
	}
	total := 0.0
	names := make([]string, 0, len(matrix))
	for name := range matrix {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ones := 0
		for _, v := range matrix[name] {
			ones += v
		}
		score := float64(ones) / float64(runs)
		total += score
		result.Codes = append(result.Codes, model.CodeStability{
			Name:  name,
			Score: score,
			Class: ClassifyStability(score),
		})
	}
	if len(names) > 0 {
		result.OverallScore = total / float64(len(names))
	}

	state.StabilityResults = append(state.StabilityResults, *result)
	return result, nil
}

// runPasses executes n independent coding passes and returns the normalized
// code names each produced, in pass order. configure returns the system
// prompt override and model override for pass i.
func (a *Analyzer) runPasses(ctx context.Context, state *model.ProjectState, n int, configure func(int) (string, string)) ([][]string, error) {
	if len(state.Documents) == 0 {
		return nil, fmt.Errorf("project has no documents; run ingestion first")
	}

	seg := segment.NewSegmenter(a.cfg.Segmenter.WordBudget)
	segments := seg.Segment(state.Documents)

	workers := a.cfg.Concurrency.ReliabilityWorkers
	if workers <= 1 {
		names := make([][]string, n)
		for i := 0; i < n; i++ {
			if a.verbose {
				fmt.Fprintf(os.Stderr, "Reliability pass %d/%d\n", i+1, n)
			}
			system, passModel := configure(i)
			got, err := a.runPass(ctx, state, segments, system, passModel)
			if err != nil {
				return nil, fmt.Errorf("pass %d: %w", i+1, err)
			}
			names[i] = got
		}
		return names, nil
	}

	pool := worker.NewPool(workers)
	pool.Start()
	for i := 0; i < n; i++ {
		system, passModel := configure(i)
		pool.Submit(&passJob{
			analyzer: a,
			state:    state,
			segments: segments,
			index:    i,
			system:   system,
			model:    passModel,
		})
	}
	results := pool.Wait()

	names := make([][]string, n)
	for _, r := range results {
		pr := r.(*passResult)
		if pr.err != nil {
			return nil, fmt.Errorf("pass %d: %w", pr.index+1, pr.err)
		}
		names[pr.index] = pr.names
	}
	for i, got := range names {
		if got == nil {
			return nil, fmt.Errorf("pass %d produced no result", i+1)
		}
	}
	return names, nil
}

// runPass codes the corpus from a fresh empty codebook and returns the
// normalized names it converged on. The shared project state is never
// mutated.
func (a *Analyzer) runPass(ctx context.Context, state *model.ProjectState, segments []model.Segment, system, passModel string) ([]string, error) {
	scratch := &model.ProjectState{
		ID:        state.ID,
		Documents: state.Documents,
	}

	c := coder.New(coder.Options{
		Provider:      a.provider,
		Limiter:       a.limiter,
		Methodology:   a.cfg.Coding.Methodology,
		Threshold:     a.cfg.Coding.SaturationThreshold,
		MaxIterations: a.cfg.Coding.MaxIterations,
	})
	c.System = system
	c.Model = passModel

	if _, err := c.Run(ctx, scratch, segments); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	names := []string{}
	for _, code := range scratch.Codebook.Codes {
		norm := model.NormalizeCodeName(code.Name)
		if norm == "" || seen[norm] {
			continue
		}
		seen[norm] = true
		names = append(names, norm)
	}
	return names, nil
}

type passJob struct {
	analyzer *Analyzer
	state    *model.ProjectState
	segments []model.Segment
	index    int
	system   string
	model    string
}

func (j *passJob) Execute(ctx context.Context) worker.Result {
	names, err := j.analyzer.runPass(ctx, j.state, j.segments, j.system, j.model)
	return &passResult{index: j.index, names: names, err: err}
}

type passResult struct {
	index int
	names []string
	err   error
}

func (r *passResult) GetError() error { return r.err }
