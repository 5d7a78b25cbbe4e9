package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/0xcro3dile/reqcheck/internal/domain/checklist"
	"github.com/0xcro3dile/reqcheck/internal/domain/entities"
)

var (
	// ErrIncompleteMerge is returned by strict merge checking when the merged
	// checklist lost aspects produced by the experts.
	ErrIncompleteMerge = errors.New("merged checklist is incomplete")

	// ErrNoExpertOutputs is returned when the fan-out stage produced nothing to merge.
	ErrNoExpertOutputs = errors.New("no aspect expert outputs to merge")
)

// ExpertFailurePolicy decides what a failed aspect expert does to the fan-out stage.
type ExpertFailurePolicy string

const (
	ExpertFailureAbort ExpertFailurePolicy = "abort"
	ExpertFailureSkip  ExpertFailurePolicy = "skip"
)

// MergeCheck selects how the merged checklist is verified against the expert outputs.
type MergeCheck string

const (
	MergeCheckOff    MergeCheck = "off"
	MergeCheckRetry  MergeCheck = "retry"
	MergeCheckStrict MergeCheck = "strict"
)

// GeneratorConfig configures the generation pipeline.
type GeneratorConfig struct {
	// Domain narrows prompts and web searches to a target industry (optional).
	Domain string

	// Concurrency bounds how many aspect experts run at once. 1 runs them in order.
	Concurrency int

	ExpertFailure ExpertFailurePolicy
	MergeCheck    MergeCheck

	// MergeRetries is how many extra merge runs an incomplete result gets.
	MergeRetries int
}

// ExpertOutput is the raw text one aspect expert produced.
type ExpertOutput struct {
	Aspect string `json:"aspect"`
	Raw    string `json:"raw"`
}

// GenerateResult is everything one generation run produced.
type GenerateResult struct {
	RunID         string             `json:"run_id"`
	Seed          entities.Checklist `json:"seed"`
	Checklist     entities.Checklist `json:"checklist"`
	ExpertOutputs []ExpertOutput     `json:"expert_outputs"`
	Merged        string             `json:"merged"`
	LocalMerge    bool               `json:"local_merge"`
}

// Generator runs the methodology, fan-out and merge stages.
type Generator struct {
	agents *AgentRunner
	parser *checklist.Parser
	cfg    GeneratorConfig
	logger *slog.Logger
}

// NewGenerator creates a Generator. A nil parser uses checklist defaults.
func NewGenerator(agents *AgentRunner, parser *checklist.Parser, cfg GeneratorConfig, logger *slog.Logger) *Generator {
	if parser == nil {
		parser = checklist.NewParser(checklist.WithLogger(logger))
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.ExpertFailure == "" {
		cfg.ExpertFailure = ExpertFailureAbort
	}
	if cfg.MergeCheck == "" {
		cfg.MergeCheck = MergeCheckRetry
	}
	if cfg.MergeRetries < 0 {
		cfg.MergeRetries = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{agents: agents, parser: parser, cfg: cfg, logger: logger}
}

// Generate runs the whole pipeline: methodology, parse, fan-out, merge, parse.
func (g *Generator) Generate(ctx context.Context) (*GenerateResult, error) {
	runID := uuid.NewString()
	run := *g
	run.logger = g.logger.With("run_id", runID)

	run.logger.Info("Starting checklist generation", "domain", g.cfg.Domain)

	seedRaw, err := run.RunMethodology(ctx)
	if err != nil {
		return nil, err
	}
	seed := run.parser.Parse(seedRaw)
	run.logger.Info("Methodology stage done", "aspects", len(seed), "questions", seed.QuestionCount())

	outputs, err := run.Expand(ctx, seed)
	if err != nil {
		return nil, err
	}
	run.logger.Info("Fan-out stage done", "outputs", len(outputs))

	merged, final, local, err := run.mergeChecked(ctx, outputs)
	if err != nil {
		return nil, err
	}
	run.logger.Info("Checklist generated",
		"aspects", len(final),
		"questions", final.QuestionCount(),
		"local_merge", local)

	return &GenerateResult{
		RunID:         runID,
		Seed:          seed,
		Checklist:     final,
		ExpertOutputs: outputs,
		Merged:        merged,
		LocalMerge:    local,
	}, nil
}

// RunMethodology asks the methodologist for the initial aspects and seed questions.
// The raw text is returned unparsed.
func (g *Generator) RunMethodology(ctx context.Context) (string, error) {
	p, t, err := g.agents.Catalog().Methodologist(g.cfg.Domain)
	if err != nil {
		return "", err
	}
	raw, err := g.agents.Run(ctx, p, t)
	if err != nil {
		return "", fmt.Errorf("methodology stage: %w", err)
	}
	return raw, nil
}

// Expand runs one aspect expert per record. Output order equals input order;
// skipped experts leave no gap.
func (g *Generator) Expand(ctx context.Context, c entities.Checklist) ([]ExpertOutput, error) {
	outputs := make([]ExpertOutput, len(c))
	ok := make([]bool, len(c))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.cfg.Concurrency)
	for i, rec := range c {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			p, t, err := g.agents.Catalog().Expert(rec, g.cfg.Domain)
			if err != nil {
				return err
			}

			g.logger.Debug("Running aspect expert", "aspect", rec.Aspect, "position", i)
			raw, err := g.agents.Run(egCtx, p, t)
			if err != nil {
				if g.cfg.ExpertFailure == ExpertFailureSkip && egCtx.Err() == nil {
					g.logger.Warn("Aspect expert failed, skipping aspect", "aspect", rec.Aspect, "error", err)
					return nil
				}
				return fmt.Errorf("aspect expert %q: %w", rec.Aspect, err)
			}
			outputs[i] = ExpertOutput{Aspect: rec.Aspect, Raw: raw}
			ok[i] = true
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("fan-out stage: %w", err)
	}

	result := make([]ExpertOutput, 0, len(outputs))
	for i, out := range outputs {
		if ok[i] {
			result = append(result, out)
		}
	}
	return result, nil
}

// Merge asks the checklist builder to combine the expert outputs.
// Every output is passed as its own ordered context block.
func (g *Generator) Merge(ctx context.Context, outputs []ExpertOutput) (string, error) {
	if len(outputs) == 0 {
		return "", fmt.Errorf("merge stage: %w", ErrNoExpertOutputs)
	}
	raws := make([]string, len(outputs))
	for i, o := range outputs {
		raws[i] = o.Raw
	}

	p, t, err := g.agents.Catalog().Builder(raws)
	if err != nil {
		return "", err
	}
	raw, err := g.agents.Run(ctx, p, t)
	if err != nil {
		return "", fmt.Errorf("merge stage: %w", err)
	}
	return raw, nil
}

// mergeChecked runs Merge and verifies that no expert aspect was dropped.
func (g *Generator) mergeChecked(ctx context.Context, outputs []ExpertOutput) (string, entities.Checklist, bool, error) {
	if g.cfg.MergeCheck == MergeCheckOff {
		raw, err := g.Merge(ctx, outputs)
		if err != nil {
			return "", nil, false, err
		}
		return raw, g.parser.Parse(raw), false, nil
	}

	expected := g.expertRecords(outputs)
	var raw string
	var missing []string
	for attempt := 0; attempt <= g.cfg.MergeRetries; attempt++ {
		var err error
		raw, err = g.Merge(ctx, outputs)
		if err != nil {
			return "", nil, false, err
		}

		parsed, perr := checklist.ParseStrict(raw)
		if perr == nil {
			missing = MissingAspects(parsed, expected)
			if len(missing) == 0 && len(parsed) >= len(expected) {
				return raw, parsed, false, nil
			}
		} else {
			missing = aspectNames(expected)
		}

		g.logger.Warn("Merged checklist is incomplete",
			"attempt", attempt+1,
			"max_attempts", g.cfg.MergeRetries+1,
			"missing", missing,
			"parse_error", perr)
	}

	if g.cfg.MergeCheck == MergeCheckStrict {
		return "", nil, false, fmt.Errorf("%w: missing aspects %s", ErrIncompleteMerge, strings.Join(missing, ", "))
	}

	if len(expected) == 0 {
		return raw, g.parser.Parse(raw), false, nil
	}
	g.logger.Warn("Using local merge of expert outputs", "aspects", len(expected))
	return raw, LocalMerge(expected), true, nil
}

// expertRecords parses each expert output into a record. Unparseable outputs are logged and left out.
func (g *Generator) expertRecords(outputs []ExpertOutput) entities.Checklist {
	records := make(entities.Checklist, 0, len(outputs))
	for _, o := range outputs {
		rec, err := checklist.ParseRecord(o.Raw)
		if err != nil {
			g.logger.Warn("Aspect expert output is not a valid record", "aspect", o.Aspect, "error", err)
			continue
		}
		records = append(records, rec)
	}
	return records
}

// MissingAspects lists the aspects of expected that merged lacks (case-insensitive).
func MissingAspects(merged, expected entities.Checklist) []string {
	var missing []string
	for _, r := range expected {
		if !merged.HasAspect(r.Aspect) {
			missing = append(missing, r.Aspect)
		}
	}
	return missing
}

// LocalMerge concatenates expert records in order. Records with the same aspect
// are combined, keeping every distinct question.
func LocalMerge(records entities.Checklist) entities.Checklist {
	out := make(entities.Checklist, 0, len(records))
	index := make(map[string]int)
	for _, r := range records {
		key := strings.ToLower(strings.TrimSpace(r.Aspect))
		i, seen := index[key]
		if !seen {
			index[key] = len(out)
			out = append(out, r.Clone())
			continue
		}
		for _, q := range r.Questions {
			if !containsString(out[i].Questions, q) {
				out[i].Questions = append(out[i].Questions, q)
			}
		}
	}
	return out
}

func aspectNames(c entities.Checklist) []string {
	names := make([]string, len(c))
	for i, r := range c {
		names[i] = r.Aspect
	}
	return names
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
