package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"report-simplifier/api/internal/llm"
)

var (
	ErrNoTestsFound          = errors.New("no valid medical tests found")
	ErrHallucinationDetected = errors.New("extracted tests not found in report text")
)

// Simplifier runs extraction, the hallucination guardrail and summarization
// for one raw report text. It holds only read-only shared handles.
type Simplifier struct {
	Flash   llm.Model // summarization
	Pro     llm.Model // extraction
	Invoker *llm.Invoker
	Prompts *Prompts
	Log     *zap.Logger
}

func New(flash, pro llm.Model, inv *llm.Invoker, prompts *Prompts, log *zap.Logger) *Simplifier {
	if log == nil {
		log = zap.NewNop()
	}
	if prompts == nil {
		prompts = DefaultPrompts()
	}
	if inv == nil {
		inv = llm.NewInvoker(log, 0)
	}
	return &Simplifier{Flash: flash, Pro: pro, Invoker: inv, Prompts: prompts, Log: log}
}

// Run executes the stages strictly in order and stops at the first failure.
func (s *Simplifier) Run(ctx context.Context, rawText string) (Outcome, error) {
	start := time.Now()

	extracted, err := s.Extract(ctx, rawText)
	if err != nil {
		return Outcome{}, err
	}

	tests, err := s.Guard(rawText, extracted.Tests)
	if err != nil {
		return Outcome{}, err
	}

	sum, err := s.Summarize(ctx, tests)
	if err != nil {
		return Outcome{}, err
	}

	s.Log.Info("report simplified",
		zap.Int("tests", len(tests)),
		zap.Int("explanations", len(sum.Explanations)),
		zap.Duration("elapsed", time.Since(start)))

	return Outcome{
		Tests:        tests,
		Summary:      sum.Summary,
		Explanations: sum.Explanations,
	}, nil
}

// Extract asks the pro model for every test result in rawText.
func (s *Simplifier) Extract(ctx context.Context, rawText string) (ExtractionResult, error) {
	s.Log.Debug("extracting and normalizing test data")
	prompt, err := render(s.Prompts.Extract, struct{ Text string }{rawText})
	if err != nil {
		return ExtractionResult{}, err
	}

	var res ExtractionResult
	raw, err := s.Invoker.InvokeRaw(ctx, s.Pro, prompt, extractExample, &res)
	if err != nil {
		return ExtractionResult{}, err
	}
	if len(res.Tests) == 0 {
		return ExtractionResult{}, ErrNoTestsFound
	}
	if err := CheckShape(raw); err != nil {
		s.Log.Warn("extraction shape drift", zap.Error(err))
	}
	s.Log.Debug("structured data", zap.Any("tests", res.Tests))
	return res, nil
}

// Guard rejects the whole batch if any test name is not a case-insensitive
// substring of rawText.
func (s *Simplifier) Guard(rawText string, tests []TestResult) ([]TestResult, error) {
	if missing := Ungrounded(rawText, tests); len(missing) > 0 {
		s.Log.Warn("guardrail triggered: hallucinated tests found",
			zap.Strings("names", missing))
		return nil, ErrHallucinationDetected
	}
	return tests, nil
}

// Ungrounded returns the names of tests that do not occur in rawText.
func Ungrounded(rawText string, tests []TestResult) []string {
	original := strings.ToLower(rawText)
	var missing []string
	for _, t := range tests {
		if !strings.Contains(original, strings.ToLower(t.Name)) {
			missing = append(missing, t.Name)
		}
	}
	return missing
}

// Summarize asks the flash model for a plain-language summary of tests.
func (s *Simplifier) Summarize(ctx context.Context, tests []TestResult) (SummaryResult, error) {
	s.Log.Debug("generating summary")
	testsJSON, err := json.Marshal(tests)
	if err != nil {
		return SummaryResult{}, fmt.Errorf("marshal tests: %w", err)
	}
	prompt, err := render(s.Prompts.Summary, struct{ TestsJSON string }{string(testsJSON)})
	if err != nil {
		return SummaryResult{}, err
	}

	var res SummaryResult
	if err := s.Invoker.Invoke(ctx, s.Flash, prompt, summaryExample, &res); err != nil {
		return SummaryResult{}, err
	}
	return res, nil
}
