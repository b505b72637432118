package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Model is a single configured text-completion endpoint.
type Model interface {
	Name() string
	GenerateText(ctx context.Context, prompt string) (string, error)
}

var (
	ErrModelInvocationFailed = errors.New("failed to get valid JSON from model")
	ErrEmptyModelResponse    = errors.New("empty response from model")
	ErrInvalidModelOutput    = errors.New("no valid JSON block returned by model")
)

// InvocationError is the only error Invoke returns. Its message never carries
// the cause; Cause is kept for logs and for classifying timeouts.
type InvocationError struct {
	Model string
	Cause error
}

func (e *InvocationError) Error() string { return ErrModelInvocationFailed.Error() }

func (e *InvocationError) Unwrap() []error {
	return []error{ErrModelInvocationFailed, e.Cause}
}

type Invoker struct {
	Log     *zap.Logger
	Timeout time.Duration // 0 = no bound
}

func NewInvoker(log *zap.Logger, timeout time.Duration) *Invoker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Invoker{Log: log, Timeout: timeout}
}

// WrapPrompt builds the "JSON only" envelope around a task prompt.
func WrapPrompt(taskPrompt string, example any) (string, error) {
	ex, err := json.Marshal(example)
	if err != nil {
		return "", fmt.Errorf("marshal example: %w", err)
	}
	return fmt.Sprintf(`
Perform the following action and respond ONLY with valid JSON (no markdown, no extra text).

PROMPT: %s

EXAMPLE OUTPUT FORMAT:
%s
`, taskPrompt, ex), nil
}

// ExtractJSON returns the substring from the first '{' to the last '}'.
func ExtractJSON(text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyModelResponse
	}
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start == -1 || end == -1 || end < start {
		return "", ErrInvalidModelOutput
	}
	return text[start : end+1], nil
}

// Invoke sends taskPrompt to m and decodes the JSON object in the reply into
// out. Single attempt, no retry.
func (inv *Invoker) Invoke(ctx context.Context, m Model, taskPrompt string, example, out any) error {
	_, err := inv.InvokeRaw(ctx, m, taskPrompt, example, out)
	return err
}

// InvokeRaw is Invoke that also returns the JSON object exactly as the model
// wrote it, before decoding into out.
func (inv *Invoker) InvokeRaw(ctx context.Context, m Model, taskPrompt string, example, out any) (json.RawMessage, error) {
	raw, err := inv.invoke(ctx, m, taskPrompt, example, out)
	if err != nil {
		inv.Log.Error("model invocation failed",
			zap.String("model", m.Name()),
			zap.Error(err))
		return nil, &InvocationError{Model: m.Name(), Cause: err}
	}
	inv.Log.Debug("model invocation ok",
		zap.String("model", m.Name()),
		zap.Int("json_bytes", len(raw)))
	return json.RawMessage(raw), nil
}

func (inv *Invoker) invoke(ctx context.Context, m Model, taskPrompt string, example, out any) (string, error) {
	prompt, err := WrapPrompt(taskPrompt, example)
	if err != nil {
		return "", err
	}

	if inv.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, inv.Timeout)
		defer cancel()
	}

	text, err := m.GenerateText(ctx, prompt)
	if err != nil {
		return "", err
	}
	raw, err := ExtractJSON(text)
	if err != nil {
		return "", err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidModelOutput, err)
	}
	return raw, nil
}
