package report

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"report-simplifier/api/internal/llm"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeModel struct {
	name  string
	reply string

	mu      sync.Mutex
	prompts []string
}

func (f *fakeModel) Name() string { return f.name }

func (f *fakeModel) GenerateText(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	return f.reply, nil
}

func (f *fakeModel) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

const hemoglobinReply = "```json\n" + `{"tests":[{"name":"Hemoglobin","value":10.2,"unit":"g/dL","status":"low","ref_range":{"low":12.0,"high":15.0}}]}` + "\n```"

const summaryReply = `{"summary":"Your hemoglobin is a little low.","explanations":["Low hemoglobin may relate to anemia."]}`

func newSimplifier(pro, flash *fakeModel) *Simplifier {
	return New(flash, pro, nil, nil, zap.NewNop())
}

func TestRun_Success(t *testing.T) {
	pro := &fakeModel{name: "pro", reply: hemoglobinReply}
	flash := &fakeModel{name: "flash", reply: summaryReply}
	s := newSimplifier(pro, flash)

	raw := "Hemoglobin 10.2 g/dL (ref 12.0-15.0) LOW"
	out, err := s.Run(context.Background(), raw)
	require.NoError(t, err)

	require.Len(t, out.Tests, 1)
	got := out.Tests[0]
	assert.Equal(t, "Hemoglobin", got.Name)
	assert.Equal(t, NewNumber(10.2), got.Value)
	assert.Equal(t, StatusLow, got.Status)
	assert.Equal(t, NewNumber(12.0), got.RefRange.Low)
	assert.Equal(t, "Your hemoglobin is a little low.", out.Summary)
	assert.Equal(t, []string{"Low hemoglobin may relate to anemia."}, out.Explanations)

	require.Equal(t, 1, pro.calls(), "extraction uses the pro model")
	require.Equal(t, 1, flash.calls(), "summary uses the flash model")
	assert.Contains(t, pro.prompts[0], `Text: "`+raw+`"`)
	assert.Contains(t, flash.prompts[0], `"name":"Hemoglobin"`)
	assert.Contains(t, flash.prompts[0], "Do NOT give diagnosis")
}

func TestRun_NoTestsSkipsSummary(t *testing.T) {
	for name, reply := range map[string]string{
		"empty list":    `{"tests":[]}`,
		"missing field": `{"note":"nothing here"}`,
		"null":          `{"tests":null}`,
	} {
		t.Run(name, func(t *testing.T) {
			pro := &fakeModel{name: "pro", reply: reply}
			flash := &fakeModel{name: "flash", reply: summaryReply}

			_, err := newSimplifier(pro, flash).Run(context.Background(), "patient feels fine, no labs")
			require.ErrorIs(t, err, ErrNoTestsFound)
			assert.Equal(t, 0, flash.calls())
		})
	}
}

func TestRun_QualitativeValuesPassThrough(t *testing.T) {
	replies := map[string]string{
		"serology":   `{"tests":[{"name":"HIV","value":"Non-reactive","unit":"","status":"normal","ref_range":{"low":null,"high":null}}]}`,
		"below lod":  `{"tests":[{"name":"HIV","value":"<5","unit":"copies/mL","status":"normal","ref_range":{"low":null,"high":null}}]}`,
		"open range": `{"tests":[{"name":"HIV","value":1,"unit":"","status":"normal","ref_range":{"low":0,"high":"N/A"}}]}`,
	}
	for name, reply := range replies {
		t.Run(name, func(t *testing.T) {
			pro := &fakeModel{name: "pro", reply: reply}
			flash := &fakeModel{name: "flash", reply: summaryReply}

			out, err := newSimplifier(pro, flash).Run(context.Background(), "HIV 1/2 antibodies: Non-reactive")
			require.NoError(t, err)
			require.Len(t, out.Tests, 1)
			assert.Equal(t, 1, flash.calls())

			got, err := json.Marshal(ExtractionResult{Tests: out.Tests})
			require.NoError(t, err)
			assert.JSONEq(t, reply, string(got), "qualitative values come back unchanged")
		})
	}
}

func TestRun_ShapeDriftIsLoggedNotFatal(t *testing.T) {
	pro := &fakeModel{name: "pro", reply: `{"tests":[{"name":"Hemoglobin","value":"10.2"}]}`}
	flash := &fakeModel{name: "flash", reply: summaryReply}

	core, logs := observer.New(zap.WarnLevel)
	out, err := New(flash, pro, nil, nil, zap.New(core)).Run(context.Background(), "Hemoglobin 10.2")
	require.NoError(t, err)
	assert.Equal(t, NewNumber(10.2), out.Tests[0].Value)
	assert.Equal(t, 1, logs.FilterMessage("extraction shape drift").Len())
}

func TestRun_HallucinationSkipsSummary(t *testing.T) {
	pro := &fakeModel{name: "pro", reply: `{"tests":[
		{"name":"Hemoglobin","value":10.2,"unit":"g/dL","status":"low","ref_range":{"low":12,"high":15}},
		{"name":"Ferritin","value":8,"unit":"ng/mL","status":"low","ref_range":{"low":15,"high":150}}]}`}
	flash := &fakeModel{name: "flash", reply: summaryReply}

	core, logs := observer.New(zap.WarnLevel)
	s := New(flash, pro, nil, nil, zap.New(core))

	_, err := s.Run(context.Background(), "HEMOGLOBIN 10.2 g/dL")
	require.ErrorIs(t, err, ErrHallucinationDetected)
	assert.Equal(t, 0, flash.calls())

	entries := logs.FilterMessage("guardrail triggered: hallucinated tests found").All()
	require.Len(t, entries, 1)
	assert.Equal(t, []any{"Ferritin"}, entries[0].ContextMap()["names"])
}

func TestRun_ModelFailure(t *testing.T) {
	pro := &fakeModel{name: "pro", reply: "I'm sorry, I can't read that."}
	flash := &fakeModel{name: "flash", reply: summaryReply}

	_, err := newSimplifier(pro, flash).Run(context.Background(), "Hemoglobin 10")
	require.ErrorIs(t, err, llm.ErrModelInvocationFailed)
	assert.NotContains(t, err.Error(), "sorry")
	assert.Equal(t, 0, flash.calls())
}

func TestRun_SummaryFailure(t *testing.T) {
	pro := &fakeModel{name: "pro", reply: hemoglobinReply}
	flash := &fakeModel{name: "flash", reply: ""}

	_, err := newSimplifier(pro, flash).Run(context.Background(), "Hemoglobin 10.2")
	require.ErrorIs(t, err, llm.ErrModelInvocationFailed)
	assert.ErrorIs(t, err, llm.ErrEmptyModelResponse)
}

func TestRun_ExplanationCountIsNotTiedToTests(t *testing.T) {
	pro := &fakeModel{name: "pro", reply: hemoglobinReply}
	flash := &fakeModel{name: "flash", reply: `{"summary":"s","explanations":["a","b","c"]}`}

	out, err := newSimplifier(pro, flash).Run(context.Background(), "Hemoglobin 10.2")
	require.NoError(t, err)
	assert.Len(t, out.Tests, 1)
	assert.Len(t, out.Explanations, 3)
}

func TestRun_IndependentRuns(t *testing.T) {
	pro := &fakeModel{name: "pro", reply: hemoglobinReply}
	flash := &fakeModel{name: "flash", reply: summaryReply}
	s := newSimplifier(pro, flash)

	raw := "Hemoglobin 10.2 g/dL (ref 12.0-15.0) LOW"
	var wg sync.WaitGroup
	outs := make([]Outcome, 8)
	errs := make([]error, 8)
	for i := range outs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outs[i], errs[i] = s.Run(context.Background(), raw)
		}(i)
	}
	wg.Wait()

	for i := range outs {
		require.NoError(t, errs[i])
		assert.Equal(t, outs[0], outs[i])
	}
	outs[0].Tests[0].Name = "mutated"
	assert.Equal(t, "Hemoglobin", outs[1].Tests[0].Name)
}

func TestUngrounded(t *testing.T) {
	raw := "CBC: Hemoglobin 10.2, WBC 11.2, Platelets 150"
	tests := []TestResult{{Name: "hemoglobin"}, {Name: "WBC"}, {Name: "Glucose"}, {Name: "platelets"}}
	assert.Equal(t, []string{"Glucose"}, Ungrounded(raw, tests))
	assert.Empty(t, Ungrounded(raw, tests[:2]))
}

func TestGuard_CorrectedSpellingIsRejected(t *testing.T) {
	s := newSimplifier(&fakeModel{}, &fakeModel{})
	_, err := s.Guard("Hemglobin 10.2 g/dL", []TestResult{{Name: "Hemoglobin"}})
	assert.ErrorIs(t, err, ErrHallucinationDetected)
}

func TestLoadPrompts_Override(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "extract.tmpl"), []byte("custom: {{.Text}}"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "summary.tmpl"), []byte("  \n"), 0o600))

	p, err := LoadPrompts(dir)
	require.NoError(t, err)

	got, err := render(p.Extract, struct{ Text string }{"abc"})
	require.NoError(t, err)
	assert.Equal(t, "custom: abc", got)

	got, err = render(p.Summary, struct{ TestsJSON string }{"[]"})
	require.NoError(t, err)
	assert.Contains(t, got, "patient-friendly summary", "blank override keeps the default")
}

func TestLoadPrompts_BadTemplate(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "extract.tmpl"), []byte("{{.Text"), 0o600))
	_, err := LoadPrompts(dir)
	assert.Error(t, err)
}
