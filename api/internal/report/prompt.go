package report

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

const extractPrompt = `
From this medical report text, extract all test results, correct typos (e.g., "Hemglobin" → "Hemoglobin"),
and normalize them into structured data with value, unit, status (low/normal/high), and reference range.

Text: "{{.Text}}"
`

const summaryPrompt = `
Create a simple, patient-friendly summary for these medical test results.
Do NOT give diagnosis — use cautious, plain-language explanations.
Tests: {{.TestsJSON}}
`

var extractExample = ExtractionResult{
	Tests: []TestResult{{
		Name:     "Hemoglobin",
		Value:    NewNumber(10.2),
		Unit:     "g/dL",
		Status:   StatusLow,
		RefRange: RefRange{Low: NewNumber(12.0), High: NewNumber(15.0)},
	}},
}

var summaryExample = SummaryResult{
	Summary: "Low hemoglobin and high white blood cell count.",
	Explanations: []string{
		"Low hemoglobin may relate to anemia.",
		"High WBC can occur with infections.",
	},
}

// Prompts holds the two task templates.
type Prompts struct {
	Extract *template.Template
	Summary *template.Template
}

// DefaultPrompts returns the built-in templates.
func DefaultPrompts() *Prompts {
	return &Prompts{
		Extract: template.Must(template.New("extract").Parse(extractPrompt)),
		Summary: template.Must(template.New("summary").Parse(summaryPrompt)),
	}
}

// LoadPrompts returns the built-in templates, replacing each with
// <dir>/<name>.tmpl when that file exists and is non-empty.
func LoadPrompts(dir string) (*Prompts, error) {
	p := DefaultPrompts()
	if strings.TrimSpace(dir) == "" {
		return p, nil
	}
	for _, slot := range []struct {
		name string
		dst  **template.Template
	}{
		{"extract", &p.Extract},
		{"summary", &p.Summary},
	} {
		path := filepath.Join(dir, slot.name+".tmpl")
		b, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read prompt %s: %w", path, err)
		}
		if strings.TrimSpace(string(b)) == "" {
			continue
		}
		t, err := template.New(slot.name).Parse(string(b))
		if err != nil {
			return nil, fmt.Errorf("parse prompt %s: %w", path, err)
		}
		*slot.dst = t
	}
	return p, nil
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", t.Name(), err)
	}
	return buf.String(), nil
}
