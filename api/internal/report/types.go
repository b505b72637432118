package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

type Status string

const (
	StatusLow    Status = "low"
	StatusNormal Status = "normal"
	StatusHigh   Status = "high"
)

func (s *Status) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*s = Status(strings.ToLower(strings.TrimSpace(raw)))
	return nil
}

// Number is a model-supplied numeric field. Quoted numerals decode as
// numbers; null or an absent field stays null on the way out. Anything else
// ("Non-reactive", "<5", "N/A") is kept verbatim in Raw and re-emitted as is.
type Number struct {
	Value float64
	Valid bool
	Raw   json.RawMessage
}

func NewNumber(v float64) Number { return Number{Value: v, Valid: true} }

// Present reports whether the model supplied anything but null.
func (n Number) Present() bool { return n.Valid || len(n.Raw) > 0 }

// Text is the value as a reader would see it; "" when absent.
func (n Number) Text() string {
	switch {
	case n.Valid:
		return strconv.FormatFloat(n.Value, 'f', -1, 64)
	case len(n.Raw) == 0:
		return ""
	}
	var s string
	if err := json.Unmarshal(n.Raw, &s); err == nil {
		return s
	}
	return string(n.Raw)
}

func (n Number) MarshalJSON() ([]byte, error) {
	switch {
	case n.Valid:
		return json.Marshal(n.Value)
	case len(n.Raw) > 0:
		return n.Raw, nil
	}
	return []byte("null"), nil
}

func (n *Number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*n = Number{}
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*n = Number{}
			return nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			*n = NewNumber(f)
			return nil
		}
		*n = Number{Raw: bytes.Clone(b)}
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*n = NewNumber(f)
		return nil
	}
	if !json.Valid(b) {
		return fmt.Errorf("number: invalid JSON %q", b)
	}
	*n = Number{Raw: bytes.Clone(b)}
	return nil
}

type RefRange struct {
	Low  Number `json:"low"`
	High Number `json:"high"`
}

type TestResult struct {
	Name     string   `json:"name"`
	Value    Number   `json:"value"`
	Unit     string   `json:"unit"`
	Status   Status   `json:"status"`
	RefRange RefRange `json:"ref_range"`
}

type ExtractionResult struct {
	Tests []TestResult `json:"tests"`
}

// SummaryResult carries no count relationship between Explanations and the
// extracted tests.
type SummaryResult struct {
	Summary      string   `json:"summary"`
	Explanations []string `json:"explanations"`
}

// Outcome is a successful pipeline run.
type Outcome struct {
	Tests        []TestResult
	Summary      string
	Explanations []string
}
