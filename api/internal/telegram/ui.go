package telegram

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"report-simplifier/api/internal/handle"
	"report-simplifier/api/internal/report"
)

const maxMessageLen = 3900

const (
	StartText   = "Send me a lab report as text or a photo and I will explain the results in plain language. This is not a diagnosis."
	WorkingText = "Got it, reading the report…"
)

var statusMark = map[report.Status]string{
	report.StatusLow:    "⬇️",
	report.StatusNormal: "✅",
	report.StatusHigh:   "⬆️",
}

// FormatOutcome renders a simplified report as a chat message.
func FormatOutcome(out report.Outcome) string {
	var b strings.Builder
	b.WriteString("🩺 Results\n")
	for _, t := range out.Tests {
		mark := statusMark[t.Status]
		if mark == "" {
			mark = "•"
		}
		fmt.Fprintf(&b, "%s %s: %s %s", mark, t.Name, num(t.Value), t.Unit)
		if t.RefRange.Low.Present() || t.RefRange.High.Present() {
			fmt.Fprintf(&b, " (ref %s–%s)", num(t.RefRange.Low), num(t.RefRange.High))
		}
		b.WriteString("\n")
	}
	if s := strings.TrimSpace(out.Summary); s != "" {
		b.WriteString("\n📝 Summary\n")
		b.WriteString(s)
		b.WriteString("\n")
	}
	if len(out.Explanations) > 0 {
		b.WriteString("\n💡 What it may mean\n")
		for _, e := range out.Explanations {
			b.WriteString("• ")
			b.WriteString(strings.TrimSpace(e))
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatFailure renders a failed request the way the API body reads.
func FormatFailure(resp handle.Response) string {
	msg := resp.Message
	if msg == "" {
		msg = resp.Reason
	}
	if resp.Status == handle.StatusUnprocessed {
		return "⚠️ " + msg
	}
	return "❌ " + msg
}

func num(n report.Number) string {
	if t := n.Text(); t != "" {
		return t
	}
	return "?"
}

// split cuts s into chunks of at most limit bytes, preferring line breaks.
func split(s string, limit int) []string {
	var parts []string
	for len(s) > limit {
		cut := strings.LastIndexByte(s[:limit], '\n')
		if cut <= 0 {
			cut = limit
			for cut > 0 && !utf8.RuneStart(s[cut]) {
				cut--
			}
		}
		parts = append(parts, s[:cut])
		s = strings.TrimLeft(s[cut:], "\n")
	}
	if s != "" {
		parts = append(parts, s)
	}
	return parts
}
