package handle

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"report-simplifier/api/internal/httpserver"
	"report-simplifier/api/internal/llm"
	"report-simplifier/api/internal/report"
)

const (
	StatusOK          = "ok"
	StatusUnprocessed = "unprocessed"
	StatusError       = "error"
)

// Client-facing texts of the failure bodies.
const (
	msgNoInput          = "No text or image provided."
	reasonNoTests       = "No valid medical tests found."
	reasonHallucination = "AI generated tests not found in original text."
	reasonModelFailed   = "Failed to get valid JSON from Gemini model."
	reasonTimeout       = "Upstream service timed out."
)

// Result is the 200 body. Every key is always present.
type Result struct {
	Status       string              `json:"status"`
	Tests        []report.TestResult `json:"tests"`
	Summary      string              `json:"summary"`
	Explanations []string            `json:"explanations"`
}

func NewResult(out report.Outcome) Result {
	res := Result{
		Status:       StatusOK,
		Tests:        out.Tests,
		Summary:      out.Summary,
		Explanations: out.Explanations,
	}
	if res.Tests == nil {
		res.Tests = []report.TestResult{}
	}
	if res.Explanations == nil {
		res.Explanations = []string{}
	}
	return res
}

// Response is the body of every failed /api/simplify-report reply.
type Response struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// Simplify serves POST /api/simplify-report.
func (h *Handle) Simplify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, Response{Status: StatusError, Message: "POST only"})
		return
	}
	log := h.log.With(zap.String("request_id", httpserver.RequestID(r.Context())))
	log.Info("new request received")

	ctx := r.Context()
	rawText, err := h.resolver.Resolve(ctx, w, r)
	if err != nil {
		h.fail(w, log, err)
		return
	}
	log.Debug("raw extracted text", zap.String("text", rawText))

	out, err := h.pipeline.Run(ctx, rawText)
	if err != nil {
		h.fail(w, log, err)
		return
	}

	log.Info("sending final processed response", zap.Int("tests", len(out.Tests)))
	writeJSON(w, http.StatusOK, NewResult(out))
}

func (h *Handle) fail(w http.ResponseWriter, log *zap.Logger, err error) {
	code, resp := Classify(err)
	if code >= http.StatusInternalServerError {
		log.Error("error during processing", zap.Int("code", code), zap.Error(err))
	} else {
		log.Info("request not processed", zap.Int("code", code), zap.Error(err))
	}
	writeJSON(w, code, resp)
}

// Classify maps a stage failure to its HTTP status and body.
func Classify(err error) (int, Response) {
	switch {
	case errors.Is(err, ErrNoInputProvided):
		return http.StatusBadRequest, Response{Status: StatusError, Message: msgNoInput}
	case errors.Is(err, report.ErrNoTestsFound):
		return http.StatusBadRequest, Response{Status: StatusUnprocessed, Reason: reasonNoTests}
	case errors.Is(err, report.ErrHallucinationDetected):
		return http.StatusInternalServerError, Response{Status: StatusUnprocessed, Reason: reasonHallucination}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusInternalServerError, Response{Status: StatusError, Reason: reasonTimeout}
	case errors.Is(err, llm.ErrModelInvocationFailed):
		return http.StatusInternalServerError, Response{Status: StatusError, Reason: reasonModelFailed}
	default:
		return http.StatusInternalServerError, Response{Status: StatusError, Reason: err.Error()}
	}
}
