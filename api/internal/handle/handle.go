package handle

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"report-simplifier/api/internal/report"
)

// Pipeline is the report pipeline as seen by the HTTP layer.
type Pipeline interface {
	Run(ctx context.Context, rawText string) (report.Outcome, error)
}

type Handle struct {
	pipeline Pipeline
	resolver *Resolver
	log      *zap.Logger
}

func New(p Pipeline, rs *Resolver, log *zap.Logger) *Handle {
	if log == nil {
		log = zap.NewNop()
	}
	if rs.Log == nil {
		rs.Log = log
	}
	return &Handle{
		pipeline: p,
		resolver: rs,
		log:      log,
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
