package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"report-simplifier/api/internal/config"
	"report-simplifier/api/internal/handle"
	"report-simplifier/api/internal/llm"
	"report-simplifier/api/internal/llm/gemini"
	"report-simplifier/api/internal/ocr/tesseract"
	"report-simplifier/api/internal/report"
)

// App holds the process-wide handles shared by every request.
type App struct {
	Simplifier *report.Simplifier
	Resolver   *handle.Resolver

	flash, pro *gemini.Model
}

// Build constructs both model clients once, plus the OCR engine and prompt
// set, from a resolved configuration.
func Build(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	flash, err := gemini.New(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		return nil, fmt.Errorf("flash model: %w", err)
	}
	pro, err := gemini.New(ctx, cfg.GeminiProAPIKey, cfg.GeminiProModel)
	if err != nil {
		_ = flash.Close()
		return nil, fmt.Errorf("pro model: %w", err)
	}

	prompts, err := report.LoadPrompts(cfg.PromptDir)
	if err != nil {
		_ = flash.Close()
		_ = pro.Close()
		return nil, err
	}

	inv := llm.NewInvoker(log, cfg.ModelTimeout)
	a := &App{
		Simplifier: report.New(flash, pro, inv, prompts, log),
		Resolver: &handle.Resolver{
			OCR:        tesseract.New(),
			Lang:       cfg.OCRLanguage,
			UploadDir:  cfg.UploadDir,
			MaxUpload:  cfg.MaxUploadBytes(),
			OCRTimeout: cfg.OCRTimeout,
			Log:        log,
		},
		flash: flash,
		pro:   pro,
	}
	log.Info("models ready",
		zap.String("flash", flash.Name()),
		zap.String("pro", pro.Name()),
		zap.Bool("pro_key_fallback", cfg.ProKeyFallback))
	return a, nil
}

func (a *App) Close() error {
	return errors.Join(a.flash.Close(), a.pro.Close())
}
