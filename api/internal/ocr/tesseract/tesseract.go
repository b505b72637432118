package tesseract

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

type result struct {
	text string
	err  error
}

// Engine runs Tesseract through gosseract. A fresh client is created per
// call because gosseract clients are not safe for concurrent use.
type Engine struct {
	recognize func(path, lang string) (string, error)
}

func New() *Engine {
	return &Engine{recognize: recognizeFile}
}

func (e *Engine) Name() string { return "tesseract" }

// Recognize returns the trimmed text of the image at path. When ctx ends
// first the call returns ctx.Err() and the running recognition is left to
// finish on its own.
func (e *Engine) Recognize(ctx context.Context, path, lang string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	done := make(chan result, 1)
	go func() {
		text, err := e.recognize(path, lang)
		done <- result{text: text, err: err}
	}()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-done:
		if r.err != nil {
			return "", r.err
		}
		return strings.TrimSpace(r.text), nil
	}
}

func recognizeFile(path, lang string) (string, error) {
	c := gosseract.NewClient()
	defer c.Close()

	if lang != "" {
		if err := c.SetLanguage(lang); err != nil {
			return "", fmt.Errorf("set language: %w", err)
		}
	}
	if err := c.SetImage(path); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	text, err := c.Text()
	if err != nil {
		return "", fmt.Errorf("recognize text: %w", err)
	}
	return text, nil
}
