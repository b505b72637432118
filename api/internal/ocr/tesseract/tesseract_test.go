package tesseract

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecognize_TrimsAndPassesLanguage(t *testing.T) {
	var gotPath, gotLang string
	e := &Engine{recognize: func(path, lang string) (string, error) {
		gotPath, gotLang = path, lang
		return "\n  Hemoglobin 10.2 g/dL \n\n", nil
	}}

	text, err := e.Recognize(context.Background(), "/tmp/x.png", "eng")
	require.NoError(t, err)
	assert.Equal(t, "Hemoglobin 10.2 g/dL", text)
	assert.Equal(t, "/tmp/x.png", gotPath)
	assert.Equal(t, "eng", gotLang)
}

func TestRecognize_Error(t *testing.T) {
	e := &Engine{recognize: func(string, string) (string, error) {
		return "", errors.New("leptonica: unsupported image")
	}}
	_, err := e.Recognize(context.Background(), "x", "eng")
	assert.EqualError(t, err, "leptonica: unsupported image")
}

func TestRecognize_ContextDeadline(t *testing.T) {
	release := make(chan struct{})
	e := &Engine{recognize: func(string, string) (string, error) {
		<-release
		return "late", nil
	}}
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := e.Recognize(ctx, "x", "eng")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRecognize_CancelledBeforeStart(t *testing.T) {
	called := false
	e := &Engine{recognize: func(string, string) (string, error) {
		called = true
		return "", nil
	}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Recognize(ctx, "x", "eng")
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
