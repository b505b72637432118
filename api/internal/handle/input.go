package handle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"report-simplifier/api/internal/ocr"
	"report-simplifier/api/internal/util"
)

var ErrNoInputProvided = errors.New("no text or image provided")

const (
	textField  = "text"
	imageField = "reportImage"

	maxJSONBody   = 4 << 20
	maxFormMemory = 8 << 20
)

// Resolver picks the raw report text from a request: JSON body, then form
// field, then an uploaded image run through OCR.
type Resolver struct {
	OCR        ocr.Recognizer
	Lang       string
	UploadDir  string
	MaxUpload  int64
	OCRTimeout time.Duration
	Log        *zap.Logger
}

func (rs *Resolver) Resolve(ctx context.Context, w http.ResponseWriter, r *http.Request) (string, error) {
	text, err := rs.resolve(ctx, w, r)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrNoInputProvided
	}
	return text, nil
}

func (rs *Resolver) resolve(ctx context.Context, w http.ResponseWriter, r *http.Request) (string, error) {
	if isJSON(r) {
		rs.Log.Debug("JSON input detected")
		var body struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(&body); err != nil {
			rs.Log.Info("bad json body", zap.Error(err))
			return "", ErrNoInputProvided
		}
		return body.Text, nil
	}

	if rs.MaxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, rs.MaxUpload)
	}
	if err := parseForm(r); err != nil {
		rs.Log.Info("unreadable form body", zap.Error(err))
		return "", ErrNoInputProvided
	}
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}

	if t := r.PostFormValue(textField); t != "" {
		rs.Log.Debug("form text input detected")
		return t, nil
	}

	f, _, err := r.FormFile(imageField)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return "", ErrNoInputProvided
	}
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	defer f.Close()

	rs.Log.Debug("image input detected, running OCR")
	return rs.RecognizeImage(ctx, f)
}

// RecognizeImage stores src under a unique name in the upload dir, runs OCR
// on it and removes it again whatever the OCR outcome.
func (rs *Resolver) RecognizeImage(ctx context.Context, src io.Reader) (string, error) {
	path, err := rs.store(src)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := os.Remove(path); err != nil {
			rs.Log.Warn("file cleanup error", zap.String("path", path), zap.Error(err))
		}
	}()

	if rs.OCRTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rs.OCRTimeout)
		defer cancel()
	}
	text, err := rs.OCR.Recognize(ctx, path, rs.Lang)
	if err != nil {
		return "", fmt.Errorf("ocr %s: %w", rs.OCR.Name(), err)
	}
	return strings.TrimSpace(text), nil
}

func (rs *Resolver) store(src io.Reader) (string, error) {
	if err := os.MkdirAll(rs.UploadDir, 0o755); err != nil {
		return "", fmt.Errorf("make upload dir: %w", err)
	}
	head := make([]byte, 512)
	n, err := io.ReadFull(src, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]

	path := filepath.Join(rs.UploadDir, uuid.NewString()+util.ImageExt(head))
	dst, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", fmt.Errorf("create upload: %w", err)
	}
	_, werr := dst.Write(head)
	if werr == nil {
		_, werr = io.Copy(dst, src)
	}
	cerr := dst.Close()
	if werr == nil {
		werr = cerr
	}
	if werr != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("write upload: %w", werr)
	}
	return path, nil
}

func isJSON(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}

func parseForm(r *http.Request) error {
	err := r.ParseMultipartForm(maxFormMemory)
	if errors.Is(err, http.ErrNotMultipart) {
		return r.ParseForm()
	}
	return err
}
