package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

var httpc = &http.Client{Timeout: 60 * time.Second}

func isImageDocument(d *tgbotapi.Document) bool {
	return d != nil && strings.HasPrefix(d.MimeType, "image/")
}

// readImage downloads the largest photo size (or the image document) and
// runs it through OCR.
func (r *Router) readImage(ctx context.Context, msg *tgbotapi.Message) (string, error) {
	var fileID string
	if len(msg.Photo) > 0 {
		fileID = msg.Photo[len(msg.Photo)-1].FileID
	} else {
		fileID = msg.Document.FileID
	}

	url, err := r.Bot.GetFileDirectURL(fileID)
	if err != nil {
		return "", fmt.Errorf("get file: %w", err)
	}
	dl := r.Download
	if dl == nil {
		dl = download
	}
	body, err := dl(ctx, url)
	if err != nil {
		return "", fmt.Errorf("download photo: %w", err)
	}
	defer body.Close()

	return r.Images.RecognizeImage(ctx, body)
}

func download(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpc.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		resp.Body.Close()
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(b))
	}
	return resp.Body, nil
}
