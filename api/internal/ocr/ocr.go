package ocr

import "context"

// Recognizer turns an image file into plain text.
type Recognizer interface {
	Name() string
	Recognize(ctx context.Context, path, lang string) (string, error)
}
