package telegram

import (
	"context"
	"io"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"report-simplifier/api/internal/handle"
)

// Sender is the part of *tgbotapi.BotAPI the router needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
}

// ImageReader runs OCR over an uploaded image.
type ImageReader interface {
	RecognizeImage(ctx context.Context, src io.Reader) (string, error)
}

// Router answers chat messages: text is simplified directly, photos and
// image documents go through OCR first.
type Router struct {
	Bot      Sender
	Pipeline handle.Pipeline
	Images   ImageReader
	Log      *zap.Logger

	// Timeout bounds one message end to end; 0 = none.
	Timeout time.Duration
	// Download fetches a Telegram file URL; nil uses the package default.
	Download func(ctx context.Context, url string) (io.ReadCloser, error)
}

func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	msg := upd.Message
	if msg == nil {
		return
	}
	cid := msg.Chat.ID
	log := r.Log.With(zap.Int64("chat_id", cid), zap.Int("update_id", upd.UpdateID))

	if msg.IsCommand() {
		r.handleCommand(cid, msg.Command())
		return
	}

	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	switch {
	case msg.Text != "":
		log.Info("text report received")
		r.send(cid, WorkingText)
		r.simplify(ctx, log, cid, msg.Text)
	case len(msg.Photo) > 0 || isImageDocument(msg.Document):
		log.Info("image report received")
		r.send(cid, WorkingText)
		text, err := r.readImage(ctx, msg)
		if err != nil {
			r.sendFailure(log, cid, err)
			return
		}
		r.simplify(ctx, log, cid, text)
	default:
		r.send(cid, StartText)
	}
}

func (r *Router) handleCommand(cid int64, cmd string) {
	switch cmd {
	case "start", "help":
		r.send(cid, StartText)
	case "health":
		r.send(cid, "✅ OK")
	default:
		r.send(cid, "Unknown command. Try /help.")
	}
}

func (r *Router) simplify(ctx context.Context, log *zap.Logger, cid int64, rawText string) {
	if strings.TrimSpace(rawText) == "" {
		r.sendFailure(log, cid, handle.ErrNoInputProvided)
		return
	}
	out, err := r.Pipeline.Run(ctx, rawText)
	if err != nil {
		r.sendFailure(log, cid, err)
		return
	}
	for _, part := range split(FormatOutcome(out), maxMessageLen) {
		r.send(cid, part)
	}
}

func (r *Router) sendFailure(log *zap.Logger, cid int64, err error) {
	log.Info("report not simplified", zap.Error(err))
	_, resp := handle.Classify(err)
	r.send(cid, FormatFailure(resp))
}

func (r *Router) send(chatID int64, text string) {
	if _, err := r.Bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		r.Log.Warn("telegram send failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}
