package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/chatshop/internal/bot/keyboard"
	"github.com/Proton-105/chatshop/internal/engine"
	"github.com/Proton-105/chatshop/pkg/logger"
)

const (
	// CommandStart opens the conversation the same way a greeting does.
	CommandStart = "/start"
	startText    = "hi"

	maxMediaBytes = 10 << 20

	defaultUpdateTimeout = 30 * time.Second
)

// ErrMediaTooLarge is returned for attachments over the download limit.
var ErrMediaTooLarge = errors.New("attachment too large")

// Conversation runs one message through the conversation engine.
type Conversation interface {
	Handle(ctx context.Context, in engine.Inbound) ([]engine.Outbound, error)
}

// NewConversationHandler builds the handler that feeds text, photos and documents of one business
// account into the engine and sends back every reply with its reply keyboard. Each update runs on
// a context derived from base and bounded by timeout, so stopping the bot cancels in-flight turns.
func NewConversationHandler(conv Conversation, businessID int64, base func() context.Context, timeout time.Duration, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}
	if base == nil {
		base = context.Background
	}
	if timeout <= 0 {
		timeout = defaultUpdateTimeout
	}

	return func(c telebot.Context) error {
		if c.Chat() == nil {
			log.Warn("conversation handler invoked without chat")
			return nil
		}

		ctx, cancel := context.WithTimeout(logger.WithCorrelationID(base(), ""), timeout)
		defer cancel()

		in, err := Inbound(businessID, c)
		if err != nil {
			log.Warn("failed to read inbound message", slog.Int64("chat_id", c.Chat().ID), slog.Any("error", err))
			return err
		}
		if in.Media != nil && in.Media.Data == nil {
			if err := download(c, in.Media); err != nil {
				log.Error("failed to download attachment", slog.Int64("chat_id", c.Chat().ID), slog.Any("error", err))
				in.Media = nil
			}
		}

		replies, handleErr := conv.Handle(ctx, in)
		for _, r := range replies {
			if err := c.Send(r.Text, keyboard.Options(r.Options)); err != nil {
				return fmt.Errorf("send reply: %w", err)
			}
		}
		return handleErr
	}
}

// Inbound converts an update into an engine message. Attachments are described but not
// downloaded; Media.Data stays nil until fetched.
func Inbound(businessID int64, c telebot.Context) (engine.Inbound, error) {
	if c.Chat() == nil {
		return engine.Inbound{}, errors.New("update has no chat")
	}

	in := engine.Inbound{
		BusinessID: businessID,
		Address:    strconv.FormatInt(c.Chat().ID, 10),
		Name:       displayName(c.Sender()),
		Text:       strings.TrimSpace(c.Text()),
	}

	if in.Text == CommandStart || strings.HasPrefix(in.Text, CommandStart+" ") {
		in.Text = startText
	}

	msg := c.Message()
	if msg == nil {
		return in, nil
	}
	if in.Text == "" {
		in.Text = strings.TrimSpace(msg.Caption)
	}

	switch {
	case msg.Photo != nil:
		in.Media = &engine.Media{Ext: "jpg"}
	case msg.Document != nil:
		in.Media = &engine.Media{Ext: documentExt(msg.Document)}
	}
	return in, nil
}

func displayName(u *telebot.User) string {
	if u == nil {
		return ""
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.Username
	}
	return name
}

func documentExt(doc *telebot.Document) string {
	if ext := strings.TrimPrefix(filepath.Ext(doc.FileName), "."); ext != "" {
		return strings.ToLower(ext)
	}
	if exts, err := mime.ExtensionsByType(doc.MIME); err == nil && len(exts) > 0 {
		return strings.TrimPrefix(exts[0], ".")
	}
	return "bin"
}

func download(c telebot.Context, m *engine.Media) error {
	msg := c.Message()

	var file *telebot.File
	switch {
	case msg.Photo != nil:
		file = &msg.Photo.File
	case msg.Document != nil:
		file = &msg.Document.File
	default:
		return nil
	}

	if file.FileSize > maxMediaBytes {
		return fmt.Errorf("%w: %d bytes", ErrMediaTooLarge, file.FileSize)
	}

	rc, err := c.Bot().File(file)
	if err != nil {
		return fmt.Errorf("fetch file: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxMediaBytes+1))
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	if len(data) > maxMediaBytes {
		return ErrMediaTooLarge
	}

	m.Data = data
	return nil
}
