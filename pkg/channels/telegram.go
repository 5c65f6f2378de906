package channels

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tinyland-inc/mediaclaw/pkg/bus"
	"github.com/tinyland-inc/mediaclaw/pkg/config"
	"github.com/tinyland-inc/mediaclaw/pkg/logger"
	"github.com/tinyland-inc/mediaclaw/pkg/media"
)

// TelegramChannel long-polls the Telegram bot API, classifies each update and
// publishes it to the bus. It also implements media.URLResolver so the
// fetcher can turn file ids into transient download URLs.
type TelegramChannel struct {
	*BaseChannel

	bot     *tgbotapi.BotAPI
	updates tgbotapi.UpdatesChannel
}

func NewTelegramChannel(cfg config.TelegramConfig, b *bus.MessageBus) (*TelegramChannel, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &TelegramChannel{
		BaseChannel: NewBaseChannel("telegram", b, cfg.AllowFrom),
		bot:         bot,
	}, nil
}

func (c *TelegramChannel) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 30
	c.updates = c.bot.GetUpdatesChan(updateConfig)
	c.SetRunning(true)

	logger.InfoCF("channel", "Telegram channel started", map[string]any{
		"bot": c.bot.Self.UserName,
	})

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case update, ok := <-c.updates:
				if !ok {
					logger.InfoC("channel", "Telegram updates channel closed")
					return
				}
				if update.Message == nil {
					continue
				}
				c.HandleMessage(classify(update.Message))
			}
		}
	}()

	return nil
}

func (c *TelegramChannel) Stop(ctx context.Context) error {
	if !c.IsRunning() {
		return nil
	}
	c.SetRunning(false)
	c.bot.StopReceivingUpdates()
	// Drain remaining updates so the library's polling goroutine can finish
	// writing and exit; an in-flight long-poll otherwise keeps the getUpdates
	// session alive into the next start.
	for range c.updates {
	}
	logger.InfoC("channel", "Telegram channel stopped")
	return nil
}

func (c *TelegramChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	chatID, err := strconv.ParseInt(msg.ChatID, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram chat id %q: %w", msg.ChatID, err)
	}

	out := tgbotapi.NewMessage(chatID, msg.Content)
	if msg.HTML {
		out.ParseMode = tgbotapi.ModeHTML
	}
	if replyTo, err := strconv.Atoi(msg.ReplyTo); err == nil && replyTo > 0 {
		out.ReplyToMessageID = replyTo
	}

	_, err = c.bot.Send(out)
	return err
}

// SendTyping emits a "typing" chat action while a pipeline run is in flight.
// Failures are logged and swallowed; the indicator is cosmetic.
func (c *TelegramChannel) SendTyping(chatID string) {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return
	}
	action := tgbotapi.NewChatAction(id, tgbotapi.ChatTyping)
	if _, err := c.bot.Request(action); err != nil {
		logger.WarnCF("channel", "Send typing action failed", map[string]any{
			"error": err.Error(),
		})
	}
}

// ResolveFileURL implements media.URLResolver via the bot API's getFile call.
func (c *TelegramChannel) ResolveFileURL(fileID string) (string, error) {
	return c.bot.GetFileDirectURL(fileID)
}

// classify maps a Telegram message to a bus event. Photos pick the
// highest-resolution size and default to a .jpg hint; videos fall back to
// .mp4 when the sender declared no filename; documents keep theirs as-is.
func classify(msg *tgbotapi.Message) bus.InboundMessage {
	event := bus.InboundMessage{
		SenderID:  senderID(msg),
		ChatID:    strconv.FormatInt(msg.Chat.ID, 10),
		MessageID: strconv.Itoa(msg.MessageID),
		Kind:      bus.KindOther,
	}

	switch {
	case msg.IsCommand():
		event.Kind = bus.KindCommand
		event.Command = msg.Command()
	case len(msg.Photo) > 0:
		photo := pickPhoto(msg.Photo)
		event.Kind = bus.KindPhoto
		event.Media = &media.MediaReference{FileID: photo.FileID, FileName: "photo.jpg"}
	case msg.Video != nil:
		name := msg.Video.FileName
		if name == "" {
			name = "video.mp4"
		}
		event.Kind = bus.KindVideo
		event.Media = &media.MediaReference{FileID: msg.Video.FileID, FileName: name}
	case msg.Document != nil:
		event.Kind = bus.KindDocument
		event.Media = &media.MediaReference{FileID: msg.Document.FileID, FileName: msg.Document.FileName}
	}

	return event
}

func senderID(msg *tgbotapi.Message) string {
	if msg.From == nil {
		return ""
	}
	id := strconv.FormatInt(msg.From.ID, 10)
	if username := strings.TrimSpace(msg.From.UserName); username != "" {
		return id + "|" + username
	}
	return id
}

// pickPhoto selects the best PhotoSize: largest file, then largest area.
func pickPhoto(items []tgbotapi.PhotoSize) tgbotapi.PhotoSize {
	best := items[0]
	for _, item := range items[1:] {
		if item.FileSize > best.FileSize {
			best = item
			continue
		}
		if item.Width*item.Height > best.Width*best.Height {
			best = item
		}
	}
	return best
}
