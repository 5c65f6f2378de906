package relay

import (
	"context"
	"fmt"

	"github.com/tinyland-inc/mediaclaw/pkg/bus"
	"github.com/tinyland-inc/mediaclaw/pkg/channels"
	"github.com/tinyland-inc/mediaclaw/pkg/logger"
)

// TypingNotifier is implemented by channels that can show an in-flight
// indicator. Detected by type assertion; purely cosmetic.
type TypingNotifier interface {
	SendTyping(chatID string)
}

// Loop consumes inbound events from the bus one at a time, runs the pipeline
// for media kinds, and publishes replies outbound. Messages are independent:
// nothing carries over between runs except process configuration.
type Loop struct {
	bus      *bus.MessageBus
	pipeline *Pipeline
	channels map[string]channels.Channel
}

func NewLoop(b *bus.MessageBus, pipeline *Pipeline, chans map[string]channels.Channel) *Loop {
	return &Loop{
		bus:      b,
		pipeline: pipeline,
		channels: chans,
	}
}

// Run blocks, processing inbound messages until ctx is cancelled or the bus
// closes. Each message is handled to completion before the next is consumed.
func (l *Loop) Run(ctx context.Context) {
	for {
		msg, ok := l.bus.ConsumeInbound(ctx)
		if !ok {
			return
		}
		l.handle(ctx, msg)
	}
}

// DispatchOutbound blocks, delivering replies to their originating channel.
// Run it alongside Run.
func (l *Loop) DispatchOutbound(ctx context.Context) {
	for {
		msg, ok := l.bus.SubscribeOutbound(ctx)
		if !ok {
			return
		}
		ch, exists := l.channels[msg.Channel]
		if !exists {
			logger.WarnCF("relay", "Outbound for unknown channel dropped", map[string]any{
				"channel": msg.Channel,
			})
			continue
		}
		if err := ch.Send(ctx, msg); err != nil {
			logger.ErrorCF("relay", "Reply delivery failed", map[string]any{
				"channel": msg.Channel,
				"chat_id": msg.ChatID,
				"error":   err.Error(),
			})
		}
	}
}

func (l *Loop) handle(ctx context.Context, msg bus.InboundMessage) {
	// A panic anywhere in one run must not take the loop down, and the user
	// must still get a reply. Scratch cleanup is deferred inside the
	// pipeline, so it has already run by the time the panic reaches here.
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorCF("relay", "Panic while handling message", map[string]any{
				"chat_id": msg.ChatID,
				"panic":   fmt.Sprintf("%v", r),
			})
			l.reply(ctx, msg, Reply{Text: msgSomethingWrong})
		}
	}()

	switch {
	case msg.Kind == bus.KindCommand && msg.Command == "start":
		l.reply(ctx, msg, Reply{Text: msgWelcome})
	case msg.Kind.HasMedia() && msg.Media != nil:
		if ch, ok := l.channels[msg.Channel].(TypingNotifier); ok {
			ch.SendTyping(msg.ChatID)
		}
		l.reply(ctx, msg, l.pipeline.Process(ctx, *msg.Media))
	default:
		l.reply(ctx, msg, Reply{Text: msgSendMedia})
	}
}

func (l *Loop) reply(ctx context.Context, in bus.InboundMessage, r Reply) {
	err := l.bus.PublishOutbound(ctx, bus.OutboundMessage{
		Channel: in.Channel,
		ChatID:  in.ChatID,
		ReplyTo: in.MessageID,
		Content: r.Text,
		HTML:    r.HTML,
	})
	if err != nil {
		logger.ErrorCF("relay", "Publish reply failed", map[string]any{
			"chat_id": in.ChatID,
			"error":   err.Error(),
		})
	}
}
