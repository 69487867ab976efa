// Package telegram connects the dispatcher to the Telegram Bot API by long polling.
package telegram

import (
	"context"
	"fmt"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hfi/postlink-bot/internal/dispatch"
	"github.com/hfi/postlink-bot/internal/metrics"
	"github.com/rs/zerolog"
)

// Bot is the subset of *tgbotapi.BotAPI used by the poller
type Bot interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Handler answers one inbound request
type Handler interface {
	Handle(ctx context.Context, req dispatch.Request) (dispatch.Response, bool)
}

// Options tunes the poller
type Options struct {
	// PollTimeout is the long-poll timeout sent to Telegram
	PollTimeout time.Duration
	// Workers is the number of concurrent handlers
	Workers int
}

// Poller receives updates and replies through the dispatcher. Messages from
// the same caller always land on the same worker, so one caller's commands
// are handled in order.
type Poller struct {
	bot     Bot
	handler Handler
	opts    Options
	logger  zerolog.Logger
}

// inbound is a message accepted for handling
type inbound struct {
	chatID int64
	req    dispatch.Request
}

// NewPoller creates a poller
func NewPoller(bot Bot, handler Handler, opts Options, logger zerolog.Logger) *Poller {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 60 * time.Second
	}
	return &Poller{
		bot:     bot,
		handler: handler,
		opts:    opts,
		logger:  logger.With().Str("component", "telegram").Logger(),
	}
}

// Run polls until ctx is cancelled or the update channel closes, then waits
// for in-flight replies.
func (p *Poller) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = int(p.opts.PollTimeout / time.Second)
	updates := p.bot.GetUpdatesChan(u)

	// Queued commands finish after shutdown starts rather than failing mid-save
	handleCtx := context.WithoutCancel(ctx)

	queues := make([]chan inbound, p.opts.Workers)
	var wg sync.WaitGroup
	for i := range queues {
		queues[i] = make(chan inbound, 16)
		wg.Add(1)
		go func(q <-chan inbound) {
			defer wg.Done()
			for msg := range q {
				p.handle(handleCtx, msg)
			}
		}(queues[i])
	}
	defer func() {
		for _, q := range queues {
			close(q)
		}
		wg.Wait()
	}()

	p.logger.Info().Int("workers", p.opts.Workers).Msg("polling for updates")

	for {
		select {
		case <-ctx.Done():
			p.bot.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			msg, ok := fromUpdate(update)
			if !ok {
				continue
			}
			q := queues[shard(msg.req.CallerID, len(queues))]
			select {
			case q <- msg:
			case <-ctx.Done():
				p.bot.StopReceivingUpdates()
				return nil
			}
		}
	}
}

// handle runs one request and sends the reply. A panicking handler is
// logged and does not stop the worker.
func (p *Poller) handle(ctx context.Context, msg inbound) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().Str("panic", fmt.Sprint(r)).Int64("caller", msg.req.CallerID).Msg("handler panicked")
		}
	}()

	resp, ok := p.handler.Handle(ctx, msg.req)
	if !ok {
		return
	}

	if _, err := p.bot.Send(tgbotapi.NewMessage(msg.chatID, resp.Text)); err != nil {
		metrics.ReplyFailuresTotal.Inc()
		p.logger.Warn().Err(err).Int64("chat", msg.chatID).Msg("failed to send reply")
	}
}

// fromUpdate extracts a text message with a known sender.
func fromUpdate(update tgbotapi.Update) (inbound, bool) {
	m := update.Message
	if m == nil || m.From == nil || m.Chat == nil || m.Text == "" {
		return inbound{}, false
	}
	return inbound{
		chatID: m.Chat.ID,
		req: dispatch.Request{
			CallerID: m.From.ID,
			Text:     m.Text,
		},
	}, true
}

func shard(caller int64, n int) int {
	s := caller % int64(n)
	if s < 0 {
		s = -s
	}
	return int(s)
}
