// Package telegram implements notify.Notifier on the Telegram bot API.
package telegram

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	logx "stockwatch/pkg/logx"
)

type Config struct {
	Token string
	// ChatID is a numeric chat id or an @channelname.
	ChatID      string
	SendTimeout time.Duration // per-call HTTP timeout; default 10s
	RatePerSec  int           // outbound sends per second; default 3
}

// Notifier sends outbound-only messages to one chat. It never polls for
// updates; there is no inbound command surface.
//
// All sends go through a process-wide token bucket so a bursty cycle
// (many products changing at once) stays under Telegram's rate limits.
type Notifier struct {
	log     logx.Logger
	bot     *tele.Bot
	chat    recipient
	limiter *rate.Limiter
	opts    *tele.SendOptions
}

// recipient adapts the raw chat id string to telebot's Recipient.
// Telegram accepts both numeric ids and @channelname here.
type recipient string

func (r recipient) Recipient() string { return string(r) }

func New(cfg Config, log logx.Logger) (*Notifier, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram: token is empty")
	}
	if strings.TrimSpace(cfg.ChatID) == "" {
		return nil, errors.New("telegram: chat_id is empty")
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 3
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Client: &http.Client{Timeout: cfg.SendTimeout},
	})
	if err != nil {
		return nil, err
	}

	return &Notifier{
		log:  log,
		bot:  b,
		chat: recipient(strings.TrimSpace(cfg.ChatID)),
		// Token bucket: burst = rate per sec, so short spikes don't block too hard.
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
		opts: &tele.SendOptions{
			ParseMode:             tele.ModeHTML,
			DisableWebPagePreview: true,
		},
	}, nil
}

func (n *Notifier) SendText(ctx context.Context, text string) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return err
	}
	// telebot calls don't take a context; the HTTP client timeout bounds them.
	_, err := n.bot.Send(n.chat, text, n.opts)
	if err != nil {
		n.log.Debug("sendMessage failed", logx.Err(err))
	}
	return err
}

func (n *Notifier) SendPhoto(ctx context.Context, caption, imageURL string) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return err
	}
	photo := &tele.Photo{File: tele.FromURL(imageURL), Caption: caption}
	_, err := n.bot.Send(n.chat, photo, n.opts)
	if err != nil {
		n.log.Debug("sendPhoto failed", logx.Err(err))
	}
	return err
}
