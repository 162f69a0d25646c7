package monitor

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"
	"unicode/utf8"

	"stockwatch/internal/catalog"
	"stockwatch/internal/notify"
	logx "stockwatch/pkg/logx"
)

// Telegram platform caps. Over-cap messages are truncated, never rejected.
const (
	captionMaxRunes = 1024
	textMaxRunes    = 4096
)

// noSizesFallback is shown for a new listing whose size set is empty
// (sizeless product, or everything already gone at first sight).
const noSizesFallback = "Available"

// Dispatcher renders change events into alert messages and delivers them.
//
// Failure isolation: a failed send is logged and reported via the returned
// error, but the caller never lets it stop the cycle or roll back the
// state commit for the product.
type Dispatcher struct {
	notifier notify.Notifier
	log      logx.Logger
}

func NewDispatcher(n notify.Notifier, log logx.Logger) *Dispatcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Dispatcher{notifier: n, log: log}
}

func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) error {
	snap := ev.Snapshot
	var err error
	switch ev.Kind {
	case KindNew:
		caption := renderNew(snap)
		if snap.ImageURL != "" {
			err = d.notifier.SendPhoto(ctx, truncRunes(caption, captionMaxRunes), snap.ImageURL)
		} else {
			err = d.notifier.SendText(ctx, truncRunes(caption, textMaxRunes))
		}
	case KindSoldOut:
		err = d.notifier.SendText(ctx, truncRunes(renderSoldOut(snap, ev.Sizes), textMaxRunes))
	case KindRestock:
		err = d.notifier.SendText(ctx, truncRunes(renderRestock(snap, ev.Sizes), textMaxRunes))
	default:
		return fmt.Errorf("dispatch: unknown event kind %q", ev.Kind)
	}
	if err != nil {
		d.log.Error("alert dispatch failed",
			logx.String("kind", string(ev.Kind)),
			logx.String("id", snap.ID),
			logx.Err(err))
		return fmt.Errorf("dispatch %s for %s: %w", ev.Kind, snap.ID, err)
	}
	d.log.Info("alert sent",
		logx.String("kind", string(ev.Kind)),
		logx.String("id", snap.ID),
		logx.Strings("sizes", ev.Sizes))
	return nil
}

// Message templates match the channel's established format: HTML parse
// mode, emoji markers, one field per line.

func renderNew(s catalog.Snapshot) string {
	sizes := strings.Join(s.Sizes, ", ")
	if sizes == "" {
		sizes = noSizesFallback
	}
	return fmt.Sprintf("🆕 <b>NEW</b>\n🛍 <b>%s</b>\n💰 ₹%s\n📦 %s\n🔗 %s",
		html.EscapeString(s.Name), formatPrice(s.Price), html.EscapeString(sizes), s.Link)
}

func renderSoldOut(s catalog.Snapshot, sizes []string) string {
	return fmt.Sprintf("⚠️ <b>SOLD OUT</b>\n🛍 <b>%s</b>\n❌ %s\n🔗 %s",
		html.EscapeString(s.Name), html.EscapeString(strings.Join(sizes, ", ")), s.Link)
}

func renderRestock(s catalog.Snapshot, sizes []string) string {
	return fmt.Sprintf("🔥 <b>RESTOCK</b>\n🛍 <b>%s</b>\n✅ %s\n🔗 %s",
		html.EscapeString(s.Name), html.EscapeString(strings.Join(sizes, ", ")), s.Link)
}

// formatPrice renders whole-currency prices without a decimal tail.
func formatPrice(p float64) string {
	if p == float64(int64(p)) {
		return strconv.FormatInt(int64(p), 10)
	}
	return strconv.FormatFloat(p, 'f', 2, 64)
}

// truncRunes returns s truncated to at most n runes, ellipsis included.
func truncRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		count++
		if count == n {
			return s[:i] + "…"
		}
	}
	return s
}
