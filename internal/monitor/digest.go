package monitor

import (
	"context"
	"fmt"
	"sync"

	"stockwatch/internal/notify"
	logx "stockwatch/pkg/logx"
)

// Digester posts a periodic summary to the alert channel so operators can
// see the monitor working (and notice dispatch outages after the fact).
// It is driven by a cron entry owned by the app.
type Digester struct {
	svc      *Service
	notifier notify.Notifier
	log      logx.Logger

	mu   sync.Mutex
	prev Status
}

func NewDigester(svc *Service, n notify.Notifier, log logx.Logger) *Digester {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Digester{svc: svc, notifier: n, log: log}
}

// Emit sends one digest covering the window since the previous Emit.
func (d *Digester) Emit(ctx context.Context) {
	now := d.svc.Status()

	d.mu.Lock()
	prev := d.prev
	d.prev = now
	d.mu.Unlock()

	msg := renderDigest(prev, now)
	if err := d.notifier.SendText(ctx, msg); err != nil {
		d.log.Warn("digest send failed", logx.Err(err))
		return
	}
	d.log.Info("digest sent", logx.Int("products", now.ProductsTracked))
}

func renderDigest(prev, now Status) string {
	cycles := now.CyclesRun - prev.CyclesRun
	failed := now.CyclesFailed - prev.CyclesFailed
	alerts := (now.AlertsNew + now.AlertsRestock + now.AlertsSoldOut) -
		(prev.AlertsNew + prev.AlertsRestock + prev.AlertsSoldOut)
	errs := now.DispatchErrors - prev.DispatchErrors

	return fmt.Sprintf(
		"📊 <b>Stockwatch digest</b>\n"+
			"📦 Tracking %d products\n"+
			"🔄 %d cycles (%d failed)\n"+
			"📣 %d alerts (🆕 %d / 🔥 %d / ⚠️ %d)\n"+
			"❗ %d dispatch errors",
		now.ProductsTracked,
		cycles, failed,
		alerts,
		now.AlertsNew-prev.AlertsNew,
		now.AlertsRestock-prev.AlertsRestock,
		now.AlertsSoldOut-prev.AlertsSoldOut,
		errs,
	)
}
