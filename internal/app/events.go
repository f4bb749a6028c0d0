package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/arjunmehta/overnightbot/internal/domain"
	"github.com/arjunmehta/overnightbot/internal/engine"
	"github.com/arjunmehta/overnightbot/internal/notify"
	"github.com/arjunmehta/overnightbot/internal/server/ws"
)

// eventSink fans lifecycle events out to the WebSocket bus and the
// notification channels. Both paths are best-effort; a delivery failure is
// logged and never surfaces to the engine.
type eventSink struct {
	bus      domain.SignalBus
	notifier *notify.Notifier
	logger   *slog.Logger
}

func newEventSink(bus domain.SignalBus, notifier *notify.Notifier, logger *slog.Logger) *eventSink {
	return &eventSink{
		bus:      bus,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "events")),
	}
}

func (s *eventSink) Publish(ctx context.Context, ev engine.Event) {
	if s.bus != nil {
		payload, err := json.Marshal(ev)
		if err != nil {
			s.logger.Error("marshal event", slog.String("type", ev.Type), slog.String("error", err.Error()))
		} else if err := s.bus.Publish(ctx, ws.EventsChannel, payload); err != nil {
			s.logger.Warn("publish event to bus", slog.String("type", ev.Type), slog.String("error", err.Error()))
		}
	}

	title, message := describeEvent(ev)
	if err := s.notifier.Notify(ctx, ev.Type, title, message); err != nil {
		s.logger.Warn("notify", slog.String("type", ev.Type), slog.String("error", err.Error()))
	}
}

// describeEvent renders an event as a short human-readable notification.
func describeEvent(ev engine.Event) (title, message string) {
	switch ev.Type {
	case notify.EventOpen:
		title = "Position opened"
		if ev.Position != nil {
			message = fmt.Sprintf("%d lots across %d legs, entry %s, cash %s",
				ev.Position.TotalLots, len(ev.Position.Legs),
				domain.FormatINR(ev.Position.EntryValue),
				domain.FormatINR(ev.Funds.Cash))
		}
	case notify.EventClose:
		title = "Position closed"
		if ev.Trade != nil {
			message = fmt.Sprintf("exit %s, P&L %s, cash %s",
				domain.FormatINR(ev.Trade.ExitValue),
				domain.FormatINR(ev.Trade.PnL),
				domain.FormatINR(ev.Funds.Cash))
		}
	default:
		title = "Ledger " + ev.Type
		message = "cash " + domain.FormatINR(ev.Funds.Cash)
	}
	return title, message
}
