package ingestion

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"solana-arb-engine/internal/domain"
	"solana-arb-engine/internal/observability"
	"solana-arb-engine/internal/solana"
)

// Feed reads log notifications from one provider, parses them, and
// hands events to the shared engine channels. Several feeds race each
// other into the same channels; the consensus gate downstream decides
// which arrival wins.
type Feed struct {
	name     string
	ws       solana.WSClient
	parser   *LogParser
	programs []string
	updates  chan domain.PriceUpdate
	whiffs   chan domain.WhiffEvent
	metrics  *observability.Metrics
	log      *logrus.Entry
}

// NewFeed creates a feed for one provider. The updates and whiffs
// channels are shared across all feeds and consumed by the Runner.
func NewFeed(name string, ws solana.WSClient, programs []string, updates chan domain.PriceUpdate, whiffs chan domain.WhiffEvent, metrics *observability.Metrics, log *logrus.Entry) *Feed {
	if len(programs) == 0 {
		programs = DefaultPrograms()
	}
	return &Feed{
		name:     name,
		ws:       ws,
		parser:   NewLogParser(),
		programs: programs,
		updates:  updates,
		whiffs:   whiffs,
		metrics:  metrics,
		log:      log.WithField("provider", name),
	}
}

// Name returns the provider name this feed is attributed to.
func (f *Feed) Name() string {
	return f.name
}

// Run subscribes to every monitored program and processes
// notifications until the context is cancelled. It never blocks on a
// full engine channel: the oldest unconsumed event is dropped instead,
// so a slow consumer cannot back up the socket reader.
func (f *Feed) Run(ctx context.Context) error {
	// Some providers only accept one mentioned address per
	// subscription, so subscribe per program and merge.
	merged := make(chan solana.LogNotification, 1000)
	for _, program := range f.programs {
		logsCh, err := f.ws.SubscribeLogs(ctx, solana.LogsFilter{
			Mentions: []string{program},
		})
		if err != nil {
			return fmt.Errorf("subscribe to %s: %w", program, err)
		}
		f.log.WithField("program", program).Info("subscribed to program logs")

		go func(ch <-chan solana.LogNotification) {
			for notif := range ch {
				select {
				case merged <- notif:
				case <-ctx.Done():
					return
				}
			}
		}(logsCh)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case notif := <-merged:
			f.process(notif)
		}
	}
}

func (f *Feed) process(notif solana.LogNotification) {
	f.metrics.WSMessagesReceived.WithLabelValues(f.name).Inc()

	res := f.parser.Parse(notif)
	for kind, n := range res.Errors {
		f.metrics.ParseErrors.WithLabelValues(kind).Add(float64(n))
	}

	for _, update := range res.Updates {
		update.Provider = f.name
		offer(f.updates, update)
	}
	for _, whiff := range res.Whiffs {
		if whiff.Source == "" {
			whiff.Source = f.name
		}
		offer(f.whiffs, whiff)
	}
}

// offer sends without blocking. When the channel is full the oldest
// buffered event is dropped to make room; if another consumer wins
// that race the event is dropped instead.
func offer[T any](ch chan T, v T) {
	select {
	case ch <- v:
		return
	default:
	}

	select {
	case <-ch:
	default:
	}

	select {
	case ch <- v:
	default:
	}
}
