package ingest

import (
	"context"

	"github.com/bigsnarfdude/papertrail-modern/bucket"
	"github.com/bigsnarfdude/papertrail-modern/storage"
	"github.com/rs/zerolog"
)

// Processor routes events into the storage layer's sketches and publishes
// them onto the live event stream. Each update is independent: a failure
// in one does not stop the others (spec §4.9's continue-on-error rule).
type Processor struct {
	store  *storage.Store
	logger zerolog.Logger
}

// New creates a Processor over store, logging per-update failures with
// logger.
func New(store *storage.Store, logger zerolog.Logger) *Processor {
	return &Processor{store: store, logger: logger}
}

// Process routes a single event through the HLL, Bloom, and Top-K updates
// and publishes it to the event stream. Errors from individual updates are
// logged and contained; only a failure to publish is returned, since
// publish failure means downstream consumers saw nothing for this event.
func (p *Processor) Process(ctx context.Context, event Event) error {
	p.updateHLL(ctx, event)
	p.updateBloom(ctx, event)
	p.updateTopK(ctx, event)
	return p.publish(ctx, event)
}

// ProcessBatch processes events independently, returning (ok, total).
// A single event's failure to publish does not stop the batch.
func (p *Processor) ProcessBatch(ctx context.Context, events []Event) (ok, total int) {
	total = len(events)
	for _, event := range events {
		if err := p.Process(ctx, event); err != nil {
			p.logger.Error().Err(err).Str("system", event.System).Str("event_type", string(event.EventType)).Msg("failed to process event")
			continue
		}
		ok++
	}
	return ok, total
}

func (p *Processor) updateHLL(ctx context.Context, event Event) {
	if event.UserID != "" {
		p.tryAddHLL(ctx, "users", event, event.UserID, []bucket.Window{bucket.Hour, bucket.Day, bucket.Week})
	}
	if event.SessionID != "" {
		p.tryAddHLL(ctx, "sessions", event, event.SessionID, []bucket.Window{bucket.Hour, bucket.Day})
	}
	if ip, ok := event.metaString("ip"); ok {
		p.tryAddHLL(ctx, "ips", event, ip, []bucket.Window{bucket.Hour, bucket.Day})
	}
}

func (p *Processor) tryAddHLL(ctx context.Context, metric string, event Event, value string, windows []bucket.Window) {
	if err := p.store.AddHLL(ctx, metric, event.System, value, event.Timestamp, windows); err != nil {
		p.logUpdateError("hll", metric, event, err)
	}
}

func (p *Processor) updateBloom(ctx context.Context, event Event) {
	if event.UserID != "" {
		value := event.UserID + ":" + event.System
		if err := p.store.AddBloom(ctx, "user_activity", event.System, value, event.Timestamp, bucket.Day); err != nil {
			p.logUpdateError("bloom", "user_activity", event, err)
		}
		if err := p.store.AddBloom(ctx, "user_activity", event.System, value, event.Timestamp, bucket.Week); err != nil {
			p.logUpdateError("bloom", "user_activity", event, err)
		}
	}
	if ip, ok := event.metaString("ip"); ok {
		if err := p.store.AddBloom(ctx, "ip_activity", event.System, ip, event.Timestamp, bucket.Day); err != nil {
			p.logUpdateError("bloom", "ip_activity", event, err)
		}
	}
}

func (p *Processor) updateTopK(ctx context.Context, event Event) {
	if event.UserID != "" {
		p.tryAddTopK(ctx, "active_users", event, event.UserID)
	}
	if ip, ok := event.metaString("ip"); ok {
		p.tryAddTopK(ctx, "active_ips", event, ip)
	}
	p.tryAddTopK(ctx, "event_types", event, string(event.EventType))
	if endpoint, ok := event.metaString("endpoint"); ok {
		p.tryAddTopK(ctx, "endpoints", event, endpoint)
	}
	if event.EventType == SecurityEvent {
		if _, hasStatus := event.Metadata["status_code"]; hasStatus {
			ip, ok := event.metaString("ip")
			if !ok {
				ip = "unknown"
			}
			p.tryAddTopK(ctx, "failed_logins", event, ip)
		}
	}
}

func (p *Processor) tryAddTopK(ctx context.Context, metric string, event Event, value string) {
	if err := p.store.AddTopK(ctx, metric, event.System, value, 1, event.Timestamp, bucket.Hour); err != nil {
		p.logUpdateError("topk", metric, event, err)
	}
}

func (p *Processor) logUpdateError(kind, metric string, event Event, err error) {
	p.logger.Error().
		Err(err).
		Str("sketch", kind).
		Str("metric", metric).
		Str("system", event.System).
		Msg("sketch update failed, continuing with remaining updates")
}

func (p *Processor) publish(ctx context.Context, event Event) error {
	return p.store.Publish(ctx, event)
}
