// Package projection turns the ordered stream of Logbook contract events into
// the account, content, logbook, publication, donation, payment and fork
// entities.
//
// Events are applied one at a time. Every handler re-loads the entities it
// touches, so a later mutation within the same event observes the earlier
// ones. Mutations that reference an entity not yet projected are skipped and
// reported; only storage failures abort the run.
package projection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"logbook/core/events"
	"logbook/storage/entitystore"
)

var (
	// ErrOutOfOrder is returned when an event does not sort strictly after
	// the previously applied one.
	ErrOutOfOrder = errors.New("projection: event out of order")
	// ErrUnhandledEvent is returned for event types without a handler.
	ErrUnhandledEvent = errors.New("projection: unhandled event type")
)

// Skip reasons reported to the Observer.
const (
	SkipLogbookMissing     = "logbook_missing"
	SkipContentMissing     = "content_missing"
	SkipPublicationMissing = "publication_missing"
	SkipAccountMissing     = "account_missing"
	SkipDuplicate          = "duplicate"
)

// Observer receives projection telemetry. All methods must be cheap.
type Observer interface {
	Applied(eventType string, elapsed time.Duration)
	Skipped(eventType, reason string)
}

type noopObserver struct{}

func (noopObserver) Applied(string, time.Duration) {}
func (noopObserver) Skipped(string, string)        {}

// Config wires a Dispatcher.
type Config struct {
	Store       *entitystore.Store
	Reader      ContractReader
	Logger      *slog.Logger
	Observer    Observer
	DonationIDs DonationIDMode
}

// Dispatcher routes each event to its handler.
type Dispatcher struct {
	store        *entitystore.Store
	accounts     *Accounts
	contents     *Contents
	logbooks     *Logbooks
	publications *Publications
	forker       *Forker
	donationIDs  DonationIDMode
	logger       *slog.Logger
	observer     Observer
	tracer       trace.Tracer
	last         *events.Meta
}

// New builds a Dispatcher. A nil Reader is allowed and behaves like an
// accessor whose every call reverts.
func New(cfg Config) (*Dispatcher, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("projection: entity store required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	observer := cfg.Observer
	if observer == nil {
		observer = noopObserver{}
	}
	mode := cfg.DonationIDs
	if mode == "" {
		mode = DonationIDPerLog
	}
	var (
		uris URIResolver
		logs LogReader
	)
	if cfg.Reader != nil {
		uris, logs = cfg.Reader, cfg.Reader
	}
	contents := NewContents(cfg.Store)
	logbooks := NewLogbooks(cfg.Store, uris)
	publications := NewPublications(cfg.Store)
	return &Dispatcher{
		store:        cfg.Store,
		accounts:     NewAccounts(cfg.Store),
		contents:     contents,
		logbooks:     logbooks,
		publications: publications,
		forker:       NewForker(cfg.Store, logbooks, contents, publications, logs),
		donationIDs:  mode,
		logger:       logger.With(slog.String("component", "projection")),
		observer:     observer,
		tracer:       otel.Tracer("logbook/projection"),
	}, nil
}

// Resume seeds the ordering guard with the last event applied before a restart.
func (d *Dispatcher) Resume(last events.Meta) {
	d.last = &last
}

// Last returns the most recently applied event position.
func (d *Dispatcher) Last() (events.Meta, bool) {
	if d.last == nil {
		return events.Meta{}, false
	}
	return *d.last, true
}

// Apply projects a single event. Any returned error is fatal for the run.
func (d *Dispatcher) Apply(ctx context.Context, evt events.LogEvent) error {
	if evt == nil {
		return fmt.Errorf("projection: nil event")
	}
	meta := evt.Metadata()
	if d.last != nil && !d.last.Before(meta) {
		return fmt.Errorf("%w: %s after %s", ErrOutOfOrder, meta, d.last)
	}
	entry, ok := handlers[evt.EventType()]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnhandledEvent, evt.EventType())
	}

	ctx, span := d.tracer.Start(ctx, evt.EventType(), trace.WithAttributes(
		attribute.Int64("block.number", int64(meta.BlockNumber)),
		attribute.String("tx.hash", meta.TxHash.Hex()),
		attribute.Int("log.index", int(meta.LogIndex)),
	))
	defer span.End()

	ctx = events.WithMeta(ctx, meta)
	start := time.Now()
	if err := entry(d, ctx, evt); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("apply %s at %s: %w", evt.EventType(), meta, err)
	}
	d.observer.Applied(evt.EventType(), time.Since(start))
	d.last = &meta
	return nil
}

// ApplyAll projects events in order, stopping at the first failure.
func (d *Dispatcher) ApplyAll(ctx context.Context, evts []events.LogEvent) error {
	for _, evt := range evts {
		if err := d.Apply(ctx, evt); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) skip(ctx context.Context, evt events.LogEvent, reason string, attrs ...any) {
	d.observer.Skipped(evt.EventType(), reason)
	meta := evt.Metadata()
	args := append([]any{
		slog.String("event", evt.EventType()),
		slog.String("reason", reason),
		slog.Uint64("block", meta.BlockNumber),
		slog.String("tx", meta.TxHash.Hex()),
	}, attrs...)
	d.logger.DebugContext(ctx, "mutation skipped", args...)
}
