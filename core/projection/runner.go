package projection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"logbook/core/events"
	"logbook/core/types"
	"logbook/storage/entitystore"
)

var (
	// ErrSourceDrained is returned by finite sources once every event was delivered.
	ErrSourceDrained = errors.New("projection: source drained")
	// ErrNoNewBlocks is returned while no finalized block is available past from.
	ErrNoNewBlocks = errors.New("projection: no new finalized blocks")
)

const cursorID = "head"

// Batch is a run of finalized events covering blocks up to and including Through.
type Batch struct {
	Events  []events.LogEvent
	Through uint64
}

// Source delivers finalized events in canonical order. A batch whose Through
// is below from means the source has nothing new yet.
type Source interface {
	Fetch(ctx context.Context, from uint64) (Batch, error)
}

// Cursor is the persisted resume point.
type Cursor struct {
	NextBlock uint64       `json:"nextBlock"`
	Last      *events.Meta `json:"last,omitempty"`
}

func LoadCursor(store *entitystore.Store) (Cursor, bool, error) {
	var cursor Cursor
	found, err := store.Load(types.KindCursor, cursorID, &cursor)
	return cursor, found, err
}

func SaveCursor(store *entitystore.Store, cursor Cursor) error {
	return store.Save(types.KindCursor, cursorID, cursor)
}

// RunnerConfig wires a Runner.
type RunnerConfig struct {
	Dispatcher   *Dispatcher
	Store        *entitystore.Store
	Source       Source
	StartBlock   uint64
	PollInterval time.Duration
	Logger       *slog.Logger
	// OnCheckpoint is called after each persisted cursor.
	OnCheckpoint func(block uint64)
}

// Runner pulls batches from a Source, applies them and checkpoints after
// every batch.
type Runner struct {
	cfg    RunnerConfig
	logger *slog.Logger
}

func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.Dispatcher == nil || cfg.Store == nil || cfg.Source == nil {
		return nil, fmt.Errorf("projection: runner requires dispatcher, store and source")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{cfg: cfg, logger: logger.With(slog.String("component", "runner"))}, nil
}

// Run blocks until ctx is cancelled, the source drains, or an event fails to
// apply. Fetch failures are retried after the poll interval.
func (r *Runner) Run(ctx context.Context) error {
	cursor, found, err := LoadCursor(r.cfg.Store)
	if err != nil {
		return fmt.Errorf("load cursor: %w", err)
	}
	if !found || cursor.NextBlock < r.cfg.StartBlock {
		cursor.NextBlock = r.cfg.StartBlock
	}
	// Events at or before resumed were committed by an earlier run that
	// stopped mid-batch.
	resumed := cursor.Last
	if resumed != nil {
		r.cfg.Dispatcher.Resume(*resumed)
	}
	r.logger.Info("projection resumed", slog.Uint64("next_block", cursor.NextBlock))

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch, err := r.cfg.Source.Fetch(ctx, cursor.NextBlock)
		switch {
		case errors.Is(err, ErrSourceDrained):
			r.logger.Info("source drained", slog.Uint64("next_block", cursor.NextBlock))
			return nil
		case errors.Is(err, context.Canceled):
			return err
		case errors.Is(err, ErrNoNewBlocks):
			if err := sleep(ctx, r.cfg.PollInterval); err != nil {
				return err
			}
			continue
		case err != nil:
			r.logger.Warn("fetch failed", slog.Uint64("from", cursor.NextBlock), slog.Any("error", err))
			if err := sleep(ctx, r.cfg.PollInterval); err != nil {
				return err
			}
			continue
		}
		if batch.Through < cursor.NextBlock {
			if err := sleep(ctx, r.cfg.PollInterval); err != nil {
				return err
			}
			continue
		}

		// A started batch always runs to completion; a cancelled context would
		// turn contract reads into reverted defaults mid-batch.
		applyCtx := context.WithoutCancel(ctx)
		for _, evt := range batch.Events {
			if resumed != nil && !resumed.Before(evt.Metadata()) {
				continue
			}
			if err := r.commit(applyCtx, evt, &cursor); err != nil {
				return err
			}
		}
		cursor.NextBlock = batch.Through + 1
		if err := SaveCursor(r.cfg.Store, cursor); err != nil {
			return fmt.Errorf("save cursor: %w", err)
		}
		if r.cfg.OnCheckpoint != nil {
			r.cfg.OnCheckpoint(batch.Through)
		}
		r.logger.Debug("batch applied", slog.Int("events", len(batch.Events)), slog.Uint64("through", batch.Through))
	}
}

// commit applies evt and persists its entity mutations together with the
// advanced cursor in one atomic write.
func (r *Runner) commit(ctx context.Context, evt events.LogEvent, cursor *Cursor) error {
	store := r.cfg.Store
	if err := store.Begin(); err != nil {
		return err
	}
	prev := r.cfg.Dispatcher.last
	if err := r.cfg.Dispatcher.Apply(ctx, evt); err != nil {
		store.Discard()
		return err
	}
	meta := evt.Metadata()
	next := Cursor{NextBlock: cursor.NextBlock, Last: &meta}
	if err := SaveCursor(store, next); err != nil {
		store.Discard()
		r.cfg.Dispatcher.last = prev
		return fmt.Errorf("stage cursor: %w", err)
	}
	if err := store.Commit(); err != nil {
		r.cfg.Dispatcher.last = prev
		return fmt.Errorf("commit %s: %w", meta, err)
	}
	*cursor = next
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
