package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/time/rate"

	"logbook/core/events"
	"logbook/core/projection"
)

const defaultBatchBlocks = 2000

// LogClient is the subset of the Ethereum RPC used to page through history.
type LogClient interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]gethtypes.Log, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*gethtypes.Header, error)
}

// SourceConfig tunes the log window scan.
type SourceConfig struct {
	Contract common.Address
	// Confirmations is the distance from head a block must have before it is
	// treated as final.
	Confirmations uint64
	BatchBlocks   uint64
	// RPS caps RPC calls per second; zero disables limiting.
	RPS    float64
	Logger *slog.Logger
}

// Source pages finalized Logbook logs out of an EVM node.
type Source struct {
	client  LogClient
	decoder *Decoder
	cfg     SourceConfig
	limiter *rate.Limiter
	logger  *slog.Logger
}

func NewSource(client LogClient, cfg SourceConfig) (*Source, error) {
	if client == nil {
		return nil, fmt.Errorf("source requires a client")
	}
	if cfg.Contract == (common.Address{}) {
		return nil, fmt.Errorf("source requires a contract address")
	}
	decoder, err := NewDecoder()
	if err != nil {
		return nil, err
	}
	if cfg.BatchBlocks == 0 {
		cfg.BatchBlocks = defaultBatchBlocks
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), max(1, int(cfg.RPS)))
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{
		client:  client,
		decoder: decoder,
		cfg:     cfg,
		limiter: limiter,
		logger:  logger.With(slog.String("component", "source")),
	}, nil
}

// Fetch returns the decoded events of the next window starting at from.
func (s *Source) Fetch(ctx context.Context, from uint64) (projection.Batch, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return projection.Batch{}, err
	}
	head, err := s.client.BlockNumber(ctx)
	if err != nil {
		return projection.Batch{}, fmt.Errorf("fetch head: %w", err)
	}
	if head < s.cfg.Confirmations || head-s.cfg.Confirmations < from {
		return projection.Batch{}, projection.ErrNoNewBlocks
	}
	safe := head - s.cfg.Confirmations
	to := min(from+s.cfg.BatchBlocks-1, safe)

	if err := s.limiter.Wait(ctx); err != nil {
		return projection.Batch{}, err
	}
	logs, err := s.client.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{s.cfg.Contract},
		Topics:    [][]common.Hash{s.decoder.Topics()},
	})
	if err != nil {
		return projection.Batch{}, fmt.Errorf("filter logs %d-%d: %w", from, to, err)
	}

	timestamps := make(map[uint64]uint64)
	out := make([]events.LogEvent, 0, len(logs))
	for _, log := range logs {
		if log.Removed {
			continue
		}
		ts, ok := timestamps[log.BlockNumber]
		if !ok {
			ts, err = s.blockTime(ctx, log.BlockNumber)
			if err != nil {
				return projection.Batch{}, err
			}
			timestamps[log.BlockNumber] = ts
		}
		evt, err := s.decoder.Decode(log, ts)
		if errors.Is(err, ErrUnknownLog) {
			s.logger.DebugContext(ctx, "ignoring log", slog.String("tx", log.TxHash.Hex()), slog.Uint64("index", uint64(log.Index)))
			continue
		}
		if err != nil {
			return projection.Batch{}, fmt.Errorf("decode log %s/%d: %w", log.TxHash.Hex(), log.Index, err)
		}
		out = append(out, evt)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Metadata().Before(out[j].Metadata())
	})
	return projection.Batch{Events: out, Through: to}, nil
}

func (s *Source) blockTime(ctx context.Context, number uint64) (uint64, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	header, err := s.client.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return 0, fmt.Errorf("fetch header %d: %w", number, err)
	}
	if header == nil {
		return 0, fmt.Errorf("header %d unavailable", number)
	}
	return header.Time, nil
}
