package chain

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"logbook/core/events"
)

// Accessor call names reported to the FailureObserver.
const (
	CallGetLogbook = "getLogbook"
	CallTokenURI   = "tokenURI"
)

// Caller is the subset of the Ethereum RPC used for contract reads.
type Caller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// FailureObserver counts absorbed contract read failures.
type FailureObserver interface {
	AccessorFailed(call string)
}

// Dial initialises an EVM RPC client for the provided endpoint. HTTP
// requests carry trace context.
func Dial(ctx context.Context, endpoint string) (*ethclient.Client, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return nil, fmt.Errorf("rpc endpoint required")
	}
	httpClient := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	client, err := rpc.DialOptions(ctx, trimmed, rpc.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	return ethclient.NewClient(client), nil
}

// book mirrors the getLogbook tuple.
type book struct {
	EndAt         uint32
	LogCount      uint32
	TransferCount uint32
	ForkPrice     *big.Int
	ContentHashes [][32]byte
}

// EVMReader answers the projection's contract reads. Calls are pinned to the
// block of the event being applied when the context carries one. Every
// failure degrades to the zero value: no logs, empty URI.
type EVMReader struct {
	client   Caller
	abi      abi.ABI
	logger   *slog.Logger
	observer FailureObserver
}

func NewEVMReader(client Caller, logger *slog.Logger, observer FailureObserver) (*EVMReader, error) {
	if client == nil {
		return nil, fmt.Errorf("evm reader requires a client")
	}
	parsed, err := LogbookABI()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EVMReader{client: client, abi: parsed, logger: logger, observer: observer}, nil
}

// Logs returns the ordered content hashes of the logbook's on-chain log list.
func (r *EVMReader) Logs(ctx context.Context, contract common.Address, tokenID *big.Int) []common.Hash {
	out, err := r.call(ctx, contract, CallGetLogbook, tokenID)
	if err != nil {
		r.failed(ctx, CallGetLogbook, tokenID, err)
		return nil
	}
	values, err := r.abi.Unpack(CallGetLogbook, out)
	if err != nil || len(values) != 1 {
		r.failed(ctx, CallGetLogbook, tokenID, fmt.Errorf("unpack: %v", err))
		return nil
	}
	b := *abi.ConvertType(values[0], new(book)).(*book)
	hashes := make([]common.Hash, len(b.ContentHashes))
	for i, h := range b.ContentHashes {
		hashes[i] = common.Hash(h)
	}
	return hashes
}

// TokenURI returns the contract's metadata URI for tokenID.
func (r *EVMReader) TokenURI(ctx context.Context, contract common.Address, tokenID *big.Int) string {
	out, err := r.call(ctx, contract, CallTokenURI, tokenID)
	if err != nil {
		r.failed(ctx, CallTokenURI, tokenID, err)
		return ""
	}
	values, err := r.abi.Unpack(CallTokenURI, out)
	if err != nil || len(values) != 1 {
		r.failed(ctx, CallTokenURI, tokenID, fmt.Errorf("unpack: %v", err))
		return ""
	}
	uri, _ := values[0].(string)
	return uri
}

func (r *EVMReader) call(ctx context.Context, contract common.Address, method string, tokenID *big.Int) ([]byte, error) {
	input, err := r.abi.Pack(method, tokenID)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	var block *big.Int
	if meta, ok := events.MetaFromContext(ctx); ok {
		block = new(big.Int).SetUint64(meta.BlockNumber)
	}
	return r.client.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: input}, block)
}

func (r *EVMReader) failed(ctx context.Context, call string, tokenID *big.Int, err error) {
	if r.observer != nil {
		r.observer.AccessorFailed(call)
	}
	r.logger.WarnContext(ctx, "contract read failed",
		slog.String("call", call),
		slog.String("token_id", tokenID.String()),
		slog.Any("error", err),
	)
}
