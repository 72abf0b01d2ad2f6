package projection

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// URIResolver reads the current display URI of a token. Implementations
// absorb call failures and return "".
type URIResolver interface {
	TokenURI(ctx context.Context, contract common.Address, tokenID *big.Int) string
}

// LogReader lists the content hashes of a logbook's on-chain logs in order.
// Implementations absorb call failures and return nil.
type LogReader interface {
	Logs(ctx context.Context, contract common.Address, tokenID *big.Int) []common.Hash
}

// ContractReader is the read-only contract state accessor.
type ContractReader interface {
	URIResolver
	LogReader
}
