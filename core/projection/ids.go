package projection

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"logbook/core/events"
)

// DonationIDMode selects how donation records are keyed.
type DonationIDMode string

const (
	// DonationIDPerLog keys donations by transaction hash and log index.
	DonationIDPerLog DonationIDMode = "tx_log"
	// DonationIDPerTx keys donations by transaction hash alone. Only the first
	// donation of a transaction is kept.
	DonationIDPerTx DonationIDMode = "tx"
)

// ParseDonationIDMode accepts the config spelling; empty selects per-log ids.
func ParseDonationIDMode(raw string) (DonationIDMode, error) {
	switch DonationIDMode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", DonationIDPerLog:
		return DonationIDPerLog, nil
	case DonationIDPerTx:
		return DonationIDPerTx, nil
	default:
		return "", fmt.Errorf("unknown donation id mode %q", raw)
	}
}

func AccountID(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}

func ContentID(hash common.Hash) string {
	return hash.Hex()
}

// ContainerID renders a token id in decimal.
func ContainerID(tokenID *big.Int) string {
	if tokenID == nil {
		return "0"
	}
	return tokenID.String()
}

func ForkID(from, to string) string {
	return from + "-" + to
}

// DonationID derives the donation key for meta under mode.
func DonationID(meta events.Meta, mode DonationIDMode) string {
	if mode == DonationIDPerTx {
		return meta.TxHash.Hex()
	}
	return meta.LogID()
}
