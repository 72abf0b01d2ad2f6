package projection

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"logbook/core/types"
	"logbook/storage/entitystore"
)

// ForkInput carries one fork event in projection terms.
type ForkInput struct {
	Contract  common.Address
	From      *big.Int
	To        *big.Int
	End       common.Hash
	Amount    *uint256.Int
	CreatedAt uint64
	TxHash    common.Hash
}

// ForkResult reports what a propagation touched, for logging and metrics.
type ForkResult struct {
	ForkID string
	// LogCount is the destination's on-chain log count, the cut length.
	LogCount int
	// Copied is the number of publications copied into the destination.
	Copied int
	// Duplicate is set when the fork was already recorded; nothing else is
	// touched in that case.
	Duplicate           bool
	SourceMissing       bool
	DestinationMissing  bool
	MissingContents     int
	MissingPublications int
}

// Forker copies a prefix of a logbook's history into a freshly minted child.
type Forker struct {
	store        *entitystore.Store
	logbooks     *Logbooks
	contents     *Contents
	publications *Publications
	logs         LogReader
}

func NewForker(store *entitystore.Store, logbooks *Logbooks, contents *Contents, publications *Publications, logs LogReader) *Forker {
	return &Forker{
		store:        store,
		logbooks:     logbooks,
		contents:     contents,
		publications: publications,
		logs:         logs,
	}
}

// Propagate applies a fork. The destination's log list is read once and
// serves as both the cut length and the set of contents to back-link, so a
// single event never observes two different chain states.
func (f *Forker) Propagate(ctx context.Context, in ForkInput) (ForkResult, error) {
	fromID := ContainerID(in.From)
	toID := ContainerID(in.To)
	result := ForkResult{ForkID: ForkID(fromID, toID)}

	created, err := f.recordFork(result.ForkID, fromID, toID, in)
	if err != nil || !created {
		result.Duplicate = err == nil
		return result, err
	}

	var logs []common.Hash
	if f.logs != nil {
		logs = f.logs.Logs(ctx, in.Contract, in.To)
	}
	n := len(logs)
	result.LogCount = n

	found, err := f.logbooks.IncrementForkCount(fromID)
	if err != nil {
		return result, err
	}
	result.SourceMissing = !found

	copied, err := f.initDestination(fromID, toID, n, &result)
	if err != nil {
		return result, err
	}
	if result.DestinationMissing {
		return result, nil
	}

	for _, hash := range logs {
		found, err := f.contents.Link(ContentID(hash), toID)
		if err != nil {
			return result, err
		}
		if !found {
			result.MissingContents++
		}
	}

	for _, pubID := range copied {
		found, err := f.publications.Inherit(pubID, toID)
		if err != nil {
			return result, err
		}
		if !found {
			result.MissingPublications++
		}
	}
	return result, nil
}

// recordFork stores the fork record unless it exists and reports whether it
// was created.
func (f *Forker) recordFork(id, fromID, toID string, in ForkInput) (bool, error) {
	var existing types.Fork
	found, err := f.store.Load(types.KindFork, id, &existing)
	if err != nil || found {
		return false, err
	}
	amount := new(uint256.Int)
	if in.Amount != nil {
		amount = in.Amount.Clone()
	}
	err = f.store.Save(types.KindFork, id, &types.Fork{
		ID:         id,
		From:       fromID,
		To:         toID,
		CutContent: ContentID(in.End),
		Amount:     amount,
		CreatedAt:  in.CreatedAt,
		TxHash:     in.TxHash.Hex(),
	})
	return err == nil, err
}

// initDestination links the child to its parent and seeds it with the first
// n publications of the parent. It returns the copied publication ids.
func (f *Forker) initDestination(fromID, toID string, n int, result *ForkResult) ([]string, error) {
	dest, found, err := f.logbooks.Load(toID)
	if err != nil {
		return nil, err
	}
	if !found {
		result.DestinationMissing = true
		return nil, nil
	}
	source, found, err := f.logbooks.Load(fromID)
	if err != nil {
		return nil, err
	}

	prefix := []string{}
	if found {
		dest.Title = source.Title
		dest.Description = source.Description
		cut := min(n, len(source.Publications))
		prefix = append(prefix, source.Publications[:cut]...)
	}
	dest.Parent = fromID
	dest.Publications = prefix
	dest.PublicationCount = uint64(len(prefix))
	if err := f.logbooks.Save(dest); err != nil {
		return nil, err
	}
	result.Copied = len(prefix)
	return prefix, nil
}
