package projection

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/holiman/uint256"

	"logbook/core/events"
	"logbook/core/types"
)

type handlerFunc func(d *Dispatcher, ctx context.Context, evt events.LogEvent) error

// handle adapts a typed apply method to the registry signature.
func handle[E events.LogEvent](fn func(*Dispatcher, context.Context, E) error) handlerFunc {
	return func(d *Dispatcher, ctx context.Context, evt events.LogEvent) error {
		typed, ok := evt.(E)
		if !ok {
			return fmt.Errorf("%w: %T", ErrUnhandledEvent, evt)
		}
		return fn(d, ctx, typed)
	}
}

// handlers maps each contract event type to exactly one apply function.
var handlers = map[string]handlerFunc{
	events.TypeTransfer:       handle((*Dispatcher).applyTransfer),
	events.TypeContent:        handle((*Dispatcher).applyContent),
	events.TypePublish:        handle((*Dispatcher).applyPublish),
	events.TypeSetTitle:       handle((*Dispatcher).applySetTitle),
	events.TypeSetDescription: handle((*Dispatcher).applySetDescription),
	events.TypeSetForkPrice:   handle((*Dispatcher).applySetForkPrice),
	events.TypeFork:           handle((*Dispatcher).applyFork),
	events.TypeDonate:         handle((*Dispatcher).applyDonate),
	events.TypePay:            handle((*Dispatcher).applyPay),
	events.TypeWithdraw:       handle((*Dispatcher).applyWithdraw),
}

func toUint256(v *big.Int) (*uint256.Int, error) {
	if v == nil {
		return new(uint256.Int), nil
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("negative amount %s", v)
	}
	out, overflow := uint256.FromBig(v)
	if overflow {
		return nil, fmt.Errorf("amount %s exceeds 256 bits", v)
	}
	return out, nil
}

func (d *Dispatcher) applyTransfer(ctx context.Context, e events.Transfer) error {
	if _, err := d.accounts.GetOrCreate(AccountID(e.From)); err != nil {
		return err
	}
	owner := AccountID(e.To)
	if _, err := d.accounts.GetOrCreate(owner); err != nil {
		return err
	}
	logbook, created, err := d.logbooks.Transfer(ctx, e.Contract, e.TokenID, owner, e.BlockTimestamp)
	if err != nil {
		return err
	}
	if created {
		d.logger.DebugContext(ctx, "logbook created", slog.String("logbook", logbook.ID), slog.String("owner", owner))
	}
	return nil
}

func (d *Dispatcher) applyContent(ctx context.Context, e events.Content) error {
	author := AccountID(e.Author)
	if _, err := d.accounts.GetOrCreate(author); err != nil {
		return err
	}
	_, created, err := d.contents.RecordIfAbsent(ContentID(e.ContentHash), author, e.Content, e.BlockTimestamp)
	if err != nil {
		return err
	}
	if !created {
		d.skip(ctx, e, SkipDuplicate, slog.String("content", ContentID(e.ContentHash)))
	}
	return nil
}

func (d *Dispatcher) applyPublish(ctx context.Context, e events.Publish) error {
	pubID := e.LogID()
	containerID := ContainerID(e.TokenID)
	contentID := ContentID(e.ContentHash)

	_, created, err := d.publications.RecordIfAbsent(types.Publication{
		ID:              pubID,
		Content:         contentID,
		OriginContainer: containerID,
		CreatedAt:       e.BlockTimestamp,
		TxHash:          e.TxHash.Hex(),
	})
	if err != nil {
		return err
	}
	if !created {
		d.skip(ctx, e, SkipDuplicate, slog.String("publication", pubID))
		return nil
	}

	found, err := d.logbooks.AppendPublication(ctx, e.Contract, e.TokenID, pubID, e.BlockTimestamp)
	if err != nil {
		return err
	}
	if !found {
		d.skip(ctx, e, SkipLogbookMissing, slog.String("logbook", containerID))
	}

	found, err = d.contents.Published(contentID, containerID)
	if err != nil {
		return err
	}
	if !found {
		d.skip(ctx, e, SkipContentMissing, slog.String("content", contentID))
	}
	return nil
}

func (d *Dispatcher) applySetTitle(ctx context.Context, e events.SetTitle) error {
	found, err := d.logbooks.SetTitle(ContainerID(e.TokenID), e.Title)
	if err == nil && !found {
		d.skip(ctx, e, SkipLogbookMissing, slog.String("logbook", ContainerID(e.TokenID)))
	}
	return err
}

func (d *Dispatcher) applySetDescription(ctx context.Context, e events.SetDescription) error {
	found, err := d.logbooks.SetDescription(ContainerID(e.TokenID), e.Description)
	if err == nil && !found {
		d.skip(ctx, e, SkipLogbookMissing, slog.String("logbook", ContainerID(e.TokenID)))
	}
	return err
}

func (d *Dispatcher) applySetForkPrice(ctx context.Context, e events.SetForkPrice) error {
	price, err := toUint256(e.Amount)
	if err != nil {
		return err
	}
	found, err := d.logbooks.SetForkPrice(ContainerID(e.TokenID), price)
	if err == nil && !found {
		d.skip(ctx, e, SkipLogbookMissing, slog.String("logbook", ContainerID(e.TokenID)))
	}
	return err
}

func (d *Dispatcher) applyFork(ctx context.Context, e events.Fork) error {
	amount, err := toUint256(e.Amount)
	if err != nil {
		return err
	}
	result, err := d.forker.Propagate(ctx, ForkInput{
		Contract:  e.Contract,
		From:      e.TokenID,
		To:        e.NewTokenID,
		End:       e.End,
		Amount:    amount,
		CreatedAt: e.BlockTimestamp,
		TxHash:    e.TxHash,
	})
	if err != nil {
		return err
	}
	if result.Duplicate {
		d.skip(ctx, e, SkipDuplicate, slog.String("fork", result.ForkID))
		return nil
	}
	if result.SourceMissing {
		d.skip(ctx, e, SkipLogbookMissing, slog.String("logbook", ContainerID(e.TokenID)), slog.String("role", "source"))
	}
	if result.DestinationMissing {
		d.skip(ctx, e, SkipLogbookMissing, slog.String("logbook", ContainerID(e.NewTokenID)), slog.String("role", "destination"))
	}
	if result.MissingContents > 0 {
		d.skip(ctx, e, SkipContentMissing, slog.Int("count", result.MissingContents))
	}
	if result.MissingPublications > 0 {
		d.skip(ctx, e, SkipPublicationMissing, slog.Int("count", result.MissingPublications))
	}
	d.logger.InfoContext(ctx, "logbook forked",
		slog.String("fork", result.ForkID),
		slog.Int("logs", result.LogCount),
		slog.Int("copied", result.Copied),
	)
	return nil
}

func (d *Dispatcher) applyDonate(ctx context.Context, e events.Donate) error {
	amount, err := toUint256(e.Amount)
	if err != nil {
		return err
	}
	donor := AccountID(e.Donor)
	if _, err := d.accounts.GetOrCreate(donor); err != nil {
		return err
	}
	containerID := ContainerID(e.TokenID)
	id := DonationID(e.Meta, d.donationIDs)
	created, err := d.recordIfAbsent(types.KindDonation, id, &types.Donation{
		ID:        id,
		Container: containerID,
		Donor:     donor,
		Amount:    amount,
		CreatedAt: e.BlockTimestamp,
		TxHash:    e.TxHash.Hex(),
	})
	if err != nil {
		return err
	}
	if !created {
		d.skip(ctx, e, SkipDuplicate, slog.String("donation", id))
		return nil
	}
	found, err := d.logbooks.IncrementDonationCount(containerID)
	if err == nil && !found {
		d.skip(ctx, e, SkipLogbookMissing, slog.String("logbook", containerID))
	}
	return err
}

func (d *Dispatcher) applyPay(ctx context.Context, e events.Pay) error {
	amount, err := toUint256(e.Amount)
	if err != nil {
		return err
	}
	sender := AccountID(e.Sender)
	if _, err := d.accounts.GetOrCreate(sender); err != nil {
		return err
	}
	recipient := AccountID(e.Recipient)
	if _, err := d.accounts.GetOrCreate(recipient); err != nil {
		return err
	}
	id := e.LogID()
	created, err := d.recordIfAbsent(types.KindPayment, id, &types.Payment{
		ID:        id,
		Container: ContainerID(e.TokenID),
		Sender:    sender,
		Recipient: recipient,
		Amount:    amount,
		Purpose:   types.PurposeFromCode(e.Purpose),
		CreatedAt: e.BlockTimestamp,
		TxHash:    e.TxHash.Hex(),
	})
	if err != nil {
		return err
	}
	if !created {
		d.skip(ctx, e, SkipDuplicate, slog.String("payment", id))
		return nil
	}
	_, err = d.accounts.Credit(recipient, amount)
	return err
}

func (d *Dispatcher) applyWithdraw(ctx context.Context, e events.Withdraw) error {
	id := AccountID(e.Account)
	found, err := d.accounts.Reset(id)
	if err == nil && !found {
		d.skip(ctx, e, SkipAccountMissing, slog.String("account", id))
	}
	return err
}

// recordIfAbsent saves an immutable entity unless its id already exists.
func (d *Dispatcher) recordIfAbsent(kind, id string, entity any) (bool, error) {
	var existing map[string]any
	found, err := d.store.Load(kind, id, &existing)
	if err != nil || found {
		return false, err
	}
	return true, d.store.Save(kind, id, entity)
}
