package ledger

import (
	"strconv"

	"batchledger/core/events"
	"batchledger/native/common"
	"batchledger/observability/metrics"
)

// BurnSpec selects the quantity one owner contributes to a retokenization.
type BurnSpec struct {
	Owner    [20]byte
	Asset    uint32
	Quantity uint64
	TokenIDs []uint64
}

// Burn destroys qty of an asset type held by owner. Token selection follows
// the move primitive exactly, but the destination is a null sink: quantity is
// removed from circulation and every touched batch's burned counter advances.
// Burn initiation requires the administrator capability.
func (e *Engine) Burn(caller, owner [20]byte, asset uint32, qty uint64, tokenIDs []uint64) (*BurnReceipt, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := common.GuardAdmin(e.access, caller); err != nil {
		metrics.Ledger().OpRejected("burn")
		return nil, err
	}
	if !e.state.HasAccount(owner) {
		return nil, ErrBadLedgerOwner
	}
	if qty == 0 || qty > MaxQuantity {
		return nil, ErrBadBurnQty
	}
	if _, ok := e.state.AssetType(asset); !ok {
		return nil, ErrUnknownAsset
	}
	restore := e.state.Snapshot()
	records, err := e.consume(owner, asset, qty, tokenIDs)
	if err != nil {
		restore()
		metrics.Ledger().Rollback("burn")
		return nil, err
	}
	full := true
	for _, rec := range records {
		if !rec.Full {
			full = false
		}
	}
	metrics.Ledger().OpApplied("burn")
	metrics.Ledger().Burned(strconv.FormatUint(uint64(asset), 10), float64(qty))
	metrics.Ledger().SetLiveTokens(float64(e.state.TokenCount()))
	e.emit(events.QuantityBurned{
		Asset:    asset,
		Owner:    owner,
		Quantity: qty,
		Tokens:   len(records),
		Full:     full,
	})
	return &BurnReceipt{Owner: owner, Asset: asset, Quantity: qty, Records: records}, nil
}

// consume runs the burn-selection walk against one owner. The caller owns
// snapshot and rollback; no events are emitted here so the retokenization
// path can substitute its own records.
func (e *Engine) consume(owner [20]byte, asset uint32, qty uint64, tokenIDs []uint64) ([]BurnRecord, error) {
	sources, err := e.selectTokens(owner, asset, tokenIDs)
	if err != nil {
		return nil, err
	}
	var records []BurnRecord
	remaining := qty
	for _, tok := range sources {
		if remaining == 0 {
			break
		}
		if tok.Current == 0 {
			continue
		}
		if tok.Current <= remaining {
			remaining -= tok.Current
			if err := e.recordBurn(tok.Batch, tok.Current); err != nil {
				return nil, err
			}
			if err := e.state.TokenRemove(tok.ID); err != nil {
				return nil, err
			}
			records = append(records, BurnRecord{
				Token:    tok.ID,
				Batch:    tok.Batch,
				Quantity: tok.Current,
				Full:     true,
			})
			continue
		}
		tok.Current -= remaining
		if err := e.recordBurn(tok.Batch, remaining); err != nil {
			return nil, err
		}
		if err := e.state.TokenPut(tok); err != nil {
			return nil, err
		}
		records = append(records, BurnRecord{
			Token:    tok.ID,
			Batch:    tok.Batch,
			Quantity: remaining,
			Full:     false,
		})
		remaining = 0
	}
	if remaining > 0 {
		return nil, ErrInsufficientTokens
	}
	if err := e.state.AggregateSub(owner, asset, qty); err != nil {
		return nil, err
	}
	if err := e.state.BurnedAdd(owner, asset, qty); err != nil {
		return nil, err
	}
	if err := e.state.TotalBurnedAdd(asset, qty); err != nil {
		return nil, err
	}
	return records, nil
}

// Retokenize atomically burns quantity from any number of owners and issues a
// single fresh batch to the recipient. Standard mint and burn events are
// suppressed in favour of dedicated retokenization records. The recipient must
// be a registered ledger participant.
func (e *Engine) Retokenize(caller [20]byte, newAsset uint32, mintQty uint64, recipient [20]byte, issuerShareBps uint32, metadata []MetadataPair, burns []BurnSpec) (*RetokenizeReceipt, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := common.GuardAdmin(e.access, caller); err != nil {
		metrics.Ledger().OpRejected("retokenize")
		return nil, err
	}
	if err := common.GuardEntity(e.entities, recipient); err != nil {
		metrics.Ledger().OpRejected("retokenize")
		return nil, err
	}
	if mintQty == 0 {
		return nil, ErrBadQuantity
	}
	if mintQty > MaxQuantity {
		return nil, ErrTypeOverflow
	}
	if _, ok := e.state.AssetType(newAsset); !ok {
		return nil, ErrUnknownAsset
	}
	for _, spec := range burns {
		if spec.Quantity == 0 {
			return nil, ErrBadBurnQty
		}
		if spec.Quantity > MaxQuantity {
			return nil, ErrTypeOverflow
		}
	}
	restore := e.state.Snapshot()
	receipt := &RetokenizeReceipt{Asset: newAsset, Minted: mintQty, Recipient: recipient}
	for _, spec := range burns {
		if !e.state.HasAccount(spec.Owner) {
			restore()
			return nil, ErrBadLedgerOwner
		}
		if _, ok := e.state.AssetType(spec.Asset); !ok {
			restore()
			return nil, ErrUnknownAsset
		}
		records, err := e.consume(spec.Owner, spec.Asset, spec.Quantity, spec.TokenIDs)
		if err != nil {
			restore()
			metrics.Ledger().Rollback("retokenize")
			return nil, err
		}
		receipt.Burns = append(receipt.Burns, RetokenizeBurn{
			Owner:    spec.Owner,
			Asset:    spec.Asset,
			Quantity: spec.Quantity,
			Records:  records,
		})
	}
	batch, err := e.issueBatch(newAsset, mintQty, caller, recipient, issuerShareBps, metadata)
	if err != nil {
		restore()
		metrics.Ledger().Rollback("retokenize")
		return nil, err
	}
	receipt.Batch = batch.ID
	metrics.Ledger().OpApplied("retokenize")
	metrics.Ledger().Minted(strconv.FormatUint(uint64(newAsset), 10), float64(mintQty))
	metrics.Ledger().SetLiveTokens(float64(e.state.TokenCount()))
	for _, burn := range receipt.Burns {
		metrics.Ledger().Burned(strconv.FormatUint(uint64(burn.Asset), 10), float64(burn.Quantity))
		e.emit(events.RetokenBurn{
			Owner:    burn.Owner,
			Asset:    burn.Asset,
			Quantity: burn.Quantity,
			Tokens:   len(burn.Records),
		})
	}
	e.emit(events.RetokenMint{
		Batch:     batch.ID,
		Asset:     newAsset,
		Recipient: recipient,
		Quantity:  mintQty,
	})
	return receipt, nil
}
