package ledger

import (
	"batchledger/core/events"
	"batchledger/native/common"
	"batchledger/observability/metrics"
)

// KindTransfer is the default transfer-kind tag attached to moves initiated
// directly through the public primitive.
const KindTransfer = "transfer"

// Move relocates qty of an asset type from owner to the receiving account by
// consuming, splitting and merging individual token records. It is the sole
// sanctioned quantity-relocation primitive; the fungible-token adapter and the
// settlement orchestrator both build on it.
func (e *Engine) Move(owner [20]byte, asset uint32, qty uint64, to [20]byte, preferred []uint64) (*MoveReceipt, error) {
	return e.MoveTagged(owner, asset, qty, to, preferred, KindTransfer)
}

// MoveTagged is Move with an explicit transfer-kind tag for the emitted event,
// used by the settlement orchestrator to label fee and exchange legs.
func (e *Engine) MoveTagged(owner [20]byte, asset uint32, qty uint64, to [20]byte, preferred []uint64, kind string) (*MoveReceipt, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := common.Guard(e.access); err != nil {
		metrics.Ledger().OpRejected("move")
		return nil, err
	}
	if qty == 0 {
		return nil, ErrBadQuantity
	}
	if qty > MaxQuantity {
		return nil, ErrTypeOverflow
	}
	if _, ok := e.state.AssetType(asset); !ok {
		return nil, ErrUnknownAsset
	}
	if !e.state.HasAccount(owner) {
		return nil, ErrBadLedgerOwner
	}
	restore := e.state.Snapshot()
	receipt, err := e.move(owner, asset, qty, to, preferred)
	if err != nil {
		restore()
		metrics.Ledger().Rollback("move")
		return nil, err
	}
	splits, merges := 0, 0
	for _, rec := range receipt.Records {
		switch rec.Kind {
		case MoveSplit:
			splits++
		case MoveMerge:
			merges++
		}
	}
	metrics.Ledger().OpApplied("move")
	metrics.Ledger().SetLiveTokens(float64(e.state.TokenCount()))
	e.emit(events.QuantityMoved{
		Asset:    asset,
		From:     owner,
		To:       to,
		Quantity: qty,
		Kind:     kind,
		Splits:   splits,
		Merges:   merges,
	})
	return receipt, nil
}

// move performs the split/merge walk. The caller owns snapshot and rollback.
func (e *Engine) move(owner [20]byte, asset uint32, qty uint64, to [20]byte, preferred []uint64) (*MoveReceipt, error) {
	sources, err := e.selectTokens(owner, asset, preferred)
	if err != nil {
		return nil, err
	}
	receipt := &MoveReceipt{Asset: asset, From: owner, To: to, Quantity: qty}
	e.state.EnsureAccount(to)
	remaining := qty
	for _, src := range sources {
		if remaining == 0 {
			break
		}
		// A merge earlier in the walk can mutate or retire a token that
		// appears later in the source list (a self-move hits this), so every
		// step re-reads the live record instead of trusting the selection-time
		// copy.
		tok, ok := e.state.TokenGet(src.ID)
		if !ok || tok.Current == 0 {
			continue
		}
		if tok.Current <= remaining {
			// Full consumption: the quantity folds into the receiver's
			// existing same-batch token when there is one, destroying the
			// source record; otherwise the record re-homes unchanged.
			moved := tok.Current
			remaining -= moved
			if existing := e.sameBatchToken(to, tok.Batch, tok.ID); existing != nil {
				if existing.Current > MaxQuantity-moved {
					return nil, ErrTypeOverflow
				}
				existing.Current += moved
				if err := e.state.TokenPut(existing); err != nil {
					return nil, err
				}
				if err := e.state.TokenRemove(tok.ID); err != nil {
					return nil, err
				}
				receipt.Records = append(receipt.Records, MoveRecord{
					Kind:       MoveMerge,
					Token:      tok.ID,
					MergedInto: existing.ID,
					Batch:      tok.Batch,
					Quantity:   moved,
				})
				continue
			}
			tok.Owner = to
			if err := e.state.TokenPut(tok); err != nil {
				return nil, err
			}
			receipt.Records = append(receipt.Records, MoveRecord{
				Kind:     MoveFull,
				Token:    tok.ID,
				Batch:    tok.Batch,
				Quantity: moved,
			})
			continue
		}
		// Terminal partial token: carve the remaining need out of it.
		tok.Current -= remaining
		if err := e.state.TokenPut(tok); err != nil {
			return nil, err
		}
		if existing := e.sameBatchToken(to, tok.Batch, tok.ID); existing != nil {
			if existing.Current > MaxQuantity-remaining {
				return nil, ErrTypeOverflow
			}
			existing.Current += remaining
			if err := e.state.TokenPut(existing); err != nil {
				return nil, err
			}
			receipt.Records = append(receipt.Records, MoveRecord{
				Kind:       MoveMerge,
				Token:      tok.ID,
				MergedInto: existing.ID,
				Batch:      tok.Batch,
				Quantity:   remaining,
			})
		} else {
			split := &Token{
				ID:        e.state.NextTokenID(),
				Batch:     tok.Batch,
				Asset:     asset,
				Owner:     to,
				Minted:    remaining,
				Current:   remaining,
				CreatedAt: e.now(),
			}
			if err := e.state.TokenPut(split); err != nil {
				return nil, err
			}
			receipt.Records = append(receipt.Records, MoveRecord{
				Kind:     MoveSplit,
				Token:    tok.ID,
				Created:  split.ID,
				Batch:    tok.Batch,
				Quantity: remaining,
			})
		}
		remaining = 0
	}
	if remaining > 0 {
		return nil, ErrInsufficientTokens
	}
	if err := e.state.AggregateSub(owner, asset, qty); err != nil {
		return nil, err
	}
	if err := e.state.AggregateAdd(to, asset, qty); err != nil {
		return nil, err
	}
	return receipt, nil
}

// selectTokens resolves the ordered source token list for a move or burn.
// Preferred ids are used exactly as supplied; otherwise all of the owner's
// live tokens of the asset type are walked oldest-first.
func (e *Engine) selectTokens(owner [20]byte, asset uint32, preferred []uint64) ([]*Token, error) {
	if len(preferred) == 0 {
		return e.state.TokensByOwner(owner, asset), nil
	}
	out := make([]*Token, 0, len(preferred))
	seen := make(map[uint64]struct{}, len(preferred))
	for _, id := range preferred {
		if _, dup := seen[id]; dup {
			return nil, ErrTypeMismatch
		}
		seen[id] = struct{}{}
		tok, ok := e.state.TokenGet(id)
		if !ok || tok.Asset != asset || tok.Owner != owner {
			return nil, ErrTypeMismatch
		}
		out = append(out, tok)
	}
	return out, nil
}

// sameBatchToken returns the receiver's live token of the given batch, if any,
// so arriving quantity can merge instead of growing the live set. The exclude
// id keeps a self-move from merging a token into itself.
func (e *Engine) sameBatchToken(owner [20]byte, batch uint64, exclude uint64) *Token {
	for _, tok := range e.state.TokensByOwner(owner, 0) {
		if tok.ID != exclude && tok.Batch == batch && tok.Current > 0 {
			return tok
		}
	}
	return nil
}
