package ledger

import (
	"batchledger/core/events"
	"batchledger/native/common"
	"batchledger/observability/metrics"
	"strconv"
)

// IssueBatch creates a batch and its initial token, credited to the recipient.
// Issuer and recipient may differ. Issuance requires the administrator
// capability.
func (e *Engine) IssueBatch(caller [20]byte, asset uint32, qty uint64, issuer, recipient [20]byte, issuerShareBps uint32, metadata []MetadataPair) (*Batch, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := common.GuardAdmin(e.access, caller); err != nil {
		metrics.Ledger().OpRejected("issueBatch")
		return nil, err
	}
	batch, err := e.issueBatch(asset, qty, issuer, recipient, issuerShareBps, metadata)
	if err != nil {
		return nil, err
	}
	metrics.Ledger().OpApplied("issueBatch")
	metrics.Ledger().Minted(strconv.FormatUint(uint64(asset), 10), float64(qty))
	metrics.Ledger().SetLiveTokens(float64(e.state.TokenCount()))
	e.emit(events.BatchIssued{
		Batch:     batch.ID,
		Asset:     asset,
		Issuer:    issuer,
		Recipient: recipient,
		Quantity:  qty,
		IssuedAt:  batch.IssuedAt,
	})
	return batch, nil
}

// issueBatch performs issuance without guards or standard events so the
// retokenization path can reuse it with its own records.
func (e *Engine) issueBatch(asset uint32, qty uint64, issuer, recipient [20]byte, issuerShareBps uint32, metadata []MetadataPair) (*Batch, error) {
	if qty == 0 {
		return nil, ErrBadQuantity
	}
	if qty > MaxQuantity {
		return nil, ErrTypeOverflow
	}
	if _, ok := e.state.AssetType(asset); !ok {
		return nil, ErrUnknownAsset
	}
	now := e.now()
	batch, err := SanitizeBatch(&Batch{
		ID:             e.state.NextBatchID(),
		Asset:          asset,
		Issuer:         issuer,
		IssuedAt:       now,
		Minted:         qty,
		IssuerShareBps: issuerShareBps,
		Metadata:       metadata,
	})
	if err != nil {
		return nil, err
	}
	restore := e.state.Snapshot()
	if err := e.state.BatchPut(batch); err != nil {
		restore()
		return nil, err
	}
	e.state.EnsureAccount(recipient)
	token := &Token{
		ID:        e.state.NextTokenID(),
		Batch:     batch.ID,
		Asset:     asset,
		Owner:     recipient,
		Minted:    qty,
		Current:   qty,
		CreatedAt: now,
	}
	if err := e.state.TokenPut(token); err != nil {
		restore()
		return nil, err
	}
	if err := e.state.AggregateAdd(recipient, asset, qty); err != nil {
		restore()
		return nil, err
	}
	if err := e.state.MintedAdd(recipient, asset, qty); err != nil {
		restore()
		return nil, err
	}
	if err := e.state.TotalMintedAdd(asset, qty); err != nil {
		restore()
		return nil, err
	}
	return batch.Clone(), nil
}

// recordBurn increments a batch's burned counter. Exceeding the minted
// quantity means an upstream conservation check failed, so the error is an
// invariant violation rather than a user error.
func (e *Engine) recordBurn(batchID uint64, qty uint64) error {
	batch, ok := e.state.BatchGet(batchID)
	if !ok {
		return ErrBurnOverflow
	}
	if qty > batch.Minted-batch.Burned {
		return ErrBurnOverflow
	}
	batch.Burned += qty
	batch.FullyBurned = batch.Burned == batch.Minted
	return e.state.BatchPut(batch)
}

// GetBatch returns a copy of one batch record.
func (e *Engine) GetBatch(id uint64) (*Batch, bool) {
	if e == nil || e.state == nil {
		return nil, false
	}
	return e.state.BatchGet(id)
}

// GetBatches looks up batches in bulk. Unknown or zero ids yield zero-valued
// placeholders (id 0) instead of failing, so gappy id lists stay queryable.
func (e *Engine) GetBatches(ids []uint64) []*Batch {
	out := make([]*Batch, len(ids))
	for i, id := range ids {
		out[i] = &Batch{}
		if e == nil || e.state == nil || id == 0 {
			continue
		}
		if batch, ok := e.state.BatchGet(id); ok {
			out[i] = batch
		}
	}
	return out
}
