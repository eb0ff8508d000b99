package ledger

import "errors"

// The sentinel set below is the engine's full error taxonomy. Callers match
// with errors.Is; side-tagged settlement variants wrap these so both the
// generic kind and the side-specific variant match.
var (
	// ErrBadQuantity rejects non-positive or out-of-range asset quantities.
	ErrBadQuantity = errors.New("ledger: quantity must be positive")
	// ErrBadAmount rejects malformed currency amounts.
	ErrBadAmount = errors.New("ledger: amount must be a non-negative integer")
	// ErrInsufficientTokens reports that the selected or available tokens
	// cannot cover the requested quantity.
	ErrInsufficientTokens = errors.New("ledger: insufficient token quantity")
	// ErrInsufficientCurrency reports a balance shortfall on a debit.
	ErrInsufficientCurrency = errors.New("ledger: insufficient currency balance")
	// ErrTypeMismatch reports a preferred token whose asset type or owner does
	// not match the request.
	ErrTypeMismatch = errors.New("ledger: token does not match requested type or owner")
	// ErrBadLedgerOwner reports an owner-scoped operation against an account
	// with no ledger presence.
	ErrBadLedgerOwner = errors.New("ledger: unknown ledger owner")
	// ErrBadBurnQty rejects burn quantities outside the sane range.
	ErrBadBurnQty = errors.New("ledger: burn quantity out of range")
	// ErrTypeOverflow reports a quantity exceeding the representable range.
	ErrTypeOverflow = errors.New("ledger: quantity exceeds representable range")
	// ErrBurnOverflow reports a batch burn that would exceed the minted
	// quantity. Upstream checks make this unreachable; hitting it means a
	// conservation invariant was violated.
	ErrBurnOverflow = errors.New("ledger: batch burn exceeds minted quantity")
	// ErrUnknownAsset reports an unregistered asset type.
	ErrUnknownAsset = errors.New("ledger: unknown asset type")
	// ErrUnknownCurrency reports an unregistered currency type.
	ErrUnknownCurrency = errors.New("ledger: unknown currency type")
)
