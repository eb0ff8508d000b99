package fees

import (
	"fmt"
	"math/big"
	"strings"
)

// FlowKind is the closed set of fee-bearing flow categories. The set is fixed;
// resolution switches over it exhaustively rather than dispatching virtually.
type FlowKind uint8

const (
	// FlowAsset covers fees charged on asset-quantity legs.
	FlowAsset FlowKind = iota
	// FlowCurrency covers fees charged on currency legs.
	FlowCurrency
	// FlowIssuerShare covers the issuer carve-out of a collected currency fee.
	FlowIssuerShare
)

// Valid reports whether the flow kind is within the supported range.
func (k FlowKind) Valid() bool {
	switch k {
	case FlowAsset, FlowCurrency, FlowIssuerShare:
		return true
	default:
		return false
	}
}

func (k FlowKind) String() string {
	switch k {
	case FlowAsset:
		return "asset"
	case FlowCurrency:
		return "currency"
	case FlowIssuerShare:
		return "issuerShare"
	default:
		return "unknown"
	}
}

// ParseFlow converts a configuration identifier into a FlowKind.
func ParseFlow(s string) (FlowKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "asset":
		return FlowAsset, nil
	case "currency":
		return FlowCurrency, nil
	case "issuershare", "issuer_share":
		return FlowIssuerShare, nil
	default:
		return 0, fmt.Errorf("fees: unknown flow kind %q", s)
	}
}

// GlobalOwner is the sentinel owner under which fall-back schedules are keyed.
var GlobalOwner [20]byte

// Schedule is the fee schedule value object. A schedule uses the per-mille
// form when PerMille is non-zero, the fixed+percent form otherwise. Min and
// Max clamp the computed amount; Max of zero means uncapped.
type Schedule struct {
	Mirrored    bool
	PerMille    uint64
	Fixed       uint64
	PercentBips uint64
	Min         uint64
	Max         uint64
}

// IsZero reports whether the schedule charges nothing in either form.
func (s Schedule) IsZero() bool {
	return s.PerMille == 0 && s.Fixed == 0 && s.PercentBips == 0 && s.Min == 0
}

// Amount computes the fee for a currency base amount using integer floor
// division throughout.
func (s Schedule) Amount(base *big.Int) *big.Int {
	if base == nil || base.Sign() <= 0 {
		return s.clamp(big.NewInt(0))
	}
	var fee *big.Int
	if s.PerMille > 0 {
		fee = new(big.Int).Div(base, big.NewInt(1000))
		fee.Mul(fee, new(big.Int).SetUint64(s.PerMille))
	} else {
		fee = new(big.Int).Mul(base, new(big.Int).SetUint64(s.PercentBips))
		fee.Div(fee, big.NewInt(10_000))
		fee.Add(fee, new(big.Int).SetUint64(s.Fixed))
	}
	return s.clamp(fee)
}

// QuantityAmount computes the fee for an asset-quantity base. The result
// saturates at the quantity cap; an over-cap fee simply exceeds any holder's
// balance and fails the solvency check downstream.
func (s Schedule) QuantityAmount(base uint64, cap uint64) uint64 {
	fee := s.Amount(new(big.Int).SetUint64(base))
	if !fee.IsUint64() {
		return cap
	}
	v := fee.Uint64()
	if cap > 0 && v > cap {
		return cap
	}
	return v
}

func (s Schedule) clamp(fee *big.Int) *big.Int {
	if s.Max > 0 {
		max := new(big.Int).SetUint64(s.Max)
		if fee.Cmp(max) > 0 {
			fee = max
		}
	}
	min := new(big.Int).SetUint64(s.Min)
	if fee.Cmp(min) < 0 {
		fee = min
	}
	return new(big.Int).Set(fee)
}
