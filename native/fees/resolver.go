package fees

import "math/big"

// Store abstracts schedule lookup. Schedules are keyed by flow kind, asset or
// currency type id, and owner; fall-back schedules use GlobalOwner.
type Store interface {
	ScheduleGet(flow FlowKind, typeID uint32, owner [20]byte) (Schedule, bool)
}

// Resolve returns the effective schedule for the triple: the owner-specific
// schedule when present, else the global schedule, else the all-zero schedule.
func Resolve(store Store, flow FlowKind, typeID uint32, owner [20]byte) Schedule {
	if store == nil {
		return Schedule{}
	}
	if sched, ok := store.ScheduleGet(flow, typeID, owner); ok {
		return sched
	}
	if sched, ok := store.ScheduleGet(flow, typeID, GlobalOwner); ok {
		return sched
	}
	return Schedule{}
}

// Exempt reports whether a fee leg must be skipped because payer and receiver
// are the same account. The rule applies independently per fee source.
func Exempt(payer, receiver [20]byte) bool {
	return payer == receiver
}

// IssuerCut carves the issuer share out of an already-computed currency fee.
// The share is floor(fee * bps / 10000); it is never added on top of the fee.
func IssuerCut(fee *big.Int, shareBps uint32) *big.Int {
	if fee == nil || fee.Sign() <= 0 || shareBps == 0 {
		return big.NewInt(0)
	}
	cut := new(big.Int).Mul(fee, big.NewInt(int64(shareBps)))
	return cut.Div(cut, big.NewInt(10_000))
}

// ProRata attributes part/total of an amount using floor division. Rounding
// remainders are not redistributed; they stay with the residual receiver.
func ProRata(amount *big.Int, part, total uint64) *big.Int {
	if amount == nil || amount.Sign() <= 0 || part == 0 || total == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(amount, new(big.Int).SetUint64(part))
	return out.Div(out, new(big.Int).SetUint64(total))
}
