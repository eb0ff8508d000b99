package common

import "errors"

var (
	// ErrReadOnly is returned by every mutating entry point while the global
	// read-only flag is engaged.
	ErrReadOnly = errors.New("ledger is read-only")
	// ErrRestricted is returned when a caller lacks the administrator
	// capability required for an operation.
	ErrRestricted = errors.New("caller is not an administrator")
	// ErrUnknownEntity is returned when an operation requires the account to
	// be a registered ledger participant and it is not.
	ErrUnknownEntity = errors.New("account has no registered entity")
	// ErrStaticAccess is returned when a runtime access toggle is requested
	// but the configured backend cannot be mutated.
	ErrStaticAccess = errors.New("access store is not mutable")
)

// AccessView exposes the access-control state consulted before any mutation.
type AccessView interface {
	ReadOnly() bool
	IsAdministrator(addr [20]byte) bool
}

// AccessControl is the mutable side of AccessView, implemented by backends
// that allow flipping the maintenance flag at runtime.
type AccessControl interface {
	AccessView
	SetReadOnly(bool)
}

// EntityView is the identity-registry collaborator. Operations that require a
// classified ledger participant consult it before touching state.
type EntityView interface {
	HasEntity(addr [20]byte) bool
}

// Guard fails fast with ErrReadOnly when mutations are globally disabled. A
// nil view imposes no restriction.
func Guard(v AccessView) error {
	if v == nil {
		return nil
	}
	if v.ReadOnly() {
		return ErrReadOnly
	}
	return nil
}

// GuardAdmin checks the read-only flag and the administrator capability of the
// caller. A nil view imposes no restriction.
func GuardAdmin(v AccessView, caller [20]byte) error {
	if v == nil {
		return nil
	}
	if v.ReadOnly() {
		return ErrReadOnly
	}
	if !v.IsAdministrator(caller) {
		return ErrRestricted
	}
	return nil
}

// GuardEntity verifies the address is a known participant. A nil view imposes
// no restriction.
func GuardEntity(v EntityView, addr [20]byte) error {
	if v == nil {
		return nil
	}
	if !v.HasEntity(addr) {
		return ErrUnknownEntity
	}
	return nil
}
