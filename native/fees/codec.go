package fees

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// ScheduleConfig is the serialisable form of one fee schedule entry as it
// appears in the genesis configuration. An empty owner designates the global
// fall-back schedule.
type ScheduleConfig struct {
	Flow        string `toml:"flow" json:"flow"`
	TypeID      uint32 `toml:"type_id" json:"typeId"`
	Owner       string `toml:"owner,omitempty" json:"owner,omitempty"`
	Mirrored    bool   `toml:"mirrored,omitempty" json:"mirrored,omitempty"`
	PerMille    uint64 `toml:"per_mille,omitempty" json:"perMille,omitempty"`
	Fixed       uint64 `toml:"fixed,omitempty" json:"fixed,omitempty"`
	PercentBips uint64 `toml:"percent_bips,omitempty" json:"percentBips,omitempty"`
	Min         uint64 `toml:"min,omitempty" json:"min,omitempty"`
	Max         uint64 `toml:"max,omitempty" json:"max,omitempty"`
}

// Schedule converts the configuration entry into the resolver value object.
func (c ScheduleConfig) Schedule() Schedule {
	return Schedule{
		Mirrored:    c.Mirrored,
		PerMille:    c.PerMille,
		Fixed:       c.Fixed,
		PercentBips: c.PercentBips,
		Min:         c.Min,
		Max:         c.Max,
	}
}

// Key parses the lookup triple of the entry. The owner must be a 20-byte hex
// address; an empty owner yields the GlobalOwner sentinel.
func (c ScheduleConfig) Key() (FlowKind, uint32, [20]byte, error) {
	flow, err := ParseFlow(c.Flow)
	if err != nil {
		return 0, 0, GlobalOwner, err
	}
	if c.TypeID == 0 {
		return 0, 0, GlobalOwner, fmt.Errorf("fees: schedule entry requires a type id")
	}
	owner, err := ParseOwner(c.Owner)
	if err != nil {
		return 0, 0, GlobalOwner, err
	}
	return flow, c.TypeID, owner, nil
}

// ParseOwner normalises a hex-encoded 20-byte account identifier. The empty
// string maps to the global sentinel owner.
func ParseOwner(s string) ([20]byte, error) {
	var owner [20]byte
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return GlobalOwner, nil
	}
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		trimmed = trimmed[2:]
	}
	if len(trimmed) != 40 {
		return owner, fmt.Errorf("fees: owner must be 20 bytes (got %d hex chars)", len(trimmed))
	}
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return owner, fmt.Errorf("fees: decode owner: %w", err)
	}
	copy(owner[:], decoded)
	return owner, nil
}
