package types

// Event represents a structured record of a ledger state change. Attributes
// are flat string pairs so downstream consumers (journal, reporting) never
// hold references into live state.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
