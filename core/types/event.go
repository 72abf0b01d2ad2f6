package types

// Event is the wire envelope for a decoded contract log. Attributes carry
// the block position alongside the event fields, all as strings.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
