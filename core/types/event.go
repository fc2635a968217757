package types

// Event is a flattened, broadcastable representation of a state change.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}
