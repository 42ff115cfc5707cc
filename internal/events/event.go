package events

// leadEvent is the raw JSON structure of the CRM lead event stream.
type leadEvent struct {
	Seq  int64        `json:"seq"`
	Kind string       `json:"kind"`
	Lead *leadPayload `json:"lead,omitempty"`
}

// leadPayload carries the lead id and the lead's current field values.
type leadPayload struct {
	ID     string            `json:"id"`
	Fields map[string]string `json:"fields"`
}

const (
	kindLeadIdentified = "lead.identified"
	kindLeadUpdated    = "lead.updated"
)
