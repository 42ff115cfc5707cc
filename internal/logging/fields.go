package logging

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldRoute     = "route"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Enrichment
	FieldLeadID     = "lead_id"
	FieldNetwork    = "network"
	FieldIdentifier = "identifier"
	FieldExternalID = "external_id"
	FieldFeature    = "feature"

	// Event stream
	FieldCursor = "cursor"
	FieldKind   = "kind"

	FieldService = "service"
)
