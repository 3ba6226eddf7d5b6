package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Actor (matches pkg/middleware/auth.go keys)
	FieldUserID = "user_id"

	// Meeting
	FieldClassID   = "class_id"
	FieldSessionID = "session_id"
	FieldChannel   = "channel"
	FieldMsgType   = "msg_type"
	FieldIsOwner   = "is_owner"

	// Service
	FieldService = "service"
)
