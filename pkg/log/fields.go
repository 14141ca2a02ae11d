package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Actor
	FieldUserID   = "user_id"
	FieldUsername = "username"

	// Service
	FieldService   = "service"
	FieldComponent = "component"

	// Chat channel
	FieldState          = "state"
	FieldPrevState      = "prev_state"
	FieldAttempt        = "attempt"
	FieldDelay          = "delay_ms"
	FieldEvent          = "event"
	FieldConversationID = "conversation_id"
	FieldTempID         = "temp_id"
	FieldMessageID      = "message_id"
	FieldCacheKey       = "cache_key"

	// Log type (for audit log)
	FieldLogType = "log_type"
	LogTypeAudit = "audit"
)
