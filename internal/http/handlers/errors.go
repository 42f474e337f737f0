// Error codes returned in the `code` field of ErrorResponse. Clients branch
// on these; messages are for humans only.
package handlers

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeNotFound     = "not_found"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"

	// Domain-specific:
	ErrCodeInvalidSettings  = "invalid_settings"
	ErrCodeSettingsFailed   = "settings_write_failed"
	ErrCodeLedgerFailed     = "ledger_failed"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)
