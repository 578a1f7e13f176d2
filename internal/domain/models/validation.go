package models

// ValidationCode is the machine-readable reason a symbol was rejected.
type ValidationCode string

const (
	CodeValid            ValidationCode = ""
	CodeEmpty            ValidationCode = "empty"
	CodeTooLong          ValidationCode = "too_long"
	CodeNotFound         ValidationCode = "not_found"
	CodeInsufficientData ValidationCode = "insufficient_data"
	CodeNoHistory        ValidationCode = "no_trading_history"
	CodeInvalidPrice     ValidationCode = "invalid_price_data"
	CodeUnavailable      ValidationCode = "unable_to_validate"
)

// ValidationResult is the outcome of a symbol check. Reason is empty when valid.
type ValidationResult struct {
	Symbol  string         `json:"symbol"`
	IsValid bool           `json:"is_valid"`
	Reason  string         `json:"reason,omitempty"`
	Code    ValidationCode `json:"code,omitempty"`
	Cached  bool           `json:"cached,omitempty"`
}
