package contract

import "errors"

var (
	ErrModelInvoke       = errors.New("model invoke failed")
	ErrSchemaViolation   = errors.New("model response violates schema")
	ErrPromptMissing     = errors.New("required prompt is missing")
	ErrValidation        = errors.New("validation failed")
	ErrConfig            = errors.New("invalid configuration")
	ErrPolicyViolation   = errors.New("tool not permitted for persona")
	ErrTransport         = errors.New("backend transport failed")
	ErrMalformedResponse = errors.New("backend response malformed")
)
