package types

import "encoding/json"

const (
	ErrInvalidProject     = 1001
	ErrUnknownAssertion   = 1002
	ErrDuplicateAssertion = 1003
	ErrGenerationError    = 2001
	ErrRunError           = 3001
	ErrTimeout            = 3002
	ErrSessionError       = 3003
	ErrEngineError        = 3004

	ErrTypeInvalidProject     = "INVALID_PROJECT"
	ErrTypeUnknownAssertion   = "UNKNOWN_ASSERTION_TYPE"
	ErrTypeDuplicateAssertion = "DUPLICATE_ASSERTION"
	ErrTypeGenerationError    = "GENERATION_ERROR"
	ErrTypeRunError           = "RUN_ERROR"
	ErrTypeTimeout            = "TIMEOUT"
	ErrTypeSessionError       = "SESSION_ERROR"
	ErrTypeEngineError        = "ENGINE_ERROR"
)

// NewRPCError constructs an RPCError with the given fields.
func NewRPCError(code int, message string, errorType string, retryable bool, detail string) *RPCError {
	return &RPCError{
		Code:    code,
		Message: message,
		Data: &ErrorData{
			ErrorType: errorType,
			Retryable: retryable,
			Detail:    detail,
		},
	}
}

// NewErrorResponse constructs a JSON-RPC error response.
func NewErrorResponse(id int64, err *RPCError) *Response {
	return &Response{
		JSONRPC: "2.0",
		ID:      id,
		Error:   err,
	}
}

// NewSuccessResponse constructs a JSON-RPC success response from a result value.
func NewSuccessResponse(id int64, result any) (*Response, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	return &Response{
		JSONRPC: "2.0",
		ID:      id,
		Result:  raw,
	}, nil
}
