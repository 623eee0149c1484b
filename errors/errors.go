package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a specific error code.
type ErrorCode string

// ErrorResponse represents an error response structure.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Details string    `json:"details,omitempty"`
}

// Error implements the error interface for ErrorResponse.
func (e *ErrorResponse) Error() string {
	errorJSON, _ := json.Marshal(e)
	return string(errorJSON)
}

// Is matches any ErrorResponse carrying the same code, so sentinel
// responses can be compared with errors.Is after wrapping.
func (e *ErrorResponse) Is(target error) bool {
	t, ok := target.(*ErrorResponse)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// CreateErrorResponseFromError creates an ErrorResponse from a generic error.
func CreateErrorResponseFromError(err error) error {
	if err == nil {
		return nil
	}
	if errResp, ok := err.(*ErrorResponse); ok {
		return errResp
	}
	return &ErrorResponse{
		Code:    "0",
		Details: err.Error(),
	}
}

// ProviderError is the error object handed back to a dApp. Codes follow
// EIP-1193 and JSON-RPC 2.0.
type ProviderError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error %d: %s", e.Code, e.Message)
}

const (
	ProviderCodeUserRejected        = 4001
	ProviderCodeUnauthorized        = 4100
	ProviderCodeUnsupportedMethod   = 4200
	ProviderCodeChainDisconnected   = 4901
	ProviderCodeUnrecognizedChain   = 4902
	ProviderCodeResourceUnavailable = -32002
	ProviderCodeInvalidParams       = -32602
	ProviderCodeInternalError       = -32603
)

func NewProviderError(code int, message string) *ProviderError {
	return &ProviderError{Code: code, Message: message}
}

// AsProviderError converts err into a ProviderError, defaulting to an
// internal error code.
func AsProviderError(err error) *ProviderError {
	if err == nil {
		return nil
	}
	var pErr *ProviderError
	if stderrors.As(err, &pErr) {
		return pErr
	}
	return &ProviderError{Code: ProviderCodeInternalError, Message: err.Error()}
}
