package model

import "encoding/json"

// ErrorType classifies a failed call in the envelope.
type ErrorType string

const (
	ClientError  ErrorType = "Client.Error"
	ServerError  ErrorType = "Server.Error"
	NetworkError ErrorType = "Network.Error"
)

// RespondStatusError is the respondStatus value of every failure envelope.
const RespondStatusError = "ERROR"

// ErrorEnvelope describes a failure. It is never mutated after creation.
type ErrorEnvelope struct {
	ErrorType ErrorType `json:"ErrorType"`
	Errors    string    `json:"Errors"`
}

// Envelope is the wire shape of every failure returned to callers.
type Envelope struct {
	RespondStatus string        `json:"respondStatus"`
	ErrorMessages ErrorEnvelope `json:"errorMessages"`
}

// UnifiedResult is the only value the proxy returns to its callers.
// When OK is true Data holds the backend payload verbatim; otherwise Err is set.
type UnifiedResult struct {
	OK     bool
	Status int
	Data   json.RawMessage
	Err    *ErrorEnvelope
}

// Success wraps a backend payload.
func Success(status int, data json.RawMessage) UnifiedResult {
	return UnifiedResult{OK: true, Status: status, Data: data}
}

// Failure builds a failed result with a fresh error envelope.
func Failure(status int, typ ErrorType, msg string) UnifiedResult {
	return UnifiedResult{
		Status: status,
		Err:    &ErrorEnvelope{ErrorType: typ, Errors: msg},
	}
}

// Body returns the value written on the wire: the payload or an Envelope.
func (r UnifiedResult) Body() any {
	if r.OK {
		return r.Data
	}
	env := Envelope{RespondStatus: RespondStatusError}
	if r.Err != nil {
		env.ErrorMessages = *r.Err
	}
	return env
}

// ErrorTypeLabel returns the error type, or "none" for a success. Used as a metric label.
func (r UnifiedResult) ErrorTypeLabel() string {
	if r.OK || r.Err == nil {
		return "none"
	}
	return string(r.Err.ErrorType)
}
