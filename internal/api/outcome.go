package api

import (
	"encoding/json"
	"fmt"
)

// ContentKind tells the caller how to interpret a response body.
type ContentKind string

const (
	ContentJSON ContentKind = "json"
	ContentText ContentKind = "text"
)

// FailureKind classifies why a request produced no usable response.
type FailureKind string

const (
	// FailureTimeout: the per-request deadline elapsed before a response.
	FailureTimeout FailureKind = "timeout"

	// FailureNetwork: the transport could not reach the server.
	FailureNetwork FailureKind = "network_unreachable"

	// FailureHTTP: the server answered with a non-2xx status.
	FailureHTTP FailureKind = "http_error"

	// FailureCancelled: the caller cancelled the request.
	FailureCancelled FailureKind = "cancelled"

	// FailureUnknown: anything else, with the original message preserved.
	FailureUnknown FailureKind = "unknown"
)

// Failure describes a classified request failure. Status and Body are
// populated only for FailureHTTP.
type Failure struct {
	Kind    FailureKind
	Status  int
	Message string
	Body    []byte
}

func (f *Failure) Error() string {
	if f.Kind == FailureHTTP {
		return fmt.Sprintf("http %d: %s", f.Status, f.Message)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// Outcome is the result of a single request. Exactly one of the success
// fields or Failure is meaningful: when Failure is nil the request
// succeeded with the given status and body.
type Outcome struct {
	Status  int
	Body    []byte
	Content ContentKind
	Failure *Failure
}

// OK reports whether the request succeeded with a 2xx status.
func (o Outcome) OK() bool {
	return o.Failure == nil
}

// Decode unmarshals a successful JSON body into v.
func (o Outcome) Decode(v any) error {
	if o.Failure != nil {
		return o.Failure
	}
	if o.Content != ContentJSON {
		return fmt.Errorf("response is not JSON")
	}
	if err := json.Unmarshal(o.Body, v); err != nil {
		return fmt.Errorf("unmarshaling response: %w", err)
	}
	return nil
}

// errorDetail is the backend's standard 4xx error body.
type errorDetail struct {
	Detail string `json:"detail"`
}

// failureMessage extracts a human-readable message from an error
// response body, falling back to the raw text.
func failureMessage(body []byte) string {
	var detail errorDetail
	if json.Unmarshal(body, &detail) == nil && detail.Detail != "" {
		return detail.Detail
	}
	return string(body)
}
