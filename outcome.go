package restflight

import "net/http"

const (
	// ReasonUnreachable describes failure where no HTTP exchange occurred at all.
	ReasonUnreachable FailReason = "UNREACHABLE"

	// ReasonSkipped describes failure where an interceptor vetoed processing.
	ReasonSkipped FailReason = "SKIPPED"

	// ReasonHTTPError describes transport-level or uninterpreted status-code
	// error with no matching handler to absorb it.
	ReasonHTTPError FailReason = "HTTP_ERROR"

	// ReasonDeserialization describes failure of a matching handler's
	// body-construction step.
	ReasonDeserialization FailReason = "DESERIALIZATION_FAILURE"

	// ReasonEncoding describes failure of request body construction before any
	// network activity began.
	ReasonEncoding FailReason = "ENCODING_FAILURE"
)

// FailReason classifies a failed outcome.
type FailReason string

// Response holds the HTTP-level facts of an exchange that did occur.
type Response struct {
	StatusCode int
	Header     http.Header
}

// Outcome is the resolved result of one interpreted response, of one call, or
// of one whole batch. Zero value is success.
type Outcome struct {
	// Reason classifies the failure; empty on success.
	Reason FailReason

	// Response is present when an HTTP exchange occurred.
	Response *Response

	// TransportErr is the transport-level error associated with the failure.
	TransportErr error

	// Body is the response body available at the moment of failure.
	Body []byte
}

// Success returns a successful outcome.
func Success() Outcome {
	return Outcome{}
}

// IsSuccess tells whether o describes success.
func (o Outcome) IsSuccess() bool {
	return o.Reason == ""
}

// IsFailure tells whether o describes failure.
func (o Outcome) IsFailure() bool {
	return !o.IsSuccess()
}
