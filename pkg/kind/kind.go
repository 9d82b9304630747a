// Package kind enumerates content kinds under which a single HTTP exchange is interpreted.
package kind

const (
	// Data describes interpretation of response body as raw bytes.
	Data Kind = "DATA"

	// JSON describes interpretation of response body as JSON document.
	JSON Kind = "JSON"

	// String describes interpretation of response body as plain text.
	String Kind = "STRING"

	// Empty describes interpretation of response limited to status code and headers.
	Empty Kind = "EMPTY"
)

// Kind describes content kind of one interpreted response.
type Kind string

// All returns the fixed set of content kinds produced for every call.
// Every executed call is interpreted under each of these kinds, regardless of
// which kinds its handlers target.
func All() [4]Kind {
	return [4]Kind{Data, JSON, String, Empty}
}
