package repetition

import (
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/torosent/repeater/internal/request"
)

// Response is the envelope returned by a requester.
type Response struct {
	StatusCode int
	// Status is the reason phrase, e.g. "OK".
	Status   string
	Proto    string
	Headers  http.Header
	Trailers http.Header
	Body     []byte
	Elapsed  time.Duration
}

// ContentType returns the media type of the response without parameters.
func (r *Response) ContentType() string {
	if r == nil {
		return ""
	}
	raw := r.Headers.Get("Content-Type")
	if raw == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(raw)
	if err != nil {
		return raw
	}
	return mediaType
}

// Failure describes an iteration that produced no response.
type Failure struct {
	// Kind is a short classifier such as "timeout" or "connection_refused".
	Kind      string
	Message   string
	Elapsed   time.Duration
	Cancelled bool
}

// Result is emitted once per dispatched iteration. Exactly one of Response and
// Failure is set.
type Result struct {
	// CompletionOrdinal is the 1-based position in completion order.
	CompletionOrdinal int
	Iteration         Iteration
	Request           request.Resolved
	Response          *Response
	Failure           *Failure
	// Successful is true only for a response with a 2xx status.
	Successful bool
	StartedAt  time.Time
}

// Elapsed is the round trip time of the iteration.
func (r Result) Elapsed() time.Duration {
	switch {
	case r.Response != nil:
		return r.Response.Elapsed
	case r.Failure != nil:
		return r.Failure.Elapsed
	default:
		return 0
	}
}

// Cancelled reports whether the iteration was cut short by cancellation.
func (r Result) Cancelled() bool {
	return r.Failure != nil && r.Failure.Cancelled
}

// Outcome is a short description: "200 OK" for responses, the failure
// message otherwise.
func (r Result) Outcome() string {
	switch {
	case r.Response != nil:
		text := r.Response.Status
		if text == "" {
			text = http.StatusText(r.Response.StatusCode)
		}
		if text == "" {
			return strconv.Itoa(r.Response.StatusCode)
		}
		return strconv.Itoa(r.Response.StatusCode) + " " + text
	case r.Failure != nil:
		if r.Failure.Cancelled {
			return "Cancelled"
		}
		return r.Failure.Message
	default:
		return ""
	}
}

// IsSuccessStatus reports whether code is in the 2xx range.
func IsSuccessStatus(code int) bool {
	return code >= 200 && code < 300
}

// IsSuccessful reports whether a response with code counts as a success over
// protocol. A websocket exchange succeeds on 101 Switching Protocols.
func IsSuccessful(protocol request.Protocol, code int) bool {
	if protocol == request.ProtocolWebSocket && code == http.StatusSwitchingProtocols {
		return true
	}
	return IsSuccessStatus(code)
}
