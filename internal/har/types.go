package har

// HAR is the subset of the HTTP Archive 1.2 format needed to replay requests.
type HAR struct {
	Log *Log `json:"log"`
}

// Log contains the HTTP archive data
type Log struct {
	Version string   `json:"version"`
	Creator *Creator `json:"creator"`
	Entries []*Entry `json:"entries"`
}

// Creator describes the application that created the archive
type Creator struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Entry describes a single HTTP request/response pair
type Entry struct {
	StartedDateTime string    `json:"startedDateTime"`
	Request         *Request  `json:"request"`
	Response        *Response `json:"response"`
}

// Request describes an HTTP request
type Request struct {
	Method      string    `json:"method"`
	URL         string    `json:"url"`
	HTTPVersion string    `json:"httpVersion"`
	Headers     []*Header `json:"headers"`
	PostData    *PostData `json:"postData,omitempty"`
}

// Response keeps only the recorded status line.
type Response struct {
	Status     int    `json:"status"`
	StatusText string `json:"statusText"`
}

// Header represents an HTTP header as a name-value pair
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// PostData describes the request body. Browsers record form submissions as
// Params with an empty Text.
type PostData struct {
	MimeType string       `json:"mimeType"`
	Params   []*PostParam `json:"params,omitempty"`
	Text     string       `json:"text,omitempty"`
}

// PostParam represents a parameter in POST data
type PostParam struct {
	Name  string `json:"name"`
	Value string `json:"value,omitempty"`
}
