package repetition

import (
	"net/http"
	"testing"
	"time"

	"github.com/torosent/repeater/internal/request"
)

func TestResult_Outcome(t *testing.T) {
	tests := []struct {
		name   string
		result Result
		want   string
	}{
		{name: "ok", result: Result{Response: &Response{StatusCode: 200, Status: "OK"}}, want: "200 OK"},
		{name: "status text fallback", result: Result{Response: &Response{StatusCode: 404}}, want: "404 Not Found"},
		{name: "unknown code", result: Result{Response: &Response{StatusCode: 599}}, want: "599"},
		{name: "failure", result: Result{Failure: &Failure{Message: "dial tcp: refused"}}, want: "dial tcp: refused"},
		{name: "cancelled", result: Result{Failure: &Failure{Message: "context canceled", Cancelled: true}}, want: "Cancelled"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.result.Outcome(); got != tt.want {
				t.Errorf("Outcome() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResult_Elapsed(t *testing.T) {
	r := Result{Failure: &Failure{Elapsed: time.Second}}
	if r.Elapsed() != time.Second {
		t.Errorf("Elapsed() = %v", r.Elapsed())
	}
	r = Result{Response: &Response{Elapsed: 2 * time.Millisecond}}
	if r.Elapsed() != 2*time.Millisecond {
		t.Errorf("Elapsed() = %v", r.Elapsed())
	}
}

func TestResponse_ContentType(t *testing.T) {
	resp := &Response{Headers: http.Header{"Content-Type": []string{"application/json; charset=utf-8"}}}
	if got := resp.ContentType(); got != "application/json" {
		t.Errorf("ContentType() = %q", got)
	}
	var nilResp *Response
	if nilResp.ContentType() != "" {
		t.Error("nil response content type should be empty")
	}
}

func TestIsSuccessful(t *testing.T) {
	tests := []struct {
		protocol request.Protocol
		code     int
		want     bool
	}{
		{request.ProtocolHTTP, 200, true},
		{request.ProtocolHTTP, 299, true},
		{request.ProtocolHTTP, 101, false},
		{request.ProtocolHTTP, 404, false},
		{request.ProtocolWebSocket, 101, true},
		{request.ProtocolWebSocket, 403, false},
	}
	for _, tt := range tests {
		if got := IsSuccessful(tt.protocol, tt.code); got != tt.want {
			t.Errorf("IsSuccessful(%s, %d) = %v, want %v", tt.protocol, tt.code, got, tt.want)
		}
	}
}
