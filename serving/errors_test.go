package serving

import (
	"errors"
	"net/http"
	"testing"
)

func TestErrorHTTPStatus(t *testing.T) {
	cases := []struct {
		err  *Error
		want int
	}{
		{NewValidationError("bad", nil), http.StatusBadRequest},
		{NewModelUnavailableError(), http.StatusServiceUnavailable},
		{NewRouteNotFoundError("/nope"), http.StatusNotFound},
		{NewMethodNotAllowedError("PUT"), http.StatusMethodNotAllowed},
		{NewInternalError(errors.New("boom")), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := tc.err.HTTPStatus(); got != tc.want {
			t.Errorf("kind %d: expected %d, got %d", tc.err.Kind, tc.want, got)
		}
	}
}

func TestInternalErrorNeverLeaksCause(t *testing.T) {
	err := NewInternalError(errors.New("stack trace with secrets"))
	resp := err.Response()
	if resp.Error != "internal server error" {
		t.Fatalf("internal cause leaked: %q", resp.Error)
	}
	if resp.Success {
		t.Fatal("success must be false")
	}
	if len(resp.Details) != 0 {
		t.Fatalf("internal details leaked: %v", resp.Details)
	}
	// The cause stays reachable server-side for logging.
	if err.Unwrap() == nil {
		t.Fatal("cause must be wrapped")
	}
}

func TestErrorResponseShape(t *testing.T) {
	err := NewValidationError("features must be a non-empty array", map[string]string{"features": "empty"})
	resp := err.Response()
	if resp.Error == "" || resp.Success {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Details["features"] != "empty" {
		t.Fatalf("unexpected details: %v", resp.Details)
	}
}
