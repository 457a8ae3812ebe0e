package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"clinic-management-api/internal/apperr"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("body is not JSON: %q", rec.Body.String())
	}
	return out
}

func TestError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"validation", apperr.Validation("bad date"), http.StatusBadRequest, "bad date"},
		{"not found", apperr.NotFound("patient not found"), http.StatusNotFound, "patient not found"},
		{"conflict", apperr.Conflict("time slot is already booked"), http.StatusConflict, "time slot is already booked"},
		{"internal hides cause", apperr.Internal(errors.New("pq: connection reset")), http.StatusInternalServerError, "internal error"},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, "internal error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			Error(rec, httptest.NewRequest(http.MethodGet, "/x", nil), tt.err)
			if rec.Code != tt.status {
				t.Fatalf("status: got %d, want %d", rec.Code, tt.status)
			}
			body := decode(t, rec)
			if body["success"] != false || body["error"] != tt.msg {
				t.Errorf("body: %v", body)
			}
		})
	}
}

func TestErrorRetryAfter(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, httptest.NewRequest(http.MethodPost, "/auth/resend-otp", nil), apperr.TooManyRequests("wait", 42))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status: %d", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "42" {
		t.Errorf("Retry-After header: %q", got)
	}
	if body := decode(t, rec); body["retryAfter"] != float64(42) {
		t.Errorf("body: %v", body)
	}
}

func TestOKAndMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	OK(rec, http.StatusCreated, map[string]string{"id": "1"})
	if rec.Code != http.StatusCreated || rec.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("got %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	body := decode(t, rec)
	if body["success"] != true || body["data"].(map[string]any)["id"] != "1" {
		t.Errorf("body: %v", body)
	}
	if _, ok := body["error"]; ok {
		t.Error("error key should be omitted on success")
	}

	rec = httptest.NewRecorder()
	Message(rec, "Logged out")
	if body := decode(t, rec); body["message"] != "Logged out" {
		t.Errorf("body: %v", body)
	}
}

func TestDecode(t *testing.T) {
	var v struct {
		Name string `json:"name"`
	}
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"ada","extra":1}`))
	if err := Decode(r, &v); err != nil || v.Name != "ada" {
		t.Fatalf("decode: %v %+v", err, v)
	}

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":`))
	err := Decode(r, &v)
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
