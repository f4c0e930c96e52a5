package httpx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWriteJSON(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		data     any
		wantJSON string
	}{
		{"created link", http.StatusCreated, map[string]any{"id": 1, "short_code": "my-alias"}, `{"id":1,"short_code":"my-alias"}`},
		{"empty page", http.StatusOK, map[string]any{"items": []string{}, "total_items": 0}, `{"items":[],"total_items":0}`},
		{"health", http.StatusOK, map[string]string{"status": "ok"}, `{"status":"ok"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			WriteJSON(rr, tt.status, tt.data)

			if rr.Code != tt.status {
				t.Errorf("status = %d, want %d", rr.Code, tt.status)
			}
			if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q, want application/json", ct)
			}
			if got := rr.Body.String(); got != tt.wantJSON+"\n" {
				t.Errorf("body = %s, want %s", got, tt.wantJSON)
			}
		})
	}
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		code        string
		message     string
		details     any
		wantDetails string
	}{
		{"no details", http.StatusBadRequest, "invalid_url", "target_url must use http or https", nil, "null"},
		{"alias details", http.StatusConflict, "alias_conflict", "alias already in use", map[string]string{"alias": "promo"}, `{"alias":"promo"}`},
		{"no message", http.StatusNotFound, "not_found", "", nil, "null"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			WriteError(rr, tt.status, tt.code, tt.message, tt.details)

			if rr.Code != tt.status {
				t.Errorf("status = %d, want %d", rr.Code, tt.status)
			}

			var resp struct {
				Error   string          `json:"error"`
				Message *string         `json:"message"`
				Details json.RawMessage `json:"details"`
			}
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to unmarshal response: %v", err)
			}
			if resp.Error != tt.code {
				t.Errorf("error = %q, want %q", resp.Error, tt.code)
			}
			if tt.message == "" && resp.Message != nil {
				t.Errorf("message = %q, want it omitted", *resp.Message)
			}
			if tt.message != "" && (resp.Message == nil || *resp.Message != tt.message) {
				t.Errorf("message = %v, want %q", resp.Message, tt.message)
			}
			details := string(resp.Details)
			if details == "" {
				details = "null"
			}
			if details != tt.wantDetails {
				t.Errorf("details = %s, want %s", details, tt.wantDetails)
			}
		})
	}
}

func TestWriteRedirect(t *testing.T) {
	req := httptest.NewRequest("GET", "/r/my-alias", nil)
	rr := httptest.NewRecorder()

	WriteRedirect(rr, req, "https://example.com/landing")

	if rr.Code != http.StatusFound {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusFound)
	}
	if got := rr.Header().Get("Location"); got != "https://example.com/landing" {
		t.Errorf("Location = %q, want %q", got, "https://example.com/landing")
	}
	if got := rr.Header().Get("Cache-Control"); got != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", got)
	}
}
