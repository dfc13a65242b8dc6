package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRespondJSON(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		data       any
		wantBody   string
	}{
		{"object", http.StatusOK, map[string]string{"status": "ok"}, "{\"status\":\"ok\"}\n"},
		{"empty slice", http.StatusOK, []string{}, "[]\n"},
		{"accepted", http.StatusAccepted, map[string]int{"n": 1}, "{\"n\":1}\n"},
		{"nil data", http.StatusNoContent, nil, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			respondJSON(recorder, tc.statusCode, tc.data)

			assertStatusCode(t, recorder, tc.statusCode)
			assertContentType(t, recorder, "application/json")
			if recorder.Body.String() != tc.wantBody {
				t.Errorf("expected body %q, got %q", tc.wantBody, recorder.Body.String())
			}
		})
	}
}

func TestRespondError(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict, http.StatusInternalServerError} {
		recorder := httptest.NewRecorder()
		respondError(recorder, status, "something went wrong")

		assertStatusCode(t, recorder, status)
		assertJSONError(t, recorder, "something went wrong")
	}
}

func TestSanitizeForLog(t *testing.T) {
	if got := sanitizeForLog("Ana\r\nforged entry"); got != "Anaforged entry" {
		t.Errorf("expected newlines removed, got %q", got)
	}
}

func TestDecodeJSON_Limit(t *testing.T) {
	body := `{"image":"` + strings.Repeat("A", 64) + `"}`

	var dst recognizeRequest
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	if err := decodeJSON(httptest.NewRecorder(), req, 1<<10, &dst); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dst.Image) != 64 {
		t.Errorf("expected 64 bytes of image, got %d", len(dst.Image))
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	if err := decodeJSON(httptest.NewRecorder(), req, 16, &dst); err == nil {
		t.Error("expected an error for a body over the limit")
	}
}

func TestHealthCheck(t *testing.T) {
	for _, method := range []string{"GET", "HEAD"} {
		t.Run(method, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			HealthCheck(recorder, httptest.NewRequest(method, "/api/v1/health", nil))

			assertStatusCode(t, recorder, http.StatusOK)
			var result map[string]string
			if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
				t.Fatalf("failed to unmarshal response: %v", err)
			}
			if result["status"] != "ok" {
				t.Errorf("expected status 'ok', got '%s'", result["status"])
			}
		})
	}
}
