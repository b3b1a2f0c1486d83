package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/genstudio/internal/model"
)

func TestWriteErrorResponse_WritesUnifiedFormat(t *testing.T) {
	tests := []struct {
		name   string
		status int
		err    *model.APIError
	}{
		{"unauthorized", http.StatusUnauthorized, model.NewUnauthorizedError()},
		{"empty prompt", http.StatusBadRequest, model.NewEmptyPromptError(model.MediaImage)},
		{"busy", http.StatusConflict, model.NewGenerationInProgressError()},
		{"ssrf", http.StatusForbidden, model.NewSSRFBlockedError()},
		{"generation failed", http.StatusBadGateway, model.NewGenerationFailedError(model.MediaVideo)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteErrorResponse(w, tt.status, tt.err)

			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q, want application/json", ct)
			}

			var body ErrorResponseBody
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode: %v", err)
			}
			want := ErrorResponseBody{Code: tt.err.Code, Message: tt.err.Message, Category: tt.err.Category, Action: tt.err.Action}
			if body != want {
				t.Errorf("body = %+v, want %+v", body, want)
			}
		})
	}
}

func TestWriteInternalServerError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteInternalServerError(w)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}

	var raw map[string]any
	if err := json.NewDecoder(w.Body).Decode(&raw); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	for _, field := range []string{"code", "message", "category", "action"} {
		if v, _ := raw[field].(string); v == "" {
			t.Errorf("field %q is empty", field)
		}
	}
	if raw["code"] != model.ErrCodeInternal {
		t.Errorf("code = %v", raw["code"])
	}
}
