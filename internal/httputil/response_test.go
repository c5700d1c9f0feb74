package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWriteJSONError(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	WriteJSONError(rec, http.StatusBadRequest, "test error")

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content-type = %s, want application/json", ct)
	}
	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["error"] != "test error" {
		t.Errorf("error = %s, want 'test error'", resp["error"])
	}
}

func TestStatusHelpers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		fn   func(http.ResponseWriter)
		want int
	}{
		{"method", MethodNotAllowed, http.StatusMethodNotAllowed},
		{"bad", func(w http.ResponseWriter) { BadRequest(w, "x") }, http.StatusBadRequest},
		{"missing", func(w http.ResponseWriter) { NotFound(w, "x") }, http.StatusNotFound},
		{"conflict", func(w http.ResponseWriter) { Conflict(w, "x") }, http.StatusConflict},
		{"internal", func(w http.ResponseWriter) { InternalServerError(w, "x") }, http.StatusInternalServerError},
		{"ok", func(w http.ResponseWriter) { WriteJSONOK(w, []int{1}) }, http.StatusOK},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		tt.fn(rec)
		if rec.Code != tt.want {
			t.Errorf("%s: status = %d, want %d", tt.name, rec.Code, tt.want)
		}
	}
}

func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	var body struct {
		Narrative string `json:"narrative"`
	}
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"narrative":"hike"}`))
	if err := DecodeJSON(r, &body); err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if body.Narrative != "hike" {
		t.Errorf("narrative = %q", body.Narrative)
	}

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	if err := DecodeJSON(r, &body); err != nil {
		t.Errorf("empty body: %v", err)
	}

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"other":1}`))
	if err := DecodeJSON(r, &body); err == nil {
		t.Error("expected error for unknown field")
	}
}

func TestQueryParams(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodGet, "/?batch=50&pad=1.5&bad=x", nil)
	if v, err := QueryInt(r, "batch", 0, 0, 100); err != nil || v != 50 {
		t.Errorf("QueryInt(batch) = %d, %v", v, err)
	}
	if v, err := QueryInt(r, "limit", 7, 0, 100); err != nil || v != 7 {
		t.Errorf("QueryInt(limit) default = %d, %v", v, err)
	}
	if _, err := QueryInt(r, "batch", 0, 0, 10); err == nil {
		t.Error("expected range error")
	}
	if _, err := QueryInt(r, "bad", 0, 0, 10); err == nil {
		t.Error("expected parse error")
	}
	if v, err := QueryFloat(r, "pad", 1, 1, 10); err != nil || v != 1.5 {
		t.Errorf("QueryFloat(pad) = %v, %v", v, err)
	}
	if _, err := QueryFloat(r, "bad", 1, 1, 10); err == nil {
		t.Error("expected parse error")
	}
}
