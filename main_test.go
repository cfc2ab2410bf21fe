package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"xplorer/internal/apperr"
)

func TestParseSectionPath(t *testing.T) {
	cases := []struct {
		input string
		want  []int
		ok    bool
	}{
		{"1", []int{0}, true},
		{"2.1", []int{1, 0}, true},
		{"3.2.4", []int{2, 1, 3}, true},
		{"0", nil, false},
		{"1.x", nil, false},
		{"", nil, false},
		{"-1", nil, false},
	}
	for _, c := range cases {
		got, err := parseSectionPath(c.input)
		if c.ok != (err == nil) {
			t.Errorf("parseSectionPath(%q) error = %v, want ok=%v", c.input, err, c.ok)
			continue
		}
		if !c.ok {
			continue
		}
		if len(got) != len(c.want) {
			t.Errorf("parseSectionPath(%q) = %v, want %v", c.input, got, c.want)
			continue
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Errorf("parseSectionPath(%q) = %v, want %v", c.input, got, c.want)
				break
			}
		}
	}
}

func TestWriteError_StatusByKind(t *testing.T) {
	cases := []struct {
		kind   apperr.Kind
		status int
	}{
		{apperr.NotFound, http.StatusNotFound},
		{apperr.ParseFailure, http.StatusUnprocessableEntity},
		{apperr.ProviderFailure, http.StatusBadGateway},
		{apperr.CapabilityUnavailable, http.StatusBadRequest},
		{apperr.Internal, http.StatusInternalServerError},
	}
	for _, c := range cases {
		rec := httptest.NewRecorder()
		writeError(rec, apperr.New(c.kind, "test.Op", "boom"))
		if rec.Code != c.status {
			t.Errorf("kind %s: status = %d, want %d", c.kind, rec.Code, c.status)
		}

		var body map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("kind %s: invalid JSON body: %v", c.kind, err)
		}
		if body["kind"] != string(c.kind) {
			t.Errorf("kind %s: body kind = %q", c.kind, body["kind"])
		}
		if body["error"] == "" {
			t.Errorf("kind %s: empty error message", c.kind)
		}
	}
}
