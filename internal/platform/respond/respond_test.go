// Copyright (c) 2026 AetherCore contributors.

package respond

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/taibuivan/aethercore/internal/platform/apperr"
	"github.com/taibuivan/aethercore/pkg/pagination"
)

func TestOK_WrapsDataInSuccessEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	OK(rec, map[string]string{"id": "p1"})

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body SuccessEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if rec.Header().Get("Content-Type") != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", rec.Header().Get("Content-Type"))
	}
}

func TestCreated_Returns201(t *testing.T) {
	rec := httptest.NewRecorder()
	Created(rec, map[string]string{"id": "p1"})
	if rec.Code != 201 {
		t.Errorf("status = %d, want 201", rec.Code)
	}
}

func TestNoContent_Returns204WithEmptyBody(t *testing.T) {
	rec := httptest.NewRecorder()
	NoContent(rec)
	if rec.Code != 204 {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("body should be empty, got %q", rec.Body.String())
	}
}

func TestPaginated_IncludesMeta(t *testing.T) {
	rec := httptest.NewRecorder()
	Paginated(rec, []int{1, 2, 3}, pagination.NewMeta(1, 20, 3))

	var body PaginatedEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body.Meta.Total != 3 {
		t.Errorf("Meta.Total = %d, want 3", body.Meta.Total)
	}
}

func TestError_AppErrorUsesItsOwnStatusAndCode(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/raids/missing", nil)

	Error(rec, req, apperr.NotFound("Raid"))

	if rec.Code != 404 {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	var body ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body.Code != "NOT_FOUND" {
		t.Errorf("Code = %q, want NOT_FOUND", body.Code)
	}
}

func TestError_PlainErrorBecomesInternal(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/raids", nil)

	Error(rec, req, errors.New("unexpected db failure"))

	if rec.Code != 500 {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	var body ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body.Code != "INTERNAL_ERROR" {
		t.Errorf("Code = %q, want INTERNAL_ERROR", body.Code)
	}
	if body.Error == "unexpected db failure" {
		t.Error("internal error message must not leak the raw cause to the client")
	}
}
