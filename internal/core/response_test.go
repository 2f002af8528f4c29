package core

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"mailblast/internal/types"
)

func decodeErrorBody(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to unmarshal error body %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestJSON_WritesStatusAndBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	JSON(rec, req, http.StatusCreated, map[string]string{"url": "http://example.com/img.png"})

	if rec.Code != http.StatusCreated {
		t.Errorf("expected status 201, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %q", ct)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body["url"] != "http://example.com/img.png" {
		t.Errorf("unexpected body: %v", body)
	}
}

func TestJSON_MarshalFailureFallsBackTo500(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	// Channels cannot be marshalled.
	JSON(rec, req, http.StatusOK, map[string]any{"bad": make(chan int)})

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", rec.Code)
	}
	body := decodeErrorBody(t, rec)
	if body.Error != "failed to marshal response" {
		t.Errorf("unexpected fallback message: %q", body.Error)
	}
}

func TestError_AppErrorMapsStatusAndMessage(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/upload", nil)
	rec := httptest.NewRecorder()

	err := types.NewAppError(types.ErrCodeValidationUpload, "only image uploads are accepted", nil)
	Error(rec, req, err)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rec.Code)
	}
	body := decodeErrorBody(t, rec)
	if body.Error != "only image uploads are accepted" {
		t.Errorf("unexpected error message: %q", body.Error)
	}
}

func TestError_WrappedAppErrorUnwraps(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/upload", nil)
	rec := httptest.NewRecorder()

	inner := types.NewAppError(types.ErrCodeStorageUpload, "failed to write uploaded image", errors.New("disk full"))
	Error(rec, req, inner)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", rec.Code)
	}
	body := decodeErrorBody(t, rec)
	if body.Error != "failed to write uploaded image" {
		t.Errorf("unexpected error message: %q", body.Error)
	}
}

func TestError_GenericErrorHidesDetails(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	Error(rec, req, errors.New("pq: connection refused on 10.0.0.3"))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", rec.Code)
	}
	body := decodeErrorBody(t, rec)
	if body.Error != "an unexpected error occurred" {
		t.Errorf("internal details leaked: %q", body.Error)
	}
}

func TestError_IncludesRequestID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(types.WithRequestID(req.Context(), "req_xyz"))
	rec := httptest.NewRecorder()

	Error(rec, req, types.NewAppError(types.ErrCodeValidationUpload, "bad upload", nil))

	body := decodeErrorBody(t, rec)
	if body.RequestID != "req_xyz" {
		t.Errorf("expected request_id req_xyz, got %q", body.RequestID)
	}
}
