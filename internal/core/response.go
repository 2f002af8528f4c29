package core

import (
	"encoding/json"
	"errors"
	"net/http"

	"mailblast/internal/types"
)

// errorBody is the JSON error envelope. The shape is flat: clients of the
// upload endpoint read a single "error" string, and the request ID rides
// along for log correlation.
type errorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// JSON writes a JSON response with the given status code and data.
// If marshalling fails, it falls back to a 500 error response.
func JSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		fallback := errorBody{
			Error:     "failed to marshal response",
			RequestID: types.GetRequestID(r.Context()),
		}
		// Best-effort write; if this also fails, there is nothing more we can do.
		_ = json.NewEncoder(w).Encode(fallback)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// Error writes a JSON error response. It inspects the error chain:
//   - A *types.AppError determines the HTTP status from its code, and its
//     message becomes the client-visible reason.
//   - Any other error becomes a 500 with a generic message; internal details
//     are never exposed to the client.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	requestID := types.GetRequestID(r.Context())

	var appErr *types.AppError
	if errors.As(err, &appErr) {
		JSON(w, r, appErr.HTTPStatus(), errorBody{
			Error:     appErr.Message,
			RequestID: requestID,
		})
		return
	}

	JSON(w, r, http.StatusInternalServerError, errorBody{
		Error:     "an unexpected error occurred",
		RequestID: requestID,
	})
}
