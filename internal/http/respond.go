package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/gmellier/fontdrop/internal/apperror"
)

// WriteJSON writes a JSON response with status code.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorBody struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	StatusCode int            `json:"statusCode"`
	RequestID  string         `json:"request_id"`
	Details    map[string]any `json:"details,omitempty"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

// fail is the error normalizer: every failure leaving a handler passes
// through here and is rendered as the single envelope shape. Business errors
// surface as-is; anything else is logged with full detail and shown to the
// client as a generic internal error, with the underlying message attached
// only outside production.
func (rt *Router) fail(w http.ResponseWriter, req *http.Request, err error) {
	requestID := RequestIDFromContext(req.Context())

	if appErr, ok := apperror.From(err); ok {
		WriteJSON(w, appErr.Status, errorEnvelope{Error: errorBody{
			Code:       appErr.Code,
			Message:    appErr.Message,
			StatusCode: appErr.Status,
			RequestID:  requestID,
			Details:    appErr.Details,
		}})
		return
	}

	rt.logger.Error("unexpected error", "error", err, "path", req.URL.Path, "request_id", requestID)
	body := errorBody{
		Code:       apperror.CodeInternal,
		Message:    "Internal server error",
		StatusCode: http.StatusInternalServerError,
		RequestID:  requestID,
	}
	if !rt.cfg.IsProduction() {
		body.Details = map[string]any{"error": err.Error()}
	}
	WriteJSON(w, http.StatusInternalServerError, errorEnvelope{Error: body})
}
