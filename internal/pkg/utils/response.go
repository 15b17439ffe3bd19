package utils

import (
	"encoding/json"
	"net/http"

	"github.com/ovidijusr/shieldai/internal/pkg/errors"
)

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// WriteError writes an error response. AppErrors keep their status code and
// error code; anything else becomes a 500.
func WriteError(w http.ResponseWriter, err error) {
	appErr, ok := err.(*errors.AppError)
	if !ok {
		appErr = errors.Internal("Internal server error", err)
	}
	WriteJSON(w, appErr.StatusCode, map[string]interface{}{
		"success": false,
		"code":    appErr.Code,
		"error":   appErr.Message,
		"details": appErr.Details,
	})
}
