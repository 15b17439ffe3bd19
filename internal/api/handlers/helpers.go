package handlers

import (
	"net/http"

	"github.com/ovidijusr/shieldai/internal/pkg/errors"
	"github.com/ovidijusr/shieldai/internal/pkg/utils"
)

func errBadJSON(err error) error {
	return errors.ValidationError("invalid JSON body", err.Error())
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	utils.WriteJSON(w, status, data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, err error) {
	utils.WriteError(w, err)
}
