package utils

import (
	"encoding/json"
	"errors"
	"net/http"

	"swiftparcel-backend/internal/models"
)

// RespondJSON sends a JSON response
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// RespondError sends a {success:false, message} error response
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, map[string]interface{}{
		"success": false,
		"message": message,
	})
}

// RespondDomainError maps a domain error to its HTTP status. Conflict
// responses carry the conflicting record (e.g. the original parcel for a
// duplicate scan) under "existing" when one is attached.
func RespondDomainError(w http.ResponseWriter, err error) {
	switch {
	case models.IsValidation(err):
		RespondError(w, http.StatusBadRequest, err.Error())
	case models.IsConflict(err):
		ce, _ := models.AsConflict(err)
		body := map[string]interface{}{
			"success": false,
			"message": ce.Message,
		}
		if ce.Existing != nil {
			body["existing"] = ce.Existing
		}
		RespondJSON(w, http.StatusConflict, body)
	case errors.Is(err, models.ErrNotFound):
		RespondError(w, http.StatusNotFound, "not found")
	case errors.Is(err, models.ErrForbidden):
		RespondError(w, http.StatusForbidden, "forbidden")
	default:
		RespondError(w, http.StatusInternalServerError, "internal server error")
	}
}
