package handlers

import (
	"encoding/json"
	"net/http"

	"swiftparcel-backend/internal/cache"
	"swiftparcel-backend/internal/middleware"
	"swiftparcel-backend/internal/models"
	"swiftparcel-backend/internal/services"
	"swiftparcel-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
)

// GetAllDrivers returns the fleet roster with availability.
func GetAllDrivers(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var drivers []models.User
		err := db.Select(&drivers, `
			SELECT * FROM users WHERE role = $1 ORDER BY name ASC
		`, models.RoleDriver)
		if err != nil {
			utils.RespondDomainError(w, err)
			return
		}

		responses := make([]models.UserResponse, len(drivers))
		for i, d := range drivers {
			responses[i] = d.ToUserResponse()
		}
		utils.RespondJSON(w, http.StatusOK, responses)
	}
}

type activeDriver struct {
	models.UserResponse
	LastPosition *models.DriverPosition `json:"last_position,omitempty"`
}

// GetActiveDrivers joins the roster with the in-memory position cache so the
// dispatch dashboard can render the fleet map over plain HTTP as well.
func GetActiveDrivers(db *sqlx.DB, locationCache *cache.LocationCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var drivers []models.User
		err := db.Select(&drivers, `
			SELECT * FROM users
			WHERE role = $1 AND driver_status IN ($2, $3)
			ORDER BY name ASC
		`, models.RoleDriver, models.DriverAvailable, models.DriverOnTrip)
		if err != nil {
			utils.RespondDomainError(w, err)
			return
		}

		out := make([]activeDriver, 0, len(drivers))
		for _, d := range drivers {
			entry := activeDriver{UserResponse: d.ToUserResponse()}
			if pos, ok := locationCache.Get(d.ID); ok {
				entry.LastPosition = &pos
			}
			out = append(out, entry)
		}
		utils.RespondJSON(w, http.StatusOK, out)
	}
}

// SetDriverStatus is the explicit admin path for releasing a driver back to
// the pool (or taking them offline); delivery never auto-releases.
func SetDriverStatus(directory *services.DriverDirectory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Status models.DriverStatus `json:"status"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if err := directory.SetDriverStatus(r.Context(), chi.URLParam(r, "id"), body.Status); err != nil {
			utils.RespondDomainError(w, err)
			return
		}

		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{"success": true})
	}
}

// RegisterFCMToken stores a driver's push token for assignment notifications.
func RegisterFCMToken(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetUserFromContext(r)
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		var body struct {
			Token string `json:"token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Token == "" {
			utils.RespondError(w, http.StatusBadRequest, "token is required")
			return
		}

		_, err := db.Exec(`
			UPDATE users SET fcm_token = $1, updated_at = EXTRACT(EPOCH FROM NOW())::BIGINT
			WHERE id = $2
		`, body.Token, claims.UserID)
		if err != nil {
			utils.RespondDomainError(w, err)
			return
		}

		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{"success": true})
	}
}
