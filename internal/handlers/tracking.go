package handlers

import (
	"encoding/json"
	"net/http"

	"swiftparcel-backend/internal/database"
	"swiftparcel-backend/internal/events"
	"swiftparcel-backend/internal/models"
	"swiftparcel-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
)

// PublicTracking serves the tracking-link projection: current status plus
// full history, newest-first. No identity required.
func PublicTracking(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shipment, _, history, err := database.GetShipmentByAWB(db, chi.URLParam(r, "awb"))
		if err != nil {
			utils.RespondDomainError(w, err)
			return
		}

		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"awb":                shipment.AWB,
			"status":             shipment.Status,
			"estimated_delivery": shipment.EstimatedDelivery,
			"actual_delivery":    shipment.ActualDelivery,
			"tracking_history":   models.NewestFirst(history),
		})
	}
}

type trackingUpdateRequest struct {
	Status      models.ShipmentStatus `json:"status"`
	Location    string                `json:"location"`
	Description string                `json:"description"`
}

// ManualTrackingUpdate appends a tracking event (and the matching status
// transition) to a shipment, addressed by AWB.
func ManualTrackingUpdate(db *sqlx.DB, producer *events.Producer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req trackingUpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		shipment, _, _, err := database.GetShipmentByAWB(db, chi.URLParam(r, "awb"))
		if err != nil {
			utils.RespondDomainError(w, err)
			return
		}

		updated, event, err := database.UpdateShipmentStatus(db, shipment.ID, req.Status, req.Location, req.Description)
		if err != nil {
			utils.RespondDomainError(w, err)
			return
		}

		producer.Publish(r.Context(), updated.AWB, events.TrackingEventMessage{
			EntityType:  "shipment",
			TrackingKey: updated.AWB,
			Status:      event.Status,
			Location:    event.Location,
			Description: event.Description,
			Timestamp:   event.CreatedAt,
		})

		utils.RespondJSON(w, http.StatusOK, updated)
	}
}
