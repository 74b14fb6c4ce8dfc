package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"swiftparcel-backend/internal/database"
	"swiftparcel-backend/internal/events"
	"swiftparcel-backend/internal/middleware"
	"swiftparcel-backend/internal/models"
	"swiftparcel-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
)

func CreateShipment(db *sqlx.DB, producer *events.Producer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetUserFromContext(r)
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		var req models.CreateShipmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		shipment, err := database.CreateShipment(db, claims.UserID, req)
		if err != nil {
			utils.RespondDomainError(w, err)
			return
		}

		producer.Publish(r.Context(), shipment.AWB, events.TrackingEventMessage{
			EntityType:  "shipment",
			TrackingKey: shipment.AWB,
			Status:      string(shipment.Status),
			Description: "Shipment booked",
			Timestamp:   shipment.CreatedAt,
		})

		utils.RespondJSON(w, http.StatusCreated, shipment)
	}
}

func ListShipments(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetUserFromContext(r)
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		shipments, err := database.ListShipmentsByOwner(db, claims.UserID, limit)
		if err != nil {
			utils.RespondDomainError(w, err)
			return
		}

		utils.RespondJSON(w, http.StatusOK, shipments)
	}
}

func GetShipment(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetUserFromContext(r)
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		id := chi.URLParam(r, "id")
		shipment, packages, history, err := database.GetShipmentByID(db, id)
		if err != nil {
			utils.RespondDomainError(w, err)
			return
		}

		// Owners see their own bookings; dispatch admins see all.
		if shipment.OwnerID != claims.UserID && claims.Role != models.RoleAdmin {
			utils.RespondDomainError(w, models.ErrForbidden)
			return
		}

		utils.RespondJSON(w, http.StatusOK, shipment.ToResponse(packages, history))
	}
}

// UpdateShipment handles pre-pickup edits. Past the editable window the
// registry answers with a conflict; the REST contract for this route is 400.
func UpdateShipment(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetUserFromContext(r)
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		var req models.CreateShipmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		shipment, err := database.UpdateShipment(db, chi.URLParam(r, "id"), claims.UserID, req)
		if models.IsConflict(err) {
			utils.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err != nil {
			utils.RespondDomainError(w, err)
			return
		}

		utils.RespondJSON(w, http.StatusOK, shipment)
	}
}

func CancelShipment(db *sqlx.DB, producer *events.Producer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetUserFromContext(r)
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		shipment, event, err := database.CancelShipment(db, chi.URLParam(r, "id"), claims.UserID)
		if models.IsConflict(err) {
			// Route contract: editability failures are 400 here.
			utils.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err != nil {
			utils.RespondDomainError(w, err)
			return
		}

		producer.Publish(r.Context(), shipment.AWB, events.TrackingEventMessage{
			EntityType:  "shipment",
			TrackingKey: shipment.AWB,
			Status:      event.Status,
			Description: event.Description,
			Timestamp:   event.CreatedAt,
		})

		utils.RespondJSON(w, http.StatusOK, shipment)
	}
}
