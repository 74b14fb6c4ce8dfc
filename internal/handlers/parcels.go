package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"swiftparcel-backend/internal/database"
	"swiftparcel-backend/internal/events"
	"swiftparcel-backend/internal/middleware"
	"swiftparcel-backend/internal/models"
	"swiftparcel-backend/internal/services"
	"swiftparcel-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
)

// ScanParcel is the intake entry point for scan partners. Duplicate barcodes
// answer 409 with the original record; the scan is idempotent from the
// caller's perspective.
func ScanParcel(db *sqlx.DB, producer *events.Producer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetUserFromContext(r)
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		var req models.ScanRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		parcel, err := database.RecordScan(db, claims.UserID, claims.Name, req)
		if err != nil {
			utils.RespondDomainError(w, err)
			return
		}

		producer.Publish(r.Context(), parcel.Barcode, events.TrackingEventMessage{
			EntityType:  "parcel",
			TrackingKey: parcel.Barcode,
			Status:      string(parcel.Status),
			Description: "Parcel scanned by " + claims.Name,
			Timestamp:   parcel.ScannedAt,
		})

		utils.RespondJSON(w, http.StatusCreated, parcel)
	}
}

func GetMyScans(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetUserFromContext(r)
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		parcels, err := database.ListParcelsByPartner(db, claims.UserID, r.URL.Query().Get("status"), limit)
		if err != nil {
			utils.RespondDomainError(w, err)
			return
		}

		utils.RespondJSON(w, http.StatusOK, parcels)
	}
}

func ListAllParcels(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		parcels, err := database.ListParcels(db, limit)
		if err != nil {
			utils.RespondDomainError(w, err)
			return
		}

		utils.RespondJSON(w, http.StatusOK, parcels)
	}
}

// TrackParcel is the public parcel lookup; the path id is the barcode
// printed on the label.
func TrackParcel(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		parcel, err := database.GetParcelByBarcode(db, chi.URLParam(r, "barcode"))
		if err != nil {
			utils.RespondDomainError(w, err)
			return
		}

		history, err := database.GetParcelHistory(db, parcel.ID)
		if err != nil {
			utils.RespondDomainError(w, err)
			return
		}

		utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"parcel":           parcel,
			"tracking_history": models.NewestFirst(history),
		})
	}
}

// AssignDriver links a parcel to one available driver. The parcel write is a
// compare-and-set, so of two concurrent calls exactly one succeeds; the
// loser gets 400 (route contract for double assignment). When no driver is
// available the parcel is dispatched anyway and the caller retries manually.
func AssignDriver(db *sqlx.DB, directory *services.DriverDirectory, fcmService *services.FCMService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		parcelID := chi.URLParam(r, "id")

		if err := database.CheckAssignable(db, parcelID); err != nil {
			if models.IsConflict(err) {
				utils.RespondError(w, http.StatusBadRequest, err.Error())
				return
			}
			utils.RespondDomainError(w, err)
			return
		}

		driver, err := directory.ClaimAvailable(r.Context())
		if err == services.ErrNoDriverAvailable {
			parcel, dispatchErr := database.DispatchUnassigned(db, parcelID)
			if models.IsConflict(dispatchErr) {
				utils.RespondError(w, http.StatusBadRequest, dispatchErr.Error())
				return
			}
			if dispatchErr != nil {
				utils.RespondDomainError(w, dispatchErr)
				return
			}
			log.Printf("⚠️ No driver available, parcel %s dispatched unassigned", parcelID)
			utils.RespondJSON(w, http.StatusOK, models.AssignmentResult{
				Parcel:     parcel,
				DriverName: database.UnassignedDriverLabel,
				Assigned:   false,
			})
			return
		}
		if err != nil {
			utils.RespondDomainError(w, err)
			return
		}

		parcel, err := database.CommitAssignment(db, parcelID, driver.ID, driver.Name)
		if err != nil {
			// Lost the race after claiming: hand the driver back.
			if releaseErr := directory.Release(r.Context(), driver.ID); releaseErr != nil {
				log.Printf("❌ Failed to release driver %s: %v", driver.ID, releaseErr)
			}
			if models.IsConflict(err) {
				utils.RespondError(w, http.StatusBadRequest, err.Error())
				return
			}
			utils.RespondDomainError(w, err)
			return
		}

		if fcmService != nil && driver.FCMToken != nil && *driver.FCMToken != "" {
			if err := fcmService.SendParcelAssignedNotification(*driver.FCMToken, parcel.ID, parcel.Barcode); err != nil {
				log.Printf("⚠️ Failed to notify driver %s: %v", driver.ID, err)
			}
		}

		utils.RespondJSON(w, http.StatusOK, models.AssignmentResult{
			Parcel:     parcel,
			DriverName: driver.Name,
			Assigned:   true,
		})
	}
}

// UpdateParcelStatus transitions a parcel; delivery confirmations ride along
// in the same body.
func UpdateParcelStatus(db *sqlx.DB, producer *events.Producer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Status        models.ParcelStatus `json:"status"`
			DeliveredTo   *string             `json:"delivered_to,omitempty"`
			DeliveryNotes *string             `json:"delivery_notes,omitempty"`
			PhotoProof    *string             `json:"photo_proof,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			utils.RespondError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		var details *models.DeliveryDetails
		if body.DeliveredTo != nil {
			details = &models.DeliveryDetails{
				DeliveredTo:   *body.DeliveredTo,
				DeliveryNotes: body.DeliveryNotes,
				PhotoProof:    body.PhotoProof,
			}
		}

		parcel, event, err := database.UpdateParcelStatus(db, chi.URLParam(r, "id"), body.Status, details)
		if err != nil {
			utils.RespondDomainError(w, err)
			return
		}

		producer.Publish(r.Context(), parcel.Barcode, events.TrackingEventMessage{
			EntityType:  "parcel",
			TrackingKey: parcel.Barcode,
			Status:      event.Status,
			Description: event.Description,
			Timestamp:   event.CreatedAt,
		})

		utils.RespondJSON(w, http.StatusOK, parcel)
	}
}
