package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"swiftparcel-backend/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// UnassignedDriverLabel is returned to callers when dispatch proceeds
// without a driver (soft outcome, no automatic retry).
const UnassignedDriverLabel = "unassigned"

// RecordScan registers a physically scanned parcel. Scanning is idempotent
// from the caller's perspective: a duplicate barcode fails with a
// ConflictError carrying the original record, and no second row is created.
func RecordScan(db *sqlx.DB, partnerID, partnerName string, req models.ScanRequest) (models.Parcel, error) {
	barcode := strings.TrimSpace(req.Barcode)
	if barcode == "" {
		return models.Parcel{}, models.NewValidationError("barcode is required")
	}

	now := time.Now().Unix()
	parcel := models.Parcel{
		ID:            uuid.New().String(),
		Barcode:       barcode,
		Status:        models.ParcelScanned,
		Description:   req.Description,
		WeightKg:      req.WeightKg,
		ScannedByID:   partnerID,
		ScannedByName: partnerName,
		ScannedAt:     now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	tx, err := db.Beginx()
	if err != nil {
		return models.Parcel{}, err
	}
	defer tx.Rollback()

	// ON CONFLICT DO NOTHING makes the duplicate check and the insert a
	// single atomic step: two simultaneous scans of the same barcode
	// cannot both create a row.
	res, err := tx.Exec(`
		INSERT INTO parcels (
			id, barcode, status, description, weight_kg,
			scanned_by_id, scanned_by_name, scanned_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (barcode) DO NOTHING
	`,
		parcel.ID, parcel.Barcode, parcel.Status, parcel.Description, parcel.WeightKg,
		parcel.ScannedByID, parcel.ScannedByName, parcel.ScannedAt, parcel.CreatedAt, parcel.UpdatedAt,
	)
	if err != nil {
		return models.Parcel{}, fmt.Errorf("failed to insert parcel: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return models.Parcel{}, err
	}
	if rows == 0 {
		existing, err := GetParcelByBarcode(db, barcode)
		if err != nil {
			return models.Parcel{}, err
		}
		return models.Parcel{}, models.NewConflictError(
			fmt.Sprintf("barcode %q already scanned", barcode), existing)
	}

	if _, err := appendTrackingEvent(tx, nil, &parcel.ID,
		string(models.ParcelScanned), "", "Parcel scanned by "+partnerName, now); err != nil {
		return models.Parcel{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.Parcel{}, err
	}

	return parcel, nil
}

func GetParcelByID(db *sqlx.DB, id string) (models.Parcel, error) {
	var parcel models.Parcel
	err := db.Get(&parcel, "SELECT * FROM parcels WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Parcel{}, models.ErrNotFound
	}
	return parcel, err
}

func GetParcelByBarcode(db *sqlx.DB, barcode string) (models.Parcel, error) {
	var parcel models.Parcel
	err := db.Get(&parcel, "SELECT * FROM parcels WHERE barcode = $1", barcode)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Parcel{}, models.ErrNotFound
	}
	return parcel, err
}

// GetParcelHistory returns a parcel's tracking events oldest-first.
func GetParcelHistory(db *sqlx.DB, parcelID string) ([]models.TrackingEvent, error) {
	var history []models.TrackingEvent
	err := db.Select(&history, `
		SELECT id, shipment_id, parcel_id, status, location, description, created_at
		FROM tracking_events
		WHERE parcel_id = $1
		ORDER BY id ASC
	`, parcelID)
	return history, err
}

// assignableStatuses: a parcel can be handed to a driver while it is still
// in the warehouse flow, or when it was dispatched unassigned earlier.
func assignable(status models.ParcelStatus) bool {
	switch status {
	case models.ParcelScanned, models.ParcelInWarehouse, models.ParcelDispatched:
		return true
	default:
		return false
	}
}

// assignmentConflict explains why an assignment CAS matched no rows: either
// another driver got there first, or the parcel moved past the assignable
// window while unassigned.
func assignmentConflict(current models.Parcel) *models.ConflictError {
	if current.AssignedDriverID != nil {
		return models.NewConflictError("parcel already has an assigned driver", current)
	}
	return models.NewConflictError(
		fmt.Sprintf("parcel in status %q cannot be assigned", current.Status), current)
}

// CommitAssignment writes the claimed driver onto the parcel. The WHERE
// clause is the compare-and-set that closes the double-assignment race: of
// two concurrent calls only one can see assigned_driver_id IS NULL, so
// exactly one wins and the loser gets a ConflictError. The status predicate
// repeats the assignable check inside the same atomic step, so a parcel that
// progressed past dispatch between the precheck and this write cannot be
// yanked back to dispatched.
func CommitAssignment(db *sqlx.DB, parcelID, driverID, driverName string) (models.Parcel, error) {
	tx, err := db.Beginx()
	if err != nil {
		return models.Parcel{}, err
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	res, err := tx.Exec(`
		UPDATE parcels
		SET assigned_driver_id = $1, assigned_driver_name = $2, status = $3, updated_at = $4
		WHERE id = $5 AND assigned_driver_id IS NULL
		  AND status IN ('scanned', 'in_warehouse', 'dispatched')
	`, driverID, driverName, models.ParcelDispatched, now, parcelID)
	if err != nil {
		return models.Parcel{}, fmt.Errorf("failed to assign driver: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return models.Parcel{}, err
	}
	if rows == 0 {
		current, getErr := GetParcelByID(db, parcelID)
		if getErr != nil {
			return models.Parcel{}, getErr
		}
		return models.Parcel{}, assignmentConflict(current)
	}

	if _, err := appendTrackingEvent(tx, nil, &parcelID,
		string(models.ParcelDispatched), "", "Assigned to driver "+driverName, now); err != nil {
		return models.Parcel{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.Parcel{}, err
	}

	return GetParcelByID(db, parcelID)
}

// DispatchUnassigned moves a parcel to dispatched without a driver (the
// no-driver-available soft outcome). The same null-and-status guard protects
// against a concurrent assignment or status transition landing in between.
func DispatchUnassigned(db *sqlx.DB, parcelID string) (models.Parcel, error) {
	tx, err := db.Beginx()
	if err != nil {
		return models.Parcel{}, err
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	res, err := tx.Exec(`
		UPDATE parcels
		SET status = $1, updated_at = $2
		WHERE id = $3 AND assigned_driver_id IS NULL
		  AND status IN ('scanned', 'in_warehouse', 'dispatched')
	`, models.ParcelDispatched, now, parcelID)
	if err != nil {
		return models.Parcel{}, fmt.Errorf("failed to dispatch parcel: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return models.Parcel{}, err
	}
	if rows == 0 {
		current, getErr := GetParcelByID(db, parcelID)
		if getErr != nil {
			return models.Parcel{}, getErr
		}
		return models.Parcel{}, assignmentConflict(current)
	}

	if _, err := appendTrackingEvent(tx, nil, &parcelID,
		string(models.ParcelDispatched), "", "Dispatched without driver (none available)", now); err != nil {
		return models.Parcel{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.Parcel{}, err
	}

	return GetParcelByID(db, parcelID)
}

// CheckAssignable verifies the parcel exists and is still in a state where
// assignment makes sense. Called before the directory claim so an obviously
// conflicting request never takes a driver out of the pool.
func CheckAssignable(db *sqlx.DB, parcelID string) error {
	parcel, err := GetParcelByID(db, parcelID)
	if err != nil {
		return err
	}
	if parcel.AssignedDriverID != nil || !assignable(parcel.Status) {
		return assignmentConflict(parcel)
	}
	return nil
}

// UpdateParcelStatus transitions a parcel and appends the tracking event in
// one transaction. Delivery requires the recipient name and stamps the
// confirmation fields exactly once.
func UpdateParcelStatus(db *sqlx.DB, id string, newStatus models.ParcelStatus, details *models.DeliveryDetails) (models.Parcel, models.TrackingEvent, error) {
	if !newStatus.IsValid() {
		return models.Parcel{}, models.TrackingEvent{}, models.NewValidationError("unknown parcel status %q", newStatus)
	}
	if newStatus == models.ParcelDelivered && (details == nil || strings.TrimSpace(details.DeliveredTo) == "") {
		return models.Parcel{}, models.TrackingEvent{}, models.NewValidationError("delivered_to is required when marking a parcel delivered")
	}

	tx, err := db.Beginx()
	if err != nil {
		return models.Parcel{}, models.TrackingEvent{}, err
	}
	defer tx.Rollback()

	var parcel models.Parcel
	err = tx.Get(&parcel, "SELECT * FROM parcels WHERE id = $1 FOR UPDATE", id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Parcel{}, models.TrackingEvent{}, models.ErrNotFound
	}
	if err != nil {
		return models.Parcel{}, models.TrackingEvent{}, err
	}

	if !parcel.Status.CanTransition(newStatus) {
		return models.Parcel{}, models.TrackingEvent{}, models.NewConflictError(
			fmt.Sprintf("cannot transition parcel from %q to %q", parcel.Status, newStatus), nil)
	}

	now := time.Now().Unix()
	description := "Status updated to " + string(newStatus)

	if newStatus == models.ParcelDelivered {
		_, err = tx.Exec(`
			UPDATE parcels
			SET status = $1, delivered_at = $2, delivered_to = $3,
			    delivery_notes = $4, photo_proof = $5, updated_at = $2
			WHERE id = $6
		`, newStatus, now, details.DeliveredTo, details.DeliveryNotes, details.PhotoProof, id)
		description = "Delivered to " + details.DeliveredTo
	} else {
		_, err = tx.Exec(`
			UPDATE parcels SET status = $1, updated_at = $2 WHERE id = $3
		`, newStatus, now, id)
	}
	if err != nil {
		return models.Parcel{}, models.TrackingEvent{}, fmt.Errorf("failed to update parcel status: %w", err)
	}

	event, err := appendTrackingEvent(tx, nil, &id, string(newStatus), "", description, now)
	if err != nil {
		return models.Parcel{}, models.TrackingEvent{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.Parcel{}, models.TrackingEvent{}, err
	}

	updated, err := GetParcelByID(db, id)
	return updated, event, err
}

// ListParcelsByPartner returns a scan partner's own parcels, newest first,
// optionally filtered by status.
func ListParcelsByPartner(db *sqlx.DB, partnerID string, statusFilter string, limit int) ([]models.Parcel, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var parcels []models.Parcel
	err := db.Select(&parcels, `
		SELECT * FROM parcels
		WHERE scanned_by_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3
	`, partnerID, statusFilter, limit)
	return parcels, err
}

// ListParcels is the admin read path across all partners.
func ListParcels(db *sqlx.DB, limit int) ([]models.Parcel, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var parcels []models.Parcel
	err := db.Select(&parcels, `
		SELECT * FROM parcels
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	return parcels, err
}
