package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"swiftparcel-backend/internal/models"
	"swiftparcel-backend/internal/rates"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// CreateShipment validates the booking, computes derived fields (totals,
// cost, AWB, estimated delivery) and writes the shipment, its packages and
// the initial "pending" tracking event in one transaction.
func CreateShipment(db *sqlx.DB, ownerID string, req models.CreateShipmentRequest) (models.ShipmentResponse, error) {
	if err := req.Validate(); err != nil {
		return models.ShipmentResponse{}, err
	}

	now := time.Now()
	totalWeight, totalValue := models.PackageTotals(req.Packages)

	serviceType := req.ServiceType
	if serviceType == "" {
		serviceType = rates.ServiceStandard
	}

	shipment := models.Shipment{
		ID:                uuid.New().String(),
		AWB:               models.GenerateAWB(now),
		OwnerID:           ownerID,
		PickupName:        req.Pickup.Name,
		PickupPhone:       req.Pickup.Phone,
		PickupStreet:      req.Pickup.Street,
		PickupCity:        req.Pickup.City,
		PickupState:       req.Pickup.State,
		PickupPincode:     req.Pickup.Pincode,
		DeliveryName:      req.Delivery.Name,
		DeliveryPhone:     req.Delivery.Phone,
		DeliveryStreet:    req.Delivery.Street,
		DeliveryCity:      req.Delivery.City,
		DeliveryState:     req.Delivery.State,
		DeliveryPincode:   req.Delivery.Pincode,
		ServiceType:       serviceType,
		Insurance:         req.Insurance,
		Fragile:           req.Fragile,
		TotalWeight:       totalWeight,
		TotalValue:        totalValue,
		ShippingCost:      rates.ShippingCost(totalWeight, serviceType, req.Insurance, req.Fragile),
		Status:            models.ShipmentPending,
		EstimatedDelivery: rates.EstimatedDelivery(now, serviceType).Unix(),
		CreatedAt:         now.Unix(),
		UpdatedAt:         now.Unix(),
	}

	tx, err := db.Beginx()
	if err != nil {
		return models.ShipmentResponse{}, err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO shipments (
			id, awb, owner_id,
			pickup_name, pickup_phone, pickup_street, pickup_city, pickup_state, pickup_pincode,
			delivery_name, delivery_phone, delivery_street, delivery_city, delivery_state, delivery_pincode,
			service_type, insurance, fragile,
			total_weight, total_value, shipping_cost,
			status, estimated_delivery, created_at, updated_at
		) VALUES (
			$1, $2, $3,
			$4, $5, $6, $7, $8, $9,
			$10, $11, $12, $13, $14, $15,
			$16, $17, $18,
			$19, $20, $21,
			$22, $23, $24, $25
		)
	`,
		shipment.ID, shipment.AWB, shipment.OwnerID,
		shipment.PickupName, shipment.PickupPhone, shipment.PickupStreet,
		shipment.PickupCity, shipment.PickupState, shipment.PickupPincode,
		shipment.DeliveryName, shipment.DeliveryPhone, shipment.DeliveryStreet,
		shipment.DeliveryCity, shipment.DeliveryState, shipment.DeliveryPincode,
		shipment.ServiceType, shipment.Insurance, shipment.Fragile,
		shipment.TotalWeight, shipment.TotalValue, shipment.ShippingCost,
		shipment.Status, shipment.EstimatedDelivery, shipment.CreatedAt, shipment.UpdatedAt,
	)
	if err != nil {
		return models.ShipmentResponse{}, fmt.Errorf("failed to insert shipment: %w", err)
	}

	if err := insertPackages(tx, shipment.ID, req.Packages); err != nil {
		return models.ShipmentResponse{}, err
	}

	event, err := appendTrackingEvent(tx, &shipment.ID, nil,
		string(models.ShipmentPending), req.Pickup.City, "Shipment booked", now.Unix())
	if err != nil {
		return models.ShipmentResponse{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.ShipmentResponse{}, err
	}

	return shipment.ToResponse(req.Packages, []models.TrackingEvent{event}), nil
}

func insertPackages(tx *sqlx.Tx, shipmentID string, packages []models.Package) error {
	for i, p := range packages {
		_, err := tx.Exec(`
			INSERT INTO shipment_packages (shipment_id, position, weight_kg, quantity, value, length_cm, width_cm, height_cm)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, shipmentID, i, p.WeightKg, p.Quantity, p.Value, p.LengthCm, p.WidthCm, p.HeightCm)
		if err != nil {
			return fmt.Errorf("failed to insert package %d: %w", i+1, err)
		}
	}
	return nil
}

// appendTrackingEvent writes one history row. Callers run it inside the same
// transaction as the status change so history order matches the order the
// registry accepted the events.
func appendTrackingEvent(tx *sqlx.Tx, shipmentID, parcelID *string, status, location, description string, at int64) (models.TrackingEvent, error) {
	var id int64
	err := tx.QueryRow(`
		INSERT INTO tracking_events (shipment_id, parcel_id, status, location, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, shipmentID, parcelID, status, location, description, at).Scan(&id)
	if err != nil {
		return models.TrackingEvent{}, fmt.Errorf("failed to append tracking event: %w", err)
	}
	return models.TrackingEvent{
		ID:          id,
		ShipmentID:  shipmentID,
		ParcelID:    parcelID,
		Status:      status,
		Location:    location,
		Description: description,
		CreatedAt:   at,
	}, nil
}

// GetShipmentByID loads a shipment with its packages and full history
// (oldest-first).
func GetShipmentByID(db *sqlx.DB, id string) (models.Shipment, []models.Package, []models.TrackingEvent, error) {
	return getShipment(db, "SELECT * FROM shipments WHERE id = $1", id)
}

// GetShipmentByAWB is the public tracking lookup.
func GetShipmentByAWB(db *sqlx.DB, awb string) (models.Shipment, []models.Package, []models.TrackingEvent, error) {
	return getShipment(db, "SELECT * FROM shipments WHERE awb = $1", awb)
}

func getShipment(db *sqlx.DB, query, arg string) (models.Shipment, []models.Package, []models.TrackingEvent, error) {
	var shipment models.Shipment
	err := db.Get(&shipment, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Shipment{}, nil, nil, models.ErrNotFound
	}
	if err != nil {
		return models.Shipment{}, nil, nil, err
	}

	packages, err := getPackages(db, shipment.ID)
	if err != nil {
		return models.Shipment{}, nil, nil, err
	}

	var history []models.TrackingEvent
	err = db.Select(&history, `
		SELECT id, shipment_id, parcel_id, status, location, description, created_at
		FROM tracking_events
		WHERE shipment_id = $1
		ORDER BY id ASC
	`, shipment.ID)
	if err != nil {
		return models.Shipment{}, nil, nil, err
	}

	return shipment, packages, history, nil
}

func getPackages(db *sqlx.DB, shipmentID string) ([]models.Package, error) {
	var packages []models.Package
	err := db.Select(&packages, `
		SELECT weight_kg, quantity, value, length_cm, width_cm, height_cm
		FROM shipment_packages
		WHERE shipment_id = $1
		ORDER BY position ASC
	`, shipmentID)
	return packages, err
}

// ListShipmentsByOwner returns the caller's bookings, newest first.
func ListShipmentsByOwner(db *sqlx.DB, ownerID string, limit int) ([]models.Shipment, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var shipments []models.Shipment
	err := db.Select(&shipments, `
		SELECT * FROM shipments
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, ownerID, limit)
	return shipments, err
}

// UpdateShipment applies pre-pickup edits to the address snapshots and
// package list, recomputing totals, cost and estimated delivery. Past the
// editable window it fails with a ConflictError and changes nothing.
func UpdateShipment(db *sqlx.DB, id, ownerID string, req models.CreateShipmentRequest) (models.ShipmentResponse, error) {
	if err := req.Validate(); err != nil {
		return models.ShipmentResponse{}, err
	}

	tx, err := db.Beginx()
	if err != nil {
		return models.ShipmentResponse{}, err
	}
	defer tx.Rollback()

	var shipment models.Shipment
	err = tx.Get(&shipment, "SELECT * FROM shipments WHERE id = $1 FOR UPDATE", id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ShipmentResponse{}, models.ErrNotFound
	}
	if err != nil {
		return models.ShipmentResponse{}, err
	}
	if shipment.OwnerID != ownerID {
		return models.ShipmentResponse{}, models.ErrForbidden
	}
	if !shipment.Status.Editable() {
		return models.ShipmentResponse{}, models.NewConflictError(
			fmt.Sprintf("shipment in status %q can no longer be edited", shipment.Status), nil)
	}

	now := time.Now()
	totalWeight, totalValue := models.PackageTotals(req.Packages)
	serviceType := req.ServiceType
	if serviceType == "" {
		serviceType = shipment.ServiceType
	}
	cost := rates.ShippingCost(totalWeight, serviceType, req.Insurance, req.Fragile)

	_, err = tx.Exec(`
		UPDATE shipments SET
			pickup_name = $1, pickup_phone = $2, pickup_street = $3,
			pickup_city = $4, pickup_state = $5, pickup_pincode = $6,
			delivery_name = $7, delivery_phone = $8, delivery_street = $9,
			delivery_city = $10, delivery_state = $11, delivery_pincode = $12,
			service_type = $13, insurance = $14, fragile = $15,
			total_weight = $16, total_value = $17, shipping_cost = $18,
			estimated_delivery = $19, updated_at = $20
		WHERE id = $21
	`,
		req.Pickup.Name, req.Pickup.Phone, req.Pickup.Street,
		req.Pickup.City, req.Pickup.State, req.Pickup.Pincode,
		req.Delivery.Name, req.Delivery.Phone, req.Delivery.Street,
		req.Delivery.City, req.Delivery.State, req.Delivery.Pincode,
		serviceType, req.Insurance, req.Fragile,
		totalWeight, totalValue, cost,
		rates.EstimatedDelivery(time.Unix(shipment.CreatedAt, 0), serviceType).Unix(), now.Unix(),
		id,
	)
	if err != nil {
		return models.ShipmentResponse{}, fmt.Errorf("failed to update shipment: %w", err)
	}

	// Replace the package list; positions keep the submitted order.
	if _, err := tx.Exec("DELETE FROM shipment_packages WHERE shipment_id = $1", id); err != nil {
		return models.ShipmentResponse{}, err
	}
	if err := insertPackages(tx, id, req.Packages); err != nil {
		return models.ShipmentResponse{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.ShipmentResponse{}, err
	}

	updated, packages, history, err := GetShipmentByID(db, id)
	if err != nil {
		return models.ShipmentResponse{}, err
	}
	return updated.ToResponse(packages, history), nil
}

// UpdateShipmentStatus appends a tracking event and moves the shipment to
// newStatus in one transaction. The transition table is enforced; delivered
// stamps actual_delivery.
func UpdateShipmentStatus(db *sqlx.DB, id string, newStatus models.ShipmentStatus, location, description string) (models.ShipmentResponse, models.TrackingEvent, error) {
	if !newStatus.IsValid() {
		return models.ShipmentResponse{}, models.TrackingEvent{}, models.NewValidationError("unknown shipment status %q", newStatus)
	}

	tx, err := db.Beginx()
	if err != nil {
		return models.ShipmentResponse{}, models.TrackingEvent{}, err
	}
	defer tx.Rollback()

	var shipment models.Shipment
	err = tx.Get(&shipment, "SELECT * FROM shipments WHERE id = $1 FOR UPDATE", id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ShipmentResponse{}, models.TrackingEvent{}, models.ErrNotFound
	}
	if err != nil {
		return models.ShipmentResponse{}, models.TrackingEvent{}, err
	}

	if !shipment.Status.CanTransition(newStatus) {
		return models.ShipmentResponse{}, models.TrackingEvent{}, models.NewConflictError(
			fmt.Sprintf("cannot transition shipment from %q to %q", shipment.Status, newStatus), nil)
	}

	now := time.Now().Unix()
	if newStatus == models.ShipmentDelivered {
		_, err = tx.Exec(`
			UPDATE shipments SET status = $1, actual_delivery = $2, updated_at = $2 WHERE id = $3
		`, newStatus, now, id)
	} else {
		_, err = tx.Exec(`
			UPDATE shipments SET status = $1, updated_at = $2 WHERE id = $3
		`, newStatus, now, id)
	}
	if err != nil {
		return models.ShipmentResponse{}, models.TrackingEvent{}, fmt.Errorf("failed to update status: %w", err)
	}

	event, err := appendTrackingEvent(tx, &id, nil, string(newStatus), location, description, now)
	if err != nil {
		return models.ShipmentResponse{}, models.TrackingEvent{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.ShipmentResponse{}, models.TrackingEvent{}, err
	}

	updated, packages, history, err := GetShipmentByID(db, id)
	if err != nil {
		return models.ShipmentResponse{}, models.TrackingEvent{}, err
	}
	return updated.ToResponse(packages, history), event, nil
}

// CancelShipment cancels a booking still inside the editable window and
// appends the cancelled tracking event. Anything later is a conflict.
func CancelShipment(db *sqlx.DB, id, ownerID string) (models.ShipmentResponse, models.TrackingEvent, error) {
	tx, err := db.Beginx()
	if err != nil {
		return models.ShipmentResponse{}, models.TrackingEvent{}, err
	}
	defer tx.Rollback()

	var shipment models.Shipment
	err = tx.Get(&shipment, "SELECT * FROM shipments WHERE id = $1 FOR UPDATE", id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ShipmentResponse{}, models.TrackingEvent{}, models.ErrNotFound
	}
	if err != nil {
		return models.ShipmentResponse{}, models.TrackingEvent{}, err
	}
	if shipment.OwnerID != ownerID {
		return models.ShipmentResponse{}, models.TrackingEvent{}, models.ErrForbidden
	}
	if !shipment.Status.Editable() {
		return models.ShipmentResponse{}, models.TrackingEvent{}, models.NewConflictError(
			fmt.Sprintf("shipment in status %q cannot be cancelled", shipment.Status), nil)
	}

	now := time.Now().Unix()
	_, err = tx.Exec(`
		UPDATE shipments SET status = $1, updated_at = $2 WHERE id = $3
	`, models.ShipmentCancelled, now, id)
	if err != nil {
		return models.ShipmentResponse{}, models.TrackingEvent{}, err
	}

	event, err := appendTrackingEvent(tx, &id, nil, string(models.ShipmentCancelled), "", "Shipment cancelled by customer", now)
	if err != nil {
		return models.ShipmentResponse{}, models.TrackingEvent{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.ShipmentResponse{}, models.TrackingEvent{}, err
	}

	updated, packages, history, err := GetShipmentByID(db, id)
	if err != nil {
		return models.ShipmentResponse{}, models.TrackingEvent{}, err
	}
	return updated.ToResponse(packages, history), event, nil
}
