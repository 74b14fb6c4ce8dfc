package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type ShipmentStatus string

const (
	ShipmentPending         ShipmentStatus = "pending"
	ShipmentPickupScheduled ShipmentStatus = "pickup_scheduled"
	ShipmentPickedUp        ShipmentStatus = "picked_up"
	ShipmentInTransit       ShipmentStatus = "in_transit"
	ShipmentOutForDelivery  ShipmentStatus = "out_for_delivery"
	ShipmentDelivered       ShipmentStatus = "delivered"
	ShipmentCancelled       ShipmentStatus = "cancelled"
	ShipmentReturned        ShipmentStatus = "returned"
)

func (s ShipmentStatus) IsValid() bool {
	switch s {
	case ShipmentPending, ShipmentPickupScheduled, ShipmentPickedUp, ShipmentInTransit,
		ShipmentOutForDelivery, ShipmentDelivered, ShipmentCancelled, ShipmentReturned:
		return true
	default:
		return false
	}
}

func (s ShipmentStatus) String() string {
	return string(s)
}

// shipmentTransitions is the forward transition table. Backward transitions
// are rejected (the upstream system accepted them; here an illegal transition
// is a ConflictError so out-of-order webhook replays can't corrupt history).
var shipmentTransitions = map[ShipmentStatus][]ShipmentStatus{
	ShipmentPending:         {ShipmentPickupScheduled, ShipmentCancelled},
	ShipmentPickupScheduled: {ShipmentPickedUp, ShipmentCancelled},
	ShipmentPickedUp:        {ShipmentInTransit, ShipmentReturned},
	ShipmentInTransit:       {ShipmentOutForDelivery, ShipmentReturned},
	ShipmentOutForDelivery:  {ShipmentDelivered, ShipmentReturned},
	ShipmentDelivered:       {},
	ShipmentCancelled:       {},
	ShipmentReturned:        {},
}

// CanTransition reports whether a shipment may move from one status to the next.
func (s ShipmentStatus) CanTransition(next ShipmentStatus) bool {
	for _, allowed := range shipmentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Editable reports whether the shipment is still in the pre-pickup window
// where address edits and cancellation are allowed.
func (s ShipmentStatus) Editable() bool {
	return s == ShipmentPending || s == ShipmentPickupScheduled
}

// Address is the immutable snapshot stored on a shipment at creation.
type Address struct {
	Name    string `json:"name" db:"name"`
	Phone   string `json:"phone" db:"phone"`
	Street  string `json:"street" db:"street"`
	City    string `json:"city" db:"city"`
	State   string `json:"state" db:"state"`
	Pincode string `json:"pincode" db:"pincode"`
}

// Validate checks the fields required before a shipment can be booked.
func (a *Address) Validate(label string) error {
	if strings.TrimSpace(a.Name) == "" {
		return NewValidationError("%s address: name is required", label)
	}
	if strings.TrimSpace(a.Street) == "" {
		return NewValidationError("%s address: street is required", label)
	}
	if strings.TrimSpace(a.City) == "" {
		return NewValidationError("%s address: city is required", label)
	}
	if strings.TrimSpace(a.Pincode) == "" {
		return NewValidationError("%s address: pincode is required", label)
	}
	return nil
}

// Package is one physical unit inside a shipment booking.
type Package struct {
	WeightKg float64 `json:"weight_kg" db:"weight_kg"`
	Quantity int     `json:"quantity" db:"quantity"`
	Value    float64 `json:"value" db:"value"`
	LengthCm float64 `json:"length_cm" db:"length_cm"`
	WidthCm  float64 `json:"width_cm" db:"width_cm"`
	HeightCm float64 `json:"height_cm" db:"height_cm"`
}

type Shipment struct {
	ID                string         `json:"id" db:"id"`
	AWB               string         `json:"awb" db:"awb"`
	OwnerID           string         `json:"owner_id" db:"owner_id"`
	PickupName        string         `json:"-" db:"pickup_name"`
	PickupPhone       string         `json:"-" db:"pickup_phone"`
	PickupStreet      string         `json:"-" db:"pickup_street"`
	PickupCity        string         `json:"-" db:"pickup_city"`
	PickupState       string         `json:"-" db:"pickup_state"`
	PickupPincode     string         `json:"-" db:"pickup_pincode"`
	DeliveryName      string         `json:"-" db:"delivery_name"`
	DeliveryPhone     string         `json:"-" db:"delivery_phone"`
	DeliveryStreet    string         `json:"-" db:"delivery_street"`
	DeliveryCity      string         `json:"-" db:"delivery_city"`
	DeliveryState     string         `json:"-" db:"delivery_state"`
	DeliveryPincode   string         `json:"-" db:"delivery_pincode"`
	ServiceType       string         `json:"service_type" db:"service_type"`
	Insurance         bool           `json:"insurance" db:"insurance"`
	Fragile           bool           `json:"fragile" db:"fragile"`
	TotalWeight       float64        `json:"total_weight" db:"total_weight"`
	TotalValue        float64        `json:"total_value" db:"total_value"`
	ShippingCost      float64        `json:"shipping_cost" db:"shipping_cost"`
	Status            ShipmentStatus `json:"status" db:"status"`
	EstimatedDelivery int64          `json:"estimated_delivery" db:"estimated_delivery"`
	ActualDelivery    *int64         `json:"actual_delivery,omitempty" db:"actual_delivery"`
	CreatedAt         int64          `json:"created_at" db:"created_at"`
	UpdatedAt         int64          `json:"updated_at" db:"updated_at"`
}

// ShipmentResponse is the wire shape: nested addresses instead of the
// flattened columns, plus packages and tracking history when loaded.
type ShipmentResponse struct {
	ID                string          `json:"id"`
	AWB               string          `json:"awb"`
	OwnerID           string          `json:"owner_id"`
	Pickup            Address         `json:"pickup"`
	Delivery          Address         `json:"delivery"`
	Packages          []Package       `json:"packages"`
	ServiceType       string          `json:"service_type"`
	Insurance         bool            `json:"insurance"`
	Fragile           bool            `json:"fragile"`
	TotalWeight       float64         `json:"total_weight"`
	TotalValue        float64         `json:"total_value"`
	ShippingCost      float64         `json:"shipping_cost"`
	Status            ShipmentStatus  `json:"status"`
	EstimatedDelivery int64           `json:"estimated_delivery"`
	ActualDelivery    *int64          `json:"actual_delivery,omitempty"`
	TrackingHistory   []TrackingEvent `json:"tracking_history,omitempty"`
	CreatedAt         int64           `json:"created_at"`
}

func (s *Shipment) ToResponse(packages []Package, history []TrackingEvent) ShipmentResponse {
	return ShipmentResponse{
		ID:      s.ID,
		AWB:     s.AWB,
		OwnerID: s.OwnerID,
		Pickup: Address{
			Name: s.PickupName, Phone: s.PickupPhone, Street: s.PickupStreet,
			City: s.PickupCity, State: s.PickupState, Pincode: s.PickupPincode,
		},
		Delivery: Address{
			Name: s.DeliveryName, Phone: s.DeliveryPhone, Street: s.DeliveryStreet,
			City: s.DeliveryCity, State: s.DeliveryState, Pincode: s.DeliveryPincode,
		},
		Packages:          packages,
		ServiceType:       s.ServiceType,
		Insurance:         s.Insurance,
		Fragile:           s.Fragile,
		TotalWeight:       s.TotalWeight,
		TotalValue:        s.TotalValue,
		ShippingCost:      s.ShippingCost,
		Status:            s.Status,
		EstimatedDelivery: s.EstimatedDelivery,
		ActualDelivery:    s.ActualDelivery,
		TrackingHistory:   history,
		CreatedAt:         s.CreatedAt,
	}
}

// CreateShipmentRequest is the booking payload. The same shape is accepted
// for pre-pickup edits (PUT /shipments/{id}).
type CreateShipmentRequest struct {
	Pickup      Address   `json:"pickup"`
	Delivery    Address   `json:"delivery"`
	Packages    []Package `json:"packages"`
	ServiceType string    `json:"service_type"`
	Insurance   bool      `json:"insurance"`
	Fragile     bool      `json:"fragile"`
}

// Validate rejects a booking before any state change: both addresses must be
// complete and at least one package present.
func (r *CreateShipmentRequest) Validate() error {
	if err := r.Pickup.Validate("pickup"); err != nil {
		return err
	}
	if err := r.Delivery.Validate("delivery"); err != nil {
		return err
	}
	if len(r.Packages) == 0 {
		return NewValidationError("at least one package is required")
	}
	for i, p := range r.Packages {
		if p.WeightKg <= 0 {
			return NewValidationError("package %d: weight must be positive", i+1)
		}
	}
	return nil
}

// PackageTotals sums weight*quantity and value*quantity over all packages.
// Recomputed whenever the package list changes.
func PackageTotals(packages []Package) (totalWeight, totalValue float64) {
	for _, p := range packages {
		qty := p.Quantity
		if qty < 1 {
			qty = 1
		}
		totalWeight += p.WeightKg * float64(qty)
		totalValue += p.Value * float64(qty)
	}
	return totalWeight, totalValue
}

// GenerateAWB builds a new air waybill number: a date-derived prefix plus a
// random suffix. Uniqueness is enforced by the shipments.awb unique index.
func GenerateAWB(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))[:8]
	return "SP" + now.Format("060102") + "-" + suffix
}
