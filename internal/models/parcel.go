package models

type ParcelStatus string

const (
	ParcelScanned        ParcelStatus = "scanned"
	ParcelInWarehouse    ParcelStatus = "in_warehouse"
	ParcelDispatched     ParcelStatus = "dispatched"
	ParcelInTransit      ParcelStatus = "in_transit"
	ParcelOutForDelivery ParcelStatus = "out_for_delivery"
	ParcelDelivered      ParcelStatus = "delivered"
	ParcelReturned       ParcelStatus = "returned"
	ParcelFailed         ParcelStatus = "failed"
)

func (s ParcelStatus) IsValid() bool {
	switch s {
	case ParcelScanned, ParcelInWarehouse, ParcelDispatched, ParcelInTransit,
		ParcelOutForDelivery, ParcelDelivered, ParcelReturned, ParcelFailed:
		return true
	default:
		return false
	}
}

func (s ParcelStatus) String() string {
	return string(s)
}

var parcelTransitions = map[ParcelStatus][]ParcelStatus{
	ParcelScanned:        {ParcelInWarehouse, ParcelDispatched, ParcelFailed},
	ParcelInWarehouse:    {ParcelDispatched, ParcelFailed},
	ParcelDispatched:     {ParcelInTransit, ParcelFailed, ParcelReturned},
	ParcelInTransit:      {ParcelOutForDelivery, ParcelFailed, ParcelReturned},
	ParcelOutForDelivery: {ParcelDelivered, ParcelFailed, ParcelReturned},
	ParcelDelivered:      {},
	ParcelReturned:       {},
	ParcelFailed:         {ParcelReturned},
}

// CanTransition reports whether a parcel may move from one status to the next.
func (s ParcelStatus) CanTransition(next ParcelStatus) bool {
	for _, allowed := range parcelTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Parcel is a physically scanned unit. It exists independently of (and often
// before) any shipment; the barcode is the natural key for intake scans.
type Parcel struct {
	ID                 string       `json:"id" db:"id"`
	Barcode            string       `json:"barcode" db:"barcode"`
	Status             ParcelStatus `json:"status" db:"status"`
	Description        string       `json:"description" db:"description"`
	WeightKg           *float64     `json:"weight_kg,omitempty" db:"weight_kg"`
	ScannedByID        string       `json:"scanned_by_id" db:"scanned_by_id"`
	ScannedByName      string       `json:"scanned_by_name" db:"scanned_by_name"`
	ScannedAt          int64        `json:"scanned_at" db:"scanned_at"`
	AssignedDriverID   *string      `json:"assigned_driver_id,omitempty" db:"assigned_driver_id"`
	AssignedDriverName *string      `json:"assigned_driver_name,omitempty" db:"assigned_driver_name"`
	DeliveredAt        *int64       `json:"delivered_at,omitempty" db:"delivered_at"`
	DeliveredTo        *string      `json:"delivered_to,omitempty" db:"delivered_to"`
	DeliveryNotes      *string      `json:"delivery_notes,omitempty" db:"delivery_notes"`
	PhotoProof         *string      `json:"photo_proof,omitempty" db:"photo_proof"`
	CreatedAt          int64        `json:"created_at" db:"created_at"`
	UpdatedAt          int64        `json:"updated_at" db:"updated_at"`
}

// ScanRequest is the intake payload from a scan partner.
type ScanRequest struct {
	Barcode     string   `json:"barcode"`
	Description string   `json:"description"`
	WeightKg    *float64 `json:"weight_kg,omitempty"`
}

// DeliveryDetails are the confirmation fields required/allowed when a parcel
// transitions into delivered.
type DeliveryDetails struct {
	DeliveredTo   string  `json:"delivered_to"`
	DeliveryNotes *string `json:"delivery_notes,omitempty"`
	PhotoProof    *string `json:"photo_proof,omitempty"`
}

// AssignmentResult is returned by the assignment coordinator. When no driver
// was available the parcel is still dispatched; Assigned is false and
// DriverName carries the placeholder label.
type AssignmentResult struct {
	Parcel     Parcel `json:"parcel"`
	DriverName string `json:"driver_name"`
	Assigned   bool   `json:"assigned"`
}
