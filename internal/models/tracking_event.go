package models

// TrackingEvent is one entry in a shipment's or parcel's tracking history.
// Rows are append-only: stored oldest-first (serial id is the ordering
// authority) and rendered newest-first to consumers.
type TrackingEvent struct {
	ID          int64   `json:"id" db:"id"`
	ShipmentID  *string `json:"shipment_id,omitempty" db:"shipment_id"`
	ParcelID    *string `json:"parcel_id,omitempty" db:"parcel_id"`
	Status      string  `json:"status" db:"status"`
	Location    string  `json:"location" db:"location"`
	Description string  `json:"description" db:"description"`
	CreatedAt   int64   `json:"timestamp" db:"created_at"`
}

// NewestFirst returns a reversed copy of an oldest-first history slice.
func NewestFirst(events []TrackingEvent) []TrackingEvent {
	out := make([]TrackingEvent, len(events))
	for i, e := range events {
		out[len(events)-1-i] = e
	}
	return out
}
