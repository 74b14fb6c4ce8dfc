package models

// DriverPosition is the latest known position for one driver. Entries live
// only in the in-memory location cache: overwritten on every update, marked
// offline (not deleted) when the writing connection disconnects, so late
// joiners still see the last known location.
type DriverPosition struct {
	DriverID     string  `json:"driver_id"`
	DriverName   string  `json:"driver_name,omitempty"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	Timestamp    int64   `json:"timestamp"`
	ConnectionID string  `json:"connection_id"`
	Online       bool    `json:"online"`
}
