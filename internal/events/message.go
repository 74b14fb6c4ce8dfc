package events

// TrackingEventMessage is the payload published for every accepted tracking
// event. Key the Kafka message by TrackingKey so events for one entity stay
// in order.
type TrackingEventMessage struct {
	EntityType  string `json:"entity_type"` // "shipment" or "parcel"
	TrackingKey string `json:"tracking_key"` // AWB or barcode
	Status      string `json:"status"`
	Location    string `json:"location,omitempty"`
	Description string `json:"description,omitempty"`
	Timestamp   int64  `json:"timestamp"`
}
