// Package administration implements the vaccine administration engine
// and its domain events.
package administration

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of domain event.
type EventType string

const (
	EventAdministrationRecorded EventType = "AdministrationRecorded"
	EventStockAdjusted          EventType = "StockAdjusted"
)

// Event is a domain event destined for the transactional outbox.
type Event struct {
	ID            string          `json:"id"`
	AggregateID   string          `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	EventType     EventType       `json:"event_type"`
	EventData     json.RawMessage `json:"event_data"`
	Timestamp     time.Time       `json:"timestamp"`
}

// NewEvent creates a new event with a generated id.
func NewEvent(aggregateID, aggregateType string, eventType EventType, data interface{}) (*Event, error) {
	eventData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Event{
		ID:            uuid.New().String(),
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     eventType,
		EventData:     eventData,
		Timestamp:     time.Now().UTC(),
	}, nil
}

// AdministrationRecordedData is the payload of a successful
// administration, consumed by the coverage projector.
type AdministrationRecordedData struct {
	LogID          int64     `json:"log_id"`
	PrescriptionID int64     `json:"prescription_id"`
	PatientID      int64     `json:"patient_id"`
	VaccineID      int64     `json:"vaccine_id"`
	NurseID        int64     `json:"nurse_id"`
	CenterID       int64     `json:"center_id"`
	AdministeredAt time.Time `json:"administered_at"`
}

// StockAdjustedData is the payload of a direct stock adjustment by a
// center administrator.
type StockAdjustedData struct {
	CenterID   int64     `json:"center_id"`
	VaccineID  int64     `json:"vaccine_id"`
	Delta      int32     `json:"delta"`
	Quantity   int32     `json:"quantity"`
	AdjustedAt time.Time `json:"adjusted_at"`
}
