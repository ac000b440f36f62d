package worker

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Task types processed by the background worker.
const (
	TypeServiceIndex   = "service:index"
	TypeServiceDeindex = "service:deindex"
)

// ServiceIndexPayload identifies the listing to (de)index.
type ServiceIndexPayload struct {
	ServiceID uuid.UUID `json:"service_id"`
}

// NewServiceIndexTask creates a task that indexes a listing for search.
func NewServiceIndexTask(serviceID uuid.UUID) (*asynq.Task, error) {
	payload, err := json.Marshal(ServiceIndexPayload{ServiceID: serviceID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeServiceIndex, payload, asynq.MaxRetry(5)), nil
}

// ServiceDeindexPayload carries the deleted listing's indexed text, since
// the row is gone by the time the task runs.
type ServiceDeindexPayload struct {
	ServiceID   uuid.UUID `json:"service_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
}

// NewServiceDeindexTask creates a task that removes a listing from the
// search index.
func NewServiceDeindexTask(serviceID uuid.UUID, title, description string) (*asynq.Task, error) {
	payload, err := json.Marshal(ServiceDeindexPayload{ServiceID: serviceID, Title: title, Description: description})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeServiceDeindex, payload, asynq.MaxRetry(5)), nil
}
