package models

import "time"

// ChangeEvent notifies portal clients that an entity changed. Events are keyed
// by entity type and id so a subscriber refreshes only the affected views.
type ChangeEvent struct {
	Entity    string    `json:"entity"`
	EntityID  string    `json:"entity_id"`
	StudentID string    `json:"student_id,omitempty"`
	Action    string    `json:"action"`
	At        time.Time `json:"at"`
}
