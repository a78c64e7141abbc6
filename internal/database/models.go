package database

import "time"

// Correlation links an inbound trigger message to the reply the bot sent for it.
// TriggerID is the primary key and never changes once written.
type Correlation struct {
	TriggerID  string    `db:"eventID"`
	ResponseID string    `db:"responseID"`
	CreatedAt  time.Time `db:"created_at"`
}
